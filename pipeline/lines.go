package pipeline

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// FromLines yields the lines of r with surrounding whitespace trimmed.
// The pipeline can be pulled once.
func FromLines(r io.Reader) *Pipeline[string] {
	sc := bufio.NewScanner(r)
	return FromFunc(func(context.Context) Iterator[string] {
		return &lineIter{sc: sc}
	})
}

type lineIter struct {
	sc *bufio.Scanner
}

func (it *lineIter) Next(ctx context.Context) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if !it.sc.Scan() {
		return "", false, it.sc.Err()
	}
	return strings.TrimSpace(it.sc.Text()), true, nil
}

func (it *lineIter) Close() error { return nil }
