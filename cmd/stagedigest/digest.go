package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/kbukum/stagekit/logger"
	"github.com/kbukum/stagekit/stage"
)

// ManifestPath labels the manifest line.
const ManifestPath = "(manifest)"

// Digest is one output line.
type Digest struct {
	Path string
	Sum  string
	Size int64
}

func (d Digest) String() string {
	return fmt.Sprintf("%s  %s", d.Sum, d.Path)
}

// digester hashes files and remembers what it hashed for the manifest.
type digester struct {
	size int
	key  []byte
	log  *logger.Logger

	mu      sync.Mutex
	results []Digest
	bytes   int64
	started time.Time
}

func newDigester(size int, key []byte, log *logger.Logger) (*digester, error) {
	if _, err := blake2b.New(size, key); err != nil {
		return nil, fmt.Errorf("blake2b: %w", err)
	}
	return &digester{size: size, key: key, log: log, started: time.Now()}, nil
}

// File hashes the file at path.
func (d *digester) File(ctx context.Context, path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Digest{}, err
	}
	defer f.Close()

	h, err := blake2b.New(d.size, d.key)
	if err != nil {
		return Digest{}, err
	}
	n, err := io.Copy(h, &ctxReader{ctx: ctx, r: f})
	if err != nil {
		return Digest{}, fmt.Errorf("reading %s: %w", path, err)
	}

	out := Digest{Path: path, Sum: hex.EncodeToString(h.Sum(nil)), Size: n}
	d.mu.Lock()
	d.results = append(d.results, out)
	d.bytes += n
	d.mu.Unlock()
	return out, nil
}

// Manifest is a finalize hook emitting a digest over every file digest,
// sorted by path so it does not depend on completion order.
func (d *digester) Manifest(_ context.Context, c stage.Completion[Digest]) {
	d.mu.Lock()
	results := append([]Digest(nil), d.results...)
	total := d.bytes
	d.mu.Unlock()

	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })
	h, err := blake2b.New(d.size, d.key)
	if err != nil {
		_ = c.Done(err)
		return
	}
	for _, r := range results {
		fmt.Fprintf(h, "%s  %s\n", r.Sum, r.Path)
	}
	_ = c.Return(Digest{Path: ManifestPath, Sum: hex.EncodeToString(h.Sum(nil)), Size: total})
}

// Summary is a flush hook that logs totals.
func (d *digester) Summary(_ context.Context, c stage.Completion[Digest]) {
	d.mu.Lock()
	files, total := len(d.results), d.bytes
	d.mu.Unlock()

	d.log.Info("digest run complete", logger.Fields(
		"files", files,
		"bytes", total,
		logger.FieldDuration, time.Since(d.started).Milliseconds(),
	))
	_ = c.Done(nil)
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
