package main

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/kbukum/stagekit/logger"
	"github.com/kbukum/stagekit/observability"
	"github.com/kbukum/stagekit/pipeline"
	"github.com/kbukum/stagekit/stage"
	"github.com/kbukum/stagekit/stream"
	"github.com/kbukum/stagekit/version"
)

// digestApp wires configuration, telemetry and the digest pipeline.
type digestApp struct {
	cfg    AppConfig
	stdin  io.Reader
	stdout io.Writer
	log    *logger.Logger
}

// Run hashes the files named in paths, or on stdin when paths is empty,
// and writes one line per file.
func (a *digestApp) Run(ctx context.Context, paths []string) error {
	shutdown, err := observability.Setup(ctx, a.cfg.Telemetry, a.cfg.Name, version.Get().Version)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			a.log.Warn("telemetry shutdown failed", logger.ErrorFields("shutdown", err))
		}
	}()

	metrics, err := observability.NewStageMetrics(observability.Meter("github.com/kbukum/stagekit/cmd/stagedigest"))
	if err != nil {
		return err
	}

	key, err := a.cfg.Digest.KeyBytes()
	if err != nil {
		return fmt.Errorf("digest.key: %w", err)
	}
	d, err := newDigester(a.cfg.Digest.Size, key, a.log.WithComponent("digest"))
	if err != nil {
		return err
	}

	hooks := stage.Hooks[Digest]{Flush: d.Summary}
	if a.cfg.Digest.Manifest {
		hooks.Finalize = d.Manifest
	}

	var source *pipeline.Pipeline[string]
	if len(paths) > 0 {
		source = pipeline.FromSlice(paths)
	} else {
		source = pipeline.FromLines(a.stdin)
	}
	source = pipeline.Filter(source, func(p string) bool { return p != "" })

	digests := pipeline.Through(source, a.cfg.Stage, a.cfg.Stream,
		stage.Func(d.File), hooks,
		stream.WithLogger(a.log.WithComponent("stage")),
		stream.WithStageOptions(stage.WithMetrics(metrics)),
	)

	w := bufio.NewWriter(a.stdout)
	err = pipeline.ForEach(ctx, digests, func(_ context.Context, dg Digest) error {
		_, err := fmt.Fprintln(w, dg.String())
		return err
	})
	if ferr := w.Flush(); err == nil {
		err = ferr
	}
	return err
}
