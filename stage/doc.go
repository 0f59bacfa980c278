// Package stage applies an asynchronous transform to a sequence of items
// with a bounded number of transforms in flight, optional in-order output,
// and a finalize then flush shutdown that completes before the stage reports
// itself drained.
//
// A Stage is driven by a Substrate, the collaborator that owns buffering and
// readiness on either side. The substrate offers items with Deliver, ends
// input with EndOfInput, and calls Resume once downstream can accept output
// again. The stage answers through Push, Redeliver, Complete and Fail.
//
// All stage state lives on one executor.Executor. Deliver, EndOfInput and
// Resume must be called from tasks running on that executor (or, with an
// executor.Manual, from the goroutine that drives it). Completions may be
// resolved from any goroutine; their effects are submitted back to the
// executor as Settle tasks, and lifecycle transitions are evaluated as
// Advance tasks, so every settlement pending at a given moment is applied
// before the finalize guard is checked.
//
//	st, err := stage.New(stage.Config{MaxConcurrency: 4, PreserveOrder: true},
//		stage.Func(func(ctx context.Context, path string) (Digest, error) {
//			return digestFile(ctx, path)
//		}),
//		stage.Hooks[Digest]{},
//		exec, sub,
//	)
package stage
