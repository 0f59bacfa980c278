// Package pipeline provides lazy, pull-based pipelines whose expensive step
// can be run through a bounded-concurrency stage.
//
// Nothing runs until values are pulled with Collect or ForEach. Through
// hosts a stage.Transform on a stream.Stream: values are pulled from the
// upstream pipeline on a feeder goroutine, at most MaxConcurrency transforms
// run at once, and with PreserveOrder the results come out in input order.
//
//	paths := pipeline.Filter(pipeline.FromLines(os.Stdin), func(s string) bool { return s != "" })
//	digests := pipeline.Through(paths,
//		stage.Config{MaxConcurrency: 8, PreserveOrder: true},
//		stream.Config{},
//		stage.Func(digestFile),
//		stage.Hooks[Digest]{},
//	)
//	err := pipeline.ForEach(ctx, digests, print)
package pipeline
