// Package stream runs a stage behind a goroutine-safe channel interface.
//
// Producers call Write, which blocks while the input buffer is full, and End
// once everything has been written. Consumers range over Out. Output
// readiness is derived from a high-water mark on the outputs waiting for the
// consumer, so a slow consumer holds back in-order release and, through
// the stage's admission gate, the producers.
//
//	s, err := stream.New(ctx, stageCfg, stream.Config{}, stage.Func(digest), stage.Hooks[Digest]{})
//	go func() {
//		for _, p := range paths {
//			if err := s.Write(ctx, p); err != nil {
//				break
//			}
//		}
//		s.End()
//	}()
//	for d := range s.Out() {
//		fmt.Println(d)
//	}
//	return s.Err()
package stream
