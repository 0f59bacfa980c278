// Package executor provides the single logical thread a stage runs on.
//
// Every state change of a stage happens inside a task submitted to an
// Executor. Tasks never run concurrently with each other, so stage state
// needs no locks; goroutines that finish work elsewhere hand their result
// back by submitting a task.
//
// Tasks are submitted into one of two phases. Settle tasks record the
// outcome of work (a task resolving, output being forwarded, downstream
// becoming ready). Advance tasks move a stage through its lifecycle. An
// executor always runs every pending Settle task before the next Advance
// task, so a lifecycle decision observes all settlements that were already
// queued when it runs.
//
// Two implementations are provided:
//
//   - Serial runs tasks inline on whichever goroutine submits while the
//     executor is idle; submissions made while it is busy are queued and run
//     by the goroutine already draining. This is the production executor.
//   - Manual only queues. Tests call RunPending or Step to decide exactly
//     when queued work runs.
package executor
