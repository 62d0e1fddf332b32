// Package pipeline sequences the four processing stages for one task,
// publishes progress for every transition, and owns task-level
// success/failure semantics. Stage calls are strictly sequential: each stage
// consumes the previous stage's output.
package pipeline
