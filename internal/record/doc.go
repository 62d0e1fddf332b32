// Package record persists completed task identifiers. Recording is
// observability, not a pipeline correctness requirement: callers treat
// failures as best-effort.
package record
