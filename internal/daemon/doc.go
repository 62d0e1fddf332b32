// Package daemon coordinates the long-running recap process: configuration,
// the completion store, the progress bus, the pipeline runner and supervisor,
// the HTTP gateway, and the optional watch-directory ingestion, under a
// flock-based single-instance lock.
//
// Keep orchestration logic here: stage sequencing lives in pipeline and the
// HTTP surface in gateway while the daemon focuses on startup, shutdown, and
// high level coordination.
package daemon
