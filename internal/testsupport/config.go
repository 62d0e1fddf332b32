// Package testsupport provides shared helpers for package tests: seeded
// configurations, workspace files, and canned stage processors.
package testsupport

import (
	"path/filepath"
	"testing"

	"recap/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Stages.RequestTimeout = 5
	cfg.Upload.MaxBytes = 1 << 20
	cfg.Upload.ChunkSizeBytes = 4096

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithWatchDir sets the automatic ingestion directory on the test config.
func WithWatchDir(dir string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Paths.WatchDir = dir
	}
}

// WithStageURLs points all four stage endpoints at the given URLs.
func WithStageURLs(preprocess, diarize, transcribe, summarize string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Stages.PreprocessURL = preprocess
		cfg.Stages.DiarizeURL = diarize
		cfg.Stages.TranscribeURL = transcribe
		cfg.Stages.SummarizeURL = summarize
	}
}

// WithMaxUploadBytes overrides the upload byte ceiling.
func WithMaxUploadBytes(n int64) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Upload.MaxBytes = n
	}
}
