package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	WatchDir string `toml:"watch_dir"`
	APIBind  string `toml:"api_bind"`
}

// Stages contains endpoint and timeout configuration for the four
// downstream stage processors.
type Stages struct {
	PreprocessURL string `toml:"preprocess_url"`
	DiarizeURL    string `toml:"diarize_url"`
	TranscribeURL string `toml:"transcribe_url"`
	SummarizeURL  string `toml:"summarize_url"`

	// RequestTimeout applies to every stage call unless overridden below.
	RequestTimeout    int `toml:"request_timeout"`
	PreprocessTimeout int `toml:"preprocess_timeout"`
	DiarizeTimeout    int `toml:"diarize_timeout"`
	TranscribeTimeout int `toml:"transcribe_timeout"`
	SummarizeTimeout  int `toml:"summarize_timeout"`

	// ProgressBaseURL is the externally reachable base for the progress
	// ingress endpoint, handed to stages so they can report sub-progress.
	ProgressBaseURL string `toml:"progress_base_url"`
}

// Upload contains limits applied while ingesting client files.
type Upload struct {
	MaxBytes          int64    `toml:"max_bytes"`
	ChunkSizeBytes    int      `toml:"chunk_size_bytes"`
	AllowedExtensions []string `toml:"allowed_extensions"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for recap.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories, optional watch directory, API bind address
//   - Stages: downstream processor endpoints and timeouts
//   - Upload: ingest byte ceiling, chunk size, accepted extensions
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	Stages  Stages  `toml:"stages"`
	Upload  Upload  `toml:"upload"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/recap/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config already exists at %s", expanded)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}

// EnsureDirectories creates the data and log directories if needed.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir}
	if strings.TrimSpace(c.Paths.WatchDir) != "" {
		dirs = append(dirs, c.Paths.WatchDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// StageTimeout returns the effective timeout for the named stage, applying
// the shared request timeout when no per-stage override is set.
func (c *Config) StageTimeout(stage string) time.Duration {
	seconds := c.Stages.RequestTimeout
	switch stage {
	case "preprocess":
		if c.Stages.PreprocessTimeout > 0 {
			seconds = c.Stages.PreprocessTimeout
		}
	case "diarize":
		if c.Stages.DiarizeTimeout > 0 {
			seconds = c.Stages.DiarizeTimeout
		}
	case "transcribe":
		if c.Stages.TranscribeTimeout > 0 {
			seconds = c.Stages.TranscribeTimeout
		}
	case "summarize":
		if c.Stages.SummarizeTimeout > 0 {
			seconds = c.Stages.SummarizeTimeout
		}
	}
	if seconds <= 0 {
		seconds = defaultRequestTimeout
	}
	return time.Duration(seconds) * time.Second
}

// StageURL returns the configured endpoint for the named stage.
func (c *Config) StageURL(stage string) string {
	switch stage {
	case "preprocess":
		return c.Stages.PreprocessURL
	case "diarize":
		return c.Stages.DiarizeURL
	case "transcribe":
		return c.Stages.TranscribeURL
	case "summarize":
		return c.Stages.SummarizeURL
	}
	return ""
}

// ProgressURL returns the progress ingress URL stages should POST to for the
// given task.
func (c *Config) ProgressURL(taskID string) string {
	base := strings.TrimRight(c.Stages.ProgressBaseURL, "/")
	return base + "/" + taskID
}

// AllowedExtension reports whether ext (including the leading dot) is an
// accepted upload extension. Matching is case-insensitive.
func (c *Config) AllowedExtension(ext string) bool {
	ext = strings.ToLower(strings.TrimSpace(ext))
	for _, allowed := range c.Upload.AllowedExtensions {
		if strings.ToLower(strings.TrimSpace(allowed)) == ext {
			return true
		}
	}
	return false
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	return filepath.Abs(trimmed)
}
