package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateStages(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateStages() error {
	endpoints := map[string]string{
		"stages.preprocess_url":    c.Stages.PreprocessURL,
		"stages.diarize_url":       c.Stages.DiarizeURL,
		"stages.transcribe_url":    c.Stages.TranscribeURL,
		"stages.summarize_url":     c.Stages.SummarizeURL,
		"stages.progress_base_url": c.Stages.ProgressBaseURL,
	}
	for field, endpoint := range endpoints {
		trimmed := strings.TrimSpace(endpoint)
		if trimmed == "" {
			return fmt.Errorf("%s must be set", field)
		}
		parsed, err := url.Parse(trimmed)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", field, endpoint)
		}
	}
	if c.Stages.RequestTimeout < 0 {
		return errors.New("stages.request_timeout must not be negative")
	}
	return nil
}

func (c *Config) validateUpload() error {
	if c.Upload.MaxBytes <= 0 {
		return errors.New("upload.max_bytes must be positive")
	}
	if c.Upload.ChunkSizeBytes <= 0 {
		return errors.New("upload.chunk_size_bytes must be positive")
	}
	if int64(c.Upload.ChunkSizeBytes) > c.Upload.MaxBytes {
		return errors.New("upload.chunk_size_bytes must not exceed upload.max_bytes")
	}
	for _, ext := range c.Upload.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("upload.allowed_extensions entries must start with a dot, got %q", ext)
		}
	}
	return nil
}
