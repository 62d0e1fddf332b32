package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"recap/internal/config"
)

func newConfigCommand(cmdCtx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigShowCommand(cmdCtx))
	configCmd.AddCommand(newConfigInitCommand())

	return configCmd
}

func newConfigShowCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config file: %s\n\n", cmdCtx.cfgPath)
			fmt.Fprintf(out, "data_dir:         %s\n", cfg.Paths.DataDir)
			fmt.Fprintf(out, "log_dir:          %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "watch_dir:        %s\n", valueOrUnset(cfg.Paths.WatchDir))
			fmt.Fprintf(out, "api_bind:         %s\n", cfg.Paths.APIBind)
			fmt.Fprintf(out, "preprocess_url:   %s\n", cfg.Stages.PreprocessURL)
			fmt.Fprintf(out, "diarize_url:      %s\n", cfg.Stages.DiarizeURL)
			fmt.Fprintf(out, "transcribe_url:   %s\n", cfg.Stages.TranscribeURL)
			fmt.Fprintf(out, "summarize_url:    %s\n", cfg.Stages.SummarizeURL)
			fmt.Fprintf(out, "request_timeout:  %ds\n", cfg.Stages.RequestTimeout)
			fmt.Fprintf(out, "max_upload_bytes: %d\n", cfg.Upload.MaxBytes)
			fmt.Fprintf(out, "allowed_exts:     %s\n", strings.Join(cfg.Upload.AllowedExtensions, " "))
			return nil
		},
	}
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a sample configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			}

			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			if err := config.WriteSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	return cmd
}

func valueOrUnset(v string) string {
	if strings.TrimSpace(v) == "" {
		return "(unset)"
	}
	return v
}
