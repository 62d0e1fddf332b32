package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"recap/internal/progress"
)

func newUploadCommand(cmdCtx *commandContext) *cobra.Command {
	var mode string
	var follow bool

	cmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a meeting recording for summarization",
		Long: "Uploads a media file to the recap daemon. In sync mode the command waits " +
			"for the pipeline and prints the summary; in async mode it prints the task id " +
			"immediately. --follow implies async and streams progress until the task ends.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if follow {
				mode = "async"
			}
			if mode != "sync" && mode != "async" {
				return fmt.Errorf("invalid --mode %q (want sync or async)", mode)
			}

			base, err := cmdCtx.baseURL()
			if err != nil {
				return err
			}

			result, err := postUpload(cmd.Context(), base, args[0], mode)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if mode == "sync" {
				fmt.Fprintf(out, "Task %s completed.\n\n", result.TaskID)
				fmt.Fprintln(out, result.Summary)
				return nil
			}

			fmt.Fprintf(out, "Task %s accepted.\n", result.TaskID)
			if !follow {
				return nil
			}
			return followProgress(cmd.Context(), out, base, result.TaskID)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "sync", "Invocation mode: sync or async")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Stream progress events until the task finishes (implies async)")
	return cmd
}

type uploadResult struct {
	TaskID  string `json:"task_id"`
	Summary string `json:"summary"`
}

func postUpload(ctx context.Context, base, path, mode string) (uploadResult, error) {
	var result uploadResult

	f, err := os.Open(path)
	if err != nil {
		return result, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return result, fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return result, fmt.Errorf("read %s: %w", path, err)
	}
	if err := writer.Close(); err != nil {
		return result, fmt.Errorf("build upload: %w", err)
	}

	url := base + "/uploadfile"
	if mode == "async" {
		url += "?mode=async"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return result, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return result, fmt.Errorf("upload to %s: %w", base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return result, decodeErrorBody(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return result, fmt.Errorf("decode response: %w", err)
	}
	return result, nil
}

// followProgress renders the task's SSE stream until the terminal frame.
func followProgress(ctx context.Context, out io.Writer, base, taskID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/progress/stream/"+taskID, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("open progress stream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeErrorBody(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var evt progress.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &evt); err != nil {
			continue
		}

		label := evt.Step
		if evt.Service != "" && evt.Service != "orchestrator" {
			label = evt.Service + "/" + evt.Step
		}
		fmt.Fprintf(out, "%5.1f%%  %-24s %s", evt.Progress, label, evt.Status)
		if evt.Message != "" {
			fmt.Fprintf(out, "  %s", evt.Message)
		}
		fmt.Fprintln(out)

		if evt.Terminal() {
			if evt.Status == progress.StatusError {
				return fmt.Errorf("task %s failed: %s", taskID, evt.Message)
			}
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read progress stream: %w", err)
	}
	return fmt.Errorf("progress stream ended before the task finished")
}

func decodeErrorBody(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, payload.Error)
	}
	return fmt.Errorf("daemon returned %d", resp.StatusCode)
}
