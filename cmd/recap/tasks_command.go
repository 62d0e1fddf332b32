package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"
)

func newTasksCommand(cmdCtx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List running and completed tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := cmdCtx.baseURL()
			if err != nil {
				return err
			}

			url := base + "/api/tasks"
			if limit > 0 {
				url += "?limit=" + strconv.Itoa(limit)
			}
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return fmt.Errorf("query %s: %w", base, err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return decodeErrorBody(resp)
			}

			var listing struct {
				Running   []string `json:"running"`
				Completed []string `json:"completed"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}

			rows := make([][]string, 0, len(listing.Running)+len(listing.Completed))
			for _, id := range listing.Running {
				rows = append(rows, []string{id, "running"})
			}
			for _, id := range listing.Completed {
				rows = append(rows, []string{id, "completed"})
			}

			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No tasks.")
				return nil
			}
			fmt.Fprintln(out, renderTable([]string{"Task", "State"}, rows))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of completed tasks to list")
	return cmd
}
