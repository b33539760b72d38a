package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List files queued in a running serve instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			addr := strings.TrimSpace(bind)
			if addr == "" {
				addr = cfg.Paths.APIBind
			}

			url := fmt.Sprintf("http://%s/api/files", addr)
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
			if err != nil {
				return fmt.Errorf("build request: %w", err)
			}

			client := &http.Client{Timeout: 5 * time.Second}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("connect to %s (is 'vidstitch serve' running?): %w", addr, err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("list files: unexpected status %s", resp.Status)
			}

			var files []struct {
				Name            string   `json:"name"`
				SizeBytes       int64    `json:"sizeBytes"`
				DurationSeconds *float64 `json:"durationSeconds"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&files); err != nil {
				return fmt.Errorf("decode file list: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(files) == 0 {
				fmt.Fprintln(out, "No files queued")
				return nil
			}

			rows := make([][]string, 0, len(files))
			for i, file := range files {
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					file.Name,
					formatDuration(file.DurationSeconds),
					formatSize(file.SizeBytes),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"#", "FILE", "DURATION", "SIZE"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Address of the running serve instance")
	return cmd
}
