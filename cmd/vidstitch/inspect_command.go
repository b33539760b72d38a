package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vidstitch/internal/media/probe"
)

func newInspectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file> [file...]",
		Short: "Probe media files and print their properties",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(args))
			failures := 0
			for _, path := range args {
				info, statErr := os.Stat(path)
				result, probeErr := probe.Inspect(cmd.Context(), cfg.FFprobeBinary(), path)
				if statErr != nil || probeErr != nil {
					failures++
					detail := statErr
					if detail == nil {
						detail = probeErr
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "inspect %s: %v\n", path, detail)
					rows = append(rows, []string{path, "--:--", "", "unreadable"})
					continue
				}
				duration := result.DurationSeconds()
				video := "no"
				if result.HasVideoStream() {
					video = "yes"
				}
				rows = append(rows, []string{
					path,
					formatDuration(&duration),
					formatSize(info.Size()),
					video,
				})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"FILE", "DURATION", "SIZE", "VIDEO"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
			))
			if failures == len(args) {
				return fmt.Errorf("could not inspect any of %d files", len(args))
			}
			return nil
		},
	}
}
