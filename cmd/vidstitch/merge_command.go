package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"vidstitch/internal/fileset"
)

func newMergeCommand(ctx *commandContext) *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "merge <file> <file> [file...]",
		Short: "Merge MP4 files in argument order",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if dir := strings.TrimSpace(outputDir); dir != "" {
				cfg.Paths.OutputDir = dir
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			observer := newConsoleObserver(cmd.ErrOrStderr())
			sess, _, err := ctx.newSession(observer)
			if err != nil {
				return err
			}
			defer sess.Close()

			results := sess.AddPaths(runCtx, args)
			rejected := 0
			for _, result := range results {
				if result.Err != nil {
					rejected++
					fmt.Fprintf(cmd.ErrOrStderr(), "skipping %s: %v\n", result.SourcePath, result.Err)
				}
			}
			if rejected == len(results) {
				return fmt.Errorf("no usable inputs among %d files", len(results))
			}

			printEntryTable(cmd.OutOrStdout(), sess.Entries())

			job, err := sess.Merge(runCtx)
			if err != nil {
				return err
			}
			observer.finish()
			fmt.Fprintf(cmd.OutOrStdout(), "Merged %d files into %s (%s)\n",
				job.InputCount, job.ResultPath, formatSize(job.ResultSize))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for the merged file")
	return cmd
}

func printEntryTable(out io.Writer, entries []fileset.Entry) {
	rows := make([][]string, 0, len(entries))
	for i, entry := range entries {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			entry.DisplayName,
			formatDuration(entry.DurationSeconds),
			formatSize(entry.SizeBytes),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"#", "FILE", "DURATION", "SIZE"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignRight},
	))
}

// consoleObserver renders merge progress to the terminal. On a TTY it keeps
// a single updating line; otherwise it prints a line per phase change.
type consoleObserver struct {
	mu        sync.Mutex
	out       *os.File
	isTTY     bool
	lastPhase string
	active    bool
}

func newConsoleObserver(w any) *consoleObserver {
	file, ok := w.(*os.File)
	if !ok {
		file = os.Stderr
	}
	return &consoleObserver{
		out:   file,
		isTTY: isatty.IsTerminal(file.Fd()),
	}
}

func (o *consoleObserver) ProgressUpdated(jobID int64, phase string, percent float64, message string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.isTTY {
		fmt.Fprintf(o.out, "\r\033[K%s %5.1f%%  %s", strings.ToUpper(phase), percent, message)
		o.active = true
		return
	}
	if phase != o.lastPhase {
		fmt.Fprintf(o.out, "%s: %s\n", phase, message)
		o.lastPhase = phase
	}
}

func (o *consoleObserver) EntryRejected(name string, err error) {}

func (o *consoleObserver) MergeCompleted(jobID int64, outputPath string, sizeBytes int64) {}

func (o *consoleObserver) MergeFailed(jobID int64, err error) { o.finish() }

// finish terminates the inline progress line, if one is active.
func (o *consoleObserver) finish() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.isTTY && o.active {
		fmt.Fprintln(o.out)
		o.active = false
	}
}
