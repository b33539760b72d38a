package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"vidstitch/internal/config"
	"vidstitch/internal/fileutil"
	"vidstitch/internal/logging"
	"vidstitch/internal/merge"
	"vidstitch/internal/services"
)

// ProgressFunc receives engine-reported encode fractions in [0,1].
type ProgressFunc func(fraction float64)

// StagedFunc is called after each input lands in the staging directory.
type StagedFunc func(done, total int)

// Engine wraps the ffmpeg/ffprobe binaries. Locating them happens once and
// is memoized for the lifetime of the session.
type Engine struct {
	ffmpegName  string
	ffprobeName string
	logger      *slog.Logger

	loadOnce    sync.Once
	loadErr     error
	ffmpegPath  string
	ffprobePath string
}

// New builds an engine from config. Binaries are not located until Load.
func New(cfg *config.Config, logger *slog.Logger) *Engine {
	return &Engine{
		ffmpegName:  cfg.FFmpegBinary(),
		ffprobeName: cfg.FFprobeBinary(),
		logger:      logging.WithComponent(logger, "engine"),
	}
}

// Load resolves the tool binaries. Idempotent; a second merge request
// reuses the already-located engine.
func (e *Engine) Load() error {
	e.loadOnce.Do(func() {
		ffmpeg, err := exec.LookPath(e.ffmpegName)
		if err != nil {
			e.loadErr = services.Wrap(services.ErrMergeExecution, "engine", "locate "+e.ffmpegName, err)
			return
		}
		ffprobe, err := exec.LookPath(e.ffprobeName)
		if err != nil {
			e.loadErr = services.Wrap(services.ErrMergeExecution, "engine", "locate "+e.ffprobeName, err)
			return
		}
		e.ffmpegPath = ffmpeg
		e.ffprobePath = ffprobe
		e.logger.Debug("engine loaded",
			logging.String("ffmpeg", ffmpeg),
			logging.String("ffprobe", ffprobe))
	})
	return e.loadErr
}

// FFprobePath returns the located ffprobe binary. Load must have succeeded.
func (e *Engine) FFprobePath() string {
	if e.ffprobePath != "" {
		return e.ffprobePath
	}
	return e.ffprobeName
}

// FFmpegPath returns the located ffmpeg binary. Load must have succeeded.
func (e *Engine) FFmpegPath() string {
	if e.ffmpegPath != "" {
		return e.ffmpegPath
	}
	return e.ffmpegName
}

// Stage copies each plan input into jobDir under its staged name, strictly
// in plan order so staged names reflect final merge order. Any failure
// discards the whole job directory so a retry never collides with stale
// staged files.
func (e *Engine) Stage(ctx context.Context, jobDir string, inputs []merge.Input, onStaged StagedFunc) error {
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return services.Wrap(services.ErrMergeExecution, "engine", "create staging directory", err)
	}

	var needed int64
	for _, input := range inputs {
		info, err := os.Stat(input.SourcePath)
		if err != nil {
			e.discard(jobDir)
			return services.Wrap(services.ErrMergeExecution, "engine", "stat "+input.SourcePath, err)
		}
		needed += info.Size()
	}
	if err := ensureFreeSpace(jobDir, needed); err != nil {
		e.discard(jobDir)
		return services.Wrap(services.ErrMergeExecution, "engine", "disk space preflight", err)
	}

	total := len(inputs)
	for i, input := range inputs {
		if err := ctx.Err(); err != nil {
			e.discard(jobDir)
			return services.Wrap(services.ErrMergeExecution, "engine", "staging canceled", err)
		}
		dst := filepath.Join(jobDir, input.StagedName)
		if err := fileutil.CopyVerified(input.SourcePath, dst); err != nil {
			e.discard(jobDir)
			return services.Wrap(services.ErrMergeExecution, "engine", "stage "+input.StagedName, err)
		}
		if onStaged != nil {
			onStaged(i+1, total)
		}
	}
	return nil
}

// WriteManifest writes the concat list into jobDir and returns its path.
func (e *Engine) WriteManifest(jobDir, manifest string) (string, error) {
	path := filepath.Join(jobDir, merge.ManifestName)
	if err := os.WriteFile(path, []byte(manifest), 0o644); err != nil {
		e.discard(jobDir)
		return "", services.Wrap(services.ErrMergeExecution, "engine", "write manifest", err)
	}
	return path, nil
}

// Execute runs ffmpeg with the plan's argument vector. totalDuration (the
// sum of input durations, seconds) converts ffmpeg's out_time reports into
// fractions; when unknown, no intermediate fractions are reported.
func (e *Engine) Execute(ctx context.Context, jobDir string, args []string, totalDuration float64, onProgress ProgressFunc) error {
	if err := e.Load(); err != nil {
		return err
	}

	full := append([]string{"-progress", "pipe:1", "-nostats"}, args...)
	cmd := exec.CommandContext(ctx, e.ffmpegPath, full...)
	cmd.Dir = jobDir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return services.Wrap(services.ErrMergeExecution, "engine", "attach progress pipe", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		e.discard(jobDir)
		return services.Wrap(services.ErrMergeExecution, "engine", "start ffmpeg", err)
	}

	readProgress(stdout, totalDuration, onProgress)

	if err := cmd.Wait(); err != nil {
		e.discard(jobDir)
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			err = fmt.Errorf("%w: %s", err, detail)
		}
		return services.Wrap(services.ErrMergeExecution, "engine", "execute concat", err)
	}
	return nil
}

// Readback verifies the output artifact exists and is non-empty, returning
// its size. Completion may be reported only after this succeeds.
func (e *Engine) Readback(outputPath string) (int64, error) {
	info, err := os.Stat(outputPath)
	if err != nil {
		return 0, services.Wrap(services.ErrMergeExecution, "engine", "read back output", err)
	}
	if info.Size() == 0 {
		return 0, services.Wrap(services.ErrMergeExecution, "engine", "read back output",
			errors.New("output file is empty"))
	}
	return info.Size(), nil
}

// Discard removes a job's staging directory.
func (e *Engine) Discard(jobDir string) {
	e.discard(jobDir)
}

func (e *Engine) discard(jobDir string) {
	if strings.TrimSpace(jobDir) == "" {
		return
	}
	if err := os.RemoveAll(jobDir); err != nil {
		e.logger.Warn("failed to discard staging directory",
			logging.String("path", jobDir),
			logging.Error(err))
	}
}
