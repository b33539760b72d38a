package probe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// ThumbnailOptions controls the single-frame grab.
type ThumbnailOptions struct {
	Width  int
	Height int
	// Quality is an mjpeg qscale value (2-31, lower is better).
	Quality int
}

func (o ThumbnailOptions) withDefaults() ThumbnailOptions {
	if o.Width <= 0 {
		o.Width = 120
	}
	if o.Height <= 0 {
		o.Height = 80
	}
	if o.Quality <= 0 {
		o.Quality = 7
	}
	return o
}

// SeekPoint returns the representative-frame timestamp for a clip of the
// given duration: one second in, or the midpoint for clips shorter than two
// seconds. Avoids black first frames.
func SeekPoint(durationSeconds float64) float64 {
	if durationSeconds <= 0 {
		return 0
	}
	if half := durationSeconds / 2; half < 1 {
		return half
	}
	return 1
}

// GrabThumbnail captures one frame from sourcePath at the representative
// seek point and writes it as a JPEG to outPath. The partial output file is
// removed on every failure path.
func GrabThumbnail(ctx context.Context, binary, sourcePath, outPath string, durationSeconds float64, opts ThumbnailOptions) error {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	if strings.TrimSpace(sourcePath) == "" {
		return errors.New("thumbnail grab: empty source path")
	}
	if strings.TrimSpace(outPath) == "" {
		return errors.New("thumbnail grab: empty output path")
	}
	opts = opts.withDefaults()

	seek := strconv.FormatFloat(SeekPoint(durationSeconds), 'f', 3, 64)
	scale := fmt.Sprintf("scale=%d:%d", opts.Width, opts.Height)
	cmd := exec.CommandContext(ctx, binary,
		"-hide_banner", "-loglevel", "error",
		"-ss", seek,
		"-i", sourcePath,
		"-frames:v", "1",
		"-vf", scale,
		"-q:v", strconv.Itoa(opts.Quality),
		"-y",
		outPath,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		_ = os.Remove(outPath)
		return fmt.Errorf("thumbnail grab: %w: %s", err, strings.TrimSpace(string(output)))
	}
	if info, statErr := os.Stat(outPath); statErr != nil || info.Size() == 0 {
		_ = os.Remove(outPath)
		return errors.New("thumbnail grab: no frame captured")
	}
	return nil
}
