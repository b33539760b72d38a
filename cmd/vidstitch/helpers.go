package main

import (
	"fmt"
	"math"
	"path/filepath"
	"time"

	"vidstitch/internal/config"
)

func uploadDir(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.StagingDir, "uploads")
}

func formatSize(bytes int64) string {
	const (
		kiB = 1 << 10
		miB = 1 << 20
		giB = 1 << 30
	)
	switch {
	case bytes >= giB:
		return fmt.Sprintf("%.2f GiB", float64(bytes)/giB)
	case bytes >= miB:
		return fmt.Sprintf("%.2f MiB", float64(bytes)/miB)
	case bytes >= kiB:
		return fmt.Sprintf("%.1f KiB", float64(bytes)/kiB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

func formatDuration(seconds *float64) string {
	if seconds == nil {
		return "--:--"
	}
	total := int(math.Round(*seconds))
	d := time.Duration(total) * time.Second
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	secs := total % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%d:%02d", minutes, secs)
}
