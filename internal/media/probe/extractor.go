package probe

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"vidstitch/internal/logging"
	"vidstitch/internal/services"
)

// Metadata holds the derived fields for one entry. Either field may be nil
// when extraction failed for that aspect.
type Metadata struct {
	DurationSeconds *float64
	ThumbnailPath   *string
}

// Request names one extraction target. Key correlates the result back to the
// caller's entry.
type Request struct {
	Key        string
	SourcePath string
}

// Extractor derives duration and thumbnails for video files.
type Extractor struct {
	ffprobe     string
	ffmpeg      string
	thumbDir    string
	opts        ThumbnailOptions
	concurrency int
	logger      *slog.Logger
}

// NewExtractor builds an extractor writing thumbnails under thumbDir.
// Concurrency caps the number of parallel extractions.
func NewExtractor(ffprobe, ffmpeg, thumbDir string, opts ThumbnailOptions, concurrency int, logger *slog.Logger) *Extractor {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Extractor{
		ffprobe:     ffprobe,
		ffmpeg:      ffmpeg,
		thumbDir:    thumbDir,
		opts:        opts,
		concurrency: concurrency,
		logger:      logging.WithComponent(logger, "probe"),
	}
}

// Extract probes one file and captures its thumbnail. Fails with the
// unreadable-media marker when the host's media tools cannot decode the
// payload. A successful probe with a failed thumbnail grab still returns the
// duration; the thumbnail stays nil.
func (e *Extractor) Extract(ctx context.Context, req Request) (Metadata, error) {
	result, err := Inspect(ctx, e.ffprobe, req.SourcePath)
	if err != nil {
		return Metadata{}, services.Wrap(services.ErrUnreadableMedia, "probe", "inspect "+filepath.Base(req.SourcePath), err)
	}
	if !result.HasVideoStream() {
		return Metadata{}, services.Wrap(services.ErrUnreadableMedia, "probe",
			fmt.Sprintf("%s has no video stream", filepath.Base(req.SourcePath)), nil)
	}

	duration := result.DurationSeconds()
	meta := Metadata{DurationSeconds: &duration}

	if err := os.MkdirAll(e.thumbDir, 0o755); err != nil {
		e.logger.Warn("thumbnail directory unavailable", logging.Error(err))
		return meta, nil
	}
	thumbPath := filepath.Join(e.thumbDir, req.Key+".jpg")
	if err := GrabThumbnail(ctx, e.ffmpeg, req.SourcePath, thumbPath, duration, e.opts); err != nil {
		e.logger.Warn("thumbnail grab failed",
			logging.String("source", req.SourcePath),
			logging.Error(err))
		return meta, nil
	}
	meta.ThumbnailPath = &thumbPath
	return meta, nil
}

// ExtractBatch runs extraction for all requests concurrently, bounded by the
// configured cap, and returns only after every request has resolved. A
// failed request yields an empty Metadata in the result map; sibling
// extractions are unaffected.
func (e *Extractor) ExtractBatch(ctx context.Context, requests []Request) map[string]Metadata {
	results := make(map[string]Metadata, len(requests))
	if len(requests) == 0 {
		return results
	}

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, e.concurrency)
	)
	for _, req := range requests {
		wg.Add(1)
		go func(req Request) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			meta, err := e.Extract(ctx, req)
			if err != nil {
				e.logger.Warn("metadata extraction failed; entry keeps placeholder metadata",
					logging.String("source", req.SourcePath),
					logging.Error(err))
			}
			mu.Lock()
			results[req.Key] = meta
			mu.Unlock()
		}(req)
	}
	wg.Wait()
	return results
}

// RemoveThumbnail deletes a previously captured thumbnail, if any.
func (e *Extractor) RemoveThumbnail(key string) {
	if e.thumbDir == "" || key == "" {
		return
	}
	_ = os.Remove(filepath.Join(e.thumbDir, key+".jpg"))
}
