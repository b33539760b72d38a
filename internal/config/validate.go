package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.Paths.StagingDir == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	if err := c.validateExtraction(); err != nil {
		return err
	}
	return c.validateProgress()
}

func (c *Config) validateExtraction() error {
	if c.Extraction.ThumbnailQuality < 2 || c.Extraction.ThumbnailQuality > 31 {
		return errors.New("extraction.thumbnail_quality must be between 2 and 31")
	}
	if c.Extraction.Concurrency > 64 {
		return errors.New("extraction.concurrency must be 64 or less")
	}
	return nil
}

func (c *Config) validateProgress() error {
	p := c.Progress
	if p.StagingStart < 0 || p.StagingStart > 100 {
		return errors.New("progress.staging_start must be between 0 and 100")
	}
	if p.StagingEnd <= p.StagingStart {
		return fmt.Errorf("progress.staging_end must exceed staging_start (%.0f)", p.StagingStart)
	}
	if p.EncodeEnd <= p.StagingEnd || p.EncodeEnd > 100 {
		return fmt.Errorf("progress.encode_end must lie between staging_end (%.0f) and 100", p.StagingEnd)
	}
	return nil
}
