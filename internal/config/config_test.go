package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, path, exists, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Fatalf("file at %s should not exist", path)
	}
	if cfg.Paths.APIBind != defaultAPIBind {
		t.Fatalf("api bind = %s", cfg.Paths.APIBind)
	}
	if cfg.Extraction.ThumbnailWidth != defaultThumbnailWidth || cfg.Extraction.Concurrency != defaultConcurrency {
		t.Fatalf("extraction defaults not applied: %+v", cfg.Extraction)
	}
	if cfg.Progress.StagingStart != 10 || cfg.Progress.StagingEnd != 30 || cfg.Progress.EncodeEnd != 90 {
		t.Fatalf("progress defaults not applied: %+v", cfg.Progress)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
staging_dir = "` + filepath.Join(dir, "staging") + `"
output_dir = "` + filepath.Join(dir, "output") + `"

[tools]
ffmpeg = "  /opt/ffmpeg/bin/ffmpeg  "

[extraction]
thumbnail_quality = 5

[logging]
format = "JSON"
level = "Debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !exists || resolved != path {
		t.Fatalf("resolved = %s, exists = %v", resolved, exists)
	}
	if cfg.Tools.FFmpeg != "/opt/ffmpeg/bin/ffmpeg" {
		t.Fatalf("ffmpeg = %q", cfg.Tools.FFmpeg)
	}
	if cfg.Extraction.ThumbnailQuality != 5 {
		t.Fatalf("quality = %d", cfg.Extraction.ThumbnailQuality)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "quality too low",
			mutate:  func(c *Config) { c.Extraction.ThumbnailQuality = 1 },
			wantErr: "thumbnail_quality",
		},
		{
			name:    "quality too high",
			mutate:  func(c *Config) { c.Extraction.ThumbnailQuality = 32 },
			wantErr: "thumbnail_quality",
		},
		{
			name:    "concurrency cap",
			mutate:  func(c *Config) { c.Extraction.Concurrency = 128 },
			wantErr: "concurrency",
		},
		{
			name:    "staging band inverted",
			mutate:  func(c *Config) { c.Progress.StagingEnd = 5 },
			wantErr: "staging_end",
		},
		{
			name:    "encode end beyond 100",
			mutate:  func(c *Config) { c.Progress.EncodeEnd = 120 },
			wantErr: "encode_end",
		},
		{
			name:    "missing staging dir",
			mutate:  func(c *Config) { c.Paths.StagingDir = "" },
			wantErr: "staging_dir",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.Paths.StagingDir = "/tmp/staging"
			cfg.Paths.OutputDir = "/tmp/output"
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err = %v, want mention of %s", err, tc.wantErr)
			}
		})
	}
}

func TestSampleConfigParses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := WriteSample(path); err != nil {
		t.Fatal(err)
	}

	if _, _, _, err := Load(path); err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}

	if err := WriteSample(path); err == nil {
		t.Fatal("expected refusal to overwrite existing config")
	}
}

func TestBinaryFallbacks(t *testing.T) {
	cfg := Default()
	if cfg.FFmpegBinary() != "ffmpeg" || cfg.FFprobeBinary() != "ffprobe" {
		t.Fatalf("defaults = %s / %s", cfg.FFmpegBinary(), cfg.FFprobeBinary())
	}
	cfg.Tools.FFmpeg = "/custom/ffmpeg"
	if cfg.FFmpegBinary() != "/custom/ffmpeg" {
		t.Fatalf("override ignored: %s", cfg.FFmpegBinary())
	}
}
