package config

const (
	defaultStagingDir       = "~/.local/share/vidstitch/staging"
	defaultOutputDir        = "~/videos/merged"
	defaultLogDir           = "~/.local/share/vidstitch/logs"
	defaultAPIBind          = "127.0.0.1:7580"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultThumbnailWidth   = 120
	defaultThumbnailHeight  = 80
	defaultThumbnailQuality = 7
	defaultConcurrency      = 4
	defaultStagingStart     = 10
	defaultStagingEnd       = 30
	defaultEncodeEnd        = 90
	defaultNtfyTimeout      = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			OutputDir:  defaultOutputDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Extraction: Extraction{
			ThumbnailWidth:   defaultThumbnailWidth,
			ThumbnailHeight:  defaultThumbnailHeight,
			ThumbnailQuality: defaultThumbnailQuality,
			Concurrency:      defaultConcurrency,
		},
		Progress: Progress{
			StagingStart: defaultStagingStart,
			StagingEnd:   defaultStagingEnd,
			EncodeEnd:    defaultEncodeEnd,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
