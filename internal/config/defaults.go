package config

const (
	defaultOutputDir          = "~/Videos/fluxrender"
	defaultStagingDir         = "~/.local/share/fluxrender/staging"
	defaultLogDir             = "~/.local/share/fluxrender/logs"
	defaultResolution         = "standard"
	defaultFilter             = "identity"
	defaultPlaybackSpeed      = 1.0
	defaultFrameRate          = 30
	defaultSeekTimeoutSeconds = 10
	defaultFFmpegBinary       = "ffmpeg"
	defaultFFprobeBinary      = "ffprobe"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir:  defaultOutputDir,
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
		},
		Render: Render{
			Resolution:         defaultResolution,
			Filter:             defaultFilter,
			PlaybackSpeed:      defaultPlaybackSpeed,
			FrameRate:          defaultFrameRate,
			SeekTimeoutSeconds: defaultSeekTimeoutSeconds,
			Audio:              true,
		},
		FFmpeg: FFmpeg{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
