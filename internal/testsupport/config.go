package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"fluxrender/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config whose directories live in a fresh temp dir.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(base, "out")
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithBinaries overrides the ffmpeg and ffprobe commands.
func WithBinaries(ffmpeg, ffprobe string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.FFmpeg.FFmpegBinary = ffmpeg
		cfg.FFmpeg.FFprobeBinary = ffprobe
	}
}

// WithRender mutates the [render] section.
func WithRender(fn func(*config.Render)) ConfigOption {
	return func(cfg *config.Config) {
		fn(&cfg.Render)
	}
}

// WriteConfig encodes cfg next to its staging directory and returns the path.
func WriteConfig(t testing.TB, cfg *config.Config) string {
	t.Helper()
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	path := filepath.Join(filepath.Dir(cfg.Paths.StagingDir), "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
