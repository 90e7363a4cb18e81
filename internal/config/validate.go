package config

import (
	"errors"
	"fmt"
	"strings"
)

var validResolutions = map[string]struct{}{
	"low":      {},
	"standard": {},
	"high":     {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		return errors.New("paths.staging_dir must be set")
	}
	return nil
}

// Filter names are checked by the frame package when a job starts so the
// config layer does not need to import it.
func (c *Config) validateRender() error {
	if _, ok := validResolutions[c.Render.Resolution]; !ok {
		return fmt.Errorf("render.resolution must be one of low, standard, high (got %q)", c.Render.Resolution)
	}
	if c.Render.PlaybackSpeed <= 0 {
		return errors.New("render.playback_speed must be positive")
	}
	if c.Render.FrameRate <= 0 || c.Render.FrameRate > 120 {
		return errors.New("render.frame_rate must be between 1 and 120")
	}
	if c.Render.SeekTimeoutSeconds <= 0 {
		return errors.New("render.seek_timeout_seconds must be positive")
	}
	return nil
}
