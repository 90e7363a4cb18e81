package editing

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"fluxrender/internal/config"
	"fluxrender/internal/services"
)

// Options are the per-render choices.
type Options struct {
	Filter        string  `validate:"required"`
	Resolution    string  `validate:"required,oneof=low standard high 720p 1080p 4k"`
	PlaybackSpeed float64 `validate:"gt=0,lte=4"`
	FrameRate     float64 `validate:"gte=0,lte=120"`
	Audio         bool
}

// OptionsFromConfig seeds Options with the configured render defaults.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		return Options{Filter: "identity", Resolution: "standard", PlaybackSpeed: 1}
	}
	return Options{
		Filter:        cfg.Render.Filter,
		Resolution:    cfg.Render.Resolution,
		PlaybackSpeed: cfg.Render.PlaybackSpeed,
		FrameRate:     float64(cfg.Render.FrameRate),
		Audio:         cfg.Render.Audio,
	}
}

func (o *Options) normalize() {
	o.Filter = strings.ToLower(strings.TrimSpace(o.Filter))
	o.Resolution = strings.ToLower(strings.TrimSpace(o.Resolution))
}

func validateOptions(v *validator.Validate, opts Options) error {
	err := v.Struct(&opts)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return services.Wrap(services.ErrValidation, "editing", "validate options", "", err)
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			problems = append(problems, fmt.Sprintf("%s: %v fails %s=%s", fe.Field(), fe.Value(), fe.Tag(), fe.Param()))
			continue
		}
		problems = append(problems, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
	}
	sort.Strings(problems)
	return services.Wrap(services.ErrValidation, "editing", "validate options", strings.Join(problems, "; "), nil)
}
