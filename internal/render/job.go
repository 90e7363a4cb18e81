package render

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"fluxrender/internal/frame"
	"fluxrender/internal/services"
	"fluxrender/internal/timeline"
)

// Resolution is the output size class.
type Resolution string

const (
	Low      Resolution = "low"
	Standard Resolution = "standard"
	High     Resolution = "high"
)

// Resolutions lists the output sizes in ascending order.
func Resolutions() []Resolution {
	return []Resolution{Low, Standard, High}
}

// ParseResolution accepts the enum names and the common 720p/1080p/4k labels.
func ParseResolution(value string) (Resolution, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "low", "720p":
		return Low, nil
	case "standard", "1080p", "":
		return Standard, nil
	case "high", "4k", "2160p":
		return High, nil
	default:
		return "", services.Wrap(services.ErrValidation, "render", "parse resolution", fmt.Sprintf("%q is not low, standard or high", value), nil)
	}
}

// Dimensions returns the output frame size in pixels.
func (r Resolution) Dimensions() (int, int) {
	switch r {
	case Low:
		return 1280, 720
	case High:
		return 3840, 2160
	default:
		return 1920, 1080
	}
}

// Bitrate returns the target video bitrate in bits per second.
func (r Resolution) Bitrate() int {
	if r == High {
		return 12_000_000
	}
	return 8_000_000
}

// Label is the display name used in listings, e.g. "1080p".
func (r Resolution) Label() string {
	switch r {
	case Low:
		return "720p"
	case High:
		return "4K"
	default:
		return "1080p"
	}
}

// DefaultFrameRate is the capture cadence when a job leaves it unset.
const DefaultFrameRate = 30

// Job is one render request. Segments are rendered in slice order and are
// never modified by the sequencer.
type Job struct {
	ID            string
	Segments      []timeline.Segment
	Filter        frame.FilterID
	Resolution    Resolution
	PlaybackSpeed float64
	FrameRate     float64
	// AudioSource, when set, asks the sink to attach that file's audio
	// trimmed to the segments.
	AudioSource string
}

// Settings are the user-facing render options.
type Settings struct {
	Filter        frame.FilterID
	Resolution    Resolution
	PlaybackSpeed float64
	FrameRate     float64
	AudioSource   string
}

// NewJob plans snap against the source duration, substituting a single
// full-length segment when snap is empty.
func NewJob(snap timeline.Snapshot, duration float64, settings Settings) Job {
	return Job{
		ID:            uuid.NewString(),
		Segments:      timeline.PlanSegments(snap, duration),
		Filter:        settings.Filter,
		Resolution:    settings.Resolution,
		PlaybackSpeed: settings.PlaybackSpeed,
		FrameRate:     settings.FrameRate,
		AudioSource:   settings.AudioSource,
	}
}

// TotalDuration is the planned content length in seconds.
func (j Job) TotalDuration() float64 {
	return timeline.TotalDuration(j.Segments)
}

func (j *Job) normalize() error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.Resolution == "" {
		j.Resolution = Standard
	}
	if j.FrameRate == 0 {
		j.FrameRate = DefaultFrameRate
	}
	if j.PlaybackSpeed == 0 {
		j.PlaybackSpeed = 1
	}
	switch {
	case len(j.Segments) == 0:
		return services.Wrap(services.ErrValidation, "render", "validate job", "no segments planned", nil)
	case j.PlaybackSpeed < 0 || math.IsNaN(j.PlaybackSpeed) || math.IsInf(j.PlaybackSpeed, 0):
		return services.Wrap(services.ErrValidation, "render", "validate job", fmt.Sprintf("playback speed %v must be positive", j.PlaybackSpeed), nil)
	case j.FrameRate < 0 || j.FrameRate > 120:
		return services.Wrap(services.ErrValidation, "render", "validate job", fmt.Sprintf("frame rate %v out of range", j.FrameRate), nil)
	}
	if _, err := ParseResolution(string(j.Resolution)); err != nil {
		return err
	}
	return nil
}
