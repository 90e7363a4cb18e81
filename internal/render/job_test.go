package render

import (
	"errors"
	"testing"

	"fluxrender/internal/services"
	"fluxrender/internal/timeline"
)

func TestParseResolution(t *testing.T) {
	tests := []struct {
		in      string
		want    Resolution
		wantErr bool
	}{
		{in: "low", want: Low},
		{in: "720p", want: Low},
		{in: " Standard ", want: Standard},
		{in: "", want: Standard},
		{in: "4K", want: High},
		{in: "8k", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseResolution(tt.in)
		if tt.wantErr {
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("ParseResolution(%q) expected validation error, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("ParseResolution(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestResolutionDimensions(t *testing.T) {
	tests := []struct {
		res     Resolution
		w, h    int
		bitrate int
	}{
		{Low, 1280, 720, 8_000_000},
		{Standard, 1920, 1080, 8_000_000},
		{High, 3840, 2160, 12_000_000},
	}
	for _, tt := range tests {
		w, h := tt.res.Dimensions()
		if w != tt.w || h != tt.h || tt.res.Bitrate() != tt.bitrate {
			t.Fatalf("%s: got %dx%d @ %d", tt.res, w, h, tt.res.Bitrate())
		}
	}
}

func TestNewJobClampsToDuration(t *testing.T) {
	reg := timeline.NewRegistry(30)
	if _, err := reg.Mark(2, 4); err != nil {
		t.Fatalf("Mark: %v", err)
	}
	if _, err := reg.Mark(10, 12); err != nil {
		t.Fatalf("Mark: %v", err)
	}
	job := NewJob(reg.Snapshot(), 11, Settings{})
	if job.ID == "" {
		t.Fatal("expected a job id")
	}
	if len(job.Segments) != 2 || job.Segments[1].End != 11 {
		t.Fatalf("expected second segment clamped to 11, got %v", job.Segments)
	}
	if got := job.TotalDuration(); got != 3 {
		t.Fatalf("expected total 3, got %v", got)
	}
}

func TestJobNormalizeDefaults(t *testing.T) {
	job := Job{Segments: []timeline.Segment{{Start: 0, End: 1}}}
	if err := job.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if job.Resolution != Standard || job.FrameRate != DefaultFrameRate || job.PlaybackSpeed != 1 || job.ID == "" {
		t.Fatalf("unexpected defaults %+v", job)
	}

	bad := Job{Segments: []timeline.Segment{{Start: 0, End: 1}}, PlaybackSpeed: -1}
	if err := bad.normalize(); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStateString(t *testing.T) {
	if Capturing.String() != "capturing" || State(42).String() != "state(42)" {
		t.Fatalf("unexpected state names %q %q", Capturing, State(42))
	}
	if !Cancelled.Terminal() || Draining.Terminal() {
		t.Fatal("unexpected terminal classification")
	}
}

func TestFailedErrorMessage(t *testing.T) {
	err := &FailedError{Stage: Capturing, Segment: 2, Err: errors.New("boom")}
	if got := err.Error(); got != "render failed while capturing segment 2: boom" {
		t.Fatalf("unexpected message %q", got)
	}
	if !errors.Is(err, ErrRenderFailed) {
		t.Fatal("expected FailedError to match ErrRenderFailed")
	}
}
