package ffprobe

import (
	"context"
	"errors"
	"math"
	"slices"
	"strings"
	"testing"
)

const samplePayload = `{
  "streams": [
    {"index": 0, "codec_name": "h264", "codec_type": "video", "width": 1920, "height": 1080,
     "r_frame_rate": "30/1", "avg_frame_rate": "30000/1001", "duration": "12.0"},
    {"index": 1, "codec_name": "aac", "codec_type": "audio", "sample_rate": "48000", "channels": 2}
  ],
  "format": {"filename": "clip.mp4", "nb_streams": 2, "duration": "12.012", "size": "4096", "bit_rate": "2730", "format_name": "mov,mp4"}
}`

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video", Width: 640, Height: 360},
			{CodecType: "audio"},
			{CodecType: "audio"},
		},
		Format: Format{
			Duration: "123.45",
			Size:     "1000",
			BitRate:  "32000",
		},
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if result.AudioStreamCount() != 2 {
		t.Fatalf("expected 2 audio streams, got %d", result.AudioStreamCount())
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
	if result.BitRate() != 32000 {
		t.Fatalf("unexpected bitrate: %d", result.BitRate())
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Format: Format{
			Duration: "bad",
			Size:     "-1",
			BitRate:  "nope",
		},
	}
	if result.DurationSeconds() != 0 {
		t.Fatalf("expected duration 0, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	if result.BitRate() != 0 {
		t.Fatalf("expected bitrate 0, got %d", result.BitRate())
	}
}

func TestDurationFallsBackToVideoStream(t *testing.T) {
	result := Result{Streams: []Stream{{CodecType: "video", Width: 2, Height: 2, Duration: "4.5"}}}
	if result.DurationSeconds() != 4.5 {
		t.Fatalf("expected stream duration fallback, got %v", result.DurationSeconds())
	}
}

func TestFrameRate(t *testing.T) {
	cases := []struct {
		stream Stream
		want   float64
	}{
		{Stream{AvgFrameRate: "30000/1001"}, 30000.0 / 1001.0},
		{Stream{AvgFrameRate: "0/0", RFrameRate: "25/1"}, 25},
		{Stream{RFrameRate: "24"}, 24},
		{Stream{RFrameRate: "x/y"}, 0},
		{Stream{}, 0},
	}
	for _, tc := range cases {
		if got := tc.stream.FrameRate(); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("FrameRate(%+v) = %v, want %v", tc.stream, got, tc.want)
		}
	}
}

func TestInspectWithRunner(t *testing.T) {
	var gotName string
	var gotArgs []string
	runner := func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotName = name
		gotArgs = args
		return []byte(samplePayload), nil
	}

	result, err := InspectWith(context.Background(), runner, "", " /media/clip.mp4 ")
	if err != nil {
		t.Fatalf("InspectWith: %v", err)
	}
	if gotName != "ffprobe" {
		t.Fatalf("expected default binary, got %q", gotName)
	}
	if gotArgs[len(gotArgs)-1] != "/media/clip.mp4" || !slices.Contains(gotArgs, "-show_streams") {
		t.Fatalf("unexpected args: %v", gotArgs)
	}
	video, ok := result.VideoStream()
	if !ok || video.Width != 1920 || video.CodecName != "h264" {
		t.Fatalf("unexpected video stream: %+v", video)
	}
	if result.DurationSeconds() != 12.012 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
}

func TestInspectWithPropagatesFailure(t *testing.T) {
	runner := func(context.Context, string, ...string) ([]byte, error) {
		return []byte("clip.mp4: Invalid data found"), errors.New("exit status 1")
	}
	_, err := InspectWith(context.Background(), runner, "ffprobe", "clip.mp4")
	if err == nil || !strings.Contains(err.Error(), "Invalid data found") {
		t.Fatalf("expected ffprobe output in error, got %v", err)
	}
}

func TestInspectRejectsEmptyPath(t *testing.T) {
	if _, err := InspectWith(context.Background(), nil, "ffprobe", "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte("not json")); err == nil {
		t.Fatal("expected parse error")
	}
}
