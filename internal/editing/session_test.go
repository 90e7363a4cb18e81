package editing

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fluxrender/internal/config"
	"fluxrender/internal/frame"
	"fluxrender/internal/render"
	"fluxrender/internal/services"
	"fluxrender/internal/sink"
	"fluxrender/internal/source"
	"fluxrender/internal/timeline"
)

type fakeSource struct {
	info    source.Info
	loadErr error
	t       float64
	playing bool
	seeks   []float64
	closed  bool
	img     *image.RGBA
}

func newFakeSource(duration float64) *fakeSource {
	img := image.NewRGBA(image.Rect(0, 0, 64, 36))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 200, 200, 200, 255
	}
	return &fakeSource{
		info: source.Info{Path: "/media/clip.mp4", Duration: duration, Width: 64, Height: 36, FrameRate: 30, HasAudio: true},
		img:  img,
	}
}

func (f *fakeSource) Load(_ context.Context, path string) (source.Info, error) {
	if f.loadErr != nil {
		return source.Info{}, f.loadErr
	}
	f.info.Path = path
	f.t = 0
	return f.info, nil
}

func (f *fakeSource) Info() source.Info { return f.info }
func (f *fakeSource) Duration() float64 { return f.info.Duration }
func (f *fakeSource) Close() error      { f.closed = true; return nil }

func (f *fakeSource) Seek(_ context.Context, t float64) error {
	f.seeks = append(f.seeks, t)
	f.t = t
	return nil
}

func (f *fakeSource) Play(speed float64) error {
	if speed <= 0 {
		return source.ErrPlaybackBlocked
	}
	f.playing = true
	return nil
}

func (f *fakeSource) Pause() { f.playing = false }

func (f *fakeSource) CurrentTime() float64 {
	cur := f.t
	if f.playing {
		f.t += 0.5
	}
	return cur
}

func (f *fakeSource) Frame() image.Image { return f.img }
func (f *fakeSource) Err() error         { return nil }

type fakeSink struct {
	cfg    sink.Config
	opens  int
	frames int
}

func (s *fakeSink) Open(_ context.Context, cfg sink.Config) (sink.Session, error) {
	s.opens++
	s.cfg = cfg
	return &fakeSession{sink: s}, nil
}

type fakeSession struct{ sink *fakeSink }

func (f *fakeSession) Format() sink.Format { return sink.Format{MIMEType: "video/mp4", Extension: "mp4"} }

func (f *fakeSession) PushFrame(image.Image) error {
	f.sink.frames++
	return nil
}

func (f *fakeSession) Finish(context.Context) (sink.Artifact, error) {
	return sink.Artifact{
		Data:      []byte("encoded"),
		MIMEType:  "video/mp4",
		Extension: "mp4",
		Filename:  "fluxrender_1700000000000.mp4",
		Frames:    f.sink.frames,
	}, nil
}

func (f *fakeSession) Discard() error { return nil }

type instantTicker struct{ ch chan time.Time }

func (t instantTicker) C() <-chan time.Time { return t.ch }
func (t instantTicker) Stop()               {}

func newTestSession(src *fakeSource, out *fakeSink) *Session {
	return NewSession(src, out, SessionOptions{
		Sequencer: render.Options{NewTicker: func(time.Duration) render.Ticker {
			ch := make(chan time.Time)
			close(ch)
			return instantTicker{ch: ch}
		}},
	})
}

func defaultOptions() Options {
	return Options{Filter: "identity", Resolution: "low", PlaybackSpeed: 1}
}

func TestMarkRequiresLoadedSource(t *testing.T) {
	s := newTestSession(newFakeSource(10), &fakeSink{})
	if _, err := s.Mark(1, 2); !errors.Is(err, source.ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded, got %v", err)
	}
}

func TestLoadResetsMarks(t *testing.T) {
	src := newFakeSource(10)
	s := newTestSession(src, &fakeSink{})
	ctx := context.Background()
	if _, err := s.Load(ctx, "/media/a.mp4"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := s.Mark(1, 3); err != nil {
		t.Fatalf("Mark: %v", err)
	}
	if _, err := s.Load(ctx, "/media/b.mp4"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := len(s.Segments()); got != 0 {
		t.Fatalf("expected marks cleared, got %d", got)
	}
	info, ok := s.Info()
	if !ok || info.Path != "/media/b.mp4" {
		t.Fatalf("unexpected info %+v", info)
	}
}

func TestLoadFailureKeepsSessionUnloaded(t *testing.T) {
	src := newFakeSource(10)
	src.loadErr = services.Wrap(services.ErrValidation, "source", "load", "bad", source.ErrUnsupportedSource)
	s := newTestSession(src, &fakeSink{})
	if _, err := s.Load(context.Background(), "/tmp/notes.txt"); !errors.Is(err, source.ErrUnsupportedSource) {
		t.Fatalf("expected ErrUnsupportedSource, got %v", err)
	}
	if _, ok := s.Info(); ok {
		t.Fatal("session should stay unloaded")
	}
}

func TestEditingOperations(t *testing.T) {
	s := newTestSession(newFakeSource(20), &fakeSink{})
	if _, err := s.Load(context.Background(), "/media/a.mp4"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	a, _ := s.Mark(0, 2)
	b, _ := s.MarkLabeled(5, 8, "intro")
	if _, err := s.Mark(8, 25); !errors.Is(err, timeline.ErrInvalidRange) {
		t.Fatalf("expected out-of-range mark to fail, got %v", err)
	}
	if got := s.TotalDuration(); got != 5 {
		t.Fatalf("expected total 5, got %v", got)
	}
	if err := s.Move(b.ID, 0); err != nil {
		t.Fatalf("Move: %v", err)
	}
	segs := s.Segments()
	if segs[0].ID != b.ID || segs[1].ID != a.ID {
		t.Fatalf("unexpected order %v", segs)
	}
	if !s.Remove(a.ID) || s.Remove(a.ID) {
		t.Fatal("expected remove to succeed once")
	}
	s.ClearMarks()
	if got := s.TotalDuration(); got != 20 {
		t.Fatalf("expected whole source total 20, got %v", got)
	}
}

func TestRenderUsesMarksAndSaves(t *testing.T) {
	src := newFakeSource(10)
	out := &fakeSink{}
	s := newTestSession(src, out)
	ctx := context.Background()
	if _, err := s.Load(ctx, "/media/a.mp4"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := s.Mark(2, 4); err != nil {
		t.Fatalf("Mark: %v", err)
	}
	opts := defaultOptions()
	opts.Audio = true
	opts.Filter = "GRAYSCALE"

	artifact, err := s.Render(ctx, opts)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(src.seeks) != 1 || src.seeks[0] != 2 {
		t.Fatalf("expected a seek to 2, got %v", src.seeks)
	}
	if artifact.Frames != 60 {
		t.Fatalf("expected 2s at 30fps, got %d frames", artifact.Frames)
	}
	if out.cfg.Audio == nil || out.cfg.Audio.SourcePath != "/media/a.mp4" {
		t.Fatalf("expected audio plan from source, got %+v", out.cfg.Audio)
	}

	dir := filepath.Join(t.TempDir(), "renders")
	path, err := s.Save(artifact, dir)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "encoded" {
		t.Fatalf("unexpected saved file %q: %v", data, err)
	}
	if filepath.Base(path) != artifact.Filename {
		t.Fatalf("unexpected file name %s", path)
	}
}

func TestRenderWithoutAudioTrack(t *testing.T) {
	src := newFakeSource(2)
	src.info.HasAudio = false
	out := &fakeSink{}
	s := newTestSession(src, out)
	if _, err := s.Load(context.Background(), "/media/silent.mp4"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	opts := defaultOptions()
	opts.Audio = true
	if _, err := s.Render(context.Background(), opts); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out.cfg.Audio != nil {
		t.Fatal("expected no audio plan for a silent source")
	}
}

func TestRenderValidatesOptions(t *testing.T) {
	s := newTestSession(newFakeSource(10), &fakeSink{})
	if _, err := s.Load(context.Background(), "/media/a.mp4"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	tests := []struct {
		name   string
		mutate func(*Options)
		field  string
	}{
		{"resolution", func(o *Options) { o.Resolution = "8k" }, "Resolution"},
		{"speed", func(o *Options) { o.PlaybackSpeed = 0 }, "PlaybackSpeed"},
		{"filter", func(o *Options) { o.Filter = "" }, "Filter"},
		{"frame rate", func(o *Options) { o.FrameRate = 500 }, "FrameRate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := defaultOptions()
			tt.mutate(&opts)
			_, err := s.Render(context.Background(), opts)
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Fatalf("expected %s in %q", tt.field, err)
			}
		})
	}
}

func TestRenderUnknownFilterFailsBeforeSinkOpens(t *testing.T) {
	out := &fakeSink{}
	s := newTestSession(newFakeSource(10), out)
	if _, err := s.Load(context.Background(), "/media/a.mp4"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	opts := defaultOptions()
	opts.Filter = "vaporwave"
	_, err := s.Render(context.Background(), opts)
	if !errors.Is(err, frame.ErrUnknownFilter) || !errors.Is(err, render.ErrRenderFailed) {
		t.Fatalf("expected unknown filter render failure, got %v", err)
	}
	if out.opens != 0 {
		t.Fatalf("sink opened %d times", out.opens)
	}
}

func TestSaveRejectsEmptyArtifact(t *testing.T) {
	s := newTestSession(newFakeSource(10), &fakeSink{})
	if _, err := s.Save(sink.Artifact{}, t.TempDir()); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSaveKeepsExistingRenders(t *testing.T) {
	s := newTestSession(newFakeSource(10), &fakeSink{})
	dir := t.TempDir()
	artifact := sink.Artifact{Data: []byte("encoded"), Extension: "mp4", Filename: "fluxrender_1.mp4"}

	first, err := s.Save(artifact, dir)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	artifact.Data = []byte("again")
	second, err := s.Save(artifact, dir)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if first == second || filepath.Base(second) != "fluxrender_1-1.mp4" {
		t.Fatalf("expected a suffixed second file, got %s and %s", first, second)
	}
	if data, _ := os.ReadFile(first); string(data) != "encoded" {
		t.Fatalf("first render was overwritten: %q", data)
	}
}

func TestFramePreviewAppliesFilter(t *testing.T) {
	src := newFakeSource(10)
	s := newTestSession(src, &fakeSink{})
	img, err := s.Frame("invert")
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	got := color.RGBAModel.Convert(img.At(0, 0)).(color.RGBA)
	if got.R != 55 || got.G != 55 || got.B != 55 {
		t.Fatalf("expected inverted pixel 55, got %+v", got)
	}
	if _, err := s.Frame("sparkle"); !errors.Is(err, frame.ErrUnknownFilter) {
		t.Fatalf("expected ErrUnknownFilter, got %v", err)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	opts := OptionsFromConfig(&cfg)
	if opts.Resolution != cfg.Render.Resolution || opts.PlaybackSpeed != cfg.Render.PlaybackSpeed || opts.FrameRate != float64(cfg.Render.FrameRate) {
		t.Fatalf("unexpected options %+v", opts)
	}
}

func TestCloseReleasesSource(t *testing.T) {
	src := newFakeSource(10)
	s := newTestSession(src, &fakeSink{})
	if err := s.Close(); err != nil || !src.closed {
		t.Fatalf("expected source closed, err=%v", err)
	}
}
