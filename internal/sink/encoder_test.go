package sink

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	vidio "github.com/AlexEidt/Vidio"

	"fluxrender/internal/timeline"
)

const listing = ` ------
 V....D libx264   H.264
 V....D libvpx    VP8
 A....D aac       AAC
`

type fakeWriter struct {
	path   string
	opts   vidio.Options
	frames [][]byte
	closed int
	failAt int
}

func (w *fakeWriter) Write(frame []byte) error {
	if w.failAt > 0 && len(w.frames)+1 == w.failAt {
		return errors.New("broken pipe")
	}
	w.frames = append(w.frames, append([]byte(nil), frame...))
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed++
	return os.WriteFile(w.path, []byte(strings.Repeat("v", len(w.frames))), 0o644)
}

type harness struct {
	mu      sync.Mutex
	writers []*fakeWriter
	calls   [][]string
	listing string
	muxErr  error
	failAt  int
}

func (h *harness) newWriter(path string, width, height int, opts *vidio.Options) (FrameWriter, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	w := &fakeWriter{path: path, opts: *opts, failAt: h.failAt}
	h.writers = append(h.writers, w)
	return w, nil
}

func (h *harness) run(_ context.Context, name string, args ...string) ([]byte, error) {
	h.mu.Lock()
	h.calls = append(h.calls, append([]string{name}, args...))
	h.mu.Unlock()
	if slices.Contains(args, "-encoders") {
		return []byte(h.listing), nil
	}
	if h.muxErr != nil {
		return []byte("Stream specifier ':a' matches no streams"), h.muxErr
	}
	out := args[len(args)-1]
	return nil, os.WriteFile(out, []byte("muxed"), 0o644)
}

func newTestEncoder(t *testing.T, h *harness) (*Encoder, string) {
	t.Helper()
	if h.listing == "" {
		h.listing = listing
	}
	staging := filepath.Join(t.TempDir(), "staging")
	enc := NewEncoder(Options{
		StagingDir: staging,
		Runner:     h.run,
		NewWriter:  h.newWriter,
		Now:        func() time.Time { return time.UnixMilli(1700000000123) },
	})
	return enc, staging
}

func frameOf(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func assertEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read staging: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected staging to be cleaned, found %d entries", len(entries))
	}
}

func TestSelectFormatFollowsPreference(t *testing.T) {
	cases := []struct {
		available []string
		want      string
	}{
		{[]string{"libvpx", "libvpx-vp9", "libx264"}, "video/mp4;codecs=avc1"},
		{[]string{"libvpx", "libvpx-vp9"}, "video/webm;codecs=vp9,opus"},
		{[]string{"libvpx"}, "video/webm;codecs=vp8,opus"},
	}
	for _, tc := range cases {
		set := map[string]struct{}{}
		for _, name := range tc.available {
			set[name] = struct{}{}
		}
		got, err := SelectFormat(set)
		if err != nil {
			t.Fatalf("SelectFormat(%v): %v", tc.available, err)
		}
		if got.MIMEType != tc.want {
			t.Fatalf("SelectFormat(%v) = %s, want %s", tc.available, got.MIMEType, tc.want)
		}
	}
	if _, err := SelectFormat(nil); !errors.Is(err, ErrEncoderUnsupported) {
		t.Fatalf("expected ErrEncoderUnsupported, got %v", err)
	}
}

func TestOpenFailsWithoutEncoders(t *testing.T) {
	h := &harness{listing: " ------\n A....D aac AAC\n"}
	enc, _ := newTestEncoder(t, h)
	_, err := enc.Open(context.Background(), Config{Width: 4, Height: 2, FrameRate: 30})
	if !errors.Is(err, ErrEncoderUnsupported) {
		t.Fatalf("expected ErrEncoderUnsupported, got %v", err)
	}
	if len(h.writers) != 0 {
		t.Fatal("no writer should be opened")
	}
}

func TestSessionProducesArtifact(t *testing.T) {
	h := &harness{}
	enc, staging := newTestEncoder(t, h)
	sess, err := enc.Open(context.Background(), Config{Width: 4, Height: 2, FrameRate: 30, Bitrate: 8_000_000})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	w := h.writers[0]
	if w.opts.Codec != "libx264" || w.opts.FPS != 30 || w.opts.Bitrate != 8_000_000 {
		t.Fatalf("unexpected writer options %+v", w.opts)
	}

	for i := 0; i < 3; i++ {
		if err := sess.PushFrame(frameOf(4, 2, color.RGBA{uint8(i), 0, 0, 255})); err != nil {
			t.Fatalf("PushFrame: %v", err)
		}
	}
	artifact, err := sess.Finish(context.Background())
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if artifact.MIMEType != "video/mp4;codecs=avc1" || artifact.Extension != "mp4" {
		t.Fatalf("unexpected format %+v", artifact)
	}
	if artifact.Filename != "fluxrender_1700000000123.mp4" {
		t.Fatalf("unexpected filename %q", artifact.Filename)
	}
	if artifact.Frames != 3 || string(artifact.Data) != "vvv" || artifact.Bytes != 3 {
		t.Fatalf("unexpected artifact %+v", artifact)
	}
	if w.frames[2][0] != 2 || len(w.frames[0]) != 4*2*4 {
		t.Fatalf("frames not written in order: %v", w.frames)
	}
	assertEmpty(t, staging)
}

func TestPushFramePacksSubImages(t *testing.T) {
	h := &harness{}
	enc, _ := newTestEncoder(t, h)
	sess, err := enc.Open(context.Background(), Config{Width: 2, Height: 2, FrameRate: 30})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sess.Discard()

	big := frameOf(4, 4, color.RGBA{9, 9, 9, 255})
	sub := big.SubImage(image.Rect(2, 2, 4, 4))
	if err := sess.PushFrame(sub); err != nil {
		t.Fatalf("PushFrame: %v", err)
	}
	if got := h.writers[0].frames[0]; len(got) != 16 || got[0] != 9 {
		t.Fatalf("unexpected packed frame %v", got)
	}
}

func TestFinishWithoutFramesFails(t *testing.T) {
	h := &harness{}
	enc, staging := newTestEncoder(t, h)
	sess, err := enc.Open(context.Background(), Config{Width: 4, Height: 2, FrameRate: 30})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := sess.Finish(context.Background()); !errors.Is(err, ErrEncodingFailed) {
		t.Fatalf("expected ErrEncodingFailed, got %v", err)
	}
	assertEmpty(t, staging)
}

func TestWriteFailureReportsEncodingFailed(t *testing.T) {
	h := &harness{failAt: 2}
	enc, _ := newTestEncoder(t, h)
	sess, err := enc.Open(context.Background(), Config{Width: 1, Height: 1, FrameRate: 30})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sess.Discard()
	if err := sess.PushFrame(frameOf(1, 1, color.RGBA{})); err != nil {
		t.Fatalf("first push: %v", err)
	}
	if err := sess.PushFrame(frameOf(1, 1, color.RGBA{})); !errors.Is(err, ErrEncodingFailed) {
		t.Fatalf("expected ErrEncodingFailed, got %v", err)
	}
}

func TestDiscardIsIdempotent(t *testing.T) {
	h := &harness{}
	enc, staging := newTestEncoder(t, h)
	sess, err := enc.Open(context.Background(), Config{Width: 1, Height: 1, FrameRate: 30})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = sess.PushFrame(frameOf(1, 1, color.RGBA{}))
	for i := 0; i < 2; i++ {
		if err := sess.Discard(); err != nil {
			t.Fatalf("Discard %d: %v", i, err)
		}
	}
	if h.writers[0].closed != 1 {
		t.Fatalf("expected writer closed once, got %d", h.writers[0].closed)
	}
	if err := sess.PushFrame(frameOf(1, 1, color.RGBA{})); err == nil {
		t.Fatal("push after discard should fail")
	}
	if _, err := sess.Finish(context.Background()); !errors.Is(err, ErrEncodingFailed) {
		t.Fatalf("finish after discard should fail, got %v", err)
	}
	assertEmpty(t, staging)
}

func TestFinishMuxesAudio(t *testing.T) {
	h := &harness{}
	enc, _ := newTestEncoder(t, h)
	plan := &AudioPlan{
		SourcePath: "/media/clip.mp4",
		Speed:      1.5,
		Segments: []timeline.Segment{
			{Start: 0, End: 2},
			{Start: 5, End: 5},
			{Start: 5, End: 5.01},
		},
	}
	sess, err := enc.Open(context.Background(), Config{Width: 1, Height: 1, FrameRate: 30, Audio: plan})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = sess.PushFrame(frameOf(1, 1, color.RGBA{}))
	artifact, err := sess.Finish(context.Background())
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if !artifact.HasAudio || string(artifact.Data) != "muxed" {
		t.Fatalf("expected muxed artifact, got %+v", artifact)
	}
	mux := h.calls[len(h.calls)-1]
	graph := mux[slices.Index(mux, "-filter_complex")+1]
	want := "[1:a]atrim=start=0.000:end=2.000,asetpts=PTS-STARTPTS,atempo=1.5[a0];" +
		"[1:a]atrim=start=5.000:end=5.010,asetpts=PTS-STARTPTS,atempo=1.5[a1];" +
		"[a0][a1]concat=n=2:v=0:a=1[aout]"
	if graph != want {
		t.Fatalf("unexpected graph\n got %s\nwant %s", graph, want)
	}
	if mux[slices.Index(mux, "-c:a")+1] != "aac" {
		t.Fatalf("expected aac audio codec: %v", mux)
	}
}

func TestAudioMuxFailureKeepsVideo(t *testing.T) {
	h := &harness{muxErr: errors.New("exit status 1")}
	enc, _ := newTestEncoder(t, h)
	plan := &AudioPlan{SourcePath: "/media/silent.mp4", Speed: 1, Segments: []timeline.Segment{{Start: 0, End: 1}}}
	sess, err := enc.Open(context.Background(), Config{Width: 1, Height: 1, FrameRate: 30, Audio: plan})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = sess.PushFrame(frameOf(1, 1, color.RGBA{}))
	artifact, err := sess.Finish(context.Background())
	if err != nil {
		t.Fatalf("Finish should tolerate audio failure: %v", err)
	}
	if artifact.HasAudio || string(artifact.Data) != "v" {
		t.Fatalf("expected video-only artifact, got %+v", artifact)
	}
}

func TestAtempoChain(t *testing.T) {
	cases := map[float64]string{
		1:    "",
		0.5:  "atempo=0.5",
		2:    "atempo=2",
		4:    "atempo=2,atempo=2",
		3:    "atempo=2,atempo=1.5",
		0.25: "atempo=0.5,atempo=0.5",
	}
	for speed, want := range cases {
		if got := atempoChain(speed); got != want {
			t.Fatalf("atempoChain(%v) = %q, want %q", speed, got, want)
		}
	}
}

func TestArtifactFilename(t *testing.T) {
	got := ArtifactFilename(time.UnixMilli(42), "webm")
	if got != "fluxrender_42.webm" {
		t.Fatalf("unexpected filename %q", got)
	}
}
