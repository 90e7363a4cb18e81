package source

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"fluxrender/internal/logging"
	"fluxrender/internal/media/ffprobe"
	"fluxrender/internal/services"
)

const (
	defaultFrameRate   = 30.0
	defaultSeekTimeout = 10 * time.Second
)

// Info describes the loaded source.
type Info struct {
	Path       string
	Duration   float64
	Width      int
	Height     int
	FrameRate  float64
	VideoCodec string
	HasAudio   bool
}

// Options configures a Handle. Zero values fall back to ffprobe/ffmpeg on
// PATH and a ten second seek timeout.
type Options struct {
	FFprobeBinary string
	FFmpegBinary  string
	SeekTimeout   time.Duration
	Logger        *slog.Logger
	// Probe and Open replace the external tools in tests.
	Probe ffprobe.Runner
	Open  Opener
}

// decodeRun is one decoder process started by a seek; frame k of the run
// carries timestamp start + k/fps.
type decodeRun struct {
	stream  Stream
	cancel  context.CancelFunc
	start   float64
	index   int
	pending *image.RGBA
	eof     bool
}

func (r *decodeRun) timestamp(fps float64) float64 {
	return r.start + float64(r.index)/fps
}

// next returns the next frame and its timestamp, preferring a frame held back
// by an interrupted play loop.
func (r *decodeRun) next(fps float64) (*image.RGBA, float64, error) {
	if r.eof {
		return nil, 0, io.EOF
	}
	img := r.pending
	r.pending = nil
	if img == nil {
		var err error
		if img, err = r.stream.Next(); err != nil {
			if errors.Is(err, io.EOF) {
				r.eof = true
			}
			return nil, 0, err
		}
	}
	ts := r.timestamp(fps)
	r.index++
	return img, ts, nil
}

// holdBack returns an unpresented frame to the run.
func (r *decodeRun) holdBack(img *image.RGBA) {
	r.index--
	r.pending = img
}

func (r *decodeRun) close() {
	if r == nil {
		return
	}
	r.cancel()
	_ = r.stream.Close()
}

// Handle is a seekable, playable view of one source file. Methods are safe for
// concurrent use; one play loop runs at a time.
type Handle struct {
	opts   Options
	logger *slog.Logger

	mu        sync.Mutex
	info      Info
	loaded    bool
	current   float64
	latest    *image.RGBA
	err       error
	run       *decodeRun
	playing   bool
	playSpeed float64
	stop      context.CancelFunc
	done      chan struct{}
}

// NewHandle returns an empty handle; call Load before use.
func NewHandle(opts Options) *Handle {
	if opts.SeekTimeout <= 0 {
		opts.SeekTimeout = defaultSeekTimeout
	}
	if opts.Open == nil {
		opts.Open = FFmpegOpener(opts.FFmpegBinary)
	}
	return &Handle{opts: opts, logger: logging.NewComponentLogger(opts.Logger, "source")}
}

// Load binds path, replacing any previous source. State resets to time 0,
// paused, with duration taken from the container metadata.
func (h *Handle) Load(ctx context.Context, path string) (Info, error) {
	h.haltPlayback()

	probe, err := ffprobe.InspectWith(ctx, h.opts.Probe, h.opts.FFprobeBinary, path)
	if err != nil {
		return Info{}, services.Wrap(services.ErrValidation, "source", "probe", path, fmt.Errorf("%w: %w", ErrUnsupportedSource, err))
	}
	video, ok := probe.VideoStream()
	if !ok {
		return Info{}, services.Wrap(services.ErrValidation, "source", "probe", path+": no video stream", ErrUnsupportedSource)
	}
	duration := probe.DurationSeconds()
	if duration <= 0 || math.IsNaN(duration) {
		return Info{}, services.Wrap(services.ErrValidation, "source", "probe", path+": unknown duration", ErrUnsupportedSource)
	}
	fps := video.FrameRate()
	if fps <= 0 || fps > 240 {
		fps = defaultFrameRate
	}
	info := Info{
		Path:       strings.TrimSpace(path),
		Duration:   duration,
		Width:      video.Width,
		Height:     video.Height,
		FrameRate:  fps,
		VideoCodec: video.CodecName,
		HasAudio:   probe.AudioStreamCount() > 0,
	}

	h.mu.Lock()
	h.run.close()
	h.info = info
	h.loaded = true
	h.current = 0
	h.latest = nil
	h.err = nil
	h.run = nil
	h.mu.Unlock()

	h.logger.Info("source loaded",
		logging.String("path", info.Path),
		logging.Float64("duration_seconds", info.Duration),
		logging.Int("width", info.Width),
		logging.Int("height", info.Height),
		logging.Float64("fps", info.FrameRate),
		logging.Bool("audio", info.HasAudio),
	)
	return info, nil
}

// Info returns the loaded source description.
func (h *Handle) Info() Info {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.info
}

// Seek moves the decode position to t, clamped to [0, duration], and blocks
// until the first frame at or after t is available. Playback resumes
// afterwards if it was running.
func (h *Handle) Seek(ctx context.Context, t float64) error {
	resume, speed := h.haltPlayback()

	h.mu.Lock()
	if !h.loaded {
		h.mu.Unlock()
		return services.Wrap(services.ErrValidation, "source", "seek", "", ErrNotLoaded)
	}
	info := h.info
	h.run.close()
	h.run = nil
	h.mu.Unlock()

	t = math.Max(0, math.Min(t, info.Duration))
	runCtx, cancel := context.WithCancel(context.Background())
	stream, err := h.opts.Open(runCtx, info, t)
	if err != nil {
		cancel()
		return services.Wrap(services.ErrExternalTool, "source", "seek", fmt.Sprintf("open decoder at %.3fs", t), err)
	}
	run := &decodeRun{stream: stream, cancel: cancel, start: t}

	type result struct {
		img *image.RGBA
		err error
	}
	first := make(chan result, 1)
	go func() {
		img, err := stream.Next()
		first <- result{img, err}
	}()

	timer := time.NewTimer(h.opts.SeekTimeout)
	defer timer.Stop()
	var res result
	select {
	case res = <-first:
	case <-timer.C:
		run.close()
		return services.Wrap(services.ErrTimeout, "source", "seek",
			fmt.Sprintf("no frame at %.3fs after %s", t, h.opts.SeekTimeout), ErrSeekTimeout)
	case <-ctx.Done():
		run.close()
		return ctx.Err()
	}

	h.mu.Lock()
	switch {
	case res.err == nil:
		run.pending = res.img
		h.latest = res.img
		h.current = t
	case errors.Is(res.err, io.EOF):
		run.eof = true
		h.current = info.Duration
	default:
		h.mu.Unlock()
		run.close()
		return services.Wrap(services.ErrExternalTool, "source", "seek", fmt.Sprintf("decode at %.3fs", t), fmt.Errorf("%w: %w", ErrDecode, res.err))
	}
	h.run = run
	h.mu.Unlock()

	if resume {
		return h.Play(speed)
	}
	return nil
}

// CurrentTime returns the timestamp of the most recently presented frame, or
// the duration once playback has run off the end.
func (h *Handle) CurrentTime() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Duration returns the loaded source duration in seconds.
func (h *Handle) Duration() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.info.Duration
}

// Frame returns the most recently presented frame, or nil before the first
// seek. Frames are never modified after publication.
func (h *Handle) Frame() image.Image {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.latest == nil {
		return nil
	}
	return h.latest
}

// Err reports a fatal decode error raised during playback.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Play starts presenting frames at speed times real time. It fails with
// ErrPlaybackBlocked when no source is loaded or the decoder cannot start.
func (h *Handle) Play(speed float64) error {
	if speed <= 0 || math.IsNaN(speed) {
		return services.Wrap(services.ErrValidation, "source", "play", fmt.Sprintf("speed %v must be positive", speed), ErrPlaybackBlocked)
	}
	h.haltPlayback()

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.loaded {
		return services.Wrap(services.ErrValidation, "source", "play", "", fmt.Errorf("%w: %w", ErrPlaybackBlocked, ErrNotLoaded))
	}
	if h.err != nil {
		return services.Wrap(services.ErrExternalTool, "source", "play", "decoder failed earlier", fmt.Errorf("%w: %w", ErrPlaybackBlocked, h.err))
	}
	if h.run == nil {
		runCtx, cancel := context.WithCancel(context.Background())
		stream, err := h.opts.Open(runCtx, h.info, h.current)
		if err != nil {
			cancel()
			return services.Wrap(services.ErrExternalTool, "source", "play", "start decoder", fmt.Errorf("%w: %w", ErrPlaybackBlocked, err))
		}
		h.run = &decodeRun{stream: stream, cancel: cancel, start: h.current}
	}

	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	h.stop, h.done, h.playing, h.playSpeed = stop, done, true, speed
	go h.playLoop(ctx, h.run, h.info, speed, done)
	return nil
}

// Pause stops the play loop, keeping the decoder positioned where it left off.
func (h *Handle) Pause() {
	h.haltPlayback()
}

// Close stops playback and releases the decoder process.
func (h *Handle) Close() error {
	h.haltPlayback()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.run.close()
	h.run = nil
	return nil
}

// haltPlayback stops a running play loop and waits for it to exit, returning
// whether it was running and at what speed.
func (h *Handle) haltPlayback() (bool, float64) {
	h.mu.Lock()
	stop, done, was, speed := h.stop, h.done, h.playing, h.playSpeed
	h.stop, h.done = nil, nil
	h.mu.Unlock()
	if stop == nil {
		return false, 0
	}
	stop()
	<-done
	h.mu.Lock()
	h.playing = false
	h.mu.Unlock()
	return was, speed
}

func (h *Handle) playLoop(ctx context.Context, run *decodeRun, info Info, speed float64, done chan struct{}) {
	defer close(done)

	wallStart := time.Now()
	mediaStart := run.timestamp(info.FrameRate)
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for {
		img, ts, err := run.next(info.FrameRate)
		if err != nil {
			h.mu.Lock()
			h.playing = false
			if errors.Is(err, io.EOF) {
				h.current = info.Duration
			} else {
				h.err = fmt.Errorf("%w: %w", ErrDecode, err)
			}
			h.mu.Unlock()
			if !errors.Is(err, io.EOF) {
				logging.ErrorWithContext(h.logger, "decoder failed during playback", "decode_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "run fluxrender probe on the source to check it decodes"),
				)
			}
			return
		}

		due := wallStart.Add(time.Duration((ts - mediaStart) / speed * float64(time.Second)))
		if wait := time.Until(due); wait > 0 {
			timer.Reset(wait)
			select {
			case <-ctx.Done():
				run.holdBack(img)
				return
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			run.holdBack(img)
			return
		}

		h.mu.Lock()
		h.latest = img
		h.current = ts
		h.mu.Unlock()
	}
}
