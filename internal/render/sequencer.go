package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"fluxrender/internal/frame"
	"fluxrender/internal/logging"
	"fluxrender/internal/services"
	"fluxrender/internal/sink"
	"fluxrender/internal/timeline"
)

// Decoder is the slice of the source handle the sequencer drives.
type Decoder interface {
	Seek(ctx context.Context, t float64) error
	Play(speed float64) error
	Pause()
	CurrentTime() float64
	Frame() image.Image
	Err() error
}

// Sink opens encoding sessions.
type Sink interface {
	Open(ctx context.Context, cfg sink.Config) (sink.Session, error)
}

// Progress is a point-in-time view of the active job.
type Progress struct {
	JobID    string
	State    State
	Segment  int
	Segments int
	Elapsed  float64
	Total    float64
	Percent  int
	Frames   int
}

// Options tunes a Sequencer. Zero values use a real interval ticker, a
// 15 second stall limit and no logging.
type Options struct {
	Logger       *slog.Logger
	NewTicker    TickerFactory
	StallTimeout time.Duration
	// OnProgress is called on the render goroutine after every state change
	// and every captured frame.
	OnProgress func(Progress)
	Now        func() time.Time
}

// Sequencer runs render jobs one at a time.
type Sequencer struct {
	decoder Decoder
	sink    Sink
	opts    Options
	logger  *slog.Logger

	active atomic.Pointer[activeJob]

	mu     sync.Mutex
	status Progress
}

type activeJob struct {
	id     string
	cancel context.CancelFunc
}

// NewSequencer wires a decoder to a sink.
func NewSequencer(decoder Decoder, out Sink, opts Options) *Sequencer {
	if opts.NewTicker == nil {
		opts.NewTicker = NewIntervalTicker
	}
	if opts.StallTimeout <= 0 {
		opts.StallTimeout = 15 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Sequencer{
		decoder: decoder,
		sink:    out,
		opts:    opts,
		logger:  logging.NewComponentLogger(opts.Logger, "render"),
	}
}

// Status returns the active job's progress, or an idle Progress.
func (s *Sequencer) Status() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Active reports whether a job is running.
func (s *Sequencer) Active() bool {
	return s.active.Load() != nil
}

// Cancel stops the active job. It returns false when nothing is running.
func (s *Sequencer) Cancel() bool {
	job := s.active.Load()
	if job == nil {
		return false
	}
	job.cancel()
	return true
}

// Render executes job and blocks until it reaches a terminal state. Only
// one job may run at a time; a second call fails with ErrConcurrentRender
// and leaves the running job untouched.
func (s *Sequencer) Render(ctx context.Context, job Job) (sink.Artifact, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	slot := &activeJob{id: job.ID, cancel: cancel}
	if !s.active.CompareAndSwap(nil, slot) {
		return sink.Artifact{}, services.Wrap(services.ErrValidation, "render", "start", "", ErrConcurrentRender)
	}
	defer s.release()

	if err := job.normalize(); err != nil {
		return sink.Artifact{}, err
	}
	slot.id = job.ID
	ctx = services.WithJobID(ctx, job.ID)

	run := &jobRun{
		seq:    s,
		job:    job,
		total:  job.TotalDuration(),
		logger: logging.WithContext(ctx, s.logger),
		// Progress and state are only logged on bucket or state changes.
		sampler: logging.NewProgressSampler(5),
	}
	return run.execute(ctx)
}

func (s *Sequencer) release() {
	s.mu.Lock()
	s.status = Progress{State: Idle}
	s.mu.Unlock()
	s.active.Store(nil)
}

type jobRun struct {
	seq     *Sequencer
	job     Job
	total   float64
	logger  *slog.Logger
	sampler *logging.ProgressSampler

	session sink.Session
	state   State
	segment int
	elapsed float64
	percent int
	frames  int
	drawn   bool
}

func (r *jobRun) execute(ctx context.Context) (sink.Artifact, error) {
	s := r.seq
	width, height := r.job.Resolution.Dimensions()
	r.logger.Info("render started",
		logging.Int("segments", len(r.job.Segments)),
		logging.Float64("total_seconds", r.total),
		logging.String("filter", string(r.job.Filter)),
		logging.String("resolution", r.job.Resolution.Label()),
		logging.Float64("speed", r.job.PlaybackSpeed),
	)

	r.transition(Priming, 0)
	filter, err := frame.Lookup(r.job.Filter)
	if err != nil {
		return r.fail(err)
	}

	cfg := sink.Config{
		Width:     width,
		Height:    height,
		FrameRate: r.job.FrameRate,
		Bitrate:   r.job.Resolution.Bitrate(),
	}
	if r.job.AudioSource != "" {
		cfg.Audio = &sink.AudioPlan{
			SourcePath: r.job.AudioSource,
			Segments:   r.job.Segments,
			Speed:      r.job.PlaybackSpeed,
		}
	}
	session, err := s.sink.Open(ctx, cfg)
	if err != nil {
		if ctx.Err() != nil {
			return r.cancelled()
		}
		return r.fail(err)
	}
	r.session = session

	ticker := s.opts.NewTicker(frameInterval(r.job.FrameRate))
	defer ticker.Stop()
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))

	var prior float64
	for i, seg := range r.job.Segments {
		if seg.Duration() <= 0 {
			continue
		}
		r.transition(Priming, i)
		if err := s.decoder.Seek(ctx, seg.Start); err != nil {
			if ctx.Err() != nil {
				return r.cancelled()
			}
			return r.fail(err)
		}
		if err := s.decoder.Play(r.job.PlaybackSpeed); err != nil {
			return r.fail(err)
		}
		r.transition(Capturing, i)
		if err := r.capture(ctx, seg, prior, ticker, filter, canvas); err != nil {
			s.decoder.Pause()
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return r.cancelled()
			}
			return r.fail(err)
		}
		s.decoder.Pause()
		prior += seg.Duration()
		r.advance(prior)
	}

	r.transition(Draining, r.segment)
	if r.total <= 0 {
		r.percent = 100
		r.publish()
	}

	r.transition(Finalizing, r.segment)
	artifact, err := session.Finish(ctx)
	r.session = nil
	if err != nil {
		if ctx.Err() != nil {
			return r.cancelled()
		}
		return r.fail(err)
	}

	r.percent = 100
	r.transition(Done, r.segment)
	r.logger.Info("render complete",
		logging.Int("frames", r.frames),
		logging.String("filename", artifact.Filename),
		logging.String("mime_type", artifact.MIMEType),
		logging.Bool("audio", artifact.HasAudio),
	)
	return artifact, nil
}

// capture pushes filtered frames until the decoder's position reaches the
// segment end. The frame count follows content time at the job's frame rate,
// so a late tick repeats the current canvas instead of shortening the output.
// Repeats make decode order non-decreasing rather than strictly increasing.
func (r *jobRun) capture(ctx context.Context, seg timeline.Segment, prior float64, ticker Ticker, filter frame.Filter, canvas *image.RGBA) error {
	dec := r.seq.decoder
	target := r.framesFor(prior + seg.Duration())
	lastPos := math.Inf(-1)
	lastMove := r.seq.opts.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := dec.Err(); err != nil {
			return err
		}
		now := dec.CurrentTime()
		if now >= seg.End {
			if !r.drawn {
				return nil
			}
			return r.fill(canvas, target)
		}
		if now > lastPos {
			lastPos = now
			lastMove = r.seq.opts.Now()
		} else if r.seq.opts.Now().Sub(lastMove) > r.seq.opts.StallTimeout {
			return services.Wrap(services.ErrTimeout, "render", "capture",
				fmt.Sprintf("position stuck at %.3fs", now), ErrDecoderStalled)
		}

		img := dec.Frame()
		if img == nil {
			continue
		}
		filter.Apply(img, canvas)
		r.drawn = true
		pos := clampFloat(now-seg.Start, 0, seg.Duration())
		// Frame k covers output time k/fps, so the first frame is due at zero.
		want := min(r.framesFor(prior+pos)+1, target)
		if err := r.fill(canvas, want); err != nil {
			return err
		}
		r.advance(prior + pos)
	}
}

// framesFor returns how many output frames span content seconds of source
// played at the job's speed.
func (r *jobRun) framesFor(content float64) int {
	return int(math.Round(content / r.job.PlaybackSpeed * r.job.FrameRate))
}

// fill pushes canvas until want frames have been written.
func (r *jobRun) fill(canvas *image.RGBA, want int) error {
	for r.frames < want {
		if err := r.session.PushFrame(canvas); err != nil {
			return err
		}
		r.frames++
	}
	return nil
}

// advance records elapsed content time. Progress never moves backwards.
func (r *jobRun) advance(elapsed float64) {
	if elapsed > r.elapsed {
		r.elapsed = elapsed
	}
	if r.total > 0 {
		pct := int(math.Round(r.elapsed / r.total * 100))
		if pct > 100 {
			pct = 100
		}
		if pct > r.percent {
			r.percent = pct
		}
	}
	r.publish()
	if r.sampler.ShouldLog(float64(r.percent), r.state.String()) {
		r.logger.Info("render progress",
			logging.Int(logging.FieldSegmentIndex, r.segment),
			logging.Int("percent", r.percent),
			logging.Int("frames", r.frames),
		)
	}
}

func (r *jobRun) transition(state State, segment int) {
	r.state = state
	r.segment = segment
	r.logger.Debug("render state",
		logging.String(logging.FieldStage, state.String()),
		logging.Int(logging.FieldSegmentIndex, segment),
	)
	r.publish()
}

func (r *jobRun) publish() {
	p := Progress{
		JobID:    r.job.ID,
		State:    r.state,
		Segment:  r.segment,
		Segments: len(r.job.Segments),
		Elapsed:  r.elapsed,
		Total:    r.total,
		Percent:  r.percent,
		Frames:   r.frames,
	}
	r.seq.mu.Lock()
	r.seq.status = p
	r.seq.mu.Unlock()
	if r.seq.opts.OnProgress != nil {
		r.seq.opts.OnProgress(p)
	}
}

func (r *jobRun) discard() {
	if r.session == nil {
		return
	}
	if err := r.session.Discard(); err != nil {
		logging.WarnWithContext(r.logger, "discarding partial output failed", "render_discard_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "staging files may remain on disk"),
		)
	}
	r.session = nil
}

func (r *jobRun) fail(err error) (sink.Artifact, error) {
	stage := r.state
	r.seq.decoder.Pause()
	r.discard()
	failure := &FailedError{JobID: r.job.ID, Stage: stage, Segment: r.segment, Err: err}
	logging.ErrorWithContext(r.logger, "render failed", "render_failed",
		logging.String(logging.FieldStage, stage.String()),
		logging.Int(logging.FieldSegmentIndex, r.segment),
		logging.Error(err),
	)
	r.state = Failed
	r.publish()
	return sink.Artifact{}, failure
}

func (r *jobRun) cancelled() (sink.Artifact, error) {
	stage := r.state
	r.seq.decoder.Pause()
	r.discard()
	r.logger.Info("render cancelled",
		logging.String(logging.FieldStage, stage.String()),
		logging.Int("frames", r.frames),
	)
	r.state = Cancelled
	r.publish()
	return sink.Artifact{}, fmt.Errorf("%w: stopped while %s", ErrRenderCancelled, stage)
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
