package editing

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"fluxrender/internal/fileutil"
	"fluxrender/internal/frame"
	"fluxrender/internal/logging"
	"fluxrender/internal/render"
	"fluxrender/internal/services"
	"fluxrender/internal/sink"
	"fluxrender/internal/source"
	"fluxrender/internal/timeline"
)

// Source is the decoder the session previews and renders from.
// *source.Handle implements it.
type Source interface {
	render.Decoder
	Load(ctx context.Context, path string) (source.Info, error)
	Info() source.Info
	Duration() float64
	Close() error
}

// SessionOptions wires a session's collaborators.
type SessionOptions struct {
	Logger *slog.Logger
	// Sequencer overrides the render options (ticker, progress observer).
	Sequencer render.Options
}

// Session is one editing workspace. The zero value is not usable; call
// NewSession.
type Session struct {
	src       Source
	registry  *timeline.Registry
	sequencer *render.Sequencer
	validate  *validator.Validate
	logger    *slog.Logger

	mu     sync.Mutex
	loaded bool
	info   source.Info
}

// NewSession builds a session rendering src into out.
func NewSession(src Source, out render.Sink, opts SessionOptions) *Session {
	seqOpts := opts.Sequencer
	if seqOpts.Logger == nil {
		seqOpts.Logger = opts.Logger
	}
	return &Session{
		src:       src,
		registry:  timeline.NewRegistry(0),
		sequencer: render.NewSequencer(src, out, seqOpts),
		validate:  validator.New(),
		logger:    logging.NewComponentLogger(opts.Logger, "editing"),
	}
}

// Load opens path as the session source. Marks from a previous source are
// dropped since their times no longer apply.
func (s *Session) Load(ctx context.Context, path string) (source.Info, error) {
	if s.sequencer.Active() {
		return source.Info{}, services.Wrap(services.ErrValidation, "editing", "load", "a render is in progress", render.ErrConcurrentRender)
	}
	info, err := s.src.Load(ctx, path)
	if err != nil {
		return source.Info{}, err
	}
	s.registry.Clear()
	s.registry.SetDuration(info.Duration)

	s.mu.Lock()
	s.loaded = true
	s.info = info
	s.mu.Unlock()

	s.logger.Info("source loaded",
		logging.String("path", info.Path),
		logging.Float64("duration_seconds", info.Duration),
		logging.String("size", fmt.Sprintf("%dx%d", info.Width, info.Height)),
	)
	return info, nil
}

// Info returns the loaded source's metadata.
func (s *Session) Info() (source.Info, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info, s.loaded
}

func (s *Session) requireSource(op string) error {
	if _, ok := s.Info(); !ok {
		return services.Wrap(services.ErrValidation, "editing", op, "no source loaded", source.ErrNotLoaded)
	}
	return nil
}

// Mark appends a cut.
func (s *Session) Mark(start, end float64) (timeline.Segment, error) {
	if err := s.requireSource("mark"); err != nil {
		return timeline.Segment{}, err
	}
	return s.registry.Mark(start, end)
}

// MarkLabeled appends a cut with an explicit label.
func (s *Session) MarkLabeled(start, end float64, label string) (timeline.Segment, error) {
	if err := s.requireSource("mark"); err != nil {
		return timeline.Segment{}, err
	}
	return s.registry.MarkLabeled(start, end, label)
}

// Remove deletes the cut with id, reporting whether one existed.
func (s *Session) Remove(id string) bool { return s.registry.Remove(id) }

// Move repositions a cut in render order.
func (s *Session) Move(id string, index int) error { return s.registry.Move(id, index) }

// ClearMarks removes every cut.
func (s *Session) ClearMarks() { s.registry.Clear() }

// Segments returns the cuts in render order.
func (s *Session) Segments() []timeline.Segment { return s.registry.Segments() }

// TotalDuration is the length the next render would have.
func (s *Session) TotalDuration() float64 {
	return timeline.TotalDuration(timeline.PlanSegments(s.registry.Snapshot(), s.src.Duration()))
}

// Play starts preview playback.
func (s *Session) Play(speed float64) error {
	if s.sequencer.Active() {
		return services.Wrap(services.ErrValidation, "editing", "play", "a render is in progress", render.ErrConcurrentRender)
	}
	return s.src.Play(speed)
}

// Pause stops preview playback.
func (s *Session) Pause() { s.src.Pause() }

// Seek moves the preview position.
func (s *Session) Seek(ctx context.Context, t float64) error {
	if s.sequencer.Active() {
		return services.Wrap(services.ErrValidation, "editing", "seek", "a render is in progress", render.ErrConcurrentRender)
	}
	return s.src.Seek(ctx, t)
}

// CurrentTime is the preview position in seconds.
func (s *Session) CurrentTime() float64 { return s.src.CurrentTime() }

// Frame returns the preview frame with filter applied, for thumbnails.
func (s *Session) Frame(filter string) (image.Image, error) {
	img := s.src.Frame()
	if img == nil {
		return nil, services.Wrap(services.ErrValidation, "editing", "frame", "no frame decoded yet", source.ErrNotLoaded)
	}
	id, err := frame.Parse(filter)
	if err != nil {
		return nil, err
	}
	dst := image.NewRGBA(img.Bounds().Sub(img.Bounds().Min))
	if err := frame.Apply(id, img, dst); err != nil {
		return nil, err
	}
	return dst, nil
}

// Render validates opts and renders the current cuts, or the whole source
// when none are marked.
func (s *Session) Render(ctx context.Context, opts Options) (sink.Artifact, error) {
	info, ok := s.Info()
	if !ok {
		return sink.Artifact{}, services.Wrap(services.ErrValidation, "editing", "render", "no source loaded", source.ErrNotLoaded)
	}
	opts.normalize()
	if err := validateOptions(s.validate, opts); err != nil {
		return sink.Artifact{}, err
	}
	res, err := render.ParseResolution(opts.Resolution)
	if err != nil {
		return sink.Artifact{}, err
	}
	// An unrecognised name is passed through so the sequencer reports it
	// as a priming failure.
	filterID, parseErr := frame.Parse(opts.Filter)
	if parseErr != nil {
		filterID = frame.FilterID(opts.Filter)
	}

	settings := render.Settings{
		Filter:        filterID,
		Resolution:    res,
		PlaybackSpeed: opts.PlaybackSpeed,
		FrameRate:     opts.FrameRate,
	}
	if opts.Audio && info.HasAudio {
		settings.AudioSource = info.Path
	}
	job := render.NewJob(s.registry.Snapshot(), s.src.Duration(), settings)
	return s.sequencer.Render(ctx, job)
}

// Cancel stops an active render.
func (s *Session) Cancel() bool { return s.sequencer.Cancel() }

// Status reports render progress.
func (s *Session) Status() render.Progress { return s.sequencer.Status() }

// Save writes artifact into dir and returns the file path.
func (s *Session) Save(artifact sink.Artifact, dir string) (string, error) {
	if len(artifact.Data) == 0 {
		return "", services.Wrap(services.ErrValidation, "editing", "save", "artifact is empty", sink.ErrEncodingFailed)
	}
	name := strings.TrimSpace(artifact.Filename)
	if name == "" {
		name = "fluxrender." + artifact.Extension
	}
	path := uniquePath(filepath.Join(dir, filepath.Base(name)))
	if err := fileutil.WriteFileAtomic(path, artifact.Data, 0o644); err != nil {
		return "", services.Wrap(services.ErrTransient, "editing", "save", path, err)
	}
	s.logger.Info("render saved", logging.String("path", path), logging.Int("bytes", len(artifact.Data)))
	return path, nil
}

// uniquePath appends -1, -2, ... before the extension until path is unused.
func uniquePath(path string) string {
	if !fileutil.FileExists(path) {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d%s", stem, i, ext)
		if !fileutil.FileExists(candidate) {
			return candidate
		}
	}
}

// Close releases the source.
func (s *Session) Close() error {
	s.sequencer.Cancel()
	return s.src.Close()
}
