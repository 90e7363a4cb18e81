package sink

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	vidio "github.com/AlexEidt/Vidio"
	"github.com/dustin/go-humanize"
	"golang.org/x/image/draw"

	"fluxrender/internal/deps"
	"fluxrender/internal/logging"
	"fluxrender/internal/services"
)

// Config describes one encoding session.
type Config struct {
	Width     int
	Height    int
	FrameRate float64
	Bitrate   int
	// Audio is optional; nil renders silent output.
	Audio *AudioPlan
}

// Session accepts frames for one render and produces its artifact.
type Session interface {
	Format() Format
	PushFrame(img image.Image) error
	Finish(ctx context.Context) (Artifact, error)
	Discard() error
}

// FrameWriter consumes packed RGBA frames. *vidio.VideoWriter satisfies it
// through vidioWriter.
type FrameWriter interface {
	Write(frame []byte) error
	Close() error
}

// WriterFactory opens a FrameWriter for path.
type WriterFactory func(path string, width, height int, opts *vidio.Options) (FrameWriter, error)

// Options configures an Encoder. Zero values use ffmpeg on PATH, the system
// temp directory and real Vidio writers.
type Options struct {
	FFmpegBinary string
	StagingDir   string
	Logger       *slog.Logger
	Runner       deps.Runner
	NewWriter    WriterFactory
	Now          func() time.Time
}

// Encoder opens sessions against the local ffmpeg.
type Encoder struct {
	opts   Options
	logger *slog.Logger

	once     sync.Once
	encoders deps.EncoderSet
	probeErr error
}

// NewEncoder constructs an Encoder.
func NewEncoder(opts Options) *Encoder {
	if strings.TrimSpace(opts.FFmpegBinary) == "" {
		opts.FFmpegBinary = "ffmpeg"
	}
	if opts.NewWriter == nil {
		opts.NewWriter = newVidioWriter
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Encoder{opts: opts, logger: logging.NewComponentLogger(opts.Logger, "sink")}
}

// Formats reports the preferred formats usable on this host.
func (e *Encoder) Formats(ctx context.Context) ([]Format, error) {
	available, err := e.availableEncoders(ctx)
	if err != nil {
		return nil, err
	}
	var out []Format
	for _, f := range Preferences {
		if available.Has(f.VideoCodec) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (e *Encoder) availableEncoders(ctx context.Context) (deps.EncoderSet, error) {
	e.once.Do(func() {
		e.encoders, e.probeErr = deps.Encoders(ctx, e.opts.Runner, e.opts.FFmpegBinary)
	})
	return e.encoders, e.probeErr
}

// Open allocates a staging directory and video writer in the first supported
// format.
func (e *Encoder) Open(ctx context.Context, cfg Config) (Session, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.FrameRate <= 0 {
		return nil, services.Wrap(services.ErrValidation, "sink", "open",
			fmt.Sprintf("invalid geometry %dx%d@%v", cfg.Width, cfg.Height, cfg.FrameRate), nil)
	}
	available, err := e.availableEncoders(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "sink", "open", "list encoders", fmt.Errorf("%w: %w", ErrEncoderUnsupported, err))
	}
	format, err := SelectFormat(available)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "sink", "open", "ffmpeg lacks libx264, libvpx-vp9 and libvpx", err)
	}

	if e.opts.StagingDir != "" {
		if err := os.MkdirAll(e.opts.StagingDir, 0o755); err != nil {
			return nil, fmt.Errorf("create staging dir: %w", err)
		}
	}
	dir, err := os.MkdirTemp(e.opts.StagingDir, "render-*")
	if err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	videoPath := filepath.Join(dir, "video."+format.Extension)
	writer, err := e.opts.NewWriter(videoPath, cfg.Width, cfg.Height, &vidio.Options{
		FPS:     cfg.FrameRate,
		Bitrate: cfg.Bitrate,
		Codec:   format.VideoCodec,
	})
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, services.Wrap(services.ErrExternalTool, "sink", "open", "start video writer", fmt.Errorf("%w: %w", ErrEncodingFailed, err))
	}

	e.logger.Debug("encoder session opened",
		logging.String("mime_type", format.MIMEType),
		logging.String("codec", format.VideoCodec),
		logging.Int("width", cfg.Width),
		logging.Int("height", cfg.Height),
		logging.Int("bitrate", cfg.Bitrate),
	)
	return &session{
		encoder:   e,
		cfg:       cfg,
		format:    format,
		dir:       dir,
		videoPath: videoPath,
		writer:    writer,
		frame:     image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height)),
	}, nil
}

type session struct {
	encoder   *Encoder
	cfg       Config
	format    Format
	dir       string
	videoPath string
	writer    FrameWriter
	frame     *image.RGBA

	mu     sync.Mutex
	frames int
	closed bool
}

func (s *session) Format() Format { return s.format }

// PushFrame writes img, which must already be at the session size.
func (s *session) PushFrame(img image.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return services.Wrap(services.ErrValidation, "sink", "push frame", "session closed", ErrEncodingFailed)
	}
	if err := s.writer.Write(s.packed(img)); err != nil {
		return services.Wrap(services.ErrExternalTool, "sink", "push frame", fmt.Sprintf("frame %d", s.frames), fmt.Errorf("%w: %w", ErrEncodingFailed, err))
	}
	s.frames++
	return nil
}

// packed returns the frame's pixels as tightly packed RGBA rows.
func (s *session) packed(img image.Image) []byte {
	if rgba, ok := img.(*image.RGBA); ok &&
		rgba.Rect.Min == (image.Point{}) &&
		rgba.Rect.Dx() == s.cfg.Width && rgba.Rect.Dy() == s.cfg.Height &&
		rgba.Stride == s.cfg.Width*4 {
		return rgba.Pix
	}
	draw.Draw(s.frame, s.frame.Rect, img, img.Bounds().Min, draw.Src)
	return s.frame.Pix
}

// Finish closes the writer, attaches audio when requested and returns the
// artifact. The staging directory is removed either way.
func (s *session) Finish(ctx context.Context) (Artifact, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Artifact{}, services.Wrap(services.ErrValidation, "sink", "finish", "session closed", ErrEncodingFailed)
	}
	s.closed = true
	frames := s.frames
	s.mu.Unlock()
	defer os.RemoveAll(s.dir)

	closeErr := s.writer.Close()
	if frames == 0 {
		return Artifact{}, services.Wrap(services.ErrValidation, "sink", "finish", "no frames were pushed", ErrEncodingFailed)
	}
	if closeErr != nil {
		return Artifact{}, services.Wrap(services.ErrExternalTool, "sink", "finish", "close video writer", fmt.Errorf("%w: %w", ErrEncodingFailed, closeErr))
	}

	outputPath := s.videoPath
	hasAudio := false
	if s.cfg.Audio != nil {
		if muxed, err := s.muxAudio(ctx); err != nil {
			logging.WarnWithContext(s.encoder.logger, "audio track not attached", "audio_mux_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that the source has a decodable audio stream"),
				logging.String(logging.FieldImpact, "render is delivered without sound"),
			)
		} else if muxed != "" {
			outputPath, hasAudio = muxed, true
		}
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		return Artifact{}, services.Wrap(services.ErrExternalTool, "sink", "finish", "read encoded output", fmt.Errorf("%w: %w", ErrEncodingFailed, err))
	}
	if len(data) == 0 {
		return Artifact{}, services.Wrap(services.ErrExternalTool, "sink", "finish", "encoder produced an empty file", ErrEncodingFailed)
	}

	artifact := Artifact{
		Data:      data,
		MIMEType:  s.format.MIMEType,
		Extension: s.format.Extension,
		Filename:  ArtifactFilename(s.encoder.opts.Now(), s.format.Extension),
		Frames:    frames,
		Bytes:     int64(len(data)),
		HasAudio:  hasAudio,
	}
	s.encoder.logger.Info("render encoded",
		logging.String("filename", artifact.Filename),
		logging.String("mime_type", artifact.MIMEType),
		logging.Int("frames", frames),
		logging.String("size", humanize.Bytes(uint64(artifact.Bytes))),
		logging.Bool("audio", hasAudio),
	)
	return artifact, nil
}

// muxAudio copies the encoded video and the retimed source audio into a new
// container. An empty path means the plan had nothing to attach.
func (s *session) muxAudio(ctx context.Context) (string, error) {
	if s.format.AudioCodec == "" {
		return "", nil
	}
	graph := s.cfg.Audio.filterGraph()
	if graph == "" {
		return "", nil
	}
	out := filepath.Join(s.dir, "muxed."+s.format.Extension)
	args := []string{
		"-hide_banner", "-loglevel", "error", "-nostdin", "-y",
		"-i", s.videoPath,
		"-i", s.cfg.Audio.SourcePath,
		"-filter_complex", graph,
		"-map", "0:v", "-map", "[aout]",
		"-c:v", "copy", "-c:a", s.format.AudioCodec,
		"-shortest",
		out,
	}
	run := s.encoder.opts.Runner
	if run == nil {
		run = deps.ExecRunner
	}
	if output, err := run(ctx, s.encoder.opts.FFmpegBinary, args...); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "sink", "mux audio", strings.TrimSpace(string(output)), err)
	}
	return out, nil
}

// Discard drops all partial output. Safe to call more than once and after
// Finish.
func (s *session) Discard() error {
	s.mu.Lock()
	wasOpen := !s.closed
	s.closed = true
	s.mu.Unlock()
	if wasOpen {
		_ = s.writer.Close()
	}
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("remove session dir: %w", err)
	}
	return nil
}

type vidioWriter struct {
	w *vidio.VideoWriter
}

func newVidioWriter(path string, width, height int, opts *vidio.Options) (FrameWriter, error) {
	w, err := vidio.NewVideoWriter(path, width, height, opts)
	if err != nil {
		return nil, err
	}
	return vidioWriter{w: w}, nil
}

func (v vidioWriter) Write(frame []byte) error { return v.w.Write(frame) }

func (v vidioWriter) Close() error {
	v.w.Close()
	return nil
}
