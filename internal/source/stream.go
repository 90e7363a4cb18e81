package source

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"fluxrender/internal/services"
)

// Stream yields consecutive decoded frames at the source frame rate.
// Next returns io.EOF once the source is exhausted.
type Stream interface {
	Next() (*image.RGBA, error)
	Close() error
}

// Opener starts decoding info at start seconds. The returned stream lives
// until Close or until ctx is cancelled.
type Opener func(ctx context.Context, info Info, start float64) (Stream, error)

// FFmpegOpener decodes through an ffmpeg child process writing packed RGBA
// frames to its stdout.
func FFmpegOpener(binary string) Opener {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return func(ctx context.Context, info Info, start float64) (Stream, error) {
		ctx, cancel := context.WithCancel(ctx)
		cmd := exec.CommandContext(ctx, binary, decodeArgs(info, start)...) //nolint:gosec
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			cancel()
			return nil, fmt.Errorf("stdout pipe: %w", err)
		}
		stderr := &tailBuffer{limit: 4096}
		cmd.Stderr = stderr
		if err := cmd.Start(); err != nil {
			cancel()
			return nil, services.Wrap(services.ErrExternalTool, "source", "start decoder", binary, err)
		}
		return &pipeStream{
			cmd:       cmd,
			cancel:    cancel,
			reader:    bufio.NewReaderSize(stdout, info.Width*info.Height*4),
			width:     info.Width,
			height:    info.Height,
			stderr:    stderr,
			closeOnce: &sync.Once{},
		}, nil
	}
}

func decodeArgs(info Info, start float64) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-ss", strconv.FormatFloat(start, 'f', 3, 64),
		"-i", info.Path,
		"-an", "-sn",
		"-vf", "fps=" + strconv.FormatFloat(info.FrameRate, 'f', -1, 64),
		"-f", "rawvideo", "-pix_fmt", "rgba",
		"pipe:1",
	}
}

type pipeStream struct {
	cmd       *exec.Cmd
	cancel    context.CancelFunc
	reader    *bufio.Reader
	width     int
	height    int
	stderr    *tailBuffer
	closeOnce *sync.Once
	closed    atomic.Bool
}

func (s *pipeStream) Next() (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	_, err := io.ReadFull(s.reader, img.Pix)
	switch {
	case err == nil:
		return img, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		if waitErr := s.wait(); waitErr != nil && !s.closed.Load() {
			return nil, services.Wrap(services.ErrExternalTool, "source", "decode", s.stderr.String(), waitErr)
		}
		return nil, io.EOF
	default:
		return nil, err
	}
}

func (s *pipeStream) wait() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.cmd.Wait()
		s.cancel()
	})
	return err
}

func (s *pipeStream) Close() error {
	s.closed.Store(true)
	s.cancel()
	_ = s.wait()
	return nil
}

// tailBuffer keeps the last limit bytes written, enough for ffmpeg's final
// error lines.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   bytes.Buffer
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Write(p)
	if over := b.buf.Len() - b.limit; over > 0 {
		b.buf.Next(over)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(b.buf.String())
}
