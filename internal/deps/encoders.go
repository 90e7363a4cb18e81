package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs the command through os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// EncoderSet is the set of encoder names the local ffmpeg build reports.
type EncoderSet map[string]struct{}

// Has reports whether the named encoder is available.
func (s EncoderSet) Has(name string) bool {
	_, ok := s[strings.TrimSpace(name)]
	return ok
}

// Encoders lists the encoders compiled into ffmpeg. A nil runner executes the
// binary directly.
func Encoders(ctx context.Context, run Runner, ffmpeg string) (EncoderSet, error) {
	if run == nil {
		run = ExecRunner
	}
	if strings.TrimSpace(ffmpeg) == "" {
		ffmpeg = "ffmpeg"
	}
	output, err := run(ctx, ffmpeg, "-hide_banner", "-encoders")
	if err != nil {
		return nil, fmt.Errorf("list ffmpeg encoders: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return ParseEncoders(output), nil
}

// ParseEncoders reads `ffmpeg -encoders` output. Entries follow a six-column
// capability flag block (e.g. "V....D libx264  H.264 ...") after the legend,
// which ends at the "------" separator.
func ParseEncoders(output []byte) EncoderSet {
	set := EncoderSet{}
	scanner := bufio.NewScanner(bytes.NewReader(output))
	listing := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !listing {
			listing = strings.HasPrefix(line, "---")
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || len(fields[0]) != 6 {
			continue
		}
		set[fields[1]] = struct{}{}
	}
	return set
}
