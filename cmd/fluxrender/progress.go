package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"fluxrender/internal/render"
)

// progressReporter draws a bar on interactive terminals. Elsewhere it does
// nothing and the sequencer's sampled progress logs stand in.
type progressReporter struct {
	out   io.Writer
	bar   *progressbar.ProgressBar
	state render.State
}

func newProgressReporter(out io.Writer, interactive bool) *progressReporter {
	r := &progressReporter{out: out}
	if interactive {
		r.bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetDescription("starting"),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionClearOnFinish(),
		)
	}
	return r
}

func (r *progressReporter) update(p render.Progress) {
	if r.bar == nil {
		return
	}
	if p.State != r.state {
		r.state = p.State
		r.bar.Describe(stageLabel(p))
	}
	_ = r.bar.Set(p.Percent)
	if p.State.Terminal() {
		r.finish()
	}
}

// finish closes the bar, filled only when the render completed. Later calls
// do nothing.
func (r *progressReporter) finish() {
	if r.bar == nil {
		return
	}
	if r.state == render.Done {
		_ = r.bar.Finish()
	} else {
		_ = r.bar.Exit()
	}
	fmt.Fprintln(r.out)
	r.bar = nil
}

func stageLabel(p render.Progress) string {
	switch p.State {
	case render.Priming, render.Capturing:
		return fmt.Sprintf("%s %d/%d", p.State, p.Segment+1, p.Segments)
	default:
		return p.State.String()
	}
}

func isInteractive(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
