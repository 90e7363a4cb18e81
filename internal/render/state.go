package render

import (
	"errors"
	"fmt"
)

var (
	// ErrConcurrentRender rejects a job while another is active.
	ErrConcurrentRender = errors.New("a render is already in progress")
	// ErrRenderFailed matches every *FailedError.
	ErrRenderFailed = errors.New("render failed")
	// ErrRenderCancelled reports a job stopped by Cancel or its context.
	ErrRenderCancelled = errors.New("render cancelled")
	// ErrDecoderStalled reports a capture whose playback position stopped moving.
	ErrDecoderStalled = errors.New("decoder stalled")
)

// State is a sequencer state.
type State int

const (
	Idle State = iota
	Priming
	Capturing
	Draining
	Finalizing
	Done
	Failed
	Cancelled
)

var stateNames = [...]string{"idle", "priming", "capturing", "draining", "finalizing", "done", "failed", "cancelled"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether the state ends a job.
func (s State) Terminal() bool {
	return s == Done || s == Failed || s == Cancelled
}

// FailedError is the single error a failed job reports. It names the state
// the job was in and, for per-segment states, the segment index.
type FailedError struct {
	JobID   string
	Stage   State
	Segment int
	Err     error
}

func (e *FailedError) Error() string {
	where := e.Stage.String()
	if e.Stage == Priming || e.Stage == Capturing {
		where = fmt.Sprintf("%s segment %d", where, e.Segment)
	}
	return fmt.Sprintf("render failed while %s: %v", where, e.Err)
}

// Unwrap exposes both ErrRenderFailed and the cause to errors.Is.
func (e *FailedError) Unwrap() []error {
	return []error{ErrRenderFailed, e.Err}
}
