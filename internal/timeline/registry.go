package timeline

import (
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"

	"fluxrender/internal/services"
)

// Registry is the live, editable segment list. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	duration float64
	segments []Segment
	newID    func() string
}

// NewRegistry returns an empty registry bounded by duration seconds.
func NewRegistry(duration float64) *Registry {
	return &Registry{duration: duration, newID: uuid.NewString}
}

// SetDuration updates the bound used to validate new marks. Existing segments
// are left alone; PlanSegments clamps them at render time.
func (r *Registry) SetDuration(duration float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.duration = duration
}

// Duration returns the current source duration bound.
func (r *Registry) Duration() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.duration
}

// Mark appends a segment labelled "CUT n".
func (r *Registry) Mark(start, end float64) (Segment, error) {
	return r.MarkLabeled(start, end, "")
}

// MarkLabeled appends a segment with a caller-chosen label; an empty label
// falls back to "CUT n" where n is the segment's 1-based position at mark time.
func (r *Registry) MarkLabeled(start, end float64, label string) (Segment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := checkRange(start, end, r.duration); err != nil {
		return Segment{}, err
	}
	if label == "" {
		label = fmt.Sprintf("CUT %d", len(r.segments)+1)
	}
	seg := Segment{ID: r.newID(), Start: start, End: end, Label: label}
	r.segments = append(r.segments, seg)
	return seg, nil
}

func checkRange(start, end, duration float64) error {
	detail := ""
	switch {
	case math.IsNaN(start) || math.IsNaN(end):
		detail = "bounds must be numbers"
	case start >= end:
		detail = fmt.Sprintf("start %.3fs must be before end %.3fs", start, end)
	case start < 0 || end > duration:
		detail = fmt.Sprintf("range [%.3f, %.3f] outside source [0, %.3f]", start, end, duration)
	default:
		return nil
	}
	return services.Wrap(services.ErrValidation, "timeline", "mark segment", detail, ErrInvalidRange)
}

// Remove deletes the segment with id. Missing ids are ignored.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, seg := range r.segments {
		if seg.ID == id {
			r.segments = append(r.segments[:i:i], r.segments[i+1:]...)
			return true
		}
	}
	return false
}

// Move relocates the segment with id to index, clamped to the list bounds.
func (r *Registry) Move(id string, index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	from := -1
	for i, seg := range r.segments {
		if seg.ID == id {
			from = i
			break
		}
	}
	if from < 0 {
		return services.Wrap(services.ErrNotFound, "timeline", "move segment", fmt.Sprintf("no segment %q", id), nil)
	}
	index = max(0, min(index, len(r.segments)-1))
	if index == from {
		return nil
	}

	seg := r.segments[from]
	next := make([]Segment, 0, len(r.segments))
	next = append(next, r.segments[:from]...)
	next = append(next, r.segments[from+1:]...)
	next = append(next[:index], append([]Segment{seg}, next[index:]...)...)
	r.segments = next
	return nil
}

// Clear drops every segment, used when a new source is loaded.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.segments = nil
}

// Len returns the number of segments.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.segments)
}

// Segments returns a copy of the live list.
func (r *Registry) Segments() []Segment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Segment(nil), r.segments...)
}

// Snapshot captures the current list for a render job.
func (r *Registry) Snapshot() Snapshot {
	return Snapshot{segments: r.Segments()}
}
