package timeline

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidRange reports a mark whose bounds are reversed, empty or outside
// the source duration.
var ErrInvalidRange = errors.New("invalid segment range")

const (
	// FullSegmentID identifies the synthetic whole-source segment.
	FullSegmentID    = "full"
	fullSegmentLabel = "Full Video"
)

// Segment is a half-open time range of the source, in seconds.
type Segment struct {
	ID    string
	Start float64
	End   float64
	Label string
}

// Duration returns End-Start, never negative.
func (s Segment) Duration() float64 {
	if s.End <= s.Start {
		return 0
	}
	return s.End - s.Start
}

func (s Segment) String() string {
	return fmt.Sprintf("%s [%.3f, %.3f]", s.Label, s.Start, s.End)
}

// Snapshot is an immutable ordered copy of the registry.
type Snapshot struct {
	segments []Segment
}

// Len returns the number of segments captured.
func (s Snapshot) Len() int { return len(s.segments) }

// At returns the segment at index i.
func (s Snapshot) At(i int) Segment { return s.segments[i] }

// Segments returns a copy of the captured segments.
func (s Snapshot) Segments() []Segment {
	return append([]Segment(nil), s.segments...)
}

// PlanSegments turns a snapshot into the list a render job walks. An empty
// snapshot becomes one segment spanning the whole source. Bounds are clamped
// to [0, duration]; a segment left empty by clamping is kept with zero length
// so it still appears in job accounting.
func PlanSegments(snap Snapshot, duration float64) []Segment {
	if duration < 0 || math.IsNaN(duration) {
		duration = 0
	}
	if snap.Len() == 0 {
		return []Segment{{ID: FullSegmentID, Start: 0, End: duration, Label: fullSegmentLabel}}
	}
	plan := make([]Segment, 0, snap.Len())
	for _, seg := range snap.segments {
		seg.Start = clamp(seg.Start, 0, duration)
		seg.End = clamp(seg.End, 0, duration)
		if seg.End < seg.Start {
			seg.End = seg.Start
		}
		plan = append(plan, seg)
	}
	return plan
}

// TotalDuration sums segment durations.
func TotalDuration(segments []Segment) float64 {
	var total float64
	for _, seg := range segments {
		total += seg.Duration()
	}
	return total
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(v, hi))
}
