package sink

import (
	"fmt"
	"strconv"
	"strings"

	"fluxrender/internal/timeline"
)

// AudioPlan asks the sink to attach source audio for the rendered segments.
type AudioPlan struct {
	SourcePath string
	Segments   []timeline.Segment
	Speed      float64
}

// filterGraph builds an ffmpeg filter_complex that trims each non-empty
// segment from input 1, retimes it by speed and concatenates the pieces into
// [aout]. It returns "" when no segment has length.
func (p AudioPlan) filterGraph() string {
	var b strings.Builder
	n := 0
	tempo := atempoChain(p.Speed)
	for _, seg := range p.Segments {
		if seg.Duration() <= 0 {
			continue
		}
		fmt.Fprintf(&b, "[1:a]atrim=start=%s:end=%s,asetpts=PTS-STARTPTS", seconds(seg.Start), seconds(seg.End))
		if tempo != "" {
			b.WriteString("," + tempo)
		}
		fmt.Fprintf(&b, "[a%d];", n)
		n++
	}
	if n == 0 {
		return ""
	}
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "[a%d]", i)
	}
	fmt.Fprintf(&b, "concat=n=%d:v=0:a=1[aout]", n)
	return b.String()
}

// atempoChain expresses speed as atempo stages, each limited to [0.5, 2].
func atempoChain(speed float64) string {
	if speed <= 0 || speed == 1 {
		return ""
	}
	var stages []string
	for speed > 2 {
		stages = append(stages, "atempo=2")
		speed /= 2
	}
	for speed < 0.5 {
		stages = append(stages, "atempo=0.5")
		speed /= 0.5
	}
	if speed != 1 {
		stages = append(stages, "atempo="+strconv.FormatFloat(speed, 'f', -1, 64))
	}
	return strings.Join(stages, ",")
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
