package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"fluxrender/internal/services"
)

type segmentRange struct {
	start, end float64
	label      string
}

// parseSegmentFlag accepts "START:END" in seconds, or "START-END" where
// both sides may use clock notation ([hh:]mm:ss[.fff]). An optional
// "=LABEL" suffix names the cut.
func parseSegmentFlag(value string) (segmentRange, error) {
	raw := strings.TrimSpace(value)
	var label string
	if i := strings.Index(raw, "="); i >= 0 {
		label = strings.TrimSpace(raw[i+1:])
		raw = strings.TrimSpace(raw[:i])
	}

	var left, right string
	var ok bool
	if strings.Contains(raw, "-") {
		left, right, ok = strings.Cut(raw, "-")
	} else {
		left, right, ok = strings.Cut(raw, ":")
	}
	if !ok {
		return segmentRange{}, segmentError(value, "expected START:END or START-END")
	}
	start, err := parseTimestamp(left)
	if err != nil {
		return segmentRange{}, segmentError(value, err.Error())
	}
	end, err := parseTimestamp(right)
	if err != nil {
		return segmentRange{}, segmentError(value, err.Error())
	}
	return segmentRange{start: start, end: end, label: label}, nil
}

func parseSegmentFlags(values []string) ([]segmentRange, error) {
	out := make([]segmentRange, 0, len(values))
	for _, v := range values {
		r, err := parseSegmentFlag(v)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func parseTimestamp(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	parts := strings.Split(value, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("timestamp %q has too many fields", value)
	}
	var total float64
	for i, part := range parts {
		n, err := strconv.ParseFloat(part, 64)
		if err != nil || n < 0 || math.IsInf(n, 0) || math.IsNaN(n) {
			return 0, fmt.Errorf("timestamp %q is not a non-negative number", value)
		}
		if i < len(parts)-1 && n != math.Trunc(n) {
			return 0, fmt.Errorf("timestamp %q has a fractional hour or minute", value)
		}
		total = total*60 + n
	}
	return total, nil
}

func segmentError(value, detail string) error {
	return services.Wrap(services.ErrValidation, "cli", "parse --segment", fmt.Sprintf("%q: %s", value, detail), nil)
}

func formatClock(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	ms := int64(math.Round(seconds * 1000))
	h, m, s := ms/3_600_000, (ms/60_000)%60, (ms/1000)%60
	ms %= 1000
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d.%03d", h, m, s, ms)
	}
	return fmt.Sprintf("%d:%02d.%03d", m, s, ms)
}
