// Package ffprobe wraps the ffprobe CLI and decodes its JSON output into
// typed streams and format metadata (duration, dimensions, frame rate).
package ffprobe
