// Package source exposes a loaded video file as a seekable, playable handle.
//
// Load probes the file with ffprobe. Seek restarts an ffmpeg rawvideo decoder
// at the requested time and blocks until the first frame at or after it has
// been decoded, bounded by a timeout. Play paces decoded frames against the
// wall clock at the requested speed, publishing the most recent one for
// callers that sample on their own cadence.
package source
