// Package sink turns a stream of rendered frames into one finished video file.
//
// An Encoder picks the first output format the local ffmpeg can produce from
// a fixed preference list (MP4/H.264, then WebM/VP9, then WebM/VP8), writes
// frames through a Vidio video writer into a private staging directory, and
// on Finish optionally muxes the trimmed source audio before handing back the
// bytes as an Artifact. Partial output is never exposed: Discard, or any
// failed Finish, removes the staging directory.
package sink
