// Package render drives a source decoder through a job's segments, filters
// each captured frame and feeds the encoder sink, producing one artifact.
//
// A Sequencer runs at most one job at a time. A job moves through
//
//	idle -> priming(i) -> capturing(i) -> ... -> draining -> finalizing -> done
//
// and ends in failed or cancelled when something goes wrong or the caller
// gives up. Frames are sampled on a Ticker at the output frame rate, so the
// output runs in wall-clock time like a screen capture of the playing source.
package render
