// Command fluxrender renders selected cuts of a video file, with an optional
// frame filter, into a single output file.
//
//	fluxrender render input.mp4 --segment 12:18.5 --segment 40:44 --filter sepia
//	fluxrender filters
//	fluxrender probe input.mp4
//	fluxrender deps
//	fluxrender config init|show|validate
package main
