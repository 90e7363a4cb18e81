// Package deps reports whether the external binaries fluxrender drives are
// installed and which encoders the local ffmpeg build provides.
package deps
