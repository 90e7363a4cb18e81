// Package frame renders one decoded source frame into an output-sized RGBA
// buffer with a named visual filter applied.
//
// The filter set is closed: identity, grayscale, sepia, invert,
// contrast-boost, hue-rotate and blur. Each filter is a pure function of its
// input frame; nothing is remembered between calls, so effects that need
// previous frames cannot be expressed here.
package frame
