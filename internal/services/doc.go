// Package services defines shared utilities consumed by the render pipeline
// packages and the CLI.
//
// Key responsibilities:
//   - Context helpers that stamp render job IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that keep failures
//     classifiable (caller mistake vs environment vs transient) after they
//     cross package boundaries.
//
// Domain packages keep their own sentinels (timeline.ErrInvalidRange,
// render.ErrConcurrentRender, ...) and wrap them with one of these markers so
// both errors.Is checks succeed.
package services
