// Package logging builds the slog loggers used across fluxrender.
//
// Two handlers are provided: a console handler that promotes component, job
// id, stage and segment index into a readable header line, and a JSON handler
// for machine consumption. Helpers standardize field names, derive fields from
// request contexts, and sample render progress so long jobs log at 5% steps
// instead of every frame.
package logging
