// Package config loads, normalizes, and validates fluxrender configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the FLUXRENDER_OUTPUT_DIR
// environment override. Render defaults (resolution, filter, speed, capture
// rate, seek timeout) live here so the CLI and the editing session agree on
// what an unflagged render means.
package config
