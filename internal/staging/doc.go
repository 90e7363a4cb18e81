// Package staging inspects and sweeps the encoder scratch directories left
// under paths.staging_dir. Each render session works in its own
// "render-*" directory that is removed when the session ends; anything still
// there afterwards belongs to a process that died mid-render.
package staging
