// Package editing ties one source handle, one segment registry and one render
// sequencer into the session a user works in: load a file, mark and reorder
// cuts, preview, render and save the result.
package editing
