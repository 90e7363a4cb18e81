// Package preflight checks the host before a render: configured directories
// must be usable and the staging volume must have room for encoder scratch
// files.
package preflight
