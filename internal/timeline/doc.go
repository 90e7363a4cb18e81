// Package timeline holds the ordered list of trim segments a user marks on a
// source video.
//
// Registry order is render order. Segments may overlap or run out of start
// order so the same interval can be replayed or clips re-sequenced; nothing
// is merged or sorted. Render jobs consume a Snapshot, which later edits never
// touch.
package timeline
