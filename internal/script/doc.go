// Package script defines the audio drama script model: an ordered list of
// narration and sound-effect items, the presentation mode they were written
// for, and helpers to load, save and render them.
package script
