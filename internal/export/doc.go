// Package export renders a script and its synthesized audio into files
// that can be used outside the player: SRT subtitles, a plain text
// transcript and the script JSON.
package export
