// Package audio plays synthesized clips through a single real-time output
// sink built on oto/v3. It decodes mp3 data, taps the decoded samples for
// frequency analysis and reports the outcome of every playback attempt
// through its own Playback value.
package audio
