// Package synth converts script items into audio bytes through the
// ElevenLabs text-to-speech API and lists the voices and models it offers.
//
// Client makes exactly one request per call; callers decide what a failure
// means. Caching wraps any Synthesizer with a persistent store.
package synth
