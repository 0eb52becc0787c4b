// Package speech provides on-device speech used when remote synthesis
// fails. Every utterance reports its outcome exactly once on a channel.
package speech
