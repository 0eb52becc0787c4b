package audio

import (
	"errors"
	"fmt"
)

var (
	// ErrClipReleased is returned when a released clip is opened or played.
	ErrClipReleased = errors.New("audio clip has been released")

	// ErrEmptyClip indicates a clip without data.
	ErrEmptyClip = errors.New("audio clip is empty")

	// ErrInterrupted is the result of a playback stopped before its end.
	ErrInterrupted = errors.New("playback interrupted")

	// ErrDestroyed is returned once the engine has been torn down.
	ErrDestroyed = errors.New("audio engine destroyed")

	// ErrSampleRate indicates decoded audio that does not match the sink.
	ErrSampleRate = errors.New("unsupported sample rate")
)

// Stage identifies where a playback attempt failed.
type Stage string

const (
	StageOpen   Stage = "open"
	StageDecode Stage = "decode"
	StageStart  Stage = "start"
	StageOutput Stage = "output"
)

// PlaybackError reports a failed playback attempt.
type PlaybackError struct {
	Stage Stage
	Cause error
}

// Error implements the error interface
func (e *PlaybackError) Error() string {
	return fmt.Sprintf("playback %s failed: %v", e.Stage, e.Cause)
}

// Unwrap returns the underlying error
func (e *PlaybackError) Unwrap() error {
	return e.Cause
}
