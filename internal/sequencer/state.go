package sequencer

import (
	"errors"
	"fmt"

	"github.com/dgnsrekt/dramaplay/internal/synth"
)

// State is the controller's playback state.
type State int

const (
	Idle State = iota
	Playing
	Completed
	Stopped
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case Completed:
		return "completed"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Session is a snapshot of the current run.
type Session struct {
	CurrentIndex int // -1 when idle
	IsPlaying    bool
	LastError    string
}

var (
	// ErrAlreadyPlaying is returned by Start during a run.
	ErrAlreadyPlaying = errors.New("sequencer is already playing")

	// ErrNotPlaying is returned by Stop outside a run.
	ErrNotPlaying = errors.New("sequencer is not playing")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("sequencer closed")
)

// Stage identifies which step of an item failed.
type Stage string

const (
	StageRemote   Stage = "remote"
	StagePlayback Stage = "playback"
	StageFallback Stage = "fallback"
)

// ItemError is a failure confined to one item.
type ItemError struct {
	Index int
	Stage Stage
	Err   error
}

// Error implements the error interface
func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d: %s: %v", e.Index+1, e.Stage, e.Err)
}

// Unwrap returns the underlying error
func (e *ItemError) Unwrap() error {
	return e.Err
}

// StatusKind tells the user what happened to an item.
type StatusKind int

const (
	// StatusFallback: the remote voice failed, the local voice takes over.
	StatusFallback StatusKind = iota
	// StatusQuota: the remote quota ran out, the local voice takes over.
	StatusQuota
	// StatusError: the item could not be voiced at all.
	StatusError
)

// String returns the string representation of the kind
func (k StatusKind) String() string {
	switch k {
	case StatusFallback:
		return "fallback"
	case StatusQuota:
		return "quota"
	default:
		return "error"
	}
}

// Status is a short-lived, user facing message about one item.
type Status struct {
	Kind    StatusKind
	Index   int
	Message string
	Err     error
}

func remoteStatus(index int, err error) Status {
	ie := &ItemError{Index: index, Stage: StageRemote, Err: err}
	switch {
	case synth.IsQuota(err):
		return Status{Kind: StatusQuota, Index: index, Err: ie,
			Message: "Quota exceeded. Using the local voice instead."}
	case errors.Is(err, synth.ErrUnauthorized):
		return Status{Kind: StatusFallback, Index: index, Err: ie,
			Message: "API key rejected. Using the local voice instead."}
	}
	return Status{Kind: StatusFallback, Index: index, Err: ie,
		Message: "Remote voice failed. Falling back to the local voice."}
}

func playbackStatus(index int, err error) Status {
	return Status{Kind: StatusFallback, Index: index,
		Err:     &ItemError{Index: index, Stage: StagePlayback, Err: err},
		Message: "Playback failed. Falling back to the local voice."}
}

func fallbackStatus(index int, err error) Status {
	return Status{Kind: StatusError, Index: index,
		Err:     &ItemError{Index: index, Stage: StageFallback, Err: err},
		Message: fmt.Sprintf("Could not voice item %d: %v", index+1, err)}
}

// Progress reports export progress.
type Progress struct {
	Processed int
	Total     int
}

// Fraction returns Processed/Total.
func (p Progress) Fraction() float64 {
	if p.Total == 0 {
		return 1
	}
	return float64(p.Processed) / float64(p.Total)
}

// Percent returns the whole percentage, rounded down.
func (p Progress) Percent() int {
	if p.Total == 0 {
		return 100
	}
	return p.Processed * 100 / p.Total
}
