package speech

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// ErrUnavailable is reported when no local speech engine exists.
var ErrUnavailable = errors.New("local speech is unavailable")

// Speaker speaks text on the local device. The returned channel receives
// exactly one value, nil on success, and is then closed. Cancelling ctx
// stops the utterance.
type Speaker interface {
	Speak(ctx context.Context, text string) <-chan error
}

// Error is a failed local utterance.
type Error struct {
	Engine string
	Cause  error
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Engine, e.Cause)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

func settled(err error) <-chan error {
	ch := make(chan error, 1)
	ch <- err
	close(ch)
	return ch
}

// Config selects and tunes the local engine.
type Config struct {
	Engine string  // "espeak" or "none"
	Binary string  // explicit espeak binary, looked up on PATH otherwise
	Voice  string  // espeak voice, an English voice is chosen when empty
	Speed  float64 // 1.0 is 175 words per minute
	Volume float64 // 1.0 is espeak's default amplitude
}

// New returns the configured speaker, or Unavailable when it cannot run.
func New(cfg Config) Speaker {
	if cfg.Engine == "none" {
		return Unavailable{}
	}
	e, err := NewESpeak(cfg)
	if err != nil {
		log.Warn("local speech fallback disabled", "error", err)
		return Unavailable{}
	}
	return e
}

// Unavailable always reports ErrUnavailable.
type Unavailable struct{}

// Speak implements Speaker.
func (Unavailable) Speak(context.Context, string) <-chan error {
	return settled(ErrUnavailable)
}

// Recorder is a Speaker for tests. It remembers every text and settles
// each utterance with Err after Delay, or with the context error when
// cancelled first.
type Recorder struct {
	Err   error
	Delay time.Duration

	mu    sync.Mutex
	texts []string
}

// Speak implements Speaker.
func (r *Recorder) Speak(ctx context.Context, text string) <-chan error {
	r.mu.Lock()
	r.texts = append(r.texts, text)
	r.mu.Unlock()

	ch := make(chan error, 1)
	go func() {
		defer close(ch)
		t := time.NewTimer(r.Delay)
		defer t.Stop()
		select {
		case <-t.C:
			ch <- r.Err
		case <-ctx.Done():
			ch <- ctx.Err()
		}
	}()
	return ch
}

// Texts returns every text spoken so far.
func (r *Recorder) Texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}
