package audio

import (
	"errors"
	"sync"
)

// Playback is the outcome of a single Play call. Its listeners belong to
// that attempt only, so a stopped attempt can never signal into a later one.
type Playback struct {
	id      uint64
	done    chan struct{}
	started bool

	mu       sync.Mutex
	finished bool
	err      error
	onEnded  func()
	onError  func(error)
}

func newPlayback(id uint64) *Playback {
	return &Playback{id: id, done: make(chan struct{})}
}

// ID identifies the attempt within its engine.
func (p *Playback) ID() uint64 {
	return p.id
}

// Started reports whether output began. A false value means Err already
// holds the start failure.
func (p *Playback) Started() bool {
	return p.started
}

// Done is closed when the attempt ends for any reason.
func (p *Playback) Done() <-chan struct{} {
	return p.done
}

// Err returns nil after a natural end, ErrInterrupted after Stop and the
// failure otherwise. It is only meaningful once Done is closed.
func (p *Playback) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Wait blocks until the attempt ends and returns Err.
func (p *Playback) Wait() error {
	<-p.done
	return p.Err()
}

// OnEnded registers the listener for a natural end. It fires at most once.
func (p *Playback) OnEnded(fn func()) {
	p.mu.Lock()
	if !p.finished {
		p.onEnded = fn
		p.mu.Unlock()
		return
	}
	err := p.err
	p.mu.Unlock()

	if err == nil && fn != nil {
		fn()
	}
}

// OnError registers the listener for a failed attempt. It fires at most
// once and never for an interrupted attempt.
func (p *Playback) OnError(fn func(error)) {
	p.mu.Lock()
	if !p.finished {
		p.onError = fn
		p.mu.Unlock()
		return
	}
	err := p.err
	p.mu.Unlock()

	if failed(err) && fn != nil {
		fn(err)
	}
}

func (p *Playback) finish(err error) {
	p.mu.Lock()
	if p.finished {
		p.mu.Unlock()
		return
	}
	p.finished = true
	p.err = err
	ended, errored := p.onEnded, p.onError
	p.onEnded, p.onError = nil, nil
	p.mu.Unlock()

	close(p.done)

	switch {
	case err == nil:
		if ended != nil {
			ended()
		}
	case failed(err):
		if errored != nil {
			errored(err)
		}
	}
}

func failed(err error) bool {
	return err != nil && !errors.Is(err, ErrInterrupted)
}
