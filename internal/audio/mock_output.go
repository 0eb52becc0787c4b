package audio

import (
	"io"
	"sync"
	"sync/atomic"
)

// MockOutput is an Output that consumes PCM without producing sound.
type MockOutput struct {
	// Manual voices keep playing after their data is consumed until Finish
	// is called on them.
	Manual bool

	// StartErr is reported by every new voice straight after Play.
	StartErr error

	// Callbacks
	OnVoice func(v *MockVoice)

	mu     sync.Mutex
	voices []*MockVoice

	voiceCount   atomic.Int64
	suspendCount atomic.Int64
	resumeCount  atomic.Int64
}

// NewMockOutput returns a factory that always hands out out.
func NewMockOutput(out *MockOutput) OutputFactory {
	return func(Config) (Output, error) {
		return out, nil
	}
}

func (m *MockOutput) NewVoice(r io.Reader) Voice {
	v := &MockVoice{r: r, manual: m.Manual, startErr: m.StartErr}

	m.mu.Lock()
	m.voices = append(m.voices, v)
	m.mu.Unlock()
	m.voiceCount.Add(1)

	if m.OnVoice != nil {
		m.OnVoice(v)
	}
	return v
}

func (m *MockOutput) Suspend() error {
	m.suspendCount.Add(1)
	return nil
}

func (m *MockOutput) Resume() error {
	m.resumeCount.Add(1)
	return nil
}

// Voices returns every voice created so far.
func (m *MockOutput) Voices() []*MockVoice {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*MockVoice(nil), m.voices...)
}

// Last returns the most recently created voice.
func (m *MockOutput) Last() *MockVoice {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.voices) == 0 {
		return nil
	}
	return m.voices[len(m.voices)-1]
}

func (m *MockOutput) VoiceCount() int64   { return m.voiceCount.Load() }
func (m *MockOutput) SuspendCount() int64 { return m.suspendCount.Load() }
func (m *MockOutput) ResumeCount() int64  { return m.resumeCount.Load() }

// MockVoice drains its reader in the background.
type MockVoice struct {
	r        io.Reader
	manual   bool
	startErr error

	mu       sync.Mutex
	playing  bool
	closed   bool
	err      error
	consumed int64
	drained  chan struct{}
}

func (v *MockVoice) Play() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.playing || v.closed {
		return
	}
	if v.startErr != nil {
		v.err = v.startErr
		return
	}
	v.playing = true
	v.drained = make(chan struct{})
	go v.drain(v.drained)
}

func (v *MockVoice) drain(done chan struct{}) {
	defer close(done)

	n, err := io.Copy(io.Discard, v.r)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.consumed = n
	if err != nil && v.err == nil {
		v.err = err
	}
	if !v.manual {
		v.playing = false
	}
}

// Finish ends a manual voice, with err as its failure if non-nil.
func (v *MockVoice) Finish(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.err = err
	v.playing = false
}

// Drained blocks until the voice has consumed all of its data.
func (v *MockVoice) Drained() {
	v.mu.Lock()
	ch := v.drained
	v.mu.Unlock()
	if ch != nil {
		<-ch
	}
}

// Consumed returns the number of PCM bytes read.
func (v *MockVoice) Consumed() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.consumed
}

func (v *MockVoice) Pause() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.playing = false
}

func (v *MockVoice) IsPlaying() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.playing
}

func (v *MockVoice) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

func (v *MockVoice) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	v.playing = false
	return nil
}

// Closed reports whether Close was called.
func (v *MockVoice) Closed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}
