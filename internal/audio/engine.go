package audio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Config contains configuration for the playback engine.
type Config struct {
	SampleRate   int           // 44100 or 48000 Hz only
	Channels     int           // decoders produce stereo
	BufferSize   time.Duration // sink buffer, zero for the driver default
	PollInterval time.Duration // how often the active voice is checked

	NewOutput OutputFactory
	Decoder   Decoder
}

// DefaultConfig returns the configuration used for remote mp3 audio.
func DefaultConfig() Config {
	return Config{
		SampleRate:   44100,
		Channels:     2,
		PollInterval: 20 * time.Millisecond,
		NewOutput:    NewOtoOutput,
		Decoder:      MP3Decoder{},
	}
}

func validateConfig(cfg Config) error {
	if cfg.SampleRate != 44100 && cfg.SampleRate != 48000 {
		return fmt.Errorf("sample rate must be 44100 or 48000 Hz, got %d", cfg.SampleRate)
	}
	if cfg.Channels != 2 {
		return fmt.Errorf("channels must be 2 (stereo), got %d", cfg.Channels)
	}
	if cfg.PollInterval <= 0 {
		return errors.New("poll interval must be positive")
	}
	if cfg.NewOutput == nil {
		return errors.New("output factory is required")
	}
	if cfg.Decoder == nil {
		return errors.New("decoder is required")
	}
	return nil
}

// Engine owns one output sink and plays at most one clip at a time.
type Engine struct {
	cfg Config

	mu        sync.Mutex
	output    Output
	analyser  *Analyser
	active    *activeVoice
	suspended bool
	destroyed bool
	seq       uint64
}

type activeVoice struct {
	voice Voice
	pb    *Playback
	quit  chan struct{}
}

// NewEngine creates an engine. The output sink is opened lazily.
func NewEngine(cfg Config) (*Engine, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Engine{cfg: cfg}, nil
}

// InitializeAnalyser opens the sink if needed and returns the frequency tap.
// Repeated calls return the same analyser and resume a suspended sink.
func (e *Engine) InitializeAnalyser() (*Analyser, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.destroyed {
		return nil, ErrDestroyed
	}
	if err := e.ensureOutputLocked(); err != nil {
		return nil, err
	}
	if err := e.resumeLocked(); err != nil {
		return nil, err
	}
	if e.analyser == nil {
		e.analyser = NewAnalyser()
		log.Debug("audio analyser created", "fft", FFTSize)
	}
	return e.analyser, nil
}

// Play stops any active clip and starts clip. It returns once output has
// started or the start failed; failures are reported through the Playback.
func (e *Engine) Play(clip *Clip) *Playback {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.seq++
	pb := newPlayback(e.seq)

	if e.destroyed {
		pb.finish(&PlaybackError{Stage: StageStart, Cause: ErrDestroyed})
		return pb
	}

	e.stopActiveLocked()

	data, err := clip.bytes()
	if err != nil {
		pb.finish(&PlaybackError{Stage: StageOpen, Cause: err})
		return pb
	}

	pcm, rate, err := e.cfg.Decoder.Decode(data)
	if err != nil {
		pb.finish(&PlaybackError{Stage: StageDecode, Cause: err})
		return pb
	}
	if rate != e.cfg.SampleRate {
		pb.finish(&PlaybackError{Stage: StageDecode, Cause: fmt.Errorf("%w: %d Hz", ErrSampleRate, rate)})
		return pb
	}

	if err := e.ensureOutputLocked(); err != nil {
		pb.finish(&PlaybackError{Stage: StageStart, Cause: err})
		return pb
	}
	if err := e.resumeLocked(); err != nil {
		pb.finish(&PlaybackError{Stage: StageStart, Cause: err})
		return pb
	}

	if e.analyser != nil {
		pcm = &tapReader{r: pcm, a: e.analyser}
	}

	voice := e.output.NewVoice(pcm)
	voice.Play()
	if err := voice.Err(); err != nil {
		_ = voice.Close()
		pb.finish(&PlaybackError{Stage: StageStart, Cause: err})
		return pb
	}

	pb.started = true
	a := &activeVoice{voice: voice, pb: pb, quit: make(chan struct{})}
	e.active = a
	go e.monitor(a)

	log.Debug("playback started", "id", pb.id, "bytes", clip.Len())
	return pb
}

func (e *Engine) monitor(a *activeVoice) {
	t := time.NewTicker(e.cfg.PollInterval)
	defer t.Stop()

	for {
		select {
		case <-a.quit:
			return
		case <-t.C:
			if err := a.voice.Err(); err != nil {
				e.settle(a, &PlaybackError{Stage: StageOutput, Cause: err})
				return
			}
			if !a.voice.IsPlaying() {
				e.settle(a, nil)
				return
			}
		}
	}
}

func (e *Engine) settle(a *activeVoice, err error) {
	e.mu.Lock()
	if e.active != a {
		e.mu.Unlock()
		return
	}
	e.active = nil
	e.mu.Unlock()

	_ = a.voice.Close()
	a.pb.finish(err)
	log.Debug("playback settled", "id", a.pb.id, "error", err)
}

// Pause halts the active clip. The position is not kept; a paused clip is
// finished with ErrInterrupted.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopActiveLocked()
}

// Stop halts the active clip and clears the analyser, so a stopped engine
// shows no spectrum.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopActiveLocked()
	if e.analyser != nil {
		e.analyser.Reset()
	}
}

func (e *Engine) stopActiveLocked() {
	a := e.active
	if a == nil {
		return
	}
	e.active = nil
	close(a.quit)
	a.voice.Pause()
	_ = a.voice.Close()
	a.pb.finish(ErrInterrupted)
}

// IsPlaying reports whether a clip is active.
func (e *Engine) IsPlaying() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active != nil
}

// Suspend releases the device while idle. Play and InitializeAnalyser
// resume it.
func (e *Engine) Suspend() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.output == nil || e.suspended || e.destroyed {
		return nil
	}
	if err := e.output.Suspend(); err != nil {
		return fmt.Errorf("failed to suspend output: %w", err)
	}
	e.suspended = true
	if e.analyser != nil {
		e.analyser.Reset()
	}
	return nil
}

// Destroy stops playback and releases the sink. It may be called once.
func (e *Engine) Destroy() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.destroyed {
		return ErrDestroyed
	}
	e.destroyed = true
	e.stopActiveLocked()

	var err error
	if e.output != nil && !e.suspended {
		err = e.output.Suspend()
	}
	e.output = nil
	e.analyser = nil
	return err
}

func (e *Engine) ensureOutputLocked() error {
	if e.output != nil {
		return nil
	}
	out, err := e.cfg.NewOutput(e.cfg)
	if err != nil {
		return fmt.Errorf("failed to open output: %w", err)
	}
	e.output = out
	e.suspended = false
	log.Debug("audio output opened", "rate", e.cfg.SampleRate, "channels", e.cfg.Channels)
	return nil
}

func (e *Engine) resumeLocked() error {
	if !e.suspended {
		return nil
	}
	if err := e.output.Resume(); err != nil {
		return fmt.Errorf("failed to resume output: %w", err)
	}
	e.suspended = false
	return nil
}
