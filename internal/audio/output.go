package audio

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ebitengine/oto/v3"
)

// bytesPerFrame is one signed 16-bit stereo frame.
const bytesPerFrame = 4

// Output is the real-time sink voices are played through.
type Output interface {
	NewVoice(r io.Reader) Voice
	Suspend() error
	Resume() error
}

// Voice plays one PCM stream on an Output.
type Voice interface {
	Play()
	Pause()
	IsPlaying() bool
	Err() error
	Close() error
}

// OutputFactory creates the sink on first use.
type OutputFactory func(cfg Config) (Output, error)

type otoOutput struct {
	ctx *oto.Context
}

// NewOtoOutput opens the system audio device. oto allows a single context
// per process, so only one engine may use this factory.
func NewOtoOutput(cfg Config) (Output, error) {
	op := &oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: cfg.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   cfg.BufferSize,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}

	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		return nil, errors.New("audio device did not become ready")
	}

	return &otoOutput{ctx: ctx}, nil
}

func (o *otoOutput) NewVoice(r io.Reader) Voice {
	return o.ctx.NewPlayer(r)
}

func (o *otoOutput) Suspend() error {
	return o.ctx.Suspend()
}

func (o *otoOutput) Resume() error {
	return o.ctx.Resume()
}
