package script

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind identifies what an item is rendered as.
type Kind string

const (
	// Speech is narrated text.
	Speech Kind = "speech"
	// SoundEffect is a cue describing a sound rather than words.
	SoundEffect Kind = "sfx"
)

// String returns the kind label used in transcripts.
func (k Kind) String() string {
	switch k {
	case Speech:
		return "Speech"
	case SoundEffect:
		return "SFX"
	default:
		return "Unknown"
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == Speech || k == SoundEffect
}

// VoiceSettings tunes remote synthesis for a single item. Nil fields fall
// back to the synthesizer defaults.
type VoiceSettings struct {
	Stability       *float64 `json:"stability,omitempty"`
	SimilarityBoost *float64 `json:"similarity_boost,omitempty"`
	Style           *float64 `json:"style,omitempty"`
	UseSpeakerBoost *bool    `json:"use_speaker_boost,omitempty"`
}

// Item is one unit of the timeline.
type Item struct {
	Kind          Kind           `json:"type"`
	Content       string         `json:"content"`
	VoiceSettings *VoiceSettings `json:"voice_settings,omitempty"`
}

var (
	// ErrEmptyContent is returned for items without text.
	ErrEmptyContent = errors.New("item content is empty")

	// ErrUnknownKind is returned for items with an unrecognised type.
	ErrUnknownKind = errors.New("unknown item type")
)

// NewSpeech returns a speech item.
func NewSpeech(content string) Item {
	return Item{Kind: Speech, Content: content}
}

// NewSoundEffect returns a sound-effect item.
func NewSoundEffect(content string) Item {
	return Item{Kind: SoundEffect, Content: content}
}

// Validate checks that the item can be synthesized.
func (it Item) Validate() error {
	if !it.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, it.Kind)
	}
	if strings.TrimSpace(it.Content) == "" {
		return ErrEmptyContent
	}
	return nil
}

// UnmarshalJSON accepts the generator's historical spellings of the kind
// and of the settings key.
func (it *Item) UnmarshalJSON(data []byte) error {
	type raw Item
	var w struct {
		raw
		CamelSettings *VoiceSettings `json:"voiceSettings"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r := w.raw
	if r.VoiceSettings == nil {
		r.VoiceSettings = w.CamelSettings
	}
	switch strings.ToLower(string(r.Kind)) {
	case "speech", "narration":
		r.Kind = Speech
	case "sfx", "sound_effect", "soundeffect":
		r.Kind = SoundEffect
	}
	*it = Item(r)
	return nil
}
