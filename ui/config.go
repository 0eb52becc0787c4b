package ui

import "github.com/dgnsrekt/dramaplay/internal/script"

// Config contains TUI-specific configuration.
type Config struct {
	Title       string
	Mode        script.Mode
	EnableMouse bool
	AutoPlay    bool

	// Voice and model shown in the help view.
	VoiceID string
	ModelID string

	// Visualizer settings
	VisualizerHeight int `env:"DRAMAPLAY_VISUALIZER_HEIGHT" envDefault:"4"`
	FPS              int `env:"DRAMAPLAY_VISUALIZER_FPS"    envDefault:"30"`

	// For debugging the UI
	AltScreen bool `env:"DRAMAPLAY_ALT_SCREEN" envDefault:"true"`
}
