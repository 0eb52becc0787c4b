package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/dramaplay/internal/script"
	"github.com/dgnsrekt/dramaplay/internal/synth"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"
)

// AppName names config, cache and log locations.
const AppName = "dramaplay"

// Config is the complete application configuration.
type Config struct {
	ElevenLabs ElevenLabsConfig `yaml:"elevenlabs" mapstructure:"elevenlabs"`
	Playback   PlaybackConfig   `yaml:"playback" mapstructure:"playback"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Fallback   FallbackConfig   `yaml:"fallback" mapstructure:"fallback"`
	Generate   GenerateConfig   `yaml:"generate" mapstructure:"generate"`

	// Secrets come from the environment only.
	Secrets Secrets `yaml:"-" mapstructure:"-"`
}

// ElevenLabsConfig configures remote synthesis.
type ElevenLabsConfig struct {
	BaseURL      string        `yaml:"base_url" mapstructure:"base_url"`
	Model        string        `yaml:"model" mapstructure:"model"`
	Voice        string        `yaml:"voice" mapstructure:"voice"` // empty picks the mode's voice
	OutputFormat string        `yaml:"output_format" mapstructure:"output_format"`
	RequestsPM   int           `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// PlaybackConfig configures the player.
type PlaybackConfig struct {
	Mode       string `yaml:"mode" mapstructure:"mode"`
	Lookahead  int    `yaml:"lookahead" mapstructure:"lookahead"`
	SampleRate int    `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// CacheConfig configures the persistent synthesis cache.
type CacheConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	Dir         string `yaml:"dir" mapstructure:"dir"`
	MaxSizeMB   int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	Compression int    `yaml:"compression" mapstructure:"compression"` // zstd level, 0 disables
}

// FallbackConfig configures local speech.
type FallbackConfig struct {
	Engine string  `yaml:"engine" mapstructure:"engine"` // espeak or none
	Binary string  `yaml:"binary" mapstructure:"binary"`
	Voice  string  `yaml:"voice" mapstructure:"voice"`
	Speed  float64 `yaml:"speed" mapstructure:"speed"`
	Volume float64 `yaml:"volume" mapstructure:"volume"`
}

// GenerateConfig configures script generation.
type GenerateConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Model       string  `yaml:"model" mapstructure:"model"`
	Temperature float32 `yaml:"temperature" mapstructure:"temperature"`
	Level       string  `yaml:"level" mapstructure:"level"`
	Language    string  `yaml:"language" mapstructure:"language"`
}

// Secrets and toggles read from the environment.
type Secrets struct {
	ElevenLabsKey string `env:"ELEVENLABS_API_KEY"`
	OpenAIKey     string `env:"OPENAI_API_KEY"`
	Debug         bool   `env:"DRAMAPLAY_DEBUG"`
	ESpeak        string `env:"DRAMAPLAY_ESPEAK"` // overrides fallback.binary
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		ElevenLabs: ElevenLabsConfig{
			BaseURL:      synth.DefaultBaseURL,
			Model:        synth.DefaultModel,
			OutputFormat: synth.DefaultOutputFormat,
			RequestsPM:   120,
			Timeout:      30 * time.Second,
		},
		Playback: PlaybackConfig{
			Mode:       string(script.ChildrenBook),
			Lookahead:  2,
			SampleRate: 44100,
		},
		Cache: CacheConfig{
			Enabled:     true,
			MaxSizeMB:   200,
			Compression: 3,
		},
		Fallback: FallbackConfig{
			Engine: "espeak",
			Speed:  1.0,
			Volume: 1.0,
		},
		Generate: GenerateConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0.7,
			Level:       "intermediate",
		},
	}
}

// SetDefaults registers the defaults with v so that every key is known to
// viper, which AutomaticEnv needs to resolve nested keys.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("elevenlabs.base_url", d.ElevenLabs.BaseURL)
	v.SetDefault("elevenlabs.model", d.ElevenLabs.Model)
	v.SetDefault("elevenlabs.voice", d.ElevenLabs.Voice)
	v.SetDefault("elevenlabs.output_format", d.ElevenLabs.OutputFormat)
	v.SetDefault("elevenlabs.requests_per_minute", d.ElevenLabs.RequestsPM)
	v.SetDefault("elevenlabs.timeout", d.ElevenLabs.Timeout)

	v.SetDefault("playback.mode", d.Playback.Mode)
	v.SetDefault("playback.lookahead", d.Playback.Lookahead)
	v.SetDefault("playback.sample_rate", d.Playback.SampleRate)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("cache.max_size_mb", d.Cache.MaxSizeMB)
	v.SetDefault("cache.compression", d.Cache.Compression)

	v.SetDefault("fallback.engine", d.Fallback.Engine)
	v.SetDefault("fallback.binary", d.Fallback.Binary)
	v.SetDefault("fallback.voice", d.Fallback.Voice)
	v.SetDefault("fallback.speed", d.Fallback.Speed)
	v.SetDefault("fallback.volume", d.Fallback.Volume)

	v.SetDefault("generate.base_url", d.Generate.BaseURL)
	v.SetDefault("generate.model", d.Generate.Model)
	v.SetDefault("generate.temperature", d.Generate.Temperature)
	v.SetDefault("generate.level", d.Generate.Level)
	v.SetDefault("generate.language", d.Generate.Language)
}

// ConfigureViper sets up file discovery and environment binding on v.
// An explicit file takes precedence over the search path.
func ConfigureViper(v *viper.Viper, file string) error {
	SetDefaults(v)
	v.SetEnvPrefix(AppName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		path, err := ExpandPath(file)
		if err != nil {
			return err
		}
		v.SetConfigFile(path)
		return nil
	}

	dirs, err := ConfigDirs()
	if err != nil {
		return err
	}
	for _, d := range dirs {
		v.AddConfigPath(d)
	}
	v.SetConfigName(AppName)
	v.SetConfigType("yaml")
	return nil
}

// Read loads the config file into v. A missing file is not an error.
func Read(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			log.Debug("no configuration file found, using defaults")
			return nil
		}
		return fmt.Errorf("could not parse configuration file: %w", err)
	}
	log.Debug("using configuration file", "path", v.ConfigFileUsed())
	return nil
}

// Load builds a validated Config from v and the environment.
func Load(v *viper.Viper) (Config, error) {
	cfg := DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unable to decode configuration: %w", err)
	}

	secrets, err := env.ParseAs[Secrets]()
	if err != nil {
		return cfg, fmt.Errorf("error parsing environment: %w", err)
	}
	cfg.Secrets = secrets
	if secrets.ESpeak != "" {
		cfg.Fallback.Binary = secrets.ESpeak
	}

	if cfg.Cache.Dir == "" {
		if cfg.Cache.Dir, err = DefaultCacheDir(); err != nil {
			return cfg, err
		}
	}
	if cfg.Cache.Dir, err = ExpandPath(cfg.Cache.Dir); err != nil {
		return cfg, err
	}
	if cfg.Fallback.Binary != "" {
		if cfg.Fallback.Binary, err = ExpandPath(cfg.Fallback.Binary); err != nil {
			return cfg, err
		}
	}

	return cfg, cfg.Validate()
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if _, err := script.ParseMode(c.Playback.Mode); err != nil {
		return err
	}
	if c.ElevenLabs.RequestsPM < 0 || c.ElevenLabs.RequestsPM > 10000 {
		return fmt.Errorf("elevenlabs requests_per_minute must be between 0 and 10000, got %d", c.ElevenLabs.RequestsPM)
	}
	if c.ElevenLabs.Timeout <= 0 {
		return fmt.Errorf("elevenlabs timeout must be positive, got %s", c.ElevenLabs.Timeout)
	}
	if c.Playback.Lookahead < 0 || c.Playback.Lookahead > 10 {
		return fmt.Errorf("playback lookahead must be between 0 and 10, got %d", c.Playback.Lookahead)
	}
	if c.Playback.SampleRate != 44100 && c.Playback.SampleRate != 48000 {
		return fmt.Errorf("playback sample_rate must be 44100 or 48000, got %d", c.Playback.SampleRate)
	}
	rate, err := synth.FormatSampleRate(c.ElevenLabs.OutputFormat)
	if err != nil {
		return fmt.Errorf("elevenlabs output_format: %w", err)
	}
	if rate != c.Playback.SampleRate {
		return fmt.Errorf("playback sample_rate %d does not match elevenlabs output_format %q (%d Hz)",
			c.Playback.SampleRate, c.ElevenLabs.OutputFormat, rate)
	}
	if c.Cache.MaxSizeMB < 1 || c.Cache.MaxSizeMB > 10000 {
		return fmt.Errorf("cache max_size_mb must be between 1 and 10000 MB, got %d", c.Cache.MaxSizeMB)
	}
	if c.Cache.Compression < 0 || c.Cache.Compression > 22 {
		return fmt.Errorf("cache compression must be between 0 and 22, got %d", c.Cache.Compression)
	}
	switch c.Fallback.Engine {
	case "espeak", "none":
	default:
		return fmt.Errorf("fallback engine must be espeak or none, got %q", c.Fallback.Engine)
	}
	if c.Fallback.Speed < 0.1 || c.Fallback.Speed > 3.0 {
		return fmt.Errorf("fallback speed must be between 0.1 and 3.0, got %.2f", c.Fallback.Speed)
	}
	if c.Fallback.Volume < 0 || c.Fallback.Volume > 2.0 {
		return fmt.Errorf("fallback volume must be between 0.0 and 2.0, got %.2f", c.Fallback.Volume)
	}
	return nil
}

// VoiceFor returns the configured voice, or the default for mode.
func (c Config) VoiceFor(mode script.Mode) string {
	if c.ElevenLabs.Voice != "" {
		return c.ElevenLabs.Voice
	}
	return synth.DefaultVoices[mode]
}

// MaxCacheBytes returns the disk cache capacity in bytes.
func (c Config) MaxCacheBytes() int64 {
	return int64(c.Cache.MaxSizeMB) * 1024 * 1024
}

// ConfigDirs lists the directories searched for dramaplay.yml, most
// specific first.
func ConfigDirs() ([]string, error) {
	scope := gap.NewScope(gap.User, AppName)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		return nil, fmt.Errorf("could not find configuration directory: %w", err)
	}
	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, AppName)}, dirs...)
	}
	if c := os.Getenv("DRAMAPLAY_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}
	return append([]string{"."}, dirs...), nil
}

// DefaultConfigFile is where the config command creates a new file.
func DefaultConfigFile() (string, error) {
	dirs, err := ConfigDirs()
	if err != nil {
		return "", err
	}
	// skip the working directory
	return filepath.Join(dirs[1], AppName+".yml"), nil
}

// DefaultCacheDir is the user cache directory for dramaplay.
func DefaultCacheDir() (string, error) {
	if c := os.Getenv("XDG_CACHE_HOME"); c != "" {
		return filepath.Join(c, AppName), nil
	}
	dir, err := gap.NewScope(gap.User, AppName).CacheDir()
	if err != nil {
		return "", fmt.Errorf("could not find cache directory: %w", err)
	}
	return dir, nil
}

// ExpandPath expands a leading ~ and environment variables.
func ExpandPath(path string) (string, error) {
	p, err := homedir.Expand(os.ExpandEnv(path))
	if err != nil {
		return "", fmt.Errorf("unable to expand path %q: %w", path, err)
	}
	return p, nil
}
