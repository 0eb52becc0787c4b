package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/dramaplay/internal/script"
	"github.com/dgnsrekt/dramaplay/internal/synth"
	"github.com/spf13/viper"
)

func loadYAML(t *testing.T, yml string) (Config, error) {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewBufferString(yml)); err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}
	return Load(v)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv("ELEVENLABS_API_KEY", "")

	cfg, err := loadYAML(t, "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ElevenLabs.Model != synth.DefaultModel {
		t.Errorf("Expected default model, got %q", cfg.ElevenLabs.Model)
	}
	if cfg.ElevenLabs.Timeout != 30*time.Second {
		t.Errorf("Expected 30s timeout, got %s", cfg.ElevenLabs.Timeout)
	}
	if cfg.Playback.Lookahead != 2 {
		t.Errorf("Expected lookahead 2, got %d", cfg.Playback.Lookahead)
	}
	if !strings.HasSuffix(cfg.Cache.Dir, AppName) {
		t.Errorf("Unexpected cache dir %q", cfg.Cache.Dir)
	}
	if cfg.VoiceFor(script.ExamPassage) != synth.DefaultVoices[script.ExamPassage] {
		t.Error("Expected the mode's default voice")
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("ELEVENLABS_API_KEY", "xi-secret")
	t.Setenv("DRAMAPLAY_ESPEAK", "/opt/espeak-ng")

	cfg, err := loadYAML(t, `
elevenlabs:
  voice: custom-voice
  timeout: 5s
playback:
  mode: exam_passage
  lookahead: 4
cache:
  dir: ~/dp-cache
  max_size_mb: 50
fallback:
  engine: none
  speed: 1.5
`)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.VoiceFor(script.ChildrenBook) != "custom-voice" {
		t.Errorf("Configured voice should win, got %q", cfg.VoiceFor(script.ChildrenBook))
	}
	if cfg.ElevenLabs.Timeout != 5*time.Second {
		t.Errorf("Expected 5s, got %s", cfg.ElevenLabs.Timeout)
	}
	if cfg.Playback.Mode != "exam_passage" || cfg.Playback.Lookahead != 4 {
		t.Errorf("Unexpected playback config %+v", cfg.Playback)
	}
	if strings.HasPrefix(cfg.Cache.Dir, "~") {
		t.Errorf("Cache dir should be expanded, got %q", cfg.Cache.Dir)
	}
	if cfg.MaxCacheBytes() != 50*1024*1024 {
		t.Errorf("Unexpected cache bytes %d", cfg.MaxCacheBytes())
	}
	if cfg.Secrets.ElevenLabsKey != "xi-secret" {
		t.Error("API key should come from the environment")
	}
	if cfg.Fallback.Binary != "/opt/espeak-ng" {
		t.Errorf("DRAMAPLAY_ESPEAK should override the binary, got %q", cfg.Fallback.Binary)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"bad mode", func(c *Config) { c.Playback.Mode = "radio" }},
		{"negative rpm", func(c *Config) { c.ElevenLabs.RequestsPM = -1 }},
		{"zero timeout", func(c *Config) { c.ElevenLabs.Timeout = 0 }},
		{"lookahead", func(c *Config) { c.Playback.Lookahead = 11 }},
		{"sample rate", func(c *Config) { c.Playback.SampleRate = 22050 }},
		{"output format", func(c *Config) { c.ElevenLabs.OutputFormat = "pcm_44100" }},
		{"rate mismatch", func(c *Config) { c.Playback.SampleRate = 48000 }},
		{"cache size", func(c *Config) { c.Cache.MaxSizeMB = 0 }},
		{"compression", func(c *Config) { c.Cache.Compression = 23 }},
		{"engine", func(c *Config) { c.Fallback.Engine = "piper" }},
		{"speed", func(c *Config) { c.Fallback.Speed = 5 }},
		{"volume", func(c *Config) { c.Fallback.Volume = -1 }},
	}

	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("Defaults should validate: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestLoadRateMismatch(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	_, err := loadYAML(t, `
elevenlabs:
  output_format: mp3_44100_128
playback:
  sample_rate: 48000
`)
	if err == nil {
		t.Fatal("A sample rate the output format cannot produce should be rejected")
	}
	if !strings.Contains(err.Error(), "mp3_44100_128") {
		t.Errorf("Error should name the output format, got %v", err)
	}
}

func TestConfigureViperEnv(t *testing.T) {
	t.Setenv("DRAMAPLAY_PLAYBACK_LOOKAHEAD", "7")

	v := viper.New()
	if err := ConfigureViper(v, filepath.Join(t.TempDir(), "missing.yml")); err != nil {
		t.Fatal(err)
	}
	if v.GetInt("playback.lookahead") != 7 {
		t.Errorf("Expected env override, got %d", v.GetInt("playback.lookahead"))
	}
}

func TestReadMissingFile(t *testing.T) {
	t.Setenv("DRAMAPLAY_CONFIG_HOME", t.TempDir())

	v := viper.New()
	if err := ConfigureViper(v, ""); err != nil {
		t.Fatal(err)
	}
	if err := Read(v); err != nil {
		t.Errorf("Missing config should not be an error: %v", err)
	}
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dramaplay.yml")
	if err := os.WriteFile(path, []byte("a: 1\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 8)
	if err := Watch(ctx, path, func() { changed <- struct{}{} }); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	// unrelated files in the same directory are ignored
	if err := os.WriteFile(filepath.Join(dir, "other.yml"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	select {
	case <-changed:
		t.Fatal("Unrelated file should not trigger a change")
	case <-time.After(3 * settle):
	}

	if err := os.WriteFile(path, []byte("a: 2\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for change notification")
	}
}
