package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/dramaplay/internal/script"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL      = "https://api.elevenlabs.io"
	DefaultModel        = "eleven_turbo_v2_5"
	DefaultOutputFormat = "mp3_44100_128"

	DefaultStability       = 0.5
	DefaultSimilarityBoost = 0.75
	DefaultStyle           = 0.0
	DefaultSpeakerBoost    = true
)

// DefaultVoices maps each mode to its built-in voice.
var DefaultVoices = map[script.Mode]string{
	script.ChildrenBook: "EXAVITQu4vr4xnSDxMaL", // Bella
	script.ExamPassage:  "ErXwobaYiN019PkySvjV", // Antoni
}

// Synthesizer turns one item into encoded audio. The sequencer drives any
// implementation of it; Caching wraps one.
type Synthesizer interface {
	Synthesize(ctx context.Context, item script.Item, mode script.Mode, voiceID, modelID string) ([]byte, error)
}

// Config holds client settings.
type Config struct {
	APIKey            string
	BaseURL           string
	OutputFormat      string
	Timeout           time.Duration
	RequestsPerMinute int // zero disables pacing

	HTTPClient *http.Client
}

// Client calls the text-to-speech endpoint.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a client. Empty fields take package defaults.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = DefaultOutputFormat
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}

	c := &Client{cfg: cfg, http: hc}
	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return c
}

// OutputFormat is the format requested from the service.
func (c *Client) OutputFormat() string {
	return c.cfg.OutputFormat
}

// FormatSampleRate returns the sample rate of an mp3 output format such as
// mp3_44100_128.
func FormatSampleRate(format string) (int, error) {
	parts := strings.Split(format, "_")
	if len(parts) != 3 || parts[0] != "mp3" {
		return 0, fmt.Errorf("unsupported output format %q, expected mp3_<rate>_<kbps>", format)
	}
	rate, err := strconv.Atoi(parts[1])
	if err != nil || rate <= 0 {
		return 0, fmt.Errorf("invalid sample rate in output format %q", format)
	}
	return rate, nil
}

// Params is a fully resolved synthesis request.
type Params struct {
	Text         string
	VoiceID      string
	ModelID      string
	OutputFormat string
	Settings     Settings
}

// Settings are the voice settings sent with every request.
type Settings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// Resolve applies defaults for anything the caller left out.
func Resolve(item script.Item, mode script.Mode, voiceID, modelID string) Params {
	if voiceID == "" {
		voiceID = DefaultVoices[mode]
		if voiceID == "" {
			voiceID = DefaultVoices[script.ChildrenBook]
		}
	}
	if modelID == "" {
		modelID = DefaultModel
	}

	s := Settings{
		Stability:       DefaultStability,
		SimilarityBoost: DefaultSimilarityBoost,
		Style:           DefaultStyle,
		UseSpeakerBoost: DefaultSpeakerBoost,
	}
	if vs := item.VoiceSettings; vs != nil {
		if vs.Stability != nil {
			s.Stability = *vs.Stability
		}
		if vs.SimilarityBoost != nil {
			s.SimilarityBoost = *vs.SimilarityBoost
		}
		if vs.Style != nil {
			s.Style = *vs.Style
		}
		if vs.UseSpeakerBoost != nil {
			s.UseSpeakerBoost = *vs.UseSpeakerBoost
		}
	}

	return Params{Text: Text(item), VoiceID: voiceID, ModelID: modelID, OutputFormat: DefaultOutputFormat, Settings: s}
}

// Text is what gets spoken for item: sound effects become bracketed cues.
func Text(item script.Item) string {
	if item.Kind == script.SoundEffect {
		return "[" + item.Content + "]"
	}
	return item.Content
}

type ttsRequest struct {
	Text          string   `json:"text"`
	ModelID       string   `json:"model_id"`
	VoiceSettings Settings `json:"voice_settings"`
}

// Synthesize implements Synthesizer. It never retries.
func (c *Client) Synthesize(ctx context.Context, item script.Item, mode script.Mode, voiceID, modelID string) ([]byte, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	p := Resolve(item, mode, voiceID, modelID)
	p.OutputFormat = c.cfg.OutputFormat

	body, err := json.Marshal(ttsRequest{Text: p.Text, ModelID: p.ModelID, VoiceSettings: p.Settings})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s",
		c.cfg.BaseURL, url.PathEscape(p.VoiceID), url.QueryEscape(p.OutputFormat))

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("xi-api-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	log.Debug("synthesis request", "voice", p.VoiceID, "model", p.ModelID, "kind", item.Kind, "chars", len(p.Text))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, readRemoteError(resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, &RemoteError{Status: resp.StatusCode, Message: "empty audio response"}
	}
	return audio, nil
}

// readRemoteError turns an error response into a RemoteError. The service
// reports either {"detail":{"status":..,"message":..}} or {"detail":".."}.
func readRemoteError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	e := &RemoteError{Status: resp.StatusCode}

	var structured struct {
		Detail struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"detail"`
	}
	var plain struct {
		Detail string `json:"detail"`
	}

	switch {
	case json.Unmarshal(raw, &structured) == nil && structured.Detail.Message != "":
		e.Code = structured.Detail.Status
		e.Message = structured.Detail.Message
	case json.Unmarshal(raw, &plain) == nil && plain.Detail != "":
		e.Message = plain.Detail
	default:
		e.Message = strings.TrimSpace(string(raw))
	}
	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}
	return e
}
