package synth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dgnsrekt/dramaplay/internal/script"
)

type capturedRequest struct {
	method string
	path   string
	query  string
	header http.Header
	body   ttsRequest
}

func newTestServer(t *testing.T, status int, resp string, captured *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			captured.method = r.Method
			captured.path = r.URL.Path
			captured.query = r.URL.RawQuery
			captured.header = r.Header.Clone()
			b, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(b, &captured.body)
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSynthesizeSpeech(t *testing.T) {
	var got capturedRequest
	srv := newTestServer(t, http.StatusOK, "ID3audio", &got)
	c := NewClient(Config{APIKey: "key", BaseURL: srv.URL})

	audio, err := c.Synthesize(context.Background(), script.NewSpeech("hello"), script.ChildrenBook, "", "")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if string(audio) != "ID3audio" {
		t.Errorf("Unexpected audio %q", audio)
	}

	if got.method != http.MethodPost {
		t.Errorf("Expected POST, got %s", got.method)
	}
	if got.path != "/v1/text-to-speech/EXAVITQu4vr4xnSDxMaL" {
		t.Errorf("Unexpected path %s", got.path)
	}
	if got.query != "output_format=mp3_44100_128" {
		t.Errorf("Unexpected query %s", got.query)
	}
	if got.header.Get("xi-api-key") != "key" || got.header.Get("Accept") != "audio/mpeg" {
		t.Errorf("Missing headers: %v", got.header)
	}
	if got.body.Text != "hello" || got.body.ModelID != DefaultModel {
		t.Errorf("Unexpected body %+v", got.body)
	}
	want := Settings{Stability: 0.5, SimilarityBoost: 0.75, Style: 0, UseSpeakerBoost: true}
	if got.body.VoiceSettings != want {
		t.Errorf("Expected default settings %+v, got %+v", want, got.body.VoiceSettings)
	}
}

func TestSynthesizeSoundEffectAndOverrides(t *testing.T) {
	var got capturedRequest
	srv := newTestServer(t, http.StatusOK, "x", &got)
	c := NewClient(Config{APIKey: "key", BaseURL: srv.URL + "/"})

	stability := 0.2
	item := script.NewSoundEffect("glitter")
	item.VoiceSettings = &script.VoiceSettings{Stability: &stability}

	if _, err := c.Synthesize(context.Background(), item, script.ExamPassage, "", "eleven_v3"); err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if got.body.Text != "[glitter]" {
		t.Errorf("Sound effect should be bracketed, got %q", got.body.Text)
	}
	if got.path != "/v1/text-to-speech/ErXwobaYiN019PkySvjV" {
		t.Errorf("Exam mode should use its default voice, got %s", got.path)
	}
	if got.body.ModelID != "eleven_v3" {
		t.Errorf("Explicit model ignored: %s", got.body.ModelID)
	}
	if got.body.VoiceSettings.Stability != 0.2 || got.body.VoiceSettings.SimilarityBoost != 0.75 {
		t.Errorf("Override not merged with defaults: %+v", got.body.VoiceSettings)
	}
}

func TestSynthesizeExplicitVoice(t *testing.T) {
	var got capturedRequest
	srv := newTestServer(t, http.StatusOK, "x", &got)
	c := NewClient(Config{APIKey: "key", BaseURL: srv.URL})

	if _, err := c.Synthesize(context.Background(), script.NewSpeech("hi"), script.ChildrenBook, "voice-123", ""); err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if got.path != "/v1/text-to-speech/voice-123" {
		t.Errorf("Explicit voice ignored: %s", got.path)
	}
}

func TestSynthesizeErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		class  Class
		quota  bool
		rate   bool
		msg    string
	}{
		{
			name:   "quota",
			status: http.StatusUnauthorized,
			body:   `{"detail":{"status":"quota_exceeded","message":"This request exceeds your quota of 10000."}}`,
			class:  ClassAuth,
			quota:  true,
			msg:    "exceeds your quota",
		},
		{
			name:   "rate limit",
			status: http.StatusTooManyRequests,
			body:   `{"detail":"Too many concurrent requests"}`,
			class:  ClassRateLimit,
			rate:   true,
			msg:    "Too many concurrent requests",
		},
		{
			name:   "bad request",
			status: http.StatusBadRequest,
			body:   "text is too long",
			class:  ClassBadRequest,
			msg:    "text is too long",
		},
		{
			name:   "server",
			status: http.StatusBadGateway,
			body:   "",
			class:  ClassOther,
			msg:    "Bad Gateway",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.status, tt.body, nil)
			c := NewClient(Config{APIKey: "key", BaseURL: srv.URL})

			_, err := c.Synthesize(context.Background(), script.NewSpeech("x"), script.ChildrenBook, "", "")
			var re *RemoteError
			if !errors.As(err, &re) {
				t.Fatalf("Expected RemoteError, got %v", err)
			}
			if re.Status != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, re.Status)
			}
			if re.Class() != tt.class {
				t.Errorf("Expected class %s, got %s", tt.class, re.Class())
			}
			if IsQuota(err) != tt.quota {
				t.Errorf("IsQuota = %v, want %v", IsQuota(err), tt.quota)
			}
			if errors.Is(err, ErrRateLimited) != tt.rate {
				t.Errorf("ErrRateLimited match = %v, want %v", !tt.rate, tt.rate)
			}
			if !strings.Contains(re.Message, tt.msg) {
				t.Errorf("Expected message containing %q, got %q", tt.msg, re.Message)
			}
		})
	}
}

func TestSynthesizeMissingKey(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1"})
	if _, err := c.Synthesize(context.Background(), script.NewSpeech("x"), script.ChildrenBook, "", ""); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Expected ErrMissingAPIKey, got %v", err)
	}
}

func TestSynthesizeCanceled(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, "x", nil)
	c := NewClient(Config{APIKey: "key", BaseURL: srv.URL})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Synthesize(ctx, script.NewSpeech("x"), script.ChildrenBook, "", ""); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestListVoices(t *testing.T) {
	var got capturedRequest
	srv := newTestServer(t, http.StatusOK,
		`{"voices":[{"voice_id":"2","name":"Zed","labels":{"accent":"british"}},{"voice_id":"1","name":"Amy"}]}`, &got)
	c := NewClient(Config{APIKey: "key", BaseURL: srv.URL})

	voices, err := c.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices failed: %v", err)
	}
	if got.path != "/v1/voices" || got.method != http.MethodGet {
		t.Errorf("Unexpected request %s %s", got.method, got.path)
	}
	if len(voices) != 2 || voices[0].Name != "Amy" || voices[1].Labels["accent"] != "british" {
		t.Errorf("Unexpected voices %+v", voices)
	}
}

func TestListVoicesErrors(t *testing.T) {
	for status, msg := range map[int]string{
		http.StatusUnauthorized:    "Invalid API key",
		http.StatusTooManyRequests: "Rate limit exceeded",
	} {
		srv := newTestServer(t, status, "{}", nil)
		c := NewClient(Config{APIKey: "key", BaseURL: srv.URL})

		_, err := c.ListVoices(context.Background())
		var re *RemoteError
		if !errors.As(err, &re) || re.Message != msg {
			t.Errorf("Status %d: expected %q, got %v", status, msg, err)
		}
	}
}

func TestModels(t *testing.T) {
	m := Models()
	if len(m) != 5 {
		t.Fatalf("Expected 5 models, got %d", len(m))
	}
	m[0].ID = "changed"
	if Models()[0].ID != "eleven_v3" {
		t.Error("Models must return a copy")
	}
}
