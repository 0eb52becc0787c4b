package synth

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dgnsrekt/dramaplay/internal/script"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memoryStore) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	return b, ok
}

func (m *memoryStore) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

type countingSynth struct {
	calls int
	err   error
}

func (s *countingSynth) Synthesize(_ context.Context, item script.Item, _ script.Mode, _, _ string) ([]byte, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []byte("audio:" + item.Content), nil
}

func TestCachingServesRepeats(t *testing.T) {
	next := &countingSynth{}
	c := NewCaching(next, &memoryStore{data: map[string][]byte{}}, DefaultOutputFormat)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		b, err := c.Synthesize(ctx, script.NewSpeech("hello"), script.ChildrenBook, "", "")
		if err != nil || string(b) != "audio:hello" {
			t.Fatalf("Synthesize = %q, %v", b, err)
		}
	}
	if next.calls != 1 {
		t.Errorf("Expected 1 upstream call, got %d", next.calls)
	}

	// the explicit default voice resolves to the same request
	if _, err := c.Synthesize(ctx, script.NewSpeech("hello"), script.ChildrenBook, DefaultVoices[script.ChildrenBook], DefaultModel); err != nil {
		t.Fatal(err)
	}
	if next.calls != 1 {
		t.Errorf("Resolved duplicate should hit the cache, got %d calls", next.calls)
	}

	if _, err := c.Synthesize(ctx, script.NewSpeech("hello"), script.ExamPassage, "", ""); err != nil {
		t.Fatal(err)
	}
	if next.calls != 2 {
		t.Errorf("Different voice must miss, got %d calls", next.calls)
	}
}

func TestCachingSkipsFailures(t *testing.T) {
	store := &memoryStore{data: map[string][]byte{}}
	next := &countingSynth{err: errors.New("boom")}
	c := NewCaching(next, store, "")

	if _, err := c.Synthesize(context.Background(), script.NewSpeech("x"), script.ChildrenBook, "", ""); err == nil {
		t.Fatal("Expected error")
	}
	if len(store.data) != 0 {
		t.Error("Failures must not be stored")
	}
}

func TestKeyNormalizesText(t *testing.T) {
	composed := Resolve(script.NewSpeech("café"), script.ChildrenBook, "", "")
	decomposed := Resolve(script.NewSpeech("cafe\u0301"), script.ChildrenBook, "", "")

	if Key(composed) != Key(decomposed) {
		t.Error("Equivalent unicode forms should share a key")
	}
	sfx := Resolve(script.NewSoundEffect("cafe"), script.ChildrenBook, "", "")
	if Key(sfx) == Key(Resolve(script.NewSpeech("cafe"), script.ChildrenBook, "", "")) {
		t.Error("Sound effect and speech must not share a key")
	}
}

func TestCachingSeparatesOutputFormats(t *testing.T) {
	store := &memoryStore{data: map[string][]byte{}}
	next := &countingSynth{}
	ctx := context.Background()
	item := script.NewSpeech("hello")

	if _, err := NewCaching(next, store, "mp3_44100_128").Synthesize(ctx, item, script.ChildrenBook, "", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := NewCaching(next, store, "mp3_22050_32").Synthesize(ctx, item, script.ChildrenBook, "", ""); err != nil {
		t.Fatal(err)
	}
	if next.calls != 2 {
		t.Errorf("A new output format must not be served old bytes, got %d calls", next.calls)
	}
	if len(store.data) != 2 {
		t.Errorf("Expected one entry per format, got %d", len(store.data))
	}
}

func TestFormatSampleRate(t *testing.T) {
	tests := []struct {
		format  string
		want    int
		wantErr bool
	}{
		{"mp3_44100_128", 44100, false},
		{"mp3_22050_32", 22050, false},
		{"pcm_16000", 0, true},
		{"mp3_fast_128", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			got, err := FormatSampleRate(tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FormatSampleRate(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("FormatSampleRate(%q) = %d, want %d", tt.format, got, tt.want)
			}
		})
	}
}
