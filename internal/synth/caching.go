package synth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/dramaplay/internal/script"
	"golang.org/x/text/unicode/norm"
)

// BlobStore is a persistent key/value store.
type BlobStore interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
}

// Caching serves repeated requests from a store and only remembers
// successful syntheses.
type Caching struct {
	next   Synthesizer
	store  BlobStore
	format string
}

// NewCaching wraps next with store. format must be the output format next
// produces; entries of other formats are never served.
func NewCaching(next Synthesizer, store BlobStore, format string) *Caching {
	if format == "" {
		format = DefaultOutputFormat
	}
	return &Caching{next: next, store: store, format: format}
}

// Synthesize implements Synthesizer.
func (c *Caching) Synthesize(ctx context.Context, item script.Item, mode script.Mode, voiceID, modelID string) ([]byte, error) {
	p := Resolve(item, mode, voiceID, modelID)
	p.OutputFormat = c.format
	key := Key(p)
	if b, ok := c.store.Get(key); ok {
		log.Debug("synthesis cache hit", "key", key[:12])
		return b, nil
	}

	b, err := c.next.Synthesize(ctx, item, mode, voiceID, modelID)
	if err != nil {
		return nil, err
	}
	if err := c.store.Put(key, b); err != nil {
		log.Warn("failed to store synthesis result", "error", err)
	}
	return b, nil
}

// Key identifies a resolved request. Text is NFC normalised so visually
// identical input shares an entry.
func Key(p Params) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00%g\x00%g\x00%g\x00%t",
		p.VoiceID, p.ModelID, p.OutputFormat, norm.NFC.String(p.Text),
		p.Settings.Stability, p.Settings.SimilarityBoost, p.Settings.Style, p.Settings.UseSpeakerBoost)
	return hex.EncodeToString(h.Sum(nil))
}
