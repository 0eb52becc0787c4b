package cache

import (
	"sync"
	"time"

	"github.com/dgnsrekt/dramaplay/internal/audio"
)

// entry is the cached audio for one script position.
type entry struct {
	data []byte
	clip *audio.Clip
}

// AudioCache maps script positions to synthesized audio. Entries are never
// evicted; the cache is emptied by Clear when synthesis parameters change
// and by Close at teardown.
type AudioCache struct {
	mu      sync.Mutex
	entries map[int]*entry
	epoch   uint64
	closed  bool
	stats   Stats
}

// NewAudioCache returns an empty cache.
func NewAudioCache() *AudioCache {
	return &AudioCache{entries: make(map[int]*entry)}
}

// Set stores a copy of data for index and returns a new clip for it. Any
// clip previously issued for index is released.
func (c *AudioCache) Set(index int, data []byte) *audio.Clip {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setLocked(index, data)
}

// SetIfAbsent stores data only when index has no entry. It returns the clip
// in the cache either way. A write is dropped, returning nil, when the cache
// was cleared or closed after epoch was read.
func (c *AudioCache) SetIfAbsent(epoch uint64, index int, data []byte) (*audio.Clip, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch || c.closed {
		return nil, false
	}
	if e, ok := c.entries[index]; ok {
		return e.clip, false
	}
	return c.setLocked(index, data), true
}

func (c *AudioCache) setLocked(index int, data []byte) *audio.Clip {
	owned := make([]byte, len(data))
	copy(owned, data)

	if old, ok := c.entries[index]; ok {
		old.clip.Release()
		c.stats.Size -= int64(len(old.data))
	}

	clip := audio.NewClip(owned)
	c.entries[index] = &entry{data: owned, clip: clip}
	c.stats.Size += int64(len(owned))
	c.stats.ItemCount = int64(len(c.entries))
	return clip
}

// Handle returns the playable clip for index.
func (c *AudioCache) Handle(index int) (*audio.Clip, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lookupLocked(index)
	if !ok {
		return nil, false
	}
	return e.clip, true
}

// Bytes returns the encoded audio for index. The slice must not be modified.
func (c *AudioCache) Bytes(index int) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lookupLocked(index)
	if !ok {
		return nil, false
	}
	return e.data, true
}

func (c *AudioCache) lookupLocked(index int) (*entry, bool) {
	e, ok := c.entries[index]
	c.stats.LastAccess = time.Now()
	if !ok || e.clip.Released() {
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	return e, true
}

// Has reports whether index has both bytes and a live clip.
func (c *AudioCache) Has(index int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[index]
	return ok && len(e.data) > 0 && e.clip != nil && !e.clip.Released()
}

// Clear releases every clip and empties the cache.
func (c *AudioCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

func (c *AudioCache) clearLocked() {
	for _, e := range c.entries {
		e.clip.Release()
	}
	c.entries = make(map[int]*entry)
	c.epoch++
	c.stats.Size = 0
	c.stats.ItemCount = 0
}

// Close clears the cache and refuses later conditional writes.
func (c *AudioCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
	c.closed = true
}

// Epoch changes every time the cache is cleared.
func (c *AudioCache) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// Snapshot returns a deep copy of every cached buffer.
func (c *AudioCache) Snapshot() map[int][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[int][]byte, len(c.entries))
	for i, e := range c.entries {
		b := make([]byte, len(e.data))
		copy(b, e.data)
		out[i] = b
	}
	return out
}

// Len returns the number of cached positions.
func (c *AudioCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns cache statistics.
func (c *AudioCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.updateHitRate()
	return s
}
