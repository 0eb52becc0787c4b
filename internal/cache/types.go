package cache

import (
	"errors"
	"time"
)

// Common errors for cache operations
var (
	// ErrItemTooLarge is returned when an item exceeds the store capacity
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrCacheCorrupted is returned when stored data cannot be decoded
	ErrCacheCorrupted = errors.New("cache data corrupted")
)

// Stats holds cache metrics
type Stats struct {
	Capacity  int64 // Maximum capacity in bytes, zero when unbounded
	Size      int64 // Current size in bytes
	ItemCount int64 // Number of entries

	Hits      int64
	Misses    int64
	Evictions int64
	HitRate   float64 // hits / (hits + misses)

	LastAccess time.Time
}

func (s *Stats) updateHitRate() {
	if s.Hits+s.Misses > 0 {
		s.HitRate = float64(s.Hits) / float64(s.Hits+s.Misses)
	}
}
