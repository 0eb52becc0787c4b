package cache

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"
)

const (
	indexFile = "index.gob"

	// only buffers above this size are worth compressing
	compressThreshold = 1024
)

// DiskStore is a persistent, size bounded blob store for synthesis results.
// Entries are written zstd compressed when that saves space and the least
// recently used entries are evicted when the capacity is exceeded.
type DiskStore struct {
	dir      string
	capacity int64
	size     int64

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	index map[string]*diskEntry
	mu    sync.Mutex
	stats Stats
}

// diskEntry is persisted in the index file, so its fields are exported.
type diskEntry struct {
	File         string
	Size         int64 // on disk
	OriginalSize int64
	Compressed   bool
	Created      time.Time
	LastAccess   time.Time
}

// NewDiskStore opens (or creates) a store in dir. A level of zero disables
// compression.
func NewDiskStore(dir string, capacity int64, level int) (*DiskStore, error) {
	if capacity <= 0 {
		return nil, errors.New("disk store capacity must be positive")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	ds := &DiskStore{
		dir:      dir,
		capacity: capacity,
		index:    make(map[string]*diskEntry),
		stats:    Stats{Capacity: capacity},
	}

	if level > 0 {
		var err error
		ds.encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
	}
	// compressed entries may exist from an earlier run with compression on
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	ds.decoder = dec

	if err := ds.loadIndex(); err != nil {
		log.Warn("disk cache index unreadable, starting empty", "dir", dir, "error", err)
		ds.index = make(map[string]*diskEntry)
	}
	for _, e := range ds.index {
		ds.size += e.Size
	}

	return ds, nil
}

// Get returns the stored value for key.
func (ds *DiskStore) Get(key string) ([]byte, bool) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	ds.stats.LastAccess = time.Now()
	e, ok := ds.index[key]
	if !ok {
		ds.stats.Misses++
		return nil, false
	}

	data, err := os.ReadFile(filepath.Join(ds.dir, e.File))
	if err == nil && e.Compressed {
		data, err = ds.decoder.DecodeAll(data, nil)
	}
	if err != nil {
		log.Debug("dropping unreadable disk cache entry", "file", e.File, "error", err)
		ds.removeLocked(key, e)
		ds.stats.Misses++
		return nil, false
	}

	e.LastAccess = time.Now()
	ds.stats.Hits++
	return data, true
}

// Put stores value under key, replacing any existing value.
func (ds *DiskStore) Put(key string, value []byte) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	out, compressed := value, false
	if ds.encoder != nil && len(value) > compressThreshold {
		if c := ds.encoder.EncodeAll(value, nil); len(c) < len(value) {
			out, compressed = c, true
		}
	}

	diskSize := int64(len(out))
	if diskSize > ds.capacity {
		return ErrItemTooLarge
	}

	if old, ok := ds.index[key]; ok {
		ds.removeLocked(key, old)
	}
	for ds.size+diskSize > ds.capacity && len(ds.index) > 0 {
		ds.evictOldestLocked()
	}

	name := fileName(key)
	if err := writeAtomic(filepath.Join(ds.dir, name), out); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	now := time.Now()
	ds.index[key] = &diskEntry{
		File:         name,
		Size:         diskSize,
		OriginalSize: int64(len(value)),
		Compressed:   compressed,
		Created:      now,
		LastAccess:   now,
	}
	ds.size += diskSize

	return ds.saveIndexLocked()
}

// Delete removes key.
func (ds *DiskStore) Delete(key string) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if e, ok := ds.index[key]; ok {
		ds.removeLocked(key, e)
	}
	return ds.saveIndexLocked()
}

// Clear removes every entry.
func (ds *DiskStore) Clear() error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	for key, e := range ds.index {
		ds.removeLocked(key, e)
	}
	return ds.saveIndexLocked()
}

// Stats returns store statistics.
func (ds *DiskStore) Stats() Stats {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	s := ds.stats
	s.Size = ds.size
	s.ItemCount = int64(len(ds.index))
	s.updateHitRate()
	return s
}

// Close saves the index and releases the codecs.
func (ds *DiskStore) Close() error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	err := ds.saveIndexLocked()
	if ds.encoder != nil {
		_ = ds.encoder.Close()
	}
	ds.decoder.Close()
	return err
}

func (ds *DiskStore) removeLocked(key string, e *diskEntry) {
	_ = os.Remove(filepath.Join(ds.dir, e.File))
	ds.size -= e.Size
	delete(ds.index, key)
}

func (ds *DiskStore) evictOldestLocked() {
	var oldestKey string
	var oldest *diskEntry
	for key, e := range ds.index {
		if oldest == nil || e.LastAccess.Before(oldest.LastAccess) {
			oldestKey, oldest = key, e
		}
	}
	if oldest != nil {
		ds.removeLocked(oldestKey, oldest)
		ds.stats.Evictions++
	}
}

func (ds *DiskStore) loadIndex() error {
	f, err := os.Open(filepath.Join(ds.dir, indexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close() //nolint:errcheck

	if err := gob.NewDecoder(f).Decode(&ds.index); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheCorrupted, err)
	}
	return nil
}

func (ds *DiskStore) saveIndexLocked() error {
	f, err := os.CreateTemp(ds.dir, indexFile+".*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	err = gob.NewEncoder(f).Encode(ds.index)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, filepath.Join(ds.dir, indexFile))
}

func fileName(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:16]) + ".bin"
}

// writeAtomic writes to a temp file and renames it into place.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
