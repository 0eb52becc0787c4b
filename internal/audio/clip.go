package audio

import (
	"bytes"
	"io"
	"sync"
)

// Clip is a playable handle bound to one buffer of encoded audio. A clip
// owns its buffer; once released it can no longer be opened or played.
type Clip struct {
	mu       sync.Mutex
	data     []byte
	size     int
	released bool
}

// NewClip wraps data in a clip. The clip takes ownership of data.
func NewClip(data []byte) *Clip {
	return &Clip{data: data, size: len(data)}
}

// Open returns a reader over the clip's encoded bytes.
func (c *Clip) Open() (io.Reader, error) {
	data, err := c.bytes()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

func (c *Clip) bytes() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return nil, ErrClipReleased
	}
	if len(c.data) == 0 {
		return nil, ErrEmptyClip
	}
	return c.data, nil
}

// Len returns the size of the encoded audio in bytes.
func (c *Clip) Len() int {
	return c.size
}

// Release drops the clip's buffer. It is safe to call more than once.
func (c *Clip) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.released = true
	c.data = nil
}

// Released reports whether Release has been called.
func (c *Clip) Released() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released
}
