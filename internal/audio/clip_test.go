package audio

import (
	"errors"
	"io"
	"testing"
)

func TestClipOpen(t *testing.T) {
	clip := NewClip([]byte{1, 2, 3, 4})

	r, err := clip.Open()
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	got, _ := io.ReadAll(r)
	if len(got) != 4 {
		t.Errorf("Expected 4 bytes, got %d", len(got))
	}
	if clip.Len() != 4 {
		t.Errorf("Expected Len 4, got %d", clip.Len())
	}
}

func TestClipRelease(t *testing.T) {
	clip := NewClip([]byte{1, 2, 3, 4})
	clip.Release()
	clip.Release()

	if !clip.Released() {
		t.Error("Clip should report released")
	}
	if _, err := clip.Open(); !errors.Is(err, ErrClipReleased) {
		t.Errorf("Expected ErrClipReleased, got %v", err)
	}
}

func TestClipEmpty(t *testing.T) {
	if _, err := NewClip(nil).Open(); !errors.Is(err, ErrEmptyClip) {
		t.Errorf("Expected ErrEmptyClip, got %v", err)
	}
}
