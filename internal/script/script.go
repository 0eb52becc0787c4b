package script

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Script is an ordered, immutable list of items together with its mode.
type Script struct {
	Title string `json:"title,omitempty"`
	Mode  Mode   `json:"mode,omitempty"`
	Items []Item `json:"items"`
}

// ErrNoItems is returned when a script file contains no items.
var ErrNoItems = errors.New("script has no items")

// Decode reads a script from r and validates every item.
func Decode(r io.Reader) (*Script, error) {
	var s Script
	dec := json.NewDecoder(r)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("unable to decode script: %w", err)
	}
	if s.Mode == "" {
		s.Mode = ChildrenBook
	}
	if _, err := ParseMode(string(s.Mode)); err != nil {
		return nil, err
	}
	if len(s.Items) == 0 {
		return nil, ErrNoItems
	}
	for i, it := range s.Items {
		if err := it.Validate(); err != nil {
			return nil, fmt.Errorf("item %d: %w", i+1, err)
		}
	}
	return &s, nil
}

// Load reads a script file from disk.
func Load(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open script: %w", err)
	}
	defer f.Close() //nolint:errcheck
	return Decode(f)
}

// Save writes the script as indented JSON.
func (s *Script) Save(path string) error {
	b, err := s.MarshalIndent()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil { //nolint:gosec
		return fmt.Errorf("unable to write script: %w", err)
	}
	return nil
}

// MarshalIndent returns the script as pretty-printed JSON.
func (s *Script) MarshalIndent() ([]byte, error) {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("unable to encode script: %w", err)
	}
	return append(b, '\n'), nil
}

// Markdown renders the script as a markdown document, one section per item.
func (s *Script) Markdown() string {
	var b strings.Builder
	title := s.Title
	if title == "" {
		title = s.Mode.Title()
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	for i, it := range s.Items {
		switch it.Kind {
		case SoundEffect:
			fmt.Fprintf(&b, "%d. *[%s]* _%s_\n", i+1, it.Kind, it.Content)
		default:
			fmt.Fprintf(&b, "%d. %s\n", i+1, it.Content)
		}
	}
	return b.String()
}
