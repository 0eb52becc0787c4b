package export

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/dramaplay/internal/script"
	"github.com/dustin/go-humanize"
)

// Format is an export file format.
type Format string

const (
	SRT  Format = "srt"
	Text Format = "txt"
	JSON Format = "json"
)

// Formats lists every supported format.
var Formats = []Format{SRT, Text, JSON}

// ParseFormat validates a format name. A leading dot is ignored.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(s, ".")))
	switch f {
	case SRT, Text, JSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown export format %q (expected srt, txt or json)", s)
}

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// NeedsAudio reports whether the format requires synthesized audio.
func (f Format) NeedsAudio() bool {
	return f == SRT
}

// DefaultFilename is the file name used when none is given.
func (f Format) DefaultFilename() string {
	switch f {
	case SRT:
		return "subtitles.srt"
	case JSON:
		return "script.json"
	default:
		return "script.txt"
	}
}

// DurationFunc measures the playing time of one encoded clip.
type DurationFunc func(data []byte) (time.Duration, error)

// Subtitles renders SRT cues for every item that has audio. Cues are laid
// end to end in item order and numbered by the item's position in the
// script, so gaps in numbering mark items without audio.
func Subtitles(items []script.Item, clips map[int][]byte, duration DurationFunc) (string, error) {
	var (
		b      strings.Builder
		offset time.Duration
	)
	for i, it := range items {
		data, ok := clips[i]
		if !ok {
			log.Warn("missing audio, skipping subtitle", "index", i)
			continue
		}
		d, err := duration(data)
		if err != nil {
			return "", fmt.Errorf("item %d: unable to measure audio: %w", i+1, err)
		}

		start, end := offset, offset+d
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, timestamp(start), timestamp(end), it.Content)
		offset = end
	}
	return b.String(), nil
}

// timestamp formats d as HH:MM:SS,mmm.
func timestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	h := ms / 3_600_000
	ms -= h * 3_600_000
	m := ms / 60_000
	ms -= m * 60_000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// Transcript renders a numbered plain text transcript.
func Transcript(items []script.Item) string {
	blocks := make([]string, len(items))
	for i, it := range items {
		label := "[Speech]"
		if it.Kind == script.SoundEffect {
			label = "[SFX]"
		}
		blocks[i] = fmt.Sprintf("%d. %s\n%s\n", i+1, label, it.Content)
	}
	return strings.Join(blocks, "\n")
}

// ItemsJSON pretty prints the items as a JSON array.
func ItemsJSON(items []script.Item) ([]byte, error) {
	if items == nil {
		items = []script.Item{}
	}
	b, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("unable to encode items: %w", err)
	}
	return b, nil
}

// Summary describes an export in one line, e.g.
// "3 items, 2 with audio (12 kB)".
func Summary(items []script.Item, clips map[int][]byte) string {
	var size uint64
	for _, data := range clips {
		size += uint64(len(data))
	}
	noun := "items"
	if len(items) == 1 {
		noun = "item"
	}
	if clips == nil {
		return fmt.Sprintf("%s %s", humanize.Comma(int64(len(items))), noun)
	}
	return fmt.Sprintf("%s %s, %d with audio (%s)",
		humanize.Comma(int64(len(items))), noun, len(clips), humanize.Bytes(size))
}

// Render produces the file contents for f. clips is only consulted for
// formats that need audio.
func Render(f Format, items []script.Item, clips map[int][]byte, duration DurationFunc) ([]byte, error) {
	switch f {
	case SRT:
		s, err := Subtitles(items, clips, duration)
		return []byte(s), err
	case Text:
		return []byte(Transcript(items)), nil
	case JSON:
		return ItemsJSON(items)
	}
	return nil, fmt.Errorf("unknown export format %q", f)
}
