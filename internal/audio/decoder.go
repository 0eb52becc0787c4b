package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hajimehoshi/go-mp3"
)

// Decoder turns encoded clip data into signed 16-bit little endian
// interleaved stereo PCM.
type Decoder interface {
	Decode(data []byte) (pcm io.Reader, sampleRate int, err error)
}

// MP3Decoder decodes mpeg audio, the format returned by the remote voice.
type MP3Decoder struct{}

// Decode implements Decoder.
func (MP3Decoder) Decode(data []byte) (io.Reader, int, error) {
	d, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("invalid mp3 data: %w", err)
	}
	return d, d.SampleRate(), nil
}

// PCMDecoder passes raw 16-bit stereo frames through unchanged.
type PCMDecoder struct {
	SampleRate int
}

// Decode implements Decoder.
func (p PCMDecoder) Decode(data []byte) (io.Reader, int, error) {
	if len(data)%bytesPerFrame != 0 {
		return nil, 0, errors.New("pcm data is not frame aligned")
	}
	return bytes.NewReader(data), p.SampleRate, nil
}

// Duration returns the playing time of an mp3 encoded buffer.
func Duration(data []byte) (time.Duration, error) {
	d, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("invalid mp3 data: %w", err)
	}
	n := d.Length()
	if n < 0 {
		return 0, errors.New("mp3 length unknown")
	}
	return time.Duration(n) * time.Second / time.Duration(bytesPerFrame*d.SampleRate()), nil
}

// PCMDuration returns the playing time of raw stereo PCM at the given rate.
func PCMDuration(data []byte, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	frames := len(data) / bytesPerFrame
	return time.Duration(frames) * time.Second / time.Duration(sampleRate)
}
