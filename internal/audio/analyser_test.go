package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

// sinePCM returns stereo frames of a sine wave that lands exactly on bin.
func sinePCM(frames, bin int, amplitude float64) []byte {
	buf := make([]byte, frames*bytesPerFrame)
	for i := 0; i < frames; i++ {
		v := int16(amplitude * 32767 * math.Sin(2*math.Pi*float64(bin)*float64(i)/FFTSize))
		binary.LittleEndian.PutUint16(buf[i*4:], uint16(v))
		binary.LittleEndian.PutUint16(buf[i*4+2:], uint16(v))
	}
	return buf
}

func TestAnalyserSilence(t *testing.T) {
	a := NewAnalyser()
	a.Write(make([]byte, FFTSize*bytesPerFrame))

	data := make([]byte, a.FrequencyBinCount())
	if n := a.ByteFrequencyData(data); n != FFTSize/2 {
		t.Fatalf("Expected %d bins, got %d", FFTSize/2, n)
	}
	for i, v := range data {
		if v != 0 {
			t.Fatalf("Bin %d should be silent, got %d", i, v)
		}
	}
}

func TestAnalyserPeak(t *testing.T) {
	// quiet enough that the peak and its neighbours stay under the ceiling
	a := NewAnalyser()
	a.Write(sinePCM(FFTSize, 16, 0.005))

	data := make([]byte, a.FrequencyBinCount())
	for i := 0; i < 5; i++ {
		a.ByteFrequencyData(data)
	}

	peak := 0
	for i := range data {
		if data[i] > data[peak] {
			peak = i
		}
	}
	if peak != 16 {
		t.Errorf("Expected peak at bin 16, got %d", peak)
	}
	if data[16] == 0 || data[16] == 255 {
		t.Errorf("Peak bin should be in range, got %d", data[16])
	}
	if data[15] >= data[16] || data[17] >= data[16] {
		t.Errorf("Neighbours should be below the peak, got %d %d %d", data[15], data[16], data[17])
	}
}

func TestAnalyserSaturates(t *testing.T) {
	a := NewAnalyser()
	a.Write(sinePCM(FFTSize, 16, 0.5))

	data := make([]byte, a.FrequencyBinCount())
	for i := 0; i < 5; i++ {
		a.ByteFrequencyData(data)
	}
	if data[16] != 255 {
		t.Errorf("Loud tone should clamp to 255, got %d", data[16])
	}
	if data[40] != 0 {
		t.Errorf("Bins away from the tone should stay silent, got %d", data[40])
	}
}

func TestAnalyserSplitFrames(t *testing.T) {
	pcm := sinePCM(FFTSize, 8, 0.8)

	whole := NewAnalyser()
	whole.Write(pcm)

	split := NewAnalyser()
	for i := 0; i < len(pcm); i += 3 {
		end := min(i+3, len(pcm))
		split.Write(pcm[i:end])
	}

	a := make([]byte, FFTSize/2)
	b := make([]byte, FFTSize/2)
	whole.ByteFrequencyData(a)
	split.ByteFrequencyData(b)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Bin %d differs: whole=%d split=%d", i, a[i], b[i])
		}
	}
}

func TestAnalyserReset(t *testing.T) {
	a := NewAnalyser()
	a.Write(sinePCM(FFTSize, 16, 0.5))
	a.Reset()

	data := make([]byte, FFTSize/2)
	a.ByteFrequencyData(data)
	for i, v := range data {
		if v != 0 {
			t.Fatalf("Bin %d should be zero after reset, got %d", i, v)
		}
	}
}

func TestAnalyserShortDestination(t *testing.T) {
	a := NewAnalyser()
	if n := a.ByteFrequencyData(make([]byte, 10)); n != 10 {
		t.Errorf("Expected 10 bins written, got %d", n)
	}
}
