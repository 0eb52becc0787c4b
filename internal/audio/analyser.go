package audio

import (
	"encoding/binary"
	"io"
	"math"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// FFTSize is the analysis window in samples.
	FFTSize = 256

	minDecibels        = -100.0
	maxDecibels        = -30.0
	smoothingTimeConst = 0.8
)

// Analyser keeps the most recent FFTSize samples written to the output
// and exposes their smoothed magnitude spectrum.
type Analyser struct {
	mu       sync.Mutex
	ring     []float64
	pos      int
	carry    []byte
	window   []float64
	smoothed []float64
	seq      []float64
	coeff    []complex128
	fft      *fourier.FFT
}

// NewAnalyser returns an analyser with an empty sample window.
func NewAnalyser() *Analyser {
	a := &Analyser{
		ring:     make([]float64, FFTSize),
		window:   make([]float64, FFTSize),
		smoothed: make([]float64, FFTSize/2),
		seq:      make([]float64, FFTSize),
		carry:    make([]byte, 0, bytesPerFrame),
		fft:      fourier.NewFFT(FFTSize),
	}
	for i := range a.window {
		a.window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(FFTSize)))
	}
	return a
}

// FrequencyBinCount is the number of values ByteFrequencyData produces.
func (a *Analyser) FrequencyBinCount() int {
	return FFTSize / 2
}

// Write feeds interleaved 16-bit stereo PCM into the window. Partial frames
// are held until the rest of the frame arrives.
func (a *Analyser) Write(p []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.carry) > 0 {
		need := bytesPerFrame - len(a.carry)
		if len(p) < need {
			a.carry = append(a.carry, p...)
			return
		}
		a.carry = append(a.carry, p[:need]...)
		a.push(a.carry)
		a.carry = a.carry[:0]
		p = p[need:]
	}

	for len(p) >= bytesPerFrame {
		a.push(p[:bytesPerFrame])
		p = p[bytesPerFrame:]
	}
	a.carry = append(a.carry, p...)
}

func (a *Analyser) push(frame []byte) {
	l := int16(binary.LittleEndian.Uint16(frame[0:2]))
	r := int16(binary.LittleEndian.Uint16(frame[2:4]))
	a.ring[a.pos] = (float64(l) + float64(r)) / 2 / 32768
	a.pos = (a.pos + 1) % FFTSize
}

// ByteFrequencyData writes the current spectrum scaled to 0..255 into dst
// and returns the number of bins written.
func (a *Analyser) ByteFrequencyData(dst []byte) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := 0; i < FFTSize; i++ {
		a.seq[i] = a.ring[(a.pos+i)%FFTSize] * a.window[i]
	}
	a.coeff = a.fft.Coefficients(a.coeff, a.seq)

	n := min(len(dst), FFTSize/2)
	for k := 0; k < FFTSize/2; k++ {
		mag := cmplx.Abs(a.coeff[k]) / FFTSize
		a.smoothed[k] = smoothingTimeConst*a.smoothed[k] + (1-smoothingTimeConst)*mag
		if k >= n {
			continue
		}
		dst[k] = scaleDecibels(a.smoothed[k])
	}
	return n
}

// Reset clears the window and the smoothing history.
func (a *Analyser) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	clear(a.ring)
	clear(a.smoothed)
	a.carry = a.carry[:0]
	a.pos = 0
}

func scaleDecibels(mag float64) byte {
	if mag <= 0 {
		return 0
	}
	db := 20 * math.Log10(mag)
	v := 255 * (db - minDecibels) / (maxDecibels - minDecibels)
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return byte(v)
}

// tapReader copies everything read from the decoder into the analyser.
type tapReader struct {
	r io.Reader
	a *Analyser
}

func (t *tapReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n > 0 {
		t.a.Write(p[:n])
	}
	return n, err
}
