// ABOUTME: Frequency analyzer producing byte magnitude spectra
// ABOUTME: Windowed FFT with temporal smoothing and decibel mapping to 0..255
package analyze

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// FFTSize is the analysis window length in samples
	FFTSize = 32

	// BinCount is the number of frequency bins in a snapshot
	BinCount = FFTSize / 2

	// SmoothingTimeConstant blends each frame with the previous one
	SmoothingTimeConstant = 0.8

	// MinDecibels maps to byte value 0
	MinDecibels = -100.0

	// MaxDecibels maps to byte value 255
	MaxDecibels = -30.0
)

// Analyzer computes magnitude spectra from a Tap. All working buffers are
// allocated in New so Update does not allocate.
type Analyzer struct {
	tap *Tap
	fft *fourier.FFT

	mu       sync.Mutex
	samples  []float32
	windowed []float64
	window   []float64
	coeffs   []complex128
	smoothed []float64
	snapshot []byte
}

// New creates an analyzer bound to tap
func New(tap *Tap) *Analyzer {
	a := &Analyzer{
		tap:      tap,
		fft:      fourier.NewFFT(FFTSize),
		samples:  make([]float32, FFTSize),
		windowed: make([]float64, FFTSize),
		window:   make([]float64, FFTSize),
		coeffs:   make([]complex128, FFTSize/2+1),
		smoothed: make([]float64, BinCount),
		snapshot: make([]byte, BinCount),
	}

	// Blackman window, alpha 0.16
	const a0, a1, a2 = 0.42, 0.5, 0.08
	for i := range a.window {
		x := 2 * math.Pi * float64(i) / FFTSize
		a.window[i] = a0 - a1*math.Cos(x) + a2*math.Cos(2*x)
	}

	return a
}

// Update recomputes the snapshot from the latest samples in the tap
func (a *Analyzer) Update() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.tap.Read(a.samples)
	for i, s := range a.samples {
		a.windowed[i] = float64(s) * a.window[i]
	}

	a.fft.Coefficients(a.coeffs, a.windowed)

	const scale = 255.0 / (MaxDecibels - MinDecibels)
	for k := 0; k < BinCount; k++ {
		c := a.coeffs[k]
		mag := math.Hypot(real(c), imag(c)) / FFTSize

		s := SmoothingTimeConstant*a.smoothed[k] + (1-SmoothingTimeConstant)*mag
		if math.IsNaN(s) || math.IsInf(s, 0) {
			s = 0
		}
		a.smoothed[k] = s

		db := 20 * math.Log10(s)
		v := scale * (db - MinDecibels)
		switch {
		case math.IsNaN(v) || v < 0:
			v = 0
		case v > 255:
			v = 255
		}
		a.snapshot[k] = byte(v)
	}
}

// Snapshot returns the retained magnitude buffer. The same slice is
// returned on every call; its contents change on Update.
func (a *Analyzer) Snapshot() []byte {
	return a.snapshot
}

// Bins copies the current snapshot into dst under the analyzer lock
func (a *Analyzer) Bins(dst []byte) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return copy(dst, a.snapshot)
}

// Reset clears smoothing state and the snapshot
func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.smoothed)
	clear(a.snapshot)
}
