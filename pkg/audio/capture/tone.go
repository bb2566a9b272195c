// ABOUTME: Sine tone capture source
// ABOUTME: Stands in for a microphone in headless runs and tests
package capture

import (
	"math"
)

// toneAmplitude keeps the test tone well below full scale
const toneAmplitude = 0.3

// Tone generates a continuous sine wave
type Tone struct {
	paced
	freq  float64
	phase float64
}

// NewTone creates a tone source at freq Hz
func NewTone(freq float64) *Tone {
	t := &Tone{freq: freq}
	t.generate = t.fill
	return t
}

// Open prepares the tone at sampleRate
func (t *Tone) Open(sampleRate, channels int, process func([]float32)) error {
	return t.open(sampleRate, channels, process)
}

// Start begins delivering samples
func (t *Tone) Start() error {
	return t.start()
}

// Close stops delivery
func (t *Tone) Close() error {
	t.close()
	return nil
}

func (t *Tone) fill(dst []float32) bool {
	step := 2 * math.Pi * t.freq / float64(t.sampleRate)
	for i := range dst {
		dst[i] = float32(toneAmplitude * math.Sin(t.phase))
		t.phase += step
		if t.phase > 2*math.Pi {
			t.phase -= 2 * math.Pi
		}
	}
	return true
}
