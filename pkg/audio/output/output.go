// ABOUTME: Audio output interface definition
// ABOUTME: Common interface for pull-model playback backends
package output

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
)

// Source produces mono frames on demand. playback.Bus implements it.
type Source interface {
	Render(dst []float32)
}

// Output represents an audio output device that pulls from a Source
type Output interface {
	// Open initializes the device and starts pulling from src
	Open(sampleRate, channels int, src Source) error

	// Close stops pulling and releases output resources
	Close() error
}

// VolumeControl is implemented by outputs with software volume
type VolumeControl interface {
	SetVolume(volume int)
	SetMuted(muted bool)
	GetVolume() int
	IsMuted() bool
}

// New returns the output backend with the given name
func New(name string) (Output, error) {
	switch name {
	case "", "oto":
		return NewOto(), nil
	case "malgo":
		return NewMalgo(), nil
	case "portaudio":
		return NewPortAudio(), nil
	case "null", "none":
		return NewNull(), nil
	default:
		return nil, fmt.Errorf("unknown output backend: %s", name)
	}
}

// puller renders the source into interleaved device buffers with volume
type puller struct {
	mu       sync.Mutex
	src      Source
	channels int
	mono     []float32

	volume atomic.Int32
	muted  atomic.Bool
}

func newPuller() *puller {
	p := &puller{}
	p.volume.Store(100)
	return p
}

func (p *puller) attach(src Source, channels int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if channels <= 0 {
		channels = 1
	}
	p.src = src
	p.channels = channels
}

// fill writes len(out)/channels frames into out
func (p *puller) fill(out []float32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.src == nil {
		clear(out)
		return
	}

	frames := len(out) / p.channels
	if cap(p.mono) < frames {
		p.mono = make([]float32, frames)
	}
	mono := p.mono[:frames]
	p.src.Render(mono)

	applyVolume(mono, int(p.volume.Load()), p.muted.Load())

	if p.channels == 1 {
		copy(out, mono)
		return
	}
	for i, s := range mono {
		for ch := 0; ch < p.channels; ch++ {
			out[i*p.channels+ch] = s
		}
	}
}

// SetVolume sets the volume (0-100)
func (p *puller) SetVolume(volume int) {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	p.volume.Store(int32(volume))
	log.Printf("Volume set to %d", volume)
}

// SetMuted sets mute state
func (p *puller) SetMuted(muted bool) {
	p.muted.Store(muted)
	log.Printf("Muted: %v", muted)
}

// GetVolume returns current volume
func (p *puller) GetVolume() int {
	return int(p.volume.Load())
}

// IsMuted returns mute state
func (p *puller) IsMuted() bool {
	return p.muted.Load()
}

// applyVolume applies volume and mute in place with clipping protection
func applyVolume(samples []float32, volume int, muted bool) {
	multiplier := getVolumeMultiplier(volume, muted)

	for i, sample := range samples {
		scaled := sample * multiplier
		if scaled > 1 {
			scaled = 1
		} else if scaled < -1 {
			scaled = -1
		}
		samples[i] = scaled
	}
}

// getVolumeMultiplier calculates volume multiplier
func getVolumeMultiplier(volume int, muted bool) float32 {
	if muted {
		return 0.0
	}
	return float32(volume) / 100.0
}
