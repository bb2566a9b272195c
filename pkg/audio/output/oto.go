// ABOUTME: Oto-based audio output implementation
// ABOUTME: Oto pulls float frames from the source through an io.Reader
package output

import (
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/ebitengine/oto/v3"
)

// otoBufferSize keeps the device lead short so interrupts are heard quickly
const otoBufferSize = 40 * time.Millisecond

// Oto output implementation using oto library
type Oto struct {
	*puller
	otoCtx     *oto.Context
	player     *oto.Player
	sampleRate int
	channels   int
	ready      bool
}

// NewOto creates a new Oto output
func NewOto() *Oto {
	return &Oto{puller: newPuller()}
}

// Open initializes the output device and starts playback from src
func (o *Oto) Open(sampleRate, channels int, src Source) error {
	o.attach(src, channels)

	// oto allows one context per process, so reuse it
	if o.otoCtx != nil {
		if o.sampleRate != sampleRate || o.channels != channels {
			log.Printf("Warning: format change detected (%dHz %dch -> %dHz %dch) but oto doesn't support reinitialization. Continuing with existing context.",
				o.sampleRate, o.channels, sampleRate, channels)
		}
		return nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   otoBufferSize,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}

	<-readyChan

	o.otoCtx = ctx
	o.sampleRate = sampleRate
	o.channels = channels

	// Persistent player that pulls from the source for the life of the output
	o.player = o.otoCtx.NewPlayer(&otoReader{puller: o.puller})
	o.player.SetBufferSize(int(float64(sampleRate*channels*4) * otoBufferSize.Seconds()))
	o.player.Play()

	o.ready = true

	log.Printf("Audio output initialized: %dHz, %d channels (oto)", sampleRate, channels)

	return nil
}

// Close releases output resources
func (o *Oto) Close() error {
	if o.player != nil {
		if err := o.player.Close(); err != nil {
			log.Printf("Warning: oto player close error: %v", err)
		}
		o.player = nil
	}
	if o.otoCtx != nil {
		if err := o.otoCtx.Suspend(); err != nil {
			log.Printf("Warning: oto suspend error: %v", err)
		}
		o.ready = false
	}
	o.attach(nil, o.channels)
	return nil
}

// otoReader renders float32 little-endian bytes on demand
type otoReader struct {
	*puller
	scratch []float32
}

func (r *otoReader) Read(p []byte) (int, error) {
	n := len(p) / 4
	if cap(r.scratch) < n {
		r.scratch = make([]float32, n)
	}
	samples := r.scratch[:n]
	r.fill(samples)

	for i, s := range samples {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s))
	}
	return n * 4, nil
}
