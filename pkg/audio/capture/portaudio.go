//go:build portaudio

// ABOUTME: PortAudio microphone capture
// ABOUTME: Opens the default input stream with a float32 callback
package capture

import (
	"fmt"
	"log"

	"github.com/gordonklaus/portaudio"
)

// PortAudio capture implementation
type PortAudio struct {
	stream      *portaudio.Stream
	initialized bool
}

// NewPortAudio creates a new PortAudio capture source
func NewPortAudio() *PortAudio {
	return &PortAudio{}
}

// Open initializes PortAudio and opens the default input stream
func (p *PortAudio) Open(sampleRate, channels int, process func([]float32)) error {
	if !p.initialized {
		if err := portaudio.Initialize(); err != nil {
			return classify("failed to initialize PortAudio", err)
		}
		p.initialized = true
	}

	stream, err := portaudio.OpenDefaultStream(channels, 0, float64(sampleRate), 0, func(in []float32) {
		process(in)
	})
	if err != nil {
		return classify("failed to open input stream", err)
	}

	p.stream = stream
	log.Printf("Audio capture initialized: %dHz, %d channels (portaudio)", sampleRate, channels)
	return nil
}

// Start starts the input stream
func (p *PortAudio) Start() error {
	if p.stream == nil {
		return fmt.Errorf("input stream not open")
	}
	if err := p.stream.Start(); err != nil {
		return classify("failed to start input stream", err)
	}
	return nil
}

// Close stops the stream and terminates PortAudio
func (p *PortAudio) Close() error {
	if p.stream != nil {
		if err := p.stream.Stop(); err != nil {
			log.Printf("Warning: input stream stop error: %v", err)
		}
		if err := p.stream.Close(); err != nil {
			return err
		}
		p.stream = nil
	}
	if !p.initialized {
		return nil
	}
	p.initialized = false
	return portaudio.Terminate()
}
