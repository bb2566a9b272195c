//go:build !portaudio

// ABOUTME: PortAudio capture stub when library not available
// ABOUTME: Provides compile-time placeholder when PortAudio not installed
package capture

import (
	"fmt"
)

// PortAudio capture implementation (stub)
type PortAudio struct{}

// NewPortAudio creates a new PortAudio capture source
func NewPortAudio() *PortAudio {
	return &PortAudio{}
}

// Open initializes PortAudio
func (p *PortAudio) Open(sampleRate, channels int, process func([]float32)) error {
	return fmt.Errorf("PortAudio support not enabled (build with -tags portaudio): %w", ErrNoDevice)
}

// Start starts the input stream
func (p *PortAudio) Start() error {
	return fmt.Errorf("PortAudio support not enabled (build with -tags portaudio)")
}

// Close releases resources
func (p *PortAudio) Close() error {
	return nil
}
