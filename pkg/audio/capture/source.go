// ABOUTME: Capture source interface and device error classification
// ABOUTME: Common interface for microphone, file and tone input backends
package capture

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPermissionDenied means the user or OS refused microphone access
	ErrPermissionDenied = errors.New("microphone permission denied")

	// ErrNoDevice means no usable capture device was found
	ErrNoDevice = errors.New("no capture device available")
)

// Source represents an audio input that pushes samples to a callback
type Source interface {
	// Open prepares the source to deliver interleaved float samples at
	// sampleRate to process. process must not block.
	Open(sampleRate, channels int, process func(samples []float32)) error

	// Start begins delivering samples
	Start() error

	// Close stops delivery and releases resources. After Close returns
	// process is not called again.
	Close() error
}

// New returns the capture source with the given name
func New(name string) (Source, error) {
	switch name {
	case "", "malgo":
		return NewMalgo(), nil
	case "portaudio":
		return NewPortAudio(), nil
	default:
		return nil, fmt.Errorf("unknown capture backend: %s", name)
	}
}

// classify maps backend failures onto ErrPermissionDenied and ErrNoDevice
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrNoDevice) {
		return err
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "denied"), strings.Contains(msg, "permission"), strings.Contains(msg, "not allowed"):
		return fmt.Errorf("%s: %w (%v)", op, ErrPermissionDenied, err)
	case strings.Contains(msg, "no device"), strings.Contains(msg, "device not found"),
		strings.Contains(msg, "no such device"), strings.Contains(msg, "no backend"),
		strings.Contains(msg, "invalid device"):
		return fmt.Errorf("%s: %w (%v)", op, ErrNoDevice, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
