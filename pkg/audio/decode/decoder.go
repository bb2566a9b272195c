// ABOUTME: Decoder interfaces and decode error type
// ABOUTME: Common interfaces for chunk decoders and file readers
package decode

import (
	"errors"
	"fmt"

	"github.com/harperreed/livewave-go/pkg/audio"
)

// Decoder decodes one transport chunk into a renderable buffer
type Decoder interface {
	// Decode converts encoded audio data to a float buffer
	Decode(data []byte) (audio.Buffer, error)

	// Close releases decoder resources
	Close() error
}

// Reader streams decoded file audio as interleaved normalized floats
type Reader interface {
	// Read fills samples and returns how many were written; io.EOF at end
	Read(samples []float32) (int, error)

	// SampleRate returns the sample rate of the decoded audio
	SampleRate() int

	// Channels returns the number of interleaved channels
	Channels() int

	// Close releases the underlying file
	Close() error
}

// Error reports malformed audio or transport text. A decode error only
// affects the chunk that produced it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err is or wraps a decode Error
func IsDecodeError(err error) bool {
	var decErr *Error
	return errors.As(err, &decErr)
}
