// ABOUTME: PCM audio encoder
// ABOUTME: Encodes float samples to 16-bit little-endian PCM and base64 text
package encode

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/harperreed/livewave-go/pkg/audio"
)

// PCMEncoder encodes PCM audio
type PCMEncoder struct {
	unclamped bool
}

// NewPCM creates a new 16-bit PCM encoder
func NewPCM(format audio.Format) (Encoder, error) {
	if format.Codec != "pcm" {
		return nil, fmt.Errorf("invalid codec for PCM encoder: %s", format.Codec)
	}

	if format.BitDepth != 16 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16)", format.BitDepth)
	}

	return &PCMEncoder{}, nil
}

// NewPCMUnclamped creates an encoder that keeps the legacy wrap-around at
// full scale, for byte-exact compatibility with older deployments
func NewPCMUnclamped() Encoder {
	return &PCMEncoder{unclamped: true}
}

// Encode converts float samples to PCM bytes
func (e *PCMEncoder) Encode(samples []float32) ([]byte, error) {
	if e.unclamped {
		return FloatToPCMUnclamped(samples), nil
	}
	return FloatToPCM(samples), nil
}

// Close releases resources
func (e *PCMEncoder) Close() error {
	return nil
}

// FloatToPCM scales each sample by 32768, rounds to nearest and packs it
// as a little-endian int16, saturating at the 16-bit range.
// The output is always 2*len(samples) bytes.
func FloatToPCM(samples []float32) []byte {
	output := make([]byte, len(samples)*2)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(output[i*2:], uint16(audio.SampleToInt16(sample)))
	}
	return output
}

// FloatToPCMUnclamped is FloatToPCM without saturation: a sample of
// exactly 1.0 becomes 32768, which wraps to -32768 in 16 bits.
func FloatToPCMUnclamped(samples []float32) []byte {
	output := make([]byte, len(samples)*2)
	for i, sample := range samples {
		word := int32(math.Round(float64(sample) * audio.Int16Scale))
		binary.LittleEndian.PutUint16(output[i*2:], uint16(word))
	}
	return output
}

// ToText encodes bytes as standard base64 transport text
func ToText(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
