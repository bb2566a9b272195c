// ABOUTME: PCM audio decoder
// ABOUTME: Decodes 16-bit little-endian PCM and base64 text to float samples
package decode

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/harperreed/livewave-go/pkg/audio"
)

// PCMDecoder decodes PCM chunks into float buffers
type PCMDecoder struct {
	format audio.Format
}

// NewPCM creates a new 16-bit PCM decoder
func NewPCM(format audio.Format) (Decoder, error) {
	if format.Codec != "pcm" {
		return nil, fmt.Errorf("invalid codec for PCM decoder: %s", format.Codec)
	}

	if format.BitDepth != 16 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16)", format.BitDepth)
	}

	return &PCMDecoder{
		format: format,
	}, nil
}

// Decode converts PCM bytes to a buffer with one slice per channel
func (d *PCMDecoder) Decode(data []byte) (audio.Buffer, error) {
	channels := d.format.Channels
	if channels <= 0 {
		channels = 1
	}

	buf := audio.Buffer{
		SampleRate: d.format.SampleRate,
		Channels:   make([][]float32, channels),
	}
	for ch := 0; ch < channels; ch++ {
		samples, err := PCMToFloat(data, ch, channels)
		if err != nil {
			return audio.Buffer{}, err
		}
		buf.Channels[ch] = samples
	}

	return buf, nil
}

// Close releases resources
func (d *PCMDecoder) Close() error {
	return nil
}

// PCMToFloat de-interleaves one channel from little-endian int16 PCM:
// every channels-th word starting at channel, divided by 32768.
// A channel count of 0 is treated as mono.
func PCMToFloat(data []byte, channel, channels int) ([]float32, error) {
	if channels <= 0 {
		channels = 1
	}
	if len(data)%2 != 0 {
		return nil, &Error{Op: "pcm", Err: fmt.Errorf("odd byte count %d", len(data))}
	}
	if channel < 0 || channel >= channels {
		return nil, &Error{Op: "pcm", Err: fmt.Errorf("channel %d out of range for %d channels", channel, channels)}
	}

	frames := len(data) / 2 / channels
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		offset := (i*channels + channel) * 2
		samples[i] = audio.SampleFromInt16(int16(binary.LittleEndian.Uint16(data[offset:])))
	}

	return samples, nil
}

// FromText decodes standard base64 transport text
func FromText(text string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, &Error{Op: "base64", Err: err}
	}
	return data, nil
}
