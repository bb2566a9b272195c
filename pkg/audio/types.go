// ABOUTME: Audio type definitions
// ABOUTME: Defines stream formats, transport chunks and decoded float buffers
package audio

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// InputSampleRate is the rate of outbound microphone chunks
	InputSampleRate = 16000

	// OutputSampleRate is the rate of inbound response chunks
	OutputSampleRate = 24000

	// Int16Scale maps normalized float samples to signed 16-bit words
	Int16Scale = 32768
)

// Format describes audio stream format
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// InputFormat is the wire format of microphone chunks
var InputFormat = Format{Codec: "pcm", SampleRate: InputSampleRate, Channels: 1, BitDepth: 16}

// OutputFormat is the wire format of response chunks
var OutputFormat = Format{Codec: "pcm", SampleRate: OutputSampleRate, Channels: 1, BitDepth: 16}

// MIMEType returns the transport mime type, e.g. "audio/pcm;rate=16000"
func (f Format) MIMEType() string {
	return fmt.Sprintf("audio/pcm;rate=%d", f.SampleRate)
}

// Chunk is one unit of transport: little-endian int16 PCM bytes.
// Chunks are immutable once created.
type Chunk struct {
	MIMEType string
	Data     []byte
}

// SampleRate parses the rate parameter of the chunk's mime type.
// Returns fallback when the mime type carries no rate.
func (c Chunk) SampleRate(fallback int) int {
	for _, param := range strings.Split(c.MIMEType, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || strings.TrimSpace(key) != "rate" {
			continue
		}
		if rate, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && rate > 0 {
			return rate
		}
	}
	return fallback
}

// Buffer is decoded, renderable audio: one normalized float sequence per
// channel. A Buffer is never mutated after creation.
type Buffer struct {
	SampleRate int
	Channels   [][]float32
}

// Frames returns the number of sample frames in the buffer
func (b Buffer) Frames() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the playback duration of the buffer
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return FramesToDuration(int64(b.Frames()), b.SampleRate)
}

// FramesToDuration converts a frame count at sampleRate to a duration
func FramesToDuration(frames int64, sampleRate int) time.Duration {
	return time.Duration(frames * int64(time.Second) / int64(sampleRate))
}

// DurationToFrames converts a duration to a frame count at sampleRate
func DurationToFrames(d time.Duration, sampleRate int) int64 {
	return int64(d) * int64(sampleRate) / int64(time.Second)
}

// SampleToInt16 converts a normalized float sample to int16, saturating
// at the 16-bit range
func SampleToInt16(sample float32) int16 {
	scaled := roundHalfAway(float64(sample) * Int16Scale)
	if scaled > 32767 {
		return 32767
	}
	if scaled < -32768 {
		return -32768
	}
	return int16(scaled)
}

// SampleFromInt16 converts an int16 sample to a normalized float
func SampleFromInt16(sample int16) float32 {
	return float32(sample) / Int16Scale
}

func roundHalfAway(v float64) int64 {
	if v < 0 {
		return int64(v - 0.5)
	}
	return int64(v + 0.5)
}
