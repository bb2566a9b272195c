// ABOUTME: Tests for audio types
// ABOUTME: Tests sample conversion, durations and mime parsing
package audio

import (
	"testing"
	"time"
)

func TestSampleToInt16(t *testing.T) {
	tests := []struct {
		name     string
		input    float32
		expected int16
	}{
		{"zero", 0, 0},
		{"half", 0.5, 16384},
		{"negative half", -0.5, -16384},
		{"full scale positive saturates", 1.0, 32767},
		{"full scale negative", -1.0, -32768},
		{"over range", 1.5, 32767},
		{"under range", -1.5, -32768},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleToInt16(tt.input)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestSampleFromInt16(t *testing.T) {
	tests := []struct {
		name     string
		input    int16
		expected float32
	}{
		{"zero", 0, 0},
		{"min", -32768, -1.0},
		{"half", 16384, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleFromInt16(tt.input)
			if result != tt.expected {
				t.Errorf("expected %f, got %f", tt.expected, result)
			}
		})
	}
}

func TestBufferDuration(t *testing.T) {
	buf := Buffer{
		SampleRate: OutputSampleRate,
		Channels:   [][]float32{make([]float32, 12000)},
	}

	if buf.Frames() != 12000 {
		t.Errorf("expected 12000 frames, got %d", buf.Frames())
	}
	if buf.Duration() != 500*time.Millisecond {
		t.Errorf("expected 500ms, got %v", buf.Duration())
	}

	empty := Buffer{SampleRate: OutputSampleRate}
	if empty.Duration() != 0 {
		t.Errorf("expected zero duration for empty buffer, got %v", empty.Duration())
	}
}

func TestFrameDurationConversion(t *testing.T) {
	if got := DurationToFrames(time.Second, 24000); got != 24000 {
		t.Errorf("expected 24000 frames, got %d", got)
	}
	if got := FramesToDuration(4096, 16000); got != 256*time.Millisecond {
		t.Errorf("expected 256ms, got %v", got)
	}
}

func TestChunkSampleRate(t *testing.T) {
	tests := []struct {
		mime     string
		expected int
	}{
		{"audio/pcm;rate=24000", 24000},
		{"audio/pcm; rate=16000", 16000},
		{"audio/pcm", 24000},
		{"audio/pcm;rate=abc", 24000},
	}

	for _, tt := range tests {
		got := Chunk{MIMEType: tt.mime}.SampleRate(OutputSampleRate)
		if got != tt.expected {
			t.Errorf("%q: expected %d, got %d", tt.mime, tt.expected, got)
		}
	}
}

func TestFormatMIMEType(t *testing.T) {
	if got := InputFormat.MIMEType(); got != "audio/pcm;rate=16000" {
		t.Errorf("unexpected input mime type %q", got)
	}
	if got := OutputFormat.MIMEType(); got != "audio/pcm;rate=24000" {
		t.Errorf("unexpected output mime type %q", got)
	}
}
