// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, Chunk, Buffer types and sample conversion functions
// Package audio provides the fundamental audio types used by livewave.
//
// This package defines core types used throughout the library:
//   - Format: Describes a PCM stream (sample rate, channels, bit depth)
//   - Chunk: Transport unit of little-endian int16 PCM bytes
//   - Buffer: Decoded normalized float audio, one slice per channel
//
// Microphone audio travels at 16 kHz, responses arrive at 24 kHz, both mono.
//
// Example:
//
//	chunk := audio.Chunk{MIMEType: audio.InputFormat.MIMEType(), Data: pcm}
//	rate := chunk.SampleRate(audio.InputSampleRate)
package audio
