// ABOUTME: Audio encoder package for encoding float audio to wire bytes
// ABOUTME: Provides Encoder interface, PCM implementation and text encoding
// Package encode provides the outbound half of the PCM codec.
//
// Samples are normalized floats in [-1, 1]; the wire format is mono
// 16-bit little-endian PCM carried as base64 text.
//
// Example:
//
//	pcm := encode.FloatToPCM(samples)
//	text := encode.ToText(pcm)
package encode
