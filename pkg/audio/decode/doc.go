// ABOUTME: Audio decoder package for the inbound PCM codec and input files
// ABOUTME: Provides Decoder and Reader interfaces plus the decode Error type
// Package decode provides the inbound half of the PCM codec and readers
// for audio files used as a substitute microphone.
//
// Chunk decoding: base64 text -> bytes (FromText), bytes -> float
// buffers (PCMToFloat, PCMDecoder). Malformed input yields *Error so a
// single bad chunk can be dropped without disturbing the session.
//
// File readers: MP3 (go-mp3), FLAC (mewkiz/flac) and 16-bit WAV.
//
// Example:
//
//	data, err := decode.FromText(text)
//	samples, err := decode.PCMToFloat(data, 0, 1)
package decode
