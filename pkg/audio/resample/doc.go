// ABOUTME: Resampling package for sample rate conversion
// ABOUTME: Provides a streaming linear interpolation resampler
// Package resample converts interleaved float audio between sample rates.
//
// Used to bring file input to the 16 kHz capture rate and response
// audio to the output bus rate when they differ.
//
// Example:
//
//	r := resample.New(44100, 16000, 1)
//	out := make([]float32, r.OutputSamplesNeeded(len(in)))
//	n := r.Resample(in, out)
package resample
