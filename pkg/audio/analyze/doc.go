// ABOUTME: Frequency analysis package
// ABOUTME: Taps audio streams and renders smoothed byte spectra
// Package analyze turns a live sample stream into a 16-bin magnitude
// spectrum suitable for drawing once per display frame.
//
// A Tap sits in the audio path and keeps the latest samples. An Analyzer
// reads from one tap; each session keeps separate analyzers for the
// microphone and the model voice.
//
// Example:
//
//	tap := analyze.NewTap(analyze.FFTSize)
//	a := analyze.New(tap)
//	tap.Write(samples)
//	a.Update()
//	bins := a.Snapshot()
package analyze
