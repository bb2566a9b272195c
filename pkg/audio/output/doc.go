// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides the Output interface and oto, malgo, PortAudio and null backends
// Package output provides pull-model audio playback.
//
// Backends call Source.Render from the device callback, so the source
// (normally a playback.Bus) decides what is heard and keeps the clock.
// Volume and mute are applied in software after rendering.
//
// Example:
//
//	out := output.NewOto()
//	err := out.Open(24000, 1, bus)
//	out.SetVolume(80)
package output
