// ABOUTME: Audio capture package
// ABOUTME: Input sources and the chain that streams them as PCM chunks
// Package capture turns microphone input into transport chunks.
//
// A Source delivers float samples from a device (malgo, PortAudio), a
// decoded file or a test tone. A Chain opens a source at 16 kHz mono,
// frames the callbacks into 4096-sample blocks, encodes each block as
// little-endian PCM and sends the chunks in order on one goroutine.
//
// Example:
//
//	chain := capture.NewChain(capture.ChainConfig{
//		Source: capture.NewMalgo(),
//		Sender: client,
//	})
//	err := chain.Start(ctx)
//	defer chain.Stop()
package capture
