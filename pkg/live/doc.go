// ABOUTME: Live session package
// ABOUTME: High-level API for a full-duplex voice conversation
// Package live ties microphone capture, the live transport and gapless
// playback into one conversation.
//
// Server events are handled on a single goroutine in arrival order:
// audio is decoded and scheduled, an interruption silences queued audio,
// transcript fragments collect until the turn completes.
//
// Example:
//
//	s, err := live.NewSession(live.Config{
//		Client:       protocol.Config{APIKey: key},
//		OnTranscript: func(e live.TranscriptEntry) { fmt.Println(e.Text) },
//	})
//	err = s.Start(ctx)
//	defer s.Close()
package live
