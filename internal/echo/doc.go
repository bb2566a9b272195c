// Package echo implements a local stand-in for the live endpoint.
//
// The server speaks the same setup and realtime input messages as the real
// service. Each user turn ends after a pause in the input; the recorded
// speech is then streamed back at 24 kHz with transcripts. Speaking over a
// reply produces an interrupted signal, which exercises barge-in handling
// in the client without network access or an API key.
package echo
