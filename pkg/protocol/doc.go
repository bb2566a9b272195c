// ABOUTME: Live session wire protocol package
// ABOUTME: Defines protocol messages, session events and the WebSocket client
// Package protocol implements the live speech session transport.
//
// The client sends a setup message, streams microphone audio as base64
// PCM media chunks and turns server content into typed events delivered
// in wire order on a single channel.
//
// Example:
//
//	client := protocol.NewClient(protocol.Config{APIKey: key})
//	err := client.Connect(ctx)
//	err = client.SendChunk(chunk)
//	for ev := range client.Events() {
//		...
//	}
package protocol
