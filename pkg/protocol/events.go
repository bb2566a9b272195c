// ABOUTME: Session events delivered by the client
// ABOUTME: One event type per inbound signal the session reacts to
package protocol

import (
	"fmt"

	"github.com/harperreed/livewave-go/pkg/audio"
)

// Event is one inbound signal, delivered in wire order
type Event interface {
	isEvent()
}

// AudioReceived carries one decoded response chunk
type AudioReceived struct {
	Chunk audio.Chunk
}

// InputTranscript is a fragment of the user's recognized speech
type InputTranscript struct {
	Text string
}

// OutputTranscript is a fragment of the model's spoken text
type OutputTranscript struct {
	Text string
}

// TurnComplete marks the end of a model turn
type TurnComplete struct{}

// Interrupted means the user barged in and queued audio must stop
type Interrupted struct{}

// ConnectionClosed means the remote end closed the session
type ConnectionClosed struct {
	Reason string
}

// ConnectionError means the transport failed
type ConnectionError struct {
	Err error
}

func (AudioReceived) isEvent()    {}
func (InputTranscript) isEvent()  {}
func (OutputTranscript) isEvent() {}
func (TurnComplete) isEvent()     {}
func (Interrupted) isEvent()      {}
func (ConnectionClosed) isEvent() {}
func (ConnectionError) isEvent()  {}

// NetworkError is a failure to reach or write to the remote session
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
