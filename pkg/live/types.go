// ABOUTME: Session status, transcript and statistics types
// ABOUTME: Values handed to UI callbacks and status polling
package live

import (
	"time"

	"github.com/harperreed/livewave-go/pkg/audio/capture"
	"github.com/harperreed/livewave-go/pkg/playback"
)

// State is the connection lifecycle state
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateLive       State = "live"
	StateClosed     State = "closed"
	StateError      State = "error"
)

// Status describes the session for display
type Status struct {
	State    State
	Reason   string
	Playback playback.State
}

// Speaker identifies who said a transcript line
type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerModel Speaker = "model"
)

// TranscriptEntry is the finished text of one side of a turn
type TranscriptEntry struct {
	ID      string
	Speaker Speaker
	Text    string
	Time    time.Time
}

// Stats contains session statistics
type Stats struct {
	Capture      capture.ChainStats
	Playback     playback.SchedulerStats
	InFlight     int
	DecodeErrors int64
	SendErrors   int64
	Turns        int64
	Interrupts   int64
	OutputClock  time.Duration
	Uptime       time.Duration
}
