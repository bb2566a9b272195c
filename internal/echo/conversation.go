// ABOUTME: One echo conversation over a live session connection
// ABOUTME: Detects the end of a user turn and plays the speech back
package echo

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harperreed/livewave-go/pkg/audio"
	"github.com/harperreed/livewave-go/pkg/audio/decode"
	"github.com/harperreed/livewave-go/pkg/audio/encode"
	"github.com/harperreed/livewave-go/pkg/audio/resample"
	"github.com/harperreed/livewave-go/pkg/protocol"
)

const writeTimeout = 5 * time.Second

// clientMessage is any message a live client sends
type clientMessage struct {
	Setup         *protocol.Setup         `json:"setup,omitempty"`
	RealtimeInput *protocol.RealtimeInput `json:"realtimeInput,omitempty"`
	ClientContent *protocol.ClientContent `json:"clientContent,omitempty"`
}

type conversation struct {
	srv  *Server
	conn *websocket.Conn
	id   string

	writeMu sync.Mutex

	// Input state, touched only by the reader
	speech     []float32
	speechRate int
	silence    int

	// Reply in progress
	replyMu     sync.Mutex
	replyCancel context.CancelFunc
	replyDone   chan struct{}
}

func newConversation(srv *Server, conn *websocket.Conn, id string) *conversation {
	return &conversation{
		srv:  srv,
		conn: conn,
		id:   id,
	}
}

// run performs the setup handshake then reads until the client leaves
func (c *conversation) run() {
	defer c.conn.Close()
	defer c.stopReply()

	if err := c.handshake(); err != nil {
		log.Printf("Session %s setup failed: %v", c.id, err)
		return
	}

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Error unmarshaling message: %v", err)
			continue
		}

		switch {
		case msg.RealtimeInput != nil:
			for _, chunk := range msg.RealtimeInput.MediaChunks {
				c.handleInput(chunk)
			}
		case msg.ClientContent != nil:
			c.handleText(msg.ClientContent)
		case msg.Setup != nil:
			log.Printf("Session %s: ignoring repeated setup", c.id)
		}
	}
}

// handshake waits for setup and answers setupComplete
func (c *conversation) handshake() error {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("error reading setup: %w", err)
	}

	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Setup == nil {
		c.writeJSON(protocol.ServerMessage{Error: &protocol.ServerError{
			Code:    400,
			Message: "first message must be setup",
			Status:  "INVALID_ARGUMENT",
		}})
		return fmt.Errorf("expected setup message")
	}

	voice := msg.Setup.GenerationConfig.SpeechConfig
	if c.srv.config.Debug && voice != nil {
		log.Printf("[DEBUG] Session %s voice %s", c.id, voice.VoiceConfig.PrebuiltVoiceConfig.VoiceName)
	}
	log.Printf("Session %s setup: model=%s", c.id, msg.Setup.Model)

	done := json.RawMessage("{}")
	return c.writeJSON(protocol.ServerMessage{SetupComplete: &done})
}

// handleInput tracks speech and silence in one microphone chunk
func (c *conversation) handleInput(data protocol.InlineData) {
	if !strings.HasPrefix(data.MIMEType, "audio/") {
		return
	}
	raw, err := decode.FromText(data.Data)
	if err != nil {
		log.Printf("Session %s: dropping malformed chunk: %v", c.id, err)
		return
	}
	samples, err := decode.PCMToFloat(raw, 0, 1)
	if err != nil {
		log.Printf("Session %s: dropping malformed chunk: %v", c.id, err)
		return
	}
	rate := audio.Chunk{MIMEType: data.MIMEType}.SampleRate(audio.InputSampleRate)

	if rms(samples) >= c.srv.config.Threshold {
		if c.stopReply() {
			c.srv.interrupts.Add(1)
			log.Printf("Session %s: user barged in", c.id)
			c.writeJSON(protocol.ServerMessage{ServerContent: &protocol.ServerContent{Interrupted: true}})
		}
		c.speech = append(c.speech, samples...)
		c.speechRate = rate
		c.silence = 0
		return
	}

	if len(c.speech) == 0 {
		return
	}
	c.silence += len(samples)
	if audio.FramesToDuration(int64(c.silence), rate) >= c.srv.config.Pause {
		speech := c.speech
		c.speech = nil
		c.silence = 0
		c.startReply(speech, c.speechRate)
	}
}

// handleText answers a text turn with a transcript only
func (c *conversation) handleText(content *protocol.ClientContent) {
	var parts []string
	for _, turn := range content.Turns {
		for _, part := range turn.Parts {
			if part.Text != "" {
				parts = append(parts, part.Text)
			}
		}
	}
	text := strings.Join(parts, " ")

	c.writeJSON(protocol.ServerMessage{ServerContent: &protocol.ServerContent{
		OutputTranscription: &protocol.Transcription{Text: "You said: " + text},
	}})
	c.writeJSON(protocol.ServerMessage{ServerContent: &protocol.ServerContent{TurnComplete: true}})
}

// startReply plays speech back in paced chunks
func (c *conversation) startReply(speech []float32, rate int) {
	c.stopReply()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.replyMu.Lock()
	c.replyCancel = cancel
	c.replyDone = done
	c.replyMu.Unlock()

	c.srv.turns.Add(1)
	go func() {
		defer close(done)
		c.reply(ctx, speech, rate)

		c.replyMu.Lock()
		if c.replyDone == done {
			c.replyCancel = nil
			c.replyDone = nil
		}
		c.replyMu.Unlock()
		cancel()
	}()
}

// stopReply cancels a reply in progress and reports whether there was one
func (c *conversation) stopReply() bool {
	c.replyMu.Lock()
	cancel := c.replyCancel
	done := c.replyDone
	c.replyCancel = nil
	c.replyDone = nil
	c.replyMu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	<-done
	return true
}

func (c *conversation) reply(ctx context.Context, speech []float32, rate int) {
	seconds := float64(len(speech)) / float64(rate)
	text := fmt.Sprintf("%.1f seconds of audio", seconds)

	if err := c.writeJSON(protocol.ServerMessage{ServerContent: &protocol.ServerContent{
		InputTranscription: &protocol.Transcription{Text: text},
	}}); err != nil {
		return
	}

	out := resample.Convert(speech, rate, audio.OutputSampleRate, 1)
	step := int(audio.DurationToFrames(c.srv.config.ChunkDuration, audio.OutputSampleRate))
	if step <= 0 {
		step = len(out)
	}
	mime := audio.OutputFormat.MIMEType()

	ticker := time.NewTicker(c.srv.config.ChunkDuration)
	defer ticker.Stop()

	for offset := 0; offset < len(out); offset += step {
		end := min(offset+step, len(out))
		msg := protocol.ServerMessage{ServerContent: &protocol.ServerContent{
			ModelTurn: &protocol.Content{
				Role: "model",
				Parts: []protocol.Part{{InlineData: &protocol.InlineData{
					MIMEType: mime,
					Data:     encode.ToText(encode.FloatToPCM(out[offset:end])),
				}}},
			},
		}}
		if err := c.writeJSON(msg); err != nil {
			return
		}

		// Stay one chunk ahead of real time
		if offset > 0 {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
		if ctx.Err() != nil {
			return
		}
	}

	c.writeJSON(protocol.ServerMessage{ServerContent: &protocol.ServerContent{
		OutputTranscription: &protocol.Transcription{Text: "Echo of " + text},
	}})
	c.writeJSON(protocol.ServerMessage{ServerContent: &protocol.ServerContent{TurnComplete: true}})
}

func (c *conversation) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(v); err != nil {
		if c.srv.config.Debug {
			log.Printf("[DEBUG] Session %s write error: %v", c.id, err)
		}
		return err
	}
	return nil
}

func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
