// ABOUTME: WebSocket client for the live speech session
// ABOUTME: Handles connection, setup handshake and inbound event routing
package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/harperreed/livewave-go/pkg/audio"
	"github.com/harperreed/livewave-go/pkg/audio/decode"
	"github.com/harperreed/livewave-go/pkg/audio/encode"
)

const (
	// DefaultEndpoint is the live BidiGenerateContent websocket
	DefaultEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	// DefaultModel is the live model requested in setup
	DefaultModel = "models/gemini-2.0-flash-live-001"

	// DefaultVoice is the prebuilt output voice
	DefaultVoice = "Puck"

	writeTimeout      = 5 * time.Second
	keepaliveInterval = 20 * time.Second
)

// Config holds client configuration
type Config struct {
	Endpoint          string
	APIKey            string
	Model             string
	Voice             string
	SystemInstruction string
	SessionID         string
	UserAgent         string
	HandshakeTimeout  time.Duration
	EventBuffer       int
}

// ClientStats tracks transport metrics
type ClientStats struct {
	ChunksSent     int64
	BytesSent      int64
	ChunksReceived int64
	DecodeErrors   int64
}

// Client represents a live session connection
type Client struct {
	config Config
	conn   *websocket.Conn

	mu        sync.RWMutex
	writeMu   sync.Mutex
	connected bool
	closing   bool

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	chunksSent     atomic.Int64
	bytesSent      atomic.Int64
	chunksReceived atomic.Int64
	decodeErrors   atomic.Int64
}

// NewClient creates a new live session client
func NewClient(config Config) *Client {
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if !strings.HasPrefix(config.Model, "models/") {
		config.Model = "models/" + config.Model
	}
	if config.Voice == "" {
		config.Voice = DefaultVoice
	}
	if config.SessionID == "" {
		config.SessionID = uuid.New().String()
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = 10 * time.Second
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = 64
	}

	return &Client{
		config: config,
		events: make(chan Event, config.EventBuffer),
		done:   make(chan struct{}),
	}
}

// Connect dials the endpoint, sends setup and waits for setupComplete
func (c *Client) Connect(ctx context.Context) error {
	u, err := c.endpointURL()
	if err != nil {
		return err
	}
	log.Printf("Connecting to %s (session %s)", redact(u), c.config.SessionID)

	header := http.Header{}
	header.Set("X-Session-Id", c.config.SessionID)
	if c.config.UserAgent != "" {
		header.Set("User-Agent", c.config.UserAgent)
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = c.config.HandshakeTimeout

	conn, _, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return &NetworkError{Op: "dial", Err: err}
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.handshake(ctx); err != nil {
		c.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	c.wg.Add(2)
	go c.readMessages()
	go c.keepalive()

	return nil
}

// endpointURL adds the API key to the configured endpoint
func (c *Client) endpointURL() (*url.URL, error) {
	u, err := url.Parse(c.config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", c.config.Endpoint, err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported endpoint scheme: %s", u.Scheme)
	}
	if c.config.APIKey != "" {
		q := u.Query()
		q.Set("key", c.config.APIKey)
		u.RawQuery = q.Encode()
	}
	return u, nil
}

// redact hides the API key in logged URLs
func redact(u *url.URL) string {
	clean := *u
	q := clean.Query()
	if q.Has("key") {
		q.Set("key", "REDACTED")
		clean.RawQuery = q.Encode()
	}
	return clean.String()
}

// handshake sends setup and waits for setupComplete
func (c *Client) handshake(ctx context.Context) error {
	setup := SetupMessage{
		Setup: Setup{
			Model: c.config.Model,
			GenerationConfig: GenerationConfig{
				ResponseModalities: []string{"AUDIO"},
				SpeechConfig: &SpeechConfig{
					VoiceConfig: VoiceConfig{
						PrebuiltVoiceConfig: PrebuiltVoiceConfig{VoiceName: c.config.Voice},
					},
				},
			},
			InputAudioTranscription:  &struct{}{},
			OutputAudioTranscription: &struct{}{},
		},
	}
	if c.config.SystemInstruction != "" {
		setup.Setup.SystemInstruction = &Content{
			Parts: []Part{{Text: c.config.SystemInstruction}},
		}
	}

	if err := c.writeJSON(setup); err != nil {
		return fmt.Errorf("failed to send setup: %w", err)
	}

	deadline := time.Now().Add(c.config.HandshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.conn.SetReadDeadline(deadline)
	defer c.conn.SetReadDeadline(time.Time{})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return &NetworkError{Op: "setup", Err: err}
		}

		var msg ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Ignoring unparseable message during setup: %v", err)
			continue
		}
		if msg.Error != nil {
			return fmt.Errorf("server rejected setup: %s", msg.Error.Message)
		}
		if msg.SetupComplete != nil {
			log.Printf("Setup complete: model=%s voice=%s", c.config.Model, c.config.Voice)
			return nil
		}
	}
}

// writeJSON serializes writers on the connection
func (c *Client) writeJSON(v any) error {
	c.mu.RLock()
	conn := c.conn
	connected := c.connected
	c.mu.RUnlock()

	if !connected {
		return fmt.Errorf("not connected")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(v)
}

// SendChunk streams one microphone chunk
func (c *Client) SendChunk(chunk audio.Chunk) error {
	msg := RealtimeInputMessage{
		RealtimeInput: RealtimeInput{
			MediaChunks: []InlineData{{
				MIMEType: chunk.MIMEType,
				Data:     encode.ToText(chunk.Data),
			}},
		},
	}

	if err := c.writeJSON(msg); err != nil {
		return &NetworkError{Op: "send", Err: err}
	}

	c.chunksSent.Add(1)
	c.bytesSent.Add(int64(len(chunk.Data)))
	return nil
}

// SendText sends a complete user text turn
func (c *Client) SendText(text string) error {
	msg := ClientContentMessage{
		ClientContent: ClientContent{
			Turns:        []Content{{Role: "user", Parts: []Part{{Text: text}}}},
			TurnComplete: true,
		},
	}
	if err := c.writeJSON(msg); err != nil {
		return &NetworkError{Op: "send", Err: err}
	}
	return nil
}

// Events returns inbound events in wire order. The channel is closed
// after the terminal ConnectionClosed or ConnectionError.
func (c *Client) Events() <-chan Event {
	return c.events
}

// readMessages reads and routes incoming messages
func (c *Client) readMessages() {
	defer c.wg.Done()
	defer close(c.events)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.emitTerminal(c.classifyReadError(err))
			c.markDisconnected()
			return
		}

		var msg ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Failed to parse server message: %v", err)
			continue
		}

		if !c.handleServerMessage(&msg) {
			c.markDisconnected()
			c.conn.Close()
			return
		}
	}
}

// handleServerMessage emits events for msg; false ends the connection
func (c *Client) handleServerMessage(msg *ServerMessage) bool {
	if msg.Error != nil {
		err := fmt.Errorf("server error %d: %s", msg.Error.Code, msg.Error.Message)
		log.Printf("Server error: %v", err)
		c.emitTerminal(ConnectionError{Err: err})
		return false
	}

	if sc := msg.ServerContent; sc != nil {
		if sc.ModelTurn != nil {
			for _, part := range sc.ModelTurn.Parts {
				if part.InlineData == nil || !strings.HasPrefix(part.InlineData.MIMEType, "audio/") {
					continue
				}
				data, err := decode.FromText(part.InlineData.Data)
				if err != nil {
					n := c.decodeErrors.Add(1)
					log.Printf("Dropping malformed audio chunk (%d total): %v", n, err)
					continue
				}
				n := c.chunksReceived.Add(1)
				if n <= 3 {
					log.Printf("Audio chunk #%d: %d bytes, %s", n, len(data), part.InlineData.MIMEType)
				}
				if !c.emit(AudioReceived{Chunk: audio.Chunk{MIMEType: part.InlineData.MIMEType, Data: data}}) {
					return false
				}
			}
		}
		if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
			if !c.emit(InputTranscript{Text: sc.InputTranscription.Text}) {
				return false
			}
		}
		if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
			if !c.emit(OutputTranscript{Text: sc.OutputTranscription.Text}) {
				return false
			}
		}
		if sc.Interrupted {
			log.Printf("Server signalled interruption")
			if !c.emit(Interrupted{}) {
				return false
			}
		}
		if sc.TurnComplete {
			if !c.emit(TurnComplete{}) {
				return false
			}
		}
	}

	if msg.GoAway != nil {
		log.Printf("Server going away (time left %s)", msg.GoAway.TimeLeft)
		c.emitTerminal(ConnectionClosed{Reason: "server going away"})
		return false
	}

	return true
}

// emit delivers ev unless the client is closing
func (c *Client) emit(ev Event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

// emitTerminal delivers the final event; a local Close suppresses it
func (c *Client) emitTerminal(ev Event) {
	c.mu.RLock()
	closing := c.closing
	c.mu.RUnlock()
	if closing {
		return
	}
	c.emit(ev)
}

// classifyReadError maps a read failure to the terminal event
func (c *Client) classifyReadError(err error) Event {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Code != websocket.CloseAbnormalClosure {
		reason := closeErr.Text
		if reason == "" {
			reason = fmt.Sprintf("close code %d", closeErr.Code)
		}
		log.Printf("Connection closed by server: %s", reason)
		return ConnectionClosed{Reason: reason}
	}
	log.Printf("Read error: %v", err)
	return ConnectionError{Err: &NetworkError{Op: "read", Err: err}}
}

// keepalive pings the server until the connection ends
func (c *Client) keepalive() {
	defer c.wg.Done()

	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			c.writeMu.Unlock()
			if err != nil {
				log.Printf("Keepalive ping failed: %v", err)
				return
			}
		}
	}
}

func (c *Client) markDisconnected() {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.done) })
}

// Close closes the connection. No terminal event is emitted for a local close.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	wasConnected := c.connected
	c.closing = true
	c.connected = false
	c.mu.Unlock()

	c.closeOnce.Do(func() { close(c.done) })

	if conn == nil {
		return nil
	}
	if wasConnected {
		c.writeMu.Lock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client closing"),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		log.Printf("Connection closed")
	}
	err := conn.Close()
	c.wg.Wait()
	return err
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SessionID returns the id sent with the connection
func (c *Client) SessionID() string {
	return c.config.SessionID
}

// Stats returns transport statistics
func (c *Client) Stats() ClientStats {
	return ClientStats{
		ChunksSent:     c.chunksSent.Load(),
		BytesSent:      c.bytesSent.Load(),
		ChunksReceived: c.chunksReceived.Load(),
		DecodeErrors:   c.decodeErrors.Load(),
	}
}
