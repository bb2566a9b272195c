// ABOUTME: Live voice session orchestrating capture, transport and playback
// ABOUTME: Routes server events in order to the scheduler and transcript log
package live

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/livewave-go/pkg/audio"
	"github.com/harperreed/livewave-go/pkg/audio/analyze"
	"github.com/harperreed/livewave-go/pkg/audio/capture"
	"github.com/harperreed/livewave-go/pkg/audio/decode"
	"github.com/harperreed/livewave-go/pkg/audio/output"
	"github.com/harperreed/livewave-go/pkg/playback"
	"github.com/harperreed/livewave-go/pkg/protocol"
)

// Transport is the remote side of a session. *protocol.Client implements it.
type Transport interface {
	Connect(ctx context.Context) error
	SendChunk(chunk audio.Chunk) error
	Events() <-chan protocol.Event
	Close() error
}

// Config holds session configuration
type Config struct {
	// Client configures the default transport
	Client protocol.Config

	// NewTransport overrides transport creation (default: protocol.NewClient)
	NewTransport func(protocol.Config) Transport

	// Capture is the microphone source (default: malgo)
	Capture capture.Source

	// Output is the speaker backend (default: oto)
	Output output.Output

	// OutputSampleRate is the playback bus rate (default: 24000)
	OutputSampleRate int

	// OutputChannels is the device channel count (default: 1)
	OutputChannels int

	// Volume is the initial volume (0-100, default: 100)
	Volume int

	// OnTranscript is called with each finished turn's text
	OnTranscript func(TranscriptEntry)

	// OnTranscriptFragment is called for every partial transcript
	OnTranscriptFragment func(Speaker, string)

	// OnStatus is called when the session status changes
	OnStatus func(Status)

	// OnError is called when errors occur
	OnError func(error)
}

// Session owns one live conversation
type Session struct {
	config Config

	inputTap       *analyze.Tap
	outputTap      *analyze.Tap
	inputAnalyzer  *analyze.Analyzer
	outputAnalyzer *analyze.Analyzer
	bus            *playback.Bus
	scheduler      *playback.Scheduler
	output         output.Output

	mu         sync.Mutex
	transport  Transport
	chain      *capture.Chain
	status     Status
	outputOpen bool
	stopping   bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup

	// Per-turn fragments, touched only by the event loop
	inputText  strings.Builder
	outputText strings.Builder

	historyMu sync.Mutex
	history   []TranscriptEntry

	decodeErrors atomic.Int64
	sendErrors   atomic.Int64
	turns        atomic.Int64
	interrupts   atomic.Int64
	startedAt    time.Time
}

// NewSession creates a session; nothing is opened until Start
func NewSession(config Config) (*Session, error) {
	if config.OutputSampleRate <= 0 {
		config.OutputSampleRate = audio.OutputSampleRate
	}
	if config.OutputChannels <= 0 {
		config.OutputChannels = 1
	}
	if config.Volume == 0 {
		config.Volume = 100
	}
	if config.NewTransport == nil {
		config.NewTransport = func(c protocol.Config) Transport {
			return protocol.NewClient(c)
		}
	}
	if config.Capture == nil {
		config.Capture = capture.NewMalgo()
	}
	if config.Output == nil {
		config.Output = output.NewOto()
	}

	s := &Session{
		config:    config,
		inputTap:  analyze.NewTap(analyze.FFTSize),
		outputTap: analyze.NewTap(analyze.FFTSize),
		output:    config.Output,
		status:    Status{State: StateIdle},
	}
	s.inputAnalyzer = analyze.New(s.inputTap)
	s.outputAnalyzer = analyze.New(s.outputTap)
	s.bus = playback.NewBus(config.OutputSampleRate, s.outputTap)
	s.scheduler = playback.NewScheduler(s.bus)

	if vc, ok := s.output.(output.VolumeControl); ok {
		vc.SetVolume(config.Volume)
	}

	return s, nil
}

// Start connects, opens the speaker and starts streaming the microphone
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	ended := s.status.State == StateClosed || s.status.State == StateError
	if s.transport != nil && !ended {
		s.mu.Unlock()
		return fmt.Errorf("session already started")
	}
	s.mu.Unlock()

	// Tear down what is left of a session the server ended
	if ended {
		s.Stop()
	}

	s.mu.Lock()
	s.stopping = false
	s.mu.Unlock()

	s.setStatus(Status{State: StateConnecting})

	transport := s.config.NewTransport(s.config.Client)
	if err := transport.Connect(ctx); err != nil {
		s.fail(fmt.Errorf("failed to connect: %w", err))
		return err
	}

	if err := s.openOutput(); err != nil {
		transport.Close()
		s.fail(err)
		return err
	}

	chain := capture.NewChain(capture.ChainConfig{
		Source:     s.config.Capture,
		Sender:     transport,
		SampleRate: audio.InputSampleRate,
		Tap:        s.inputTap,
		OnError:    s.handleSendError,
	})

	loopCtx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.transport = transport
	s.chain = chain
	s.cancel = cancel
	s.startedAt = time.Now()
	s.mu.Unlock()

	if err := chain.Start(ctx); err != nil {
		s.Stop()
		err = fmt.Errorf("failed to start microphone: %w", err)
		s.fail(err)
		return err
	}

	s.wg.Add(1)
	go s.eventLoop(loopCtx, transport, chain)

	// The event loop may already have seen the connection end
	s.mu.Lock()
	live := s.status.State == StateConnecting
	if live {
		s.status = Status{State: StateLive}
	}
	s.mu.Unlock()

	if live {
		log.Printf("Session live")
		if s.config.OnStatus != nil {
			s.config.OnStatus(s.Status())
		}
	}
	return nil
}

// openOutput opens the speaker once for the life of the session
func (s *Session) openOutput() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.outputOpen {
		return nil
	}
	if err := s.output.Open(s.config.OutputSampleRate, s.config.OutputChannels, s.bus); err != nil {
		return fmt.Errorf("failed to open audio output: %w", err)
	}
	s.outputOpen = true
	return nil
}

// eventLoop consumes transport events in order. Decoding happens here so
// buffers are scheduled in arrival order.
func (s *Session) eventLoop(ctx context.Context, transport Transport, chain *capture.Chain) {
	defer s.wg.Done()

	events := transport.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				s.handleEnd(chain, Status{State: StateClosed, Reason: "connection ended"}, nil)
				return
			}
			if !s.handleEvent(ev, chain) {
				return
			}
		}
	}
}

// handleEvent applies one event; false ends the loop
func (s *Session) handleEvent(ev protocol.Event, chain *capture.Chain) bool {
	switch ev := ev.(type) {
	case protocol.AudioReceived:
		s.handleAudio(ev.Chunk)

	case protocol.InputTranscript:
		s.inputText.WriteString(ev.Text)
		if s.config.OnTranscriptFragment != nil {
			s.config.OnTranscriptFragment(SpeakerUser, ev.Text)
		}

	case protocol.OutputTranscript:
		s.outputText.WriteString(ev.Text)
		if s.config.OnTranscriptFragment != nil {
			s.config.OnTranscriptFragment(SpeakerModel, ev.Text)
		}

	case protocol.Interrupted:
		s.interrupts.Add(1)
		s.scheduler.Interrupt()

	case protocol.TurnComplete:
		s.turns.Add(1)
		s.flushTranscripts()

	case protocol.ConnectionClosed:
		s.handleEnd(chain, Status{State: StateClosed, Reason: ev.Reason}, nil)
		return false

	case protocol.ConnectionError:
		s.handleEnd(chain, Status{State: StateError, Reason: ev.Err.Error()}, ev.Err)
		return false

	default:
		log.Printf("Unknown session event: %T", ev)
	}
	return true
}

// handleAudio decodes a response chunk and schedules it
func (s *Session) handleAudio(chunk audio.Chunk) {
	samples, err := decode.PCMToFloat(chunk.Data, 0, 1)
	if err != nil {
		n := s.decodeErrors.Add(1)
		log.Printf("Dropping undecodable chunk (%d total): %v", n, err)
		return
	}

	buf := audio.Buffer{
		SampleRate: chunk.SampleRate(audio.OutputSampleRate),
		Channels:   [][]float32{samples},
	}
	if err := s.scheduler.Enqueue(buf); err != nil {
		log.Printf("Failed to schedule chunk: %v", err)
	}
}

// flushTranscripts emits the finished turn's text
func (s *Session) flushTranscripts() {
	now := time.Now()
	for _, part := range []struct {
		speaker Speaker
		text    *strings.Builder
	}{
		{SpeakerUser, &s.inputText},
		{SpeakerModel, &s.outputText},
	} {
		text := strings.TrimSpace(part.text.String())
		part.text.Reset()
		if text == "" {
			continue
		}

		entry := TranscriptEntry{
			ID:      uuid.New().String(),
			Speaker: part.speaker,
			Text:    text,
			Time:    now,
		}

		s.historyMu.Lock()
		s.history = append(s.history, entry)
		s.historyMu.Unlock()

		if s.config.OnTranscript != nil {
			s.config.OnTranscript(entry)
		}
	}
}

// handleEnd reacts to the remote side going away; no reconnect is attempted
func (s *Session) handleEnd(chain *capture.Chain, status Status, err error) {
	s.mu.Lock()
	stopping := s.stopping
	s.mu.Unlock()
	if stopping {
		return
	}

	chain.Stop()
	log.Printf("Session ended: %s", status.Reason)
	s.setStatus(status)
	if err != nil && s.config.OnError != nil {
		s.config.OnError(err)
	}
}

// handleSendError is called by the capture chain when a chunk fails to send
func (s *Session) handleSendError(err error) {
	if s.sendErrors.Add(1) == 1 {
		var netErr *protocol.NetworkError
		if errors.As(err, &netErr) && s.config.OnError != nil {
			s.config.OnError(err)
		}
	}
}

// Stop stops capture, silences playback and closes the connection.
// Safe to call more than once. Must not be called from a session callback.
func (s *Session) Stop() {
	s.mu.Lock()
	s.stopping = true
	transport := s.transport
	chain := s.chain
	cancel := s.cancel
	s.transport = nil
	s.chain = nil
	s.cancel = nil
	s.mu.Unlock()

	if chain != nil {
		chain.Stop()
	}
	s.scheduler.Interrupt()
	if transport != nil {
		if err := transport.Close(); err != nil {
			log.Printf("Warning: transport close error: %v", err)
		}
	}
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()

	if transport != nil {
		s.setStatus(Status{State: StateClosed, Reason: "stopped"})
	}
}

// Reset stops the session and clears transcripts and meters so Start can
// begin a fresh conversation
func (s *Session) Reset() {
	s.Stop()

	s.inputText.Reset()
	s.outputText.Reset()

	s.historyMu.Lock()
	s.history = nil
	s.historyMu.Unlock()

	s.inputTap.Reset()
	s.outputTap.Reset()
	s.inputAnalyzer.Reset()
	s.outputAnalyzer.Reset()

	s.setStatus(Status{State: StateIdle})
}

// Close stops the session and releases the speaker
func (s *Session) Close() error {
	s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outputOpen {
		s.outputOpen = false
		return s.output.Close()
	}
	return nil
}

// Interrupt silences queued response audio locally
func (s *Session) Interrupt() {
	s.interrupts.Add(1)
	s.scheduler.Interrupt()
}

// InputAnalyzer returns the microphone spectrum analyzer
func (s *Session) InputAnalyzer() *analyze.Analyzer {
	return s.inputAnalyzer
}

// OutputAnalyzer returns the model voice spectrum analyzer
func (s *Session) OutputAnalyzer() *analyze.Analyzer {
	return s.outputAnalyzer
}

// Status returns the current session status
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	st.Playback = s.scheduler.State()
	return st
}

// Transcript returns the finished transcript entries so far
func (s *Session) Transcript() []TranscriptEntry {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	return append([]TranscriptEntry(nil), s.history...)
}

// Stats returns session statistics
func (s *Session) Stats() Stats {
	s.mu.Lock()
	chain := s.chain
	started := s.startedAt
	s.mu.Unlock()

	stats := Stats{
		Playback:     s.scheduler.Stats(),
		InFlight:     s.scheduler.InFlight(),
		DecodeErrors: s.decodeErrors.Load(),
		SendErrors:   s.sendErrors.Load(),
		Turns:        s.turns.Load(),
		Interrupts:   s.interrupts.Load(),
		OutputClock:  s.bus.Elapsed(),
	}
	if chain != nil {
		stats.Capture = chain.Stats()
	}
	if !started.IsZero() {
		stats.Uptime = time.Since(started)
	}
	return stats
}

// SetVolume sets the playback volume (0-100)
func (s *Session) SetVolume(volume int) {
	if vc, ok := s.output.(output.VolumeControl); ok {
		vc.SetVolume(volume)
	}
}

// Volume returns the playback volume
func (s *Session) Volume() int {
	if vc, ok := s.output.(output.VolumeControl); ok {
		return vc.GetVolume()
	}
	return s.config.Volume
}

// Mute sets the playback mute state
func (s *Session) Mute(muted bool) {
	if vc, ok := s.output.(output.VolumeControl); ok {
		vc.SetMuted(muted)
	}
}

// Muted returns the playback mute state
func (s *Session) Muted() bool {
	if vc, ok := s.output.(output.VolumeControl); ok {
		return vc.IsMuted()
	}
	return false
}

func (s *Session) setStatus(status Status) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()

	if s.config.OnStatus != nil {
		s.config.OnStatus(s.Status())
	}
}

func (s *Session) fail(err error) {
	log.Printf("Session error: %v", err)
	s.setStatus(Status{State: StateError, Reason: err.Error()})
	if s.config.OnError != nil {
		s.config.OnError(err)
	}
}
