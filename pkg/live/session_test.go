// ABOUTME: Tests for the live session orchestrator
// ABOUTME: Drives a session with a fake transport, microphone and speaker
package live

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/harperreed/livewave-go/pkg/audio"
	"github.com/harperreed/livewave-go/pkg/audio/encode"
	"github.com/harperreed/livewave-go/pkg/audio/output"
	"github.com/harperreed/livewave-go/pkg/playback"
	"github.com/harperreed/livewave-go/pkg/protocol"
)

type fakeTransport struct {
	mu         sync.Mutex
	events     chan protocol.Event
	connectErr error
	chunks     []audio.Chunk
	closeOnce  sync.Once
	closed     bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: make(chan protocol.Event, 32)}
}

func (f *fakeTransport) Connect(ctx context.Context) error { return f.connectErr }

func (f *fakeTransport) SendChunk(chunk audio.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return &protocol.NetworkError{Op: "send", Err: errors.New("closed")}
	}
	f.chunks = append(f.chunks, chunk)
	return nil
}

func (f *fakeTransport) Events() <-chan protocol.Event { return f.events }

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closed = true
		f.mu.Unlock()
		close(f.events)
	})
	return nil
}

func (f *fakeTransport) sent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.chunks)
}

type fakeMic struct {
	mu      sync.Mutex
	process func([]float32)
	closed  int
	openErr error
}

func (m *fakeMic) Open(sampleRate, channels int, process func([]float32)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return m.openErr
	}
	m.process = process
	return nil
}

func (m *fakeMic) Start() error { return nil }

func (m *fakeMic) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

func (m *fakeMic) closedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// fakeSpeaker keeps the source so tests render by hand
type fakeSpeaker struct {
	src     output.Source
	opened  int
	closed  int
	volume  int
	muted   bool
	openErr error
}

func (o *fakeSpeaker) Open(sampleRate, channels int, src output.Source) error {
	if o.openErr != nil {
		return o.openErr
	}
	o.src = src
	o.opened++
	return nil
}

func (o *fakeSpeaker) Close() error    { o.closed++; return nil }
func (o *fakeSpeaker) SetVolume(v int) { o.volume = v }
func (o *fakeSpeaker) SetMuted(m bool) { o.muted = m }
func (o *fakeSpeaker) GetVolume() int  { return o.volume }
func (o *fakeSpeaker) IsMuted() bool   { return o.muted }

type harness struct {
	session    *Session
	transports []*fakeTransport
	mic        *fakeMic
	speaker    *fakeSpeaker

	mu          sync.Mutex
	transcripts []TranscriptEntry
	statuses    []Status
	errs        []error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{mic: &fakeMic{}, speaker: &fakeSpeaker{}}

	s, err := NewSession(Config{
		NewTransport: func(protocol.Config) Transport {
			tr := newFakeTransport()
			h.mu.Lock()
			h.transports = append(h.transports, tr)
			h.mu.Unlock()
			return tr
		},
		Capture: h.mic,
		Output:  h.speaker,
		OnTranscript: func(e TranscriptEntry) {
			h.mu.Lock()
			h.transcripts = append(h.transcripts, e)
			h.mu.Unlock()
		},
		OnStatus: func(st Status) {
			h.mu.Lock()
			h.statuses = append(h.statuses, st)
			h.mu.Unlock()
		},
		OnError: func(err error) {
			h.mu.Lock()
			h.errs = append(h.errs, err)
			h.mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	h.session = s
	t.Cleanup(func() { s.Close() })
	return h
}

func (h *harness) start(t *testing.T) *fakeTransport {
	t.Helper()
	if err := h.session.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.transports[len(h.transports)-1]
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for condition")
		}
		time.Sleep(time.Millisecond)
	}
}

func pcmChunk(frames int) audio.Chunk {
	samples := make([]float32, frames)
	for i := range samples {
		samples[i] = 0.25
	}
	return audio.Chunk{MIMEType: "audio/pcm;rate=24000", Data: encode.FloatToPCM(samples)}
}

func TestStartGoesLive(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	if st := h.session.Status(); st.State != StateLive || st.Playback != playback.Idle {
		t.Errorf("unexpected status %+v", st)
	}
	if h.speaker.opened != 1 || h.speaker.src == nil {
		t.Error("expected speaker opened with the playback bus")
	}
	if h.speaker.volume != 100 {
		t.Errorf("expected initial volume 100, got %d", h.speaker.volume)
	}
}

func TestAudioIsScheduledBackToBack(t *testing.T) {
	h := newHarness(t)
	tr := h.start(t)

	tr.events <- protocol.AudioReceived{Chunk: pcmChunk(12000)}
	tr.events <- protocol.AudioReceived{Chunk: pcmChunk(12000)}

	waitFor(t, func() bool { return h.session.Stats().Playback.Enqueued == 2 })

	if c := h.session.scheduler.Cursor(); c != 24000 {
		t.Errorf("expected cursor 24000, got %d", c)
	}
	if h.session.Status().Playback != playback.Draining {
		t.Error("expected draining playback")
	}

	// the speaker hears the decoded audio
	dst := make([]float32, 10)
	h.speaker.src.Render(dst)
	if dst[0] != 0.25 {
		t.Errorf("expected 0.25 rendered, got %f", dst[0])
	}
}

func TestInterruptedStopsPlayback(t *testing.T) {
	h := newHarness(t)
	tr := h.start(t)

	tr.events <- protocol.AudioReceived{Chunk: pcmChunk(2400)}
	tr.events <- protocol.AudioReceived{Chunk: pcmChunk(2400)}
	tr.events <- protocol.Interrupted{}

	waitFor(t, func() bool { return h.session.Stats().Interrupts == 1 })

	if n := h.session.Stats().InFlight; n != 0 {
		t.Errorf("expected nothing in flight, got %d", n)
	}
	if c := h.session.scheduler.Cursor(); c != 0 {
		t.Errorf("expected cursor reset, got %d", c)
	}

	dst := make([]float32, 100)
	h.speaker.src.Render(dst)
	for i, v := range dst {
		if v != 0 {
			t.Fatalf("frame %d = %f after interrupt", i, v)
		}
	}
}

func TestTranscriptsFlushOnTurnComplete(t *testing.T) {
	h := newHarness(t)
	tr := h.start(t)

	tr.events <- protocol.InputTranscript{Text: "hello "}
	tr.events <- protocol.InputTranscript{Text: "there"}
	tr.events <- protocol.OutputTranscript{Text: "Hi!"}

	time.Sleep(20 * time.Millisecond)
	h.mu.Lock()
	early := len(h.transcripts)
	h.mu.Unlock()
	if early != 0 {
		t.Fatalf("transcripts delivered before turn complete: %d", early)
	}

	tr.events <- protocol.TurnComplete{}
	waitFor(t, func() bool { return len(h.session.Transcript()) == 2 })

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.transcripts[0].Speaker != SpeakerUser || h.transcripts[0].Text != "hello there" {
		t.Errorf("unexpected user entry %+v", h.transcripts[0])
	}
	if h.transcripts[1].Speaker != SpeakerModel || h.transcripts[1].Text != "Hi!" {
		t.Errorf("unexpected model entry %+v", h.transcripts[1])
	}
	if h.transcripts[0].ID == "" || h.transcripts[0].ID == h.transcripts[1].ID {
		t.Error("expected unique entry ids")
	}
}

func TestEmptyTurnProducesNoEntries(t *testing.T) {
	h := newHarness(t)
	tr := h.start(t)

	tr.events <- protocol.TurnComplete{}
	waitFor(t, func() bool { return h.session.Stats().Turns == 1 })

	if len(h.session.Transcript()) != 0 {
		t.Error("expected no transcript entries")
	}
}

func TestMalformedAudioIsIsolated(t *testing.T) {
	h := newHarness(t)
	tr := h.start(t)

	tr.events <- protocol.AudioReceived{Chunk: audio.Chunk{MIMEType: "audio/pcm;rate=24000", Data: []byte{1, 2, 3}}}
	tr.events <- protocol.AudioReceived{Chunk: pcmChunk(100)}

	waitFor(t, func() bool { return h.session.Stats().Playback.Enqueued == 1 })

	if n := h.session.Stats().DecodeErrors; n != 1 {
		t.Errorf("expected 1 decode error, got %d", n)
	}
	if h.session.Status().State != StateLive {
		t.Error("decode error should not end the session")
	}
}

func TestConnectionClosedStopsCapture(t *testing.T) {
	h := newHarness(t)
	tr := h.start(t)

	tr.events <- protocol.ConnectionClosed{Reason: "session over"}
	waitFor(t, func() bool { return h.session.Status().State == StateClosed })

	if st := h.session.Status(); st.Reason != "session over" {
		t.Errorf("unexpected reason %q", st.Reason)
	}
	if h.mic.closedCount() != 1 {
		t.Errorf("expected microphone closed, got %d", h.mic.closedCount())
	}

	// no automatic reconnect
	time.Sleep(20 * time.Millisecond)
	h.mu.Lock()
	n := len(h.transports)
	h.mu.Unlock()
	if n != 1 {
		t.Errorf("expected one transport, got %d", n)
	}
}

func TestConnectionErrorReported(t *testing.T) {
	h := newHarness(t)
	tr := h.start(t)

	cause := &protocol.NetworkError{Op: "read", Err: errors.New("reset by peer")}
	tr.events <- protocol.ConnectionError{Err: cause}
	waitFor(t, func() bool { return h.session.Status().State == StateError })

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.errs) != 1 || !errors.Is(h.errs[0], cause) {
		t.Errorf("expected the network error reported, got %v", h.errs)
	}
}

func TestConnectFailure(t *testing.T) {
	h := &harness{mic: &fakeMic{}, speaker: &fakeSpeaker{}}
	var reported error
	s, _ := NewSession(Config{
		NewTransport: func(protocol.Config) Transport {
			tr := newFakeTransport()
			tr.connectErr = &protocol.NetworkError{Op: "dial", Err: errors.New("refused")}
			return tr
		},
		Capture: h.mic,
		Output:  h.speaker,
		OnError: func(err error) { reported = err },
	})
	defer s.Close()

	err := s.Start(context.Background())
	var netErr *protocol.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if s.Status().State != StateError || reported == nil {
		t.Error("expected error status and callback")
	}
	if h.speaker.opened != 0 {
		t.Error("speaker opened despite failed connect")
	}
}

func TestMicrophoneFailure(t *testing.T) {
	h := newHarness(t)
	h.mic.openErr = errors.New("permission denied")

	err := h.session.Start(context.Background())
	if err == nil {
		t.Fatal("expected start error")
	}
	if h.session.Status().State != StateError {
		t.Errorf("expected error state, got %v", h.session.Status().State)
	}
	h.mu.Lock()
	tr := h.transports[0]
	h.mu.Unlock()
	if !tr.closed {
		t.Error("expected transport closed after microphone failure")
	}
}

func TestMicrophoneStreamsToTransport(t *testing.T) {
	h := newHarness(t)
	tr := h.start(t)

	h.mic.process(make([]float32, 4096))
	waitFor(t, func() bool { return tr.sent() == 1 })

	if tr.chunks[0].MIMEType != "audio/pcm;rate=16000" || len(tr.chunks[0].Data) != 8192 {
		t.Errorf("unexpected chunk %q / %d bytes", tr.chunks[0].MIMEType, len(tr.chunks[0].Data))
	}
}

func TestStopIsIdempotent(t *testing.T) {
	h := newHarness(t)
	tr := h.start(t)

	h.session.Stop()
	h.session.Stop()

	if !tr.closed {
		t.Error("expected transport closed")
	}
	if h.session.Status().State != StateClosed {
		t.Errorf("expected closed, got %v", h.session.Status().State)
	}
}

func TestRestartAfterServerClose(t *testing.T) {
	h := newHarness(t)
	tr := h.start(t)

	tr.events <- protocol.ConnectionClosed{Reason: "bye"}
	waitFor(t, func() bool { return h.session.Status().State == StateClosed })

	h.start(t)
	if h.session.Status().State != StateLive {
		t.Errorf("expected live after restart, got %v", h.session.Status().State)
	}
	if h.speaker.opened != 1 {
		t.Errorf("expected speaker opened once, got %d", h.speaker.opened)
	}
}

func TestResetClearsTranscript(t *testing.T) {
	h := newHarness(t)
	tr := h.start(t)

	tr.events <- protocol.OutputTranscript{Text: "hi"}
	tr.events <- protocol.TurnComplete{}
	waitFor(t, func() bool { return len(h.session.Transcript()) == 1 })

	h.mic.process(make([]float32, 100))
	waitFor(t, func() bool { return h.session.inputTap.Written() == 100 })

	h.session.Reset()

	if n := h.session.inputTap.Written(); n != 0 {
		t.Errorf("expected input meter cleared, got %d samples", n)
	}
	if len(h.session.Transcript()) != 0 {
		t.Error("expected transcript cleared")
	}
	if h.session.Status().State != StateIdle {
		t.Errorf("expected idle, got %v", h.session.Status().State)
	}
	h.start(t)
}

func TestVolumeAndMute(t *testing.T) {
	h := newHarness(t)

	h.session.SetVolume(40)
	h.session.Mute(true)

	if h.session.Volume() != 40 || !h.session.Muted() {
		t.Errorf("expected volume 40 muted, got %d %v", h.session.Volume(), h.session.Muted())
	}
}

func TestAnalyzersAreSeparate(t *testing.T) {
	h := newHarness(t)
	if h.session.InputAnalyzer() == h.session.OutputAnalyzer() {
		t.Error("expected distinct analyzers")
	}
	if len(h.session.InputAnalyzer().Snapshot()) != 16 {
		t.Error("expected 16 bins")
	}
}
