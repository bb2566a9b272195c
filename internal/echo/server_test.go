package echo

import (
	"context"
	"encoding/json"
	"math"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harperreed/livewave-go/pkg/audio"
	"github.com/harperreed/livewave-go/pkg/audio/encode"
	"github.com/harperreed/livewave-go/pkg/protocol"
)

const chunkFrames = 1600 // 100ms at 16kHz

func startServer(t *testing.T, config Config) (*Server, string) {
	t.Helper()
	srv := New(config)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, "ws" + strings.TrimPrefix(ts.URL, "http") + "/live"
}

func connect(t *testing.T, endpoint, key string) *protocol.Client {
	t.Helper()
	client := protocol.NewClient(protocol.Config{
		Endpoint:         endpoint,
		APIKey:           key,
		HandshakeTimeout: 2 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func toneChunk(amplitude float64) audio.Chunk {
	samples := make([]float32, chunkFrames)
	for i := range samples {
		samples[i] = float32(amplitude * math.Sin(2*math.Pi*440*float64(i)/audio.InputSampleRate))
	}
	return audio.Chunk{MIMEType: audio.InputFormat.MIMEType(), Data: encode.FloatToPCM(samples)}
}

func send(t *testing.T, client *protocol.Client, chunk audio.Chunk, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := client.SendChunk(chunk); err != nil {
			t.Fatalf("SendChunk failed: %v", err)
		}
	}
}

// collect gathers events until stop returns true or the timeout expires
func collect(t *testing.T, client *protocol.Client, timeout time.Duration, stop func(protocol.Event) bool) []protocol.Event {
	t.Helper()
	var events []protocol.Event
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-client.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
			if stop(ev) {
				return events
			}
		case <-deadline:
			t.Fatalf("timed out after %d events", len(events))
		}
	}
}

func TestEchoTurn(t *testing.T) {
	srv, endpoint := startServer(t, Config{
		Pause:         200 * time.Millisecond,
		ChunkDuration: 20 * time.Millisecond,
	})
	client := connect(t, endpoint, "")

	send(t, client, toneChunk(0.5), 5)
	send(t, client, toneChunk(0), 3)

	events := collect(t, client, 5*time.Second, func(ev protocol.Event) bool {
		_, ok := ev.(protocol.TurnComplete)
		return ok
	})

	var (
		frames     int
		inputText  string
		outputText string
	)
	for _, ev := range events {
		switch ev := ev.(type) {
		case protocol.AudioReceived:
			if rate := ev.Chunk.SampleRate(0); rate != audio.OutputSampleRate {
				t.Errorf("expected 24kHz reply, got %d", rate)
			}
			frames += len(ev.Chunk.Data) / 2
		case protocol.InputTranscript:
			inputText += ev.Text
		case protocol.OutputTranscript:
			outputText += ev.Text
		case protocol.Interrupted:
			t.Error("unexpected interruption")
		}
	}

	// 0.5s of speech at 24kHz
	if frames < 11990 || frames > 12010 {
		t.Errorf("expected ~12000 reply frames, got %d", frames)
	}
	if inputText != "0.5 seconds of audio" {
		t.Errorf("unexpected input transcript %q", inputText)
	}
	if !strings.Contains(outputText, "0.5 seconds") {
		t.Errorf("unexpected output transcript %q", outputText)
	}
	if srv.Stats().Turns != 1 {
		t.Errorf("expected 1 turn, got %d", srv.Stats().Turns)
	}
}

func TestSilenceAloneIsNotATurn(t *testing.T) {
	srv, endpoint := startServer(t, Config{Pause: 100 * time.Millisecond})
	client := connect(t, endpoint, "")

	send(t, client, toneChunk(0), 10)

	select {
	case ev := <-client.Events():
		t.Errorf("unexpected event %T", ev)
	case <-time.After(300 * time.Millisecond):
	}
	if srv.Stats().Turns != 0 {
		t.Errorf("expected no turns, got %d", srv.Stats().Turns)
	}
}

func TestBargeInInterrupts(t *testing.T) {
	srv, endpoint := startServer(t, Config{
		Pause:         200 * time.Millisecond,
		ChunkDuration: 100 * time.Millisecond,
	})
	client := connect(t, endpoint, "")

	// 2s of speech makes a reply long enough to talk over
	send(t, client, toneChunk(0.5), 20)
	send(t, client, toneChunk(0), 3)

	collect(t, client, 5*time.Second, func(ev protocol.Event) bool {
		_, ok := ev.(protocol.AudioReceived)
		return ok
	})

	send(t, client, toneChunk(0.5), 1)

	events := collect(t, client, 5*time.Second, func(ev protocol.Event) bool {
		_, ok := ev.(protocol.Interrupted)
		return ok
	})
	for _, ev := range events {
		if _, ok := ev.(protocol.TurnComplete); ok {
			t.Error("reply completed before the interruption")
		}
	}
	if srv.Stats().Interrupts != 1 {
		t.Errorf("expected 1 interrupt, got %d", srv.Stats().Interrupts)
	}
}

func TestTextTurn(t *testing.T) {
	_, endpoint := startServer(t, Config{})
	client := connect(t, endpoint, "")

	if err := client.SendText("hello there"); err != nil {
		t.Fatalf("SendText failed: %v", err)
	}

	events := collect(t, client, 2*time.Second, func(ev protocol.Event) bool {
		_, ok := ev.(protocol.TurnComplete)
		return ok
	})
	out, ok := events[0].(protocol.OutputTranscript)
	if !ok || !strings.Contains(out.Text, "hello there") {
		t.Errorf("expected echoed text transcript, got %#v", events[0])
	}
}

func TestAPIKeyRequired(t *testing.T) {
	_, endpoint := startServer(t, Config{APIKey: "secret"})

	bad := protocol.NewClient(protocol.Config{Endpoint: endpoint, APIKey: "wrong"})
	if err := bad.Connect(context.Background()); err == nil {
		bad.Close()
		t.Fatal("expected connect with wrong key to fail")
	}

	connect(t, endpoint, "secret")
}

func TestSetupRequired(t *testing.T) {
	_, endpoint := startServer(t, Config{})

	conn, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	conn.WriteJSON(map[string]any{"realtimeInput": map[string]any{"mediaChunks": []any{}}})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("expected error message, got %v", err)
	}

	var msg protocol.ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("bad server message: %v", err)
	}
	if msg.Error == nil || msg.Error.Code != 400 {
		t.Errorf("expected setup error, got %s", data)
	}
}

func TestRMS(t *testing.T) {
	if rms(nil) != 0 {
		t.Error("expected 0 for empty input")
	}
	if got := rms([]float32{0.5, -0.5, 0.5, -0.5}); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("expected 0.5, got %v", got)
	}
}
