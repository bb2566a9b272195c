// ABOUTME: Tests for the output bus
// ABOUTME: Tests mixing, clock advance, end callbacks and voice stop
package playback

import (
	"testing"

	"github.com/harperreed/livewave-go/pkg/audio/analyze"
)

func ones(n int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = 1
	}
	return s
}

func TestBusRenderPlacesVoiceAtFrame(t *testing.T) {
	bus := NewBus(1000, nil)
	bus.Schedule([]float32{0.5, 0.25}, 3, nil)

	dst := make([]float32, 6)
	bus.Render(dst)

	want := []float32{0, 0, 0, 0.5, 0.25, 0}
	for i := range want {
		if dst[i] != want[i] {
			t.Errorf("frame %d = %f, want %f", i, dst[i], want[i])
		}
	}
	if bus.Now() != 6 {
		t.Errorf("expected clock 6, got %d", bus.Now())
	}
}

func TestBusVoiceSpansRenders(t *testing.T) {
	bus := NewBus(1000, nil)
	ended := 0
	bus.Schedule(ones(5), 2, func() { ended++ })

	first := make([]float32, 4)
	bus.Render(first)
	if first[1] != 0 || first[2] != 1 || first[3] != 1 {
		t.Errorf("unexpected first block %v", first)
	}
	if ended != 0 {
		t.Fatal("voice ended too early")
	}

	second := make([]float32, 4)
	bus.Render(second)
	if second[0] != 1 || second[2] != 1 || second[3] != 0 {
		t.Errorf("unexpected second block %v", second)
	}
	if ended != 1 {
		t.Errorf("expected 1 end callback, got %d", ended)
	}
	if bus.Active() != 0 {
		t.Errorf("expected no active voices, got %d", bus.Active())
	}
}

func TestBusMixesOverlappingVoices(t *testing.T) {
	bus := NewBus(1000, nil)
	bus.Schedule(ones(2), 0, nil)
	bus.Schedule(ones(2), 1, nil)

	dst := make([]float32, 3)
	bus.Render(dst)

	want := []float32{1, 2, 1}
	for i := range want {
		if dst[i] != want[i] {
			t.Errorf("frame %d = %f, want %f", i, dst[i], want[i])
		}
	}
}

func TestVoiceStopIsImmediate(t *testing.T) {
	bus := NewBus(1000, nil)
	ended := false
	v := bus.Schedule(ones(10), 0, func() { ended = true })

	dst := make([]float32, 4)
	bus.Render(dst)
	v.Stop()
	v.Stop()

	bus.Render(dst)
	for i, s := range dst {
		if s != 0 {
			t.Errorf("frame %d after stop = %f, want silence", i, s)
		}
	}
	bus.Render(make([]float32, 10))
	if ended {
		t.Error("end callback ran for a stopped voice")
	}
}

func TestBusFeedsTap(t *testing.T) {
	tap := analyze.NewTap(4)
	bus := NewBus(1000, tap)
	bus.Schedule([]float32{0.1, 0.2, 0.3, 0.4}, 0, nil)

	bus.Render(make([]float32, 4))

	got := make([]float32, 4)
	tap.Read(got)
	if got[3] != 0.4 {
		t.Errorf("tap did not see rendered audio: %v", got)
	}
}

func TestZeroLengthVoiceEnds(t *testing.T) {
	bus := NewBus(1000, nil)
	ended := false
	bus.Schedule(nil, 0, func() { ended = true })

	bus.Render(make([]float32, 1))
	if !ended {
		t.Error("expected zero-length voice to end on first render")
	}
}

func TestScheduleClampsToClock(t *testing.T) {
	bus := NewBus(1000, nil)
	bus.Render(make([]float32, 10))

	v := bus.Schedule(ones(3), 4, nil)
	if v.At() != 10 {
		t.Fatalf("expected start clamped to 10, got %d", v.At())
	}

	dst := make([]float32, 5)
	bus.Render(dst)
	want := []float32{1, 1, 1, 0, 0}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("frame %d = %f, want %f (all of %v)", i, dst[i], want[i], dst)
		}
	}
}

func TestScheduleKeepsFutureStart(t *testing.T) {
	bus := NewBus(1000, nil)
	if v := bus.Schedule(ones(2), 7, nil); v.At() != 7 {
		t.Errorf("expected start 7, got %d", v.At())
	}
}
