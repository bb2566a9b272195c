// ABOUTME: Tests for the gapless playback scheduler
// ABOUTME: Tests cursor placement, idle recovery, interrupts and resampling
package playback

import (
	"sync"
	"testing"

	"github.com/harperreed/livewave-go/pkg/audio"
)

func monoBuffer(rate, frames int) audio.Buffer {
	return audio.Buffer{SampleRate: rate, Channels: [][]float32{ones(frames)}}
}

func TestEnqueueBackToBack(t *testing.T) {
	bus := NewBus(24000, nil)
	s := NewScheduler(bus)

	// 0.5s buffer on a fresh bus starts at 0
	if err := s.Enqueue(monoBuffer(24000, 12000)); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if s.Cursor() != 12000 {
		t.Fatalf("expected cursor 12000, got %d", s.Cursor())
	}

	// 0.1s later the next buffer still starts where the first ends
	bus.Render(make([]float32, 2400))
	if err := s.Enqueue(monoBuffer(24000, 12000)); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if s.Cursor() != 24000 {
		t.Errorf("expected cursor 24000, got %d", s.Cursor())
	}
	if s.InFlight() != 2 {
		t.Errorf("expected 2 in flight, got %d", s.InFlight())
	}
	if s.State() != Draining {
		t.Errorf("expected draining, got %v", s.State())
	}
}

func TestEnqueueContiguousPlayback(t *testing.T) {
	bus := NewBus(1000, nil)
	s := NewScheduler(bus)

	for i := 0; i < 3; i++ {
		if err := s.Enqueue(monoBuffer(1000, 7)); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	// every frame covered exactly once: no gap, no overlap
	dst := make([]float32, 21)
	bus.Render(dst)
	for i, v := range dst {
		if v != 1 {
			t.Fatalf("frame %d = %f, want 1", i, v)
		}
	}

	bus.Render(make([]float32, 1))
	if s.State() != Idle {
		t.Errorf("expected idle after drain, got %v", s.State())
	}
	if s.Stats().Ended != 3 {
		t.Errorf("expected 3 ended, got %d", s.Stats().Ended)
	}
}

func TestEnqueueAfterIdleGapStartsNow(t *testing.T) {
	bus := NewBus(24000, nil)
	s := NewScheduler(bus)

	s.Enqueue(monoBuffer(24000, 2400))
	bus.Render(make([]float32, 4800))

	s.Enqueue(monoBuffer(24000, 2400))
	if s.Cursor() != 4800+2400 {
		t.Errorf("expected cursor %d, got %d", 4800+2400, s.Cursor())
	}
	if s.Stats().Gaps != 1 {
		t.Errorf("expected 1 gap, got %d", s.Stats().Gaps)
	}
}

func TestInterruptSilencesAndResets(t *testing.T) {
	bus := NewBus(1000, nil)
	s := NewScheduler(bus)

	s.Enqueue(monoBuffer(1000, 100))
	s.Enqueue(monoBuffer(1000, 100))
	bus.Render(make([]float32, 10))

	s.Interrupt()

	if s.Cursor() != 0 {
		t.Errorf("expected cursor reset to 0, got %d", s.Cursor())
	}
	if s.InFlight() != 0 || s.State() != Idle {
		t.Errorf("expected idle with nothing in flight, got %d %v", s.InFlight(), s.State())
	}

	dst := make([]float32, 50)
	bus.Render(dst)
	for i, v := range dst {
		if v != 0 {
			t.Fatalf("frame %d after interrupt = %f, want silence", i, v)
		}
	}

	// next buffer starts at the current clock
	s.Enqueue(monoBuffer(1000, 5))
	if s.Cursor() != 60+5 {
		t.Errorf("expected cursor 65, got %d", s.Cursor())
	}
}

func TestInterruptWhenIdle(t *testing.T) {
	s := NewScheduler(NewBus(1000, nil))
	s.Interrupt()
	s.Interrupt()

	if s.Cursor() != 0 || s.InFlight() != 0 {
		t.Error("interrupt on idle scheduler changed state")
	}
	if s.Stats().Interrupts != 2 {
		t.Errorf("expected 2 interrupts, got %d", s.Stats().Interrupts)
	}
}

func TestRapidInterrupts(t *testing.T) {
	bus := NewBus(1000, nil)
	s := NewScheduler(bus)

	for i := 0; i < 10; i++ {
		s.Enqueue(monoBuffer(1000, 20))
		s.Interrupt()
	}

	if bus.Active() != 0 {
		t.Errorf("expected no active voices, got %d", bus.Active())
	}
	if s.Stats().Stopped != 10 {
		t.Errorf("expected 10 stopped, got %d", s.Stats().Stopped)
	}
}

func TestZeroLengthBuffer(t *testing.T) {
	bus := NewBus(1000, nil)
	s := NewScheduler(bus)

	s.Enqueue(monoBuffer(1000, 10))
	if err := s.Enqueue(audio.Buffer{SampleRate: 1000, Channels: [][]float32{{}}}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if s.Cursor() != 10 {
		t.Errorf("zero-length buffer moved cursor to %d", s.Cursor())
	}
	if s.InFlight() != 2 {
		t.Errorf("expected 2 in flight, got %d", s.InFlight())
	}

	bus.Render(make([]float32, 10))
	if s.InFlight() != 0 {
		t.Errorf("expected all ended, got %d in flight", s.InFlight())
	}
}

func TestEnqueueResamples(t *testing.T) {
	bus := NewBus(24000, nil)
	s := NewScheduler(bus)

	if err := s.Enqueue(monoBuffer(16000, 1600)); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	// 0.1s at 16k becomes ~0.1s at 24k
	if c := s.Cursor(); c < 2390 || c > 2401 {
		t.Errorf("expected cursor ~2400, got %d", c)
	}
	if s.Stats().Resampled != 1 {
		t.Errorf("expected 1 resample, got %d", s.Stats().Resampled)
	}
}

func TestEnqueueRejectsRaggedChannels(t *testing.T) {
	s := NewScheduler(NewBus(1000, nil))
	buf := audio.Buffer{SampleRate: 1000, Channels: [][]float32{ones(3), ones(2)}}

	if err := s.Enqueue(buf); err == nil {
		t.Error("expected error for mismatched channel lengths")
	}
}

func TestConcurrentEnqueueAndRender(t *testing.T) {
	bus := NewBus(1000, nil)
	s := NewScheduler(bus)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			s.Enqueue(monoBuffer(1000, 3))
			if i%50 == 0 {
				s.Interrupt()
			}
		}
	}()
	go func() {
		defer wg.Done()
		dst := make([]float32, 4)
		for i := 0; i < 200; i++ {
			bus.Render(dst)
		}
	}()
	wg.Wait()

	// drain whatever remains
	bus.Render(make([]float32, 1000))
	if s.InFlight() != 0 {
		t.Errorf("expected nothing in flight, got %d", s.InFlight())
	}
}

func TestConcurrentEnqueuePlaysEveryFrame(t *testing.T) {
	const (
		trials = 2000
		frames = 50
	)

	for trial := 0; trial < trials; trial++ {
		bus := NewBus(1000, nil)
		s := NewScheduler(bus)

		var (
			wg       sync.WaitGroup
			rendered float32
			stop     = make(chan struct{})
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			dst := make([]float32, 1)
			for {
				select {
				case <-stop:
					return
				default:
				}
				bus.Render(dst)
				rendered += dst[0]
			}
		}()

		if err := s.Enqueue(monoBuffer(1000, frames)); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
		close(stop)
		wg.Wait()

		// drain the rest of the buffer
		tail := make([]float32, frames)
		bus.Render(tail)
		for _, v := range tail {
			rendered += v
		}

		if rendered != frames {
			t.Fatalf("trial %d: rendered %v of %d frames", trial, rendered, frames)
		}
		if s.InFlight() != 0 {
			t.Fatalf("trial %d: %d voices still in flight", trial, s.InFlight())
		}
	}
}
