// ABOUTME: Gapless playback scheduler for streamed response audio
// ABOUTME: Places buffers back to back on the bus clock and supports barge-in
package playback

import (
	"fmt"
	"log"
	"sync"

	"github.com/harperreed/livewave-go/pkg/audio"
	"github.com/harperreed/livewave-go/pkg/audio/resample"
)

// State describes whether scheduled audio is still playing
type State int

const (
	// Idle means no voice is in flight
	Idle State = iota
	// Draining means at least one voice is scheduled or playing
	Draining
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Draining:
		return "draining"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Scheduler places decoded buffers on the bus so that each starts exactly
// where the previous one ends. The cursor is the frame at which the next
// buffer starts; zero means unset.
type Scheduler struct {
	bus *Bus

	mu       sync.Mutex
	cursor   int64
	inFlight map[*Voice]struct{}

	stats SchedulerStats
}

// SchedulerStats tracks scheduler metrics
type SchedulerStats struct {
	Enqueued   int64
	Ended      int64
	Interrupts int64
	Stopped    int64
	Resampled  int64
	Gaps       int64 // enqueues that found the cursor behind the clock
	Frames     int64
}

// NewScheduler creates a scheduler on bus
func NewScheduler(bus *Bus) *Scheduler {
	return &Scheduler{
		bus:      bus,
		inFlight: make(map[*Voice]struct{}),
	}
}

// Enqueue schedules buf to start at the cursor, or at the current output
// frame when the cursor has fallen behind the clock. The clamp and the
// insert happen under one bus lock, so a concurrent Render cannot move the
// clock past the chosen start. Zero-length buffers are scheduled but do
// not move the cursor.
func (s *Scheduler) Enqueue(buf audio.Buffer) error {
	samples, err := s.prepare(buf)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var voice *Voice
	voice = s.bus.Schedule(samples, s.cursor, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.inFlight[voice]; ok {
			delete(s.inFlight, voice)
			s.stats.Ended++
		}
	})

	at := voice.At()
	if s.cursor != 0 && at > s.cursor {
		s.stats.Gaps++
	}

	if s.stats.Enqueued < 5 {
		log.Printf("Buffer #%d: start=%d frames=%d (lead %v)",
			s.stats.Enqueued, at, len(samples),
			audio.FramesToDuration(at+int64(len(samples))-s.bus.Now(), s.bus.SampleRate()))
	}

	s.cursor = at + int64(len(samples))
	s.inFlight[voice] = struct{}{}
	s.stats.Enqueued++
	s.stats.Frames += int64(len(samples))

	return nil
}

// prepare reduces buf to mono samples at the bus rate
func (s *Scheduler) prepare(buf audio.Buffer) ([]float32, error) {
	if len(buf.Channels) == 0 {
		return nil, nil
	}

	frames := len(buf.Channels[0])
	for i, ch := range buf.Channels {
		if len(ch) != frames {
			return nil, fmt.Errorf("channel %d has %d frames, expected %d", i, len(ch), frames)
		}
	}

	samples := buf.Channels[0]
	if len(buf.Channels) > 1 {
		mixed := make([]float32, frames)
		gain := 1 / float32(len(buf.Channels))
		for _, ch := range buf.Channels {
			for i, v := range ch {
				mixed[i] += v * gain
			}
		}
		samples = mixed
	}

	rate := s.bus.SampleRate()
	if buf.SampleRate > 0 && buf.SampleRate != rate && frames > 0 {
		samples = resample.Convert(samples, buf.SampleRate, rate, 1)
		s.mu.Lock()
		s.stats.Resampled++
		s.mu.Unlock()
	}

	return samples, nil
}

// Interrupt stops every in-flight voice and resets the cursor so the next
// buffer starts at the current output time.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()

	stopped := len(s.inFlight)
	for voice := range s.inFlight {
		voice.Stop()
	}
	clear(s.inFlight)
	s.cursor = 0
	s.stats.Interrupts++
	s.stats.Stopped += int64(stopped)

	log.Printf("Playback interrupted: stopped %d voices", stopped)
}

// State returns Idle when nothing is in flight
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.inFlight) == 0 {
		return Idle
	}
	return Draining
}

// Cursor returns the frame at which the next buffer would start
func (s *Scheduler) Cursor() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// InFlight returns the number of voices scheduled or playing
func (s *Scheduler) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inFlight)
}

// Stats returns scheduler statistics
func (s *Scheduler) Stats() SchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
