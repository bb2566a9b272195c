// ABOUTME: Software output bus with a sample-accurate clock
// ABOUTME: Mixes scheduled voices into device buffers pulled by output backends
package playback

import (
	"sync"
	"time"

	"github.com/harperreed/livewave-go/pkg/audio"
	"github.com/harperreed/livewave-go/pkg/audio/analyze"
)

// Bus is the output audio graph. Output backends pull mono frames from it
// with Render; the number of frames rendered so far is the output clock.
type Bus struct {
	sampleRate int
	tap        *analyze.Tap

	mu     sync.Mutex
	clock  int64
	voices []*Voice
	ended  []*Voice // scratch reused by Render
}

// Voice is one buffer scheduled to start at a frame on the bus clock
type Voice struct {
	bus     *Bus
	samples []float32
	at      int64
	onEnded func()
	done    bool
}

// NewBus creates a mono bus at sampleRate. tap may be nil.
func NewBus(sampleRate int, tap *analyze.Tap) *Bus {
	if sampleRate <= 0 {
		sampleRate = audio.OutputSampleRate
	}
	return &Bus{
		sampleRate: sampleRate,
		tap:        tap,
	}
}

// SampleRate returns the bus rate in Hz
func (b *Bus) SampleRate() int {
	return b.sampleRate
}

// Now returns the output clock in frames. It never decreases.
func (b *Bus) Now() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.clock
}

// Elapsed returns the output clock as a duration
func (b *Bus) Elapsed() time.Duration {
	return audio.FramesToDuration(b.Now(), b.sampleRate)
}

// Schedule adds a voice that begins at frame at. A start before the
// current frame moves up to the current frame under the bus lock, so no
// sample is skipped; the returned voice's At is the real start. onEnded
// runs once the last frame has been rendered, unless the voice is stopped
// first.
func (b *Bus) Schedule(samples []float32, at int64, onEnded func()) *Voice {
	v := &Voice{
		bus:     b,
		samples: samples,
		onEnded: onEnded,
	}

	b.mu.Lock()
	v.at = max(at, b.clock)
	b.voices = append(b.voices, v)
	b.mu.Unlock()

	return v
}

// Active returns the number of voices not yet ended or stopped
func (b *Bus) Active() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.voices)
}

// Render mixes the next len(dst) frames into dst and advances the clock.
// Called from the output device callback; calls must not overlap.
func (b *Bus) Render(dst []float32) {
	clear(dst)

	b.mu.Lock()
	start := b.clock
	end := start + int64(len(dst))

	kept := b.voices[:0]
	b.ended = b.ended[:0]
	for _, v := range b.voices {
		vEnd := v.at + int64(len(v.samples))

		from := max(v.at, start)
		to := min(vEnd, end)
		for f := from; f < to; f++ {
			dst[f-start] += v.samples[f-v.at]
		}

		if vEnd <= end {
			v.done = true
			b.ended = append(b.ended, v)
			continue
		}
		kept = append(kept, v)
	}
	clear(b.voices[len(kept):])
	b.voices = kept
	b.clock = end
	ended := b.ended
	b.mu.Unlock()

	if b.tap != nil {
		b.tap.Write(dst)
	}

	for _, v := range ended {
		if v.onEnded != nil {
			v.onEnded()
		}
	}
}

// Stop removes the voice from the bus. The next rendered frame no longer
// contains it and its end callback does not run. Stopping twice is a no-op.
func (v *Voice) Stop() {
	b := v.bus
	b.mu.Lock()
	defer b.mu.Unlock()

	if v.done {
		return
	}
	v.done = true
	for i, other := range b.voices {
		if other == v {
			last := len(b.voices) - 1
			copy(b.voices[i:], b.voices[i+1:])
			b.voices[last] = nil
			b.voices = b.voices[:last]
			break
		}
	}
}

// At returns the start frame of the voice
func (v *Voice) At() int64 {
	return v.at
}

// Frames returns the length of the voice in frames
func (v *Voice) Frames() int {
	return len(v.samples)
}
