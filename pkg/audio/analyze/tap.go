// ABOUTME: Time-domain tap that retains the latest samples of a stream
// ABOUTME: Writers are audio callbacks, readers are analyzers polling per frame
package analyze

import "sync"

// Tap is a lock-protected ring of the most recent mono samples written
// to it. It never blocks a writer for longer than a copy.
type Tap struct {
	mu      sync.Mutex
	ring    []float32
	pos     int
	written int64
}

// NewTap creates a tap retaining the latest size samples
func NewTap(size int) *Tap {
	if size <= 0 {
		size = FFTSize
	}
	return &Tap{ring: make([]float32, size)}
}

// Write appends samples, overwriting the oldest ones
func (t *Tap) Write(samples []float32) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.ring)
	if len(samples) >= n {
		copy(t.ring, samples[len(samples)-n:])
		t.pos = 0
	} else {
		first := copy(t.ring[t.pos:], samples)
		copy(t.ring, samples[first:])
		t.pos = (t.pos + len(samples)) % n
	}
	t.written += int64(len(samples))
}

// Read copies the latest len(dst) samples into dst, oldest first.
// Positions not yet written are zero.
func (t *Tap) Read(dst []float32) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.ring)
	want := len(dst)
	if want > n {
		clear(dst[:want-n])
		dst = dst[want-n:]
		want = n
	}

	start := (t.pos - want + n) % n
	first := copy(dst, t.ring[start:min(start+want, n)])
	copy(dst[first:], t.ring[:want-first])
}

// Written returns the total number of samples written
func (t *Tap) Written() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.written
}

// Reset zeroes the retained samples and the written count
func (t *Tap) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.ring)
	t.pos = 0
	t.written = 0
}
