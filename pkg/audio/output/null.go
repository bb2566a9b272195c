// ABOUTME: Headless output that renders the source in real time
// ABOUTME: Keeps the playback clock running without an audio device
package output

import (
	"log"
	"sync"
	"time"
)

// nullPeriod is the render interval of the headless output
const nullPeriod = 10 * time.Millisecond

// Null renders from the source on a ticker and discards the result
type Null struct {
	*puller
	stop chan struct{}
	wg   sync.WaitGroup
	mu   sync.Mutex
}

// NewNull creates a headless output
func NewNull() *Null {
	return &Null{puller: newPuller()}
}

// Open starts rendering from src at sampleRate
func (n *Null) Open(sampleRate, channels int, src Source) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.attach(src, channels)
	if n.stop != nil {
		return nil
	}

	if channels <= 0 {
		channels = 1
	}
	frames := sampleRate * int(nullPeriod) / int(time.Second)
	buf := make([]float32, frames*channels)

	n.stop = make(chan struct{})
	n.wg.Add(1)
	go func(stop <-chan struct{}) {
		defer n.wg.Done()
		ticker := time.NewTicker(nullPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				n.fill(buf)
			}
		}
	}(n.stop)

	log.Printf("Audio output initialized: %dHz, %d channels (null)", sampleRate, channels)
	return nil
}

// Close stops rendering
func (n *Null) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.stop != nil {
		close(n.stop)
		n.wg.Wait()
		n.stop = nil
	}
	return nil
}
