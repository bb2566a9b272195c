// ABOUTME: Real-time pacing for synthetic capture sources
// ABOUTME: Delivers generated mono frames on a ticker like a device callback would
package capture

import (
	"fmt"
	"sync"
	"time"
)

// pacePeriod is the callback interval of paced sources
const pacePeriod = 20 * time.Millisecond

// paced drives a generator from a ticker goroutine. generate fills dst
// with mono frames and returns false once it has nothing more to give.
type paced struct {
	generate func(dst []float32) bool

	mu         sync.Mutex
	process    func([]float32)
	sampleRate int
	channels   int
	stop       chan struct{}
	wg         sync.WaitGroup
}

func (p *paced) open(sampleRate, channels int, process func([]float32)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", sampleRate)
	}
	if channels <= 0 {
		channels = 1
	}
	p.sampleRate = sampleRate
	p.channels = channels
	p.process = process
	return nil
}

func (p *paced) start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.process == nil {
		return fmt.Errorf("source not open")
	}
	if p.stop != nil {
		return nil
	}

	frames := p.sampleRate * int(pacePeriod/time.Millisecond) / 1000
	mono := make([]float32, frames)
	out := make([]float32, frames*p.channels)
	channels := p.channels
	process := p.process

	p.stop = make(chan struct{})
	p.wg.Add(1)
	go func(stop <-chan struct{}) {
		defer p.wg.Done()
		ticker := time.NewTicker(pacePeriod)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
			}

			if !p.generate(mono) {
				return
			}
			if channels == 1 {
				process(mono)
				continue
			}
			for i, s := range mono {
				for ch := 0; ch < channels; ch++ {
					out[i*channels+ch] = s
				}
			}
			process(out)
		}
	}(p.stop)

	return nil
}

func (p *paced) close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stop != nil {
		close(p.stop)
		p.wg.Wait()
		p.stop = nil
	}
}
