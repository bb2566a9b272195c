// ABOUTME: Capture chain from input source to the live transport
// ABOUTME: Frames input into fixed blocks, encodes PCM and sends in order
package capture

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harperreed/livewave-go/pkg/audio"
	"github.com/harperreed/livewave-go/pkg/audio/analyze"
	"github.com/harperreed/livewave-go/pkg/audio/encode"
)

const (
	// DefaultBlockSize is the number of samples per outbound chunk
	DefaultBlockSize = 4096

	// DefaultQueueSize bounds chunks waiting for the transport
	DefaultQueueSize = 16
)

// Sender delivers encoded chunks to the remote session
type Sender interface {
	SendChunk(chunk audio.Chunk) error
}

// ChainConfig holds capture chain configuration
type ChainConfig struct {
	Source     Source
	Sender     Sender
	SampleRate int
	Channels   int
	BlockSize  int
	QueueSize  int
	Gain       float32
	Tap        *analyze.Tap
	OnError    func(err error)
}

// ChainStats tracks capture metrics
type ChainStats struct {
	Blocks     int64
	Sent       int64
	Dropped    int64
	Discarded  int64
	SendErrors int64
}

// Chain owns one capture source and the path to the transport
type Chain struct {
	config ChainConfig
	format audio.Format

	live atomic.Bool

	mu     sync.Mutex
	run    *chainRun
	block  []float32
	filled int
	gained []float32

	blocks     atomic.Int64
	sent       atomic.Int64
	dropped    atomic.Int64
	discarded  atomic.Int64
	sendErrors atomic.Int64
}

// chainRun is the state of one Start..Stop cycle
type chainRun struct {
	outbox chan audio.Chunk
	done   chan struct{}
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewChain creates a capture chain
func NewChain(config ChainConfig) *Chain {
	if config.SampleRate <= 0 {
		config.SampleRate = audio.InputSampleRate
	}
	if config.Channels <= 0 {
		config.Channels = 1
	}
	if config.BlockSize <= 0 {
		config.BlockSize = DefaultBlockSize
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}
	if config.Gain == 0 {
		config.Gain = 1
	}

	return &Chain{
		config: config,
		format: audio.Format{Codec: "pcm", SampleRate: config.SampleRate, Channels: 1, BitDepth: 16},
		block:  make([]float32, config.BlockSize),
	}
}

// Start opens the source and begins streaming. Failures leave the chain
// stopped so Start can be retried.
func (c *Chain) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.run != nil {
		c.mu.Unlock()
		return nil
	}
	if c.config.Source == nil || c.config.Sender == nil {
		c.mu.Unlock()
		return fmt.Errorf("capture chain needs a source and a sender")
	}

	if err := c.config.Source.Open(c.config.SampleRate, c.config.Channels, c.process); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to open capture source: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	run := &chainRun{
		outbox: make(chan audio.Chunk, c.config.QueueSize),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	c.run = run
	c.filled = 0
	c.live.Store(true)

	if err := c.config.Source.Start(); err != nil {
		c.live.Store(false)
		c.run = nil
		c.mu.Unlock()
		cancel()
		c.config.Source.Close()
		return fmt.Errorf("failed to start capture source: %w", err)
	}

	run.wg.Add(1)
	go c.sendLoop(runCtx, run)
	c.mu.Unlock()

	log.Printf("Capture started: %dHz, %d samples per chunk", c.config.SampleRate, c.config.BlockSize)
	return nil
}

// Stop clears the liveness flag, closes the source and discards anything
// not yet sent. Safe to call more than once.
func (c *Chain) Stop() {
	c.live.Store(false)

	c.mu.Lock()
	run := c.run
	c.run = nil
	c.mu.Unlock()

	if run == nil {
		return
	}

	if err := c.config.Source.Close(); err != nil {
		log.Printf("Warning: capture source close error: %v", err)
	}

	close(run.done)
	run.cancel()
	run.wg.Wait()

	// Drain leftovers so they are never sent
	for {
		select {
		case <-run.outbox:
			c.discarded.Add(1)
		default:
			log.Printf("Capture stopped")
			return
		}
	}
}

// Live reports whether the chain is streaming
func (c *Chain) Live() bool {
	return c.live.Load()
}

// Stats returns capture statistics
func (c *Chain) Stats() ChainStats {
	return ChainStats{
		Blocks:     c.blocks.Load(),
		Sent:       c.sent.Load(),
		Dropped:    c.dropped.Load(),
		Discarded:  c.discarded.Load(),
		SendErrors: c.sendErrors.Load(),
	}
}

// process is the source callback; it applies gain and frames blocks
func (c *Chain) process(samples []float32) {
	if !c.live.Load() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	run := c.run
	if run == nil {
		return
	}

	channels := c.config.Channels
	frames := len(samples) / channels
	if cap(c.gained) < frames {
		c.gained = make([]float32, frames)
	}
	gained := c.gained[:frames]
	for i := range gained {
		gained[i] = samples[i*channels] * c.config.Gain
	}

	if c.config.Tap != nil {
		c.config.Tap.Write(gained)
	}

	for len(gained) > 0 {
		n := copy(c.block[c.filled:], gained)
		c.filled += n
		gained = gained[n:]

		if c.filled == len(c.block) {
			c.emit(run)
			c.filled = 0
		}
	}
}

// emit encodes the full block and queues it without blocking (must hold c.mu)
func (c *Chain) emit(run *chainRun) {
	chunk := audio.Chunk{
		MIMEType: c.format.MIMEType(),
		Data:     encode.FloatToPCM(c.block),
	}
	c.blocks.Add(1)

	select {
	case run.outbox <- chunk:
	default:
		dropped := c.dropped.Add(1)
		if dropped <= 5 || dropped%100 == 0 {
			log.Printf("Capture outbox full, dropped chunk (%d total)", dropped)
		}
	}
}

// sendLoop drains the outbox in order until the run ends
func (c *Chain) sendLoop(ctx context.Context, run *chainRun) {
	defer run.wg.Done()

	for {
		select {
		case <-run.done:
			return
		case <-ctx.Done():
			return
		case chunk := <-run.outbox:
			if !c.live.Load() {
				c.discarded.Add(1)
				continue
			}

			start := time.Now()
			if err := c.config.Sender.SendChunk(chunk); err != nil {
				n := c.sendErrors.Add(1)
				if n <= 5 {
					log.Printf("Failed to send chunk: %v", err)
				}
				if c.config.OnError != nil {
					c.config.OnError(err)
				}
				continue
			}

			sent := c.sent.Add(1)
			if sent <= 3 {
				log.Printf("Chunk #%d sent: %d bytes in %v", sent, len(chunk.Data), time.Since(start))
			}
		}
	}
}
