// ABOUTME: Malgo-based microphone capture
// ABOUTME: Uses miniaudio via malgo to deliver float32 input frames
package capture

import (
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

// Malgo capture implementation using malgo/miniaudio library
type Malgo struct {
	mu       sync.Mutex
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	process  func([]float32)
	scratch  []float32
}

// NewMalgo creates a new Malgo capture source
func NewMalgo() *Malgo {
	return &Malgo{}
}

// Open initializes the default capture device
func (m *Malgo) Open(sampleRate, channels int, process func([]float32)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		return fmt.Errorf("capture device already open")
	}

	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return classify("failed to initialize malgo context", err)
		}
		m.malgoCtx = ctx
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.PeriodSizeInMilliseconds = 20
	deviceConfig.Alsa.NoMMap = 1

	m.process = process

	onSamples := func(pOutputSample, pInputSamples []byte, frameCount uint32) {
		m.dataCallback(pInputSamples, int(frameCount)*channels)
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onSamples,
	})
	if err != nil {
		return classify("failed to initialize capture device", err)
	}

	m.device = device
	log.Printf("Audio capture initialized: %dHz, %d channels (malgo/F32)", sampleRate, channels)
	return nil
}

// dataCallback converts device bytes to floats and hands them on
func (m *Malgo) dataCallback(input []byte, total int) {
	if total*4 > len(input) {
		total = len(input) / 4
	}
	if cap(m.scratch) < total {
		m.scratch = make([]float32, total)
	}
	samples := m.scratch[:total]
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(input[i*4:]))
	}
	m.process(samples)
}

// Start starts the capture device
func (m *Malgo) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil {
		return fmt.Errorf("capture device not open")
	}
	if err := m.device.Start(); err != nil {
		return classify("failed to start capture device", err)
	}
	return nil
}

// Close stops the device and releases the malgo context
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		if err := m.device.Stop(); err != nil {
			log.Printf("Warning: capture device stop error: %v", err)
		}
		m.device.Uninit()
		m.device = nil
	}
	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			log.Printf("Warning: malgo context uninit error: %v", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	return nil
}
