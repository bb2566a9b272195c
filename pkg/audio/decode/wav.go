// ABOUTME: WAV file reader
// ABOUTME: Wraps go-audio/wav and streams integer PCM as float samples
package decode

import (
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavFormatPCM is the WAVE_FORMAT_PCM tag
const wavFormatPCM = 1

// WAVReader reads integer PCM WAV audio (8, 16, 24 or 32 bit)
type WAVReader struct {
	closer     io.Closer
	decoder    *wav.Decoder
	sampleRate int
	channels   int
	bitDepth   int
	buf        *goaudio.IntBuffer
}

// NewWAV reads the WAV headers from r and positions at the PCM data
func NewWAV(r io.ReadSeeker) (*WAVReader, error) {
	decoder := wav.NewDecoder(r)
	decoder.ReadInfo()
	if err := decoder.Err(); err != nil {
		return nil, fmt.Errorf("failed to read WAV header: %w", err)
	}
	if decoder.NumChans == 0 || decoder.SampleRate == 0 {
		return nil, fmt.Errorf("not a RIFF/WAVE file")
	}
	if decoder.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("unsupported WAV encoding: format=%d (supported: integer PCM)", decoder.WavAudioFormat)
	}
	switch decoder.BitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported WAV bit depth: %d", decoder.BitDepth)
	}
	if err := decoder.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("failed to find WAV data chunk: %w", err)
	}
	if err := decoder.Err(); err != nil {
		return nil, fmt.Errorf("failed to find WAV data chunk: %w", err)
	}

	reader := &WAVReader{
		decoder:    decoder,
		sampleRate: int(decoder.SampleRate),
		channels:   int(decoder.NumChans),
		bitDepth:   int(decoder.BitDepth),
	}
	if c, ok := r.(io.Closer); ok {
		reader.closer = c
	}
	return reader, nil
}

// Read fills samples with interleaved floats
func (d *WAVReader) Read(samples []float32) (int, error) {
	if len(samples) == 0 {
		return 0, nil
	}
	if d.buf == nil || cap(d.buf.Data) < len(samples) {
		d.buf = &goaudio.IntBuffer{
			Format: d.decoder.Format(),
			Data:   make([]int, len(samples)),
		}
	}
	d.buf.Data = d.buf.Data[:len(samples)]

	n, err := d.decoder.PCMBuffer(d.buf)
	if err != nil {
		return 0, fmt.Errorf("failed to decode WAV data: %w", err)
	}
	if n == 0 {
		return 0, io.EOF
	}

	// 8-bit WAV is unsigned, wider depths are signed
	offset := 0
	if d.bitDepth == 8 {
		offset = 128
	}
	scale := float32(int64(1) << (d.bitDepth - 1))
	for i := 0; i < n; i++ {
		samples[i] = float32(d.buf.Data[i]-offset) / scale
	}
	return n, nil
}

// SampleRate returns the file sample rate
func (d *WAVReader) SampleRate() int { return d.sampleRate }

// Channels returns the file channel count
func (d *WAVReader) Channels() int { return d.channels }

// Close releases the underlying file
func (d *WAVReader) Close() error {
	if d.closer != nil {
		return d.closer.Close()
	}
	return nil
}
