// ABOUTME: FLAC file reader
// ABOUTME: Streams FLAC audio frame by frame as interleaved float samples
package decode

import (
	"fmt"
	"io"

	"github.com/mewkiz/flac"
)

// FLACReader reads decoded FLAC audio
type FLACReader struct {
	closer   io.Closer
	stream   *flac.Stream
	channels int
	scale    float32
	pending  []float32
}

// NewFLAC creates a FLAC reader over r. The reader takes ownership of r
// when it implements io.Closer.
func NewFLAC(r io.Reader) (*FLACReader, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	if info.BitsPerSample == 0 || info.NChannels == 0 {
		return nil, fmt.Errorf("invalid FLAC stream info: %d bits, %d channels", info.BitsPerSample, info.NChannels)
	}

	reader := &FLACReader{
		stream:   stream,
		channels: int(info.NChannels),
		scale:    float32(int64(1) << (info.BitsPerSample - 1)),
	}
	if c, ok := r.(io.Closer); ok {
		reader.closer = c
	}
	return reader, nil
}

// Read fills samples with interleaved floats, carrying partial frames
// over to the next call
func (d *FLACReader) Read(samples []float32) (int, error) {
	read := 0
	for read < len(samples) {
		if len(d.pending) == 0 {
			frame, err := d.stream.ParseNext()
			if err == io.EOF {
				if read > 0 {
					return read, nil
				}
				return 0, io.EOF
			}
			if err != nil {
				return read, &Error{Op: "flac", Err: err}
			}

			blockSize := int(frame.BlockSize)
			d.pending = d.pending[:0]
			for i := 0; i < blockSize; i++ {
				for ch := 0; ch < d.channels; ch++ {
					d.pending = append(d.pending, float32(frame.Subframes[ch].Samples[i])/d.scale)
				}
			}
		}

		n := copy(samples[read:], d.pending)
		d.pending = d.pending[n:]
		read += n
	}
	return read, nil
}

// SampleRate returns the stream sample rate
func (d *FLACReader) SampleRate() int { return int(d.stream.Info.SampleRate) }

// Channels returns the stream channel count
func (d *FLACReader) Channels() int { return d.channels }

// Close releases the underlying file
func (d *FLACReader) Close() error {
	if d.closer != nil {
		return d.closer.Close()
	}
	return nil
}
