// ABOUTME: MP3 file reader
// ABOUTME: Streams MP3 audio as interleaved float samples via go-mp3
package decode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
	"github.com/harperreed/livewave-go/pkg/audio"
)

// MP3Reader reads decoded MP3 audio
type MP3Reader struct {
	closer  io.Closer
	decoder *mp3.Decoder
	buf     []byte
}

// NewMP3 creates an MP3 reader over r. The reader takes ownership of r
// when it implements io.Closer.
func NewMP3(r io.Reader) (*MP3Reader, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	reader := &MP3Reader{decoder: decoder}
	if c, ok := r.(io.Closer); ok {
		reader.closer = c
	}
	return reader, nil
}

// Read fills samples with interleaved stereo floats
func (d *MP3Reader) Read(samples []float32) (int, error) {
	// go-mp3 always emits 16-bit stereo
	need := len(samples) * 2
	if cap(d.buf) < need {
		d.buf = make([]byte, need)
	}
	buf := d.buf[:need]

	n, err := io.ReadFull(d.decoder, buf)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	if err != nil && err != io.EOF {
		return 0, &Error{Op: "mp3", Err: err}
	}

	numSamples := n / 2
	for i := 0; i < numSamples; i++ {
		samples[i] = audio.SampleFromInt16(int16(binary.LittleEndian.Uint16(buf[i*2:])))
	}

	if numSamples > 0 && err == io.EOF {
		return numSamples, nil
	}
	return numSamples, err
}

// SampleRate returns the decoded sample rate
func (d *MP3Reader) SampleRate() int { return d.decoder.SampleRate() }

// Channels returns 2; go-mp3 always decodes to stereo
func (d *MP3Reader) Channels() int { return 2 }

// Close releases the underlying file
func (d *MP3Reader) Close() error {
	if d.closer != nil {
		return d.closer.Close()
	}
	return nil
}
