// ABOUTME: Audio file capture source
// ABOUTME: Decodes mp3, flac or wav, resamples to the capture rate and plays in real time
package capture

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/harperreed/livewave-go/pkg/audio/decode"
	"github.com/harperreed/livewave-go/pkg/audio/resample"
)

// File streams a decoded audio file as if it were a microphone
type File struct {
	paced
	path string
	loop bool

	reader    decode.Reader
	resampler *resample.Resampler
	raw       []float32
	mono      []float32
	pending   []float32
	sinceOpen int
	finished  bool
}

// NewFile creates a file source. With loop set the file restarts at EOF.
func NewFile(path string, loop bool) *File {
	f := &File{path: path, loop: loop}
	f.generate = f.fill
	return f
}

// Open decodes the file header and prepares resampling to sampleRate
func (f *File) Open(sampleRate, channels int, process func([]float32)) error {
	if err := f.open(sampleRate, channels, process); err != nil {
		return err
	}
	if err := f.openReader(); err != nil {
		return fmt.Errorf("%w: %v", ErrNoDevice, err)
	}
	return nil
}

func (f *File) openReader() error {
	reader, err := decode.OpenFile(f.path)
	if err != nil {
		return err
	}
	if f.reader != nil {
		f.reader.Close()
	}
	f.reader = reader
	f.resampler = nil
	if reader.SampleRate() != f.sampleRate {
		f.resampler = resample.New(reader.SampleRate(), f.sampleRate, 1)
	}
	return nil
}

// Start begins delivering samples
func (f *File) Start() error {
	return f.start()
}

// Close stops delivery and closes the file
func (f *File) Close() error {
	f.close()
	if f.reader != nil {
		err := f.reader.Close()
		f.reader = nil
		return err
	}
	return nil
}

// fill produces len(dst) frames; the tail of a finished file is silence
func (f *File) fill(dst []float32) bool {
	for len(f.pending) < len(dst) && !f.finished {
		if !f.decodeMore(len(dst)) {
			break
		}
	}

	if f.finished && len(f.pending) == 0 {
		return false
	}

	n := copy(dst, f.pending)
	clear(dst[n:])
	f.pending = f.pending[n:]
	return true
}

// decodeMore reads one block from the file, downmixes and resamples it
func (f *File) decodeMore(frames int) bool {
	channels := f.reader.Channels()
	if channels <= 0 {
		channels = 1
	}

	want := frames * channels
	if cap(f.raw) < want {
		f.raw = make([]float32, want)
	}
	raw := f.raw[:want]

	n, err := f.reader.Read(raw)
	if n > 0 {
		got := n / channels
		if cap(f.mono) < got {
			f.mono = make([]float32, got)
		}
		mono := f.mono[:got]
		for i := range mono {
			var sum float32
			for ch := 0; ch < channels; ch++ {
				sum += raw[i*channels+ch]
			}
			mono[i] = sum / float32(channels)
		}

		if f.resampler == nil {
			f.pending = append(f.pending, mono...)
		} else {
			out := make([]float32, f.resampler.OutputSamplesNeeded(len(mono)))
			m := f.resampler.Resample(mono, out)
			f.pending = append(f.pending, out[:m]...)
		}
		f.sinceOpen += got
	}

	if err == nil {
		return true
	}
	if !errors.Is(err, io.EOF) {
		log.Printf("Input file read error: %v", err)
		f.finished = true
		return false
	}

	// Only loop a file that produced samples
	if f.loop && f.sinceOpen > 0 {
		f.sinceOpen = 0
		if err := f.openReader(); err != nil {
			log.Printf("Failed to restart input file: %v", err)
			f.finished = true
			return false
		}
		return true
	}

	log.Printf("Input file finished: %s", f.path)
	f.finished = true
	return false
}
