// ABOUTME: File reader factory
// ABOUTME: Picks an MP3, FLAC or WAV reader from the file extension
package decode

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// OpenFile opens an audio file and returns a streaming reader for it.
// Supported: .mp3, .flac, .wav (integer PCM)
func OpenFile(path string) (Reader, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".mp3", ".flac", ".wav":
	default:
		return nil, fmt.Errorf("unsupported audio format: %s (supported: .mp3, .flac, .wav)", ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}

	var reader Reader
	switch ext {
	case ".mp3":
		reader, err = NewMP3(f)
	case ".flac":
		reader, err = NewFLAC(f)
	case ".wav":
		reader, err = NewWAV(f)
	}
	if err != nil {
		f.Close()
		return nil, err
	}

	log.Printf("Loaded %s: %s (%d Hz, %d channels)",
		strings.TrimPrefix(ext, "."), filepath.Base(path), reader.SampleRate(), reader.Channels())

	return reader, nil
}
