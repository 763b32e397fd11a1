// Package wavio persists drained audio chunks as 16-bit PCM WAV files.
// It lives on the consumer side of the pipeline: the capture path never
// touches the filesystem.
package wavio

import (
	"fmt"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/emmett/loopcap/internal/audio"
)

// wavBitDepth is the output sample width
const wavBitDepth = 16

// Writer encodes float32 chunks into a WAV file as they are drained
type Writer struct {
	file    *os.File
	encoder *wav.Encoder
	format  *goaudio.Format
	frames  int
}

// NewWriter creates a WAV file for the given stream parameters
func NewWriter(path string, sampleRate, channels int) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create wav file: %w", err)
	}

	return &Writer{
		file:    f,
		encoder: wav.NewEncoder(f, sampleRate, wavBitDepth, channels, 1),
		format: &goaudio.Format{
			SampleRate:  sampleRate,
			NumChannels: channels,
		},
	}, nil
}

// WriteChunk appends one chunk, clamping samples to [-1, 1] before
// scaling to int16
func (w *Writer) WriteChunk(c *audio.AudioChunk) error {
	buf := &goaudio.IntBuffer{
		Format:         w.format,
		Data:           make([]int, len(c.Data)),
		SourceBitDepth: wavBitDepth,
	}

	for i, s := range c.Data {
		v := float64(s)
		if v > 1.0 {
			v = 1.0
		} else if v < -1.0 {
			v = -1.0
		}
		buf.Data[i] = int(v * math.MaxInt16)
	}

	if err := w.encoder.Write(buf); err != nil {
		return fmt.Errorf("write wav frames: %w", err)
	}
	w.frames += c.Frames
	return nil
}

// Frames returns the number of frames written so far
func (w *Writer) Frames() int {
	return w.frames
}

// Close finalizes the WAV header and closes the file
func (w *Writer) Close() error {
	if err := w.encoder.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("finalize wav: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		w.file.Close()
		return fmt.Errorf("sync wav: %w", err)
	}
	return w.file.Close()
}
