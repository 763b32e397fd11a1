package app

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/wav"

	"github.com/emmett/loopcap/internal/audio"
)

func encodeSamples(values ...float32) []byte {
	out := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

// scriptedEndpoint serves fixed packets at a format of its own choosing,
// independent of what the session asked for
type scriptedEndpoint struct {
	mu      sync.Mutex
	format  audio.CaptureFormat
	packets [][]byte
}

func (e *scriptedEndpoint) Format() audio.CaptureFormat { return e.format }
func (e *scriptedEndpoint) Start() error                { return nil }
func (e *scriptedEndpoint) Stop() error                 { return nil }
func (e *scriptedEndpoint) Close()                      {}

func (e *scriptedEndpoint) NextPacketFrames() (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.packets) == 0 {
		return 0, nil
	}
	return len(e.packets[0]) / e.format.FrameBytes(), nil
}

func (e *scriptedEndpoint) AcquirePacket() ([]byte, int, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.packets) == 0 {
		return nil, 0, false, nil
	}
	p := e.packets[0]
	return p, len(p) / e.format.FrameBytes(), false, nil
}

func (e *scriptedEndpoint) ReleasePacket(frames int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if frames > 0 && len(e.packets) > 0 {
		e.packets = e.packets[1:]
	}
	return nil
}

type fixedActivator struct {
	endpoint audio.Endpoint
}

func (a *fixedActivator) Activate(target audio.CaptureTarget) (audio.Endpoint, error) {
	return a.endpoint, nil
}

func TestRecorderWritesNegotiatedFormat(t *testing.T) {
	// The device negotiates mono 44.1kHz even though the config asks
	// for stereo 48kHz; the WAV header must follow the device
	ep := &scriptedEndpoint{
		format: audio.CaptureFormat{
			Channels:      1,
			SampleRate:    44100,
			BitsPerSample: 32,
			Encoding:      audio.EncodingIEEEFloat,
		},
		packets: [][]byte{encodeSamples(0.5, -0.5, 0.25, -0.25)},
	}

	capture := audio.DefaultConfig()
	capture.ChunkFrames = 4

	path := filepath.Join(t.TempDir(), "out.wav")
	r := NewRecorder(RecorderConfig{
		Duration:     50 * time.Millisecond,
		OutputFile:   path,
		ReportFormat: "text",
		Capture:      capture,
	})
	r.activator = &fixedActivator{endpoint: ep}

	if err := r.Run(); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to reopen wav: %v", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("failed to decode wav: %v", err)
	}

	if dec.SampleRate != 44100 {
		t.Errorf("expected the endpoint's 44100 Hz in the header, got %d", dec.SampleRate)
	}
	if dec.NumChans != 1 {
		t.Errorf("expected the endpoint's mono layout, got %d channels", dec.NumChans)
	}
	if len(buf.Data) != 4 {
		t.Fatalf("expected 4 samples, got %d", len(buf.Data))
	}
	got := float64(buf.Data[0]) / math.MaxInt16
	if math.Abs(got-0.5) > 2.0/math.MaxInt16 {
		t.Errorf("first sample should be about 0.5, got %v", got)
	}
}
