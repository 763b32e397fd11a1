package audio

import (
	"fmt"
	"time"
)

// SampleEncoding identifies how raw samples from the OS endpoint are encoded
type SampleEncoding int

const (
	// EncodingPCM is signed integer PCM (16 or 32 bit)
	EncodingPCM SampleEncoding = iota

	// EncodingIEEEFloat is 32-bit IEEE floating point
	EncodingIEEEFloat

	// EncodingUnknown is anything the converter does not recognize
	EncodingUnknown
)

// String returns a human-readable encoding name
func (e SampleEncoding) String() string {
	switch e {
	case EncodingPCM:
		return "pcm"
	case EncodingIEEEFloat:
		return "ieee-float"
	default:
		return "unknown"
	}
}

// CaptureFormat describes the stream format negotiated for one session.
// It is fixed at Start and immutable for the session's lifetime.
type CaptureFormat struct {
	// Channels is the number of interleaved channels (2 for this design)
	Channels int

	// SampleRate is the number of frames per second (Hz)
	SampleRate int

	// BitsPerSample is the width of one raw sample
	BitsPerSample int

	// Encoding is the raw sample encoding
	Encoding SampleEncoding
}

// FrameBytes returns the size of one interleaved frame in bytes
func (f CaptureFormat) FrameBytes() int {
	return f.Channels * f.BitsPerSample / 8
}

// String returns a human-readable format description
func (f CaptureFormat) String() string {
	return fmt.Sprintf("%dch %dHz %dbit %s", f.Channels, f.SampleRate, f.BitsPerSample, f.Encoding)
}

// ProcessLoopbackFormat returns the fixed format used for process-scoped
// capture. The virtual loopback device does not negotiate: it always
// delivers 2-channel 48kHz 32-bit float.
func ProcessLoopbackFormat() CaptureFormat {
	return CaptureFormat{
		Channels:      2,
		SampleRate:    48000,
		BitsPerSample: 32,
		Encoding:      EncodingIEEEFloat,
	}
}

// TargetMode selects which part of the process tree a process-scoped
// capture includes
type TargetMode int

const (
	// ModeIncludeTree captures the target process and its descendants
	ModeIncludeTree TargetMode = iota

	// ModeExcludeTree captures everything except the target process tree
	ModeExcludeTree
)

// CaptureTarget identifies what a session captures: the system mixer
// (PID zero) or a specific process subtree.
type CaptureTarget struct {
	PID  uint32
	Mode TargetMode
}

// SystemMixerTarget returns a target for full system loopback capture
func SystemMixerTarget() CaptureTarget {
	return CaptureTarget{}
}

// ProcessTarget returns a target scoped to the given process. When
// includeDescendants is false the capture excludes the process tree
// instead, matching the virtual device's exclude mode.
func ProcessTarget(pid uint32, includeDescendants bool) CaptureTarget {
	mode := ModeIncludeTree
	if !includeDescendants {
		mode = ModeExcludeTree
	}
	return CaptureTarget{PID: pid, Mode: mode}
}

// IsSystemMixer reports whether this target is the whole system mix
func (t CaptureTarget) IsSystemMixer() bool {
	return t.PID == 0
}

// String returns a human-readable target description
func (t CaptureTarget) String() string {
	if t.IsSystemMixer() {
		return "system mixer"
	}
	if t.Mode == ModeExcludeTree {
		return fmt.Sprintf("all but pid %d tree", t.PID)
	}
	return fmt.Sprintf("pid %d tree", t.PID)
}

// AudioChunk is one fixed-size unit of captured audio: interleaved
// float32 samples normalized to [-1, 1]. Ownership moves from the
// capture goroutine through the queue to the consumer; a chunk is never
// shared or mutated after it has been pushed.
type AudioChunk struct {
	// Data holds Frames * Channels interleaved samples
	Data []float32

	// Frames is the number of frames in Data
	Frames int

	// Channels is the number of interleaved channels
	Channels int

	// Silent is true when the endpoint reported silence for the whole
	// span written into this chunk
	Silent bool

	// Timestamp is when the chunk was started
	Timestamp time.Time
}

// newChunk allocates a zeroed chunk of the given capacity
func newChunk(frames, channels int) *AudioChunk {
	return &AudioChunk{
		Data:      make([]float32, frames*channels),
		Frames:    frames,
		Channels:  channels,
		Timestamp: time.Now(),
	}
}

// Sample returns the sample at the given frame and channel
func (c *AudioChunk) Sample(frame, channel int) float32 {
	return c.Data[frame*c.Channels+channel]
}

// Samples returns the chunk as a [frames][channels] matrix. The rows
// alias fresh storage, so the caller may keep them after the chunk is
// recycled.
func (c *AudioChunk) Samples() [][]float32 {
	out := make([][]float32, c.Frames)
	for i := range out {
		row := make([]float32, c.Channels)
		copy(row, c.Data[i*c.Channels:(i+1)*c.Channels])
		out[i] = row
	}
	return out
}

// Duration returns the chunk's play time at the given sample rate
func (c *AudioChunk) Duration(sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(c.Frames) * time.Second / time.Duration(sampleRate)
}

// CaptureConfig holds configuration for a capture session
type CaptureConfig struct {
	// ChunkFrames is the number of frames per delivered chunk
	// 480 frames = 10ms at 48kHz
	ChunkFrames int

	// QueueDepth is the maximum number of chunks buffered between the
	// capture goroutine and the consumer before drop-oldest kicks in
	QueueDepth int

	// SampleRate is the rate requested for system-mixer capture.
	// Process-scoped capture ignores it (fixed 48kHz).
	SampleRate int

	// Channels is the channel count requested for system-mixer capture
	Channels int

	// SilenceThreshold is the RMS level below which a backend without a
	// native silence flag reports a packet as silent
	SilenceThreshold float64

	// ActivationTimeout bounds the wait for the asynchronous device
	// activation handshake. Zero waits indefinitely, matching the
	// platform's own behavior.
	ActivationTimeout time.Duration
}

// DefaultConfig returns a configuration matching the process loopback
// device's native format: 10ms chunks at 48kHz stereo
func DefaultConfig() CaptureConfig {
	return CaptureConfig{
		ChunkFrames:      480,  // 10ms at 48kHz
		QueueDepth:       1000, // ~10s of audio at 10ms chunks
		SampleRate:       48000,
		Channels:         2,
		SilenceThreshold: DefaultSilenceThreshold,
	}
}

// LowLatencyConfig returns a configuration tuned for small buffers and
// fast hand-off at the cost of more queue churn
func LowLatencyConfig() CaptureConfig {
	cfg := DefaultConfig()
	cfg.ChunkFrames = 240 // 5ms at 48kHz
	cfg.QueueDepth = 200
	return cfg
}
