package audio

import "errors"

// Sentinel errors for the capture pipeline
var (
	// ErrAlreadyCapturing is returned by Start when a session is
	// already capturing
	ErrAlreadyCapturing = errors.New("audio: capture already in progress")

	// ErrCapturing is returned by operations that are rejected while a
	// capture is running, such as changing the chunk size
	ErrCapturing = errors.New("audio: not allowed while capturing")

	// ErrActivationTimeout is returned when the activation handshake
	// does not complete within the configured bound
	ErrActivationTimeout = errors.New("audio: device activation timed out")

	// ErrProcessCaptureUnsupported is returned when the platform
	// backend cannot scope capture to a single process
	ErrProcessCaptureUnsupported = errors.New("audio: process-scoped capture not supported on this platform")
)

// Endpoint is the boundary to the OS audio subsystem: pull-model access
// to ready capture data. Packet data returned by AcquirePacket is valid
// only until the matching ReleasePacket.
//
// An Endpoint is owned by exactly one CaptureSession at a time and all
// packet calls happen on the session's capture goroutine.
type Endpoint interface {
	// Format returns the negotiated stream format
	Format() CaptureFormat

	// Start begins the underlying stream
	Start() error

	// Stop halts the underlying stream
	Stop() error

	// NextPacketFrames returns the number of frames in the next ready
	// packet, or zero when no data is pending
	NextPacketFrames() (int, error)

	// AcquirePacket returns the next packet's raw data, its frame
	// count, and whether the OS flagged the span as silent. For silent
	// packets data may be nil.
	AcquirePacket() (data []byte, frames int, silent bool, err error)

	// ReleasePacket returns the packet buffer to the OS
	ReleasePacket(frames int) error

	// Close releases the capture handle. The endpoint is unusable
	// afterwards.
	Close()
}

// Activator obtains an activated Endpoint for a capture target. The
// call may block while the OS completes the activation out-of-band;
// CaptureSession wraps it into the single-suspension-point handshake.
type Activator interface {
	Activate(target CaptureTarget) (Endpoint, error)
}

// NewPlatformActivator returns the default activator for this platform:
// WASAPI on Windows, a miniaudio loopback backend elsewhere.
func NewPlatformActivator(cfg CaptureConfig) Activator {
	return newPlatformActivator(cfg)
}
