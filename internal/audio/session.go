package audio

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// sessionState tracks the session lifecycle:
// Idle -> Activating -> Capturing -> Stopping -> Idle
type sessionState int32

const (
	stateIdle sessionState = iota
	stateActivating
	stateCapturing
	stateStopping
)

// SessionMetrics is a snapshot of session counters. All counters reset
// to zero on Start and are otherwise monotonic non-decreasing.
type SessionMetrics struct {
	// FramesCaptured is the cumulative number of frames pulled from
	// the endpoint
	FramesCaptured uint64 `json:"total_frames"`

	// SilentFrames is the cumulative number of frames the endpoint
	// flagged as silent
	SilentFrames uint64 `json:"total_silent_frames"`

	// CaptureErrors is the cumulative number of transient endpoint
	// errors absorbed by the capture loop
	CaptureErrors uint64 `json:"capture_errors"`

	// Elapsed is the wall time since Start, frozen at Stop
	Elapsed time.Duration `json:"-"`

	// ElapsedSeconds is Elapsed in seconds, for serialized output
	ElapsedSeconds float64 `json:"elapsed_seconds"`

	// FramesPerSecond is FramesCaptured over Elapsed, valid once
	// Elapsed is positive
	FramesPerSecond float64 `json:"frames_per_second"`
}

// CaptureSession orchestrates one capture pipeline: it drives the
// activation handshake, owns the capture goroutine, accumulates
// endpoint packets into fixed-size chunks, and feeds the bounded queue
// the consumer drains.
//
// Start and Stop are not internally serialized against concurrent
// Start calls; callers invoking them from multiple goroutines must
// serialize them.
type CaptureSession struct {
	activator Activator
	queue     *ChunkQueue
	log       *slog.Logger

	state       atomic.Int32
	chunkFrames atomic.Int64

	// set during Start, read by the capture goroutine and Stop
	endpoint Endpoint
	format   CaptureFormat
	stopCh   chan struct{}
	wg       sync.WaitGroup

	framesCaptured atomic.Uint64
	silentFrames   atomic.Uint64
	captureErrors  atomic.Uint64
	startNanos     atomic.Int64
	stopNanos      atomic.Int64

	activationTimeout time.Duration
}

// NewCaptureSession creates a session with the given configuration.
// A nil activator selects the platform default backend.
func NewCaptureSession(cfg CaptureConfig, activator Activator) *CaptureSession {
	if cfg.ChunkFrames <= 0 {
		cfg.ChunkFrames = DefaultConfig().ChunkFrames
	}
	if activator == nil {
		activator = NewPlatformActivator(cfg)
	}

	s := &CaptureSession{
		activator:         activator,
		queue:             NewChunkQueue(cfg.QueueDepth),
		log:               slog.Default().With("session", uuid.NewString()),
		activationTimeout: cfg.ActivationTimeout,
	}
	s.chunkFrames.Store(int64(cfg.ChunkFrames))
	return s
}

// Start activates an endpoint for the target and begins capturing.
// It fails without state change when the session is already capturing,
// and leaves the session Idle when activation fails.
func (s *CaptureSession) Start(target CaptureTarget) error {
	if !s.state.CompareAndSwap(int32(stateIdle), int32(stateActivating)) {
		return ErrAlreadyCapturing
	}

	ep, err := activateEndpoint(s.activator, target, s.activationTimeout)
	if err != nil {
		s.state.Store(int32(stateIdle))
		return err
	}

	s.endpoint = ep
	s.format = ep.Format()

	s.queue.reset()
	s.framesCaptured.Store(0)
	s.silentFrames.Store(0)
	s.captureErrors.Store(0)
	s.stopNanos.Store(0)
	s.startNanos.Store(time.Now().UnixNano())

	if err := ep.Start(); err != nil {
		ep.Close()
		s.endpoint = nil
		s.state.Store(int32(stateIdle))
		return fmt.Errorf("start endpoint: %w", err)
	}

	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.captureLoop(ep, int(s.chunkFrames.Load()))

	s.state.Store(int32(stateCapturing))
	s.log.Info("capture started",
		"target", target.String(),
		"format", s.format.String(),
		"chunkFrames", s.chunkFrames.Load(),
	)
	return nil
}

// Stop signals the capture goroutine, waits for it to flush its final
// partial chunk and exit, then closes the queue and releases the
// capture handle. No-op unless the session is capturing. When Stop
// returns the capture goroutine has fully exited; queued chunks remain
// drainable.
func (s *CaptureSession) Stop() {
	if !s.state.CompareAndSwap(int32(stateCapturing), int32(stateStopping)) {
		return
	}

	close(s.stopCh)
	// Join before closing the queue so the final partial chunk is
	// accepted: no audio is discarded on stop.
	s.wg.Wait()
	s.stopNanos.Store(time.Now().UnixNano())
	s.queue.Close()

	if err := s.endpoint.Stop(); err != nil {
		s.log.Warn("endpoint stop failed", "err", err)
	}
	s.endpoint.Close()
	s.endpoint = nil

	s.state.Store(int32(stateIdle))
	m := s.Metrics()
	s.log.Info("capture stopped",
		"frames", m.FramesCaptured,
		"silentFrames", m.SilentFrames,
		"errors", m.CaptureErrors,
		"elapsed", m.Elapsed,
	)
}

// SetChunkSize sets the frames-per-chunk for subsequent sessions.
// Rejected while capturing.
func (s *CaptureSession) SetChunkSize(frames int) error {
	if frames <= 0 {
		return fmt.Errorf("chunk size %d: must be positive", frames)
	}
	if sessionState(s.state.Load()) != stateIdle {
		return ErrCapturing
	}
	s.chunkFrames.Store(int64(frames))
	return nil
}

// ChunkSize returns the configured frames-per-chunk
func (s *CaptureSession) ChunkSize() int {
	return int(s.chunkFrames.Load())
}

// Format returns the format negotiated for the current or most recent
// capture
func (s *CaptureSession) Format() CaptureFormat {
	return s.format
}

// IsCapturing reports whether a capture is active
func (s *CaptureSession) IsCapturing() bool {
	return sessionState(s.state.Load()) == stateCapturing
}

// PopChunk returns the oldest queued chunk, waiting up to timeout
func (s *CaptureSession) PopChunk(timeout time.Duration) *AudioChunk {
	return s.queue.Pop(timeout)
}

// PopChunks drains up to max queued chunks, waiting up to timeout for
// the first one
func (s *CaptureSession) PopChunks(max int, timeout time.Duration) []*AudioChunk {
	return s.queue.PopBatch(max, timeout)
}

// QueueSize returns the number of chunks currently queued
func (s *CaptureSession) QueueSize() int {
	return s.queue.Len()
}

// QueueStats returns the queue's depth and cumulative counters
func (s *CaptureSession) QueueStats() QueueStats {
	return s.queue.Stats()
}

// Metrics returns a snapshot of the session counters. The counters are
// written with relaxed atomics from the capture goroutine; this is
// monitoring data, not control state.
func (s *CaptureSession) Metrics() SessionMetrics {
	m := SessionMetrics{
		FramesCaptured: s.framesCaptured.Load(),
		SilentFrames:   s.silentFrames.Load(),
		CaptureErrors:  s.captureErrors.Load(),
	}

	start := s.startNanos.Load()
	if start > 0 {
		end := s.stopNanos.Load()
		if end == 0 {
			end = time.Now().UnixNano()
		}
		m.Elapsed = time.Duration(end - start)
	}
	m.ElapsedSeconds = m.Elapsed.Seconds()
	if m.Elapsed > 0 {
		m.FramesPerSecond = float64(m.FramesCaptured) / m.Elapsed.Seconds()
	}
	return m
}

// captureLoop runs on the dedicated capture goroutine until stopped:
// pull ready packets, normalize, accumulate into chunks, push. A single
// endpoint packet may span multiple chunk boundaries and is copied in
// as many sub-copies as needed.
func (s *CaptureSession) captureLoop(ep Endpoint, chunkFrames int) {
	defer s.wg.Done()

	const idleSleep = time.Millisecond

	format := ep.Format()
	channels := format.Channels

	current := newChunk(chunkFrames, channels)
	offset := 0
	spanSilent := true

	flush := func() {
		if offset == 0 {
			return
		}
		// Final partial chunk: resize to actual fill
		current.Frames = offset
		current.Data = current.Data[:offset*channels]
		current.Silent = spanSilent
		s.queue.Push(current)
	}

	for {
		select {
		case <-s.stopCh:
			flush()
			return
		default:
		}

		pending, err := ep.NextPacketFrames()
		if err != nil {
			s.captureErrors.Add(1)
			time.Sleep(idleSleep)
			continue
		}
		if pending == 0 {
			// Nothing ready: yield briefly instead of busy-spinning
			time.Sleep(idleSleep)
			continue
		}

		for pending > 0 {
			select {
			case <-s.stopCh:
				flush()
				return
			default:
			}

			data, frames, silent, err := ep.AcquirePacket()
			if err != nil {
				// Transient acquisition failure: count it and move on,
				// the loop only terminates on an explicit stop signal
				s.captureErrors.Add(1)
				break
			}
			if frames == 0 {
				_ = ep.ReleasePacket(0)
				break
			}

			samples := ToFloat32(data, format, frames)
			if silent {
				s.silentFrames.Add(uint64(frames))
			}

			src := 0
			remaining := frames
			for remaining > 0 {
				n := chunkFrames - offset
				if remaining < n {
					n = remaining
				}

				// The conversion may have yielded fewer samples than
				// the packet claimed (truncated raw data, unknown
				// encoding); the zeroed chunk storage stands in for
				// whatever is missing
				if lo := src * channels; lo < len(samples) {
					copy(current.Data[offset*channels:(offset+n)*channels],
						samples[lo:])
				}
				if !silent {
					spanSilent = false
				}

				offset += n
				src += n
				remaining -= n

				if offset == chunkFrames {
					current.Silent = spanSilent
					s.queue.Push(current)
					current = newChunk(chunkFrames, channels)
					offset = 0
					spanSilent = true
				}
			}

			s.framesCaptured.Add(uint64(frames))

			if err := ep.ReleasePacket(frames); err != nil {
				s.captureErrors.Add(1)
			}

			pending, err = ep.NextPacketFrames()
			if err != nil {
				s.captureErrors.Add(1)
				break
			}
		}

		time.Sleep(idleSleep)
	}
}
