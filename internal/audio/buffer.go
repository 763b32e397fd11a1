package audio

import "sync"

// frameRing is a circular buffer of whole interleaved frames. It sits
// between a push-model backend's data callback and the pull-model
// Endpoint contract: the callback writes, the capture goroutine reads.
// When the writer outruns the reader the oldest frames are overwritten,
// because the writer runs on the backend's realtime thread and must
// never block.
type frameRing struct {
	mu         sync.Mutex
	buf        []byte
	frameBytes int
	readPos    int
	writePos   int
	full       bool
	overruns   uint64
}

// newFrameRing creates a ring holding up to frames interleaved frames
// of frameBytes each
func newFrameRing(frames, frameBytes int) *frameRing {
	return &frameRing{
		buf:        make([]byte, frames*frameBytes),
		frameBytes: frameBytes,
	}
}

// WriteFrames copies whole frames into the ring, overwriting the oldest
// data when out of space. Partial trailing frames in p are ignored.
func (r *frameRing) WriteFrames(p []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(p) - len(p)%r.frameBytes
	if n == 0 {
		return
	}
	if n > len(r.buf) {
		// Larger than the whole ring: keep only the newest frames
		p = p[n-len(r.buf):]
		n = len(r.buf)
	}

	for i := 0; i < n; i++ {
		r.buf[r.writePos] = p[i]
		r.writePos = (r.writePos + 1) % len(r.buf)
		if r.full {
			// Overwriting: advance the read position frame by frame
			if r.writePos%r.frameBytes == 0 {
				r.readPos = r.writePos
				r.overruns++
			}
		} else if r.writePos == r.readPos {
			r.full = true
		}
	}
}

// ReadFrames copies up to len(p)/frameBytes whole frames out of the
// ring and returns the number of frames read
func (r *frameRing) ReadFrames(p []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := len(p) / r.frameBytes
	avail := r.availableFramesLocked()
	if want > avail {
		want = avail
	}

	n := want * r.frameBytes
	for i := 0; i < n; i++ {
		p[i] = r.buf[r.readPos]
		r.readPos = (r.readPos + 1) % len(r.buf)
	}
	if n > 0 {
		r.full = false
	}
	return want
}

// AvailableFrames returns the number of whole frames ready to read
func (r *frameRing) AvailableFrames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.availableFramesLocked()
}

func (r *frameRing) availableFramesLocked() int {
	if r.full {
		return len(r.buf) / r.frameBytes
	}
	var bytes int
	if r.writePos >= r.readPos {
		bytes = r.writePos - r.readPos
	} else {
		bytes = len(r.buf) - r.readPos + r.writePos
	}
	return bytes / r.frameBytes
}

// Overruns returns the cumulative number of frames lost to overwrite
func (r *frameRing) Overruns() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.overruns
}

// Reset empties the ring
func (r *frameRing) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readPos = 0
	r.writePos = 0
	r.full = false
}
