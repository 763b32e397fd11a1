package audio

import (
	"sync"
	"time"
)

// DefaultQueueDepth is the queue capacity used when none is configured
const DefaultQueueDepth = 1000

// QueueStats is a point-in-time snapshot of queue state. At any sampled
// instant dropped + currently-queued + consumed equals produced, modulo
// one in-flight push.
type QueueStats struct {
	// Depth is the number of chunks currently queued
	Depth int `json:"queue_size"`

	// Produced is the cumulative number of chunks pushed
	Produced uint64 `json:"total_chunks"`

	// Dropped is the cumulative number of chunks evicted by overflow
	Dropped uint64 `json:"dropped_chunks"`
}

// ChunkQueue is a bounded FIFO of audio chunks between the capture
// goroutine and the consumer. When a push finds the queue at capacity
// the oldest chunk is evicted first: the producer runs on the realtime
// capture path and must never stall, so sustained overload loses the
// least-recent audio and keeps the freshest.
type ChunkQueue struct {
	mu       sync.Mutex
	ch       chan *AudioChunk
	done     chan struct{}
	closed   bool
	produced uint64
	dropped  uint64
}

// NewChunkQueue creates a queue holding at most maxDepth chunks
func NewChunkQueue(maxDepth int) *ChunkQueue {
	if maxDepth <= 0 {
		maxDepth = DefaultQueueDepth
	}
	return &ChunkQueue{
		ch:   make(chan *AudioChunk, maxDepth),
		done: make(chan struct{}),
	}
}

// Push enqueues a chunk, evicting the oldest one first when the queue
// is full. Returns false after Close; the chunk is not enqueued.
func (q *ChunkQueue) Push(c *AudioChunk) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	select {
	case q.ch <- c:
	default:
		// Full: drop the oldest chunk to make room. The consumer may
		// have drained concurrently, in which case nothing is dropped.
		select {
		case <-q.ch:
			q.dropped++
		default:
		}
		q.ch <- c
	}

	q.produced++
	return true
}

// PopBatch blocks until at least one chunk is available, the queue is
// closed, or the timeout elapses, then drains up to max chunks in FIFO
// order without blocking further. A non-positive timeout polls without
// blocking.
func (q *ChunkQueue) PopBatch(max int, timeout time.Duration) []*AudioChunk {
	if max <= 0 {
		return nil
	}

	q.mu.Lock()
	done := q.done
	q.mu.Unlock()

	var out []*AudioChunk

	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case c := <-q.ch:
			out = append(out, c)
		case <-done:
			// Closed: fall through and drain whatever is left
		case <-timer.C:
			return nil
		}
	}

	for len(out) < max {
		select {
		case c := <-q.ch:
			out = append(out, c)
		default:
			return out
		}
	}
	return out
}

// Pop returns the oldest chunk, or nil if none arrived within the
// timeout or the queue is closed and empty
func (q *ChunkQueue) Pop(timeout time.Duration) *AudioChunk {
	batch := q.PopBatch(1, timeout)
	if len(batch) == 0 {
		return nil
	}
	return batch[0]
}

// Clear discards all queued chunks. Cumulative counters are untouched.
func (q *ChunkQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.drainLocked()
}

// Close marks the queue closed: subsequent pushes fail and blocked
// consumers wake. Already-queued chunks remain drainable until empty.
// Idempotent.
func (q *ChunkQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.done)
	}
}

// Len returns the number of chunks currently queued
func (q *ChunkQueue) Len() int {
	return len(q.ch)
}

// Stats returns a snapshot of depth and cumulative counters
func (q *ChunkQueue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Depth:    len(q.ch),
		Produced: q.produced,
		Dropped:  q.dropped,
	}
}

// reset reopens the queue for a new session, discarding leftover chunks
// and zeroing the cumulative counters. The queue itself is owned by the
// session for its whole lifetime and is never recreated.
func (q *ChunkQueue) reset() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.drainLocked()
	if q.closed {
		q.closed = false
		q.done = make(chan struct{})
	}
	q.produced = 0
	q.dropped = 0
}

func (q *ChunkQueue) drainLocked() {
	for {
		select {
		case <-q.ch:
		default:
			return
		}
	}
}
