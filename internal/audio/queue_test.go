package audio

import (
	"testing"
	"time"
)

func testChunk(id int) *AudioChunk {
	c := newChunk(4, 2)
	c.Data[0] = float32(id)
	return c
}

func chunkID(c *AudioChunk) int {
	return int(c.Data[0])
}

func TestQueueFIFOOrder(t *testing.T) {
	q := NewChunkQueue(10)
	for i := 0; i < 5; i++ {
		if !q.Push(testChunk(i)) {
			t.Fatalf("push %d failed", i)
		}
	}

	for i := 0; i < 5; i++ {
		c := q.Pop(0)
		if c == nil {
			t.Fatalf("pop %d returned nil", i)
		}
		if chunkID(c) != i {
			t.Errorf("expected chunk %d, got %d", i, chunkID(c))
		}
	}
	if c := q.Pop(0); c != nil {
		t.Errorf("empty queue should pop nil, got chunk %d", chunkID(c))
	}
}

func TestQueueDropOldest(t *testing.T) {
	q := NewChunkQueue(3)
	for i := 0; i < 7; i++ {
		q.Push(testChunk(i))
	}

	stats := q.Stats()
	if stats.Produced != 7 {
		t.Errorf("expected 7 produced, got %d", stats.Produced)
	}
	if stats.Dropped != 4 {
		t.Errorf("expected 4 dropped, got %d", stats.Dropped)
	}
	if stats.Depth != 3 {
		t.Errorf("expected depth 3, got %d", stats.Depth)
	}

	// The survivors are the most recent pushes, still in order
	for _, want := range []int{4, 5, 6} {
		c := q.Pop(0)
		if c == nil || chunkID(c) != want {
			t.Fatalf("expected chunk %d, got %v", want, c)
		}
	}
}

func TestQueuePopBatchBounds(t *testing.T) {
	q := NewChunkQueue(10)
	for i := 0; i < 8; i++ {
		q.Push(testChunk(i))
	}

	batch := q.PopBatch(3, 0)
	if len(batch) != 3 {
		t.Fatalf("expected batch of 3, got %d", len(batch))
	}
	for i, c := range batch {
		if chunkID(c) != i {
			t.Errorf("batch[%d]: expected chunk %d, got %d", i, i, chunkID(c))
		}
	}

	batch = q.PopBatch(100, 0)
	if len(batch) != 5 {
		t.Errorf("expected remaining 5 chunks, got %d", len(batch))
	}

	if batch := q.PopBatch(0, 0); batch != nil {
		t.Errorf("max 0 should yield nil, got %d chunks", len(batch))
	}
}

func TestQueuePopBatchTimeout(t *testing.T) {
	q := NewChunkQueue(10)

	start := time.Now()
	batch := q.PopBatch(4, 50*time.Millisecond)
	elapsed := time.Since(start)

	if len(batch) != 0 {
		t.Errorf("expected empty batch on timeout, got %d", len(batch))
	}
	if elapsed < 40*time.Millisecond {
		t.Errorf("returned before timeout: %v", elapsed)
	}
}

func TestQueuePopBatchWakesOnPush(t *testing.T) {
	q := NewChunkQueue(10)

	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Push(testChunk(42))
	}()

	batch := q.PopBatch(4, time.Second)
	if len(batch) != 1 || chunkID(batch[0]) != 42 {
		t.Fatalf("expected the pushed chunk, got %v", batch)
	}
}

func TestQueueCloseSemantics(t *testing.T) {
	q := NewChunkQueue(10)
	q.Push(testChunk(1))
	q.Push(testChunk(2))
	q.Close()

	if q.Push(testChunk(3)) {
		t.Error("push after close should fail")
	}

	// Queued chunks stay drainable after close
	batch := q.PopBatch(10, time.Second)
	if len(batch) != 2 {
		t.Fatalf("expected 2 drainable chunks after close, got %d", len(batch))
	}

	// Empty and closed: consumers do not block
	start := time.Now()
	if c := q.Pop(time.Second); c != nil {
		t.Errorf("closed empty queue should pop nil, got %d", chunkID(c))
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("pop on closed queue should not wait out the timeout")
	}

	// Idempotent
	q.Close()
}

func TestQueueCloseWakesBlockedConsumer(t *testing.T) {
	q := NewChunkQueue(10)

	done := make(chan struct{})
	go func() {
		q.Pop(5 * time.Second)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("blocked consumer was not woken by close")
	}
}

func TestQueueClearKeepsCounters(t *testing.T) {
	q := NewChunkQueue(2)
	for i := 0; i < 5; i++ {
		q.Push(testChunk(i))
	}
	q.Clear()

	stats := q.Stats()
	if stats.Depth != 0 {
		t.Errorf("expected empty queue after clear, got depth %d", stats.Depth)
	}
	if stats.Produced != 5 || stats.Dropped != 3 {
		t.Errorf("clear should not touch counters: %+v", stats)
	}
}

func TestQueueResetReopens(t *testing.T) {
	q := NewChunkQueue(5)
	q.Push(testChunk(1))
	q.Close()

	q.reset()

	if !q.Push(testChunk(2)) {
		t.Fatal("push after reset should succeed")
	}
	stats := q.Stats()
	if stats.Produced != 1 || stats.Dropped != 0 {
		t.Errorf("reset should zero counters: %+v", stats)
	}
	if c := q.Pop(0); c == nil || chunkID(c) != 2 {
		t.Error("leftover chunks should be discarded by reset")
	}
}

func TestQueueDefaultDepth(t *testing.T) {
	q := NewChunkQueue(0)
	if cap(q.ch) != DefaultQueueDepth {
		t.Errorf("expected default depth %d, got %d", DefaultQueueDepth, cap(q.ch))
	}
}
