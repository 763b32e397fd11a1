package audio

import (
	"bytes"
	"testing"
)

func TestFrameRingWriteRead(t *testing.T) {
	r := newFrameRing(8, 4)

	r.WriteFrames([]byte{1, 1, 1, 1, 2, 2, 2, 2, 3, 3, 3, 3})
	if got := r.AvailableFrames(); got != 3 {
		t.Fatalf("expected 3 frames available, got %d", got)
	}

	out := make([]byte, 8)
	if got := r.ReadFrames(out); got != 2 {
		t.Fatalf("expected 2 frames read, got %d", got)
	}
	if !bytes.Equal(out, []byte{1, 1, 1, 1, 2, 2, 2, 2}) {
		t.Errorf("unexpected frame data: %v", out)
	}
	if got := r.AvailableFrames(); got != 1 {
		t.Errorf("expected 1 frame left, got %d", got)
	}
}

func TestFrameRingIgnoresPartialFrames(t *testing.T) {
	r := newFrameRing(8, 4)

	r.WriteFrames([]byte{1, 1, 1, 1, 2, 2})
	if got := r.AvailableFrames(); got != 1 {
		t.Errorf("partial trailing frame should be ignored, have %d frames", got)
	}

	r.WriteFrames([]byte{9})
	if got := r.AvailableFrames(); got != 1 {
		t.Errorf("sub-frame write should be a no-op, have %d frames", got)
	}
}

func TestFrameRingOverwritesOldest(t *testing.T) {
	r := newFrameRing(2, 2)

	r.WriteFrames([]byte{1, 1, 2, 2})
	r.WriteFrames([]byte{3, 3})

	if r.Overruns() == 0 {
		t.Error("overwrite should be counted")
	}

	out := make([]byte, 4)
	if got := r.ReadFrames(out); got != 2 {
		t.Fatalf("expected 2 frames, got %d", got)
	}
	if !bytes.Equal(out, []byte{2, 2, 3, 3}) {
		t.Errorf("expected the newest frames to survive, got %v", out)
	}
}

func TestFrameRingOversizedWriteKeepsNewest(t *testing.T) {
	r := newFrameRing(2, 2)

	r.WriteFrames([]byte{1, 1, 2, 2, 3, 3, 4, 4})

	out := make([]byte, 4)
	if got := r.ReadFrames(out); got != 2 {
		t.Fatalf("expected 2 frames, got %d", got)
	}
	if !bytes.Equal(out, []byte{3, 3, 4, 4}) {
		t.Errorf("expected the newest frames, got %v", out)
	}
}

func TestFrameRingReset(t *testing.T) {
	r := newFrameRing(4, 2)
	r.WriteFrames([]byte{1, 1, 2, 2})
	r.Reset()

	if got := r.AvailableFrames(); got != 0 {
		t.Errorf("expected empty ring after reset, got %d frames", got)
	}
	if got := r.ReadFrames(make([]byte, 4)); got != 0 {
		t.Errorf("read from reset ring should yield nothing, got %d frames", got)
	}
}
