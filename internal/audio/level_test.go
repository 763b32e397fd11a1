package audio

import (
	"math"
	"testing"
)

func TestRMS(t *testing.T) {
	if got := RMS(nil); got != 0 {
		t.Errorf("empty input should have zero RMS, got %v", got)
	}
	if got := RMS([]float32{0.5, 0.5, 0.5, 0.5}); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("constant 0.5 signal should have RMS 0.5, got %v", got)
	}
	if got := RMS([]float32{1, -1, 1, -1}); math.Abs(got-1) > 1e-9 {
		t.Errorf("full-scale square wave should have RMS 1, got %v", got)
	}
}

func TestPeak(t *testing.T) {
	if got := Peak([]float32{0.1, -0.8, 0.3}); math.Abs(got-0.8) > 1e-7 {
		t.Errorf("expected peak 0.8, got %v", got)
	}
	if got := Peak(nil); got != 0 {
		t.Errorf("empty input should have zero peak, got %v", got)
	}
}

func TestDBFS(t *testing.T) {
	if got := DBFS(nil); got != -96 {
		t.Errorf("silence should floor at -96 dBFS, got %v", got)
	}
	if got := DBFS([]float32{1, -1}); math.Abs(got) > 1e-9 {
		t.Errorf("full scale should be 0 dBFS, got %v", got)
	}
	if got := DBFS([]float32{0.5, -0.5}); math.Abs(got-(-6.0206)) > 0.001 {
		t.Errorf("half scale should be about -6.02 dBFS, got %v", got)
	}
	if got := DBFS([]float32{1e-7}); got != -96 {
		t.Errorf("near-silence should floor at -96 dBFS, got %v", got)
	}
}

func TestNormalize(t *testing.T) {
	in := []float32{0.25, -0.5, 0.1}
	out := Normalize(in, 1.0)
	if math.Abs(Peak(out)-1.0) > 1e-6 {
		t.Errorf("normalized peak should be 1.0, got %v", Peak(out))
	}
	if in[0] != 0.25 {
		t.Error("input must not be mutated")
	}

	silent := Normalize([]float32{0, 0}, 1.0)
	if silent[0] != 0 || silent[1] != 0 {
		t.Error("silent input should pass through unscaled")
	}
}

func TestSilenceGate(t *testing.T) {
	gate := NewSilenceGate(0)
	if gate.Threshold != DefaultSilenceThreshold {
		t.Errorf("non-positive threshold should select the default, got %v", gate.Threshold)
	}

	if !gate.Silent([]float32{0, 0, 0, 0}) {
		t.Error("digital silence should be silent")
	}
	if !gate.Silent([]float32{1e-5, -1e-5}) {
		t.Error("sub-threshold noise should be silent")
	}
	if gate.Silent([]float32{0.1, -0.1}) {
		t.Error("audible signal should not be silent")
	}
}
