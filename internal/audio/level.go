package audio

import "math"

// DefaultSilenceThreshold is the RMS level below which a span is
// treated as silent by backends that have no native silence flag
const DefaultSilenceThreshold = 1e-4

// minDBFS is the floor reported for digital silence
const minDBFS = -96.0

// RMS returns the root-mean-square level of interleaved samples
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Peak returns the largest absolute sample value
func Peak(samples []float32) float64 {
	var peak float64
	for _, s := range samples {
		if a := math.Abs(float64(s)); a > peak {
			peak = a
		}
	}
	return peak
}

// DBFS returns the RMS level in decibels relative to full scale,
// floored at -96 dB for digital silence
func DBFS(samples []float32) float64 {
	rms := RMS(samples)
	if rms <= 0 {
		return minDBFS
	}
	db := 20 * math.Log10(rms)
	if db < minDBFS {
		return minDBFS
	}
	return db
}

// Normalize returns a copy of samples scaled so the peak reaches
// target (0 < target <= 1). Silent input is returned unscaled.
func Normalize(samples []float32, target float64) []float32 {
	out := make([]float32, len(samples))
	peak := Peak(samples)
	if peak == 0 || target <= 0 {
		copy(out, samples)
		return out
	}

	gain := target / peak
	for i, s := range samples {
		out[i] = float32(float64(s) * gain)
	}
	return out
}

// SilenceGate classifies sample spans whose RMS stays under a
// threshold as silent. It stands in for the OS silence flag on
// backends that do not report one.
type SilenceGate struct {
	// Threshold is the RMS level below which a span counts as silent
	Threshold float64
}

// NewSilenceGate returns a gate with the given threshold; a
// non-positive threshold selects the default
func NewSilenceGate(threshold float64) SilenceGate {
	if threshold <= 0 {
		threshold = DefaultSilenceThreshold
	}
	return SilenceGate{Threshold: threshold}
}

// Silent reports whether the span's RMS is under the gate threshold
func (g SilenceGate) Silent(samples []float32) bool {
	return RMS(samples) < g.Threshold
}
