package audio

import (
	"encoding/binary"
	"math"
)

// ToFloat32 converts raw interleaved samples into normalized float32
// samples in the [-1, 1] domain. Integer PCM divides by the signed
// range magnitude (32768 for 16-bit, 2147483648 for 32-bit); float
// input is copied unchanged.
//
// Unknown encodings produce an empty result rather than an error: the
// capture loop must never be interrupted by a single malformed buffer,
// so format support is validated before capture starts, not here.
func ToFloat32(raw []byte, format CaptureFormat, frames int) []float32 {
	if frames <= 0 || format.Channels <= 0 {
		return nil
	}

	samples := frames * format.Channels
	bytesPerSample := format.BitsPerSample / 8
	if bytesPerSample > 0 && samples*bytesPerSample > len(raw) {
		// Truncated buffer: convert only the complete samples
		samples = len(raw) / bytesPerSample
	}

	switch {
	case format.Encoding == EncodingIEEEFloat && format.BitsPerSample == 32:
		out := make([]float32, samples)
		for i := 0; i < samples; i++ {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		return out

	case format.Encoding == EncodingPCM && format.BitsPerSample == 16:
		out := make([]float32, samples)
		for i := 0; i < samples; i++ {
			s := int16(binary.LittleEndian.Uint16(raw[i*2:]))
			out[i] = float32(s) / 32768.0
		}
		return out

	case format.Encoding == EncodingPCM && format.BitsPerSample == 32:
		out := make([]float32, samples)
		for i := 0; i < samples; i++ {
			s := int32(binary.LittleEndian.Uint32(raw[i*4:]))
			out[i] = float32(float64(s) / 2147483648.0)
		}
		return out

	default:
		return nil
	}
}
