package format

import (
	"encoding/binary"
	"math"
)

// Scale factors per §6 "Sample formats on the wire".
const (
	scaleS16 = 32767.0
	scaleS24 = 8388607.0 // ±8,388,607 (2^23 - 1)
	scaleS32 = math.MaxInt32
	biasU8   = 128
)

// ClampFloat clamps a sample to the conventional [-1, +1] range, mapping
// NaN/Inf to 0 (the neutral/silent value prior to per-format biasing).
func ClampFloat(v float32) float32 {
	if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
		return 0
	}
	switch {
	case v > 1.0:
		return 1.0
	case v < -1.0:
		return -1.0
	default:
		return v
	}
}

// BytesPerSample returns the wire size of a single sample in f, or 0 for
// formats that aren't fixed-width on the wire (FormatUnknown).
func BytesPerSample(f SampleFormat) int {
	switch f {
	case FormatU8:
		return 1
	case FormatS16:
		return 2
	case FormatS24:
		return 3
	case FormatS32, FormatF32:
		return 4
	default:
		return 0
	}
}

// EncodeInterleaved converts a clamped interleaved float32 buffer into dst
// using the wire rules from §4.2/§6, returning the number of bytes written.
// dst must be at least len(src)*BytesPerSample(target) bytes.
// After conversion, src is zeroed so callers may recycle it immediately.
func EncodeInterleaved(src []float32, dst []byte, target SampleFormat) int {
	bps := BytesPerSample(target)
	if bps == 0 {
		return 0
	}
	need := len(src) * bps
	if len(dst) < need {
		return 0
	}

	for i, s := range src {
		v := ClampFloat(s)
		off := i * bps
		switch target {
		case FormatU8:
			dst[off] = byte(int32((v*127.0)+biasU8) & 0xFF)
		case FormatS16:
			sample := int16(math.Round(float64(v) * scaleS16))
			binary.LittleEndian.PutUint16(dst[off:off+2], uint16(sample))
		case FormatS24:
			sample := int32(math.Round(float64(v) * scaleS24))
			putS24LE(dst[off:off+3], sample)
		case FormatS32:
			sample := int32(math.Round(float64(v) * scaleS32))
			binary.LittleEndian.PutUint32(dst[off:off+4], uint32(sample))
		case FormatF32:
			binary.LittleEndian.PutUint32(dst[off:off+4], math.Float32bits(v))
		}
	}

	clear(src)
	return need
}

// DecodeInterleaved converts a wire-format byte buffer back to interleaved
// float32 samples, appending to dst (which is grown if needed) and
// returning the resulting slice.
func DecodeInterleaved(src []byte, srcFormat SampleFormat, dst []float32) []float32 {
	bps := BytesPerSample(srcFormat)
	if bps == 0 {
		return dst
	}
	n := len(src) / bps
	if cap(dst) < n {
		dst = make([]float32, n)
	} else {
		dst = dst[:n]
	}

	for i := 0; i < n; i++ {
		off := i * bps
		switch srcFormat {
		case FormatU8:
			dst[i] = (float32(src[off]) - biasU8) / 127.0
		case FormatS16:
			sample := int16(binary.LittleEndian.Uint16(src[off : off+2]))
			dst[i] = float32(sample) / scaleS16
		case FormatS24:
			dst[i] = float32(getS24LE(src[off:off+3])) / scaleS24
		case FormatS32:
			sample := int32(binary.LittleEndian.Uint32(src[off : off+4]))
			dst[i] = float32(sample) / scaleS32
		case FormatF32:
			bits := binary.LittleEndian.Uint32(src[off : off+4])
			dst[i] = math.Float32frombits(bits)
		}
	}
	return dst
}

// putS24LE packs a signed 24-bit integer into 3 little-endian bytes.
func putS24LE(dst []byte, v int32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
}

// getS24LE unpacks a signed 24-bit little-endian integer, sign-extending
// the top bit into a full int32.
func getS24LE(src []byte) int32 {
	v := int32(src[0]) | int32(src[1])<<8 | int32(src[2])<<16
	if v&0x800000 != 0 {
		v |= -0x1000000
	}
	return v
}
