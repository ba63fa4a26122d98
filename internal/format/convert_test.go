package format

import (
	"math"
	"testing"
)

func TestRoundTripWithinEpsilon(t *testing.T) {
	t.Parallel()

	formats := []SampleFormat{FormatU8, FormatS16, FormatS24, FormatS32, FormatF32}
	values := []float32{-0.99, -0.5, -0.1, 0, 0.1, 0.5, 0.99}

	for _, f := range formats {
		bps := BytesPerSample(f)
		buf := make([]byte, len(values)*bps)
		src := make([]float32, len(values))
		copy(src, values)

		EncodeInterleaved(src, buf, f)

		// src must be zeroed after conversion per §4.2.
		for _, v := range src {
			if v != 0 {
				t.Fatalf("format %v: source buffer not zeroed after encode", f)
			}
		}

		decoded := DecodeInterleaved(buf, f, nil)
		epsilon := float32(1.0 / 127.0) // loosest bound: U8's scale
		for i, want := range values {
			if math.Abs(float64(decoded[i]-want)) > float64(epsilon) {
				t.Errorf("format %v: sample %d: want %.4f got %.4f", f, i, want, decoded[i])
			}
		}
	}
}

func TestClampFloat(t *testing.T) {
	t.Parallel()

	cases := map[float32]float32{
		2.0:                       1.0,
		-2.0:                      -1.0,
		0.5:                       0.5,
		float32(math.NaN()):       0,
		float32(math.Inf(1)):      0,
		float32(math.Inf(-1)):     0,
	}
	for in, want := range cases {
		if got := ClampFloat(in); got != want {
			t.Errorf("ClampFloat(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestS24RoundTrip(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 3)
	putS24LE(buf, -8388607)
	if got := getS24LE(buf); got != -8388607 {
		t.Errorf("got %d, want -8388607", got)
	}
	putS24LE(buf, 8388607)
	if got := getS24LE(buf); got != 8388607 {
		t.Errorf("got %d, want 8388607", got)
	}
}

func TestMemorySourceReadSeekExhaustion(t *testing.T) {
	t.Parallel()

	src := NewMemorySource([]float32{0, 1, 2, 3, 4, 5}, 2, 48000)
	dst := make([]float32, 4)

	n, err := src.Read(dst)
	if err != nil || n != 4 {
		t.Fatalf("Read: n=%d err=%v", n, err)
	}

	n, err = src.Read(dst)
	if err != nil || n != 2 {
		t.Fatalf("second Read: n=%d err=%v", n, err)
	}

	n, err = src.Read(dst)
	if err != nil || n != 0 {
		t.Fatalf("exhausted Read: n=%d err=%v", n, err)
	}
	if src.Position() != 6 {
		t.Errorf("exhausted read advanced position: %d", src.Position())
	}

	if err := src.Seek(6); err != nil {
		t.Fatalf("seek to length: %v", err)
	}
	n, _ = src.Read(dst)
	if n != 0 {
		t.Errorf("seek-to-length then read: expected immediate EOS, got %d", n)
	}

	if err := src.Seek(100); err == nil {
		t.Error("expected out-of-range seek to fail")
	}
}
