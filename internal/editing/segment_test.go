package editing

import (
	"math"
	"testing"

	"github.com/soundflow-go/soundflow/internal/format"
)

func rampSource(n, channels, sampleRate int) *format.MemorySource {
	samples := make([]float32, n*channels)
	for i := 0; i < n; i++ {
		v := float32(i)
		for c := 0; c < channels; c++ {
			samples[i*channels+c] = v
		}
	}
	return format.NewMemorySource(samples, channels, sampleRate)
}

func TestDerivedDurations(t *testing.T) {
	src := rampSource(48000, 1, 48000) // 1 second
	settings := DefaultSegmentSettings()
	settings.Stretch.Factor = 2.0
	settings.Speed = 1.0
	settings.Loop.Repetitions = 2

	seg, err := NewAudioSegment(src, 0, 1.0, 0, settings)
	if err != nil {
		t.Fatalf("NewAudioSegment: %v", err)
	}

	if got := seg.StretchedSourceDuration(); math.Abs(got-2.0) > 1e-9 {
		t.Fatalf("StretchedSourceDuration = %v, want 2.0", got)
	}
	if got := seg.SingleInstanceTimelineDuration(); math.Abs(got-2.0) > 1e-9 {
		t.Fatalf("SingleInstanceTimelineDuration = %v, want 2.0", got)
	}
	if got := seg.TotalLoopedTimelineDuration(); math.Abs(got-6.0) > 1e-9 {
		t.Fatalf("TotalLoopedTimelineDuration = %v, want 6.0 (3 reps * 2s)", got)
	}
}

func TestLoopWithRepetitionsRepeatsContent(t *testing.T) {
	const sr = 1000
	src := rampSource(sr, 1, sr) // 1 second ramp 0..999
	settings := DefaultSegmentSettings()
	settings.Loop.Repetitions = 2

	seg, err := NewAudioSegment(src, 0, 1.0, 0, settings)
	if err != nil {
		t.Fatalf("NewAudioSegment: %v", err)
	}

	total := seg.TotalLoopedTimelineDuration()
	if math.Abs(total-3.0) > 1e-9 {
		t.Fatalf("expected 3s total duration, got %v", total)
	}

	sampleAt := func(tSeconds float64) float32 {
		out := make([]float32, 1)
		_ = seg.ReadProcessed(tSeconds, 1.0/float64(sr), out, sr, 1)
		return out[0]
	}

	a := sampleAt(0.5)
	b := sampleAt(1.5)
	c := sampleAt(2.5)
	if math.Abs(float64(a-b)) > 1 || math.Abs(float64(b-c)) > 1 {
		t.Fatalf("expected matching samples across loop passes, got a=%v b=%v c=%v", a, b, c)
	}
}

func TestReversedSegmentProducesFramesInReverseOrder(t *testing.T) {
	const n = 100
	src := rampSource(n, 1, n)
	settings := DefaultSegmentSettings()
	settings.Reversed = true
	// Mono output at centre pan is scaled by sqrt(2) (left+right fold) and
	// then clamped to [-1, +1]; this gain maps the 0..n-1 ramp to 0..(n-1)/n.
	settings.Gain = 1 / (float64(n) * math.Sqrt2)

	seg, err := NewAudioSegment(src, 0, 1.0, 0, settings)
	if err != nil {
		t.Fatalf("NewAudioSegment: %v", err)
	}

	out := make([]float32, n)
	if err := seg.ReadProcessed(0, 1.0, out, n, 1); err != nil {
		t.Fatalf("ReadProcessed: %v", err)
	}

	// Frame 0 of reversed output should be near the source's last sample
	// ((n-1)/n after scaling); allow slack for the resample stage's linear
	// interpolation.
	if out[0] < float32(n-5)/n {
		t.Fatalf("expected first reversed frame near %v, got %v", float32(n-1)/n, out[0])
	}
	if out[len(out)-1] > float32(5)/n {
		t.Fatalf("expected last reversed frame near 0, got %v", out[len(out)-1])
	}
}

func TestTimeStretchFactorOneMatchesRawPath(t *testing.T) {
	src := rampSource(48000, 1, 48000)
	settings := DefaultSegmentSettings()
	settings.Stretch.Factor = 1.0

	seg, err := NewAudioSegment(src, 0, 1.0, 0, settings)
	if err != nil {
		t.Fatalf("NewAudioSegment: %v", err)
	}
	if seg.usesStretch() {
		t.Fatalf("factor == 1.0 should select the raw path, not WSOLA")
	}
}

func TestDisabledSegmentProducesSilence(t *testing.T) {
	src := rampSource(1000, 1, 1000)
	settings := DefaultSegmentSettings()
	settings.Enabled = false

	seg, err := NewAudioSegment(src, 0, 1.0, 0, settings)
	if err != nil {
		t.Fatalf("NewAudioSegment: %v", err)
	}

	out := make([]float32, 100)
	for i := range out {
		out[i] = 99
	}
	if err := seg.ReadProcessed(0, 0.1, out, 1000, 1); err != nil {
		t.Fatalf("ReadProcessed: %v", err)
	}
	for _, v := range out {
		if v != 0 {
			t.Fatalf("expected silence from disabled segment, got %v", v)
		}
	}
}

func TestNewAudioSegmentRejectsInvalidParams(t *testing.T) {
	src := rampSource(1000, 1, 1000)
	settings := DefaultSegmentSettings()

	if _, err := NewAudioSegment(src, -1, 1.0, 0, settings); err == nil {
		t.Fatalf("expected error for negative source_start")
	}
	if _, err := NewAudioSegment(src, 0, 0, 0, settings); err == nil {
		t.Fatalf("expected error for zero source_duration")
	}
	if _, err := NewAudioSegment(src, 0, 1.0, -1, settings); err == nil {
		t.Fatalf("expected error for negative timeline_start")
	}
}
