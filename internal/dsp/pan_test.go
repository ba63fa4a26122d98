package dsp

import (
	"math"
	"testing"
)

func TestEqualPowerGainsPreservesEnergy(t *testing.T) {
	for _, pan := range []float64{0, 0.25, 0.5, 0.75, 1.0} {
		left, right := EqualPowerGains(1.0, pan)
		energy := left*left + right*right
		if math.Abs(energy-1.0) > 1e-9 {
			t.Fatalf("pan=%v: L^2+R^2 = %v, want 1.0", pan, energy)
		}
	}
}

func TestApplyVolumePanMonoFoldsEqualPowerPair(t *testing.T) {
	buffer := []float32{1.0}
	ApplyVolumePan(buffer, 1, 0.5, 0.5)

	left, right := EqualPowerGains(0.5, 0.5)
	want := float32(left + right)
	if math.Abs(float64(buffer[0]-want)) > 1e-6 {
		t.Fatalf("mono ApplyVolumePan = %v, want %v (left+right folded)", buffer[0], want)
	}
	// pan=0.5 => left=right=gain/sqrt(2), so want ~= 0.5*sqrt(2) ~= 0.707
	if math.Abs(float64(want)-0.70710678) > 1e-6 {
		t.Fatalf("sanity check failed: want %v ~= 0.7071", want)
	}
}

func TestApplyVolumePanStereoMatchesEqualPowerGains(t *testing.T) {
	buffer := []float32{1.0, 1.0}
	ApplyVolumePan(buffer, 2, 1.0, 0.25)

	left, right := EqualPowerGains(1.0, 0.25)
	if math.Abs(float64(buffer[0])-left) > 1e-6 || math.Abs(float64(buffer[1])-right) > 1e-6 {
		t.Fatalf("stereo ApplyVolumePan = %v, want (%v, %v)", buffer, left, right)
	}
}
