package dsp

import "math"

// EqualPowerGains converts a gain and a pan in [0, 1] (0 = left-only,
// 0.5 = center, 1 = right-only) into the stereo (left, right) gain pair
// L = gain*sqrt(1-pan), R = gain*sqrt(pan), preserving L^2+R^2 = gain^2.
func EqualPowerGains(gain float64, pan float64) (left, right float64) {
	pan = clamp01(pan)
	left = gain * math.Sqrt(1-pan)
	right = gain * math.Sqrt(pan)
	return left, right
}

// PanFromBipolar remaps a [-1,+1] segment-style pan (0 = center) into the
// [0,1] convention used by EqualPowerGains.
func PanFromBipolar(pan float64) float64 {
	return (pan + 1) / 2
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// ApplyVolumePan applies gain/pan to an interleaved buffer in place,
// channel-aware per §4.3: mono uses gain*(left+right) folded into the
// single channel; stereo uses the equal-power pair; channels beyond the
// first two (>2 channel layouts) pass channel 0/1 through L/R and average
// the rest.
func ApplyVolumePan(buffer []float32, channels int, gain, pan float64) {
	if channels <= 0 {
		return
	}
	left, right := EqualPowerGains(gain, pan)

	switch channels {
	case 1:
		g := float32(left + right)
		for i := range buffer {
			buffer[i] *= g
		}
	case 2:
		for i := 0; i+1 < len(buffer); i += 2 {
			buffer[i] *= float32(left)
			buffer[i+1] *= float32(right)
		}
	default:
		avg := float32((left + right) / 2)
		for i := 0; i+channels-1 < len(buffer); i += channels {
			buffer[i] *= float32(left)
			buffer[i+1] *= float32(right)
			for c := 2; c < channels; c++ {
				buffer[i+c] *= avg
			}
		}
	}
}

// RampRegion linearly interpolates gain/pan across a buffer between a
// previous and current (gain, pan) pair over rampFrames frames (frame =
// one sample per channel), to avoid zipper noise from an instantaneous
// parameter change. Frames beyond rampFrames use the current value.
func RampRegion(buffer []float32, channels int, prevGain, prevPan, curGain, curPan float64, rampFrames int) {
	if channels <= 0 || len(buffer) == 0 {
		return
	}
	totalFrames := len(buffer) / channels
	if rampFrames <= 0 || totalFrames == 0 {
		ApplyVolumePan(buffer, channels, curGain, curPan)
		return
	}
	if rampFrames > totalFrames {
		rampFrames = totalFrames
	}

	for frame := 0; frame < totalFrames; frame++ {
		t := 1.0
		if frame < rampFrames {
			t = float64(frame) / float64(rampFrames)
		}
		g := prevGain + (curGain-prevGain)*t
		p := prevPan + (curPan-prevPan)*t
		start := frame * channels
		ApplyVolumePan(buffer[start:start+channels], channels, g, p)
	}
}
