package dsp

import (
	"math"
)

// WSOLA analysis/synthesis parameters, fixed per §4.6.
const (
	wsolaWindowFrames = 1024            // W
	wsolaAnalysisHop  = wsolaWindowFrames / 4 // H_a = 256
	wsolaSearchRadius = (3 * wsolaAnalysisHop) / 8 // R = 96

	// ncc replacement margin: a candidate offset only unseats the current
	// best if it beats it by at least this much; within the margin, the
	// smaller-magnitude offset wins (keeps the search from drifting).
	nccReplaceMargin = 0.02

	// silenceFloorPerSample bounds the previous-tail energy below which the
	// correlation search is skipped outright (nothing worth aligning to).
	silenceFloorPerSample = 1e-7
)

// Stretcher is a streaming WSOLA (Waveform Similarity Overlap-Add) time
// stretcher: it changes the duration of an interleaved float32 stream by a
// factor of 1/speed while preserving pitch, by resynthesizing overlapping
// analysis windows chosen to correlate with the tail of the previous
// output.
//
// Not goroutine-safe: exactly one caller (the sound player driving it)
// may call Push/Process/Flush at a time, per the engine's single-writer
// discipline for source-adjacent state.
type Stretcher struct {
	channels int
	speed    float64

	input      FloatFIFO
	prevTail   []float32
	firstFrame bool

	hann []float32 // precomputed Hann window, length wsolaWindowFrames
}

// NewStretcher creates a stretcher for the given channel count with an
// initial speed (1.0 = no stretch).
func NewStretcher(channels int, speed float64) *Stretcher {
	s := &Stretcher{
		channels:   channels,
		speed:      speed,
		firstFrame: true,
		hann:       hannWindow(wsolaWindowFrames),
	}
	return s
}

func hannWindow(n int) []float32 {
	w := make([]float32, n)
	if n <= 1 {
		for i := range w {
			w[i] = 1
		}
		return w
	}
	for i := 0; i < n; i++ {
		w[i] = float32(0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1))))
	}
	return w
}

// SetSpeed updates the target stretch speed (s > 0); takes effect on the
// next synthesized frame.
func (s *Stretcher) SetSpeed(speed float64) {
	if speed > 0 {
		s.speed = speed
	}
}

// Speed returns the current target speed.
func (s *Stretcher) Speed() float64 { return s.speed }

// Reset clears all internal buffers and returns the stretcher to its
// first-frame state, as when a player seeks or loops.
func (s *Stretcher) Reset() {
	s.input.Reset()
	s.prevTail = s.prevTail[:0]
	s.firstFrame = true
}

// synthesisHopFrames computes H_s = max(1, round(H_a/speed)) from the
// current speed.
func (s *Stretcher) synthesisHopFrames() int {
	hs := int(math.Round(float64(wsolaAnalysisHop) / s.speed))
	if hs < 1 {
		hs = 1
	}
	return hs
}

// minInputSamples is the minimum unread input needed to attempt a frame.
func (s *Stretcher) minInputSamples() int {
	return (wsolaAnalysisHop+wsolaSearchRadius)*s.channels + wsolaWindowFrames*s.channels
}

// Push appends newly-arrived raw input samples to the stretcher's internal
// buffer without synthesizing anything yet.
func (s *Stretcher) Push(samples []float32) {
	s.input.Push(samples)
}

// Result carries the accounting a caller needs to advance its own
// wall-clock and raw-sample-position bookkeeping.
type Result struct {
	Output                        []float32
	SamplesConsumedFromInput      int64
	SourceSamplesRepresented      float64
}

// Process synthesizes as many frames as the currently buffered input
// allows (zero or more), returning their concatenated output.
func (s *Stretcher) Process() Result {
	return s.run(false)
}

// Flush keeps emitting frames while the nominal analysis hop plus one full
// analysis window remains buffered, dropping the search-radius lookahead
// that Process also requires, since no further input is coming. Returns the concatenated output; the
// caller should stop calling Flush once it returns an empty Output.
func (s *Stretcher) Flush() Result {
	return s.run(true)
}

func (s *Stretcher) run(flushing bool) Result {
	var out []float32
	var consumed int64
	var represented float64

	for {
		frame, ok := s.tryFrame(flushing)
		if !ok {
			break
		}
		out = append(out, frame.Output...)
		consumed += frame.SamplesConsumedFromInput
		represented += frame.SourceSamplesRepresented
	}

	return Result{Output: out, SamplesConsumedFromInput: consumed, SourceSamplesRepresented: represented}
}

type frameResult struct {
	Output                   []float32
	SamplesConsumedFromInput int64
	SourceSamplesRepresented float64
}

// tryFrame attempts one analysis/synthesis step per §4.6's per-frame
// algorithm. ok is false when not enough input is buffered to proceed
// (the minimum lookahead normally, or the nominal hop plus one full window
// when flushing).
func (s *Stretcher) tryFrame(flushing bool) (frameResult, bool) {
	channels := s.channels
	windowLen := wsolaWindowFrames * channels
	hs := s.synthesisHopFrames()
	hsLen := hs * channels

	required := s.minInputSamples()
	if flushing {
		required = wsolaAnalysisHop*channels + windowLen
	}
	if s.input.Len() < required {
		return frameResult{}, false
	}

	var delta int
	if s.firstFrame {
		delta = 0
	} else {
		delta = s.searchBestDelta(flushing, hsLen)
	}

	offsetFrames := wsolaAnalysisHop + delta
	offset := offsetFrames * channels
	if offset < 0 {
		offset = 0
	}
	if offset+windowLen > s.input.Len() {
		// Search (or a prior reset) pushed us past what's actually
		// buffered; only possible while flushing near the very end.
		if !flushing {
			return frameResult{}, false
		}
		return frameResult{}, false
	}

	segment := s.input.Peek(offset + windowLen)[offset : offset+windowLen]
	analysisFrame := make([]float32, windowLen)
	for i, v := range segment {
		analysisFrame[i] = v * s.hann[i/channels]
	}

	overlapRegionLen := windowLen - hsLen
	if overlapRegionLen < 0 {
		overlapRegionLen = 0
	}
	overlapLen := min(len(s.prevTail), overlapRegionLen)

	result := analysisFrame
	for i := 0; i < overlapLen; i++ {
		result[i] += s.prevTail[i]
	}

	emitLen := min(hsLen, len(result))
	output := append([]float32(nil), result[:emitLen]...)
	newTailLen := len(result) - hsLen
	if newTailLen < 0 {
		newTailLen = 0
	}
	s.prevTail = append([]float32(nil), result[hsLen:hsLen+newTailLen]...)

	s.input.Discard(offset)
	s.firstFrame = false

	sourceRepresented := 0.0
	if hsLen > 0 {
		sourceRepresented = float64(emitLen) * float64(offset) / float64(hsLen)
	}

	return frameResult{
		Output:                   output,
		SamplesConsumedFromInput: int64(offset),
		SourceSamplesRepresented: sourceRepresented,
	}, true
}

// searchBestDelta implements step 2-3 of §4.6: NCC search over the
// candidate offsets, returning the chosen delta (0 if the search is
// skipped because the previous tail is effectively silent).
func (s *Stretcher) searchBestDelta(flushing bool, hsLen int) int {
	channels := s.channels
	windowLen := wsolaWindowFrames * channels
	overlapRegionLen := windowLen - hsLen
	if overlapRegionLen < 0 {
		overlapRegionLen = 0
	}
	compareLen := min(len(s.prevTail), overlapRegionLen)
	if compareLen <= 0 {
		return 0
	}

	tailSegment := s.prevTail[:compareLen]
	energy := sumSquares(tailSegment)
	if energy < silenceFloorPerSample*float64(compareLen) {
		return 0
	}

	available := s.input.Len()
	bestDelta := -wsolaSearchRadius
	bestNCC := math.Inf(-1)
	first := true

	for delta := -wsolaSearchRadius; delta <= wsolaSearchRadius; delta++ {
		offset := (wsolaAnalysisHop + delta) * channels
		if offset < 0 || offset+compareLen > available {
			if flushing {
				continue
			}
			continue
		}
		candidate := s.input.Peek(offset + compareLen)[offset : offset+compareLen]
		ncc := normalizedCrossCorrelation(tailSegment, candidate)

		switch {
		case first:
			bestDelta, bestNCC, first = delta, ncc, false
		case ncc >= bestNCC+nccReplaceMargin:
			bestDelta, bestNCC = delta, ncc
		case math.Abs(ncc-bestNCC) < nccReplaceMargin && abs(delta) < abs(bestDelta):
			bestDelta, bestNCC = delta, ncc
		}
	}

	if first {
		return 0
	}
	return bestDelta
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sumSquares(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return sum
}

// normalizedCrossCorrelation computes the Pearson-style similarity between
// two equal-length signals per §4.6 step 2: the dot product of the
// zero-mean signals divided by the product of their standard deviations.
// If either standard deviation is below 1e-9, the pair is treated as
// perfectly correlated when both are silent, uncorrelated otherwise.
func normalizedCrossCorrelation(a, b []float32) float64 {
	n := len(a)
	if n == 0 || n != len(b) {
		return 0
	}

	var meanA, meanB float64
	for i := 0; i < n; i++ {
		meanA += float64(a[i])
		meanB += float64(b[i])
	}
	meanA /= float64(n)
	meanB /= float64(n)

	var dot, varA, varB float64
	for i := 0; i < n; i++ {
		da := float64(a[i]) - meanA
		db := float64(b[i]) - meanB
		dot += da * db
		varA += da * da
		varB += db * db
	}

	stdA := math.Sqrt(varA)
	stdB := math.Sqrt(varB)
	denom := stdA * stdB
	if denom < 1e-9 {
		if stdA < 1e-9 && stdB < 1e-9 {
			return 1.0
		}
		return 0.0
	}
	return dot / denom
}
