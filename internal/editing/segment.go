// Package editing implements the non-destructive timeline editing model:
// compositions, tracks, and audio segments, plus the rendering pipeline
// that turns a timeline window into mixed interleaved float32 output.
package editing

import (
	"math"

	"github.com/google/uuid"

	"github.com/soundflow-go/soundflow/internal/dsp"
	"github.com/soundflow-go/soundflow/internal/errors"
	"github.com/soundflow-go/soundflow/internal/format"
	"github.com/soundflow-go/soundflow/internal/logging"
)

// ComponentEditing identifies this package in enhanced errors.
const ComponentEditing = "editing"

// timeStretchEpsilon is the tolerance below which a time-stretch factor is
// treated as 1.0 (raw path instead of WSOLA).
const timeStretchEpsilon = 1e-6

// FadeSettings describes one end of a segment's fade.
type FadeSettings struct {
	Duration float64 // seconds; 0 disables the fade
	Curve    dsp.FadeCurve
}

// LoopSettings controls how many times a segment instance repeats.
// TargetDuration, when > 0, overrides Repetitions.
type LoopSettings struct {
	Repetitions    int
	TargetDuration float64
}

// TimeStretchSettings controls the WSOLA pitch-preserving stretch.
// TargetDuration, when > 0, overrides Factor.
type TimeStretchSettings struct {
	Factor         float64
	TargetDuration float64
}

// SegmentSettings holds every mutable, per-segment effect parameter.
type SegmentSettings struct {
	Enabled  bool
	Gain     float64
	Pan      float64 // [-1, +1], 0 = center
	FadeIn   FadeSettings
	FadeOut  FadeSettings
	Loop     LoopSettings
	Reversed bool
	Speed    float64
	Stretch  TimeStretchSettings

	Modifiers *dsp.Chain[dsp.Modifier]
	Analyzers *dsp.Chain[dsp.Analyzer]
}

// DefaultSegmentSettings returns settings with every knob at its neutral
// value: enabled, unity gain, centered pan, no fades, single play-through,
// not reversed, unity speed, unity stretch factor.
func DefaultSegmentSettings() SegmentSettings {
	return SegmentSettings{
		Enabled:   true,
		Gain:      1.0,
		Pan:       0,
		Loop:      LoopSettings{Repetitions: 0},
		Speed:     1.0,
		Stretch:   TimeStretchSettings{Factor: 1.0},
		Modifiers: dsp.NewChain[dsp.Modifier](nil),
		Analyzers: dsp.NewChain[dsp.Analyzer](nil),
	}
}

// AudioSegment is the core editing entity: a region of a shared sample
// source placed on a track's timeline, with its own effect chain.
type AudioSegment struct {
	ID uuid.UUID

	Source      format.Source
	OwnsSource  bool
	SourceStart float64 // seconds into Source
	SourceDur   float64 // seconds

	TimelineStart float64 // seconds on the parent track's timeline

	Settings SegmentSettings

	// Rendering state, mutated across ReadProcessed calls.
	stretcher     *dsp.Stretcher
	lastPass      int
	havePass      bool
	sourceCursor  float64 // seconds into Source, within the current pass
	reversedCache map[int][]float32
	lastOutput    []float32 // last successfully rendered chunk, for §7's fetch-failure fallback
	dirty         bool
}

// NewAudioSegment validates and constructs a segment. sourceStart >= 0,
// sourceDuration > 0, timelineStart >= 0 are required per §3's invariants;
// Settings.Speed and Settings.Stretch.Factor default to 1.0 if left zero.
func NewAudioSegment(source format.Source, sourceStart, sourceDuration, timelineStart float64, settings SegmentSettings) (*AudioSegment, error) {
	if sourceStart < 0 {
		return nil, invalidParam("source_start", sourceStart)
	}
	if sourceDuration <= 0 {
		return nil, invalidParam("source_duration", sourceDuration)
	}
	if timelineStart < 0 {
		return nil, invalidParam("timeline_start", timelineStart)
	}
	if settings.Speed == 0 {
		settings.Speed = 1.0
	}
	if settings.Speed < 0 {
		return nil, invalidParam("speed", settings.Speed)
	}
	if settings.Stretch.Factor == 0 {
		settings.Stretch.Factor = 1.0
	}
	if settings.Stretch.Factor < 0 {
		return nil, invalidParam("time_stretch_factor", settings.Stretch.Factor)
	}
	if settings.Modifiers == nil {
		settings.Modifiers = dsp.NewChain[dsp.Modifier](nil)
	}
	if settings.Analyzers == nil {
		settings.Analyzers = dsp.NewChain[dsp.Analyzer](nil)
	}

	return &AudioSegment{
		ID:            uuid.New(),
		Source:        source,
		SourceStart:   sourceStart,
		SourceDur:     sourceDuration,
		TimelineStart: timelineStart,
		Settings:      settings,
		stretcher:     dsp.NewStretcher(source.Channels(), 1.0),
		reversedCache: make(map[int][]float32),
		dirty:         true,
	}, nil
}

func invalidParam(name string, value float64) error {
	return errors.Newf("invalid %s: %v", name, value).
		Component(ComponentEditing).
		Category(errors.CategoryValidation).
		Context("param", name).
		Context("value", value).
		Build()
}

// MarkDirty sets the segment's dirty flag. Rendering does not read the
// flag: the reversed cache and stretcher state are not invalidated by it.
func (s *AudioSegment) MarkDirty() { s.dirty = true }

// StretchedSourceDuration implements §3's derived-quantity formula.
func (s *AudioSegment) StretchedSourceDuration() float64 {
	if s.Settings.Stretch.TargetDuration > 0 {
		return s.Settings.Stretch.TargetDuration
	}
	return s.SourceDur * s.Settings.Stretch.Factor
}

// SingleInstanceTimelineDuration implements §3's derived-quantity formula.
func (s *AudioSegment) SingleInstanceTimelineDuration() float64 {
	speed := s.Settings.Speed
	if speed <= 0 {
		speed = 1.0
	}
	return s.StretchedSourceDuration() / speed
}

// TotalLoopedTimelineDuration implements §3's derived-quantity formula.
func (s *AudioSegment) TotalLoopedTimelineDuration() float64 {
	if s.Settings.Loop.TargetDuration > 0 {
		return s.Settings.Loop.TargetDuration
	}
	return s.SingleInstanceTimelineDuration() * float64(s.Settings.Loop.Repetitions+1)
}

// usesStretch reports whether the WSOLA path should be used rather than
// the raw/reversed path.
func (s *AudioSegment) usesStretch() bool {
	return math.Abs(s.Settings.Stretch.Factor-1.0) > timeStretchEpsilon
}

// ReadProcessed renders duration seconds of this segment's contribution
// to the timeline, starting at segmentTimelineOffset seconds into the
// segment's own (looped) timeline, into out (interleaved, targetChannels
// wide) resampled to targetSampleRate. Implements §4.8's segment
// rendering algorithm.
func (s *AudioSegment) ReadProcessed(segmentTimelineOffset, duration float64, out []float32, targetSampleRate, targetChannels int) error {
	zero := func() { clear(out) }

	if !s.Settings.Enabled || duration <= 0 || s.StretchedSourceDuration() <= 0 {
		zero()
		return nil
	}

	if segmentTimelineOffset >= s.TotalLoopedTimelineDuration() {
		zero()
		return nil
	}

	instanceDur := s.SingleInstanceTimelineDuration()
	pass := 0
	offsetInPass := segmentTimelineOffset
	if instanceDur > 0 {
		pass = int(math.Floor(segmentTimelineOffset / instanceDur))
		offsetInPass = segmentTimelineOffset - float64(pass)*instanceDur
	}

	if !s.havePass || pass != s.lastPass {
		if s.usesStretch() {
			s.stretcher.Reset()
		}
		s.sourceCursor = 0
		s.lastPass = pass
		s.havePass = true
	}

	speed := s.Settings.Speed
	if speed <= 0 {
		speed = 1.0
	}
	sourceSR := s.Source.SampleRate()
	stretchedFrames := int(math.Round(duration * speed * float64(sourceSR)))
	if stretchedFrames <= 0 {
		zero()
		return nil
	}

	var stretchedBuf []float32
	var err error
	if s.usesStretch() {
		stretchedBuf, err = s.fetchViaStretch(stretchedFrames, targetChannels)
	} else {
		stretchedBuf, err = s.fetchRawOrReversed(pass, offsetInPass, stretchedFrames, targetChannels)
	}
	if err != nil {
		// §7: a processing error must never drop audio to silence. Pass
		// through the last successfully rendered chunk for this segment
		// instead; only fall back to silence if there isn't one yet (the
		// very first call) or its length no longer matches the request.
		if len(s.lastOutput) == len(out) {
			copy(out, s.lastOutput)
		} else {
			zero()
		}
		logging.Warn("segment fetch failed, passing through previous chunk", "segment", s.ID, "error", err)
		return nil
	}

	outFrames := len(out) / targetChannels
	resampled := resampleLinear(stretchedBuf, targetChannels, outFrames)
	copy(out, resampled)

	s.applyPerFrameEffects(out, targetChannels, offsetInPass, duration, instanceDur, targetSampleRate)

	if cap(s.lastOutput) < len(out) {
		s.lastOutput = make([]float32, len(out))
	}
	s.lastOutput = s.lastOutput[:len(out)]
	copy(s.lastOutput, out)

	return nil
}

// fetchViaStretch drives the segment's WSOLA stretcher to produce
// stretchedFrames frames (at the source's sample rate, in targetChannels
// layout) from the region [SourceStart, SourceStart+SourceDur).
func (s *AudioSegment) fetchViaStretch(stretchedFrames, targetChannels int) ([]float32, error) {
	s.stretcher.SetSpeed(1.0 / s.Settings.Stretch.Factor)
	srcCh := s.Source.Channels()
	needed := stretchedFrames * targetChannels

	out := make([]float32, 0, needed)
	feed := make([]float32, 4096*srcCh)

	for len(out) < needed {
		regionStart := s.SourceStart + s.sourceCursor
		regionEnd := s.SourceStart + s.SourceDur
		remainingSeconds := regionEnd - regionStart
		if remainingSeconds <= 0 {
			res := s.stretcher.Flush()
			if len(res.Output) == 0 {
				break
			}
			out = append(out, convertChannels(res.Output, srcCh, targetChannels)...)
			continue
		}

		if err := seekSourceSeconds(s.Source, regionStart); err != nil {
			return nil, err
		}
		framesToRead := min(len(feed)/srcCh, int(math.Ceil(remainingSeconds*float64(s.Source.SampleRate()))))
		n, rerr := s.Source.Read(feed[:framesToRead*srcCh])
		if rerr != nil || n == 0 {
			res := s.stretcher.Flush()
			if len(res.Output) == 0 {
				break
			}
			out = append(out, convertChannels(res.Output, srcCh, targetChannels)...)
			continue
		}
		s.sourceCursor += float64(n/srcCh) / float64(s.Source.SampleRate())
		s.stretcher.Push(feed[:n])

		res := s.stretcher.Process()
		out = append(out, convertChannels(res.Output, srcCh, targetChannels)...)
	}

	if len(out) > needed {
		out = out[:needed]
	}
	return out, nil
}

// fetchRawOrReversed implements the non-WSOLA path, optionally through a
// lazily materialized per-pass reversed cache.
func (s *AudioSegment) fetchRawOrReversed(pass int, offsetInPass float64, stretchedFrames, targetChannels int) ([]float32, error) {
	srcCh := s.Source.Channels()

	if s.Settings.Reversed {
		cache, ok := s.reversedCache[pass]
		if !ok {
			var err error
			cache, err = s.materializeReversedPass(targetChannels)
			if err != nil {
				return nil, err
			}
			s.reversedCache[pass] = cache
		}
		startFrame := int(math.Round(offsetInPass * s.Settings.Speed * float64(s.Source.SampleRate())))
		startSample := startFrame * targetChannels
		needed := stretchedFrames * targetChannels
		if startSample >= len(cache) {
			return make([]float32, needed), nil
		}
		end := min(startSample+needed, len(cache))
		out := make([]float32, needed)
		copy(out, cache[startSample:end])
		return out, nil
	}

	regionStart := s.SourceStart + offsetInPass*s.Settings.Speed
	if err := seekSourceSeconds(s.Source, regionStart); err != nil {
		return nil, err
	}
	buf := make([]float32, stretchedFrames*srcCh)
	n, err := s.Source.Read(buf)
	if err != nil {
		return nil, err
	}
	return convertChannels(buf[:n], srcCh, targetChannels), nil
}

// materializeReversedPass reads the full [SourceStart, SourceStart+SourceDur)
// region once, reverses frame order (channels within a frame untouched),
// and caches it under the pass key.
func (s *AudioSegment) materializeReversedPass(targetChannels int) ([]float32, error) {
	srcCh := s.Source.Channels()
	if err := seekSourceSeconds(s.Source, s.SourceStart); err != nil {
		return nil, err
	}
	frames := int(math.Round(s.SourceDur * float64(s.Source.SampleRate())))
	raw := make([]float32, frames*srcCh)
	n, err := s.Source.Read(raw)
	if err != nil {
		return nil, err
	}
	raw = raw[:n]

	reversed := make([]float32, len(raw))
	totalFrames := len(raw) / srcCh
	for f := 0; f < totalFrames; f++ {
		src := raw[f*srcCh : (f+1)*srcCh]
		dst := reversed[(totalFrames-1-f)*srcCh : (totalFrames-f)*srcCh]
		copy(dst, src)
	}
	return convertChannels(reversed, srcCh, targetChannels), nil
}

func seekSourceSeconds(src format.Source, seconds float64) error {
	if !src.Seekable() {
		return format.ErrNotSeekable
	}
	sample := int64(math.Round(seconds*float64(src.SampleRate()))) * int64(src.Channels())
	return src.Seek(sample)
}

// applyPerFrameEffects runs the fixed per-frame effect order of §3:
// modifiers (already buffer-wide), analyzers (tap), fade, gain, pan,
// clamp. Modifiers/analyzers run buffer-wide first since the contract in
// §4.10 defines them that way; fade/gain/pan are inherently per-frame and
// applied in a second pass over the same buffer.
func (s *AudioSegment) applyPerFrameEffects(buf []float32, channels int, offsetInPass, duration, instanceDuration float64, targetSampleRate int) {
	dsp.RunModifiers(s.Settings.Modifiers, buf, channels, func(modifierName string, err error) {
		logging.Warn("segment modifier failed, passing through unprocessed chunk", "segment", s.ID, "modifier", modifierName, "error", err)
	})
	dsp.RunAnalyzers(s.Settings.Analyzers, buf, channels, func(analyzerName string, err error) {
		logging.Warn("segment analyzer failed, continuing", "segment", s.ID, "analyzer", analyzerName, "error", err)
	})

	frames := len(buf) / channels
	for f := 0; f < frames; f++ {
		t := offsetInPass + float64(f)/float64(targetSampleRate)

		mult := 1.0
		if s.Settings.FadeIn.Duration > 0 {
			mult *= dsp.FadeInMultiplier(s.Settings.FadeIn.Curve, t, s.Settings.FadeIn.Duration)
		}
		if s.Settings.FadeOut.Duration > 0 {
			mult *= dsp.FadeOutMultiplier(s.Settings.FadeOut.Curve, t, instanceDuration, s.Settings.FadeOut.Duration)
		}

		frame := buf[f*channels : (f+1)*channels]
		gain := s.Settings.Gain * mult
		pan01 := dsp.PanFromBipolar(s.Settings.Pan)
		dsp.ApplyVolumePan(frame, channels, gain, pan01)

		for c := range frame {
			frame[c] = format.ClampFloat(frame[c])
		}
	}
}

// resampleLinear linearly interpolates src (frames of channels width) to
// exactly outFrames frames.
func resampleLinear(src []float32, channels, outFrames int) []float32 {
	out := make([]float32, outFrames*channels)
	inFrames := len(src) / channels
	if inFrames == 0 || outFrames == 0 {
		return out
	}
	if inFrames == 1 {
		for f := 0; f < outFrames; f++ {
			copy(out[f*channels:(f+1)*channels], src[:channels])
		}
		return out
	}

	ratio := float64(inFrames-1) / float64(max(outFrames-1, 1))
	for f := 0; f < outFrames; f++ {
		pos := float64(f) * ratio
		idx := int(pos)
		if idx >= inFrames-1 {
			copy(out[f*channels:(f+1)*channels], src[(inFrames-1)*channels:inFrames*channels])
			continue
		}
		frac := float32(pos - float64(idx))
		a := src[idx*channels : (idx+1)*channels]
		b := src[(idx+1)*channels : (idx+2)*channels]
		for c := 0; c < channels; c++ {
			out[f*channels+c] = a[c] + (b[c]-a[c])*frac
		}
	}
	return out
}

// convertChannels remaps an interleaved buffer from srcCh to dstCh
// channels: upmixing repeats the source channels in order (a mono source
// fills every destination channel); downmixing averages all source
// channels into each destination channel.
func convertChannels(src []float32, srcCh, dstCh int) []float32 {
	if srcCh == dstCh || srcCh == 0 || dstCh == 0 {
		return src
	}
	frames := len(src) / srcCh
	out := make([]float32, frames*dstCh)
	for f := 0; f < frames; f++ {
		in := src[f*srcCh : (f+1)*srcCh]
		outFrame := out[f*dstCh : (f+1)*dstCh]
		if dstCh < srcCh {
			var sum float32
			for _, v := range in {
				sum += v
			}
			avg := sum / float32(srcCh)
			for c := range outFrame {
				outFrame[c] = avg
			}
		} else {
			for c := range outFrame {
				outFrame[c] = in[c%srcCh]
			}
		}
	}
	return out
}
