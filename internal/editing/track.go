package editing

import (
	"sort"
	"sync"

	"github.com/soundflow-go/soundflow/internal/dsp"
	"github.com/soundflow-go/soundflow/internal/errors"
	"github.com/soundflow-go/soundflow/internal/logging"
)

// TrackSettings are the track-level mix parameters (§3).
type TrackSettings struct {
	Gain    float64
	Pan     float64 // [-1, +1]
	Muted   bool
	Soloed  bool
	Enabled bool
}

// DefaultTrackSettings returns neutral, enabled, unmuted, unsoloed settings.
func DefaultTrackSettings() TrackSettings {
	return TrackSettings{Gain: 1.0, Enabled: true}
}

// Track is a named, ordered, non-overlapping collection of segments.
type Track struct {
	Name     string
	Settings TrackSettings

	Modifiers *dsp.Chain[dsp.Modifier]
	Analyzers *dsp.Chain[dsp.Analyzer]

	mu       sync.Mutex
	segments []*AudioSegment
}

// NewTrack constructs an empty track.
func NewTrack(name string) *Track {
	return &Track{
		Name:      name,
		Settings:  DefaultTrackSettings(),
		Modifiers: dsp.NewChain[dsp.Modifier](nil),
		Analyzers: dsp.NewChain[dsp.Analyzer](nil),
	}
}

func segmentEnd(s *AudioSegment) float64 {
	return s.TimelineStart + s.TotalLoopedTimelineDuration()
}

func overlaps(a, b *AudioSegment) bool {
	return a.TimelineStart < segmentEnd(b) && b.TimelineStart < segmentEnd(a)
}

// AddSegment inserts seg in timeline order, rejecting it if it overlaps an
// existing segment on this track.
func (t *Track) AddSegment(seg *AudioSegment) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.insertLocked(seg, false)
}

// InsertSegmentAt places seg at timelineTime. If seg would overlap an
// existing segment and shiftSubsequent is set, every segment that overlaps
// seg or starts at or after it is moved later by one common amount, just
// enough that none of them overlaps seg; otherwise the overlap is rejected.
func (t *Track) InsertSegmentAt(seg *AudioSegment, timelineTime float64, shiftSubsequent bool) error {
	seg.TimelineStart = timelineTime
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.insertLocked(seg, shiftSubsequent)
}

func (t *Track) insertLocked(seg *AudioSegment, shiftSubsequent bool) error {
	shift := 0.0
	for _, existing := range t.segments {
		if overlaps(seg, existing) {
			if !shiftSubsequent {
				return errors.Newf("segment overlaps existing segment at %.3fs", existing.TimelineStart).
					Component(ComponentEditing).
					Category(errors.CategoryConflict).
					Context("track", t.Name).
					Build()
			}
			shift = max(shift, segmentEnd(seg)-existing.TimelineStart)
		}
	}
	if shift > 0 {
		for _, existing := range t.segments {
			if overlaps(seg, existing) || existing.TimelineStart >= seg.TimelineStart {
				existing.TimelineStart += shift
			}
		}
	}

	t.segments = append(t.segments, seg)
	sort.Slice(t.segments, func(i, j int) bool {
		return t.segments[i].TimelineStart < t.segments[j].TimelineStart
	})
	return nil
}

// RemoveSegment removes seg, optionally shifting every later segment
// earlier by seg's total timeline duration to close the gap.
func (t *Track) RemoveSegment(seg *AudioSegment, shiftSubsequent bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := -1
	for i, s := range t.segments {
		if s == seg {
			idx = i
			break
		}
	}
	if idx == -1 {
		return
	}

	removedEnd := segmentEnd(seg)
	removedDuration := seg.TotalLoopedTimelineDuration()
	t.segments = append(t.segments[:idx], t.segments[idx+1:]...)

	if shiftSubsequent {
		for _, s := range t.segments {
			if s.TimelineStart >= removedEnd {
				s.TimelineStart -= removedDuration
			}
		}
	}
}

// ReplaceSegment finds the segment occupying [start, end) and rebinds it
// to a new source/region, leaving its effect settings untouched.
func (t *Track) ReplaceSegment(start, end float64, newSource *AudioSegment) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, s := range t.segments {
		if s.TimelineStart >= start && segmentEnd(s) <= end {
			newSource.TimelineStart = s.TimelineStart
			newSource.Settings = s.Settings
			t.segments[i] = newSource
			return true
		}
	}
	return false
}

// Segments returns a snapshot of the track's segments, timeline-ordered.
func (t *Track) Segments() []*AudioSegment {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*AudioSegment(nil), t.segments...)
}

// Render sums every active segment's contribution at [windowStart,
// windowStart+duration) into out, then applies the track's own modifier
// chain, analyzers, gain, and pan. anySoloed tells the track whether a
// sibling track is soloed elsewhere on the composition; if so and this
// track isn't the soloed one, it contributes silence (§4.8).
func (t *Track) Render(windowStart, duration float64, out []float32, targetSampleRate, targetChannels int, anySoloed bool) {
	clear(out)

	if !t.Settings.Enabled || t.Settings.Muted {
		return
	}
	if anySoloed && !t.Settings.Soloed {
		return
	}

	scratch := make([]float32, len(out))
	for _, seg := range t.Segments() {
		segOffset := windowStart - seg.TimelineStart
		if segOffset+duration <= 0 || segOffset >= seg.TotalLoopedTimelineDuration() {
			continue
		}
		clear(scratch)
		if err := seg.ReadProcessed(segOffset, duration, scratch, targetSampleRate, targetChannels); err == nil {
			for i := range out {
				out[i] += scratch[i]
			}
		}
	}

	dsp.RunModifiers(t.Modifiers, out, targetChannels, func(modifierName string, err error) {
		logging.Warn("track modifier failed, passing through unprocessed chunk", "track", t.Name, "modifier", modifierName, "error", err)
	})
	dsp.RunAnalyzers(t.Analyzers, out, targetChannels, func(analyzerName string, err error) {
		logging.Warn("track analyzer failed, continuing", "track", t.Name, "analyzer", analyzerName, "error", err)
	})
	dsp.ApplyVolumePan(out, targetChannels, t.Settings.Gain, dsp.PanFromBipolar(t.Settings.Pan))
}
