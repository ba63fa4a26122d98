package editing

import "testing"

func TestAddSegmentRejectsOverlap(t *testing.T) {
	src := rampSource(48000, 1, 48000)
	track := NewTrack("t1")

	a, _ := NewAudioSegment(src, 0, 1.0, 0, DefaultSegmentSettings())
	b, _ := NewAudioSegment(src, 0, 1.0, 0.5, DefaultSegmentSettings())

	if err := track.AddSegment(a); err != nil {
		t.Fatalf("AddSegment(a): %v", err)
	}
	if err := track.AddSegment(b); err == nil {
		t.Fatalf("expected overlap rejection")
	}
}

func TestInsertSegmentAtShiftsSubsequent(t *testing.T) {
	src := rampSource(48000, 1, 48000)
	track := NewTrack("t1")

	a, _ := NewAudioSegment(src, 0, 1.0, 0, DefaultSegmentSettings())
	_ = track.AddSegment(a)

	b, _ := NewAudioSegment(src, 0, 1.0, 0, DefaultSegmentSettings())
	if err := track.InsertSegmentAt(b, 0.5, true); err != nil {
		t.Fatalf("InsertSegmentAt: %v", err)
	}

	segs := track.Segments()
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
	if segs[0].TimelineStart >= segs[1].TimelineStart {
		t.Fatalf("expected shifted segment to move later")
	}
}

func TestRemoveSegmentShiftsSubsequent(t *testing.T) {
	src := rampSource(48000, 1, 48000)
	track := NewTrack("t1")

	a, _ := NewAudioSegment(src, 0, 1.0, 0, DefaultSegmentSettings())
	b, _ := NewAudioSegment(src, 0, 1.0, 2.0, DefaultSegmentSettings())
	_ = track.AddSegment(a)
	_ = track.AddSegment(b)

	track.RemoveSegment(a, true)

	segs := track.Segments()
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment remaining, got %d", len(segs))
	}
	if segs[0].TimelineStart >= 2.0 {
		t.Fatalf("expected remaining segment shifted earlier, got %v", segs[0].TimelineStart)
	}
}

func TestTrackSoloSilencesNonSoloedSiblings(t *testing.T) {
	src := rampSource(48000, 1, 48000)
	comp := NewComposition("c", 48000, 1)

	soloTrack := NewTrack("solo")
	soloTrack.Settings.Soloed = true
	seg1, _ := NewAudioSegment(src, 0, 1.0, 0, DefaultSegmentSettings())
	_ = soloTrack.AddSegment(seg1)

	quietTrack := NewTrack("quiet")
	seg2, _ := NewAudioSegment(src, 0, 1.0, 0, DefaultSegmentSettings())
	_ = quietTrack.AddSegment(seg2)

	comp.AddTrack(soloTrack)
	comp.AddTrack(quietTrack)

	out := make([]float32, 480)
	quietTrack.Render(0, 0.01, out, 48000, 1, comp.anySoloed())
	for _, v := range out {
		if v != 0 {
			t.Fatalf("expected non-soloed track to be silent, got %v", v)
		}
	}
}
