package editing

import (
	"testing"

	"github.com/google/uuid"

	"github.com/soundflow-go/soundflow/internal/format"
)

type stubCollaborator struct {
	sources map[uuid.UUID]format.Source
}

func (c *stubCollaborator) ResolveSource(ref SourceRef) (format.Source, bool) {
	src, ok := c.sources[ref.ID]
	return src, ok
}

func (c *stubCollaborator) SaveSource(ref SourceRef, source format.Source) error {
	if c.sources == nil {
		c.sources = make(map[uuid.UUID]format.Source)
	}
	c.sources[ref.ID] = source
	return nil
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	src := rampSource(48000, 1, 48000)
	comp := NewComposition("c", 48000, 1)
	track := NewTrack("t1")
	seg, _ := NewAudioSegment(src, 0, 1.0, 0.5, DefaultSegmentSettings())
	_ = track.AddSegment(seg)
	comp.AddTrack(track)

	collaborator := &stubCollaborator{}
	desc, err := Save(comp, collaborator)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	result := Load(desc, collaborator)
	if len(result.Unresolved) != 0 {
		t.Fatalf("expected no unresolved references, got %d", len(result.Unresolved))
	}
	if len(result.Composition.Tracks()) != 1 {
		t.Fatalf("expected 1 track after load")
	}
	loadedSeg := result.Composition.Tracks()[0].Segments()[0]
	if loadedSeg.TimelineStart != 0.5 {
		t.Fatalf("expected timeline_start preserved, got %v", loadedSeg.TimelineStart)
	}
}

func TestLoadBindsSilentPlaceholderForUnresolvedSource(t *testing.T) {
	desc := CompositionDescriptor{
		Name:             "c",
		TargetSampleRate: 48000,
		TargetChannels:   1,
		MasterGain:       1.0,
		Tracks: []TrackDescriptor{
			{
				Name:     "t1",
				Settings: DefaultTrackSettings(),
				Segments: []SegmentDescriptor{
					{
						ID:            uuid.New(),
						SourceID:      uuid.New(),
						SourceStart:   0,
						SourceDur:     1.0,
						TimelineStart: 0,
						Settings:      DefaultSegmentSettings(),
					},
				},
			},
		},
	}

	collaborator := &stubCollaborator{}
	result := Load(desc, collaborator)

	if len(result.Unresolved) != 1 {
		t.Fatalf("expected 1 unresolved reference, got %d", len(result.Unresolved))
	}
	segs := result.Composition.Tracks()[0].Segments()
	if len(segs) != 1 {
		t.Fatalf("expected segment still created with placeholder source")
	}
	out := make([]float32, 480)
	if err := segs[0].ReadProcessed(0, 0.01, out, 48000, 1); err != nil {
		t.Fatalf("ReadProcessed on placeholder: %v", err)
	}
	for _, v := range out {
		if v != 0 {
			t.Fatalf("expected silent placeholder source, got %v", v)
		}
	}
}
