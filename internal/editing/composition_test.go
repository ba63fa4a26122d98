package editing

import "testing"

func TestCalculateTotalDuration(t *testing.T) {
	src := rampSource(48000, 1, 48000)
	comp := NewComposition("c", 48000, 1)
	track := NewTrack("t1")

	seg, _ := NewAudioSegment(src, 0, 1.0, 2.0, DefaultSegmentSettings())
	_ = track.AddSegment(seg)
	comp.AddTrack(track)

	if got := comp.CalculateTotalDuration(); got != 3.0 {
		t.Fatalf("CalculateTotalDuration() = %v, want 3.0", got)
	}
}

func TestCompositionReadAdvancesCursor(t *testing.T) {
	src := rampSource(48000, 1, 48000)
	comp := NewComposition("c", 48000, 1)
	track := NewTrack("t1")
	seg, _ := NewAudioSegment(src, 0, 1.0, 0, DefaultSegmentSettings())
	_ = track.AddSegment(seg)
	comp.AddTrack(track)

	out := make([]float32, 480)
	n, err := comp.Read(out)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != len(out) {
		t.Fatalf("Read() = %d, want %d", n, len(out))
	}
	if comp.Position() != 480 {
		t.Fatalf("Position() = %d, want 480", comp.Position())
	}
}

func TestCompositionImplementsSource(t *testing.T) {
	comp := NewComposition("c", 48000, 2)
	if comp.Channels() != 2 || comp.SampleRate() != 48000 {
		t.Fatalf("unexpected Source metadata")
	}
	if !comp.Seekable() {
		t.Fatalf("composition should report seekable=true")
	}
}

func TestAddRemoveTrack(t *testing.T) {
	comp := NewComposition("c", 48000, 1)
	track := NewTrack("t1")
	comp.AddTrack(track)
	if len(comp.Tracks()) != 1 {
		t.Fatalf("expected 1 track after AddTrack")
	}
	comp.RemoveTrack(track)
	if len(comp.Tracks()) != 0 {
		t.Fatalf("expected 0 tracks after RemoveTrack")
	}
}
