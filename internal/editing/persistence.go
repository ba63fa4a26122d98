package editing

import (
	"github.com/google/uuid"

	"github.com/soundflow-go/soundflow/internal/format"
)

// SourceRef is the stable, serializable handle to a sample source: a GUID
// that a persistence collaborator maps to its own storage representation
// (an embedded blob, a file path, a consolidated asset ID, ...).
type SourceRef struct {
	ID uuid.UUID
}

// UnresolvedReference is returned from Load for every SourceRef the
// collaborator could not resolve to a live format.Source; the caller is
// expected to relink or accept the silent placeholder already bound in
// its place.
type UnresolvedReference struct {
	SegmentID uuid.UUID
	SourceID  uuid.UUID
}

// Collaborator is the external persistence dependency the core consumes
// (§4.9): it owns the on-disk/embedded representation entirely and only
// needs to resolve a SourceRef to a live format.Source, or report that it
// couldn't.
type Collaborator interface {
	ResolveSource(ref SourceRef) (format.Source, bool)
	SaveSource(ref SourceRef, source format.Source) error
}

// LoadResult is what Load returns: the reconstructed composition plus any
// references the collaborator couldn't resolve.
type LoadResult struct {
	Composition *Composition
	Unresolved  []UnresolvedReference
}

// SegmentDescriptor is the pure-data shape a collaborator round-trips a
// segment through; it mirrors AudioSegment minus the live Source handle,
// which is looked up separately via SourceRef.
type SegmentDescriptor struct {
	ID            uuid.UUID
	SourceID      uuid.UUID
	SourceStart   float64
	SourceDur     float64
	TimelineStart float64
	Settings      SegmentSettings
}

// TrackDescriptor and CompositionDescriptor mirror Track/Composition for
// the same purpose.
type TrackDescriptor struct {
	Name     string
	Settings TrackSettings
	Segments []SegmentDescriptor
}

type CompositionDescriptor struct {
	Name             string
	TargetSampleRate int
	TargetChannels   int
	MasterGain       float64
	Tracks           []TrackDescriptor
}

// Load reconstructs a Composition from desc, resolving each segment's
// source through collaborator. A segment whose source can't be resolved
// is bound to a silent placeholder sized to its source duration (§7:
// "missing source on load" is not an error) and recorded as unresolved.
func Load(desc CompositionDescriptor, collaborator Collaborator) LoadResult {
	comp := NewComposition(desc.Name, desc.TargetSampleRate, desc.TargetChannels)
	comp.MasterGain = desc.MasterGain

	var unresolved []UnresolvedReference

	for _, trackDesc := range desc.Tracks {
		track := NewTrack(trackDesc.Name)
		track.Settings = trackDesc.Settings

		for _, segDesc := range trackDesc.Segments {
			ref := SourceRef{ID: segDesc.SourceID}
			source, ok := collaborator.ResolveSource(ref)
			if !ok {
				frames := int64(segDesc.SourceDur * float64(desc.TargetSampleRate))
				source = format.NewSilentSource(frames*int64(desc.TargetChannels), desc.TargetChannels, desc.TargetSampleRate)
				unresolved = append(unresolved, UnresolvedReference{
					SegmentID: segDesc.ID,
					SourceID:  segDesc.SourceID,
				})
			}

			seg, err := NewAudioSegment(source, segDesc.SourceStart, segDesc.SourceDur, segDesc.TimelineStart, segDesc.Settings)
			if err != nil {
				continue
			}
			seg.ID = segDesc.ID
			_ = track.AddSegment(seg)
		}

		comp.AddTrack(track)
	}

	return LoadResult{Composition: comp, Unresolved: unresolved}
}

// Save walks comp into its descriptor form and asks collaborator to
// persist each segment's source under a newly generated ref. Refs are not
// reused: a source shared by several segments is saved once per segment,
// and each Save call assigns new source IDs.
func Save(comp *Composition, collaborator Collaborator) (CompositionDescriptor, error) {
	desc := CompositionDescriptor{
		Name:             comp.Name,
		TargetSampleRate: comp.TargetSampleRate,
		TargetChannels:   comp.TargetChannels,
		MasterGain:       comp.MasterGain,
	}

	for _, track := range comp.Tracks() {
		trackDesc := TrackDescriptor{Name: track.Name, Settings: track.Settings}
		for _, seg := range track.Segments() {
			sourceID := uuid.New()
			ref := SourceRef{ID: sourceID}
			if err := collaborator.SaveSource(ref, seg.Source); err != nil {
				return CompositionDescriptor{}, err
			}
			trackDesc.Segments = append(trackDesc.Segments, SegmentDescriptor{
				ID:            seg.ID,
				SourceID:      sourceID,
				SourceStart:   seg.SourceStart,
				SourceDur:     seg.SourceDur,
				TimelineStart: seg.TimelineStart,
				Settings:      seg.Settings,
			})
		}
		desc.Tracks = append(desc.Tracks, trackDesc)
	}

	return desc, nil
}
