// Package format defines the sample-source contract used throughout the
// audio engine and editing model, plus the stateless interleaved-float
// sample format converter that sits at the output boundary.
package format

import (
	"github.com/soundflow-go/soundflow/internal/errors"
)

// ComponentFormat identifies this package in enhanced errors.
const ComponentFormat = "format"

// SeekOrigin anchors a seek/time request to the start, the current
// position, or the end of a source.
type SeekOrigin int

const (
	SeekBegin SeekOrigin = iota
	SeekCurrent
	SeekEnd
)

// SampleFormat is a native PCM encoding a source may report for
// embed/round-trip purposes.
type SampleFormat int

const (
	FormatUnknown SampleFormat = iota
	FormatU8
	FormatS16
	FormatS24
	FormatS32
	FormatF32
)

func (f SampleFormat) String() string {
	switch f {
	case FormatU8:
		return "u8"
	case FormatS16:
		return "s16"
	case FormatS24:
		return "s24"
	case FormatS32:
		return "s32"
	case FormatF32:
		return "f32"
	default:
		return "unknown"
	}
}

// LengthUnknown marks a source whose total length cannot be determined in
// advance (e.g. a live or streaming capture).
const LengthUnknown int64 = -1

// Source is a pull-model producer of interleaved float32 frames. Reads
// and seeks are not goroutine-safe: the caller (a player, or the editing
// layer rendering a segment) owns the source and drives it from one
// logical thread at a time, per the engine's single-writer discipline.
type Source interface {
	// Read fills dst with up to len(dst) interleaved float32 samples,
	// returning how many were written. A short read only happens at
	// end of stream; zero means exhausted.
	Read(dst []float32) (int, error)

	// Seek moves the read cursor to sampleOffset (a sample index, not a
	// frame index — always a multiple of Channels()). Returns an error
	// if the source is not Seekable or the offset is invalid.
	Seek(sampleOffset int64) error

	// Position returns the current read cursor, in samples.
	Position() int64

	// Length returns the total number of samples, or LengthUnknown.
	Length() int64

	// Seekable reports whether Seek is supported.
	Seekable() bool

	// Channels returns the interleaved channel count.
	Channels() int

	// SampleRate returns the source's native sample rate in Hz.
	SampleRate() int

	// NativeFormat returns the format the source was originally encoded
	// in, for embed/round-trip purposes.
	NativeFormat() SampleFormat
}

// AlignToChannels rounds down n to the nearest multiple of channels, the
// invariant every position and seek target in this package must satisfy.
func AlignToChannels(n int64, channels int) int64 {
	if channels <= 0 {
		return 0
	}
	return (n / int64(channels)) * int64(channels)
}

// ErrNotSeekable is returned by Seek on sources that don't support it.
var ErrNotSeekable = errors.New(nil).
	Component(ComponentFormat).
	Category(errors.CategoryState).
	Context("reason", "source_not_seekable").
	Build()

// ErrSeekOutOfRange is returned when a seek target falls outside [0, length].
var ErrSeekOutOfRange = errors.New(nil).
	Component(ComponentFormat).
	Category(errors.CategoryValidation).
	Context("reason", "seek_out_of_range").
	Build()
