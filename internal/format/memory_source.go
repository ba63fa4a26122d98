package format

import "sync"

// MemorySource is a finite, seekable Source backed by an in-memory float32
// slice. It is used both as a lightweight test fixture and as the silent
// placeholder the editing layer binds to when a persisted segment's source
// cannot be resolved (see editing.Load).
type MemorySource struct {
	mu         sync.Mutex
	samples    []float32
	pos        int64
	channels   int
	sampleRate int
	native     SampleFormat
}

// NewMemorySource wraps samples (already interleaved per channels) as a Source.
func NewMemorySource(samples []float32, channels, sampleRate int) *MemorySource {
	return &MemorySource{
		samples:    samples,
		channels:   channels,
		sampleRate: sampleRate,
		native:     FormatF32,
	}
}

// NewSilentSource builds a fixed-length all-zero source, used to stand in
// for a sample source that failed to resolve on load.
func NewSilentSource(totalSamples int64, channels, sampleRate int) *MemorySource {
	aligned := AlignToChannels(totalSamples, channels)
	return &MemorySource{
		samples:    make([]float32, aligned),
		channels:   channels,
		sampleRate: sampleRate,
		native:     FormatF32,
	}
}

func (s *MemorySource) Read(dst []float32) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining := int64(len(s.samples)) - s.pos
	if remaining <= 0 {
		return 0, nil
	}
	n := int64(len(dst))
	if n > remaining {
		n = remaining
	}
	copy(dst[:n], s.samples[s.pos:s.pos+n])
	s.pos += n
	return int(n), nil
}

func (s *MemorySource) Seek(sampleOffset int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sampleOffset < 0 || sampleOffset > int64(len(s.samples)) {
		return ErrSeekOutOfRange
	}
	s.pos = AlignToChannels(sampleOffset, s.channels)
	return nil
}

func (s *MemorySource) Position() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

func (s *MemorySource) Length() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.samples))
}

func (s *MemorySource) Seekable() bool       { return true }
func (s *MemorySource) Channels() int        { return s.channels }
func (s *MemorySource) SampleRate() int      { return s.sampleRate }
func (s *MemorySource) NativeFormat() SampleFormat { return s.native }
