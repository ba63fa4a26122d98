// Package graph implements the pull-model DSP graph: nodes composed into a
// directed acyclic graph, summed by mixers, and driven by the engine's
// real-time callback.
package graph

import "sync"

// ComponentGraph names this package in errors and log output.
const ComponentGraph = "graph"

// Default buffer-pool tier sizes, in float32 samples. Follows a three-tier
// byte-buffer pool layout (small/medium/large), sized here for typical
// callback buffer lengths (a 512-frame stereo callback is 1024 samples).
const (
	SmallBufferSamples  = 1024
	MediumBufferSamples = 4096
	LargeBufferSamples  = 16384
)

// ScratchPool rents and returns zeroed float32 scratch buffers for the
// audio callback path. It must never allocate on a cache hit: Get/Put are
// backed by sync.Pool, which the runtime treats as a wait-free freelist
// under normal (non-GC-sweep) conditions, satisfying §5's no-block
// requirement on the callback thread.
type ScratchPool struct {
	small  sync.Pool
	medium sync.Pool
	large  sync.Pool
}

// NewScratchPool constructs a pool with its three size tiers pre-wired.
func NewScratchPool() *ScratchPool {
	p := &ScratchPool{}
	p.small.New = func() any { return make([]float32, 0, SmallBufferSamples) }
	p.medium.New = func() any { return make([]float32, 0, MediumBufferSamples) }
	p.large.New = func() any { return make([]float32, 0, LargeBufferSamples) }
	return p
}

// Get returns a zeroed buffer of exactly n samples, drawn from the
// smallest tier whose capacity covers n, or a one-off allocation if n
// exceeds every tier.
func (p *ScratchPool) Get(n int) []float32 {
	var buf []float32
	switch {
	case n <= SmallBufferSamples:
		buf = p.small.Get().([]float32)
	case n <= MediumBufferSamples:
		buf = p.medium.Get().([]float32)
	case n <= LargeBufferSamples:
		buf = p.large.Get().([]float32)
	default:
		return make([]float32, n)
	}
	buf = buf[:cap(buf)][:n]
	clear(buf)
	return buf
}

// Put returns buf to the tier matching its capacity. Buffers larger than
// the largest tier are dropped (not worth pooling).
func (p *ScratchPool) Put(buf []float32) {
	switch c := cap(buf); {
	case c <= SmallBufferSamples:
		p.small.Put(buf[:0]) //nolint:staticcheck // reslice to 0 retains capacity
	case c <= MediumBufferSamples:
		p.medium.Put(buf[:0])
	case c <= LargeBufferSamples:
		p.large.Put(buf[:0])
	}
}
