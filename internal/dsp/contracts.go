// Package dsp holds the per-frame/per-buffer contracts shared by graph
// nodes, tracks, and segments (modifiers and analyzers), plus the
// free-standing DSP building blocks — equal-power panning, fade curves,
// and the WSOLA time-stretcher — that those hosts apply around them.
package dsp

import (
	"fmt"
	"log/slog"
)

// Modifier transforms an interleaved float32 buffer in place. The default
// Process implementation calls ProcessSample once per sample in
// interleaved order; a modifier whose effect can't be expressed per-sample
// (e.g. anything with cross-sample state beyond a simple filter) overrides
// Process directly.
type Modifier interface {
	Name() string
	Enabled() bool
	SetEnabled(bool)

	// ProcessSample transforms a single sample on a given channel index.
	ProcessSample(sample float32, channel int) float32

	// Process runs the modifier over an entire interleaved buffer and
	// reports whether it failed. Per §7, a failing modifier never drops
	// audio to silence: RunModifiers restores the buffer to its pre-call
	// contents and reports the error instead of leaving a half-applied or
	// garbage result in place.
	Process(buffer []float32, channels int) error
}

// BaseModifier implements Process in terms of ProcessSample and is meant
// to be embedded by concrete modifiers that only need the per-sample hook.
type BaseModifier struct {
	NameValue string
	enabled   bool
}

// NewBaseModifier constructs a BaseModifier, enabled by default.
func NewBaseModifier(name string) BaseModifier {
	return BaseModifier{NameValue: name, enabled: true}
}

func (b *BaseModifier) Name() string      { return b.NameValue }
func (b *BaseModifier) Enabled() bool     { return b.enabled }
func (b *BaseModifier) SetEnabled(v bool) { b.enabled = v }

// ProcessDefault is called by embedders that don't override Process; ps is
// the owning modifier's ProcessSample method, passed explicitly since Go
// has no virtual dispatch through an embedded struct. Per-sample modifiers
// have no error channel of their own, so this always succeeds; the error
// return exists to satisfy Modifier.Process's signature.
func ProcessDefault(buffer []float32, channels int, ps func(sample float32, channel int) float32) error {
	if channels <= 0 {
		channels = 1
	}
	for i := range buffer {
		buffer[i] = ps(buffer[i], i%channels)
	}
	return nil
}

// Analyzer inspects a read-only view of a buffer after modifiers have run
// but before mix-down, optionally forwarding to an attached visualizer.
// Analyzers never mutate the samples that reach the graph output.
type Analyzer interface {
	Name() string
	Enabled() bool
	SetEnabled(bool)

	// Process inspects buffer (read-only by convention) and returns an
	// error if analysis failed; per §7, a failing analyzer never drops
	// audio to silence — callers log and continue with the unmodified
	// downstream buffer.
	Process(buffer []float32, channels int) error
}

// Visualizer receives analyzer output for display through Publish. This
// package defines no attach/detach API; an analyzer publishes to whatever
// Visualizer it holds.
type Visualizer interface {
	Publish(analyzerName string, buffer []float32, channels int)
}

// Chain is an ordered, name-addressable list of modifiers or analyzers
// shared by nodes, tracks, segments, and the composition. It is generic
// over the two host interfaces so all four hosts in §4.10 share one
// implementation instead of four bespoke slices-with-mutex types.
type Chain[T interface {
	Name() string
	Enabled() bool
}] struct {
	items  []T
	logger *slog.Logger

	// snapshot is a reusable scratch buffer RunModifiers grows once and
	// keeps, so a failing modifier's rollback doesn't allocate on the
	// audio path after warm-up. Unused by analyzer chains.
	snapshot []float32
}

// NewChain creates an empty chain.
func NewChain[T interface {
	Name() string
	Enabled() bool
}](logger *slog.Logger) *Chain[T] {
	return &Chain[T]{logger: logger}
}

// Add appends an item, rejecting duplicate names.
func (c *Chain[T]) Add(item T) bool {
	for _, existing := range c.items {
		if existing.Name() == item.Name() {
			return false
		}
	}
	c.items = append(c.items, item)
	return true
}

// Remove deletes the named item, returning whether it was present.
func (c *Chain[T]) Remove(name string) bool {
	for i, existing := range c.items {
		if existing.Name() == name {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

// Items returns a snapshot slice of the chain's current members.
func (c *Chain[T]) Items() []T {
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Len reports the chain length.
func (c *Chain[T]) Len() int { return len(c.items) }

// RunModifiers applies every enabled modifier in chain to buffer in order.
// Per §7's processing-error policy, a modifier that returns an error or
// panics never reaches the graph output: its contribution is rolled back
// to the buffer's pre-call contents, onFailure is notified (typically a
// log call), and the next modifier still runs against the unmodified
// chunk — a transient failure in one effect never drops audio to silence.
func RunModifiers(chain *Chain[Modifier], buffer []float32, channels int, onFailure func(name string, err error)) {
	if chain == nil || chain.Len() == 0 {
		return
	}
	if cap(chain.snapshot) < len(buffer) {
		chain.snapshot = make([]float32, len(buffer))
	}
	snapshot := chain.snapshot[:len(buffer)]

	for _, m := range chain.Items() {
		if !m.Enabled() {
			continue
		}
		copy(snapshot, buffer)
		if err := runModifierSafely(m, buffer, channels); err != nil {
			copy(buffer, snapshot)
			if onFailure != nil {
				onFailure(m.Name(), err)
			}
		}
	}
}

// runModifierSafely invokes m.Process, converting a panic into an error so
// a single misbehaving modifier can't crash the real-time audio path.
func runModifierSafely(m Modifier, buffer []float32, channels int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("modifier %q panicked: %v", m.Name(), r)
		}
	}()
	return m.Process(buffer, channels)
}

// RunAnalyzers runs every enabled analyzer in chain over a read-only view
// of buffer. Per §7's processing-error policy, an analyzer failure is
// reported through onFailure (typically a log call) and otherwise ignored;
// it never alters buffer or stops the remaining analyzers from running.
func RunAnalyzers(chain *Chain[Analyzer], buffer []float32, channels int, onFailure func(name string, err error)) {
	if chain == nil {
		return
	}
	for _, a := range chain.Items() {
		if !a.Enabled() {
			continue
		}
		if err := a.Process(buffer, channels); err != nil && onFailure != nil {
			onFailure(a.Name(), err)
		}
	}
}
