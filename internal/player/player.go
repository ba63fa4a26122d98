// Package player implements the sound player: a graph node that owns a
// sample source and a transport, and generates audio by reading the
// source through an optional WSOLA time-stretcher and a linear-interp
// resample stage.
package player

import (
	"sync"

	"github.com/soundflow-go/soundflow/internal/dsp"
	"github.com/soundflow-go/soundflow/internal/errors"
	"github.com/soundflow-go/soundflow/internal/format"
	"github.com/soundflow-go/soundflow/internal/graph"
	"github.com/soundflow-go/soundflow/internal/logging"
)

// ComponentPlayer identifies this package in enhanced errors.
const ComponentPlayer = "player"

// State is the sound player's transport state.
type State int

const (
	Stopped State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// fillChunkFrames bounds how many frames are pulled from the source per
// fill-stage iteration, so a single Generate call can't block the callback
// on an unbounded source read.
const fillChunkFrames = 4096

// SoundPlayer is a source-reading graph node with transport controls.
type SoundPlayer struct {
	*graph.Node

	mu     sync.Mutex
	source format.Source

	state State
	speed float64

	loopEnabled bool
	loopStart   int64
	loopEnd     int64 // -1 = until source end

	stretcher *dsp.Stretcher

	resampleBuf            dsp.FloatFIFO
	currentFractionalFrame float64

	rawSamplePosition int64

	channels int

	playbackEnded chan struct{}

	logger interface {
		Warn(msg string, args ...any)
	}
}

// New constructs a sound player around source, wired into the graph via a
// scratch pool shared with the rest of the graph.
func New(name string, source format.Source, pool *graph.ScratchPool) *SoundPlayer {
	channels := source.Channels()
	p := &SoundPlayer{
		source:        source,
		state:         Stopped,
		speed:         1.0,
		loopEnd:       -1,
		stretcher:     dsp.NewStretcher(channels, 1.0),
		channels:      channels,
		playbackEnded: make(chan struct{}, 1),
		logger:        logging.ForService("player").With("player", name),
	}
	p.Node = graph.NewNode(name, channels, p, pool)
	return p
}

// PlaybackEnded returns a channel that receives a value each time playback
// transitions to Stopped due to source exhaustion with no active loop.
// Sends are non-blocking: a consumer that isn't listening misses the
// notification rather than stalling the audio callback.
func (p *SoundPlayer) PlaybackEnded() <-chan struct{} { return p.playbackEnded }

// State returns the current transport state.
func (p *SoundPlayer) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Play transitions to Playing and enables the node for graph pulls.
func (p *SoundPlayer) Play() {
	p.mu.Lock()
	p.state = Playing
	p.mu.Unlock()
	p.SetEnabled(true)
}

// Pause transitions to Paused and disables the node.
func (p *SoundPlayer) Pause() {
	p.mu.Lock()
	p.state = Paused
	p.mu.Unlock()
	p.SetEnabled(false)
}

// Stop transitions to Stopped, rewinds to the start, and resets the
// stretcher and both internal buffers.
func (p *SoundPlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = Stopped
	_ = p.source.Seek(0)
	p.rawSamplePosition = 0
	p.currentFractionalFrame = 0
	p.stretcher.Reset()
	p.resampleBuf.Reset()
}

// IsLooping reports whether looping is currently enabled.
func (p *SoundPlayer) IsLooping() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loopEnabled
}

// SetLooping toggles the loop flag.
func (p *SoundPlayer) SetLooping(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loopEnabled = v
}

// SetLoopPoints validates and stores the loop window, clamping both ends
// to the source length and aligning them to frame boundaries. end = -1
// means "until source end".
func (p *SoundPlayer) SetLoopPoints(start, end int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	length := p.source.Length()
	if start < 0 {
		start = 0
	}
	start = format.AlignToChannels(start, p.channels)
	if length != format.LengthUnknown {
		if start > length {
			start = length
		}
	}

	if end != -1 {
		if end < start {
			return errors.New(nil).
				Component(ComponentPlayer).
				Category(errors.CategoryValidation).
				Context("operation", "set_loop_points").
				Context("start", start).
				Context("end", end).
				Build()
		}
		end = format.AlignToChannels(end, p.channels)
		if length != format.LengthUnknown && end > length {
			end = length
		}
	}

	p.loopStart, p.loopEnd = start, end
	return nil
}

// PlaybackSpeed updates the stretcher's target speed; x must be > 0.
func (p *SoundPlayer) PlaybackSpeed(x float64) error {
	if x <= 0 {
		return errors.New(nil).
			Component(ComponentPlayer).
			Category(errors.CategoryValidation).
			Context("operation", "playback_speed").
			Context("value", x).
			Build()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.speed = x
	p.stretcher.SetSpeed(x)
	return nil
}

// Speed returns the current playback speed.
func (p *SoundPlayer) Speed() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speed
}

// Seek clamps target into [0, length-channels], aligns it to a frame
// boundary, delegates to the source, and invalidates the fractional-frame
// accumulator and both internal buffers.
func (p *SoundPlayer) Seek(targetSample int64, origin format.SeekOrigin) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	base := int64(0)
	switch origin {
	case format.SeekCurrent:
		base = p.rawSamplePosition
	case format.SeekEnd:
		if p.source.Length() != format.LengthUnknown {
			base = p.source.Length()
		}
	}
	abs := base + targetSample

	length := p.source.Length()
	maxPos := int64(0)
	if length != format.LengthUnknown && length >= int64(p.channels) {
		maxPos = length - int64(p.channels)
	}
	if abs < 0 {
		abs = 0
	}
	if length != format.LengthUnknown && abs > maxPos {
		abs = maxPos
	}
	abs = format.AlignToChannels(abs, p.channels)

	if err := p.source.Seek(abs); err != nil {
		return errors.Wrap(err).
			Component(ComponentPlayer).
			Category(errors.CategoryState).
			Context("operation", "seek").
			Context("target", abs).
			Build()
	}

	p.rawSamplePosition = abs
	p.currentFractionalFrame = 0
	p.stretcher.Reset()
	p.resampleBuf.Reset()
	return nil
}

// RawSamplePosition returns the player's current position in the source,
// in samples (a multiple of the channel count).
func (p *SoundPlayer) RawSamplePosition() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rawSamplePosition
}

// Generate implements graph.Generator: the two-stage fill/resample
// pipeline of §4.5.
func (p *SoundPlayer) Generate(scratch []float32, channels int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != Playing {
		return
	}

	framesNeeded := len(scratch) / max(channels, 1)
	p.fillLocked(framesNeeded)
	p.resampleLocked(scratch, channels, framesNeeded)
}

// fillLocked tops up resampleBuf until it holds enough frames to satisfy
// framesNeeded output frames, or the source and stretcher are exhausted.
func (p *SoundPlayer) fillLocked(framesNeeded int) {
	needed := (framesNeeded + 2) * p.channels // +2 covers interpolation lookahead and fractional carry
	feed := make([]float32, fillChunkFrames*p.channels)

	for p.resampleBuf.Len() < needed {
		n, err := p.source.Read(feed)
		if err != nil {
			p.logger.Warn("source read failed, treating as exhausted", "error", err)
			n = 0
		}
		if n > 0 {
			p.stretcher.Push(feed[:n])
		}

		result := p.stretcher.Process()
		p.rawSamplePosition += result.SamplesConsumedFromInput
		if len(result.Output) > 0 {
			p.resampleBuf.Push(result.Output)
			continue
		}

		if n == 0 {
			// Source exhausted; drain whatever the stretcher still holds.
			flush := p.stretcher.Flush()
			p.rawSamplePosition += flush.SamplesConsumedFromInput
			if len(flush.Output) > 0 {
				p.resampleBuf.Push(flush.Output)
				continue
			}
			p.handleExhaustionLocked()
			return
		}
	}
}

// handleExhaustionLocked implements the end-of-stream branch of §4.5: loop
// back if looping, otherwise stop and notify.
func (p *SoundPlayer) handleExhaustionLocked() {
	if p.loopEnabled {
		_ = p.source.Seek(p.loopStart)
		p.rawSamplePosition = p.loopStart
		p.currentFractionalFrame = 0
		p.stretcher.Reset()
		p.resampleBuf.Reset()
		return
	}

	p.state = Stopped
	p.SetEnabled(false)
	select {
	case p.playbackEnded <- struct{}{}:
	default:
	}
}

// resampleLocked produces framesNeeded output frames by linear
// interpolation across resampleBuf, discarding whole frames consumed and
// leaving any tail for the next call.
func (p *SoundPlayer) resampleLocked(scratch []float32, channels, framesNeeded int) {
	for f := 0; f < framesNeeded; f++ {
		availableFrames := p.resampleBuf.Len() / channels
		idx := int(p.currentFractionalFrame)
		if idx+1 >= availableFrames {
			break // ran dry mid-callback; remaining output frames stay zero
		}

		frac := float32(p.currentFractionalFrame - float64(idx))
		buf := p.resampleBuf.PeekAll()
		a := buf[idx*channels : (idx+1)*channels]
		b := buf[(idx+1)*channels : (idx+2)*channels]
		for c := 0; c < channels; c++ {
			scratch[f*channels+c] = a[c] + (b[c]-a[c])*frac
		}

		p.currentFractionalFrame++
	}

	consumedFrames := int(p.currentFractionalFrame)
	if consumedFrames > 0 {
		p.resampleBuf.Discard(min(consumedFrames, p.resampleBuf.Len()/channels) * channels)
		p.currentFractionalFrame -= float64(consumedFrames)
	}
}
