// Package engine owns the real-time callback entry points, the solo
// registry, and the process-wide master mixer (§4.7).
package engine

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/soundflow-go/soundflow/internal/format"
	"github.com/soundflow-go/soundflow/internal/graph"
	"github.com/soundflow-go/soundflow/internal/logging"
)

// ComponentEngine identifies this package in enhanced errors.
const ComponentEngine = "engine"

// Capability describes which direction of audio a callback carries.
type Capability int

const (
	Playback Capability = iota
	Record
	Mixed
)

func (c Capability) String() string {
	switch c {
	case Playback:
		return "playback"
	case Record:
		return "record"
	default:
		return "mixed"
	}
}

// ProcessedListener is invoked after each callback with the float samples
// that were processed, on the calling (audio callback) goroutine. A
// listener that panics is recovered and logged rather than crashing the
// callback thread.
type ProcessedListener func(samples []float32, capability Capability)

// Engine owns the master mixer and the solo registry. Per §9's redesign
// note it is an explicit value rather than static globals; Init/Instance
// provide a once-initialized, read-only process-wide accessor for
// integration layers that need one, without exposing a mutable global.
type Engine struct {
	sampleRate   int
	capability   Capability
	sampleFormat format.SampleFormat
	channels     int

	pool   *graph.ScratchPool
	master *graph.Mixer

	soloMu sync.Mutex
	soloed *graph.Node

	listenersMu sync.Mutex
	listeners   []ProcessedListener

	metrics *metricsSet
	logger  *slog.Logger
}

// New constructs a standalone Engine. Most hosts should use Init/Instance
// instead so integration layers share one process-wide engine, but New is
// exposed for tests and multi-engine embedding scenarios.
func New(sampleRate int, capability Capability, sampleFormat format.SampleFormat, channels int, reg prometheus.Registerer) *Engine {
	pool := graph.NewScratchPool()
	e := &Engine{
		sampleRate:   sampleRate,
		capability:   capability,
		sampleFormat: sampleFormat,
		channels:     channels,
		pool:         pool,
		master:       graph.NewMasterMixer(channels, pool),
		metrics:      newMetricsSet(reg),
		logger:       logging.ForService("engine"),
	}
	return e
}

var (
	instance     atomic.Pointer[Engine]
	instanceOnce sync.Once
)

// Init creates the process-wide engine exactly once; subsequent calls are
// no-ops and return the original instance.
func Init(sampleRate int, capability Capability, sampleFormat format.SampleFormat, channels int, reg prometheus.Registerer) *Engine {
	instanceOnce.Do(func() {
		instance.Store(New(sampleRate, capability, sampleFormat, channels, reg))
	})
	return instance.Load()
}

// Instance returns the process-wide engine, or nil if Init hasn't run yet.
func Instance() *Engine { return instance.Load() }

// SampleRate, Channels, SampleFormat and Capability report construction
// parameters.
func (e *Engine) SampleRate() int                  { return e.sampleRate }
func (e *Engine) Channels() int                    { return e.channels }
func (e *Engine) SampleFormat() format.SampleFormat { return e.sampleFormat }
func (e *Engine) EngineCapability() Capability     { return e.capability }

// MasterMixer returns the process-wide root mixer.
func (e *Engine) MasterMixer() *graph.Mixer { return e.master }

// Pool returns the engine's shared scratch buffer pool, for components
// (the player, editing renderers) that need a wait-free scratch buffer
// outside the graph's own Process path.
func (e *Engine) Pool() *graph.ScratchPool { return e.pool }

// Solo serializes setting the soloed node; takes effect no later than the
// next ProcessGraph pull per §5's ordering guarantee.
func (e *Engine) Solo(node *graph.Node) {
	e.soloMu.Lock()
	e.soloed = node
	e.soloMu.Unlock()
	if node != nil {
		e.metrics.soloActive.Set(1)
	} else {
		e.metrics.soloActive.Set(0)
	}
}

// Unsolo clears the solo registry if it currently holds node (a no-op
// otherwise, so a stale unsolo from a since-replaced node can't clobber a
// newer solo).
func (e *Engine) Unsolo(node *graph.Node) {
	e.soloMu.Lock()
	defer e.soloMu.Unlock()
	if e.soloed == node {
		e.soloed = nil
		e.metrics.soloActive.Set(0)
	}
}

// soloedOrMaster reads the solo registry under its lock, bounding
// callback-side latency to one pointer read per §5.
func (e *Engine) soloedOrMaster() *graph.Node {
	e.soloMu.Lock()
	root := e.soloed
	e.soloMu.Unlock()
	if root != nil {
		return root
	}
	return e.master.Node
}

// OnAudioProcessed registers a listener invoked after every callback.
func (e *Engine) OnAudioProcessed(fn ProcessedListener) {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()
	e.listeners = append(e.listeners, fn)
}

func (e *Engine) fireListeners(samples []float32, capability Capability) {
	e.listenersMu.Lock()
	listeners := append([]ProcessedListener(nil), e.listeners...)
	e.listenersMu.Unlock()

	for _, fn := range listeners {
		e.invokeListener(fn, samples, capability)
	}
}

func (e *Engine) invokeListener(fn ProcessedListener, samples []float32, capability Capability) {
	defer func() {
		if r := recover(); r != nil {
			e.metrics.listenerErrors.Inc()
			e.logger.Warn("on_audio_processed listener panicked", "recovered", r)
		}
	}()
	fn(samples, capability)
}

// ProcessGraph is the real-time callback entry point for playback: it
// pulls the soloed node (if any) or the master mixer into a pooled float
// scratch buffer, format-converts into outBuffer, and fires
// on_audio_processed with the pre-conversion float samples.
func (e *Engine) ProcessGraph(outBuffer []byte, frames int) {
	scratch := e.pool.Get(frames * e.channels)
	defer e.pool.Put(scratch)

	root := e.soloedOrMaster()
	root.Process(scratch)

	notified := append([]float32(nil), scratch...)
	format.EncodeInterleaved(scratch, outBuffer, e.sampleFormat)

	e.metrics.buffersProcessed.WithLabelValues(Playback.String()).Inc()
	e.metrics.framesProcessed.WithLabelValues(Playback.String()).Add(float64(frames))
	e.fireListeners(notified, Playback)
}

// ProcessAudioInput mirrors ProcessGraph for capture: it decodes the
// device's native-format input into float samples and fires
// on_audio_processed with capability=Record. Capture has no graph to pull
// from in this core (routing captured audio into the graph is a host
// concern); this is purely the format-adjacent half of §4.7.
func (e *Engine) ProcessAudioInput(inBuffer []byte, frames int) {
	scratch := e.pool.Get(frames * e.channels)
	defer e.pool.Put(scratch)

	decoded := format.DecodeInterleaved(inBuffer, e.sampleFormat, scratch[:0])

	e.metrics.buffersProcessed.WithLabelValues(Record.String()).Inc()
	e.metrics.framesProcessed.WithLabelValues(Record.String()).Add(float64(frames))
	e.fireListeners(decoded, Record)
}
