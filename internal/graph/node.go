package graph

import (
	"log/slog"
	"sync"

	"github.com/soundflow-go/soundflow/internal/dsp"
	"github.com/soundflow-go/soundflow/internal/errors"
	"github.com/soundflow-go/soundflow/internal/logging"
)

// RampFrames is the number of frames over which a gain/pan change is
// linearly interpolated, chosen so a parameter change never produces an
// audible zipper within one callback.
const RampFrames = 128

// Generator is implemented by node subclasses (mixer, sound player, ...) to
// produce their own content into scratch, after inputs have already been
// summed into it by Node.Process.
type Generator interface {
	Generate(scratch []float32, channels int)
}

// Node is the shared base for every graph participant: identity, input
// edges, gain/pan with ramping, enable/mute/solo flags, and per-node
// modifier/analyzer chains. Concrete node kinds (Mixer, sound player)
// embed Node and supply a Generator.
type Node struct {
	name string

	connectionsMu sync.Mutex
	inputs        []*Node

	stateMu sync.Mutex
	enabled bool
	muted   bool
	soloed  bool

	prevGain, prevPan float64
	curGain, curPan   float64

	channels  int
	generator Generator

	modifiers *dsp.Chain[dsp.Modifier]
	analyzers *dsp.Chain[dsp.Analyzer]

	pool   *ScratchPool
	logger *slog.Logger
}

// NewNode constructs a Node with default gain 1, centered pan, enabled,
// unmuted, unsoloed.
func NewNode(name string, channels int, generator Generator, pool *ScratchPool) *Node {
	logger := logging.ForService("graph").With("node", name)
	return &Node{
		name:      name,
		enabled:   true,
		prevGain:  1, curGain: 1,
		prevPan: 0.5, curPan: 0.5,
		channels:  channels,
		generator: generator,
		modifiers: dsp.NewChain[dsp.Modifier](logger),
		analyzers: dsp.NewChain[dsp.Analyzer](logger),
		pool:      pool,
		logger:    logger,
	}
}

func (n *Node) Name() string { return n.name }

// Enabled, Muted and Soloed report the node's current flags.
func (n *Node) Enabled() bool {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.enabled
}

func (n *Node) SetEnabled(v bool) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	n.enabled = v
}

func (n *Node) Muted() bool {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.muted
}

func (n *Node) SetMuted(v bool) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	n.muted = v
}

func (n *Node) Soloed() bool {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.soloed
}

func (n *Node) SetSoloed(v bool) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	n.soloed = v
}

// SetGainPan stages a new gain (>=0) and pan ([0,1]) as the "current"
// values; the previous values remain available to Process for ramping.
func (n *Node) SetGainPan(gain, pan float64) {
	if gain < 0 {
		gain = 0
	}
	if pan < 0 {
		pan = 0
	} else if pan > 1 {
		pan = 1
	}
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	n.prevGain, n.prevPan = n.curGain, n.curPan
	n.curGain, n.curPan = gain, pan
}

func (n *Node) GainPan() (gain, pan float64) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.curGain, n.curPan
}

// AddModifier / RemoveModifier mutate the node's modifier chain.
func (n *Node) AddModifier(m dsp.Modifier) bool {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.modifiers.Add(m)
}

func (n *Node) RemoveModifier(name string) bool {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.modifiers.Remove(name)
}

// AddAnalyzer / RemoveAnalyzer mutate the node's analyzer chain.
func (n *Node) AddAnalyzer(a dsp.Analyzer) bool {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.analyzers.Add(a)
}

func (n *Node) RemoveAnalyzer(name string) bool {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.analyzers.Remove(name)
}

// ConnectInput attaches other as an input, rejecting a self-connection or
// any connection that would introduce a cycle. Node only stores input
// edges, so reaches below walks other's input edges looking for self: if
// self is found, other already (transitively) consumes self's output and
// the new edge would close a loop. Connections that only add a second path
// between two nodes are accepted.
func (n *Node) ConnectInput(other *Node) error {
	if other == n {
		return errors.New(nil).
			Component(ComponentGraph).
			Category(errors.CategoryTopology).
			Context("operation", "connect_input").
			Context("node", n.name).
			Build()
	}

	n.connectionsMu.Lock()
	defer n.connectionsMu.Unlock()

	if reaches(other, n, make(map[*Node]bool)) {
		return errors.New(nil).
			Component(ComponentGraph).
			Category(errors.CategoryTopology).
			Context("operation", "connect_input").
			Context("node", n.name).
			Context("other", other.name).
			Build()
	}

	for _, in := range n.inputs {
		if in == other {
			return nil
		}
	}
	n.inputs = append(n.inputs, other)
	return nil
}

// reaches reports whether target is reachable from start by following
// input edges (start consumes target, possibly transitively).
func reaches(start, target *Node, visited map[*Node]bool) bool {
	if start == target {
		return true
	}
	if visited[start] {
		return false
	}
	visited[start] = true

	start.connectionsMu.Lock()
	inputs := append([]*Node(nil), start.inputs...)
	start.connectionsMu.Unlock()

	for _, in := range inputs {
		if reaches(in, target, visited) {
			return true
		}
	}
	return false
}

// DisconnectInput removes other from the input list; a no-op if absent.
func (n *Node) DisconnectInput(other *Node) {
	n.connectionsMu.Lock()
	defer n.connectionsMu.Unlock()
	for i, in := range n.inputs {
		if in == other {
			n.inputs = append(n.inputs[:i], n.inputs[i+1:]...)
			return
		}
	}
}

// Inputs returns a snapshot of the node's current inputs.
func (n *Node) Inputs() []*Node {
	n.connectionsMu.Lock()
	defer n.connectionsMu.Unlock()
	return append([]*Node(nil), n.inputs...)
}

// Process is the pull entry point (§4.3): early-return when disabled or
// muted; otherwise sum all inputs into a rented scratch buffer, let the
// generator add its own content, run modifiers, apply the ramped
// volume/pan, additively mix into outputBuffer, then tap analyzers on the
// post-mix buffer.
func (n *Node) Process(outputBuffer []float32) {
	if !n.Enabled() || n.Muted() {
		return
	}

	scratch := n.pool.Get(len(outputBuffer))
	defer n.pool.Put(scratch)

	for _, in := range n.Inputs() {
		in.Process(scratch)
	}

	if n.generator != nil {
		n.generator.Generate(scratch, n.channels)
	}

	dsp.RunModifiers(n.modifiers, scratch, n.channels, func(modifierName string, err error) {
		n.logger.Warn("modifier failed, passing through unprocessed chunk", "modifier", modifierName, "error", err)
	})

	n.stateMu.Lock()
	prevGain, prevPan, curGain, curPan := n.prevGain, n.prevPan, n.curGain, n.curPan
	n.prevGain, n.prevPan = curGain, curPan
	n.stateMu.Unlock()
	dsp.RampRegion(scratch, n.channels, prevGain, prevPan, curGain, curPan, RampFrames)

	for i := range outputBuffer {
		outputBuffer[i] += scratch[i]
	}

	dsp.RunAnalyzers(n.analyzers, outputBuffer, n.channels, func(analyzerName string, err error) {
		n.logger.Warn("analyzer failed, continuing", "analyzer", analyzerName, "error", err)
	})
}
