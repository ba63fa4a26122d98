package graph

import (
	"math"
	"testing"

	"github.com/soundflow-go/soundflow/internal/dsp"
)

// dcGenerator emits a constant DC value into every sample of scratch.
type dcGenerator struct{ value float32 }

func (g dcGenerator) Generate(scratch []float32, channels int) {
	for i := range scratch {
		scratch[i] = g.value
	}
}

func TestConnectInputRejectsSelfConnection(t *testing.T) {
	pool := NewScratchPool()
	a := NewNode("a", 2, nil, pool)

	if err := a.ConnectInput(a); err == nil {
		t.Fatalf("expected self-connect to fail")
	}
}

func TestConnectInputRejectsCycle(t *testing.T) {
	pool := NewScratchPool()
	a := NewNode("a", 2, nil, pool)
	b := NewNode("b", 2, nil, pool)
	c := NewNode("c", 2, nil, pool)

	// A -> B -> C  (B has input A, C has input B)
	if err := b.ConnectInput(a); err != nil {
		t.Fatalf("b.ConnectInput(a) failed: %v", err)
	}
	if err := c.ConnectInput(b); err != nil {
		t.Fatalf("c.ConnectInput(b) failed: %v", err)
	}

	if err := a.ConnectInput(c); err == nil {
		t.Fatalf("expected cycle rejection when connecting a.ConnectInput(c)")
	}

	if got := len(a.Inputs()); got != 0 {
		t.Fatalf("graph should be unchanged after rejected connection, a has %d inputs", got)
	}
}

func TestDisconnectInputIsIdempotent(t *testing.T) {
	pool := NewScratchPool()
	a := NewNode("a", 2, nil, pool)
	b := NewNode("b", 2, nil, pool)
	_ = b.ConnectInput(a)

	b.DisconnectInput(a)
	if len(b.Inputs()) != 0 {
		t.Fatalf("expected no inputs after disconnect")
	}
	b.DisconnectInput(a) // should not panic or error
}

func TestProcessSkipsWhenDisabledOrMuted(t *testing.T) {
	pool := NewScratchPool()
	n := NewNode("n", 1, dcGenerator{value: 1}, pool)
	out := make([]float32, 8)

	n.SetEnabled(false)
	n.Process(out)
	for _, v := range out {
		if v != 0 {
			t.Fatalf("disabled node should not contribute, got %v", out)
		}
	}

	n.SetEnabled(true)
	n.SetMuted(true)
	n.Process(out)
	for _, v := range out {
		if v != 0 {
			t.Fatalf("muted node should not contribute, got %v", out)
		}
	}
}

func TestProcessMixesGeneratorOutputWithGain(t *testing.T) {
	pool := NewScratchPool()
	n := NewNode("n", 1, dcGenerator{value: 1}, pool)
	n.SetGainPan(0.5, 0.5)
	n.SetGainPan(0.5, 0.5) // second call makes prev==cur, avoids ramp transient

	out := make([]float32, 512)
	n.Process(out)

	// mono folds the equal-power pair: gain=0.5, pan=0.5 => left=right=0.5/sqrt(2),
	// folded value = left+right = 0.5*sqrt(2) ~= 0.7071.
	left, right := dsp.EqualPowerGains(0.5, 0.5)
	want := left + right
	last := out[len(out)-1]
	if math.Abs(float64(last)-want) > 1e-3 {
		t.Fatalf("expected settled output near %v, got %v", want, last)
	}
}

func TestProcessAdditivelyMixesIntoExistingOutput(t *testing.T) {
	pool := NewScratchPool()
	n := NewNode("n", 1, dcGenerator{value: 1}, pool)
	n.SetGainPan(1, 0.5)
	n.SetGainPan(1, 0.5)

	out := make([]float32, 256)
	for i := range out {
		out[i] = 0.25
	}
	n.Process(out)

	left, right := dsp.EqualPowerGains(1, 0.5)
	want := 0.25 + left + right
	last := out[len(out)-1]
	if math.Abs(float64(last)-want) > 1e-3 {
		t.Fatalf("expected additive mix ~%v, got %v", want, last)
	}
}

// countingAnalyzer records how many times Process was invoked.
type countingAnalyzer struct {
	dsp.BaseModifier
	calls int
}

func newCountingAnalyzer(name string) *countingAnalyzer {
	a := &countingAnalyzer{}
	a.NameValue = name
	a.SetEnabled(true)
	return a
}

func (a *countingAnalyzer) Process(buffer []float32, channels int) error {
	a.calls++
	return nil
}

func TestAnalyzerTapsPostMixBuffer(t *testing.T) {
	pool := NewScratchPool()
	n := NewNode("n", 1, dcGenerator{value: 1}, pool)
	analyzer := newCountingAnalyzer("probe")
	n.AddAnalyzer(analyzer)

	out := make([]float32, 64)
	n.Process(out)

	if analyzer.calls != 1 {
		t.Fatalf("expected analyzer to run exactly once, got %d", analyzer.calls)
	}
}

func TestMixerGenerateIsNoOp(t *testing.T) {
	pool := NewScratchPool()
	m := NewMasterMixer(1, pool)
	child := NewNode("child", 1, dcGenerator{value: 1}, pool)
	child.SetGainPan(1, 0.5)
	child.SetGainPan(1, 0.5)
	_ = m.ConnectInput(child)

	out := make([]float32, 512)
	m.Process(out)

	// The child folds its equal-power pair (left+right), then the mixer's
	// own default gain=1/pan=0.5 folds the summed input once more; Generate
	// adds nothing on top of that.
	left, right := dsp.EqualPowerGains(1, 0.5)
	want := (left + right) * (left + right)
	last := out[len(out)-1]
	if math.Abs(float64(last)-want) > 1e-3 {
		t.Fatalf("expected mixer to add nothing beyond its own gain/pan on the child's contribution (~%v), got %v", want, last)
	}
}
