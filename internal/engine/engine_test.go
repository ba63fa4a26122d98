package engine

import (
	"testing"

	"github.com/soundflow-go/soundflow/internal/format"
	"github.com/soundflow-go/soundflow/internal/graph"
	"github.com/soundflow-go/soundflow/internal/player"
)

func TestProcessGraphFiresListenerWithPlaybackCapability(t *testing.T) {
	e := New(48000, Playback, format.FormatS16, 1, nil)

	var gotCapability Capability
	var gotSamples int
	e.OnAudioProcessed(func(samples []float32, capability Capability) {
		gotCapability = capability
		gotSamples = len(samples)
	})

	out := make([]byte, 256*2) // S16 = 2 bytes/sample
	e.ProcessGraph(out, 256)

	if gotCapability != Playback {
		t.Fatalf("expected Playback capability, got %v", gotCapability)
	}
	if gotSamples != 256 {
		t.Fatalf("expected 256 samples delivered to listener, got %d", gotSamples)
	}
}

func TestSoloTakesPrecedenceOverMaster(t *testing.T) {
	e := New(48000, Playback, format.FormatF32, 1, nil)
	pool := e.Pool()

	src := format.NewMemorySource(constantSamples(4096, 1.0), 1, 48000)
	soloPlayer := player.New("solo", src, pool)
	soloPlayer.Play()
	e.Solo(soloPlayer.Node)

	out := make([]byte, 256*4) // F32 = 4 bytes/sample
	e.ProcessGraph(out, 256)

	// The master mixer has no inputs; if solo wasn't honored the scratch
	// buffer (and therefore out) would stay all zero.
	allZero := true
	for _, b := range out {
		if b != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		t.Fatalf("expected soloed node's output to reach the callback buffer")
	}
}

func TestUnsoloIgnoresStaleNode(t *testing.T) {
	e := New(48000, Playback, format.FormatF32, 1, nil)
	a := graph.NewNode("a", 1, nil, e.Pool())
	b := graph.NewNode("b", 1, nil, e.Pool())

	e.Solo(a)
	e.Unsolo(b) // stale: should not clear a's solo
	if e.soloedOrMaster() != a {
		t.Fatalf("stale Unsolo should not clear an unrelated solo")
	}

	e.Unsolo(a)
	if e.soloedOrMaster() != e.master.Node {
		t.Fatalf("expected solo cleared back to master mixer")
	}
}

func TestListenerPanicIsRecovered(t *testing.T) {
	e := New(48000, Playback, format.FormatF32, 1, nil)
	e.OnAudioProcessed(func(samples []float32, capability Capability) {
		panic("boom")
	})

	out := make([]byte, 64*4)
	e.ProcessGraph(out, 64) // must not panic
}

func constantSamples(n int, v float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}
