package graph

// Mixer is a node whose Generate step is a no-op: Node.Process has already
// summed every input into scratch before calling Generate, so a mixer
// contributes nothing of its own beyond that sum.
type Mixer struct {
	*Node
}

// NewMixer constructs a mixer node.
func NewMixer(name string, channels int, pool *ScratchPool) *Mixer {
	m := &Mixer{}
	m.Node = NewNode(name, channels, m, pool)
	return m
}

func (m *Mixer) Generate(scratch []float32, channels int) {
	// Inputs are already summed by Node.Process; nothing to add.
}

// NewMasterMixer constructs the process-wide root mixer created once at
// engine initialization (§4.4, §9's "once-initialized cell" guidance).
func NewMasterMixer(channels int, pool *ScratchPool) *Mixer {
	return NewMixer("master", channels, pool)
}
