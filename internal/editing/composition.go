package editing

import (
	"sync"

	"github.com/soundflow-go/soundflow/internal/dsp"
	"github.com/soundflow-go/soundflow/internal/format"
	"github.com/soundflow-go/soundflow/internal/logging"
)

// Composition is a named, ordered collection of tracks that mixes down to
// a single interleaved stream and implements format.Source so it can
// drive a sound player like any other source (§4.8).
type Composition struct {
	Name             string
	TargetSampleRate int
	TargetChannels   int
	MasterGain       float64

	Modifiers *dsp.Chain[dsp.Modifier]
	Analyzers *dsp.Chain[dsp.Analyzer]

	mu       sync.Mutex
	tracks   []*Track
	dirty    bool
	cursor   int64 // samples, for the Source interface's Read/Position
}

// NewComposition constructs an empty composition targeting sampleRate/channels.
func NewComposition(name string, sampleRate, channels int) *Composition {
	return &Composition{
		Name:             name,
		TargetSampleRate: sampleRate,
		TargetChannels:   channels,
		MasterGain:       1.0,
		Modifiers:        dsp.NewChain[dsp.Modifier](nil),
		Analyzers:        dsp.NewChain[dsp.Analyzer](nil),
		dirty:            true,
	}
}

// AddTrack appends track to the composition.
func (c *Composition) AddTrack(track *Track) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracks = append(c.tracks, track)
	c.dirty = true
}

// RemoveTrack removes track if present.
func (c *Composition) RemoveTrack(track *Track) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, t := range c.tracks {
		if t == track {
			c.tracks = append(c.tracks[:i], c.tracks[i+1:]...)
			c.dirty = true
			return
		}
	}
}

// Tracks returns a snapshot of the composition's tracks.
func (c *Composition) Tracks() []*Track {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Track(nil), c.tracks...)
}

// CalculateTotalDuration returns the latest point any track's content
// extends to, in seconds.
func (c *Composition) CalculateTotalDuration() float64 {
	var total float64
	for _, t := range c.Tracks() {
		for _, seg := range t.Segments() {
			end := seg.TimelineStart + seg.TotalLoopedTimelineDuration()
			if end > total {
				total = end
			}
		}
	}
	return total
}

func (c *Composition) anySoloed() bool {
	for _, t := range c.Tracks() {
		if t.Settings.Soloed {
			return true
		}
	}
	return false
}

// renderWindow mixes every track's contribution at [windowStart,
// windowStart+duration) into out, then applies composition-level
// modifiers, analyzers, and master gain (§4.8).
func (c *Composition) renderWindow(windowStart, duration float64, out []float32) {
	clear(out)
	soloed := c.anySoloed()
	scratch := make([]float32, len(out))

	for _, t := range c.Tracks() {
		t.Render(windowStart, duration, scratch, c.TargetSampleRate, c.TargetChannels, soloed)
		for i := range out {
			out[i] += scratch[i]
		}
	}

	dsp.RunModifiers(c.Modifiers, out, c.TargetChannels, func(modifierName string, err error) {
		logging.Warn("composition modifier failed, passing through unprocessed chunk", "composition", c.Name, "modifier", modifierName, "error", err)
	})
	dsp.RunAnalyzers(c.Analyzers, out, c.TargetChannels, func(analyzerName string, err error) {
		logging.Warn("composition analyzer failed, continuing", "composition", c.Name, "analyzer", analyzerName, "error", err)
	})

	gain := float32(c.MasterGain)
	for i := range out {
		out[i] = format.ClampFloat(out[i] * gain)
	}
}

// Render performs an offline export of [startTime, startTime+duration).
func (c *Composition) Render(startTime, duration float64) []float32 {
	frames := int(duration * float64(c.TargetSampleRate))
	out := make([]float32, frames*c.TargetChannels)
	c.renderWindow(startTime, duration, out)
	return out
}

// Read implements format.Source: renders dst.len/(channels*sampleRate)
// seconds of timeline starting at the current cursor, advancing it.
func (c *Composition) Read(dst []float32) (int, error) {
	c.mu.Lock()
	windowStart := float64(c.cursor) / float64(c.TargetChannels) / float64(c.TargetSampleRate)
	c.mu.Unlock()

	frames := len(dst) / c.TargetChannels
	duration := float64(frames) / float64(c.TargetSampleRate)
	c.renderWindow(windowStart, duration, dst)

	c.mu.Lock()
	c.cursor += int64(len(dst))
	c.mu.Unlock()
	return len(dst), nil
}

func (c *Composition) Seek(sampleOffset int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cursor = format.AlignToChannels(sampleOffset, c.TargetChannels)
	return nil
}

func (c *Composition) Position() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

// Length is unknown: a composition's duration can grow as segments are
// added, so it reports format.LengthUnknown rather than a snapshot that
// would go stale.
func (c *Composition) Length() int64 { return format.LengthUnknown }

func (c *Composition) Seekable() bool                    { return true }
func (c *Composition) Channels() int                      { return c.TargetChannels }
func (c *Composition) SampleRate() int                     { return c.TargetSampleRate }
func (c *Composition) NativeFormat() format.SampleFormat  { return format.FormatF32 }

var _ format.Source = (*Composition)(nil)
