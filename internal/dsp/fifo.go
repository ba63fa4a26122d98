package dsp

// FloatFIFO is a growable first-in-first-out float32 buffer. It backs the
// WSOLA stretcher's input accumulator and the sound player's resample
// buffer, both of which need to accumulate a variable amount of data
// before a whole analysis window or output frame is available.
//
// Unlike a fixed-capacity circular buffer, a FloatFIFO grows on write and
// compacts on read. Reserve pre-sizes the backing array; the stretcher and
// the player do not call it, so their FIFOs grow on demand.
type FloatFIFO struct {
	data []float32
	head int // index of the oldest unread sample
}

// Reserve ensures the FIFO's backing array can hold at least n samples
// without reallocating on the next Push.
func (f *FloatFIFO) Reserve(n int) {
	if cap(f.data)-f.head >= n {
		return
	}
	f.compact()
	if cap(f.data) < n {
		grown := make([]float32, len(f.data), n)
		copy(grown, f.data)
		f.data = grown
	}
}

// Push appends samples to the tail of the FIFO.
func (f *FloatFIFO) Push(samples []float32) {
	f.data = append(f.data, samples...)
}

// Len returns the number of unread samples.
func (f *FloatFIFO) Len() int {
	return len(f.data) - f.head
}

// Peek returns a read-only view of the first n unread samples without
// consuming them. Panics if n > Len(), matching slice semantics.
func (f *FloatFIFO) Peek(n int) []float32 {
	return f.data[f.head : f.head+n]
}

// PeekAll returns every unread sample.
func (f *FloatFIFO) PeekAll() []float32 {
	return f.data[f.head:]
}

// Discard drops the first n unread samples, advancing the read cursor.
func (f *FloatFIFO) Discard(n int) {
	f.head += n
	if f.head >= len(f.data) {
		f.data = f.data[:0]
		f.head = 0
	} else if f.head >= len(f.data)-f.head {
		// The discarded prefix is at least as long as the unread data:
		// reclaim it so the backing array doesn't grow without bound.
		f.compact()
	}
}

// Read copies up to len(dst) unread samples into dst, discarding them, and
// returns the count copied.
func (f *FloatFIFO) Read(dst []float32) int {
	n := min(len(dst), f.Len())
	copy(dst[:n], f.data[f.head:f.head+n])
	f.Discard(n)
	return n
}

// Reset empties the FIFO without releasing its backing array.
func (f *FloatFIFO) Reset() {
	f.data = f.data[:0]
	f.head = 0
}

// compact shifts unread data to the front of the backing array, reclaiming
// space consumed by already-discarded samples.
func (f *FloatFIFO) compact() {
	if f.head == 0 {
		return
	}
	n := copy(f.data, f.data[f.head:])
	f.data = f.data[:n]
	f.head = 0
}
