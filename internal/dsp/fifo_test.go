package dsp

import "testing"

func TestFloatFIFOPushPeekDiscard(t *testing.T) {
	var f FloatFIFO
	f.Push([]float32{1, 2, 3, 4, 5})
	if f.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", f.Len())
	}
	if got := f.Peek(3); len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("Peek(3) = %v", got)
	}
	if f.Len() != 5 {
		t.Fatalf("Peek must not consume; Len() = %d", f.Len())
	}

	f.Discard(2)
	if f.Len() != 3 {
		t.Fatalf("Len() after Discard(2) = %d, want 3", f.Len())
	}
	if got := f.PeekAll(); got[0] != 3 {
		t.Fatalf("PeekAll()[0] = %v, want 3", got[0])
	}
}

func TestFloatFIFOReadExhaustion(t *testing.T) {
	var f FloatFIFO
	f.Push([]float32{1, 2, 3})
	dst := make([]float32, 5)
	n := f.Read(dst)
	if n != 3 {
		t.Fatalf("Read() = %d, want 3", n)
	}
	if f.Len() != 0 {
		t.Fatalf("Len() after full read = %d, want 0", f.Len())
	}
	n = f.Read(dst)
	if n != 0 {
		t.Fatalf("Read() on empty FIFO = %d, want 0", n)
	}
}

func TestFloatFIFOCompactsAcrossManyDiscards(t *testing.T) {
	var f FloatFIFO
	for i := 0; i < 1000; i++ {
		f.Push([]float32{float32(i)})
		f.Discard(1)
	}
	if f.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", f.Len())
	}
	if cap(f.data) > 64 {
		t.Fatalf("backing array grew unbounded: cap=%d", cap(f.data))
	}
}

func TestFloatFIFOReset(t *testing.T) {
	var f FloatFIFO
	f.Push([]float32{1, 2, 3})
	f.Discard(1)
	f.Reset()
	if f.Len() != 0 {
		t.Fatalf("Len() after Reset() = %d, want 0", f.Len())
	}
	f.Push([]float32{9})
	if got := f.Peek(1); got[0] != 9 {
		t.Fatalf("Peek(1) after reset+push = %v", got)
	}
}
