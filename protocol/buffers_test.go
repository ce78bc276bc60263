package protocol

import (
	"bytes"
	"testing"
)

func TestScratchOutputBackpatch(t *testing.T) {
	output := NewScratchOutput()

	pos := output.CurPosition()
	output.Output([]byte{0, 0x10}) // length placeholder, sequence
	output.Output([]byte{1, 2, 3})

	body := output.DataSince(pos)
	output.Update(pos, byte(len(body)+MessageTrailerSize))

	result := output.Result()
	if result[0] != 8 {
		t.Errorf("backpatched length: expected 8, got %d", result[0])
	}
	if !bytes.Equal(result[1:], []byte{0x10, 1, 2, 3}) {
		t.Errorf("body corrupted by backpatch: %v", result)
	}
}

func TestScratchOutputReset(t *testing.T) {
	output := NewScratchOutput()
	output.Output([]byte{1, 2, 3})
	output.Reset()

	if output.CurPosition() != 0 || len(output.Result()) != 0 {
		t.Error("Reset did not clear the buffer")
	}
}

func TestSliceInputBufferPop(t *testing.T) {
	buf := NewSliceInputBuffer([]byte{1, 2, 3, 4})

	buf.Pop(2)
	if buf.Available() != 2 || buf.Data()[0] != 3 {
		t.Errorf("Pop(2) wrong: avail=%d data=%v", buf.Available(), buf.Data())
	}

	// Popping past the end clamps.
	buf.Pop(10)
	if buf.Available() != 0 {
		t.Errorf("Pop past end: expected empty, got %d", buf.Available())
	}
}

func TestFifoBufferBasic(t *testing.T) {
	fifo := NewFifoBuffer(8)

	if !fifo.IsEmpty() {
		t.Error("new buffer should be empty")
	}

	n := fifo.Write([]byte{1, 2, 3})
	if n != 3 || fifo.Available() != 3 {
		t.Errorf("write: n=%d avail=%d", n, fifo.Available())
	}

	out := make([]byte, 2)
	if fifo.Read(out) != 2 || out[0] != 1 || out[1] != 2 {
		t.Errorf("read wrong: %v", out)
	}
	if fifo.Available() != 1 {
		t.Errorf("expected 1 byte left, got %d", fifo.Available())
	}
}

func TestFifoBufferFull(t *testing.T) {
	fifo := NewFifoBuffer(4)

	// One slot stays unused to distinguish full from empty.
	n := fifo.Write([]byte{1, 2, 3, 4, 5})
	if n != 3 {
		t.Errorf("expected 3 bytes written to a 4-slot fifo, got %d", n)
	}
	if fifo.Free() != 0 {
		t.Errorf("expected no free space, got %d", fifo.Free())
	}
}

func TestFifoBufferWrapAround(t *testing.T) {
	fifo := NewFifoBuffer(8)

	// Push the read pointer forward so the next write wraps.
	fifo.Write([]byte{1, 2, 3, 4, 5})
	fifo.Pop(4)
	fifo.Write([]byte{6, 7, 8, 9})

	want := []byte{5, 6, 7, 8, 9}
	if got := fifo.Data(); !bytes.Equal(got, want) {
		t.Errorf("wrapped Data: expected %v, got %v", want, got)
	}

	fifo.Pop(5)
	if !fifo.IsEmpty() {
		t.Error("buffer should be empty after popping all data")
	}
}

func TestFifoBufferReset(t *testing.T) {
	fifo := NewFifoBuffer(8)
	fifo.Write([]byte{1, 2, 3})
	fifo.Reset()

	if !fifo.IsEmpty() || fifo.Available() != 0 {
		t.Error("Reset did not clear the buffer")
	}
}
