package encoding

import (
	"errors"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	w := NewWriter(64)
	w.WriteU8(7)
	w.WriteU16(0xBEEF)
	w.WriteU32(0xDEADBEEF)
	w.WriteU64(1 << 50)
	w.WriteF32(1.5)
	w.WriteF64(-0.125)
	w.WriteBool(true)
	w.WriteVLE(300)
	w.WriteString("scene")
	w.WriteBlob([]byte{1, 2, 3})

	r := NewReader(w.Bytes())
	if got := r.ReadU8(); got != 7 {
		t.Errorf("u8 = %d", got)
	}
	if got := r.ReadU16(); got != 0xBEEF {
		t.Errorf("u16 = %#x", got)
	}
	if got := r.ReadU32(); got != 0xDEADBEEF {
		t.Errorf("u32 = %#x", got)
	}
	if got := r.ReadU64(); got != 1<<50 {
		t.Errorf("u64 = %d", got)
	}
	if got := r.ReadF32(); got != 1.5 {
		t.Errorf("f32 = %v", got)
	}
	if got := r.ReadF64(); got != -0.125 {
		t.Errorf("f64 = %v", got)
	}
	if !r.ReadBool() {
		t.Error("bool = false")
	}
	if got := r.ReadVLE(); got != 300 {
		t.Errorf("vle = %d", got)
	}
	if got := r.ReadString(); got != "scene" {
		t.Errorf("string = %q", got)
	}
	blob := r.ReadBlob()
	if len(blob) != 3 || blob[2] != 3 {
		t.Errorf("blob = %v", blob)
	}
	if err := r.Err(); err != nil {
		t.Fatalf("err = %v", err)
	}
	if r.Remaining() != 0 {
		t.Errorf("remaining = %d", r.Remaining())
	}
}

func TestReaderLatchesShortBuffer(t *testing.T) {
	r := NewReader([]byte{1})
	_ = r.ReadU32()
	if !errors.Is(r.Err(), ErrShortBuffer) {
		t.Fatalf("err = %v", r.Err())
	}
	// Later reads stay zero without panicking.
	if got := r.ReadString(); got != "" {
		t.Errorf("string after error = %q", got)
	}
	if got := r.ReadU64(); got != 0 {
		t.Errorf("u64 after error = %d", got)
	}
}

func TestOversizedLengthLatchesShortBuffer(t *testing.T) {
	// A length varint larger than the payload must latch ErrShortBuffer,
	// including lengths that would turn negative when converted to int.
	for _, n := range []uint64{3, 1 << 32, 1 << 63, 1<<64 - 1} {
		w := NewWriter(16)
		w.WriteVLE(n)
		w.WriteU8(0xAA)
		payload := w.Bytes()

		r := NewReader(payload)
		if b := r.ReadBlob(); b != nil {
			t.Errorf("blob for length %d = %v", n, b)
		}
		if !errors.Is(r.Err(), ErrShortBuffer) {
			t.Fatalf("blob err for length %d = %v", n, r.Err())
		}

		r = NewReader(payload)
		if s := r.ReadString(); s != "" {
			t.Errorf("string for length %d = %q", n, s)
		}
		if !errors.Is(r.Err(), ErrShortBuffer) {
			t.Fatalf("string err for length %d = %v", n, r.Err())
		}
	}
}

func TestNegativeCountLatchesShortBuffer(t *testing.T) {
	r := NewReader([]byte{1, 2, 3})
	if b := r.ReadRaw(-1); b != nil {
		t.Errorf("raw = %v", b)
	}
	if !errors.Is(r.Err(), ErrShortBuffer) {
		t.Fatalf("err = %v", r.Err())
	}
}

func TestBlobCopyDoesNotAlias(t *testing.T) {
	w := NewWriter(16)
	w.WriteBlob([]byte{9, 9})
	payload := w.Bytes()

	r := NewReader(payload)
	blob := r.ReadBlob()
	blob[0] = 0
	if payload[1] != 9 {
		t.Error("blob aliases payload")
	}
}

func TestWriterReset(t *testing.T) {
	w := NewWriter(8)
	w.WriteU64(1)
	w.Reset()
	if w.Len() != 0 {
		t.Errorf("len after reset = %d", w.Len())
	}
	w.WriteU8(5)
	if len(w.Bytes()) != 1 || w.Bytes()[0] != 5 {
		t.Errorf("bytes = %v", w.Bytes())
	}
}
