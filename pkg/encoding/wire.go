package encoding

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrShortBuffer reports a read past the end of the payload.
var ErrShortBuffer = errors.New("wire: short buffer")

// Marshaler is implemented by wire messages that append themselves to a buffer.
type Marshaler interface {
	MarshalWire(w *Writer)
}

// Unmarshaler is the read-side counterpart of Marshaler.
type Unmarshaler interface {
	UnmarshalWire(r *Reader) error
}

// Writer composes a wire payload in memory. Multi-byte values are
// little-endian; variable-length values use unsigned varint framing.
// Appends never fail, so codec code reads as straight-line writes.
type Writer struct {
	buf []byte
}

// NewWriter returns a writer with the given initial capacity.
func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

// Reset empties the buffer, keeping its storage for reuse.
func (w *Writer) Reset() { w.buf = w.buf[:0] }

// Len returns the number of bytes composed so far.
func (w *Writer) Len() int { return len(w.buf) }

// Bytes returns the composed payload. The slice aliases the writer's
// storage and is invalidated by the next write or Reset.
func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) WriteU8(v uint8)   { w.buf = append(w.buf, v) }
func (w *Writer) WriteU16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }
func (w *Writer) WriteU32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *Writer) WriteU64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }

func (w *Writer) WriteF32(v float32) { w.WriteU32(math.Float32bits(v)) }
func (w *Writer) WriteF64(v float64) { w.WriteU64(math.Float64bits(v)) }

func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteU8(1)
	} else {
		w.WriteU8(0)
	}
}

// WriteVLE appends an unsigned varint.
func (w *Writer) WriteVLE(v uint64) {
	w.buf = binary.AppendUvarint(w.buf, v)
}

// WriteString appends a VLE length followed by the raw bytes.
func (w *Writer) WriteString(s string) {
	w.WriteVLE(uint64(len(s)))
	w.buf = append(w.buf, s...)
}

// WriteBlob appends a VLE length followed by the raw bytes.
func (w *Writer) WriteBlob(b []byte) {
	w.WriteVLE(uint64(len(b)))
	w.buf = append(w.buf, b...)
}

// WriteRaw appends bytes with no framing.
func (w *Writer) WriteRaw(b []byte) {
	w.buf = append(w.buf, b...)
}

// Reader consumes a wire payload. The first failed read latches an error;
// subsequent reads return zero values, so codecs check Err once at the end.
type Reader struct {
	buf []byte
	off int
	err error
}

// NewReader returns a reader over the payload.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Err returns the first error encountered, if any.
func (r *Reader) Err() error { return r.err }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.Remaining() < n {
		r.err = ErrShortBuffer
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

// takeVLE consumes a varint length and that many bytes. The length is
// checked against the remaining payload while still a uint64, so a crafted
// length that would overflow int cannot reach take.
func (r *Reader) takeVLE() []byte {
	n := r.ReadVLE()
	if r.err != nil {
		return nil
	}
	if n > uint64(r.Remaining()) {
		r.err = ErrShortBuffer
		return nil
	}
	return r.take(int(n))
}

func (r *Reader) ReadU8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) ReadU16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *Reader) ReadU32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *Reader) ReadU64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *Reader) ReadF32() float32 { return math.Float32frombits(r.ReadU32()) }
func (r *Reader) ReadF64() float64 { return math.Float64frombits(r.ReadU64()) }

func (r *Reader) ReadBool() bool { return r.ReadU8() != 0 }

// ReadVLE consumes an unsigned varint.
func (r *Reader) ReadVLE() uint64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.buf[r.off:])
	if n <= 0 {
		r.err = ErrShortBuffer
		return 0
	}
	r.off += n
	return v
}

// ReadString consumes a VLE length and that many bytes.
func (r *Reader) ReadString() string {
	b := r.takeVLE()
	if b == nil {
		return ""
	}
	return string(b)
}

// ReadBlob consumes a VLE length and returns a copy of that many bytes.
func (r *Reader) ReadBlob() []byte {
	b := r.takeVLE()
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// ReadRaw consumes n bytes without framing. The returned slice aliases the
// payload.
func (r *Reader) ReadRaw(n int) []byte {
	return r.take(n)
}

// Skip discards n bytes.
func (r *Reader) Skip(n int) {
	r.take(n)
}
