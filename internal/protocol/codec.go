// Package protocol implements the match wire format: binary codec
// primitives, handshake and content packets, the property wire encoding,
// and the server/client network string table.
//
// All multi-byte scalars are little-endian. Unbounded integers use a
// base-128 varint ("compressed unsigned"); signed variants are zigzag
// encoded. Strings and byte blobs are length-prefixed with a compressed
// unsigned count.
package protocol

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/louisbranch/skirmish.space/internal/errors"
)

// Writer serializes packet payloads into a growable buffer.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter returns an empty packet writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the serialized payload.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// WriteUint8 appends one byte.
func (w *Writer) WriteUint8(v uint8) {
	w.buf.WriteByte(v)
}

// WriteBool appends a boolean as one byte.
func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf.WriteByte(1)
		return
	}
	w.buf.WriteByte(0)
}

// WriteUint16 appends a fixed-width 16-bit integer.
func (w *Writer) WriteUint16(v uint16) {
	var scratch [2]byte
	binary.LittleEndian.PutUint16(scratch[:], v)
	w.buf.Write(scratch[:])
}

// WriteUint32 appends a fixed-width 32-bit integer.
func (w *Writer) WriteUint32(v uint32) {
	var scratch [4]byte
	binary.LittleEndian.PutUint32(scratch[:], v)
	w.buf.Write(scratch[:])
}

// WriteUint64 appends a fixed-width 64-bit integer.
func (w *Writer) WriteUint64(v uint64) {
	var scratch [8]byte
	binary.LittleEndian.PutUint64(scratch[:], v)
	w.buf.Write(scratch[:])
}

// WriteFloat64 appends an IEEE-754 double.
func (w *Writer) WriteFloat64(v float64) {
	w.WriteUint64(math.Float64bits(v))
}

// WriteUnsigned appends a compressed unsigned integer.
func (w *Writer) WriteUnsigned(v uint64) {
	for v >= 0x80 {
		w.buf.WriteByte(byte(v) | 0x80)
		v >>= 7
	}
	w.buf.WriteByte(byte(v))
}

// WriteSigned appends a zigzag-encoded compressed integer.
func (w *Writer) WriteSigned(v int64) {
	w.WriteUnsigned(uint64(v)<<1 ^ uint64(v>>63))
}

// WriteString appends a length-prefixed UTF-8 string.
func (w *Writer) WriteString(s string) {
	w.WriteUnsigned(uint64(len(s)))
	w.buf.WriteString(s)
}

// WriteBytes appends a length-prefixed byte blob.
func (w *Writer) WriteBytes(b []byte) {
	w.WriteUnsigned(uint64(len(b)))
	w.buf.Write(b)
}

// Reader deserializes packet payloads. Every accessor reports a
// ProtocolError on truncated or malformed input.
type Reader struct {
	data []byte
	off  int
}

// NewReader wraps a received payload.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Remaining reports the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

func (r *Reader) take(n int) ([]byte, error) {
	if r.Remaining() < n {
		return nil, errors.E(errors.CodeProtocolMalformedPacket,
			"need %d bytes at offset %d, have %d", n, r.off, r.Remaining())
	}
	out := r.data[r.off : r.off+n]
	r.off += n
	return out, nil
}

// ReadUint8 consumes one byte.
func (r *Reader) ReadUint8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadBool consumes a one-byte boolean.
func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadUint8()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

// ReadUint16 consumes a fixed-width 16-bit integer.
func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadUint32 consumes a fixed-width 32-bit integer.
func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadUint64 consumes a fixed-width 64-bit integer.
func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadFloat64 consumes an IEEE-754 double.
func (r *Reader) ReadFloat64() (float64, error) {
	bits, err := r.ReadUint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

// ReadUnsigned consumes a compressed unsigned integer.
func (r *Reader) ReadUnsigned() (uint64, error) {
	var out uint64
	var shift uint
	for {
		if shift > 63 {
			return 0, errors.E(errors.CodeProtocolMalformedPacket, "varint overflow at offset %d", r.off)
		}
		b, err := r.ReadUint8()
		if err != nil {
			return 0, err
		}
		out |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return out, nil
		}
		shift += 7
	}
}

// ReadSigned consumes a zigzag-encoded compressed integer.
func (r *Reader) ReadSigned() (int64, error) {
	raw, err := r.ReadUnsigned()
	if err != nil {
		return 0, err
	}
	return int64(raw>>1) ^ -int64(raw&1), nil
}

// ReadString consumes a length-prefixed UTF-8 string.
func (r *Reader) ReadString() (string, error) {
	length, err := r.ReadUnsigned()
	if err != nil {
		return "", err
	}
	if length > uint64(r.Remaining()) {
		return "", errors.E(errors.CodeProtocolMalformedPacket, "string length %d exceeds payload", length)
	}
	b, err := r.take(int(length))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadBytes consumes a length-prefixed byte blob.
func (r *Reader) ReadBytes() ([]byte, error) {
	length, err := r.ReadUnsigned()
	if err != nil {
		return nil, err
	}
	if length > uint64(r.Remaining()) {
		return nil, errors.E(errors.CodeProtocolMalformedPacket, "blob length %d exceeds payload", length)
	}
	b, err := r.take(int(length))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}
