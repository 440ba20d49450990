package bitio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"fortio.org/safecast"
)

// ErrExhausted is returned when a read would cross the end of the buffer.
var ErrExhausted = errors.New("bitio: read past end of buffer")

// ByteOrder selects how multi-byte fields are assembled.
type ByteOrder uint8

const (
	// LittleEndian is used by the animation container.
	LittleEndian ByteOrder = iota
	// BigEndian is used by the class container.
	BigEndian
)

func (o ByteOrder) String() string {
	if o == BigEndian {
		return "big-endian"
	}
	return "little-endian"
}

func (o ByteOrder) binary() binary.ByteOrder {
	if o == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func (o ByteOrder) appender() binary.AppendByteOrder {
	if o == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Reader is a cursor over an immutable byte buffer.
//
// Byte reads are always aligned: a pending partial byte left by Bits or
// SignedBits is discarded before any byte-granular read, matching how the
// animation container mixes bit-packed and byte fields.
type Reader struct {
	data  []byte
	pos   int   // next byte to read
	bit   uint8 // bits already consumed from data[pos], 0..7
	order ByteOrder
}

// NewReader returns a cursor positioned at the start of data.
func NewReader(data []byte, order ByteOrder) *Reader {
	return &Reader{data: data, order: order}
}

// Order reports the configured endianness.
func (r *Reader) Order() ByteOrder { return r.order }

// Len returns the total buffer length in bytes.
func (r *Reader) Len() int { return len(r.data) }

// Pos returns the current byte position. A partially consumed byte counts as
// not yet read.
func (r *Reader) Pos() int { return r.pos }

// BitPos returns the absolute bit position.
func (r *Reader) BitPos() int { return r.pos*8 + int(r.bit) }

// Remaining returns the number of whole bytes left after alignment.
func (r *Reader) Remaining() int {
	p := r.pos
	if r.bit != 0 {
		p++
	}
	if p >= len(r.data) {
		return 0
	}
	return len(r.data) - p
}

// Aligned reports whether the cursor sits on a byte boundary.
func (r *Reader) Aligned() bool { return r.bit == 0 }

// Align discards any remaining bits of a partially consumed byte.
func (r *Reader) Align() {
	if r.bit != 0 {
		r.bit = 0
		r.pos++
	}
}

// Seek moves the cursor to an absolute byte position.
func (r *Reader) Seek(pos int) error {
	if pos < 0 || pos > len(r.data) {
		return fmt.Errorf("%w: seek to %d in %d-byte buffer", ErrExhausted, pos, len(r.data))
	}
	r.pos = pos
	r.bit = 0
	return nil
}

// SeekBit moves the cursor to an absolute bit position.
func (r *Reader) SeekBit(bitPos int) error {
	if bitPos < 0 || bitPos > len(r.data)*8 {
		return fmt.Errorf("%w: seek to bit %d in %d-byte buffer", ErrExhausted, bitPos, len(r.data))
	}
	r.pos = bitPos / 8
	r.bit = uint8(bitPos % 8)
	return nil
}

// bytePos is where the next byte-aligned read starts.
func (r *Reader) bytePos() int {
	if r.bit != 0 {
		return r.pos + 1
	}
	return r.pos
}

func (r *Reader) check(n int) (int, error) {
	p := r.bytePos()
	if n < 0 || p+n > len(r.data) {
		return p, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrExhausted, n, p, max(len(r.data)-p, 0))
	}
	return p, nil
}

// need checks that n bytes follow the aligned position, then aligns. A
// failed check leaves pending bits in place.
func (r *Reader) need(n int) error {
	if _, err := r.check(n); err != nil {
		return err
	}
	r.Align()
	return nil
}

// PeekU8 returns the next byte-aligned byte without moving the cursor.
func (r *Reader) PeekU8() (uint8, error) {
	p, err := r.check(1)
	if err != nil {
		return 0, err
	}
	return r.data[p], nil
}

// U8 reads one byte.
func (r *Reader) U8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

// U16 reads a 16-bit unsigned integer in the configured order.
func (r *Reader) U16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := r.order.binary().Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

// U32 reads a 32-bit unsigned integer in the configured order.
func (r *Reader) U32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := r.order.binary().Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

// U64 reads a 64-bit unsigned integer in the configured order.
func (r *Reader) U64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := r.order.binary().Uint64(r.data[r.pos:])
	r.pos += 8
	return v, nil
}

// I16 reads a 16-bit two's complement integer.
func (r *Reader) I16() (int16, error) {
	v, err := r.U16()
	return int16(v), err
}

// I32 reads a 32-bit two's complement integer.
func (r *Reader) I32() (int32, error) {
	v, err := r.U32()
	return int32(v), err
}

// F32 reads an IEEE-754 single.
func (r *Reader) F32() (float32, error) {
	v, err := r.U32()
	return math.Float32frombits(v), err
}

// F64 reads an IEEE-754 double.
func (r *Reader) F64() (float64, error) {
	v, err := r.U64()
	return math.Float64frombits(v), err
}

// Bytes returns the next n bytes as a sub-slice of the buffer (no copy).
func (r *Reader) Bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.data[r.pos : r.pos+n : r.pos+n]
	r.pos += n
	return b, nil
}

// BytesU32 is Bytes with a length taken straight from a 32-bit field.
func (r *Reader) BytesU32(n uint32) ([]byte, error) {
	size, err := safecast.Conv[int](n)
	if err != nil {
		return nil, fmt.Errorf("%w: length %d: %w", ErrExhausted, n, err)
	}
	return r.Bytes(size)
}

// Skip advances n bytes.
func (r *Reader) Skip(n int) error {
	if err := r.need(n); err != nil {
		return err
	}
	r.pos += n
	return nil
}

// String reads a fixed-length byte string.
func (r *Reader) String(n int) (string, error) {
	b, err := r.Bytes(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CString reads bytes up to and excluding a NUL terminator, consuming the
// terminator. A missing terminator is an exhaustion error.
func (r *Reader) CString() ([]byte, error) {
	p := r.bytePos()
	for i := p; i < len(r.data); i++ {
		if r.data[i] == 0 {
			s := r.data[p:i:i]
			r.pos, r.bit = i+1, 0
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: unterminated string at offset %d", ErrExhausted, p)
}

// Bits reads n (0..32) bits, most significant bit first.
func (r *Reader) Bits(n uint) (uint32, error) {
	if n > 32 {
		return 0, fmt.Errorf("bitio: bit count %d out of range", n)
	}
	if n == 0 {
		return 0, nil
	}
	if r.BitPos()+int(n) > len(r.data)*8 {
		return 0, fmt.Errorf("%w: need %d bits at bit %d", ErrExhausted, n, r.BitPos())
	}
	var v uint64
	for n > 0 {
		cur := r.data[r.pos]
		avail := 8 - uint(r.bit)
		take := avail
		if n < take {
			take = n
		}
		shift := avail - take
		chunk := (uint64(cur) >> shift) & (uint64(1)<<take - 1)
		v = v<<take | chunk
		n -= take
		r.bit += uint8(take)
		if r.bit == 8 {
			r.bit = 0
			r.pos++
		}
	}
	return uint32(v), nil
}

// SignedBits reads n bits and sign-extends them as two's complement.
func (r *Reader) SignedBits(n uint) (int32, error) {
	v, err := r.Bits(n)
	if err != nil || n == 0 {
		return 0, err
	}
	return SignExtend(v, n), nil
}

// FixedBits reads a signed 16.16 fixed-point value packed into n bits.
func (r *Reader) FixedBits(n uint) (float64, error) {
	v, err := r.SignedBits(n)
	return float64(v) / 65536, err
}

// Sub returns a fresh cursor over the next n bytes whose positions start at
// zero, and advances past them.
func (r *Reader) Sub(n int) (*Reader, error) {
	b, err := r.Bytes(n)
	if err != nil {
		return nil, err
	}
	return NewReader(b, r.order), nil
}

// Rest returns every unread byte and moves the cursor to the end.
func (r *Reader) Rest() []byte {
	r.Align()
	if r.pos >= len(r.data) {
		r.pos = len(r.data)
		return nil
	}
	b := r.data[r.pos:]
	r.pos = len(r.data)
	return b
}

// SignExtend interprets the low n bits of v as a two's complement integer.
func SignExtend(v uint32, n uint) int32 {
	if n == 0 || n >= 32 {
		return int32(v)
	}
	shift := 32 - n
	return int32(v<<shift) >> shift
}
