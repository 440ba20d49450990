package bitio

import (
	"errors"
	"testing"
)

func TestReader_Primitives(t *testing.T) {
	tests := []struct {
		name  string
		order ByteOrder
		data  []byte
		u16   uint16
		u32   uint32
	}{
		{
			name:  "little endian",
			order: LittleEndian,
			data:  []byte{0x34, 0x12, 0x78, 0x56, 0x34, 0x12},
			u16:   0x1234,
			u32:   0x12345678,
		},
		{
			name:  "big endian",
			order: BigEndian,
			data:  []byte{0x12, 0x34, 0x12, 0x34, 0x56, 0x78},
			u16:   0x1234,
			u32:   0x12345678,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(tt.data, tt.order)
			got16, err := r.U16()
			if err != nil || got16 != tt.u16 {
				t.Fatalf("U16() = %#x, %v; want %#x", got16, err, tt.u16)
			}
			got32, err := r.U32()
			if err != nil || got32 != tt.u32 {
				t.Fatalf("U32() = %#x, %v; want %#x", got32, err, tt.u32)
			}
			if r.Remaining() != 0 {
				t.Errorf("Remaining() = %d, want 0", r.Remaining())
			}
		})
	}
}

func TestReader_Exhausted(t *testing.T) {
	r := NewReader([]byte{1, 2, 3}, LittleEndian)
	if _, err := r.U32(); !errors.Is(err, ErrExhausted) {
		t.Fatalf("U32 on 3 bytes: got %v, want ErrExhausted", err)
	}
	if r.Pos() != 0 {
		t.Errorf("failed read moved cursor to %d", r.Pos())
	}
	if _, err := r.Bits(25); !errors.Is(err, ErrExhausted) {
		t.Errorf("Bits(25) on 24 bits: got %v, want ErrExhausted", err)
	}
	if _, err := r.Bytes(4); !errors.Is(err, ErrExhausted) {
		t.Errorf("Bytes(4): got %v, want ErrExhausted", err)
	}
}

func TestReader_CString(t *testing.T) {
	r := NewReader([]byte("abc\x00de"), LittleEndian)
	s, err := r.CString()
	if err != nil || string(s) != "abc" {
		t.Fatalf("CString() = %q, %v", s, err)
	}
	if r.Remaining() != 2 {
		t.Errorf("Remaining() = %d, want 2", r.Remaining())
	}
	if _, err := r.CString(); !errors.Is(err, ErrExhausted) {
		t.Errorf("unterminated CString: got %v, want ErrExhausted", err)
	}
}

func TestReader_BitsAcrossBytes(t *testing.T) {
	// 0b10110_011 0b11000000 : 5-bit field 22, then 5-bit field 0b01111 = 15
	r := NewReader([]byte{0xB3, 0xC0}, LittleEndian)
	a, err := r.Bits(5)
	if err != nil || a != 22 {
		t.Fatalf("Bits(5) = %d, %v; want 22", a, err)
	}
	b, err := r.Bits(5)
	if err != nil || b != 15 {
		t.Fatalf("Bits(5) = %d, %v; want 15", b, err)
	}
	if r.Aligned() {
		t.Fatal("cursor should not be aligned after 10 bits")
	}
	r.Align()
	if !r.Aligned() || r.Pos() != 2 {
		t.Errorf("after Align: aligned=%v pos=%d", r.Aligned(), r.Pos())
	}
}

func TestSignedBitsRoundTrip(t *testing.T) {
	for n := uint(1); n <= 31; n++ {
		lo := -(int32(1) << (n - 1))
		hi := int32(1)<<(n-1) - 1
		for _, v := range []int32{lo, hi, 0, -1, lo / 3, hi / 7} {
			if v < lo || v > hi {
				continue
			}
			w := NewWriter(LittleEndian)
			w.Bits(0x5, 3) // misalign the field
			w.SignedBits(v, n)
			data := w.Bytes()

			r := NewReader(data, LittleEndian)
			if _, err := r.Bits(3); err != nil {
				t.Fatal(err)
			}
			got, err := r.SignedBits(n)
			if err != nil {
				t.Fatalf("n=%d v=%d: %v", n, v, err)
			}
			if got != v {
				t.Fatalf("n=%d: got %d, want %d", n, got, v)
			}
			r.Align()
			if !r.Aligned() || r.Remaining() != 0 {
				t.Fatalf("n=%d: cursor not at aligned end (pos=%d, remaining=%d)", n, r.Pos(), r.Remaining())
			}
		}
	}
}

func TestReader_SubIsRebased(t *testing.T) {
	r := NewReader([]byte{0xFF, 0x80, 0x00}, LittleEndian)
	if _, err := r.U8(); err != nil {
		t.Fatal(err)
	}
	sub, err := r.Sub(2)
	if err != nil {
		t.Fatal(err)
	}
	if sub.Pos() != 0 || sub.Len() != 2 {
		t.Fatalf("sub pos=%d len=%d", sub.Pos(), sub.Len())
	}
	bit, err := sub.Bits(1)
	if err != nil || bit != 1 {
		t.Errorf("first bit of rebased slice = %d, %v; want 1", bit, err)
	}
}

func TestReader_SeekAndPeek(t *testing.T) {
	r := NewReader([]byte{9, 8, 7}, BigEndian)
	if err := r.Seek(2); err != nil {
		t.Fatal(err)
	}
	v, err := r.PeekU8()
	if err != nil || v != 7 || r.Pos() != 2 {
		t.Fatalf("PeekU8 = %d, %v at %d", v, err, r.Pos())
	}
	if err := r.Seek(4); !errors.Is(err, ErrExhausted) {
		t.Errorf("Seek past end: got %v", err)
	}
	if err := r.SeekBit(9); err != nil {
		t.Fatal(err)
	}
	if r.BitPos() != 9 || r.Aligned() {
		t.Errorf("SeekBit(9): bitpos=%d aligned=%v", r.BitPos(), r.Aligned())
	}
}

func TestSignedBitsNeeded(t *testing.T) {
	tests := []struct {
		vals []int32
		want uint
	}{
		{[]int32{0}, 1},
		{[]int32{1}, 2},
		{[]int32{-1}, 1},
		{[]int32{-2}, 2},
		{[]int32{0, 11000, 0, 8000}, 15},
	}
	for _, tt := range tests {
		if got := SignedBitsNeeded(tt.vals...); got != tt.want {
			t.Errorf("SignedBitsNeeded(%v) = %d, want %d", tt.vals, got, tt.want)
		}
	}
}

func TestReader_FailedReadKeepsPendingBits(t *testing.T) {
	r := NewReader([]byte{0b1010_0000, 0x7f}, BigEndian)
	if v, err := r.Bits(3); err != nil || v != 0b101 {
		t.Fatalf("Bits(3) = %b, %v", v, err)
	}
	if v, err := r.PeekU8(); err != nil || v != 0x7f {
		t.Fatalf("PeekU8() = %#x, %v", v, err)
	}
	if r.BitPos() != 3 {
		t.Fatalf("PeekU8 moved cursor to bit %d", r.BitPos())
	}
	if _, err := r.U16(); !errors.Is(err, ErrExhausted) {
		t.Fatalf("U16() err = %v", err)
	}
	if _, err := r.CString(); !errors.Is(err, ErrExhausted) {
		t.Fatalf("CString() err = %v", err)
	}
	if r.BitPos() != 3 {
		t.Fatalf("failed reads moved cursor to bit %d", r.BitPos())
	}
	if v, err := r.Bits(5); err != nil || v != 0 {
		t.Fatalf("Bits(5) = %b, %v", v, err)
	}
	if v, err := r.U8(); err != nil || v != 0x7f {
		t.Fatalf("U8() = %#x, %v", v, err)
	}
}
