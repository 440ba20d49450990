package bitio

import "math"

// Writer is the encoding counterpart of Reader. It is used to assemble
// containers in tests and tooling.
type Writer struct {
	buf   []byte
	acc   uint8 // pending bits, left-aligned
	nacc  uint  // number of pending bits
	order ByteOrder
}

// NewWriter returns an empty writer using the given byte order.
func NewWriter(order ByteOrder) *Writer {
	return &Writer{order: order}
}

// Bytes flushes any pending bits and returns the encoded buffer.
func (w *Writer) Bytes() []byte {
	w.Align()
	return w.buf
}

// Len returns the number of whole bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// Align pads a partially written byte with zero bits.
func (w *Writer) Align() {
	if w.nacc > 0 {
		w.buf = append(w.buf, w.acc)
		w.acc = 0
		w.nacc = 0
	}
}

// Bits writes the low n bits of v, most significant first.
func (w *Writer) Bits(v uint32, n uint) {
	for i := int(n) - 1; i >= 0; i-- {
		bit := uint8(v>>uint(i)) & 1
		w.acc |= bit << (7 - w.nacc)
		w.nacc++
		if w.nacc == 8 {
			w.buf = append(w.buf, w.acc)
			w.acc = 0
			w.nacc = 0
		}
	}
}

// SignedBits writes v as an n-bit two's complement field.
func (w *Writer) SignedBits(v int32, n uint) {
	w.Bits(uint32(v), n)
}

// U8 writes one byte.
func (w *Writer) U8(v uint8) {
	w.Align()
	w.buf = append(w.buf, v)
}

// U16 writes a 16-bit value in the configured order.
func (w *Writer) U16(v uint16) {
	w.Align()
	w.buf = w.order.appender().AppendUint16(w.buf, v)
}

// U32 writes a 32-bit value in the configured order.
func (w *Writer) U32(v uint32) {
	w.Align()
	w.buf = w.order.appender().AppendUint32(w.buf, v)
}

// U64 writes a 64-bit value in the configured order.
func (w *Writer) U64(v uint64) {
	w.Align()
	w.buf = w.order.appender().AppendUint64(w.buf, v)
}

// F32 writes an IEEE-754 single.
func (w *Writer) F32(v float32) { w.U32(math.Float32bits(v)) }

// F64 writes an IEEE-754 double.
func (w *Writer) F64(v float64) { w.U64(math.Float64bits(v)) }

// Raw appends b verbatim.
func (w *Writer) Raw(b []byte) {
	w.Align()
	w.buf = append(w.buf, b...)
}

// CString writes s followed by a NUL terminator.
func (w *Writer) CString(s string) {
	w.Align()
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}

// SignedBitsNeeded returns the smallest field width that holds every value
// in vs as two's complement.
func SignedBitsNeeded(vs ...int32) uint {
	var n uint
	for _, v := range vs {
		need := uint(1)
		for x := v; x != 0 && x != -1; x >>= 1 {
			need++
		}
		if need > n {
			n = need
		}
	}
	return n
}
