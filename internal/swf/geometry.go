package swf

import (
	"fmt"

	"necroverse/internal/bitio"
)

// TwipsPerPixel converts record coordinates to pixels.
const TwipsPerPixel = 20

// MaxRectBits is the widest field a rectangle may declare.
const MaxRectBits = 31

// Rect is a bit-packed rectangle in twips.
type Rect struct {
	XMin, XMax int32
	YMin, YMax int32
	NBits      uint
}

// Width returns the width in pixels.
func (r Rect) Width() float64 { return float64(r.XMax-r.XMin) / TwipsPerPixel }

// Height returns the height in pixels.
func (r Rect) Height() float64 { return float64(r.YMax-r.YMin) / TwipsPerPixel }

func (r Rect) String() string {
	return fmt.Sprintf("[%d,%d %d,%d]", r.XMin, r.YMin, r.XMax, r.YMax)
}

// ReadRect decodes a rectangle at the cursor and aligns afterwards. The
// field width must fit both the 0..31 bound and the remaining input; any
// other value fails with ErrBadRect so the enclosing record can be
// abandoned.
func ReadRect(r *bitio.Reader) (Rect, error) {
	start := r.BitPos()
	n, err := r.Bits(5)
	if err != nil {
		return Rect{}, fmt.Errorf("%w: field width: %w", ErrBadRect, err)
	}
	if n > MaxRectBits {
		return Rect{}, fmt.Errorf("%w: field width %d", ErrBadRect, n)
	}
	if need := 4 * int(n); r.BitPos()+need > r.Len()*8 {
		return Rect{}, fmt.Errorf("%w: %d-bit fields at bit %d need %d bits, %d remain",
			ErrBadRect, n, start, need, r.Len()*8-r.BitPos())
	}
	rect := Rect{NBits: uint(n)}
	for _, p := range []*int32{&rect.XMin, &rect.XMax, &rect.YMin, &rect.YMax} {
		if *p, err = r.SignedBits(uint(n)); err != nil {
			return Rect{}, fmt.Errorf("%w: %w", ErrBadRect, err)
		}
	}
	r.Align()
	return rect, nil
}

// WriteRect encodes rect with the narrowest field width that holds it.
func WriteRect(w *bitio.Writer, rect Rect) {
	n := bitio.SignedBitsNeeded(rect.XMin, rect.XMax, rect.YMin, rect.YMax)
	w.Bits(uint32(n), 5)
	w.SignedBits(rect.XMin, n)
	w.SignedBits(rect.XMax, n)
	w.SignedBits(rect.YMin, n)
	w.SignedBits(rect.YMax, n)
	w.Align()
}

// Matrix is a 2D affine transform. Scale and rotate terms are 16.16 fixed
// point values converted to float; translation is in twips.
type Matrix struct {
	ScaleX, ScaleY   float64
	Rotate0, Rotate1 float64
	TranslateX       int32
	TranslateY       int32
}

// Identity is the transform a matrix without scale or rotate terms starts
// from.
var Identity = Matrix{ScaleX: 1, ScaleY: 1}

// ReadMatrix decodes a MATRIX record and aligns afterwards.
func ReadMatrix(r *bitio.Reader) (Matrix, error) {
	m := Identity
	hasScale, err := r.Bits(1)
	if err != nil {
		return m, err
	}
	if hasScale == 1 {
		n, err := r.Bits(5)
		if err != nil {
			return m, err
		}
		if m.ScaleX, err = r.FixedBits(uint(n)); err != nil {
			return m, err
		}
		if m.ScaleY, err = r.FixedBits(uint(n)); err != nil {
			return m, err
		}
	}
	hasRotate, err := r.Bits(1)
	if err != nil {
		return m, err
	}
	if hasRotate == 1 {
		n, err := r.Bits(5)
		if err != nil {
			return m, err
		}
		if m.Rotate0, err = r.FixedBits(uint(n)); err != nil {
			return m, err
		}
		if m.Rotate1, err = r.FixedBits(uint(n)); err != nil {
			return m, err
		}
	}
	n, err := r.Bits(5)
	if err != nil {
		return m, err
	}
	if m.TranslateX, err = r.SignedBits(uint(n)); err != nil {
		return m, err
	}
	if m.TranslateY, err = r.SignedBits(uint(n)); err != nil {
		return m, err
	}
	r.Align()
	return m, nil
}

// WriteMatrix encodes a translation-only matrix unless scale or rotate
// terms differ from Identity.
func WriteMatrix(w *bitio.Writer, m Matrix) {
	fixed := func(v float64) int32 { return int32(v * 65536) }
	if m.ScaleX != 1 || m.ScaleY != 1 {
		sx, sy := fixed(m.ScaleX), fixed(m.ScaleY)
		n := bitio.SignedBitsNeeded(sx, sy)
		w.Bits(1, 1)
		w.Bits(uint32(n), 5)
		w.SignedBits(sx, n)
		w.SignedBits(sy, n)
	} else {
		w.Bits(0, 1)
	}
	if m.Rotate0 != 0 || m.Rotate1 != 0 {
		r0, r1 := fixed(m.Rotate0), fixed(m.Rotate1)
		n := bitio.SignedBitsNeeded(r0, r1)
		w.Bits(1, 1)
		w.Bits(uint32(n), 5)
		w.SignedBits(r0, n)
		w.SignedBits(r1, n)
	} else {
		w.Bits(0, 1)
	}
	n := bitio.SignedBitsNeeded(m.TranslateX, m.TranslateY)
	if m.TranslateX == 0 && m.TranslateY == 0 {
		n = 0
	}
	w.Bits(uint32(n), 5)
	w.SignedBits(m.TranslateX, n)
	w.SignedBits(m.TranslateY, n)
	w.Align()
}

// ColorTransform multiplies then offsets each channel. Multipliers are
// 8.8 fixed point with 256 meaning 1.0.
type ColorTransform struct {
	RedMult, GreenMult, BlueMult, AlphaMult int32
	RedAdd, GreenAdd, BlueAdd, AlphaAdd     int32
}

// ReadColorTransform decodes a CXFORM, or CXFORMWITHALPHA when alpha is
// set, and aligns afterwards.
func ReadColorTransform(r *bitio.Reader, alpha bool) (ColorTransform, error) {
	ct := ColorTransform{RedMult: 256, GreenMult: 256, BlueMult: 256, AlphaMult: 256}
	flags, err := r.Bits(2)
	if err != nil {
		return ct, err
	}
	n, err := r.Bits(4)
	if err != nil {
		return ct, err
	}
	read := func(dst ...*int32) error {
		for _, p := range dst {
			v, err := r.SignedBits(uint(n))
			if err != nil {
				return err
			}
			*p = v
		}
		return nil
	}
	if flags&1 != 0 {
		terms := []*int32{&ct.RedMult, &ct.GreenMult, &ct.BlueMult}
		if alpha {
			terms = append(terms, &ct.AlphaMult)
		}
		if err := read(terms...); err != nil {
			return ct, err
		}
	}
	if flags&2 != 0 {
		terms := []*int32{&ct.RedAdd, &ct.GreenAdd, &ct.BlueAdd}
		if alpha {
			terms = append(terms, &ct.AlphaAdd)
		}
		if err := read(terms...); err != nil {
			return ct, err
		}
	}
	r.Align()
	return ct, nil
}

// RGB is an opaque color.
type RGB struct{ R, G, B uint8 }

func (c RGB) String() string { return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B) }
