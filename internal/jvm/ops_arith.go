package jvm

import (
	"math"
)

func registerArithOps() {
	// Each arithmetic group is laid out i, l, f, d.
	type binop struct {
		base byte
		i    func(a, b int32) int32
		l    func(a, b int64) int64
		f    func(a, b float32) float32
		d    func(a, b float64) float64
	}
	groups := []binop{
		{OpIadd, func(a, b int32) int32 { return a + b }, func(a, b int64) int64 { return a + b },
			func(a, b float32) float32 { return a + b }, func(a, b float64) float64 { return a + b }},
		{OpIsub, func(a, b int32) int32 { return a - b }, func(a, b int64) int64 { return a - b },
			func(a, b float32) float32 { return a - b }, func(a, b float64) float64 { return a - b }},
		{OpImul, func(a, b int32) int32 { return a * b }, func(a, b int64) int64 { return a * b },
			func(a, b float32) float32 { return a * b }, func(a, b float64) float64 { return a * b }},
		{OpIdiv, func(a, b int32) int32 { return a / b }, func(a, b int64) int64 { return a / b },
			func(a, b float32) float32 { return a / b }, func(a, b float64) float64 { return a / b }},
		{OpIrem, func(a, b int32) int32 { return a % b }, func(a, b int64) int64 { return a % b },
			func(a, b float32) float32 { return float32(math.Mod(float64(a), float64(b))) }, math.Mod},
	}
	for _, g := range groups {
		integral := g.base == OpIdiv || g.base == OpIrem
		set(func(m *Machine, f *Frame, _ byte) error {
			b, a := f.popInt(), f.popInt()
			if integral && b == 0 {
				return m.throw("java/lang/ArithmeticException", "/ by zero")
			}
			f.push(Int(g.i(a, b)))
			return nil
		}, g.base)
		set(func(m *Machine, f *Frame, _ byte) error {
			b, a := f.popLong(), f.popLong()
			if integral && b == 0 {
				return m.throw("java/lang/ArithmeticException", "/ by zero")
			}
			f.push(Long(g.l(a, b)))
			return nil
		}, g.base+1)
		set(func(_ *Machine, f *Frame, _ byte) error {
			b, a := f.popFloat(), f.popFloat()
			f.push(Float(g.f(a, b)))
			return nil
		}, g.base+2)
		set(func(_ *Machine, f *Frame, _ byte) error {
			b, a := f.popDouble(), f.popDouble()
			f.push(Double(g.d(a, b)))
			return nil
		}, g.base+3)
	}

	set(func(_ *Machine, f *Frame, _ byte) error { f.push(Int(-f.popInt())); return nil }, OpIneg)
	set(func(_ *Machine, f *Frame, _ byte) error { f.push(Long(-f.popLong())); return nil }, OpLneg)
	set(func(_ *Machine, f *Frame, _ byte) error { f.push(Float(-f.popFloat())); return nil }, OpFneg)
	set(func(_ *Machine, f *Frame, _ byte) error { f.push(Double(-f.popDouble())); return nil }, OpDneg)

	set(func(_ *Machine, f *Frame, op byte) error {
		s := uint32(f.popInt()) & 0x1f
		v := f.popInt()
		switch op {
		case OpIshl:
			v <<= s
		case OpIshr:
			v >>= s
		default:
			v = int32(uint32(v) >> s)
		}
		f.push(Int(v))
		return nil
	}, OpIshl, OpIshr, OpIushr)
	set(func(_ *Machine, f *Frame, op byte) error {
		s := uint64(f.popInt()) & 0x3f
		v := f.popLong()
		switch op {
		case OpLshl:
			v <<= s
		case OpLshr:
			v >>= s
		default:
			v = int64(uint64(v) >> s)
		}
		f.push(Long(v))
		return nil
	}, OpLshl, OpLshr, OpLushr)

	set(func(_ *Machine, f *Frame, op byte) error {
		b, a := f.popInt(), f.popInt()
		switch op {
		case OpIand:
			f.push(Int(a & b))
		case OpIor:
			f.push(Int(a | b))
		default:
			f.push(Int(a ^ b))
		}
		return nil
	}, OpIand, OpIor, OpIxor)
	set(func(_ *Machine, f *Frame, op byte) error {
		b, a := f.popLong(), f.popLong()
		switch op {
		case OpLand:
			f.push(Long(a & b))
		case OpLor:
			f.push(Long(a | b))
		default:
			f.push(Long(a ^ b))
		}
		return nil
	}, OpLand, OpLor, OpLxor)

	set(func(_ *Machine, f *Frame, _ byte) error {
		b, a := f.popLong(), f.popLong()
		f.push(Int(cmp3(a < b, a > b)))
		return nil
	}, OpLcmp)
	set(func(_ *Machine, f *Frame, op byte) error {
		b, a := f.popDouble(), f.popDouble()
		if math.IsNaN(a) || math.IsNaN(b) {
			if op == OpFcmpg || op == OpDcmpg {
				f.push(Int(1))
			} else {
				f.push(Int(-1))
			}
			return nil
		}
		f.push(Int(cmp3(a < b, a > b)))
		return nil
	}, OpFcmpl, OpFcmpg, OpDcmpl, OpDcmpg)
}

func cmp3(less, greater bool) int32 {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}

func registerConvOps() {
	set(func(_ *Machine, f *Frame, _ byte) error { f.push(Long(int64(f.popInt()))); return nil }, OpI2l)
	set(func(_ *Machine, f *Frame, _ byte) error { f.push(Float(float32(f.popInt()))); return nil }, OpI2f)
	set(func(_ *Machine, f *Frame, _ byte) error { f.push(Double(float64(f.popInt()))); return nil }, OpI2d)
	set(func(_ *Machine, f *Frame, _ byte) error { f.push(Int(int32(f.popLong()))); return nil }, OpL2i)
	set(func(_ *Machine, f *Frame, _ byte) error { f.push(Float(float32(f.popLong()))); return nil }, OpL2f)
	set(func(_ *Machine, f *Frame, _ byte) error { f.push(Double(float64(f.popLong()))); return nil }, OpL2d)
	set(func(_ *Machine, f *Frame, _ byte) error { f.push(Int(f2i(float64(f.popFloat())))); return nil }, OpF2i)
	set(func(_ *Machine, f *Frame, _ byte) error { f.push(Long(f2l(float64(f.popFloat())))); return nil }, OpF2l)
	set(func(_ *Machine, f *Frame, _ byte) error { f.push(Double(float64(f.popFloat()))); return nil }, OpF2d)
	set(func(_ *Machine, f *Frame, _ byte) error { f.push(Int(f2i(f.popDouble()))); return nil }, OpD2i)
	set(func(_ *Machine, f *Frame, _ byte) error { f.push(Long(f2l(f.popDouble()))); return nil }, OpD2l)
	set(func(_ *Machine, f *Frame, _ byte) error { f.push(Float(float32(f.popDouble()))); return nil }, OpD2f)
	set(func(_ *Machine, f *Frame, _ byte) error { f.push(Int(int32(int8(f.popInt())))); return nil }, OpI2b)
	set(func(_ *Machine, f *Frame, _ byte) error { f.push(Int(int32(uint16(f.popInt())))); return nil }, OpI2c)
	set(func(_ *Machine, f *Frame, _ byte) error { f.push(Int(int32(int16(f.popInt())))); return nil }, OpI2s)
}
