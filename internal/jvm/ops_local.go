package jvm

import (
	"fmt"
)

func registerConstOps() {
	set(func(*Machine, *Frame, byte) error { return nil }, OpNop)
	set(func(_ *Machine, f *Frame, _ byte) error { f.push(Null); return nil }, OpAconstNull)
	set(func(_ *Machine, f *Frame, op byte) error {
		f.push(Int(int32(op) - int32(OpIconst0)))
		return nil
	}, span(OpIconstM1, OpIconst5)...)
	set(func(_ *Machine, f *Frame, op byte) error {
		f.push(Long(int64(op - OpLconst0)))
		return nil
	}, OpLconst0, OpLconst1)
	set(func(_ *Machine, f *Frame, op byte) error {
		f.push(Float(float32(op - OpFconst0)))
		return nil
	}, OpFconst0, OpFconst1, OpFconst2)
	set(func(_ *Machine, f *Frame, op byte) error {
		f.push(Double(float64(op - OpDconst0)))
		return nil
	}, OpDconst0, OpDconst1)
	set(func(_ *Machine, f *Frame, _ byte) error {
		f.push(Int(int32(f.s8())))
		return nil
	}, OpBipush)
	set(func(_ *Machine, f *Frame, _ byte) error {
		f.push(Int(int32(f.s16())))
		return nil
	}, OpSipush)
	set(func(m *Machine, f *Frame, op byte) error {
		var idx uint16
		if op == OpLdc {
			idx = uint16(f.u8())
		} else {
			idx = f.u16()
		}
		v, err := m.loadConstant(f.Method.Class.File.Pool, idx)
		if err != nil {
			m.report(symbolicCode(err), f.Method, f.start, fmt.Sprintf("ldc #%d: %v", idx, err))
			if op == OpLdc2W {
				v = Long(0)
			} else {
				v = Int(0)
			}
		}
		f.push(v)
		return nil
	}, OpLdc, OpLdcW, OpLdc2W)
}

// coerce applies the conversion of a typed load or store family; an
// empty slot becomes zero or null.
func coerce(family byte, v Value) Value {
	switch family {
	case 'i':
		return Int(v.AsInt())
	case 'l':
		return Long(v.AsLong())
	case 'f':
		return Float(v.AsFloat())
	case 'd':
		return Double(v.AsDouble())
	default:
		if v.K == KRef || v.K == KRetAddr {
			return v
		}
		return Null
	}
}

var families = [5]byte{'i', 'l', 'f', 'd', 'a'}

func registerLocalOps() {
	// xload idx / xstore idx; the wide prefix is handled separately.
	set(func(_ *Machine, f *Frame, op byte) error {
		f.push(coerce(families[op-OpIload], f.load(int(f.u8()))))
		return nil
	}, span(OpIload, OpAload)...)
	set(func(_ *Machine, f *Frame, op byte) error {
		n := op - OpIload0
		f.push(coerce(families[n/4], f.load(int(n%4))))
		return nil
	}, span(OpIload0, OpAload3)...)
	set(func(_ *Machine, f *Frame, op byte) error {
		idx := int(f.u8())
		f.store(idx, coerce(families[op-OpIstore], f.pop()))
		return nil
	}, span(OpIstore, OpAstore)...)
	set(func(_ *Machine, f *Frame, op byte) error {
		n := op - OpIstore0
		f.store(int(n%4), coerce(families[n/4], f.pop()))
		return nil
	}, span(OpIstore0, OpAstore3)...)
	set(func(_ *Machine, f *Frame, _ byte) error {
		idx := int(f.u8())
		delta := int32(f.s8())
		f.store(idx, Int(f.load(idx).AsInt()+delta))
		return nil
	}, OpIinc)
	set(opWide, OpWide)
}

// opWide executes the following load, store, iinc or ret with a 16-bit
// local index.
func opWide(_ *Machine, f *Frame, _ byte) error {
	op := f.u8()
	idx := int(f.u16())
	switch {
	case op >= OpIload && op <= OpAload:
		f.push(coerce(families[op-OpIload], f.load(idx)))
	case op >= OpIstore && op <= OpAstore:
		f.store(idx, coerce(families[op-OpIstore], f.pop()))
	case op == OpIinc:
		delta := int32(f.s16())
		f.store(idx, Int(f.load(idx).AsInt()+delta))
	case op == OpRet:
		f.jump(int(f.load(idx).I))
	default:
		raise(FaultTruncated, "wide prefix on %s at %d", OpName(op), f.start)
	}
	return nil
}
