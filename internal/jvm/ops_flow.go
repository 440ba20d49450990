package jvm

// Branch offsets are signed and relative to the first byte of the branching
// opcode.

func registerFlowOps() {
	set(func(_ *Machine, f *Frame, op byte) error {
		off := f.s16()
		v := f.popInt()
		var taken bool
		switch op {
		case OpIfeq:
			taken = v == 0
		case OpIfne:
			taken = v != 0
		case OpIflt:
			taken = v < 0
		case OpIfge:
			taken = v >= 0
		case OpIfgt:
			taken = v > 0
		case OpIfle:
			taken = v <= 0
		}
		if taken {
			f.branch(int32(off))
		}
		return nil
	}, span(OpIfeq, OpIfle)...)
	set(func(_ *Machine, f *Frame, op byte) error {
		off := f.s16()
		b, a := f.popInt(), f.popInt()
		var taken bool
		switch op {
		case OpIfIcmpeq:
			taken = a == b
		case OpIfIcmpne:
			taken = a != b
		case OpIfIcmplt:
			taken = a < b
		case OpIfIcmpge:
			taken = a >= b
		case OpIfIcmpgt:
			taken = a > b
		case OpIfIcmple:
			taken = a <= b
		}
		if taken {
			f.branch(int32(off))
		}
		return nil
	}, span(OpIfIcmpeq, OpIfIcmple)...)
	set(func(_ *Machine, f *Frame, op byte) error {
		off := f.s16()
		b, a := f.pop().AsRef(), f.pop().AsRef()
		if (a == b) == (op == OpIfAcmpeq) {
			f.branch(int32(off))
		}
		return nil
	}, OpIfAcmpeq, OpIfAcmpne)
	set(func(_ *Machine, f *Frame, op byte) error {
		off := f.s16()
		if f.pop().IsNull() == (op == OpIfnull) {
			f.branch(int32(off))
		}
		return nil
	}, OpIfnull, OpIfnonnull)

	set(func(_ *Machine, f *Frame, _ byte) error { f.branch(int32(f.s16())); return nil }, OpGoto)
	set(func(_ *Machine, f *Frame, _ byte) error { f.branch(f.s32()); return nil }, OpGotoW)
	set(func(_ *Machine, f *Frame, op byte) error {
		var off int32
		if op == OpJsr {
			off = int32(f.s16())
		} else {
			off = f.s32()
		}
		f.push(Value{K: KRetAddr, I: int64(f.code.Pos())})
		f.branch(off)
		return nil
	}, OpJsr, OpJsrW)
	set(func(_ *Machine, f *Frame, _ byte) error {
		f.jump(int(f.load(int(f.u8())).I))
		return nil
	}, OpRet)

	set(opTableSwitch, OpTableswitch)
	set(opLookupSwitch, OpLookupswitch)

	set(func(_ *Machine, f *Frame, op byte) error {
		v := f.pop()
		f.finish(coerce(families[op-OpIreturn], v))
		return nil
	}, span(OpIreturn, OpAreturn)...)
	set(func(_ *Machine, f *Frame, _ byte) error { f.finish(Value{}); return nil }, OpReturn)

	set(func(m *Machine, f *Frame, _ byte) error {
		v := f.pop()
		if v.IsNull() {
			return m.throw("java/lang/NullPointerException", "throw of null")
		}
		return m.thrownFrom(v.AsRef())
	}, OpAthrow)
}

func opTableSwitch(_ *Machine, f *Frame, _ byte) error {
	f.align()
	def := f.s32()
	lo, hi := f.s32(), f.s32()
	if hi < lo || int64(hi)-int64(lo) > int64(f.code.Remaining()/4) {
		raise(FaultTruncated, "tableswitch bounds %d..%d at %d", lo, hi, f.start)
	}
	n := int(int64(hi) - int64(lo) + 1)
	offsets := make([]int32, n)
	for i := range offsets {
		offsets[i] = f.s32()
	}
	key := f.popInt()
	if key < lo || key > hi {
		f.branch(def)
		return nil
	}
	f.branch(offsets[key-lo])
	return nil
}

func opLookupSwitch(_ *Machine, f *Frame, _ byte) error {
	f.align()
	def := f.s32()
	n := f.s32()
	if n < 0 || int64(n) > int64(f.code.Remaining()/8) {
		raise(FaultTruncated, "lookupswitch with %d pairs at %d", n, f.start)
	}
	key := f.popInt()
	target := def
	for i := int32(0); i < n; i++ {
		match, off := f.s32(), f.s32()
		if match == key {
			target = off
		}
	}
	f.branch(target)
	return nil
}
