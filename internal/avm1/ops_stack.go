package avm1

import (
	"fmt"
	"math"

	"necroverse/internal/diag"
)

// Push value types.
const (
	pushString    = 0
	pushFloat     = 1
	pushNull      = 2
	pushUndefined = 3
	pushRegister  = 4
	pushBool      = 5
	pushDouble    = 6
	pushInt       = 7
	pushConst8    = 8
	pushConst16   = 9
)

func registerStackActions() {
	set(opPush, ActPush)
	set(func(m *Machine, f *frame, _ Action) error {
		m.pop(f)
		return nil
	}, ActPop)
	set(func(m *Machine, f *frame, _ Action) error {
		m.push(f, m.peek(f))
		return nil
	}, ActPushDuplicate)
	set(func(m *Machine, f *frame, _ Action) error {
		a, b := m.pop(f), m.pop(f)
		m.push(f, a)
		m.push(f, b)
		return nil
	}, ActStackSwap)
	set(opStoreRegister, ActStoreRegister)
	set(opConstantPool, ActConstantPool)
}

func opPush(m *Machine, f *frame, a Action) error {
	r := payload(a)
	for r.Remaining() > 0 {
		typ := must(r.U8())
		switch typ {
		case pushString:
			m.push(f, String(m.cstring(f, r, a)))
		case pushFloat:
			m.push(f, Number(float64(must(r.F32()))))
		case pushNull:
			m.push(f, Null)
		case pushUndefined:
			m.push(f, Undefined)
		case pushRegister:
			m.push(f, m.register(f, must(r.U8())))
		case pushBool:
			m.push(f, Bool(must(r.U8()) != 0))
		case pushDouble:
			hi := must(r.U32())
			lo := must(r.U32())
			m.push(f, Number(math.Float64frombits(uint64(hi)<<32|uint64(lo))))
		case pushInt:
			m.push(f, Number(float64(must(r.I32()))))
		case pushConst8:
			m.push(f, m.constant(f, int(must(r.U8()))))
		case pushConst16:
			m.push(f, m.constant(f, int(must(r.U16()))))
		default:
			fault(FaultMalformed, "Push at %d: unknown value type %d", f.pc, typ)
		}
	}
	return nil
}

func (m *Machine) register(f *frame, i uint8) Value {
	if int(i) >= len(f.regs) {
		return Undefined
	}
	return f.regs[i]
}

func (m *Machine) constant(f *frame, i int) Value {
	if i >= len(f.pool) {
		m.reportAt(diag.SymOutOfRange, f.offset, f.pc, fmt.Sprintf("%s: constant %d outside pool of %d", f.unit, i, len(f.pool)))
		return Undefined
	}
	return String(f.pool[i])
}

func opStoreRegister(m *Machine, f *frame, a Action) error {
	i := must(payload(a).U8())
	if int(i) < len(f.regs) {
		f.regs[i] = m.peek(f)
	}
	return nil
}

func opConstantPool(m *Machine, f *frame, a Action) error {
	r := payload(a)
	n := must(r.U16())
	pool := make([]string, 0, n)
	for i := 0; i < int(n); i++ {
		pool = append(pool, m.cstring(f, r, a))
	}
	f.pool = pool
	return nil
}
