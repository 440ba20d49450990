package avm1

import (
	"errors"
	"fmt"

	"necroverse/internal/heap"
)

// Try flags.
const (
	tryHasCatch      = 0x1
	tryHasFinally    = 0x2
	tryCatchRegister = 0x4
)

func registerFlowActions() {
	set(func(m *Machine, f *frame, a Action) error {
		f.next = a.Next() + int(must(payload(a).I16()))
		return nil
	}, ActJump)
	set(func(m *Machine, f *frame, a Action) error {
		off := int(must(payload(a).I16()))
		if m.pop(f).ToBool(m.version) {
			f.next = a.Next() + off
		}
		return nil
	}, ActIf)
	set(func(m *Machine, f *frame, _ Action) error {
		f.ret = m.pop(f)
		f.done = true
		return nil
	}, ActReturn)
	set(func(m *Machine, f *frame, _ Action) error {
		v := m.pop(f)
		return &Thrown{Value: v, Text: m.ToString(v)}
	}, ActThrow)
	set(opWith, ActWith)
	set(opTry, ActTry)
	set(opDefineFunction, ActDefineFunction)
	set(opDefineFunction2, ActDefineFunction2)
	set(func(m *Machine, f *frame, _ Action) error {
		target := m.pop(f)
		m.warn(fmt.Sprintf("Call of frame %s not supported", m.ToString(target)))
		return nil
	}, ActCall)
}

// opWith pushes an object on the scope chain for the block that follows.
// The scope is popped however the block exits.
func opWith(m *Machine, f *frame, a Action) error {
	size := int(must(payload(a).U16()))
	start, end := bodyRange(f, a, size)
	obj := m.pop(f)
	if obj.K != KObject {
		m.warn("With on " + m.TypeOf(obj) + "; block runs without scope")
		f.next = start
		return nil
	}
	depth := len(f.scope)
	f.scope = append(f.scope, obj.Ref)
	defer func() { f.scope = f.scope[:depth] }()
	return m.block(f, start, end, end)
}

// opTry runs the try block, hands a thrown value to the catch block and
// always runs the finally block. A throw or return inside finally wins
// over whatever the earlier blocks did.
func opTry(m *Machine, f *frame, a Action) error {
	r := payload(a)
	flags := must(r.U8())
	trySize := int(must(r.U16()))
	catchSize := int(must(r.U16()))
	finallySize := int(must(r.U16()))
	var catchName string
	var catchReg uint8
	if flags&tryCatchRegister != 0 {
		catchReg = must(r.U8())
	} else {
		catchName = m.cstring(f, r, a)
	}
	tryStart, tryEnd := bodyRange(f, a, trySize)
	catchEnd := tryEnd + catchSize
	finallyEnd := catchEnd + finallySize
	if finallyEnd > len(f.code) {
		fault(FaultTruncated, "Try at %d declares blocks past the end of the unit", f.pc)
	}

	depth := len(f.scope)
	err := m.block(f, tryStart, tryEnd, finallyEnd)
	f.scope = f.scope[:depth]

	var th *Thrown
	if flags&tryHasCatch != 0 && errors.As(err, &th) {
		if flags&tryCatchRegister != 0 {
			if int(catchReg) < len(f.regs) {
				f.regs[catchReg] = th.Value
			}
		} else {
			m.SetMember(Object(f.locals), catchName, th.Value)
		}
		err = m.block(f, tryEnd, catchEnd, finallyEnd)
		f.scope = f.scope[:depth]
	}

	if flags&tryHasFinally != 0 && finallySize > 0 {
		next, done, ret := f.next, f.done, f.ret
		f.done = false
		if ferr := m.block(f, catchEnd, finallyEnd, finallyEnd); ferr != nil {
			return ferr
		}
		if f.done || f.next != finallyEnd {
			return nil
		}
		f.next, f.done, f.ret = next, done, ret
	}
	return err
}

// defineFunction closes fn over the current scope chain and constant
// pool. Named functions become locals; anonymous ones are pushed.
func (m *Machine) defineFunction(f *frame, fn *Function, start, end int) {
	fn.Body = f.code[start:end:end]
	fn.Offset = f.offset + start
	fn.Unit = f.unit
	fn.Pool = f.pool
	fn.Scope = append([]heap.ID(nil), f.scope...)
	id := m.newFunction(fn)
	f.next = end
	if fn.Name == "" {
		m.push(f, Object(id))
		return
	}
	m.SetMember(Object(f.locals), fn.Name, Object(id))
}

func opDefineFunction(m *Machine, f *frame, a Action) error {
	r := payload(a)
	fn := &Function{Name: m.cstring(f, r, a)}
	n := int(must(r.U16()))
	for i := 0; i < n; i++ {
		fn.Params = append(fn.Params, Param{Name: m.cstring(f, r, a)})
	}
	start, end := bodyRange(f, a, int(must(r.U16())))
	m.defineFunction(f, fn, start, end)
	return nil
}

func opDefineFunction2(m *Machine, f *frame, a Action) error {
	r := payload(a)
	fn := &Function{Name: m.cstring(f, r, a), V2: true}
	n := int(must(r.U16()))
	fn.Registers = int(must(r.U8()))
	fn.Flags = must(r.U16())
	for i := 0; i < n; i++ {
		reg := must(r.U8())
		fn.Params = append(fn.Params, Param{Register: reg, Name: m.cstring(f, r, a)})
	}
	start, end := bodyRange(f, a, int(must(r.U16())))
	m.defineFunction(f, fn, start, end)
	return nil
}
