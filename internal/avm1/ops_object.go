package avm1

import (
	"fmt"

	"necroverse/internal/diag"
	"necroverse/internal/heap"
)

func registerObjectActions() {
	set(func(m *Machine, f *frame, _ Action) error {
		name := m.ToString(m.pop(f))
		m.push(f, m.getVariable(f, name))
		return nil
	}, ActGetVariable)
	set(func(m *Machine, f *frame, _ Action) error {
		v := m.pop(f)
		m.setVariable(f, m.ToString(m.pop(f)), v)
		return nil
	}, ActSetVariable)
	set(func(m *Machine, f *frame, _ Action) error {
		name := m.ToString(m.pop(f))
		obj := m.pop(f)
		m.push(f, m.GetMember(obj, name))
		return nil
	}, ActGetMember)
	set(func(m *Machine, f *frame, _ Action) error {
		v := m.pop(f)
		name := m.ToString(m.pop(f))
		m.SetMember(m.pop(f), name, v)
		return nil
	}, ActSetMember)
	set(func(m *Machine, f *frame, _ Action) error {
		v := m.pop(f)
		m.SetMember(Object(f.locals), m.ToString(m.pop(f)), v)
		return nil
	}, ActDefineLocal)
	set(func(m *Machine, f *frame, _ Action) error {
		name := m.ToString(m.pop(f))
		if _, ok := m.heap.GetField(f.locals, name); !ok {
			m.SetMember(Object(f.locals), name, Undefined)
		}
		return nil
	}, ActDefineLocal2)
	set(func(m *Machine, f *frame, _ Action) error {
		name := m.ToString(m.pop(f))
		m.push(f, Bool(m.DeleteMember(m.pop(f), name)))
		return nil
	}, ActDelete)
	set(func(m *Machine, f *frame, _ Action) error {
		name := m.ToString(m.pop(f))
		for i := len(f.scope) - 1; i >= 0; i-- {
			if m.heap.DeleteField(f.scope[i], name) {
				m.push(f, Bool(true))
				return nil
			}
		}
		m.push(f, Bool(false))
		return nil
	}, ActDelete2)

	set(func(m *Machine, f *frame, _ Action) error {
		n := m.popCount(f)
		m.push(f, Object(m.NewArray(m.popArgs(f, n))))
		return nil
	}, ActInitArray)
	set(func(m *Machine, f *frame, _ Action) error {
		n := m.popCount(f)
		obj := m.NewObject()
		for i := 0; i < n; i++ {
			v := m.pop(f)
			m.SetMember(Object(obj), m.ToString(m.pop(f)), v)
		}
		m.push(f, Object(obj))
		return nil
	}, ActInitObject)

	set(func(m *Machine, f *frame, _ Action) error {
		m.push(f, String(m.TypeOf(m.pop(f))))
		return nil
	}, ActTypeOf)
	set(func(m *Machine, f *frame, _ Action) error {
		ctor := m.pop(f)
		obj := m.pop(f)
		m.push(f, Bool(m.instanceOf(obj, ctor) || m.implements(obj, ctor)))
		return nil
	}, ActInstanceOf)
	set(func(m *Machine, f *frame, _ Action) error {
		obj := m.pop(f)
		ctor := m.pop(f)
		if m.instanceOf(obj, ctor) || m.implements(obj, ctor) {
			m.push(f, obj)
			return nil
		}
		m.push(f, Null)
		return nil
	}, ActCastOp)
	set(opExtends, ActExtends)
	set(opImplements, ActImplementsOp)
	set(func(m *Machine, f *frame, _ Action) error {
		m.enumerate(f, m.getVariable(f, m.ToString(m.pop(f))))
		return nil
	}, ActEnumerate)
	set(func(m *Machine, f *frame, _ Action) error {
		m.enumerate(f, m.pop(f))
		return nil
	}, ActEnumerate2)
	set(func(m *Machine, f *frame, _ Action) error {
		if p, ok := m.targetPath(m.pop(f)); ok {
			m.push(f, String(p))
			return nil
		}
		m.push(f, Undefined)
		return nil
	}, ActTargetPath)

	set(func(m *Machine, f *frame, _ Action) error {
		name := m.ToString(m.pop(f))
		args := m.popArgs(f, m.popCount(f))
		fn := m.getVariable(f, name)
		if _, ok := m.function(fn); !ok {
			m.reportAt(diag.IntUnresolvedCall, f.offset, f.pc, fmt.Sprintf("%s: %s is not a function", f.unit, name))
			m.push(f, Undefined)
			return nil
		}
		v, err := m.callValue(fn, Undefined, args)
		if err != nil {
			return err
		}
		m.push(f, v)
		return nil
	}, ActCallFunction)
	set(func(m *Machine, f *frame, _ Action) error {
		name := m.pop(f)
		obj := m.pop(f)
		args := m.popArgs(f, m.popCount(f))
		fn, this := obj, Undefined
		if !name.IsUndefined() && !(name.K == KString && name.S == "") {
			fn, this = m.GetMember(obj, m.ToString(name)), obj
		}
		if _, ok := m.function(fn); !ok {
			m.reportAt(diag.IntUnresolvedCall, f.offset, f.pc, fmt.Sprintf("%s: method %s on %s is not a function", f.unit, m.ToString(name), m.TypeOf(obj)))
			m.push(f, Undefined)
			return nil
		}
		v, err := m.callValue(fn, this, args)
		if err != nil {
			return err
		}
		m.push(f, v)
		return nil
	}, ActCallMethod)
	set(func(m *Machine, f *frame, _ Action) error {
		name := m.ToString(m.pop(f))
		args := m.popArgs(f, m.popCount(f))
		v, err := m.construct(m.getVariable(f, name), args)
		if err != nil {
			return err
		}
		m.push(f, v)
		return nil
	}, ActNewObject)
	set(func(m *Machine, f *frame, _ Action) error {
		name := m.pop(f)
		obj := m.pop(f)
		args := m.popArgs(f, m.popCount(f))
		ctor := obj
		if !name.IsUndefined() && !(name.K == KString && name.S == "") {
			ctor = m.GetMember(obj, m.ToString(name))
		}
		v, err := m.construct(ctor, args)
		if err != nil {
			return err
		}
		m.push(f, v)
		return nil
	}, ActNewMethod)
}

// enumerate pushes a null terminator followed by every enumerable name.
func (m *Machine) enumerate(f *frame, obj Value) {
	m.push(f, Null)
	if obj.K != KObject {
		return
	}
	for _, name := range m.enumerable(obj.Ref) {
		m.push(f, String(name))
	}
}

// opExtends pops the superclass then the subclass and links the
// subclass prototype to the superclass prototype.
func opExtends(m *Machine, f *frame, _ Action) error {
	super := m.pop(f)
	sub := m.pop(f)
	if sub.K != KObject || super.K != KObject {
		return nil
	}
	var parent heap.ID
	if p := m.GetMember(super, "prototype"); p.K == KObject {
		parent = p.Ref
	}
	proto := m.newObjectWith("Object", parent)
	m.heap.SetField(proto, "__constructor__", super)
	m.heap.SetField(proto, "constructor", sub)
	m.SetMember(sub, "prototype", Object(proto))
	return nil
}

// interfacesKey lists the interfaces a constructor implements.
const interfacesKey = "__interfaces__"

func opImplements(m *Machine, f *frame, _ Action) error {
	ctor := m.pop(f)
	n := m.popCount(f)
	ifaces := m.popArgs(f, n)
	if ctor.K != KObject {
		return nil
	}
	proto := m.GetMember(ctor, "prototype")
	m.SetMember(proto, interfacesKey, Object(m.NewArray(ifaces)))
	return nil
}

// implements reports whether obj's prototype chain declares ctor as an
// interface.
func (m *Machine) implements(obj, iface Value) bool {
	if obj.K != KObject || iface.K != KObject {
		return false
	}
	list, ok := m.arrayOf(m.GetMember(obj, interfacesKey))
	if !ok {
		return false
	}
	for _, v := range list {
		if StrictEquals(v, iface) {
			return true
		}
	}
	return false
}
