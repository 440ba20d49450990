package jvm

import (
	"errors"
	"fmt"
	"strings"

	"necroverse/internal/classfile"
	"necroverse/internal/descriptor"
	"necroverse/internal/diag"
)

// symbolicCode picks the diagnostic for a failed pool lookup.
func symbolicCode(err error) diag.Code {
	var le *classfile.LookupError
	if errors.As(err, &le) {
		switch le.Failure {
		case classfile.LookupNotPrimary:
			return diag.SymWideSlot
		case classfile.LookupWrongTag:
			return diag.SymWrongTag
		}
		return diag.SymOutOfRange
	}
	return diag.SymUnresolvedMember
}

func registerObjectOps() {
	set(opGetStatic, OpGetstatic)
	set(opPutStatic, OpPutstatic)
	set(opGetField, OpGetfield)
	set(opPutField, OpPutfield)
	set(opInvoke, OpInvokevirtual, OpInvokespecial, OpInvokestatic, OpInvokeinterface)
	set(opInvokeDynamic, OpInvokedynamic)
	set(opNew, OpNew)
	set(opCheckCast, OpCheckcast, OpInstanceof)
	set(func(_ *Machine, f *Frame, _ byte) error { f.pop(); return nil }, OpMonitorenter, OpMonitorexit)
}

// memberRef resolves a field or method reference, reporting failures once.
func (m *Machine) memberRef(f *Frame, idx uint16) (classfile.MemberRef, bool) {
	ref, err := f.Method.Class.File.Pool.MemberRef(idx)
	if err != nil {
		m.report(symbolicCode(err), f.Method, f.start, fmt.Sprintf("%s #%d: %v", OpName(f.Method.Code.Bytecode[f.start]), idx, err))
		return ref, false
	}
	return ref, true
}

func (m *Machine) fieldType(f *Frame, desc string) descriptor.Type {
	t, err := m.reg.FieldType(desc)
	if err != nil {
		m.report(diag.IntBadSignature, f.Method, f.start, err.Error())
	}
	return t
}

// staticSlot finds the class that declares a static field and initializes
// it. A nil class means the field is unknown to the registry.
func (m *Machine) staticSlot(ref classfile.MemberRef) (*Class, error) {
	owner, fld := m.reg.FindField(ref.Class, ref.Name)
	if owner == nil || !fld.Static {
		return nil, nil
	}
	return owner, m.initClass(owner)
}

func opGetStatic(m *Machine, f *Frame, _ byte) error {
	ref, ok := m.memberRef(f, f.u16())
	if !ok {
		f.push(Int(0))
		return nil
	}
	t := m.fieldType(f, ref.Descriptor)
	owner, err := m.staticSlot(ref)
	if err != nil {
		return err
	}
	if owner != nil {
		v, ok := owner.statics[ref.Name]
		if !ok {
			v = Zero(t)
		}
		f.push(v)
		return nil
	}
	if fn, ok := m.natives.Field(ref.Class, ref.Name); ok {
		// Host statics are created once and cached like declared ones.
		host := m.hostStatics(ref.Class)
		v, ok := host[ref.Name]
		if !ok {
			v = fn(m)
			host[ref.Name] = v
		}
		f.push(v)
		return nil
	}
	m.report(diag.IntUnresolvedField, f.Method, f.start, "unresolved static field "+ref.String())
	f.push(Zero(t))
	return nil
}

func (m *Machine) hostStatics(class string) map[string]Value {
	c, ok := m.reg.Lookup(class)
	if !ok {
		c = &Class{Name: class, Super: builtinSupers[class], statics: make(map[string]Value), init: initialized}
		m.reg.classes[class] = c
	}
	if c.statics == nil {
		c.statics = make(map[string]Value)
	}
	return c.statics
}

func opPutStatic(m *Machine, f *Frame, _ byte) error {
	ref, ok := m.memberRef(f, f.u16())
	v := f.pop()
	if !ok {
		return nil
	}
	owner, err := m.staticSlot(ref)
	if err != nil {
		return err
	}
	if owner == nil {
		m.report(diag.IntUnresolvedField, f.Method, f.start, "unresolved static field "+ref.String())
		owner = m.reg.classes[ref.Class]
		if owner == nil {
			return nil
		}
	}
	owner.statics[ref.Name] = v
	return nil
}

func opGetField(m *Machine, f *Frame, _ byte) error {
	ref, ok := m.memberRef(f, f.u16())
	obj := f.pop()
	if !ok {
		f.push(Int(0))
		return nil
	}
	t := m.fieldType(f, ref.Descriptor)
	if obj.IsNull() {
		return m.throw("java/lang/NullPointerException", "getfield "+ref.Name+" on null")
	}
	v, ok := m.heap.GetField(obj.AsRef(), ref.Name)
	if !ok {
		if _, fld := m.reg.FindField(m.heap.TypeOf(obj.AsRef()), ref.Name); fld == nil {
			m.report(diag.IntUnresolvedField, f.Method, f.start, "unresolved field "+ref.String())
		}
		v = Zero(t)
	}
	f.push(v)
	return nil
}

func opPutField(m *Machine, f *Frame, _ byte) error {
	ref, ok := m.memberRef(f, f.u16())
	v, obj := f.pop(), f.pop()
	if !ok {
		return nil
	}
	if obj.IsNull() {
		return m.throw("java/lang/NullPointerException", "putfield "+ref.Name+" on null")
	}
	m.heap.SetField(obj.AsRef(), ref.Name, v)
	return nil
}

func opNew(m *Machine, f *Frame, _ byte) error {
	idx := f.u16()
	name, err := f.Method.Class.File.Pool.ClassName(idx)
	if err != nil {
		m.report(symbolicCode(err), f.Method, f.start, fmt.Sprintf("new #%d: %v", idx, err))
	}
	if c, ok := m.reg.Lookup(name); ok {
		if err := m.initClass(c); err != nil {
			return err
		}
	}
	f.push(m.NewObject(name))
	return nil
}

// NewObject allocates an instance of class holding its field defaults.
// No constructor runs.
func (m *Machine) NewObject(class string) Value {
	return Ref(m.heap.AllocateWith(class, m.reg.InstanceDefaults(class)))
}

// IsInstance reports whether the object v may be treated as class.
func (m *Machine) IsInstance(v Value, class string) bool {
	if v.IsNull() {
		return false
	}
	return m.reg.IsAssignable(m.heap.TypeOf(v.AsRef()), class)
}

func opCheckCast(m *Machine, f *Frame, op byte) error {
	idx := f.u16()
	name, err := f.Method.Class.File.Pool.ClassName(idx)
	if err != nil {
		m.report(symbolicCode(err), f.Method, f.start, fmt.Sprintf("%s #%d: %v", OpName(op), idx, err))
	}
	v := f.pop()
	if op == OpInstanceof {
		f.push(Bool(err == nil && m.IsInstance(v, name)))
		return nil
	}
	if v.IsNull() || err != nil || m.IsInstance(v, name) {
		f.push(v)
		return nil
	}
	from := strings.ReplaceAll(m.heap.TypeOf(v.AsRef()), "/", ".")
	return m.throw("java/lang/ClassCastException", fmt.Sprintf("class %s cannot be cast to class %s", from, strings.ReplaceAll(name, "/", ".")))
}

// opInvoke handles the four invoke forms. Lookup order: bytecode along the
// class hierarchy, then natives along the same chain. An unresolved target
// is reported and yields the zero value of the declared return type.
func opInvoke(m *Machine, f *Frame, op byte) error {
	idx := f.u16()
	if op == OpInvokeinterface {
		f.u8()
		f.u8()
	}
	ref, ok := m.memberRef(f, idx)
	if !ok {
		return nil
	}
	sig, err := m.reg.Signature(ref.Descriptor)
	if err != nil {
		m.report(diag.IntBadSignature, f.Method, f.start, fmt.Sprintf("%s: %v", ref, err))
	}
	n := len(sig.Params)
	if op != OpInvokestatic {
		n++
	}
	args := f.popN(n)

	start := ref.Class
	if op == OpInvokevirtual || op == OpInvokeinterface {
		recv := args[0]
		if recv.IsNull() {
			return m.throw("java/lang/NullPointerException", "invoke "+ref.Name+" on null")
		}
		if rt := m.heap.TypeOf(recv.AsRef()); rt != "" {
			start = rt
		}
	}

	var target *Method
	if op == OpInvokespecial || op == OpInvokestatic {
		target = m.reg.FindMethod(ref.Class, ref.Name, ref.Descriptor)
	} else {
		target = m.reg.FindMethod(start, ref.Name, ref.Descriptor)
		if target == nil {
			target = m.reg.FindMethod(ref.Class, ref.Name, ref.Descriptor)
		}
	}
	if target != nil && op == OpInvokestatic {
		if err := m.initClass(target.Class); err != nil {
			return err
		}
	}

	var ret Value
	switch {
	case target != nil && target.Code != nil:
		ret, err = m.callNested(f, target, args, sig.Return)
	default:
		fn, owner := m.findNative(start, ref.Class, ref.Name, ref.Descriptor)
		if fn == nil {
			m.report(diag.IntUnresolvedCall, f.Method, f.start, "unresolved call "+ref.String())
			ret = Zero(sig.Return)
			break
		}
		if gerr := m.guard.Enter(owner, ref.Name); gerr != nil {
			m.report(guardDiag(gerr), f.Method, f.start, gerr.Error())
			ret = Zero(sig.Return)
			break
		}
		ret, err = fn(m, sig, args)
		m.guard.Leave()
	}
	if err != nil {
		return err
	}
	if sig.Return.Kind != descriptor.Void {
		if ret.K == KVoid {
			ret = Zero(sig.Return)
		}
		f.push(ret)
	}
	return nil
}

// findNative walks the hierarchy from start, then from declared.
func (m *Machine) findNative(start, declared, name, desc string) (Native, string) {
	for _, from := range []string{start, declared} {
		seen := 0
		for cur := from; cur != "" && seen < 256; cur = m.reg.SuperOf(cur) {
			seen++
			if fn, ok := m.natives.Lookup(cur, name, desc); ok {
				return fn, cur
			}
		}
	}
	return nil, ""
}

// opInvokeDynamic supports the string concatenation bootstrap; other call
// sites are reported and produce the zero value of their return type.
func opInvokeDynamic(m *Machine, f *Frame, _ byte) error {
	idx := f.u16()
	f.u8()
	f.u8()
	pool := f.Method.Class.File.Pool
	e, err := pool.Entry(idx)
	if err != nil || e.Tag != classfile.TagInvokeDynamic {
		m.report(diag.SymWrongTag, f.Method, f.start, fmt.Sprintf("invokedynamic #%d is not a call site", idx))
		return nil
	}
	name, desc, err := pool.NameAndType(e.B)
	if err != nil {
		m.report(symbolicCode(err), f.Method, f.start, err.Error())
		return nil
	}
	sig, err := m.reg.Signature(desc)
	if err != nil {
		m.report(diag.IntBadSignature, f.Method, f.start, err.Error())
	}
	args := f.popN(len(sig.Params))

	if name == "makeConcatWithConstants" {
		recipe := ""
		var statics []uint16
		if bms := f.Method.Class.File.Bootstraps; int(e.A) < len(bms) && len(bms[e.A].Args) > 0 {
			recipe, _ = pool.StringLiteral(bms[e.A].Args[0])
			statics = bms[e.A].Args[1:]
		}
		f.push(m.NewString(m.concat(recipe, statics, pool, sig, args)))
		return nil
	}
	if name == "makeConcat" {
		f.push(m.NewString(m.concat("", nil, pool, sig, args)))
		return nil
	}
	m.report(diag.IntUnresolvedCall, f.Method, f.start, "unsupported invokedynamic "+name+desc)
	if sig.Return.Kind != descriptor.Void {
		f.push(Zero(sig.Return))
	}
	return nil
}

// concat interprets a concatenation recipe: \x01 takes the next argument,
// \x02 the next static constant. An empty recipe joins every argument.
func (m *Machine) concat(recipe string, statics []uint16, pool *classfile.Pool, sig descriptor.Signature, args []Value) string {
	var sb strings.Builder
	if recipe == "" {
		for i, a := range args {
			sb.WriteString(m.Stringify(a, sig.Params[i]))
		}
		return sb.String()
	}
	ai, si := 0, 0
	for _, r := range recipe {
		switch r {
		case '\x01':
			if ai < len(args) {
				sb.WriteString(m.Stringify(args[ai], sig.Params[ai]))
				ai++
			}
		case '\x02':
			if si < len(statics) {
				if c, err := pool.Loadable(statics[si]); err == nil {
					sb.WriteString(fmt.Sprint(c))
				}
				si++
			}
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
