package avm1

import (
	"fmt"
	"strings"

	"necroverse/internal/diag"
	"necroverse/internal/heap"
)

// frame is one activation: a unit or a function body.
type frame struct {
	unit   string
	code   []byte
	offset int
	pool   []string
	regs   []Value
	stack  []Value
	scope  []heap.ID // outermost first; with-blocks push on the end
	locals heap.ID   // DefineLocal target
	this   Value
	target string
	fn     *Function

	pc   int // start of the current action
	next int // where execution continues after it
	done bool
	ret  Value

	underflowed bool
}

// vmFault is raised with panic inside the dispatch loop and recovered
// into a *VMError by exec.
type vmFault struct {
	code FaultCode
	msg  string
}

func fault(code FaultCode, format string, args ...any) {
	panic(&vmFault{code: code, msg: fmt.Sprintf(format, args...)})
}

func (m *Machine) push(f *frame, v Value) {
	if len(f.stack) >= m.maxStack {
		fault(FaultStack, "operand stack exceeds %d entries", m.maxStack)
	}
	f.stack = append(f.stack, v)
}

// pop returns undefined on an empty stack, which is what the player does.
// The first underflow in an activation is reported.
func (m *Machine) pop(f *frame) Value {
	n := len(f.stack)
	if n == 0 {
		if !f.underflowed {
			f.underflowed = true
			m.reportAt(diag.IntStackUnderflow, f.offset, f.pc, fmt.Sprintf("%s: pop from empty stack", f.unit))
		}
		return Undefined
	}
	v := f.stack[n-1]
	f.stack = f.stack[:n-1]
	return v
}

func (m *Machine) peek(f *frame) Value {
	if len(f.stack) == 0 {
		return Undefined
	}
	return f.stack[len(f.stack)-1]
}

// popCount pops an argument count, clamping to what the stack holds.
func (m *Machine) popCount(f *frame) int {
	n := int(ToInt32(m.ToNumber(m.pop(f))))
	if n < 0 {
		return 0
	}
	if n > len(f.stack) {
		if !f.underflowed {
			f.underflowed = true
			m.reportAt(diag.IntStackUnderflow, f.offset, f.pc, fmt.Sprintf("%s: %d arguments requested, %d on stack", f.unit, n, len(f.stack)))
		}
		return len(f.stack)
	}
	return n
}

// popArgs pops n values; the first popped is argument zero.
func (m *Machine) popArgs(f *frame, n int) []Value {
	args := make([]Value, n)
	for i := range args {
		args[i] = m.pop(f)
	}
	return args
}

// getVariable resolves a name: special names first, then dotted paths,
// then the scope chain innermost-first, then _global.
func (m *Machine) getVariable(f *frame, name string) Value {
	switch name {
	case "this":
		return f.this
	case "_global":
		return Object(m.global)
	case "_root", "_level0":
		return Object(m.root)
	}
	if obj, member, ok := m.splitPath(f, name); ok {
		return m.GetMember(obj, member)
	}
	for i := len(f.scope) - 1; i >= 0; i-- {
		if m.hasProperty(f.scope[i], name) {
			return m.GetMember(Object(f.scope[i]), name)
		}
	}
	return m.lookup(m.global, name)
}

// setVariable writes to the innermost scope that already holds name, or
// to the outermost scope, which is the timeline the code belongs to.
func (m *Machine) setVariable(f *frame, name string, v Value) {
	if obj, member, ok := m.splitPath(f, name); ok {
		m.SetMember(obj, member, v)
		return
	}
	for i := len(f.scope) - 1; i >= 0; i-- {
		if _, ok := m.heap.GetField(f.scope[i], name); ok {
			m.SetMember(Object(f.scope[i]), name, v)
			return
		}
	}
	if len(f.scope) == 0 {
		m.SetMember(Object(m.root), name, v)
		return
	}
	m.SetMember(Object(f.scope[0]), name, v)
}

// splitPath handles "a.b.c" and "/clip:var" names. ok is false for plain
// identifiers.
func (m *Machine) splitPath(f *frame, name string) (Value, string, bool) {
	if i := strings.LastIndexByte(name, ':'); i >= 0 {
		return m.resolveTarget(f, name[:i]), name[i+1:], true
	}
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return Value{}, "", false
	}
	return m.getVariable(f, name[:i]), name[i+1:], true
}

// resolveTarget walks a slash or dot path to a display object. An empty
// path is the current target.
func (m *Machine) resolveTarget(f *frame, path string) Value {
	cur := m.currentTarget(f)
	if path == "" {
		return cur
	}
	if strings.HasPrefix(path, "/") {
		cur = Object(m.root)
		path = path[1:]
	}
	for _, seg := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '.' }) {
		switch seg {
		case "_root", "_level0":
			cur = Object(m.root)
		case "_global":
			cur = Object(m.global)
		case "this":
			cur = f.this
		case "..", "_parent":
			cur = m.GetMember(cur, "_parent")
		default:
			cur = m.GetMember(cur, seg)
		}
		if cur.K != KObject {
			return Undefined
		}
	}
	return cur
}

func (m *Machine) currentTarget(f *frame) Value {
	if f.target == "" {
		if f.this.K == KObject && m.heap.TypeOf(f.this.Ref) == clipType {
			return f.this
		}
		return Object(m.root)
	}
	saved := f.target
	f.target = ""
	v := m.resolveTarget(f, saved)
	f.target = saved
	return v
}

// targetPath renders a display object's slash path.
func (m *Machine) targetPath(v Value) (string, bool) {
	if v.K != KObject || m.heap.TypeOf(v.Ref) != clipType {
		return "", false
	}
	if t, ok := m.heap.GetField(v.Ref, "_target"); ok && t.K == KString {
		return t.S, true
	}
	return "/", true
}
