package jvm

import (
	"fmt"

	"necroverse/internal/bitio"
)

// Frame is one activation: a cursor over the method's bytecode, an operand
// stack and local slots. Frames are never shared between calls.
type Frame struct {
	Method *Method
	Stack  []Value
	Locals []Value

	code  *bitio.Reader
	start int // offset of the executing opcode
	limit int
	ret   Value
	done  bool
}

// vmFault is raised by frame helpers and converted to *VMError by Execute.
type vmFault struct {
	code FaultCode
	msg  string
}

func raise(code FaultCode, format string, args ...any) {
	panic(&vmFault{code: code, msg: fmt.Sprintf(format, args...)})
}

func newFrame(m *Method, locals []Value, limit int) *Frame {
	n := int(m.Code.MaxLocals)
	if len(locals) > n {
		n = len(locals)
	}
	f := &Frame{
		Method: m,
		Locals: make([]Value, n),
		Stack:  make([]Value, 0, m.Code.MaxStack),
		code:   bitio.NewReader(m.Code.Bytecode, bitio.BigEndian),
		limit:  limit,
	}
	copy(f.Locals, locals)
	return f
}

// PC returns the offset of the instruction being executed.
func (f *Frame) PC() int { return f.start }

func (f *Frame) push(v Value) {
	if len(f.Stack) >= f.limit {
		raise(FaultStackOverflow, "operand stack exceeds %d entries", f.limit)
	}
	f.Stack = append(f.Stack, v)
}

func (f *Frame) pop() Value {
	n := len(f.Stack)
	if n == 0 {
		raise(FaultStackUnderflow, "pop from empty operand stack at %d", f.start)
	}
	v := f.Stack[n-1]
	f.Stack = f.Stack[:n-1]
	return v
}

func (f *Frame) popN(n int) []Value {
	if n > len(f.Stack) {
		raise(FaultStackUnderflow, "need %d operands at %d, have %d", n, f.start, len(f.Stack))
	}
	out := append([]Value(nil), f.Stack[len(f.Stack)-n:]...)
	f.Stack = f.Stack[:len(f.Stack)-n]
	return out
}

func (f *Frame) popInt() int32 { return f.pop().AsInt() }
func (f *Frame) popLong() int64 { return f.pop().AsLong() }
func (f *Frame) popFloat() float32 { return f.pop().AsFloat() }
func (f *Frame) popDouble() float64 { return f.pop().AsDouble() }

func (f *Frame) load(i int) Value {
	if i < 0 || i >= len(f.Locals) {
		return Value{}
	}
	return f.Locals[i]
}

func (f *Frame) store(i int, v Value) {
	if i < 0 {
		return
	}
	need := i + 1
	if v.Wide() {
		need++
	}
	for len(f.Locals) < need {
		f.Locals = append(f.Locals, Value{})
	}
	f.Locals[i] = v
	if v.Wide() {
		f.Locals[i+1] = Value{}
	}
}

func (f *Frame) u8() uint8 {
	v, err := f.code.U8()
	if err != nil {
		raise(FaultTruncated, "operand of opcode at %d: %v", f.start, err)
	}
	return v
}

func (f *Frame) u16() uint16 {
	v, err := f.code.U16()
	if err != nil {
		raise(FaultTruncated, "operand of opcode at %d: %v", f.start, err)
	}
	return v
}

func (f *Frame) s8() int8 { return int8(f.u8()) }
func (f *Frame) s16() int16 { return int16(f.u16()) }

func (f *Frame) s32() int32 {
	v, err := f.code.I32()
	if err != nil {
		raise(FaultTruncated, "operand of opcode at %d: %v", f.start, err)
	}
	return v
}

// branch moves to the opcode-relative target start+off.
func (f *Frame) branch(off int32) {
	f.jump(f.start + int(off))
}

func (f *Frame) jump(target int) {
	if target < 0 || target >= f.code.Len() {
		raise(FaultBadJump, "jump from %d to %d outside %d-byte unit", f.start, target, f.code.Len())
	}
	_ = f.code.Seek(target)
}

// align skips switch padding so the next read starts at a multiple of four
// from the beginning of the bytecode.
func (f *Frame) align() {
	for f.code.Pos()%4 != 0 {
		f.u8()
	}
}

func (f *Frame) finish(v Value) {
	f.ret = v
	f.done = true
}
