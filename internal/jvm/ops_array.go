package jvm

import (
	"fmt"
	"strings"

	"necroverse/internal/heap"
)

// newarray type codes.
var primitiveArrays = map[uint8]string{
	4:  "[Z",
	5:  "[C",
	6:  "[F",
	7:  "[D",
	8:  "[B",
	9:  "[S",
	10: "[I",
	11: "[J",
}

// arrayZero returns the element default for an array type name.
func arrayZero(typeName string) Value {
	if len(typeName) < 2 {
		return Null
	}
	switch typeName[1] {
	case 'J':
		return Long(0)
	case 'F':
		return Float(0)
	case 'D':
		return Double(0)
	case 'L', '[':
		return Null
	default:
		return Int(0)
	}
}

// NewArray allocates an array of n elements of the given array type.
func (m *Machine) NewArray(typeName string, n int) Value {
	return Ref(m.heap.AllocateArray(typeName, n, arrayZero(typeName)))
}

func registerArrayOps() {
	set(func(m *Machine, f *Frame, _ byte) error {
		code := f.u8()
		n := f.popInt()
		name, ok := primitiveArrays[code]
		if !ok {
			raise(FaultTruncated, "newarray with type code %d at %d", code, f.start)
		}
		if n < 0 {
			return m.throw("java/lang/NegativeArraySizeException", fmt.Sprint(n))
		}
		f.push(m.NewArray(name, int(n)))
		return nil
	}, OpNewarray)
	set(func(m *Machine, f *Frame, _ byte) error {
		idx := f.u16()
		elem, err := f.Method.Class.File.Pool.ClassName(idx)
		if err != nil {
			m.report(symbolicCode(err), f.Method, f.start, fmt.Sprintf("anewarray #%d: %v", idx, err))
		}
		n := f.popInt()
		if n < 0 {
			return m.throw("java/lang/NegativeArraySizeException", fmt.Sprint(n))
		}
		f.push(m.NewArray(arrayOf(elem), int(n)))
		return nil
	}, OpAnewarray)
	set(opMultiANewArray, OpMultianewarray)
	set(func(m *Machine, f *Frame, _ byte) error {
		rec, err := m.array(f.pop())
		if err != nil {
			return err
		}
		f.push(Int(int32(len(rec.Elems))))
		return nil
	}, OpArraylength)

	set(func(m *Machine, f *Frame, op byte) error {
		i := f.popInt()
		rec, err := m.array(f.pop())
		if err != nil {
			return err
		}
		if i < 0 || int(i) >= len(rec.Elems) {
			return m.throw("java/lang/ArrayIndexOutOfBoundsException", fmt.Sprintf("Index %d out of bounds for length %d", i, len(rec.Elems)))
		}
		f.push(rec.Elems[i])
		return nil
	}, span(OpIaload, OpSaload)...)
	set(func(m *Machine, f *Frame, op byte) error {
		v := f.pop()
		i := f.popInt()
		rec, err := m.array(f.pop())
		if err != nil {
			return err
		}
		if i < 0 || int(i) >= len(rec.Elems) {
			return m.throw("java/lang/ArrayIndexOutOfBoundsException", fmt.Sprintf("Index %d out of bounds for length %d", i, len(rec.Elems)))
		}
		rec.Elems[i] = narrowElement(op, rec.Type, v)
		return nil
	}, span(OpIastore, OpSastore)...)
}

// narrowElement truncates stored values to the array's element width.
func narrowElement(op byte, typeName string, v Value) Value {
	switch op {
	case OpIastore:
		return Int(v.AsInt())
	case OpLastore:
		return Long(v.AsLong())
	case OpFastore:
		return Float(v.AsFloat())
	case OpDastore:
		return Double(v.AsDouble())
	case OpBastore:
		if typeName == "[Z" {
			return Int(v.AsInt() & 1)
		}
		return Int(int32(int8(v.AsInt())))
	case OpCastore:
		return Int(int32(uint16(v.AsInt())))
	case OpSastore:
		return Int(int32(int16(v.AsInt())))
	}
	return coerce('a', v)
}

func (m *Machine) array(v Value) (*heap.Record[Value], error) {
	if v.IsNull() {
		return nil, m.throw("java/lang/NullPointerException", "array access on null")
	}
	rec, ok := m.heap.Get(v.AsRef())
	if !ok || !rec.IsArray {
		raise(FaultStackUnderflow, "array operand @%d is not an array", v.AsRef())
	}
	return rec, nil
}

// arrayOf returns the array type whose elements are of class or array
// type elem.
func arrayOf(elem string) string {
	if strings.HasPrefix(elem, "[") {
		return "[" + elem
	}
	return "[L" + elem + ";"
}

func opMultiANewArray(m *Machine, f *Frame, _ byte) error {
	idx := f.u16()
	dims := int(f.u8())
	name, err := f.Method.Class.File.Pool.ClassName(idx)
	if err != nil {
		m.report(symbolicCode(err), f.Method, f.start, fmt.Sprintf("multianewarray #%d: %v", idx, err))
	}
	if dims < 1 {
		raise(FaultTruncated, "multianewarray with %d dimensions at %d", dims, f.start)
	}
	counts := f.popN(dims)
	for _, c := range counts {
		if c.AsInt() < 0 {
			return m.throw("java/lang/NegativeArraySizeException", fmt.Sprint(c.AsInt()))
		}
	}
	f.push(m.multiArray(name, counts))
	return nil
}

func (m *Machine) multiArray(typeName string, counts []Value) Value {
	n := int(counts[0].AsInt())
	arr := m.NewArray(typeName, n)
	if len(counts) > 1 && len(typeName) > 1 {
		rec, _ := m.heap.Get(arr.Ref)
		for i := range rec.Elems {
			rec.Elems[i] = m.multiArray(typeName[1:], counts[1:])
		}
	}
	return arr
}
