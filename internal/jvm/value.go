package jvm

import (
	"fmt"
	"math"

	"necroverse/internal/descriptor"
	"necroverse/internal/heap"
)

// Kind is the computational type of a Value.
type Kind uint8

const (
	KVoid Kind = iota // empty slot or no value
	KInt              // boolean, byte, char, short and int
	KLong
	KFloat
	KDouble
	KRef
	KRetAddr
)

var kindNames = [...]string{"void", "int", "long", "float", "double", "ref", "returnAddress"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Value is one operand-stack or local-variable value. Ints and longs live
// in I, floats and doubles in F, references in Ref (0 is null).
type Value struct {
	K   Kind
	I   int64
	F   float64
	Ref heap.ID
}

func Int(v int32) Value { return Value{K: KInt, I: int64(v)} }
func Long(v int64) Value { return Value{K: KLong, I: v} }
func Float(v float32) Value { return Value{K: KFloat, F: float64(v)} }
func Double(v float64) Value { return Value{K: KDouble, F: v} }
func Ref(id heap.ID) Value { return Value{K: KRef, Ref: id} }

// Null is the null reference.
var Null = Value{K: KRef}

// Bool returns the int encoding of b.
func Bool(b bool) Value {
	if b {
		return Int(1)
	}
	return Int(0)
}

// Wide reports whether v is a category-2 value.
func (v Value) Wide() bool { return v.K == KLong || v.K == KDouble }

// AsInt coerces v to int, treating an empty slot as zero.
func (v Value) AsInt() int32 {
	switch v.K {
	case KFloat, KDouble:
		return f2i(v.F)
	default:
		return int32(v.I)
	}
}

// AsLong coerces v to long.
func (v Value) AsLong() int64 {
	switch v.K {
	case KFloat, KDouble:
		return f2l(v.F)
	default:
		return v.I
	}
}

// AsFloat coerces v to float.
func (v Value) AsFloat() float32 {
	switch v.K {
	case KFloat, KDouble:
		return float32(v.F)
	default:
		return float32(v.I)
	}
}

// AsDouble coerces v to double.
func (v Value) AsDouble() float64 {
	switch v.K {
	case KFloat, KDouble:
		return v.F
	default:
		return float64(v.I)
	}
}

// AsRef returns the reference, null for non-references.
func (v Value) AsRef() heap.ID {
	if v.K == KRef {
		return v.Ref
	}
	return 0
}

// IsNull reports whether v is a null or empty reference.
func (v Value) IsNull() bool { return v.AsRef() == 0 }

func (v Value) String() string {
	switch v.K {
	case KVoid:
		return "void"
	case KInt:
		return fmt.Sprintf("%d", v.I)
	case KLong:
		return fmt.Sprintf("%dL", v.I)
	case KFloat:
		return fmt.Sprintf("%gF", v.F)
	case KDouble:
		return fmt.Sprintf("%gD", v.F)
	case KRef:
		if v.Ref == 0 {
			return "null"
		}
		return fmt.Sprintf("@%d", v.Ref)
	case KRetAddr:
		return fmt.Sprintf("ret->%d", v.I)
	}
	return "?"
}

// Zero returns the default value of a declared type: 0 for primitives,
// null for references and an empty Value for void.
func Zero(t descriptor.Type) Value {
	switch t.Kind {
	case descriptor.Void:
		return Value{}
	case descriptor.Long:
		return Long(0)
	case descriptor.Float:
		return Float(0)
	case descriptor.Double:
		return Double(0)
	case descriptor.Object, descriptor.Array:
		return Null
	default:
		return Int(0)
	}
}

// f2i converts with saturation and NaN to zero.
func f2i(f float64) int32 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	}
	return int32(f)
}

func f2l(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}
