package avm1

import (
	"math"
	"strconv"
	"strings"

	"necroverse/internal/heap"
)

// Kind is the dynamic type of a Value.
type Kind uint8

const (
	KUndefined Kind = iota
	KNull
	KBool
	KNumber
	KString
	KObject
)

func (k Kind) String() string {
	switch k {
	case KNull:
		return "null"
	case KBool:
		return "boolean"
	case KNumber:
		return "number"
	case KString:
		return "string"
	case KObject:
		return "object"
	default:
		return "undefined"
	}
}

// Value is an operand. The zero Value is undefined.
type Value struct {
	K   Kind
	B   bool
	N   float64
	S   string
	Ref heap.ID
}

var (
	Undefined = Value{}
	Null      = Value{K: KNull}
)

func Bool(b bool) Value { return Value{K: KBool, B: b} }
func Number(n float64) Value { return Value{K: KNumber, N: n} }
func String(s string) Value { return Value{K: KString, S: s} }
func Object(id heap.ID) Value {
	return Value{K: KObject, Ref: id}
}

func (v Value) IsUndefined() bool { return v.K == KUndefined }
func (v Value) IsNullish() bool { return v.K == KUndefined || v.K == KNull }

// ToNumber converts v for numeric actions. Containers before version 7
// treat undefined and null as zero.
func (v Value) ToNumber(version uint8) float64 {
	switch v.K {
	case KBool:
		if v.B {
			return 1
		}
		return 0
	case KNumber:
		return v.N
	case KString:
		return parseNumber(v.S, version)
	case KObject:
		return math.NaN()
	default:
		if version < 7 {
			return 0
		}
		return math.NaN()
	}
}

func parseNumber(s string, version uint8) float64 {
	t := strings.TrimSpace(s)
	if t == "" {
		if version < 5 {
			return 0
		}
		return math.NaN()
	}
	if len(t) > 2 && t[0] == '0' && (t[1] == 'x' || t[1] == 'X') {
		if n, err := strconv.ParseInt(t[2:], 16, 64); err == nil {
			return float64(n)
		}
		return math.NaN()
	}
	switch t {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	n, err := strconv.ParseFloat(t, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return n
		}
		return math.NaN()
	}
	return n
}

// ToBool converts v for conditional actions. From version 7 a string is
// true when non-empty; earlier versions test its numeric value.
func (v Value) ToBool(version uint8) bool {
	switch v.K {
	case KBool:
		return v.B
	case KNumber:
		return v.N != 0 && !math.IsNaN(v.N)
	case KString:
		if version >= 7 {
			return v.S != ""
		}
		n := parseNumber(v.S, version)
		return n != 0 && !math.IsNaN(n)
	case KObject:
		return true
	default:
		return false
	}
}

// ToInt32 applies the integer conversion used by bitwise actions.
func ToInt32(n float64) int32 {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return int32(uint32(int64(math.Trunc(math.Mod(n, 1<<32)))))
}

// FormatNumber renders n the way the player prints numbers: integers
// without a fraction, at most 15 significant digits otherwise.
func FormatNumber(n float64) string {
	switch {
	case math.IsNaN(n):
		return "NaN"
	case math.IsInf(n, 1):
		return "Infinity"
	case math.IsInf(n, -1):
		return "-Infinity"
	case n == 0:
		return "0"
	case n == math.Trunc(n) && math.Abs(n) < 1e15:
		return strconv.FormatInt(int64(n), 10)
	}
	s := strconv.FormatFloat(n, 'g', 15, 64)
	if i := strings.IndexByte(s, 'e'); i >= 0 {
		mant, exp := s[:i], s[i+1:]
		if strings.Contains(mant, ".") {
			mant = strings.TrimRight(strings.TrimRight(mant, "0"), ".")
		}
		sign := exp[0]
		exp = strings.TrimLeft(exp[1:], "0")
		return mant + "e" + string(sign) + exp
	}
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}

// primitiveString renders non-object values; objects need the machine.
func (v Value) primitiveString(version uint8) string {
	switch v.K {
	case KBool:
		if v.B {
			return "true"
		}
		return "false"
	case KNumber:
		return FormatNumber(v.N)
	case KString:
		return v.S
	case KNull:
		return "null"
	case KObject:
		return "[object Object]"
	default:
		if version < 7 {
			return ""
		}
		return "undefined"
	}
}

// StrictEquals compares without conversion.
func StrictEquals(a, b Value) bool {
	if a.K != b.K {
		return false
	}
	switch a.K {
	case KUndefined, KNull:
		return true
	case KBool:
		return a.B == b.B
	case KNumber:
		return a.N == b.N
	case KString:
		return a.S == b.S
	default:
		return a.Ref == b.Ref
	}
}
