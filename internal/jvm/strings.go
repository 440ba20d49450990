package jvm

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"necroverse/internal/descriptor"
	"necroverse/internal/heap"
)

const stringClass = "java/lang/String"

// NewString allocates a fresh string object.
func (m *Machine) NewString(s string) Value {
	return Ref(m.heap.AllocateHost(stringClass, s))
}

// Intern returns the shared string object for a literal.
func (m *Machine) Intern(s string) Value {
	if id, ok := m.interned[s]; ok {
		return Ref(id)
	}
	v := m.NewString(s)
	m.interned[s] = v.Ref
	return v
}

// GoString returns the text of a string, builder or boxed value; null
// renders as "null".
func (m *Machine) GoString(v Value) string {
	if v.K != KRef {
		return v.String()
	}
	return m.refString(v.Ref)
}

func (m *Machine) refString(id heap.ID) string {
	if id == 0 {
		return "null"
	}
	rec, ok := m.heap.Get(id)
	if !ok {
		return "null"
	}
	switch h := rec.Host.(type) {
	case string:
		if rec.Type == "java/lang/Class" {
			return "class " + strings.ReplaceAll(h, "/", ".")
		}
		return h
	case *strings.Builder:
		return h.String()
	}
	if rec.Type == "java/lang/Integer" {
		v := rec.Fields["value"]
		return strconv.FormatInt(int64(v.AsInt()), 10)
	}
	if m.reg.IsAssignable(rec.Type, "java/lang/Throwable") {
		name := strings.ReplaceAll(rec.Type, "/", ".")
		if msg, ok := rec.Fields["message"]; ok && !msg.IsNull() {
			return name + ": " + m.GoString(msg)
		}
		return name
	}
	return fmt.Sprintf("%s@%x", strings.ReplaceAll(rec.Type, "/", "."), uint64(id))
}

// Stringify renders v as Java's String.valueOf would for declared type t.
func (m *Machine) Stringify(v Value, t descriptor.Type) string {
	switch t.Kind {
	case descriptor.Boolean:
		if v.AsInt() != 0 {
			return "true"
		}
		return "false"
	case descriptor.Char:
		return string(rune(uint16(v.AsInt())))
	case descriptor.Byte, descriptor.Short, descriptor.Int:
		return strconv.FormatInt(int64(v.AsInt()), 10)
	case descriptor.Long:
		return strconv.FormatInt(v.AsLong(), 10)
	case descriptor.Float:
		return FormatFloat(float64(v.AsFloat()), 32)
	case descriptor.Double:
		return FormatFloat(v.AsDouble(), 64)
	case descriptor.Object, descriptor.Array:
		return m.GoString(v)
	}
	switch v.K {
	case KFloat:
		return FormatFloat(v.F, 32)
	case KDouble:
		return FormatFloat(v.F, 64)
	case KRef:
		return m.GoString(v)
	}
	return strconv.FormatInt(v.I, 10)
}

// FormatFloat renders f the way Java's Double.toString and Float.toString
// do: at least one fractional digit, scientific notation outside
// [1e-3, 1e7).
func FormatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		if math.Signbit(f) {
			return "-0.0"
		}
		return "0.0"
	}
	abs := math.Abs(f)
	if abs >= 1e-3 && abs < 1e7 {
		s := strconv.FormatFloat(f, 'f', -1, bits)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}
	s := strconv.FormatFloat(f, 'E', -1, bits)
	mant, exp, _ := strings.Cut(s, "E")
	if !strings.Contains(mant, ".") {
		mant += ".0"
	}
	e, _ := strconv.Atoi(exp)
	return mant + "E" + strconv.Itoa(e)
}

// javaHash is String.hashCode over UTF-16 code units.
func javaHash(s string) int32 {
	var h int32
	for _, r := range s {
		if r >= 0x10000 {
			r -= 0x10000
			h = 31*h + int32(0xD800+(r>>10))
			h = 31*h + int32(0xDC00+(r&0x3FF))
			continue
		}
		h = 31*h + int32(r)
	}
	return h
}
