package avm1

import "math"

// legacyBool is the result of comparison actions: numbers before
// version 5, booleans after.
func (m *Machine) legacyBool(b bool) Value {
	if m.version < 5 {
		if b {
			return Number(1)
		}
		return Number(0)
	}
	return Bool(b)
}

func binaryNum(fn func(a, b float64) float64) actionFunc {
	return func(m *Machine, f *frame, _ Action) error {
		b, a := m.pop(f), m.pop(f)
		m.push(f, Number(fn(m.ToNumber(a), m.ToNumber(b))))
		return nil
	}
}

func bitwise(fn func(a, b int32) int32) actionFunc {
	return func(m *Machine, f *frame, _ Action) error {
		b, a := m.pop(f), m.pop(f)
		m.push(f, Number(float64(fn(ToInt32(m.ToNumber(a)), ToInt32(m.ToNumber(b))))))
		return nil
	}
}

func registerArithActions() {
	set(binaryNum(func(a, b float64) float64 { return a + b }), ActAdd)
	set(binaryNum(func(a, b float64) float64 { return a - b }), ActSubtract)
	set(binaryNum(func(a, b float64) float64 { return a * b }), ActMultiply)
	set(binaryNum(func(a, b float64) float64 { return a / b }), ActDivide)
	set(binaryNum(math.Mod), ActModulo)

	set(bitwise(func(a, b int32) int32 { return a & b }), ActBitAnd)
	set(bitwise(func(a, b int32) int32 { return a | b }), ActBitOr)
	set(bitwise(func(a, b int32) int32 { return a ^ b }), ActBitXor)
	set(bitwise(func(a, b int32) int32 { return a << (uint32(b) & 31) }), ActBitLShift)
	set(bitwise(func(a, b int32) int32 { return a >> (uint32(b) & 31) }), ActBitRShift)
	set(func(m *Machine, f *frame, _ Action) error {
		b, a := m.pop(f), m.pop(f)
		v := uint32(ToInt32(m.ToNumber(a))) >> (uint32(ToInt32(m.ToNumber(b))) & 31)
		m.push(f, Number(float64(v)))
		return nil
	}, ActBitURShift)

	set(func(m *Machine, f *frame, _ Action) error {
		b, a := m.pop(f), m.pop(f)
		m.push(f, m.legacyBool(m.ToNumber(a) == m.ToNumber(b)))
		return nil
	}, ActEquals)
	set(func(m *Machine, f *frame, _ Action) error {
		b, a := m.pop(f), m.pop(f)
		m.push(f, m.legacyBool(m.ToNumber(a) < m.ToNumber(b)))
		return nil
	}, ActLess)
	set(func(m *Machine, f *frame, _ Action) error {
		b, a := m.pop(f), m.pop(f)
		m.push(f, m.legacyBool(a.ToBool(m.version) && b.ToBool(m.version)))
		return nil
	}, ActAnd)
	set(func(m *Machine, f *frame, _ Action) error {
		b, a := m.pop(f), m.pop(f)
		m.push(f, m.legacyBool(a.ToBool(m.version) || b.ToBool(m.version)))
		return nil
	}, ActOr)
	set(func(m *Machine, f *frame, _ Action) error {
		m.push(f, m.legacyBool(!m.pop(f).ToBool(m.version)))
		return nil
	}, ActNot)

	set(func(m *Machine, f *frame, _ Action) error {
		b, a := m.toPrimitive(m.pop(f)), m.toPrimitive(m.pop(f))
		if a.K == KString || b.K == KString {
			m.push(f, String(m.ToString(a)+m.ToString(b)))
			return nil
		}
		m.push(f, Number(m.ToNumber(a)+m.ToNumber(b)))
		return nil
	}, ActAdd2)
	set(func(m *Machine, f *frame, _ Action) error {
		b, a := m.pop(f), m.pop(f)
		m.push(f, m.compare(a, b))
		return nil
	}, ActLess2)
	set(func(m *Machine, f *frame, _ Action) error {
		b, a := m.pop(f), m.pop(f)
		m.push(f, m.compare(b, a))
		return nil
	}, ActGreater)
	set(func(m *Machine, f *frame, _ Action) error {
		b, a := m.pop(f), m.pop(f)
		m.push(f, Bool(m.looseEquals(a, b)))
		return nil
	}, ActEquals2)
	set(func(m *Machine, f *frame, _ Action) error {
		b, a := m.pop(f), m.pop(f)
		m.push(f, Bool(StrictEquals(a, b)))
		return nil
	}, ActStrictEquals)

	step := func(d float64) actionFunc {
		return func(m *Machine, f *frame, _ Action) error {
			m.push(f, Number(m.ToNumber(m.pop(f))+d))
			return nil
		}
	}
	set(step(1), ActIncrement)
	set(step(-1), ActDecrement)

	set(func(m *Machine, f *frame, _ Action) error {
		n := m.ToNumber(m.pop(f))
		if math.IsNaN(n) {
			n = 0
		}
		m.push(f, Number(math.Trunc(n)))
		return nil
	}, ActToInteger)
	set(func(m *Machine, f *frame, _ Action) error {
		m.push(f, Number(m.ToNumber(m.pop(f))))
		return nil
	}, ActToNumber)
	set(func(m *Machine, f *frame, _ Action) error {
		m.push(f, String(m.ToString(m.pop(f))))
		return nil
	}, ActToString)
}

// compare implements a < b for Less2; NaN operands give undefined.
func (m *Machine) compare(a, b Value) Value {
	a, b = m.toPrimitive(a), m.toPrimitive(b)
	if a.K == KString && b.K == KString {
		return Bool(a.S < b.S)
	}
	x, y := m.ToNumber(a), m.ToNumber(b)
	if math.IsNaN(x) || math.IsNaN(y) {
		return Undefined
	}
	return Bool(x < y)
}

// looseEquals is the converting equality of Equals2.
func (m *Machine) looseEquals(a, b Value) bool {
	if a.K == b.K {
		if a.K == KNumber && (math.IsNaN(a.N) || math.IsNaN(b.N)) {
			return false
		}
		return StrictEquals(a, b)
	}
	if a.IsNullish() && b.IsNullish() {
		return true
	}
	if a.IsNullish() || b.IsNullish() {
		return false
	}
	if a.K == KObject {
		a = m.toPrimitive(a)
	}
	if b.K == KObject {
		b = m.toPrimitive(b)
	}
	if a.K == KString && b.K == KString {
		return a.S == b.S
	}
	x, y := m.ToNumber(a), m.ToNumber(b)
	return x == y
}
