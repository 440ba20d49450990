package avm1

func registerStringActions() {
	set(func(m *Machine, f *frame, _ Action) error {
		b, a := m.pop(f), m.pop(f)
		m.push(f, String(m.ToString(a)+m.ToString(b)))
		return nil
	}, ActStringAdd)
	cmp := func(fn func(a, b string) bool) actionFunc {
		return func(m *Machine, f *frame, _ Action) error {
			b, a := m.pop(f), m.pop(f)
			m.push(f, m.legacyBool(fn(m.ToString(a), m.ToString(b))))
			return nil
		}
	}
	set(cmp(func(a, b string) bool { return a == b }), ActStringEquals)
	set(cmp(func(a, b string) bool { return a < b }), ActStringLess)
	set(cmp(func(a, b string) bool { return a > b }), ActStringGreater)

	length := func(m *Machine, f *frame, _ Action) error {
		m.push(f, Number(float64(runeLen(m.ToString(m.pop(f))))))
		return nil
	}
	set(length, ActStringLength, ActMBStringLength)
	set(opStringExtract, ActStringExtract, ActMBStringExtract)

	set(func(m *Machine, f *frame, _ Action) error {
		s := m.ToString(m.pop(f))
		if s == "" {
			m.push(f, Number(0))
			return nil
		}
		m.push(f, Number(float64([]rune(s)[0])))
		return nil
	}, ActCharToAscii, ActMBCharToAscii)
	set(func(m *Machine, f *frame, _ Action) error {
		n := ToInt32(m.ToNumber(m.pop(f)))
		if n == 0 {
			m.push(f, String(""))
			return nil
		}
		m.push(f, String(string(rune(n))))
		return nil
	}, ActAsciiToChar, ActMBAsciiToChar)
}

// opStringExtract pops count, a one-based index and the string.
func opStringExtract(m *Machine, f *frame, _ Action) error {
	count := int(ToInt32(m.ToNumber(m.pop(f))))
	index := int(ToInt32(m.ToNumber(m.pop(f)))) - 1
	runes := []rune(m.ToString(m.pop(f)))
	if index < 0 {
		index = 0
	}
	if index > len(runes) {
		index = len(runes)
	}
	if count < 0 || index+count > len(runes) {
		count = len(runes) - index
	}
	m.push(f, String(string(runes[index:index+count])))
	return nil
}
