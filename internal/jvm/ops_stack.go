package jvm

// Stack shuffles follow the category rules: a long or double is one entry
// that counts as two words.

func registerStackOps() {
	set(func(_ *Machine, f *Frame, _ byte) error { f.pop(); return nil }, OpPop)
	set(func(_ *Machine, f *Frame, _ byte) error {
		if !f.pop().Wide() {
			f.pop()
		}
		return nil
	}, OpPop2)
	set(func(_ *Machine, f *Frame, _ byte) error {
		v := f.pop()
		f.push(v)
		f.push(v)
		return nil
	}, OpDup)
	set(func(_ *Machine, f *Frame, _ byte) error {
		v1, v2 := f.pop(), f.pop()
		f.push(v1)
		f.push(v2)
		f.push(v1)
		return nil
	}, OpDupX1)
	set(func(_ *Machine, f *Frame, _ byte) error {
		v1, v2 := f.pop(), f.pop()
		if v2.Wide() {
			f.push(v1)
			f.push(v2)
			f.push(v1)
			return nil
		}
		v3 := f.pop()
		f.push(v1)
		f.push(v3)
		f.push(v2)
		f.push(v1)
		return nil
	}, OpDupX2)
	set(func(_ *Machine, f *Frame, _ byte) error {
		v1 := f.pop()
		if v1.Wide() {
			f.push(v1)
			f.push(v1)
			return nil
		}
		v2 := f.pop()
		f.push(v2)
		f.push(v1)
		f.push(v2)
		f.push(v1)
		return nil
	}, OpDup2)
	set(func(_ *Machine, f *Frame, _ byte) error {
		v1 := f.pop()
		if v1.Wide() {
			v2 := f.pop()
			f.push(v1)
			f.push(v2)
			f.push(v1)
			return nil
		}
		v2, v3 := f.pop(), f.pop()
		f.push(v2)
		f.push(v1)
		f.push(v3)
		f.push(v2)
		f.push(v1)
		return nil
	}, OpDup2X1)
	set(func(_ *Machine, f *Frame, _ byte) error {
		v1 := f.pop()
		if v1.Wide() {
			v2 := f.pop()
			if v2.Wide() {
				f.push(v1)
				f.push(v2)
				f.push(v1)
				return nil
			}
			v3 := f.pop()
			f.push(v1)
			f.push(v3)
			f.push(v2)
			f.push(v1)
			return nil
		}
		v2, v3 := f.pop(), f.pop()
		if v3.Wide() {
			f.push(v2)
			f.push(v1)
			f.push(v3)
			f.push(v2)
			f.push(v1)
			return nil
		}
		v4 := f.pop()
		f.push(v2)
		f.push(v1)
		f.push(v4)
		f.push(v3)
		f.push(v2)
		f.push(v1)
		return nil
	}, OpDup2X2)
	set(func(_ *Machine, f *Frame, _ byte) error {
		v1, v2 := f.pop(), f.pop()
		f.push(v1)
		f.push(v2)
		return nil
	}, OpSwap)
}
