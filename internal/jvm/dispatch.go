package jvm

// opFunc executes one instruction whose opcode byte has been consumed. A
// returned *Thrown unwinds to the frame's handlers; faults are raised.
type opFunc func(m *Machine, f *Frame, op byte) error

// dispatch is the opcode jump table. Unassigned entries are nil and make
// the loop skip the byte with a diagnostic.
var dispatch [256]opFunc

func init() {
	registerConstOps()
	registerLocalOps()
	registerStackOps()
	registerArithOps()
	registerConvOps()
	registerFlowOps()
	registerObjectOps()
	registerArrayOps()
}

func set(fn opFunc, ops ...byte) {
	for _, op := range ops {
		dispatch[op] = fn
	}
}

func span(lo, hi byte) []byte {
	out := make([]byte, 0, hi-lo+1)
	for op := lo; ; op++ {
		out = append(out, op)
		if op == hi {
			break
		}
	}
	return out
}
