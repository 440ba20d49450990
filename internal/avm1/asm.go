package avm1

import (
	"fmt"
	"math"

	"necroverse/internal/bitio"
	"necroverse/internal/swf"
)

// Register and Constant select the register and constant-pool forms of
// Assembler.Push.
type (
	Register uint8
	Constant uint16
)

type fixup struct {
	at     int // of the 16-bit offset field
	next   int // base the offset is relative to
	label  string
	action ActionCode
}

// Assembler encodes action units for fixtures and tooling. Labels are
// local to one Assembler; nested blocks get their own.
type Assembler struct {
	version uint8
	buf     []byte
	labels  map[string]int
	fixups  []fixup
	err     error
}

// NewAssembler returns an empty assembler for a container version.
func NewAssembler(version uint8) *Assembler {
	return &Assembler{version: version, labels: make(map[string]int)}
}

// Len is the number of bytes emitted so far.
func (a *Assembler) Len() int { return len(a.buf) }

// Op emits actions without payload.
func (a *Assembler) Op(codes ...ActionCode) *Assembler {
	for _, c := range codes {
		a.buf = append(a.buf, byte(c))
	}
	return a
}

// Record emits an action with a payload.
func (a *Assembler) Record(code ActionCode, payload []byte) *Assembler {
	w := bitio.NewWriter(bitio.LittleEndian)
	w.U8(uint8(code))
	w.U16(uint16(len(payload)))
	w.Raw(payload)
	a.buf = append(a.buf, w.Bytes()...)
	return a
}

func (a *Assembler) writer() *bitio.Writer { return bitio.NewWriter(bitio.LittleEndian) }

func (a *Assembler) cstring(w *bitio.Writer, s string) {
	w.Raw(swf.EncodeString(s, a.version))
	w.U8(0)
}

// Push emits one Push action. Values may be string, float64, int, bool,
// nil (null), Undefined, Register or Constant.
func (a *Assembler) Push(vals ...any) *Assembler {
	w := a.writer()
	for _, v := range vals {
		switch x := v.(type) {
		case string:
			w.U8(pushString)
			a.cstring(w, x)
		case float64:
			bits := math.Float64bits(x)
			w.U8(pushDouble)
			w.U32(uint32(bits >> 32))
			w.U32(uint32(bits))
		case int:
			w.U8(pushInt)
			w.U32(uint32(int32(x)))
		case bool:
			w.U8(pushBool)
			if x {
				w.U8(1)
			} else {
				w.U8(0)
			}
		case nil:
			w.U8(pushNull)
		case Value:
			w.U8(pushUndefined)
		case Register:
			w.U8(pushRegister)
			w.U8(uint8(x))
		case Constant:
			if x > 0xff {
				w.U8(pushConst16)
				w.U16(uint16(x))
			} else {
				w.U8(pushConst8)
				w.U8(uint8(x))
			}
		default:
			a.fail(fmt.Errorf("avm1: cannot push %T", v))
		}
	}
	return a.Record(ActPush, w.Bytes())
}

// Label marks the current position.
func (a *Assembler) Label(name string) *Assembler {
	a.labels[name] = len(a.buf)
	return a
}

func (a *Assembler) branch(code ActionCode, label string) *Assembler {
	a.Record(code, []byte{0, 0})
	a.fixups = append(a.fixups, fixup{at: len(a.buf) - 2, next: len(a.buf), label: label, action: code})
	return a
}

// Jump branches to label unconditionally.
func (a *Assembler) Jump(label string) *Assembler { return a.branch(ActJump, label) }

// If branches to label when the popped value is true.
func (a *Assembler) If(label string) *Assembler { return a.branch(ActIf, label) }

// ConstantPool replaces the active pool.
func (a *Assembler) ConstantPool(strs ...string) *Assembler {
	w := a.writer()
	w.U16(uint16(len(strs)))
	for _, s := range strs {
		a.cstring(w, s)
	}
	return a.Record(ActConstantPool, w.Bytes())
}

// StoreRegister copies the top of stack into register n.
func (a *Assembler) StoreRegister(n uint8) *Assembler {
	return a.Record(ActStoreRegister, []byte{n})
}

func (a *Assembler) sub(body func(*Assembler)) []byte {
	s := NewAssembler(a.version)
	if body != nil {
		body(s)
	}
	b, err := s.Bytes()
	if err != nil {
		a.fail(err)
	}
	return b
}

// DefineFunction emits a function with the given parameters.
func (a *Assembler) DefineFunction(name string, params []string, body func(*Assembler)) *Assembler {
	code := a.sub(body)
	w := a.writer()
	a.cstring(w, name)
	w.U16(uint16(len(params)))
	for _, p := range params {
		a.cstring(w, p)
	}
	w.U16(uint16(len(code)))
	a.Record(ActDefineFunction, w.Bytes())
	a.buf = append(a.buf, code...)
	return a
}

// DefineFunction2 emits a register-allocating function.
func (a *Assembler) DefineFunction2(name string, registers uint8, flags uint16, params []Param, body func(*Assembler)) *Assembler {
	code := a.sub(body)
	w := a.writer()
	a.cstring(w, name)
	w.U16(uint16(len(params)))
	w.U8(registers)
	w.U16(flags)
	for _, p := range params {
		w.U8(p.Register)
		a.cstring(w, p.Name)
	}
	w.U16(uint16(len(code)))
	a.Record(ActDefineFunction2, w.Bytes())
	a.buf = append(a.buf, code...)
	return a
}

// With runs body with the popped object on the scope chain.
func (a *Assembler) With(body func(*Assembler)) *Assembler {
	code := a.sub(body)
	w := a.writer()
	w.U16(uint16(len(code)))
	a.Record(ActWith, w.Bytes())
	a.buf = append(a.buf, code...)
	return a
}

// Try emits a try block. A nil catch or finally omits that block; the
// caught value is stored in the variable catchName.
func (a *Assembler) Try(catchName string, try, catch, finally func(*Assembler)) *Assembler {
	tryCode, catchCode, finallyCode := a.sub(try), a.sub(catch), a.sub(finally)
	var flags uint8
	if catch != nil {
		flags |= tryHasCatch
	}
	if finally != nil {
		flags |= tryHasFinally
	}
	w := a.writer()
	w.U8(flags)
	w.U16(uint16(len(tryCode)))
	w.U16(uint16(len(catchCode)))
	w.U16(uint16(len(finallyCode)))
	a.cstring(w, catchName)
	a.Record(ActTry, w.Bytes())
	a.buf = append(a.buf, tryCode...)
	a.buf = append(a.buf, catchCode...)
	a.buf = append(a.buf, finallyCode...)
	return a
}

// GotoFrame jumps to a zero-based frame.
func (a *Assembler) GotoFrame(n uint16) *Assembler {
	w := a.writer()
	w.U16(n)
	return a.Record(ActGotoFrame, w.Bytes())
}

// GotoLabel jumps to a frame label.
func (a *Assembler) GotoLabel(label string) *Assembler {
	w := a.writer()
	a.cstring(w, label)
	return a.Record(ActGotoLabel, w.Bytes())
}

// GotoFrame2 pops a frame number or label.
func (a *Assembler) GotoFrame2(play bool) *Assembler {
	var flags byte
	if play {
		flags = 1
	}
	return a.Record(ActGotoFrame2, []byte{flags})
}

// GetURL requests url in window.
func (a *Assembler) GetURL(url, window string) *Assembler {
	w := a.writer()
	a.cstring(w, url)
	a.cstring(w, window)
	return a.Record(ActGetURL, w.Bytes())
}

// SetTarget redirects timeline actions to a clip path.
func (a *Assembler) SetTarget(path string) *Assembler {
	w := a.writer()
	a.cstring(w, path)
	return a.Record(ActSetTarget, w.Bytes())
}

func (a *Assembler) fail(err error) {
	if a.err == nil {
		a.err = err
	}
}

// Bytes resolves branches and returns the unit without a trailing End.
func (a *Assembler) Bytes() ([]byte, error) {
	if a.err != nil {
		return nil, a.err
	}
	out := append([]byte(nil), a.buf...)
	for _, fx := range a.fixups {
		target, ok := a.labels[fx.label]
		if !ok {
			return nil, fmt.Errorf("avm1: %s to undefined label %q", fx.action, fx.label)
		}
		off := target - fx.next
		if off < math.MinInt16 || off > math.MaxInt16 {
			return nil, fmt.Errorf("avm1: %s to %q out of range (%d)", fx.action, fx.label, off)
		}
		out[fx.at] = byte(uint16(int16(off)))
		out[fx.at+1] = byte(uint16(int16(off)) >> 8)
	}
	return out, nil
}

// MustBytes is Bytes followed by an End action; it panics on assembly
// errors and is meant for fixtures.
func (a *Assembler) MustBytes() []byte {
	b, err := a.Bytes()
	if err != nil {
		panic(err)
	}
	return append(b, byte(ActEnd))
}
