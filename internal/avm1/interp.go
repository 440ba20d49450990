package avm1

import (
	"fmt"

	"necroverse/internal/bitio"
	"necroverse/internal/diag"
	"necroverse/internal/heap"
	"necroverse/internal/swf"
	"necroverse/internal/trace"
)

// actionFunc executes one action. f.next is preset to the following
// record; jumps overwrite it. A returned *Thrown unwinds to the nearest
// Try block; faults are raised.
type actionFunc func(m *Machine, f *frame, a Action) error

// dispatch is the action jump table. Nil entries are skipped with a
// diagnostic.
var dispatch [256]actionFunc

func init() {
	registerStackActions()
	registerArithActions()
	registerStringActions()
	registerObjectActions()
	registerFlowActions()
	registerTimelineActions()
}

func set(fn actionFunc, codes ...ActionCode) {
	for _, c := range codes {
		dispatch[c] = fn
	}
}

// run executes the actions in [start, end). It returns when execution
// reaches end, leaves the range by a jump (f.next holds the target), or
// the activation finishes. Nested With and Try blocks call run for their
// own ranges so that leaving a block always passes through its cleanup.
func (m *Machine) run(f *frame, start, end int) error {
	pc := start
	for !f.done {
		if pc == end || pc < start || pc > end {
			f.next = pc
			return nil
		}
		m.steps++
		if m.steps&0x3ff == 0 {
			if err := m.ctx.Err(); err != nil {
				fault(FaultCanceled, "%v", err)
			}
		}
		a, _ := ReadAction(f.code, pc)
		f.pc = pc
		if a.Truncated {
			fault(FaultTruncated, "%s record at %d runs past the end of the unit", a.Code, pc)
		}
		if a.Code == ActEnd {
			f.done = true
			return nil
		}
		f.next = a.Next()
		h := dispatch[a.Code]
		if h == nil {
			m.reportAt(diag.IntUnknownOpcode, f.offset, pc, fmt.Sprintf("%s: unknown action %s skipped", f.unit, a.Code))
			trace.Fault(m.tr, trace.ScopeInstr, "unknown-action", fmt.Sprintf("%s at %d", a.Code, pc), nil)
			pc = f.next
			continue
		}
		if err := h(m, f, a); err != nil {
			return err
		}
		pc = f.next
	}
	return nil
}

// block runs a nested range and reports where execution continues.
// Leaving the range at its end continues at after.
func (m *Machine) block(f *frame, start, end, after int) error {
	if err := m.run(f, start, end); err != nil {
		return err
	}
	if f.next == end {
		f.next = after
	}
	return nil
}

// payload returns a little-endian reader over the action payload.
func payload(a Action) *bitio.Reader {
	return bitio.NewReader(a.Payload, bitio.LittleEndian)
}

func (m *Machine) cstring(f *frame, r *bitio.Reader, a Action) string {
	b, err := r.CString()
	if err != nil {
		fault(FaultMalformed, "%s at %d: %v", a.Code, f.pc, err)
	}
	return swf.DecodeString(b, m.version)
}

func must[T any](v T, err error) T {
	if err != nil {
		fault(FaultMalformed, "%v", err)
	}
	return v
}

// bodyRange checks that a code block of n bytes after the action fits in
// the unit.
func bodyRange(f *frame, a Action, n int) (int, int) {
	start := a.Next()
	end := start + n
	if end > len(f.code) {
		fault(FaultTruncated, "%s at %d declares %d body bytes, %d remain", a.Code, f.pc, n, len(f.code)-start)
	}
	return start, end
}

// functionFrame prepares an activation for a bytecode function.
func (m *Machine) functionFrame(fn *Function, this Value, args []Value) *frame {
	act := m.heap.Allocate("Activation")
	f := &frame{
		unit:   fn.Unit,
		code:   fn.Body,
		offset: fn.Offset,
		pool:   fn.Pool,
		locals: act,
		this:   this,
		fn:     fn,
	}
	f.scope = append(append(make([]heap.ID, 0, len(fn.Scope)+1), fn.Scope...), act)
	argv := Object(m.NewArray(args))

	if !fn.V2 {
		f.regs = make([]Value, 4)
		for i, p := range fn.Params {
			m.heap.SetField(act, p.Name, arg(args, i))
		}
		m.heap.SetField(act, "arguments", argv)
		return f
	}

	f.regs = make([]Value, max(int(fn.Registers), 1))
	r := 1
	preload := func(flag uint16, v Value) {
		if fn.Flags&flag != 0 && r < len(f.regs) {
			f.regs[r] = v
			r++
		}
	}
	super := Undefined
	if this.K == KObject {
		proto := m.GetMember(this, protoKey)
		super = m.GetMember(proto, "__constructor__")
	}
	preload(FlagPreloadThis, this)
	preload(FlagPreloadArguments, argv)
	preload(FlagPreloadSuper, super)
	preload(FlagPreloadRoot, Object(m.root))
	preload(FlagPreloadParent, m.GetMember(Object(m.root), "_parent"))
	preload(FlagPreloadGlobal, Object(m.global))
	if fn.Flags&(FlagPreloadArguments|FlagSuppressArguments) == 0 {
		m.heap.SetField(act, "arguments", argv)
	}
	if fn.Flags&(FlagPreloadSuper|FlagSuppressSuper) == 0 {
		m.heap.SetField(act, "super", super)
	}
	for i, p := range fn.Params {
		if p.Register != 0 && int(p.Register) < len(f.regs) {
			f.regs[p.Register] = arg(args, i)
			continue
		}
		m.heap.SetField(act, p.Name, arg(args, i))
	}
	return f
}
