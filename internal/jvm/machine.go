// Package jvm interprets managed bytecode from decoded class containers.
//
// A Machine owns everything one session mutates: the heap, the call guard,
// static fields and the interned string table. Nested invocations recurse
// on the Go stack; the callstack.Guard bounds them independently.
package jvm

import (
	"context"
	"errors"
	"fmt"
	"io"

	"necroverse/internal/callstack"
	"necroverse/internal/classfile"
	"necroverse/internal/descriptor"
	"necroverse/internal/diag"
	"necroverse/internal/heap"
	"necroverse/internal/source"
	"necroverse/internal/trace"
)

// ErrNoMethod is returned by Invoke when the entry point does not exist.
var ErrNoMethod = errors.New("jvm: no such method")

// DefaultMaxOperandStack bounds each frame's operand stack.
const DefaultMaxOperandStack = 4096

// Config wires a Machine. Nil fields get working defaults.
type Config struct {
	Registry        *Registry
	Natives         *Natives
	Heap            *heap.Heap[Value]
	Guard           *callstack.Guard
	Out             io.Writer
	Reporter        diag.Reporter
	Tracer          trace.Tracer
	MaxOperandStack int
}

// Machine executes methods from one Registry.
type Machine struct {
	reg      *Registry
	natives  *Natives
	heap     *heap.Heap[Value]
	guard    *callstack.Guard
	out      io.Writer
	rep      diag.Reporter
	tr       trace.Tracer
	maxStack int

	interned map[string]heap.ID
	frames   []*Frame
	ctx      context.Context
	steps    uint64
}

// New builds a machine.
func New(cfg Config) *Machine {
	m := &Machine{
		reg:      cfg.Registry,
		natives:  cfg.Natives,
		heap:     cfg.Heap,
		guard:    cfg.Guard,
		out:      cfg.Out,
		rep:      diag.OrNop(cfg.Reporter),
		tr:       cfg.Tracer,
		maxStack: cfg.MaxOperandStack,
		interned: make(map[string]heap.ID),
		ctx:      context.Background(),
	}
	if m.reg == nil {
		m.reg = NewRegistry()
	}
	if m.natives == nil {
		m.natives = DefaultNatives()
	}
	if m.heap == nil {
		m.heap = heap.New[Value]()
	}
	if m.guard == nil {
		m.guard = callstack.New(callstack.DefaultMaxDepth, callstack.DefaultMaxRepeat)
	}
	if m.out == nil {
		m.out = io.Discard
	}
	if m.tr == nil {
		m.tr = trace.Nop
	}
	if m.maxStack <= 0 {
		m.maxStack = DefaultMaxOperandStack
	}
	return m
}

func (m *Machine) Registry() *Registry { return m.reg }
func (m *Machine) Heap() *heap.Heap[Value] { return m.heap }
func (m *Machine) Out() io.Writer { return m.out }
func (m *Machine) Guard() *callstack.Guard { return m.guard }

// State is the terminal state of a top-level invocation.
type State uint8

const (
	StateRunning State = iota
	StateReturned
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateReturned:
		return "returned"
	case StateFaulted:
		return "faulted"
	default:
		return "running"
	}
}

// Result describes how a top-level invocation ended.
type Result struct {
	State  State
	Value  Value // KVoid for void methods and faults
	Thrown *Thrown
	Err    error
}

// Invoke runs class.name as a top-level call. An empty desc selects the
// first method with that name.
func (m *Machine) Invoke(ctx context.Context, class, name, desc string, args ...Value) (Result, error) {
	method := m.reg.FindMethod(class, name, desc)
	if method == nil {
		return Result{}, fmt.Errorf("%w: %s.%s%s", ErrNoMethod, class, name, desc)
	}
	return m.InvokeMethod(ctx, method, args), nil
}

// InvokeMethod runs method as a top-level call. Uncaught throws and faults
// end this call only; the machine stays usable.
func (m *Machine) InvokeMethod(ctx context.Context, method *Method, args []Value) Result {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := trace.Start(ctx, m.tr, trace.ScopeUnit, method.String())
	m.ctx = ctx

	res := Result{State: StateRunning}
	if err := m.initClass(method.Class); err != nil {
		res.State, res.Err = StateFaulted, err
	} else if err := m.guard.Enter(method.Class.Name, method.Name); err != nil {
		res.State, res.Err = StateFaulted, err
	} else {
		v, err := m.Execute(method, m.argLocals(method, args))
		m.guard.Leave()
		res.Value, res.Err = v, err
		res.State = StateReturned
		if err != nil {
			res.State, res.Value = StateFaulted, Value{}
		}
	}

	var th *Thrown
	if errors.As(res.Err, &th) {
		res.Thrown = th
		m.report(diag.IntUncaughtThrow, method, 0, th.Error())
	}
	span.WithExtra("state", res.State.String()).End(method.Name)
	return res
}

// argLocals spreads arguments over local slots, long and double taking two.
func (m *Machine) argLocals(method *Method, args []Value) []Value {
	var locals []Value
	for _, a := range args {
		locals = append(locals, a)
		if a.Wide() {
			locals = append(locals, Value{})
		}
	}
	return locals
}

// Execute runs one method to completion against initial locals. It
// returns the value of the return instruction, a *Thrown for an unhandled
// guest exception or a *VMError for a fault.
func (m *Machine) Execute(method *Method, locals []Value) (ret Value, err error) {
	if method.Code == nil || len(method.Code.Bytecode) == 0 {
		return Value{}, m.faultAt(nil, FaultNoCode, fmt.Sprintf("%s has no bytecode", method))
	}
	f := newFrame(method, locals, m.maxStack)
	m.frames = append(m.frames, f)
	defer func() {
		if r := recover(); r != nil {
			vf, ok := r.(*vmFault)
			if !ok {
				panic(r)
			}
			ret, err = Value{}, m.faultAt(f, vf.code, vf.msg)
		}
		m.frames = m.frames[:len(m.frames)-1]
	}()

	for !f.done {
		if f.code.Remaining() == 0 {
			return Value{}, m.faultAt(f, FaultFellOff, fmt.Sprintf("execution ran past the end of %s", method))
		}
		m.steps++
		if m.steps&0x3ff == 0 {
			if cerr := m.ctx.Err(); cerr != nil {
				return Value{}, m.faultAt(f, FaultCanceled, cerr.Error())
			}
		}
		f.start = f.code.Pos()
		op, _ := f.code.U8()
		h := dispatch[op]
		if h == nil {
			m.report(diag.IntUnknownOpcode, method, f.start, fmt.Sprintf("unknown opcode %#02x skipped", op))
			trace.Fault(m.tr, trace.ScopeInstr, "unknown-opcode", fmt.Sprintf("%#02x at %d", op, f.start), nil)
			continue
		}
		if err := h(m, f, op); err != nil {
			var th *Thrown
			if !errors.As(err, &th) || !m.catch(f, th) {
				return Value{}, err
			}
		}
	}
	return f.ret, nil
}

// catch transfers control to the first handler covering the faulting
// instruction whose catch type matches.
func (m *Machine) catch(f *Frame, th *Thrown) bool {
	for _, h := range f.Method.Code.Handlers {
		if !h.Covers(f.start) {
			continue
		}
		if h.CatchType != 0 && !m.reg.IsAssignable(th.Class, h.CatchName) {
			continue
		}
		if int(h.HandlerPC) >= len(f.Method.Code.Bytecode) {
			continue
		}
		f.Stack = f.Stack[:0]
		f.Stack = append(f.Stack, Ref(th.Ref))
		_ = f.code.Seek(int(h.HandlerPC))
		trace.Point(m.tr, trace.ScopeInstr, "catch", fmt.Sprintf("%s at %d -> %d", th.Class, f.start, h.HandlerPC))
		return true
	}
	return false
}

// callNested invokes a bytecode method from a call instruction. Guard
// refusals and faults abort only the callee: the caller receives the zero
// value of the declared return type. Thrown values propagate.
func (m *Machine) callNested(caller *Frame, target *Method, args []Value, ret descriptor.Type) (Value, error) {
	if err := m.guard.Enter(target.Class.Name, target.Name); err != nil {
		m.report(guardDiag(err), caller.Method, caller.start, err.Error())
		trace.Fault(m.tr, trace.ScopeUnit, "call-aborted", err.Error(), nil)
		return Zero(ret), nil
	}
	defer m.guard.Leave()
	v, err := m.Execute(target, m.argLocals(target, args))
	if err != nil {
		var vmErr *VMError
		if errors.As(err, &vmErr) {
			m.report(faultDiag(vmErr.Code), caller.Method, caller.start, fmt.Sprintf("call to %s aborted: %s", target, vmErr.Message))
			return Zero(ret), nil
		}
		return Value{}, err
	}
	return v, nil
}

func guardDiag(err error) diag.Code {
	if errors.Is(err, callstack.ErrRepeat) {
		return diag.IntRepeatExceeded
	}
	return diag.IntDepthExceeded
}

func faultDiag(c FaultCode) diag.Code {
	switch c {
	case FaultStackUnderflow:
		return diag.IntStackUnderflow
	case FaultStackOverflow:
		return diag.IntStackOverflow
	case FaultBadJump:
		return diag.IntBadJump
	case FaultTruncated:
		return diag.IntTruncatedInstr
	default:
		return diag.IntFault
	}
}

func (m *Machine) span(method *Method, pc int) source.Span {
	if method == nil || method.Code == nil {
		return source.Span{}
	}
	return source.At(method.Class.FileID, method.Code.Offset+pc, 1)
}

func (m *Machine) report(code diag.Code, method *Method, pc int, msg string) {
	diag.ReportWarning(m.rep, code, m.span(method, pc), msg).Emit()
}

func (m *Machine) faultAt(f *Frame, code FaultCode, msg string) *VMError {
	e := &VMError{Code: code, Message: msg}
	if f != nil {
		e.Span = m.span(f.Method, f.start)
	}
	for i := len(m.frames) - 1; i >= 0; i-- {
		fr := m.frames[i]
		e.Backtrace = append(e.Backtrace, BacktraceFrame{Method: fr.Method.String(), PC: fr.start, Span: m.span(fr.Method, fr.start)})
	}
	trace.Fault(m.tr, trace.ScopeUnit, "fault", e.Error(), nil)
	return e
}

// initClass runs <clinit> once, after seeding ConstantValue statics.
func (m *Machine) initClass(c *Class) error {
	if c == nil || c.init != uninitialized {
		return nil
	}
	c.init = initializing
	if c.Super != "" {
		if sc, ok := m.reg.Lookup(c.Super); ok {
			if err := m.initClass(sc); err != nil {
				return err
			}
		}
	}
	for name, f := range c.Fields {
		if !f.Static {
			continue
		}
		v := Zero(f.Type)
		if f.Constant != 0 && c.File != nil {
			if cv, err := m.loadConstant(c.File.Pool, f.Constant); err == nil {
				v = cv
			}
		}
		c.statics[name] = v
	}
	defer func() { c.init = initialized }()
	if clinit := c.Method("<clinit>", "()V"); clinit != nil && clinit.Code != nil {
		if err := m.guard.Enter(c.Name, "<clinit>"); err != nil {
			return err
		}
		defer m.guard.Leave()
		if _, err := m.Execute(clinit, nil); err != nil {
			return err
		}
	}
	return nil
}

// loadConstant converts a loadable pool entry to a Value.
func (m *Machine) loadConstant(pool *classfile.Pool, idx uint16) (Value, error) {
	c, err := pool.Loadable(idx)
	if err != nil {
		return Value{}, err
	}
	switch v := c.(type) {
	case int32:
		return Int(v), nil
	case float32:
		return Float(v), nil
	case int64:
		return Long(v), nil
	case float64:
		return Double(v), nil
	case string:
		return m.Intern(v), nil
	case classfile.ClassRef:
		return m.classObject(v.Name), nil
	}
	return Value{}, fmt.Errorf("unloadable constant #%d", idx)
}

// classObject returns a stand-in java/lang/Class instance.
func (m *Machine) classObject(name string) Value {
	id := m.heap.AllocateHost("java/lang/Class", name)
	return Ref(id)
}

// throw allocates a guest exception and returns it as an error for the
// dispatch loop to unwind.
func (m *Machine) throw(class, msg string) error {
	id := m.heap.AllocateWith(class, m.reg.InstanceDefaults(class))
	if msg != "" {
		m.heap.SetField(id, "message", m.NewString(msg))
	}
	return &Thrown{Ref: id, Class: class, Msg: msg}
}

// thrownFrom wraps an existing object for athrow.
func (m *Machine) thrownFrom(id heap.ID) *Thrown {
	th := &Thrown{Ref: id, Class: m.heap.TypeOf(id)}
	if v, ok := m.heap.GetField(id, "message"); ok {
		th.Msg = m.GoString(v)
	}
	return th
}
