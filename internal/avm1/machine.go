// Package avm1 interprets the action bytecode embedded in animation
// containers.
//
// A Machine owns the state one movie mutates: the heap, the global and
// timeline variable objects, the call guard and the native library.
// Function calls recurse on the Go stack; the callstack.Guard bounds them.
package avm1

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"necroverse/internal/callstack"
	"necroverse/internal/diag"
	"necroverse/internal/heap"
	"necroverse/internal/source"
	"necroverse/internal/trace"
)

// DefaultMaxStack bounds the operand stack of one activation.
const DefaultMaxStack = 4096

// DefaultVersion is assumed when the container version is unknown.
const DefaultVersion = 10

// Config wires a Machine. Nil fields get working defaults.
type Config struct {
	Heap     *heap.Heap[Value]
	Natives  *Natives
	Guard    *callstack.Guard
	Timeline Timeline
	Out      io.Writer
	Reporter diag.Reporter
	Tracer   trace.Tracer
	Version  uint8
	File     source.FileID
	MaxStack int
	Seed     uint64
}

// Unit is one action blob. Offset locates Code in the container so
// diagnostics point at file bytes.
type Unit struct {
	Name   string
	Code   []byte
	Offset int
}

// Machine executes action units against one movie's state.
type Machine struct {
	heap     *heap.Heap[Value]
	natives  *Natives
	guard    *callstack.Guard
	tl       Timeline
	out      io.Writer
	rep      diag.Reporter
	tr       trace.Tracer
	version  uint8
	file     source.FileID
	maxStack int
	rng      *rand.Rand
	start    time.Time

	global        heap.ID
	root          heap.ID
	objectProto   heap.ID
	functionProto heap.ID
	arrayProto    heap.ID
	stringProto   heap.ID
	numberProto   heap.ID
	booleanProto  heap.ID
	clipProto     heap.ID

	ctorThis heap.ID
	frames   []*frame
	ctx      context.Context
	steps    uint64
}

// New builds a machine and installs its native library.
func New(cfg Config) *Machine {
	m := &Machine{
		heap:     cfg.Heap,
		natives:  cfg.Natives,
		guard:    cfg.Guard,
		tl:       cfg.Timeline,
		out:      cfg.Out,
		rep:      diag.OrNop(cfg.Reporter),
		tr:       cfg.Tracer,
		version:  cfg.Version,
		file:     cfg.File,
		maxStack: cfg.MaxStack,
		rng:      rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		start:    time.Now(),
		ctx:      context.Background(),
	}
	if m.heap == nil {
		m.heap = heap.New[Value]()
	}
	if m.natives == nil {
		m.natives = DefaultNatives()
	}
	if m.guard == nil {
		m.guard = callstack.New(callstack.DefaultMaxDepth, callstack.DefaultMaxRepeat)
	}
	if m.tl == nil {
		m.tl = NopTimeline{}
	}
	if m.out == nil {
		m.out = io.Discard
	}
	if m.tr == nil {
		m.tr = trace.Nop
	}
	if m.version == 0 {
		m.version = DefaultVersion
	}
	if m.maxStack <= 0 {
		m.maxStack = DefaultMaxStack
	}
	m.bootstrap()
	return m
}

func (m *Machine) Heap() *heap.Heap[Value] { return m.heap }
func (m *Machine) Guard() *callstack.Guard { return m.guard }
func (m *Machine) Version() uint8 { return m.version }

// Global is the _global object.
func (m *Machine) Global() heap.ID { return m.global }

// Root is the main timeline, which also holds frame-script variables.
func (m *Machine) Root() heap.ID { return m.root }

// bootstrap builds the prototype objects, installs natives and creates
// the root clip.
func (m *Machine) bootstrap() {
	m.objectProto = m.heap.Allocate("Object")
	m.functionProto = m.newObjectWith("Object", m.objectProto)
	m.arrayProto = m.newObjectWith("Object", m.objectProto)
	m.stringProto = m.newObjectWith("Object", m.objectProto)
	m.numberProto = m.newObjectWith("Object", m.objectProto)
	m.booleanProto = m.newObjectWith("Object", m.objectProto)
	m.clipProto = m.newObjectWith("Object", m.objectProto)
	m.global = m.newObjectWith("Object", m.objectProto)

	protos := map[string]heap.ID{
		"Object":    m.objectProto,
		"Function":  m.functionProto,
		"Array":     m.arrayProto,
		"String":    m.stringProto,
		"Number":    m.numberProto,
		"Boolean":   m.booleanProto,
		"MovieClip": m.clipProto,
	}
	for _, e := range m.natives.entries {
		fn := m.newFunction(&Function{Name: e.name, Native: e.fn})
		if e.owner == "_global" {
			if p, ok := protos[e.name]; ok {
				m.heap.SetField(fn, "prototype", Object(p))
				m.heap.SetField(p, "constructor", Object(fn))
			}
		}
		m.heap.SetField(m.ownerObject(e.owner), e.name, Object(fn))
	}
	mathObj := m.ownerObject("Math")
	for name, v := range mathConstants {
		m.heap.SetField(mathObj, name, Number(v))
	}
	m.heap.SetField(m.global, "Infinity", Number(math.Inf(1)))
	m.heap.SetField(m.global, "NaN", Number(math.NaN()))

	m.root = m.heap.AllocateWith(clipType, clipDefaults("", "/"))
	m.heap.SetField(m.root, protoKey, Object(m.clipProto))
}

// ownerObject walks a dotted owner path below _global, creating plain
// objects for missing segments.
func (m *Machine) ownerObject(path string) heap.ID {
	cur := m.global
	if path == "_global" {
		return cur
	}
	for _, seg := range strings.Split(path, ".") {
		v, ok := m.heap.GetField(cur, seg)
		if !ok || v.K != KObject {
			id := m.NewObject()
			m.heap.SetField(cur, seg, Object(id))
			cur = id
			continue
		}
		cur = v.Ref
	}
	return cur
}

// State is the terminal state of a top-level run.
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

// Result describes how a top-level run ended.
type Result struct {
	State  State
	Value  Value
	Thrown *Thrown
	Err    error
}

// Run executes a frame, init or event unit on the root timeline. Faults
// and uncaught throws end this unit only; the machine stays usable.
func (m *Machine) Run(ctx context.Context, u Unit) Result {
	f := m.unitFrame(u)
	return m.top(ctx, u.Name, func() (Value, error) { return m.exec(f) })
}

// Call invokes a function value with the given receiver as a top-level
// call, for host-driven events such as button handlers.
func (m *Machine) Call(ctx context.Context, fn, this Value, args ...Value) Result {
	name := "function"
	if h, ok := m.function(fn); ok {
		name = h.label()
	}
	return m.top(ctx, name, func() (Value, error) { return m.callValue(fn, this, args) })
}

// CallVariable looks up name on the timeline and calls it with the root
// clip as receiver.
func (m *Machine) CallVariable(ctx context.Context, name string, args ...Value) Result {
	fn := m.GetVariable(name)
	if _, ok := m.function(fn); !ok {
		return Result{State: StateFaulted, Err: fmt.Errorf("avm1: %s is not a function", name)}
	}
	return m.Call(ctx, fn, Object(m.root), args...)
}

func (m *Machine) top(ctx context.Context, name string, body func() (Value, error)) Result {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := trace.Start(ctx, m.tr, trace.ScopeUnit, name)
	m.ctx = ctx

	res := Result{State: StateRunning}
	if err := m.guard.Enter("unit", name); err != nil {
		res.State, res.Err = StateFaulted, err
	} else {
		v, err := body()
		m.guard.Leave()
		res.State, res.Value, res.Err = StateReturned, v, err
		if err != nil {
			res.State, res.Value = StateFaulted, Undefined
		}
	}
	var th *Thrown
	if errors.As(res.Err, &th) {
		res.Thrown = th
		m.reportAt(diag.IntUncaughtThrow, 0, 0, th.Error())
	}
	span.WithExtra("state", res.State.String()).End(name)
	return res
}

// GetVariable resolves name against the timeline then _global.
func (m *Machine) GetVariable(name string) Value {
	f := &frame{scope: []heap.ID{m.root}, locals: m.root, this: Object(m.root)}
	return m.getVariable(f, name)
}

// SetVariable assigns a timeline variable.
func (m *Machine) SetVariable(name string, v Value) {
	f := &frame{scope: []heap.ID{m.root}, locals: m.root, this: Object(m.root)}
	m.setVariable(f, name, v)
}

func (m *Machine) unitFrame(u Unit) *frame {
	return &frame{
		unit:   u.Name,
		code:   u.Code,
		offset: u.Offset,
		regs:   make([]Value, 4),
		scope:  []heap.ID{m.root},
		locals: m.root,
		this:   Object(m.root),
	}
}

// exec runs f to completion. Faults surface as *VMError, uncaught
// throws as *Thrown.
func (m *Machine) exec(f *frame) (ret Value, err error) {
	m.frames = append(m.frames, f)
	defer func() {
		if r := recover(); r != nil {
			vf, ok := r.(*vmFault)
			if !ok {
				panic(r)
			}
			ret, err = Undefined, m.faultAt(f, vf.code, vf.msg)
		}
		m.frames = m.frames[:len(m.frames)-1]
	}()
	if err := m.run(f, 0, len(f.code)); err != nil {
		return Undefined, err
	}
	if !f.done && (f.next < 0 || f.next > len(f.code)) {
		m.reportAt(diag.IntBadJump, f.offset, f.pc, fmt.Sprintf("%s: jump to %d outside unit of %d bytes", f.unit, f.next, len(f.code)))
	}
	return f.ret, nil
}

// callValue calls fn. Non-functions and guard refusals produce undefined
// with a diagnostic; faults in the callee abort only the callee.
func (m *Machine) callValue(fn, this Value, args []Value) (Value, error) {
	h, ok := m.function(fn)
	if !ok {
		m.warnCode(diag.IntUnresolvedCall, fmt.Sprintf("call of non-function %s", m.TypeOf(fn)))
		trace.Fault(m.tr, trace.ScopeUnit, "unresolved-call", m.TypeOf(fn), nil)
		return Undefined, nil
	}
	if h.Native != nil {
		return h.Native(m, this, args)
	}
	if err := m.guard.Enter(h.Unit, h.label()); err != nil {
		m.warnCode(guardDiag(err), err.Error())
		trace.Fault(m.tr, trace.ScopeUnit, "call-aborted", err.Error(), nil)
		return Undefined, nil
	}
	defer m.guard.Leave()
	v, err := m.exec(m.functionFrame(h, this, args))
	if err != nil {
		var vmErr *VMError
		if errors.As(err, &vmErr) {
			m.warnCode(faultDiag(vmErr.Code), fmt.Sprintf("call to %s aborted: %s", h.label(), vmErr.Message))
			return Undefined, nil
		}
		return Undefined, err
	}
	return v, nil
}

// construct runs ctor against a fresh object inheriting ctor.prototype.
func (m *Machine) construct(ctor Value, args []Value) (Value, error) {
	if _, ok := m.function(ctor); !ok {
		m.warnCode(diag.IntUnresolvedCall, "new of non-function "+m.TypeOf(ctor))
		return Undefined, nil
	}
	var proto heap.ID
	if p := m.GetMember(ctor, "prototype"); p.K == KObject {
		proto = p.Ref
	}
	obj := m.newObjectWith("Object", proto)
	m.heap.SetField(obj, "__constructor__", ctor)
	saved := m.ctorThis
	m.ctorThis = obj
	v, err := m.callValue(ctor, Object(obj), args)
	m.ctorThis = saved
	if err != nil {
		return Undefined, err
	}
	if v.K == KObject {
		return v, nil
	}
	return Object(obj), nil
}

// constructing reports whether this is the object a running constructor
// was invoked on.
func (m *Machine) constructing(this Value) bool {
	return this.K == KObject && this.Ref != 0 && this.Ref == m.ctorThis
}

func (f *Function) label() string {
	if f.Name != "" {
		return f.Name
	}
	return fmt.Sprintf("function@%d", f.Offset)
}

func guardDiag(err error) diag.Code {
	if errors.Is(err, callstack.ErrRepeat) {
		return diag.IntRepeatExceeded
	}
	return diag.IntDepthExceeded
}

func faultDiag(c FaultCode) diag.Code {
	switch c {
	case FaultBadJump:
		return diag.IntBadJump
	case FaultTruncated:
		return diag.IntTruncatedInstr
	case FaultStack:
		return diag.IntStackOverflow
	default:
		return diag.IntFault
	}
}

// ToNumber converts v, unboxing wrapper objects and parsing the string
// form of other objects.
func (m *Machine) ToNumber(v Value) float64 {
	if v.K != KObject {
		return v.ToNumber(m.version)
	}
	u := m.unbox(v)
	if u.K != KObject {
		return u.ToNumber(m.version)
	}
	if _, ok := m.arrayOf(v); ok {
		return parseNumber(m.ToString(v), m.version)
	}
	return math.NaN()
}

// toPrimitive reduces objects to their boxed value or string form.
func (m *Machine) toPrimitive(v Value) Value {
	if v.K != KObject {
		return v
	}
	if u := m.unbox(v); u.K != KObject {
		return u
	}
	return String(m.ToString(v))
}

func (m *Machine) trace(v Value) {
	s := "undefined"
	if !v.IsUndefined() {
		s = m.ToString(v)
	}
	fmt.Fprintln(m.out, s)
}

func (m *Machine) span(offset, pc int) source.Span {
	return source.At(m.file, offset+pc, 1)
}

func (m *Machine) reportAt(code diag.Code, offset, pc int, msg string) {
	diag.ReportWarning(m.rep, code, m.span(offset, pc), msg).Emit()
}

// warnCode reports at the current action of the innermost frame.
func (m *Machine) warnCode(code diag.Code, msg string) {
	if n := len(m.frames); n > 0 {
		f := m.frames[n-1]
		m.reportAt(code, f.offset, f.pc, f.unit+": "+msg)
		return
	}
	m.reportAt(code, 0, 0, msg)
}

func (m *Machine) warn(msg string) { m.warnCode(diag.IntInfo, msg) }

func (m *Machine) faultAt(f *frame, code FaultCode, msg string) *VMError {
	e := &VMError{Code: code, Message: msg}
	if f != nil {
		e.Span = m.span(f.offset, f.pc)
	}
	for i := len(m.frames) - 1; i >= 0; i-- {
		fr := m.frames[i]
		e.Backtrace = append(e.Backtrace, BacktraceFrame{Unit: fr.unit, PC: fr.pc})
	}
	trace.Fault(m.tr, trace.ScopeUnit, "fault", e.Error(), nil)
	return e
}
