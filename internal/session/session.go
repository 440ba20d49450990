// Package session is the entry point a host embeds: it wraps one decoded
// module with the interpreter for its bytecode, lists the executable
// units and invokes them by name. Animation sessions also step the main
// timeline frame by frame.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"necroverse/internal/avm1"
	"necroverse/internal/callstack"
	"necroverse/internal/config"
	"necroverse/internal/descriptor"
	"necroverse/internal/diag"
	"necroverse/internal/jvm"
	"necroverse/internal/loader"
	"necroverse/internal/source"
	"necroverse/internal/swf"
	"necroverse/internal/trace"
)

var (
	// ErrNoUnit is returned by Invoke for a name Units does not list.
	ErrNoUnit = errors.New("no such unit")
	// ErrArgument is returned when an argument cannot be converted.
	ErrArgument = errors.New("bad argument")
)

// Kind classifies an executable unit.
type Kind string

const (
	KindInit   Kind = "init"
	KindFrame  Kind = "frame"
	KindButton Kind = "button"
	KindClip   Kind = "clip"
	KindMethod Kind = "method"
)

// Unit describes one invocable blob of bytecode.
type Unit struct {
	Name      string
	Kind      Kind
	Size      int
	Signature string // methods only
	Static    bool   // methods only
}

// Result is the host-facing outcome of one invocation.
type Result struct {
	Unit   string
	State  string // "returned" or "faulted"
	Value  string // rendered return value; empty for void
	Thrown string // uncaught guest throw
	Err    error  // fault or guard refusal
}

// Faulted reports whether the unit ended abnormally.
func (r Result) Faulted() bool { return r.State != "returned" }

// Options configure a session.
type Options struct {
	Config   config.Config
	Out      io.Writer     // guest output; io.Discard when nil
	Reporter diag.Reporter // defaults to the module's diagnostic bag
	Tracer   trace.Tracer
}

// Session executes one module. It is single-threaded; one session per
// goroutine.
type Session struct {
	mod   *loader.Module
	rep   diag.Reporter
	tr    trace.Tracer
	guard *callstack.Guard
	units []Unit

	// animation
	avm     *avm1.Machine
	player  *player
	code    map[string]swf.Unit
	initRan bool

	// class
	vm      *jvm.Machine
	methods map[string]*jvm.Method
}

// New builds a session for mod.
func New(mod *loader.Module, opts Options) (*Session, error) {
	cfg := opts.Config
	if cfg.Limits.MaxCallDepth == 0 {
		cfg = config.Default()
	}
	s := &Session{
		mod:   mod,
		rep:   opts.Reporter,
		tr:    opts.Tracer,
		guard: callstack.New(cfg.Limits.MaxCallDepth, cfg.Limits.MaxRepeat),
	}
	if s.rep == nil {
		s.rep = diag.NewDedupReporter(diag.BagReporter{Bag: mod.Diags})
	}
	if s.tr == nil {
		s.tr = trace.Nop
	}
	switch {
	case mod.Movie != nil:
		s.initMovie(cfg, opts.Out)
	case mod.Class != nil:
		s.vm = jvm.New(jvm.Config{
			Guard:           s.guard,
			Out:             opts.Out,
			Reporter:        s.rep,
			Tracer:          s.tr,
			MaxOperandStack: cfg.Limits.MaxOperandStack,
		})
		s.methods = make(map[string]*jvm.Method)
		if err := s.AddClass(mod); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("session: module %s has no decoded content", mod.Name())
	}
	return s, nil
}

func (s *Session) initMovie(cfg config.Config, out io.Writer) {
	m := s.mod.Movie
	if l := m.Limits; l != nil && l.MaxRecursionDepth > 0 && int(l.MaxRecursionDepth) < s.guard.MaxDepth() {
		s.guard.SetMaxDepth(int(l.MaxRecursionDepth))
	}
	if a := m.Attributes; a != nil && a.ActionScript3() {
		diag.ReportInfo(s.rep, diag.IntInfo, source.At(s.mod.File.ID, 0, 0),
			"container declares the newer script model; its bytecode is not executed").Emit()
	}
	s.player = newPlayer(m, s.tr)
	s.avm = avm1.New(avm1.Config{
		Guard:    s.guard,
		Timeline: s.player,
		Out:      out,
		Reporter: s.rep,
		Tracer:   s.tr,
		Version:  m.Header.Version,
		File:     s.mod.File.ID,
		MaxStack: cfg.Limits.MaxOperandStack,
	})
	s.code = make(map[string]swf.Unit)
	for _, u := range m.Units() {
		s.code[u.Name] = u
		s.units = append(s.units, Unit{Name: u.Name, Kind: unitKind(u.Name), Size: len(u.Code)})
	}
}

func unitKind(name string) Kind {
	prefix, _, _ := strings.Cut(name, ":")
	switch prefix {
	case "init":
		return KindInit
	case "button":
		return KindButton
	case "clip":
		return KindClip
	default:
		return KindFrame
	}
}

// AddClass registers another decoded class with a class session so that
// hierarchy walks and calls can cross class files.
func (s *Session) AddClass(mod *loader.Module) error {
	if s.vm == nil || mod.Class == nil {
		return fmt.Errorf("session: %s is not a class module", mod.Name())
	}
	c, errs := s.vm.Registry().Add(mod.Class, mod.File.ID)
	for _, err := range errs {
		diag.ReportWarning(s.rep, diag.IntBadSignature, source.At(mod.File.ID, 0, 0), err.Error()).Emit()
	}
	keys := make([]string, 0, len(c.Methods))
	for k, m := range c.Methods {
		if m.Code != nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		m := c.Methods[k]
		name := c.Name + "." + k
		s.methods[name] = m
		s.units = append(s.units, Unit{
			Name:      name,
			Kind:      KindMethod,
			Size:      len(m.Code.Bytecode),
			Signature: m.Desc,
			Static:    m.IsStatic(),
		})
	}
	return nil
}

// Module returns the primary module.
func (s *Session) Module() *loader.Module { return s.mod }

// Units lists every invocable unit in a stable order.
func (s *Session) Units() []Unit { return s.units }

// Guard exposes the call guard shared by every invocation.
func (s *Session) Guard() *callstack.Guard { return s.guard }

// Invoke runs the unit called name. Animation units take no arguments;
// methods take Go values matching their parameter types (int, int64,
// float64, bool, string or nil). Interpreter faults and uncaught throws
// are reported in the Result; the error is for unknown units and
// unconvertible arguments.
func (s *Session) Invoke(ctx context.Context, name string, args ...any) (Result, error) {
	if s.avm != nil {
		u, ok := s.code[name]
		if !ok {
			return s.callVariable(ctx, name, args)
		}
		if len(args) > 0 {
			return Result{}, fmt.Errorf("%w: action unit %s takes no arguments", ErrArgument, name)
		}
		return s.avmResult(name, s.avm.Run(ctx, avmUnit(u))), nil
	}
	m, ok := s.methods[name]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrNoUnit, name)
	}
	vals, err := s.jvmArgs(m, args)
	if err != nil {
		return Result{}, err
	}
	return s.jvmResult(name, m, s.vm.InvokeMethod(ctx, m, vals)), nil
}

func (s *Session) jvmResult(name string, m *jvm.Method, res jvm.Result) Result {
	out := Result{Unit: name, State: res.State.String(), Err: res.Err}
	if res.Thrown != nil {
		out.Thrown = res.Thrown.Error()
	}
	if res.State == jvm.StateReturned && m.Sig.Return.Kind != descriptor.Void {
		out.Value = s.vm.Stringify(res.Value, m.Sig.Return)
	}
	return out
}

func avmUnit(u swf.Unit) avm1.Unit {
	return avm1.Unit{Name: u.Name, Code: u.Code, Offset: u.Offset}
}

// callVariable invokes a script function defined on the main timeline,
// as a host event handler would.
func (s *Session) callVariable(ctx context.Context, name string, args []any) (Result, error) {
	fn := s.avm.GetVariable(name)
	if s.avm.TypeOf(fn) != "function" {
		return Result{}, fmt.Errorf("%w: %s", ErrNoUnit, name)
	}
	vals := make([]avm1.Value, len(args))
	for i, a := range args {
		v, err := avmValue(a)
		if err != nil {
			return Result{}, err
		}
		vals[i] = v
	}
	return s.avmResult(name, s.avm.Call(ctx, fn, avm1.Object(s.avm.Root()), vals...)), nil
}

func avmValue(a any) (avm1.Value, error) {
	switch x := a.(type) {
	case nil:
		return avm1.Null, nil
	case string:
		return avm1.String(x), nil
	case bool:
		return avm1.Bool(x), nil
	case int:
		return avm1.Number(float64(x)), nil
	case int64:
		return avm1.Number(float64(x)), nil
	case float64:
		return avm1.Number(x), nil
	case avm1.Value:
		return x, nil
	}
	return avm1.Value{}, fmt.Errorf("%w: cannot pass %T to a script", ErrArgument, a)
}

func (s *Session) avmResult(name string, res avm1.Result) Result {
	out := Result{Unit: name, State: res.State.String(), Err: res.Err}
	if res.Thrown != nil {
		out.Thrown = res.Thrown.Text
	}
	if res.State == avm1.StateReturned && !res.Value.IsUndefined() {
		out.Value = s.avm.ToString(res.Value)
	}
	return out
}

func (s *Session) jvmArgs(m *jvm.Method, args []any) ([]jvm.Value, error) {
	params := m.Sig.Params
	recv := 0
	if !m.IsStatic() {
		recv = 1
	}
	if len(args) != len(params)+recv {
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrArgument, m, len(params)+recv, len(args))
	}
	out := make([]jvm.Value, len(args))
	for i, a := range args {
		if i < recv {
			if a != nil {
				return nil, fmt.Errorf("%w: receiver must be nil", ErrArgument)
			}
			out[i] = s.vm.NewObject(m.Class.Name)
			continue
		}
		v, err := s.jvmValue(a, params[i-recv])
		if err != nil {
			return nil, fmt.Errorf("%w: argument %d of %s: %w", ErrArgument, i, m, err)
		}
		out[i] = v
	}
	return out, nil
}

func (s *Session) jvmValue(a any, t descriptor.Type) (jvm.Value, error) {
	if t.Reference() {
		switch x := a.(type) {
		case nil:
			return jvm.Null, nil
		case string:
			if t.Kind == descriptor.Object && (t.Class == "java/lang/String" || t.Class == "java/lang/Object") {
				return s.vm.NewString(x), nil
			}
		case jvm.Value:
			return x, nil
		}
		return jvm.Value{}, fmt.Errorf("cannot pass %T as %s", a, t)
	}
	var n float64
	switch x := a.(type) {
	case int:
		n = float64(x)
	case int64:
		if t.Kind == descriptor.Long {
			return jvm.Long(x), nil
		}
		n = float64(x)
	case float64:
		n = x
	case bool:
		if x {
			n = 1
		}
	case jvm.Value:
		return x, nil
	default:
		return jvm.Value{}, fmt.Errorf("cannot pass %T as %s", a, t)
	}
	switch t.Kind {
	case descriptor.Long:
		return jvm.Long(int64(n)), nil
	case descriptor.Float:
		return jvm.Float(float32(n)), nil
	case descriptor.Double:
		return jvm.Double(n), nil
	}
	return jvm.Int(int32(int64(n))), nil
}
