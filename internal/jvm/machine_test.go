package jvm

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"necroverse/internal/callstack"
	"necroverse/internal/classfile"
	"necroverse/internal/diag"
)

type rig struct {
	m   *Machine
	bag *diag.Bag
	out *bytes.Buffer
}

func newRig(t *testing.T, builders ...*classfile.Builder) *rig {
	t.Helper()
	reg := NewRegistry()
	for _, b := range builders {
		cf, err := classfile.Decode(b.Bytes(), classfile.Options{})
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if _, errs := reg.Add(cf, 0); len(errs) > 0 {
			t.Fatalf("register: %v", errs)
		}
	}
	r := &rig{bag: diag.NewBag(100), out: &bytes.Buffer{}}
	r.m = New(Config{Registry: reg, Out: r.out, Reporter: diag.BagReporter{Bag: r.bag}})
	return r
}

func (r *rig) invoke(t *testing.T, name string, args ...Value) Result {
	t.Helper()
	res, err := r.m.Invoke(context.Background(), "t/Main", name, "", args...)
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func single(name, desc string, maxLocals uint16, code []byte, handlers ...classfile.BuilderHandler) *classfile.Builder {
	b := classfile.NewBuilder("t/Main", "java/lang/Object")
	b.AddMethod(classfile.AccPublic|classfile.AccStatic, name, desc, 8, maxLocals, code, handlers...)
	return b
}

func u16(v uint16) []byte { return []byte{byte(v >> 8), byte(v)} }

func TestInvokeArithmetic(t *testing.T) {
	tests := []struct {
		name string
		code []byte
		want int32
	}{
		{"add", []byte{OpIconst3, OpIconst4, OpIadd, OpIreturn}, 7},
		{"sub", []byte{OpIconst3, OpIconst4, OpIsub, OpIreturn}, -1},
		{"bipush neg", []byte{OpBipush, 0xfe, OpIconst2, OpImul, OpIreturn}, -4},
		{"i2b truncates", []byte{OpSipush, 0x01, 0x80, OpI2b, OpIreturn}, -128},
		{"shift masks count", []byte{OpIconst1, OpBipush, 33, OpIshl, OpIreturn}, 2},
		{"rem sign", []byte{OpBipush, 0xf9, OpIconst2, OpIrem, OpIreturn}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t, single("f", "()I", 0, tt.code))
			res := r.invoke(t, "f")
			if res.State != StateReturned {
				t.Fatalf("state = %v, err = %v", res.State, res.Err)
			}
			if got := res.Value.AsInt(); got != tt.want {
				t.Errorf("result = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestInvokeArguments(t *testing.T) {
	code := []byte{OpLload0, OpIload2, OpI2l, OpLadd, OpLreturn}
	r := newRig(t, single("f", "(JI)J", 3, code))
	res := r.invoke(t, "f", Long(1<<40), Int(5))
	if res.State != StateReturned || res.Value.AsLong() != 1<<40+5 {
		t.Fatalf("result = %v (%v)", res.Value, res.Err)
	}
}

func TestMalformedDescriptorSparesSiblings(t *testing.T) {
	b := classfile.NewBuilder("t/Main", "java/lang/Object")
	b.AddMethod(classfile.AccPublic|classfile.AccStatic, "bad", "(I", 1, 1, []byte{OpReturn})
	b.AddMethod(classfile.AccPublic|classfile.AccStatic, "good", "()I", 2, 0, []byte{OpBipush, 7, OpIreturn})
	cf, err := classfile.Decode(b.Bytes(), classfile.Options{})
	if err != nil {
		t.Fatal(err)
	}
	reg := NewRegistry()
	c, errs := reg.Add(cf, 0)
	var sigErr *SignatureError
	if len(errs) != 1 || !errors.As(errs[0], &sigErr) || sigErr.Method != "t/Main.bad" {
		t.Fatalf("errs = %v", errs)
	}
	if len(c.Methods) != 2 {
		t.Fatalf("methods = %v", c.Methods)
	}
	r := &rig{bag: diag.NewBag(100), out: &bytes.Buffer{}}
	r.m = New(Config{Registry: reg, Out: r.out, Reporter: diag.BagReporter{Bag: r.bag}})

	if res := r.invoke(t, "good"); res.State != StateReturned || res.Value.AsInt() != 7 {
		t.Errorf("good = %+v", res)
	}
	if res := r.invoke(t, "bad"); res.State != StateReturned {
		t.Errorf("bad = %+v", res)
	}
}

func TestVoidReturnLeavesNoValue(t *testing.T) {
	r := newRig(t, single("f", "()V", 0, []byte{OpReturn}))
	res := r.invoke(t, "f")
	if res.State != StateReturned || res.Value.K != KVoid {
		t.Fatalf("result = %+v", res)
	}
	if r.bag.Len() != 0 {
		t.Errorf("diagnostics: %v", r.bag.Items())
	}
}

func TestSelfRecursionStopsAtRepeatLimit(t *testing.T) {
	b := classfile.NewBuilder("t/Main", "java/lang/Object")
	self := b.Methodref("t/Main", "loop", "()V")
	code := append([]byte{OpInvokestatic}, u16(self)...)
	code = append(code, OpReturn)
	b.AddMethod(classfile.AccStatic, "loop", "()V", 1, 0, code)

	r := newRig(t, b)
	res := r.invoke(t, "loop")
	if res.State != StateReturned {
		t.Fatalf("state = %v, err = %v", res.State, res.Err)
	}
	if n := r.bag.Count(diag.IntRepeatExceeded); n != 1 {
		t.Errorf("repeat diagnostics = %d, want 1", n)
	}
	if d := r.m.Guard().Depth(); d != 0 {
		t.Errorf("guard depth after return = %d", d)
	}
}

func TestDepthLimitAbortsCallee(t *testing.T) {
	// a -> b -> a ... alternating so repetition does not trip first.
	b := classfile.NewBuilder("t/Main", "java/lang/Object")
	toB := b.Methodref("t/Main", "b", "()I")
	toA := b.Methodref("t/Main", "a", "()I")
	b.AddMethod(classfile.AccStatic, "a", "()I", 1, 0, append(append([]byte{OpInvokestatic}, u16(toB)...), OpIreturn))
	b.AddMethod(classfile.AccStatic, "b", "()I", 1, 0, append(append([]byte{OpInvokestatic}, u16(toA)...), OpIreturn))

	reg := NewRegistry()
	cf, err := classfile.Decode(b.Bytes(), classfile.Options{})
	if err != nil {
		t.Fatal(err)
	}
	reg.Add(cf, 0)
	bag := diag.NewBag(10)
	m := New(Config{Registry: reg, Guard: callstack.New(4, 100), Reporter: diag.BagReporter{Bag: bag}})
	res, err := m.Invoke(context.Background(), "t/Main", "a", "()I")
	if err != nil {
		t.Fatal(err)
	}
	if res.State != StateReturned || res.Value.AsInt() != 0 {
		t.Fatalf("result = %+v", res)
	}
	if bag.Count(diag.IntDepthExceeded) != 1 {
		t.Errorf("diagnostics: %v", bag.Items())
	}
}

func TestHandlerCatchesDivisionByZero(t *testing.T) {
	code := []byte{
		OpIconst1, OpIconst0, OpIdiv, OpIreturn, // 0..3
		OpPop, OpBipush, 42, OpIreturn, // 4..7
	}
	r := newRig(t, single("f", "()I", 0, code,
		classfile.BuilderHandler{StartPC: 0, EndPC: 4, HandlerPC: 4, CatchName: "java/lang/RuntimeException"}))
	res := r.invoke(t, "f")
	if res.State != StateReturned || res.Value.AsInt() != 42 {
		t.Fatalf("result = %+v", res)
	}
}

func TestUncaughtThrowFaultsTopLevel(t *testing.T) {
	code := []byte{OpIconst1, OpIconst0, OpIdiv, OpIreturn}
	r := newRig(t, single("f", "()I", 0, code,
		classfile.BuilderHandler{StartPC: 0, EndPC: 4, HandlerPC: 3, CatchName: "java/lang/NullPointerException"}))
	res := r.invoke(t, "f")
	if res.State != StateFaulted || res.Thrown == nil {
		t.Fatalf("result = %+v", res)
	}
	if res.Thrown.Class != "java/lang/ArithmeticException" || res.Thrown.Msg != "/ by zero" {
		t.Errorf("thrown = %+v", res.Thrown)
	}
	if r.bag.Count(diag.IntUncaughtThrow) != 1 {
		t.Errorf("diagnostics: %v", r.bag.Items())
	}
}

func TestStackUnderflowIsFault(t *testing.T) {
	r := newRig(t, single("f", "()I", 0, []byte{OpIadd, OpIreturn}))
	res := r.invoke(t, "f")
	var vmErr *VMError
	if res.State != StateFaulted || !errors.As(res.Err, &vmErr) {
		t.Fatalf("result = %+v", res)
	}
	if vmErr.Code != FaultStackUnderflow {
		t.Errorf("code = %v", vmErr.Code)
	}
	if len(vmErr.Backtrace) != 1 || vmErr.Backtrace[0].Method != "t/Main.f()I" {
		t.Errorf("backtrace = %+v", vmErr.Backtrace)
	}
}

func TestFallingOffTheEnd(t *testing.T) {
	r := newRig(t, single("f", "()V", 0, []byte{OpNop}))
	res := r.invoke(t, "f")
	var vmErr *VMError
	if !errors.As(res.Err, &vmErr) || vmErr.Code != FaultFellOff {
		t.Fatalf("err = %v", res.Err)
	}
}

func TestUnknownOpcodeIsSkipped(t *testing.T) {
	r := newRig(t, single("f", "()I", 0, []byte{0xcb, OpIconst2, OpIreturn}))
	res := r.invoke(t, "f")
	if res.State != StateReturned || res.Value.AsInt() != 2 {
		t.Fatalf("result = %+v", res)
	}
	if r.bag.Count(diag.IntUnknownOpcode) != 1 {
		t.Errorf("diagnostics: %v", r.bag.Items())
	}
}

func tableSwitchCode() []byte {
	code := []byte{OpIload0, OpTableswitch, 0, 0}
	for _, v := range []int32{29, 1, 2, 23, 26} { // default, lo, hi, case 1, case 2
		code = append(code, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	}
	return append(code,
		OpBipush, 10, OpIreturn, // 24
		OpBipush, 20, OpIreturn, // 27
		OpIconstM1, OpIreturn, // 30
	)
}

func TestTableSwitch(t *testing.T) {
	for arg, want := range map[int32]int32{1: 10, 2: 20, 0: -1, 9: -1} {
		r := newRig(t, single("f", "(I)I", 1, tableSwitchCode()))
		res := r.invoke(t, "f", Int(arg))
		if res.Value.AsInt() != want {
			t.Errorf("switch(%d) = %v (%v), want %d", arg, res.Value, res.Err, want)
		}
	}
}

func TestPrintlnGoesToHostWriter(t *testing.T) {
	b := classfile.NewBuilder("t/Main", "java/lang/Object")
	out := b.Fieldref("java/lang/System", "out", "Ljava/io/PrintStream;")
	msg := b.String("hello")
	printStr := b.Methodref("java/io/PrintStream", "println", "(Ljava/lang/String;)V")
	printInt := b.Methodref("java/io/PrintStream", "println", "(I)V")
	var code []byte
	code = append(code, OpGetstatic)
	code = append(code, u16(out)...)
	code = append(code, OpLdcW)
	code = append(code, u16(msg)...)
	code = append(code, OpInvokevirtual)
	code = append(code, u16(printStr)...)
	code = append(code, OpGetstatic)
	code = append(code, u16(out)...)
	code = append(code, OpBipush, 0xf9, OpInvokevirtual)
	code = append(code, u16(printInt)...)
	code = append(code, OpReturn)
	b.AddMethod(classfile.AccPublic|classfile.AccStatic, "main", "([Ljava/lang/String;)V", 4, 1, code)

	r := newRig(t, b)
	res := r.invoke(t, "main", Null)
	if res.State != StateReturned {
		t.Fatalf("result = %+v", res)
	}
	if got := r.out.String(); got != "hello\n-7\n" {
		t.Errorf("output = %q", got)
	}
}

func TestUnresolvedCallPushesZero(t *testing.T) {
	b := classfile.NewBuilder("t/Main", "java/lang/Object")
	missing := b.Methodref("t/Gone", "value", "()I")
	code := append([]byte{OpInvokestatic}, u16(missing)...)
	code = append(code, OpIconst5, OpIadd, OpIreturn)
	b.AddMethod(classfile.AccStatic, "f", "()I", 2, 0, code)
	r := newRig(t, b)
	res := r.invoke(t, "f")
	if res.State != StateReturned || res.Value.AsInt() != 5 {
		t.Fatalf("result = %+v", res)
	}
	if r.bag.Count(diag.IntUnresolvedCall) != 1 {
		t.Errorf("diagnostics: %v", r.bag.Items())
	}
}

func TestArrays(t *testing.T) {
	store := []byte{
		OpIconst3, OpNewarray, 10, OpAstore0,
		OpAload0, OpIconst1, OpBipush, 9, OpIastore,
		OpAload0, OpIconst1, OpIaload, OpAload0, OpArraylength, OpIadd, OpIreturn,
	}
	r := newRig(t, single("f", "()I", 1, store))
	if res := r.invoke(t, "f"); res.Value.AsInt() != 12 {
		t.Fatalf("result = %+v", res)
	}

	oob := []byte{OpIconst1, OpNewarray, 10, OpIconst2, OpIaload, OpIreturn}
	r = newRig(t, single("f", "()I", 0, oob))
	res := r.invoke(t, "f")
	if res.Thrown == nil || res.Thrown.Class != "java/lang/ArrayIndexOutOfBoundsException" {
		t.Fatalf("result = %+v", res)
	}
}

func TestObjectsAndFields(t *testing.T) {
	b := classfile.NewBuilder("t/Main", "java/lang/Object")
	b.AddField(classfile.AccPrivate, "n", "I", 0)
	field := b.Fieldref("t/Main", "n", "I")
	class := b.Class("t/Main")
	var code []byte
	code = append(code, OpNew)
	code = append(code, u16(class)...)
	code = append(code, OpDup, OpBipush, 11, OpPutfield)
	code = append(code, u16(field)...)
	code = append(code, OpDup, OpInstanceof)
	code = append(code, u16(class)...)
	code = append(code, OpSwap, OpGetfield)
	code = append(code, u16(field)...)
	code = append(code, OpIadd, OpIreturn)
	b.AddMethod(classfile.AccStatic, "f", "()I", 4, 0, code)

	r := newRig(t, b)
	res := r.invoke(t, "f")
	if res.State != StateReturned || res.Value.AsInt() != 12 {
		t.Fatalf("result = %+v", res)
	}
}

func TestInstructionsListing(t *testing.T) {
	ins := Instructions(tableSwitchCode(), nil)
	var names []string
	for _, in := range ins {
		names = append(names, in.Name())
	}
	want := "iload_0 tableswitch bipush ireturn bipush ireturn iconst_m1 ireturn"
	if got := strings.Join(names, " "); got != want {
		t.Fatalf("listing = %q", got)
	}
	if !strings.Contains(ins[1].Operands, "default: 30") {
		t.Errorf("switch operands = %q", ins[1].Operands)
	}

	trunc := Instructions([]byte{OpSipush, 1}, nil)
	if len(trunc) != 1 || trunc[0].Len != 0 {
		t.Errorf("truncated listing = %+v", trunc)
	}
}

func TestDisassembleResolvesPool(t *testing.T) {
	b := classfile.NewBuilder("t/Main", "java/lang/Object")
	ref := b.Methodref("t/Main", "f", "()I")
	code := append([]byte{OpInvokestatic}, u16(ref)...)
	code = append(code, OpIreturn)
	b.AddMethod(classfile.AccPublic|classfile.AccStatic, "f", "()I", 1, 0, code)
	cf, err := classfile.Decode(b.Bytes(), classfile.Options{})
	if err != nil {
		t.Fatal(err)
	}
	var sb strings.Builder
	if err := Disassemble(&sb, cf); err != nil {
		t.Fatal(err)
	}
	text := sb.String()
	for _, want := range []string{"class t.Main", "public static int f()", "invokestatic #", "t/Main.f:()I"} {
		if !strings.Contains(text, want) {
			t.Errorf("listing lacks %q:\n%s", want, text)
		}
	}
}
