package avm1

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"necroverse/internal/callstack"
	"necroverse/internal/diag"
)

type recTimeline struct {
	NopTimeline
	calls []string
	frame int
}

func (t *recTimeline) Play()      { t.calls = append(t.calls, "play") }
func (t *recTimeline) Stop()      { t.calls = append(t.calls, "stop") }
func (t *recTimeline) NextFrame() { t.calls = append(t.calls, "next") }
func (t *recTimeline) GotoFrame(i int, play bool) {
	t.calls = append(t.calls, fmt.Sprintf("goto %d %v", i, play))
}
func (t *recTimeline) GotoLabel(l string, play bool) bool {
	t.calls = append(t.calls, fmt.Sprintf("label %s %v", l, play))
	return l == "intro"
}
func (t *recTimeline) CurrentFrame() int { return t.frame }
func (t *recTimeline) TotalFrames() int  { return 10 }

type rig struct {
	m   *Machine
	bag *diag.Bag
	out *bytes.Buffer
	tl  *recTimeline
}

func newRig(t *testing.T, version uint8, guard *callstack.Guard) *rig {
	t.Helper()
	r := &rig{bag: diag.NewBag(100), out: &bytes.Buffer{}, tl: &recTimeline{}}
	r.m = New(Config{
		Version:  version,
		Out:      r.out,
		Reporter: diag.BagReporter{Bag: r.bag},
		Timeline: r.tl,
		Guard:    guard,
	})
	return r
}

func (r *rig) run(body func(a *Assembler)) Result {
	a := NewAssembler(r.m.Version())
	body(a)
	return r.m.Run(context.Background(), Unit{Name: "frame:0", Code: a.MustBytes()})
}

func TestPushAddReturn(t *testing.T) {
	r := newRig(t, 10, nil)
	res := r.run(func(a *Assembler) {
		a.Push(3, 4).Op(ActAdd2, ActReturn)
	})
	if res.State != StateReturned {
		t.Fatalf("state = %v, err = %v", res.State, res.Err)
	}
	if res.Value.K != KNumber || res.Value.N != 7 {
		t.Errorf("result = %+v, want 7", res.Value)
	}
}

func TestEndOnlyUnit(t *testing.T) {
	r := newRig(t, 10, nil)
	res := r.m.Run(context.Background(), Unit{Name: "empty", Code: []byte{0}})
	if res.State != StateReturned || !res.Value.IsUndefined() {
		t.Fatalf("result = %+v", res)
	}
	if r.bag.Len() != 0 {
		t.Errorf("diagnostics: %v", r.bag.Items())
	}
}

func TestTraceAndArithmetic(t *testing.T) {
	tests := []struct {
		name    string
		version uint8
		body    func(a *Assembler)
		want    string
	}{
		{"string concat", 10, func(a *Assembler) { a.Push("a", 1).Op(ActAdd2, ActTrace) }, "a1"},
		{"double", 10, func(a *Assembler) { a.Push(1.5, 2).Op(ActMultiply, ActTrace) }, "3"},
		{"divide by zero", 10, func(a *Assembler) { a.Push(1, 0).Op(ActDivide, ActTrace) }, "Infinity"},
		{"modulo", 10, func(a *Assembler) { a.Push(7, 3).Op(ActModulo, ActTrace) }, "1"},
		{"undefined v6", 6, func(a *Assembler) { a.Push(Undefined, 1).Op(ActAdd2, ActTrace) }, "1"},
		{"undefined v7", 7, func(a *Assembler) { a.Push(Undefined, 1).Op(ActAdd2, ActTrace) }, "NaN"},
		{"legacy equals", 4, func(a *Assembler) { a.Push(2, 2).Op(ActEquals, ActTrace) }, "1"},
		{"loose equals", 10, func(a *Assembler) { a.Push("2", 2).Op(ActEquals2, ActTrace) }, "true"},
		{"strict equals", 10, func(a *Assembler) { a.Push("2", 2).Op(ActStrictEquals, ActTrace) }, "false"},
		{"unsigned shift", 10, func(a *Assembler) { a.Push(-1, 28).Op(ActBitURShift, ActTrace) }, "15"},
		{"substring", 10, func(a *Assembler) { a.Push("hello", 2, 3).Op(ActStringExtract, ActTrace) }, "ell"},
		{"less2 strings", 10, func(a *Assembler) { a.Push("a", "b").Op(ActLess2, ActTrace) }, "true"},
		{"typeof", 10, func(a *Assembler) { a.Push(nil).Op(ActTypeOf, ActTrace) }, "null"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t, tt.version, nil)
			res := r.run(tt.body)
			if res.State != StateReturned {
				t.Fatalf("state = %v, err = %v", res.State, res.Err)
			}
			if got := strings.TrimSuffix(r.out.String(), "\n"); got != tt.want {
				t.Errorf("trace = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestJumpsAreRelativeToNextRecord(t *testing.T) {
	r := newRig(t, 10, nil)
	r.run(func(a *Assembler) {
		a.Push("i", 0).Op(ActSetVariable)
		a.Label("loop")
		a.Push("i").Op(ActGetVariable).Push(3).Op(ActLess2, ActNot).If("done")
		a.Push("i").Op(ActGetVariable, ActTrace)
		a.Push("i", "i").Op(ActGetVariable, ActIncrement, ActSetVariable)
		a.Jump("loop")
		a.Label("done")
	})
	if got := r.out.String(); got != "0\n1\n2\n" {
		t.Errorf("trace = %q", got)
	}
}

func TestWithScope(t *testing.T) {
	r := newRig(t, 10, nil)
	r.run(func(a *Assembler) {
		a.Push("o", "x", 5, 1).Op(ActInitObject, ActSetVariable)
		a.Push("o").Op(ActGetVariable).With(func(b *Assembler) {
			b.Push("x").Op(ActGetVariable, ActTrace)
			b.Push("x", 6).Op(ActSetVariable)
		})
		a.Push("x").Op(ActGetVariable, ActTrace)
		a.Push("o").Op(ActGetVariable).Push("x").Op(ActGetMember, ActTrace)
	})
	if got := r.out.String(); got != "5\nundefined\n6\n" {
		t.Errorf("trace = %q", got)
	}
}

func TestWithScopePoppedOnThrow(t *testing.T) {
	r := newRig(t, 10, nil)
	res := r.run(func(a *Assembler) {
		a.Push("o", "x", 5, 1).Op(ActInitObject, ActSetVariable)
		a.Try("e", func(b *Assembler) {
			b.Push("o").Op(ActGetVariable).With(func(c *Assembler) {
				c.Push("boom").Op(ActThrow)
			})
		}, func(b *Assembler) {
			b.Push("e").Op(ActGetVariable, ActTrace)
			b.Push("x").Op(ActGetVariable, ActTrace)
		}, nil)
	})
	if res.State != StateReturned {
		t.Fatalf("state = %v, err = %v", res.State, res.Err)
	}
	if got := r.out.String(); got != "boom\nundefined\n" {
		t.Errorf("trace = %q", got)
	}
}

func TestTryFinally(t *testing.T) {
	t.Run("normal", func(t *testing.T) {
		r := newRig(t, 10, nil)
		r.run(func(a *Assembler) {
			a.Try("", func(b *Assembler) {
				b.Push("try").Op(ActTrace)
			}, nil, func(b *Assembler) {
				b.Push("finally").Op(ActTrace)
			})
			a.Push("after").Op(ActTrace)
		})
		if got := r.out.String(); got != "try\nfinally\nafter\n" {
			t.Errorf("trace = %q", got)
		}
	})
	t.Run("uncaught", func(t *testing.T) {
		r := newRig(t, 10, nil)
		res := r.run(func(a *Assembler) {
			a.Try("", func(b *Assembler) {
				b.Push("x").Op(ActThrow)
			}, nil, func(b *Assembler) {
				b.Push("finally").Op(ActTrace)
			})
			a.Push("after").Op(ActTrace)
		})
		if res.State != StateFaulted || res.Thrown == nil || res.Thrown.Value.S != "x" {
			t.Fatalf("result = %+v", res)
		}
		if got := r.out.String(); got != "finally\n" {
			t.Errorf("trace = %q", got)
		}
		if r.bag.Count(diag.IntUncaughtThrow) != 1 {
			t.Errorf("diagnostics: %v", r.bag.Items())
		}
	})
	t.Run("return inside try", func(t *testing.T) {
		r := newRig(t, 10, nil)
		res := r.run(func(a *Assembler) {
			a.Try("", func(b *Assembler) {
				b.Push(1).Op(ActReturn)
			}, nil, func(b *Assembler) {
				b.Push("finally").Op(ActTrace)
			})
			a.Push("after").Op(ActTrace)
		})
		if res.Value.N != 1 || r.out.String() != "finally\n" {
			t.Errorf("value = %+v, trace = %q", res.Value, r.out.String())
		}
	})
}

func TestFunctions(t *testing.T) {
	r := newRig(t, 10, nil)
	r.run(func(a *Assembler) {
		a.DefineFunction("greet", []string{"who"}, func(b *Assembler) {
			b.Push("hi ").Push("who").Op(ActGetVariable, ActAdd2, ActReturn)
		})
		a.Push("bob", 1, "greet").Op(ActCallFunction, ActTrace)

		flags := uint16(FlagSuppressThis | FlagSuppressArguments | FlagSuppressSuper)
		a.DefineFunction2("sub", 3, flags, []Param{{Name: "a", Register: 1}, {Name: "b", Register: 2}}, func(b *Assembler) {
			b.Push(Register(1), Register(2)).Op(ActSubtract, ActReturn)
		})
		a.Push(2, 40, 2, "sub").Op(ActCallFunction, ActTrace)

		a.Push(0, "nothing").Op(ActCallFunction, ActTrace)
	})
	if got := r.out.String(); got != "hi bob\n38\nundefined\n" {
		t.Errorf("trace = %q", got)
	}
	if r.bag.Count(diag.IntUnresolvedCall) != 1 {
		t.Errorf("diagnostics: %v", r.bag.Items())
	}
}

func TestSelfRecursionStopsAtRepeatLimit(t *testing.T) {
	r := newRig(t, 10, nil)
	res := r.run(func(a *Assembler) {
		a.DefineFunction("f", nil, func(b *Assembler) {
			b.Push(0, "f").Op(ActCallFunction, ActReturn)
		})
		a.Push(0, "f").Op(ActCallFunction, ActPop)
		a.Push("done").Op(ActTrace)
	})
	if res.State != StateReturned {
		t.Fatalf("state = %v, err = %v", res.State, res.Err)
	}
	if r.out.String() != "done\n" {
		t.Errorf("trace = %q", r.out.String())
	}
	if n := r.bag.Count(diag.IntRepeatExceeded); n != 1 {
		t.Errorf("repeat diagnostics = %d, want 1", n)
	}
	if r.m.Guard().Depth() != 0 {
		t.Errorf("guard depth = %d after run", r.m.Guard().Depth())
	}
}

func TestDepthLimitAbortsCallee(t *testing.T) {
	r := newRig(t, 10, callstack.New(4, 100))
	r.run(func(a *Assembler) {
		a.DefineFunction("a", nil, func(b *Assembler) {
			b.Push(0, "b").Op(ActCallFunction, ActReturn)
		})
		a.DefineFunction("b", nil, func(b *Assembler) {
			b.Push(0, "a").Op(ActCallFunction, ActReturn)
		})
		a.Push(0, "a").Op(ActCallFunction, ActTrace)
	})
	if n := r.bag.Count(diag.IntDepthExceeded); n != 1 {
		t.Errorf("depth diagnostics = %d, want 1", n)
	}
	if r.out.String() != "undefined\n" {
		t.Errorf("trace = %q", r.out.String())
	}
}

func TestObjectsAndNatives(t *testing.T) {
	r := newRig(t, 10, nil)
	r.run(func(a *Assembler) {
		a.Push("arr", 3, 2, 1, 3).Op(ActInitArray, ActSetVariable)
		a.Push(4, 1, "arr").Op(ActGetVariable).Push("push").Op(ActCallMethod, ActPop)
		a.Push("arr").Op(ActGetVariable).Push("length").Op(ActGetMember, ActTrace)
		a.Push("arr").Op(ActGetVariable, ActTrace)
		a.Push(-5, 1, "Math").Op(ActGetVariable).Push("abs").Op(ActCallMethod, ActTrace)
		a.Push(0, "Hello").Push("toUpperCase").Op(ActCallMethod, ActTrace)

		a.DefineFunction("Point", []string{"x"}, func(b *Assembler) {
			b.Push("this").Op(ActGetVariable).Push("x", "x").Op(ActGetVariable, ActSetMember)
		})
		a.Push("p", 7, 1, "Point").Op(ActNewObject, ActSetVariable)
		a.Push("p").Op(ActGetVariable).Push("x").Op(ActGetMember, ActTrace)
		a.Push("p").Op(ActGetVariable).Push("Point").Op(ActGetVariable, ActInstanceOf, ActTrace)
		a.Push("Point").Op(ActGetVariable, ActTypeOf, ActTrace)
	})
	want := "4\n1,2,3,4\n5\nHELLO\n7\ntrue\nfunction\n"
	if got := r.out.String(); got != want {
		t.Errorf("trace = %q, want %q", got, want)
	}
}

func TestConstantPool(t *testing.T) {
	r := newRig(t, 10, nil)
	r.run(func(a *Assembler) {
		a.ConstantPool("a", "b").Push(Constant(0), Constant(1)).Op(ActStringAdd, ActTrace)
		a.Push(Constant(5)).Op(ActTrace)
	})
	if got := r.out.String(); got != "ab\nundefined\n" {
		t.Errorf("trace = %q", got)
	}
	if r.bag.Count(diag.SymOutOfRange) != 1 {
		t.Errorf("diagnostics: %v", r.bag.Items())
	}
}

func TestUnknownActionIsSkipped(t *testing.T) {
	r := newRig(t, 10, nil)
	res := r.run(func(a *Assembler) {
		a.Op(ActionCode(0x02))
		a.Record(ActionCode(0xa0), []byte{1, 2})
		a.Push("ok").Op(ActTrace)
	})
	if res.State != StateReturned || r.out.String() != "ok\n" {
		t.Fatalf("state = %v, trace = %q", res.State, r.out.String())
	}
	if n := r.bag.Count(diag.IntUnknownOpcode); n != 2 {
		t.Errorf("unknown-action diagnostics = %d, want 2", n)
	}
}

func TestStackUnderflowYieldsUndefined(t *testing.T) {
	r := newRig(t, 10, nil)
	res := r.run(func(a *Assembler) { a.Op(ActAdd2, ActTrace) })
	if res.State != StateReturned || r.out.String() != "NaN\n" {
		t.Fatalf("state = %v, trace = %q", res.State, r.out.String())
	}
	if n := r.bag.Count(diag.IntStackUnderflow); n != 1 {
		t.Errorf("underflow diagnostics = %d, want 1", n)
	}
}

func TestBadJumpEndsUnit(t *testing.T) {
	r := newRig(t, 10, nil)
	res := r.run(func(a *Assembler) {
		a.Record(ActJump, []byte{0x00, 0x10})
		a.Push("unreached").Op(ActTrace)
	})
	if res.State != StateReturned || r.out.Len() != 0 {
		t.Fatalf("state = %v, trace = %q", res.State, r.out.String())
	}
	if r.bag.Count(diag.IntBadJump) != 1 {
		t.Errorf("diagnostics: %v", r.bag.Items())
	}
}

func TestTruncatedRecordFaults(t *testing.T) {
	r := newRig(t, 10, nil)
	res := r.m.Run(context.Background(), Unit{Name: "frame:0", Code: []byte{byte(ActPush), 0x10, 0x00, 0x00}})
	var vmErr *VMError
	if res.State != StateFaulted || !errors.As(res.Err, &vmErr) || vmErr.Code != FaultTruncated {
		t.Fatalf("result = %+v", res)
	}
	if len(vmErr.Backtrace) != 1 || vmErr.Backtrace[0].Unit != "frame:0" {
		t.Errorf("backtrace = %+v", vmErr.Backtrace)
	}
}

func TestShortPayloadFaultsAtRecord(t *testing.T) {
	tests := []struct {
		name    string
		code    ActionCode
		payload []byte
	}{
		{"jump", ActJump, []byte{1}},
		{"if", ActIf, nil},
		{"goto frame", ActGotoFrame, []byte{2}},
		{"try", ActTry, []byte{0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t, 10, nil)
			res := r.run(func(a *Assembler) {
				a.Push("x").Op(ActPop).Record(tt.code, tt.payload)
			})
			var vmErr *VMError
			if res.State != StateFaulted || !errors.As(res.Err, &vmErr) || vmErr.Code != FaultMalformed {
				t.Fatalf("result = %+v", res)
			}
			// push record (6 bytes) then the one-byte pop
			if len(vmErr.Backtrace) != 1 || vmErr.Backtrace[0].PC != 7 {
				t.Errorf("backtrace = %+v, want pc 7", vmErr.Backtrace)
			}
		})
	}
}

func TestCanceledContextStopsLoop(t *testing.T) {
	r := newRig(t, 10, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := NewAssembler(10)
	a.Label("top").Jump("top")
	res := r.m.Run(ctx, Unit{Name: "spin", Code: a.MustBytes()})
	var vmErr *VMError
	if !errors.As(res.Err, &vmErr) || vmErr.Code != FaultCanceled {
		t.Fatalf("result = %+v", res)
	}
}

func TestTimelineActions(t *testing.T) {
	r := newRig(t, 10, nil)
	r.tl.frame = 4
	r.run(func(a *Assembler) {
		a.Op(ActStop).GotoFrame(4).GotoLabel("intro")
		a.Push(3).GotoFrame2(true)
		a.Op(ActPlay)
		a.Push("", 4).Op(ActGetProperty, ActTrace)
		a.Push("_root").Op(ActGetVariable).Push("_totalframes").Op(ActGetMember, ActTrace)
	})
	want := []string{"stop", "goto 4 false", "label intro false", "goto 2 true", "play"}
	if strings.Join(r.tl.calls, ";") != strings.Join(want, ";") {
		t.Errorf("calls = %q, want %q", r.tl.calls, want)
	}
	if got := r.out.String(); got != "5\n10\n" {
		t.Errorf("trace = %q", got)
	}
}

func TestInstructionsListing(t *testing.T) {
	a := NewAssembler(10)
	a.ConstantPool("greeting").Push(Constant(0)).Op(ActTrace).Jump("end").Label("end")
	code := a.MustBytes()
	ins := Instructions(code, 10)
	if len(ins) != 5 {
		t.Fatalf("got %d instructions", len(ins))
	}
	if ins[1].Operands != "c0" || ins[1].Comment != strconv.Quote("greeting") {
		t.Errorf("push = %q // %q", ins[1].Operands, ins[1].Comment)
	}
	if ins[3].Operands != strconv.Itoa(len(code)-1) {
		t.Errorf("jump target = %q, want %d", ins[3].Operands, len(code)-1)
	}
	var sb strings.Builder
	if err := Disassemble(&sb, "frame:0", code, 10); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(sb.String(), "ConstantPool \"greeting\"") {
		t.Errorf("listing:\n%s", sb.String())
	}
}
