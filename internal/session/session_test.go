package session

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"necroverse/internal/avm1"
	"necroverse/internal/classfile"
	"necroverse/internal/config"
	"necroverse/internal/diag"
	"necroverse/internal/loader"
	"necroverse/internal/source"
	"necroverse/internal/swf"
)

func traceCode(s string, extra ...avm1.ActionCode) []byte {
	a := avm1.NewAssembler(8).Push(s).Op(avm1.ActTrace)
	return a.Op(extra...).MustBytes()
}

// threeFrames is a movie whose frame 1 stops the timeline and whose frame
// 0 defines a jump function a host can call.
func threeFrames(extra ...func(*swf.Builder)) []byte {
	b := swf.NewBuilder(8)
	for _, fn := range extra {
		fn(b)
	}
	b.Record(swf.TagDoInitAction, append([]byte{1, 0}, traceCode("init")...))
	b.Shape(1, swf.Rect{XMax: 200, YMax: 200})
	b.Place(1, 1, swf.Identity, "box")
	jump := avm1.NewAssembler(8).
		DefineFunction("toEnd", nil, func(a *avm1.Assembler) {
			a.GotoLabel("end").Op(avm1.ActPlay)
		}).
		Push("f0").Op(avm1.ActTrace).
		MustBytes()
	b.DoAction(jump)
	b.ShowFrame()
	b.DoAction(traceCode("f1", avm1.ActStop))
	b.ShowFrame()
	b.FrameLabel("end")
	b.DoAction(traceCode("f2"))
	b.ShowFrame()
	b.End()
	return b.Bytes()
}

func load(t *testing.T, name string, data []byte) *loader.Module {
	t.Helper()
	mod, err := loader.LoadBytes(source.NewFileSet(), name, data, loader.Options{})
	if err != nil {
		t.Fatal(err)
	}
	return mod
}

func newSession(t *testing.T, mod *loader.Module, out *bytes.Buffer) *Session {
	t.Helper()
	s, err := New(mod, Options{Config: config.Default(), Out: out})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestUnitsListsEveryBlock(t *testing.T) {
	s := newSession(t, load(t, "m.swf", threeFrames()), &bytes.Buffer{})
	want := []struct {
		name string
		kind Kind
	}{
		{"init:1", KindInit},
		{"frame:0", KindFrame},
		{"frame:1", KindFrame},
		{"frame:2", KindFrame},
	}
	units := s.Units()
	if len(units) != len(want) {
		t.Fatalf("units = %+v", units)
	}
	for i, w := range want {
		if units[i].Name != w.name || units[i].Kind != w.kind || units[i].Size == 0 {
			t.Errorf("unit %d = %+v, want %s/%s", i, units[i], w.name, w.kind)
		}
	}
}

func TestStepRunsFramesUntilStop(t *testing.T) {
	out := &bytes.Buffer{}
	s := newSession(t, load(t, "m.swf", threeFrames()), out)
	ctx := context.Background()

	res, err := s.PlayFrames(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if got := out.String(); got != "init\nf0\nf1\n" {
		t.Fatalf("output = %q", got)
	}
	if len(res) != 3 {
		t.Errorf("results = %+v", res)
	}
	for _, r := range res {
		if r.Faulted() {
			t.Errorf("%s faulted: %v", r.Unit, r.Err)
		}
	}
	if s.CurrentFrame() != 1 || s.Playing() {
		t.Errorf("frame %d playing %v, want stopped on 1", s.CurrentFrame(), s.Playing())
	}
	dl := s.DisplayList()
	if len(dl) != 1 || dl[0].Name != "box" || dl[0].CharacterID != 1 {
		t.Errorf("display list = %+v", dl)
	}
}

func TestHostCallJumpsAtNextStep(t *testing.T) {
	out := &bytes.Buffer{}
	s := newSession(t, load(t, "m.swf", threeFrames()), out)
	ctx := context.Background()
	if _, err := s.PlayFrames(ctx, 2); err != nil {
		t.Fatal(err)
	}
	r, err := s.Invoke(ctx, "toEnd")
	if err != nil {
		t.Fatal(err)
	}
	if r.Faulted() {
		t.Fatalf("toEnd faulted: %v", r.Err)
	}
	if s.CurrentFrame() != 2 {
		t.Fatalf("frame = %d, want 2", s.CurrentFrame())
	}
	out.Reset()
	if _, err := s.PlayFrames(ctx, 2); err != nil {
		t.Fatal(err)
	}
	// frame 2 runs, then the timeline wraps to frame 0 without init
	if got := out.String(); got != "f2\nf0\n" {
		t.Errorf("output = %q", got)
	}
	if dl := s.DisplayList(); len(dl) != 1 {
		t.Errorf("display list after wrap = %+v", dl)
	}
}

func TestInvokeErrors(t *testing.T) {
	s := newSession(t, load(t, "m.swf", threeFrames()), &bytes.Buffer{})
	ctx := context.Background()
	if _, err := s.Invoke(ctx, "nothing"); !errors.Is(err, ErrNoUnit) {
		t.Errorf("unknown unit err = %v", err)
	}
	if _, err := s.Invoke(ctx, "frame:0", 1); !errors.Is(err, ErrArgument) {
		t.Errorf("argument to action unit err = %v", err)
	}
	if _, err := s.Invoke(ctx, "frame:0", struct{}{}); !errors.Is(err, ErrArgument) {
		t.Errorf("struct argument err = %v", err)
	}
}

func TestScriptLimitsLowerDepth(t *testing.T) {
	data := threeFrames(func(b *swf.Builder) {
		b.Record(swf.TagScriptLimits, []byte{3, 0, 10, 0})
	})
	s := newSession(t, load(t, "m.swf", data), &bytes.Buffer{})
	if got := s.Guard().MaxDepth(); got != 3 {
		t.Errorf("max depth = %d, want 3", got)
	}
}

func TestGetURLIsRecorded(t *testing.T) {
	b := swf.NewBuilder(8)
	b.DoAction(avm1.NewAssembler(8).GetURL("http://example.com/", "_blank").MustBytes())
	b.ShowFrame()
	b.End()
	s := newSession(t, load(t, "m.swf", b.Bytes()), &bytes.Buffer{})
	if _, err := s.Step(context.Background()); err != nil {
		t.Fatal(err)
	}
	reqs := s.Requests()
	if len(reqs) != 1 || reqs[0].URL != "http://example.com/" || reqs[0].Window != "_blank" {
		t.Errorf("requests = %+v", reqs)
	}
}

func classModule(t *testing.T) *loader.Module {
	b := classfile.NewBuilder("demo/Hello", "java/lang/Object")
	b.AddMethod(classfile.AccPublic|classfile.AccStatic, "answer", "()I", 1, 0, []byte{0x10, 42, 0xac})
	// iload_0 iconst_2 imul ireturn
	b.AddMethod(classfile.AccPublic|classfile.AccStatic, "twice", "(I)I", 2, 1, []byte{0x1a, 0x05, 0x68, 0xac})
	// return
	b.AddMethod(classfile.AccPublic, "poke", "()V", 0, 1, []byte{0xb1})
	return load(t, "Hello.class", b.Bytes())
}

func TestClassInvoke(t *testing.T) {
	s := newSession(t, classModule(t), &bytes.Buffer{})
	ctx := context.Background()
	tests := []struct {
		unit string
		args []any
		want string
	}{
		{"demo/Hello.answer()I", nil, "42"},
		{"demo/Hello.twice(I)I", []any{21}, "42"},
		{"demo/Hello.twice(I)I", []any{true}, "2"},
		{"demo/Hello.poke()V", []any{nil}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.unit, func(t *testing.T) {
			r, err := s.Invoke(ctx, tt.unit, tt.args...)
			if err != nil {
				t.Fatal(err)
			}
			if r.Faulted() || r.Value != tt.want {
				t.Errorf("result = %+v, want %q", r, tt.want)
			}
		})
	}
	if _, err := s.Invoke(ctx, "demo/Hello.twice(I)I"); !errors.Is(err, ErrArgument) {
		t.Errorf("missing argument err = %v", err)
	}
	if _, err := s.Invoke(ctx, "demo/Hello.twice(I)I", "x"); !errors.Is(err, ErrArgument) {
		t.Errorf("string for int err = %v", err)
	}
	if _, err := s.Step(ctx); !errors.Is(err, ErrNotAnimation) {
		t.Errorf("Step on class err = %v", err)
	}
}

func TestProbe(t *testing.T) {
	s := newSession(t, classModule(t), &bytes.Buffer{})
	res := s.Probe(context.Background())
	if len(res) != 2 {
		t.Fatalf("probe ran %d methods, want the 2 static ones: %+v", len(res), res)
	}
	if res[0].Value != "42" || res[1].Value != "0" {
		t.Errorf("probe values = %q, %q", res[0].Value, res[1].Value)
	}

	out := &bytes.Buffer{}
	s = newSession(t, load(t, "m.swf", threeFrames()), out)
	s.Probe(context.Background())
	if got := out.String(); got != "init\nf0\nf1\n" {
		t.Errorf("movie probe output = %q", got)
	}
}

func TestMalformedDescriptorIsReported(t *testing.T) {
	b := classfile.NewBuilder("demo/Broken", "java/lang/Object")
	b.AddMethod(classfile.AccPublic|classfile.AccStatic, "bad", "(I", 1, 1, []byte{0xb1})
	// bipush 7 ireturn
	b.AddMethod(classfile.AccPublic|classfile.AccStatic, "good", "()I", 1, 0, []byte{0x10, 7, 0xac})
	mod := load(t, "Broken.class", b.Bytes())
	s := newSession(t, mod, &bytes.Buffer{})

	if n := mod.Diags.Count(diag.IntBadSignature); n != 1 {
		t.Errorf("bad signature diagnostics = %d: %v", n, mod.Diags.Items())
	}
	r, err := s.Invoke(context.Background(), "demo/Broken.good()I")
	if err != nil {
		t.Fatal(err)
	}
	if r.Faulted() || r.Value != "7" {
		t.Errorf("good = %+v", r)
	}
}
