package descriptor

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in     string
		params []string
		ret    string
		slots  int
	}{
		{"(I)V", []string{"I"}, "V", 1},
		{"()V", nil, "V", 0},
		{"([Ljava/lang/String;)V", []string{"[Ljava/lang/String;"}, "V", 1},
		{"(JD[[IZ)Ljava/lang/Object;", []string{"J", "D", "[[I", "Z"}, "Ljava/lang/Object;", 6},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			sig, err := Parse(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if len(sig.Params) != len(tt.params) {
				t.Fatalf("params = %v", sig.Params)
			}
			for i, p := range sig.Params {
				if p.String() != tt.params[i] {
					t.Errorf("param %d = %s, want %s", i, p, tt.params[i])
				}
			}
			if sig.Return.String() != tt.ret {
				t.Errorf("return = %s, want %s", sig.Return, tt.ret)
			}
			if sig.ParamSlots() != tt.slots {
				t.Errorf("ParamSlots = %d, want %d", sig.ParamSlots(), tt.slots)
			}
			if sig.String() != tt.in {
				t.Errorf("String = %s", sig)
			}
		})
	}
}

func TestParseArrayOfObject(t *testing.T) {
	sig, err := Parse("([Ljava/lang/String;)V")
	if err != nil {
		t.Fatal(err)
	}
	p := sig.Params[0]
	if p.Kind != Array || p.Elem == nil || p.Elem.Kind != Object || p.Elem.Class != "java/lang/String" {
		t.Fatalf("param = %+v", p)
	}
	if p.SourceName() != "java.lang.String[]" {
		t.Errorf("SourceName = %s", p.SourceName())
	}
	if sig.Return.Kind != Void {
		t.Errorf("return kind = %v", sig.Return.Kind)
	}
}

func TestParseRejects(t *testing.T) {
	for _, in := range []string{
		"(I",
		"",
		"I)V",
		"(Q)V",
		"(Ljava/lang/String)V",
		"(V)V",
		"(I)",
		"(I)VX",
		"([V)V",
		"(L;)V",
	} {
		_, err := Parse(in)
		var pe *ParseError
		if !errors.As(err, &pe) || !errors.Is(err, ErrMalformed) {
			t.Errorf("Parse(%q) = %v, want *ParseError", in, err)
		}
	}
}

func TestParseField(t *testing.T) {
	ty, err := ParseField("[[J")
	if err != nil {
		t.Fatal(err)
	}
	if ty.Dims() != 2 || ty.Elem.Elem.Kind != Long {
		t.Errorf("type = %+v", ty)
	}
	if _, err := ParseField("V"); err == nil {
		t.Error("void field accepted")
	}
}

func TestCacheFallsBack(t *testing.T) {
	var c Cache
	sig, err := c.Signature("(I")
	if err == nil {
		t.Fatal("expected error")
	}
	if len(sig.Params) != 0 || sig.Return.Kind != Void {
		t.Errorf("fallback = %+v", sig)
	}
	if _, err2 := c.Signature("(I"); err2 != err {
		t.Errorf("error not memoized")
	}
	if _, err := c.Signature("(I)V"); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d", c.Len())
	}
}
