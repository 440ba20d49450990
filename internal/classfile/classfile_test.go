package classfile

import (
	"errors"
	"strconv"
	"testing"

	"necroverse/internal/bitio"
	"necroverse/internal/diag"
)

func sampleClass() *Builder {
	b := NewBuilder("demo/Main", "java/lang/Object")
	b.SetSourceFile("Main.java")
	b.AddField(AccPrivate|AccStatic|AccFinal, "LIMIT", "I", b.Int(7))
	b.AddMethod(AccPublic|AccStatic, "main", "([Ljava/lang/String;)V", 2, 1, []byte{0xb1},
		BuilderHandler{StartPC: 0, EndPC: 1, HandlerPC: 0, CatchName: "java/lang/Exception"})
	b.AddMethod(AccPublic|AccAbstract, "run", "()V", 0, 0, nil)
	return b
}

func TestDecodeRoundTrip(t *testing.T) {
	bag := diag.NewBag(10)
	c, err := Decode(sampleClass().Bytes(), Options{Reporter: diag.BagReporter{Bag: bag}})
	if err != nil {
		t.Fatal(err)
	}
	if bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %v", bag.Items())
	}
	if c.Name != "demo/Main" || c.SuperName != "java/lang/Object" || c.SourceFile != "Main.java" {
		t.Fatalf("header = %q %q %q", c.Name, c.SuperName, c.SourceFile)
	}
	if c.Major != 52 {
		t.Errorf("Major = %d", c.Major)
	}
	f := c.Field("LIMIT")
	if f == nil || !f.IsStatic() {
		t.Fatalf("field LIMIT = %+v", f)
	}
	if v, err := c.Pool.Integer(f.ConstantValue); err != nil || v != 7 {
		t.Errorf("ConstantValue = %d, %v", v, err)
	}
	m := c.Method("main", "")
	if m == nil || m.Code == nil {
		t.Fatalf("main = %+v", m)
	}
	if len(m.Code.Bytecode) != 1 || m.Code.Bytecode[0] != 0xb1 || m.Code.MaxStack != 2 {
		t.Errorf("code = %+v", m.Code)
	}
	if len(m.Code.Handlers) != 1 || m.Code.Handlers[0].CatchName != "java/lang/Exception" {
		t.Errorf("handlers = %+v", m.Code.Handlers)
	}
	if run := c.Method("run", "()V"); run == nil || run.Code != nil {
		t.Errorf("abstract run = %+v", run)
	}
}

func TestDecodeBadMagic(t *testing.T) {
	for _, data := range [][]byte{{0xCA, 0xFE}, {0xDE, 0xAD, 0xBE, 0xEF, 0, 0}} {
		if _, err := Decode(data, Options{}); !errors.Is(err, ErrBadMagic) {
			t.Errorf("Decode(% x) = %v, want ErrBadMagic", data, err)
		}
	}
}

func TestDecodeUnknownPoolTag(t *testing.T) {
	w := bitio.NewWriter(bitio.BigEndian)
	w.U32(Magic)
	w.U16(0)
	w.U16(52)
	w.U16(2)
	w.U8(2) // tag 2 is unassigned
	_, err := Decode(w.Bytes(), Options{})
	if !errors.Is(err, ErrBadPoolTag) {
		t.Fatalf("err = %v, want ErrBadPoolTag", err)
	}
}

func TestDecodeTruncatedPoolIsStructural(t *testing.T) {
	data := sampleClass().Bytes()
	_, err := Decode(data[:14], Options{})
	if !errors.Is(err, ErrStructure) || !errors.Is(err, bitio.ErrExhausted) {
		t.Fatalf("err = %v", err)
	}
}

func TestDecodeClampsOversizedAttribute(t *testing.T) {
	b := NewBuilder("A", "")
	b.AddMethod(AccStatic, "f", "()V", 1, 1, []byte{0x04, 0xac})
	data := b.Bytes()
	// Drop the class attribute count and part of the method's Code
	// attribute so its declared length overruns the buffer.
	cut := data[:len(data)-6]
	bag := diag.NewBag(10)
	c, err := Decode(cut, Options{Reporter: diag.BagReporter{Bag: bag}})
	if err != nil {
		t.Fatal(err)
	}
	if bag.Count(diag.StrLengthClamped) == 0 {
		t.Errorf("no clamp diagnostic: %v", bag.Items())
	}
	if len(c.Methods) != 1 || c.Methods[0].Name != "f" {
		t.Fatalf("methods = %+v", c.Methods)
	}
}

func TestPoolWideSecondSlot(t *testing.T) {
	b := NewBuilder("W", "")
	i := b.Long(1 << 40)
	c, err := Decode(b.Bytes(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if v, err := c.Pool.Long(i); err != nil || v != 1<<40 {
		t.Fatalf("Long(%d) = %d, %v", i, v, err)
	}
	_, err = c.Pool.Text(i + 1)
	var le *LookupError
	if !errors.As(err, &le) || le.Failure != LookupNotPrimary {
		t.Fatalf("lookup at %d = %v, want not-primary", i+1, err)
	}
}

func TestPoolLookupErrors(t *testing.T) {
	b := NewBuilder("P", "")
	s := b.Utf8("hello")
	c, err := Decode(b.Bytes(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		call func() error
		want LookupFailure
	}{
		{"zero", func() error { _, err := c.Pool.Text(0); return err }, LookupOutOfRange},
		{"past end", func() error { _, err := c.Pool.Text(500); return err }, LookupOutOfRange},
		{"wrong tag", func() error { _, err := c.Pool.Integer(s); return err }, LookupWrongTag},
		{"class of utf8", func() error { _, err := c.Pool.ClassName(s); return err }, LookupWrongTag},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var le *LookupError
			if err := tt.call(); !errors.As(err, &le) || le.Failure != tt.want {
				t.Fatalf("err = %v, want failure %d", err, tt.want)
			}
		})
	}
	name, err := c.Pool.ClassName(s)
	if err == nil || name != "<invalid #"+strconv.Itoa(int(s))+">" {
		t.Errorf("placeholder = %q", name)
	}
}

func TestPoolMemberRef(t *testing.T) {
	b := NewBuilder("R", "")
	ref := b.Methodref("java/io/PrintStream", "println", "(I)V")
	c, err := Decode(b.Bytes(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	m, err := c.Pool.MemberRef(ref)
	if err != nil {
		t.Fatal(err)
	}
	if m.Kind != TagMethodref || m.String() != "java/io/PrintStream.println:(I)V" {
		t.Errorf("MemberRef = %+v", m)
	}
	if got := c.Pool.Describe(ref); got != "Method java/io/PrintStream.println:(I)V" {
		t.Errorf("Describe = %q", got)
	}
}

func TestModifiedUTF8(t *testing.T) {
	tests := []struct {
		in   []byte
		want string
	}{
		{[]byte("plain"), "plain"},
		{[]byte{0xC0, 0x80}, "\x00"},
		{[]byte{0xC3, 0xA9}, "é"},
		{[]byte{0xED, 0xA0, 0xBD, 0xED, 0xB8, 0x80}, "\U0001F600"},
	}
	for _, tt := range tests {
		if got := decodeModifiedUTF8(tt.in); got != tt.want {
			t.Errorf("decode(% x) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAccessRender(t *testing.T) {
	if got := (AccPublic | AccStatic | AccFinal).Render(ForMethod); got != "public static final" {
		t.Errorf("method flags = %q", got)
	}
	if got := (AccPublic | AccInterface | AccAbstract).Render(ForClass); got != "public interface" {
		t.Errorf("class flags = %q", got)
	}
}
