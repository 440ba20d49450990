package export

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"necroverse/internal/avm1"
	"necroverse/internal/classfile"
	"necroverse/internal/diagfmt"
	"necroverse/internal/loader"
	"necroverse/internal/session"
	"necroverse/internal/source"
	"necroverse/internal/swf"
)

func movieDoc(t *testing.T) *Document {
	t.Helper()
	b := swf.NewBuilder(8)
	b.Shape(1, swf.Rect{XMax: 400, YMax: 200})
	b.Export(1, "Box")
	b.Place(1, 1, swf.Identity, "box")
	b.FrameLabel("intro")
	b.DoAction(avm1.NewAssembler(8).Push("hi").Op(avm1.ActTrace).MustBytes())
	b.ShowFrame()
	b.End()
	return build(t, "m.swf", b.Bytes(), true)
}

func classDoc(t *testing.T) *Document {
	t.Helper()
	b := classfile.NewBuilder("demo/Hello", "java/lang/Object")
	b.AddMethod(classfile.AccPublic|classfile.AccStatic, "answer", "()I", 1, 0, []byte{0x10, 42, 0xac})
	return build(t, "Hello.class", b.Bytes(), true)
}

func build(t *testing.T, name string, data []byte, probe bool) *Document {
	t.Helper()
	fs := source.NewFileSet()
	mod, err := loader.LoadBytes(fs, name, data, loader.Options{})
	if err != nil {
		t.Fatal(err)
	}
	s, err := session.New(mod, session.Options{})
	if err != nil {
		t.Fatal(err)
	}
	var res []session.Result
	if probe {
		res = s.Probe(context.Background())
	}
	doc := Build(s, fs, diagfmt.JSONOpts{})
	doc.AddProbe(res)
	return doc
}

func TestBuildMovie(t *testing.T) {
	d := movieDoc(t)
	if d.Format != "swf" || d.Movie == nil || d.Class != nil {
		t.Fatalf("doc = %+v", d)
	}
	if len(d.SHA256) != 64 {
		t.Errorf("sha256 = %q", d.SHA256)
	}
	m := d.Movie
	if len(m.Frames) != 1 || m.Frames[0].Actions != 1 || m.Frames[0].Placements != 1 {
		t.Errorf("frames = %+v", m.Frames)
	}
	if len(m.Frames[0].Labels) != 1 || m.Frames[0].Labels[0] != "intro" {
		t.Errorf("labels = %v", m.Frames[0].Labels)
	}
	if len(m.Characters) != 1 || m.Characters[0].Width != 20 || m.Characters[0].Height != 10 {
		t.Errorf("characters = %+v", m.Characters)
	}
	if len(m.Exports) != 1 || m.Exports[0].Name != "Box" {
		t.Errorf("exports = %+v", m.Exports)
	}
	if len(d.Units) != 1 || d.Units[0].Name != "frame:0" {
		t.Errorf("units = %+v", d.Units)
	}
	if len(d.Probe) != 1 || d.Faults() != 0 {
		t.Errorf("probe = %+v", d.Probe)
	}
}

func TestBuildClass(t *testing.T) {
	d := classDoc(t)
	c := d.Class
	if c == nil || c.Name != "demo/Hello" || c.Super != "java/lang/Object" {
		t.Fatalf("class = %+v", c)
	}
	if len(c.Methods) != 1 || c.Methods[0].Access != "public static" || c.Methods[0].CodeSize != 3 {
		t.Errorf("methods = %+v", c.Methods)
	}
	if len(d.Probe) != 1 || d.Probe[0].Value != "42" {
		t.Errorf("probe = %+v", d.Probe)
	}
	if !strings.Contains(d.Title(), "class demo.Hello") {
		t.Errorf("title = %q", d.Title())
	}
}

func TestEncodeFormats(t *testing.T) {
	docs := []*Document{movieDoc(t), classDoc(t)}

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Encode(&buf, FormatText, docs...); err != nil {
			t.Fatal(err)
		}
		out := buf.String()
		for _, want := range []string{"m.swf: FWS v8", "frame 0: 1 actions", "[intro]", "probe demo/Hello.answer()I: returned = 42"} {
			if !strings.Contains(out, want) {
				t.Errorf("missing %q in:\n%s", want, out)
			}
		}
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Encode(&buf, FormatJSON, docs[1]); err != nil {
			t.Fatal(err)
		}
		var back Document
		if err := json.Unmarshal(buf.Bytes(), &back); err != nil {
			t.Fatal(err)
		}
		if back.Class == nil || back.Class.Name != "demo/Hello" || back.Schema != Schema {
			t.Errorf("decoded = %+v", back)
		}
	})

	t.Run("cbor is canonical", func(t *testing.T) {
		var a, b bytes.Buffer
		if err := Encode(&a, FormatCBOR, docs...); err != nil {
			t.Fatal(err)
		}
		if err := Encode(&b, FormatCBOR, docs...); err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(a.Bytes(), b.Bytes()) {
			t.Error("two encodings differ")
		}
		back, err := UnmarshalCBOR(a.Bytes())
		if err != nil {
			t.Fatal(err)
		}
		if len(back) != 2 || back[0].Movie == nil || back[0].Movie.Frames[0].Labels[0] != "intro" {
			t.Errorf("decoded = %+v", back)
		}
	})

	t.Run("msgpack", func(t *testing.T) {
		data, err := MarshalMsgpack(docs[0])
		if err != nil {
			t.Fatal(err)
		}
		back, err := UnmarshalMsgpack(data)
		if err != nil {
			t.Fatal(err)
		}
		if back.SHA256 != docs[0].SHA256 || len(back.Units) != 1 || back.Movie.Exports[0].Name != "Box" {
			t.Errorf("decoded = %+v", back)
		}
	})
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		err  bool
	}{
		{"text", FormatText, false},
		{"JSON", FormatJSON, false},
		{"mp", FormatMsgpack, false},
		{"cbor", FormatCBOR, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.err || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}
