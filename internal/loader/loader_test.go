package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"necroverse/internal/classfile"
	"necroverse/internal/source"
	"necroverse/internal/swf"
)

func movieBytes() []byte {
	b := swf.NewBuilder(8)
	b.DoAction([]byte{0x07, 0x00})
	b.ShowFrame()
	b.End()
	return b.Bytes()
}

func classBytes() []byte {
	b := classfile.NewBuilder("demo/Hello", "java/lang/Object")
	b.AddMethod(classfile.AccPublic|classfile.AccStatic, "answer", "()I", 1, 0, []byte{0x10, 42, 0xac})
	return b.Bytes()
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Format
	}{
		{"swf", movieBytes(), FormatSWF},
		{"class", classBytes(), FormatClass},
		{"lzma signature", []byte("ZWS\x0a"), FormatSWF},
		{"short", []byte{0xca, 0xfe}, FormatUnknown},
		{"text", []byte("hello world"), FormatUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sniff(tt.data); got != tt.want {
				t.Errorf("Sniff = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadBytes(t *testing.T) {
	fs := source.NewFileSet()
	mod, err := LoadBytes(fs, "a.swf", movieBytes(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if mod.Format != FormatSWF || mod.Movie == nil || len(mod.Movie.Frames) != 1 {
		t.Fatalf("module = %+v", mod)
	}
	mod, err = LoadBytes(fs, "Hello.class", classBytes(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if mod.Class == nil || mod.Class.Name != "demo/Hello" {
		t.Fatalf("class = %+v", mod.Class)
	}
}

func TestStructuralFailureIsOneLoadError(t *testing.T) {
	fs := source.NewFileSet()
	tests := []struct {
		name string
		data []byte
		is   error
	}{
		{"unknown", []byte("not a container"), ErrUnknownFormat},
		{"bad class", []byte{0xca, 0xfe, 0xba, 0xbe, 0, 0}, classfile.ErrStructure},
		{"lzma", append([]byte("ZWS\x0a"), make([]byte, 30)...), swf.ErrUnsupportedCompression},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBytes(fs, tt.name, tt.data, Options{})
			var le *LoadError
			if !errors.As(err, &le) || le.Path != tt.name {
				t.Fatalf("err = %v, want *LoadError", err)
			}
			if !errors.Is(err, tt.is) {
				t.Errorf("err = %v, want %v", err, tt.is)
			}
		})
	}
}

type recordSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordSink) OnEvent(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func TestLoadAll(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, data []byte) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, data, 0o644); err != nil {
			t.Fatal(err)
		}
		return p
	}
	good := write("a.swf", movieBytes())
	bad := write("b.swf", []byte("FWS"))
	class := write("c.class", classBytes())
	write("notes.txt", []byte("ignored"))

	paths, err := ListContainers(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 3 || paths[0] != good || paths[1] != bad || paths[2] != class {
		t.Fatalf("paths = %v", paths)
	}
	paths = append(paths, filepath.Join(dir, "missing.swf"))

	sink := &recordSink{}
	res, err := LoadAll(context.Background(), source.NewFileSet(), paths, BatchOptions{Jobs: 2, Progress: sink})
	if err != nil {
		t.Fatal(err)
	}
	if res[0].Module == nil || res[2].Module == nil {
		t.Errorf("good modules not decoded: %+v", res)
	}
	for _, i := range []int{1, 3} {
		var le *LoadError
		if !errors.As(res[i].Err, &le) {
			t.Errorf("result %d err = %v", i, res[i].Err)
		}
	}
	final := map[string]Status{}
	for _, ev := range sink.events {
		final[ev.Path] = ev.Status
	}
	want := map[string]Status{paths[0]: StatusDone, paths[1]: StatusError, paths[2]: StatusDone, paths[3]: StatusError}
	for p, st := range want {
		if final[p] != st {
			t.Errorf("%s: final status %q, want %q", p, final[p], st)
		}
	}
}

func TestLoadAllSkip(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.swf")
	c := filepath.Join(dir, "c.class")
	if err := os.WriteFile(a, movieBytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(c, classBytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	sink := &recordSink{}
	skip := func(f *source.File) bool { return filepath.Ext(f.Path) == ".class" }
	res, err := LoadAll(context.Background(), source.NewFileSet(), []string{a, c}, BatchOptions{Progress: sink, Skip: skip})
	if err != nil {
		t.Fatal(err)
	}
	if res[0].Skipped || res[0].Module == nil {
		t.Errorf("a.swf = %+v", res[0])
	}
	if !res[1].Skipped || res[1].Module != nil || res[1].File == nil || res[1].Err != nil {
		t.Errorf("c.class = %+v", res[1])
	}
	for _, ev := range sink.events {
		if ev.Path == c && ev.Status != StatusCached {
			t.Errorf("skipped file got event %s", ev.Status)
		}
	}
}
