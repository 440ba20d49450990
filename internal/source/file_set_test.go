package source

import (
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"
)

func TestFileSetVersioning(t *testing.T) {
	fs := NewFileSet()

	id1 := fs.Add("movie.swf", []byte{1, 2, 3}, 0)
	if id1 != 0 {
		t.Errorf("Expected first FileID to be 0, got %d", id1)
	}
	id2 := fs.Add("./movie.swf", []byte{4, 5}, 0)
	if id2 != 1 {
		t.Errorf("Expected second FileID to be 1, got %d", id2)
	}

	latest, ok := fs.GetLatest("movie.swf")
	if !ok || latest != id2 {
		t.Errorf("GetLatest = %d, %v; want %d", latest, ok, id2)
	}
	if got := fs.Get(id1).Content; len(got) != 3 {
		t.Errorf("old file content changed: %v", got)
	}
	if fs.Get(7) != nil {
		t.Error("Get on unknown id should return nil")
	}
	if fs.Get(id2).Hash != sha256.Sum256([]byte{4, 5}) {
		t.Error("hash mismatch")
	}
}

func TestFileSetLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "A.class")
	if err := os.WriteFile(path, []byte{0xCA, 0xFE}, 0o600); err != nil {
		t.Fatal(err)
	}
	fs := NewFileSet()
	id, err := fs.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	f := fs.Get(id)
	if f.Flags&FileVirtual != 0 || len(f.Content) != 2 {
		t.Errorf("unexpected file %+v", f)
	}
	if _, err := fs.Load(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSpanAt(t *testing.T) {
	tests := []struct {
		name string
		off  int
		n    int
		want Span
	}{
		{"plain", 4, 6, Span{File: 2, Start: 4, End: 10}},
		{"negative offset", -3, 2, Span{File: 2, Start: 0, End: 0}},
		{"empty", 9, 0, Span{File: 2, Start: 9, End: 9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := At(2, tt.off, tt.n); got != tt.want {
				t.Errorf("At(%d, %d) = %v, want %v", tt.off, tt.n, got, tt.want)
			}
		})
	}
}

func TestSpanCover(t *testing.T) {
	a := Span{File: 1, Start: 10, End: 20}
	b := Span{File: 1, Start: 5, End: 12}
	if got := a.Cover(b); got != (Span{File: 1, Start: 5, End: 20}) {
		t.Errorf("Cover = %v", got)
	}
	c := Span{File: 2, Start: 0, End: 100}
	if got := a.Cover(c); got != a {
		t.Errorf("Cover across files should be identity, got %v", got)
	}
}
