package diagfmt

import (
	"bytes"
	"strings"
	"testing"

	"necroverse/internal/diag"
	"necroverse/internal/source"
)

func TestPathModes(t *testing.T) {
	fs := source.NewFileSet()
	fileID := fs.AddVirtual("/home/user/assets/intro/movie.swf", []byte("FWS\x08"))

	bag := diag.NewBag(10)
	bag.Add(diag.New(diag.SevError, diag.StrTruncated, source.Span{File: fileID, Start: 2, End: 3}, "record truncated"))

	tests := []struct {
		name     string
		mode     PathMode
		contains string
	}{
		{"absolute", PathModeAbsolute, "/home/user/assets/intro/movie.swf@0x2"},
		{"relative", PathModeRelative, "intro/movie.swf@0x2"},
		{"basename", PathModeBasename, "movie.swf@0x2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			Pretty(&buf, bag, fs, PrettyOpts{PathMode: tt.mode, BaseDir: "/home/user/assets"})
			output := buf.String()
			if !strings.Contains(output, tt.contains) {
				t.Errorf("expected %q in:\n%s", tt.contains, output)
			}
			for _, want := range []string{"ERROR", "STR1003", "record truncated"} {
				if !strings.Contains(output, want) {
					t.Errorf("expected %q in:\n%s", want, output)
				}
			}
		})
	}
}

func TestPathModeAuto(t *testing.T) {
	fs := source.NewFileSet()
	tests := []struct {
		path     string
		expected string
	}{
		{"movie.swf", "movie.swf@"},
		{"/very/long/absolute/path/to/some/nested/directory/movie.swf", "\nmovie.swf@"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			fileID := fs.AddVirtual(tt.path, []byte("FWS"))
			bag := diag.NewBag(10)
			bag.Add(diag.New(diag.SevWarning, diag.StrInfo, source.Span{File: fileID}, "note"))
			var buf bytes.Buffer
			Pretty(&buf, bag, fs, PrettyOpts{PathMode: PathModeAuto})
			if output := "\n" + buf.String(); !strings.Contains(output, tt.expected) {
				t.Errorf("expected %q in:\n%s", tt.expected, output)
			}
		})
	}
}

func TestPrettyHexPreviewAndNotes(t *testing.T) {
	fs := source.NewFileSet()
	fileID := fs.AddVirtual("A.class", []byte{0xca, 0xfe, 0xba, 0xbe, 0x00, 0x01, 0x02, 0x03})

	bag := diag.NewBag(4)
	d := diag.New(diag.SevWarning, diag.StrLengthClamped, source.Span{File: fileID, Start: 4, End: 6}, "length clamped")
	d = d.WithNote(source.Span{File: fileID, Start: 8, End: 8}, "container ends here")
	bag.Add(d)

	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{PathMode: PathModeBasename, Context: 2, ShowNotes: true})
	output := buf.String()
	if !strings.Contains(output, "00000002  ba be [00 01] 02 03") {
		t.Errorf("expected hex preview in:\n%s", output)
	}
	if !strings.Contains(output, "note: A.class@0x8: container ends here") {
		t.Errorf("expected note in:\n%s", output)
	}
}
