package diagfmt

import (
	"bytes"
	"encoding/json"
	"testing"

	"necroverse/internal/diag"
	"necroverse/internal/source"
)

func TestJSONBasic(t *testing.T) {
	fs := source.NewFileSet()
	fileID := fs.AddVirtual("movie.swf", []byte("FWS\x08\x00\x00\x00\x00"))

	bag := diag.NewBag(10)
	bag.Add(diag.New(diag.SevError, diag.StrTruncated, source.Span{File: fileID, Start: 4, End: 8}, "record truncated"))

	var buf bytes.Buffer
	if err := JSON(&buf, bag, fs, JSONOpts{PathMode: PathModeBasename}); err != nil {
		t.Fatalf("JSON() error: %v", err)
	}

	var output DiagnosticsOutput
	if err := json.Unmarshal(buf.Bytes(), &output); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, buf.String())
	}
	if output.Count != 1 || len(output.Diagnostics) != 1 {
		t.Fatalf("count = %d, diagnostics = %d", output.Count, len(output.Diagnostics))
	}
	d := output.Diagnostics[0]
	if d.Severity != "ERROR" || d.Code != "STR1003" || d.Message != "record truncated" {
		t.Errorf("diagnostic = %+v", d)
	}
	if d.Location.File != "movie.swf" || d.Location.StartByte != 4 || d.Location.EndByte != 8 {
		t.Errorf("location = %+v", d.Location)
	}
}

func TestJSONNotesAndMax(t *testing.T) {
	fs := source.NewFileSet()
	fileID := fs.AddVirtual("A.class", make([]byte, 32))

	bag := diag.NewBag(10)
	d := diag.New(diag.SevWarning, diag.StrLengthClamped, source.Span{File: fileID, Start: 10, End: 12}, "length clamped")
	d = d.WithNote(source.Span{File: fileID, Start: 20, End: 20}, "container ends here")
	bag.Add(d)
	bag.Add(diag.New(diag.SevInfo, diag.StrInfo, source.Span{File: fileID}, "second"))

	tests := []struct {
		name      string
		opts      JSONOpts
		wantCount int
		wantNotes int
	}{
		{"all with notes", JSONOpts{IncludeNotes: true}, 2, 1},
		{"notes off", JSONOpts{}, 2, 0},
		{"max one", JSONOpts{Max: 1, IncludeNotes: true}, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := BuildDiagnosticsOutput(bag, fs, tt.opts)
			if out.Count != tt.wantCount {
				t.Fatalf("count = %d, want %d", out.Count, tt.wantCount)
			}
			if got := len(out.Diagnostics[0].Notes); got != tt.wantNotes {
				t.Errorf("notes = %d, want %d", got, tt.wantNotes)
			}
		})
	}
}
