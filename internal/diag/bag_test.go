package diag

import (
	"testing"

	"necroverse/internal/source"
)

func TestBagCapAndDrop(t *testing.T) {
	b := NewBag(2)
	for i := 0; i < 4; i++ {
		b.Add(New(SevWarning, StrLengthClamped, source.Span{Start: uint32(i)}, "clamped"))
	}
	if b.Len() != 2 || b.Dropped() != 2 {
		t.Fatalf("len=%d dropped=%d", b.Len(), b.Dropped())
	}
	if b.HasErrors() || !b.HasWarnings() {
		t.Errorf("HasErrors=%v HasWarnings=%v", b.HasErrors(), b.HasWarnings())
	}
}

func TestBagSortAndDedup(t *testing.T) {
	b := NewBag(10)
	b.Add(NewError(SymOutOfRange, source.Span{File: 0, Start: 8, End: 9}, "b"))
	b.Add(New(SevWarning, StrLengthClamped, source.Span{File: 0, Start: 2, End: 3}, "a"))
	b.Add(NewError(SymOutOfRange, source.Span{File: 0, Start: 8, End: 9}, "b again"))
	b.Sort()
	if b.Items()[0].Code != StrLengthClamped {
		t.Fatalf("first after sort = %v", b.Items()[0].Code)
	}
	b.Dedup()
	if b.Len() != 2 {
		t.Errorf("after dedup len = %d, want 2", b.Len())
	}
	if b.Count(SymOutOfRange) != 1 {
		t.Errorf("Count(SymOutOfRange) = %d", b.Count(SymOutOfRange))
	}
}

func TestDedupReporterOnce(t *testing.T) {
	b := NewBag(10)
	r := NewDedupReporter(BagReporter{Bag: b})
	sp := source.Span{File: 1, Start: 4, End: 6}
	for i := 0; i < 3; i++ {
		r.Report(SymWrongTag, SevWarning, sp, "index 4 is not text", nil)
	}
	r.Report(SymWrongTag, SevWarning, sp, "index 5 is not text", nil)
	if b.Len() != 2 {
		t.Errorf("bag len = %d, want 2", b.Len())
	}
}

func TestCodeID(t *testing.T) {
	tests := []struct {
		code Code
		want string
	}{
		{StrBadSignature, "STR1001"},
		{SymWideSlot, "SYM2003"},
		{IntUnknownOpcode, "INT3001"},
		{IOCacheError, "IO4002"},
		{UnknownCode, "E0000"},
	}
	for _, tt := range tests {
		if got := tt.code.ID(); got != tt.want {
			t.Errorf("%d.ID() = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestFormatShortDiagnostics(t *testing.T) {
	fs := source.NewFileSet()
	id := fs.AddVirtual("a.swf", []byte{0, 1, 2, 3})
	diags := []Diagnostic{
		NewError(StrBadRect, source.Span{File: id, Start: 3, End: 4}, "nbits 40\nout of range"),
		New(SevWarning, StrLengthClamped, source.Span{File: id, Start: 1, End: 2}, "tag clamped").
			WithNote(source.Span{File: id, Start: 2, End: 2}, "declared 90"),
	}
	want := "warning STR1004 a.swf@0x1 tag clamped\n" +
		"note STR1004 a.swf@0x2 declared 90\n" +
		"error STR1005 a.swf@0x3 nbits 40 out of range"
	if got := FormatShortDiagnostics(diags, fs, true); got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}
