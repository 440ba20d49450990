package trace

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestLevelShouldEmit(t *testing.T) {
	tests := []struct {
		level Level
		scope Scope
		want  bool
	}{
		{LevelOff, ScopeDriver, false},
		{LevelError, ScopeDriver, false},
		{LevelPhase, ScopeModule, true},
		{LevelPhase, ScopeUnit, false},
		{LevelDetail, ScopeUnit, true},
		{LevelDetail, ScopeInstr, false},
		{LevelDebug, ScopeInstr, true},
	}
	for _, tt := range tests {
		if got := tt.level.ShouldEmit(tt.scope); got != tt.want {
			t.Errorf("%s.ShouldEmit(%s) = %v, want %v", tt.level, tt.scope, got, tt.want)
		}
	}
}

func TestParseLevelAndMode(t *testing.T) {
	if l, err := ParseLevel("detail"); err != nil || l != LevelDetail {
		t.Errorf("ParseLevel(detail) = %v, %v", l, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
	if m, err := ParseMode("both"); err != nil || m != ModeBoth {
		t.Errorf("ParseMode(both) = %v, %v", m, err)
	}
}

func TestRingTracerWrapsInOrder(t *testing.T) {
	r := NewRingTracer(3, LevelDebug)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		Point(r, ScopeInstr, name, "")
	}
	snap := r.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("snapshot len = %d", len(snap))
	}
	got := snap[0].Name + snap[1].Name + snap[2].Name
	if got != "cde" {
		t.Errorf("snapshot order = %q, want cde", got)
	}
}

func TestFaultBypassesScopeFilter(t *testing.T) {
	var buf bytes.Buffer
	st := NewStreamTracer(&buf, LevelError, FormatText)
	Point(st, ScopeUnit, "ignored", "")
	Fault(st, ScopeInstr, "unknown-opcode", "0xfe at 12", nil)
	out := buf.String()
	if strings.Contains(out, "ignored") {
		t.Errorf("point event leaked at LevelError: %q", out)
	}
	if !strings.Contains(out, "unknown-opcode (0xfe at 12)") {
		t.Errorf("fault missing from output: %q", out)
	}
}

func TestSpanNDJSON(t *testing.T) {
	var buf bytes.Buffer
	st := NewStreamTracer(&buf, LevelPhase, FormatNDJSON)
	sp := Begin(st, ScopeModule, "decode", 0)
	sp.WithExtra("records", "4").End("ok")
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("want 2 lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[1], `"kind":"end"`) || !strings.Contains(lines[1], `"records":"4"`) {
		t.Errorf("unexpected end event: %s", lines[1])
	}
}

func TestContextDefaultsToNop(t *testing.T) {
	if FromContext(context.Background()) != Nop {
		t.Error("empty context should yield Nop")
	}
	r := NewRingTracer(4, LevelPhase)
	ctx := WithTracer(context.Background(), r)
	if FromContext(ctx) != Tracer(r) {
		t.Error("tracer not propagated")
	}
}

func TestStartNestsSpans(t *testing.T) {
	r := NewRingTracer(8, LevelDetail)
	ctx, outer := Start(context.Background(), r, ScopeModule, "frame")
	_, inner := Start(ctx, r, ScopeUnit, "frame:0")
	inner.End("")
	outer.End("")

	snap := r.Snapshot()
	if len(snap) != 4 {
		t.Fatalf("events = %d, want 4", len(snap))
	}
	if snap[1].ParentID != outer.ID() || snap[1].Depth != 1 {
		t.Errorf("inner begin = %+v, want parent %d depth 1", snap[1], outer.ID())
	}
	if snap[0].ParentID != 0 || snap[0].Depth != 0 {
		t.Errorf("outer begin = %+v", snap[0])
	}

	var buf bytes.Buffer
	if err := r.Dump(&buf, FormatText); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if !strings.Contains(lines[1], "unit     > frame:0") {
		t.Errorf("inner span not indented: %q", lines[1])
	}
}

func TestStartDisabledKeepsContext(t *testing.T) {
	ctx := context.Background()
	got, sp := Start(ctx, Nop, ScopeUnit, "x")
	if got != ctx || sp.ID() != 0 {
		t.Errorf("disabled Start changed context or opened span %d", sp.ID())
	}
	if sp.WithExtra("k", "v").End("") != 0 {
		t.Error("disabled span reported a duration")
	}
}

func TestRingDumpsOnlyAfterFault(t *testing.T) {
	var quiet, faulty bytes.Buffer
	r := NewRingTracer(2, LevelDetail).DumpOnFault(&quiet, FormatText)
	Point(r, ScopeUnit, "frame:0", "")
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if quiet.Len() != 0 {
		t.Errorf("ring without faults wrote %q", quiet.String())
	}

	r = NewRingTracer(2, LevelDetail).DumpOnFault(&faulty, FormatText)
	Point(r, ScopeUnit, "old", "")
	Point(r, ScopeUnit, "frame:1", "")
	Fault(r, ScopeUnit, "fault", "stack limit", nil)
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	out := faulty.String()
	if !strings.HasPrefix(out, "-- 1 fault(s); last 2 trace events --\n") {
		t.Errorf("missing dump header: %q", out)
	}
	if strings.Contains(out, "old") || !strings.Contains(out, "frame:1") || !strings.Contains(out, "fault (stack limit)") {
		t.Errorf("dump = %q", out)
	}
}

func TestBothModeStreamsAndKeepsInstructions(t *testing.T) {
	var buf bytes.Buffer
	tr, err := New(Config{Level: LevelPhase, Mode: ModeBoth, Output: &buf})
	if err != nil {
		t.Fatal(err)
	}
	if tr.Level() != LevelDebug {
		t.Fatalf("combined level = %s, want debug", tr.Level())
	}
	Point(tr, ScopeModule, "decode", "")
	Point(tr, ScopeInstr, "iadd", "")
	streamed := buf.String()
	if !strings.Contains(streamed, "decode") || strings.Contains(streamed, "iadd") {
		t.Errorf("stream output = %q", streamed)
	}
	Fault(tr, ScopeUnit, "fault", "boom", nil)
	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}
	dump := strings.TrimPrefix(buf.String(), streamed)
	if !strings.Contains(dump, "iadd") {
		t.Errorf("post-mortem lacks instruction events: %q", dump)
	}
}

func TestParseLevelIgnoresCase(t *testing.T) {
	for in, want := range map[string]Level{"Detail": LevelDetail, "OFF": LevelOff, "debug": LevelDebug} {
		if got, err := ParseLevel(in); err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v", in, got, err)
		}
	}
}
