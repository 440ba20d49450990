package ui

import (
	"errors"
	"math"
	"strings"
	"testing"

	"necroverse/internal/loader"
)

func TestApplyEventTracksStatus(t *testing.T) {
	m := NewProgressModel("scan", []string{"a.swf", "b.class"}, nil).(*progressModel)

	steps := []struct {
		ev   loader.Event
		want float64
	}{
		{loader.Event{Path: "a.swf", Status: loader.StatusDecoding}, 0.15},
		{loader.Event{Path: "a.swf", Status: loader.StatusProbing}, 0.3},
		{loader.Event{Path: "b.class", Status: loader.StatusError, Err: errors.New("bad magic")}, 0.8},
		{loader.Event{Path: "a.swf", Status: loader.StatusDone}, 1},
		{loader.Event{Path: "unknown", Status: loader.StatusDone}, 1},
	}
	for _, st := range steps {
		m.applyEvent(st.ev)
		if got := m.fraction(); math.Abs(got-st.want) > 1e-9 {
			t.Errorf("after %s %s: fraction %v, want %v", st.ev.Path, st.ev.Status, got, st.want)
		}
	}
	if m.failed != 1 {
		t.Errorf("failed = %d", m.failed)
	}
	view := m.View()
	for _, want := range []string{"scan (1 failed)", "a.swf", "bad magic"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short.swf", 20, "short.swf"},
		{"a/very/long/path/movie.swf", 10, "a/very/..."},
		{"abcdef", 4, "a..."},
		{"abcdef", 3, "abc"},
		{"abc", 0, "abc"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.width); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}
