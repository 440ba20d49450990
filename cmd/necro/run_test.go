package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"necroverse/internal/session"
)

func TestParseArg(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"42", 42},
		{"-7", -7},
		{"0x10", 16},
		{"2.5", 2.5},
		{"true", true},
		{"false", false},
		{"null", nil},
		{`"quoted"`, "quoted"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := parseArg(tt.in); got != tt.want {
			t.Errorf("parseArg(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestReportFaults(t *testing.T) {
	results := []session.Result{
		{Unit: "frame:0", State: "returned"},
		{Unit: "frame:1", State: "faulted", Err: errors.New("stack overflow")},
		{Unit: "frame:2", State: "faulted", Thrown: "boom"},
	}
	var buf bytes.Buffer
	if !reportFaults(&buf, results, false) {
		t.Fatal("faults not detected")
	}
	out := buf.String()
	if !strings.Contains(out, "frame:1: stack overflow") || !strings.Contains(out, "frame:2: uncaught boom") {
		t.Errorf("output:\n%s", out)
	}
	if strings.Contains(out, "frame:0") {
		t.Errorf("clean unit reported:\n%s", out)
	}

	buf.Reset()
	if reportFaults(&buf, results[:1], false) || buf.Len() != 0 {
		t.Errorf("clean run reported %q", buf.String())
	}
}
