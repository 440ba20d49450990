package main

import "testing"

func TestUIModeSet(t *testing.T) {
	tests := []struct {
		in      string
		want    uiMode
		wantErr bool
	}{
		{"", uiModeAuto, false},
		{"AUTO", uiModeAuto, false},
		{" on ", uiModeOn, false},
		{"off", uiModeOff, false},
		{"maybe", uiModeOff, true},
	}
	for _, tt := range tests {
		m := uiModeOff
		err := m.Set(tt.in)
		if (err != nil) != tt.wantErr || m != tt.want {
			t.Errorf("Set(%q) = %q, %v", tt.in, m, err)
		}
	}
}

func TestUIModeUseTUI(t *testing.T) {
	tests := []struct {
		mode      uiMode
		quiet     bool
		binaryOut bool
		want      bool
	}{
		{uiModeOn, false, false, true},
		{uiModeOn, true, false, true},
		{uiModeOn, false, true, false},
		{uiModeOff, false, false, false},
		{uiModeAuto, true, false, false},
	}
	for _, tt := range tests {
		if got := tt.mode.useTUI(tt.quiet, tt.binaryOut); got != tt.want {
			t.Errorf("%s.useTUI(quiet=%v, binary=%v) = %v", tt.mode, tt.quiet, tt.binaryOut, got)
		}
	}
}
