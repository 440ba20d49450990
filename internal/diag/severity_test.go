package diag

import "testing"

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in      string
		want    Severity
		wantErr bool
	}{
		{"info", SevInfo, false},
		{"Warn", SevWarning, false},
		{"WARNING", SevWarning, false},
		{"error", SevError, false},
		{"fatal", SevInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseSeverity(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseSeverity(%q) = %v, %v", tt.in, got, err)
		}
	}
	if SevError.String() != "ERROR" || Severity(9).String() != "UNKNOWN" {
		t.Errorf("String() = %q, %q", SevError, Severity(9))
	}
}
