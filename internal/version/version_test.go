package version

import (
	"testing"

	"github.com/fatih/color"
)

func TestBanner(t *testing.T) {
	origVersion, origCommit, origDate := Version, GitCommit, BuildDate
	t.Cleanup(func() { Version, GitCommit, BuildDate = origVersion, origCommit, origDate })

	tests := []struct {
		name    string
		version string
		commit  string
		date    string
		want    string
	}{
		{"bare", "1.2.3", "", "", "necro 1.2.3"},
		{"commit is shortened", "1.2.3", "abc123def4567890", "", "necro 1.2.3 (commit abc123def456)"},
		{"everything", "0.1.0-dev", "abc", "2024-01-15T10:30:00Z", "necro 0.1.0-dev (commit abc, built 2024-01-15T10:30:00Z)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Version, GitCommit, BuildDate = tt.version, tt.commit, tt.date
			if got := Banner(false); got != tt.want {
				t.Errorf("Banner = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestColoredKeepsTextWithoutColor(t *testing.T) {
	origVersion, origNoColor := Version, color.NoColor
	t.Cleanup(func() { Version, color.NoColor = origVersion, origNoColor })
	color.NoColor = true

	for _, v := range []string{"0.1.0-dev", "2.0.1", "nightly"} {
		Version = v
		if got := Colored(); got != v {
			t.Errorf("Colored() = %q, want %q", got, v)
		}
	}
}
