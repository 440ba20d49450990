package diag

import (
	"fmt"
	"strings"
)

// Severity orders diagnostics; a higher value is worse.
type Severity uint8

const (
	// SevInfo marks facts about a container worth showing (a clamped
	// length, a skipped optional record).
	SevInfo Severity = iota
	// SevWarning marks data the decoder or an interpreter recovered from.
	SevWarning
	// SevError marks a structural failure or an aborted unit.
	SevError
)

var severityNames = [...]string{SevInfo: "INFO", SevWarning: "WARNING", SevError: "ERROR"}

func (s Severity) String() string {
	if int(s) < len(severityNames) {
		return severityNames[s]
	}
	return "UNKNOWN"
}

// ParseSeverity accepts a severity name in any case; "warn" is short for
// warning.
func ParseSeverity(s string) (Severity, error) {
	if strings.EqualFold(s, "warn") {
		return SevWarning, nil
	}
	for i, name := range severityNames {
		if strings.EqualFold(s, name) {
			return Severity(i), nil
		}
	}
	return SevInfo, fmt.Errorf("unknown severity %q (want info, warning or error)", s)
}
