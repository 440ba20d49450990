package trace

import (
	"fmt"
	"strings"
)

// Level controls tracing verbosity.
type Level uint8

const (
	LevelOff    Level = iota // no tracing
	LevelError               // only recovered faults
	LevelPhase               // commands and module decodes
	LevelDetail              // frames and unit invocations
	LevelDebug               // single instructions too
)

var levelNames = [...]string{"off", "error", "phase", "detail", "debug"}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "unknown"
}

// ParseLevel converts a flag or config value to a Level.
func ParseLevel(s string) (Level, error) {
	for i, name := range levelNames {
		if strings.EqualFold(s, name) {
			return Level(i), nil
		}
	}
	return LevelOff, fmt.Errorf("invalid trace level: %q (expected: %s)", s, strings.Join(levelNames[:], "|"))
}

// deepest is the most detailed scope each level emits; 0 emits none.
var deepest = [...]Scope{LevelPhase: ScopeModule, LevelDetail: ScopeUnit, LevelDebug: ScopeInstr}

// ShouldEmit reports whether spans and points at scope pass this level.
// Faults and heartbeats bypass it.
func (l Level) ShouldEmit(scope Scope) bool {
	return int(l) < len(deepest) && scope <= deepest[l]
}
