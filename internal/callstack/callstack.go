// Package callstack bounds nested bytecode invocation. It records only
// (type, member) descriptors; interpreter frames live on the Go stack.
package callstack

import (
	"errors"
	"fmt"
)

var (
	// ErrDepth is returned when entering would exceed the depth ceiling.
	ErrDepth = errors.New("call depth ceiling exceeded")
	// ErrRepeat is returned when the same (type, member) pair is already
	// active too many times.
	ErrRepeat = errors.New("call repetition threshold exceeded")
)

// Default bounds.
const (
	DefaultMaxDepth  = 100
	DefaultMaxRepeat = 5
)

// Entry names one active call.
type Entry struct {
	Type   string
	Member string
}

func (e Entry) String() string {
	if e.Type == "" {
		return e.Member
	}
	return e.Type + "." + e.Member
}

// Guard tracks active calls and refuses entries that break its bounds.
// A Guard is owned by one session and is not safe for concurrent use.
type Guard struct {
	maxDepth  int
	maxRepeat int
	entries   []Entry
	active    map[Entry]int
}

// New returns a guard; non-positive bounds fall back to the defaults.
func New(maxDepth, maxRepeat int) *Guard {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if maxRepeat <= 0 {
		maxRepeat = DefaultMaxRepeat
	}
	return &Guard{
		maxDepth:  maxDepth,
		maxRepeat: maxRepeat,
		active:    make(map[Entry]int),
	}
}

// Enter pushes (typ, member). On error nothing is pushed and the caller
// must not call Leave.
func (g *Guard) Enter(typ, member string) error {
	e := Entry{Type: typ, Member: member}
	if len(g.entries) >= g.maxDepth {
		return fmt.Errorf("%w: %s at depth %d (limit %d)", ErrDepth, e, len(g.entries), g.maxDepth)
	}
	if g.active[e] >= g.maxRepeat {
		return fmt.Errorf("%w: %s active %d times (limit %d)", ErrRepeat, e, g.active[e], g.maxRepeat)
	}
	g.entries = append(g.entries, e)
	g.active[e]++
	return nil
}

// Leave pops the most recent entry. Leave on an empty guard is a no-op.
func (g *Guard) Leave() {
	if len(g.entries) == 0 {
		return
	}
	e := g.entries[len(g.entries)-1]
	g.entries = g.entries[:len(g.entries)-1]
	if g.active[e] <= 1 {
		delete(g.active, e)
	} else {
		g.active[e]--
	}
}

// Depth returns the number of active calls.
func (g *Guard) Depth() int { return len(g.entries) }

// MaxDepth returns the configured ceiling.
func (g *Guard) MaxDepth() int { return g.maxDepth }

// SetMaxDepth lowers or raises the ceiling; non-positive values are ignored.
func (g *Guard) SetMaxDepth(n int) {
	if n > 0 {
		g.maxDepth = n
	}
}

// Entries returns a copy of the active calls, outermost first.
func (g *Guard) Entries() []Entry {
	return append([]Entry(nil), g.entries...)
}

// Top returns the innermost call.
func (g *Guard) Top() (Entry, bool) {
	if len(g.entries) == 0 {
		return Entry{}, false
	}
	return g.entries[len(g.entries)-1], true
}
