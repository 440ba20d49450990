package avm1

import (
	"fmt"
	"strings"

	"necroverse/internal/source"
)

// FaultCode identifies an interpreter fault.
type FaultCode int

// Stable fault codes.
const (
	FaultTruncated FaultCode = 1001 // VM1001: action payload runs past the unit
	FaultBadJump   FaultCode = 1002 // VM1002
	FaultMalformed FaultCode = 1003 // VM1003: payload too short for its fields
	FaultCanceled  FaultCode = 1004 // VM1004
	FaultStack     FaultCode = 1005 // VM1005: operand stack limit exceeded
)

func (c FaultCode) String() string { return fmt.Sprintf("VM%d", int(c)) }

// BacktraceFrame is one activation in a fault backtrace.
type BacktraceFrame struct {
	Unit string
	PC   int
}

// VMError is an interpreter fault. It aborts the unit it occurred in.
type VMError struct {
	Code      FaultCode
	Message   string
	Span      source.Span
	Backtrace []BacktraceFrame // innermost first
}

func (e *VMError) Error() string {
	return fmt.Sprintf("fault %s: %s", e.Code, e.Message)
}

// Format renders the fault with its backtrace.
func (e *VMError) Format() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "fault %s: %s\n", e.Code, e.Message)
	for i, fr := range e.Backtrace {
		fmt.Fprintf(&sb, "  %d: %s @%d\n", i, fr.Unit, fr.PC)
	}
	return sb.String()
}

// Thrown carries a value raised by the Throw action while it unwinds.
type Thrown struct {
	Value Value
	Text  string // string form at the throw site
}

func (t *Thrown) Error() string { return "uncaught " + t.Text }
