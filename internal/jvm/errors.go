package jvm

import (
	"fmt"
	"strings"

	"necroverse/internal/heap"
	"necroverse/internal/source"
)

// FaultCode identifies an interpreter fault.
type FaultCode int

// Stable fault codes.
const (
	FaultStackUnderflow FaultCode = 2001 // VM2001
	FaultStackOverflow  FaultCode = 2002 // VM2002
	FaultBadJump        FaultCode = 2003 // VM2003
	FaultTruncated      FaultCode = 2004 // VM2004: operand bytes missing
	FaultFellOff        FaultCode = 2005 // VM2005: program counter ran past the code
	FaultNoCode         FaultCode = 2006 // VM2006: method has no bytecode
	FaultBadConstant    FaultCode = 2007 // VM2007: unloadable constant
	FaultCanceled       FaultCode = 2008 // VM2008
)

func (c FaultCode) String() string { return fmt.Sprintf("VM%d", int(c)) }

// BacktraceFrame is one activation in a fault backtrace.
type BacktraceFrame struct {
	Method string
	PC     int
	Span   source.Span
}

// VMError is an interpreter fault. It aborts the call it occurred in.
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
	if len(e.Backtrace) > 0 {
		sb.WriteString("backtrace:\n")
		for i, fr := range e.Backtrace {
			fmt.Fprintf(&sb, "  %d: %s @%d\n", i, fr.Method, fr.PC)
		}
	}
	return sb.String()
}

// Thrown carries a guest exception object while it unwinds.
type Thrown struct {
	Ref   heap.ID
	Class string
	Msg   string
}

func (t *Thrown) Error() string {
	if t.Msg == "" {
		return "uncaught " + t.Class
	}
	return "uncaught " + t.Class + ": " + t.Msg
}
