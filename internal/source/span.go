package source

import (
	"fmt"
)

// Span is a half-open byte range inside one file.
type Span struct {
	File  FileID
	Start uint32 // inclusive
	End   uint32 // exclusive
}

func (s Span) Empty() bool {
	return s.Start == s.End
}

func (s Span) Len() uint32 {
	return s.End - s.Start
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%#x-%#x", s.File, s.Start, s.End)
}

// Cover returns the smallest span containing s and other.
func (s Span) Cover(other Span) Span {
	if s.File != other.File {
		return s
	}
	if other.Start < s.Start {
		s.Start = other.Start
	}
	if other.End > s.End {
		s.End = other.End
	}
	return s
}

// At builds a span from an int offset and length, clamping values that do
// not fit the 32-bit offset space.
func At(file FileID, off, n int) Span {
	start := clampU32(off)
	end := clampU32(off + n)
	if end < start {
		end = start
	}
	return Span{File: file, Start: start, End: end}
}
