package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// structural
	StrInfo                   Code = 1000
	StrBadSignature           Code = 1001
	StrUnsupportedVersion     Code = 1002
	StrTruncated              Code = 1003
	StrLengthClamped          Code = 1004
	StrBadRect                Code = 1005
	StrEarlyEndIgnored        Code = 1006
	StrUnsupportedCompression Code = 1007
	StrInflate                Code = 1008
	StrBadPoolTag             Code = 1009
	StrBadAttribute           Code = 1010
	StrTrailingBytes          Code = 1011
	StrDeclaredLength         Code = 1012
	StrBadRecord              Code = 1013

	// symbolic
	SymInfo             Code = 2000
	SymOutOfRange       Code = 2001
	SymWrongTag         Code = 2002
	SymWideSlot         Code = 2003
	SymUnresolvedMember Code = 2004
	SymUnresolvedType   Code = 2005

	// interpretive
	IntInfo            Code = 3000
	IntUnknownOpcode   Code = 3001
	IntBadSignature    Code = 3002
	IntDepthExceeded   Code = 3003
	IntRepeatExceeded  Code = 3004
	IntUnresolvedCall  Code = 3005
	IntUncaughtThrow   Code = 3006
	IntStackUnderflow  Code = 3007
	IntBadJump         Code = 3008
	IntUnresolvedField Code = 3009
	IntTruncatedInstr  Code = 3010
	IntStackOverflow   Code = 3011
	IntFault           Code = 3012

	// io
	IOLoadFileError Code = 4001
	IOCacheError    Code = 4002
)

var (
	codeDescription = map[Code]string{
		UnknownCode:               "Unknown error",
		StrInfo:                   "Structural information",
		StrBadSignature:           "Unrecognised container signature",
		StrUnsupportedVersion:     "Unsupported container version",
		StrTruncated:              "Container ends before a required field",
		StrLengthClamped:          "Record length exceeds remaining bytes; clamped",
		StrBadRect:                "Implausible bit-packed rectangle",
		StrEarlyEndIgnored:        "End marker ignored: too early in stream",
		StrUnsupportedCompression: "Unsupported payload compression",
		StrInflate:                "Compressed payload could not be inflated",
		StrBadPoolTag:             "Unknown symbol table tag",
		StrBadAttribute:           "Malformed attribute",
		StrTrailingBytes:          "Trailing bytes after container end",
		StrDeclaredLength:         "Declared length disagrees with actual length",
		StrBadRecord:              "Record payload could not be decoded",
		SymInfo:                   "Symbolic information",
		SymOutOfRange:             "Symbol index out of range",
		SymWrongTag:               "Symbol entry has unexpected kind",
		SymWideSlot:               "Symbol index names the unused half of a wide entry",
		SymUnresolvedMember:       "Member reference could not be resolved",
		SymUnresolvedType:         "Type reference could not be resolved",
		IntInfo:                   "Interpreter information",
		IntUnknownOpcode:          "Unknown opcode skipped",
		IntBadSignature:           "Malformed signature; default substituted",
		IntDepthExceeded:          "Call depth ceiling reached; call aborted",
		IntRepeatExceeded:         "Repeated call threshold reached; call aborted",
		IntUnresolvedCall:         "Call target not found",
		IntUncaughtThrow:          "Thrown value not handled",
		IntStackUnderflow:         "Operand stack underflow",
		IntBadJump:                "Jump target outside unit",
		IntUnresolvedField:        "Field could not be resolved; default used",
		IntTruncatedInstr:         "Instruction operands run past end of unit",
		IntStackOverflow:          "Operand stack limit exceeded",
		IntFault:                  "Call aborted by interpreter fault",
		IOLoadFileError:           "I/O error while loading container",
		IOCacheError:              "Document cache error",
	}
)

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("STR%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("SYM%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("INT%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("IO%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[Code(0)]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
