package jvm

import "fmt"

// OpName returns the mnemonic of op, or "op_0x.." for unassigned bytes.
func OpName(op byte) string {
	if opKnown[op] {
		return opNames[op]
	}
	return fmt.Sprintf("op_%#02x", op)
}

// Known reports whether op is an assigned opcode.
func Known(op byte) bool { return opKnown[op] }

// instrLen returns the encoded length of the instruction at pc including
// the opcode byte, or 0 when it runs past the end of code.
func instrLen(code []byte, pc int) int {
	op := code[pc]
	if w := opWidths[op]; w >= 0 {
		if pc+1+int(w) > len(code) {
			return 0
		}
		return 1 + int(w)
	}
	switch op {
	case OpTableswitch:
		p := pad(pc)
		if pc+1+p+12 > len(code) {
			return 0
		}
		lo := int32(be32(code[pc+1+p+4:]))
		hi := int32(be32(code[pc+1+p+8:]))
		if hi < lo {
			return 0
		}
		n := 1 + p + 12 + 4*int(int64(hi)-int64(lo)+1)
		if pc+n > len(code) {
			return 0
		}
		return n
	case OpLookupswitch:
		p := pad(pc)
		if pc+1+p+8 > len(code) {
			return 0
		}
		pairs := int32(be32(code[pc+1+p+4:]))
		if pairs < 0 {
			return 0
		}
		n := 1 + p + 8 + 8*int(pairs)
		if pc+n > len(code) {
			return 0
		}
		return n
	case OpWide:
		if pc+1 >= len(code) {
			return 0
		}
		n := 4
		if code[pc+1] == OpIinc {
			n = 6
		}
		if pc+n > len(code) {
			return 0
		}
		return n
	}
	return 1
}

// pad is the switch padding after the opcode at pc.
func pad(pc int) int { return (4 - (pc+1)%4) % 4 }

func be16(b []byte) uint16 { return uint16(b[0])<<8 | uint16(b[1]) }
func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
