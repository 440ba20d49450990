package avm1

import (
	"encoding/binary"
	"fmt"
)

// ActionCode is the first byte of an action record. Codes at or above
// 0x80 are followed by a 16-bit payload length.
type ActionCode uint8

const (
	ActEnd             ActionCode = 0x00
	ActNextFrame       ActionCode = 0x04
	ActPrevFrame       ActionCode = 0x05
	ActPlay            ActionCode = 0x06
	ActStop            ActionCode = 0x07
	ActToggleQuality   ActionCode = 0x08
	ActStopSounds      ActionCode = 0x09
	ActAdd             ActionCode = 0x0a
	ActSubtract        ActionCode = 0x0b
	ActMultiply        ActionCode = 0x0c
	ActDivide          ActionCode = 0x0d
	ActEquals          ActionCode = 0x0e
	ActLess            ActionCode = 0x0f
	ActAnd             ActionCode = 0x10
	ActOr              ActionCode = 0x11
	ActNot             ActionCode = 0x12
	ActStringEquals    ActionCode = 0x13
	ActStringLength    ActionCode = 0x14
	ActStringExtract   ActionCode = 0x15
	ActPop             ActionCode = 0x17
	ActToInteger       ActionCode = 0x18
	ActGetVariable     ActionCode = 0x1c
	ActSetVariable     ActionCode = 0x1d
	ActSetTarget2      ActionCode = 0x20
	ActStringAdd       ActionCode = 0x21
	ActGetProperty     ActionCode = 0x22
	ActSetProperty     ActionCode = 0x23
	ActCloneSprite     ActionCode = 0x24
	ActRemoveSprite    ActionCode = 0x25
	ActTrace           ActionCode = 0x26
	ActStartDrag       ActionCode = 0x27
	ActEndDrag         ActionCode = 0x28
	ActStringLess      ActionCode = 0x29
	ActThrow           ActionCode = 0x2a
	ActCastOp          ActionCode = 0x2b
	ActImplementsOp    ActionCode = 0x2c
	ActRandomNumber    ActionCode = 0x30
	ActMBStringLength  ActionCode = 0x31
	ActCharToAscii     ActionCode = 0x32
	ActAsciiToChar     ActionCode = 0x33
	ActGetTime         ActionCode = 0x34
	ActMBStringExtract ActionCode = 0x35
	ActMBCharToAscii   ActionCode = 0x36
	ActMBAsciiToChar   ActionCode = 0x37
	ActDelete          ActionCode = 0x3a
	ActDelete2         ActionCode = 0x3b
	ActDefineLocal     ActionCode = 0x3c
	ActCallFunction    ActionCode = 0x3d
	ActReturn          ActionCode = 0x3e
	ActModulo          ActionCode = 0x3f
	ActNewObject       ActionCode = 0x40
	ActDefineLocal2    ActionCode = 0x41
	ActInitArray       ActionCode = 0x42
	ActInitObject      ActionCode = 0x43
	ActTypeOf          ActionCode = 0x44
	ActTargetPath      ActionCode = 0x45
	ActEnumerate       ActionCode = 0x46
	ActAdd2            ActionCode = 0x47
	ActLess2           ActionCode = 0x48
	ActEquals2         ActionCode = 0x49
	ActToNumber        ActionCode = 0x4a
	ActToString        ActionCode = 0x4b
	ActPushDuplicate   ActionCode = 0x4c
	ActStackSwap       ActionCode = 0x4d
	ActGetMember       ActionCode = 0x4e
	ActSetMember       ActionCode = 0x4f
	ActIncrement       ActionCode = 0x50
	ActDecrement       ActionCode = 0x51
	ActCallMethod      ActionCode = 0x52
	ActNewMethod       ActionCode = 0x53
	ActInstanceOf      ActionCode = 0x54
	ActEnumerate2      ActionCode = 0x55
	ActBitAnd          ActionCode = 0x60
	ActBitOr           ActionCode = 0x61
	ActBitXor          ActionCode = 0x62
	ActBitLShift       ActionCode = 0x63
	ActBitRShift       ActionCode = 0x64
	ActBitURShift      ActionCode = 0x65
	ActStrictEquals    ActionCode = 0x66
	ActGreater         ActionCode = 0x67
	ActStringGreater   ActionCode = 0x68
	ActExtends         ActionCode = 0x69
	ActGotoFrame       ActionCode = 0x81
	ActGetURL          ActionCode = 0x83
	ActStoreRegister   ActionCode = 0x87
	ActConstantPool    ActionCode = 0x88
	ActWaitForFrame    ActionCode = 0x8a
	ActSetTarget       ActionCode = 0x8b
	ActGotoLabel       ActionCode = 0x8c
	ActWaitForFrame2   ActionCode = 0x8d
	ActDefineFunction2 ActionCode = 0x8e
	ActTry             ActionCode = 0x8f
	ActWith            ActionCode = 0x94
	ActPush            ActionCode = 0x96
	ActJump            ActionCode = 0x99
	ActGetURL2         ActionCode = 0x9a
	ActDefineFunction  ActionCode = 0x9b
	ActIf              ActionCode = 0x9d
	ActCall            ActionCode = 0x9e
	ActGotoFrame2      ActionCode = 0x9f
)

var actionNames = map[ActionCode]string{
	ActEnd: "End", ActNextFrame: "NextFrame", ActPrevFrame: "PrevFrame",
	ActPlay: "Play", ActStop: "Stop", ActToggleQuality: "ToggleQuality",
	ActStopSounds: "StopSounds", ActAdd: "Add", ActSubtract: "Subtract",
	ActMultiply: "Multiply", ActDivide: "Divide", ActEquals: "Equals",
	ActLess: "Less", ActAnd: "And", ActOr: "Or", ActNot: "Not",
	ActStringEquals: "StringEquals", ActStringLength: "StringLength",
	ActStringExtract: "StringExtract", ActPop: "Pop", ActToInteger: "ToInteger",
	ActGetVariable: "GetVariable", ActSetVariable: "SetVariable",
	ActSetTarget2: "SetTarget2", ActStringAdd: "StringAdd",
	ActGetProperty: "GetProperty", ActSetProperty: "SetProperty",
	ActCloneSprite: "CloneSprite", ActRemoveSprite: "RemoveSprite",
	ActTrace: "Trace", ActStartDrag: "StartDrag", ActEndDrag: "EndDrag",
	ActStringLess: "StringLess", ActThrow: "Throw", ActCastOp: "CastOp",
	ActImplementsOp: "ImplementsOp", ActRandomNumber: "RandomNumber",
	ActMBStringLength: "MBStringLength", ActCharToAscii: "CharToAscii",
	ActAsciiToChar: "AsciiToChar", ActGetTime: "GetTime",
	ActMBStringExtract: "MBStringExtract", ActMBCharToAscii: "MBCharToAscii",
	ActMBAsciiToChar: "MBAsciiToChar", ActDelete: "Delete", ActDelete2: "Delete2",
	ActDefineLocal: "DefineLocal", ActCallFunction: "CallFunction",
	ActReturn: "Return", ActModulo: "Modulo", ActNewObject: "NewObject",
	ActDefineLocal2: "DefineLocal2", ActInitArray: "InitArray",
	ActInitObject: "InitObject", ActTypeOf: "TypeOf", ActTargetPath: "TargetPath",
	ActEnumerate: "Enumerate", ActAdd2: "Add2", ActLess2: "Less2",
	ActEquals2: "Equals2", ActToNumber: "ToNumber", ActToString: "ToString",
	ActPushDuplicate: "PushDuplicate", ActStackSwap: "StackSwap",
	ActGetMember: "GetMember", ActSetMember: "SetMember",
	ActIncrement: "Increment", ActDecrement: "Decrement",
	ActCallMethod: "CallMethod", ActNewMethod: "NewMethod",
	ActInstanceOf: "InstanceOf", ActEnumerate2: "Enumerate2",
	ActBitAnd: "BitAnd", ActBitOr: "BitOr", ActBitXor: "BitXor",
	ActBitLShift: "BitLShift", ActBitRShift: "BitRShift",
	ActBitURShift: "BitURShift", ActStrictEquals: "StrictEquals",
	ActGreater: "Greater", ActStringGreater: "StringGreater",
	ActExtends: "Extends", ActGotoFrame: "GotoFrame", ActGetURL: "GetURL",
	ActStoreRegister: "StoreRegister", ActConstantPool: "ConstantPool",
	ActWaitForFrame: "WaitForFrame", ActSetTarget: "SetTarget",
	ActGotoLabel: "GotoLabel", ActWaitForFrame2: "WaitForFrame2",
	ActDefineFunction2: "DefineFunction2", ActTry: "Try", ActWith: "With",
	ActPush: "Push", ActJump: "Jump", ActGetURL2: "GetURL2",
	ActDefineFunction: "DefineFunction", ActIf: "If", ActCall: "Call",
	ActGotoFrame2: "GotoFrame2",
}

func (c ActionCode) String() string {
	if n, ok := actionNames[c]; ok {
		return n
	}
	return fmt.Sprintf("Unknown_%#02x", uint8(c))
}

// Known reports whether c is a documented action.
func (c ActionCode) Known() bool {
	_, ok := actionNames[c]
	return ok
}

// HasPayload reports whether records with this code carry a length field.
func (c ActionCode) HasPayload() bool { return c >= 0x80 }

// Action is one decoded action record.
type Action struct {
	Code      ActionCode
	Offset    int // of the code byte within the unit
	Payload   []byte
	Truncated bool // the declared payload ran past the end of the unit
}

// Len is the encoded size of the record.
func (a Action) Len() int {
	if !a.Code.HasPayload() {
		return 1
	}
	return 3 + len(a.Payload)
}

// Next is the offset of the following record, which is also the base of
// Jump and If offsets.
func (a Action) Next() int { return a.Offset + a.Len() }

// ReadAction decodes the record at pc. ok is false when pc is out of range.
func ReadAction(code []byte, pc int) (a Action, ok bool) {
	if pc < 0 || pc >= len(code) {
		return Action{}, false
	}
	a = Action{Code: ActionCode(code[pc]), Offset: pc}
	if !a.Code.HasPayload() {
		return a, true
	}
	if pc+3 > len(code) {
		a.Payload = code[pc+1 : pc+1 : pc+1]
		a.Truncated = true
		return a, true
	}
	n := int(binary.LittleEndian.Uint16(code[pc+1:]))
	end := pc + 3 + n
	if end > len(code) {
		end = len(code)
		a.Truncated = true
	}
	a.Payload = code[pc+3 : end : end]
	return a, true
}

// Decode splits a unit into action records. Decoding stops after End or
// after a truncated record.
func Decode(code []byte) []Action {
	var out []Action
	for pc := 0; pc < len(code); {
		a, _ := ReadAction(code, pc)
		out = append(out, a)
		if a.Truncated || a.Code == ActEnd {
			break
		}
		pc = a.Next()
	}
	return out
}
