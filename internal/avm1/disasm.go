package avm1

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"necroverse/internal/bitio"
	"necroverse/internal/swf"
)

// Instruction is one disassembled action.
type Instruction struct {
	Action
	Operands string
	Comment  string
}

func (in Instruction) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%6d: %s", in.Offset, in.Code)
	if in.Operands != "" {
		sb.WriteString(" ")
		sb.WriteString(in.Operands)
	}
	if in.Comment != "" {
		sb.WriteString("\t// ")
		sb.WriteString(in.Comment)
	}
	if in.Truncated {
		sb.WriteString(" <truncated>")
	}
	return sb.String()
}

// Instructions decodes a unit linearly. Function, With and Try bodies
// are listed inline, as they appear in the byte stream. Push constants
// are resolved against the most recent ConstantPool.
func Instructions(code []byte, version uint8) []Instruction {
	var pool []string
	var out []Instruction
	for _, a := range Decode(code) {
		in := Instruction{Action: a}
		if !a.Truncated {
			in.Operands, in.Comment = operands(a, version, &pool)
		}
		out = append(out, in)
	}
	return out
}

func quote(s string) string { return strconv.Quote(s) }

// operands renders the payload; malformed payloads render as hex.
func operands(a Action, version uint8, pool *[]string) (string, string) {
	r := bitio.NewReader(a.Payload, bitio.LittleEndian)
	str := func() (string, error) {
		b, err := r.CString()
		return swf.DecodeString(b, version), err
	}
	var parts []string
	var comment string
	var err error
	switch a.Code {
	case ActPush:
		var notes []string
		for r.Remaining() > 0 && err == nil {
			var p, note string
			p, note, err = pushOperand(r, str, *pool)
			parts = append(parts, p)
			if note != "" {
				notes = append(notes, note)
			}
		}
		comment = strings.Join(notes, ", ")
	case ActJump, ActIf:
		var off int16
		if off, err = r.I16(); err == nil {
			parts = append(parts, strconv.Itoa(a.Next()+int(off)))
			comment = fmt.Sprintf("%+d", off)
		}
	case ActConstantPool:
		var n uint16
		if n, err = r.U16(); err == nil {
			var strs []string
			for i := 0; i < int(n) && err == nil; i++ {
				var s string
				if s, err = str(); err == nil {
					strs = append(strs, s)
					parts = append(parts, quote(s))
				}
			}
			*pool = strs
			comment = fmt.Sprintf("%d entries", n)
		}
	case ActStoreRegister:
		var reg uint8
		if reg, err = r.U8(); err == nil {
			parts = append(parts, fmt.Sprintf("r%d", reg))
		}
	case ActGotoFrame:
		var n uint16
		if n, err = r.U16(); err == nil {
			parts = append(parts, strconv.Itoa(int(n)))
		}
	case ActGotoLabel, ActSetTarget:
		var s string
		if s, err = str(); err == nil {
			parts = append(parts, quote(s))
		}
	case ActGetURL:
		var url, window string
		if url, err = str(); err == nil {
			if window, err = str(); err == nil {
				parts = append(parts, quote(url), quote(window))
			}
		}
	case ActGotoFrame2, ActGetURL2, ActWaitForFrame2:
		var flags uint8
		if flags, err = r.U8(); err == nil {
			parts = append(parts, fmt.Sprintf("%#02x", flags))
		}
	case ActWaitForFrame:
		var frame uint16
		var skip uint8
		if frame, err = r.U16(); err == nil {
			if skip, err = r.U8(); err == nil {
				parts = append(parts, strconv.Itoa(int(frame)), strconv.Itoa(int(skip)))
			}
		}
	case ActWith:
		var size uint16
		if size, err = r.U16(); err == nil {
			parts = append(parts, strconv.Itoa(int(size)))
			comment = fmt.Sprintf("block ends at %d", a.Next()+int(size))
		}
	case ActTry:
		parts, comment, err = tryOperands(r, str, a)
	case ActDefineFunction, ActDefineFunction2:
		parts, comment, err = functionOperands(r, str, a)
	default:
		if len(a.Payload) > 0 {
			parts = append(parts, fmt.Sprintf("% x", a.Payload))
		}
	}
	if err != nil {
		return fmt.Sprintf("% x", a.Payload), "malformed payload"
	}
	return strings.Join(parts, ", "), comment
}

func pushOperand(r *bitio.Reader, str func() (string, error), pool []string) (string, string, error) {
	typ, err := r.U8()
	if err != nil {
		return "", "", err
	}
	constant := func(i int) (string, string) {
		if i < len(pool) {
			return fmt.Sprintf("c%d", i), quote(pool[i])
		}
		return fmt.Sprintf("c%d", i), "constant out of range"
	}
	switch typ {
	case pushString:
		s, err := str()
		return quote(s), "", err
	case pushFloat:
		f, err := r.F32()
		return FormatNumber(float64(f)) + "f", "", err
	case pushNull:
		return "null", "", nil
	case pushUndefined:
		return "undefined", "", nil
	case pushRegister:
		n, err := r.U8()
		return fmt.Sprintf("r%d", n), "", err
	case pushBool:
		b, err := r.U8()
		return strconv.FormatBool(b != 0), "", err
	case pushDouble:
		hi, err := r.U32()
		if err != nil {
			return "", "", err
		}
		lo, err := r.U32()
		return FormatNumber(math.Float64frombits(uint64(hi)<<32 | uint64(lo))), "", err
	case pushInt:
		n, err := r.I32()
		return strconv.Itoa(int(n)), "", err
	case pushConst8:
		n, err := r.U8()
		p, note := constant(int(n))
		return p, note, err
	case pushConst16:
		n, err := r.U16()
		p, note := constant(int(n))
		return p, note, err
	}
	return "", "", fmt.Errorf("unknown push type %d", typ)
}

func tryOperands(r *bitio.Reader, str func() (string, error), a Action) ([]string, string, error) {
	flags, err := r.U8()
	if err != nil {
		return nil, "", err
	}
	var sizes [3]uint16
	for i := range sizes {
		if sizes[i], err = r.U16(); err != nil {
			return nil, "", err
		}
	}
	catch := ""
	if flags&tryCatchRegister != 0 {
		reg, err := r.U8()
		if err != nil {
			return nil, "", err
		}
		catch = fmt.Sprintf("r%d", reg)
	} else if catch, err = str(); err != nil {
		return nil, "", err
	}
	if catch == "" {
		catch = `""`
	}
	tryEnd := a.Next() + int(sizes[0])
	catchEnd := tryEnd + int(sizes[1])
	parts := []string{
		fmt.Sprintf("try=%d", sizes[0]),
		fmt.Sprintf("catch=%d", sizes[1]),
		fmt.Sprintf("finally=%d", sizes[2]),
		"var=" + catch,
	}
	comment := fmt.Sprintf("catch at %d, finally at %d, end %d", tryEnd, catchEnd, catchEnd+int(sizes[2]))
	return parts, comment, nil
}

func functionOperands(r *bitio.Reader, str func() (string, error), a Action) ([]string, string, error) {
	name, err := str()
	if err != nil {
		return nil, "", err
	}
	n, err := r.U16()
	if err != nil {
		return nil, "", err
	}
	v2 := a.Code == ActDefineFunction2
	var regs uint8
	var flags uint16
	if v2 {
		if regs, err = r.U8(); err != nil {
			return nil, "", err
		}
		if flags, err = r.U16(); err != nil {
			return nil, "", err
		}
	}
	params := make([]string, 0, n)
	for i := 0; i < int(n); i++ {
		var reg uint8
		if v2 {
			if reg, err = r.U8(); err != nil {
				return nil, "", err
			}
		}
		p, err := str()
		if err != nil {
			return nil, "", err
		}
		if reg != 0 {
			p = fmt.Sprintf("r%d:%s", reg, p)
		}
		params = append(params, p)
	}
	size, err := r.U16()
	if err != nil {
		return nil, "", err
	}
	if name == "" {
		name = "<anonymous>"
	}
	parts := []string{name + "(" + strings.Join(params, ", ") + ")"}
	if v2 {
		parts = append(parts, fmt.Sprintf("registers=%d", regs), fmt.Sprintf("flags=%#04x", flags))
	}
	comment := fmt.Sprintf("body %d bytes, ends at %d", size, a.Next()+int(size))
	return parts, comment, nil
}

// Disassemble writes a listing of code.
func Disassemble(w io.Writer, name string, code []byte, version uint8) error {
	if _, err := fmt.Fprintf(w, "%s: %d bytes\n", name, len(code)); err != nil {
		return err
	}
	for _, in := range Instructions(code, version) {
		if _, err := fmt.Fprintln(w, in.String()); err != nil {
			return err
		}
	}
	return nil
}
