package jvm

import (
	"fmt"
	"io"
	"strings"

	"necroverse/internal/classfile"
	"necroverse/internal/descriptor"
)

// Instruction is one decoded bytecode instruction.
type Instruction struct {
	PC       int
	Op       byte
	Len      int // 0 when the operands run past the end of code
	Operands string
	Comment  string
}

// Name returns the mnemonic.
func (in Instruction) Name() string { return OpName(in.Op) }

func (in Instruction) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%6d: %s", in.PC, in.Name())
	if in.Operands != "" {
		sb.WriteString(" ")
		sb.WriteString(in.Operands)
	}
	if in.Comment != "" {
		sb.WriteString("\t// ")
		sb.WriteString(in.Comment)
	}
	if in.Len == 0 {
		sb.WriteString(" <truncated>")
	}
	return sb.String()
}

// Instructions decodes code linearly. Pool references are resolved for
// comments when pool is non-nil; a truncated final instruction ends the
// listing.
func Instructions(code []byte, pool *classfile.Pool) []Instruction {
	var out []Instruction
	for pc := 0; pc < len(code); {
		in := Instruction{PC: pc, Op: code[pc], Len: instrLen(code, pc)}
		if in.Len == 0 {
			out = append(out, in)
			break
		}
		in.Operands, in.Comment = operands(code[pc:pc+in.Len], pc, pool)
		out = append(out, in)
		pc += in.Len
	}
	return out
}

func operands(b []byte, pc int, pool *classfile.Pool) (string, string) {
	op := b[0]
	ref := func(idx uint16) (string, string) {
		if pool == nil {
			return fmt.Sprintf("#%d", idx), ""
		}
		return fmt.Sprintf("#%d", idx), pool.Describe(idx)
	}
	switch op {
	case OpBipush:
		return fmt.Sprint(int8(b[1])), ""
	case OpSipush:
		return fmt.Sprint(int16(be16(b[1:]))), ""
	case OpLdc:
		return ref(uint16(b[1]))
	case OpLdcW, OpLdc2W, OpGetstatic, OpPutstatic, OpGetfield, OpPutfield,
		OpInvokevirtual, OpInvokespecial, OpInvokestatic, OpNew, OpAnewarray,
		OpCheckcast, OpInstanceof:
		return ref(be16(b[1:]))
	case OpInvokeinterface:
		s, c := ref(be16(b[1:]))
		return fmt.Sprintf("%s, %d", s, b[3]), c
	case OpInvokedynamic:
		return ref(be16(b[1:]))
	case OpMultianewarray:
		s, c := ref(be16(b[1:]))
		return fmt.Sprintf("%s, %d", s, b[3]), c
	case OpNewarray:
		if name, ok := primitiveArrays[b[1]]; ok {
			t, _ := descriptor.ParseField(name[1:])
			return t.SourceName(), ""
		}
		return fmt.Sprintf("type %d", b[1]), ""
	case OpIinc:
		return fmt.Sprintf("%d, %d", b[1], int8(b[2])), ""
	case OpWide:
		idx := be16(b[2:])
		if b[1] == OpIinc {
			return fmt.Sprintf("%s %d, %d", OpName(b[1]), idx, int16(be16(b[4:]))), ""
		}
		return fmt.Sprintf("%s %d", OpName(b[1]), idx), ""
	case OpGotoW, OpJsrW:
		return fmt.Sprint(pc + int(int32(be32(b[1:])))), ""
	case OpTableswitch:
		return tableSwitchOperands(b, pc), ""
	case OpLookupswitch:
		return lookupSwitchOperands(b, pc), ""
	}
	if op >= OpIfeq && op <= OpJsr || op == OpIfnull || op == OpIfnonnull {
		return fmt.Sprint(pc + int(int16(be16(b[1:])))), ""
	}
	if w := opWidths[op]; w == 1 {
		return fmt.Sprint(b[1]), ""
	}
	return "", ""
}

func tableSwitchOperands(b []byte, pc int) string {
	p := 1 + pad(pc)
	def := int32(be32(b[p:]))
	lo := int32(be32(b[p+4:]))
	hi := int32(be32(b[p+8:]))
	var sb strings.Builder
	fmt.Fprintf(&sb, "{ // %d to %d\n", lo, hi)
	for i := int64(0); i <= int64(hi)-int64(lo); i++ {
		off := int32(be32(b[p+12+4*int(i):]))
		fmt.Fprintf(&sb, "\t%12d: %d\n", int64(lo)+i, pc+int(off))
	}
	fmt.Fprintf(&sb, "\t%12s: %d\n\t}", "default", pc+int(def))
	return sb.String()
}

func lookupSwitchOperands(b []byte, pc int) string {
	p := 1 + pad(pc)
	def := int32(be32(b[p:]))
	n := int(int32(be32(b[p+4:])))
	var sb strings.Builder
	fmt.Fprintf(&sb, "{ // %d\n", n)
	for i := 0; i < n; i++ {
		key := int32(be32(b[p+8+8*i:]))
		off := int32(be32(b[p+12+8*i:]))
		fmt.Fprintf(&sb, "\t%12d: %d\n", key, pc+int(off))
	}
	fmt.Fprintf(&sb, "\t%12s: %d\n\t}", "default", pc+int(def))
	return sb.String()
}

// Disassemble writes a javap-style listing of cf.
func Disassemble(w io.Writer, cf *classfile.Class) error {
	var sb strings.Builder
	kw := cf.Access.Render(classfile.ForClass)
	if kw != "" {
		kw += " "
	}
	kind := "class "
	if cf.Access&classfile.AccInterface != 0 {
		kind = ""
	}
	fmt.Fprintf(&sb, "%s%s%s", kw, kind, cf.SourceName())
	if cf.SuperName != "" && cf.SuperName != "java/lang/Object" {
		fmt.Fprintf(&sb, " extends %s", strings.ReplaceAll(cf.SuperName, "/", "."))
	}
	if len(cf.Interfaces) > 0 {
		names := make([]string, len(cf.Interfaces))
		for i, n := range cf.Interfaces {
			names[i] = strings.ReplaceAll(n, "/", ".")
		}
		fmt.Fprintf(&sb, " implements %s", strings.Join(names, ", "))
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "  minor version: %d\n  major version: %d\n", cf.Minor, cf.Major)
	if cf.SourceFile != "" {
		fmt.Fprintf(&sb, "  source: %q\n", cf.SourceFile)
	}
	sb.WriteString("{\n")
	for i := range cf.Fields {
		fd := &cf.Fields[i]
		fmt.Fprintf(&sb, "  %s;\n", memberHeader(fd, classfile.ForField))
		fmt.Fprintf(&sb, "    descriptor: %s\n", fd.Descriptor)
		if fd.ConstantValue != 0 {
			fmt.Fprintf(&sb, "    ConstantValue: %s\n", cf.Pool.Describe(fd.ConstantValue))
		}
		sb.WriteString("\n")
	}
	for i := range cf.Methods {
		md := &cf.Methods[i]
		fmt.Fprintf(&sb, "  %s;\n", memberHeader(md, classfile.ForMethod))
		fmt.Fprintf(&sb, "    descriptor: %s\n", md.Descriptor)
		if len(md.Exceptions) > 0 {
			fmt.Fprintf(&sb, "    throws: %s\n", strings.Join(md.Exceptions, ", "))
		}
		if md.Code != nil {
			writeCode(&sb, md.Code, cf.Pool)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

func memberHeader(m *classfile.Member, ctx classfile.Context) string {
	var parts []string
	if kw := m.Access.Render(ctx); kw != "" {
		parts = append(parts, kw)
	}
	if ctx == classfile.ForField {
		t, err := descriptor.ParseField(m.Descriptor)
		if err != nil {
			return strings.Join(append(parts, m.Descriptor, m.Name), " ")
		}
		return strings.Join(append(parts, t.SourceName(), m.Name), " ")
	}
	sig, err := descriptor.Parse(m.Descriptor)
	if err != nil {
		return strings.Join(append(parts, m.Name+m.Descriptor), " ")
	}
	params := make([]string, len(sig.Params))
	for i, p := range sig.Params {
		params[i] = p.SourceName()
	}
	call := m.Name + "(" + strings.Join(params, ", ") + ")"
	if m.Name == "<init>" || m.Name == "<clinit>" {
		return strings.Join(append(parts, call), " ")
	}
	return strings.Join(append(parts, sig.Return.SourceName(), call), " ")
}

func writeCode(sb *strings.Builder, code *classfile.Code, pool *classfile.Pool) {
	fmt.Fprintf(sb, "    Code:\n      stack=%d, locals=%d\n", code.MaxStack, code.MaxLocals)
	for _, in := range Instructions(code.Bytecode, pool) {
		sb.WriteString("    ")
		sb.WriteString(in.String())
		sb.WriteString("\n")
	}
	if len(code.Handlers) > 0 {
		sb.WriteString("    Exception table:\n       from    to  target type\n")
		for _, h := range code.Handlers {
			typ := "any"
			if h.CatchType != 0 {
				typ = "Class " + h.CatchName
			}
			fmt.Fprintf(sb, "      %5d %5d %5d   %s\n", h.StartPC, h.EndPC, h.HandlerPC, typ)
		}
	}
	if len(code.LineNumbers) > 0 {
		sb.WriteString("    LineNumberTable:\n")
		for _, ln := range code.LineNumbers {
			fmt.Fprintf(sb, "      line %d: %d\n", ln.Line, ln.StartPC)
		}
	}
}
