package classfile

import (
	"errors"
	"fmt"

	"necroverse/internal/bitio"
	"necroverse/internal/diag"
	"necroverse/internal/source"
)

// Options configure Decode.
type Options struct {
	File     source.FileID
	Reporter diag.Reporter
}

type decoder struct {
	r    *bitio.Reader
	pool *Pool
	file source.FileID
	base int // file offset of r's first byte
	rep  diag.Reporter
}

// Decode parses a class container. Header and pool failures are structural
// and return an error; member and attribute inconsistencies are clamped and
// reported through opts.Reporter.
func Decode(data []byte, opts Options) (*Class, error) {
	d := &decoder{
		r:    bitio.NewReader(data, bitio.BigEndian),
		file: opts.File,
		rep:  diag.OrNop(opts.Reporter),
	}
	magic, err := d.r.U32()
	if err != nil {
		return nil, fmt.Errorf("%w: %d-byte input is too short", ErrBadMagic, len(data))
	}
	if magic != Magic {
		return nil, fmt.Errorf("%w: %#08x", ErrBadMagic, magic)
	}
	c := &Class{Size: len(data)}
	if c.Minor, err = d.r.U16(); err != nil {
		return nil, d.truncated("minor version", err)
	}
	if c.Major, err = d.r.U16(); err != nil {
		return nil, d.truncated("major version", err)
	}
	count, err := d.r.U16()
	if err != nil {
		return nil, d.truncated("constant pool count", err)
	}
	if d.pool, err = readPool(d.r, count); err != nil {
		if errors.Is(err, bitio.ErrExhausted) {
			return nil, d.truncated("constant pool", err)
		}
		return nil, err
	}
	c.Pool = d.pool

	var access uint16
	if access, err = d.r.U16(); err != nil {
		return nil, d.truncated("access flags", err)
	}
	c.Access = AccessFlags(access)
	thisOff := d.r.Pos()
	if c.ThisIndex, err = d.r.U16(); err != nil {
		return nil, d.truncated("this_class", err)
	}
	if c.SuperIndex, err = d.r.U16(); err != nil {
		return nil, d.truncated("super_class", err)
	}
	c.Name = d.className(c.ThisIndex, thisOff)
	if c.SuperIndex != 0 {
		c.SuperName = d.className(c.SuperIndex, thisOff+2)
	}

	ifaceCount, err := d.r.U16()
	if err != nil {
		return nil, d.truncated("interface count", err)
	}
	for i := 0; i < int(ifaceCount); i++ {
		off := d.r.Pos()
		idx, err := d.r.U16()
		if err != nil {
			return nil, d.truncated("interface list", err)
		}
		c.Interfaces = append(c.Interfaces, d.className(idx, off))
	}

	c.Fields = d.members("field")
	c.Methods = d.members("method")
	for i := range c.Fields {
		d.fieldAttributes(&c.Fields[i])
	}
	for i := range c.Methods {
		d.methodAttributes(&c.Methods[i])
	}

	c.Attributes = d.attributes("class")
	for _, a := range c.Attributes {
		switch a.Name {
		case "SourceFile":
			if idx, ok := u16At(a.Data, 0); ok {
				c.SourceFile = d.text(idx, a.Offset)
			}
		case "BootstrapMethods":
			c.Bootstraps = d.bootstraps(a)
		}
	}

	if rest := d.r.Remaining(); rest > 0 {
		diag.ReportWarning(d.rep, diag.StrTrailingBytes, d.span(d.r.Pos(), rest),
			fmt.Sprintf("%d trailing bytes after class attributes", rest)).Emit()
	}
	return c, nil
}

func (d *decoder) span(off, n int) source.Span { return source.At(d.file, d.base+off, n) }

func (d *decoder) truncated(what string, err error) error {
	return fmt.Errorf("%w: truncated %s at offset %#x: %w", ErrStructure, what, d.r.Pos(), err)
}

// lookup reports a failed pool resolution once per site.
func (d *decoder) lookup(err error, off int) {
	var le *LookupError
	code := diag.SymOutOfRange
	if errors.As(err, &le) {
		switch le.Failure {
		case LookupNotPrimary:
			code = diag.SymWideSlot
		case LookupWrongTag:
			code = diag.SymWrongTag
		}
	}
	diag.ReportWarning(d.rep, code, d.span(off, 2), err.Error()).Emit()
}

func (d *decoder) className(idx uint16, off int) string {
	s, err := d.pool.ClassName(idx)
	if err != nil {
		d.lookup(err, off)
	}
	return s
}

func (d *decoder) text(idx uint16, off int) string {
	s, err := d.pool.Text(idx)
	if err != nil {
		d.lookup(err, off)
		return placeholder(err)
	}
	return s
}

// members reads a count-prefixed member list. A truncated list keeps the
// members read so far.
func (d *decoder) members(kind string) []Member {
	countOff := d.r.Pos()
	count, err := d.r.U16()
	if err != nil {
		diag.ReportError(d.rep, diag.StrTruncated, d.span(countOff, d.r.Remaining()),
			fmt.Sprintf("%s count missing", kind)).Emit()
		return nil
	}
	out := make([]Member, 0, count)
	for i := 0; i < int(count); i++ {
		off := d.r.Pos()
		m := Member{Offset: off}
		access, err1 := d.r.U16()
		nameIdx, err2 := d.r.U16()
		descIdx, err3 := d.r.U16()
		if err := errors.Join(err1, err2, err3); err != nil {
			diag.ReportError(d.rep, diag.StrTruncated, d.span(off, d.r.Remaining()),
				fmt.Sprintf("%s list truncated after %d of %d entries", kind, i, count)).Emit()
			return out
		}
		m.Access = AccessFlags(access)
		m.NameIndex, m.DescIndex = nameIdx, descIdx
		m.Name = d.text(nameIdx, off+2)
		m.Descriptor = d.text(descIdx, off+4)
		m.Attributes = d.attributes(kind + " " + m.Name)
		out = append(out, m)
	}
	return out
}

// attributes reads a count-prefixed attribute list, clamping any payload
// whose declared length exceeds the remaining input.
func (d *decoder) attributes(owner string) []Attribute {
	countOff := d.r.Pos()
	count, err := d.r.U16()
	if err != nil {
		diag.ReportError(d.rep, diag.StrTruncated, d.span(countOff, 0),
			fmt.Sprintf("attribute count of %s missing", owner)).Emit()
		return nil
	}
	var out []Attribute
	for i := 0; i < int(count); i++ {
		off := d.r.Pos()
		nameIdx, err1 := d.r.U16()
		length, err2 := d.r.U32()
		if err := errors.Join(err1, err2); err != nil {
			diag.ReportError(d.rep, diag.StrTruncated, d.span(off, d.r.Remaining()),
				fmt.Sprintf("attributes of %s truncated after %d of %d", owner, i, count)).Emit()
			return out
		}
		n := int(length)
		if rest := d.r.Remaining(); uint64(length) > uint64(rest) {
			diag.ReportWarning(d.rep, diag.StrLengthClamped, d.span(off, 6),
				fmt.Sprintf("attribute of %s declares %d bytes, %d available", owner, length, rest)).Emit()
			n = rest
		}
		a := Attribute{NameIndex: nameIdx, Offset: d.base + d.r.Pos()}
		a.Data, _ = d.r.Bytes(n)
		a.Name = d.text(nameIdx, off)
		out = append(out, a)
	}
	return out
}

func u16At(b []byte, i int) (uint16, bool) {
	if i+2 > len(b) {
		return 0, false
	}
	return uint16(b[i])<<8 | uint16(b[i+1]), true
}

func (d *decoder) fieldAttributes(m *Member) {
	for _, a := range m.Attributes {
		if a.Name == "ConstantValue" {
			if v, ok := u16At(a.Data, 0); ok {
				m.ConstantValue = v
			}
		}
	}
}

func (d *decoder) methodAttributes(m *Member) {
	for _, a := range m.Attributes {
		switch a.Name {
		case "Code":
			if m.Code != nil {
				diag.ReportWarning(d.rep, diag.StrBadAttribute, d.span(a.Offset, len(a.Data)),
					fmt.Sprintf("method %s has more than one Code attribute", m.Name)).Emit()
				continue
			}
			m.Code = d.code(a, m.Name)
		case "Exceptions":
			n, _ := u16At(a.Data, 0)
			for i := 0; i < int(n); i++ {
				idx, ok := u16At(a.Data, 2+2*i)
				if !ok {
					break
				}
				m.Exceptions = append(m.Exceptions, d.className(idx, a.Offset+2+2*i))
			}
		}
	}
}

// code decodes a Code attribute payload. Every inconsistency degrades to a
// shorter or empty body.
func (d *decoder) code(a Attribute, method string) *Code {
	r := bitio.NewReader(a.Data, bitio.BigEndian)
	c := &Code{}
	report := func(code diag.Code, msg string) {
		diag.ReportWarning(d.rep, code, d.span(a.Offset+r.Pos(), r.Remaining()),
			fmt.Sprintf("Code of %s: %s", method, msg)).Emit()
	}
	var err1, err2, err3 error
	c.MaxStack, err1 = r.U16()
	c.MaxLocals, err2 = r.U16()
	length, err3 := r.U32()
	if errors.Join(err1, err2, err3) != nil {
		report(diag.StrTruncated, "header truncated")
		return c
	}
	n := int(length)
	if uint64(length) > uint64(r.Remaining()) {
		report(diag.StrLengthClamped, fmt.Sprintf("bytecode declares %d bytes, %d available", length, r.Remaining()))
		n = r.Remaining()
	}
	c.Offset = a.Offset + r.Pos()
	c.Bytecode, _ = r.Bytes(n)

	handlers, err := r.U16()
	if err != nil {
		report(diag.StrTruncated, "exception table missing")
		return c
	}
	for i := 0; i < int(handlers); i++ {
		off := r.Pos()
		var h Handler
		var e1, e2, e3, e4 error
		h.StartPC, e1 = r.U16()
		h.EndPC, e2 = r.U16()
		h.HandlerPC, e3 = r.U16()
		h.CatchType, e4 = r.U16()
		if errors.Join(e1, e2, e3, e4) != nil {
			report(diag.StrTruncated, fmt.Sprintf("exception table truncated after %d of %d", i, handlers))
			return c
		}
		if h.CatchType != 0 {
			h.CatchName = d.className(h.CatchType, a.Offset+off+6)
		}
		c.Handlers = append(c.Handlers, h)
	}

	base := a.Offset + r.Pos()
	sub := &decoder{r: bitio.NewReader(r.Rest(), bitio.BigEndian), pool: d.pool, file: d.file, base: base, rep: d.rep}
	for _, na := range sub.attributes("Code of " + method) {
		c.Attributes = append(c.Attributes, na)
		if na.Name == "LineNumberTable" {
			n, _ := u16At(na.Data, 0)
			for i := 0; i < int(n); i++ {
				pc, ok1 := u16At(na.Data, 2+4*i)
				line, ok2 := u16At(na.Data, 4+4*i)
				if !ok1 || !ok2 {
					break
				}
				c.LineNumbers = append(c.LineNumbers, LineNumber{StartPC: pc, Line: line})
			}
		}
	}
	return c
}

func (d *decoder) bootstraps(a Attribute) []Bootstrap {
	n, _ := u16At(a.Data, 0)
	out := make([]Bootstrap, 0, n)
	pos := 2
	for i := 0; i < int(n); i++ {
		ref, ok1 := u16At(a.Data, pos)
		argc, ok2 := u16At(a.Data, pos+2)
		if !ok1 || !ok2 {
			diag.ReportWarning(d.rep, diag.StrTruncated, d.span(a.Offset+pos, 0),
				fmt.Sprintf("BootstrapMethods truncated after %d of %d", i, n)).Emit()
			return out
		}
		pos += 4
		bm := Bootstrap{Method: ref}
		for j := 0; j < int(argc); j++ {
			arg, ok := u16At(a.Data, pos)
			if !ok {
				break
			}
			bm.Args = append(bm.Args, arg)
			pos += 2
		}
		out = append(out, bm)
	}
	return out
}
