package classfile

import (
	"fmt"
	"math"
	"unicode/utf16"
	"unicode/utf8"

	"necroverse/internal/bitio"
)

// Tag identifies the kind of a constant pool entry.
type Tag uint8

const (
	// TagNone marks index 0 and the unused second slot of wide entries.
	TagNone               Tag = 0
	TagUtf8               Tag = 1
	TagInteger            Tag = 3
	TagFloat              Tag = 4
	TagLong               Tag = 5
	TagDouble             Tag = 6
	TagClass              Tag = 7
	TagString             Tag = 8
	TagFieldref           Tag = 9
	TagMethodref          Tag = 10
	TagInterfaceMethodref Tag = 11
	TagNameAndType        Tag = 12
	TagMethodHandle       Tag = 15
	TagMethodType         Tag = 16
	TagDynamic            Tag = 17
	TagInvokeDynamic      Tag = 18
	TagModule             Tag = 19
	TagPackage            Tag = 20
)

var tagNames = map[Tag]string{
	TagNone:               "None",
	TagUtf8:               "Utf8",
	TagInteger:            "Integer",
	TagFloat:              "Float",
	TagLong:               "Long",
	TagDouble:             "Double",
	TagClass:              "Class",
	TagString:             "String",
	TagFieldref:           "Fieldref",
	TagMethodref:          "Methodref",
	TagInterfaceMethodref: "InterfaceMethodref",
	TagNameAndType:        "NameAndType",
	TagMethodHandle:       "MethodHandle",
	TagMethodType:         "MethodType",
	TagDynamic:            "Dynamic",
	TagInvokeDynamic:      "InvokeDynamic",
	TagModule:             "Module",
	TagPackage:            "Package",
}

func (t Tag) String() string {
	if s, ok := tagNames[t]; ok {
		return s
	}
	return fmt.Sprintf("Tag(%d)", uint8(t))
}

// Wide reports whether entries of this tag occupy two slots.
func (t Tag) Wide() bool { return t == TagLong || t == TagDouble }

// Entry is one constant pool slot. Which fields are meaningful depends on Tag:
// Utf8 uses Text; Integer, Float, Long, Double use the numeric fields;
// reference kinds use A and B as pool indices (MethodHandle stores its
// reference kind in A).
type Entry struct {
	Tag    Tag
	Offset int

	Text   string
	Int    int32
	Float  float32
	Long   int64
	Double float64
	A, B   uint16
}

// LookupFailure classifies a failed pool lookup.
type LookupFailure uint8

const (
	LookupOutOfRange LookupFailure = iota + 1
	LookupNotPrimary
	LookupWrongTag
)

// LookupError is returned by every Pool accessor that cannot satisfy a
// request. It never aborts decoding; callers substitute Placeholder().
type LookupError struct {
	Index   uint16
	Want    Tag
	Got     Tag
	Failure LookupFailure
	Size    int
}

func (e *LookupError) Error() string {
	switch e.Failure {
	case LookupOutOfRange:
		return fmt.Sprintf("constant #%d out of range (pool size %d)", e.Index, e.Size)
	case LookupNotPrimary:
		return fmt.Sprintf("constant #%d is not a primary entry", e.Index)
	default:
		return fmt.Sprintf("constant #%d is %s, want %s", e.Index, e.Got, e.Want)
	}
}

// Placeholder is the text substituted for an unresolved entry.
func (e *LookupError) Placeholder() string {
	return fmt.Sprintf("<invalid #%d>", e.Index)
}

// MemberRef is a fully resolved field or method reference.
type MemberRef struct {
	Kind       Tag // Fieldref, Methodref or InterfaceMethodref
	Class      string
	Name       string
	Descriptor string
}

func (m MemberRef) String() string {
	return m.Class + "." + m.Name + ":" + m.Descriptor
}

// Pool is the 1-indexed constant table of one class. Composite lookups are
// memoized; a Pool is not safe for concurrent use.
type Pool struct {
	entries []Entry // entries[0] is the unusable slot
	members map[uint16]MemberRef
	texts   map[uint16]string
}

// NewPool builds a pool from already decoded entries; entries[0] must be
// the unusable slot. It is used by tooling that assembles classes in memory.
func NewPool(entries []Entry) *Pool {
	if len(entries) == 0 {
		entries = []Entry{{}}
	}
	return &Pool{entries: entries}
}

// Len returns the declared pool count (one more than the highest index).
func (p *Pool) Len() int { return len(p.entries) }

// Entry returns the raw entry at i.
func (p *Pool) Entry(i uint16) (Entry, error) {
	if i == 0 || int(i) >= len(p.entries) {
		return Entry{}, &LookupError{Index: i, Failure: LookupOutOfRange, Size: len(p.entries)}
	}
	e := p.entries[i]
	if e.Tag == TagNone {
		return Entry{}, &LookupError{Index: i, Failure: LookupNotPrimary, Size: len(p.entries)}
	}
	return e, nil
}

func (p *Pool) want(i uint16, tags ...Tag) (Entry, error) {
	e, err := p.Entry(i)
	if err != nil {
		return e, err
	}
	for _, t := range tags {
		if e.Tag == t {
			return e, nil
		}
	}
	return Entry{}, &LookupError{Index: i, Want: tags[0], Got: e.Tag, Failure: LookupWrongTag, Size: len(p.entries)}
}

// Text returns a Utf8 entry.
func (p *Pool) Text(i uint16) (string, error) {
	e, err := p.want(i, TagUtf8)
	return e.Text, err
}

// Integer returns an Integer entry.
func (p *Pool) Integer(i uint16) (int32, error) {
	e, err := p.want(i, TagInteger)
	return e.Int, err
}

// Float returns a Float entry.
func (p *Pool) Float(i uint16) (float32, error) {
	e, err := p.want(i, TagFloat)
	return e.Float, err
}

// Long returns a Long entry.
func (p *Pool) Long(i uint16) (int64, error) {
	e, err := p.want(i, TagLong)
	return e.Long, err
}

// Double returns a Double entry.
func (p *Pool) Double(i uint16) (float64, error) {
	e, err := p.want(i, TagDouble)
	return e.Double, err
}

func (p *Pool) indirectText(i uint16, tag Tag) (string, error) {
	if s, ok := p.texts[i]; ok {
		return s, nil
	}
	e, err := p.want(i, tag)
	if err != nil {
		return placeholder(err), err
	}
	s, err := p.Text(e.A)
	if err != nil {
		return placeholder(err), err
	}
	if p.texts == nil {
		p.texts = make(map[uint16]string)
	}
	p.texts[i] = s
	return s, nil
}

// ClassName resolves a Class entry to its binary name. On failure the
// returned string is a placeholder.
func (p *Pool) ClassName(i uint16) (string, error) { return p.indirectText(i, TagClass) }

// StringLiteral resolves a String entry.
func (p *Pool) StringLiteral(i uint16) (string, error) { return p.indirectText(i, TagString) }

// NameAndType resolves a NameAndType entry.
func (p *Pool) NameAndType(i uint16) (name, desc string, err error) {
	e, err := p.want(i, TagNameAndType)
	if err != nil {
		return placeholder(err), placeholder(err), err
	}
	if name, err = p.Text(e.A); err != nil {
		return placeholder(err), "", err
	}
	if desc, err = p.Text(e.B); err != nil {
		return name, placeholder(err), err
	}
	return name, desc, nil
}

// MemberRef resolves a Fieldref, Methodref or InterfaceMethodref.
func (p *Pool) MemberRef(i uint16) (MemberRef, error) {
	if m, ok := p.members[i]; ok {
		return m, nil
	}
	e, err := p.want(i, TagMethodref, TagFieldref, TagInterfaceMethodref)
	if err != nil {
		return MemberRef{Class: placeholder(err), Name: placeholder(err)}, err
	}
	ref := MemberRef{Kind: e.Tag}
	if ref.Class, err = p.ClassName(e.A); err != nil {
		return ref, err
	}
	if ref.Name, ref.Descriptor, err = p.NameAndType(e.B); err != nil {
		return ref, err
	}
	if p.members == nil {
		p.members = make(map[uint16]MemberRef)
	}
	p.members[i] = ref
	return ref, nil
}

// ClassRef is the loadable value of a Class constant.
type ClassRef struct{ Name string }

// Loadable returns the value an ldc-family instruction pushes for entry i:
// int32, float32, int64, float64, string or ClassRef.
func (p *Pool) Loadable(i uint16) (any, error) {
	e, err := p.Entry(i)
	if err != nil {
		return nil, err
	}
	switch e.Tag {
	case TagInteger:
		return e.Int, nil
	case TagFloat:
		return e.Float, nil
	case TagLong:
		return e.Long, nil
	case TagDouble:
		return e.Double, nil
	case TagString:
		return p.StringLiteral(i)
	case TagClass:
		name, err := p.ClassName(i)
		return ClassRef{Name: name}, err
	default:
		return nil, &LookupError{Index: i, Want: TagString, Got: e.Tag, Failure: LookupWrongTag, Size: len(p.entries)}
	}
}

// Describe renders entry i the way a disassembler comments it.
func (p *Pool) Describe(i uint16) string {
	e, err := p.Entry(i)
	if err != nil {
		return placeholder(err)
	}
	switch e.Tag {
	case TagUtf8:
		return e.Text
	case TagInteger:
		return fmt.Sprintf("int %d", e.Int)
	case TagFloat:
		return fmt.Sprintf("float %gf", e.Float)
	case TagLong:
		return fmt.Sprintf("long %dl", e.Long)
	case TagDouble:
		return fmt.Sprintf("double %gd", e.Double)
	case TagClass:
		s, _ := p.ClassName(i)
		return "class " + s
	case TagString:
		s, _ := p.StringLiteral(i)
		return fmt.Sprintf("String %q", s)
	case TagFieldref, TagMethodref, TagInterfaceMethodref:
		m, _ := p.MemberRef(i)
		kind := "Method"
		if e.Tag == TagFieldref {
			kind = "Field"
		} else if e.Tag == TagInterfaceMethodref {
			kind = "InterfaceMethod"
		}
		return fmt.Sprintf("%s %s.%s:%s", kind, m.Class, m.Name, m.Descriptor)
	case TagNameAndType:
		n, d, _ := p.NameAndType(i)
		return "NameAndType " + n + ":" + d
	case TagMethodType:
		s, _ := p.Text(e.A)
		return "MethodType " + s
	case TagInvokeDynamic, TagDynamic:
		n, d, _ := p.NameAndType(e.B)
		return fmt.Sprintf("%s #%d:%s:%s", e.Tag, e.A, n, d)
	default:
		return fmt.Sprintf("%s #%d", e.Tag, e.A)
	}
}

func placeholder(err error) string {
	if le, ok := err.(*LookupError); ok {
		return le.Placeholder()
	}
	return "<invalid>"
}

// readPool decodes count-1 entries. An unknown tag is structural: the entry
// length cannot be known, so nothing after it can be trusted.
func readPool(r *bitio.Reader, count uint16) (*Pool, error) {
	if count == 0 {
		return nil, fmt.Errorf("%w: constant pool count is zero", ErrStructure)
	}
	entries := make([]Entry, count)
	for i := 1; i < int(count); i++ {
		off := r.Pos()
		tag, err := r.U8()
		if err != nil {
			return nil, fmt.Errorf("constant #%d: %w", i, err)
		}
		e := Entry{Tag: Tag(tag), Offset: off}
		switch e.Tag {
		case TagUtf8:
			n, err := r.U16()
			if err != nil {
				return nil, fmt.Errorf("constant #%d: %w", i, err)
			}
			raw, err := r.Bytes(int(n))
			if err != nil {
				return nil, fmt.Errorf("constant #%d: %w", i, err)
			}
			e.Text = decodeModifiedUTF8(raw)
		case TagInteger:
			v, err := r.I32()
			if err != nil {
				return nil, fmt.Errorf("constant #%d: %w", i, err)
			}
			e.Int = v
		case TagFloat:
			v, err := r.F32()
			if err != nil {
				return nil, fmt.Errorf("constant #%d: %w", i, err)
			}
			e.Float = v
		case TagLong, TagDouble:
			v, err := r.U64()
			if err != nil {
				return nil, fmt.Errorf("constant #%d: %w", i, err)
			}
			if e.Tag == TagLong {
				e.Long = int64(v)
			} else {
				e.Double = math.Float64frombits(v)
			}
			if i+1 >= int(count) {
				return nil, fmt.Errorf("%w: wide constant #%d has no second slot", ErrStructure, i)
			}
			entries[i] = e
			i++ // second slot stays TagNone
			continue
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			v, err := r.U16()
			if err != nil {
				return nil, fmt.Errorf("constant #%d: %w", i, err)
			}
			e.A = v
		case TagMethodHandle:
			kind, err := r.U8()
			if err != nil {
				return nil, fmt.Errorf("constant #%d: %w", i, err)
			}
			ref, err := r.U16()
			if err != nil {
				return nil, fmt.Errorf("constant #%d: %w", i, err)
			}
			e.A, e.B = uint16(kind), ref
		case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType, TagDynamic, TagInvokeDynamic:
			a, err := r.U16()
			if err != nil {
				return nil, fmt.Errorf("constant #%d: %w", i, err)
			}
			b, err := r.U16()
			if err != nil {
				return nil, fmt.Errorf("constant #%d: %w", i, err)
			}
			e.A, e.B = a, b
		default:
			return nil, fmt.Errorf("%w: constant #%d at offset %#x has unknown tag %d", ErrBadPoolTag, i, off, tag)
		}
		entries[i] = e
	}
	return &Pool{entries: entries}, nil
}

// decodeModifiedUTF8 decodes the class-file string encoding: NUL is two
// bytes and supplementary characters are surrogate pairs. Invalid sequences
// become U+FFFD.
func decodeModifiedUTF8(b []byte) string {
	ascii := true
	for _, c := range b {
		if c == 0 || c >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return string(b)
	}
	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c < 0x80:
			units = append(units, uint16(c))
			i++
		case c&0xE0 == 0xC0 && i+1 < len(b):
			units = append(units, uint16(c&0x1F)<<6|uint16(b[i+1]&0x3F))
			i += 2
		case c&0xF0 == 0xE0 && i+2 < len(b):
			units = append(units, uint16(c&0x0F)<<12|uint16(b[i+1]&0x3F)<<6|uint16(b[i+2]&0x3F))
			i += 3
		default:
			units = append(units, utf8.RuneError)
			i++
		}
	}
	return string(utf16.Decode(units))
}
