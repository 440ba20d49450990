package classfile

import (
	"math"

	"necroverse/internal/bitio"
)

// Builder assembles a class container in memory. Pool entries are
// deduplicated. It is used by tests and by tooling that synthesizes small
// classes.
type Builder struct {
	pool    []Entry
	index   map[Entry]uint16
	access  AccessFlags
	this    uint16
	super   uint16
	ifaces  []uint16
	fields  []builtMember
	methods []builtMember
	source  uint16
	srcAttr uint16
	Major   uint16
	Minor   uint16
}

type builtMember struct {
	access AccessFlags
	name   uint16
	desc   uint16
	attrs  []builtAttr
}

type builtAttr struct {
	name uint16
	data []byte
}

// BuilderHandler is an exception-table row with the catch type named
// directly; an empty CatchName catches everything.
type BuilderHandler struct {
	StartPC, EndPC, HandlerPC uint16
	CatchName                 string
}

// NewBuilder starts a public class; super may be empty for a root class.
func NewBuilder(name, super string) *Builder {
	b := &Builder{
		pool:   []Entry{{}},
		index:  make(map[Entry]uint16),
		access: AccPublic | AccSynchronized,
		Major:  52,
	}
	b.this = b.Class(name)
	if super != "" {
		b.super = b.Class(super)
	}
	return b
}

func (b *Builder) add(e Entry) uint16 {
	if i, ok := b.index[e]; ok {
		return i
	}
	i := uint16(len(b.pool))
	b.pool = append(b.pool, e)
	if e.Tag.Wide() {
		b.pool = append(b.pool, Entry{})
	}
	b.index[e] = i
	return i
}

// Raw appends an entry without deduplication and returns its index.
func (b *Builder) Raw(e Entry) uint16 {
	i := uint16(len(b.pool))
	b.pool = append(b.pool, e)
	if e.Tag.Wide() {
		b.pool = append(b.pool, Entry{})
	}
	return i
}

func (b *Builder) Utf8(s string) uint16 { return b.add(Entry{Tag: TagUtf8, Text: s}) }
func (b *Builder) Int(v int32) uint16 { return b.add(Entry{Tag: TagInteger, Int: v}) }
func (b *Builder) Float(v float32) uint16 { return b.add(Entry{Tag: TagFloat, Float: v}) }
func (b *Builder) Long(v int64) uint16 { return b.add(Entry{Tag: TagLong, Long: v}) }
func (b *Builder) Double(v float64) uint16 { return b.add(Entry{Tag: TagDouble, Double: v}) }
func (b *Builder) Class(name string) uint16 { return b.add(Entry{Tag: TagClass, A: b.Utf8(name)}) }
func (b *Builder) String(s string) uint16 { return b.add(Entry{Tag: TagString, A: b.Utf8(s)}) }

func (b *Builder) NameAndType(name, desc string) uint16 {
	return b.add(Entry{Tag: TagNameAndType, A: b.Utf8(name), B: b.Utf8(desc)})
}

func (b *Builder) ref(tag Tag, class, name, desc string) uint16 {
	return b.add(Entry{Tag: tag, A: b.Class(class), B: b.NameAndType(name, desc)})
}

func (b *Builder) Methodref(class, name, desc string) uint16 {
	return b.ref(TagMethodref, class, name, desc)
}

func (b *Builder) InterfaceMethodref(class, name, desc string) uint16 {
	return b.ref(TagInterfaceMethodref, class, name, desc)
}

func (b *Builder) Fieldref(class, name, desc string) uint16 {
	return b.ref(TagFieldref, class, name, desc)
}

// SetAccess replaces the class access flags.
func (b *Builder) SetAccess(f AccessFlags) { b.access = f }

// AddInterface declares an implemented interface.
func (b *Builder) AddInterface(name string) { b.ifaces = append(b.ifaces, b.Class(name)) }

// SetSourceFile records a SourceFile attribute.
func (b *Builder) SetSourceFile(name string) {
	b.source = b.Utf8(name)
	b.srcAttr = b.Utf8("SourceFile")
}

// AddField declares a field; a non-zero constant adds ConstantValue.
func (b *Builder) AddField(access AccessFlags, name, desc string, constant uint16) {
	m := builtMember{access: access, name: b.Utf8(name), desc: b.Utf8(desc)}
	if constant != 0 {
		m.attrs = append(m.attrs, builtAttr{name: b.Utf8("ConstantValue"), data: []byte{byte(constant >> 8), byte(constant)}})
	}
	b.fields = append(b.fields, m)
}

// AddMethod declares a method with a Code attribute. A nil code declares an
// abstract or native method without one.
func (b *Builder) AddMethod(access AccessFlags, name, desc string, maxStack, maxLocals uint16, code []byte, handlers ...BuilderHandler) {
	m := builtMember{access: access, name: b.Utf8(name), desc: b.Utf8(desc)}
	if code != nil {
		w := bitio.NewWriter(bitio.BigEndian)
		w.U16(maxStack)
		w.U16(maxLocals)
		w.U32(uint32(len(code)))
		w.Raw(code)
		w.U16(uint16(len(handlers)))
		for _, h := range handlers {
			w.U16(h.StartPC)
			w.U16(h.EndPC)
			w.U16(h.HandlerPC)
			if h.CatchName == "" {
				w.U16(0)
			} else {
				w.U16(b.Class(h.CatchName))
			}
		}
		w.U16(0)
		m.attrs = append(m.attrs, builtAttr{name: b.Utf8("Code"), data: w.Bytes()})
	}
	b.methods = append(b.methods, m)
}

// Bytes encodes the container.
func (b *Builder) Bytes() []byte {
	w := bitio.NewWriter(bitio.BigEndian)
	w.U32(Magic)
	w.U16(b.Minor)
	w.U16(b.Major)
	w.U16(uint16(len(b.pool)))
	for i := 1; i < len(b.pool); i++ {
		e := b.pool[i]
		w.U8(uint8(e.Tag))
		switch e.Tag {
		case TagUtf8:
			w.U16(uint16(len(e.Text)))
			w.Raw([]byte(e.Text))
		case TagInteger:
			w.U32(uint32(e.Int))
		case TagFloat:
			w.F32(e.Float)
		case TagLong:
			w.U64(uint64(e.Long))
			i++
		case TagDouble:
			w.U64(math.Float64bits(e.Double))
			i++
		case TagMethodHandle:
			w.U8(uint8(e.A))
			w.U16(e.B)
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			w.U16(e.A)
		default:
			w.U16(e.A)
			w.U16(e.B)
		}
	}
	w.U16(uint16(b.access))
	w.U16(b.this)
	w.U16(b.super)
	w.U16(uint16(len(b.ifaces)))
	for _, i := range b.ifaces {
		w.U16(i)
	}
	for _, list := range [][]builtMember{b.fields, b.methods} {
		w.U16(uint16(len(list)))
		for _, m := range list {
			w.U16(uint16(m.access))
			w.U16(m.name)
			w.U16(m.desc)
			w.U16(uint16(len(m.attrs)))
			for _, a := range m.attrs {
				w.U16(a.name)
				w.U32(uint32(len(a.data)))
				w.Raw(a.data)
			}
		}
	}
	if b.source != 0 {
		w.U16(1)
		w.U16(b.srcAttr)
		w.U32(2)
		w.U16(b.source)
	} else {
		w.U16(0)
	}
	return w.Bytes()
}
