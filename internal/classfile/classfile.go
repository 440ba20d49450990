// Package classfile decodes the header/table class container: magic,
// versions, constant pool, members and their attributes.
package classfile

import (
	"errors"
	"strings"
)

// Magic is the four-byte signature of every class container.
const Magic uint32 = 0xCAFEBABE

var (
	// ErrBadMagic is returned when the first four bytes are not Magic.
	ErrBadMagic = errors.New("classfile: bad magic")
	// ErrStructure is returned for header or pool inconsistencies that make
	// the rest of the container unreadable.
	ErrStructure = errors.New("classfile: structural error")
	// ErrBadPoolTag is returned for an unknown constant pool tag.
	ErrBadPoolTag = errors.New("classfile: unknown constant pool tag")
)

// Attribute is one named attribute as stored in the container.
type Attribute struct {
	NameIndex uint16
	Name      string
	Offset    int // file offset of the attribute payload
	Data      []byte
}

// Handler is one exception-table row. CatchType 0 catches everything.
type Handler struct {
	StartPC   uint16
	EndPC     uint16
	HandlerPC uint16
	CatchType uint16
	CatchName string
}

// Covers reports whether pc lies in the protected range.
func (h Handler) Covers(pc int) bool {
	return pc >= int(h.StartPC) && pc < int(h.EndPC)
}

// Code is the decoded Code attribute of a method.
type Code struct {
	MaxStack    uint16
	MaxLocals   uint16
	Bytecode    []byte
	Offset      int // file offset of Bytecode[0]
	Handlers    []Handler
	Attributes  []Attribute
	LineNumbers []LineNumber
}

// LineNumber maps a bytecode offset to a source line.
type LineNumber struct {
	StartPC uint16
	Line    uint16
}

// LineAt returns the source line covering pc, or 0.
func (c *Code) LineAt(pc int) int {
	line := 0
	best := -1
	for _, ln := range c.LineNumbers {
		if int(ln.StartPC) <= pc && int(ln.StartPC) > best {
			best = int(ln.StartPC)
			line = int(ln.Line)
		}
	}
	return line
}

// Member is a field or method.
type Member struct {
	Access     AccessFlags
	NameIndex  uint16
	DescIndex  uint16
	Name       string
	Descriptor string
	Offset     int
	Attributes []Attribute

	// Methods only.
	Code       *Code
	Exceptions []string

	// Fields only; zero when absent.
	ConstantValue uint16
}

// IsStatic reports whether the member carries ACC_STATIC.
func (m *Member) IsStatic() bool { return m.Access&AccStatic != 0 }

// Class is a decoded class container. It is immutable after Decode.
type Class struct {
	Minor, Major uint16
	Pool         *Pool
	Access       AccessFlags
	ThisIndex    uint16
	SuperIndex   uint16
	Name         string
	SuperName    string // empty for the root class
	Interfaces   []string
	Fields       []Member
	Methods      []Member
	Attributes   []Attribute
	SourceFile   string
	Bootstraps   []Bootstrap
	Size         int
}

// Bootstrap is one BootstrapMethods row: a MethodHandle index plus the
// static argument indices.
type Bootstrap struct {
	Method uint16
	Args   []uint16
}

// Method returns the first method matching name and, when desc is not
// empty, descriptor.
func (c *Class) Method(name, desc string) *Member {
	for i := range c.Methods {
		m := &c.Methods[i]
		if m.Name == name && (desc == "" || m.Descriptor == desc) {
			return m
		}
	}
	return nil
}

// Field returns the field named name.
func (c *Class) Field(name string) *Member {
	for i := range c.Fields {
		if c.Fields[i].Name == name {
			return &c.Fields[i]
		}
	}
	return nil
}

// SourceName is Name with '/' replaced by '.'.
func (c *Class) SourceName() string { return strings.ReplaceAll(c.Name, "/", ".") }
