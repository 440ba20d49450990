// Package descriptor parses compact type signatures of the form
// "(" params ")" return, where each type is zero or more '[' markers
// followed by a primitive letter or "L" class-name ";".
package descriptor

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed is wrapped by every *ParseError.
var ErrMalformed = errors.New("malformed descriptor")

// MaxArrayDims is the deepest array nesting accepted.
const MaxArrayDims = 255

// Kind classifies a Type.
type Kind uint8

const (
	Void Kind = iota
	Byte
	Char
	Double
	Float
	Int
	Long
	Short
	Boolean
	Object
	Array
)

var kindLetters = map[byte]Kind{
	'V': Void,
	'B': Byte,
	'C': Char,
	'D': Double,
	'F': Float,
	'I': Int,
	'J': Long,
	'S': Short,
	'Z': Boolean,
}

var kindNames = [...]string{
	Void:    "void",
	Byte:    "byte",
	Char:    "char",
	Double:  "double",
	Float:   "float",
	Int:     "int",
	Long:    "long",
	Short:   "short",
	Boolean: "boolean",
	Object:  "object",
	Array:   "array",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Letter returns the one-byte code of a primitive kind, or 0.
func (k Kind) Letter() byte {
	for l, kk := range kindLetters {
		if kk == k {
			return l
		}
	}
	return 0
}

// Type is one parsed type descriptor.
type Type struct {
	Kind  Kind
	Class string // binary class name for Object, e.g. "java/lang/String"
	Elem  *Type  // component type for Array
}

// Primitive reports whether t is neither a reference nor void.
func (t Type) Primitive() bool { return t.Kind != Void && t.Kind != Object && t.Kind != Array }

// Reference reports whether t is an object or array type.
func (t Type) Reference() bool { return t.Kind == Object || t.Kind == Array }

// Slots returns the number of local-variable or operand slots a value of t
// occupies: 2 for long and double, 0 for void, otherwise 1.
func (t Type) Slots() int {
	switch t.Kind {
	case Void:
		return 0
	case Long, Double:
		return 2
	default:
		return 1
	}
}

// Dims returns the array nesting depth.
func (t Type) Dims() int {
	n := 0
	for cur := &t; cur.Kind == Array && cur.Elem != nil; cur = cur.Elem {
		n++
	}
	return n
}

// String renders t back in descriptor form.
func (t Type) String() string {
	switch t.Kind {
	case Object:
		return "L" + t.Class + ";"
	case Array:
		if t.Elem == nil {
			return "["
		}
		return "[" + t.Elem.String()
	default:
		return string(t.Kind.Letter())
	}
}

// SourceName renders t the way a disassembler shows it, e.g.
// "java.lang.String[]".
func (t Type) SourceName() string {
	switch t.Kind {
	case Object:
		return strings.ReplaceAll(t.Class, "/", ".")
	case Array:
		if t.Elem == nil {
			return "?[]"
		}
		return t.Elem.SourceName() + "[]"
	default:
		return t.Kind.String()
	}
}

// Signature is a parsed method descriptor.
type Signature struct {
	Params []Type
	Return Type
	Raw    string
}

// Default is the conservative fallback for a signature that failed to
// parse: no parameters, void return.
func Default() Signature { return Signature{Return: Type{Kind: Void}} }

// ParamSlots returns the total slot width of the parameters.
func (s Signature) ParamSlots() int {
	n := 0
	for _, p := range s.Params {
		n += p.Slots()
	}
	return n
}

// String renders s in descriptor form.
func (s Signature) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, p := range s.Params {
		sb.WriteString(p.String())
	}
	sb.WriteByte(')')
	sb.WriteString(s.Return.String())
	return sb.String()
}

// ParseError reports where a descriptor stopped making sense.
type ParseError struct {
	Input string
	Pos   int
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("descriptor %q at %d: %s", e.Input, e.Pos, e.Msg)
}

func (e *ParseError) Unwrap() error { return ErrMalformed }

type parser struct {
	in  string
	pos int
}

func (p *parser) fail(msg string, args ...any) error {
	return &ParseError{Input: p.in, Pos: p.pos, Msg: fmt.Sprintf(msg, args...)}
}

func (p *parser) parseType(allowVoid bool) (Type, error) {
	dims := 0
	for p.pos < len(p.in) && p.in[p.pos] == '[' {
		dims++
		p.pos++
	}
	if dims > MaxArrayDims {
		return Type{}, p.fail("array nesting %d exceeds %d", dims, MaxArrayDims)
	}
	if p.pos >= len(p.in) {
		return Type{}, p.fail("unexpected end of descriptor")
	}
	var base Type
	c := p.in[p.pos]
	switch {
	case c == 'L':
		end := strings.IndexByte(p.in[p.pos+1:], ';')
		if end < 0 {
			return Type{}, p.fail("class name is missing ';'")
		}
		name := p.in[p.pos+1 : p.pos+1+end]
		if name == "" {
			return Type{}, p.fail("empty class name")
		}
		if strings.ContainsAny(name, ".[(") {
			return Type{}, p.fail("invalid character in class name %q", name)
		}
		base = Type{Kind: Object, Class: name}
		p.pos += end + 2
	default:
		k, ok := kindLetters[c]
		if !ok {
			return Type{}, p.fail("unknown type code %q", c)
		}
		if k == Void && (!allowVoid || dims > 0) {
			return Type{}, p.fail("void is only valid as a return type")
		}
		base = Type{Kind: k}
		p.pos++
	}
	for i := 0; i < dims; i++ {
		elem := base
		base = Type{Kind: Array, Elem: &elem}
	}
	return base, nil
}

// Parse decodes a method descriptor.
func Parse(s string) (Signature, error) {
	p := &parser{in: s}
	if len(s) == 0 || s[0] != '(' {
		return Signature{}, p.fail("expected '('")
	}
	p.pos++
	sig := Signature{Raw: s}
	for {
		if p.pos >= len(s) {
			return Signature{}, p.fail("unterminated parameter list")
		}
		if s[p.pos] == ')' {
			p.pos++
			break
		}
		t, err := p.parseType(false)
		if err != nil {
			return Signature{}, err
		}
		sig.Params = append(sig.Params, t)
	}
	ret, err := p.parseType(true)
	if err != nil {
		return Signature{}, err
	}
	if p.pos != len(s) {
		return Signature{}, p.fail("trailing characters %q", s[p.pos:])
	}
	sig.Return = ret
	return sig, nil
}

// ParseField decodes a single field type descriptor.
func ParseField(s string) (Type, error) {
	p := &parser{in: s}
	t, err := p.parseType(false)
	if err != nil {
		return Type{}, err
	}
	if p.pos != len(s) {
		return Type{}, p.fail("trailing characters %q", s[p.pos:])
	}
	return t, nil
}
