package avm1

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"necroverse/internal/heap"
)

// protoKey links an object to its prototype.
const protoKey = "__proto__"

// maxProtoChain bounds prototype walks over cyclic chains.
const maxProtoChain = 64

// Param is a declared function parameter. Register is non-zero when a
// DefineFunction2 parameter lives in a register instead of a variable.
type Param struct {
	Name     string
	Register uint8
}

// Function is the host state of a function object: either bytecode with
// its captured scope or a native.
type Function struct {
	Name      string
	Params    []Param
	Body      []byte
	Offset    int // of Body within the defining unit
	Unit      string
	Scope     []heap.ID // captured scope chain, outermost first
	Pool      []string
	Registers int // DefineFunction2 register count
	Flags     uint16
	V2        bool
	Native    NativeFunc
}

// DefineFunction2 preload and suppress flags.
const (
	FlagPreloadThis       = 0x0001
	FlagSuppressThis      = 0x0002
	FlagPreloadArguments  = 0x0004
	FlagSuppressArguments = 0x0008
	FlagPreloadSuper      = 0x0010
	FlagSuppressSuper     = 0x0020
	FlagPreloadRoot       = 0x0040
	FlagPreloadParent     = 0x0080
	FlagPreloadGlobal     = 0x0100
)

// NewObject allocates an empty object inheriting from Object.prototype.
func (m *Machine) NewObject() heap.ID {
	return m.newObjectWith("Object", m.objectProto)
}

func (m *Machine) newObjectWith(typeName string, proto heap.ID) heap.ID {
	id := m.heap.Allocate(typeName)
	if proto != 0 {
		m.heap.SetField(id, protoKey, Object(proto))
	}
	return id
}

// NewArray allocates an array holding vals.
func (m *Machine) NewArray(vals []Value) heap.ID {
	id := m.heap.AllocateArray("Array", len(vals), Undefined)
	rec, _ := m.heap.Get(id)
	copy(rec.Elems, vals)
	rec.Fields = map[string]Value{protoKey: Object(m.arrayProto)}
	return id
}

// newFunction wraps fn in a function object with a fresh prototype.
func (m *Machine) newFunction(fn *Function) heap.ID {
	id := m.heap.AllocateHost("Function", fn)
	if m.functionProto != 0 {
		m.heap.SetField(id, protoKey, Object(m.functionProto))
	}
	proto := m.NewObject()
	m.heap.SetField(proto, "constructor", Object(id))
	m.heap.SetField(id, "prototype", Object(proto))
	return id
}

// function returns the host function behind v, if v is callable.
func (m *Machine) function(v Value) (*Function, bool) {
	if v.K != KObject {
		return nil, false
	}
	rec, ok := m.heap.Get(v.Ref)
	if !ok {
		return nil, false
	}
	fn, ok := rec.Host.(*Function)
	return fn, ok
}

func arrayIndex(name string) (int, bool) {
	if name == "" || (len(name) > 1 && name[0] == '0') {
		return 0, false
	}
	n, err := strconv.Atoi(name)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// GetMember reads a property along the prototype chain. Strings expose
// length and String.prototype; missing properties are undefined.
func (m *Machine) GetMember(obj Value, name string) Value {
	switch obj.K {
	case KString:
		if name == "length" {
			return Number(float64(utf8.RuneCountInString(obj.S)))
		}
		return m.lookup(m.stringProto, name)
	case KNumber:
		return m.lookup(m.numberProto, name)
	case KBool:
		return m.lookup(m.booleanProto, name)
	case KObject:
		if rec, ok := m.heap.Get(obj.Ref); ok && rec.Type == clipType {
			if v, ok := m.clipProperty(name); ok {
				return v
			}
		}
		if rec, ok := m.heap.Get(obj.Ref); ok && rec.IsArray {
			if name == "length" {
				return Number(float64(len(rec.Elems)))
			}
			if i, ok := arrayIndex(name); ok {
				if i < len(rec.Elems) {
					return rec.Elems[i]
				}
				return Undefined
			}
		}
		return m.lookup(obj.Ref, name)
	}
	return Undefined
}

func (m *Machine) lookup(id heap.ID, name string) Value {
	for i := 0; id != 0 && i < maxProtoChain; i++ {
		if v, ok := m.heap.GetField(id, name); ok {
			return v
		}
		p, _ := m.heap.GetField(id, protoKey)
		if p.K != KObject {
			break
		}
		id = p.Ref
	}
	return Undefined
}

// hasProperty reports whether name resolves on id or its prototypes.
func (m *Machine) hasProperty(id heap.ID, name string) bool {
	for i := 0; id != 0 && i < maxProtoChain; i++ {
		if _, ok := m.heap.GetField(id, name); ok {
			return true
		}
		p, _ := m.heap.GetField(id, protoKey)
		if p.K != KObject {
			break
		}
		id = p.Ref
	}
	return false
}

// SetMember writes an own property. Writes to primitives are dropped.
func (m *Machine) SetMember(obj Value, name string, v Value) {
	if obj.K != KObject {
		return
	}
	rec, ok := m.heap.Get(obj.Ref)
	if !ok {
		return
	}
	if rec.IsArray {
		if name == "length" {
			n := int(ToInt32(v.ToNumber(m.version)))
			if n < 0 {
				n = 0
			}
			rec.Elems = resize(rec.Elems, n)
			return
		}
		if i, ok := arrayIndex(name); ok {
			if i >= len(rec.Elems) {
				rec.Elems = resize(rec.Elems, i+1)
			}
			rec.Elems[i] = v
			return
		}
	}
	m.heap.SetField(obj.Ref, name, v)
}

func resize(elems []Value, n int) []Value {
	for len(elems) < n {
		elems = append(elems, Undefined)
	}
	return elems[:n]
}

// DeleteMember removes an own property.
func (m *Machine) DeleteMember(obj Value, name string) bool {
	if obj.K != KObject {
		return false
	}
	return m.heap.DeleteField(obj.Ref, name)
}

// enumerable lists property names for Enumerate, skipping internal links.
func (m *Machine) enumerable(id heap.ID) []string {
	var names []string
	if rec, ok := m.heap.Get(id); ok && rec.IsArray {
		for i := range rec.Elems {
			names = append(names, strconv.Itoa(i))
		}
	}
	for _, n := range m.heap.FieldNames(id) {
		switch n {
		case protoKey, "prototype", "constructor", "__constructor__", interfacesKey:
			continue
		}
		names = append(names, n)
	}
	return names
}

// instanceOf walks obj's prototype chain looking for ctor.prototype.
func (m *Machine) instanceOf(obj, ctor Value) bool {
	if obj.K != KObject || ctor.K != KObject {
		return false
	}
	target := m.GetMember(ctor, "prototype")
	if target.K != KObject {
		return false
	}
	id := obj.Ref
	for i := 0; i < maxProtoChain; i++ {
		p, _ := m.heap.GetField(id, protoKey)
		if p.K != KObject {
			return false
		}
		if p.Ref == target.Ref {
			return true
		}
		id = p.Ref
	}
	return false
}

// ToString converts v, calling into objects only for the built-in
// renderings: arrays join with commas, functions print their type.
func (m *Machine) ToString(v Value) string {
	if v.K != KObject {
		return v.primitiveString(m.version)
	}
	rec, ok := m.heap.Get(v.Ref)
	if !ok {
		return "undefined"
	}
	switch h := rec.Host.(type) {
	case *Function:
		return "[type Function]"
	case *boxed:
		return m.ToString(h.v)
	}
	if rec.IsArray {
		return m.join(rec.Elems, ",", 0)
	}
	if s, ok := m.heap.GetField(v.Ref, "_target"); ok && s.K == KString {
		return s.S
	}
	return "[object Object]"
}

func (m *Machine) join(elems []Value, sep string, depth int) string {
	parts := make([]string, len(elems))
	for i, e := range elems {
		if e.K == KObject && depth < 8 {
			if rec, ok := m.heap.Get(e.Ref); ok && rec.IsArray {
				parts[i] = m.join(rec.Elems, ",", depth+1)
				continue
			}
		}
		if e.IsUndefined() {
			parts[i] = "undefined"
			continue
		}
		parts[i] = m.ToString(e)
	}
	return strings.Join(parts, sep)
}

// boxed is the host state of new String(x), new Number(x) and new
// Boolean(x).
type boxed struct{ v Value }

// TypeOf returns the TypeOf action result for v.
func (m *Machine) TypeOf(v Value) string {
	switch v.K {
	case KObject:
		rec, ok := m.heap.Get(v.Ref)
		if !ok {
			return "object"
		}
		if _, isFn := rec.Host.(*Function); isFn {
			return "function"
		}
		if rec.Type == clipType {
			return "movieclip"
		}
		return "object"
	default:
		return v.K.String()
	}
}
