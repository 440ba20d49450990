package jvm

import (
	"fmt"
	"strings"

	"necroverse/internal/classfile"
	"necroverse/internal/descriptor"
	"necroverse/internal/source"
)

// Method is an executable unit: a resolved signature, flags and bytecode.
type Method struct {
	Class  *Class
	Name   string
	Desc   string
	Sig    descriptor.Signature
	Access classfile.AccessFlags
	Code   *classfile.Code
}

// IsStatic reports whether m takes no receiver.
func (m *Method) IsStatic() bool { return m.Access&classfile.AccStatic != 0 }

// QualifiedName is "Class.name".
func (m *Method) QualifiedName() string { return m.Class.Name + "." + m.Name }

func (m *Method) String() string { return m.Class.Name + "." + m.Name + m.Desc }

// Field is a declared field with its parsed type.
type Field struct {
	Name     string
	Type     descriptor.Type
	Static   bool
	Constant uint16
}

type initState uint8

const (
	uninitialized initState = iota
	initializing
	initialized
)

// Class is the registry's descriptor of one type: name, optional
// superclass, method table and field defaults.
type Class struct {
	Name       string
	Super      string
	Interfaces []string
	File       *classfile.Class
	FileID     source.FileID
	Methods    map[string]*Method // keyed by name+descriptor
	Fields     map[string]*Field

	statics map[string]Value
	init    initState
}

// Method finds a method declared by c itself. An empty desc matches the
// first method with that name.
func (c *Class) Method(name, desc string) *Method {
	if desc != "" {
		return c.Methods[name+desc]
	}
	for _, m := range c.orderedMethods() {
		if m.Name == name {
			return m
		}
	}
	return nil
}

func (c *Class) orderedMethods() []*Method {
	if c.File == nil {
		out := make([]*Method, 0, len(c.Methods))
		for _, m := range c.Methods {
			out = append(out, m)
		}
		return out
	}
	out := make([]*Method, 0, len(c.File.Methods))
	for _, fm := range c.File.Methods {
		if m, ok := c.Methods[fm.Name+fm.Descriptor]; ok {
			out = append(out, m)
		}
	}
	return out
}

// Registry holds every loaded class of one session. Hierarchy walks go
// through it, falling back to the built-in library hierarchy for names it
// has not loaded.
type Registry struct {
	classes map[string]*Class
	order   []string
	sigs    descriptor.Cache
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{classes: make(map[string]*Class)}
}

// SignatureError describes a method whose descriptor did not parse; the
// method was registered with the default signature.
type SignatureError struct {
	Method string
	Err    error
}

func (e *SignatureError) Error() string { return fmt.Sprintf("%s: %v", e.Method, e.Err) }
func (e *SignatureError) Unwrap() error { return e.Err }

// Add registers a decoded class. Malformed method descriptors do not stop
// registration; they are returned as *SignatureError values so the caller
// can report them.
func (r *Registry) Add(cf *classfile.Class, file source.FileID) (*Class, []error) {
	c := &Class{
		Name:       cf.Name,
		Super:      cf.SuperName,
		Interfaces: cf.Interfaces,
		File:       cf,
		FileID:     file,
		Methods:    make(map[string]*Method, len(cf.Methods)),
		Fields:     make(map[string]*Field, len(cf.Fields)),
		statics:    make(map[string]Value),
	}
	var errs []error
	for i := range cf.Methods {
		fm := &cf.Methods[i]
		sig, err := r.sigs.Signature(fm.Descriptor)
		if err != nil {
			errs = append(errs, &SignatureError{Method: cf.Name + "." + fm.Name, Err: err})
		}
		c.Methods[fm.Name+fm.Descriptor] = &Method{
			Class:  c,
			Name:   fm.Name,
			Desc:   fm.Descriptor,
			Sig:    sig,
			Access: fm.Access,
			Code:   fm.Code,
		}
	}
	for i := range cf.Fields {
		ff := &cf.Fields[i]
		t, err := r.sigs.Field(ff.Descriptor)
		if err != nil {
			errs = append(errs, &SignatureError{Method: cf.Name + "." + ff.Name, Err: err})
		}
		c.Fields[ff.Name] = &Field{Name: ff.Name, Type: t, Static: ff.IsStatic(), Constant: ff.ConstantValue}
	}
	if _, exists := r.classes[c.Name]; !exists {
		r.order = append(r.order, c.Name)
	}
	r.classes[c.Name] = c
	return c, errs
}

// Lookup returns the class named name.
func (r *Registry) Lookup(name string) (*Class, bool) {
	c, ok := r.classes[name]
	return c, ok
}

// Classes returns the registered classes in registration order.
func (r *Registry) Classes() []*Class {
	out := make([]*Class, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.classes[n])
	}
	return out
}

// Signature parses desc through the registry's cache.
func (r *Registry) Signature(desc string) (descriptor.Signature, error) {
	return r.sigs.Signature(desc)
}

// FieldType parses a field descriptor through the registry's cache.
func (r *Registry) FieldType(desc string) (descriptor.Type, error) {
	return r.sigs.Field(desc)
}

// builtinSupers is the slice of the platform library hierarchy the
// interpreter needs for exception matching and casts.
var builtinSupers = map[string]string{
	"java/lang/Throwable":                       "java/lang/Object",
	"java/lang/Exception":                       "java/lang/Throwable",
	"java/lang/Error":                           "java/lang/Throwable",
	"java/lang/RuntimeException":                "java/lang/Exception",
	"java/lang/ArithmeticException":             "java/lang/RuntimeException",
	"java/lang/NullPointerException":            "java/lang/RuntimeException",
	"java/lang/ClassCastException":              "java/lang/RuntimeException",
	"java/lang/IllegalArgumentException":        "java/lang/RuntimeException",
	"java/lang/IllegalStateException":           "java/lang/RuntimeException",
	"java/lang/IndexOutOfBoundsException":       "java/lang/RuntimeException",
	"java/lang/ArrayIndexOutOfBoundsException":  "java/lang/IndexOutOfBoundsException",
	"java/lang/StringIndexOutOfBoundsException": "java/lang/IndexOutOfBoundsException",
	"java/lang/NegativeArraySizeException":      "java/lang/RuntimeException",
	"java/lang/NumberFormatException":           "java/lang/IllegalArgumentException",
	"java/lang/UnsupportedOperationException":   "java/lang/RuntimeException",
	"java/lang/StackOverflowError":              "java/lang/Error",
	"java/lang/String":                          "java/lang/Object",
	"java/lang/StringBuilder":                   "java/lang/Object",
	"java/lang/Integer":                         "java/lang/Number",
	"java/lang/Number":                          "java/lang/Object",
	"java/io/PrintStream":                       "java/lang/Object",
}

// SuperOf returns the superclass name of name, or "" at the root or for an
// unknown class.
func (r *Registry) SuperOf(name string) string {
	if c, ok := r.classes[name]; ok {
		return c.Super
	}
	if strings.HasPrefix(name, "[") {
		return "java/lang/Object"
	}
	return builtinSupers[name]
}

// IsAssignable reports whether a value of runtime type sub may be stored
// where target is expected: a superclass walk plus declared interfaces.
func (r *Registry) IsAssignable(sub, target string) bool {
	if sub == target || target == "java/lang/Object" {
		return true
	}
	if strings.HasPrefix(target, "[") || strings.HasPrefix(sub, "[") {
		return r.arrayAssignable(sub, target)
	}
	seen := 0
	for cur := sub; cur != "" && seen < 256; cur = r.SuperOf(cur) {
		seen++
		if cur == target {
			return true
		}
		if c, ok := r.classes[cur]; ok {
			for _, iface := range c.Interfaces {
				if iface == target || r.IsAssignable(iface, target) {
					return true
				}
			}
		}
	}
	return false
}

func (r *Registry) arrayAssignable(sub, target string) bool {
	if !strings.HasPrefix(sub, "[") || !strings.HasPrefix(target, "[") {
		return false
	}
	se, te := sub[1:], target[1:]
	if se == te {
		return true
	}
	if strings.HasPrefix(se, "L") && strings.HasPrefix(te, "L") {
		return r.IsAssignable(strings.Trim(se[1:], ";"), strings.Trim(te[1:], ";"))
	}
	if strings.HasPrefix(se, "[") && strings.HasPrefix(te, "[") {
		return r.arrayAssignable(se, te)
	}
	return false
}

// FindMethod walks the superclass chain from class looking for name+desc.
func (r *Registry) FindMethod(class, name, desc string) *Method {
	seen := 0
	for cur := class; cur != "" && seen < 256; cur = r.SuperOf(cur) {
		seen++
		c, ok := r.classes[cur]
		if !ok {
			continue
		}
		if m := c.Method(name, desc); m != nil {
			return m
		}
	}
	return nil
}

// FindField walks the superclass chain for a declared field.
func (r *Registry) FindField(class, name string) (*Class, *Field) {
	seen := 0
	for cur := class; cur != "" && seen < 256; cur = r.SuperOf(cur) {
		seen++
		c, ok := r.classes[cur]
		if !ok {
			continue
		}
		if f, ok := c.Fields[name]; ok {
			return c, f
		}
	}
	return nil, nil
}

// InstanceDefaults collects zero values for every instance field declared
// along the superclass chain.
func (r *Registry) InstanceDefaults(class string) map[string]Value {
	out := make(map[string]Value)
	seen := 0
	for cur := class; cur != "" && seen < 256; cur = r.SuperOf(cur) {
		seen++
		c, ok := r.classes[cur]
		if !ok {
			continue
		}
		for name, f := range c.Fields {
			if f.Static {
				continue
			}
			if _, shadowed := out[name]; !shadowed {
				out[name] = Zero(f.Type)
			}
		}
	}
	return out
}
