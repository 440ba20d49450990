package jvm

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"

	"necroverse/internal/descriptor"
)

// Native is a host implementation of a method. For instance methods
// args[0] is the receiver. Returning a *Thrown raises a guest exception.
type Native func(m *Machine, sig descriptor.Signature, args []Value) (Value, error)

// StaticField produces the value of a host-provided static field.
type StaticField func(m *Machine) Value

// Natives maps (type, member) to host implementations. Each Machine owns
// its registry; nothing here is process-wide.
type Natives struct {
	methods map[string]Native
	fields  map[string]StaticField
}

// NewNatives returns an empty registry.
func NewNatives() *Natives {
	return &Natives{
		methods: make(map[string]Native),
		fields:  make(map[string]StaticField),
	}
}

// Register binds class.name with descriptor desc; an empty desc matches
// any descriptor.
func (n *Natives) Register(class, name, desc string, fn Native) {
	n.methods[class+"."+name+desc] = fn
}

// RegisterField binds a static field.
func (n *Natives) RegisterField(class, name string, fn StaticField) {
	n.fields[class+"."+name] = fn
}

// Lookup finds an exact descriptor match before a wildcard one.
func (n *Natives) Lookup(class, name, desc string) (Native, bool) {
	if fn, ok := n.methods[class+"."+name+desc]; ok {
		return fn, true
	}
	fn, ok := n.methods[class+"."+name]
	return fn, ok
}

// Field finds a host static field.
func (n *Natives) Field(class, name string) (StaticField, bool) {
	fn, ok := n.fields[class+"."+name]
	return fn, ok
}

// Len returns the number of registered methods.
func (n *Natives) Len() int { return len(n.methods) }

type printStream struct{ err bool }

// DefaultNatives returns the host library: Object, Throwable, System
// streams, PrintStream, String, StringBuilder, Math and Integer.
func DefaultNatives() *Natives {
	n := NewNatives()
	n.Register("java/lang/Object", "<init>", "()V", func(*Machine, descriptor.Signature, []Value) (Value, error) {
		return Value{}, nil
	})
	n.Register("java/lang/Object", "hashCode", "()I", func(_ *Machine, _ descriptor.Signature, a []Value) (Value, error) {
		return Int(int32(a[0].AsRef())), nil
	})
	n.Register("java/lang/Object", "equals", "(Ljava/lang/Object;)Z", func(_ *Machine, _ descriptor.Signature, a []Value) (Value, error) {
		return Bool(a[0].AsRef() == a[1].AsRef()), nil
	})
	n.Register("java/lang/Object", "toString", "()Ljava/lang/String;", func(m *Machine, _ descriptor.Signature, a []Value) (Value, error) {
		return m.NewString(m.GoString(a[0])), nil
	})

	throwableInit := func(m *Machine, _ descriptor.Signature, a []Value) (Value, error) {
		if len(a) > 1 && a[1].K == KRef {
			m.heap.SetField(a[0].AsRef(), "message", a[1])
		}
		return Value{}, nil
	}
	n.Register("java/lang/Throwable", "<init>", "", throwableInit)
	n.Register("java/lang/Throwable", "getMessage", "()Ljava/lang/String;", func(m *Machine, _ descriptor.Signature, a []Value) (Value, error) {
		v, ok := m.heap.GetField(a[0].AsRef(), "message")
		if !ok {
			return Null, nil
		}
		return v, nil
	})

	n.RegisterField("java/lang/System", "out", func(m *Machine) Value {
		return Ref(m.heap.AllocateHost("java/io/PrintStream", printStream{}))
	})
	n.RegisterField("java/lang/System", "err", func(m *Machine) Value {
		return Ref(m.heap.AllocateHost("java/io/PrintStream", printStream{err: true}))
	})
	printer := func(newline bool) Native {
		return func(m *Machine, sig descriptor.Signature, a []Value) (Value, error) {
			var text string
			if len(a) > 1 && len(sig.Params) > 0 {
				text = m.Stringify(a[1], sig.Params[0])
			}
			if newline {
				text += "\n"
			}
			_, _ = io.WriteString(m.out, text)
			return Value{}, nil
		}
	}
	n.Register("java/io/PrintStream", "println", "", printer(true))
	n.Register("java/io/PrintStream", "print", "", printer(false))

	registerStrings(n)
	registerMath(n)
	registerInteger(n)
	return n
}

func registerStrings(n *Natives) {
	str := func(m *Machine, v Value) string { return m.GoString(v) }

	n.Register("java/lang/String", "length", "()I", func(m *Machine, _ descriptor.Signature, a []Value) (Value, error) {
		return Int(int32(len(utf16.Encode([]rune(str(m, a[0])))))), nil
	})
	n.Register("java/lang/String", "charAt", "(I)C", func(m *Machine, _ descriptor.Signature, a []Value) (Value, error) {
		units := utf16.Encode([]rune(str(m, a[0])))
		i := a[1].AsInt()
		if i < 0 || int(i) >= len(units) {
			return Value{}, m.throw("java/lang/StringIndexOutOfBoundsException", fmt.Sprintf("index %d, length %d", i, len(units)))
		}
		return Int(int32(units[i])), nil
	})
	n.Register("java/lang/String", "isEmpty", "()Z", func(m *Machine, _ descriptor.Signature, a []Value) (Value, error) {
		return Bool(str(m, a[0]) == ""), nil
	})
	n.Register("java/lang/String", "equals", "(Ljava/lang/Object;)Z", func(m *Machine, _ descriptor.Signature, a []Value) (Value, error) {
		if a[1].IsNull() || m.heap.TypeOf(a[1].AsRef()) != stringClass {
			return Bool(false), nil
		}
		return Bool(str(m, a[0]) == str(m, a[1])), nil
	})
	n.Register("java/lang/String", "hashCode", "()I", func(m *Machine, _ descriptor.Signature, a []Value) (Value, error) {
		return Int(javaHash(str(m, a[0]))), nil
	})
	n.Register("java/lang/String", "concat", "(Ljava/lang/String;)Ljava/lang/String;", func(m *Machine, _ descriptor.Signature, a []Value) (Value, error) {
		return m.NewString(str(m, a[0]) + str(m, a[1])), nil
	})
	n.Register("java/lang/String", "toUpperCase", "()Ljava/lang/String;", func(m *Machine, _ descriptor.Signature, a []Value) (Value, error) {
		return m.NewString(strings.ToUpper(str(m, a[0]))), nil
	})
	n.Register("java/lang/String", "toLowerCase", "()Ljava/lang/String;", func(m *Machine, _ descriptor.Signature, a []Value) (Value, error) {
		return m.NewString(strings.ToLower(str(m, a[0]))), nil
	})
	n.Register("java/lang/String", "toString", "()Ljava/lang/String;", func(_ *Machine, _ descriptor.Signature, a []Value) (Value, error) {
		return a[0], nil
	})
	n.Register("java/lang/String", "substring", "", func(m *Machine, sig descriptor.Signature, a []Value) (Value, error) {
		units := utf16.Encode([]rune(str(m, a[0])))
		begin, end := int(a[1].AsInt()), len(units)
		if len(a) > 2 {
			end = int(a[2].AsInt())
		}
		if begin < 0 || end > len(units) || begin > end {
			return Value{}, m.throw("java/lang/StringIndexOutOfBoundsException", fmt.Sprintf("begin %d, end %d, length %d", begin, end, len(units)))
		}
		return m.NewString(string(utf16.Decode(units[begin:end]))), nil
	})
	n.Register("java/lang/String", "valueOf", "", func(m *Machine, sig descriptor.Signature, a []Value) (Value, error) {
		if len(sig.Params) == 0 || len(a) == 0 {
			return m.NewString(""), nil
		}
		return m.NewString(m.Stringify(a[0], sig.Params[0])), nil
	})

	sb := func(m *Machine, v Value) *strings.Builder {
		rec, ok := m.heap.Get(v.AsRef())
		if !ok {
			return &strings.Builder{}
		}
		b, ok := rec.Host.(*strings.Builder)
		if !ok {
			b = &strings.Builder{}
			rec.Host = b
		}
		return b
	}
	n.Register("java/lang/StringBuilder", "<init>", "", func(m *Machine, sig descriptor.Signature, a []Value) (Value, error) {
		b := sb(m, a[0])
		if len(a) > 1 && len(sig.Params) == 1 && sig.Params[0].Kind == descriptor.Object {
			b.WriteString(m.GoString(a[1]))
		}
		return Value{}, nil
	})
	n.Register("java/lang/StringBuilder", "append", "", func(m *Machine, sig descriptor.Signature, a []Value) (Value, error) {
		if len(a) > 1 && len(sig.Params) > 0 {
			sb(m, a[0]).WriteString(m.Stringify(a[1], sig.Params[0]))
		}
		return a[0], nil
	})
	n.Register("java/lang/StringBuilder", "length", "()I", func(m *Machine, _ descriptor.Signature, a []Value) (Value, error) {
		return Int(int32(len(utf16.Encode([]rune(sb(m, a[0]).String()))))), nil
	})
	n.Register("java/lang/StringBuilder", "toString", "()Ljava/lang/String;", func(m *Machine, _ descriptor.Signature, a []Value) (Value, error) {
		return m.NewString(sb(m, a[0]).String()), nil
	})
}

func registerMath(n *Natives) {
	unary := func(name string, fn func(float64) float64) {
		n.Register("java/lang/Math", name, "(D)D", func(_ *Machine, _ descriptor.Signature, a []Value) (Value, error) {
			return Double(fn(a[0].AsDouble())), nil
		})
	}
	unary("sqrt", math.Sqrt)
	unary("floor", math.Floor)
	unary("ceil", math.Ceil)
	unary("sin", math.Sin)
	unary("cos", math.Cos)
	unary("abs", math.Abs)
	n.Register("java/lang/Math", "pow", "(DD)D", func(_ *Machine, _ descriptor.Signature, a []Value) (Value, error) {
		return Double(math.Pow(a[0].AsDouble(), a[1].AsDouble())), nil
	})
	n.Register("java/lang/Math", "abs", "(I)I", func(_ *Machine, _ descriptor.Signature, a []Value) (Value, error) {
		v := a[0].AsInt()
		if v < 0 {
			v = -v
		}
		return Int(v), nil
	})
	n.Register("java/lang/Math", "abs", "(J)J", func(_ *Machine, _ descriptor.Signature, a []Value) (Value, error) {
		v := a[0].AsLong()
		if v < 0 {
			v = -v
		}
		return Long(v), nil
	})
	n.Register("java/lang/Math", "max", "(II)I", func(_ *Machine, _ descriptor.Signature, a []Value) (Value, error) {
		return Int(max(a[0].AsInt(), a[1].AsInt())), nil
	})
	n.Register("java/lang/Math", "min", "(II)I", func(_ *Machine, _ descriptor.Signature, a []Value) (Value, error) {
		return Int(min(a[0].AsInt(), a[1].AsInt())), nil
	})
	n.Register("java/lang/Math", "max", "(JJ)J", func(_ *Machine, _ descriptor.Signature, a []Value) (Value, error) {
		return Long(max(a[0].AsLong(), a[1].AsLong())), nil
	})
	n.Register("java/lang/Math", "min", "(JJ)J", func(_ *Machine, _ descriptor.Signature, a []Value) (Value, error) {
		return Long(min(a[0].AsLong(), a[1].AsLong())), nil
	})
	n.Register("java/lang/Math", "max", "(DD)D", func(_ *Machine, _ descriptor.Signature, a []Value) (Value, error) {
		return Double(math.Max(a[0].AsDouble(), a[1].AsDouble())), nil
	})
	n.Register("java/lang/Math", "min", "(DD)D", func(_ *Machine, _ descriptor.Signature, a []Value) (Value, error) {
		return Double(math.Min(a[0].AsDouble(), a[1].AsDouble())), nil
	})
}

func registerInteger(n *Natives) {
	box := func(m *Machine, v int32) Value {
		id := m.heap.Allocate("java/lang/Integer")
		m.heap.SetField(id, "value", Int(v))
		return Ref(id)
	}
	n.Register("java/lang/Integer", "valueOf", "(I)Ljava/lang/Integer;", func(m *Machine, _ descriptor.Signature, a []Value) (Value, error) {
		return box(m, a[0].AsInt()), nil
	})
	n.Register("java/lang/Integer", "intValue", "()I", func(m *Machine, _ descriptor.Signature, a []Value) (Value, error) {
		v, _ := m.heap.GetField(a[0].AsRef(), "value")
		return Int(v.AsInt()), nil
	})
	n.Register("java/lang/Integer", "parseInt", "(Ljava/lang/String;)I", func(m *Machine, _ descriptor.Signature, a []Value) (Value, error) {
		s := m.GoString(a[0])
		v, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return Value{}, m.throw("java/lang/NumberFormatException", fmt.Sprintf("For input string: %q", s))
		}
		return Int(int32(v)), nil
	})
	n.Register("java/lang/Integer", "toString", "(I)Ljava/lang/String;", func(m *Machine, _ descriptor.Signature, a []Value) (Value, error) {
		return m.NewString(strconv.FormatInt(int64(a[0].AsInt()), 10)), nil
	})
}
