package avm1

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// NativeFunc is a host implementation of a function. Returning a *Thrown
// raises a guest exception.
type NativeFunc func(m *Machine, this Value, args []Value) (Value, error)

type nativeEntry struct {
	owner string
	name  string
	fn    NativeFunc
}

// Natives maps (owner, member) to host implementations. Owners are
// "_global" or a dotted path below it such as "Math" or
// "String.prototype". Each Machine installs its own copy.
type Natives struct {
	entries []nativeEntry
	index   map[string]int
}

// NewNatives returns an empty registry.
func NewNatives() *Natives {
	return &Natives{index: make(map[string]int)}
}

// Register binds owner.name. Registering a pair twice replaces the
// implementation but keeps the original install order.
func (n *Natives) Register(owner, name string, fn NativeFunc) {
	key := owner + "." + name
	if i, ok := n.index[key]; ok {
		n.entries[i].fn = fn
		return
	}
	n.index[key] = len(n.entries)
	n.entries = append(n.entries, nativeEntry{owner: owner, name: name, fn: fn})
}

// Lookup finds owner.name.
func (n *Natives) Lookup(owner, name string) (NativeFunc, bool) {
	i, ok := n.index[owner+"."+name]
	if !ok {
		return nil, false
	}
	return n.entries[i].fn, true
}

// Len returns the number of registered functions.
func (n *Natives) Len() int { return len(n.entries) }

// Names lists every owner.name pair in sorted order.
func (n *Natives) Names() []string {
	out := make([]string, 0, len(n.entries))
	for k := range n.index {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func arg(args []Value, i int) Value {
	if i < len(args) {
		return args[i]
	}
	return Undefined
}

// DefaultNatives returns the host library: global functions, the
// Object, Array, String, Number and Boolean constructors with their
// prototypes, Math, Function.call/apply and MovieClip timeline methods.
func DefaultNatives() *Natives {
	n := NewNatives()
	registerGlobals(n)
	registerMath(n)
	registerObjectProto(n)
	registerArrayProto(n)
	registerStringProto(n)
	registerClipProto(n)
	return n
}

func registerGlobals(n *Natives) {
	n.Register("_global", "Object", func(m *Machine, this Value, a []Value) (Value, error) {
		if v := arg(a, 0); v.K == KObject {
			return v, nil
		}
		if m.constructing(this) {
			return this, nil
		}
		return Object(m.NewObject()), nil
	})
	n.Register("_global", "Function", func(*Machine, Value, []Value) (Value, error) {
		return Undefined, nil
	})
	n.Register("_global", "Array", func(m *Machine, _ Value, a []Value) (Value, error) {
		if len(a) == 1 && a[0].K == KNumber {
			size := int(ToInt32(a[0].N))
			if size < 0 {
				size = 0
			}
			return Object(m.NewArray(make([]Value, size))), nil
		}
		return Object(m.NewArray(a)), nil
	})
	box := func(conv func(m *Machine, v Value) Value) NativeFunc {
		return func(m *Machine, this Value, a []Value) (Value, error) {
			v := conv(m, arg(a, 0))
			if m.constructing(this) {
				if rec, ok := m.heap.Get(this.Ref); ok {
					rec.Host = &boxed{v: v}
				}
				return this, nil
			}
			return v, nil
		}
	}
	n.Register("_global", "String", box(func(m *Machine, v Value) Value {
		if v.IsUndefined() {
			return String("undefined")
		}
		return String(m.ToString(v))
	}))
	n.Register("_global", "Number", box(func(m *Machine, v Value) Value {
		return Number(m.ToNumber(v))
	}))
	n.Register("_global", "Boolean", box(func(m *Machine, v Value) Value {
		return Bool(v.ToBool(m.version))
	}))
	n.Register("_global", "MovieClip", func(*Machine, Value, []Value) (Value, error) {
		return Undefined, nil
	})
	n.Register("_global", "trace", func(m *Machine, _ Value, a []Value) (Value, error) {
		m.trace(arg(a, 0))
		return Undefined, nil
	})
	n.Register("_global", "parseInt", func(m *Machine, _ Value, a []Value) (Value, error) {
		radix := 0
		if r := arg(a, 1); !r.IsUndefined() {
			radix = int(ToInt32(m.ToNumber(r)))
		}
		return Number(parseIntPrefix(m.ToString(arg(a, 0)), radix)), nil
	})
	n.Register("_global", "parseFloat", func(m *Machine, _ Value, a []Value) (Value, error) {
		return Number(parseFloatPrefix(m.ToString(arg(a, 0)))), nil
	})
	n.Register("_global", "isNaN", func(m *Machine, _ Value, a []Value) (Value, error) {
		return Bool(math.IsNaN(m.ToNumber(arg(a, 0)))), nil
	})
	n.Register("_global", "isFinite", func(m *Machine, _ Value, a []Value) (Value, error) {
		f := m.ToNumber(arg(a, 0))
		return Bool(!math.IsNaN(f) && !math.IsInf(f, 0)), nil
	})
	n.Register("String", "fromCharCode", func(m *Machine, _ Value, a []Value) (Value, error) {
		units := make([]uint16, len(a))
		for i, v := range a {
			units[i] = uint16(ToInt32(m.ToNumber(v)))
		}
		return String(string(utf16.Decode(units))), nil
	})
	n.Register("Function.prototype", "call", func(m *Machine, this Value, a []Value) (Value, error) {
		var rest []Value
		if len(a) > 1 {
			rest = a[1:]
		}
		return m.callValue(this, arg(a, 0), rest)
	})
	n.Register("Function.prototype", "apply", func(m *Machine, this Value, a []Value) (Value, error) {
		var rest []Value
		if list := arg(a, 1); list.K == KObject {
			if rec, ok := m.heap.Get(list.Ref); ok && rec.IsArray {
				rest = append(rest, rec.Elems...)
			}
		}
		return m.callValue(this, arg(a, 0), rest)
	})
}

func parseIntPrefix(s string, radix int) float64 {
	s = strings.TrimSpace(s)
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	if (radix == 0 || radix == 16) && len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s, radix = s[2:], 16
	}
	if radix == 0 {
		radix = 10
	}
	if radix < 2 || radix > 36 {
		return math.NaN()
	}
	end := 0
	for end < len(s) {
		d, err := strconv.ParseInt(s[end:end+1], radix, 64)
		if err != nil || int(d) >= radix {
			break
		}
		end++
	}
	if end == 0 {
		return math.NaN()
	}
	v, err := strconv.ParseInt(s[:end], radix, 64)
	if err != nil {
		f, _ := strconv.ParseFloat(s[:end], 64)
		v = int64(f)
	}
	if neg {
		v = -v
	}
	return float64(v)
}

func parseFloatPrefix(s string) float64 {
	s = strings.TrimSpace(s)
	for end := len(s); end > 0; end-- {
		if f, err := strconv.ParseFloat(s[:end], 64); err == nil {
			return f
		}
	}
	return math.NaN()
}

func registerMath(n *Natives) {
	unary := func(name string, fn func(float64) float64) {
		n.Register("Math", name, func(m *Machine, _ Value, a []Value) (Value, error) {
			return Number(fn(m.ToNumber(arg(a, 0)))), nil
		})
	}
	unary("abs", math.Abs)
	unary("ceil", math.Ceil)
	unary("floor", math.Floor)
	unary("round", func(f float64) float64 { return math.Floor(f + 0.5) })
	unary("sqrt", math.Sqrt)
	unary("sin", math.Sin)
	unary("cos", math.Cos)
	unary("tan", math.Tan)
	unary("asin", math.Asin)
	unary("acos", math.Acos)
	unary("atan", math.Atan)
	unary("exp", math.Exp)
	unary("log", math.Log)
	n.Register("Math", "atan2", func(m *Machine, _ Value, a []Value) (Value, error) {
		return Number(math.Atan2(m.ToNumber(arg(a, 0)), m.ToNumber(arg(a, 1)))), nil
	})
	n.Register("Math", "pow", func(m *Machine, _ Value, a []Value) (Value, error) {
		return Number(math.Pow(m.ToNumber(arg(a, 0)), m.ToNumber(arg(a, 1)))), nil
	})
	n.Register("Math", "min", func(m *Machine, _ Value, a []Value) (Value, error) {
		r := math.Inf(1)
		for _, v := range a {
			r = math.Min(r, m.ToNumber(v))
		}
		return Number(r), nil
	})
	n.Register("Math", "max", func(m *Machine, _ Value, a []Value) (Value, error) {
		r := math.Inf(-1)
		for _, v := range a {
			r = math.Max(r, m.ToNumber(v))
		}
		return Number(r), nil
	})
	n.Register("Math", "random", func(m *Machine, _ Value, _ []Value) (Value, error) {
		return Number(m.rng.Float64()), nil
	})
}

// mathConstants are installed as plain values on the Math object.
var mathConstants = map[string]float64{
	"PI":      math.Pi,
	"E":       math.E,
	"LN2":     math.Ln2,
	"LN10":    math.Ln10,
	"LOG2E":   math.Log2E,
	"LOG10E":  math.Log10E,
	"SQRT2":   math.Sqrt2,
	"SQRT1_2": math.Sqrt2 / 2,
}

func registerObjectProto(n *Natives) {
	n.Register("Object.prototype", "toString", func(m *Machine, this Value, _ []Value) (Value, error) {
		return String(m.ToString(this)), nil
	})
	n.Register("Object.prototype", "valueOf", func(m *Machine, this Value, _ []Value) (Value, error) {
		if this.K == KObject {
			if rec, ok := m.heap.Get(this.Ref); ok {
				if b, ok := rec.Host.(*boxed); ok {
					return b.v, nil
				}
			}
		}
		return this, nil
	})
	n.Register("Object.prototype", "hasOwnProperty", func(m *Machine, this Value, a []Value) (Value, error) {
		if this.K != KObject {
			return Bool(false), nil
		}
		_, ok := m.heap.GetField(this.Ref, m.ToString(arg(a, 0)))
		return Bool(ok), nil
	})
	for _, owner := range []string{"Number.prototype", "Boolean.prototype"} {
		n.Register(owner, "valueOf", func(m *Machine, this Value, _ []Value) (Value, error) {
			return m.unbox(this), nil
		})
	}
	n.Register("Number.prototype", "toString", func(m *Machine, this Value, a []Value) (Value, error) {
		f := m.ToNumber(m.unbox(this))
		radix := 10
		if r := arg(a, 0); !r.IsUndefined() {
			radix = int(ToInt32(m.ToNumber(r)))
		}
		if radix != 10 && radix >= 2 && radix <= 36 && f == math.Trunc(f) && !math.IsInf(f, 0) {
			return String(strconv.FormatInt(int64(f), radix)), nil
		}
		return String(FormatNumber(f)), nil
	})
	n.Register("Boolean.prototype", "toString", func(m *Machine, this Value, _ []Value) (Value, error) {
		return String(m.ToString(m.unbox(this))), nil
	})
}

func (m *Machine) arrayOf(this Value) ([]Value, bool) {
	if this.K != KObject {
		return nil, false
	}
	rec, ok := m.heap.Get(this.Ref)
	if !ok || !rec.IsArray {
		return nil, false
	}
	return rec.Elems, true
}

func (m *Machine) setElems(this Value, elems []Value) {
	if rec, ok := m.heap.Get(this.Ref); ok {
		rec.Elems = elems
	}
}

// relIndex resolves a possibly negative index against length n.
func relIndex(m *Machine, v Value, n, def int) int {
	if v.IsUndefined() {
		return def
	}
	i := int(ToInt32(m.ToNumber(v)))
	if i < 0 {
		i += n
	}
	return max(0, min(i, n))
}

func registerArrayProto(n *Natives) {
	n.Register("Array.prototype", "push", func(m *Machine, this Value, a []Value) (Value, error) {
		elems, ok := m.arrayOf(this)
		if !ok {
			return Undefined, nil
		}
		elems = append(elems, a...)
		m.setElems(this, elems)
		return Number(float64(len(elems))), nil
	})
	n.Register("Array.prototype", "pop", func(m *Machine, this Value, _ []Value) (Value, error) {
		elems, ok := m.arrayOf(this)
		if !ok || len(elems) == 0 {
			return Undefined, nil
		}
		v := elems[len(elems)-1]
		m.setElems(this, elems[:len(elems)-1])
		return v, nil
	})
	n.Register("Array.prototype", "shift", func(m *Machine, this Value, _ []Value) (Value, error) {
		elems, ok := m.arrayOf(this)
		if !ok || len(elems) == 0 {
			return Undefined, nil
		}
		v := elems[0]
		m.setElems(this, append([]Value(nil), elems[1:]...))
		return v, nil
	})
	n.Register("Array.prototype", "unshift", func(m *Machine, this Value, a []Value) (Value, error) {
		elems, ok := m.arrayOf(this)
		if !ok {
			return Undefined, nil
		}
		elems = append(append([]Value(nil), a...), elems...)
		m.setElems(this, elems)
		return Number(float64(len(elems))), nil
	})
	n.Register("Array.prototype", "join", func(m *Machine, this Value, a []Value) (Value, error) {
		elems, ok := m.arrayOf(this)
		if !ok {
			return Undefined, nil
		}
		sep := ","
		if s := arg(a, 0); !s.IsUndefined() {
			sep = m.ToString(s)
		}
		return String(m.join(elems, sep, 0)), nil
	})
	n.Register("Array.prototype", "toString", func(m *Machine, this Value, _ []Value) (Value, error) {
		return String(m.ToString(this)), nil
	})
	n.Register("Array.prototype", "reverse", func(m *Machine, this Value, _ []Value) (Value, error) {
		elems, ok := m.arrayOf(this)
		if !ok {
			return Undefined, nil
		}
		for i, j := 0, len(elems)-1; i < j; i, j = i+1, j-1 {
			elems[i], elems[j] = elems[j], elems[i]
		}
		return this, nil
	})
	n.Register("Array.prototype", "slice", func(m *Machine, this Value, a []Value) (Value, error) {
		elems, ok := m.arrayOf(this)
		if !ok {
			return Undefined, nil
		}
		lo := relIndex(m, arg(a, 0), len(elems), 0)
		hi := relIndex(m, arg(a, 1), len(elems), len(elems))
		if hi < lo {
			hi = lo
		}
		return Object(m.NewArray(append([]Value(nil), elems[lo:hi]...))), nil
	})
	n.Register("Array.prototype", "concat", func(m *Machine, this Value, a []Value) (Value, error) {
		elems, _ := m.arrayOf(this)
		out := append([]Value(nil), elems...)
		for _, v := range a {
			if more, ok := m.arrayOf(v); ok {
				out = append(out, more...)
				continue
			}
			out = append(out, v)
		}
		return Object(m.NewArray(out)), nil
	})
	n.Register("Array.prototype", "splice", func(m *Machine, this Value, a []Value) (Value, error) {
		elems, ok := m.arrayOf(this)
		if !ok {
			return Undefined, nil
		}
		start := relIndex(m, arg(a, 0), len(elems), 0)
		count := len(elems) - start
		if c := arg(a, 1); !c.IsUndefined() {
			count = max(0, min(int(ToInt32(m.ToNumber(c))), count))
		}
		removed := append([]Value(nil), elems[start:start+count]...)
		var insert []Value
		if len(a) > 2 {
			insert = a[2:]
		}
		out := append(append(append([]Value(nil), elems[:start]...), insert...), elems[start+count:]...)
		m.setElems(this, out)
		return Object(m.NewArray(removed)), nil
	})
}

// thisString converts a String.prototype receiver.
func (m *Machine) thisString(this Value) string {
	return m.ToString(m.unbox(this))
}

// String members index UTF-16 code units like the player.
func utf16Of(s string) []uint16 { return utf16.Encode([]rune(s)) }

func fromUTF16(u []uint16) string { return string(utf16.Decode(u)) }

func registerStringProto(n *Natives) {
	n.Register("String.prototype", "toString", func(m *Machine, this Value, _ []Value) (Value, error) {
		return String(m.thisString(this)), nil
	})
	n.Register("String.prototype", "valueOf", func(m *Machine, this Value, _ []Value) (Value, error) {
		return String(m.thisString(this)), nil
	})
	n.Register("String.prototype", "charAt", func(m *Machine, this Value, a []Value) (Value, error) {
		u := utf16Of(m.thisString(this))
		i := int(ToInt32(m.ToNumber(arg(a, 0))))
		if i < 0 || i >= len(u) {
			return String(""), nil
		}
		return String(fromUTF16(u[i : i+1])), nil
	})
	n.Register("String.prototype", "charCodeAt", func(m *Machine, this Value, a []Value) (Value, error) {
		u := utf16Of(m.thisString(this))
		i := int(ToInt32(m.ToNumber(arg(a, 0))))
		if i < 0 || i >= len(u) {
			return Number(math.NaN()), nil
		}
		return Number(float64(u[i])), nil
	})
	n.Register("String.prototype", "indexOf", func(m *Machine, this Value, a []Value) (Value, error) {
		u := utf16Of(m.thisString(this))
		needle := utf16Of(m.ToString(arg(a, 0)))
		from := relIndex(m, arg(a, 1), len(u), 0)
		return Number(float64(indexUnits(u, needle, from))), nil
	})
	n.Register("String.prototype", "lastIndexOf", func(m *Machine, this Value, a []Value) (Value, error) {
		u := utf16Of(m.thisString(this))
		needle := utf16Of(m.ToString(arg(a, 0)))
		for i := len(u) - len(needle); i >= 0; i-- {
			if equalUnits(u[i:i+len(needle)], needle) {
				return Number(float64(i)), nil
			}
		}
		return Number(-1), nil
	})
	n.Register("String.prototype", "substr", func(m *Machine, this Value, a []Value) (Value, error) {
		u := utf16Of(m.thisString(this))
		start := relIndex(m, arg(a, 0), len(u), 0)
		count := len(u) - start
		if c := arg(a, 1); !c.IsUndefined() {
			count = max(0, min(int(ToInt32(m.ToNumber(c))), count))
		}
		return String(fromUTF16(u[start : start+count])), nil
	})
	n.Register("String.prototype", "substring", func(m *Machine, this Value, a []Value) (Value, error) {
		u := utf16Of(m.thisString(this))
		clamp := func(v Value, def int) int {
			if v.IsUndefined() {
				return def
			}
			return max(0, min(int(ToInt32(m.ToNumber(v))), len(u)))
		}
		lo, hi := clamp(arg(a, 0), 0), clamp(arg(a, 1), len(u))
		if lo > hi {
			lo, hi = hi, lo
		}
		return String(fromUTF16(u[lo:hi])), nil
	})
	n.Register("String.prototype", "slice", func(m *Machine, this Value, a []Value) (Value, error) {
		u := utf16Of(m.thisString(this))
		lo := relIndex(m, arg(a, 0), len(u), 0)
		hi := relIndex(m, arg(a, 1), len(u), len(u))
		if hi < lo {
			hi = lo
		}
		return String(fromUTF16(u[lo:hi])), nil
	})
	n.Register("String.prototype", "split", func(m *Machine, this Value, a []Value) (Value, error) {
		s := m.thisString(this)
		sep := arg(a, 0)
		if sep.IsUndefined() {
			return Object(m.NewArray([]Value{String(s)})), nil
		}
		var parts []string
		if d := m.ToString(sep); d == "" {
			for _, r := range s {
				parts = append(parts, string(r))
			}
		} else {
			parts = strings.Split(s, d)
		}
		vals := make([]Value, len(parts))
		for i, p := range parts {
			vals[i] = String(p)
		}
		return Object(m.NewArray(vals)), nil
	})
	n.Register("String.prototype", "toUpperCase", func(m *Machine, this Value, _ []Value) (Value, error) {
		return String(strings.ToUpper(m.thisString(this))), nil
	})
	n.Register("String.prototype", "toLowerCase", func(m *Machine, this Value, _ []Value) (Value, error) {
		return String(strings.ToLower(m.thisString(this))), nil
	})
	n.Register("String.prototype", "concat", func(m *Machine, this Value, a []Value) (Value, error) {
		var sb strings.Builder
		sb.WriteString(m.thisString(this))
		for _, v := range a {
			sb.WriteString(m.ToString(v))
		}
		return String(sb.String()), nil
	})
}

func indexUnits(hay, needle []uint16, from int) int {
	for i := from; i+len(needle) <= len(hay); i++ {
		if equalUnits(hay[i:i+len(needle)], needle) {
			return i
		}
	}
	return -1
}

func equalUnits(a, b []uint16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func registerClipProto(n *Natives) {
	simple := func(name string, fn func(Timeline)) {
		n.Register("MovieClip.prototype", name, func(m *Machine, _ Value, _ []Value) (Value, error) {
			fn(m.tl)
			return Undefined, nil
		})
	}
	simple("play", Timeline.Play)
	simple("stop", Timeline.Stop)
	simple("nextFrame", Timeline.NextFrame)
	simple("prevFrame", Timeline.PrevFrame)
	gotoAnd := func(play bool) NativeFunc {
		return func(m *Machine, _ Value, a []Value) (Value, error) {
			m.gotoFrame(arg(a, 0), 0, play)
			return Undefined, nil
		}
	}
	n.Register("MovieClip.prototype", "gotoAndPlay", gotoAnd(true))
	n.Register("MovieClip.prototype", "gotoAndStop", gotoAnd(false))
	n.Register("MovieClip.prototype", "getURL", func(m *Machine, _ Value, a []Value) (Value, error) {
		m.tl.GetURL(m.ToString(arg(a, 0)), m.ToString(arg(a, 1)), 0)
		return Undefined, nil
	})
}

// gotoFrame moves the timeline to a one-based frame number or a label.
func (m *Machine) gotoFrame(target Value, bias int, play bool) {
	if target.K == KString {
		if n, err := strconv.Atoi(target.S); err == nil {
			target = Number(float64(n))
		} else {
			if !m.tl.GotoLabel(target.S, play) {
				m.warn(fmt.Sprintf("frame label %q not found", target.S))
			}
			return
		}
	}
	n := int(ToInt32(m.ToNumber(target)))
	if n < 1 {
		n = 1
	}
	m.tl.GotoFrame(n-1+bias, play)
}

// unbox returns the primitive held by a String, Number or Boolean
// object, or v itself.
func (m *Machine) unbox(v Value) Value {
	if v.K == KObject {
		if rec, ok := m.heap.Get(v.Ref); ok {
			if b, ok := rec.Host.(*boxed); ok {
				return b.v
			}
		}
	}
	return v
}

// runeLen counts characters for the multibyte string actions.
func runeLen(s string) int { return utf8.RuneCountInString(s) }
