package classfile

import "strings"

// AccessFlags is the access_flags bit set of a class or member.
type AccessFlags uint16

const (
	AccPublic       AccessFlags = 0x0001
	AccPrivate      AccessFlags = 0x0002
	AccProtected    AccessFlags = 0x0004
	AccStatic       AccessFlags = 0x0008
	AccFinal        AccessFlags = 0x0010
	AccSynchronized AccessFlags = 0x0020 // methods; ACC_SUPER on classes
	AccVolatile     AccessFlags = 0x0040 // fields; ACC_BRIDGE on methods
	AccTransient    AccessFlags = 0x0080 // fields; ACC_VARARGS on methods
	AccNative       AccessFlags = 0x0100
	AccInterface    AccessFlags = 0x0200
	AccAbstract     AccessFlags = 0x0400
	AccStrict       AccessFlags = 0x0800
	AccSynthetic    AccessFlags = 0x1000
	AccAnnotation   AccessFlags = 0x2000
	AccEnum         AccessFlags = 0x4000
)

// Context selects which meaning overloaded bits take when rendering.
type Context uint8

const (
	ForClass Context = iota
	ForField
	ForMethod
)

type flagName struct {
	flag AccessFlags
	name string
}

var (
	classFlagNames = []flagName{
		{AccPublic, "public"}, {AccFinal, "final"}, {AccInterface, "interface"},
		{AccAbstract, "abstract"}, {AccSynthetic, "synthetic"},
		{AccAnnotation, "annotation"}, {AccEnum, "enum"},
	}
	fieldFlagNames = []flagName{
		{AccPublic, "public"}, {AccPrivate, "private"}, {AccProtected, "protected"},
		{AccStatic, "static"}, {AccFinal, "final"}, {AccVolatile, "volatile"},
		{AccTransient, "transient"}, {AccSynthetic, "synthetic"}, {AccEnum, "enum"},
	}
	methodFlagNames = []flagName{
		{AccPublic, "public"}, {AccPrivate, "private"}, {AccProtected, "protected"},
		{AccStatic, "static"}, {AccFinal, "final"}, {AccSynchronized, "synchronized"},
		{AccNative, "native"}, {AccAbstract, "abstract"}, {AccStrict, "strictfp"},
	}
)

// Keywords renders the flags as source modifiers in canonical order.
func (f AccessFlags) Keywords(ctx Context) []string {
	table := classFlagNames
	switch ctx {
	case ForField:
		table = fieldFlagNames
	case ForMethod:
		table = methodFlagNames
	}
	var out []string
	for _, fn := range table {
		if f&fn.flag != 0 {
			// "interface" already implies abstract.
			if ctx == ForClass && fn.flag == AccAbstract && f&AccInterface != 0 {
				continue
			}
			out = append(out, fn.name)
		}
	}
	return out
}

// Render joins Keywords with spaces.
func (f AccessFlags) Render(ctx Context) string {
	return strings.Join(f.Keywords(ctx), " ")
}
