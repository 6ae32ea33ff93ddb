package abcfile

import (
	"fmt"
	"strings"
)

// Primitive descriptors.
const (
	DescU1   = "Z"
	DescI8   = "B"
	DescI16  = "S"
	DescI32  = "I"
	DescI64  = "J"
	DescF32  = "F"
	DescF64  = "D"
	DescVoid = "V"
)

// PrimitiveDescriptors lists every primitive descriptor.
var PrimitiveDescriptors = []string{DescU1, DescI8, DescI16, DescI32, DescI64, DescF32, DescF64, DescVoid}

// IsPrimitive reports whether d is a primitive descriptor.
func IsPrimitive(d string) bool {
	if len(d) != 1 {
		return false
	}
	switch d {
	case DescU1, DescI8, DescI16, DescI32, DescI64, DescF32, DescF64, DescVoid:
		return true
	}
	return false
}

// IsReference reports whether d is a class or array descriptor.
func IsReference(d string) bool { return IsArray(d) || isClassDescriptor(d) }

// IsArray reports whether d is an array descriptor.
func IsArray(d string) bool { return len(d) > 1 && d[0] == '[' }

func isClassDescriptor(d string) bool {
	return len(d) > 2 && d[0] == 'L' && d[len(d)-1] == ';' && !strings.ContainsAny(d[1:len(d)-1], ";[")
}

// ValidDescriptor reports whether d is well-formed.
func ValidDescriptor(d string) bool {
	dims := Dimensionality(d)
	base := d[dims:]
	if dims > 0 && base == DescVoid {
		return false
	}
	return IsPrimitive(base) || isClassDescriptor(base)
}

// ComponentDescriptor strips one array dimension.
func ComponentDescriptor(d string) string {
	if !IsArray(d) {
		return ""
	}
	return d[1:]
}

// Dimensionality returns the number of array dimensions of d.
func Dimensionality(d string) int {
	n := 0
	for n < len(d) && d[n] == '[' {
		n++
	}
	return n
}

var primitiveNames = map[string]string{
	DescU1: "u1", DescI8: "i8", DescI16: "i16", DescI32: "i32",
	DescI64: "i64", DescF32: "f32", DescF64: "f64", DescVoid: "void",
}

// PrimitiveName returns the short name of a primitive descriptor.
func PrimitiveName(d string) string { return primitiveNames[d] }

// ClassName renders a descriptor in dotted source form:
// "Lstd/core/Object;" → "std.core.Object", "[I" → "i32[]".
func ClassName(d string) string {
	dims := Dimensionality(d)
	base := d[dims:]
	var name string
	switch {
	case IsPrimitive(base):
		name = PrimitiveName(base)
	case isClassDescriptor(base):
		name = strings.ReplaceAll(base[1:len(base)-1], "/", ".")
	default:
		name = base
	}
	return name + strings.Repeat("[]", dims)
}

// Proto is a method prototype: return descriptor plus parameter descriptors.
// Parameters never include the receiver.
type Proto struct {
	Return string   `cbor:"return"`
	Params []string `cbor:"params,omitempty"`
}

func (p Proto) String() string {
	return "(" + strings.Join(p.Params, "") + ")" + p.Return
}

// ParseProto parses "(IJLfoo/Bar;)V".
func ParseProto(s string) (Proto, error) {
	if len(s) < 3 || s[0] != '(' {
		return Proto{}, fmt.Errorf("abcfile: bad prototype %q", s)
	}
	end := strings.IndexByte(s, ')')
	if end < 0 {
		return Proto{}, fmt.Errorf("abcfile: bad prototype %q", s)
	}
	var p Proto
	rest := s[1:end]
	for rest != "" {
		d, n, err := nextDescriptor(rest)
		if err != nil {
			return Proto{}, fmt.Errorf("abcfile: prototype %q: %w", s, err)
		}
		if d == DescVoid {
			return Proto{}, fmt.Errorf("abcfile: prototype %q: void parameter", s)
		}
		p.Params = append(p.Params, d)
		rest = rest[n:]
	}
	ret, n, err := nextDescriptor(s[end+1:])
	if err != nil || n != len(s)-end-1 {
		return Proto{}, fmt.Errorf("abcfile: prototype %q: bad return type", s)
	}
	p.Return = ret
	return p, nil
}

// nextDescriptor splits the leading descriptor off s.
func nextDescriptor(s string) (string, int, error) {
	i := 0
	for i < len(s) && s[i] == '[' {
		i++
	}
	if i >= len(s) {
		return "", 0, fmt.Errorf("truncated descriptor")
	}
	switch s[i] {
	case 'L':
		end := strings.IndexByte(s[i:], ';')
		if end < 0 {
			return "", 0, fmt.Errorf("unterminated class descriptor")
		}
		return s[:i+end+1], i + end + 1, nil
	default:
		d := s[:i+1]
		if !IsPrimitive(s[i : i+1]) {
			return "", 0, fmt.Errorf("bad descriptor char %q", s[i])
		}
		if i > 0 && s[i] == 'V' {
			return "", 0, fmt.Errorf("void array")
		}
		return d, i + 1, nil
	}
}
