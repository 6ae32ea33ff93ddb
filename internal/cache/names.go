package cache

import (
	"strings"

	"bcverify/internal/abcfile"
)

// ClassName renders a class reference in source form.
func ClassName(r ClassRef) string { return abcfile.ClassName(r.Descriptor()) }

// QualifiedName is "Class::name", the key used by whitelists and breakpoints.
func (m *CachedMethod) QualifiedName() string {
	return m.Class.Name() + "::" + m.Name
}

// FullName renders "Class::name : ret(params)".
func (m *CachedMethod) FullName() string {
	var b strings.Builder
	b.WriteString(m.QualifiedName())
	b.WriteString(" : ")
	for i, r := range m.Signature {
		if i > 1 {
			b.WriteString(", ")
		}
		b.WriteString(ClassName(r))
		if i == 0 {
			b.WriteByte('(')
		}
	}
	if len(m.Signature) == 0 {
		b.WriteByte('(')
	}
	b.WriteByte(')')
	return b.String()
}

func (m *CachedMethod) String() string { return m.FullName() }

// FullName renders "Class.name : type".
func (f *CachedField) FullName() string {
	return f.Class.Name() + "." + f.Name + " : " + ClassName(f.Type)
}

func (f *CachedField) String() string { return f.FullName() }
