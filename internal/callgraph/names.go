package callgraph

import (
	"strconv"

	"bcverify/internal/abcfile"
	"bcverify/internal/disasm"
)

// FileNames resolves id operands through f's index tables without linking,
// so unverifiable code still disassembles with readable operands.
func FileNames(f *abcfile.File) disasm.NameLookup {
	return func(kind disasm.IDKind, id uint16) (string, bool) {
		idx := int(id)
		switch kind {
		case disasm.IDClass:
			if idx < len(f.ClassIndex) {
				return abcfile.ClassName(f.ClassIndex[idx]), true
			}
		case disasm.IDMethod:
			if idx < len(f.MethodIndex) {
				return methodName(f, f.MethodIndex[idx])
			}
		case disasm.IDField:
			if idx < len(f.FieldIndex) {
				return fieldName(f, f.FieldIndex[idx])
			}
		case disasm.IDString:
			if idx < len(f.Strings) {
				return strconv.Quote(f.Strings[idx]), true
			}
		}
		return "", false
	}
}

func methodName(f *abcfile.File, id abcfile.EntityID) (string, bool) {
	if c, m, ok := f.Method(id); ok {
		return abcfile.ClassName(c.Descriptor) + "::" + m.Name, true
	}
	if r, ok := f.MethodRef(id); ok {
		return abcfile.ClassName(r.Class) + "::" + r.Name, true
	}
	return "", false
}

func fieldName(f *abcfile.File, id abcfile.EntityID) (string, bool) {
	if c, fd, ok := f.Field(id); ok {
		return abcfile.ClassName(c.Descriptor) + "." + fd.Name, true
	}
	if r, ok := f.FieldRef(id); ok {
		return abcfile.ClassName(r.Class) + "." + r.Name, true
	}
	return "", false
}
