package abcfile

import "fmt"

// Validate checks that entity ids are unique, index tables point at
// declared entities, descriptors are well-formed and try blocks lie inside
// their method's code.
func Validate(f *File) error {
	seen := make(map[EntityID]string)
	claim := func(id EntityID, what string) error {
		if prev, ok := seen[id]; ok {
			return fmt.Errorf("abcfile: entity id %d used by %s and %s", id, prev, what)
		}
		seen[id] = what
		return nil
	}

	for ci := range f.Classes {
		c := &f.Classes[ci]
		if !isClassDescriptor(c.Descriptor) {
			return fmt.Errorf("abcfile: class %d: bad descriptor %q", c.ID, c.Descriptor)
		}
		if err := claim(c.ID, "class "+c.Descriptor); err != nil {
			return err
		}
		if int(c.Lang) >= len(Langs) {
			return fmt.Errorf("abcfile: class %s: unknown language %d", c.Descriptor, c.Lang)
		}
		if c.Super != "" && !isClassDescriptor(c.Super) {
			return fmt.Errorf("abcfile: class %s: bad super descriptor %q", c.Descriptor, c.Super)
		}
		for _, iface := range c.Interfaces {
			if !isClassDescriptor(iface) {
				return fmt.Errorf("abcfile: class %s: bad interface descriptor %q", c.Descriptor, iface)
			}
		}
		for mi := range c.Methods {
			m := &c.Methods[mi]
			if err := claim(m.ID, "method "+c.Descriptor+"->"+m.Name); err != nil {
				return err
			}
			if err := validateProto(m.Proto); err != nil {
				return fmt.Errorf("abcfile: method %s->%s: %w", c.Descriptor, m.Name, err)
			}
			if err := validateCode(f, m.Code); err != nil {
				return fmt.Errorf("abcfile: method %s->%s: %w", c.Descriptor, m.Name, err)
			}
		}
		for fi := range c.Fields {
			fd := &c.Fields[fi]
			if err := claim(fd.ID, "field "+c.Descriptor+"->"+fd.Name); err != nil {
				return err
			}
			if !ValidDescriptor(fd.Type) || fd.Type == DescVoid {
				return fmt.Errorf("abcfile: field %s->%s: bad type %q", c.Descriptor, fd.Name, fd.Type)
			}
		}
	}
	for i := range f.MethodRefs {
		r := &f.MethodRefs[i]
		if err := claim(r.ID, "method ref "+r.Class+"->"+r.Name); err != nil {
			return err
		}
		if !IsReference(r.Class) {
			return fmt.Errorf("abcfile: method ref %s: bad class descriptor", r.Name)
		}
	}
	for i := range f.FieldRefs {
		r := &f.FieldRefs[i]
		if err := claim(r.ID, "field ref "+r.Class+"->"+r.Name); err != nil {
			return err
		}
		if !IsReference(r.Class) {
			return fmt.Errorf("abcfile: field ref %s: bad class descriptor", r.Name)
		}
	}

	for i, d := range f.ClassIndex {
		if !ValidDescriptor(d) {
			return fmt.Errorf("abcfile: class index %d: bad descriptor %q", i, d)
		}
	}
	for i, id := range f.MethodIndex {
		if _, _, ok := f.Method(id); ok {
			continue
		}
		if _, ok := f.MethodRef(id); !ok {
			return fmt.Errorf("abcfile: method index %d: no method with id %d", i, id)
		}
	}
	for i, id := range f.FieldIndex {
		if _, _, ok := f.Field(id); ok {
			continue
		}
		if _, ok := f.FieldRef(id); !ok {
			return fmt.Errorf("abcfile: field index %d: no field with id %d", i, id)
		}
	}
	return nil
}

func validateProto(p Proto) error {
	if !ValidDescriptor(p.Return) {
		return fmt.Errorf("bad return type %q", p.Return)
	}
	for _, d := range p.Params {
		if !ValidDescriptor(d) || d == DescVoid {
			return fmt.Errorf("bad parameter type %q", d)
		}
	}
	return nil
}

func validateCode(f *File, c *Code) error {
	if c == nil {
		return nil
	}
	size := uint64(len(c.Instructions))
	for _, tb := range c.TryBlocks {
		if uint64(tb.StartPC)+uint64(tb.Length) > size || tb.Length == 0 {
			return fmt.Errorf("try block [%d,+%d) outside code of %d bytes", tb.StartPC, tb.Length, size)
		}
		for _, cb := range tb.Catches {
			if cb.TypeIdx != CatchAll && (cb.TypeIdx < 0 || int(cb.TypeIdx) >= len(f.ClassIndex)) {
				return fmt.Errorf("catch type index %d out of range", cb.TypeIdx)
			}
			if uint64(cb.HandlerPC)+uint64(cb.CodeSize) > size || cb.CodeSize == 0 {
				return fmt.Errorf("handler [%d,+%d) outside code of %d bytes", cb.HandlerPC, cb.CodeSize, size)
			}
		}
	}
	return nil
}
