package cache

import (
	"fmt"

	"bcverify/internal/abcfile"
	"bcverify/internal/xsync"
)

// ResolveAndLink resolves a descriptor to a linked class, creating array
// classes on first sight.
func (c *Cache) ResolveAndLink(lang abcfile.Lang, descriptor string) (*CachedClass, error) {
	var cls *CachedClass
	c.data.Read(func(s *state) {
		if found, ok := s.langs[lang].byDescriptor[descriptor]; ok && found.state == Linked {
			cls = found
		}
	})
	if cls != nil {
		return cls, nil
	}
	var err error
	c.data.Write(func(s *state) {
		cls, err = s.resolveAndLink(lang, descriptor)
	})
	return cls, err
}

func (s *state) resolveAndLink(lang abcfile.Lang, descriptor string) (*CachedClass, error) {
	cls := s.resolveByDescriptor(lang, descriptor)
	if cls == nil {
		return nil, fmt.Errorf("cache: class %s: %w", descriptor, ErrNotFound)
	}
	if err := s.linkClass(cls); err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	return cls, nil
}

// ResolveByDescriptor looks a class up without linking it.
func (c *Cache) ResolveByDescriptor(lang abcfile.Lang, descriptor string) *CachedClass {
	var cls *CachedClass
	c.data.Write(func(s *state) {
		cls = s.resolveByDescriptor(lang, descriptor)
	})
	return cls
}

// RootClass returns a linked root class of lang.
func (c *Cache) RootClass(lang abcfile.Lang, r Root) (*CachedClass, error) {
	return c.ResolveAndLink(lang, RootDescriptor(lang, r))
}

// PrimitiveClass returns the pseudo-class of a primitive descriptor.
func (c *Cache) PrimitiveClass(lang abcfile.Lang, descriptor string) *CachedClass {
	return xsync.ReadValue(c.data, func(s *state) *CachedClass {
		return s.langs[lang].primitiveClass(descriptor)
	})
}

// LinkClass links cls.
func (c *Cache) LinkClass(cls *CachedClass) error {
	if c.linked(func() LinkState { return cls.state }) {
		return nil
	}
	return xsync.WriteValue(c.data, func(s *state) error { return s.linkClass(cls) })
}

// LinkMethod links m, its class, signature and catch types.
func (c *Cache) LinkMethod(m *CachedMethod) error {
	if c.linked(func() LinkState { return m.state }) {
		return nil
	}
	return xsync.WriteValue(c.data, func(s *state) error { return s.linkMethod(m) })
}

// LinkField links f, its class and its type.
func (c *Cache) LinkField(f *CachedField) error {
	if c.linked(func() LinkState { return f.state }) {
		return nil
	}
	return xsync.WriteValue(c.data, func(s *state) error { return s.linkField(f) })
}

func (c *Cache) linked(get func() LinkState) bool {
	return xsync.ReadValue(c.data, func(*state) bool { return get() == Linked })
}

// State reports the link state of cls.
func (c *Cache) State(cls *CachedClass) LinkState {
	return xsync.ReadValue(c.data, func(*state) LinkState { return cls.state })
}

// GetClass returns the linked class defined in f under id.
func (c *Cache) GetClass(lang abcfile.Lang, f *abcfile.File, id abcfile.EntityID) (*CachedClass, error) {
	key := entityKey{f, id}
	var cls *CachedClass
	c.data.Read(func(s *state) {
		if found, ok := s.langs[lang].classes[key]; ok && found.state == Linked {
			cls = found
		}
	})
	if cls != nil {
		return cls, nil
	}
	var err error
	c.data.Write(func(s *state) {
		found, ok := s.langs[lang].classes[key]
		if !ok {
			err = fmt.Errorf("cache: class %s#%d: %w", f.Name, id, ErrNotFound)
			return
		}
		if err = s.linkClass(found); err == nil {
			cls = found
		}
	})
	return cls, err
}

// GetMethod returns the linked method defined in f under id.
func (c *Cache) GetMethod(lang abcfile.Lang, f *abcfile.File, id abcfile.EntityID) (*CachedMethod, error) {
	key := entityKey{f, id}
	var m *CachedMethod
	c.data.Read(func(s *state) {
		if found, ok := s.langs[lang].methods[key]; ok && found.state == Linked {
			m = found
		}
	})
	if m != nil {
		return m, nil
	}
	var err error
	c.data.Write(func(s *state) {
		found, ok := s.langs[lang].methods[key]
		if !ok {
			err = fmt.Errorf("cache: method %s#%d: %w", f.Name, id, ErrNotFound)
			return
		}
		if err = s.linkMethod(found); err == nil {
			m = found
		}
	})
	return m, err
}

// GetField returns the linked field defined in f under id.
func (c *Cache) GetField(lang abcfile.Lang, f *abcfile.File, id abcfile.EntityID) (*CachedField, error) {
	key := entityKey{f, id}
	var fd *CachedField
	c.data.Read(func(s *state) {
		if found, ok := s.langs[lang].fields[key]; ok && found.state == Linked {
			fd = found
		}
	})
	if fd != nil {
		return fd, nil
	}
	var err error
	c.data.Write(func(s *state) {
		found, ok := s.langs[lang].fields[key]
		if !ok {
			err = fmt.Errorf("cache: field %s#%d: %w", f.Name, id, ErrNotFound)
			return
		}
		if err = s.linkField(found); err == nil {
			fd = found
		}
	})
	return fd, err
}

// ClassAt resolves class index idx of m's file to a linked class.
func (c *Cache) ClassAt(m *CachedMethod, idx int) (*CachedClass, error) {
	var cls *CachedClass
	c.data.Read(func(s *state) {
		ix := m.indexes
		if idx >= 0 && idx < len(ix.classes) {
			if r := ix.classes[idx].Class(); r != nil && r.state == Linked {
				cls = r
			}
		}
	})
	if cls != nil {
		return cls, nil
	}
	var err error
	c.data.Write(func(s *state) {
		ix := m.indexes
		if idx < 0 || idx >= len(ix.classes) {
			log.Warningf("class index out of bounds for %s, index %d, size %d", m.FullName(), idx, len(ix.classes))
			err = fmt.Errorf("cache: class index %d: %w", idx, ErrIndexRange)
			return
		}
		if err = s.resolveAndLinkRef(m.Lang, &ix.classes[idx]); err != nil {
			err = fmt.Errorf("cache: %w", err)
			return
		}
		cls = ix.classes[idx].Class()
	})
	return cls, err
}

// MethodAt resolves method index idx of m's file to a linked method.
// External references are resolved through their declaring class.
func (c *Cache) MethodAt(m *CachedMethod, idx int) (*CachedMethod, error) {
	var target *CachedMethod
	c.data.Read(func(s *state) {
		ix := m.indexes
		if idx >= 0 && idx < len(ix.methods) {
			target = ix.methods[idx].method
		}
	})
	if target != nil {
		return target, nil
	}
	var err error
	c.data.Write(func(s *state) {
		ix := m.indexes
		if idx < 0 || idx >= len(ix.methods) {
			log.Warningf("method index out of bounds for %s, index %d, size %d", m.FullName(), idx, len(ix.methods))
			err = fmt.Errorf("cache: method index %d: %w", idx, ErrIndexRange)
			return
		}
		slot := &ix.methods[idx]
		if slot.method != nil {
			target = slot.method
			return
		}
		if target, err = s.methodByID(m, slot.id); err == nil {
			slot.method = target
		}
	})
	return target, err
}

func (s *state) methodByID(m *CachedMethod, id abcfile.EntityID) (*CachedMethod, error) {
	f := m.File
	if cls, _, ok := f.Method(id); ok {
		found, ok := s.langs[cls.Lang].methods[entityKey{f, id}]
		if !ok {
			return nil, fmt.Errorf("cache: method %s#%d: %w", f.Name, id, ErrNotFound)
		}
		if err := s.linkMethod(found); err != nil {
			return nil, fmt.Errorf("cache: %w", err)
		}
		return found, nil
	}
	ref, ok := f.MethodRef(id)
	if !ok {
		return nil, fmt.Errorf("cache: method %s#%d: %w", f.Name, id, ErrNotFound)
	}
	ctx := s.langs[m.Lang]
	if found, ok := ctx.methods[entityKey{f, id}]; ok {
		return found, nil
	}
	cls, err := s.resolveAndLink(m.Lang, ref.Class)
	if err != nil {
		log.Warningf("failed to resolve or link class %s for language %s", ref.Class, m.Lang)
		return nil, err
	}
	h := methodHash(ref.Name, ref.Static, ref.Proto)
	found := resolveMethod(cls, h)
	if found == nil {
		log.Debugf("cannot resolve method with hash 0x%x in %s", uint64(h), cls.Name())
		return nil, fmt.Errorf("cache: method %s->%s%s: %w", cls.Name(), ref.Name, ref.Proto, ErrNotFound)
	}
	if err := s.linkMethod(found); err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	ctx.methods[entityKey{f, id}] = found
	return found, nil
}

// FieldAt resolves field index idx of m's file to a linked field.
func (c *Cache) FieldAt(m *CachedMethod, idx int) (*CachedField, error) {
	var target *CachedField
	c.data.Read(func(s *state) {
		ix := m.indexes
		if idx >= 0 && idx < len(ix.fields) {
			target = ix.fields[idx].field
		}
	})
	if target != nil {
		return target, nil
	}
	var err error
	c.data.Write(func(s *state) {
		ix := m.indexes
		if idx < 0 || idx >= len(ix.fields) {
			log.Warningf("field index out of bounds for %s, index %d, size %d", m.FullName(), idx, len(ix.fields))
			err = fmt.Errorf("cache: field index %d: %w", idx, ErrIndexRange)
			return
		}
		slot := &ix.fields[idx]
		if slot.field != nil {
			target = slot.field
			return
		}
		if target, err = s.fieldByID(m, slot.id); err == nil {
			slot.field = target
		}
	})
	return target, err
}

func (s *state) fieldByID(m *CachedMethod, id abcfile.EntityID) (*CachedField, error) {
	f := m.File
	if cls, _, ok := f.Field(id); ok {
		found, ok := s.langs[cls.Lang].fields[entityKey{f, id}]
		if !ok {
			return nil, fmt.Errorf("cache: field %s#%d: %w", f.Name, id, ErrNotFound)
		}
		if err := s.linkField(found); err != nil {
			return nil, fmt.Errorf("cache: %w", err)
		}
		return found, nil
	}
	ref, ok := f.FieldRef(id)
	if !ok {
		return nil, fmt.Errorf("cache: field %s#%d: %w", f.Name, id, ErrNotFound)
	}
	ctx := s.langs[m.Lang]
	if found, ok := ctx.fields[entityKey{f, id}]; ok {
		return found, nil
	}
	cls, err := s.resolveAndLink(m.Lang, ref.Class)
	if err != nil {
		log.Warningf("failed to resolve or link class %s for language %s", ref.Class, m.Lang)
		return nil, err
	}
	h := fieldHash(ref.Name, ref.Type)
	found := resolveField(cls, h)
	if found == nil {
		log.Debugf("cannot resolve field with hash 0x%x in %s", uint64(h), cls.Name())
		return nil, fmt.Errorf("cache: field %s.%s: %w", cls.Name(), ref.Name, ErrNotFound)
	}
	if err := s.linkField(found); err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	ctx.fields[entityKey{f, id}] = found
	return found, nil
}

// StringAt returns string idx of m's file.
func (c *Cache) StringAt(m *CachedMethod, idx int) (string, error) {
	if idx < 0 || idx >= len(m.File.Strings) {
		return "", fmt.Errorf("cache: string index %d: %w", idx, ErrIndexRange)
	}
	return m.File.Strings[idx], nil
}

// ResolveMethod finds a method by hash in cls or its ancestors.
func (c *Cache) ResolveMethod(cls *CachedClass, h MethodHash) *CachedMethod {
	var m *CachedMethod
	c.data.Write(func(s *state) {
		if cls.state != Linked {
			log.Warningf("resolving method in unlinked class %s", cls.Name())
		}
		if m = resolveMethod(cls, h); m == nil {
			log.Warningf("failed to resolve method with hash 0x%x in class %s", uint64(h), cls.Name())
		}
	})
	return m
}

// ResolveField finds a field by hash in cls or its ancestors.
func (c *Cache) ResolveField(cls *CachedClass, h FieldHash) *CachedField {
	var f *CachedField
	c.data.Write(func(s *state) {
		if cls.state != Linked {
			log.Warningf("resolving field in unlinked class %s", cls.Name())
		}
		if f = resolveField(cls, h); f == nil {
			log.Warningf("failed to resolve field with hash 0x%x in class %s", uint64(h), cls.Name())
		}
	})
	return f
}

// MethodHashOf computes the hash a reference to name/proto resolves by.
func MethodHashOf(name string, static bool, proto abcfile.Proto) MethodHash {
	return methodHash(name, static, proto)
}

// FieldHashOf computes the hash a reference to name/type resolves by.
func FieldHashOf(name, typ string) FieldHash { return fieldHash(name, typ) }
