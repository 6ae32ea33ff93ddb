package cache

import (
	"errors"
	"fmt"

	"bcverify/internal/abcfile"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrCycle      = errors.New("inheritance cycle")
	ErrLinkFailed = errors.New("link failed")
	ErrIndexRange = errors.New("index out of range")
)

// resolveByDescriptor finds a class by descriptor, creating array classes
// on demand. Caller holds the write lock.
func (s *state) resolveByDescriptor(lang abcfile.Lang, descriptor string) *CachedClass {
	ctx := s.langs[lang]
	if c, ok := ctx.byDescriptor[descriptor]; ok {
		return c
	}
	if abcfile.IsArray(descriptor) && abcfile.ValidDescriptor(descriptor) {
		return s.addArray(ctx, descriptor)
	}
	log.Warningf("descriptor %s not resolved for language %s", descriptor, lang)
	return nil
}

func (s *state) addArray(ctx *langContext, descriptor string) *CachedClass {
	arr := ctx.makeSynthetic(descriptor, ClassPublic|ClassFinal|ClassAbstract|ClassArray)
	arr.Ancestors = append(arr.Ancestors, Unresolved(ctx.roots[RootObject]))
	comp := abcfile.ComponentDescriptor(descriptor)
	arr.ArrayComponent = ctx.typeRef(comp)
	if abcfile.IsReference(comp) {
		arr.Flags |= ClassObjectArray
	}
	return arr
}

// linkClass links ancestors and the array component. A class reached again
// while it is linking sits on a cycle; the edge that closes it fails.
func (s *state) linkClass(c *CachedClass) error {
	switch c.state {
	case Linked:
		return nil
	case LinkFailed:
		return c.linkErr
	case Linking:
		return fmt.Errorf("%s: %w", c.Name(), ErrCycle)
	}
	c.state = Linking
	var err error
	for i := range c.Ancestors {
		if e := s.resolveAndLinkRef(c.Lang, &c.Ancestors[i]); e != nil && err == nil {
			err = e
		}
	}
	if c.IsArray() {
		if e := s.resolveAndLinkRef(c.Lang, &c.ArrayComponent); e != nil && err == nil {
			err = e
		}
	}
	if err != nil {
		c.state = LinkFailed
		c.linkErr = fmt.Errorf("class %s: %w", c.Name(), err)
		log.Warningf("failed to link %v", c.linkErr)
		return c.linkErr
	}
	c.state = Linked
	return nil
}

// resolveAndLinkRef resolves ref in place and links its class.
func (s *state) resolveAndLinkRef(lang abcfile.Lang, ref *ClassRef) error {
	return Visit(*ref,
		func(c *CachedClass) error {
			if c.state == Linking {
				*ref = CycleDetected(c.Descriptor)
				return fmt.Errorf("%s: %w", c.Name(), ErrCycle)
			}
			return s.linkClass(c)
		},
		func(d string) error {
			c := s.resolveByDescriptor(lang, d)
			if c == nil {
				return fmt.Errorf("class %s: %w", d, ErrNotFound)
			}
			if c.state == Linking {
				*ref = CycleDetected(d)
				return fmt.Errorf("%s: %w", c.Name(), ErrCycle)
			}
			*ref = Resolved(c)
			return s.linkClass(c)
		},
		func(d string) error {
			return fmt.Errorf("%s: %w", abcfile.ClassName(d), ErrCycle)
		},
	)
}

func (s *state) linkMethod(m *CachedMethod) error {
	switch m.state {
	case Linked:
		return nil
	case LinkFailed:
		return m.linkErr
	}
	fail := func(err error) error {
		m.state = LinkFailed
		m.linkErr = fmt.Errorf("method %s: %w", m.FullName(), err)
		log.Warningf("failed to link %v", m.linkErr)
		return m.linkErr
	}
	if err := s.linkClass(m.Class); err != nil {
		return fail(err)
	}
	m.state = Linking
	for i := range m.Signature {
		if err := s.resolveAndLinkRef(m.Lang, &m.Signature[i]); err != nil {
			return fail(err)
		}
	}
	for i := range m.CatchBlocks {
		cb := &m.CatchBlocks[i]
		if cb.CatchAll {
			continue
		}
		if err := s.resolveAndLinkRef(m.Lang, &cb.ExceptionType); err != nil {
			return fail(err)
		}
	}
	m.state = Linked
	return nil
}

func (s *state) linkField(f *CachedField) error {
	switch f.state {
	case Linked:
		return nil
	case LinkFailed:
		return f.linkErr
	}
	fail := func(err error) error {
		f.state = LinkFailed
		f.linkErr = fmt.Errorf("field %s: %w", f.FullName(), err)
		log.Warningf("failed to link %v", f.linkErr)
		return f.linkErr
	}
	if err := s.linkClass(f.Class); err != nil {
		return fail(err)
	}
	if err := s.resolveAndLinkRef(f.Class.Lang, &f.Type); err != nil {
		return fail(err)
	}
	f.state = Linked
	return nil
}

// resolveMethod searches cls and then its ancestors, memoizing a hit
// found in an ancestor into cls. cls must be linked.
func resolveMethod(cls *CachedClass, h MethodHash) *CachedMethod {
	if m, ok := cls.methods[h]; ok {
		return m
	}
	for _, a := range cls.Ancestors {
		anc := a.Class()
		if anc == nil {
			continue
		}
		if m := resolveMethod(anc, h); m != nil {
			cls.methods[h] = m
			return m
		}
	}
	return nil
}

func resolveField(cls *CachedClass, h FieldHash) *CachedField {
	if f, ok := cls.fields[h]; ok {
		return f
	}
	for _, a := range cls.Ancestors {
		anc := a.Class()
		if anc == nil {
			continue
		}
		if f := resolveField(anc, h); f != nil {
			cls.fields[h] = f
			return f
		}
	}
	return nil
}
