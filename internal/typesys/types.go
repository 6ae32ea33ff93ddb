// Package typesys implements the verifier's type lattice over cached classes.
package typesys

import (
	"bcverify/internal/abcfile"
	"bcverify/internal/absint"
	"bcverify/internal/cache"
)

// Fixed types. Class types are interned after these.
const (
	Bot absint.Type = iota
	Top
	Null
	U1
	I8
	I16
	I32
	I64
	F32
	F64
	Void
	firstClass
)

var primitives = map[string]absint.Type{
	abcfile.DescU1:   U1,
	abcfile.DescI8:   I8,
	abcfile.DescI16:  I16,
	abcfile.DescI32:  I32,
	abcfile.DescI64:  I64,
	abcfile.DescF32:  F32,
	abcfile.DescF64:  F64,
	abcfile.DescVoid: Void,
}

var fixedNames = [...]string{
	Bot: "bot", Top: "top", Null: "null",
	U1: "u1", I8: "i8", I16: "i16", I32: "i32",
	I64: "i64", F32: "f32", F64: "f64", Void: "void",
}

// IsInteger reports whether t is one of the widening integer types.
func IsInteger(t absint.Type) bool { return t >= U1 && t <= I32 }

type rootKey struct {
	lang abcfile.Lang
	root cache.Root
}

// Types interns cached classes as lattice types. It is not safe for
// concurrent use; each worker owns one.
type Types struct {
	cache   *cache.Cache
	byClass map[*cache.CachedClass]absint.Type
	classes []*cache.CachedClass
	roots   map[rootKey]absint.Type
}

var _ absint.TypeSystem = (*Types)(nil)

// New returns an empty type table over c.
func New(c *cache.Cache) *Types {
	return &Types{
		cache:   c,
		byClass: make(map[*cache.CachedClass]absint.Type),
		roots:   make(map[rootKey]absint.Type),
	}
}

func (ts *Types) Bot() absint.Type  { return Bot }
func (ts *Types) Top() absint.Type  { return Top }
func (ts *Types) Null() absint.Type { return Null }

func (ts *Types) Primitive(descriptor string) absint.Type {
	if t, ok := primitives[descriptor]; ok {
		return t
	}
	return Top
}

// TypeOf interns cls. Primitive pseudo-classes map to the fixed types.
func (ts *Types) TypeOf(cls *cache.CachedClass) absint.Type {
	if cls == nil {
		return Top
	}
	if cls.IsPrimitive() {
		return ts.Primitive(cls.Descriptor)
	}
	if t, ok := ts.byClass[cls]; ok {
		return t
	}
	t := firstClass + absint.Type(len(ts.classes))
	ts.classes = append(ts.classes, cls)
	ts.byClass[cls] = t
	return t
}

// ClassOf returns the class behind t, or nil for fixed types.
func (ts *Types) ClassOf(t absint.Type) *cache.CachedClass {
	if t < firstClass || int(t-firstClass) >= len(ts.classes) {
		return nil
	}
	return ts.classes[t-firstClass]
}

func (ts *Types) root(lang abcfile.Lang, r cache.Root) absint.Type {
	key := rootKey{lang, r}
	if t, ok := ts.roots[key]; ok {
		return t
	}
	t := Top
	if cls, err := ts.cache.RootClass(lang, r); err == nil {
		t = ts.TypeOf(cls)
	}
	ts.roots[key] = t
	return t
}

func (ts *Types) Object(lang abcfile.Lang) absint.Type    { return ts.root(lang, cache.RootObject) }
func (ts *Types) String(lang abcfile.Lang) absint.Type    { return ts.root(lang, cache.RootString) }
func (ts *Types) Class(lang abcfile.Lang) absint.Type     { return ts.root(lang, cache.RootClass) }
func (ts *Types) Throwable(lang abcfile.Lang) absint.Type { return ts.root(lang, cache.RootThrowable) }

func (ts *Types) IsReference(t absint.Type) bool {
	return t == Null || ts.ClassOf(t) != nil
}

func (ts *Types) IsArray(t absint.Type) bool {
	cls := ts.ClassOf(t)
	return cls != nil && cls.IsArray()
}

func (ts *Types) Component(t absint.Type) absint.Type {
	cls := ts.ClassOf(t)
	if cls == nil || !cls.IsArray() {
		return Top
	}
	return ts.TypeOf(cls.ArrayComponent.Class())
}

// IsSubtype reports sub ⊑ super. Integers widen u1 ⊑ i8 ⊑ i16 ⊑ i32, null
// is below every reference, reference arrays are covariant and classes
// follow their linked ancestors.
func (ts *Types) IsSubtype(sub, super absint.Type) bool {
	switch {
	case sub == super, sub == Bot, super == Top:
		return true
	case IsInteger(sub) && IsInteger(super):
		return sub <= super
	case sub == Null:
		return ts.ClassOf(super) != nil
	}
	sc, pc := ts.ClassOf(sub), ts.ClassOf(super)
	if sc == nil || pc == nil {
		return false
	}
	return ts.classSubtype(sc, pc)
}

func (ts *Types) classSubtype(sub, super *cache.CachedClass) bool {
	if sub == super {
		return true
	}
	if sub.Has(cache.ClassObjectArray) && super.Has(cache.ClassObjectArray) {
		sc, pc := sub.ArrayComponent.Class(), super.ArrayComponent.Class()
		if sc != nil && pc != nil && ts.classSubtype(sc, pc) {
			return true
		}
	}
	for _, a := range sub.Ancestors {
		if anc := a.Class(); anc != nil && ts.classSubtype(anc, super) {
			return true
		}
	}
	return false
}

// Join returns the least upper bound of a and b. References meet at the
// nearest superclass of a that b is below; interfaces are not considered.
// Anything else unrelated joins to Top.
func (ts *Types) Join(a, b absint.Type) absint.Type {
	switch {
	case ts.IsSubtype(a, b):
		return b
	case ts.IsSubtype(b, a):
		return a
	}
	ac, bc := ts.ClassOf(a), ts.ClassOf(b)
	if ac == nil || bc == nil {
		return Top
	}
	for c := superOf(ac); c != nil; c = superOf(c) {
		if ts.classSubtype(bc, c) {
			return ts.TypeOf(c)
		}
	}
	return Top
}

// superOf returns the superclass of c, which the cache lists last.
func superOf(c *cache.CachedClass) *cache.CachedClass {
	if n := len(c.Ancestors); n > 0 {
		return c.Ancestors[n-1].Class()
	}
	return nil
}

// Signature maps m's declared types, prepending the receiver for instance
// methods. Unresolved references map to Top.
func (ts *Types) Signature(m *cache.CachedMethod) ([]absint.Type, absint.Type) {
	var params []absint.Type
	if !m.IsStatic() {
		params = append(params, ts.TypeOf(m.Class))
	}
	for _, p := range m.Params() {
		params = append(params, ts.TypeOf(p.Class()))
	}
	return params, ts.TypeOf(m.Return().Class())
}

func (ts *Types) Describe(t absint.Type) string {
	if t < firstClass {
		return fixedNames[t]
	}
	if cls := ts.ClassOf(t); cls != nil {
		return cls.Name()
	}
	return "invalid"
}
