package cache

import (
	"bcverify/internal/abcfile"
)

// LinkState tracks linking progress of a cached entity.
type LinkState uint8

const (
	Unlinked LinkState = iota
	Linking
	Linked
	LinkFailed
)

func (s LinkState) String() string {
	switch s {
	case Unlinked:
		return "unlinked"
	case Linking:
		return "linking"
	case Linked:
		return "linked"
	case LinkFailed:
		return "failed"
	}
	return "?"
}

// ClassFlags is the flag bitset of a cached class.
type ClassFlags uint32

const (
	ClassPublic ClassFlags = 1 << iota
	ClassFinal
	ClassAnnotation
	ClassEnum
	ClassAbstract
	ClassInterface
	ClassPrimitive
	ClassArray
	ClassObjectArray
	ClassSynthetic
)

func classFlags(acc uint32) ClassFlags {
	var f ClassFlags
	set := func(bit uint32, flag ClassFlags) {
		if acc&bit != 0 {
			f |= flag
		}
	}
	set(abcfile.AccPublic, ClassPublic)
	set(abcfile.AccFinal, ClassFinal)
	set(abcfile.AccAnnotation, ClassAnnotation)
	set(abcfile.AccEnum, ClassEnum)
	set(abcfile.AccAbstract, ClassAbstract)
	set(abcfile.AccInterface, ClassInterface)
	return f
}

// MethodFlags is the flag bitset of a cached method.
type MethodFlags uint32

const (
	MethodStatic MethodFlags = 1 << iota
	MethodNative
	MethodPublic
	MethodPrivate
	MethodProtected
	MethodSynthetic
	MethodAbstract
	MethodFinal
	MethodConstructor
	MethodStaticConstructor
)

// Constructor names shared by all languages.
const (
	CtorName       = ".ctor"
	StaticCtorName = ".cctor"
)

func methodFlags(m *abcfile.Method) MethodFlags {
	var f MethodFlags
	set := func(bit uint32, flag MethodFlags) {
		if m.Flags&bit != 0 {
			f |= flag
		}
	}
	set(abcfile.AccStatic, MethodStatic)
	set(abcfile.AccNative, MethodNative)
	set(abcfile.AccPublic, MethodPublic)
	set(abcfile.AccPrivate, MethodPrivate)
	set(abcfile.AccProtected, MethodProtected)
	set(abcfile.AccSynthetic, MethodSynthetic)
	set(abcfile.AccAbstract, MethodAbstract)
	set(abcfile.AccFinal, MethodFinal)
	switch m.Name {
	case CtorName:
		f |= MethodConstructor
	case StaticCtorName:
		f |= MethodStaticConstructor
	}
	return f
}

// FieldFlags is the flag bitset of a cached field.
type FieldFlags uint32

const (
	FieldStatic FieldFlags = 1 << iota
	FieldVolatile
	FieldPublic
	FieldProtected
	FieldFinal
	FieldPrivate
)

func fieldFlags(acc uint32) FieldFlags {
	var f FieldFlags
	set := func(bit uint32, flag FieldFlags) {
		if acc&bit != 0 {
			f |= flag
		}
	}
	set(abcfile.AccStatic, FieldStatic)
	set(abcfile.AccVolatile, FieldVolatile)
	set(abcfile.AccPublic, FieldPublic)
	set(abcfile.AccProtected, FieldProtected)
	set(abcfile.AccFinal, FieldFinal)
	set(abcfile.AccPrivate, FieldPrivate)
	return f
}

// CachedClass is an interned class. Ancestors and ArrayComponent are
// rewritten only while linking; once the class is linked they are immutable.
type CachedClass struct {
	ID         uint64
	Descriptor string
	Lang       abcfile.Lang
	Flags      ClassFlags

	Ancestors      []ClassRef // interfaces, then the superclass
	ArrayComponent ClassRef   // arrays only

	File     *abcfile.File // nil for synthetic classes
	EntityID abcfile.EntityID

	methods map[MethodHash]*CachedMethod
	fields  map[FieldHash]*CachedField
	state   LinkState
	linkErr error
}

// Has reports whether all bits of f are set.
func (c *CachedClass) Has(f ClassFlags) bool { return c.Flags&f == f }

// IsPrimitive reports whether c is a primitive pseudo-class.
func (c *CachedClass) IsPrimitive() bool { return c.Has(ClassPrimitive) }

// IsArray reports whether c is an array class.
func (c *CachedClass) IsArray() bool { return c.Has(ClassArray) }

// Name renders the class in dotted source form.
func (c *CachedClass) Name() string { return abcfile.ClassName(c.Descriptor) }

func (c *CachedClass) String() string { return c.Name() }

// CatchBlock is a resolved view of one exception handler of a method.
type CatchBlock struct {
	TryStart, TryEnd int // byte offsets, end exclusive
	CatchAll         bool
	ExceptionType    ClassRef // meaningful unless CatchAll
	HandlerPC        int
	HandlerSize      int
}

// CachedMethod is an interned method.
type CachedMethod struct {
	ID    uint64
	Hash  MethodHash
	Name  string
	Class *CachedClass
	Lang  abcfile.Lang
	Flags MethodFlags

	// Signature holds the return type first, then declared parameters.
	// The receiver of instance methods is not included.
	Signature []ClassRef

	NumVregs    int
	NumArgs     int
	Bytecode    []byte
	CatchBlocks []CatchBlock

	File     *abcfile.File
	EntityID abcfile.EntityID

	indexes *fileIndexes
	state   LinkState
	linkErr error
}

// IsStatic reports whether the method has no receiver.
func (m *CachedMethod) IsStatic() bool { return m.Flags&MethodStatic != 0 }

// HasCode reports whether the method carries a body.
func (m *CachedMethod) HasCode() bool { return m.Bytecode != nil }

// Return returns the declared return type reference.
func (m *CachedMethod) Return() ClassRef { return m.Signature[0] }

// Params returns the declared parameter references, receiver excluded.
func (m *CachedMethod) Params() []ClassRef { return m.Signature[1:] }

// CachedField is an interned field.
type CachedField struct {
	ID    uint64
	Hash  FieldHash
	Name  string
	Class *CachedClass
	Flags FieldFlags
	Type  ClassRef

	File     *abcfile.File
	EntityID abcfile.EntityID

	state   LinkState
	linkErr error
}

// IsStatic reports whether the field belongs to the class rather than instances.
func (f *CachedField) IsStatic() bool { return f.Flags&FieldStatic != 0 }
