package absint

import (
	"bcverify/internal/abcfile"
	"bcverify/internal/cache"
)

// Type is an opaque handle issued by a TypeSystem.
type Type uint32

// TypeSystem is the type lattice the interpreter runs against.
// Implementations are used by one goroutine at a time.
type TypeSystem interface {
	Bot() Type
	Top() Type
	Null() Type

	// Primitive returns the type of a primitive descriptor, V included.
	Primitive(descriptor string) Type
	TypeOf(cls *cache.CachedClass) Type

	Object(lang abcfile.Lang) Type
	String(lang abcfile.Lang) Type
	Class(lang abcfile.Lang) Type
	Throwable(lang abcfile.Lang) Type

	IsSubtype(sub, super Type) bool
	Join(a, b Type) Type

	IsReference(t Type) bool
	IsArray(t Type) bool
	// Component returns the element type of an array type, or Top.
	Component(t Type) Type

	// Signature returns the parameter types of m, receiver first for
	// instance methods, and its return type.
	Signature(m *cache.CachedMethod) (params []Type, ret Type)

	Describe(t Type) string
}
