// Package abcfile defines the bytecode container consumed by the verifier:
// classes, methods, fields, per-file index tables and external references.
package abcfile

import (
	"fmt"
	"sync"
)

// EntityID identifies a class, method or field inside one file.
type EntityID uint32

// Lang is the source language a class or method was compiled from.
type Lang uint8

const (
	LangCore Lang = iota
	LangScript
)

// Langs lists every supported source language.
var Langs = []Lang{LangCore, LangScript}

func (l Lang) String() string {
	switch l {
	case LangCore:
		return "core"
	case LangScript:
		return "script"
	}
	return fmt.Sprintf("lang(%d)", uint8(l))
}

// ParseLang maps a language name to a Lang.
func ParseLang(s string) (Lang, error) {
	switch s {
	case "core", "":
		return LangCore, nil
	case "script":
		return LangScript, nil
	}
	return 0, fmt.Errorf("abcfile: unknown language %q", s)
}

// Access flags.
const (
	AccPublic     uint32 = 0x0001
	AccPrivate    uint32 = 0x0002
	AccProtected  uint32 = 0x0004
	AccStatic     uint32 = 0x0008
	AccFinal      uint32 = 0x0010
	AccVolatile   uint32 = 0x0040
	AccNative     uint32 = 0x0100
	AccInterface  uint32 = 0x0200
	AccAbstract   uint32 = 0x0400
	AccSynthetic  uint32 = 0x1000
	AccAnnotation uint32 = 0x2000
	AccEnum       uint32 = 0x4000
)

// CatchAll marks a catch block without an exception type.
const CatchAll int32 = -1

// CatchBlock is one handler attached to a try block.
type CatchBlock struct {
	TypeIdx   int32  `cbor:"type_idx"` // class index, or CatchAll
	HandlerPC uint32 `cbor:"handler_pc"`
	CodeSize  uint32 `cbor:"code_size"`
}

// TryBlock is a protected bytecode range with its handlers.
type TryBlock struct {
	StartPC uint32       `cbor:"start_pc"`
	Length  uint32       `cbor:"length"`
	Catches []CatchBlock `cbor:"catches"`
}

// Code is a method body.
type Code struct {
	NumVregs     uint32     `cbor:"num_vregs"`
	NumArgs      uint32     `cbor:"num_args"`
	Instructions []byte     `cbor:"instructions"`
	TryBlocks    []TryBlock `cbor:"try_blocks,omitempty"`
}

// Method is a method defined in this file.
type Method struct {
	ID    EntityID `cbor:"id"`
	Name  string   `cbor:"name"`
	Flags uint32   `cbor:"flags"`
	Proto Proto    `cbor:"proto"`
	Code  *Code    `cbor:"code,omitempty"`
}

// IsStatic reports whether the method has no receiver.
func (m *Method) IsStatic() bool { return m.Flags&AccStatic != 0 }

// Field is a field defined in this file.
type Field struct {
	ID    EntityID `cbor:"id"`
	Name  string   `cbor:"name"`
	Flags uint32   `cbor:"flags"`
	Type  string   `cbor:"type"`
}

// Class is a class defined in this file.
type Class struct {
	ID         EntityID `cbor:"id"`
	Descriptor string   `cbor:"descriptor"`
	Lang       Lang     `cbor:"lang"`
	Flags      uint32   `cbor:"flags"`
	Super      string   `cbor:"super,omitempty"` // empty = language root object
	Interfaces []string `cbor:"interfaces,omitempty"`
	Methods    []Method `cbor:"methods,omitempty"`
	Fields     []Field  `cbor:"fields,omitempty"`
}

// MethodRef declares a method defined in another file.
type MethodRef struct {
	ID     EntityID `cbor:"id"`
	Class  string   `cbor:"class"`
	Name   string   `cbor:"name"`
	Proto  Proto    `cbor:"proto"`
	Static bool     `cbor:"static,omitempty"`
}

// FieldRef declares a field defined in another file.
type FieldRef struct {
	ID     EntityID `cbor:"id"`
	Class  string   `cbor:"class"`
	Name   string   `cbor:"name"`
	Type   string   `cbor:"type"`
	Static bool     `cbor:"static,omitempty"`
}

// File is one bytecode container.
type File struct {
	Name        string      `cbor:"name"`
	Classes     []Class     `cbor:"classes"`
	ClassIndex  []string    `cbor:"class_index,omitempty"`
	MethodIndex []EntityID  `cbor:"method_index,omitempty"`
	FieldIndex  []EntityID  `cbor:"field_index,omitempty"`
	Strings     []string    `cbor:"strings,omitempty"`
	MethodRefs  []MethodRef `cbor:"method_refs,omitempty"`
	FieldRefs   []FieldRef  `cbor:"field_refs,omitempty"`

	once    sync.Once
	entries map[EntityID]entry
}

type entryKind uint8

const (
	entryClass entryKind = iota + 1
	entryMethod
	entryField
	entryMethodRef
	entryFieldRef
)

type entry struct {
	kind  entryKind
	class int
	item  int
}

// index builds the entity lookup table once. Files are immutable after
// construction, so concurrent readers share it.
func (f *File) index() map[EntityID]entry {
	f.once.Do(func() {
		f.entries = make(map[EntityID]entry)
		for ci := range f.Classes {
			c := &f.Classes[ci]
			f.entries[c.ID] = entry{kind: entryClass, class: ci}
			for mi := range c.Methods {
				f.entries[c.Methods[mi].ID] = entry{kind: entryMethod, class: ci, item: mi}
			}
			for fi := range c.Fields {
				f.entries[c.Fields[fi].ID] = entry{kind: entryField, class: ci, item: fi}
			}
		}
		for i := range f.MethodRefs {
			f.entries[f.MethodRefs[i].ID] = entry{kind: entryMethodRef, item: i}
		}
		for i := range f.FieldRefs {
			f.entries[f.FieldRefs[i].ID] = entry{kind: entryFieldRef, item: i}
		}
	})
	return f.entries
}

// Class returns the class defined under id.
func (f *File) Class(id EntityID) (*Class, bool) {
	e, ok := f.index()[id]
	if !ok || e.kind != entryClass {
		return nil, false
	}
	return &f.Classes[e.class], true
}

// Method returns the method defined under id together with its class.
func (f *File) Method(id EntityID) (*Class, *Method, bool) {
	e, ok := f.index()[id]
	if !ok || e.kind != entryMethod {
		return nil, nil, false
	}
	c := &f.Classes[e.class]
	return c, &c.Methods[e.item], true
}

// Field returns the field defined under id together with its class.
func (f *File) Field(id EntityID) (*Class, *Field, bool) {
	e, ok := f.index()[id]
	if !ok || e.kind != entryField {
		return nil, nil, false
	}
	c := &f.Classes[e.class]
	return c, &c.Fields[e.item], true
}

// MethodRef returns the external method declared under id.
func (f *File) MethodRef(id EntityID) (*MethodRef, bool) {
	e, ok := f.index()[id]
	if !ok || e.kind != entryMethodRef {
		return nil, false
	}
	return &f.MethodRefs[e.item], true
}

// FieldRef returns the external field declared under id.
func (f *File) FieldRef(id EntityID) (*FieldRef, bool) {
	e, ok := f.index()[id]
	if !ok || e.kind != entryFieldRef {
		return nil, false
	}
	return &f.FieldRefs[e.item], true
}

// IsExternal reports whether id names an entity defined in another file.
func (f *File) IsExternal(id EntityID) bool {
	e, ok := f.index()[id]
	return ok && (e.kind == entryMethodRef || e.kind == entryFieldRef)
}

// MaxID returns the largest entity id in use.
func (f *File) MaxID() EntityID {
	var max EntityID
	for id := range f.index() {
		if id > max {
			max = id
		}
	}
	return max
}
