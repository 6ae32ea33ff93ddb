// Package cache interns classes, methods and fields across bytecode files
// and links them lazily on first use. One Cache is shared by all
// verification workers.
package cache

import (
	"sort"

	"bcverify/internal/abcfile"
	"bcverify/internal/xsync"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("bcverify.cache")

// Root names a language root class.
type Root uint8

const (
	RootObject Root = iota
	RootString
	RootClass
	RootThrowable
)

// rootDescriptors lists the root classes of each language.
var rootDescriptors = map[abcfile.Lang][4]string{
	abcfile.LangCore: {
		RootObject:    "Lstd/core/Object;",
		RootString:    "Lstd/core/String;",
		RootClass:     "Lstd/core/Class;",
		RootThrowable: "Lstd/core/Throwable;",
	},
	abcfile.LangScript: {
		RootObject:    "Lscript/Object;",
		RootString:    "Lscript/String;",
		RootClass:     "Lscript/Class;",
		RootThrowable: "Lscript/Error;",
	},
}

// RootDescriptor returns the descriptor of a root class.
func RootDescriptor(lang abcfile.Lang, r Root) string {
	return rootDescriptors[lang][r]
}

type entityKey struct {
	file *abcfile.File
	id   abcfile.EntityID
}

type methodSlot struct {
	method *CachedMethod
	id     abcfile.EntityID
}

type fieldSlot struct {
	field *CachedField
	id    abcfile.EntityID
}

// fileIndexes are the per-file id16 operand tables, resolved in place.
type fileIndexes struct {
	classes []ClassRef
	methods []methodSlot
	fields  []fieldSlot
}

type langContext struct {
	lang         abcfile.Lang
	classes      map[entityKey]*CachedClass
	methods      map[entityKey]*CachedMethod
	fields       map[entityKey]*CachedField
	synthetic    map[string]*CachedClass
	byDescriptor map[string]*CachedClass
	indexes      map[*abcfile.File]*fileIndexes
	primitives   map[string]*CachedClass
	roots        [4]string
}

type state struct {
	langs     map[abcfile.Lang]*langContext
	processed map[string]*abcfile.File
	files     []*abcfile.File
}

// Cache is the symbol cache. Lookups of linked entities share a read lock;
// insertion and linking take the write lock.
type Cache struct {
	data *xsync.Synchronized[state]
}

// New creates a cache with the synthetic root classes of every language.
func New() *Cache {
	s := state{
		langs:     make(map[abcfile.Lang]*langContext),
		processed: make(map[string]*abcfile.File),
	}
	for _, lang := range abcfile.Langs {
		s.langs[lang] = newLangContext(lang)
	}
	return &Cache{data: xsync.NewSynchronized(s)}
}

func newLangContext(lang abcfile.Lang) *langContext {
	ctx := &langContext{
		lang:         lang,
		classes:      make(map[entityKey]*CachedClass),
		methods:      make(map[entityKey]*CachedMethod),
		fields:       make(map[entityKey]*CachedField),
		synthetic:    make(map[string]*CachedClass),
		byDescriptor: make(map[string]*CachedClass),
		indexes:      make(map[*abcfile.File]*fileIndexes),
		primitives:   make(map[string]*CachedClass),
		roots:        rootDescriptors[lang],
	}
	const rootFlags = ClassPublic | ClassFinal | ClassAbstract | ClassSynthetic
	for _, d := range abcfile.PrimitiveDescriptors {
		c := ctx.makeSynthetic(d, rootFlags|ClassPrimitive)
		ctx.primitives[d] = c
	}
	ctx.makeSynthetic(ctx.roots[RootObject], rootFlags)
	for _, r := range []Root{RootString, RootClass} {
		c := ctx.makeSynthetic(ctx.roots[r], rootFlags)
		c.Ancestors = append(c.Ancestors, Unresolved(ctx.roots[RootObject]))
	}
	throwable := ctx.makeSynthetic(ctx.roots[RootThrowable], ClassPublic|ClassSynthetic)
	throwable.Ancestors = append(throwable.Ancestors, Unresolved(ctx.roots[RootObject]))
	return ctx
}

func (ctx *langContext) makeSynthetic(descriptor string, flags ClassFlags) *CachedClass {
	c := &CachedClass{
		ID:         syntheticUniqID(descriptor),
		Descriptor: descriptor,
		Lang:       ctx.lang,
		Flags:      flags | ClassSynthetic,
		methods:    make(map[MethodHash]*CachedMethod),
		fields:     make(map[FieldHash]*CachedField),
	}
	ctx.synthetic[descriptor] = c
	if prev, dup := ctx.byDescriptor[descriptor]; dup {
		logConflict(c, prev)
	} else {
		ctx.byDescriptor[descriptor] = c
		log.Debugf("added synthetic class %s with id 0x%x", c.Name(), c.ID)
	}
	return c
}

func logConflict(c, prev *CachedClass) {
	where := func(c *CachedClass) string {
		if c.File != nil {
			return "in " + c.File.Name
		}
		return "as a synthetic class"
	}
	log.Warningf("conflicting definitions of class %s: %s and %s; keeping the first",
		c.Name(), where(prev), where(c))
}

// primitiveClass maps a primitive descriptor to its pseudo-class.
func (ctx *langContext) primitiveClass(d string) *CachedClass { return ctx.primitives[d] }

// typeRef is a primitive class reference or an unresolved descriptor.
func (ctx *langContext) typeRef(d string) ClassRef {
	if c := ctx.primitiveClass(d); c != nil {
		return Resolved(c)
	}
	return Unresolved(d)
}

// ProcessFile inserts unlinked stubs for every class, method and field
// defined in f. A file is processed once; a second file with the same name
// is ignored.
func (c *Cache) ProcessFile(f *abcfile.File) {
	c.data.Write(func(s *state) {
		if prev, ok := s.processed[f.Name]; ok {
			if prev == f {
				log.Infof("%s is already processed, skipping", f.Name)
			} else {
				log.Errorf("two files named %s, ignoring the second one", f.Name)
			}
			return
		}
		s.processed[f.Name] = f
		s.files = append(s.files, f)
		log.Infof("processing %s", f.Name)
		for i := range f.Classes {
			s.processClass(f, &f.Classes[i])
		}
	})
}

// ProcessFiles processes each file in order.
func (c *Cache) ProcessFiles(files ...*abcfile.File) {
	for _, f := range files {
		c.ProcessFile(f)
	}
}

func (s *state) indexesFor(ctx *langContext, f *abcfile.File) *fileIndexes {
	if ix, ok := ctx.indexes[f]; ok {
		return ix
	}
	ix := &fileIndexes{
		classes: make([]ClassRef, len(f.ClassIndex)),
		methods: make([]methodSlot, len(f.MethodIndex)),
		fields:  make([]fieldSlot, len(f.FieldIndex)),
	}
	for i, d := range f.ClassIndex {
		ix.classes[i] = ctx.typeRef(d)
	}
	for i, id := range f.MethodIndex {
		ix.methods[i] = methodSlot{id: id}
	}
	for i, id := range f.FieldIndex {
		ix.fields[i] = fieldSlot{id: id}
	}
	ctx.indexes[f] = ix
	return ix
}

func (s *state) processClass(f *abcfile.File, ac *abcfile.Class) {
	ctx := s.langs[ac.Lang]
	key := entityKey{f, ac.ID}
	if _, ok := ctx.classes[key]; ok {
		return
	}
	cls := &CachedClass{
		ID:         entityUniqID(f, ac.ID),
		Descriptor: ac.Descriptor,
		Lang:       ac.Lang,
		Flags:      classFlags(ac.Flags),
		File:       f,
		EntityID:   ac.ID,
		methods:    make(map[MethodHash]*CachedMethod, len(ac.Methods)),
		fields:     make(map[FieldHash]*CachedField, len(ac.Fields)),
	}
	for _, iface := range ac.Interfaces {
		cls.Ancestors = append(cls.Ancestors, Unresolved(iface))
	}
	switch {
	case ac.Super != "":
		cls.Ancestors = append(cls.Ancestors, Unresolved(ac.Super))
	case ac.Descriptor != ctx.roots[RootObject]:
		cls.Ancestors = append(cls.Ancestors, Unresolved(ctx.roots[RootObject]))
	}
	ctx.classes[key] = cls

	for i := range ac.Methods {
		m := s.processMethod(ctx, cls, f, &ac.Methods[i])
		cls.methods[m.Hash] = m
	}
	for i := range ac.Fields {
		fd := s.processField(ctx, cls, f, &ac.Fields[i])
		cls.fields[fd.Hash] = fd
	}

	if prev, dup := ctx.byDescriptor[cls.Descriptor]; dup {
		logConflict(cls, prev)
	} else {
		ctx.byDescriptor[cls.Descriptor] = cls
		log.Debugf("added class %s with id 0x%x", cls.Name(), cls.ID)
	}
}

func (s *state) processMethod(ctx *langContext, cls *CachedClass, f *abcfile.File, am *abcfile.Method) *CachedMethod {
	key := entityKey{f, am.ID}
	if m, ok := ctx.methods[key]; ok {
		return m
	}
	m := &CachedMethod{
		ID:       entityUniqID(f, am.ID),
		Hash:     methodHash(am.Name, am.IsStatic(), am.Proto),
		Name:     am.Name,
		Class:    cls,
		Lang:     cls.Lang,
		Flags:    methodFlags(am),
		File:     f,
		EntityID: am.ID,
		indexes:  s.indexesFor(ctx, f),
	}
	m.Signature = append(m.Signature, ctx.typeRef(am.Proto.Return))
	for _, p := range am.Proto.Params {
		m.Signature = append(m.Signature, ctx.typeRef(p))
	}
	if code := am.Code; code != nil {
		m.NumVregs = int(code.NumVregs)
		m.NumArgs = int(code.NumArgs)
		m.Bytecode = code.Instructions
		if m.Bytecode == nil {
			m.Bytecode = []byte{}
		}
		for _, tb := range code.TryBlocks {
			for _, cb := range tb.Catches {
				blk := CatchBlock{
					TryStart:    int(tb.StartPC),
					TryEnd:      int(tb.StartPC + tb.Length),
					HandlerPC:   int(cb.HandlerPC),
					HandlerSize: int(cb.CodeSize),
				}
				switch {
				case cb.TypeIdx == abcfile.CatchAll:
					blk.CatchAll = true
				case int(cb.TypeIdx) < len(m.indexes.classes):
					blk.ExceptionType = m.indexes.classes[cb.TypeIdx]
				default:
					log.Warningf("exception type out of bounds in %s class index, index %d, size %d",
						m.FullName(), cb.TypeIdx, len(m.indexes.classes))
					blk.CatchAll = true
				}
				m.CatchBlocks = append(m.CatchBlocks, blk)
			}
		}
	}
	ctx.methods[key] = m
	log.Debugf("added method %s with id 0x%x, hash 0x%x", m.FullName(), m.ID, uint64(m.Hash))
	return m
}

func (s *state) processField(ctx *langContext, cls *CachedClass, f *abcfile.File, af *abcfile.Field) *CachedField {
	key := entityKey{f, af.ID}
	if fd, ok := ctx.fields[key]; ok {
		return fd
	}
	fd := &CachedField{
		ID:       entityUniqID(f, af.ID),
		Hash:     fieldHash(af.Name, af.Type),
		Name:     af.Name,
		Class:    cls,
		Flags:    fieldFlags(af.Flags),
		Type:     ctx.typeRef(af.Type),
		File:     f,
		EntityID: af.ID,
	}
	ctx.fields[key] = fd
	log.Debugf("added field %s with id 0x%x, hash 0x%x", fd.FullName(), fd.ID, uint64(fd.Hash))
	return fd
}

// Files returns the processed files in processing order.
func (c *Cache) Files() []*abcfile.File {
	return xsync.ReadValue(c.data, func(s *state) []*abcfile.File {
		return append([]*abcfile.File(nil), s.files...)
	})
}

// MethodsOf returns the cached methods defined in f, in file order.
// The methods are not linked.
func (c *Cache) MethodsOf(f *abcfile.File) []*CachedMethod {
	return xsync.ReadValue(c.data, func(s *state) []*CachedMethod {
		var out []*CachedMethod
		for ci := range f.Classes {
			ac := &f.Classes[ci]
			ctx := s.langs[ac.Lang]
			for mi := range ac.Methods {
				if m, ok := ctx.methods[entityKey{f, ac.Methods[mi].ID}]; ok {
					out = append(out, m)
				}
			}
		}
		return out
	})
}

// ClassesOf returns the cached classes defined in f, in file order.
func (c *Cache) ClassesOf(f *abcfile.File) []*CachedClass {
	return xsync.ReadValue(c.data, func(s *state) []*CachedClass {
		var out []*CachedClass
		for ci := range f.Classes {
			ac := &f.Classes[ci]
			if cls, ok := s.langs[ac.Lang].classes[entityKey{f, ac.ID}]; ok {
				out = append(out, cls)
			}
		}
		return out
	})
}

// DeclaredMethods returns the methods declared by cls, sorted by name.
// Inherited methods memoized by resolution are excluded.
func (c *Cache) DeclaredMethods(cls *CachedClass) []*CachedMethod {
	return xsync.ReadValue(c.data, func(s *state) []*CachedMethod {
		var out []*CachedMethod
		for _, m := range cls.methods {
			if m.Class == cls {
				out = append(out, m)
			}
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].Name != out[j].Name {
				return out[i].Name < out[j].Name
			}
			return out[i].ID < out[j].ID
		})
		return out
	})
}
