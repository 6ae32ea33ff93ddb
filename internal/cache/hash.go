package cache

import (
	"bcverify/internal/abcfile"

	"github.com/zeebo/xxh3"
)

// MethodHash identifies a method by name and signature within a class hierarchy.
type MethodHash uint64

// FieldHash identifies a field by name and type within a class hierarchy.
type FieldHash uint64

const staticMarker = "static"

// methodHash combines the name hash (high 32 bits) with a chained hash of
// the static marker, return and parameter descriptors (low 32 bits).
// The receiver never takes part, so references and definitions agree.
func methodHash(name string, static bool, proto abcfile.Proto) MethodHash {
	var sig uint64
	chain := func(d string) { sig = xxh3.HashStringSeed(d, sig) }
	if static {
		chain(staticMarker)
	}
	chain(proto.Return)
	for _, p := range proto.Params {
		chain(p)
	}
	return MethodHash(xxh3.HashString(name)<<32 | sig&0xffffffff)
}

func fieldHash(name, typ string) FieldHash {
	return FieldHash(xxh3.HashString(name)<<32 | xxh3.HashString(typ)&0xffffffff)
}

// entityUniqID derives a process-wide id for an entity of a file.
func entityUniqID(f *abcfile.File, id abcfile.EntityID) uint64 {
	return xxh3.HashStringSeed(f.Name, uint64(id))
}

// syntheticUniqID derives the id of a synthetic class from its descriptor.
func syntheticUniqID(descriptor string) uint64 {
	return xxh3.HashString(descriptor)
}
