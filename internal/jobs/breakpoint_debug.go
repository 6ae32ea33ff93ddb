//go:build verifierdebug

package jobs

import "bcverify/internal/cache"

// DebugBuild reports whether breakpoint hooks are compiled in.
const DebugBuild = true

// BreakpointHook runs when interpretation reaches a configured offset.
var BreakpointHook = func(methodID uint64, name string, offset int) {
	log.Noticef("breakpoint %s @0x%04x (method 0x%x)", name, offset, methodID)
}

func breakpointFunc(m *cache.CachedMethod, offsets []int) func(int) {
	if len(offsets) == 0 {
		return nil
	}
	set := make(map[int]bool, len(offsets))
	for _, off := range offsets {
		set[off] = true
	}
	name := m.QualifiedName()
	return func(offset int) {
		if set[offset] {
			BreakpointHook(m.ID, name, offset)
		}
	}
}
