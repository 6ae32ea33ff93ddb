//go:build !verifierdebug

package jobs

import "bcverify/internal/cache"

// DebugBuild reports whether breakpoint hooks are compiled in.
const DebugBuild = false

func breakpointFunc(*cache.CachedMethod, []int) func(int) { return nil }
