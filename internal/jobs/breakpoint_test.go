//go:build !verifierdebug

package jobs

import "testing"

func TestBreakpointsCompiledOut(t *testing.T) {
	if DebugBuild {
		t.Fatal("DebugBuild = true without verifierdebug")
	}
	if breakpointFunc(nil, []int{0}) != nil {
		t.Error("release build installs a breakpoint callback")
	}
}
