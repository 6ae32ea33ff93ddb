package disasm

import "fmt"

// Annotator returns an optional inline comment for an instruction.
// Empty string means no annotation.
type Annotator func(inst Inst) string

// IDAnnotator annotates id operands with the names returned by names.
func IDAnnotator(names NameLookup) Annotator {
	return func(inst Inst) string {
		kind := inst.Info().ID
		if kind == IDNone || names == nil {
			return ""
		}
		if name, ok := names(kind, inst.ID); ok {
			return fmt.Sprintf("%s %s", kind, name)
		}
		return fmt.Sprintf("%s#%d ?", kind, inst.ID)
	}
}

// OffsetAnnotator annotates instructions whose offset appears in marks,
// e.g. checkpoints or the offset of a verification failure.
func OffsetAnnotator(marks map[int]string) Annotator {
	return func(inst Inst) string {
		return marks[inst.Addr]
	}
}

// TargetAnnotator annotates jumps whose target is not an instruction start
// within insts. Such jumps are rejected by the verifier.
func TargetAnnotator(insts []Inst) Annotator {
	starts := make(map[int]bool, len(insts))
	for _, in := range insts {
		starts[in.Addr] = true
	}
	return func(inst Inst) string {
		if !IsJump(inst) {
			return ""
		}
		if t := inst.Target(); !starts[t] {
			return fmt.Sprintf("bad target 0x%04x", t)
		}
		return ""
	}
}

// RegTracker records, per register, the offset of the last instruction
// that wrote it. Used to attribute call receivers and arguments.
type RegTracker struct {
	defs map[int]int
}

// NewRegTracker creates an empty tracker.
func NewRegTracker() *RegTracker {
	return &RegTracker{defs: make(map[int]int)}
}

// Reset clears all tracked definitions. Call between methods.
func (rt *RegTracker) Reset() {
	clear(rt.defs)
}

// Define records that register r was written at offset addr.
func (rt *RegTracker) Define(r, addr int) { rt.defs[r] = addr }

// Lookup returns the defining offset of r.
func (rt *RegTracker) Lookup(r int) (int, bool) {
	addr, ok := rt.defs[r]
	return addr, ok
}

// DstReg returns the register an instruction writes, or -1 when it
// writes only the accumulator or nothing.
func DstReg(inst Inst) int {
	switch inst.Op {
	case OpMov, OpMov64, OpMovObj, OpMovi, OpMovi64, OpSta, OpSta64, OpStaObj, OpNewobj, OpNewarr:
		return inst.Reg(0)
	}
	return -1
}
