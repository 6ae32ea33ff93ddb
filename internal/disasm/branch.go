package disasm

// BranchInfo describes a control-transfer instruction.
type BranchInfo struct {
	Target  int  // absolute target offset (0 if return/throw)
	Cond    bool // true if conditional (has fallthrough)
	IsRet   bool
	IsThrow bool
}

// DecodeBranch returns branch info for a block-terminating instruction,
// or nil if execution always falls through.
func DecodeBranch(inst Inst) *BranchInfo {
	switch inst.Flow() {
	case FlowReturn:
		return &BranchInfo{IsRet: true}
	case FlowThrow:
		return &BranchInfo{IsThrow: true}
	case FlowJump:
		return &BranchInfo{Target: inst.Target()}
	case FlowCondJump:
		return &BranchInfo{Target: inst.Target(), Cond: true}
	}
	return nil
}

// IsBranchTerminator returns true if the instruction terminates a basic block.
// Calls are not terminators: they return to the next instruction.
func IsBranchTerminator(inst Inst) bool {
	return DecodeBranch(inst) != nil
}

// IsJump reports whether the instruction has a static jump target.
func IsJump(inst Inst) bool {
	f := inst.Flow()
	return f == FlowJump || f == FlowCondJump
}

// HasFallthrough reports whether execution may continue at the next instruction.
func HasFallthrough(inst Inst) bool {
	f := inst.Flow()
	return f == FlowNormal || f == FlowCondJump
}
