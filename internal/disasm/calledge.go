package disasm

// CallEdge represents a call site extracted from disassembly.
type CallEdge struct {
	FromPC     int    `json:"from_pc"`
	Kind       string `json:"kind"` // "call" or "call.virt"
	MethodIdx  uint16 `json:"method_idx"`
	TargetName string `json:"target_name,omitempty"`
	Args       int    `json:"args"`
	Via        int    `json:"via,omitempty"` // offset defining the receiver of call.virt; -1 if unknown
}

// ExtractCallEdges scans instructions for call sites. names resolves method
// indexes to display names. For virtual calls the defining offset of the
// receiver register is tracked within straight-line code.
func ExtractCallEdges(insts []Inst, names NameLookup) []CallEdge {
	rt := NewRegTracker()
	var edges []CallEdge

	for _, inst := range insts {
		switch inst.Op {
		case OpCall, OpCallVirt:
			e := CallEdge{
				FromPC:    inst.Addr,
				Kind:      inst.Mnemonic,
				MethodIdx: inst.ID,
				Args:      len(inst.Args),
				Via:       -1,
			}
			if names != nil {
				if name, ok := names(IDMethod, inst.ID); ok {
					e.TargetName = name
				}
			}
			if inst.Op == OpCallVirt && len(inst.Args) > 0 {
				if def, ok := rt.Lookup(inst.Args[0]); ok {
					e.Via = def
				}
			}
			edges = append(edges, e)
		}

		if IsBranchTerminator(inst) {
			rt.Reset()
			continue
		}
		if rd := DstReg(inst); rd >= 0 {
			rt.Define(rd, inst.Addr)
		}
	}

	return edges
}
