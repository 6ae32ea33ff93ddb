package disasm

// MethodRecord is one line in methods.jsonl.
type MethodRecord struct {
	Name       string `json:"name"`
	Class      string `json:"class"`
	Size       int    `json:"size"`
	Insts      int    `json:"insts"`
	Blocks     int    `json:"blocks"`
	ParamCount int    `json:"param_count,omitempty"`
	Status     string `json:"status,omitempty"`
}

// CallEdgeRecord is one line in call_edges.jsonl.
type CallEdgeRecord struct {
	FromFunc string `json:"from_func"`
	FromPC   string `json:"from_pc"`
	Kind     string `json:"kind"` // "call" or "call.virt"
	Target   string `json:"target,omitempty"`
}

// DiagRecord is one line in diags.jsonl.
type DiagRecord struct {
	Func   string `json:"func"`
	PC     string `json:"pc,omitempty"`
	Kind   string `json:"kind"` // structural, linkage, typing, reachability, skipped
	Msg    string `json:"msg"`
	Status string `json:"status"`
}
