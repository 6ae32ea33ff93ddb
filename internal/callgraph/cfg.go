package callgraph

import (
	"github.com/zboralski/lattice"

	"bcverify/internal/disasm"
)

// BuildCFG constructs a lattice.CFGGraph from disassembled methods.
// Each FuncInfo is converted via disasm.BuildCFG then mapped to lattice types.
func BuildCFG(funcs []FuncInfo) *lattice.CFGGraph {
	cg := &lattice.CFGGraph{}
	for _, f := range funcs {
		dcfg := disasm.BuildCFG(f.Name, f.Insts, f.Handlers...)
		cg.Funcs = append(cg.Funcs, convertFuncCFG(&dcfg, f.CallEdges))
	}
	return cg
}

// BuildFuncCFG builds a single-method lattice.FuncCFG and returns the
// number of basic blocks, for filtering trivial methods.
func BuildFuncCFG(f FuncInfo) (*lattice.FuncCFG, int) {
	dcfg := disasm.BuildCFG(f.Name, f.Insts, f.Handlers...)
	return convertFuncCFG(&dcfg, f.CallEdges), len(dcfg.Blocks)
}

// convertFuncCFG maps a disasm.FuncCFG to a lattice.FuncCFG. Call edges
// are placed into blocks by matching instruction offsets.
func convertFuncCFG(dcfg *disasm.FuncCFG, edges []disasm.CallEdge) *lattice.FuncCFG {
	edgeByPC := make(map[int]disasm.CallEdge, len(edges))
	for _, e := range edges {
		edgeByPC[e.FromPC] = e
	}

	lcfg := &lattice.FuncCFG{Name: dcfg.Name}
	for _, db := range dcfg.Blocks {
		lb := &lattice.BasicBlock{
			ID:    db.ID,
			Start: db.Start,
			End:   db.End,
			Term:  db.IsTerm,
		}
		for _, ds := range db.Succs {
			lb.Succs = append(lb.Succs, lattice.Successor{
				BlockID: ds.BlockID,
				Cond:    ds.Cond,
			})
		}
		for idx := db.Start; idx < db.End && idx < len(dcfg.Insts); idx++ {
			if e, ok := edgeByPC[dcfg.Insts[idx].Addr]; ok {
				lb.Calls = append(lb.Calls, lattice.CallSite{
					Offset: idx,
					Callee: calleeName(e),
				})
			}
		}
		lcfg.Blocks = append(lcfg.Blocks, lb)
	}
	return lcfg
}
