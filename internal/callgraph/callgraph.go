// Package callgraph converts verified methods into lattice graphs: one CFG
// per method, a method-level call graph and the class hierarchy.
package callgraph

import (
	"fmt"

	"github.com/zboralski/lattice"

	"bcverify/internal/cache"
	"bcverify/internal/disasm"
)

// FuncInfo holds the data needed to build call graph and CFG for one method.
type FuncInfo struct {
	Name      string
	Insts     []disasm.Inst
	Handlers  []disasm.Handler
	CallEdges []disasm.CallEdge
}

// FromMethod disassembles m and extracts its call edges and handlers.
// Decoding stops at the first bad instruction; the prefix is kept.
func FromMethod(m *cache.CachedMethod, names disasm.NameLookup) FuncInfo {
	insts := disasm.Disassemble(m.Bytecode, disasm.Options{Names: names})
	fi := FuncInfo{
		Name:      m.QualifiedName(),
		Insts:     insts,
		CallEdges: disasm.ExtractCallEdges(insts, names),
	}
	for _, cb := range m.CatchBlocks {
		fi.Handlers = append(fi.Handlers, disasm.Handler{
			TryStart: cb.TryStart,
			TryEnd:   cb.TryEnd,
			Entry:    cb.HandlerPC,
		})
	}
	return fi
}

func calleeName(e disasm.CallEdge) string {
	if e.TargetName != "" {
		return e.TargetName
	}
	return fmt.Sprintf("method#%d", e.MethodIdx)
}

// BuildCallGraph constructs a lattice.Graph from disassembled methods.
// Each method becomes a node and each call site an edge; callees outside
// the set appear only as edge endpoints.
func BuildCallGraph(funcs []FuncInfo) *lattice.Graph {
	g := &lattice.Graph{}
	for _, f := range funcs {
		g.Nodes = append(g.Nodes, f.Name)
		for _, e := range f.CallEdges {
			g.Edges = append(g.Edges, lattice.Edge{
				Caller: f.Name,
				Callee: calleeName(e),
			})
		}
	}
	g.Dedup()
	return g
}

// BuildHierarchy returns a graph with an edge from every class to each of
// its resolved ancestors. Synthetic roots are included as nodes only when
// something extends them.
func BuildHierarchy(classes []*cache.CachedClass) *lattice.Graph {
	g := &lattice.Graph{}
	for _, c := range classes {
		g.Nodes = append(g.Nodes, c.Name())
		for _, a := range c.Ancestors {
			g.Edges = append(g.Edges, lattice.Edge{
				Caller: c.Name(),
				Callee: cache.ClassName(a),
			})
		}
	}
	g.Dedup()
	return g
}
