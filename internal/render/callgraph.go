package render

import (
	"fmt"
	"sort"
	"strings"

	"bcverify/internal/disasm"
)

// Call edge categories.
const (
	KindDirect     = "direct"
	KindVirtual    = "virtual"
	KindUnresolved = "unresolved"
)

var callGraph = digraph{
	name:    "callgraph",
	rankdir: "LR",
	layout:  "compound=true; splines=true; nodesep=0.4; ranksep=0.6;",
	node:    "shape=rect, style=filled, " + sansFont + `, fontsize=9, height=0.3, margin="0.12,0.06"`,
	edge:    "penwidth=0.5, arrowsize=0.5, arrowhead=vee",
}

// ClassifyEdge returns the category of a call edge.
func ClassifyEdge(e disasm.CallEdgeRecord) string {
	switch {
	case e.Target == "":
		return KindUnresolved
	case e.Kind == "call.virt":
		return KindVirtual
	default:
		return KindDirect
	}
}

func edgeColor(kind string, t Theme) string {
	switch kind {
	case KindVirtual:
		return t.EdgeVirtual
	case KindUnresolved:
		return t.EdgeUnresolved
	default:
		return t.EdgeDirect
	}
}

func edgeStyle(kind string) string {
	switch kind {
	case KindVirtual:
		return "dotted"
	case KindUnresolved:
		return "dashed"
	default:
		return "solid"
	}
}

// CallgraphDOT renders a call graph of methods as DOT. Methods are
// clustered by class and filled by verification status; callees outside
// the method set are plaintext nodes. maxNodes limits the number of
// method nodes rendered (0 = all).
func CallgraphDOT(methods []disasm.MethodRecord, edges []disasm.CallEdgeRecord, title string, t Theme, maxNodes int) string {
	type edgeKey struct {
		from, to, kind string
	}
	counts := make(map[edgeKey]int)
	for _, e := range edges {
		kind := ClassifyEdge(e)
		target := e.Target
		if target == "" {
			target = "unresolved"
		}
		counts[edgeKey{e.FromFunc, target, kind}]++
	}

	refNodes := make(map[string]bool)
	for k := range counts {
		refNodes[k.from] = true
		refNodes[k.to] = true
	}
	var shown []disasm.MethodRecord
	for _, m := range methods {
		if refNodes[m.Name] {
			shown = append(shown, m)
		}
	}
	if maxNodes > 0 && len(shown) > maxNodes {
		shown = shown[:maxNodes]
	}
	known := make(map[string]bool, len(shown))
	for _, m := range shown {
		known[m.Name] = true
	}
	external := make(map[string]bool)
	for k := range counts {
		if known[k.from] && !known[k.to] {
			external[k.to] = true
		}
	}

	byClass := make(map[string][]disasm.MethodRecord)
	var loose []disasm.MethodRecord
	for _, m := range shown {
		if m.Class != "" {
			byClass[m.Class] = append(byClass[m.Class], m)
		} else {
			loose = append(loose, m)
		}
	}

	var b strings.Builder
	callGraph.open(&b, title, t)

	classes := make([]string, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Strings(classes)
	for _, class := range classes {
		ms := byClass[class]
		if len(ms) < 2 {
			loose = append(loose, ms...)
			continue
		}
		openCluster(&b, class, t)
		for _, m := range ms {
			fmt.Fprintf(&b, "    %s [label=%q, fillcolor=%q];\n",
				dotID(m.Name), truncLabel(stripClass(m.Name), 50), statusFill(m.Status, t))
		}
		b.WriteString("  }\n")
	}
	for _, m := range loose {
		fmt.Fprintf(&b, "  %s [label=%q, fillcolor=%q];\n",
			dotID(m.Name), truncLabel(m.Name, 60), statusFill(m.Status, t))
	}
	b.WriteByte('\n')

	ext := make([]string, 0, len(external))
	for name := range external {
		ext = append(ext, name)
	}
	sort.Strings(ext)
	for _, name := range ext {
		fmt.Fprintf(&b, "  %s [label=%q, shape=plaintext, style=\"\", fillcolor=none, fontcolor=%q, fontsize=8];\n",
			dotID(name), truncLabel(name, 50), t.ExternalText)
	}
	b.WriteByte('\n')

	keys := make([]edgeKey, 0, len(counts))
	for k := range counts {
		if known[k.from] {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].from != keys[j].from {
			return keys[i].from < keys[j].from
		}
		if keys[i].to != keys[j].to {
			return keys[i].to < keys[j].to
		}
		return keys[i].kind < keys[j].kind
	})
	for _, k := range keys {
		n := counts[k]
		color := edgeColor(k.kind, t)
		attrs := fmt.Sprintf("color=%q, style=%q", color, edgeStyle(k.kind))
		if n > 1 {
			attrs += fmt.Sprintf(", penwidth=%.1f", 0.5+float64(n)*0.1)
			if n > 2 {
				attrs += fmt.Sprintf(", label=<<font point-size=\"7\" color=\"%s\">%dx</font>>", color, n)
			}
		}
		fmt.Fprintf(&b, "  %s -> %s [%s];\n", dotID(k.from), dotID(k.to), attrs)
	}

	b.WriteString("}\n")
	return b.String()
}

// Stats summarizes a verification run.
type Stats struct {
	Methods      int
	Classes      int
	Edges        int
	KindCounts   map[string]int
	StatusCounts map[string]int
	DiagCounts   map[string]int // by diag kind
	TopCallers   []NameCount    // sorted desc
	TopCallees   []NameCount    // sorted desc
	TopClasses   []NameCount    // sorted desc by method count
}

// NameCount pairs a name with a count.
type NameCount struct {
	Name  string
	Count int
}

// ComputeStats computes run statistics from method, edge and diag records.
func ComputeStats(methods []disasm.MethodRecord, edges []disasm.CallEdgeRecord, diags []disasm.DiagRecord) Stats {
	stats := Stats{
		Methods:      len(methods),
		Edges:        len(edges),
		KindCounts:   make(map[string]int),
		StatusCounts: make(map[string]int),
		DiagCounts:   make(map[string]int),
	}

	callers := make(map[string]int)
	callees := make(map[string]int)
	for _, e := range edges {
		stats.KindCounts[ClassifyEdge(e)]++
		callers[e.FromFunc]++
		if e.Target != "" {
			callees[e.Target]++
		}
	}

	perClass := make(map[string]int)
	for _, m := range methods {
		if m.Class != "" {
			perClass[m.Class]++
		}
		if m.Status != "" {
			stats.StatusCounts[m.Status]++
		}
	}
	for _, d := range diags {
		stats.DiagCounts[d.Kind]++
	}
	stats.Classes = len(perClass)

	stats.TopCallers = topN(callers, 20)
	stats.TopCallees = topN(callees, 20)
	stats.TopClasses = topN(perClass, 30)
	return stats
}

// topN returns the top n entries of m, by count descending then name.
func topN(m map[string]int, n int) []NameCount {
	entries := make([]NameCount, 0, len(m))
	for name, count := range m {
		entries = append(entries, NameCount{name, count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Name < entries[j].Name
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
