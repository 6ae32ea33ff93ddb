package render

import (
	"fmt"
	"sort"
	"strings"

	"bcverify/internal/disasm"
)

// FindEntryPoints returns methods no other method in the set calls.
func FindEntryPoints(methods []disasm.MethodRecord, edges []disasm.CallEdgeRecord) []string {
	called := make(map[string]bool)
	for _, e := range edges {
		if e.Target != "" && e.Target != e.FromFunc {
			called[e.Target] = true
		}
	}
	var entries []string
	for _, m := range methods {
		if !called[m.Name] {
			entries = append(entries, m.Name)
		}
	}
	sort.Strings(entries)
	return entries
}

// ReachableSet performs BFS from entry points along resolved call edges
// and returns every reachable method name.
func ReachableSet(entryPoints []string, edges []disasm.CallEdgeRecord) map[string]bool {
	adj := make(map[string][]string)
	for _, e := range edges {
		if e.Target != "" {
			adj[e.FromFunc] = append(adj[e.FromFunc], e.Target)
		}
	}

	reachable := make(map[string]bool)
	queue := make([]string, 0, len(entryPoints))
	for _, ep := range entryPoints {
		if !reachable[ep] {
			reachable[ep] = true
			queue = append(queue, ep)
		}
	}
	for len(queue) > 0 {
		fn := queue[0]
		queue = queue[1:]
		for _, target := range adj[fn] {
			if !reachable[target] {
				reachable[target] = true
				queue = append(queue, target)
			}
		}
	}
	return reachable
}

// ReachabilityDOT renders the call graph restricted to the reachable set.
// Entry points get a heavy border; nodes are filled by status.
func ReachabilityDOT(methods []disasm.MethodRecord, edges []disasm.CallEdgeRecord, reachable map[string]bool, entryPoints []string, title string, t Theme) string {
	entrySet := make(map[string]bool, len(entryPoints))
	for _, ep := range entryPoints {
		entrySet[ep] = true
	}
	status := make(map[string]string, len(methods))
	for _, m := range methods {
		status[m.Name] = m.Status
	}

	type edgeKey struct{ from, to string }
	edgeCount := make(map[edgeKey]int)
	for _, e := range edges {
		if e.Target == "" || !reachable[e.FromFunc] || !reachable[e.Target] {
			continue
		}
		edgeCount[edgeKey{e.FromFunc, e.Target}]++
	}

	nodes := make(map[string]bool)
	for k := range edgeCount {
		nodes[k.from] = true
		nodes[k.to] = true
	}
	for _, ep := range entryPoints {
		nodes[ep] = true
	}

	byClass := make(map[string][]string)
	for name := range nodes {
		byClass[classOf(name)] = append(byClass[classOf(name)], name)
	}
	classes := make([]string, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Strings(classes)

	var b strings.Builder
	g := callGraph
	g.name = "reachable"
	g.edge += fmt.Sprintf(", color=%q", t.EdgeDirect)
	g.open(&b, title, t)

	writeNode := func(indent, name, label string) {
		attrs := fmt.Sprintf("label=%q, fillcolor=%q", label, statusFill(status[name], t))
		if entrySet[name] {
			attrs += fmt.Sprintf(", penwidth=1.5, color=%q", t.EdgeTaken)
		}
		fmt.Fprintf(&b, "%s%s [%s];\n", indent, dotID(name), attrs)
	}

	for _, class := range classes {
		names := byClass[class]
		sort.Strings(names)
		if class == "" || len(names) < 2 {
			for _, name := range names {
				writeNode("  ", name, truncLabel(name, 50))
			}
			continue
		}
		openCluster(&b, class, t)
		for _, name := range names {
			writeNode("    ", name, truncLabel(stripClass(name), 50))
		}
		b.WriteString("  }\n")
	}
	b.WriteByte('\n')

	keys := make([]edgeKey, 0, len(edgeCount))
	for k := range edgeCount {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].from != keys[j].from {
			return keys[i].from < keys[j].from
		}
		return keys[i].to < keys[j].to
	})
	for _, k := range keys {
		attrs := ""
		if n := edgeCount[k]; n > 1 {
			attrs = fmt.Sprintf(" [penwidth=%.1f]", 0.5+float64(n)*0.1)
		}
		fmt.Fprintf(&b, "  %s -> %s%s;\n", dotID(k.from), dotID(k.to), attrs)
	}

	b.WriteString("}\n")
	return b.String()
}
