package render

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// ClassNode is one class of a hierarchy view.
type ClassNode struct {
	Name       string
	Super      string // empty for roots
	Interfaces []string
	Interface  bool
	Methods    int
	Failed     int // methods that verified with ERROR
}

// HierarchyDOT renders the class hierarchy with an edge from each class
// to its superclass (solid) and interfaces (dashed). Node height grows with
// the method count; classes with failing methods are filled. Ancestors
// outside classes are drawn as plaintext.
func HierarchyDOT(classes []ClassNode, title string, t Theme) string {
	known := make(map[string]bool, len(classes))
	maxMethods := 1
	for _, c := range classes {
		known[c.Name] = true
		maxMethods = max(maxMethods, c.Methods)
	}
	external := make(map[string]bool)
	for _, c := range classes {
		for _, p := range append([]string{c.Super}, c.Interfaces...) {
			if p != "" && !known[p] {
				external[p] = true
			}
		}
	}

	var b strings.Builder
	digraph{
		name:    "hierarchy",
		rankdir: "BT",
		layout:  "splines=true; nodesep=0.5; ranksep=0.6;",
		node:    `shape=rect, style="filled,rounded", ` + sansFont + `, fontsize=10, height=0.4, margin="0.15,0.08"`,
		edge:    fmt.Sprintf("penwidth=0.5, arrowsize=0.6, arrowhead=empty, color=%q", t.EdgeDirect),
	}.open(&b, title, t)

	sorted := append([]ClassNode(nil), classes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	for _, c := range sorted {
		// Log scale keeps large classes from dwarfing the rest.
		height := 0.4 + 0.3*math.Log2(float64(c.Methods)+1)/math.Log2(float64(maxMethods)+1)
		sub := fmt.Sprintf("%d methods", c.Methods)
		if c.Failed > 0 {
			sub += fmt.Sprintf(", %d failed", c.Failed)
		}
		label := fmt.Sprintf("<<font point-size=\"10\">%s</font><br/><font point-size=\"7\" color=\"%s\">%s</font>>",
			dotEscape(c.Name), t.ExternalText, sub)
		attrs := fmt.Sprintf("height=%.2f", height)
		if c.Failed > 0 {
			attrs += fmt.Sprintf(", fillcolor=%q", t.ErrorFill)
		}
		if c.Interface {
			attrs += ", style=\"filled,rounded,dashed\""
		}
		fmt.Fprintf(&b, "  %s [label=%s, %s];\n", dotID(c.Name), label, attrs)
	}

	ext := make([]string, 0, len(external))
	for name := range external {
		ext = append(ext, name)
	}
	sort.Strings(ext)
	for _, name := range ext {
		fmt.Fprintf(&b, "  %s [label=%q, shape=plaintext, style=\"\", fillcolor=none, fontcolor=%q, fontsize=8];\n",
			dotID(name), name, t.ExternalText)
	}
	b.WriteByte('\n')

	for _, c := range sorted {
		if c.Super != "" {
			fmt.Fprintf(&b, "  %s -> %s;\n", dotID(c.Name), dotID(c.Super))
		}
		for _, i := range c.Interfaces {
			fmt.Fprintf(&b, "  %s -> %s [style=dashed];\n", dotID(c.Name), dotID(i))
		}
	}

	b.WriteString("}\n")
	return b.String()
}
