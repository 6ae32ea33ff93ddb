// Package render produces Graphviz DOT and HTML views of verification
// results: per-method CFGs, call graphs and the class hierarchy.
package render

import (
	"fmt"
	"strings"
)

// dotEscape escapes a string for use in DOT HTML labels.
func dotEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}

// dotID creates a safe DOT identifier from a method or class name.
func dotID(name string) string {
	var b strings.Builder
	b.WriteString("n_")
	for _, c := range name {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteRune(c)
		} else {
			fmt.Fprintf(&b, "_%04x", c)
		}
	}
	return b.String()
}

// classOf returns the class part of a qualified method name.
// "app.Main::run" → "app.Main".
func classOf(qualified string) string {
	if i := strings.Index(qualified, "::"); i >= 0 {
		return qualified[:i]
	}
	return ""
}

// stripClass removes the class prefix from a qualified method name.
func stripClass(qualified string) string {
	if i := strings.Index(qualified, "::"); i >= 0 {
		return qualified[i+2:]
	}
	return qualified
}

// truncLabel shortens a label to maxLen, appending "..." if truncated.
func truncLabel(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// statusFill returns the node fill for a verification status.
func statusFill(status string, t Theme) string {
	switch status {
	case "ERROR":
		return t.ErrorFill
	case "WARNING":
		return t.WarningFill
	}
	return t.NodeFill
}

// digraph holds the preamble attributes of a rendered graph.
type digraph struct {
	name, rankdir string
	layout        string
	node, edge    string
}

const (
	sansFont = `fontname="Helvetica Neue,Helvetica,Arial"`
	monoFont = `fontname="Courier,monospace"`
)

// open writes the graph header, the themed node and edge defaults, and a
// top-left title when title is set.
func (g digraph) open(b *strings.Builder, title string, t Theme) {
	fmt.Fprintf(b, "digraph %s {\n  rankdir=%s;\n", g.name, g.rankdir)
	if g.layout != "" {
		fmt.Fprintf(b, "  %s\n", g.layout)
	}
	fmt.Fprintf(b, "  bgcolor=%q;\n", t.Background)
	fmt.Fprintf(b, "  node [%s, fillcolor=%q, color=%q, penwidth=0.5, fontcolor=%q];\n",
		g.node, t.NodeFill, t.NodeBorder, t.TextColor)
	fmt.Fprintf(b, "  edge [%s];\n", g.edge)
	if title != "" {
		b.WriteString("  labelloc=t;\n  labeljust=l;\n")
		fmt.Fprintf(b, "  label=<<font face=\"Helvetica Neue,Helvetica\" point-size=\"8\" color=\"%s\">%s</font>>;\n",
			t.TextColor, dotEscape(title))
	}
	b.WriteByte('\n')
}

// openCluster starts a dotted subgraph grouping the members of class.
func openCluster(b *strings.Builder, class string, t Theme) {
	fmt.Fprintf(b, "  subgraph cluster_%s {\n", dotID(class))
	fmt.Fprintf(b, "    label=<<font point-size=\"8\" color=\"%s\">%s</font>>;\n", t.ClusterLabel, dotEscape(class))
	fmt.Fprintf(b, "    style=dotted; color=%q; penwidth=0.3;\n", t.ClusterBorder)
}
