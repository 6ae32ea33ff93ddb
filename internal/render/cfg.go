package render

import (
	"fmt"
	"strings"

	"bcverify/internal/bcfmt"
	"bcverify/internal/disasm"
)

// Marks annotates a CFG with verifier state. Offsets are bytes.
type Marks struct {
	Status      string // OK, WARNING or ERROR; empty when not verified
	Checkpoints map[int]bool
	Handlers    map[int]bool // handler entry offsets
	Diags       []bcfmt.Diag
}

func (m Marks) diagsAt(off int) []bcfmt.Diag {
	var out []bcfmt.Diag
	for _, d := range m.Diags {
		if d.Offset == off {
			out = append(out, d)
		}
	}
	return out
}

// CFGDOT renders a per-method basic-block CFG as DOT. Checkpoint
// instructions are marked with '*', handler entries are filled, and the
// instruction a diagnostic points at carries its message.
func CFGDOT(cfg disasm.FuncCFG, m Marks, t Theme) string {
	if len(cfg.Blocks) == 0 {
		return ""
	}

	var b strings.Builder
	title := cfg.Name
	if m.Status != "" {
		title += "  [" + m.Status + "]"
	}
	digraph{
		name:    "cfg",
		rankdir: "TB",
		layout:  "nodesep=0.3; ranksep=0.4;",
		node:    "shape=rect, style=filled, " + monoFont + `, fontsize=8, margin="0.08,0.04"`,
		edge:    "penwidth=0.7, arrowsize=0.5, arrowhead=vee",
	}.open(&b, title, t)

	for _, blk := range cfg.Blocks {
		id := fmt.Sprintf("bb%d", blk.ID)
		end := min(blk.End, len(cfg.Insts))

		var lines []string
		fill := ""
		for i := blk.Start; i < end; i++ {
			inst := cfg.Insts[i]
			mark := " "
			if m.Checkpoints[inst.Addr] {
				mark = "*"
			}
			line := dotEscape(fmt.Sprintf("%s0x%04x: %s", mark, inst.Addr, inst.Text))
			if m.Checkpoints[inst.Addr] {
				line = fmt.Sprintf("<font color=\"%s\">%s</font>", t.CheckpointMark, line)
			}
			lines = append(lines, line)
			for _, d := range m.diagsAt(inst.Addr) {
				color := t.EdgeUnresolved
				if d.Kind.Fatal() {
					fill = t.ErrorFill
				} else {
					color = t.ExternalText
					if fill == "" {
						fill = t.WarningFill
					}
				}
				lines = append(lines, fmt.Sprintf("<font color=\"%s\">  ! %s</font>", color, dotEscape(truncLabel(d.Msg, 80))))
			}
		}
		// Long blocks keep their head and tail.
		if len(lines) > 16 {
			kept := append(lines[:6:6], fmt.Sprintf("... (%d more)", len(lines)-12))
			lines = append(kept, lines[len(lines)-6:]...)
		}
		label := strings.Join(lines, "<br align=\"left\"/>") + "<br align=\"left\"/>"

		attrs := ""
		if blk.IsEntry {
			attrs = fmt.Sprintf(", penwidth=1.5, color=%q", t.EdgeTaken)
		}
		if fill == "" && blk.End > blk.Start && m.Handlers[cfg.Insts[blk.Start].Addr] {
			fill = t.HandlerFill
		}
		if fill != "" {
			attrs += fmt.Sprintf(", fillcolor=%q", fill)
		}
		fmt.Fprintf(&b, "  %s [label=<%s>%s];\n", id, label, attrs)
	}
	b.WriteByte('\n')

	for _, blk := range cfg.Blocks {
		from := fmt.Sprintf("bb%d", blk.ID)
		for _, s := range blk.Succs {
			to := fmt.Sprintf("bb%d", s.BlockID)
			switch s.Cond {
			case "T":
				fmt.Fprintf(&b, "  %s -> %s [color=%q, label=<<font point-size=\"7\" color=\"%s\">T</font>>];\n",
					from, to, t.EdgeTaken, t.EdgeTaken)
			case "F":
				fmt.Fprintf(&b, "  %s -> %s [color=%q, label=<<font point-size=\"7\" color=\"%s\">F</font>>];\n",
					from, to, t.EdgeFallthrough, t.EdgeFallthrough)
			case "E":
				fmt.Fprintf(&b, "  %s -> %s [color=%q, style=dashed];\n", from, to, t.EdgeException)
			default:
				fmt.Fprintf(&b, "  %s -> %s [color=%q];\n", from, to, t.EdgeDirect)
			}
		}
	}

	b.WriteString("}\n")
	return b.String()
}
