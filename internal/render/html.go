package render

import (
	"fmt"
	"io"
	"strings"

	"bcverify/internal/disasm"
)

// Link is a rendered artifact referenced from the index page.
type Link struct {
	Href, Label string
}

// WriteIndexHTML writes a small HTML page summarizing a verification run:
// status counts, diagnostics of failing methods and links to the graphs.
func WriteIndexHTML(w io.Writer, stats Stats, diags []disasm.DiagRecord, title string, links []Link, entryPoints []string) {
	fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: "Helvetica Neue", Helvetica, Arial, sans-serif; font-size: 14px; color: #1A1A1A; background: #F5F5F5; margin: 2em; max-width: 900px; }
h1 { font-size: 18px; font-weight: 600; margin-bottom: 0.5em; }
h2 { font-size: 14px; font-weight: 600; margin-top: 1.5em; border-bottom: 1px solid #ddd; padding-bottom: 4px; }
table { border-collapse: collapse; margin: 0.5em 0; }
th, td { text-align: left; padding: 3px 12px 3px 0; font-size: 13px; }
th { font-weight: 600; }
td.num { text-align: right; font-variant-numeric: tabular-nums; }
.swatch { display: inline-block; width: 10px; height: 10px; border-radius: 2px; margin-right: 4px; vertical-align: middle; }
a { color: #0B3D91; }
.bar { height: 8px; border-radius: 2px; display: inline-block; vertical-align: middle; }
.mono { font-family: "Courier New", monospace; font-size: 12px; }
</style>
</head>
<body>
`, htmlEscape(title))

	fmt.Fprintf(w, "<h1>%s</h1>\n", htmlEscape(title))

	fmt.Fprintln(w, "<h2>Summary</h2>")
	fmt.Fprintln(w, "<table>")
	fmt.Fprintf(w, "<tr><td>Methods</td><td class=\"num\">%d</td></tr>\n", stats.Methods)
	fmt.Fprintf(w, "<tr><td>Classes</td><td class=\"num\">%d</td></tr>\n", stats.Classes)
	fmt.Fprintf(w, "<tr><td>Call sites</td><td class=\"num\">%d</td></tr>\n", stats.Edges)
	fmt.Fprintf(w, "<tr><td>Entry points</td><td class=\"num\">%d</td></tr>\n", len(entryPoints))
	fmt.Fprintln(w, "</table>")

	fmt.Fprintln(w, "<h2>Status</h2>")
	fmt.Fprintln(w, "<table>")
	for _, s := range []string{"OK", "WARNING", "ERROR"} {
		count := stats.StatusCounts[s]
		color := statusFill(s, NASA)
		barW := 0
		if stats.Methods > 0 {
			barW = max(count*200/stats.Methods, 2)
		}
		fmt.Fprintf(w, "<tr><td><span class=\"swatch\" style=\"background:%s;border:1px solid #ccc\"></span></td><td>%s</td><td class=\"num\">%d</td><td><span class=\"bar\" style=\"width:%dpx;background:%s;border:1px solid #ccc\"></span></td></tr>\n",
			color, s, count, barW, color)
	}
	fmt.Fprintln(w, "</table>")

	fmt.Fprintln(w, "<h2>Graphs</h2>")
	fmt.Fprint(w, "<p>")
	if len(links) == 0 {
		fmt.Fprint(w, `<span style="color:#9E9E9E">no graphs rendered</span>`)
	}
	for i, l := range links {
		if i > 0 {
			fmt.Fprint(w, " | ")
		}
		fmt.Fprintf(w, `<a href="%s">%s</a>`, htmlEscape(l.Href), htmlEscape(l.Label))
	}
	fmt.Fprintln(w, "</p>")

	if len(diags) > 0 {
		fmt.Fprintln(w, "<h2>Diagnostics</h2>")
		fmt.Fprintln(w, "<table>")
		fmt.Fprintln(w, "<tr><th>Method</th><th>Offset</th><th>Kind</th><th>Message</th></tr>")
		limit := min(len(diags), 200)
		for _, d := range diags[:limit] {
			fmt.Fprintf(w, "<tr><td class=\"mono\">%s</td><td class=\"mono\">%s</td><td>%s</td><td>%s</td></tr>\n",
				htmlEscape(d.Func), htmlEscape(d.PC), htmlEscape(d.Kind), htmlEscape(d.Msg))
		}
		if len(diags) > limit {
			fmt.Fprintf(w, "<tr><td>... and %d more</td></tr>\n", len(diags)-limit)
		}
		fmt.Fprintln(w, "</table>")
	}

	if len(stats.TopClasses) > 0 {
		fmt.Fprintln(w, "<h2>Top Classes</h2>")
		fmt.Fprintln(w, "<table>")
		fmt.Fprintln(w, "<tr><th>Class</th><th>Methods</th></tr>")
		for _, nc := range stats.TopClasses[:min(len(stats.TopClasses), 20)] {
			fmt.Fprintf(w, "<tr><td>%s</td><td class=\"num\">%d</td></tr>\n", htmlEscape(nc.Name), nc.Count)
		}
		fmt.Fprintln(w, "</table>")
	}

	if len(stats.TopCallees) > 0 {
		fmt.Fprintln(w, "<h2>Top Callees</h2>")
		fmt.Fprintln(w, "<table>")
		fmt.Fprintln(w, "<tr><th>Method</th><th>Incoming</th></tr>")
		for _, nc := range stats.TopCallees[:min(len(stats.TopCallees), 15)] {
			fmt.Fprintf(w, "<tr><td class=\"mono\">%s</td><td class=\"num\">%d</td></tr>\n", htmlEscape(nc.Name), nc.Count)
		}
		fmt.Fprintln(w, "</table>")
	}

	fmt.Fprintln(w, "</body></html>")
}

func htmlEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}

// SafeFileName converts a method name to a file name.
func SafeFileName(name string) string {
	r := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	s := r.Replace(name)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
