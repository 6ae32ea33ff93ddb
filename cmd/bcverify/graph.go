package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	latrender "github.com/zboralski/lattice/render"

	"bcverify/internal/abcfile"
	"bcverify/internal/absint"
	"bcverify/internal/cache"
	"bcverify/internal/callgraph"
	"bcverify/internal/disasm"
	"bcverify/internal/jobs"
	"bcverify/internal/output"
	"bcverify/internal/render"
)

func cmdGraph(args []string) error {
	fs := flag.NewFlagSet("graph", flag.ExitOnError)
	cf := addCommonFlags(fs)
	outDir := fs.String("out", "", "output directory")
	maxNodes := fs.Int("max-nodes", 0, "limit methods in calls.dot (0 = all)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *outDir == "" {
		return fmt.Errorf("--out is required")
	}
	paths, err := cf.inputs()
	if err != nil {
		return err
	}
	cfg, err := cf.loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(*outDir, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", *outDir, err)
	}
	c, files, err := loadCache(paths)
	if err != nil {
		return err
	}
	methods := selectMethods(c, files, "")
	results, err := runService(cfg, c, methods)
	if err != nil {
		return err
	}

	var funcs []callgraph.FuncInfo
	var edgeRecs []disasm.CallEdgeRecord
	for _, m := range methods {
		if !m.HasCode() {
			continue
		}
		fi := callgraph.FromMethod(m, callgraph.FileNames(m.File))
		funcs = append(funcs, fi)
		for _, e := range fi.CallEdges {
			edgeRecs = append(edgeRecs, disasm.CallEdgeRecord{
				FromFunc: fi.Name,
				FromPC:   fmt.Sprintf("0x%04x", e.FromPC),
				Kind:     e.Kind,
				Target:   e.TargetName,
			})
		}
	}
	methodRecs, diagRecs := output.Records(results)
	classes := classNodes(c, files, results)

	entries := render.FindEntryPoints(methodRecs, edgeRecs)
	reachable := render.ReachableSet(entries, edgeRecs)
	title := filepath.Base(paths[0])

	dots := []struct{ name, dot string }{
		{"callgraph", latrender.DOT(callgraph.BuildCallGraph(funcs), title+" call graph")},
		{"classes", latrender.DOT(callgraph.BuildHierarchy(allClasses(c, files)), title+" classes")},
		{"calls", render.CallgraphDOT(methodRecs, edgeRecs, title+" calls", render.NASA, *maxNodes)},
		{"hierarchy", render.HierarchyDOT(classes, title+" hierarchy", render.NASA)},
		{"reachable", render.ReachabilityDOT(methodRecs, edgeRecs, reachable, entries, title+" reachable", render.NASA)},
	}
	var links []render.Link
	for _, d := range dots {
		if err := output.WriteDOT(*outDir, d.name, d.dot); err != nil {
			return err
		}
		links = append(links, render.Link{Href: d.name + ".svg", Label: d.name})
	}

	if err := output.WriteJSONL(*outDir, "methods.jsonl", methodRecs); err != nil {
		return err
	}
	if err := output.WriteJSONL(*outDir, "call_edges.jsonl", edgeRecs); err != nil {
		return err
	}
	if err := output.WriteJSONL(*outDir, "diags.jsonl", diagRecs); err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(*outDir, "index.html"))
	if err != nil {
		return err
	}
	defer f.Close()
	stats := render.ComputeStats(methodRecs, edgeRecs, diagRecs)
	render.WriteIndexHTML(f, stats, diagRecs, title, links, entries)

	fmt.Fprintf(os.Stderr, "%d methods, %d call sites, %d classes -> %s\n",
		len(methodRecs), len(edgeRecs), len(classes), *outDir)
	fmt.Fprintf(os.Stderr, "render with: dot -Tsvg %s/calls.dot -o %s/calls.svg\n", *outDir, *outDir)
	return nil
}

// classNodes summarizes every class of files with its verification
// outcome. Ancestors list interfaces first, then the superclass.
func classNodes(c *cache.Cache, files []*abcfile.File, results []jobs.Result) []render.ClassNode {
	failed := make(map[*cache.CachedClass]int)
	for _, r := range results {
		if r.Status == absint.Error {
			failed[r.Method.Class]++
		}
	}
	var out []render.ClassNode
	for _, cls := range allClasses(c, files) {
		if err := c.LinkClass(cls); err != nil {
			log.Warningf("%v", err)
		}
		n := render.ClassNode{
			Name:      cls.Name(),
			Interface: cls.Has(cache.ClassInterface),
			Methods:   len(c.DeclaredMethods(cls)),
			Failed:    failed[cls],
		}
		for i, a := range cls.Ancestors {
			if i == len(cls.Ancestors)-1 && !n.Interface {
				n.Super = cache.ClassName(a)
			} else {
				n.Interfaces = append(n.Interfaces, cache.ClassName(a))
			}
		}
		out = append(out, n)
	}
	return out
}

func allClasses(c *cache.Cache, files []*abcfile.File) []*cache.CachedClass {
	var out []*cache.CachedClass
	for _, f := range files {
		out = append(out, c.ClassesOf(f)...)
	}
	return out
}
