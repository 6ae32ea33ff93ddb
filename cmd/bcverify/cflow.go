package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	latrender "github.com/zboralski/lattice/render"

	"bcverify/internal/callgraph"
	"bcverify/internal/output"
	"bcverify/internal/render"
	"bcverify/internal/typesys"
)

func cmdCflow(args []string) error {
	fs := flag.NewFlagSet("cflow", flag.ExitOnError)
	cf := addCommonFlags(fs)
	outDir := fs.String("out", "", "output directory")
	method := fs.String("method", "", "only render methods whose qualified name contains this")
	combined := fs.Bool("combined", false, "also write one lattice CFG of every method to cfg_all.dot")
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
	c, files, err := loadCache(paths)
	if err != nil {
		return err
	}
	ts := typesys.New(c)

	var funcs []callgraph.FuncInfo
	written := 0
	for _, m := range selectMethods(c, files, *method) {
		if !m.HasCode() {
			continue
		}
		in := inspect(cfg, c, ts, m)
		dot := render.CFGDOT(in.cfg(), in.marks(), render.NASA)
		if dot == "" {
			log.Warningf("%s: no instructions decoded", m.QualifiedName())
			continue
		}
		if err := output.WriteDOT(filepath.Join(*outDir, "cfg"), render.SafeFileName(m.QualifiedName()), dot); err != nil {
			return err
		}
		written++
		funcs = append(funcs, callgraph.FromMethod(m, callgraph.FileNames(m.File)))
	}
	if *combined && len(funcs) > 0 {
		dot := latrender.DOTCFG(callgraph.BuildCFG(funcs), "bcverify CFG")
		if err := output.WriteDOT(*outDir, "cfg_all", dot); err != nil {
			return err
		}
	}
	fmt.Fprintf(os.Stderr, "%d CFGs written to %s\n", written, filepath.Join(*outDir, "cfg"))
	return nil
}
