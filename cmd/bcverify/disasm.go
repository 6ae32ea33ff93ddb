package main

import (
	"flag"
	"fmt"
	"os"

	"bcverify/internal/disasm"
	"bcverify/internal/output"
	"bcverify/internal/render"
	"bcverify/internal/typesys"
)

func cmdDisasm(args []string) error {
	fs := flag.NewFlagSet("disasm", flag.ExitOnError)
	cf := addCommonFlags(fs)
	outDir := fs.String("out", "", "write asm/<method>.txt files here instead of stdout")
	method := fs.String("method", "", "only list methods whose qualified name contains this")
	verify := fs.Bool("verify", true, "verify each method and annotate checkpoints and diagnostics")
	if err := fs.Parse(args); err != nil {
		return err
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

	written := 0
	for _, m := range selectMethods(c, files, *method) {
		if !m.HasCode() {
			continue
		}
		in := inspect(cfg, c, ts, m)
		annotators := []disasm.Annotator{disasm.TargetAnnotator(in.insts)}
		if *verify {
			annotators = append([]disasm.Annotator{disasm.OffsetAnnotator(in.offsetNotes())}, annotators...)
		}
		if *outDir != "" {
			if err := output.WriteASM(*outDir, render.SafeFileName(m.QualifiedName()), in.insts, annotators...); err != nil {
				return err
			}
			written++
			continue
		}
		fmt.Printf("# %s  regs=%d args=%d", m.FullName(), m.NumVregs, m.NumArgs)
		if *verify {
			fmt.Printf("  [%s]", in.status)
		}
		fmt.Printf("\n%s\n", disasm.FormatListing(in.insts, annotators...))
	}
	if *outDir != "" {
		fmt.Fprintf(os.Stderr, "%d listings written to %s\n", written, *outDir)
	}
	return nil
}
