package main

import (
	"flag"
	"fmt"
	"os"

	"bcverify/internal/abcfile"
	"bcverify/internal/asm"
)

func cmdAssemble(args []string) error {
	fs := flag.NewFlagSet("assemble", flag.ExitOnError)
	in := fs.String("in", "", "assembly source (.bca)")
	out := fs.String("out", "", "output bytecode file (.abc)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *out == "" {
		return fmt.Errorf("--in and --out are required")
	}

	f, err := asm.AssembleFile(*in)
	if err != nil {
		return err
	}
	if err := abcfile.Write(*out, f); err != nil {
		return err
	}
	methods := 0
	for _, c := range f.Classes {
		methods += len(c.Methods)
	}
	fmt.Fprintf(os.Stderr, "%s: %d classes, %d methods\n", *out, len(f.Classes), methods)
	return nil
}
