package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "assemble":
		err = cmdAssemble(os.Args[2:])
	case "verify":
		err = cmdVerify(os.Args[2:])
	case "disasm":
		err = cmdDisasm(os.Args[2:])
	case "cflow":
		err = cmdCflow(os.Args[2:])
	case "graph":
		err = cmdGraph(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if errors.Is(err, errFailed) {
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `bcverify - ahead-of-time bytecode verifier

Usage:
  bcverify assemble --in <file.bca> --out <file.abc>   Assemble text into a bytecode file
  bcverify verify   --in <file>[,<file>...]             Verify every method
  bcverify disasm   --in <file> [--out <dir>]           Annotated listing per method
  bcverify cflow    --in <file> --out <dir>             Per-method CFG with verifier marks
  bcverify graph    --in <file>[,<file>...] --out <dir> Call graph, class hierarchy, report

Inputs ending in .bca are assembled on the fly.

Flags:
  --config <path>     bcverify.toml to use (default: searched upward from cwd)
  --threads <n>       Verification workers
  --method <name>     Only verify methods whose qualified name matches
  --strict            Stop accepting work after the first failing method
  --report <path>     Write a JSON report (verify)
  -v <n>              Log verbosity (0 errors only .. 4 debug)
  --log <path>        Log file (default stderr)
`)
}
