package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"bcverify/internal/absint"
	"bcverify/internal/cache"
	"bcverify/internal/config"
	"bcverify/internal/jobs"
	"bcverify/internal/output"
	"bcverify/internal/typesys"
)

func cmdVerify(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	cf := addCommonFlags(fs)
	threads := fs.Int("threads", 0, "verification workers, overrides the config file")
	method := fs.String("method", "", "only verify methods whose qualified name contains this")
	strict := fs.Bool("strict", false, "stop accepting work after the first failing method")
	report := fs.String("report", "", "write a JSON report to this path")
	quiet := fs.Bool("q", false, "print only failures and the summary")
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
	if *threads > 0 {
		cfg.Verify.Threads = *threads
	}
	if *strict {
		cfg.Verify.Strict = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	started := time.Now()
	c, files, err := loadCache(paths)
	if err != nil {
		return err
	}
	methods := selectMethods(c, files, *method)
	if len(methods) == 0 {
		return fmt.Errorf("no methods selected")
	}

	results, err := runService(cfg, c, methods)
	if err != nil {
		return err
	}
	r := output.NewReport(paths, results, started)
	printResults(results, *quiet)
	fmt.Fprintf(os.Stderr, "%d methods: %d ok, %d warning, %d error, %d skipped (%s)\n",
		len(results), r.Summary.OK, r.Summary.Warning, r.Summary.Error, r.Summary.Skipped, r.Duration)
	if cfg.Verify.Strict && len(results) < len(methods) {
		fmt.Fprintf(os.Stderr, "strict: %d methods not verified\n", len(methods)-len(results))
	}

	if *report != "" {
		if err := output.WriteReport(*report, r); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "report %s written to %s\n", r.RunID, *report)
	}
	if r.Summary.Error > 0 {
		return errFailed
	}
	return nil
}

// runService verifies methods on a worker pool and returns the results
// ordered by method name.
func runService(cfg *config.Config, c *cache.Cache, methods []*cache.CachedMethod) ([]jobs.Result, error) {
	svc := jobs.New(cfg, c, func() absint.TypeSystem { return typesys.New(c) })
	if err := svc.Start(); err != nil {
		return nil, err
	}
	defer svc.Shutdown()
	for _, m := range methods {
		if !svc.Enqueue(m) {
			log.Warningf("stopped enqueueing at %s", m.QualifiedName())
			break
		}
	}
	svc.Wait()
	return svc.Results(), nil
}

func printResults(results []jobs.Result, quiet bool) {
	for _, r := range results {
		if quiet && r.Status == absint.OK {
			continue
		}
		if r.Skipped {
			fmt.Printf("SKIP     %s\n", r.Method.QualifiedName())
			continue
		}
		fmt.Printf("%-8s %s\n", r.Status, r.Method.FullName())
		for _, d := range r.Diags {
			fmt.Printf("         %s\n", d)
		}
	}
}
