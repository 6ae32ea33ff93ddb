package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"bcverify/internal/abcfile"
	"bcverify/internal/asm"
	"bcverify/internal/cache"
	"bcverify/internal/config"
)

// errFailed reports that verification ran and found errors; the
// diagnostics have already been printed.
var errFailed = errors.New("verification failed")

var log = commonlog.GetLogger("bcverify")

// commonFlags are shared by the commands that load bytecode.
type commonFlags struct {
	in        *string
	config    *string
	verbosity *int
	logFile   *string
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		in:        fs.String("in", "", "input files, comma separated (.abc, or .bca to assemble)"),
		config:    fs.String("config", "", "path to "+config.FileName),
		verbosity: fs.Int("v", -1, "log verbosity, overrides the config file"),
		logFile:   fs.String("log", "", "log file, overrides the config file"),
	}
}

func (f *commonFlags) inputs() ([]string, error) {
	if *f.in == "" {
		return nil, fmt.Errorf("--in is required")
	}
	var paths []string
	for _, p := range strings.Split(*f.in, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return paths, nil
}

// loadConfig reads the configuration and starts logging with it.
func (f *commonFlags) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if *f.config != "" {
		cfg, err = config.Load(*f.config)
	} else {
		var wd string
		if wd, err = os.Getwd(); err == nil {
			cfg, err = config.FindAndLoad(wd)
		}
	}
	if err != nil {
		return nil, err
	}
	if *f.verbosity >= 0 {
		cfg.Log.Verbosity = *f.verbosity
	}
	if *f.logFile != "" {
		cfg.Log.File = *f.logFile
	}
	configureLogging(cfg.Log)
	if cfg.Path != "" {
		log.Infof("using %s", cfg.Path)
	}
	return cfg, nil
}

func configureLogging(l config.Log) {
	var path *string
	if l.File != "" {
		path = &l.File
	}
	commonlog.Configure(l.Verbosity, path)
}

// loadFiles reads .abc containers and assembles .bca sources.
func loadFiles(paths []string) ([]*abcfile.File, error) {
	var files []*abcfile.File
	for _, p := range paths {
		var f *abcfile.File
		var err error
		if filepath.Ext(p) == ".bca" {
			f, err = asm.AssembleFile(p)
		} else {
			f, err = abcfile.Read(p)
		}
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// loadCache loads paths into a fresh symbol cache.
func loadCache(paths []string) (*cache.Cache, []*abcfile.File, error) {
	files, err := loadFiles(paths)
	if err != nil {
		return nil, nil, err
	}
	c := cache.New()
	c.ProcessFiles(files...)
	return c, files, nil
}

// selectMethods returns the methods of files, filtered by a substring of
// the qualified name when filter is set.
func selectMethods(c *cache.Cache, files []*abcfile.File, filter string) []*cache.CachedMethod {
	var out []*cache.CachedMethod
	for _, f := range files {
		for _, m := range c.MethodsOf(f) {
			if filter == "" || strings.Contains(m.QualifiedName(), filter) {
				out = append(out, m)
			}
		}
	}
	return out
}
