// Package config handles bcverify.toml verifier configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file looked up by FindAndLoad.
const FileName = "bcverify.toml"

// Stage names one step of a verification job.
type Stage string

const (
	StageResolve Stage = "resolve"
	StageCflow   Stage = "cflow"
	StageRetype  Stage = "retype"
	StageAbsint  Stage = "absint"
)

// Stages lists every stage in execution order.
var Stages = []Stage{StageResolve, StageCflow, StageRetype, StageAbsint}

// Config represents a bcverify.toml file.
type Config struct {
	Verify    Verify    `toml:"verify"`
	Debug     Debug     `toml:"debug"`
	Whitelist Whitelist `toml:"whitelist"`
	Log       Log       `toml:"log"`

	// Path is the file the configuration was read from (set at load time).
	Path string `toml:"-"`
}

// Verify configures the job scheduler and the checks it runs.
type Verify struct {
	Threads   int     `toml:"threads"`
	QueueSize int     `toml:"queue-size"`
	Strict    bool    `toml:"strict"`
	Stages    []Stage `toml:"stages"`
	MaxSteps  int     `toml:"max-steps"`
}

// Debug holds trace points: qualified method name -> code offsets.
type Debug struct {
	Breakpoints map[string][]int `toml:"breakpoints"`
}

// Whitelist selects methods by qualified name ("pkg.Class::method") or by
// class name ("pkg.Class").
type Whitelist struct {
	Skip []string `toml:"skip"`
	Only []string `toml:"only"`
}

// Log configures logging.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Verify: Verify{
			Threads:   runtime.NumCPU(),
			QueueSize: 1024,
			Stages:    slices.Clone(Stages),
		},
	}
}

// Load parses the configuration file at path over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	c := Default()
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.Path = path
	return c, nil
}

// FindAndLoad walks up from startDir to find a bcverify.toml file.
// Returns Default() if none is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}
	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

// Validate checks value ranges and stage names.
func (c *Config) Validate() error {
	if c.Verify.Threads < 1 {
		return fmt.Errorf("verify.threads must be positive, got %d", c.Verify.Threads)
	}
	if c.Verify.QueueSize < 1 {
		return fmt.Errorf("verify.queue-size must be positive, got %d", c.Verify.QueueSize)
	}
	if c.Verify.MaxSteps < 0 {
		return fmt.Errorf("verify.max-steps must not be negative, got %d", c.Verify.MaxSteps)
	}
	for _, s := range c.Verify.Stages {
		if !slices.Contains(Stages, s) {
			return fmt.Errorf("unknown stage %q", s)
		}
	}
	for name, offs := range c.Debug.Breakpoints {
		for _, off := range offs {
			if off < 0 {
				return fmt.Errorf("breakpoint %s: negative offset %d", name, off)
			}
		}
	}
	return nil
}

// Enabled reports whether stage runs. An empty stage list enables all.
func (v Verify) Enabled(s Stage) bool {
	return len(v.Stages) == 0 || slices.Contains(v.Stages, s)
}

// Verifies reports whether a method passes the whitelist. Skip wins over
// only; an empty only list admits everything.
func (w Whitelist) Verifies(qualified, class string) bool {
	match := func(list []string) bool {
		return slices.Contains(list, qualified) || slices.Contains(list, class)
	}
	if match(w.Skip) {
		return false
	}
	return len(w.Only) == 0 || match(w.Only)
}

// BreakpointsFor returns the trace offsets configured for a method.
func (d Debug) BreakpointsFor(qualified string) []int {
	return d.Breakpoints[qualified]
}
