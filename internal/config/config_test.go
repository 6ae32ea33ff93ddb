package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, t.TempDir(), `
[verify]
threads = 3
strict = true
stages = ["resolve", "cflow"]

[debug.breakpoints]
"app.Main::run" = [0, 12]

[whitelist]
skip = ["app.Generated"]
only = ["app.Main", "lib.Util::hash"]

[log]
verbosity = 2
file = "verify.log"
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Verify.Threads != 3 || !c.Verify.Strict || c.Verify.QueueSize != 1024 {
		t.Errorf("verify = %+v", c.Verify)
	}
	if c.Verify.Enabled(StageAbsint) || !c.Verify.Enabled(StageCflow) {
		t.Errorf("stages = %v", c.Verify.Stages)
	}
	if got := c.Debug.BreakpointsFor("app.Main::run"); !reflect.DeepEqual(got, []int{0, 12}) {
		t.Errorf("breakpoints = %v", got)
	}
	if c.Log.Verbosity != 2 || c.Log.File != "verify.log" || c.Path != path {
		t.Errorf("log = %+v path = %s", c.Log, c.Path)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name, content, want string
	}{
		{"syntax", "[verify\n", "parse error"},
		{"unknown key", "[verify]\nthreds = 2\n", "unknown key verify.threds"},
		{"bad stage", "[verify]\nstages = [\"link\"]\n", `unknown stage "link"`},
		{"zero threads", "[verify]\nthreads = 0\n", "threads must be positive"},
		{"negative offset", "[debug.breakpoints]\n\"a::b\" = [-1]\n", "negative offset"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, t.TempDir(), tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("missing file loaded")
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "[verify]\nthreads = 5\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	c, err := FindAndLoad(nested)
	if err != nil {
		t.Fatal(err)
	}
	if c.Verify.Threads != 5 {
		t.Errorf("threads = %d, want 5", c.Verify.Threads)
	}
}

func TestDefault(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	for _, s := range Stages {
		if !c.Verify.Enabled(s) {
			t.Errorf("stage %s disabled by default", s)
		}
	}
}

func TestWhitelist(t *testing.T) {
	w := Whitelist{Skip: []string{"app.Gen", "app.Main::slow"}, Only: []string{"app.Main", "app.Gen"}}
	tests := []struct {
		qualified, class string
		want             bool
	}{
		{"app.Main::run", "app.Main", true},
		{"app.Main::slow", "app.Main", false},
		{"app.Gen::x", "app.Gen", false},
		{"lib.Other::y", "lib.Other", false},
	}
	for _, tt := range tests {
		if got := w.Verifies(tt.qualified, tt.class); got != tt.want {
			t.Errorf("Verifies(%s) = %v, want %v", tt.qualified, got, tt.want)
		}
	}
	if !(Whitelist{}).Verifies("x::y", "x") {
		t.Error("empty whitelist rejects")
	}
}
