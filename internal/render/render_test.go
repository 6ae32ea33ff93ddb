package render

import (
	"bytes"
	"strings"
	"testing"

	"bcverify/internal/bcfmt"
	"bcverify/internal/disasm"
)

var (
	methods = []disasm.MethodRecord{
		{Name: "app.Main::run", Class: "app.Main", Status: "ERROR"},
		{Name: "app.Main::init", Class: "app.Main", Status: "OK"},
		{Name: "app.Util::log", Class: "app.Util", Status: "WARNING"},
		{Name: "app.Dead::code", Class: "app.Dead", Status: "OK"},
	}
	edges = []disasm.CallEdgeRecord{
		{FromFunc: "app.Main::run", FromPC: "0x0004", Kind: "call", Target: "app.Main::init"},
		{FromFunc: "app.Main::run", FromPC: "0x0008", Kind: "call.virt", Target: "app.Util::log"},
		{FromFunc: "app.Main::init", FromPC: "0x0002", Kind: "call", Target: "ext.Sys::exit"},
		{FromFunc: "app.Main::init", FromPC: "0x0006", Kind: "call"},
	}
)

func TestClassifyEdge(t *testing.T) {
	want := []string{KindDirect, KindVirtual, KindDirect, KindUnresolved}
	for i, e := range edges {
		if got := ClassifyEdge(e); got != want[i] {
			t.Errorf("edge %d: %s, want %s", i, got, want[i])
		}
	}
}

func TestCallgraphDOT(t *testing.T) {
	dot := CallgraphDOT(methods, edges, "calls", NASA, 0)
	for _, want := range []string{
		"cluster_" + dotID("app.Main"),
		dotID("app.Main::run") + " -> " + dotID("app.Util::log"),
		"shape=plaintext",
		NASA.ErrorFill,
		`style="dotted"`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q", want)
		}
	}
	if strings.Contains(dot, dotID("app.Dead::code")) {
		t.Error("method without edges rendered")
	}
	if dot != CallgraphDOT(methods, edges, "calls", NASA, 0) {
		t.Error("output not deterministic")
	}
}

func TestReachability(t *testing.T) {
	entries := FindEntryPoints(methods, edges)
	if strings.Join(entries, ",") != "app.Dead::code,app.Main::run" {
		t.Fatalf("entries = %v", entries)
	}
	reach := ReachableSet(entries, edges)
	for _, name := range []string{"app.Main::init", "app.Util::log", "ext.Sys::exit"} {
		if !reach[name] {
			t.Errorf("%s not reachable", name)
		}
	}
	dot := ReachabilityDOT(methods, edges, reach, entries, "", NASA)
	if !strings.Contains(dot, "penwidth=1.5") {
		t.Error("entry points not highlighted")
	}
}

func TestHierarchyDOT(t *testing.T) {
	dot := HierarchyDOT([]ClassNode{
		{Name: "app.Base", Super: "std.core.Object", Methods: 3},
		{Name: "app.Main", Super: "app.Base", Interfaces: []string{"app.Runner"}, Methods: 1, Failed: 1},
		{Name: "app.Runner", Interface: true},
	}, "classes", NASA)
	for _, want := range []string{
		dotID("app.Main") + " -> " + dotID("app.Base") + ";",
		dotID("app.Main") + " -> " + dotID("app.Runner") + " [style=dashed]",
		"1 failed",
		"shape=plaintext",
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q", want)
		}
	}
}

func TestCFGDOTMarks(t *testing.T) {
	code := disasm.NewEmitter().
		V(disasm.OpLda, 0).
		Jmp(disasm.OpJeqz, "h").
		Op(disasm.OpReturn).
		Label("h").
		Imm(disasm.OpLdai, 0).
		Op(disasm.OpReturn).
		MustBytes()
	insts, err := disasm.DecodeAll(code)
	if err != nil {
		t.Fatal(err)
	}
	cfg := disasm.BuildCFG("app.T::f", insts, disasm.Handler{TryStart: 0, TryEnd: 5, Entry: 6})
	dot := CFGDOT(cfg, Marks{
		Status:      "ERROR",
		Checkpoints: map[int]bool{6: true},
		Handlers:    map[int]bool{6: true},
		Diags:       []bcfmt.Diag{{Offset: 5, Kind: bcfmt.DiagTyping, Msg: "return: acc: expected i32, got f64"}},
	}, NASA)
	for _, want := range []string{"[ERROR]", "*0x0006", "! return: acc", NASA.ErrorFill, NASA.HandlerFill} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q", want)
		}
	}
}

func TestWriteIndexHTML(t *testing.T) {
	var buf bytes.Buffer
	diags := []disasm.DiagRecord{{Func: "app.Main::run", PC: "0x0004", Kind: "typing", Msg: "a < b", Status: "ERROR"}}
	stats := ComputeStats(methods, edges, diags)
	if stats.StatusCounts["OK"] != 2 || stats.KindCounts[KindUnresolved] != 1 || stats.Classes != 3 {
		t.Errorf("stats = %+v", stats)
	}
	WriteIndexHTML(&buf, stats, diags, "run", []Link{{"calls.svg", "Calls"}}, []string{"app.Main::run"})
	out := buf.String()
	for _, want := range []string{"<h1>run</h1>", "a &lt; b", `<a href="calls.svg">Calls</a>`} {
		if !strings.Contains(out, want) {
			t.Errorf("HTML missing %q", want)
		}
	}
	if SafeFileName("app.Main::run") != "app.Main__run" {
		t.Errorf("SafeFileName = %q", SafeFileName("app.Main::run"))
	}
}
