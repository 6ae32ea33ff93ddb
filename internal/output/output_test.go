package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"bcverify/internal/absint"
	"bcverify/internal/asm"
	"bcverify/internal/bcfmt"
	"bcverify/internal/cache"
	"bcverify/internal/config"
	"bcverify/internal/jobs"
)

func results(t *testing.T) []jobs.Result {
	t.Helper()
	f := asm.MustAssemble("out.abc", `
.class Lapp/Main;
.method static a ()V regs=0
    return.void
.end
.method static b ()V regs=0
    return.void
.end
.method static c ()V regs=0
    return.void
.end
`)
	c := cache.New()
	c.ProcessFile(f)
	ms := c.MethodsOf(f)
	return []jobs.Result{
		{Method: ms[0], Status: absint.OK, Duration: 3 * time.Microsecond},
		{Method: ms[1], Status: absint.Error, Failed: config.StageAbsint,
			Diags: []bcfmt.Diag{{Offset: 4, Kind: bcfmt.DiagTyping, Msg: "return: acc is undefined"}}},
		{Method: ms[2], Status: absint.OK, Skipped: true,
			Diags: []bcfmt.Diag{{Offset: -1, Kind: bcfmt.DiagSkipped, Msg: "whitelisted"}}},
	}
}

func TestReport(t *testing.T) {
	r := NewReport([]string{"out.abc"}, results(t), time.Now())
	if _, err := uuid.Parse(r.RunID); err != nil {
		t.Errorf("run id %q: %v", r.RunID, err)
	}
	if r.Summary != (Summary{OK: 1, Error: 1, Skipped: 1}) {
		t.Errorf("summary = %+v", r.Summary)
	}
	if r.Methods[1].Failed != "absint" || r.Methods[1].Signature != "app.Main::b : void()" {
		t.Errorf("method report = %+v", r.Methods[1])
	}

	path := filepath.Join(t.TempDir(), "report.json")
	if err := WriteReport(path, r); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var back Report
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.RunID != r.RunID || len(back.Methods) != 3 || back.Methods[1].Diags[0].Kind != bcfmt.DiagTyping {
		t.Errorf("round trip = %+v", back)
	}
	if NewReport(nil, nil, time.Now()).RunID == r.RunID {
		t.Error("run ids repeat")
	}
}

func TestRecordsAndJSONL(t *testing.T) {
	methods, diags := Records(results(t))
	if len(methods) != 3 || methods[1].Status != "ERROR" || methods[1].Class != "app.Main" {
		t.Errorf("methods = %+v", methods)
	}
	if len(diags) != 2 || diags[0].PC != "0x0004" || diags[1].PC != "" {
		t.Errorf("diags = %+v", diags)
	}

	dir := t.TempDir()
	if err := WriteJSONL(dir, "methods.jsonl", methods); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "methods.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Split(strings.TrimSpace(string(data)), "\n"); len(lines) != 3 {
		t.Errorf("got %d lines", len(lines))
	}

	if err := WriteDOT(filepath.Join(dir, "cfg"), "app.Main__a", "digraph {}\n"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "cfg", "app.Main__a.dot")); err != nil {
		t.Error(err)
	}
}
