// Package output writes verification results to files.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"bcverify/internal/absint"
	"bcverify/internal/bcfmt"
	"bcverify/internal/disasm"
	"bcverify/internal/jobs"
)

// Summary counts methods by outcome.
type Summary struct {
	OK      int `json:"ok"`
	Warning int `json:"warning"`
	Error   int `json:"error"`
	Skipped int `json:"skipped"`
}

// MethodReport is the outcome of one method.
type MethodReport struct {
	Name       string       `json:"name"`
	Signature  string       `json:"signature"`
	Status     string       `json:"status"`
	Failed     string       `json:"failed_stage,omitempty"`
	Skipped    bool         `json:"skipped,omitempty"`
	DurationUS int64        `json:"duration_us"`
	Diags      []bcfmt.Diag `json:"diags,omitempty"`
}

// Report is the document written by verify --report.
type Report struct {
	RunID    string         `json:"run_id"`
	Started  time.Time      `json:"started"`
	Duration string         `json:"duration"`
	Files    []string       `json:"files"`
	Summary  Summary        `json:"summary"`
	Methods  []MethodReport `json:"methods"`
}

// NewReport builds a report from finished results. Each call gets a
// fresh run id.
func NewReport(files []string, results []jobs.Result, started time.Time) *Report {
	r := &Report{
		RunID:    uuid.NewString(),
		Started:  started.UTC(),
		Duration: time.Since(started).Round(time.Millisecond).String(),
		Files:    files,
		Methods:  make([]MethodReport, 0, len(results)),
	}
	for _, res := range results {
		switch {
		case res.Skipped:
			r.Summary.Skipped++
		case res.Status == absint.Error:
			r.Summary.Error++
		case res.Status == absint.Warning:
			r.Summary.Warning++
		default:
			r.Summary.OK++
		}
		r.Methods = append(r.Methods, MethodReport{
			Name:       res.Method.QualifiedName(),
			Signature:  res.Method.FullName(),
			Status:     res.Status.String(),
			Failed:     string(res.Failed),
			Skipped:    res.Skipped,
			DurationUS: res.Duration.Microseconds(),
			Diags:      res.Diags,
		})
	}
	return r
}

// Records flattens results into the JSONL record types used by the graph
// renderers.
func Records(results []jobs.Result) (methods []disasm.MethodRecord, diags []disasm.DiagRecord) {
	for _, res := range results {
		m := res.Method
		methods = append(methods, disasm.MethodRecord{
			Name:       m.QualifiedName(),
			Class:      m.Class.Name(),
			Size:       len(m.Bytecode),
			ParamCount: len(m.Params()),
			Status:     res.Status.String(),
		})
		for _, d := range res.Diags {
			rec := disasm.DiagRecord{
				Func:   m.QualifiedName(),
				Kind:   string(d.Kind),
				Msg:    d.Msg,
				Status: res.Status.String(),
			}
			if d.Offset >= 0 {
				rec.PC = fmt.Sprintf("0x%04x", d.Offset)
			}
			diags = append(diags, rec)
		}
	}
	return methods, diags
}

// WriteReport writes r as indented JSON.
func WriteReport(path string, r *Report) error {
	return writeJSON(path, r)
}

// WriteJSONL writes one JSON document per line to dir/name.
func WriteJSONL[T any](dir, name string, records []T) error {
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("output: encode %s: %w", path, err)
		}
	}
	return nil
}

// WriteASM writes a method listing to asm/<name>.txt.
func WriteASM(dir, name string, insts []disasm.Inst, annotators ...disasm.Annotator) error {
	path := filepath.Join(dir, "asm", name+".txt")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("output: mkdir asm: %w", err)
	}
	return os.WriteFile(path, []byte(disasm.FormatListing(insts, annotators...)), 0644)
}

// WriteDOT writes a DOT document to dir/<name>.dot.
func WriteDOT(dir, name, dot string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("output: mkdir %s: %w", dir, err)
	}
	return os.WriteFile(filepath.Join(dir, name+".dot"), []byte(dot), 0644)
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("output: encode %s: %w", path, err)
	}
	return nil
}
