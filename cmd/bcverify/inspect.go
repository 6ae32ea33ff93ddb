package main

import (
	"fmt"

	"bcverify/internal/absint"
	"bcverify/internal/cache"
	"bcverify/internal/callgraph"
	"bcverify/internal/config"
	"bcverify/internal/disasm"
	"bcverify/internal/jobs"
	"bcverify/internal/render"
)

// inspection is a single method verified in-process, kept with its job so
// listings and graphs can show checkpoints and diagnostics.
type inspection struct {
	method *cache.CachedMethod
	job    *jobs.Job
	status absint.Status
	insts  []disasm.Inst
}

func inspect(cfg *config.Config, c *cache.Cache, ts absint.TypeSystem, m *cache.CachedMethod) *inspection {
	j := jobs.NewJob(m, jobs.OptionsFor(cfg, m))
	status, _ := j.DoChecks(c, ts)
	return &inspection{
		method: m,
		job:    j,
		status: status,
		insts:  disasm.Disassemble(m.Bytecode, disasm.Options{Names: callgraph.FileNames(m.File)}),
	}
}

func (in *inspection) checkpoints() map[int]bool {
	out := make(map[int]bool)
	if in.job.Context == nil {
		return out
	}
	for _, off := range in.job.Context.Exec.CheckPoints() {
		out[off] = true
	}
	return out
}

func (in *inspection) marks() render.Marks {
	handlers := make(map[int]bool)
	for _, cb := range in.method.CatchBlocks {
		handlers[cb.HandlerPC] = true
	}
	return render.Marks{
		Status:      in.status.String(),
		Checkpoints: in.checkpoints(),
		Handlers:    handlers,
		Diags:       in.job.Diags.Items(),
	}
}

// offsetNotes labels checkpoints and diagnostic offsets for listings.
func (in *inspection) offsetNotes() map[int]string {
	notes := make(map[int]string)
	for off := range in.checkpoints() {
		notes[off] = "checkpoint"
	}
	for _, cb := range in.method.CatchBlocks {
		notes[cb.HandlerPC] = "handler"
	}
	for _, d := range in.job.Diags.Items() {
		if d.Offset >= 0 {
			notes[d.Offset] = fmt.Sprintf("%s: %s", d.Kind, d.Msg)
		}
	}
	return notes
}

func (in *inspection) cfg() disasm.FuncCFG {
	var handlers []disasm.Handler
	for _, cb := range in.method.CatchBlocks {
		handlers = append(handlers, disasm.Handler{TryStart: cb.TryStart, TryEnd: cb.TryEnd, Entry: cb.HandlerPC})
	}
	return disasm.BuildCFG(in.method.QualifiedName(), in.insts, handlers...)
}
