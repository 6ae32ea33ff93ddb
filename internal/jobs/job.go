// Package jobs verifies methods: one Job per method, run by a Service's
// worker pool against a shared symbol cache.
package jobs

import (
	"errors"
	"fmt"
	"time"

	"github.com/tliron/commonlog"

	"bcverify/internal/absint"
	"bcverify/internal/bcfmt"
	"bcverify/internal/cache"
	"bcverify/internal/cflow"
	"bcverify/internal/config"
	"bcverify/internal/disasm"
)

var log = commonlog.GetLogger("bcverify.jobs")

// Result is the outcome of verifying one method.
type Result struct {
	Method   *cache.CachedMethod
	Status   absint.Status
	Diags    []bcfmt.Diag
	Duration time.Duration
	Skipped  bool
	Failed   config.Stage // stage that reported an error, if any
}

// Options select the checks a Job runs.
type Options struct {
	Stages      []config.Stage // empty means all
	MaxSteps    int
	Breakpoints []int
}

// OptionsFor derives the job options for m from cfg.
func OptionsFor(cfg *config.Config, m *cache.CachedMethod) Options {
	return Options{
		Stages:      cfg.Verify.Stages,
		MaxSteps:    cfg.Verify.MaxSteps,
		Breakpoints: cfg.Debug.BreakpointsFor(m.QualifiedName()),
	}
}

func (o Options) enabled(s config.Stage) bool {
	return config.Verify{Stages: o.Stages}.Enabled(s)
}

// Job binds a method to the facts gathered while verifying it.
type Job struct {
	Method  *cache.CachedMethod
	Info    *cflow.MethodInfo
	Tables  absint.Tables
	Diags   bcfmt.Diags
	Context *absint.VerificationContext

	opts  Options
	insts []disasm.Inst
}

// NewJob prepares a job for m.
func NewJob(m *cache.CachedMethod, opts Options) *Job {
	return &Job{
		Method: m,
		Tables: absint.Tables{
			Classes: make(map[int]*cache.CachedClass),
			Methods: make(map[int]*cache.CachedMethod),
			Fields:  make(map[int]*cache.CachedField),
		},
		opts: opts,
	}
}

// DoChecks runs the enabled stages in order and stops at the first that
// fails. It returns the method's status and the failing stage.
func (j *Job) DoChecks(c *cache.Cache, ts absint.TypeSystem) (absint.Status, config.Stage) {
	if err := c.LinkMethod(j.Method); err != nil {
		j.Diags.Addf(-1, bcfmt.DiagLinkage, "%v", err)
		return absint.Error, config.StageResolve
	}
	if !j.Method.HasCode() {
		return absint.OK, ""
	}
	stages := []struct {
		stage config.Stage
		needs []config.Stage
		run   func() absint.Status
	}{
		{config.StageResolve, nil, func() absint.Status { return j.resolve(c) }},
		{config.StageCflow, nil, j.buildCflow},
		{config.StageRetype, []config.Stage{config.StageResolve}, func() absint.Status { return j.retype(ts) }},
		{config.StageAbsint, []config.Stage{config.StageResolve, config.StageCflow}, func() absint.Status { return j.interpret(ts) }},
	}
	status := absint.OK
	for _, s := range stages {
		if !j.opts.enabled(s.stage) {
			continue
		}
		ready := true
		for _, n := range s.needs {
			ready = ready && j.opts.enabled(n)
		}
		if !ready {
			log.Debugf("%s: stage %s skipped, it needs %v", j.Method.QualifiedName(), s.stage, s.needs)
			continue
		}
		status = absint.Worst(status, s.run())
		if status == absint.Error {
			return status, s.stage
		}
	}
	return status, ""
}

// resolve links every class, method and field the code names and records
// them by instruction offset.
func (j *Job) resolve(c *cache.Cache) absint.Status {
	insts, err := disasm.DecodeAll(j.Method.Bytecode)
	if err != nil {
		var de *disasm.DecodeError
		off := -1
		if errors.As(err, &de) {
			off = de.Offset
		}
		j.Diags.Addf(off, bcfmt.DiagStructural, "%v", err)
		return absint.Error
	}
	j.insts = insts
	status := absint.OK
	fail := func(inst disasm.Inst, err error) {
		j.Diags.Addf(inst.Addr, bcfmt.DiagLinkage, "%s: %v", inst.Text, err)
		status = absint.Error
	}
	for _, inst := range insts {
		idx := int(inst.ID)
		switch inst.Info().ID {
		case disasm.IDClass:
			cls, err := c.ClassAt(j.Method, idx)
			if err != nil {
				fail(inst, err)
				continue
			}
			j.Tables.Classes[inst.Addr] = cls
		case disasm.IDMethod:
			m, err := c.MethodAt(j.Method, idx)
			if err != nil {
				fail(inst, err)
				continue
			}
			j.Tables.Methods[inst.Addr] = m
		case disasm.IDField:
			f, err := c.FieldAt(j.Method, idx)
			if err != nil {
				fail(inst, err)
				continue
			}
			j.Tables.Fields[inst.Addr] = f
		case disasm.IDString:
			if _, err := c.StringAt(j.Method, idx); err != nil {
				fail(inst, err)
			}
		}
	}
	return status
}

func (j *Job) buildCflow() absint.Status {
	info, err := cflow.Build(j.Method)
	if err != nil {
		off := -1
		var ce *cflow.Error
		if errors.As(err, &ce) {
			off = ce.Offset
		}
		j.Diags.Addf(off, bcfmt.DiagStructural, "%v", err)
		return absint.Error
	}
	j.Info = info
	return absint.OK
}

// retype interns the types of everything resolved and rejects signatures
// that still mention unresolved classes.
func (j *Job) retype(ts absint.TypeSystem) absint.Status {
	status := absint.OK
	check := func(off int, what string, t absint.Type) {
		if t == ts.Top() {
			j.Diags.Addf(off, bcfmt.DiagLinkage, "%s has an unresolved type", what)
			status = absint.Error
		}
	}
	params, ret := ts.Signature(j.Method)
	for i, p := range params {
		check(-1, fmt.Sprintf("parameter %d", i), p)
	}
	check(-1, "return", ret)
	for _, inst := range j.insts {
		off := inst.Addr
		if cls := j.Tables.Classes[off]; cls != nil {
			check(off, cls.Name(), ts.TypeOf(cls))
		}
		if m := j.Tables.Methods[off]; m != nil {
			params, ret := ts.Signature(m)
			for _, p := range params {
				check(off, m.QualifiedName(), p)
			}
			check(off, m.QualifiedName(), ret)
		}
		if f := j.Tables.Fields[off]; f != nil {
			check(off, f.FullName(), ts.TypeOf(f.Type.Class()))
		}
	}
	for _, cb := range j.Method.CatchBlocks {
		if !cb.CatchAll {
			check(cb.HandlerPC, "catch type "+cache.ClassName(cb.ExceptionType), ts.TypeOf(cb.ExceptionType.Class()))
		}
	}
	return status
}

func (j *Job) interpret(ts absint.TypeSystem) absint.Status {
	v := absint.NewVerificationContext(j.Method, j.Info, ts, j.Tables, &j.Diags,
		bcfmt.Options{MaxSteps: j.opts.MaxSteps})
	v.Breakpoint = breakpointFunc(j.Method, j.opts.Breakpoints)
	j.Context = v
	return VerifyMethod(v)
}
