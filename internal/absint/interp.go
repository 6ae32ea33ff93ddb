package absint

import (
	"fmt"

	"bcverify/internal/abcfile"
	"bcverify/internal/bcfmt"
	"bcverify/internal/cache"
	"bcverify/internal/cflow"
	"bcverify/internal/disasm"
)

// Status is the verdict for a method or a path through it.
type Status int

const (
	OK Status = iota
	Warning
	Error
)

func (s Status) String() string {
	switch s {
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	}
	return "OK"
}

// Worst returns the more severe of a and b.
func Worst(a, b Status) Status { return max(a, b) }

// Tables map instruction offsets to the entities their id operand names.
type Tables struct {
	Classes map[int]*cache.CachedClass
	Methods map[int]*cache.CachedMethod
	Fields  map[int]*cache.CachedField
}

// VerificationContext binds what interpreting one method needs.
type VerificationContext struct {
	Method *cache.CachedMethod
	Info   *cflow.MethodInfo
	Exec   *ExecContext
	Types  TypeSystem
	Tables Tables
	Diags  *bcfmt.Diags

	// Breakpoint, when set, runs before each instruction.
	Breakpoint func(offset int)

	maxSteps int
	steps    int

	lang                 abcfile.Lang
	params               []Type
	ret                  Type
	i32, i64, f64, vtype Type
}

// NewVerificationContext prepares m for interpretation with a fresh
// ExecContext.
func NewVerificationContext(m *cache.CachedMethod, info *cflow.MethodInfo, ts TypeSystem,
	tables Tables, diags *bcfmt.Diags, opts bcfmt.Options) *VerificationContext {
	v := &VerificationContext{
		Method:   m,
		Info:     info,
		Exec:     NewExecContext(),
		Types:    ts,
		Tables:   tables,
		Diags:    diags,
		maxSteps: opts.EffectiveMaxSteps(),
		lang:     m.Lang,
		i32:      ts.Primitive(abcfile.DescI32),
		i64:      ts.Primitive(abcfile.DescI64),
		f64:      ts.Primitive(abcfile.DescF64),
		vtype:    ts.Primitive(abcfile.DescVoid),
	}
	v.params, v.ret = ts.Signature(m)
	return v
}

// NumRegs is the number of addressable registers, arguments included.
func (v *VerificationContext) NumRegs() int { return v.Method.NumVregs + v.Method.NumArgs }

// EntryContext types the argument registers, which follow the locals.
func (v *VerificationContext) EntryContext() RegContext {
	ctx := NewRegContext()
	for i, t := range v.params {
		ctx.Set(v.Method.NumVregs+i, AbstractTypedValue{
			Type:   t,
			Value:  v.Exec.NewValue(),
			Origin: Origin{Kind: OriginParam, Offset: i},
		})
	}
	return ctx
}

// Seed marks jump targets, leaders after terminators, handler starts and
// exception sources as checkpoints, queues every target, and stores the
// entry context at offset 0.
func (v *VerificationContext) Seed() {
	ec := v.Exec
	handlers := make(map[int]bool, len(v.Info.Handlers))
	for _, h := range v.Info.Handlers {
		handlers[h.Start] = true
	}
	mark := func(addr int) {
		kind := MethodBody
		if handlers[addr] {
			kind = ExceptionHandler
		}
		ec.SetCheckPoint(addr)
		ec.AddEntryPoint(addr, kind)
	}
	for _, inst := range v.Info.Insts {
		if to, ok := v.Info.Jumps[inst.Addr]; ok {
			mark(to)
		}
		switch inst.Flow() {
		case disasm.FlowJump, disasm.FlowReturn, disasm.FlowThrow:
			if v.Info.IsBoundary(inst.End()) {
				mark(inst.End())
			}
		}
		if v.Info.IsExceptionSource(inst.Addr) {
			ec.SetCheckPoint(inst.Addr)
		}
	}
	for _, h := range v.Info.Handlers {
		mark(h.Start)
	}
	ec.Current = v.EntryContext()
	ec.StoreCurrentRegContextForAddr(0)
	ec.AddEntryPoint(0, MethodBody)
}

// Params returns the normalized parameter types, receiver first.
func (v *VerificationContext) Params() []Type { return v.params }

// Steps returns the number of instructions interpreted so far.
func (v *VerificationContext) Steps() int { return v.steps }

type verifyError struct {
	kind bcfmt.DiagKind
	msg  string
}

func (e *verifyError) Error() string { return e.msg }

func typingf(format string, args ...any) error {
	return &verifyError{bcfmt.DiagTyping, fmt.Sprintf(format, args...)}
}

func structuralf(format string, args ...any) error {
	return &verifyError{bcfmt.DiagStructural, fmt.Sprintf(format, args...)}
}

func linkagef(format string, args ...any) error {
	return &verifyError{bcfmt.DiagLinkage, fmt.Sprintf(format, args...)}
}

// Interpret follows one path from start with the context loaded in the
// ExecContext. The path ends at a return, a throw, an unconditional jump,
// or a checkpoint whose stored context already covers the current one.
func Interpret(v *VerificationContext, start int, kind EntryKind) Status {
	ec := v.Exec
	addr := start
	for first := true; ; first = false {
		inst, ok := v.Info.InstAt(addr)
		if !ok {
			v.Diags.Addf(addr, bcfmt.DiagStructural, "no instruction at 0x%04x", addr)
			return Error
		}
		if !first && ec.IsCheckPoint(addr) {
			if !ec.StoreCurrentRegContextForAddr(addr) {
				return OK
			}
			ec.LoadRegContextAt(addr)
		}
		v.steps++
		if v.steps > v.maxSteps {
			v.Diags.Addf(addr, bcfmt.DiagStructural, "step limit %d exceeded", v.maxSteps)
			return Error
		}
		if v.Breakpoint != nil {
			v.Breakpoint(addr)
		}
		if err := v.step(inst); err != nil {
			ve, _ := err.(*verifyError)
			if ve == nil {
				ve = &verifyError{bcfmt.DiagTyping, err.Error()}
			}
			v.Diags.Addf(addr, ve.kind, "%s: %s", inst.Text, ve.msg)
			return Error
		}
		switch inst.Flow() {
		case disasm.FlowJump:
			ec.ProcessJump(addr, inst.Target(), kind)
			return OK
		case disasm.FlowCondJump:
			ec.ProcessJump(addr, inst.Target(), kind)
		case disasm.FlowReturn, disasm.FlowThrow:
			return OK
		}
		addr = inst.End()
	}
}

// Drain interprets entry points until none is ready. It stops at the
// first Error and returns the entry points left without a context.
func Drain(v *VerificationContext) (Status, []EntryPoint) {
	for {
		e, st := v.Exec.GetEntryPointForChecking()
		switch st {
		case AllDone:
			return OK, nil
		case NoEntryPointsWithContext:
			return OK, v.Exec.Pending()
		}
		if s := Interpret(v, e.Addr, e.Kind); s == Error {
			return Error, nil
		}
	}
}

func (v *VerificationContext) describe(t Type) string { return v.Types.Describe(t) }

func (v *VerificationContext) checkReg(r int) error {
	if r != Acc && (r < 0 || r >= v.NumRegs()) {
		return structuralf("register v%d out of range, method has %d", r, v.NumRegs())
	}
	return nil
}

func (v *VerificationContext) get(r int) (AbstractTypedValue, error) {
	if err := v.checkReg(r); err != nil {
		return AbstractTypedValue{}, err
	}
	val, ok := v.Exec.Current.Get(r)
	if !ok {
		if v.Exec.Current.IsConflicting(r) {
			return val, typingf("%s has conflicting types on merged paths", RegName(r))
		}
		return val, typingf("%s is undefined", RegName(r))
	}
	return val, nil
}

func (v *VerificationContext) isInt(t Type) bool {
	return t != v.Types.Bot() && v.Types.IsSubtype(t, v.i32)
}

// assignable reports whether a value of type src may be stored where dst
// is declared. Integer slots take any integer up to i32.
func (v *VerificationContext) assignable(src, dst Type) bool {
	if v.isInt(dst) {
		return v.isInt(src)
	}
	return v.Types.IsSubtype(src, dst)
}

func (v *VerificationContext) expect(r int, want Type) (AbstractTypedValue, error) {
	val, err := v.get(r)
	if err != nil {
		return val, err
	}
	if !v.assignable(val.Type, want) {
		return val, typingf("%s: expected %s, got %s", RegName(r), v.describe(want), v.describe(val.Type))
	}
	return val, nil
}

func (v *VerificationContext) expectWide(r int) (AbstractTypedValue, error) {
	val, err := v.get(r)
	if err != nil {
		return val, err
	}
	if val.Type != v.i64 && val.Type != v.f64 {
		return val, typingf("%s: expected a 64-bit value, got %s", RegName(r), v.describe(val.Type))
	}
	return val, nil
}

func (v *VerificationContext) expectRef(r int) (AbstractTypedValue, error) {
	val, err := v.get(r)
	if err != nil {
		return val, err
	}
	if !v.Types.IsReference(val.Type) {
		return val, typingf("%s: expected a reference, got %s", RegName(r), v.describe(val.Type))
	}
	return val, nil
}

// expectArray checks r holds an array or null and returns its component,
// or Top for null.
func (v *VerificationContext) expectArray(r int) (Type, error) {
	val, err := v.get(r)
	if err != nil {
		return 0, err
	}
	if val.Type == v.Types.Null() {
		return v.Types.Top(), nil
	}
	if !v.Types.IsArray(val.Type) {
		return 0, typingf("%s: expected an array, got %s", RegName(r), v.describe(val.Type))
	}
	return v.Types.Component(val.Type), nil
}

func (v *VerificationContext) def(r int, t Type, addr int) error {
	if err := v.checkReg(r); err != nil {
		return err
	}
	v.Exec.Current.Set(r, AbstractTypedValue{
		Type:   t,
		Value:  v.Exec.NewValue(),
		Origin: Origin{Kind: OriginInst, Offset: addr},
	})
	return nil
}

func (v *VerificationContext) move(dst int, val AbstractTypedValue, addr int) error {
	if err := v.checkReg(dst); err != nil {
		return err
	}
	val.Origin = Origin{Kind: OriginInst, Offset: addr}
	v.Exec.Current.Set(dst, val)
	return nil
}

func (v *VerificationContext) class(inst disasm.Inst) (*cache.CachedClass, error) {
	if c := v.Tables.Classes[inst.Addr]; c != nil {
		return c, nil
	}
	return nil, linkagef("class id %d is not resolved", inst.ID)
}

func (v *VerificationContext) method(inst disasm.Inst) (*cache.CachedMethod, error) {
	if m := v.Tables.Methods[inst.Addr]; m != nil {
		return m, nil
	}
	return nil, linkagef("method id %d is not resolved", inst.ID)
}

func (v *VerificationContext) field(inst disasm.Inst, static bool) (*cache.CachedField, error) {
	f := v.Tables.Fields[inst.Addr]
	if f == nil {
		return nil, linkagef("field id %d is not resolved", inst.ID)
	}
	if f.IsStatic() != static {
		want := "an instance"
		if static {
			want = "a static"
		}
		return nil, typingf("%s is not %s field", f.FullName(), want)
	}
	return f, nil
}
