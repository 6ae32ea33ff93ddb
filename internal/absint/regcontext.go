package absint

import (
	"fmt"
	"sort"
	"strings"
)

// Acc is the register index of the accumulator.
const Acc = -1

// ValueID names a symbolic value. Zero means unknown.
type ValueID uint32

// OriginKind tells where a register value came from.
type OriginKind uint8

const (
	OriginParam OriginKind = iota // method argument at entry
	OriginInst                    // defined by the instruction at Offset
	OriginMerge                   // several definitions met at a checkpoint
	OriginCatch                   // exception installed at a handler start
)

// Origin is the provenance of a register value.
type Origin struct {
	Kind   OriginKind
	Offset int
}

func (o Origin) String() string {
	switch o.Kind {
	case OriginParam:
		return "param"
	case OriginMerge:
		return "merge"
	case OriginCatch:
		return fmt.Sprintf("catch@0x%04x", o.Offset)
	}
	return fmt.Sprintf("@0x%04x", o.Offset)
}

// AbstractTypedValue is what the verifier knows about one register.
type AbstractTypedValue struct {
	Type   Type
	Value  ValueID
	Origin Origin
}

// RegContext maps registers to their abstract values. Registers whose
// inputs disagreed at a join are kept in a separate conflicting set.
type RegContext struct {
	regs     map[int]AbstractTypedValue
	conflict map[int]struct{}
}

// NewRegContext returns an empty context.
func NewRegContext() RegContext {
	return RegContext{regs: make(map[int]AbstractTypedValue)}
}

// Get returns the value of r.
func (c RegContext) Get(r int) (AbstractTypedValue, bool) {
	v, ok := c.regs[r]
	return v, ok
}

// Set defines r.
func (c *RegContext) Set(r int, v AbstractTypedValue) {
	if c.regs == nil {
		c.regs = make(map[int]AbstractTypedValue)
	}
	c.regs[r] = v
	delete(c.conflict, r)
}

// Undefine forgets r.
func (c *RegContext) Undefine(r int) {
	delete(c.regs, r)
	delete(c.conflict, r)
}

// IsConflicting reports whether r lost its value at a join.
func (c RegContext) IsConflicting(r int) bool {
	_, ok := c.conflict[r]
	return ok
}

// Len returns the number of defined registers.
func (c RegContext) Len() int { return len(c.regs) }

// Clone returns an independent copy.
func (c RegContext) Clone() RegContext {
	out := RegContext{regs: make(map[int]AbstractTypedValue, len(c.regs))}
	for r, v := range c.regs {
		out.regs[r] = v
	}
	if len(c.conflict) > 0 {
		out.conflict = make(map[int]struct{}, len(c.conflict))
		for r := range c.conflict {
			out.conflict[r] = struct{}{}
		}
	}
	return out
}

func (c *RegContext) markConflict(r int) {
	if c.conflict == nil {
		c.conflict = make(map[int]struct{})
	}
	c.conflict[r] = struct{}{}
}

// Join combines c and o. A register defined on both sides with the same
// type keeps it; its value and origin survive only where both sides agree.
// A register whose types differ, or that only one side defines, is marked
// inconsistent. Join is idempotent and commutative.
func (c RegContext) Join(o RegContext) RegContext {
	out := NewRegContext()
	for r := range c.conflict {
		out.markConflict(r)
	}
	for r := range o.conflict {
		out.markConflict(r)
	}
	for r, a := range c.regs {
		b, ok := o.regs[r]
		switch {
		case !ok:
			out.markConflict(r)
			out.regs[r] = inconsistent(a.Type)
		case a.Type != b.Type:
			out.markConflict(r)
			out.regs[r] = inconsistent(max(a.Type, b.Type))
		default:
			v := a
			if a.Value != b.Value {
				v.Value = 0
			}
			if a.Origin != b.Origin {
				v.Origin = Origin{Kind: OriginMerge}
			}
			out.regs[r] = v
		}
	}
	for r, b := range o.regs {
		if _, ok := c.regs[r]; !ok {
			out.markConflict(r)
			out.regs[r] = inconsistent(b.Type)
		}
	}
	return out
}

func inconsistent(t Type) AbstractTypedValue {
	return AbstractTypedValue{Type: t, Origin: Origin{Kind: OriginMerge}}
}

// RemoveInconsistentRegs makes inconsistent registers undefined. The
// conflict marks stay for diagnostics.
func (c *RegContext) RemoveInconsistentRegs() {
	for r := range c.conflict {
		delete(c.regs, r)
	}
}

// Equal reports whether both contexts hold the same registers, values
// and conflict marks.
func (c RegContext) Equal(o RegContext) bool {
	if len(c.regs) != len(o.regs) || len(c.conflict) != len(o.conflict) {
		return false
	}
	for r, v := range c.regs {
		if w, ok := o.regs[r]; !ok || w != v {
			return false
		}
	}
	for r := range c.conflict {
		if _, ok := o.conflict[r]; !ok {
			return false
		}
	}
	return true
}

// RegName renders a register index, "acc" for the accumulator.
func RegName(r int) string {
	if r == Acc {
		return "acc"
	}
	return fmt.Sprintf("v%d", r)
}

// Describe renders c with type names from ts.
func (c RegContext) Describe(ts TypeSystem) string {
	return c.format(ts.Describe)
}

func (c RegContext) String() string {
	return c.format(func(t Type) string { return fmt.Sprintf("t%d", t) })
}

func (c RegContext) format(name func(Type) string) string {
	keys := make([]int, 0, len(c.regs)+len(c.conflict))
	for r := range c.regs {
		keys = append(keys, r)
	}
	for r := range c.conflict {
		if _, ok := c.regs[r]; !ok {
			keys = append(keys, r)
		}
	}
	sort.Ints(keys)
	var b strings.Builder
	b.WriteByte('{')
	for i, r := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(RegName(r))
		b.WriteString(": ")
		v, ok := c.regs[r]
		switch {
		case !ok:
			b.WriteString("<conflict>")
		default:
			if c.IsConflicting(r) {
				b.WriteString("!")
			}
			b.WriteString(name(v.Type))
			if v.Value != 0 {
				fmt.Fprintf(&b, "#%d", v.Value)
			}
			b.WriteString(" ")
			b.WriteString(v.Origin.String())
		}
	}
	b.WriteByte('}')
	return b.String()
}
