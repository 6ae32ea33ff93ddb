// Package cflow reconstructs the control-flow facts of one method: where
// instructions start, where jumps go, which instructions can reach a
// handler, and how the code splits into body, try and handler blocks.
package cflow

import (
	"errors"
	"fmt"
	"sort"

	"bcverify/internal/cache"
	"bcverify/internal/disasm"
)

// ErrorKind classifies a control-flow error.
type ErrorKind int

const (
	ErrNoCode ErrorKind = iota
	ErrDecode
	ErrOverrun
	ErrBadJump
	ErrFallOff
	ErrBadHandler
)

var errorKindNames = [...]string{
	ErrNoCode:     "no code",
	ErrDecode:     "bad instruction",
	ErrOverrun:    "instruction exceeds code",
	ErrBadJump:    "jump target is not an instruction start",
	ErrFallOff:    "execution falls off the end of code",
	ErrBadHandler: "bad exception handler range",
}

func (k ErrorKind) String() string {
	if int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is a structural defect at a code offset.
type Error struct {
	Offset int
	Kind   ErrorKind
	Msg    string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("0x%04x: %s", e.Offset, e.Kind)
	}
	return fmt.Sprintf("0x%04x: %s: %s", e.Offset, e.Kind, e.Msg)
}

func errorf(off int, kind ErrorKind, format string, args ...any) *Error {
	return &Error{Offset: off, Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// BlockKind tells what a block covers.
type BlockKind int

const (
	BlockBody BlockKind = iota
	BlockTry
	BlockHandler
)

func (k BlockKind) String() string {
	switch k {
	case BlockTry:
		return "try"
	case BlockHandler:
		return "handler"
	}
	return "body"
}

// Block is a byte range [Start, End) of one kind.
type Block struct {
	Kind       BlockKind
	Start, End int
}

// Handler describes one catch block.
type Handler struct {
	TryStart, TryEnd int
	CatchAll         bool
	Type             cache.ClassRef
	Start, End       int // handler code range
}

// MethodInfo holds the control-flow facts of one method. It is immutable
// once built.
type MethodInfo struct {
	Code     []byte
	Insts    []disasm.Inst
	Jumps    map[int]int // source offset -> target offset
	Handlers []Handler   // ascending by handler start
	Blocks   []Block     // ascending by start

	index      map[int]int // instruction start -> index into Insts
	excSources []int       // ascending
}

// InstAt returns the instruction starting at addr.
func (mi *MethodInfo) InstAt(addr int) (disasm.Inst, bool) {
	i, ok := mi.index[addr]
	if !ok {
		return disasm.Inst{}, false
	}
	return mi.Insts[i], true
}

// IsBoundary reports whether an instruction starts at addr.
func (mi *MethodInfo) IsBoundary(addr int) bool {
	_, ok := mi.index[addr]
	return ok
}

// IsExceptionSource reports whether the instruction at addr can throw into
// a handler.
func (mi *MethodInfo) IsExceptionSource(addr int) bool {
	i := sort.SearchInts(mi.excSources, addr)
	return i < len(mi.excSources) && mi.excSources[i] == addr
}

// ExceptionSources returns the exception sources in [start, end).
func (mi *MethodInfo) ExceptionSources(start, end int) []int {
	lo := sort.SearchInts(mi.excSources, start)
	hi := sort.SearchInts(mi.excSources, end)
	return mi.excSources[lo:hi]
}

// Build decodes m's code and checks its structure.
func Build(m *cache.CachedMethod) (*MethodInfo, error) {
	if !m.HasCode() || len(m.Bytecode) == 0 {
		return nil, &Error{Kind: ErrNoCode, Msg: m.Name}
	}
	mi := &MethodInfo{
		Code:  m.Bytecode,
		Jumps: make(map[int]int),
		index: make(map[int]int),
	}
	if err := mi.scan(); err != nil {
		return nil, err
	}
	if err := mi.classify(); err != nil {
		return nil, err
	}
	if err := mi.handlers(m.CatchBlocks); err != nil {
		return nil, err
	}
	mi.partition()
	return mi, nil
}

// scan records every instruction start and length.
func (mi *MethodInfo) scan() error {
	for off := 0; off < len(mi.Code); {
		inst, err := decodeAt(mi.Code, off)
		if err != nil {
			return err
		}
		mi.index[off] = len(mi.Insts)
		mi.Insts = append(mi.Insts, inst)
		off = inst.End()
	}
	return nil
}

func decodeAt(code []byte, off int) (disasm.Inst, error) {
	inst, err := disasm.Decode(code, off)
	if err != nil {
		kind := ErrDecode
		if errors.Is(err, disasm.ErrTruncated) {
			kind = ErrOverrun
		}
		return inst, &Error{Offset: off, Kind: kind, Msg: err.Error()}
	}
	return inst, nil
}

// classify decodes the code again from its first byte, now that every
// boundary is known, and records jump edges.
func (mi *MethodInfo) classify() error {
	var last disasm.Inst
	for off := 0; off < len(mi.Code); off = last.End() {
		inst, err := decodeAt(mi.Code, off)
		if err != nil {
			return err
		}
		if !mi.IsBoundary(off) {
			return errorf(off, ErrDecode, "instruction at 0x%04x was not seen by the boundary scan", off)
		}
		switch inst.Flow() {
		case disasm.FlowJump, disasm.FlowCondJump:
			target := inst.Target()
			if !mi.IsBoundary(target) {
				return errorf(inst.Addr, ErrBadJump, "%s to 0x%04x", inst.Mnemonic, target)
			}
			mi.Jumps[inst.Addr] = target
		}
		last = inst
	}
	switch last.Flow() {
	case disasm.FlowNormal, disasm.FlowCondJump:
		return errorf(last.Addr, ErrFallOff, "last instruction is %s", last.Mnemonic)
	}
	return nil
}

// boundary accepts instruction starts and the end of code.
func (mi *MethodInfo) boundary(addr int) bool {
	return addr == len(mi.Code) || mi.IsBoundary(addr)
}

func (mi *MethodInfo) handlers(catches []cache.CatchBlock) error {
	for _, cb := range catches {
		h := Handler{
			TryStart: cb.TryStart,
			TryEnd:   cb.TryEnd,
			CatchAll: cb.CatchAll,
			Type:     cb.ExceptionType,
			Start:    cb.HandlerPC,
			End:      cb.HandlerPC + cb.HandlerSize,
		}
		if h.TryStart >= h.TryEnd || !mi.IsBoundary(h.TryStart) || !mi.boundary(h.TryEnd) {
			return errorf(h.TryStart, ErrBadHandler, "try range [0x%04x, 0x%04x)", h.TryStart, h.TryEnd)
		}
		if h.Start >= h.End || !mi.IsBoundary(h.Start) || !mi.boundary(h.End) {
			return errorf(h.Start, ErrBadHandler, "handler range [0x%04x, 0x%04x)", h.Start, h.End)
		}
		mi.Handlers = append(mi.Handlers, h)
	}
	sort.SliceStable(mi.Handlers, func(i, j int) bool { return mi.Handlers[i].Start < mi.Handlers[j].Start })

	seen := make(map[int]bool)
	for _, h := range mi.Handlers {
		for _, inst := range mi.instsIn(h.TryStart, h.TryEnd) {
			if inst.CanThrow() && !seen[inst.Addr] {
				seen[inst.Addr] = true
				mi.excSources = append(mi.excSources, inst.Addr)
			}
		}
	}
	sort.Ints(mi.excSources)
	return nil
}

func (mi *MethodInfo) instsIn(start, end int) []disasm.Inst {
	lo := mi.index[start]
	hi := len(mi.Insts)
	if i, ok := mi.index[end]; ok {
		hi = i
	}
	return mi.Insts[lo:hi]
}

// partition splits the code into try and handler blocks, one per distinct
// range, and body blocks covering what is left.
func (mi *MethodInfo) partition() {
	type span struct{ start, end int }
	seen := make(map[Block]bool)
	var covered []span
	add := func(b Block) {
		if seen[b] {
			return
		}
		seen[b] = true
		mi.Blocks = append(mi.Blocks, b)
		covered = append(covered, span{b.Start, b.End})
	}
	for _, h := range mi.Handlers {
		add(Block{Kind: BlockTry, Start: h.TryStart, End: h.TryEnd})
		add(Block{Kind: BlockHandler, Start: h.Start, End: h.End})
	}
	sort.Slice(covered, func(i, j int) bool { return covered[i].start < covered[j].start })
	pos := 0
	for _, s := range covered {
		if s.start > pos {
			mi.Blocks = append(mi.Blocks, Block{Kind: BlockBody, Start: pos, End: s.start})
		}
		if s.end > pos {
			pos = s.end
		}
	}
	if pos < len(mi.Code) {
		mi.Blocks = append(mi.Blocks, Block{Kind: BlockBody, Start: pos, End: len(mi.Code)})
	}
	sort.SliceStable(mi.Blocks, func(i, j int) bool {
		if mi.Blocks[i].Start != mi.Blocks[j].Start {
			return mi.Blocks[i].Start < mi.Blocks[j].Start
		}
		return mi.Blocks[i].Kind < mi.Blocks[j].Kind
	})
}

// BlockAt returns the innermost block containing addr, preferring handler
// and try blocks over body blocks.
func (mi *MethodInfo) BlockAt(addr int) (Block, bool) {
	var best Block
	found := false
	for _, b := range mi.Blocks {
		if addr < b.Start || addr >= b.End {
			continue
		}
		if !found || b.Kind > best.Kind || (b.Kind == best.Kind && b.End-b.Start < best.End-best.Start) {
			best, found = b, true
		}
	}
	return best, found
}
