package disasm

import "sort"

// BasicBlock represents a sequence of instructions with a single entry point.
type BasicBlock struct {
	ID      int
	Start   int    // index into FuncCFG.Insts (inclusive)
	End     int    // index into FuncCFG.Insts (exclusive)
	Succs   []Succ // successor edges
	IsEntry bool
	IsTerm  bool // ends with return, throw or a jump out of the method
}

// Succ describes a control-flow successor edge.
type Succ struct {
	BlockID int
	Cond    string // "" = unconditional, "T" = taken/true, "F" = fallthrough/false, "E" = exception
}

// FuncCFG is a per-method control flow graph.
type FuncCFG struct {
	Name   string
	Blocks []BasicBlock
	Insts  []Inst
}

// Handler is an exception edge source range and its handler entry, all byte offsets.
type Handler struct {
	TryStart, TryEnd int
	Entry            int
}

// StartAddr returns the byte offset of the block's first instruction.
func (g *FuncCFG) StartAddr(b BasicBlock) int { return g.Insts[b.Start].Addr }

// EndAddr returns the byte offset just past the block's last instruction.
func (g *FuncCFG) EndAddr(b BasicBlock) int { return g.Insts[b.End-1].End() }

// BlockAt returns the block containing byte offset addr, or -1.
func (g *FuncCFG) BlockAt(addr int) int {
	for _, b := range g.Blocks {
		if b.End > b.Start && addr >= g.StartAddr(b) && addr < g.EndAddr(b) {
			return b.ID
		}
	}
	return -1
}

// BuildCFG constructs a control flow graph from a method's instruction stream.
// The algorithm:
//  1. Find block leaders: index 0, branch targets, instructions after
//     terminators, handler entries and try range boundaries.
//  2. Partition instructions into blocks by leaders.
//  3. Compute successor edges from each block's last instruction, plus an
//     "E" edge from every block holding an exception source inside a try
//     range to that range's handler.
func BuildCFG(name string, insts []Inst, handlers ...Handler) FuncCFG {
	if len(insts) == 0 {
		return FuncCFG{Name: name, Insts: insts}
	}

	// Map offset → instruction index for branch target resolution.
	addrToIdx := make(map[int]int, len(insts))
	for i, inst := range insts {
		addrToIdx[inst.Addr] = i
	}

	// Pass 1: Identify block leaders.
	leaders := make(map[int]bool)
	leaders[0] = true

	for i, inst := range insts {
		bi := DecodeBranch(inst)
		if bi == nil {
			continue
		}
		if i+1 < len(insts) {
			leaders[i+1] = true
		}
		if !bi.IsRet && !bi.IsThrow {
			if idx, ok := addrToIdx[bi.Target]; ok {
				leaders[idx] = true
			}
		}
	}
	for _, h := range handlers {
		for _, addr := range []int{h.Entry, h.TryStart, h.TryEnd} {
			if idx, ok := addrToIdx[addr]; ok {
				leaders[idx] = true
			}
		}
	}

	sorted := make([]int, 0, len(leaders))
	for idx := range leaders {
		sorted = append(sorted, idx)
	}
	sort.Ints(sorted)

	// Pass 2: Partition into blocks.
	blocks := make([]BasicBlock, len(sorted))
	leaderToBlock := make(map[int]int, len(sorted))
	for i, start := range sorted {
		end := len(insts)
		if i+1 < len(sorted) {
			end = sorted[i+1]
		}
		blocks[i] = BasicBlock{
			ID:      i,
			Start:   start,
			End:     end,
			IsEntry: start == 0,
		}
		leaderToBlock[start] = i
	}

	// Pass 3: Compute successors.
	for i := range blocks {
		blk := &blocks[i]
		if blk.End <= blk.Start {
			continue
		}
		lastInst := insts[blk.End-1]
		bi := DecodeBranch(lastInst)

		switch {
		case bi == nil:
			if nextBlk, ok := leaderToBlock[blk.End]; ok {
				blk.Succs = append(blk.Succs, Succ{BlockID: nextBlk})
			}
		case bi.IsRet || bi.IsThrow:
			blk.IsTerm = true
		default:
			targetBlockID := -1
			if idx, ok := addrToIdx[bi.Target]; ok {
				if bid, ok := leaderToBlock[idx]; ok {
					targetBlockID = bid
				}
			}
			if bi.Cond {
				if targetBlockID >= 0 {
					blk.Succs = append(blk.Succs, Succ{BlockID: targetBlockID, Cond: "T"})
				}
				if nextBlk, ok := leaderToBlock[blk.End]; ok {
					blk.Succs = append(blk.Succs, Succ{BlockID: nextBlk, Cond: "F"})
				}
			} else if targetBlockID >= 0 {
				blk.Succs = append(blk.Succs, Succ{BlockID: targetBlockID})
			} else {
				blk.IsTerm = true
			}
		}

		for _, h := range handlers {
			hidx, ok := addrToIdx[h.Entry]
			if !ok {
				continue
			}
			for k := blk.Start; k < blk.End; k++ {
				in := insts[k]
				if in.CanThrow() && in.Addr >= h.TryStart && in.Addr < h.TryEnd {
					blk.Succs = append(blk.Succs, Succ{BlockID: leaderToBlock[hidx], Cond: "E"})
					break
				}
			}
		}
	}

	return FuncCFG{
		Name:   name,
		Blocks: blocks,
		Insts:  insts,
	}
}
