package disasm

import "testing"

func mustDecode(t *testing.T, e *Emitter) []Inst {
	t.Helper()
	code, err := e.Bytes()
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	insts, err := DecodeAll(code)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return insts
}

func TestBuildCFG_Linear(t *testing.T) {
	insts := mustDecode(t, NewEmitter().Op(OpNop).Op(OpNop).Op(OpReturnVoid))
	cfg := BuildCFG("linear", insts)
	if len(cfg.Blocks) != 1 {
		t.Fatalf("blocks = %d, want 1", len(cfg.Blocks))
	}
	blk := cfg.Blocks[0]
	if blk.Start != 0 || blk.End != 3 {
		t.Errorf("block range = [%d,%d), want [0,3)", blk.Start, blk.End)
	}
	if !blk.IsTerm {
		t.Error("block should be terminal (return)")
	}
	if len(blk.Succs) != 0 {
		t.Errorf("succs = %d, want 0", len(blk.Succs))
	}
}

func TestBuildCFG_ConditionalBranch(t *testing.T) {
	//   0: jeqz t
	//   3: nop
	//   4: return.void
	//   5: nop          (dead)
	//   6: t: return.void
	insts := mustDecode(t, NewEmitter().
		Jmp(OpJeqz, "t").
		Op(OpNop).
		Op(OpReturnVoid).
		Op(OpNop).
		Label("t").Op(OpReturnVoid))
	cfg := BuildCFG("cond", insts)

	if len(cfg.Blocks) != 4 {
		t.Fatalf("blocks = %d, want 4", len(cfg.Blocks))
	}
	b0 := cfg.Blocks[0]
	var hasT, hasF bool
	for _, s := range b0.Succs {
		if s.Cond == "T" && s.BlockID == 3 {
			hasT = true
		}
		if s.Cond == "F" && s.BlockID == 1 {
			hasF = true
		}
	}
	if !hasT || !hasF {
		t.Errorf("block 0 succs = %+v, want T→3 and F→1", b0.Succs)
	}
	if !cfg.Blocks[1].IsTerm || len(cfg.Blocks[2].Succs) != 1 {
		t.Errorf("blocks = %+v", cfg.Blocks)
	}
}

func TestBuildCFG_Loop(t *testing.T) {
	insts := mustDecode(t, NewEmitter().
		Label("top").
		Imm(OpAddi, 1).
		Jmp(OpJnez, "top").
		Op(OpReturnVoid))
	cfg := BuildCFG("loop", insts)
	if len(cfg.Blocks) != 2 {
		t.Fatalf("blocks = %d, want 2", len(cfg.Blocks))
	}
	var back bool
	for _, s := range cfg.Blocks[0].Succs {
		if s.BlockID == 0 && s.Cond == "T" {
			back = true
		}
	}
	if !back {
		t.Errorf("missing back edge, succs=%+v", cfg.Blocks[0].Succs)
	}
}

func TestBuildCFG_Handler(t *testing.T) {
	//   0: call #0        try [0,4)
	//   4: return.void
	//   5: return.void    handler
	insts := mustDecode(t, NewEmitter().Call(OpCall, 0).Op(OpReturnVoid).Op(OpReturnVoid))
	cfg := BuildCFG("try", insts, Handler{TryStart: 0, TryEnd: 4, Entry: 5})
	if len(cfg.Blocks) != 3 {
		t.Fatalf("blocks = %d, want 3", len(cfg.Blocks))
	}
	var exc bool
	for _, s := range cfg.Blocks[0].Succs {
		if s.Cond == "E" && s.BlockID == 2 {
			exc = true
		}
	}
	if !exc {
		t.Errorf("missing exception edge, succs=%+v", cfg.Blocks[0].Succs)
	}
	if got := cfg.BlockAt(5); got != 2 {
		t.Errorf("BlockAt(5) = %d, want 2", got)
	}
}

func TestBuildCFG_Empty(t *testing.T) {
	cfg := BuildCFG("empty", nil)
	if len(cfg.Blocks) != 0 {
		t.Fatalf("blocks = %d, want 0", len(cfg.Blocks))
	}
}
