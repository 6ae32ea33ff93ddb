package cflow

import (
	"errors"
	"reflect"
	"testing"

	"bcverify/internal/cache"
	"bcverify/internal/disasm"
)

func method(code []byte, catches ...cache.CatchBlock) *cache.CachedMethod {
	return &cache.CachedMethod{Name: "m", Bytecode: code, CatchBlocks: catches}
}

func kindOf(t *testing.T, err error) ErrorKind {
	t.Helper()
	var ce *Error
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *Error", err)
	}
	return ce.Kind
}

func TestBuildStraightLine(t *testing.T) {
	code := disasm.NewEmitter().
		VImm(disasm.OpMovi, 0, 5).
		V(disasm.OpLda, 0).
		Op(disasm.OpReturn).
		MustBytes()
	mi, err := Build(method(code))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(mi.Insts) != 3 || len(mi.Jumps) != 0 {
		t.Errorf("insts=%d jumps=%d", len(mi.Insts), len(mi.Jumps))
	}
	for _, addr := range []int{0, 6, 8} {
		if !mi.IsBoundary(addr) {
			t.Errorf("0x%x is not a boundary", addr)
		}
	}
	if mi.IsBoundary(1) || mi.IsBoundary(len(code)) {
		t.Error("interior offsets reported as boundaries")
	}
	want := []Block{{Kind: BlockBody, Start: 0, End: len(code)}}
	if !reflect.DeepEqual(mi.Blocks, want) {
		t.Errorf("blocks = %+v", mi.Blocks)
	}
}

func TestBuildErrors(t *testing.T) {
	movi := disasm.NewEmitter().VImm(disasm.OpMovi, 0, 1).MustBytes()
	tests := []struct {
		name    string
		m       *cache.CachedMethod
		kind    ErrorKind
		wantOff int
	}{
		{"no code", method(nil), ErrNoCode, 0},
		{"bad opcode", method([]byte{0xfe}), ErrDecode, 0},
		{"truncated", method(movi[:3]), ErrOverrun, 0},
		{
			"jump into instruction",
			method(disasm.NewEmitter().
				JmpRel(disasm.OpJmp, 4).
				VImm(disasm.OpMovi, 0, 1).
				Op(disasm.OpReturnVoid).
				MustBytes()),
			ErrBadJump, 0,
		},
		{
			"jump past end",
			method(disasm.NewEmitter().
				Op(disasm.OpNop).
				JmpRel(disasm.OpJmp, 100).
				MustBytes()),
			ErrBadJump, 1,
		},
		{
			"falls off",
			method(disasm.NewEmitter().Op(disasm.OpNop).Op(disasm.OpNop).MustBytes()),
			ErrFallOff, 1,
		},
		{
			"conditional at end",
			method(disasm.NewEmitter().Label("top").Jmp(disasm.OpJeqz, "top").MustBytes()),
			ErrFallOff, 0,
		},
		{
			"try range inside instruction",
			method(append(movi, byte(disasm.OpReturnVoid)),
				cache.CatchBlock{TryStart: 1, TryEnd: 6, CatchAll: true, HandlerPC: 6, HandlerSize: 1}),
			ErrBadHandler, 1,
		},
		{
			"handler past end",
			method(append(movi, byte(disasm.OpReturnVoid)),
				cache.CatchBlock{TryStart: 0, TryEnd: 6, CatchAll: true, HandlerPC: 6, HandlerSize: 9}),
			ErrBadHandler, 6,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.m)
			if err == nil {
				t.Fatal("Build succeeded")
			}
			if k := kindOf(t, err); k != tt.kind {
				t.Errorf("kind = %s, want %s (%v)", k, tt.kind, err)
			}
			var ce *Error
			errors.As(err, &ce)
			if ce.Offset != tt.wantOff {
				t.Errorf("offset = 0x%x, want 0x%x", ce.Offset, tt.wantOff)
			}
		})
	}
}

// tryCatch emits:
//
//	0x00 movi v0, 1
//	0x06 try: lda v0
//	0x08      div2 v0
//	0x0a      return      ; try ends
//	0x0b handler: ldai 0
//	0x10          return
func tryCatch() ([]byte, []cache.CatchBlock) {
	e := disasm.NewEmitter()
	e.VImm(disasm.OpMovi, 0, 1)
	e.Label("try").V(disasm.OpLda, 0).V(disasm.OpDiv2, 0).Op(disasm.OpReturn)
	e.Label("handler").Imm(disasm.OpLdai, 0).Op(disasm.OpReturn)
	code := e.MustBytes()
	try, _ := e.LabelOffset("try")
	h, _ := e.LabelOffset("handler")
	return code, []cache.CatchBlock{{TryStart: try, TryEnd: h, CatchAll: true, HandlerPC: h, HandlerSize: len(code) - h}}
}

func TestBuildHandlers(t *testing.T) {
	code, catches := tryCatch()
	mi, err := Build(method(code, catches...))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(mi.Handlers) != 1 || !mi.Handlers[0].CatchAll || mi.Handlers[0].Start != 0x0b {
		t.Fatalf("handlers = %+v", mi.Handlers)
	}
	if got := mi.ExceptionSources(0, len(code)); !reflect.DeepEqual(got, []int{0x08}) {
		t.Errorf("exception sources = %v, want [0x08]", got)
	}
	if !mi.IsExceptionSource(0x08) || mi.IsExceptionSource(0x06) {
		t.Error("IsExceptionSource")
	}
	want := []Block{
		{Kind: BlockBody, Start: 0, End: 0x06},
		{Kind: BlockTry, Start: 0x06, End: 0x0b},
		{Kind: BlockHandler, Start: 0x0b, End: len(code)},
	}
	if !reflect.DeepEqual(mi.Blocks, want) {
		t.Errorf("blocks = %+v", mi.Blocks)
	}
	if b, ok := mi.BlockAt(0x08); !ok || b.Kind != BlockTry {
		t.Errorf("BlockAt(0x08) = %+v", b)
	}
}

func TestBuildJumps(t *testing.T) {
	code := disasm.NewEmitter().
		Label("top").
		V(disasm.OpLda, 0).
		Jmp(disasm.OpJnez, "out").
		Jmp(disasm.OpJmp, "top").
		Label("out").
		Op(disasm.OpReturnVoid).
		MustBytes()
	mi, err := Build(method(code))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := map[int]int{2: 8, 5: 0}
	if !reflect.DeepEqual(mi.Jumps, want) {
		t.Errorf("jumps = %v, want %v", mi.Jumps, want)
	}
}

func TestClassifyRedecodesFromBytes(t *testing.T) {
	code := disasm.NewEmitter().
		Label("top").
		V(disasm.OpLda, 0).
		Jmp(disasm.OpJnez, "out").
		Jmp(disasm.OpJmp, "top").
		Label("out").
		Op(disasm.OpReturnVoid).
		MustBytes()
	mi := &MethodInfo{Code: code, Jumps: make(map[int]int), index: make(map[int]int)}
	if err := mi.scan(); err != nil {
		t.Fatal(err)
	}
	// The second pass reads the bytes, not the first pass's decode.
	mi.Insts = mi.Insts[:1]
	if err := mi.classify(); err != nil {
		t.Fatalf("classify: %v", err)
	}
	if want := map[int]int{2: 8, 5: 0}; !reflect.DeepEqual(mi.Jumps, want) {
		t.Errorf("jumps = %v, want %v", mi.Jumps, want)
	}
}

func TestBuildDeterministic(t *testing.T) {
	code, catches := tryCatch()
	a, err := Build(method(code, catches...))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Build(method(code, catches...))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("two builds of the same bytes differ")
	}
	if code[0] != byte(disasm.OpMovi) {
		t.Error("Build modified the code")
	}
}
