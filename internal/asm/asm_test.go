package asm

import (
	"errors"
	"strings"
	"testing"

	"bcverify/internal/abcfile"
	"bcverify/internal/disasm"
)

const sample = `
.language core
.class Lapp/Main; public
.field static count I
.method static run (I)I regs=2
    movi v0, 5          # local
    lda a0
    jeq v0, done
    call Lstd/Util;->max(II)I, v0, a0
    ststatic Lapp/Main;->count:I
done:
    return
.end
.method greet ()Lstd/core/String;
    lda.str "hi, there"
    return.obj
.end
`

func TestAssemble(t *testing.T) {
	f, err := Assemble("sample", sample)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(f.Classes) != 1 || len(f.Classes[0].Methods) != 2 {
		t.Fatalf("classes = %+v", f.Classes)
	}
	run := f.Classes[0].Methods[0]
	if run.Code.NumVregs != 2 || run.Code.NumArgs != 1 {
		t.Errorf("run regs = %d args = %d", run.Code.NumVregs, run.Code.NumArgs)
	}
	insts, err := disasm.DecodeAll(run.Code.Instructions)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	wantOps := []disasm.Opcode{disasm.OpMovi, disasm.OpLda, disasm.OpJeq, disasm.OpCall, disasm.OpStstatic, disasm.OpReturn}
	if len(insts) != len(wantOps) {
		t.Fatalf("insts = %d, want %d", len(insts), len(wantOps))
	}
	for i, op := range wantOps {
		if insts[i].Op != op {
			t.Errorf("inst %d = %s, want %s", i, insts[i].Op, op)
		}
	}
	// a0 maps past the two locals.
	if insts[1].Reg(0) != 2 {
		t.Errorf("lda a0 register = %d, want 2", insts[1].Reg(0))
	}
	if insts[2].Target() != insts[5].Addr {
		t.Errorf("jeq target = %d, want %d", insts[2].Target(), insts[5].Addr)
	}

	if len(f.MethodRefs) != 1 || f.MethodRefs[0].Name != "max" || !f.MethodRefs[0].Static {
		t.Errorf("method refs = %+v", f.MethodRefs)
	}
	if got := f.MethodIndex[insts[3].ID]; got != f.MethodRefs[0].ID {
		t.Errorf("call id resolves to %d, want %d", got, f.MethodRefs[0].ID)
	}
	// The static field is defined locally, so no external ref is needed.
	if len(f.FieldRefs) != 0 || f.FieldIndex[0] != f.Classes[0].Fields[0].ID {
		t.Errorf("field index = %v refs = %v", f.FieldIndex, f.FieldRefs)
	}
	if len(f.Strings) != 1 || f.Strings[0] != "hi, there" {
		t.Errorf("strings = %q", f.Strings)
	}
	greet := f.Classes[0].Methods[1]
	if greet.Code.NumArgs != 1 {
		t.Errorf("instance method args = %d, want 1 (receiver)", greet.Code.NumArgs)
	}
}

func TestAssembleCatch(t *testing.T) {
	src := `
.class LA;
.method static f ()V regs=1
try:
    call LB;->g()V
    call LB;->g()V
tryend:
    return.void
h1:
    return.void
h2:
    sta.obj v0
    return.void
    .catch LE; try tryend h1 h2
    .catch all try tryend h2 end
.end
`
	f, err := Assemble("catch", src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	code := f.Classes[0].Methods[0].Code
	if len(code.TryBlocks) != 1 {
		t.Fatalf("try blocks = %d, want 1 shared", len(code.TryBlocks))
	}
	tb := code.TryBlocks[0]
	if tb.StartPC != 0 || tb.Length != 8 || len(tb.Catches) != 2 {
		t.Fatalf("try block = %+v", tb)
	}
	if f.ClassIndex[tb.Catches[0].TypeIdx] != "LE;" {
		t.Errorf("catch 0 type = %d", tb.Catches[0].TypeIdx)
	}
	c1 := tb.Catches[1]
	if c1.TypeIdx != abcfile.CatchAll || c1.HandlerPC != 10 || int(c1.HandlerPC+c1.CodeSize) != len(code.Instructions) {
		t.Errorf("catch 1 = %+v", c1)
	}
	if len(f.MethodRefs) != 1 {
		t.Errorf("method refs = %d, want 1 deduplicated", len(f.MethodRefs))
	}
}

func TestAssembleRawAndRelative(t *testing.T) {
	f := MustAssemble("raw", `
.class LA;
.method static f ()V
    jmp +4
    .raw 0x04 0x00 0x00 0x00 0x00 0x00
    return.void
.end
`)
	code := f.Classes[0].Methods[0].Code.Instructions
	if len(code) != 10 || code[1] != 4 || code[3] != byte(disasm.OpMovi) {
		t.Errorf("code = % x", code)
	}
}

func TestAssembleErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
		msg  string
	}{
		{"unknown_insn", ".class LA;\n.method static f ()V\n  frob\n.end\n", 3, "unknown instruction"},
		{"operands", ".class LA;\n.method static f ()V\n  lda\n.end\n", 3, "expected 1 operands"},
		{"arg_range", ".class LA;\n.method static f ()V\n  lda a0\n.end\n", 3, "out of range"},
		{"missing_end", ".class LA;\n.method static f ()V\n  return.void\n", 4, "missing .end"},
		{"no_class", ".method static f ()V\n.end\n", 1, "outside .class"},
		{"bad_proto", ".class LA;\n.method f (V)V\n.end\n", 2, "void parameter"},
		{"bad_label", ".class LA;\n.method static f ()V\n  jmp nowhere\n.end\n", 3, "undefined label"},
		{"bad_string", ".class LA;\n.method static f ()V\n  lda.str nope\n.end\n", 3, "bad string"},
		{"abstract_body", ".class LA;\n.method abstract f ()V\n  return.void\n.end\n", 3, "has a body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Assemble(tt.name, tt.src)
			var ae *Error
			if !errors.As(err, &ae) {
				t.Fatalf("err = %v, want *Error", err)
			}
			if ae.Line != tt.line || !strings.Contains(ae.Msg, tt.msg) {
				t.Errorf("err = %v, want line %d containing %q", ae, tt.line, tt.msg)
			}
		})
	}
}
