package disasm

import (
	"errors"
	"strings"
	"testing"
)

func TestDecodeRoundTrip(t *testing.T) {
	code := NewEmitter().
		VImm(OpMovi, 0, 5).
		V(OpLda, 0).
		Imm(OpAddi, -3).
		Call(OpCall, 7, 0, 1).
		Op(OpReturn).
		MustBytes()

	insts, err := DecodeAll(code)
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	want := []struct {
		addr int
		op   Opcode
		size int
		text string
	}{
		{0, OpMovi, 6, "movi v0, 5"},
		{6, OpLda, 2, "lda v0"},
		{8, OpAddi, 5, "addi -3"},
		{13, OpCall, 6, "call method#7, v0, v1"},
		{19, OpReturn, 1, "return"},
	}
	if len(insts) != len(want) {
		t.Fatalf("got %d instructions, want %d", len(insts), len(want))
	}
	for i, w := range want {
		in := insts[i]
		if in.Addr != w.addr || in.Op != w.op || in.Size != w.size || in.Text != w.text {
			t.Errorf("inst[%d] = {0x%x %s %d %q}, want {0x%x %s %d %q}",
				i, in.Addr, in.Op, in.Size, in.Text, w.addr, w.op, w.size, w.text)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		code []byte
		want error
	}{
		{"bad_opcode", []byte{0xff}, ErrBadOpcode},
		{"truncated_imm", []byte{byte(OpLdai), 1, 2}, ErrTruncated},
		{"truncated_call_args", []byte{byte(OpCall), 0, 0, 2, 1}, ErrTruncated},
		{"too_many_args", []byte{byte(OpCall), 0, 0, 9}, ErrTooManyArgs},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.code, 0)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			var de *DecodeError
			if !errors.As(err, &de) || de.Offset != 0 {
				t.Errorf("err = %#v, want *DecodeError at 0", err)
			}
		})
	}
}

func TestDisassembleMaxSteps(t *testing.T) {
	e := NewEmitter()
	for i := 0; i < 100; i++ {
		e.Op(OpNop)
	}
	insts := Disassemble(e.MustBytes(), Options{MaxSteps: 10})
	if len(insts) != 10 {
		t.Fatalf("got %d instructions, want 10", len(insts))
	}
}

func TestDisassembleEmpty(t *testing.T) {
	if insts := Disassemble(nil, Options{}); len(insts) != 0 {
		t.Fatalf("got %d instructions for nil code", len(insts))
	}
}

func TestDisassembleNames(t *testing.T) {
	code := NewEmitter().ID(OpLdaStr, 3).Op(OpReturnObj).MustBytes()
	names := func(kind IDKind, id uint16) (string, bool) {
		if kind == IDString && id == 3 {
			return `"x"`, true
		}
		return "", false
	}
	insts := Disassemble(code, Options{Names: names})
	if insts[0].Text != `lda.str "x"` {
		t.Errorf("text = %q", insts[0].Text)
	}
}

func TestFormatListing(t *testing.T) {
	code := NewEmitter().Op(OpNop).Jmp(OpJmp, "end").Label("end").Op(OpReturnVoid).MustBytes()
	insts := Disassemble(code, Options{})
	out := FormatListing(insts, OffsetAnnotator(map[int]string{1: "checkpoint"}))
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "0x0000  00") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.Contains(lines[1], "jmp 0x0004") || !strings.HasSuffix(lines[1], "; checkpoint") {
		t.Errorf("line 1 = %q", lines[1])
	}
}

func TestLookup(t *testing.T) {
	for op := Opcode(0); op < numOpcodes; op++ {
		got, ok := Lookup(op.String())
		if !ok || got != op {
			t.Errorf("Lookup(%q) = %v, %v", op.String(), got, ok)
		}
	}
	if _, ok := Lookup("bogus"); ok {
		t.Error("Lookup(bogus) succeeded")
	}
}
