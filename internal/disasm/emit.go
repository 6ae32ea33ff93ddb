package disasm

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Emitter encodes instructions. Jumps may reference labels defined later;
// they are patched by Bytes.
type Emitter struct {
	buf    []byte
	labels map[string]int
	fixups []fixup
	err    error
}

type fixup struct {
	at    int // offset of the s16 operand
	inst  int // offset of the jump instruction
	label string
}

// NewEmitter returns an empty emitter.
func NewEmitter() *Emitter {
	return &Emitter{labels: make(map[string]int)}
}

// Offset returns the offset the next instruction will be emitted at.
func (e *Emitter) Offset() int { return len(e.buf) }

// Label binds name to the current offset.
func (e *Emitter) Label(name string) *Emitter {
	if _, dup := e.labels[name]; dup {
		e.fail(fmt.Errorf("label %q defined twice", name))
		return e
	}
	e.labels[name] = len(e.buf)
	return e
}

// LabelOffset returns the offset bound to name.
func (e *Emitter) LabelOffset(name string) (int, bool) {
	off, ok := e.labels[name]
	return off, ok
}

func (e *Emitter) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

func (e *Emitter) op(op Opcode, want ...Format) bool {
	f := op.Info().Format
	for _, w := range want {
		if f == w {
			e.buf = append(e.buf, byte(op))
			return true
		}
	}
	e.fail(fmt.Errorf("%s: wrong operand format", op))
	return false
}

func (e *Emitter) reg(v int) {
	if v < 0 || v > math.MaxUint8 {
		e.fail(fmt.Errorf("register v%d out of range", v))
	}
	e.buf = append(e.buf, byte(v))
}

func (e *Emitter) id(id int) {
	if id < 0 || id > math.MaxUint16 {
		e.fail(fmt.Errorf("id %d out of range", id))
	}
	e.buf = binary.LittleEndian.AppendUint16(e.buf, uint16(id))
}

// Raw appends bytes verbatim.
func (e *Emitter) Raw(b ...byte) *Emitter {
	e.buf = append(e.buf, b...)
	return e
}

// Op emits an instruction without operands.
func (e *Emitter) Op(op Opcode) *Emitter {
	e.op(op, FmtNone)
	return e
}

// V emits an instruction with one register.
func (e *Emitter) V(op Opcode, a int) *Emitter {
	if e.op(op, FmtV) {
		e.reg(a)
	}
	return e
}

// VV emits an instruction with two registers.
func (e *Emitter) VV(op Opcode, a, b int) *Emitter {
	if e.op(op, FmtVV) {
		e.reg(a)
		e.reg(b)
	}
	return e
}

// Imm emits an instruction with an immediate.
func (e *Emitter) Imm(op Opcode, imm int64) *Emitter {
	if e.op(op, FmtImm32, FmtImm64) {
		e.imm(op, imm)
	}
	return e
}

// VImm emits a register and immediate.
func (e *Emitter) VImm(op Opcode, a int, imm int64) *Emitter {
	if e.op(op, FmtVImm32, FmtVImm64) {
		e.reg(a)
		e.imm(op, imm)
	}
	return e
}

func (e *Emitter) imm(op Opcode, imm int64) {
	switch op.Info().Format {
	case FmtImm32, FmtVImm32:
		if imm < math.MinInt32 || imm > math.MaxInt32 {
			e.fail(fmt.Errorf("%s: immediate %d out of range", op, imm))
		}
		e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(int32(imm)))
	default:
		e.buf = binary.LittleEndian.AppendUint64(e.buf, uint64(imm))
	}
}

// Jmp emits a jump to label.
func (e *Emitter) Jmp(op Opcode, label string) *Emitter {
	start := len(e.buf)
	if e.op(op, FmtJmp) {
		e.fixups = append(e.fixups, fixup{at: len(e.buf), inst: start, label: label})
		e.buf = append(e.buf, 0, 0)
	}
	return e
}

// VJmp emits a register compare-and-jump to label.
func (e *Emitter) VJmp(op Opcode, a int, label string) *Emitter {
	start := len(e.buf)
	if e.op(op, FmtVJmp) {
		e.reg(a)
		e.fixups = append(e.fixups, fixup{at: len(e.buf), inst: start, label: label})
		e.buf = append(e.buf, 0, 0)
	}
	return e
}

// JmpRel emits a jump with a raw relative offset.
func (e *Emitter) JmpRel(op Opcode, rel int16) *Emitter {
	if e.op(op, FmtJmp) {
		e.buf = binary.LittleEndian.AppendUint16(e.buf, uint16(rel))
	}
	return e
}

// ID emits an instruction with an id operand.
func (e *Emitter) ID(op Opcode, id int) *Emitter {
	if e.op(op, FmtID) {
		e.id(id)
	}
	return e
}

// VID emits a register and an id.
func (e *Emitter) VID(op Opcode, a, id int) *Emitter {
	if e.op(op, FmtVID) {
		e.reg(a)
		e.id(id)
	}
	return e
}

// VVID emits two registers and an id.
func (e *Emitter) VVID(op Opcode, a, b, id int) *Emitter {
	if e.op(op, FmtVVID) {
		e.reg(a)
		e.reg(b)
		e.id(id)
	}
	return e
}

// Call emits a call with up to MaxCallArgs argument registers.
func (e *Emitter) Call(op Opcode, id int, args ...int) *Emitter {
	if len(args) > MaxCallArgs {
		e.fail(fmt.Errorf("%s: %d arguments, max %d", op, len(args), MaxCallArgs))
		return e
	}
	if e.op(op, FmtCall) {
		e.id(id)
		e.buf = append(e.buf, byte(len(args)))
		for _, a := range args {
			e.reg(a)
		}
	}
	return e
}

// Bytes patches label references and returns the encoded code.
func (e *Emitter) Bytes() ([]byte, error) {
	if e.err != nil {
		return nil, e.err
	}
	for _, f := range e.fixups {
		target, ok := e.labels[f.label]
		if !ok {
			return nil, fmt.Errorf("undefined label %q", f.label)
		}
		rel := target - f.inst
		if rel < math.MinInt16 || rel > math.MaxInt16 {
			return nil, fmt.Errorf("jump to %q out of range (%d)", f.label, rel)
		}
		binary.LittleEndian.PutUint16(e.buf[f.at:], uint16(int16(rel)))
	}
	out := make([]byte, len(e.buf))
	copy(out, e.buf)
	return out, nil
}

// MustBytes is Bytes for fixtures; it panics on error.
func (e *Emitter) MustBytes() []byte {
	b, err := e.Bytes()
	if err != nil {
		panic(err)
	}
	return b
}
