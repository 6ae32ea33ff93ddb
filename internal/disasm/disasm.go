// Package disasm decodes, lists and encodes method bytecode.
package disasm

import (
	"errors"
	"fmt"
	"strings"

	"bcverify/internal/bcfmt"
)

// Inst is a decoded instruction with its offset and raw bytes.
type Inst struct {
	Addr     int // byte offset within the method's code
	Op       Opcode
	Size     int
	Raw      []byte
	Regs     []int // register operands in encoding order
	Imm      int64 // immediate or relative jump offset
	ID       uint16
	Args     []int // call argument registers
	Mnemonic string
	Operands string
	Text     string // full disassembly line
}

// Info returns the opcode description.
func (i Inst) Info() OpInfo { return i.Op.Info() }

// Flow classifies the instruction's control transfer.
func (i Inst) Flow() Flow { return i.Op.Info().Flow }

// CanThrow reports whether the instruction is an exception source.
func (i Inst) CanThrow() bool { return i.Op.Info().CanThrow }

// End returns the offset just past the instruction.
func (i Inst) End() int { return i.Addr + i.Size }

// Target returns the absolute jump target. Valid only for jumps.
func (i Inst) Target() int { return i.Addr + int(i.Imm) }

// Reg returns register operand n, or -1 when absent.
func (i Inst) Reg(n int) int {
	if n < len(i.Regs) {
		return i.Regs[n]
	}
	return -1
}

// NameLookup resolves an id operand to a display name. Returns ("", false) if unknown.
type NameLookup func(kind IDKind, id uint16) (name string, ok bool)

// Options controls disassembly behavior.
type Options struct {
	MaxSteps int        // maximum instructions to decode; 0 = 10M
	Names    NameLookup // optional id resolver
}

func (o Options) effectiveMax() int {
	return bcfmt.Options{MaxSteps: o.MaxSteps}.EffectiveMaxSteps()
}

var (
	ErrBadOpcode   = errors.New("disasm: invalid opcode")
	ErrTruncated   = errors.New("disasm: instruction exceeds code")
	ErrTooManyArgs = errors.New("disasm: too many call arguments")
)

// DecodeError locates a decode failure.
type DecodeError struct {
	Offset int
	Err    error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("offset 0x%04x: %v", e.Offset, e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// Decode decodes the instruction starting at off.
func Decode(code []byte, off int) (Inst, error) {
	s := bcfmt.NewStreamAt(code, off)
	if off < 0 || off >= len(code) {
		return Inst{}, &DecodeError{Offset: off, Err: ErrTruncated}
	}
	b, _ := s.ReadByte()
	op := Opcode(b)
	if !op.Valid() {
		return Inst{}, &DecodeError{Offset: off, Err: fmt.Errorf("%w 0x%02x", ErrBadOpcode, b)}
	}
	inst := Inst{Addr: off, Op: op}
	if err := decodeOperands(s, &inst); err != nil {
		if errors.Is(err, bcfmt.ErrStreamEOF) {
			err = ErrTruncated
		}
		return Inst{}, &DecodeError{Offset: off, Err: err}
	}
	inst.Size = s.Position() - off
	inst.Raw = code[off:s.Position()]
	inst.Mnemonic = op.String()
	inst.Operands = formatOperands(inst, nil)
	inst.Text = joinText(inst.Mnemonic, inst.Operands)
	return inst, nil
}

func decodeOperands(s *bcfmt.Stream, inst *Inst) error {
	reg := func() error {
		v, err := s.ReadUint8()
		if err != nil {
			return err
		}
		inst.Regs = append(inst.Regs, int(v))
		return nil
	}
	id := func() error {
		v, err := s.ReadUint16()
		inst.ID = v
		return err
	}
	imm32 := func() error {
		v, err := s.ReadInt32()
		inst.Imm = int64(v)
		return err
	}
	imm64 := func() error {
		v, err := s.ReadInt64()
		inst.Imm = v
		return err
	}
	rel := func() error {
		v, err := s.ReadInt16()
		inst.Imm = int64(v)
		return err
	}
	run := func(steps ...func() error) error {
		for _, step := range steps {
			if err := step(); err != nil {
				return err
			}
		}
		return nil
	}

	switch inst.Op.Info().Format {
	case FmtNone:
		return nil
	case FmtV:
		return reg()
	case FmtVV:
		return run(reg, reg)
	case FmtImm32:
		return imm32()
	case FmtImm64:
		return imm64()
	case FmtVImm32:
		return run(reg, imm32)
	case FmtVImm64:
		return run(reg, imm64)
	case FmtJmp:
		return rel()
	case FmtVJmp:
		return run(reg, rel)
	case FmtID:
		return id()
	case FmtVID:
		return run(reg, id)
	case FmtVVID:
		return run(reg, reg, id)
	case FmtCall:
		if err := id(); err != nil {
			return err
		}
		n, err := s.ReadUint8()
		if err != nil {
			return err
		}
		if n > MaxCallArgs {
			return fmt.Errorf("%w: %d", ErrTooManyArgs, n)
		}
		for k := 0; k < int(n); k++ {
			v, err := s.ReadUint8()
			if err != nil {
				return err
			}
			inst.Args = append(inst.Args, int(v))
		}
		return nil
	}
	return ErrBadOpcode
}

// DecodeAll decodes the whole code array. It fails on the first
// instruction that cannot be decoded or runs past the end.
func DecodeAll(code []byte) ([]Inst, error) {
	var out []Inst
	for off := 0; off < len(code); {
		inst, err := Decode(code, off)
		if err != nil {
			return out, err
		}
		out = append(out, inst)
		off = inst.End()
	}
	return out, nil
}

// Disassemble decodes instructions up to MaxSteps or the first decode
// failure. Id operands are rendered through opts.Names when set.
func Disassemble(code []byte, opts Options) []Inst {
	maxSteps := opts.effectiveMax()
	var result []Inst
	for off := 0; off < len(code) && len(result) < maxSteps; {
		inst, err := Decode(code, off)
		if err != nil {
			break
		}
		if opts.Names != nil {
			inst.Operands = formatOperands(inst, opts.Names)
			inst.Text = joinText(inst.Mnemonic, inst.Operands)
		}
		result = append(result, inst)
		off = inst.End()
	}
	return result
}

func joinText(mnemonic, operands string) string {
	if operands == "" {
		return mnemonic
	}
	return mnemonic + " " + operands
}

func formatOperands(inst Inst, names NameLookup) string {
	var parts []string
	for _, r := range inst.Regs {
		parts = append(parts, fmt.Sprintf("v%d", r))
	}
	info := inst.Op.Info()
	switch info.Format {
	case FmtImm32, FmtImm64, FmtVImm32, FmtVImm64:
		parts = append(parts, fmt.Sprintf("%d", inst.Imm))
	case FmtJmp, FmtVJmp:
		parts = append(parts, fmt.Sprintf("0x%04x", inst.Target()))
	}
	if info.ID != IDNone {
		idText := fmt.Sprintf("%s#%d", info.ID, inst.ID)
		if names != nil {
			if name, ok := names(info.ID, inst.ID); ok {
				idText = name
			}
		}
		parts = append(parts, idText)
	}
	for _, a := range inst.Args {
		parts = append(parts, fmt.Sprintf("v%d", a))
	}
	return strings.Join(parts, ", ")
}

// FormatListing renders a slice of instructions as stable text output.
// Each line: <offset>  <hex bytes>  <disasm>  ; <comment>
// Annotators are checked in order; first non-empty result is used.
func FormatListing(insts []Inst, annotators ...Annotator) string {
	var b strings.Builder
	for _, inst := range insts {
		fmt.Fprintf(&b, "0x%04x  ", inst.Addr)
		var hex strings.Builder
		for i, c := range inst.Raw {
			if i > 0 {
				hex.WriteByte(' ')
			}
			fmt.Fprintf(&hex, "%02x", c)
		}
		fmt.Fprintf(&b, "%-29s  ", hex.String())
		b.WriteString(inst.Text)
		for _, ann := range annotators {
			if s := ann(inst); s != "" {
				fmt.Fprintf(&b, "  ; %s", s)
				break
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
