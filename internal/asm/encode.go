package asm

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"bcverify/internal/abcfile"
	"bcverify/internal/disasm"
)

// encode is the second pass: instructions of one method body.
func (a *assembler) encode(b *methodBody) error {
	c := &a.file.Classes[b.class]
	m := &c.Methods[b.method]
	if b.abstract {
		if len(b.lines) > 0 {
			return errorf(b.lines[0].num, "abstract or native method %s has a body", m.Name)
		}
		return nil
	}

	numArgs := len(m.Proto.Params)
	if !m.IsStatic() {
		numArgs++
	}
	e := disasm.NewEmitter()
	for _, ln := range b.lines {
		if err := a.encodeLine(e, b, numArgs, ln); err != nil {
			return err
		}
	}
	code, err := e.Bytes()
	if err != nil {
		return &Error{Line: lastLine(b), Msg: fmt.Sprintf("%s: %v", m.Name, err)}
	}

	var tries []abcfile.TryBlock
	for _, pc := range b.catches {
		off := func(label string) (int, error) {
			if label == "end" {
				return len(code), nil
			}
			o, ok := e.LabelOffset(label)
			if !ok {
				return 0, errorf(pc.line, "undefined label %q", label)
			}
			return o, nil
		}
		var offs [4]int
		for i, l := range []string{pc.tryStart, pc.tryEnd, pc.handler, pc.handlerEnd} {
			if offs[i], err = off(l); err != nil {
				return err
			}
		}
		if offs[1] <= offs[0] || offs[3] <= offs[2] {
			return errorf(pc.line, "empty try or handler range")
		}
		typeIdx := abcfile.CatchAll
		if pc.typ != "all" {
			typeIdx = int32(a.classIndex(pc.typ))
		}
		cb := abcfile.CatchBlock{TypeIdx: typeIdx, HandlerPC: uint32(offs[2]), CodeSize: uint32(offs[3] - offs[2])}
		// Catches over the same range share one try block.
		shared := false
		for i := range tries {
			if tries[i].StartPC == uint32(offs[0]) && tries[i].Length == uint32(offs[1]-offs[0]) {
				tries[i].Catches = append(tries[i].Catches, cb)
				shared = true
				break
			}
		}
		if !shared {
			tries = append(tries, abcfile.TryBlock{
				StartPC: uint32(offs[0]), Length: uint32(offs[1] - offs[0]),
				Catches: []abcfile.CatchBlock{cb},
			})
		}
	}

	m.Code = &abcfile.Code{
		NumVregs:     uint32(b.regs),
		NumArgs:      uint32(numArgs),
		Instructions: code,
		TryBlocks:    tries,
	}
	return nil
}

func lastLine(b *methodBody) int {
	if len(b.lines) == 0 {
		return 0
	}
	return b.lines[len(b.lines)-1].num
}

func (a *assembler) encodeLine(e *disasm.Emitter, b *methodBody, numArgs int, ln srcLine) error {
	if label, ok := strings.CutSuffix(ln.text, ":"); ok && !strings.ContainsAny(label, " \t") {
		e.Label(label)
		return nil
	}
	mnemonic, rest := ln.text, ""
	if i := strings.IndexAny(ln.text, " \t"); i >= 0 {
		mnemonic, rest = ln.text[:i], ln.text[i+1:]
	}
	ops := splitOperands(strings.TrimSpace(rest))

	if mnemonic == ".raw" {
		for _, f := range strings.Fields(rest) {
			v, err := strconv.ParseUint(f, 0, 8)
			if err != nil {
				return errorf(ln.num, "bad byte %q", f)
			}
			e.Raw(byte(v))
		}
		return nil
	}

	op, ok := disasm.Lookup(mnemonic)
	if !ok {
		return errorf(ln.num, "unknown instruction %q", mnemonic)
	}
	info := op.Info()

	reg := func(s string) (int, error) {
		if len(s) < 2 || (s[0] != 'v' && s[0] != 'a') {
			return 0, errorf(ln.num, "%s: expected register, got %q", mnemonic, s)
		}
		n, err := strconv.Atoi(s[1:])
		if err != nil || n < 0 {
			return 0, errorf(ln.num, "%s: bad register %q", mnemonic, s)
		}
		if s[0] == 'a' {
			if n >= numArgs {
				return 0, errorf(ln.num, "%s: argument %s out of range", mnemonic, s)
			}
			n += b.regs
		}
		if n > math.MaxUint8 {
			return 0, errorf(ln.num, "%s: register %q out of range", mnemonic, s)
		}
		return n, nil
	}
	want := func(n int) error {
		if len(ops) != n {
			return errorf(ln.num, "%s: expected %d operands, got %d", mnemonic, n, len(ops))
		}
		return nil
	}
	regs := func(n int) ([]int, error) {
		out := make([]int, n)
		for i := 0; i < n; i++ {
			r, err := reg(ops[i])
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	}
	imm := func(s string) (int64, error) {
		if op == disasm.OpFldai64 {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return 0, errorf(ln.num, "%s: bad float %q", mnemonic, s)
			}
			return int64(math.Float64bits(f)), nil
		}
		v, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return 0, errorf(ln.num, "%s: bad immediate %q", mnemonic, s)
		}
		return v, nil
	}
	id := func(s string) (int, error) {
		return a.operandID(ln.num, op, s)
	}

	switch info.Format {
	case disasm.FmtNone:
		if err := want(0); err != nil {
			return err
		}
		e.Op(op)
	case disasm.FmtV, disasm.FmtVV:
		n := 1
		if info.Format == disasm.FmtVV {
			n = 2
		}
		if err := want(n); err != nil {
			return err
		}
		r, err := regs(n)
		if err != nil {
			return err
		}
		if n == 1 {
			e.V(op, r[0])
		} else {
			e.VV(op, r[0], r[1])
		}
	case disasm.FmtImm32, disasm.FmtImm64:
		if err := want(1); err != nil {
			return err
		}
		v, err := imm(ops[0])
		if err != nil {
			return err
		}
		e.Imm(op, v)
	case disasm.FmtVImm32, disasm.FmtVImm64:
		if err := want(2); err != nil {
			return err
		}
		r, err := reg(ops[0])
		if err != nil {
			return err
		}
		v, err := imm(ops[1])
		if err != nil {
			return err
		}
		e.VImm(op, r, v)
	case disasm.FmtJmp:
		if err := want(1); err != nil {
			return err
		}
		if rel, err := strconv.ParseInt(ops[0], 0, 16); err == nil && (ops[0][0] == '+' || ops[0][0] == '-') {
			e.JmpRel(op, int16(rel))
		} else {
			e.Jmp(op, ops[0])
		}
	case disasm.FmtVJmp:
		if err := want(2); err != nil {
			return err
		}
		r, err := reg(ops[0])
		if err != nil {
			return err
		}
		e.VJmp(op, r, ops[1])
	case disasm.FmtID:
		if err := want(1); err != nil {
			return err
		}
		v, err := id(ops[0])
		if err != nil {
			return err
		}
		e.ID(op, v)
	case disasm.FmtVID:
		if err := want(2); err != nil {
			return err
		}
		r, err := reg(ops[0])
		if err != nil {
			return err
		}
		v, err := id(ops[1])
		if err != nil {
			return err
		}
		e.VID(op, r, v)
	case disasm.FmtVVID:
		if err := want(3); err != nil {
			return err
		}
		r, err := regs(2)
		if err != nil {
			return err
		}
		v, err := id(ops[2])
		if err != nil {
			return err
		}
		e.VVID(op, r[0], r[1], v)
	case disasm.FmtCall:
		if len(ops) < 1 || len(ops) > 1+disasm.MaxCallArgs {
			return errorf(ln.num, "%s: expected method and up to %d registers", mnemonic, disasm.MaxCallArgs)
		}
		v, err := id(ops[0])
		if err != nil {
			return err
		}
		args := make([]int, 0, len(ops)-1)
		for _, s := range ops[1:] {
			r, err := reg(s)
			if err != nil {
				return err
			}
			args = append(args, r)
		}
		e.Call(op, v, args...)
	}
	return nil
}

// operandID interns the id operand of op into the matching file table.
func (a *assembler) operandID(num int, op disasm.Opcode, s string) (int, error) {
	switch op.Info().ID {
	case disasm.IDClass:
		if !abcfile.ValidDescriptor(s) {
			return 0, errorf(num, "%s: bad class descriptor %q", op, s)
		}
		return a.classIndex(s), nil
	case disasm.IDString:
		str, err := strconv.Unquote(s)
		if err != nil {
			return 0, errorf(num, "%s: bad string literal %s", op, s)
		}
		return a.stringIndex(str), nil
	case disasm.IDField:
		cls, rest, ok := strings.Cut(s, "->")
		name, typ, ok2 := strings.Cut(rest, ":")
		if !ok || !ok2 {
			return 0, errorf(num, "%s: expected Lclass;->name:type, got %q", op, s)
		}
		static := op == disasm.OpLdstatic || op == disasm.OpStstatic
		return a.fieldIndex(cls, name, typ, static), nil
	case disasm.IDMethod:
		cls, rest, ok := strings.Cut(s, "->")
		paren := strings.IndexByte(rest, '(')
		if !ok || paren <= 0 {
			return 0, errorf(num, "%s: expected Lclass;->name(proto), got %q", op, s)
		}
		proto, err := abcfile.ParseProto(rest[paren:])
		if err != nil {
			return 0, errorf(num, "%s: %v", op, err)
		}
		return a.methodIndex(cls, rest[:paren], proto, op == disasm.OpCall), nil
	}
	return 0, errorf(num, "%s: takes no id operand", op)
}

func (a *assembler) classIndex(d string) int {
	if i, ok := a.classIdx[d]; ok {
		return i
	}
	i := len(a.file.ClassIndex)
	a.file.ClassIndex = append(a.file.ClassIndex, d)
	a.classIdx[d] = i
	return i
}

func (a *assembler) stringIndex(s string) int {
	if i, ok := a.strIdx[s]; ok {
		return i
	}
	i := len(a.file.Strings)
	a.file.Strings = append(a.file.Strings, s)
	a.strIdx[s] = i
	return i
}

func (a *assembler) fieldIndex(cls, name, typ string, static bool) int {
	var id abcfile.EntityID
	found := false
	for ci := range a.file.Classes {
		c := &a.file.Classes[ci]
		if c.Descriptor != cls {
			continue
		}
		for _, f := range c.Fields {
			if f.Name == name && f.Type == typ {
				id, found = f.ID, true
			}
		}
	}
	if !found {
		key := cls + "->" + name + ":" + typ
		if ext, ok := a.extField[key]; ok {
			id = ext
		} else {
			id = a.id()
			a.file.FieldRefs = append(a.file.FieldRefs, abcfile.FieldRef{
				ID: id, Class: cls, Name: name, Type: typ, Static: static,
			})
			a.extField[key] = id
		}
	}
	if i, ok := a.fieldIdx[id]; ok {
		return i
	}
	i := len(a.file.FieldIndex)
	a.file.FieldIndex = append(a.file.FieldIndex, id)
	a.fieldIdx[id] = i
	return i
}

func (a *assembler) methodIndex(cls, name string, proto abcfile.Proto, static bool) int {
	var id abcfile.EntityID
	found := false
	for ci := range a.file.Classes {
		c := &a.file.Classes[ci]
		if c.Descriptor != cls {
			continue
		}
		for _, m := range c.Methods {
			if m.Name == name && m.Proto.String() == proto.String() {
				id, found = m.ID, true
			}
		}
	}
	if !found {
		key := cls + "->" + name + proto.String()
		if ext, ok := a.extMethod[key]; ok {
			id = ext
		} else {
			id = a.id()
			a.file.MethodRefs = append(a.file.MethodRefs, abcfile.MethodRef{
				ID: id, Class: cls, Name: name, Proto: proto, Static: static,
			})
			a.extMethod[key] = id
		}
	}
	if i, ok := a.methodIdx[id]; ok {
		return i
	}
	i := len(a.file.MethodIndex)
	a.file.MethodIndex = append(a.file.MethodIndex, id)
	a.methodIdx[id] = i
	return i
}
