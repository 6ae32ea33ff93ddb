// Package asm assembles the line-oriented bytecode text format into an
// abcfile.File.
//
//	.language core
//	.class Lapp/Main; extends Lstd/core/Object; public
//	.field static count I
//	.method static run (I)I regs=2
//	    movi v0, 5
//	    lda a0
//	    jeq v0, done
//	    call Lstd/Util;->max(II)I, v0, a0
//	done:
//	    return
//	.end
//
// Registers vN are locals; aN are arguments, numbered after the locals.
// ".catch <type|all> <try-start> <try-end> <handler> <handler-end>" takes
// labels; the label "end" names the offset past the last instruction.
// ".raw <byte>..." emits bytes verbatim. Comments start with '#'.
package asm

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"bcverify/internal/abcfile"
)

// Error is an assembly error at a source line.
type Error struct {
	Line int
	Msg  string
}

func (e *Error) Error() string { return fmt.Sprintf("line %d: %s", e.Line, e.Msg) }

func errorf(line int, format string, args ...any) *Error {
	return &Error{Line: line, Msg: fmt.Sprintf(format, args...)}
}

type srcLine struct {
	num  int
	text string
}

type pendingCatch struct {
	line                                 int
	typ                                  string
	tryStart, tryEnd, handler, handlerEnd string
}

type methodBody struct {
	class, method int
	regs          int
	lines         []srcLine
	catches       []pendingCatch
	abstract      bool
}

type assembler struct {
	file   *abcfile.File
	nextID abcfile.EntityID
	lang   abcfile.Lang
	bodies []*methodBody

	classIdx  map[string]int
	methodIdx map[abcfile.EntityID]int
	fieldIdx  map[abcfile.EntityID]int
	strIdx    map[string]int
	extMethod map[string]abcfile.EntityID
	extField  map[string]abcfile.EntityID
}

// AssembleFile reads and assembles path.
func AssembleFile(path string) (*abcfile.File, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("asm: %w", err)
	}
	f, err := Assemble(path, string(src))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Assemble assembles src into a validated file named name.
func Assemble(name, src string) (*abcfile.File, error) {
	a := &assembler{
		file:      &abcfile.File{Name: name},
		nextID:    1,
		classIdx:  make(map[string]int),
		methodIdx: make(map[abcfile.EntityID]int),
		fieldIdx:  make(map[abcfile.EntityID]int),
		strIdx:    make(map[string]int),
		extMethod: make(map[string]abcfile.EntityID),
		extField:  make(map[string]abcfile.EntityID),
	}
	if err := a.declare(src); err != nil {
		return nil, err
	}
	for _, b := range a.bodies {
		if err := a.encode(b); err != nil {
			return nil, err
		}
	}
	if err := abcfile.Validate(a.file); err != nil {
		return nil, err
	}
	return a.file, nil
}

// MustAssemble is Assemble for fixtures; it panics on error.
func MustAssemble(name, src string) *abcfile.File {
	f, err := Assemble(name, src)
	if err != nil {
		panic(err)
	}
	return f
}

func (a *assembler) id() abcfile.EntityID {
	id := a.nextID
	a.nextID++
	return id
}

// declare is the first pass: directives, entity ids and method bodies.
func (a *assembler) declare(src string) error {
	var body *methodBody
	for i, raw := range strings.Split(src, "\n") {
		num := i + 1
		text := strings.TrimSpace(stripComment(raw))
		if text == "" {
			continue
		}
		if body != nil && !strings.HasPrefix(text, ".end") && !strings.HasPrefix(text, ".catch") {
			body.lines = append(body.lines, srcLine{num: num, text: text})
			continue
		}
		fields := strings.Fields(text)
		switch fields[0] {
		case ".language":
			if len(fields) != 2 {
				return errorf(num, ".language takes one argument")
			}
			l, err := abcfile.ParseLang(fields[1])
			if err != nil {
				return errorf(num, "%v", err)
			}
			a.lang = l
		case ".class":
			if err := a.declareClass(num, fields[1:]); err != nil {
				return err
			}
		case ".field":
			if err := a.declareField(num, fields[1:]); err != nil {
				return err
			}
		case ".method":
			b, err := a.declareMethod(num, fields[1:])
			if err != nil {
				return err
			}
			body = b
		case ".catch":
			if body == nil {
				return errorf(num, ".catch outside method")
			}
			if len(fields) != 6 {
				return errorf(num, ".catch <type|all> <try-start> <try-end> <handler> <handler-end>")
			}
			body.catches = append(body.catches, pendingCatch{
				line: num, typ: fields[1],
				tryStart: fields[2], tryEnd: fields[3], handler: fields[4], handlerEnd: fields[5],
			})
		case ".end":
			if body == nil {
				return errorf(num, ".end without .method")
			}
			a.bodies = append(a.bodies, body)
			body = nil
		default:
			return errorf(num, "unexpected %q outside method", fields[0])
		}
	}
	if body != nil {
		return errorf(strings.Count(src, "\n")+1, "missing .end")
	}
	return nil
}

var classFlags = map[string]uint32{
	"public": abcfile.AccPublic, "final": abcfile.AccFinal, "abstract": abcfile.AccAbstract,
	"interface": abcfile.AccInterface, "synthetic": abcfile.AccSynthetic, "enum": abcfile.AccEnum,
}

var memberFlags = map[string]uint32{
	"public": abcfile.AccPublic, "private": abcfile.AccPrivate, "protected": abcfile.AccProtected,
	"static": abcfile.AccStatic, "final": abcfile.AccFinal, "abstract": abcfile.AccAbstract,
	"native": abcfile.AccNative, "volatile": abcfile.AccVolatile, "synthetic": abcfile.AccSynthetic,
}

func (a *assembler) declareClass(num int, args []string) error {
	if len(args) == 0 {
		return errorf(num, ".class needs a descriptor")
	}
	c := abcfile.Class{ID: a.id(), Descriptor: args[0], Lang: a.lang}
	for i := 1; i < len(args); i++ {
		switch w := args[i]; w {
		case "extends":
			if i+1 >= len(args) {
				return errorf(num, "extends needs a descriptor")
			}
			i++
			c.Super = args[i]
		case "implements":
			for i+1 < len(args) && strings.HasPrefix(args[i+1], "L") {
				i++
				c.Interfaces = append(c.Interfaces, args[i])
			}
		default:
			fl, ok := classFlags[w]
			if !ok {
				return errorf(num, "unknown class flag %q", w)
			}
			c.Flags |= fl
		}
	}
	a.file.Classes = append(a.file.Classes, c)
	return nil
}

func (a *assembler) currentClass(num int) (*abcfile.Class, error) {
	if len(a.file.Classes) == 0 {
		return nil, errorf(num, "member outside .class")
	}
	return &a.file.Classes[len(a.file.Classes)-1], nil
}

func (a *assembler) declareField(num int, args []string) error {
	c, err := a.currentClass(num)
	if err != nil {
		return err
	}
	var flags uint32
	for len(args) > 2 {
		fl, ok := memberFlags[args[0]]
		if !ok {
			return errorf(num, "unknown field flag %q", args[0])
		}
		flags |= fl
		args = args[1:]
	}
	if len(args) != 2 {
		return errorf(num, ".field [flags] <name> <type>")
	}
	c.Fields = append(c.Fields, abcfile.Field{ID: a.id(), Name: args[0], Flags: flags, Type: args[1]})
	return nil
}

func (a *assembler) declareMethod(num int, args []string) (*methodBody, error) {
	c, err := a.currentClass(num)
	if err != nil {
		return nil, err
	}
	var flags uint32
	regs := 0
	var rest []string
	for _, w := range args {
		if fl, ok := memberFlags[w]; ok && len(rest) == 0 {
			flags |= fl
			continue
		}
		if v, ok := strings.CutPrefix(w, "regs="); ok {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 || n > math.MaxUint8 {
				return nil, errorf(num, "bad register count %q", v)
			}
			regs = n
			continue
		}
		rest = append(rest, w)
	}
	if len(rest) != 2 {
		return nil, errorf(num, ".method [flags] <name> <proto> [regs=N]")
	}
	proto, err := abcfile.ParseProto(rest[1])
	if err != nil {
		return nil, errorf(num, "%v", err)
	}
	m := abcfile.Method{ID: a.id(), Name: rest[0], Flags: flags, Proto: proto}
	c.Methods = append(c.Methods, m)
	return &methodBody{
		class:    len(a.file.Classes) - 1,
		method:   len(c.Methods) - 1,
		regs:     regs,
		abstract: flags&(abcfile.AccAbstract|abcfile.AccNative) != 0,
	}, nil
}

// stripComment removes a trailing '#' comment outside string literals.
func stripComment(s string) string {
	inStr := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if inStr {
				i++
			}
		case '"':
			inStr = !inStr
		case '#':
			if !inStr {
				return s[:i]
			}
		}
	}
	return s
}

// splitOperands splits on commas outside string literals.
func splitOperands(s string) []string {
	var out []string
	inStr := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if inStr {
				i++
			}
		case '"':
			inStr = !inStr
		case ',':
			if !inStr {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if tail := strings.TrimSpace(s[start:]); tail != "" || len(out) > 0 {
		out = append(out, tail)
	}
	return out
}
