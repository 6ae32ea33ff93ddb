package absint

import (
	"bcverify/internal/cache"
	"bcverify/internal/disasm"
)

// step applies the type effect of inst to the current context.
func (v *VerificationContext) step(inst disasm.Inst) error {
	a, b := inst.Reg(0), inst.Reg(1)
	at := inst.Addr
	ts := v.Types

	// binary applies acc, vA : t -> acc : res.
	binary := func(t, res Type) error {
		if _, err := v.expect(Acc, t); err != nil {
			return err
		}
		if _, err := v.expect(a, t); err != nil {
			return err
		}
		return v.def(Acc, res, at)
	}
	unary := func(t, res Type) error {
		if _, err := v.expect(Acc, t); err != nil {
			return err
		}
		return v.def(Acc, res, at)
	}

	switch inst.Op {
	case disasm.OpNop, disasm.OpJmp:
		return nil

	case disasm.OpMov:
		val, err := v.expect(b, v.i32)
		if err != nil {
			return err
		}
		return v.move(a, val, at)
	case disasm.OpMov64:
		val, err := v.expectWide(b)
		if err != nil {
			return err
		}
		return v.move(a, val, at)
	case disasm.OpMovObj:
		val, err := v.expectRef(b)
		if err != nil {
			return err
		}
		return v.move(a, val, at)
	case disasm.OpMovi:
		return v.def(a, v.i32, at)
	case disasm.OpMovi64:
		return v.def(a, v.i64, at)

	case disasm.OpLda:
		val, err := v.expect(a, v.i32)
		if err != nil {
			return err
		}
		return v.move(Acc, val, at)
	case disasm.OpLda64:
		val, err := v.expectWide(a)
		if err != nil {
			return err
		}
		return v.move(Acc, val, at)
	case disasm.OpLdaObj:
		val, err := v.expectRef(a)
		if err != nil {
			return err
		}
		return v.move(Acc, val, at)
	case disasm.OpSta:
		val, err := v.expect(Acc, v.i32)
		if err != nil {
			return err
		}
		return v.move(a, val, at)
	case disasm.OpSta64:
		val, err := v.expectWide(Acc)
		if err != nil {
			return err
		}
		return v.move(a, val, at)
	case disasm.OpStaObj:
		val, err := v.expectRef(Acc)
		if err != nil {
			return err
		}
		return v.move(a, val, at)

	case disasm.OpLdai:
		return v.def(Acc, v.i32, at)
	case disasm.OpLdai64:
		return v.def(Acc, v.i64, at)
	case disasm.OpFldai64:
		return v.def(Acc, v.f64, at)
	case disasm.OpLdaStr:
		return v.def(Acc, ts.String(v.lang), at)
	case disasm.OpLdaNull:
		return v.def(Acc, ts.Null(), at)
	case disasm.OpLdaType:
		if _, err := v.class(inst); err != nil {
			return err
		}
		return v.def(Acc, ts.Class(v.lang), at)

	case disasm.OpAdd2, disasm.OpSub2, disasm.OpMul2, disasm.OpDiv2, disasm.OpMod2:
		return binary(v.i32, v.i32)
	case disasm.OpAdd264, disasm.OpSub264, disasm.OpDiv264:
		return binary(v.i64, v.i64)
	case disasm.OpFadd264, disasm.OpFmul264:
		return binary(v.f64, v.f64)
	case disasm.OpCmp64:
		return binary(v.i64, v.i32)
	case disasm.OpFcmpl64:
		return binary(v.f64, v.i32)
	case disasm.OpAddi, disasm.OpNeg, disasm.OpNot:
		return unary(v.i32, v.i32)
	case disasm.OpI32toI64:
		return unary(v.i32, v.i64)
	case disasm.OpI64toI32:
		return unary(v.i64, v.i32)
	case disasm.OpI32toF64:
		return unary(v.i32, v.f64)
	case disasm.OpF64toI32:
		return unary(v.f64, v.i32)

	case disasm.OpJeqz, disasm.OpJnez:
		_, err := v.expect(Acc, v.i32)
		return err
	case disasm.OpJeqzObj, disasm.OpJnezObj:
		_, err := v.expectRef(Acc)
		return err
	case disasm.OpJeq, disasm.OpJlt:
		if _, err := v.expect(Acc, v.i32); err != nil {
			return err
		}
		_, err := v.expect(a, v.i32)
		return err

	case disasm.OpReturn:
		if !v.isInt(v.ret) {
			return typingf("method returns %s", v.describe(v.ret))
		}
		_, err := v.expect(Acc, v.i32)
		return err
	case disasm.OpReturn64:
		if v.ret != v.i64 && v.ret != v.f64 {
			return typingf("method returns %s", v.describe(v.ret))
		}
		_, err := v.expect(Acc, v.ret)
		return err
	case disasm.OpReturnObj:
		if !ts.IsReference(v.ret) {
			return typingf("method returns %s", v.describe(v.ret))
		}
		_, err := v.expect(Acc, v.ret)
		return err
	case disasm.OpReturnVoid:
		if v.ret != v.vtype {
			return typingf("method returns %s", v.describe(v.ret))
		}
		return nil
	case disasm.OpThrow:
		val, err := v.expectRef(a)
		if err != nil {
			return err
		}
		if th := ts.Throwable(v.lang); !ts.IsSubtype(val.Type, th) {
			return typingf("%s: %s is not a %s", RegName(a), v.describe(val.Type), v.describe(th))
		}
		return nil

	case disasm.OpNewobj:
		cls, err := v.class(inst)
		if err != nil {
			return err
		}
		if cls.Has(cache.ClassAbstract) || cls.Has(cache.ClassInterface) || cls.IsArray() || cls.IsPrimitive() {
			return typingf("cannot instantiate %s", cls.Name())
		}
		return v.def(a, ts.TypeOf(cls), at)
	case disasm.OpNewarr:
		cls, err := v.class(inst)
		if err != nil {
			return err
		}
		if !cls.IsArray() {
			return typingf("%s is not an array class", cls.Name())
		}
		if _, err := v.expect(b, v.i32); err != nil {
			return err
		}
		return v.def(a, ts.TypeOf(cls), at)
	case disasm.OpLenarr:
		if _, err := v.expectArray(a); err != nil {
			return err
		}
		return v.def(Acc, v.i32, at)
	case disasm.OpLdarr:
		comp, err := v.intArray(a)
		if err != nil {
			return err
		}
		if _, err := v.expect(Acc, v.i32); err != nil {
			return err
		}
		return v.def(Acc, comp, at)
	case disasm.OpLdarrObj:
		comp, err := v.refArray(a)
		if err != nil {
			return err
		}
		if _, err := v.expect(Acc, v.i32); err != nil {
			return err
		}
		return v.def(Acc, comp, at)
	case disasm.OpStarr:
		if _, err := v.intArray(a); err != nil {
			return err
		}
		if _, err := v.expect(b, v.i32); err != nil {
			return err
		}
		_, err := v.expect(Acc, v.i32)
		return err
	case disasm.OpStarrObj:
		if _, err := v.refArray(a); err != nil {
			return err
		}
		if _, err := v.expect(b, v.i32); err != nil {
			return err
		}
		_, err := v.expectRef(Acc)
		return err

	case disasm.OpLdobj, disasm.OpStobj:
		f, err := v.field(inst, false)
		if err != nil {
			return err
		}
		if _, err := v.expect(a, ts.TypeOf(f.Class)); err != nil {
			return err
		}
		ft := ts.TypeOf(f.Type.Class())
		if inst.Op == disasm.OpLdobj {
			return v.def(Acc, ft, at)
		}
		_, err = v.expect(Acc, ft)
		return err
	case disasm.OpLdstatic, disasm.OpStstatic:
		f, err := v.field(inst, true)
		if err != nil {
			return err
		}
		ft := ts.TypeOf(f.Type.Class())
		if inst.Op == disasm.OpLdstatic {
			return v.def(Acc, ft, at)
		}
		_, err = v.expect(Acc, ft)
		return err

	case disasm.OpCheckcast, disasm.OpIsinstance:
		cls, err := v.class(inst)
		if err != nil {
			return err
		}
		if _, err := v.expectRef(Acc); err != nil {
			return err
		}
		if inst.Op == disasm.OpIsinstance {
			return v.def(Acc, v.i32, at)
		}
		return v.def(Acc, ts.TypeOf(cls), at)

	case disasm.OpCall, disasm.OpCallVirt:
		return v.call(inst)
	}
	return structuralf("unhandled opcode %s", inst.Op)
}

func (v *VerificationContext) intArray(r int) (Type, error) {
	comp, err := v.expectArray(r)
	if err != nil {
		return 0, err
	}
	if comp == v.Types.Top() {
		return v.i32, nil
	}
	if !v.isInt(comp) {
		return 0, typingf("%s: expected an integer array, got %s[]", RegName(r), v.describe(comp))
	}
	return comp, nil
}

func (v *VerificationContext) refArray(r int) (Type, error) {
	comp, err := v.expectArray(r)
	if err != nil {
		return 0, err
	}
	if comp == v.Types.Top() {
		return v.Types.Object(v.lang), nil
	}
	if !v.Types.IsReference(comp) {
		return 0, typingf("%s: expected a reference array, got %s[]", RegName(r), v.describe(comp))
	}
	return comp, nil
}

func (v *VerificationContext) call(inst disasm.Inst) error {
	m, err := v.method(inst)
	if err != nil {
		return err
	}
	virtual := inst.Op == disasm.OpCallVirt
	if virtual == m.IsStatic() {
		kind := "an instance"
		if m.IsStatic() {
			kind = "a static"
		}
		return typingf("%s is %s method", m.QualifiedName(), kind)
	}
	params, ret := v.Types.Signature(m)
	if len(inst.Args) != len(params) {
		return typingf("%s takes %d arguments, %d passed", m.QualifiedName(), len(params), len(inst.Args))
	}
	for i, r := range inst.Args {
		if _, err := v.expect(r, params[i]); err != nil {
			return err
		}
	}
	if ret == v.vtype {
		v.Exec.Current.Undefine(Acc)
		return nil
	}
	return v.def(Acc, ret, inst.Addr)
}
