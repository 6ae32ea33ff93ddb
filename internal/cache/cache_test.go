package cache

import (
	"errors"
	"sync"
	"testing"

	"bcverify/internal/abcfile"
	"bcverify/internal/asm"
)

const core = abcfile.LangCore

func newCache(t *testing.T, srcs ...string) (*Cache, []*abcfile.File) {
	t.Helper()
	c := New()
	var files []*abcfile.File
	for i, src := range srcs {
		f, err := asm.Assemble(string(rune('a'+i))+".abc", src)
		if err != nil {
			t.Fatalf("assemble %d: %v", i, err)
		}
		files = append(files, f)
	}
	c.ProcessFiles(files...)
	return c, files
}

func TestRootClasses(t *testing.T) {
	c := New()
	obj, err := c.RootClass(core, RootObject)
	if err != nil {
		t.Fatalf("object: %v", err)
	}
	if len(obj.Ancestors) != 0 || !obj.Has(ClassSynthetic) {
		t.Errorf("object = %+v", obj)
	}
	str, err := c.RootClass(core, RootString)
	if err != nil {
		t.Fatalf("string: %v", err)
	}
	if len(str.Ancestors) != 1 || str.Ancestors[0].Class() != obj {
		t.Errorf("string ancestors = %v", str.Ancestors)
	}
	for _, d := range abcfile.PrimitiveDescriptors {
		p := c.PrimitiveClass(core, d)
		if p == nil || !p.IsPrimitive() {
			t.Errorf("primitive %s = %v", d, p)
		}
	}
	script, err := c.RootClass(abcfile.LangScript, RootThrowable)
	if err != nil || script.Descriptor != "Lscript/Error;" {
		t.Errorf("script throwable = %v, %v", script, err)
	}
}

func TestArrayOnDemand(t *testing.T) {
	c := New()
	arr, err := c.ResolveAndLink(core, "[[Lstd/core/String;")
	if err != nil {
		t.Fatalf("ResolveAndLink: %v", err)
	}
	if !arr.IsArray() || !arr.Has(ClassObjectArray) {
		t.Errorf("flags = %b", arr.Flags)
	}
	comp := arr.ArrayComponent.Class()
	if comp == nil || comp.Descriptor != "[Lstd/core/String;" || comp.ArrayComponent.Class() == nil {
		t.Fatalf("component = %v", arr.ArrayComponent)
	}
	prim, err := c.ResolveAndLink(core, "[I")
	if err != nil || prim.Has(ClassObjectArray) {
		t.Errorf("[I = %v, %v", prim, err)
	}
	if _, err := c.ResolveAndLink(core, "[V"); !errors.Is(err, ErrNotFound) {
		t.Errorf("[V err = %v, want ErrNotFound", err)
	}
}

func TestProcessAndGetMethod(t *testing.T) {
	c, files := newCache(t, `
.class Lapp/Main;
.field static count I
.method static run (ILapp/Main;)[I regs=1
    lda.null
    return.obj
.end
`)
	f := files[0]
	mid := f.Classes[0].Methods[0].ID
	m, err := c.GetMethod(core, f, mid)
	if err != nil {
		t.Fatalf("GetMethod: %v", err)
	}
	if m.Name != "run" || !m.IsStatic() || !m.HasCode() || m.NumVregs != 1 || m.NumArgs != 2 {
		t.Errorf("method = %+v", m)
	}
	for i, r := range m.Signature {
		if r.Tag() != RefResolved {
			t.Errorf("signature[%d] = %v, want resolved", i, r)
		}
	}
	if got := m.FullName(); got != "app.Main::run : i32[](i32, app.Main)" {
		t.Errorf("FullName = %q", got)
	}
	again, _ := c.GetMethod(core, f, mid)
	if again != m {
		t.Error("GetMethod returned a different identity")
	}

	fd, err := c.GetField(core, f, f.Classes[0].Fields[0].ID)
	if err != nil || fd.FullName() != "app.Main.count : i32" || !fd.IsStatic() {
		t.Errorf("field = %v, %v", fd, err)
	}
	cls, err := c.GetClass(core, f, f.Classes[0].ID)
	if err != nil || cls != m.Class {
		t.Errorf("class = %v, %v", cls, err)
	}
	if _, err := c.GetMethod(core, f, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing method err = %v", err)
	}
}

func TestCycleIsLinkFailure(t *testing.T) {
	c, _ := newCache(t, `
.class LA; extends LB;
.class LB; extends LA;
.class LSelf; extends LSelf;
.class LC; extends LA;
`)
	for _, d := range []string{"LA;", "LB;", "LSelf;", "LC;"} {
		_, err := c.ResolveAndLink(core, d)
		if !errors.Is(err, ErrCycle) {
			t.Errorf("%s: err = %v, want ErrCycle", d, err)
		}
	}
	b := c.ResolveByDescriptor(core, "LB;")
	if c.State(b) != LinkFailed {
		t.Errorf("LB state = %s", c.State(b))
	}
}

func TestUnknownSuper(t *testing.T) {
	c, files := newCache(t, `
.class LOrphan; extends LMissing;
.method static f ()V
    return.void
.end
`)
	f := files[0]
	_, err := c.GetMethod(core, f, f.Classes[0].Methods[0].ID)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestConcurrentIdentity(t *testing.T) {
	c, _ := newCache(t, `
.class Lapp/Main;
`)
	const workers = 64
	descs := []string{"Lapp/Main;", "[[Lapp/Main;", "[J", "Lstd/core/Throwable;"}
	got := make([][]*CachedClass, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for _, d := range descs {
				cls, err := c.ResolveAndLink(core, d)
				if err != nil {
					t.Errorf("%s: %v", d, err)
				}
				got[w] = append(got[w], cls)
			}
		}(w)
	}
	wg.Wait()
	for w := 1; w < workers; w++ {
		for i := range descs {
			if got[w][i] != got[0][i] {
				t.Fatalf("worker %d got a different %s", w, descs[i])
			}
		}
	}
}

func TestMethodAtResolvesThroughAncestors(t *testing.T) {
	c, files := newCache(t, `
.class Llib/Base;
.field value I
.method foo ()V
    return.void
.end
`, `
.class Lapp/Derived; extends Llib/Base;
.method static main (Lapp/Derived;)V regs=0
    call.virt Lapp/Derived;->foo()V, a0
    ldobj a0, Lapp/Derived;->value:I
    lda.type [Lapp/Derived;
    return.void
.end
`)
	app := files[1]
	main, err := c.GetMethod(core, app, app.Classes[0].Methods[0].ID)
	if err != nil {
		t.Fatalf("GetMethod: %v", err)
	}
	foo, err := c.MethodAt(main, 0)
	if err != nil {
		t.Fatalf("MethodAt: %v", err)
	}
	if foo.Class.Descriptor != "Llib/Base;" || foo.Name != "foo" {
		t.Errorf("foo = %v", foo)
	}
	again, _ := c.MethodAt(main, 0)
	if again != foo {
		t.Error("MethodAt identity changed")
	}
	derived := main.Class
	if got := c.ResolveMethod(derived, foo.Hash); got != foo {
		t.Errorf("ResolveMethod = %v", got)
	}
	val, err := c.FieldAt(main, 0)
	if err != nil || val.Class.Descriptor != "Llib/Base;" {
		t.Errorf("FieldAt = %v, %v", val, err)
	}
	if got := c.ResolveField(derived, FieldHashOf("value", "I")); got != val {
		t.Errorf("ResolveField = %v, want %v", got, val)
	}
	if got := c.ResolveField(derived, FieldHashOf("value", "J")); got != nil {
		t.Errorf("ResolveField with wrong type = %v", got)
	}
	arr, err := c.ClassAt(main, 0)
	if err != nil || arr.Descriptor != "[Lapp/Derived;" || arr.ArrayComponent.Class() != derived {
		t.Errorf("ClassAt = %v, %v", arr, err)
	}
	if _, err := c.ClassAt(main, 7); !errors.Is(err, ErrIndexRange) {
		t.Errorf("ClassAt(7) err = %v", err)
	}
	if _, err := c.MethodAt(main, -1); !errors.Is(err, ErrIndexRange) {
		t.Errorf("MethodAt(-1) err = %v", err)
	}
}

func TestStaticnessAffectsResolution(t *testing.T) {
	c, files := newCache(t, `
.class LA;
.method foo ()V
    return.void
.end
.class LB;
.method static main ()V
    call LA;->foo()V
    return.void
.end
`)
	f := files[0]
	main, err := c.GetMethod(core, f, f.Classes[1].Methods[0].ID)
	if err != nil {
		t.Fatalf("GetMethod: %v", err)
	}
	if _, err := c.MethodAt(main, 0); err != nil {
		t.Fatalf("same-file reference resolves by id: %v", err)
	}
	if MethodHashOf("foo", true, abcfile.Proto{Return: "V"}) == MethodHashOf("foo", false, abcfile.Proto{Return: "V"}) {
		t.Error("static marker does not change the hash")
	}
}

func TestConflictingDefinitionKeepsFirst(t *testing.T) {
	c, files := newCache(t, ".class LDup;\n", ".class LDup;\n")
	first, err := c.GetClass(core, files[0], files[0].Classes[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	byDesc, err := c.ResolveAndLink(core, "LDup;")
	if err != nil || byDesc != first {
		t.Errorf("descriptor lookup = %v, want first definition", byDesc)
	}
	second, err := c.GetClass(core, files[1], files[1].Classes[0].ID)
	if err != nil || second == first {
		t.Errorf("second definition = %v, %v", second, err)
	}
}

func TestProcessFileTwice(t *testing.T) {
	c, files := newCache(t, ".class LA;\n")
	c.ProcessFile(files[0])
	if n := len(c.Files()); n != 1 {
		t.Errorf("files = %d, want 1", n)
	}
	if n := len(c.ClassesOf(files[0])); n != 1 {
		t.Errorf("classes = %d, want 1", n)
	}
}

func TestVisit(t *testing.T) {
	kinds := []ClassRef{Resolved(&CachedClass{Descriptor: "LA;"}), Unresolved("LB;"), CycleDetected("LC;")}
	want := []string{"r:LA;", "u:LB;", "c:LC;"}
	for i, r := range kinds {
		got := Visit(r,
			func(c *CachedClass) string { return "r:" + c.Descriptor },
			func(d string) string { return "u:" + d },
			func(d string) string { return "c:" + d },
		)
		if got != want[i] {
			t.Errorf("Visit(%v) = %q, want %q", r, got, want[i])
		}
	}
}
