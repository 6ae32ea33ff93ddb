package typesys

import (
	"testing"

	"bcverify/internal/abcfile"
	"bcverify/internal/absint"
	"bcverify/internal/asm"
	"bcverify/internal/cache"
)

const core = abcfile.LangCore

func fixture(t *testing.T) (*cache.Cache, *Types) {
	t.Helper()
	f, err := asm.Assemble("types.abc", `
.class Lapp/Animal;
.class Lapp/Dog; extends Lapp/Animal;
.class Lapp/Cat; extends Lapp/Animal;
.class Lapp/Pet; interface abstract
.class Lapp/Puppy; extends Lapp/Dog; implements Lapp/Pet;
.class Lapp/Oops; extends Lstd/core/Throwable;
.method static make (ILapp/Dog;)Lapp/Animal;
    lda.null
    return.obj
.end
.method bark (J)V
    return.void
.end
`)
	if err != nil {
		t.Fatal(err)
	}
	c := cache.New()
	c.ProcessFile(f)
	return c, New(c)
}

func class(t *testing.T, c *cache.Cache, ts *Types, d string) absint.Type {
	t.Helper()
	cls, err := c.ResolveAndLink(core, d)
	if err != nil {
		t.Fatalf("%s: %v", d, err)
	}
	return ts.TypeOf(cls)
}

func TestIsSubtype(t *testing.T) {
	c, ts := fixture(t)
	animal := class(t, c, ts, "Lapp/Animal;")
	dog := class(t, c, ts, "Lapp/Dog;")
	cat := class(t, c, ts, "Lapp/Cat;")
	pet := class(t, c, ts, "Lapp/Pet;")
	puppy := class(t, c, ts, "Lapp/Puppy;")
	dogs := class(t, c, ts, "[Lapp/Dog;")
	animals := class(t, c, ts, "[Lapp/Animal;")
	ints := class(t, c, ts, "[I")
	obj := ts.Object(core)

	tests := []struct {
		name       string
		sub, super absint.Type
		want       bool
	}{
		{"reflexive", dog, dog, true},
		{"bot", Bot, dog, true},
		{"top", I32, Top, true},
		{"u1 widens", U1, I32, true},
		{"i16 widens", I16, I32, true},
		{"i32 narrows", I32, I8, false},
		{"i64 is not i32", I64, I32, false},
		{"f64 is not i64", F64, I64, false},
		{"null below reference", Null, dog, true},
		{"null not below int", Null, I32, false},
		{"direct super", dog, animal, true},
		{"transitive", puppy, animal, true},
		{"interface", puppy, pet, true},
		{"siblings", dog, cat, false},
		{"downcast", animal, dog, false},
		{"object root", cat, obj, true},
		{"array covariance", dogs, animals, true},
		{"array contravariance", animals, dogs, false},
		{"array below object", ints, obj, true},
		{"primitive array not covariant", ints, animals, false},
		{"throwable", class(t, c, ts, "Lapp/Oops;"), ts.Throwable(core), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ts.IsSubtype(tt.sub, tt.super); got != tt.want {
				t.Errorf("IsSubtype(%s, %s) = %v, want %v",
					ts.Describe(tt.sub), ts.Describe(tt.super), got, tt.want)
			}
		})
	}
}

func TestJoin(t *testing.T) {
	c, ts := fixture(t)
	animal := class(t, c, ts, "Lapp/Animal;")
	dog := class(t, c, ts, "Lapp/Dog;")
	cat := class(t, c, ts, "Lapp/Cat;")
	puppy := class(t, c, ts, "Lapp/Puppy;")
	str := ts.String(core)

	tests := []struct {
		a, b, want absint.Type
	}{
		{dog, dog, dog},
		{dog, cat, animal},
		{puppy, cat, animal},
		{Null, dog, dog},
		{U1, I16, I16},
		{I32, I64, Top},
		{I32, dog, Top},
		{dog, str, ts.Object(core)},
	}
	for _, tt := range tests {
		got := ts.Join(tt.a, tt.b)
		if got != tt.want {
			t.Errorf("Join(%s, %s) = %s, want %s",
				ts.Describe(tt.a), ts.Describe(tt.b), ts.Describe(got), ts.Describe(tt.want))
		}
		if back := ts.Join(tt.b, tt.a); back != got {
			t.Errorf("Join not commutative for %s, %s", ts.Describe(tt.a), ts.Describe(tt.b))
		}
	}
}

func TestSignatureAndDescribe(t *testing.T) {
	c, ts := fixture(t)
	f := c.Files()[0]
	var mk, bark *cache.CachedMethod
	for _, m := range c.MethodsOf(f) {
		switch m.Name {
		case "make":
			mk = m
		case "bark":
			bark = m
		}
	}
	if err := c.LinkMethod(mk); err != nil {
		t.Fatal(err)
	}
	if err := c.LinkMethod(bark); err != nil {
		t.Fatal(err)
	}
	params, ret := ts.Signature(mk)
	if len(params) != 2 || params[0] != I32 || ts.Describe(params[1]) != "app.Dog" || ts.Describe(ret) != "app.Animal" {
		t.Errorf("make signature = %v -> %s", params, ts.Describe(ret))
	}
	params, ret = ts.Signature(bark)
	if len(params) != 2 || ts.Describe(params[0]) != "app.Oops" || params[1] != I64 || ret != Void {
		t.Errorf("bark signature = %v -> %s", params, ts.Describe(ret))
	}
	if ts.Describe(Null) != "null" || ts.Describe(I32) != "i32" {
		t.Error("fixed type names")
	}
	if ts.Component(class(t, c, ts, "[I")) != I32 || ts.Component(I32) != Top {
		t.Error("Component")
	}
	if !ts.IsArray(class(t, c, ts, "[[J")) || ts.IsArray(Null) || !ts.IsReference(Null) {
		t.Error("IsArray/IsReference")
	}
}
