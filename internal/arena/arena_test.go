package arena

import "testing"

func TestArena_AcquireGet(t *testing.T) {
	a := New[string](4)
	h := a.Acquire("x")
	if !h.Valid() {
		t.Fatal("handle should be valid")
	}
	v, ok := a.Get(h)
	if !ok || v != "x" {
		t.Fatalf("Get = %q, %v", v, ok)
	}
	if a.Live() != 1 {
		t.Errorf("live = %d, want 1", a.Live())
	}
}

func TestArena_RecycleInvalidatesHandle(t *testing.T) {
	a := New[int](0)
	h1 := a.Acquire(1)
	a.Retain(h1)
	a.Release(h1)
	if _, ok := a.Get(h1); !ok {
		t.Fatal("handle released once of two accessors should still be live")
	}
	a.Release(h1)
	if _, ok := a.Get(h1); ok {
		t.Fatal("handle should be stale after last release")
	}

	h2 := a.Acquire(2)
	if h2.index != h1.index {
		t.Errorf("slot not reused: %d vs %d", h2.index, h1.index)
	}
	if h2.gen == h1.gen {
		t.Error("generation should change on reuse")
	}
	if _, ok := a.Get(h1); ok {
		t.Error("stale handle resolved to recycled slot")
	}
	if v, _ := a.Get(h2); v != 2 {
		t.Errorf("Get(h2) = %d, want 2", v)
	}
	if a.Cap() != 1 {
		t.Errorf("cap = %d, want 1", a.Cap())
	}
}

func TestArena_StaleOperationsAreNoops(t *testing.T) {
	a := New[int](0)
	var zero Handle
	a.Release(zero)
	a.Retain(zero)
	if a.Accessors(zero) != 0 || a.Ref(zero) != nil {
		t.Error("zero handle should not resolve")
	}
	h := a.Acquire(7)
	a.Release(h)
	a.Release(h)
	if a.Live() != 0 {
		t.Errorf("live = %d, want 0", a.Live())
	}
}
