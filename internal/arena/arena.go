// Package arena implements an index-stable handle allocator with generation
// counters. A slot lives while its accessor count is positive; releasing the
// last accessor recycles the slot and invalidates outstanding handles.
package arena

// Handle refers to a slot in an Arena. The zero Handle is invalid.
type Handle struct {
	index uint32
	gen   uint32
}

// Valid reports whether h was ever issued.
func (h Handle) Valid() bool { return h.gen != 0 }

type slot[T any] struct {
	value     T
	gen       uint32
	accessors int
}

// Arena stores values of type T behind generational handles.
// It is not safe for concurrent use.
type Arena[T any] struct {
	slots []slot[T]
	free  []uint32
	live  int
}

// New creates an empty arena with room for capacity values.
func New[T any](capacity int) *Arena[T] {
	return &Arena[T]{slots: make([]slot[T], 0, capacity)}
}

// Acquire stores v and returns a handle with one accessor.
func (a *Arena[T]) Acquire(v T) Handle {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		a.slots = append(a.slots, slot[T]{})
		idx = uint32(len(a.slots) - 1)
	}
	s := &a.slots[idx]
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	s.value = v
	s.accessors = 1
	a.live++
	return Handle{index: idx, gen: s.gen}
}

func (a *Arena[T]) slot(h Handle) *slot[T] {
	if !h.Valid() || int(h.index) >= len(a.slots) {
		return nil
	}
	s := &a.slots[h.index]
	if s.gen != h.gen || s.accessors == 0 {
		return nil
	}
	return s
}

// Get returns the value behind h. ok is false for stale or invalid handles.
func (a *Arena[T]) Get(h Handle) (v T, ok bool) {
	s := a.slot(h)
	if s == nil {
		return v, false
	}
	return s.value, true
}

// Ref returns a pointer to the stored value, or nil for stale handles.
// The pointer is invalidated by the next Acquire.
func (a *Arena[T]) Ref(h Handle) *T {
	s := a.slot(h)
	if s == nil {
		return nil
	}
	return &s.value
}

// Retain adds an accessor to h and returns it.
func (a *Arena[T]) Retain(h Handle) Handle {
	if s := a.slot(h); s != nil {
		s.accessors++
	}
	return h
}

// Release drops an accessor. The slot is recycled when none remain.
// Releasing a stale handle is a no-op.
func (a *Arena[T]) Release(h Handle) {
	s := a.slot(h)
	if s == nil {
		return
	}
	s.accessors--
	if s.accessors > 0 {
		return
	}
	var zero T
	s.value = zero
	a.free = append(a.free, h.index)
	a.live--
}

// Accessors returns the accessor count of h (0 if stale).
func (a *Arena[T]) Accessors(h Handle) int {
	if s := a.slot(h); s != nil {
		return s.accessors
	}
	return 0
}

// Live returns the number of slots currently in use.
func (a *Arena[T]) Live() int { return a.live }

// Cap returns the number of slots ever allocated.
func (a *Arena[T]) Cap() int { return len(a.slots) }
