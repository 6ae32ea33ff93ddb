package cache

// RefTag discriminates ClassRef.
type RefTag uint8

const (
	RefUnresolved RefTag = iota
	RefResolved
	RefCycleDetected
)

func (t RefTag) String() string {
	switch t {
	case RefResolved:
		return "resolved"
	case RefUnresolved:
		return "unresolved"
	case RefCycleDetected:
		return "cycle"
	}
	return "?"
}

// ClassRef is a reference to a cached class that is either resolved, still
// a descriptor string, or known to sit on an inheritance cycle.
type ClassRef struct {
	tag        RefTag
	class      *CachedClass
	descriptor string
}

// Resolved wraps a cached class.
func Resolved(c *CachedClass) ClassRef { return ClassRef{tag: RefResolved, class: c} }

// Unresolved wraps a descriptor awaiting resolution.
func Unresolved(descriptor string) ClassRef {
	return ClassRef{tag: RefUnresolved, descriptor: descriptor}
}

// CycleDetected marks a descriptor whose linking re-entered itself.
func CycleDetected(descriptor string) ClassRef {
	return ClassRef{tag: RefCycleDetected, descriptor: descriptor}
}

// Tag returns the variant.
func (r ClassRef) Tag() RefTag { return r.tag }

// Class returns the cached class of a resolved reference, or nil.
func (r ClassRef) Class() *CachedClass {
	if r.tag != RefResolved {
		return nil
	}
	return r.class
}

// Descriptor returns the descriptor regardless of the variant.
func (r ClassRef) Descriptor() string {
	if r.tag == RefResolved {
		return r.class.Descriptor
	}
	return r.descriptor
}

func (r ClassRef) String() string {
	return r.tag.String() + ":" + r.Descriptor()
}

// Visit dispatches on the variant. Every variant must be handled.
func Visit[R any](r ClassRef,
	resolved func(c *CachedClass) R,
	unresolved func(descriptor string) R,
	cycle func(descriptor string) R,
) R {
	switch r.tag {
	case RefResolved:
		return resolved(r.class)
	case RefCycleDetected:
		return cycle(r.descriptor)
	default:
		return unresolved(r.descriptor)
	}
}
