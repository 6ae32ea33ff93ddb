package absint

import (
	"fmt"
	"sort"

	"bcverify/internal/arena"
)

// EntryKind tells how control reaches an entry point.
type EntryKind uint8

const (
	MethodBody EntryKind = iota
	ExceptionHandler
)

func (k EntryKind) String() string {
	if k == ExceptionHandler {
		return "handler"
	}
	return "body"
}

// EntryPoint is an address interpretation must (re)start from.
type EntryPoint struct {
	Addr int
	Kind EntryKind
}

func (e EntryPoint) String() string { return fmt.Sprintf("%s@0x%04x", e.Kind, e.Addr) }

// EntryStatus is the outcome of GetEntryPointForChecking.
type EntryStatus uint8

const (
	EntryReady EntryStatus = iota
	AllDone
	NoEntryPointsWithContext
)

type jumpKey struct{ from, to int }

// ExecContext is the worklist state of one method: checkpoints and their
// stored contexts, pending entry points, and the context being built.
// It belongs to a single job.
type ExecContext struct {
	// Current is the context at the instruction being interpreted.
	Current RegContext

	snapshots   *arena.Arena[RegContext]
	stored      map[int]arena.Handle
	checkpoints map[int]struct{}
	pending     []EntryPoint
	queued      map[EntryPoint]struct{}
	processed   map[jumpKey]struct{}
	lastValue   ValueID
}

// NewExecContext returns an empty worklist.
func NewExecContext() *ExecContext {
	return &ExecContext{
		Current:     NewRegContext(),
		snapshots:   arena.New[RegContext](16),
		stored:      make(map[int]arena.Handle),
		checkpoints: make(map[int]struct{}),
		queued:      make(map[EntryPoint]struct{}),
		processed:   make(map[jumpKey]struct{}),
	}
}

// NewValue issues a fresh symbolic value id.
func (ec *ExecContext) NewValue() ValueID {
	ec.lastValue++
	return ec.lastValue
}

// AddEntryPoint queues addr unless it is already pending.
func (ec *ExecContext) AddEntryPoint(addr int, kind EntryKind) {
	e := EntryPoint{addr, kind}
	if _, ok := ec.queued[e]; ok {
		return
	}
	ec.queued[e] = struct{}{}
	ec.pending = append(ec.pending, e)
}

// SetCheckPoint marks addr as a merge point.
func (ec *ExecContext) SetCheckPoint(addr int) {
	ec.checkpoints[addr] = struct{}{}
}

// IsCheckPoint reports whether addr is a merge point.
func (ec *ExecContext) IsCheckPoint(addr int) bool {
	_, ok := ec.checkpoints[addr]
	return ok
}

// CheckPoints returns all merge points in ascending order.
func (ec *ExecContext) CheckPoints() []int {
	out := make([]int, 0, len(ec.checkpoints))
	for a := range ec.checkpoints {
		out = append(out, a)
	}
	sort.Ints(out)
	return out
}

// StoreCurrentRegContextForAddr stores Current at addr, joining it with
// the context already there. It reports whether the stored context
// changed.
func (ec *ExecContext) StoreCurrentRegContextForAddr(addr int) bool {
	return ec.store(addr, ec.Current)
}

func (ec *ExecContext) store(addr int, ctx RegContext) bool {
	h, ok := ec.stored[addr]
	if !ok {
		ec.stored[addr] = ec.snapshots.Acquire(ctx.Clone())
		return true
	}
	prev := ec.snapshots.Ref(h)
	joined := prev.Join(ctx)
	if joined.Equal(*prev) {
		return false
	}
	*prev = joined
	return true
}

// HasContext reports whether a context is stored at addr.
func (ec *ExecContext) HasContext(addr int) bool {
	_, ok := ec.stored[addr]
	return ok
}

// RegContextAt returns a copy of the context stored at addr.
func (ec *ExecContext) RegContextAt(addr int) (RegContext, bool) {
	h, ok := ec.stored[addr]
	if !ok {
		return RegContext{}, false
	}
	return ec.snapshots.Ref(h).Clone(), true
}

// LoadRegContextAt makes the context stored at addr current, with
// inconsistent registers dropped.
func (ec *ExecContext) LoadRegContextAt(addr int) bool {
	ctx, ok := ec.RegContextAt(addr)
	if !ok {
		return false
	}
	ctx.RemoveInconsistentRegs()
	ec.Current = ctx
	return true
}

// GetEntryPointForChecking pops the oldest pending entry point that has a
// stored context and loads that context. NoEntryPointsWithContext means
// entry points remain but none is reachable yet.
func (ec *ExecContext) GetEntryPointForChecking() (EntryPoint, EntryStatus) {
	if len(ec.pending) == 0 {
		return EntryPoint{}, AllDone
	}
	for i, e := range ec.pending {
		if !ec.HasContext(e.Addr) {
			continue
		}
		ec.pending = append(ec.pending[:i], ec.pending[i+1:]...)
		delete(ec.queued, e)
		clear(ec.processed)
		ec.LoadRegContextAt(e.Addr)
		return e, EntryReady
	}
	return EntryPoint{}, NoEntryPointsWithContext
}

// Pending returns the entry points still queued.
func (ec *ExecContext) Pending() []EntryPoint {
	return append([]EntryPoint(nil), ec.pending...)
}

// ProcessJump propagates Current along the edge from -> to. Each edge
// contributes once until the next entry point is popped. The target is
// queued when its stored context changed.
func (ec *ExecContext) ProcessJump(from, to int, kind EntryKind) bool {
	key := jumpKey{from, to}
	if _, done := ec.processed[key]; done {
		return false
	}
	ec.processed[key] = struct{}{}
	if !ec.StoreCurrentRegContextForAddr(to) {
		return false
	}
	ec.AddEntryPoint(to, kind)
	return true
}

// JoinAt joins the contexts stored at addrs into a shared snapshot. ok is
// false when none of them has a context.
func (ec *ExecContext) JoinAt(addrs []int) (h arena.Handle, ok bool) {
	var acc RegContext
	for _, a := range addrs {
		sh, has := ec.stored[a]
		if !has {
			continue
		}
		ctx := ec.snapshots.Ref(sh)
		if !ok {
			acc, ok = ctx.Clone(), true
			continue
		}
		acc = acc.Join(*ctx)
	}
	if !ok {
		return arena.Handle{}, false
	}
	acc.RemoveInconsistentRegs()
	return ec.snapshots.Acquire(acc), true
}

// Snapshot returns a copy of the shared snapshot h.
func (ec *ExecContext) Snapshot(h arena.Handle) (RegContext, bool) {
	ctx := ec.snapshots.Ref(h)
	if ctx == nil {
		return RegContext{}, false
	}
	return ctx.Clone(), true
}

// Retain adds a user to a shared snapshot.
func (ec *ExecContext) Retain(h arena.Handle) arena.Handle { return ec.snapshots.Retain(h) }

// Release drops a user of a shared snapshot.
func (ec *ExecContext) Release(h arena.Handle) { ec.snapshots.Release(h) }

// LiveSnapshots returns the number of snapshots held, stored contexts
// included.
func (ec *ExecContext) LiveSnapshots() int { return ec.snapshots.Live() }
