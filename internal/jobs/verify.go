package jobs

import (
	"sort"

	"bcverify/internal/absint"
	"bcverify/internal/arena"
	"bcverify/internal/bcfmt"
)

type scope struct{ start, end int }

// handlerGroup is one handler entry for one try range. Catch blocks that
// share both catch the join of their types.
type handlerGroup struct {
	scope   scope
	start   int
	caught  absint.Type
	reached bool
}

// handlerGroups groups the method's handlers. A typed catch whose class is
// not a Throwable is a typing error reported at the handler entry.
func handlerGroups(v *absint.VerificationContext) ([]*handlerGroup, bool) {
	ts := v.Types
	throwable := ts.Throwable(v.Method.Lang)
	type key struct {
		scope scope
		start int
	}
	byKey := make(map[key]*handlerGroup)
	var groups []*handlerGroup
	for _, h := range v.Info.Handlers {
		t := throwable
		if !h.CatchAll {
			t = ts.TypeOf(h.Type.Class())
			if !ts.IsSubtype(t, throwable) {
				v.Diags.Addf(h.Start, bcfmt.DiagTyping, "catch type %s is not a %s",
					ts.Describe(t), ts.Describe(throwable))
				return nil, false
			}
		}
		k := key{scope{h.TryStart, h.TryEnd}, h.Start}
		if g, ok := byKey[k]; ok {
			g.caught = ts.Join(g.caught, t)
			continue
		}
		g := &handlerGroup{scope: k.scope, start: h.Start, caught: t}
		byKey[k] = g
		groups = append(groups, g)
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].start < groups[j].start })
	return groups, true
}

// VerifyMethod runs the worklist to a fixpoint. The body is drained
// first; then every handler gets the join of the contexts at the
// exception sources of its try range, with the caught type in acc, and
// the worklist is drained again until no handler context changes.
func VerifyMethod(v *absint.VerificationContext) absint.Status {
	ec := v.Exec
	groups, ok := handlerGroups(v)
	if !ok {
		return absint.Error
	}
	v.Seed()
	status, left := absint.Drain(v)
	if status == absint.Error {
		return status
	}
	for changed := true; changed; {
		changed = false
		merges := make(map[scope]arena.Handle)
		for _, g := range groups {
			h, ok := merges[g.scope]
			if ok {
				ec.Retain(h)
			} else {
				h, ok = ec.JoinAt(v.Info.ExceptionSources(g.scope.start, g.scope.end))
				if !ok {
					continue
				}
				merges[g.scope] = ec.Retain(h)
			}
			g.reached = true
			ctx, _ := ec.Snapshot(h)
			ec.Release(h)
			ctx.Set(absint.Acc, absint.AbstractTypedValue{
				Type:   g.caught,
				Value:  ec.NewValue(),
				Origin: absint.Origin{Kind: absint.OriginCatch, Offset: g.start},
			})
			ec.Current = ctx
			if ec.StoreCurrentRegContextForAddr(g.start) {
				ec.AddEntryPoint(g.start, absint.ExceptionHandler)
				changed = true
			}
		}
		for _, h := range merges {
			ec.Release(h)
		}
		if !changed {
			break
		}
		if status, left = absint.Drain(v); status == absint.Error {
			return status
		}
	}

	unreached := make(map[int]bool)
	for _, g := range groups {
		if !g.reached {
			v.Diags.Addf(g.start, bcfmt.DiagReachability,
				"handler for [0x%04x, 0x%04x) is never entered: no exception source in its try range is reached",
				g.scope.start, g.scope.end)
			unreached[g.start] = true
			status = absint.Worst(status, absint.Warning)
		}
	}
	for _, e := range left {
		if unreached[e.Addr] {
			continue
		}
		v.Diags.Addf(e.Addr, bcfmt.DiagReachability, "unreachable %s entry point", e.Kind)
		status = absint.Worst(status, absint.Warning)
	}
	return status
}
