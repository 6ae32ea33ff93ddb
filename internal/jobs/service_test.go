package jobs

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"bcverify/internal/absint"
	"bcverify/internal/bcfmt"
	"bcverify/internal/cache"
	"bcverify/internal/config"
	"bcverify/internal/typesys"
)

const program = `
.class Lapp/Main;
.method static ok (I)I regs=1
    lda a0
    return
.end
.method static bad ()I regs=1
    lda.obj v0
    return
.end
.method static dead ()V regs=1
    jmp over
    nop
over:
    return.void
.end
`

func newService(t *testing.T, src string, tweak func(*config.Config)) (*Service, []*cache.CachedMethod) {
	t.Helper()
	c, f := load(t, src)
	cfg := config.Default()
	cfg.Verify.Threads = 4
	if tweak != nil {
		tweak(cfg)
	}
	s := New(cfg, c, func() absint.TypeSystem { return typesys.New(c) })
	t.Cleanup(s.Shutdown)
	return s, c.MethodsOf(f)
}

func TestServiceVerifiesAll(t *testing.T) {
	s, methods := newService(t, program, nil)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); err != ErrStarted {
		t.Errorf("second Start = %v", err)
	}
	for _, m := range methods {
		if !s.Enqueue(m) {
			t.Fatalf("enqueue %s refused", m.QualifiedName())
		}
	}
	s.Wait()

	want := map[string]absint.Status{
		"app.Main::bad":  absint.Error,
		"app.Main::dead": absint.Warning,
		"app.Main::ok":   absint.OK,
	}
	results := s.Results()
	if len(results) != len(want) {
		t.Fatalf("got %d results, want %d", len(results), len(want))
	}
	for _, r := range results {
		name := r.Method.QualifiedName()
		if r.Status != want[name] {
			t.Errorf("%s: status %s, want %s (%v)", name, r.Status, want[name], r.Diags)
		}
	}
	if results[0].Method.QualifiedName() != "app.Main::bad" || results[0].Failed != config.StageAbsint {
		t.Errorf("first result = %s failed in %q", results[0].Method.QualifiedName(), results[0].Failed)
	}
}

func TestServiceNotStarted(t *testing.T) {
	s, methods := newService(t, program, nil)
	if s.Enqueue(methods[0]) {
		t.Error("enqueue before Start accepted")
	}
}

func TestWaitForMethod(t *testing.T) {
	s, methods := newService(t, program, nil)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	m := methods[0]
	s.Enqueue(m)
	r, ok := s.WaitForMethod(m, 5*time.Second)
	if !ok || r.Method != m {
		t.Fatalf("WaitForMethod = %v, %v", r, ok)
	}
	if got, ok := s.Result(m.ID); !ok || got.Status != r.Status {
		t.Errorf("Result(%d) = %v, %v", m.ID, got, ok)
	}
}

func TestWaitForTimeout(t *testing.T) {
	s, _ := newService(t, program, nil)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	if s.WaitFor(func(map[uint64]Result) bool { return false }, 120*time.Millisecond) {
		t.Fatal("WaitFor held for a false predicate")
	}
	if d := time.Since(start); d < 100*time.Millisecond {
		t.Errorf("WaitFor returned after %s", d)
	}
}

func TestShutdown(t *testing.T) {
	s, methods := newService(t, program, nil)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	s.Shutdown()
	s.Shutdown()
	if s.Enqueue(methods[0]) {
		t.Error("enqueue after Shutdown accepted")
	}
	if err := s.Start(); err != ErrStopped {
		t.Errorf("Start after Shutdown = %v", err)
	}
	if s.WaitFor(func(map[uint64]Result) bool { return false }, 0) {
		t.Error("WaitFor on a stopped service held")
	}
	s.Wait()
}

func TestShutdownRacingEnqueue(t *testing.T) {
	for round := 0; round < 50; round++ {
		s, methods := newService(t, program, func(cfg *config.Config) {
			cfg.Verify.Threads = 1
			cfg.Verify.QueueSize = 64
		})
		if err := s.Start(); err != nil {
			t.Fatal(err)
		}
		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 20; i++ {
					s.Enqueue(methods[i%len(methods)])
				}
			}()
		}
		s.Shutdown()
		wg.Wait()

		s.mu.Lock()
		pending, queued := s.pending, len(s.queue)
		s.mu.Unlock()
		if pending != 0 || queued != 0 {
			t.Fatalf("round %d: pending = %d, queued = %d after shutdown", round, pending, queued)
		}
	}
}

func TestStrictRejectsAfterError(t *testing.T) {
	s, methods := newService(t, program, func(cfg *config.Config) {
		cfg.Verify.Threads = 1
		cfg.Verify.Strict = true
	})
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	var bad *cache.CachedMethod
	for _, m := range methods {
		if m.Name == "bad" {
			bad = m
		}
	}
	s.Enqueue(bad)
	s.Wait()
	if s.Enqueue(methods[0]) {
		t.Error("strict service accepted work after a failure")
	}
}

func TestWhitelistSkips(t *testing.T) {
	s, methods := newService(t, program, func(cfg *config.Config) {
		cfg.Whitelist.Skip = []string{"app.Main::bad"}
	})
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	for _, m := range methods {
		s.Enqueue(m)
	}
	s.Wait()
	for _, r := range s.Results() {
		if r.Method.Name != "bad" {
			continue
		}
		if !r.Skipped || r.Status != absint.OK || r.Diags[0].Kind != bcfmt.DiagSkipped {
			t.Errorf("skipped result = %+v", r)
		}
	}
}

func TestManyMethodsInParallel(t *testing.T) {
	var b strings.Builder
	b.WriteString(".class Lapp/Many;\n")
	const n = 200
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, ".method static m%d (I)I regs=2\n    movi v0, %d\n    lda a0\n    add2 v0\nloop:\n    jnez done\n    jmp loop\ndone:\n    return\n.end\n", i, i)
	}
	s, methods := newService(t, b.String(), func(cfg *config.Config) {
		cfg.Verify.Threads = 8
		cfg.Verify.QueueSize = 4
	})
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	for _, m := range methods {
		s.Enqueue(m)
	}
	s.Wait()
	results := s.Results()
	if len(results) != n {
		t.Fatalf("got %d results, want %d", len(results), n)
	}
	for _, r := range results {
		if r.Status != absint.OK {
			t.Errorf("%s: %s %v", r.Method.QualifiedName(), r.Status, r.Diags)
		}
	}
}
