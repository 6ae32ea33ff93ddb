package jobs

import (
	"errors"
	"sort"
	"sync"
	"time"

	"bcverify/internal/absint"
	"bcverify/internal/bcfmt"
	"bcverify/internal/cache"
	"bcverify/internal/config"
)

// wakeInterval bounds how long a waiter sleeps before re-checking.
const wakeInterval = 50 * time.Millisecond

var (
	ErrStarted = errors.New("jobs: service already started")
	ErrStopped = errors.New("jobs: service stopped")
)

// Service verifies methods on a fixed pool of workers fed by a bounded
// FIFO queue. All workers share one cache; each owns a type system.
type Service struct {
	cfg      *config.Config
	cache    *cache.Cache
	newTypes func() absint.TypeSystem

	queue chan *cache.CachedMethod
	quit  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once

	// sending is held shared by Enqueue from its admission check through
	// the send; Shutdown takes it exclusively before draining the queue.
	sending sync.RWMutex

	mu        sync.Mutex
	cond      *sync.Cond
	results   map[uint64]Result
	pending   int
	started   bool
	stopped   bool
	rejecting bool
}

// New creates a stopped service. newTypes is called once per worker.
func New(cfg *config.Config, c *cache.Cache, newTypes func() absint.TypeSystem) *Service {
	s := &Service{
		cfg:      cfg,
		cache:    c,
		newTypes: newTypes,
		queue:    make(chan *cache.CachedMethod, cfg.Verify.QueueSize),
		quit:     make(chan struct{}),
		results:  make(map[uint64]Result),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Start launches the workers.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.stopped:
		return ErrStopped
	case s.started:
		return ErrStarted
	}
	s.started = true
	n := max(s.cfg.Verify.Threads, 1)
	for i := 0; i < n; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
	log.Infof("started %d verification workers, queue size %d", n, cap(s.queue))
	return nil
}

// Enqueue schedules m. It blocks while the queue is full and returns
// false once the service is stopped, not started, or in strict mode
// after a failure.
func (s *Service) Enqueue(m *cache.CachedMethod) bool {
	s.sending.RLock()
	defer s.sending.RUnlock()
	s.mu.Lock()
	if !s.started || s.stopped || s.rejecting {
		s.mu.Unlock()
		return false
	}
	s.pending++
	s.mu.Unlock()

	select {
	case s.queue <- m:
		return true
	case <-s.quit:
		s.done(nil)
		return false
	}
}

func (s *Service) worker(id int) {
	defer s.wg.Done()
	ts := s.newTypes()
	for {
		select {
		case <-s.quit:
			return
		case m := <-s.queue:
			select {
			case <-s.quit:
				s.done(nil)
				return
			default:
			}
			res := s.verify(m, ts)
			log.Debugf("worker %d: %s %s in %s", id, m.QualifiedName(), res.Status, res.Duration)
			s.done(&res)
		}
	}
}

func (s *Service) verify(m *cache.CachedMethod, ts absint.TypeSystem) Result {
	start := time.Now()
	if !s.cfg.Whitelist.Verifies(m.QualifiedName(), m.Class.Name()) {
		return Result{
			Method:  m,
			Status:  absint.OK,
			Skipped: true,
			Diags:   []bcfmt.Diag{{Offset: -1, Kind: bcfmt.DiagSkipped, Msg: "whitelisted"}},
		}
	}
	job := NewJob(m, OptionsFor(s.cfg, m))
	status, stage := job.DoChecks(s.cache, ts)
	if status == absint.Error {
		log.Warningf("%s failed %s: %v", m.QualifiedName(), stage, job.Diags.Items())
	}
	return Result{
		Method:   m,
		Status:   status,
		Diags:    job.Diags.Items(),
		Duration: time.Since(start),
		Failed:   stage,
	}
}

// done records a finished (or dropped, when res is nil) method.
func (s *Service) done(res *Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending--
	if res != nil {
		s.results[res.Method.ID] = *res
		if res.Status == absint.Error && s.cfg.Verify.Strict {
			s.rejecting = true
		}
	}
	s.cond.Broadcast()
}

// Result returns the result for the method with unique id, if finished.
func (s *Service) Result(id uint64) (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[id]
	return r, ok
}

// Results returns every finished result ordered by method name.
func (s *Service) Results() []Result {
	s.mu.Lock()
	out := make([]Result, 0, len(s.results))
	for _, r := range s.results {
		out = append(out, r)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].Method.QualifiedName() < out[j].Method.QualifiedName()
	})
	return out
}

// WaitFor blocks until pred holds or timeout elapses; a non-positive
// timeout waits indefinitely. pred runs under the service lock with the
// finished results and must not call back into the service. Waiters wake
// periodically, so a stopped service never strands them.
func (s *Service) WaitFor(pred func(results map[uint64]Result) bool, timeout time.Duration) bool {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for !pred(s.results) {
		if s.stopped {
			return false
		}
		wait := wakeInterval
		if !deadline.IsZero() {
			left := time.Until(deadline)
			if left <= 0 {
				return false
			}
			wait = min(wait, left)
		}
		t := time.AfterFunc(wait, s.cond.Broadcast)
		s.cond.Wait()
		t.Stop()
	}
	return true
}

// WaitForMethod waits for the result of m.
func (s *Service) WaitForMethod(m *cache.CachedMethod, timeout time.Duration) (Result, bool) {
	var r Result
	ok := s.WaitFor(func(results map[uint64]Result) bool {
		var found bool
		r, found = results[m.ID]
		return found
	}, timeout)
	return r, ok
}

// Wait blocks until every enqueued method has finished or the service
// stops.
func (s *Service) Wait() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.pending > 0 && !s.stopped {
		t := time.AfterFunc(wakeInterval, s.cond.Broadcast)
		s.cond.Wait()
		t.Stop()
	}
}

// Shutdown stops accepting work, lets in-flight methods finish and drops
// the rest of the queue.
func (s *Service) Shutdown() {
	s.once.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()
		close(s.quit)
		s.sending.Lock()
		s.sending.Unlock()
		s.wg.Wait()
		for {
			select {
			case <-s.queue:
				s.done(nil)
			default:
				s.cond.Broadcast()
				log.Infof("verification service stopped")
				return
			}
		}
	})
}
