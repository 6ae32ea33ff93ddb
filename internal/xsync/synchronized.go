// Package xsync holds small concurrency helpers shared by the verifier.
package xsync

import "sync"

// Synchronized guards a value with a read/write lock. Readers run
// concurrently; a writer has exclusive access.
type Synchronized[T any] struct {
	mu sync.RWMutex
	v  T
}

// NewSynchronized wraps v.
func NewSynchronized[T any](v T) *Synchronized[T] {
	return &Synchronized[T]{v: v}
}

// Read calls fn with shared access to the value.
func (s *Synchronized[T]) Read(fn func(v *T)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&s.v)
}

// Write calls fn with exclusive access to the value.
func (s *Synchronized[T]) Write(fn func(v *T)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.v)
}

// ReadValue runs fn under the read lock and returns its result.
func ReadValue[T, R any](s *Synchronized[T], fn func(v *T) R) R {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&s.v)
}

// WriteValue runs fn under the write lock and returns its result.
func WriteValue[T, R any](s *Synchronized[T], fn func(v *T) R) R {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.v)
}
