// Package memory provides an in-memory key/value store intended for tests
// and examples. Failures can be injected per operation to exercise the
// soft-fail paths of its callers.
package memory

import (
	"context"
	"sync"
)

// Store is a concurrency-safe in-memory implementation of store.KeyValue.
type Store struct {
	mu     sync.RWMutex
	values map[string]string
	writes int

	getErr    error
	setErr    error
	removeErr error
}

func New() *Store {
	return &Store{values: map[string]string{}}
}

// Seed returns a store pre-populated with values.
func Seed(values map[string]string) *Store {
	s := New()
	for k, v := range values {
		s.values[k] = v
	}
	return s
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.getErr != nil {
		return "", false, s.getErr
	}
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.values[key] = value
	s.writes++
	return nil
}

func (s *Store) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removeErr != nil {
		return s.removeErr
	}
	delete(s.values, key)
	s.writes++
	return nil
}

// FailGet makes every subsequent Get return err. A nil err clears the failure.
func (s *Store) FailGet(err error) {
	s.mu.Lock()
	s.getErr = err
	s.mu.Unlock()
}

// FailSet makes every subsequent Set return err. A nil err clears the failure.
func (s *Store) FailSet(err error) {
	s.mu.Lock()
	s.setErr = err
	s.mu.Unlock()
}

// FailRemove makes every subsequent Remove return err. A nil err clears the failure.
func (s *Store) FailRemove(err error) {
	s.mu.Lock()
	s.removeErr = err
	s.mu.Unlock()
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// Writes returns the number of successful Set and Remove calls.
func (s *Store) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}
