package background

import (
	"context"
	"fmt"
	"sync"

	"github.com/maloquacious/backdrop/internal/logger"
	"github.com/maloquacious/backdrop/internal/store"
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for load failures and persistence results.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// Store is the single source of truth for the background reference.
type Store struct {
	kv  store.KeyValue
	log logger.Logger

	// setMu serializes snapshot swaps with their notifications so that
	// subscribers see changes in the order Set was called.
	setMu sync.Mutex

	mu          sync.RWMutex
	snap        Snapshot
	seq         uint64
	initialized bool
	subs        map[uint64]func(Snapshot)
	nextSub     uint64

	persistMu sync.Mutex
	persisted uint64

	tails sync.WaitGroup
}

// New returns a Store in state Unset. Call Initialize to restore the saved value.
func New(kv store.KeyValue, opts ...Option) *Store {
	s := &Store{
		kv:   kv,
		log:  logger.Default,
		subs: map[uint64]func(Snapshot){},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize restores the persisted reference. Read failures and malformed
// values are logged and leave the store Unset. A Set that happened before
// Initialize finished wins over the stored value.
func (s *Store) Initialize(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		s.initialized = true
		s.mu.Unlock()
	}()

	value, found, err := s.kv.Get(ctx, Key)
	if err != nil {
		s.log.Warn("%v: %v", ErrLoadFailure, err)
		return
	}
	if !found || value == "" {
		s.log.Debug("background: nothing saved")
		return
	}
	if err := validate(value); err != nil {
		s.log.Warn("%v: %v", ErrLoadFailure, err)
		return
	}

	s.setMu.Lock()
	defer s.setMu.Unlock()

	s.mu.Lock()
	if s.seq != 0 {
		s.mu.Unlock()
		s.log.Debug("background: keeping value set during load")
		return
	}
	s.snap = Snapshot{ImageURI: value}
	subs := s.subscribersLocked()
	s.mu.Unlock()

	s.log.Info("background: restored %q", value)
	notify(subs, Snapshot{ImageURI: value})
}

// Initialized reports whether Initialize has finished.
func (s *Store) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Get returns the current snapshot.
func (s *Store) Get() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Set replaces the reference; an empty uri clears it. Subscribers have been
// notified by the time Set returns. The returned Persist completes when the
// value has been written to, or removed from, durable storage. Subscriber
// callbacks must not call Set.
func (s *Store) Set(ctx context.Context, uri string) *Persist {
	if err := validate(uri); err != nil {
		return completedPersist(err)
	}

	s.setMu.Lock()
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.snap = Snapshot{ImageURI: uri}
	subs := s.subscribersLocked()
	s.mu.Unlock()
	notify(subs, Snapshot{ImageURI: uri})
	s.setMu.Unlock()

	p := newPersist()
	s.tails.Add(1)
	go func() {
		defer s.tails.Done()
		p.finish(s.persist(context.WithoutCancel(ctx), seq, uri))
	}()
	return p
}

// persist writes uri unless a later Set has already been written.
func (s *Store) persist(ctx context.Context, seq uint64, uri string) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if seq < s.persisted {
		s.log.Debug("background: skipping superseded write %d", seq)
		return nil
	}
	s.persisted = seq

	var err error
	if uri == "" {
		err = s.kv.Remove(ctx, Key)
	} else {
		err = s.kv.Set(ctx, Key, uri)
	}
	if err != nil {
		s.log.Error("%v: %v", ErrPersistFailure, err)
		return fmt.Errorf("%w: %w", ErrPersistFailure, err)
	}
	s.log.Debug("background: saved %q", uri)
	return nil
}

// Subscribe registers fn to receive every new snapshot. The returned function
// removes the subscription and may be called more than once.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Close waits for outstanding writes to finish or ctx to end.
func (s *Store) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.tails.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) subscribersLocked() []func(Snapshot) {
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	return subs
}

func notify(subs []func(Snapshot), snap Snapshot) {
	for _, fn := range subs {
		fn(snap)
	}
}
