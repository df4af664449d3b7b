package background

import (
	"context"
	"sync"
)

// Persist reports the outcome of the asynchronous write started by Store.Set.
type Persist struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newPersist() *Persist {
	return &Persist{done: make(chan struct{})}
}

func completedPersist(err error) *Persist {
	p := newPersist()
	p.finish(err)
	return p
}

func (p *Persist) finish(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

// Done is closed once the write has finished.
func (p *Persist) Done() <-chan struct{} {
	return p.done
}

// Err returns the write's error, or nil while it is still running.
func (p *Persist) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Wait blocks until the write finishes or ctx ends. Giving up on ctx does not
// cancel the write.
func (p *Persist) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
