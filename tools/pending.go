package tools

import (
	"context"
	"sync"
)

// Pending is a one-shot handle for a tool step that needs something outside
// the dispatch loop, such as a user confirmation or a terminal run. The
// producer calls Resolve exactly once; the consumer blocks in Await until
// the value arrives or its context ends.
type Pending[T any] struct {
	once sync.Once
	done chan struct{}
	val  T
	err  error
}

// NewPending creates an unresolved handle.
func NewPending[T any]() *Pending[T] {
	return &Pending[T]{done: make(chan struct{})}
}

// Resolve delivers the result. Calls after the first are ignored.
func (p *Pending[T]) Resolve(val T, err error) {
	p.once.Do(func() {
		p.val = val
		p.err = err
		close(p.done)
	})
}

// Await blocks until the handle is resolved or ctx ends.
func (p *Pending[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.val, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
