// Package keylock serializes work that targets the same record.
//
// Locks are held in memory and only order goroutines of this process.
// Writes that must also hold across processes are made conditional in the
// store.
package keylock

import (
	"context"
	"sync"
)

// Locks hands out one lock per key. Keys with no holder and no waiter are
// dropped, so the map only grows with concurrent work.
type Locks struct {
	mu   sync.Mutex
	held map[string]*entry
}

type entry struct {
	ch   chan struct{}
	refs int
}

// New creates an empty Locks.
func New() *Locks {
	return &Locks{held: make(map[string]*entry)}
}

// Lock blocks until key is free or ctx is done. The returned function
// releases the key and must be called exactly once.
func (l *Locks) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e := l.held[key]
	if e == nil {
		e = &entry{ch: make(chan struct{}, 1)}
		l.held[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-e.ch
				l.release(key, e)
			})
		}, nil
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}
}

func (l *Locks) release(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.held, key)
	}
}
