package sitter

import (
	"context"
	"sync"
	"sync/atomic"
)

// Callback receives the aggregated entries of one store operation, or the
// error that terminated it.
type Callback func(result []map[string]any, err error)

// Waiter is the single-shot completion handle for one pending request.
// Resolution stores the outcome, invokes the callback, and closes Done;
// later resolutions are no-ops.
type Waiter struct {
	once sync.Once
	done chan struct{}

	fn      Callback
	entries []map[string]any
	err     error
}

func newWaiter(fn Callback) *Waiter {
	return &Waiter{
		done: make(chan struct{}),
		fn:   fn,
	}
}

// Done is closed once the waiter has resolved.
func (w *Waiter) Done() <-chan struct{} {
	return w.done
}

// Wait blocks until resolution or ctx expiry.
func (w *Waiter) Wait(ctx context.Context) ([]map[string]any, error) {
	select {
	case <-w.done:
		return w.entries, w.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (w *Waiter) resolve(entries []map[string]any, err error) {
	w.once.Do(func() {
		w.entries = entries
		w.err = err
		if w.fn != nil {
			w.fn(entries, err)
		}
		close(w.done)
	})
}

// Registry correlates pending requests by id. Ids are allocated from a
// shared counter starting at 1; the zero id stays reserved for the
// medium's teardown broadcast.
type Registry struct {
	next atomic.Uint64

	mu      sync.Mutex
	waiters map[uint64]*Waiter
}

func NewRegistry() *Registry {
	return &Registry{
		waiters: make(map[uint64]*Waiter),
	}
}

// NextID allocates a correlation id without parking a waiter. Handshake
// and heartbeat envelopes are acknowledged through the connection state
// machine, never through the registry.
func (r *Registry) NextID() uint64 {
	return r.next.Add(1)
}

// Register allocates a fresh id and parks a waiter under it.
func (r *Registry) Register(fn Callback) (uint64, *Waiter) {
	id := r.next.Add(1)
	waiter := newWaiter(fn)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waiters[id] = waiter
	return id, waiter
}

// Resolve pops the waiter for id and completes it. Unknown ids report
// false so the caller can discard stale or foreign correlations silently.
func (r *Registry) Resolve(id uint64, entries []map[string]any, err error) bool {
	r.mu.Lock()
	waiter, ok := r.waiters[id]
	if ok {
		delete(r.waiters, id)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	waiter.resolve(entries, err)
	return true
}

// Abandon drops every pending waiter without completing it. Callbacks are
// not invoked; the teardown path owns this behavior.
func (r *Registry) Abandon() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	dropped := len(r.waiters)
	r.waiters = make(map[uint64]*Waiter)
	return dropped
}

// Len reports the number of requests still awaiting resolution.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waiters)
}
