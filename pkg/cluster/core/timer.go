package core

import (
	"sync"
	"time"
)

// Registry is the timer component (spec §4.3): a keyed interval/
// timeout registry with idempotent, rekey-cancels-prior semantics.
//
// Firing never invokes the caller's callback directly from the
// time.AfterFunc goroutine — it hands the callback to post, which the
// Supervisor wires to push it onto the single dispatch channel (spec
// §5: handlers only ever run on the dispatch context). The mutex here
// only protects this registry's own bookkeeping map; it is not a
// substitute for that single-writer discipline.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*timerEntry
	post    func(fn func())
}

type timerEntry struct {
	timer     *time.Timer
	fn        func()
	period    time.Duration
	recurring bool
}

// NewRegistry creates a registry whose fired callbacks are delivered
// through post.
func NewRegistry(post func(fn func())) *Registry {
	return &Registry{entries: make(map[string]*timerEntry), post: post}
}

// SetInterval arms (or re-arms) a recurring timer under key, calling
// fn every period until cancelled.
func (r *Registry) SetInterval(key string, period time.Duration, fn func()) {
	r.set(key, period, fn, true)
}

// SetTimeout arms (or re-arms) a one-shot timer under key.
func (r *Registry) SetTimeout(key string, delay time.Duration, fn func()) {
	r.set(key, delay, fn, false)
}

func (r *Registry) set(key string, d time.Duration, fn func(), recurring bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelLocked(key)
	e := &timerEntry{fn: fn, period: d, recurring: recurring}
	e.timer = time.AfterFunc(d, func() { r.fire(key) })
	r.entries[key] = e
}

func (r *Registry) fire(key string) {
	r.mu.Lock()
	e, ok := r.entries[key]
	if !ok {
		r.mu.Unlock()
		return
	}
	if e.recurring {
		e.timer = time.AfterFunc(e.period, func() { r.fire(key) })
	} else {
		delete(r.entries, key)
	}
	fn := e.fn
	r.mu.Unlock()
	r.post(fn)
}

// Cancel stops and removes the timer under key, if any. Idempotent.
func (r *Registry) Cancel(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelLocked(key)
}

func (r *Registry) cancelLocked(key string) {
	if e, ok := r.entries[key]; ok {
		e.timer.Stop()
		delete(r.entries, key)
	}
}

// CancelAll stops and removes every timer in the registry.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.entries {
		r.cancelLocked(k)
	}
}

// Has reports whether key currently has an armed timer.
func (r *Registry) Has(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[key]
	return ok
}

// Len reports the number of currently armed timers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
