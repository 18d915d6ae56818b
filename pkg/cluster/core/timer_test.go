package core

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// synchronousPost mimics the Supervisor's dispatch loop closely
// enough for these tests: it just runs fn immediately, since there's
// no concurrent state here for a single-writer violation to corrupt.
func synchronousPost(fn func()) { fn() }

func TestSetTimeoutFiresOnce(t *testing.T) {
	r := NewRegistry(synchronousPost)
	var count int32
	r.SetTimeout("k", 10*time.Millisecond, func() { atomic.AddInt32(&count, 1) })

	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt32(&count); got != 1 {
		t.Errorf("expected exactly 1 fire, got %d", got)
	}
	if r.Has("k") {
		t.Error("expected timeout to be removed from registry after firing")
	}
}

func TestSetIntervalFiresRepeatedly(t *testing.T) {
	r := NewRegistry(synchronousPost)
	var count int32
	r.SetInterval("k", 5*time.Millisecond, func() { atomic.AddInt32(&count, 1) })
	defer r.CancelAll()

	time.Sleep(40 * time.Millisecond)
	if got := atomic.LoadInt32(&count); got < 3 {
		t.Errorf("expected at least 3 fires in 40ms at 5ms period, got %d", got)
	}
}

func TestRekeyCancelsPrior(t *testing.T) {
	r := NewRegistry(synchronousPost)
	var first, second int32
	r.SetTimeout("k", 10*time.Millisecond, func() { atomic.AddInt32(&first, 1) })
	r.SetTimeout("k", 30*time.Millisecond, func() { atomic.AddInt32(&second, 1) })

	time.Sleep(60 * time.Millisecond)
	if atomic.LoadInt32(&first) != 0 {
		t.Error("expected the first timer to have been cancelled by the rekey")
	}
	if atomic.LoadInt32(&second) != 1 {
		t.Error("expected the rekeyed timer to have fired")
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	r := NewRegistry(synchronousPost)
	r.SetTimeout("k", 10*time.Millisecond, func() {})
	r.Cancel("k")
	r.Cancel("k") // must not panic
	if r.Has("k") {
		t.Error("expected key to be gone after cancel")
	}
}

func TestFireNeverRunsOnTimerGoroutineDirectly(t *testing.T) {
	var mu sync.Mutex
	var postedFrom string

	post := func(fn func()) {
		mu.Lock()
		postedFrom = "post"
		mu.Unlock()
		fn()
	}

	r := NewRegistry(post)
	done := make(chan struct{})
	r.SetTimeout("k", 5*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}

	mu.Lock()
	defer mu.Unlock()
	if postedFrom != "post" {
		t.Error("expected the callback to be delivered through post, not invoked directly")
	}
}
