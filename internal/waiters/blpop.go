// Package waiters implements the blocking-operation registries (C5): one
// table for BLPOP's per-key FIFO queue, one for XREAD's per-(key, last-seen
// ID) fan-out set. Neither table touches the store directly — callers
// mutate the store themselves and only use these registries to park a
// goroutine and wake it back up, per spec §4.5 and the lock-ordering rule
// in §5 (release the store lock before touching a registry).
package waiters

import (
	"context"
	"sync"
	"time"
)

// blpopWaiter is one parked BLPOP caller. notify is buffered(1) so SignalOne
// can deliver the wakeup while holding the registry lock without blocking.
type blpopWaiter struct {
	notify chan struct{}
}

// BLPOPRegistry holds one FIFO queue of waiters per key.
type BLPOPRegistry struct {
	mu     sync.Mutex
	queues map[string][]*blpopWaiter
}

func NewBLPOPRegistry() *BLPOPRegistry {
	return &BLPOPRegistry{queues: make(map[string][]*blpopWaiter)}
}

// Count reports the number of goroutines currently parked in Await,
// summed across every key — the metrics gauge's blpop series.
func (r *BLPOPRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, q := range r.queues {
		n += len(q)
	}
	return n
}

func (r *BLPOPRegistry) register(key string) *blpopWaiter {
	w := &blpopWaiter{notify: make(chan struct{}, 1)}
	r.mu.Lock()
	r.queues[key] = append(r.queues[key], w)
	r.mu.Unlock()
	return w
}

// deregister removes w from key's queue if it is still waiting there.
// Returns true if it removed w (meaning w was never signalled), false if
// w had already been dequeued by SignalOne — in which case w.notify is
// guaranteed to have its wakeup buffered already, since SignalOne performs
// the dequeue and the send under the same lock.
func (r *BLPOPRegistry) deregister(key string, w *blpopWaiter) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	q := r.queues[key]
	for i, cand := range q {
		if cand == w {
			r.queues[key] = append(q[:i], q[i+1:]...)
			if len(r.queues[key]) == 0 {
				delete(r.queues, key)
			}
			return true
		}
	}
	return false
}

// SignalOne wakes the oldest waiter on key, if any. Called after a push
// makes a list non-empty, with the store lock already released.
func (r *BLPOPRegistry) SignalOne(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q := r.queues[key]
	if len(q) == 0 {
		return
	}
	w := q[0]
	r.queues[key] = q[1:]
	if len(r.queues[key]) == 0 {
		delete(r.queues, key)
	}
	w.notify <- struct{}{}
}

// Await registers a waiter on key, then invokes check once before ever
// blocking. Registering first guarantees an RPUSH landing concurrently with
// this call is never lost: either it completes before check runs, in which
// case check's own locked scan sees it directly, or it completes after, in
// which case SignalOne finds this waiter already queued and delivers the
// wakeup (§8 property 4). Blocks until key is signalled, ctx is cancelled,
// or timeout elapses (timeout<=0 means wait forever, per BLPOP's 0-timeout
// convention). Returns signalled=true whenever check found data or a wakeup
// was delivered; on a delivered wakeup the caller is still responsible for
// re-checking the store, since another waiter or a store mutation unrelated
// to this signal could have emptied the list again (the lost-race case,
// resolved by returning a null array — see DESIGN.md).
func (r *BLPOPRegistry) Await(ctx context.Context, key string, timeout time.Duration, check func() bool) (signalled bool) {
	w := r.register(key)

	if check() {
		if r.deregister(key, w) {
			return true
		}
		<-w.notify // already buffered, see deregister's contract
		return true
	}

	var timerC <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timerC = timer.C
	}

	select {
	case <-w.notify:
		return true
	case <-timerC:
		if r.deregister(key, w) {
			return false
		}
		<-w.notify // already buffered, see deregister's contract
		return true
	case <-ctx.Done():
		if r.deregister(key, w) {
			return false
		}
		<-w.notify
		return true
	}
}
