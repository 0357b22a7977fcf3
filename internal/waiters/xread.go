package waiters

import (
	"context"
	"sync"
	"time"

	"github.com/adred-codev/kvserver/internal/store"
)

// xreadWaiter is one parked XREAD caller, possibly registered under
// several (key, last-seen ID) pairs at once (XREAD STREAMS k1 k2 id1 id2).
// notify is buffered(1): the first stream to gain a qualifying entry wins,
// and the woken caller re-scans every key it asked about rather than
// trusting which one fired.
type xreadWaiter struct {
	notify chan struct{}
}

type entryKey struct {
	key string
	id  store.StreamID
}

// XReadRegistry fans a single XADD-driven wakeup out to every waiter whose
// requested "after" ID it satisfies, potentially more than one waiter per
// key and more than one key per waiter.
type XReadRegistry struct {
	mu    sync.Mutex
	table map[entryKey][]*xreadWaiter
}

func NewXReadRegistry() *XReadRegistry {
	return &XReadRegistry{table: make(map[entryKey][]*xreadWaiter)}
}

// Count reports the number of distinct goroutines currently parked in
// Await — the metrics gauge's xread series. A waiter registered under
// several (key, ID) pairs at once is counted once.
func (r *XReadRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[*xreadWaiter]bool)
	for _, q := range r.table {
		for _, w := range q {
			seen[w] = true
		}
	}
	return len(seen)
}

func (r *XReadRegistry) register(keys []string, ids []store.StreamID) *xreadWaiter {
	w := &xreadWaiter{notify: make(chan struct{}, 1)}
	r.mu.Lock()
	for i, k := range keys {
		ek := entryKey{key: k, id: ids[i]}
		r.table[ek] = append(r.table[ek], w)
	}
	r.mu.Unlock()
	return w
}

func (r *XReadRegistry) deregister(keys []string, ids []store.StreamID, w *xreadWaiter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, k := range keys {
		ek := entryKey{key: k, id: ids[i]}
		q := r.table[ek]
		for j, cand := range q {
			if cand == w {
				r.table[ek] = append(q[:j], q[j+1:]...)
				break
			}
		}
		if len(r.table[ek]) == 0 {
			delete(r.table, ek)
		}
	}
}

// NotifyInsert wakes every waiter registered on key whose requested
// "after" ID is now satisfied by newID, i.e. newID is strictly greater
// than the waiter's last-seen ID. Entries it wakes are removed; entries
// it does not satisfy are left in the table for a later, larger insert.
func (r *XReadRegistry) NotifyInsert(key string, newID store.StreamID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ek, waiters := range r.table {
		if ek.key != key || !ek.id.Less(newID) {
			continue
		}
		for _, w := range waiters {
			select {
			case w.notify <- struct{}{}:
			default:
			}
		}
		delete(r.table, ek)
	}
}

// Await registers the given (key, lastSeenID) pairs, then invokes check
// once before ever blocking. Registering first guarantees that an insert
// landing concurrently with this call is never lost: either it completes
// before check runs, in which case check's own locked scan sees it
// directly, or it completes after, in which case NotifyInsert finds this
// waiter already in the table and delivers the wakeup (§8 property 4 — a
// BLPOP/XREAD parked before a push is always woken by it). Returns once
// check reports data, ctx is cancelled, or timeout elapses (timeout<=0
// waits forever). Unlike BLPOP's Await, there is no lost-race case to
// report afterward: XREAD's fan-out delivers the notification exactly
// once and the caller always re-scans every key before deciding what to
// return, so a spurious empty wakeup simply falls back to "no new data
// yet" from the caller's own re-scan — which is the same null-reply shape
// as a timeout.
func (r *XReadRegistry) Await(ctx context.Context, keys []string, ids []store.StreamID, timeout time.Duration, check func() bool) (signalled bool) {
	w := r.register(keys, ids)

	if check() {
		r.deregister(keys, ids, w)
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
		r.deregister(keys, ids, w)
		return true
	case <-timerC:
		r.deregister(keys, ids, w)
		return false
	case <-ctx.Done():
		r.deregister(keys, ids, w)
		return false
	}
}
