// Package replicaset implements the replica table (C8): the set of
// sessions that have completed the PSYNC handshake and now receive the
// master's write-command fan-out, each tracked with a last-acknowledged
// offset. The fan-out snapshot uses the same copy-on-write atomic.Value
// idiom as internal/pubsub and its teacher source, ws/internal/shared
// /connection.go's SubscriptionIndex — membership changes (attach/detach)
// are rare, broadcast is the hot path.
package replicaset

import (
	"sync"
	"sync/atomic"
)

// Sink is a replica session's outbound write path.
type Sink interface {
	Push(frame []byte) error
}

type replica struct {
	addr    string
	sink    Sink
	lastAck int64 // atomic
}

// Table holds the live replica set. lastAck defaults to 0 and is treated
// as "unknown" the same as an explicit 0 (decided in DESIGN.md): a
// replica that has never ACKed counts toward WAIT only once the master
// offset itself is 0.
type Table struct {
	mu   sync.Mutex
	snap atomic.Value // []*replica, copy-on-write
}

func NewTable() *Table {
	t := &Table{}
	t.snap.Store([]*replica{})
	return t
}

func (t *Table) list() []*replica { return t.snap.Load().([]*replica) }

// Add registers addr as a new replica with last-ack 0, called once the
// snapshot has been fully sent (spec §4.8).
func (t *Table) Add(addr string, sink Sink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur := t.list()
	next := make([]*replica, len(cur)+1)
	copy(next, cur)
	next[len(cur)] = &replica{addr: addr, sink: sink}
	t.snap.Store(next)
}

// Remove drops addr from the replica set, called on connection close.
func (t *Table) Remove(addr string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur := t.list()
	for i, r := range cur {
		if r.addr == addr {
			next := make([]*replica, len(cur)-1)
			copy(next, cur[:i])
			copy(next[i:], cur[i+1:])
			t.snap.Store(next)
			return
		}
	}
}

// Len reports the current replica count.
func (t *Table) Len() int { return len(t.list()) }

// SetAck records addr's last-acknowledged offset from a REPLCONF ACK.
func (t *Table) SetAck(addr string, offset int64) {
	for _, r := range t.list() {
		if r.addr == addr {
			atomic.StoreInt64(&r.lastAck, offset)
			return
		}
	}
}

// CountAcked reports how many replicas have last-ack >= offset.
func (t *Table) CountAcked(offset int64) int {
	n := 0
	for _, r := range t.list() {
		if atomic.LoadInt64(&r.lastAck) >= offset {
			n++
		}
	}
	return n
}

// Broadcast writes frame to every replica's sink, in table order, so
// application order is preserved across the fan-out (§5's ordering
// invariant). A replica whose write fails has its address returned in
// failedAddrs; the failure does not halt fan-out to the remaining replicas.
func (t *Table) Broadcast(frame []byte) (failedAddrs []string) {
	for _, r := range t.list() {
		if err := r.sink.Push(frame); err != nil {
			failedAddrs = append(failedAddrs, r.addr)
		}
	}
	return failedAddrs
}
