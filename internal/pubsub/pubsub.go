// Package pubsub implements the channel table (C7): SUBSCRIBE/UNSUBSCRIBE,
// their pattern variants, and PUBLISH fan-out, per spec §4.7. The reverse
// index from channel/pattern to subscriber is the same copy-on-write
// atomic.Value snapshot the teacher's WebSocket broadcast path uses for its
// SubscriptionIndex (ws/internal/shared/connection.go) — publish holds the
// table mutex only long enough to load the snapshots and pushes after
// releasing it; a full copy happens only on the rare subscribe/unsubscribe.
package pubsub

import (
	"sync"
	"sync/atomic"

	"github.com/adred-codev/kvserver/internal/resp"
	"github.com/adred-codev/kvserver/internal/store"
)

// Sink is anything capable of receiving an out-of-band pushed frame —
// satisfied by a session's outbound write queue. Decoupled from the
// session package to avoid an import cycle.
type Sink interface {
	Push(resp.Value) error
}

type subscriber struct {
	addr string
	sink Sink
}

// Table tracks exact-channel and glob-pattern subscriptions plus, per
// client-address, the total subscription count that puts a connection in
// subscribed mode.
type Table struct {
	mu         sync.Mutex
	channels   map[string]*atomic.Value // channel -> []subscriber
	patterns   map[string]*atomic.Value // pattern -> []subscriber
	membership map[string]map[string]bool
}

func NewTable() *Table {
	return &Table{
		channels:   make(map[string]*atomic.Value),
		patterns:   make(map[string]*atomic.Value),
		membership: make(map[string]map[string]bool),
	}
}

func memberKey(kind, name string) string { return kind + ":" + name }

func (t *Table) addMembership(addr, key string) {
	set := t.membership[addr]
	if set == nil {
		set = make(map[string]bool)
		t.membership[addr] = set
	}
	set[key] = true
}

func (t *Table) removeMembership(addr, key string) {
	set := t.membership[addr]
	if set == nil {
		return
	}
	delete(set, key)
	if len(set) == 0 {
		delete(t.membership, addr)
	}
}

// Count returns addr's total subscription count (channels + patterns),
// the value SUBSCRIBE/UNSUBSCRIBE replies carry and the signal for
// subscribed-mode admission.
func (t *Table) Count(addr string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.membership[addr])
}

// ChannelCount reports the number of exact channels with at least one
// subscriber, the metrics gauge's pubsub_channels series. Pattern
// subscriptions are not counted here, matching the gauge's documented
// "channels" scope.
func (t *Table) ChannelCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.channels)
}

func addToIndex(index map[string]*atomic.Value, name, addr string, sink Sink) {
	av := index[name]
	if av == nil {
		av = &atomic.Value{}
		index[name] = av
	}
	var cur []subscriber
	if v := av.Load(); v != nil {
		cur = v.([]subscriber)
	}
	for _, s := range cur {
		if s.addr == addr {
			return
		}
	}
	next := make([]subscriber, len(cur)+1)
	copy(next, cur)
	next[len(cur)] = subscriber{addr: addr, sink: sink}
	av.Store(next)
}

func removeFromIndex(index map[string]*atomic.Value, name, addr string) {
	av, ok := index[name]
	if !ok {
		return
	}
	v := av.Load()
	if v == nil {
		return
	}
	cur := v.([]subscriber)
	for i, s := range cur {
		if s.addr == addr {
			next := make([]subscriber, len(cur)-1)
			copy(next, cur[:i])
			copy(next[i:], cur[i+1:])
			if len(next) == 0 {
				delete(index, name)
			} else {
				av.Store(next)
			}
			return
		}
	}
}

// Subscribe adds addr to channel's subscriber list, returning addr's new
// total subscription count.
func (t *Table) Subscribe(channel, addr string, sink Sink) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	addToIndex(t.channels, channel, addr, sink)
	t.addMembership(addr, memberKey("ch", channel))
	return len(t.membership[addr])
}

// Unsubscribe removes addr from channel, returning addr's new total
// subscription count.
func (t *Table) Unsubscribe(channel, addr string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	removeFromIndex(t.channels, channel, addr)
	t.removeMembership(addr, memberKey("ch", channel))
	return len(t.membership[addr])
}

func (t *Table) PSubscribe(pattern, addr string, sink Sink) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	addToIndex(t.patterns, pattern, addr, sink)
	t.addMembership(addr, memberKey("pat", pattern))
	return len(t.membership[addr])
}

func (t *Table) PUnsubscribe(pattern, addr string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	removeFromIndex(t.patterns, pattern, addr)
	t.removeMembership(addr, memberKey("pat", pattern))
	return len(t.membership[addr])
}

// Channels lists addr's current exact-channel subscriptions, used by
// UNSUBSCRIBE with no arguments ("unsubscribe from all") and disconnect
// cleanup.
func (t *Table) Channels(addr string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for key := range t.membership[addr] {
		if name, ok := cutPrefix(key, "ch:"); ok {
			out = append(out, name)
		}
	}
	return out
}

func (t *Table) Patterns(addr string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for key := range t.membership[addr] {
		if name, ok := cutPrefix(key, "pat:"); ok {
			out = append(out, name)
		}
	}
	return out
}

func cutPrefix(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || s[:len(prefix)] != prefix {
		return "", false
	}
	return s[len(prefix):], true
}

// RemoveClient drops addr from every channel and pattern it was
// subscribed to, used on connection close.
func (t *Table) RemoveClient(addr string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key := range t.membership[addr] {
		if name, ok := cutPrefix(key, "ch:"); ok {
			removeFromIndex(t.channels, name, addr)
		} else if name, ok := cutPrefix(key, "pat:"); ok {
			removeFromIndex(t.patterns, name, addr)
		}
	}
	delete(t.membership, addr)
}

// Publish delivers payload to every exact subscriber of channel (as a
// ["message", channel, payload] frame) and every pattern subscriber whose
// pattern matches channel (as a ["pmessage", pattern, channel, payload]
// frame), returning the number of successful deliveries. A client
// subscribed via both an exact channel and a matching pattern receives,
// and counts, two deliveries.
func (t *Table) Publish(channel string, payload []byte) int {
	t.mu.Lock()
	var exact []subscriber
	if av, ok := t.channels[channel]; ok {
		if v := av.Load(); v != nil {
			exact = v.([]subscriber)
		}
	}
	type patMatch struct {
		pattern string
		subs    []subscriber
	}
	var matches []patMatch
	for pattern, av := range t.patterns {
		if !store.MatchGlob(pattern, channel) {
			continue
		}
		if v := av.Load(); v != nil {
			matches = append(matches, patMatch{pattern: pattern, subs: v.([]subscriber)})
		}
	}
	t.mu.Unlock()

	delivered := 0
	msg := resp.ArrayOf(resp.BulkFromString("message"), resp.BulkFromString(channel), resp.BulkString(payload))
	for _, s := range exact {
		if s.sink.Push(msg) == nil {
			delivered++
		}
	}
	for _, m := range matches {
		pmsg := resp.ArrayOf(resp.BulkFromString("pmessage"), resp.BulkFromString(m.pattern), resp.BulkFromString(channel), resp.BulkString(payload))
		for _, s := range m.subs {
			if s.sink.Push(pmsg) == nil {
				delivered++
			}
		}
	}
	return delivered
}
