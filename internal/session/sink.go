package session

import (
	"errors"

	"github.com/adred-codev/kvserver/internal/resp"
)

// ErrSinkClosed is returned by a push against a connection that has
// already shut down; callers (pubsub.Table.Publish, replicaset.Table.
// Broadcast) treat it as a failed delivery and move on to the next
// subscriber/replica rather than stall the whole fan-out.
var ErrSinkClosed = errors.New("session: sink closed")

// outbox is the per-connection outbound queue: every command reply,
// pub/sub push, and replicated write frame for one connection funnels
// through the same channel, which is what keeps the write pump's
// ordering guarantee (§5: "responses are written in order") intact even
// though replies, pushes, and fan-out frames are produced by different
// call sites.
type outbox struct {
	ch   chan []byte
	done chan struct{}
}

func newOutbox(capacity int) *outbox {
	return &outbox{ch: make(chan []byte, capacity), done: make(chan struct{})}
}

func (o *outbox) send(frame []byte) error {
	select {
	case o.ch <- frame:
		return nil
	case <-o.done:
		return ErrSinkClosed
	}
}

func (o *outbox) close() { close(o.done) }

// valueSink adapts an outbox to pubsub.Sink (Push(resp.Value) error):
// the pub/sub table only ever knows about encoded RESP values, never
// raw bytes.
type valueSink struct{ box *outbox }

func (s valueSink) Push(v resp.Value) error { return s.box.send(v.Encode()) }

// frameSink adapts an outbox to replicaset.Sink (Push([]byte) error):
// replica fan-out deals in already-encoded wire frames, re-sent
// byte-for-byte from the original client request (§4.8).
type frameSink struct{ box *outbox }

func (s frameSink) Push(frame []byte) error { return s.box.send(frame) }
