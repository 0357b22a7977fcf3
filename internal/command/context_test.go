package command

import (
	"time"

	"github.com/adred-codev/kvserver/internal/pubsub"
	"github.com/adred-codev/kvserver/internal/replicaset"
	"github.com/adred-codev/kvserver/internal/replication"
	"github.com/adred-codev/kvserver/internal/resp"
	"github.com/adred-codev/kvserver/internal/store"
	"github.com/adred-codev/kvserver/internal/txn"
	"github.com/adred-codev/kvserver/internal/waiters"
)

// recordingSink captures every pushed value, standing in for a session's
// outbound queue in tests that exercise handlers directly rather than
// through the session dispatcher.
type recordingSink struct {
	pushed []resp.Value
}

func (s *recordingSink) Push(v resp.Value) error {
	s.pushed = append(s.pushed, v)
	return nil
}

type recordingFrameSink struct {
	frames [][]byte
}

func (s *recordingFrameSink) Push(frame []byte) error {
	s.frames = append(s.frames, frame)
	return nil
}

func newTestContext(addr string) (*Context, *recordingSink) {
	sink := &recordingSink{}
	replicas := replicaset.NewTable()
	repl := replication.NewMaster()
	ctx := &Context{
		Store:       store.New(),
		BLPOP:       waiters.NewBLPOPRegistry(),
		XRead:       waiters.NewXReadRegistry(),
		Txn:         txn.NewTable(),
		PubSub:      pubsub.NewTable(),
		Replicas:    replicas,
		Repl:        repl,
		Pacer:       replication.NewGetAckPacer(replicas, repl, time.Second),
		Addr:        addr,
		PubSubSink:  sink,
		ReplicaSink: &recordingFrameSink{},
	}
	return ctx, sink
}
