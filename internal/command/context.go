package command

import (
	"github.com/adred-codev/kvserver/internal/pubsub"
	"github.com/adred-codev/kvserver/internal/replicaset"
	"github.com/adred-codev/kvserver/internal/replication"
	"github.com/adred-codev/kvserver/internal/store"
	"github.com/adred-codev/kvserver/internal/txn"
	"github.com/adred-codev/kvserver/internal/waiters"
)

// Context bundles every shared handle a handler may need: the store,
// the waiter/transaction/pubsub/replica tables, replication state, and
// this session's own identity — exactly the "shared handles to the
// store, state, server config, and the calling session identity" spec
// §4.4 requires.
type Context struct {
	Store    *store.Store
	BLPOP    *waiters.BLPOPRegistry
	XRead    *waiters.XReadRegistry
	Txn      *txn.Table
	PubSub   *pubsub.Table
	Replicas *replicaset.Table
	Repl     *replication.State
	Pacer    *replication.GetAckPacer

	Dir        string
	DBFilename string

	// Addr is this session's client-address identity, the key used
	// across the waiter, transaction, pub/sub, and replica tables.
	Addr string

	// PubSubSink is this session's outbound path for SUBSCRIBE/PUBLISH
	// push deliveries.
	PubSubSink pubsub.Sink

	// ReplicaSink is this session's outbound path once it is promoted to
	// a replica (write-command fan-out).
	ReplicaSink replicaset.Sink
}
