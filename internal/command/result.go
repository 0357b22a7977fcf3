// Package command implements the command handlers (C9): one function per
// command, all sharing the uniform result contract spec §4.4 describes —
// NoResponse, Response, Batch (EXEC), or Sync (PSYNC).
package command

import "github.com/adred-codev/kvserver/internal/resp"

type ResultKind int

const (
	KindNoResponse ResultKind = iota
	KindResponse
	KindBatch
	KindSync
)

// ExtraAction signals a side effect the dispatcher (C10) must perform
// beyond writing Value to the peer.
type ExtraAction int

const (
	ActionNone ExtraAction = iota
	// ActionSendRdb tells the session to stream Snapshot to the peer
	// immediately after Value (the +FULLRESYNC line), then promote the
	// session to a replica in the replica table.
	ActionSendRdb
	// ActionBecomeReplica tells the session it just completed a replica
	// handshake as the connecting side and should switch into the
	// upstream-apply loop.
	ActionBecomeReplica
)

// Result is the uniform return value of every command handler.
type Result struct {
	Kind     ResultKind
	Value    resp.Value   // Response / Sync
	Batch    []resp.Value // Batch: one encoded reply per queued command
	Extra    ExtraAction
	Snapshot []byte // populated only when Extra == ActionSendRdb
}

func NoResponse() Result { return Result{Kind: KindNoResponse} }

func Response(v resp.Value) Result { return Result{Kind: KindResponse, Value: v} }

func Batch(replies []resp.Value) Result { return Result{Kind: KindBatch, Batch: replies} }

func Sync(v resp.Value, snapshot []byte) Result {
	return Result{Kind: KindSync, Value: v, Extra: ActionSendRdb, Snapshot: snapshot}
}

// Err is shorthand for a Response wrapping an encoded error.
func Err(msg string) Result { return Response(resp.Err(msg)) }
