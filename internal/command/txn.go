package command

import (
	"github.com/adred-codev/kvserver/internal/resp"
)

// cmdMULTI starts a transaction for the caller (§4.6). Nesting is
// rejected by txn.Table.Begin.
func cmdMULTI(ctx *Context, args [][]byte) Result {
	if err := ctx.Txn.Begin(ctx.Addr); err != nil {
		return Err(err.Error())
	}
	return Response(resp.Simple("OK"))
}

// cmdDISCARD abandons the caller's open transaction.
func cmdDISCARD(ctx *Context, args [][]byte) Result {
	if err := ctx.Txn.Discard(ctx.Addr); err != nil {
		return Err(err.Error())
	}
	return Response(resp.Simple("OK"))
}

// cmdEXEC runs the caller's queued batch and replies with one array
// element per queued command, including error replies — a dynamic error
// inside the batch never aborts the remaining commands (§4.6). Successful
// writes are fanned out to replicas at EXEC time, not at queue time,
// per the same section's "replication side-effects... occur at EXEC
// time".
func cmdEXEC(ctx *Context, args [][]byte) Result {
	batch, err := ctx.Txn.Take(ctx.Addr)
	if err != nil {
		return Err(err.Error())
	}
	replies := make([]resp.Value, 0, len(batch))
	for _, frame := range batch {
		name, cmdArgs, ok := frame.AsCommand()
		if !ok {
			replies = append(replies, resp.Err("ERR invalid queued command"))
			continue
		}
		result := Dispatch(ctx, name, cmdArgs)
		replies = append(replies, result.Value)

		spec := Lookup(name)
		if spec != nil && spec.IsWrite && result.Value.Kind != resp.KindError {
			Propagate(ctx, frame)
		}
	}
	return Batch(replies)
}

// Propagate fans a successfully applied write command's raw frame out to
// every attached replica and advances the master's replication offset by
// its exact wire length, per §4.8 and §3's offset-advancement invariant.
// Used both by cmdEXEC for batched writes and by the session dispatcher
// for ordinary (non-transaction) writes.
func Propagate(ctx *Context, frame resp.Value) {
	if ctx.Replicas == nil || ctx.Repl == nil {
		return
	}
	wire := frame.Encode()
	ctx.Replicas.Broadcast(wire)
	ctx.Repl.AddOffset(int64(len(wire)))
}
