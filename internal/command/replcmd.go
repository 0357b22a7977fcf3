package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adred-codev/kvserver/internal/rdb"
	"github.com/adred-codev/kvserver/internal/replication"
	"github.com/adred-codev/kvserver/internal/resp"
)

// cmdINFO reports role, connected_slaves (master) or master_host and
// master_port (replica), then the replication ID and offset for either
// role — the minimum INFO surface spec §4.4 names, in the familiar
// "section:field\r\n" bulk-string body.
func cmdINFO(ctx *Context, args [][]byte) Result {
	var b strings.Builder
	b.WriteString("# Replication\r\n")
	fmt.Fprintf(&b, "role:%s\r\n", ctx.Repl.Role().String())
	if ctx.Repl.Role() == replication.RoleMaster {
		fmt.Fprintf(&b, "connected_slaves:%d\r\n", ctx.Replicas.Len())
	} else {
		host, port := ctx.Repl.MasterAddr()
		fmt.Fprintf(&b, "master_host:%s\r\n", host)
		fmt.Fprintf(&b, "master_port:%s\r\n", port)
	}
	fmt.Fprintf(&b, "master_replid:%s\r\n", ctx.Repl.ReplID())
	fmt.Fprintf(&b, "master_repl_offset:%d\r\n", ctx.Repl.Offset())
	return Response(resp.BulkFromString(b.String()))
}

// cmdREPLCONF handles the handshake sub-verbs (listening-port, capa) and
// the ongoing ack sub-verb. GETACK is a master-to-replica push handled
// directly in the replica's apply loop (internal/replication), not
// through this client-dispatch path, so it is accepted here only as a
// harmless no-op.
func cmdREPLCONF(ctx *Context, args [][]byte) Result {
	switch upperAscii(string(args[0])) {
	case "LISTENING-PORT", "CAPA":
		return Response(resp.Simple("OK"))
	case "ACK":
		if len(args) < 2 {
			return NoResponse()
		}
		offset, err := strconv.ParseInt(string(args[1]), 10, 64)
		if err == nil {
			ctx.Replicas.SetAck(ctx.Addr, offset)
		}
		return NoResponse()
	case "GETACK":
		return NoResponse()
	default:
		return Response(resp.Simple("OK"))
	}
}

// cmdPSYNC begins a replication session (§4.8): reply FULLRESYNC with
// the current replid/offset, then the dispatcher streams the snapshot
// bytes and promotes the session to a replica (ActionSendRdb).
func cmdPSYNC(ctx *Context, args [][]byte) Result {
	replID := ctx.Repl.ReplID()
	offset := ctx.Repl.Offset()
	line := resp.Simple(fmt.Sprintf("FULLRESYNC %s %d", replID, offset))
	snapshot := rdb.Encode(ctx.Store)
	return Sync(line, snapshot)
}

// cmdWAIT samples the master offset and polls replica acks up to
// timeout_ms, per §4.8.
func cmdWAIT(ctx *Context, args [][]byte) Result {
	n, err1 := strconv.Atoi(string(args[0]))
	timeoutMs, err2 := strconv.Atoi(string(args[1]))
	if err1 != nil || err2 != nil || n < 0 || timeoutMs < 0 {
		return Err("ERR value is not an integer or out of range")
	}
	count := replication.Wait(context.Background(), ctx.Repl, ctx.Replicas, ctx.Pacer, n, time.Duration(timeoutMs)*time.Millisecond)
	return Response(resp.Int(int64(count)))
}
