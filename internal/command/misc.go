package command

import "github.com/adred-codev/kvserver/internal/resp"

// cmdRESET leaves subscribed mode, discards any open transaction, and
// replies +RESET — named in the subscribed-mode whitelist (spec §3) but
// never given its own row in the command table (SPEC_FULL.md
// "Supplemented features").
func cmdRESET(ctx *Context, args [][]byte) Result {
	ctx.PubSub.RemoveClient(ctx.Addr)
	ctx.Txn.Abandon(ctx.Addr)
	return Response(resp.Simple("RESET"))
}

// cmdQUIT replies +OK; the session dispatcher closes the connection
// immediately after writing this reply.
func cmdQUIT(ctx *Context, args [][]byte) Result {
	return Response(resp.Simple("OK"))
}
