package command

import "github.com/adred-codev/kvserver/internal/resp"

// Channel (pub/sub, C7) commands. SUBSCRIBE and its siblings can name
// several channels/patterns in one call; the wire protocol replies with
// one confirmation frame per channel, pushed in order through the
// caller's own sink rather than batched into a single array — so every
// subscribe/unsubscribe handler here returns NoResponse after pushing its
// frames directly. PUBLISH replies normally with the delivery count.

func cmdSUBSCRIBE(ctx *Context, args [][]byte) Result {
	for _, a := range args {
		channel := string(a)
		count := ctx.PubSub.Subscribe(channel, ctx.Addr, ctx.PubSubSink)
		_ = ctx.PubSubSink.Push(resp.ArrayOf(
			resp.BulkFromString("subscribe"), resp.BulkFromString(channel), resp.Int(int64(count))))
	}
	return NoResponse()
}

func cmdUNSUBSCRIBE(ctx *Context, args [][]byte) Result {
	channels := args
	if len(channels) == 0 {
		for _, ch := range ctx.PubSub.Channels(ctx.Addr) {
			channels = append(channels, []byte(ch))
		}
	}
	if len(channels) == 0 {
		count := ctx.PubSub.Count(ctx.Addr)
		_ = ctx.PubSubSink.Push(resp.ArrayOf(
			resp.BulkFromString("unsubscribe"), resp.NullBulk(), resp.Int(int64(count))))
		return NoResponse()
	}
	for _, a := range channels {
		channel := string(a)
		count := ctx.PubSub.Unsubscribe(channel, ctx.Addr)
		_ = ctx.PubSubSink.Push(resp.ArrayOf(
			resp.BulkFromString("unsubscribe"), resp.BulkFromString(channel), resp.Int(int64(count))))
	}
	return NoResponse()
}

func cmdPSUBSCRIBE(ctx *Context, args [][]byte) Result {
	for _, a := range args {
		pattern := string(a)
		count := ctx.PubSub.PSubscribe(pattern, ctx.Addr, ctx.PubSubSink)
		_ = ctx.PubSubSink.Push(resp.ArrayOf(
			resp.BulkFromString("psubscribe"), resp.BulkFromString(pattern), resp.Int(int64(count))))
	}
	return NoResponse()
}

func cmdPUNSUBSCRIBE(ctx *Context, args [][]byte) Result {
	patterns := args
	if len(patterns) == 0 {
		for _, p := range ctx.PubSub.Patterns(ctx.Addr) {
			patterns = append(patterns, []byte(p))
		}
	}
	if len(patterns) == 0 {
		count := ctx.PubSub.Count(ctx.Addr)
		_ = ctx.PubSubSink.Push(resp.ArrayOf(
			resp.BulkFromString("punsubscribe"), resp.NullBulk(), resp.Int(int64(count))))
		return NoResponse()
	}
	for _, a := range patterns {
		pattern := string(a)
		count := ctx.PubSub.PUnsubscribe(pattern, ctx.Addr)
		_ = ctx.PubSubSink.Push(resp.ArrayOf(
			resp.BulkFromString("punsubscribe"), resp.BulkFromString(pattern), resp.Int(int64(count))))
	}
	return NoResponse()
}

// cmdSSUBSCRIBE/cmdSUNSUBSCRIBE: this profile has no cluster sharding to
// distinguish sharded pub/sub from ordinary pub/sub (SPEC_FULL.md
// "Supplemented features"), so these reuse the exact-channel table and
// only vary in the reply's leading word.
func cmdSSUBSCRIBE(ctx *Context, args [][]byte) Result {
	for _, a := range args {
		channel := string(a)
		count := ctx.PubSub.Subscribe(channel, ctx.Addr, ctx.PubSubSink)
		_ = ctx.PubSubSink.Push(resp.ArrayOf(
			resp.BulkFromString("ssubscribe"), resp.BulkFromString(channel), resp.Int(int64(count))))
	}
	return NoResponse()
}

func cmdSUNSUBSCRIBE(ctx *Context, args [][]byte) Result {
	channels := args
	if len(channels) == 0 {
		for _, ch := range ctx.PubSub.Channels(ctx.Addr) {
			channels = append(channels, []byte(ch))
		}
	}
	if len(channels) == 0 {
		count := ctx.PubSub.Count(ctx.Addr)
		_ = ctx.PubSubSink.Push(resp.ArrayOf(
			resp.BulkFromString("sunsubscribe"), resp.NullBulk(), resp.Int(int64(count))))
		return NoResponse()
	}
	for _, a := range channels {
		channel := string(a)
		count := ctx.PubSub.Unsubscribe(channel, ctx.Addr)
		_ = ctx.PubSubSink.Push(resp.ArrayOf(
			resp.BulkFromString("sunsubscribe"), resp.BulkFromString(channel), resp.Int(int64(count))))
	}
	return NoResponse()
}

func cmdPUBLISH(ctx *Context, args [][]byte) Result {
	delivered := ctx.PubSub.Publish(string(args[0]), args[1])
	return Response(resp.Int(int64(delivered)))
}
