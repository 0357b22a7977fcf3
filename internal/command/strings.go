package command

import (
	"math"
	"strconv"
	"time"

	"github.com/adred-codev/kvserver/internal/kverr"
	"github.com/adred-codev/kvserver/internal/resp"
	"github.com/adred-codev/kvserver/internal/store"
)

func cmdPING(ctx *Context, args [][]byte) Result {
	if ctx.PubSub.Count(ctx.Addr) > 0 {
		return Response(resp.ArrayOf(resp.BulkFromString("pong"), resp.BulkFromString("")))
	}
	return Response(resp.Simple("PONG"))
}

func cmdECHO(ctx *Context, args [][]byte) Result {
	return Response(resp.BulkString(args[0]))
}

func cmdGET(ctx *Context, args [][]byte) Result {
	v, ok := ctx.Store.Get(string(args[0]))
	if !ok || v.Type != store.TypeString {
		return Response(resp.NullBulk())
	}
	return Response(resp.BulkString(v.Str))
}

func cmdSET(ctx *Context, args [][]byte) Result {
	key := string(args[0])
	val := args[1]
	var deadline time.Time
	if len(args) > 2 {
		if len(args) != 4 || upperAscii(string(args[2])) != "PX" {
			return Err(kverr.Arity("SET").Msg)
		}
		ms, err := strconv.ParseInt(string(args[3]), 10, 64)
		if err != nil {
			return Err(kverr.ErrNotInt.Msg)
		}
		deadline = time.Now().Add(time.Duration(ms) * time.Millisecond)
	}
	ctx.Store.Set(key, &store.Value{Type: store.TypeString, Str: append([]byte(nil), val...), Deadline: deadline})
	return Response(resp.Simple("OK"))
}

func cmdINCR(ctx *Context, args [][]byte) Result {
	key := string(args[0])
	var incrErr error
	var next int64
	_, err := ctx.Store.WithString(key, func(v *store.Value, existed bool) *store.Value {
		var cur int64
		if existed {
			parsed, perr := strconv.ParseInt(string(v.Str), 10, 64)
			if perr != nil {
				incrErr = kverr.ErrNotInt
				return nil
			}
			cur = parsed
		}
		if cur == math.MaxInt64 {
			incrErr = kverr.ErrNotInt
			return nil
		}
		next = cur + 1
		return &store.Value{Type: store.TypeString, Str: []byte(strconv.FormatInt(next, 10))}
	})
	if err != nil {
		return Err(err.Error())
	}
	if incrErr != nil {
		return Err(incrErr.Error())
	}
	return Response(resp.Int(next))
}

func cmdTYPE(ctx *Context, args [][]byte) Result {
	return Response(resp.Simple(ctx.Store.TypeOf(string(args[0])).String()))
}

func cmdKEYS(ctx *Context, args [][]byte) Result {
	keys := ctx.Store.Keys(string(args[0]))
	return Response(resp.StringArray(keys...))
}

func cmdDEL(ctx *Context, args [][]byte) Result {
	n := int64(0)
	for _, a := range args {
		if ctx.Store.Delete(string(a)) {
			n++
		}
	}
	return Response(resp.Int(n))
}

func cmdEXISTS(ctx *Context, args [][]byte) Result {
	n := int64(0)
	for _, a := range args {
		if ctx.Store.Exists(string(a)) {
			n++
		}
	}
	return Response(resp.Int(n))
}

func cmdEXPIRE(ctx *Context, args [][]byte) Result {
	return expireBy(ctx, args, time.Second)
}

func cmdPEXPIRE(ctx *Context, args [][]byte) Result {
	return expireBy(ctx, args, time.Millisecond)
}

func expireBy(ctx *Context, args [][]byte, unit time.Duration) Result {
	n, err := strconv.ParseInt(string(args[1]), 10, 64)
	if err != nil {
		return Err(kverr.ErrNotInt.Msg)
	}
	ok := ctx.Store.Expire(string(args[0]), time.Now().Add(time.Duration(n)*unit))
	if ok {
		return Response(resp.Int(1))
	}
	return Response(resp.Int(0))
}

func cmdTTL(ctx *Context, args [][]byte) Result {
	return ttlBy(ctx, args, time.Second)
}

func cmdPTTL(ctx *Context, args [][]byte) Result {
	return ttlBy(ctx, args, time.Millisecond)
}

func ttlBy(ctx *Context, args [][]byte, unit time.Duration) Result {
	ttl, hasExpiry, ok := ctx.Store.TTL(string(args[0]))
	if !ok {
		return Response(resp.Int(-2))
	}
	if !hasExpiry {
		return Response(resp.Int(-1))
	}
	return Response(resp.Int(int64(ttl / unit)))
}

func cmdPERSIST(ctx *Context, args [][]byte) Result {
	if ctx.Store.Persist(string(args[0])) {
		return Response(resp.Int(1))
	}
	return Response(resp.Int(0))
}

func cmdCONFIGGET(ctx *Context, args [][]byte) Result {
	out := make([]resp.Value, 0, len(args)*2)
	for _, a := range args {
		switch upperAscii(string(a)) {
		case "DIR":
			out = append(out, resp.BulkFromString("dir"), resp.BulkFromString(ctx.Dir))
		case "DBFILENAME":
			out = append(out, resp.BulkFromString("dbfilename"), resp.BulkFromString(ctx.DBFilename))
		}
	}
	return Response(resp.ArrayFrom(out))
}

func upperAscii(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 32
		}
	}
	return string(b)
}
