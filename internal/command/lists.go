package command

import (
	"context"
	"strconv"
	"time"

	"github.com/adred-codev/kvserver/internal/resp"
	"github.com/adred-codev/kvserver/internal/store"
)

func cmdRPUSH(ctx *Context, args [][]byte) Result {
	return pushCmd(ctx, args, false)
}

func cmdLPUSH(ctx *Context, args [][]byte) Result {
	return pushCmd(ctx, args, true)
}

func pushCmd(ctx *Context, args [][]byte, left bool) Result {
	key := string(args[0])
	vals := args[1:]
	var newLen int
	var wasEmpty bool
	_, err := ctx.Store.WithList(key, true, func(l *store.List) int {
		wasEmpty = l.Len() == 0
		if left {
			newLen = l.LPush(vals...)
		} else {
			newLen = l.RPush(vals...)
		}
		return newLen
	})
	if err != nil {
		return Err(err.Error())
	}
	if wasEmpty && newLen > 0 {
		ctx.BLPOP.SignalOne(key)
	}
	return Response(resp.Int(int64(newLen)))
}

func cmdLPOP(ctx *Context, args [][]byte) Result {
	key := string(args[0])
	count := 1
	explicit := false
	if len(args) > 1 {
		n, err := strconv.Atoi(string(args[1]))
		if err != nil || n < 0 {
			return Err("ERR value is out of range, must be positive")
		}
		count = n
		explicit = true
	}
	var popped [][]byte
	_, err := ctx.Store.WithList(key, false, func(l *store.List) int {
		if l == nil {
			return 0
		}
		popped = l.LPop(count)
		return l.Len()
	})
	if err != nil {
		return Err(err.Error())
	}
	if len(popped) == 0 {
		return Response(resp.NullBulk())
	}
	if !explicit || len(popped) == 1 {
		return Response(resp.BulkString(popped[0]))
	}
	vals := make([]resp.Value, len(popped))
	for i, p := range popped {
		vals[i] = resp.BulkString(p)
	}
	return Response(resp.ArrayFrom(vals))
}

func cmdLLEN(ctx *Context, args [][]byte) Result {
	key := string(args[0])
	n, err := ctx.Store.WithList(key, false, func(l *store.List) int {
		if l == nil {
			return 0
		}
		return l.Len()
	})
	if err != nil {
		return Err(err.Error())
	}
	return Response(resp.Int(int64(n)))
}

func cmdLRANGE(ctx *Context, args [][]byte) Result {
	start, err1 := strconv.Atoi(string(args[1]))
	stop, err2 := strconv.Atoi(string(args[2]))
	if err1 != nil || err2 != nil {
		return Err("ERR value is not an integer or out of range")
	}
	key := string(args[0])
	var items [][]byte
	_, err := ctx.Store.WithList(key, false, func(l *store.List) int {
		if l == nil {
			return 0
		}
		items = l.Range(start, stop)
		return l.Len()
	})
	if err != nil {
		return Err(err.Error())
	}
	vals := make([]resp.Value, len(items))
	for i, it := range items {
		vals[i] = resp.BulkString(it)
	}
	return Response(resp.ArrayFrom(vals))
}

// cmdBLPOP blocks until key has an element or the timeout elapses. A
// timeout of 0 means wait indefinitely (spec §5).
//
// The non-blocking check runs through ctx.BLPOP.Await's check callback
// rather than before it, so the registry always has this caller's waiter
// queued before the first check happens — an RPUSH racing with the check
// either lands before it (the check simply finds the element) or after it
// (SignalOne then finds the already-registered waiter), never in the gap
// between "check found nothing" and "register the waiter" that a
// check-then-register ordering would leave open (§8 property 4).
func cmdBLPOP(ctx *Context, args [][]byte) Result {
	key := string(args[0])
	secs, err := strconv.ParseFloat(string(args[1]), 64)
	if err != nil || secs < 0 {
		return Err("ERR timeout is not a float or negative")
	}
	timeout := time.Duration(secs * float64(time.Second))

	var popped []byte
	var popErr error
	check := func() bool {
		v, ok, e := tryPop(ctx, key)
		if e != nil {
			popErr = e
			return true
		}
		if !ok {
			return false
		}
		popped = v
		return true
	}

	if !ctx.BLPOP.Await(context.Background(), key, timeout, check) {
		return Response(resp.NullArray())
	}
	if popped == nil && popErr == nil {
		// Woken by SignalOne rather than by check: pop once now.
		check()
	}
	if popErr != nil {
		return Err(popErr.Error())
	}
	if popped == nil {
		// Lost-race case: the open question's decided policy (DESIGN.md) is
		// to return a null array rather than re-block if another waiter or
		// mutation emptied the list again between signal and wakeup.
		return Response(resp.NullArray())
	}
	return Response(resp.ArrayOf(resp.BulkFromString(key), resp.BulkString(popped)))
}

func tryPop(ctx *Context, key string) (value []byte, ok bool, err error) {
	_, err = ctx.Store.WithList(key, false, func(l *store.List) int {
		if l == nil || l.Len() == 0 {
			return 0
		}
		popped := l.LPop(1)
		if len(popped) == 1 {
			value = popped[0]
			ok = true
		}
		return l.Len()
	})
	return value, ok, err
}
