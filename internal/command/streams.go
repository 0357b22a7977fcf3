package command

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/adred-codev/kvserver/internal/kverr"
	"github.com/adred-codev/kvserver/internal/resp"
	"github.com/adred-codev/kvserver/internal/store"
)

func cmdXADD(ctx *Context, args [][]byte) Result {
	key := string(args[0])
	idSpec := string(args[1])
	fieldArgs := args[2:]
	if len(fieldArgs) == 0 || len(fieldArgs)%2 != 0 {
		return Err(kverr.Arity("XADD").Msg)
	}
	fields := make([]store.FieldValue, len(fieldArgs)/2)
	for i := 0; i < len(fields); i++ {
		fields[i] = store.FieldValue{
			Field: string(fieldArgs[2*i]),
			Value: append([]byte(nil), fieldArgs[2*i+1]...),
		}
	}

	nowMs := uint64(time.Now().UnixMilli())
	var allocated store.StreamID
	err := ctx.Store.WithStream(key, true, func(s *store.Stream) error {
		id, perr := resolveXAddID(idSpec, s, nowMs)
		if perr != nil {
			return perr
		}
		if ierr := s.Insert(id, fields); ierr != nil {
			return ierr
		}
		allocated = id
		return nil
	})
	if err != nil {
		return Err(err.Error())
	}
	ctx.XRead.NotifyInsert(key, allocated)
	return Response(resp.BulkFromString(allocated.String()))
}

func resolveXAddID(spec string, s *store.Stream, nowMs uint64) (store.StreamID, error) {
	if spec == "*" {
		return s.AllocateFullAuto(nowMs), nil
	}
	if msPart, ok := strings.CutSuffix(spec, "-*"); ok {
		ms, err := strconv.ParseUint(msPart, 10, 64)
		if err != nil {
			return store.StreamID{}, kverr.StreamID("Invalid stream ID specified as stream command argument")
		}
		return s.AllocateSeqForMs(ms)
	}
	// ParseExplicitID's error already carries the wire-ready "ERR ..." text.
	return store.ParseExplicitID(spec)
}

// readStream runs fn against the stream at key under the store lock (§5:
// "reads on the hot path take shared access" against the single mutex —
// there is no separate RLock here since the store uses one coarse lock for
// both readers and writers, but the point is that no reader ever scans
// entries after the lock has been released). fn sees a nil *store.Stream if
// key is absent.
func readStream(ctx *Context, key string, fn func(s *store.Stream)) error {
	return ctx.Store.WithStream(key, false, func(s *store.Stream) error {
		fn(s)
		return nil
	})
}

func cmdXRANGE(ctx *Context, args [][]byte) Result {
	key := string(args[0])
	start, err1 := store.ParseRangeBound(string(args[1]), 0)
	end, err2 := store.ParseRangeBound(string(args[2]), ^uint64(0))
	if err1 != nil || err2 != nil {
		return Err("ERR Invalid stream ID specified as stream command argument")
	}
	var entries []store.StreamEntry
	if err := readStream(ctx, key, func(s *store.Stream) {
		if s != nil {
			entries = s.Range(start, end)
		}
	}); err != nil {
		return Err(err.Error())
	}
	return Response(encodeStreamEntries(entries))
}

func cmdXLEN(ctx *Context, args [][]byte) Result {
	var n int
	if err := readStream(ctx, string(args[0]), func(s *store.Stream) {
		if s != nil {
			n = s.Len()
		}
	}); err != nil {
		return Err(err.Error())
	}
	return Response(resp.Int(int64(n)))
}

func encodeStreamEntries(entries []store.StreamEntry) resp.Value {
	vals := make([]resp.Value, len(entries))
	for i, e := range entries {
		fields := make([]resp.Value, len(e.Fields)*2)
		for j, fv := range e.Fields {
			fields[2*j] = resp.BulkFromString(fv.Field)
			fields[2*j+1] = resp.BulkString(fv.Value)
		}
		vals[i] = resp.ArrayOf(resp.BulkFromString(e.ID.String()), resp.ArrayFrom(fields))
	}
	return resp.ArrayFrom(vals)
}

// cmdXREAD handles `XREAD (BLOCK ms)? STREAMS key... id...`. A `$` id is
// resolved against each key's current max before blocking, so only
// entries inserted after this call wake the reader (spec §4.5).
func cmdXREAD(ctx *Context, args [][]byte) Result {
	idx := 0
	blockMs := int64(-1)
	if idx < len(args) && upperAscii(string(args[idx])) == "BLOCK" {
		ms, err := strconv.ParseInt(string(args[idx+1]), 10, 64)
		if err != nil || ms < 0 {
			return Err("ERR timeout is not an integer or out of range")
		}
		blockMs = ms
		idx += 2
	}
	if idx >= len(args) || upperAscii(string(args[idx])) != "STREAMS" {
		return Err(kverr.Arity("XREAD").Msg)
	}
	idx++
	rest := args[idx:]
	if len(rest) == 0 || len(rest)%2 != 0 {
		return Err(kverr.Arity("XREAD").Msg)
	}
	n := len(rest) / 2
	keys := make([]string, n)
	ids := make([]store.StreamID, n)
	for i := 0; i < n; i++ {
		keys[i] = string(rest[i])
		idToken := string(rest[n+i])
		if idToken == "$" {
			var max store.StreamID
			if err := readStream(ctx, keys[i], func(s *store.Stream) {
				if s == nil {
					return
				}
				if m, ok := s.Max(); ok {
					max = m
				}
			}); err != nil {
				return Err(err.Error())
			}
			ids[i] = max
			continue
		}
		id, err := store.ParseExplicitID(idToken)
		if err != nil {
			return Err("ERR Invalid stream ID specified as stream command argument")
		}
		ids[i] = id
	}

	if reply, any := scanXRead(ctx, keys, ids); any {
		return Response(reply)
	}
	if blockMs < 0 {
		return Response(resp.NullArray())
	}

	// check re-scans every key and is only ever invoked by Await once this
	// call's waiter is already registered, so a push racing with the
	// initial scan above can never signal an empty registry (§8 property 4).
	var reply resp.Value
	found := false
	check := func() bool {
		r, any := scanXRead(ctx, keys, ids)
		if !any {
			return false
		}
		reply = r
		found = true
		return true
	}

	timeout := time.Duration(blockMs) * time.Millisecond
	if !ctx.XRead.Await(context.Background(), keys, ids, timeout, check) {
		return Response(resp.NullArray())
	}
	// A wakeup delivered by NotifyInsert does not run check: re-scan once.
	if !found && !check() {
		return Response(resp.NullArray())
	}
	return Response(reply)
}

func scanXRead(ctx *Context, keys []string, ids []store.StreamID) (resp.Value, bool) {
	var streams []resp.Value
	for i, key := range keys {
		var entries []store.StreamEntry
		if err := readStream(ctx, key, func(s *store.Stream) {
			if s != nil {
				entries = s.After(ids[i])
			}
		}); err != nil || len(entries) == 0 {
			continue
		}
		streams = append(streams, resp.ArrayOf(resp.BulkFromString(key), encodeStreamEntries(entries)))
	}
	if len(streams) == 0 {
		return resp.Value{}, false
	}
	return resp.ArrayFrom(streams), true
}
