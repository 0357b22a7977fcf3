package session

import (
	"bufio"
	"context"
	"net"
	"strconv"

	"github.com/adred-codev/kvserver/internal/command"
	"github.com/adred-codev/kvserver/internal/logging"
	"github.com/adred-codev/kvserver/internal/rdb"
	"github.com/adred-codev/kvserver/internal/replication"
	"github.com/adred-codev/kvserver/internal/resp"
)

// noopPubSubSink and noopReplicaSink satisfy command.Context's two sink
// fields for the upstream-apply context, which never issues SUBSCRIBE or
// PSYNC itself — only the write commands a master replays.
type noopPubSubSink struct{}

func (noopPubSubSink) Push(resp.Value) error { return nil }

type noopReplicaSink struct{}

func (noopReplicaSink) Push([]byte) error { return nil }

// ConnectToMaster performs the replica-side handshake (spec §4.8, §6's
// --replicaof), loads the returned snapshot into the server's store, and
// then runs the silent apply loop until ctx is cancelled or the
// connection drops. ownPort is this server's own listening port,
// advertised via REPLCONF listening-port.
func (s *Server) ConnectToMaster(ctx context.Context, masterHost, masterPort, ownPort string) error {
	nc, err := net.Dial("tcp", net.JoinHostPort(masterHost, masterPort))
	if err != nil {
		return err
	}
	defer nc.Close()

	r := bufio.NewReader(nc)
	result, err := replication.Handshake(nc, r, ownPort)
	if err != nil {
		return err
	}

	if err := rdb.DecodeAll(result.Snapshot, s.store); err != nil {
		return err
	}
	s.repl.AdoptMaster(result.ReplID, result.Offset)
	s.cfg.Logger.Info().
		Str("master", net.JoinHostPort(masterHost, masterPort)).
		Int64("offset", result.Offset).
		Msg("replica full resync complete")

	applyCtx := &command.Context{
		Store:       s.store,
		BLPOP:       s.blpop,
		XRead:       s.xread,
		Txn:         s.txns,
		PubSub:      s.pubsub,
		Replicas:    s.replicas,
		Repl:        s.repl,
		Pacer:       s.pacer,
		Dir:         s.cfg.Dir,
		DBFilename:  s.cfg.DBFilename,
		Addr:        "master-link",
		PubSubSink:  noopPubSubSink{},
		ReplicaSink: noopReplicaSink{},
	}

	defer logging.RecoverPanic(s.cfg.Logger, "session.ConnectToMaster", map[string]any{"master": masterHost})
	return replication.RunApplyLoop(ctx, nc, r, s.repl, applyFunc(applyCtx))
}

// applyFunc turns one frame from the master stream into either a direct
// store mutation (dispatched through the same command.Registry ordinary
// clients use) or, for REPLCONF GETACK, the ack reply RunApplyLoop writes
// back upstream — the one case a replica answers on its own master
// connection (spec §4.8).
func applyFunc(ctx *command.Context) replication.ApplyFunc {
	return func(cmd resp.Value) *resp.Value {
		name, args, ok := cmd.AsCommand()
		if !ok {
			return nil
		}
		if name == "REPLCONF" && len(args) >= 1 && upperAscii(string(args[0])) == "GETACK" {
			ack := resp.StringArray("REPLCONF", "ACK", strconv.FormatInt(ctx.Repl.Offset(), 10))
			return &ack
		}
		if name == "PING" {
			return nil
		}
		command.Dispatch(ctx, name, args)
		return nil
	}
}
