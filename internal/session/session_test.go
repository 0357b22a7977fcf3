package session

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/adred-codev/kvserver/internal/command"
	"github.com/adred-codev/kvserver/internal/replication"
	"github.com/adred-codev/kvserver/internal/resp"
)

// newTestConn builds a Server and one conn wired to it without a real
// net.Conn, since handleFrame never touches c.netConn directly.
func newTestConn(addr string) (*Server, *conn) {
	s := NewServer(Config{
		MaxConnections: 16,
		Logger:         zerolog.Nop(),
	})
	box := newOutbox(outboxCapacity)
	c := &conn{
		addr:   addr,
		box:    box,
		server: s,
	}
	c.ctx = &command.Context{
		Store:       s.store,
		BLPOP:       s.blpop,
		XRead:       s.xread,
		Txn:         s.txns,
		PubSub:      s.pubsub,
		Replicas:    s.replicas,
		Repl:        s.repl,
		Pacer:       s.pacer,
		Addr:        addr,
		PubSubSink:  valueSink{box: box},
		ReplicaSink: frameSink{box: box},
	}
	return s, c
}

func mustRecvFrame(t *testing.T, c *conn) []byte {
	t.Helper()
	select {
	case frame := <-c.box.ch:
		return frame
	default:
		t.Fatal("expected a queued outbound frame, got none")
		return nil
	}
}

func TestHandleFrameDispatchesOrdinaryCommand(t *testing.T) {
	_, c := newTestConn("client:1")
	cont := c.handleFrame(resp.StringArray("SET", "k", "v"))
	if !cont {
		t.Fatal("expected SET to keep the connection open")
	}
	frame := mustRecvFrame(t, c)
	if string(frame) != "+OK\r\n" {
		t.Fatalf("expected +OK\\r\\n, got %q", frame)
	}
}

func TestHandleFrameRejectsUnknownCommand(t *testing.T) {
	_, c := newTestConn("client:2")
	c.handleFrame(resp.StringArray("NOPE"))
	frame := mustRecvFrame(t, c)
	if frame[0] != '-' {
		t.Fatalf("expected an error frame, got %q", frame)
	}
}

func TestHandleFrameRejectsWritesOnReplica(t *testing.T) {
	s, c := newTestConn("client:3")
	s.repl = replication.NewReplica("upstream", "6380")
	c.ctx.Repl = s.repl

	c.handleFrame(resp.StringArray("SET", "k", "v"))
	frame := mustRecvFrame(t, c)
	if string(frame) != "-READONLY You can't write against a read only replica.\r\n" {
		t.Fatalf("expected a READONLY error, got %q", frame)
	}
}

func TestHandleFrameRejectsNonWhitelistedCommandInSubscribedMode(t *testing.T) {
	_, c := newTestConn("client:4")
	c.handleFrame(resp.StringArray("SUBSCRIBE", "chan"))
	// Drain the SUBSCRIBE confirmation before asserting on the next frame.
	mustRecvFrame(t, c)

	c.handleFrame(resp.StringArray("SET", "k", "v"))
	frame := mustRecvFrame(t, c)
	if frame[0] != '-' {
		t.Fatalf("expected SET to be rejected in subscribed mode, got %q", frame)
	}
}

func TestHandleFrameAllowsPingInSubscribedMode(t *testing.T) {
	_, c := newTestConn("client:5")
	c.handleFrame(resp.StringArray("SUBSCRIBE", "chan"))
	mustRecvFrame(t, c)

	c.handleFrame(resp.StringArray("PING"))
	frame := mustRecvFrame(t, c)
	if frame[0] == '-' {
		t.Fatalf("expected PING to be whitelisted in subscribed mode, got %q", frame)
	}
}

func TestHandleFrameQueuesInsideTransaction(t *testing.T) {
	_, c := newTestConn("client:6")
	c.handleFrame(resp.StringArray("MULTI"))
	mustRecvFrame(t, c) // +OK

	c.handleFrame(resp.StringArray("SET", "k", "v"))
	frame := mustRecvFrame(t, c)
	if string(frame) != "+QUEUED\r\n" {
		t.Fatalf("expected +QUEUED\\r\\n while a transaction is open, got %q", frame)
	}

	c.handleFrame(resp.StringArray("EXEC"))
	execReply := mustRecvFrame(t, c)
	if execReply[0] != '*' {
		t.Fatalf("expected an array reply from EXEC, got %q", execReply)
	}
}

func TestHandleFrameBypassesTransactionForSubscribeCommands(t *testing.T) {
	_, c := newTestConn("client:7")
	c.handleFrame(resp.StringArray("MULTI"))
	mustRecvFrame(t, c) // +OK

	c.handleFrame(resp.StringArray("SUBSCRIBE", "chan"))
	frame := mustRecvFrame(t, c)
	if string(frame) == "+QUEUED\r\n" {
		t.Fatal("expected SUBSCRIBE to dispatch immediately rather than queue")
	}
	if !c.server.txns.Exists(c.addr) {
		t.Fatal("expected the open transaction to remain untouched by SUBSCRIBE")
	}
}

func TestHandleFrameConfigGetMergesTwoTokens(t *testing.T) {
	_, c := newTestConn("client:8")
	cont := c.handleFrame(resp.StringArray("CONFIG", "GET", "maxmemory"))
	if !cont {
		t.Fatal("expected CONFIG GET to keep the connection open")
	}
	frame := mustRecvFrame(t, c)
	if frame[0] == '-' {
		t.Fatalf("expected CONFIG GET to be recognized as a single command name, got %q", frame)
	}
}

func TestHandleFrameQuitClosesConnection(t *testing.T) {
	_, c := newTestConn("client:9")
	cont := c.handleFrame(resp.StringArray("QUIT"))
	if cont {
		t.Fatal("expected QUIT to signal connection close")
	}
}
