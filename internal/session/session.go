// Package session implements the dispatcher/session layer (C10): one
// goroutine pair per accepted connection, the read-side admission pipeline
// (role, subscribed-mode, and transaction-queue checks) in front of
// internal/command's registry, and the write-side pump that turns replies,
// pub/sub pushes, and replica fan-out frames into bytes on the wire. The
// read/write pump split and panic-recovery discipline are ported from the
// teacher's ws/internal/shared/pump_read.go and pump_write.go.
package session

import (
	"bufio"
	"context"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/adred-codev/kvserver/internal/command"
	"github.com/adred-codev/kvserver/internal/logging"
	"github.com/adred-codev/kvserver/internal/metrics"
	"github.com/adred-codev/kvserver/internal/pubsub"
	"github.com/adred-codev/kvserver/internal/replicaset"
	"github.com/adred-codev/kvserver/internal/replication"
	"github.com/adred-codev/kvserver/internal/resp"
	"github.com/adred-codev/kvserver/internal/store"
	"github.com/adred-codev/kvserver/internal/txn"
	"github.com/adred-codev/kvserver/internal/waiters"
)

const outboxCapacity = 4096

// Config bundles everything a Server needs to construct its shared state,
// the per-connection Context template for every command dispatch.
type Config struct {
	Addr           string // TCP listen address, e.g. ":6379"
	Dir            string
	DBFilename     string
	MaxConnections int

	ReplconfGetackInterval time.Duration

	Logger  zerolog.Logger
	Metrics *metrics.Collector
}

// Server owns every shared table (C2-C8, C11) plus the TCP listener and
// connection bookkeeping — the single long-lived object spec §6's startup
// sequence constructs once per process.
type Server struct {
	cfg Config

	store    *store.Store
	blpop    *waiters.BLPOPRegistry
	xread    *waiters.XReadRegistry
	txns     *txn.Table
	pubsub   *pubsub.Table
	replicas *replicaset.Table
	repl     *replication.State
	pacer    *replication.GetAckPacer

	listener net.Listener
	connSem  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer builds a master-role server with every table freshly
// initialized; the caller loads any on-disk snapshot into Store() before
// calling Start.
func NewServer(cfg Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	replicas := replicaset.NewTable()
	repl := replication.NewMaster()
	s := &Server{
		cfg:      cfg,
		store:    store.New(),
		blpop:    waiters.NewBLPOPRegistry(),
		xread:    waiters.NewXReadRegistry(),
		txns:     txn.NewTable(),
		pubsub:   pubsub.NewTable(),
		replicas: replicas,
		repl:     repl,
		pacer:    replication.NewGetAckPacer(replicas, repl, cfg.ReplconfGetackInterval),
		connSem:  make(chan struct{}, maxInt(cfg.MaxConnections, 1)),
		ctx:      ctx,
		cancel:   cancel,
	}
	return s
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Store exposes the shared key/value store, used by cmd/kvserver to load a
// startup snapshot before Start is called and to write one at shutdown.
func (s *Server) Store() *store.Store { return s.store }

// Repl exposes the current replication state. cmd/kvserver switches the
// process into the replica role through SetRepl.
func (s *Server) Repl() *replication.State { return s.repl }

// SetRepl replaces the replication state, used once at startup when
// --replicaof names an upstream master.
func (s *Server) SetRepl(state *replication.State) { s.repl = state }

// Start binds the listener and begins accepting connections. It returns
// once the listener is bound; the accept loop runs in its own goroutine.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.cfg.Logger.Info().Str("addr", s.cfg.Addr).Msg("kvserver listening")

	s.wg.Add(1)
	go s.acceptLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.pacer.Run(s.ctx)
	}()

	if s.cfg.Metrics != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.cfg.Metrics.SampleProcess(s.ctx, 15*time.Second)
		}()
	}

	return nil
}

// Shutdown closes the listener, cancels every background goroutine, and
// waits for in-flight connections to notice and exit.
func (s *Server) Shutdown() error {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				s.cfg.Logger.Error().Err(err).Msg("accept error")
				continue
			}
		}

		select {
		case s.connSem <- struct{}{}:
		default:
			s.cfg.Logger.Warn().Msg("connection limit reached, rejecting")
			_ = conn.Close()
			continue
		}

		if s.cfg.Metrics != nil {
			s.cfg.Metrics.ConnectionsTotal.Inc()
			s.cfg.Metrics.ConnectionsActive.Inc()
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// conn is one accepted client's live session state: its outbound queue,
// its command.Context, and the subscribed/role flags the admission
// pipeline checks on every frame.
type conn struct {
	netConn net.Conn
	addr    string
	box     *outbox
	ctx     *command.Context
	server  *Server

	isReplica bool
}

func (s *Server) handleConnection(nc net.Conn) {
	defer s.wg.Done()
	defer func() { <-s.connSem }()
	if s.cfg.Metrics != nil {
		defer s.cfg.Metrics.ConnectionsActive.Dec()
	}

	addr := nc.RemoteAddr().String()
	defer logging.RecoverPanic(s.cfg.Logger, "session.handleConnection", map[string]any{"addr": addr})

	box := newOutbox(outboxCapacity)
	c := &conn{
		netConn: nc,
		addr:    addr,
		box:     box,
		server:  s,
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
		Dir:         s.cfg.Dir,
		DBFilename:  s.cfg.DBFilename,
		Addr:        addr,
		PubSubSink:  valueSink{box: box},
		ReplicaSink: frameSink{box: box},
	}

	s.wg.Add(1)
	go c.writePump(&s.wg)

	defer func() {
		s.txns.Abandon(addr)
		s.pubsub.RemoveClient(addr)
		s.replicas.Remove(addr)
		box.close()
		_ = nc.Close()
	}()

	c.readLoop()
}

// readLoop feeds raw bytes into the RESP decoder and runs each decoded
// frame through the admission pipeline, matching spec §4.9's ordering:
// protocol validation, then role, then subscribed-mode, then transaction
// admission, then dispatch.
func (c *conn) readLoop() {
	dec := resp.NewDecoder()
	buf := make([]byte, 4096)
	for {
		n, err := c.netConn.Read(buf)
		if err != nil {
			return
		}
		values, decErr := dec.Feed(buf[:n])
		for _, v := range values {
			if !c.handleFrame(v) {
				return
			}
		}
		if decErr != nil {
			_ = c.box.send(resp.Err(decErr.Error()).Encode())
			dec.Reset()
		}
	}
}

// handleFrame runs one decoded command through admission and dispatch. It
// returns false only for QUIT, when the connection must close; after a
// PSYNC promotes the connection to a replica stream it returns true so the
// loop keeps reading that replica's REPLCONF ACK frames.
func (c *conn) handleFrame(v resp.Value) bool {
	name, args, ok := v.AsCommand()
	if !ok {
		_ = c.box.send(resp.Err("ERR Protocol error: expected array of bulk strings").Encode())
		return true
	}

	// CONFIG GET is the one two-token command name in the table (§4.4);
	// every other command is a single verb.
	if name == "CONFIG" && len(args) >= 1 && upperAscii(string(args[0])) == "GET" {
		name = "CONFIG GET"
		args = args[1:]
	}

	spec := command.Lookup(name)
	if spec == nil {
		_ = c.box.send(resp.Err("ERR unknown command '" + name + "'").Encode())
		return true
	}

	if spec.IsWrite && c.server.repl.Role() == replication.RoleReplica {
		_ = c.box.send(resp.Err("READONLY You can't write against a read only replica.").Encode())
		return true
	}

	if c.server.pubsub.Count(c.addr) > 0 && !spec.Whitelisted {
		_ = c.box.send(resp.Err("ERR "+name+" not allowed in subscribed mode").Encode())
		return true
	}

	if name != "MULTI" && name != "EXEC" && name != "DISCARD" && !isPubSubCommand(name) && c.server.txns.Exists(c.addr) {
		if err := command.Validate(name, args); err != nil {
			_ = c.box.send(resp.Err(err.Error()).Encode())
			return true
		}
		c.server.txns.Queue(c.addr, v)
		_ = c.box.send(resp.Simple("QUEUED").Encode())
		return true
	}

	result := command.Dispatch(c.ctx, name, args)
	if c.server.cfg.Metrics != nil {
		c.server.cfg.Metrics.CommandsProcessed.WithLabelValues(name).Inc()
	}

	if spec.IsWrite && result.Value.Kind != resp.KindError {
		command.Propagate(c.ctx, v)
		if c.server.cfg.Metrics != nil {
			c.server.cfg.Metrics.MasterOffset.Set(float64(c.server.repl.Offset()))
		}
	}

	if isBlockingWaitCommand(name) && c.server.cfg.Metrics != nil {
		c.server.cfg.Metrics.BlockedWaiters.WithLabelValues("blpop").Set(float64(c.server.blpop.Count()))
		c.server.cfg.Metrics.BlockedWaiters.WithLabelValues("xread").Set(float64(c.server.xread.Count()))
	}

	if isPubSubCommand(name) && c.server.cfg.Metrics != nil {
		c.server.cfg.Metrics.PubSubChannels.Set(float64(c.server.pubsub.ChannelCount()))
	}

	switch result.Kind {
	case command.KindNoResponse:
		// Already delivered via PubSubSink inside the handler.
	case command.KindResponse:
		_ = c.box.send(result.Value.Encode())
	case command.KindBatch:
		_ = c.box.send(resp.ArrayFrom(result.Batch).Encode())
	case command.KindSync:
		frame := result.Value.Encode()
		frame = append(frame, framedSnapshot(result.Snapshot)...)
		_ = c.box.send(frame)
		c.server.replicas.Add(c.addr, c.ctx.ReplicaSink)
		c.isReplica = true
		if c.server.cfg.Metrics != nil {
			c.server.cfg.Metrics.ReplicaCount.Set(float64(c.server.replicas.Len()))
		}
	}

	return name != "QUIT"
}

// framedSnapshot wraps a raw snapshot in the replication handshake's
// `$<N>\r\n<N bytes>` framing (no trailing CRLF), matching what
// internal/replication.Handshake's readRawSnapshot expects on the wire.
func framedSnapshot(snapshot []byte) []byte {
	header := resp.BulkString(snapshot).Encode()
	// resp.BulkString appends a trailing CRLF this framing does not use;
	// drop the final two bytes.
	return header[:len(header)-2]
}

// writePump drains box and writes frames to the connection, batching
// whatever has queued up between flushes — the same "drain the channel,
// then flush once" shape as the teacher's writePump.
func (c *conn) writePump(wg *sync.WaitGroup) {
	defer wg.Done()
	defer logging.RecoverPanic(c.server.cfg.Logger, "session.writePump", map[string]any{"addr": c.addr})

	w := bufio.NewWriter(c.netConn)
	for {
		select {
		case frame := <-c.box.ch:
			if err := writeAndDrain(w, c.box.ch, frame); err != nil {
				return
			}
		case <-c.box.done:
			_ = w.Flush()
			return
		}
	}
}

func writeAndDrain(w *bufio.Writer, ch <-chan []byte, first []byte) error {
	if _, err := w.Write(first); err != nil {
		return err
	}
	n := len(ch)
	for i := 0; i < n; i++ {
		if _, err := w.Write(<-ch); err != nil {
			return err
		}
	}
	return w.Flush()
}

// isBlockingWaitCommand reports whether name can park the calling goroutine
// in one of the waiter registries, the trigger points where it is cheap to
// resample the blocked-waiters gauges.
func isBlockingWaitCommand(name string) bool {
	switch name {
	case "BLPOP", "XREAD":
		return true
	default:
		return false
	}
}

// isPubSubCommand reports whether name is one of the channel-subscription
// commands, which spec §4.9 step 3 dispatches directly rather than
// queueing even inside an open transaction.
func isPubSubCommand(name string) bool {
	switch name {
	case "SUBSCRIBE", "UNSUBSCRIBE", "PSUBSCRIBE", "PUNSUBSCRIBE", "SSUBSCRIBE", "SUNSUBSCRIBE":
		return true
	default:
		return false
	}
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
