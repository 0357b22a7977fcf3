package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/adred-codev/kvserver/internal/config"
	"github.com/adred-codev/kvserver/internal/logging"
	"github.com/adred-codev/kvserver/internal/metrics"
	"github.com/adred-codev/kvserver/internal/rdb"
	"github.com/adred-codev/kvserver/internal/replication"
	"github.com/adred-codev/kvserver/internal/session"
)

func main() {
	var (
		port       = flag.Int("port", 6379, "listening port")
		replicaof  = flag.String("replicaof", "", `run as replica of "<host> <port>"; omit to run as master`)
		dir        = flag.String("dir", ".", "snapshot directory")
		dbfilename = flag.String("dbfilename", "dump.rdb", "snapshot filename within --dir")
	)
	flag.Parse()

	startupLog := log.New(os.Stdout, "[kvserver] ", log.LstdFlags)

	if *port < 1 || *port > 65535 {
		startupLog.Fatalf("--port must be in 1..65535, got %d", *port)
	}

	maxProcs := runtime.GOMAXPROCS(0)
	startupLog.Printf("GOMAXPROCS: %d (via automaxprocs)", maxProcs)

	cfg, err := config.Load(nil)
	if err != nil {
		startupLog.Fatalf("failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info().Int("port", *port).Str("dir", *dir).Str("dbfilename", *dbfilename).Msg("starting kvserver")

	var collector *metrics.Collector
	if cfg.MetricsAddr != "" {
		collector = metrics.New(logger)
	}

	srv := session.NewServer(session.Config{
		Addr:                   fmt.Sprintf(":%d", *port),
		Dir:                    *dir,
		DBFilename:             *dbfilename,
		MaxConnections:         cfg.MaxConnections,
		ReplconfGetackInterval: time.Duration(cfg.ReplconfGetackInterval) * time.Millisecond,
		Logger:                 logger,
		Metrics:                collector,
	})

	snapshotPath := filepath.Join(*dir, *dbfilename)
	if data, err := os.ReadFile(snapshotPath); err == nil {
		if err := rdb.DecodeAll(data, srv.Store()); err != nil {
			logger.Warn().Err(err).Str("path", snapshotPath).Msg("failed to load snapshot, starting empty")
		} else {
			logger.Info().Str("path", snapshotPath).Msg("loaded snapshot")
		}
	}

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *replicaof != "" {
		host, masterPort, err := parseReplicaof(*replicaof)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid --replicaof")
		}
		srv.SetRepl(replication.NewReplica(host, masterPort))
		go func() {
			if err := srv.ConnectToMaster(rootCtx, host, masterPort, strconv.Itoa(*port)); err != nil {
				logger.Error().Err(err).Msg("replication link to master ended")
			}
		}()
	}

	if err := srv.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start server")
	}

	if collector != nil {
		go collector.Serve(rootCtx, cfg.MetricsAddr)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutting down")
	cancel()
	if err := srv.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("error during shutdown")
	}

	if err := os.WriteFile(snapshotPath, rdb.Encode(srv.Store()), 0o644); err != nil {
		logger.Error().Err(err).Str("path", snapshotPath).Msg("failed to write snapshot at shutdown")
	}
}

// parseReplicaof splits the `"<host> <port>"` form spec §6 documents for
// --replicaof.
func parseReplicaof(v string) (host, port string, err error) {
	fields := strings.Fields(v)
	if len(fields) != 2 {
		return "", "", fmt.Errorf("expected \"<host> <port>\", got %q", v)
	}
	return fields[0], fields[1], nil
}
