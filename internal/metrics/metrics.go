// Package metrics adapts the teacher's MetricsCollector /metrics
// Prometheus endpoint pattern (ws/metrics.go, ws/server.go's
// mux.HandleFunc("/metrics", ...)) to this server's domain: connected
// clients, commands processed, replica count, master replication offset,
// blocked waiters, and pub/sub channel count, plus the process RSS/CPU
// sampling the teacher's cgroup.go/gopsutil goroutine performs.
package metrics

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"
)

// Collector owns every Prometheus instrument this server exposes and a
// side HTTP listener to serve them, kept off the RESP port so a scrape
// never contends with client traffic.
type Collector struct {
	logger zerolog.Logger

	ConnectionsActive prometheus.Gauge
	ConnectionsTotal  prometheus.Counter
	CommandsProcessed *prometheus.CounterVec
	ReplicaCount      prometheus.Gauge
	MasterOffset      prometheus.Gauge
	BlockedWaiters    *prometheus.GaugeVec
	PubSubChannels    prometheus.Gauge

	ProcessRSSBytes prometheus.Gauge
	ProcessCPUPct   prometheus.Gauge

	registry *prometheus.Registry
}

func New(logger zerolog.Logger) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		logger:   logger,
		registry: reg,
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kvserver_connections_active",
			Help: "Current number of open client connections.",
		}),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kvserver_connections_total",
			Help: "Total connections accepted since startup.",
		}),
		CommandsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kvserver_commands_processed_total",
			Help: "Commands processed, by command name.",
		}, []string{"command"}),
		ReplicaCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kvserver_replicas_connected",
			Help: "Number of attached replica sessions.",
		}),
		MasterOffset: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kvserver_replication_offset_bytes",
			Help: "Current replication offset in bytes.",
		}),
		BlockedWaiters: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kvserver_blocked_waiters",
			Help: "Currently blocked clients, by waiter table (blpop/xread).",
		}, []string{"table"}),
		PubSubChannels: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kvserver_pubsub_channels",
			Help: "Number of channels with at least one subscriber.",
		}),
		ProcessRSSBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kvserver_process_rss_bytes",
			Help: "Resident set size of this process.",
		}),
		ProcessCPUPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kvserver_process_cpu_percent",
			Help: "Process CPU utilization percent, sampled periodically.",
		}),
	}

	reg.MustRegister(
		c.ConnectionsActive, c.ConnectionsTotal, c.CommandsProcessed,
		c.ReplicaCount, c.MasterOffset, c.BlockedWaiters, c.PubSubChannels,
		c.ProcessRSSBytes, c.ProcessCPUPct,
	)
	return c
}

// Serve starts the /metrics HTTP listener on addr until ctx is
// cancelled. A non-fatal bind error is logged, never crashes the process
// (same "ambient concern, never process-fatal" rule as the rest of §7).
func (c *Collector) Serve(ctx context.Context, addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	c.logger.Info().Str("addr", addr).Msg("metrics listener starting")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		c.logger.Error().Err(err).Msg("metrics listener stopped")
	}
}

// SampleProcess periodically folds this process's RSS and CPU percent
// into the collector, the same role gopsutil plays in the teacher's
// monitorMemory/cgroup sampling goroutines. Runs until ctx is cancelled.
func (c *Collector) SampleProcess(ctx context.Context, interval time.Duration) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		c.logger.Warn().Err(err).Msg("process sampler unavailable")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
				c.ProcessRSSBytes.Set(float64(mem.RSS))
			}
			if pct, err := proc.CPUPercent(); err == nil {
				c.ProcessCPUPct.Set(pct)
			}
		}
	}
}
