package replication

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/adred-codev/kvserver/internal/replicaset"
)

// GetAckFrame is the literal wire frame the master sends to elicit
// `REPLCONF ACK <offset>` from every replica (spec §4.8, byte-exact).
var GetAckFrame = []byte("*3\r\n$8\r\nREPLCONF\r\n$6\r\nGETACK\r\n$1\r\n*\r\n")

// GetAckPacer periodically broadcasts GetAckFrame to every attached
// replica, throttled by a token-bucket limiter (the same
// golang.org/x/time/rate dependency and idiom the teacher's connection
// admission path uses, ws/internal/shared/limits/connection_rate_limiter.go)
// so a burst of WAIT-triggered on-demand pings never exceeds one
// broadcast per interval.
type GetAckPacer struct {
	replicas *replicaset.Table
	state    *State
	limiter  *rate.Limiter
}

func NewGetAckPacer(replicas *replicaset.Table, state *State, interval time.Duration) *GetAckPacer {
	return &GetAckPacer{
		replicas: replicas,
		state:    state,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
	}
}

// broadcast sends frame to every replica and advances the master's own
// offset by frame's length, the same way Propagate does for write
// commands. Counting GETACK into the master's offset keeps it the
// moving total of everything written to the replication stream (real
// Redis's convention), so a replica's RunApplyLoop — which now also
// counts the GETACK frame it receives before building its ACK reply —
// never drifts ahead of what WAIT's target expects.
func (p *GetAckPacer) broadcast() {
	p.replicas.Broadcast(GetAckFrame)
	p.state.AddOffset(int64(len(GetAckFrame)))
}

// Run broadcasts GetAckFrame on a steady cadence until ctx is cancelled.
func (p *GetAckPacer) Run(ctx context.Context) {
	for {
		if err := p.limiter.Wait(ctx); err != nil {
			return
		}
		p.broadcast()
	}
}

// PingNow sends an immediate GETACK if the limiter has a token available,
// used by WAIT to avoid waiting a full interval for the first sample.
func (p *GetAckPacer) PingNow() {
	if p.limiter.Allow() {
		p.broadcast()
	}
}

// Wait implements the WAIT command: sample the current master offset,
// prod replicas for an ACK, then poll until n have caught up or timeout
// elapses. Unlike BLPOP/XREAD, a timeout of 0 here means "don't wait at
// all" — sample once and return (spec §5's explicit WAIT carve-out from
// the usual 0-means-infinite convention).
func Wait(ctx context.Context, state *State, replicas *replicaset.Table, pacer *GetAckPacer, n int, timeout time.Duration) int {
	target := state.Offset()
	if n == 0 || timeout <= 0 {
		return replicas.CountAcked(target)
	}
	pacer.PingNow()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if count := replicas.CountAcked(target); count >= n {
			return count
		}
		if !time.Now().Before(deadline) {
			return replicas.CountAcked(target)
		}
		select {
		case <-ctx.Done():
			return replicas.CountAcked(target)
		case <-ticker.C:
		}
	}
}
