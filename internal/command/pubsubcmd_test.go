package command

import (
	"testing"

	"github.com/adred-codev/kvserver/internal/resp"
)

func TestSUBSCRIBEPushesConfirmationPerChannel(t *testing.T) {
	ctx, sink := newTestContext("client:1")

	result := cmdSUBSCRIBE(ctx, [][]byte{[]byte("a"), []byte("b")})
	if result.Kind != KindNoResponse {
		t.Fatalf("expected NoResponse, got %v", result.Kind)
	}
	if len(sink.pushed) != 2 {
		t.Fatalf("expected 2 confirmations, got %d", len(sink.pushed))
	}
	first := sink.pushed[0]
	if first.Kind != resp.KindArray || len(first.Array) != 3 {
		t.Fatalf("expected a 3-element array confirmation, got %+v", first)
	}
	if string(first.Array[0].Bulk) != "subscribe" || string(first.Array[1].Bulk) != "a" {
		t.Fatalf("unexpected confirmation shape: %+v", first)
	}
	if first.Array[2].Int != 1 {
		t.Fatalf("expected subscribed-channel count 1, got %d", first.Array[2].Int)
	}
	if second := sink.pushed[1]; second.Array[2].Int != 2 {
		t.Fatalf("expected subscribed-channel count 2 after second channel, got %d", second.Array[2].Int)
	}
}

func TestUNSUBSCRIBEWithNoArgsUnsubscribesAll(t *testing.T) {
	ctx, sink := newTestContext("client:2")
	cmdSUBSCRIBE(ctx, [][]byte{[]byte("a"), []byte("b")})
	sink.pushed = nil

	cmdUNSUBSCRIBE(ctx, nil)
	if len(sink.pushed) != 2 {
		t.Fatalf("expected one unsubscribe confirmation per channel, got %d", len(sink.pushed))
	}
	if ctx.PubSub.Count(ctx.Addr) != 0 {
		t.Fatal("expected no remaining subscriptions")
	}
}

func TestUNSUBSCRIBEWithNoChannelsRepliesNullChannel(t *testing.T) {
	ctx, sink := newTestContext("client:3")
	cmdUNSUBSCRIBE(ctx, nil)
	if len(sink.pushed) != 1 {
		t.Fatalf("expected a single confirmation, got %d", len(sink.pushed))
	}
	if !sink.pushed[0].Array[1].IsNull() {
		t.Fatalf("expected a null channel name when nothing was subscribed, got %+v", sink.pushed[0])
	}
}

func TestPSUBSCRIBEAndPUNSUBSCRIBE(t *testing.T) {
	ctx, sink := newTestContext("client:4")
	cmdPSUBSCRIBE(ctx, [][]byte{[]byte("news.*")})
	if len(sink.pushed) != 1 || string(sink.pushed[0].Array[0].Bulk) != "psubscribe" {
		t.Fatalf("unexpected psubscribe confirmation: %+v", sink.pushed)
	}
	sink.pushed = nil

	cmdPUNSUBSCRIBE(ctx, [][]byte{[]byte("news.*")})
	if len(sink.pushed) != 1 || string(sink.pushed[0].Array[0].Bulk) != "punsubscribe" {
		t.Fatalf("unexpected punsubscribe confirmation: %+v", sink.pushed)
	}
	if ctx.PubSub.Count(ctx.Addr) != 0 {
		t.Fatal("expected no remaining pattern subscriptions")
	}
}

func TestSSUBSCRIBEUsesSameTableAsSUBSCRIBE(t *testing.T) {
	subCtx, subSink := newTestContext("client:sub")
	shardCtx, shardSink := newTestContext("client:shard")
	shardCtx.PubSub = subCtx.PubSub

	cmdSUBSCRIBE(subCtx, [][]byte{[]byte("room")})
	cmdSSUBSCRIBE(shardCtx, [][]byte{[]byte("room")})

	delivered := cmdPUBLISH(subCtx, [][]byte{[]byte("room"), []byte("hi")})
	if delivered.Value.Int != 2 {
		t.Fatalf("expected delivery to both subscribers, got %d", delivered.Value.Int)
	}
	_ = subSink
	_ = shardSink
}

func TestPUBLISHReportsDeliveryCount(t *testing.T) {
	ctx, _ := newTestContext("client:5")
	other, _ := newTestContext("client:6")
	other.PubSub = ctx.PubSub
	cmdSUBSCRIBE(other, [][]byte{[]byte("chan")})

	result := cmdPUBLISH(ctx, [][]byte{[]byte("chan"), []byte("payload")})
	if result.Value.Kind != resp.KindInteger || result.Value.Int != 1 {
		t.Fatalf("expected delivery count 1, got %+v", result)
	}
}
