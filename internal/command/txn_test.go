package command

import (
	"testing"

	"github.com/adred-codev/kvserver/internal/resp"
)

func TestMULTIEXECQueuesAndRuns(t *testing.T) {
	ctx, _ := newTestContext("client:1")

	if r := cmdMULTI(ctx, nil); r.Value.Kind != resp.KindSimpleString {
		t.Fatalf("expected +OK from MULTI, got %+v", r)
	}
	ctx.Txn.Queue("client:1", resp.StringArray("SET", "k", "v"))
	ctx.Txn.Queue("client:1", resp.StringArray("GET", "k"))

	result := cmdEXEC(ctx, nil)
	if result.Kind != KindBatch {
		t.Fatalf("expected KindBatch from EXEC, got %v", result.Kind)
	}
	if len(result.Batch) != 2 {
		t.Fatalf("expected 2 replies, got %d", len(result.Batch))
	}
	if result.Batch[0].Kind != resp.KindSimpleString {
		t.Fatalf("expected SET to reply +OK, got %+v", result.Batch[0])
	}
	if result.Batch[1].Kind != resp.KindBulk || string(result.Batch[1].Bulk) != "v" {
		t.Fatalf("expected GET to reply bulk \"v\", got %+v", result.Batch[1])
	}
}

func TestEXECWithoutMULTIErrors(t *testing.T) {
	ctx, _ := newTestContext("client:2")
	result := cmdEXEC(ctx, nil)
	if result.Value.Kind != resp.KindError {
		t.Fatalf("expected error executing without MULTI, got %+v", result)
	}
}

func TestEXECEmptyBatchReturnsEmptyArray(t *testing.T) {
	ctx, _ := newTestContext("client:3")
	cmdMULTI(ctx, nil)
	result := cmdEXEC(ctx, nil)
	if result.Kind != KindBatch || len(result.Batch) != 0 {
		t.Fatalf("expected empty batch, got %+v", result)
	}
}

func TestEXECDynamicErrorDoesNotAbortBatch(t *testing.T) {
	ctx, _ := newTestContext("client:4")
	Dispatch(ctx, "SET", [][]byte{[]byte("notanumber"), []byte("oops")})

	cmdMULTI(ctx, nil)
	ctx.Txn.Queue("client:4", resp.StringArray("INCR", "notanumber"))
	ctx.Txn.Queue("client:4", resp.StringArray("SET", "notanumber", "still-oops"))

	result := cmdEXEC(ctx, nil)
	if result.Kind != KindBatch || len(result.Batch) != 2 {
		t.Fatalf("expected both queued commands to run, got %+v", result)
	}
	if result.Batch[0].Kind != resp.KindError {
		t.Fatalf("expected INCR on a non-numeric string to error, got %+v", result.Batch[0])
	}
	if result.Batch[1].Kind != resp.KindSimpleString {
		t.Fatalf("expected the second command to still execute after the first errors, got %+v", result.Batch[1])
	}
}

func TestDISCARDAbandonsQueue(t *testing.T) {
	ctx, _ := newTestContext("client:5")
	cmdMULTI(ctx, nil)
	ctx.Txn.Queue("client:5", resp.StringArray("SET", "k", "v"))

	if r := cmdDISCARD(ctx, nil); r.Value.Kind != resp.KindSimpleString {
		t.Fatalf("expected +OK from DISCARD, got %+v", r)
	}
	if ctx.Txn.Exists("client:5") {
		t.Fatal("expected no open transaction after DISCARD")
	}
}

func TestPropagateBroadcastsAndAdvancesOffset(t *testing.T) {
	ctx, _ := newTestContext("client:6")
	replica := &recordingFrameSink{}
	ctx.Replicas.Add("replica:1", replica)
	before := ctx.Repl.Offset()
	frame := resp.StringArray("SET", "k", "v")

	Propagate(ctx, frame)

	if len(replica.frames) != 1 {
		t.Fatalf("expected the replica to receive 1 frame, got %d", len(replica.frames))
	}
	sink := ctx.ReplicaSink.(*recordingFrameSink)
	if len(sink.frames) != 0 { // replicas table, not the client's own sink, receives the frame
		t.Fatalf("expected the client's own sink to receive nothing, got %d frames", len(sink.frames))
	}
	if ctx.Repl.Offset() == before {
		t.Fatal("expected offset to advance after Propagate")
	}
}
