package txn

import (
	"testing"

	"github.com/adred-codev/kvserver/internal/resp"
)

func TestBeginThenNestedFails(t *testing.T) {
	tb := NewTable()
	if err := tb.Begin("c1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tb.Begin("c1"); err != ErrAlreadyInTransaction {
		t.Fatalf("expected nested MULTI error, got %v", err)
	}
}

func TestExecWithoutMulti(t *testing.T) {
	tb := NewTable()
	if _, err := tb.Take("c1"); err != ErrNoTransaction {
		t.Fatalf("expected ErrNoTransaction, got %v", err)
	}
}

func TestDiscardWithoutMulti(t *testing.T) {
	tb := NewTable()
	if err := tb.Discard("c1"); err != ErrDiscardWithoutMulti {
		t.Fatalf("expected ErrDiscardWithoutMulti, got %v", err)
	}
}

func TestQueueAndTake(t *testing.T) {
	tb := NewTable()
	tb.Begin("c1")
	tb.Queue("c1", resp.ArrayOf(resp.BulkFromString("SET"), resp.BulkFromString("k"), resp.BulkFromString("v")))
	tb.Queue("c1", resp.ArrayOf(resp.BulkFromString("INCR"), resp.BulkFromString("k")))

	if !tb.Exists("c1") {
		t.Fatal("expected transaction to still be open before Take")
	}
	batch, err := tb.Take("c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("expected 2 queued commands, got %d", len(batch))
	}
	if tb.Exists("c1") {
		t.Fatal("expected transaction to be removed after Take")
	}
}

func TestAbandonIsIdempotent(t *testing.T) {
	tb := NewTable()
	tb.Begin("c1")
	tb.Abandon("c1")
	tb.Abandon("c1") // must not panic
	if tb.Exists("c1") {
		t.Fatal("expected transaction to be gone")
	}
}
