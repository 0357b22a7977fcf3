package pubsub

import (
	"testing"

	"github.com/adred-codev/kvserver/internal/resp"
)

type fakeSink struct {
	received []resp.Value
	fail     bool
}

func (f *fakeSink) Push(v resp.Value) error {
	if f.fail {
		return errPush
	}
	f.received = append(f.received, v)
	return nil
}

var errPush = &pushError{}

type pushError struct{}

func (*pushError) Error() string { return "push failed" }

func TestSubscribeAndPublish(t *testing.T) {
	tb := NewTable()
	sink := &fakeSink{}
	count := tb.Subscribe("news", "addr1", sink)
	if count != 1 {
		t.Fatalf("expected count 1, got %d", count)
	}
	delivered := tb.Publish("news", []byte("hello"))
	if delivered != 1 {
		t.Fatalf("expected 1 delivery, got %d", delivered)
	}
	if len(sink.received) != 1 {
		t.Fatalf("expected sink to receive 1 message, got %d", len(sink.received))
	}
}

func TestUnsubscribeRemovesDelivery(t *testing.T) {
	tb := NewTable()
	sink := &fakeSink{}
	tb.Subscribe("news", "addr1", sink)
	count := tb.Unsubscribe("news", "addr1")
	if count != 0 {
		t.Fatalf("expected count 0 after unsubscribe, got %d", count)
	}
	if delivered := tb.Publish("news", []byte("x")); delivered != 0 {
		t.Fatalf("expected no delivery after unsubscribe, got %d", delivered)
	}
}

func TestPatternSubscriptionMatches(t *testing.T) {
	tb := NewTable()
	sink := &fakeSink{}
	tb.PSubscribe("news.*", "addr1", sink)
	delivered := tb.Publish("news.sports", []byte("x"))
	if delivered != 1 {
		t.Fatalf("expected pattern match delivery, got %d", delivered)
	}
}

func TestDualSubscriptionDeliversTwice(t *testing.T) {
	tb := NewTable()
	sink := &fakeSink{}
	tb.Subscribe("news.sports", "addr1", sink)
	tb.PSubscribe("news.*", "addr1", sink)
	delivered := tb.Publish("news.sports", []byte("x"))
	if delivered != 2 {
		t.Fatalf("expected 2 deliveries (exact + pattern), got %d", delivered)
	}
}

func TestFailedPushNotCounted(t *testing.T) {
	tb := NewTable()
	sink := &fakeSink{fail: true}
	tb.Subscribe("news", "addr1", sink)
	if delivered := tb.Publish("news", []byte("x")); delivered != 0 {
		t.Fatalf("expected failed push to not count, got %d", delivered)
	}
}

func TestRemoveClientClearsAllSubscriptions(t *testing.T) {
	tb := NewTable()
	sink := &fakeSink{}
	tb.Subscribe("a", "addr1", sink)
	tb.Subscribe("b", "addr1", sink)
	tb.PSubscribe("c.*", "addr1", sink)
	tb.RemoveClient("addr1")
	if tb.Count("addr1") != 0 {
		t.Fatal("expected 0 subscriptions after RemoveClient")
	}
	if delivered := tb.Publish("a", []byte("x")); delivered != 0 {
		t.Fatalf("expected no delivery after RemoveClient, got %d", delivered)
	}
}
