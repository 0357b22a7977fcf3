package command

import (
	"testing"

	"github.com/adred-codev/kvserver/internal/resp"
)

func TestValidateUnknownCommand(t *testing.T) {
	r := NewRegistry()
	if err := r.Validate("NOPE", nil); err == nil {
		t.Fatal("expected error for unknown command")
	}
}

func TestValidateArityBounds(t *testing.T) {
	r := NewRegistry()
	if err := r.Validate("GET", [][]byte{}); err == nil {
		t.Fatal("expected arity error for GET with no args")
	}
	if err := r.Validate("GET", [][]byte{[]byte("k")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Validate("GET", [][]byte{[]byte("k"), []byte("extra")}); err == nil {
		t.Fatal("expected arity error for GET with too many args")
	}
}

func TestValidateUnboundedMaxArgs(t *testing.T) {
	r := NewRegistry()
	args := make([][]byte, 50)
	for i := range args {
		args[i] = []byte("k")
	}
	if err := r.Validate("DEL", args); err != nil {
		t.Fatalf("unexpected error for unbounded-arity command: %v", err)
	}
}

func TestLookupFlagsWriteAndWhitelist(t *testing.T) {
	r := NewRegistry()
	set := r.Lookup("SET")
	if set == nil || !set.IsWrite {
		t.Fatal("expected SET to be flagged IsWrite")
	}
	get := r.Lookup("GET")
	if get == nil || get.IsWrite {
		t.Fatal("expected GET to not be flagged IsWrite")
	}
	sub := r.Lookup("SUBSCRIBE")
	if sub == nil || !sub.Whitelisted {
		t.Fatal("expected SUBSCRIBE to be whitelisted for subscribed mode")
	}
}

func TestDispatchRejectsBadArity(t *testing.T) {
	result := Dispatch(nil, "GET", nil)
	if result.Kind != KindResponse || result.Value.Kind != resp.KindError {
		t.Fatalf("expected an error response, got %+v", result)
	}
}
