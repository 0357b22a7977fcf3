package rdb

import (
	"errors"
	"fmt"
)

// ProtocolError is a malformed-snapshot condition: bad magic, bad opcode,
// out-of-range version, or an unsupported value encoding (LZF).
type ProtocolError struct{ Detail string }

func (e *ProtocolError) Error() string { return "ERR Bad snapshot: " + e.Detail }

func protoErr(format string, a ...any) error {
	return &ProtocolError{Detail: fmt.Sprintf(format, a...)}
}

// errIncomplete signals "need more bytes", mirroring internal/resp's
// decoder: never surfaced to callers, only used to pause mid-record and
// retain the partial buffer for the next Feed call.
var errIncomplete = errors.New("rdb: incomplete record")

// ErrLZFUnsupported is returned when a value uses the LZF-compressed
// string encoding (§4.3 encoding indicator 3), which this profile does not
// implement (see DESIGN.md for why no available library could serve it).
var ErrLZFUnsupported = protoErr("LZF-compressed values are not supported")
