// Package rdb decodes the snapshot byte stream (C4): the length-prefixed,
// opcode-framed format served by a master at the end of the replication
// handshake and loaded from disk at startup, per spec §4.3.
package rdb

import (
	"strconv"
	"time"

	"github.com/adred-codev/kvserver/internal/store"
)

const (
	opMetadata      = 0xFA
	opResizeDB      = 0xFB
	opExpireSeconds = 0xFD
	opExpireMs      = 0xFC
	opSelectDB      = 0xFE
	opStringValue   = 0x00
	opEOF           = 0xFF
)

// Decoder is a stream-driven parser: Feed accepts arbitrary chunks,
// retains a partial-record buffer, and commits progress only when a full
// record (including, for expire opcodes, its nested value) is available —
// the same "rewind and await more bytes" discipline §4.3 describes,
// implemented the same way internal/resp's Decoder survives split frames.
type Decoder struct {
	buf          []byte
	headerParsed bool
	done         bool
	store        *store.Store
}

func New(st *store.Store) *Decoder {
	return &Decoder{store: st}
}

// Done reports whether the terminating EOF opcode has been consumed.
func (d *Decoder) Done() bool { return d.done }

// Feed appends chunk and applies as many fully-buffered records as
// possible directly into the store. Returns done=true once the EOF
// opcode + checksum have been consumed.
func (d *Decoder) Feed(chunk []byte) (done bool, err error) {
	if len(chunk) > 0 {
		d.buf = append(d.buf, chunk...)
	}

	pos := 0
	for {
		if !d.headerParsed {
			n, err := parseHeader(d.buf[pos:])
			if err == errIncomplete {
				break
			}
			if err != nil {
				return false, err
			}
			pos += n
			d.headerParsed = true
			continue
		}
		if d.done {
			break
		}
		n, isEnd, err := d.parseRecord(d.buf[pos:])
		if err == errIncomplete {
			break
		}
		if err != nil {
			return false, err
		}
		pos += n
		if isEnd {
			d.done = true
		}
	}

	if pos > 0 {
		remaining := len(d.buf) - pos
		copy(d.buf, d.buf[pos:])
		d.buf = d.buf[:remaining]
	}
	return d.done, nil
}

// DecodeAll is a convenience wrapper for loading a complete in-memory
// snapshot (the common case: a local file read whole, or the already
// length-delimited `$<N>\r\n<N bytes>` replication payload).
func DecodeAll(data []byte, st *store.Store) error {
	d := New(st)
	done, err := d.Feed(data)
	if err != nil {
		return err
	}
	if !done {
		return protoErr("truncated snapshot: missing EOF opcode")
	}
	return nil
}

func parseHeader(data []byte) (int, error) {
	if len(data) < 9 {
		return 0, errIncomplete
	}
	if string(data[:5]) != "REDIS" {
		return 0, protoErr("bad magic %q", data[:5])
	}
	verStr := string(data[5:9])
	ver, convErr := strconv.Atoi(verStr)
	if convErr != nil || ver < 1 || ver > 12 {
		return 0, protoErr("unsupported version %q", verStr)
	}
	return 9, nil
}

func (d *Decoder) parseRecord(data []byte) (consumed int, isEnd bool, err error) {
	if len(data) == 0 {
		return 0, false, errIncomplete
	}
	switch data[0] {
	case opEOF:
		if len(data) < 9 {
			return 0, false, errIncomplete
		}
		return 9, true, nil

	case opSelectDB:
		_, n, err := readLengthPlain(data[1:])
		if err != nil {
			return 0, false, err
		}
		return 1 + n, false, nil

	case opResizeDB:
		_, n1, err := readLengthPlain(data[1:])
		if err != nil {
			return 0, false, err
		}
		_, n2, err := readLengthPlain(data[1+n1:])
		if err != nil {
			return 0, false, err
		}
		return 1 + n1 + n2, false, nil

	case opMetadata:
		_, n1, err := readString(data[1:])
		if err != nil {
			return 0, false, err
		}
		_, n2, err := readString(data[1+n1:])
		if err != nil {
			return 0, false, err
		}
		return 1 + n1 + n2, false, nil

	case opExpireSeconds:
		if len(data) < 5 {
			return 0, false, errIncomplete
		}
		secs := leUint32(data[1:5])
		deadline := time.Unix(int64(secs), 0)
		n, err := d.parseTypedValue(data[5:], deadline)
		if err != nil {
			return 0, false, err
		}
		return 5 + n, false, nil

	case opExpireMs:
		if len(data) < 9 {
			return 0, false, errIncomplete
		}
		ms := leUint64(data[1:9])
		deadline := time.UnixMilli(int64(ms))
		n, err := d.parseTypedValue(data[9:], deadline)
		if err != nil {
			return 0, false, err
		}
		return 9 + n, false, nil

	case opStringValue:
		n, err := d.parseTypedValue(data, time.Time{})
		if err != nil {
			return 0, false, err
		}
		return n, false, nil

	default:
		return 0, false, protoErr("unknown opcode %#x", data[0])
	}
}

// parseTypedValue parses "<type-byte><key><value>" starting at data[0],
// applying it to the store with the given deadline (zero = no expiry).
// This profile's snapshot format only persists string values (§4.3's
// opcode table defines only 0x00); any other type byte is a protocol
// error.
func (d *Decoder) parseTypedValue(data []byte, deadline time.Time) (int, error) {
	if len(data) == 0 {
		return 0, errIncomplete
	}
	if data[0] != opStringValue {
		return 0, protoErr("unsupported value type %#x", data[0])
	}
	key, n1, err := readString(data[1:])
	if err != nil {
		return 0, err
	}
	val, n2, err := readString(data[1+n1:])
	if err != nil {
		return 0, err
	}
	d.store.Set(string(key), &store.Value{Type: store.TypeString, Str: val, Deadline: deadline})
	return 1 + n1 + n2, nil
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// readString reads a length-encoded string, resolving the special integer
// encodings to their decimal text form and rejecting LZF compression.
func readString(data []byte) ([]byte, int, error) {
	length, special, encType, n, err := readLengthOrEncoding(data)
	if err != nil {
		return nil, 0, err
	}
	if !special {
		need := n + int(length)
		if len(data) < need {
			return nil, 0, errIncomplete
		}
		out := make([]byte, length)
		copy(out, data[n:need])
		return out, need, nil
	}
	switch encType {
	case encInt8:
		if len(data) < n+1 {
			return nil, 0, errIncomplete
		}
		v := int8(data[n])
		return []byte(strconv.Itoa(int(v))), n + 1, nil
	case encInt16:
		if len(data) < n+2 {
			return nil, 0, errIncomplete
		}
		v := int16(uint16(data[n]) | uint16(data[n+1])<<8)
		return []byte(strconv.Itoa(int(v))), n + 2, nil
	case encInt32:
		if len(data) < n+4 {
			return nil, 0, errIncomplete
		}
		v := int32(leUint32(data[n : n+4]))
		return []byte(strconv.Itoa(int(v))), n + 4, nil
	case encLZF:
		return nil, 0, ErrLZFUnsupported
	default:
		return nil, 0, protoErr("unknown value encoding %d", encType)
	}
}
