// Package resp implements the length-prefixed wire protocol spoken by
// clients, replicas, and the master-upstream connection: simple strings,
// errors, integers, bulk strings, and arrays, each terminated by CRLF.
package resp

import (
	"strconv"
)

// Kind tags the decoded shape of a Value.
type Kind int

const (
	KindSimpleString Kind = iota
	KindError
	KindInteger
	KindBulk
	KindNullBulk
	KindArray
	KindNullArray
)

// Value is the tagged union over the five wire shapes plus the two null
// sentinels ($-1 and *-1). Only the fields relevant to Kind are meaningful.
type Value struct {
	Kind  Kind
	Str   string  // SimpleString / Error payload
	Int   int64   // Integer payload
	Bulk  []byte  // Bulk payload (nil for KindNullBulk)
	Array []Value // Array payload (nil for KindNullArray)
}

func Simple(s string) Value  { return Value{Kind: KindSimpleString, Str: s} }
func Err(s string) Value     { return Value{Kind: KindError, Str: s} }
func Int(i int64) Value      { return Value{Kind: KindInteger, Int: i} }
func BulkString(b []byte) Value {
	if b == nil {
		return Value{Kind: KindNullBulk}
	}
	return Value{Kind: KindBulk, Bulk: b}
}
func BulkFromString(s string) Value { return Value{Kind: KindBulk, Bulk: []byte(s)} }
func NullBulk() Value                { return Value{Kind: KindNullBulk} }
func ArrayOf(vs ...Value) Value      { return Value{Kind: KindArray, Array: vs} }
func ArrayFrom(vs []Value) Value {
	if vs == nil {
		return Value{Kind: KindArray, Array: []Value{}}
	}
	return Value{Kind: KindArray, Array: vs}
}
func NullArray() Value { return Value{Kind: KindNullArray} }

// IsNull reports whether the value is either null sentinel.
func (v Value) IsNull() bool { return v.Kind == KindNullBulk || v.Kind == KindNullArray }

// Encode serializes v to its wire representation. Encoding is total: every
// Value constructed through the helpers above round-trips through
// Decoder.Feed.
func (v Value) Encode() []byte {
	buf := make([]byte, 0, 32)
	return v.appendTo(buf)
}

func (v Value) appendTo(buf []byte) []byte {
	switch v.Kind {
	case KindSimpleString:
		buf = append(buf, '+')
		buf = append(buf, v.Str...)
		buf = append(buf, '\r', '\n')
	case KindError:
		buf = append(buf, '-')
		buf = append(buf, v.Str...)
		buf = append(buf, '\r', '\n')
	case KindInteger:
		buf = append(buf, ':')
		buf = strconv.AppendInt(buf, v.Int, 10)
		buf = append(buf, '\r', '\n')
	case KindNullBulk:
		buf = append(buf, '$', '-', '1', '\r', '\n')
	case KindBulk:
		buf = append(buf, '$')
		buf = strconv.AppendInt(buf, int64(len(v.Bulk)), 10)
		buf = append(buf, '\r', '\n')
		buf = append(buf, v.Bulk...)
		buf = append(buf, '\r', '\n')
	case KindNullArray:
		buf = append(buf, '*', '-', '1', '\r', '\n')
	case KindArray:
		buf = append(buf, '*')
		buf = strconv.AppendInt(buf, int64(len(v.Array)), 10)
		buf = append(buf, '\r', '\n')
		for _, e := range v.Array {
			buf = e.appendTo(buf)
		}
	default:
		buf = append(buf, '-', 'E', 'R', 'R', ' ', 'u', 'n', 'k', 'n', 'o', 'w', 'n', ' ', 't', 'y', 'p', 'e', '\r', '\n')
	}
	return buf
}

// StringArray builds a RESP array of bulk strings from plain Go strings;
// the common shape for client commands and many replies.
func StringArray(ss ...string) Value {
	vs := make([]Value, len(ss))
	for i, s := range ss {
		vs[i] = BulkFromString(s)
	}
	return ArrayOf(vs...)
}

// AsCommand extracts an uppercased command name and argument byte slices
// from a top-level Array-of-Bulk Value, as required before dispatch.
func (v Value) AsCommand() (name string, args [][]byte, ok bool) {
	if v.Kind != KindArray || len(v.Array) == 0 {
		return "", nil, false
	}
	args = make([][]byte, 0, len(v.Array))
	for _, e := range v.Array {
		if e.Kind != KindBulk {
			return "", nil, false
		}
		args = append(args, e.Bulk)
	}
	return upper(string(args[0])), args[1:], true
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 32
		}
	}
	return string(b)
}
