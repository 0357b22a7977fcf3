package rdb

import (
	"encoding/binary"

	"github.com/adred-codev/kvserver/internal/store"
)

// Encode serializes the full contents of st into the snapshot byte format
// decoder.go reads back, for the master side of a PSYNC full resync
// (§4.8) and for writing `<dir>/<dbfilename>` at shutdown. Only string
// values are persisted; lists and streams do not survive a snapshot round
// trip in this profile (mirrors decoder.go's parseTypedValue, which only
// ever accepts opStringValue records).
func Encode(st *store.Store) []byte {
	buf := make([]byte, 0, 256)
	buf = append(buf, "REDIS0011"...)
	buf = append(buf, opSelectDB, 0x00)

	for _, key := range st.Keys("*") {
		v, ok := st.Get(key)
		if !ok || v.Type != store.TypeString {
			continue
		}
		if !v.Deadline.IsZero() {
			buf = append(buf, opExpireMs)
			buf = appendUint64LE(buf, uint64(v.Deadline.UnixMilli()))
		}
		buf = append(buf, opStringValue)
		buf = appendLengthPrefixed(buf, []byte(key))
		buf = appendLengthPrefixed(buf, v.Str)
	}

	buf = append(buf, opEOF)
	buf = append(buf, make([]byte, 8)...) // checksum intentionally left zero; unchecked by this decoder
	return buf
}

func appendLengthPrefixed(buf, data []byte) []byte {
	n := len(data)
	switch {
	case n < 1<<6:
		buf = append(buf, byte(n))
	case n < 1<<14:
		buf = append(buf, 0x40|byte(n>>8), byte(n))
	default:
		buf = append(buf, 0x80)
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], uint32(n))
		buf = append(buf, tmp[:]...)
	}
	return append(buf, data...)
}

func appendUint64LE(buf []byte, v uint64) []byte {
	var tmp [8]byte
	for i := 0; i < 8; i++ {
		tmp[i] = byte(v)
		v >>= 8
	}
	return append(buf, tmp[:]...)
}
