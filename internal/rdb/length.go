package rdb

import "encoding/binary"

// Value-encoding indicators for the 0b11-prefixed length byte (§4.3).
const (
	encInt8   = 0
	encInt16  = 1
	encInt32  = 2
	encLZF    = 3
)

// readLengthOrEncoding reads one length header, returning either a plain
// length or (isSpecial=true, encType) for the 0b11 special-encoding form
// used when the following payload is a value rather than a raw length.
func readLengthOrEncoding(data []byte) (length uint64, isSpecial bool, encType byte, consumed int, err error) {
	if len(data) == 0 {
		return 0, false, 0, 0, errIncomplete
	}
	b := data[0]
	switch b >> 6 {
	case 0b00:
		return uint64(b & 0x3F), false, 0, 1, nil
	case 0b01:
		if len(data) < 2 {
			return 0, false, 0, 0, errIncomplete
		}
		return (uint64(b&0x3F) << 8) | uint64(data[1]), false, 0, 2, nil
	case 0b10:
		if b == 0x80 {
			if len(data) < 5 {
				return 0, false, 0, 0, errIncomplete
			}
			return uint64(binary.BigEndian.Uint32(data[1:5])), false, 0, 5, nil
		}
		if b == 0x81 {
			if len(data) < 9 {
				return 0, false, 0, 0, errIncomplete
			}
			return binary.BigEndian.Uint64(data[1:9]), false, 0, 9, nil
		}
		return 0, false, 0, 0, protoErr("unsupported 0b10 length form %#x", b)
	default: // 0b11
		return 0, true, b & 0x3F, 1, nil
	}
}

// readLengthPlain reads a length header that must not be a special
// encoding (resize-db hints, select-db index).
func readLengthPlain(data []byte) (length uint64, consumed int, err error) {
	length, special, _, n, err := readLengthOrEncoding(data)
	if err != nil {
		return 0, 0, err
	}
	if special {
		return 0, 0, protoErr("unexpected special encoding in plain-length context")
	}
	return length, n, nil
}
