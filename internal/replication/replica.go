package replication

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/adred-codev/kvserver/internal/resp"
)

// HandshakeResult carries what the replica learns from the master during
// the 3-phase handshake (spec §4.8, replica side) plus the raw snapshot
// bytes to hand to the rdb decoder.
type HandshakeResult struct {
	ReplID     string
	Offset     int64
	Snapshot   []byte
}

// Handshake performs PING / REPLCONF listening-port / REPLCONF capa
// psync2 / PSYNC ?  -1 against an already-dialed master connection, wire
// exact byte-for-byte per spec §6, then reads the length-prefixed
// snapshot block that follows the FULLRESYNC line. The snapshot framing
// (`$<N>\r\n<N bytes>`, no trailing CRLF) is not a normal RESP bulk
// string, so it is read directly off the buffered reader rather than
// through internal/resp's Decoder.
func Handshake(conn net.Conn, r *bufio.Reader, listenPort string) (*HandshakeResult, error) {
	if err := writeCommand(conn, "PING"); err != nil {
		return nil, err
	}
	if _, err := readSimpleLine(r); err != nil {
		return nil, err
	}

	if err := writeCommand(conn, "REPLCONF", "listening-port", listenPort); err != nil {
		return nil, err
	}
	if err := expectOK(r); err != nil {
		return nil, err
	}

	if err := writeCommand(conn, "REPLCONF", "capa", "psync2"); err != nil {
		return nil, err
	}
	if err := expectOK(r); err != nil {
		return nil, err
	}

	if err := writeCommand(conn, "PSYNC", "?", "-1"); err != nil {
		return nil, err
	}
	line, err := readSimpleLine(r)
	if err != nil {
		return nil, err
	}
	replID, offset, err := parseFullResync(line)
	if err != nil {
		return nil, err
	}

	snapshot, err := readRawSnapshot(r)
	if err != nil {
		return nil, err
	}

	return &HandshakeResult{ReplID: replID, Offset: offset, Snapshot: snapshot}, nil
}

func writeCommand(w io.Writer, parts ...string) error {
	_, err := w.Write(resp.StringArray(parts...).Encode())
	return err
}

func readSimpleLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if len(line) == 0 {
		return "", fmt.Errorf("replication: empty handshake line")
	}
	switch line[0] {
	case '+':
		return line[1:], nil
	case '-':
		return "", fmt.Errorf("replication: master error: %s", line[1:])
	default:
		return "", fmt.Errorf("replication: unexpected handshake line %q", line)
	}
}

func expectOK(r *bufio.Reader) error {
	line, err := readSimpleLine(r)
	if err != nil {
		return err
	}
	if line != "OK" {
		return fmt.Errorf("replication: expected OK, got %q", line)
	}
	return nil
}

// parseFullResync parses "FULLRESYNC <40-hex-id> <offset>".
func parseFullResync(line string) (replID string, offset int64, err error) {
	fields := strings.Fields(line)
	if len(fields) != 3 || fields[0] != "FULLRESYNC" {
		return "", 0, fmt.Errorf("replication: malformed FULLRESYNC line %q", line)
	}
	offset, err = strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("replication: bad FULLRESYNC offset %q", fields[2])
	}
	return fields[1], offset, nil
}

// readRawSnapshot reads "$<N>\r\n" followed by exactly N raw bytes (no
// trailing CRLF), the master's full-resync framing.
func readRawSnapshot(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	line = strings.TrimRight(line, "\r\n")
	if len(line) == 0 || line[0] != '$' {
		return nil, fmt.Errorf("replication: expected snapshot length header, got %q", line)
	}
	n, err := strconv.Atoi(line[1:])
	if err != nil || n < 0 {
		return nil, fmt.Errorf("replication: bad snapshot length %q", line[1:])
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ApplyFunc applies one command frame from the master stream to local
// state, returning a non-nil reply only for REPLCONF GETACK (the one
// case the replica answers on its upstream connection, per spec §4.8).
type ApplyFunc func(cmd resp.Value) *resp.Value

// RunApplyLoop reads and applies the master's command stream until ctx
// is cancelled or the connection errs. Each frame's wire length (its
// re-encoded length, which the round-trip invariant in §8 guarantees
// matches the bytes actually consumed) is added to state's offset.
func RunApplyLoop(ctx context.Context, conn net.Conn, r *bufio.Reader, state *State, apply ApplyFunc) error {
	dec := resp.NewDecoder()
	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, err := r.Read(buf)
		if err != nil {
			return err
		}
		values, err := dec.Feed(buf[:n])
		if err != nil {
			return err
		}
		for _, v := range values {
			frameLen := len(v.Encode())
			// Offset advances before apply runs, so a REPLCONF GETACK frame's
			// own bytes are already counted by the time apply builds the ACK
			// reply from state.Offset() — matching the real-Redis convention
			// of acking the GETACK command itself, not just what preceded it.
			state.AddOffset(int64(frameLen))
			reply := apply(v)
			if reply != nil {
				if _, err := conn.Write(reply.Encode()); err != nil {
					return err
				}
			}
		}
	}
}
