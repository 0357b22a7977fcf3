// Package txn implements the per-client transaction table (C6): the
// MULTI/EXEC/DISCARD state machine described in spec §4.6. Each
// connection's session owns exactly one client-address key into this
// table; the table itself only tracks queued command frames; it has no
// opinion on command validity or execution, which the session/command
// layers own.
package txn

import (
	"errors"
	"sync"

	"github.com/adred-codev/kvserver/internal/resp"
)

var (
	ErrAlreadyInTransaction = errors.New("ERR MULTI calls can not be nested")
	ErrNoTransaction        = errors.New("ERR EXEC without MULTI")
	ErrDiscardWithoutMulti  = errors.New("ERR DISCARD without MULTI")
)

type transaction struct {
	queue []resp.Value
}

// Table tracks one transaction per client-address; a client-address is
// present in the map iff it is currently IN_TX.
type Table struct {
	mu   sync.Mutex
	txns map[string]*transaction
}

func NewTable() *Table {
	return &Table{txns: make(map[string]*transaction)}
}

// Begin starts a transaction for addr. Fails if one is already open.
func (t *Table) Begin(addr string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.txns[addr]; ok {
		return ErrAlreadyInTransaction
	}
	t.txns[addr] = &transaction{}
	return nil
}

// Exists reports whether addr currently has an open transaction.
func (t *Table) Exists(addr string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.txns[addr]
	return ok
}

// Queue appends cmd to addr's pending batch. The caller must already have
// confirmed Exists(addr) and validated cmd's static shape.
func (t *Table) Queue(addr string, cmd resp.Value) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if tx, ok := t.txns[addr]; ok {
		tx.queue = append(tx.queue, cmd)
	}
}

// Discard removes addr's transaction. Fails if none existed.
func (t *Table) Discard(addr string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.txns[addr]; !ok {
		return ErrDiscardWithoutMulti
	}
	delete(t.txns, addr)
	return nil
}

// Take removes addr's transaction and returns its queued batch. Fails if
// none existed; an existing-but-empty transaction returns (nil, nil).
func (t *Table) Take(addr string) ([]resp.Value, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tx, ok := t.txns[addr]
	if !ok {
		return nil, ErrNoTransaction
	}
	delete(t.txns, addr)
	return tx.queue, nil
}

// Abandon drops addr's transaction without error, used on connection
// close where there is no reply to produce.
func (t *Table) Abandon(addr string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.txns, addr)
}
