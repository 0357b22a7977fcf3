// Package kverr centralizes the typed error categories of §7 so every
// layer (store, commands, dispatcher) surfaces the same wire text for the
// same condition instead of re-deriving it ad hoc.
package kverr

import "errors"

// Category tags which row of §7's error table an error belongs to, mostly
// useful for tests and for the dispatcher deciding whether a failure
// aborts a transaction batch (it never does — see §4.6).
type Category int

const (
	CategoryProtocol Category = iota
	CategoryArity
	CategoryType
	CategoryValueRange
	CategoryTransaction
	CategoryRole
	CategorySubscribedMode
	CategoryStreamID
)

// CmdError is a typed command-level failure that encodes to a RESP Error
// frame ("-ERR ..."). The Msg is the exact text written to the wire.
type CmdError struct {
	Category Category
	Msg      string
}

func (e *CmdError) Error() string { return e.Msg }

func New(cat Category, msg string) *CmdError { return &CmdError{Category: cat, Msg: msg} }

// Sentinel errors reused verbatim across packages (store, commands).
var (
	ErrWrongType = New(CategoryType, "ERR invalid data type for key")
	ErrNotInt    = New(CategoryValueRange, "ERR value is not an integer or out of range")
)

func Arity(cmd string) *CmdError {
	return New(CategoryArity, "ERR invalid "+cmd+" command")
}

func Role(msg string) *CmdError {
	return New(CategoryRole, "ERR "+msg)
}

func SubscribedMode(cmd string) *CmdError {
	return New(CategorySubscribedMode, "ERR "+cmd+" not allowed in subscribed mode")
}

func StreamID(msg string) *CmdError {
	return New(CategoryStreamID, "ERR "+msg)
}

func Transaction(msg string) *CmdError {
	return New(CategoryTransaction, "ERR "+msg)
}

// As is a thin convenience wrapper over errors.As for *CmdError.
func As(err error) (*CmdError, bool) {
	var ce *CmdError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
