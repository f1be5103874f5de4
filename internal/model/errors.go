package model

import "fmt"

// ErrorKind classifies failures surfaced by the store, resolver and engine.
type ErrorKind string

const (
	// KindNotFound: the record id is in neither the active nor the archived area.
	KindNotFound ErrorKind = "not_found"
	// KindStoreLocked: another mutation holds a lock that is not stale.
	KindStoreLocked ErrorKind = "store_locked"
	// KindStore: invalid rollback target, missing argument or version control failure.
	KindStore ErrorKind = "store"
	// KindArgument: invalid call arguments detected before any I/O.
	KindArgument ErrorKind = "argument"
)

// Error is the typed error of the address book core.
type Error struct {
	Kind ErrorKind
	Op   string
	Msg  string
	Err  error
}

// Sentinels for errors.Is matching on the kind only.
var (
	ErrNotFound    = &Error{Kind: KindNotFound}
	ErrStoreLocked = &Error{Kind: KindStoreLocked}
	ErrStore       = &Error{Kind: KindStore}
	ErrArgument    = &Error{Kind: KindArgument}
)

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// NotFound builds a KindNotFound error for a record id.
func NotFound(op, id string) error {
	return &Error{Kind: KindNotFound, Op: op, Msg: fmt.Sprintf("contact %s", id)}
}

// StoreError builds a KindStore error.
func StoreError(op, msg string, err error) error {
	return &Error{Kind: KindStore, Op: op, Msg: msg, Err: err}
}

// ArgumentError builds a KindArgument error.
func ArgumentError(op, msg string) error {
	return &Error{Kind: KindArgument, Op: op, Msg: msg}
}

// BatchError reports a multi-step operation that stopped part way.
// Completed steps out of Total succeeded before Err.
type BatchError struct {
	Op        string
	Completed int
	Total     int
	Err       error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%s: stopped after %d of %d: %v", e.Op, e.Completed, e.Total, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }
