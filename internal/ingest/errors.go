package ingest

import (
	"errors"
	"fmt"
)

// Kind classifies an ingestion failure.
type Kind int

// Failure kinds.
const (
	KindValidation Kind = iota + 1
	KindConnection
	KindSchema
	KindWrite
	KindExtractionFormat
)

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	ErrValidation       = errors.New("validation error")
	ErrConnection       = errors.New("connection failure")
	ErrSchema           = errors.New("schema error")
	ErrWrite            = errors.New("write failure")
	ErrExtractionFormat = errors.New("extraction format error")
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConnection:
		return "connection"
	case KindSchema:
		return "schema"
	case KindWrite:
		return "write"
	case KindExtractionFormat:
		return "extraction_format"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindConnection:
		return ErrConnection
	case KindSchema:
		return ErrSchema
	case KindWrite:
		return ErrWrite
	case KindExtractionFormat:
		return ErrExtractionFormat
	default:
		return nil
	}
}

// Error is returned by every failed reconciliation.
//
// Partial is set when the target table was created but the rows could not
// be written: the table now exists and is empty. Creating it again will
// fail, so callers should report the state rather than retry.
type Error struct {
	Kind    Kind
	Table   string
	Partial bool
	Msg     string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Table != "" {
		msg = fmt.Sprintf("%s (table %q)", msg, e.Table)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// IsPartial reports whether err left a created but empty table behind.
func IsPartial(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Partial
}

// KindOf returns the kind of an ingestion error, or 0 for other errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func newError(kind Kind, table, msg string, err error) *Error {
	return &Error{Kind: kind, Table: table, Msg: msg, Err: err}
}
