package projectdb

import (
	"errors"
	"fmt"
)

// Kind classifies failures so callers can react without parsing messages.
type Kind string

const (
	KindParse       Kind = "parse"
	KindSchema      Kind = "schema"
	KindNotFound    Kind = "not_found"
	KindReferential Kind = "referential"
	KindConflict    Kind = "conflict"
	KindBackend     Kind = "backend"
)

// Error is the single error type returned by Service operations.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrParse       = &Error{Kind: KindParse}
	ErrSchema      = &Error{Kind: KindSchema}
	ErrNotFound    = &Error{Kind: KindNotFound}
	ErrReferential = &Error{Kind: KindReferential}
	ErrConflict    = &Error{Kind: KindConflict}
	ErrBackend     = &Error{Kind: KindBackend}
)

func (e *Error) Error() string {
	switch {
	case e.Msg == "" && e.Err != nil:
		return e.Err.Error()
	case e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	default:
		return e.Msg
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

// Errorf builds an *Error of the given kind. %w verbs are honoured.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap tags err with kind and a short description of the failed step.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// asBackend leaves kind-tagged errors alone and tags anything else as a
// backend failure.
func asBackend(msg string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != "" {
		return err
	}
	return Wrap(KindBackend, msg, err)
}
