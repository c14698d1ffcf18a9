package hydrate

import (
	"errors"
	"fmt"
	"strings"
)

// Failure categories. Every *Error produced by this package wraps exactly
// one of these sentinels, so callers can classify with errors.Is.
var (
	ErrMissingInstantiator     = errors.New("missing instantiator")
	ErrConfiguration           = errors.New("invalid schema configuration")
	ErrMissingRequiredProperty = errors.New("missing required property")
	ErrNullRequiredProperty    = errors.New("required property is null")
	ErrTypeMismatch            = errors.New("type mismatch")
	ErrConstruction            = errors.New("cannot construct instance")
	ErrCoercion                = errors.New("value coercion failed")
	ErrUnexpectedProperties    = errors.New("unexpected properties")
	ErrSerialisation           = errors.New("serialisation failed")
	ErrMutationRejected        = errors.New("mutation rejected")
)

// Error is the structured failure value used uniformly by the hydrator,
// serialiser and mutator. Context is a dotted/bracketed path into the
// input tree, e.g. "root.children[2].id".
type Error struct {
	Err     error  // category sentinel
	Message string // human-readable description
	Context string // path at which the failure occurred
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s at %s", e.Message, e.Context)
}

// Unwrap exposes the category sentinel for errors.Is.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(category error, path string, format string, args ...any) *Error {
	return &Error{
		Err:     category,
		Message: fmt.Sprintf(format, args...),
		Context: path,
	}
}

// ErrorList is the accumulated result of a collecting-mode walk. It is
// ordered by encounter order, one entry per failure, each tagged with its
// originating path. An empty list is the only definition of success; a
// non-nil instance alone proves nothing.
type ErrorList []*Error

// Error implements the error interface by joining every entry.
func (el ErrorList) Error() string {
	msgs := make([]string, len(el))
	for i, e := range el {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// AsError returns nil for an empty list, otherwise the list itself. This
// keeps the usual `if err != nil` contract at collection boundaries.
func (el ErrorList) AsError() error {
	if len(el) == 0 {
		return nil
	}
	return el
}

// Unwrap lets errors.Is and errors.As reach the individual entries.
func (el ErrorList) Unwrap() []error {
	errs := make([]error, len(el))
	for i, e := range el {
		errs[i] = e
	}
	return errs
}
