package store

import (
	"errors"
	"fmt"
)

// ErrorKind classifies store failures.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	Unavailable
	PermissionDenied
	NotFound
	// Conflict means a batch guard failed or the backend aborted the commit.
	Conflict
	// Invalid means a malformed path, batch or query.
	Invalid
)

func (k ErrorKind) String() string {
	switch k {
	case Unavailable:
		return "unavailable"
	case PermissionDenied:
		return "permission denied"
	case NotFound:
		return "not found"
	case Conflict:
		return "conflict"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Error is returned by every backend.
type Error struct {
	Kind ErrorKind
	Op   string
	Path Path
	Err  error
}

// Sentinels for errors.Is.
var (
	ErrUnavailable      = &Error{Kind: Unavailable}
	ErrPermissionDenied = &Error{Kind: PermissionDenied}
	ErrNotFound         = &Error{Kind: NotFound}
	ErrConflict         = &Error{Kind: Conflict}
	ErrInvalid          = &Error{Kind: Invalid}
)

var (
	errNotDocument   = errors.New("path does not name a document")
	errBatchTooLarge = fmt.Errorf("batch exceeds %d operations", MaxBatchSize)
	errGuardExists   = errors.New("document already exists")
	errGuardMissing  = errors.New("document does not exist")
	errClosed        = errors.New("store closed")
)

func (e *Error) Error() string {
	msg := "store"
	if e.Op != "" {
		msg += " " + e.Op
	}
	if e.Path != "" {
		msg += " " + string(e.Path)
	}
	msg += ": " + e.Kind.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Path == "" && t.Err == nil && t.Kind == e.Kind
}

// KindOf extracts the kind of a store error, or KindUnknown.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// NotFoundError reports that the document at p does not exist.
func NotFoundError(op string, p Path) error {
	return newError(NotFound, op, p, errGuardMissing)
}

func newError(kind ErrorKind, op string, p Path, err error) error {
	return &Error{Kind: kind, Op: op, Path: p, Err: err}
}

// asStoreError passes store errors through untouched and wraps anything else
// with the given kind.
func asStoreError(kind ErrorKind, op string, p Path, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return newError(kind, op, p, err)
}
