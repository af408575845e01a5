// Package duoerr classifies the errors that flow out of the path
// abstraction and the file operation task engine.
//
// It mirrors the shape of rclone's fs/fserrors: a typed *Error carrying
// a Kind, an As classifier built on errors.As, and two
// marker interfaces (Fatal, NoRetry) that a caller can type-assert for
// without needing to know which backend produced the error.
package duoerr

import (
	"errors"
	"fmt"
)

// Kind is one of the error categories from the taxonomy.
type Kind int

// The error kinds. Other is the zero value so an unclassified error
// still reports something sensible.
const (
	Other Kind = iota
	NotFound
	AlreadyExists
	PermissionDenied
	UnsupportedOperation
	DiskSpaceExhausted
	InvalidPath
	ArchiveFormatError
	RemoteError
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "NotFound"
	case AlreadyExists:
		return "AlreadyExists"
	case PermissionDenied:
		return "PermissionDenied"
	case UnsupportedOperation:
		return "UnsupportedOperation"
	case DiskSpaceExhausted:
		return "DiskSpaceExhausted"
	case InvalidPath:
		return "InvalidPath"
	case ArchiveFormatError:
		return "ArchiveFormatError"
	case RemoteError:
		return "RemoteError"
	case Cancelled:
		return "Cancelled"
	default:
		return "Other"
	}
}

// Error is a classified error carrying its Kind plus an optional wrapped
// cause and a detail string for Other.
type Error struct {
	Kind   Kind
	Op     string // operation that failed, e.g. "stat", "copy"
	Path   string // canonical path string involved, if any
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Fatal reports whether this error must abort the whole operation rather
// than being counted and skipped. Only DiskSpaceExhausted is fatal per
// the propagation policy; everything else is per-entry.
func (e *Error) Fatal() bool { return e.Kind == DiskSpaceExhausted }

// NoRetry reports whether a transient-retry loop (used for RemoteError)
// should give up immediately instead of backing off and retrying.
func (e *Error) NoRetry() bool {
	switch e.Kind {
	case Cancelled, UnsupportedOperation, InvalidPath, PermissionDenied, AlreadyExists, NotFound:
		return true
	default:
		return false
	}
}

// New builds a classified error.
func New(kind Kind, op, path string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: cause}
}

// Newf builds a classified error with a formatted detail string.
func Newf(kind Kind, op, path, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Detail: fmt.Sprintf(format, args...)}
}

// As classifies any error into a Kind. Unclassified errors report Other.
func As(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Other
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return As(err) == kind
}

// fataler and noRetrier let callers ask about plain errors that were never
// wrapped through duoerr.Error but still implement the marker interfaces,
// matching rclone's fserrors.Fatal/fserrors.NoRetryError pattern.
type fataler interface{ Fatal() bool }
type noRetrier interface{ NoRetry() bool }

// IsFatal reports whether err (at any depth) signals an abort-everything
// condition.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var f fataler
	if errors.As(err, &f) {
		return f.Fatal()
	}
	return false
}

// IsNoRetry reports whether err (at any depth) signals that a retry loop
// should stop immediately.
func IsNoRetry(err error) bool {
	if err == nil {
		return false
	}
	var nr noRetrier
	if errors.As(err, &nr) {
		return nr.NoRetry()
	}
	return false
}
