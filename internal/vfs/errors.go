package vfs

import (
	"errors"
	"fmt"
)

// ErrorKind classifies the failure modes adapters must surface across
// the filesystem capability boundary (spec §7).
type ErrorKind int

const (
	// KindIoError is the catch-all for failures not otherwise classified.
	KindIoError ErrorKind = iota
	KindNotFound
	KindNotDirectory
	KindIsDirectory
	KindExists
	KindNotEmpty
	KindInvalidArg
	KindPermissionDenied
	KindNotSupported
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindNotDirectory:
		return "NotDirectory"
	case KindIsDirectory:
		return "IsDirectory"
	case KindExists:
		return "Exists"
	case KindNotEmpty:
		return "NotEmpty"
	case KindInvalidArg:
		return "InvalidArg"
	case KindPermissionDenied:
		return "PermissionDenied"
	case KindNotSupported:
		return "NotSupported"
	default:
		return "IoError"
	}
}

// Error is the concrete error type returned across adapter boundaries.
// It renders as "<KIND>: <detail>, <syscall> '<path>'" per spec §7.
type Error struct {
	Kind    ErrorKind
	Syscall string
	Path    string
	Detail  string
	Wrapped error
}

func (e *Error) Error() string {
	detail := e.Detail
	if detail == "" {
		detail = e.Kind.String()
	}
	return fmt.Sprintf("%s: %s, %s '%s'", e.Kind, detail, e.Syscall, e.Path)
}

func (e *Error) Unwrap() error {
	return e.Wrapped
}

// NewError constructs an *Error for the given kind, syscall name and path.
func NewError(kind ErrorKind, syscall, path string) *Error {
	return &Error{Kind: kind, Syscall: syscall, Path: path}
}

// NewErrorf constructs an *Error with a formatted detail message.
func NewErrorf(kind ErrorKind, syscall, path, format string, args ...any) *Error {
	return &Error{Kind: kind, Syscall: syscall, Path: path, Detail: fmt.Sprintf(format, args...)}
}

// Wrap attaches an underlying cause to an *Error for errors.Unwrap chains.
func (e *Error) Wrap(cause error) *Error {
	e.Wrapped = cause
	return e
}

// KindOf extracts the ErrorKind from err, defaulting to KindIoError
// for errors that are not *Error (or don't wrap one).
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindIoError
}

// Is reports whether err carries the given kind.
func Is(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

func IsNotFound(err error) bool         { return Is(err, KindNotFound) }
func IsNotDirectory(err error) bool     { return Is(err, KindNotDirectory) }
func IsIsDirectory(err error) bool      { return Is(err, KindIsDirectory) }
func IsExists(err error) bool           { return Is(err, KindExists) }
func IsNotEmpty(err error) bool         { return Is(err, KindNotEmpty) }
func IsInvalidArg(err error) bool       { return Is(err, KindInvalidArg) }
func IsPermissionDenied(err error) bool { return Is(err, KindPermissionDenied) }
func IsNotSupported(err error) bool     { return Is(err, KindNotSupported) }
