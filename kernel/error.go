package kernel

import (
	"errors"
	"fmt"
	"sync"
)

// ErrAlreadyReleased is returned when a resource is freed a second time.
var ErrAlreadyReleased = errors.New("resource already released")

// ErrorCode categorizes a failure carried by an Error.
type ErrorCode int

const (
	CodeAllocation ErrorCode = iota
	CodeInvalidArgument
	CodeStorage
	CodeSchemaMismatch
	CodeInvalidHandle
	CodeMissingCommitInfo
	CodeInternal
)

func (c ErrorCode) String() string {
	switch c {
	case CodeAllocation:
		return "allocation"
	case CodeInvalidArgument:
		return "invalid argument"
	case CodeStorage:
		return "storage"
	case CodeSchemaMismatch:
		return "schema mismatch"
	case CodeInvalidHandle:
		return "invalid handle"
	case CodeMissingCommitInfo:
		return "missing commit info"
	case CodeInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the diagnostic payload of a failed operation. Whoever receives
// it through an Err result owns it and must free it exactly once.
type Error struct {
	code ErrorCode
	msg  string

	released bool
	mu       sync.Mutex
}

// NewError creates an Error with the given category and message.
func NewError(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{code: code, msg: fmt.Sprintf(format, args...)}
}

// Code returns the failure category.
func (e *Error) Code() ErrorCode {
	return e.code
}

// Message returns the human-readable message.
func (e *Error) Message() string {
	return e.msg
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.code, e.msg)
}

// Free releases the error. The first call succeeds; every later call
// returns ErrAlreadyReleased instead of corrupting anything.
func (e *Error) Free() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.released {
		return ErrAlreadyReleased
	}
	e.released = true
	return nil
}

// wrapStorageErr converts a store failure into a protocol Error.
func wrapStorageErr(op string, err error) *Error {
	return NewError(CodeStorage, "%s: %v", op, err)
}
