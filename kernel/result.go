package kernel

import "fmt"

// Tag is the discriminant of a Result.
type Tag int

const (
	TagOk Tag = iota
	TagErr
)

// Result is the tagged envelope returned by every fallible operation.
// Callers must branch on the tag before touching a payload; the checked
// accessors below make touching the wrong arm loud instead of undefined.
type Result[T any] struct {
	tag   Tag
	value T
	err   *Error
}

// Ok wraps a success payload.
func Ok[T any](v T) Result[T] {
	return Result[T]{tag: TagOk, value: v}
}

// Err wraps a failure payload. The receiver of the result owns the Error
// and must free it.
func Err[T any](e *Error) Result[T] {
	return Result[T]{tag: TagErr, err: e}
}

// Tag returns the discriminant.
func (r Result[T]) Tag() Tag {
	return r.tag
}

// IsOk reports whether the result carries a success payload.
func (r Result[T]) IsOk() bool {
	return r.tag == TagOk
}

// IsErr reports whether the result carries an Error.
func (r Result[T]) IsErr() bool {
	return r.tag == TagErr
}

// Unwrap returns the success payload, panicking if the result is an Err.
func (r Result[T]) Unwrap() T {
	if r.tag != TagOk {
		panic(fmt.Sprintf("unwrap of Err result: %s", r.err.Error()))
	}
	return r.value
}

// UnwrapErr returns the Error payload, panicking if the result is an Ok.
func (r Result[T]) UnwrapErr() *Error {
	if r.tag != TagErr {
		panic("unwrap-err of Ok result")
	}
	return r.err
}

// Get returns both arms for callers that prefer ordinary Go error flow.
// Exactly one of the two is meaningful, selected by the tag.
func (r Result[T]) Get() (T, *Error) {
	return r.value, r.err
}
