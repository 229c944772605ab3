package x1kernel

import (
	"errors"
	"fmt"
)

// Code classifies a kernel-level failure the way the original port's
// errno-shaped returns did, without tying the taxonomy to a specific
// platform's errno numbering.
type Code string

const (
	// ErrCodeOutOfMemory means a heap allocation could not find a large
	// enough free block.
	ErrCodeOutOfMemory Code = "out_of_memory"

	// ErrCodeAgain means the operation could not complete right now and
	// the caller should retry, mirroring EAGAIN (e.g. an IRQ line already
	// bound to a handler).
	ErrCodeAgain Code = "again"

	// ErrCodeInvalidArgument means a caller-supplied value (priority,
	// IRQ line) fell outside the range the kernel accepts.
	ErrCodeInvalidArgument Code = "invalid_argument"
)

// Error is the kernel's structured error type: an operation name, a
// stable Code a caller can switch on, a human-readable message, and an
// optional wrapped cause. Modeled directly on the donor repo's own
// Error{Op, Code, Msg, Inner} shape.
type Error struct {
	Op    string
	Code  Code
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	if e.Inner != nil {
		return fmt.Sprintf("x1kernel: %s: %s: %v", e.Op, e.Msg, e.Inner)
	}
	return fmt.Sprintf("x1kernel: %s: %s", e.Op, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Inner
}

// NewError builds an Error with no wrapped cause.
func NewError(op string, code Code, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// WrapError builds an Error that wraps an existing cause, carrying it
// forward for errors.Is/errors.As while still exposing a stable Code.
func WrapError(op string, code Code, msg string, inner error) *Error {
	return &Error{Op: op, Code: code, Msg: msg, Inner: inner}
}

// IsCode reports whether err is an *Error (at any point in its chain)
// with the given Code.
func IsCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// Fatal reports an error the kernel core considers unrecoverable — a
// violated invariant rather than an ordinary failure a caller can
// retry — by panicking with it. Mirrors the original port's practice of
// treating invariant violations (a dead thread scheduled, a double free)
// as programming errors rather than returned errors.
func Fatal(op string, msg string) {
	panic(NewError(op, ErrCodeInvalidArgument, msg))
}
