package engine

import (
	"errors"
	"fmt"
	"strconv"
)

// Error is a typed error raised at the transmitter API boundary or by the
// streamer.
//
// Codes:
//   - INVALID_ADDRESS: channel address outside the table
//   - ALREADY_STARTED: Start on a running streamer
//   - NOT_STARTED: Stop on a streamer that never ran
//   - QUEUE_CLOSED: the automaton input queue refused a word
//   - BUILD_FAILED: the frame source returned an error
//
// Protocol conditions (a zero bit, a full table, an 8-bit value mask) are
// never errors.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes errors.
type ErrorCode string

const (
	ErrCodeInvalidAddress ErrorCode = "INVALID_ADDRESS"
	ErrCodeAlreadyStarted ErrorCode = "ALREADY_STARTED"
	ErrCodeNotStarted     ErrorCode = "NOT_STARTED"
	ErrCodeQueueClosed    ErrorCode = "QUEUE_CLOSED"
	ErrCodeBuildFailed    ErrorCode = "BUILD_FAILED"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsAddressError reports whether err is an INVALID_ADDRESS error.
func IsAddressError(err error) bool {
	return hasCode(err, ErrCodeInvalidAddress)
}

// IsAlreadyStarted reports whether err is an ALREADY_STARTED error.
func IsAlreadyStarted(err error) bool {
	return hasCode(err, ErrCodeAlreadyStarted)
}

// IsNotStarted reports whether err is a NOT_STARTED error.
func IsNotStarted(err error) bool {
	return hasCode(err, ErrCodeNotStarted)
}

// IsQueueClosed reports whether err is a QUEUE_CLOSED error.
func IsQueueClosed(err error) bool {
	return hasCode(err, ErrCodeQueueClosed)
}

// IsBuildError reports whether err is a BUILD_FAILED error.
func IsBuildError(err error) bool {
	return hasCode(err, ErrCodeBuildFailed)
}

// NewAddressError creates an INVALID_ADDRESS error for addr outside
// 0..size-1.
func NewAddressError(addr, size int) *Error {
	return NewAddressRangeError(addr, 0, size-1)
}

// NewAddressRangeError creates an INVALID_ADDRESS error for addr outside
// lo..hi.
func NewAddressRangeError(addr, lo, hi int) *Error {
	return &Error{
		Code:    ErrCodeInvalidAddress,
		Message: fmt.Sprintf("address %d out of range %d..%d", addr, lo, hi),
		Details: map[string]string{
			"address": strconv.Itoa(addr),
			"min":     strconv.Itoa(lo),
			"max":     strconv.Itoa(hi),
		},
	}
}

// NewBuildError wraps a frame source failure.
func NewBuildError(generation int64, err error) *Error {
	return &Error{
		Code:    ErrCodeBuildFailed,
		Message: fmt.Sprintf("rebuild after generation %d", generation),
		Err:     err,
	}
}
