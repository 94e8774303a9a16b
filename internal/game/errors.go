package game

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a machine-readable error code surfaced verbatim to callers.
type Code string

const (
	CodeInvalidRange           Code = "INVALID_RANGE"
	CodeRangeTooLarge          Code = "RANGE_TOO_LARGE"
	CodeInvalidEntropyInput    Code = "INVALID_ENTROPY_INPUT"
	CodeBetOutOfBounds         Code = "BET_OUT_OF_BOUNDS"
	CodeInsufficientHouseFunds Code = "INSUFFICIENT_HOUSE_FUNDS"
	CodeArithmeticOverflow     Code = "ARITHMETIC_OVERFLOW"
	CodeInvalidConfig          Code = "INVALID_CONFIG"
	CodeUnauthorized           Code = "UNAUTHORIZED"

	CodeInvalidFunds        Code = "INVALID_FUNDS"
	CodeInvalidMessage      Code = "INVALID_MESSAGE"
	CodeInvalidPhase        Code = "INVALID_PHASE"
	CodeNotInstantiated     Code = "NOT_INSTANTIATED"
	CodeAlreadyInstantiated Code = "ALREADY_INSTANTIATED"
)

// HTTPStatus maps a code onto the status the transport replies with.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidRange,
		CodeRangeTooLarge,
		CodeInvalidEntropyInput,
		CodeBetOutOfBounds,
		CodeInvalidConfig,
		CodeInvalidFunds,
		CodeInvalidMessage:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusForbidden
	case CodeInsufficientHouseFunds,
		CodeNotInstantiated,
		CodeAlreadyInstantiated:
		return http.StatusConflict
	case CodeArithmeticOverflow:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Error is the engine error type. Two errors match under errors.Is when
// their codes are equal, so the sentinels below can be used as targets.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

var (
	ErrInvalidRange           = &Error{Code: CodeInvalidRange}
	ErrRangeTooLarge          = &Error{Code: CodeRangeTooLarge}
	ErrInvalidEntropyInput    = &Error{Code: CodeInvalidEntropyInput}
	ErrBetOutOfBounds         = &Error{Code: CodeBetOutOfBounds}
	ErrInsufficientHouseFunds = &Error{Code: CodeInsufficientHouseFunds}
	ErrArithmeticOverflow     = &Error{Code: CodeArithmeticOverflow}
	ErrInvalidConfig          = &Error{Code: CodeInvalidConfig}
	ErrUnauthorized           = &Error{Code: CodeUnauthorized}
	ErrInvalidFunds           = &Error{Code: CodeInvalidFunds}
	ErrInvalidMessage         = &Error{Code: CodeInvalidMessage}
	ErrInvalidPhase           = &Error{Code: CodeInvalidPhase}
	ErrNotInstantiated        = &Error{Code: CodeNotInstantiated}
	ErrAlreadyInstantiated    = &Error{Code: CodeAlreadyInstantiated}
)

// Errorf builds a coded error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithMetadata builds a coded error carrying key/value context.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

// Wrap builds a coded error around an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the code from err, or "" when err is not an engine error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
