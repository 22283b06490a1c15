package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of a harvest failure
type ErrorType string

const (
	ErrorTypeNetwork      ErrorType = "network"
	ErrorTypeQuota        ErrorType = "quota"
	ErrorTypeCacheCorrupt ErrorType = "cache_corrupt"
	ErrorTypeParsing      ErrorType = "parsing"
	ErrorTypeIO           ErrorType = "io"
	ErrorTypeAuth         ErrorType = "auth"
	ErrorTypeUnknown      ErrorType = "unknown"
)

// QuotaPhrase is the body text the API sends once the daily request quota is spent.
const QuotaPhrase = "Too many requests for 24 hrs."

// ErrQuotaExceeded is matched by every quota error through errors.Is
var ErrQuotaExceeded = errors.New("daily request quota exhausted")

// Error represents a classified failure with an optional HTTP status code
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error (code %d): %s: %v", e.Type, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrQuotaExceeded) match any quota-typed error
func (e *Error) Is(target error) bool {
	return target == ErrQuotaExceeded && e.Type == ErrorTypeQuota
}

// New creates a classified error
func New(t ErrorType, code int, msg string) *Error {
	return &Error{Type: t, Message: msg, Code: code}
}

// Wrap classifies an underlying error
func Wrap(t ErrorType, err error, msg string) *Error {
	return &Error{Type: t, Message: msg, Err: err}
}

// Quota builds the quota error for the given status code (0 when detected from a body)
func Quota(code int, msg string) *Error {
	return &Error{Type: ErrorTypeQuota, Message: msg, Code: code}
}

// TypeOf returns the classification of err, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsQuota reports whether err signals an exhausted daily quota
func IsQuota(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}

// IsFatal reports whether err must stop the whole run.
// Parsing errors are absorbed by the cache, everything else that reaches
// the orchestrator ends the run.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	switch TypeOf(err) {
	case ErrorTypeParsing:
		return false
	default:
		return true
	}
}

// IsRetryable checks if an error type should be retried.
// Quota errors are never retried: the window resets only after a day.
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork:
		return true
	default:
		return false
	}
}
