package exchange

import (
	"errors"
	"fmt"
)

// ErrorKind classifies exchange failures for the retry and
// propagation policy.
type ErrorKind string

const (
	// KindAuth covers credential and signature failures. Fatal for
	// the adapter instance, never retried.
	KindAuth ErrorKind = "AUTH"

	// KindNetwork covers transport failures, timeouts and rate
	// limits. Retried up to the policy's attempt budget.
	KindNetwork ErrorKind = "NETWORK"

	// KindBusiness covers venue-side rejections: insufficient
	// balance, unknown symbol, order already closed. Not retried.
	KindBusiness ErrorKind = "BUSINESS"

	// KindValidation covers malformed requests caught before any
	// network call. Not retried.
	KindValidation ErrorKind = "VALIDATION"
)

// Error is a categorized exchange failure. Code carries the venue's
// numeric error code when one exists.
type Error struct {
	Kind          ErrorKind
	Op            string
	Code          int
	Message       string
	AlreadyClosed bool
	Err           error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("exchange %s: [%s] %s: %v", e.Op, e.Kind, e.Message, e.Err)
	}
	if e.Code != 0 {
		return fmt.Sprintf("exchange %s: [%s] %s (code %d)", e.Op, e.Kind, e.Message, e.Code)
	}
	return fmt.Sprintf("exchange %s: [%s] %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError creates a categorized exchange error.
func NewError(kind ErrorKind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// WrapError wraps an underlying error with a kind and operation.
func WrapError(kind ErrorKind, op string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Message: "operation failed", Err: err}
}

// WithCode attaches the venue error code.
func (e *Error) WithCode(code int) *Error {
	e.Code = code
	return e
}

// AsError extracts an *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var ee *Error
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}

// IsRetryable reports whether a call that failed with err may be
// retried. Only network-kind failures qualify.
func IsRetryable(err error) bool {
	if ee, ok := AsError(err); ok {
		return ee.Kind == KindNetwork
	}
	return false
}

// IsAuthError reports whether err is a credential failure.
func IsAuthError(err error) bool {
	ee, ok := AsError(err)
	return ok && ee.Kind == KindAuth
}

// IsBusinessError reports whether err is a venue-side rejection.
func IsBusinessError(err error) bool {
	ee, ok := AsError(err)
	return ok && ee.Kind == KindBusiness
}

// IsAlreadyClosed reports whether err means the targeted order was
// already filled or cancelled. Cancel operations normalize this to
// success; everything else surfaces it.
func IsAlreadyClosed(err error) bool {
	ee, ok := AsError(err)
	return ok && ee.AlreadyClosed
}
