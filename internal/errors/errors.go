// Package errors defines the error taxonomy shared by services and handlers.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies an error for propagation and HTTP mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindPaymentVerification
	KindConflict
	KindUpstream
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindPaymentVerification:
		return "payment_verification"
	case KindConflict:
		return "conflict"
	case KindUpstream:
		return "upstream"
	case KindStorage:
		return "storage"
	default:
		return "internal"
	}
}

// Error is the structured error returned by the service layer.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]interface{}

	// Payload, when set, is rendered to the client verbatim.
	Payload interface{}

	// Retryable marks upstream failures the client may retry as-is.
	Retryable bool

	// Timeout marks upstream failures caused by a deadline.
	Timeout bool

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound)
// holds for every not-found error regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t == e {
		return true
	}
	return t.Kind == e.Kind && t.Message == ""
}

// Sentinels for errors.Is checks.
var (
	ErrNotFound = &Error{Kind: KindNotFound}
	ErrConflict = &Error{Kind: KindConflict}
)

// ValidationError is kept as an alias so callers can type-assert on it.
type ValidationError = Error

// NewValidationError reports a malformed or inconsistent request field.
func NewValidationError(field, message string) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: message,
		Details: map[string]interface{}{"field": field},
	}
}

// NewValidationPayload reports a validation failure whose body is
// returned to the client as-is.
func NewValidationPayload(message string, payload interface{}) *Error {
	return &Error{Kind: KindValidation, Message: message, Payload: payload}
}

// NotFound reports a missing resource with a client-facing message.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// PaymentVerification reports a payment that could not be confirmed.
func PaymentVerification(message string) *Error {
	return &Error{Kind: KindPaymentVerification, Message: message}
}

// Conflict reports a request that collides with one still in flight.
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// Upstream wraps a payment gateway failure.
func Upstream(op string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: op, Err: err, Retryable: true}
}

// UpstreamTimeout wraps a gateway call that exceeded its deadline.
func UpstreamTimeout(op string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: op, Err: err, Retryable: true, Timeout: true}
}

// Storage wraps a database or cache failure.
func Storage(op string, err error) *Error {
	return &Error{Kind: KindStorage, Message: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As is re-exported so callers need not import both packages.
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}

// Is is re-exported so callers need not import both packages.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}
