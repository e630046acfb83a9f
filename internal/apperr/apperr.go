// Package apperr defines the error taxonomy shared by the services and the
// HTTP layer. Every failure that reaches a client carries a Kind, which
// decides the status code, and a stable machine-readable Code.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindAuthentication Kind = "authentication"
	KindAuthorization  Kind = "authorization"
	KindConflict       Kind = "conflict"
	KindNotFound       Kind = "not_found"
	KindDependency     Kind = "dependency"
	KindInternal       Kind = "internal"
)

// Stable error codes.
const (
	CodeUnauthenticated    = "UNAUTHENTICATED"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeStaleIdentity      = "STALE_IDENTITY"
	CodeStalePassword      = "STALE_PASSWORD"
	CodeForbidden          = "FORBIDDEN"
	CodeDuplicateBooking   = "DUPLICATE_BOOKING"
	CodeCapacityExceeded   = "CAPACITY_EXCEEDED"
	CodeBookingRequired    = "BOOKING_REQUIRED"
	CodeDuplicateReview    = "DUPLICATE_REVIEW"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeNotFound           = "NOT_FOUND"
	CodeValidation         = "VALIDATION_FAILED"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeEmailNotVerified   = "EMAIL_NOT_VERIFIED"
	CodeEmailTaken         = "EMAIL_TAKEN"
	CodeAlreadyVerified    = "ALREADY_VERIFIED"
	CodeNameTaken          = "NAME_TAKEN"
	CodeInvalidTransition  = "INVALID_TRANSITION"
	CodeDispatchFailed     = "DISPATCH_FAILED"
	CodeInternal           = "INTERNAL"
)

// Error is the typed failure returned by guards and services.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Code so callers can compare against the
// package-level values with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// New builds an Error without a cause.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap builds an Error around a cause.
func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// WithDetails returns a copy of e carrying field-level details.
func (e *Error) WithDetails(details map[string]string) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// Predefined failures. Use errors.Is to test for them; the Gate and the
// guards return these values directly.
var (
	ErrUnauthenticated = New(KindAuthentication, CodeUnauthenticated, "You are not logged in! Please log in to get access.")
	ErrInvalidToken    = New(KindAuthentication, CodeInvalidToken, "Invalid or expired session token.")
	ErrStaleIdentity   = New(KindAuthentication, CodeStaleIdentity, "The user for that token does not exist.")
	ErrStalePassword   = New(KindAuthentication, CodeStalePassword, "The user has changed password, please login again!")
	ErrForbidden       = New(KindAuthorization, CodeForbidden, "You do not have permission to perform this action.")

	ErrDuplicateBooking = New(KindConflict, CodeDuplicateBooking, "Duplicate booking for the same user and tour.")
	ErrCapacityExceeded = New(KindConflict, CodeCapacityExceeded, "Not enough available seats for this booking.")
	ErrBookingRequired  = New(KindAuthorization, CodeBookingRequired, "You must book the tour before writing a review.")
	ErrDuplicateReview  = New(KindConflict, CodeDuplicateReview, "Duplicate review for the same user and tour.")

	ErrTokenExpired       = New(KindNotFound, CodeTokenExpired, "Token is invalid or has expired.")
	ErrInvalidCredentials = New(KindAuthentication, CodeInvalidCredentials, "Email or password is invalid.")
	ErrEmailNotVerified   = New(KindAuthentication, CodeEmailNotVerified, "Email is not verified. Please check your email for verification instructions.")
	ErrEmailTaken         = New(KindConflict, CodeEmailTaken, "Email is already registered.")
	ErrAlreadyVerified    = New(KindConflict, CodeAlreadyVerified, "This email is already verified. Please log in.")
	ErrNameTaken          = New(KindConflict, CodeNameTaken, "A tour with this name already exists.")
	ErrDispatchFailed     = New(KindDependency, CodeDispatchFailed, "There was an error sending the email. Try again later!")
)

// NotFound reports a missing entity of the named resource.
func NotFound(resource string) *Error {
	return New(KindNotFound, CodeNotFound, fmt.Sprintf("No %s found with that ID.", resource))
}

// Validation reports malformed or missing input.
func Validation(message string) *Error {
	return New(KindValidation, CodeValidation, message)
}

// Internal wraps an unexpected failure, typically from the store.
func Internal(err error) *Error {
	return Wrap(KindInternal, CodeInternal, "Something went wrong.", err)
}

// As extracts an *Error from err. Non-typed errors are reported as internal.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}
