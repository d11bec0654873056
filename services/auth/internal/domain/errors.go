package domain

import (
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindValidation            Kind = "VALIDATION"
	KindDuplicate             Kind = "DUPLICATE"
	KindNotFound              Kind = "NOT_FOUND"
	KindAlreadyVerified       Kind = "ALREADY_VERIFIED"
	KindAlreadyProcessed      Kind = "ALREADY_PROCESSED"
	KindInvalidCode           Kind = "INVALID_CODE"
	KindExpired               Kind = "EXPIRED"
	KindInvalidOrExpired      Kind = "INVALID_OR_EXPIRED"
	KindInvalidOrExpiredToken Kind = "INVALID_OR_EXPIRED_TOKEN"
	KindMismatch              Kind = "MISMATCH"
	KindForbidden             Kind = "FORBIDDEN"
	KindDelivery              Kind = "DELIVERY"
	KindInvalidCredentials    Kind = "INVALID_CREDENTIALS"
	KindInvalidToken          Kind = "INVALID_TOKEN"
	KindInternal              Kind = "INTERNAL"
)

// Error is a business-rule failure. Field names the offending input when
// the failure is field-scoped.
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so callers can use the sentinels
// below with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrValidation            = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrDuplicate             = &Error{Kind: KindDuplicate, Message: "already exists"}
	ErrNotFound              = &Error{Kind: KindNotFound, Message: "not found"}
	ErrAlreadyVerified       = &Error{Kind: KindAlreadyVerified, Message: "User is already verified. Please login."}
	ErrAlreadyProcessed      = &Error{Kind: KindAlreadyProcessed, Message: "already processed"}
	ErrInvalidCode           = &Error{Kind: KindInvalidCode, Message: "Invalid OTP."}
	ErrExpired               = &Error{Kind: KindExpired, Message: "OTP has expired. Please request a new one."}
	ErrInvalidOrExpired      = &Error{Kind: KindInvalidOrExpired, Message: "Invalid or expired OTP."}
	ErrInvalidOrExpiredToken = &Error{Kind: KindInvalidOrExpiredToken, Message: "Invalid or expired reset token."}
	ErrMismatch              = &Error{Kind: KindMismatch, Field: "confirmPassword", Message: "Passwords do not match."}
	ErrForbidden             = &Error{Kind: KindForbidden, Message: "You do not have permission to perform this action."}
	ErrDelivery              = &Error{Kind: KindDelivery, Message: "Failed to send email. Please try again later."}
	ErrInvalidCredentials    = &Error{Kind: KindInvalidCredentials, Message: "Invalid email or password."}
	ErrInvalidToken          = &Error{Kind: KindInvalidToken, Message: "Invalid or expired token."}
)

func NewValidationError(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

var fieldLabels = map[string]string{
	"email":         "A user with this email already exists.",
	"username":      "A user with this username already exists.",
	"phoneNumber":   "A user with this phone number already exists.",
	"licenseNumber": "A guide with this license number already exists.",
}

func NewDuplicateError(field string) *Error {
	msg, ok := fieldLabels[field]
	if !ok {
		msg = fmt.Sprintf("A record with this %s already exists.", field)
	}
	return &Error{Kind: KindDuplicate, Field: field, Message: msg}
}

func NewNotFoundError(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func NewForbiddenError(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

func NewAlreadyProcessedError(status GuideStatus) *Error {
	return &Error{
		Kind:    KindAlreadyProcessed,
		Message: fmt.Sprintf("Guide has already been %s. Current status: %s", strings.ToLower(string(status)), status),
	}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
