// Package domainerrors defines coded errors surfaced by domain services.
//
// Stores and infrastructure return sentinel errors (pkg/platform/sentinel);
// services translate those facts into coded domain errors here so transports
// can map them to responses without string matching.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error. Codes are part of the API contract: the
// transport layer serializes them verbatim so callers can distinguish
// "fix your input" from "you are not authorized" from an invariant breach.
type Code string

const (
	// Validation: caller-supplied amount or field violates a precondition.
	// Retryable with corrected input.
	CodeValidation     Code = "validation"
	CodeInvalidAmount  Code = "invalid_amount"
	CodeAmountTooSmall Code = "amount_too_small"

	// Authorization: caller or counterparty lacks the required role or
	// status. Not retryable without an administrative role change.
	CodeUnauthorized           Code = "unauthorized"
	CodeNotRegistered          Code = "not_registered"
	CodeSenderNotRegistered    Code = "sender_not_registered"
	CodeRecipientNotRegistered Code = "recipient_not_registered"
	CodeOnlyClientCanSend      Code = "only_client_can_send"
	CodeOnlyMerchantCanReceive Code = "only_merchant_can_receive"
	CodeOnlyMerchantCanSettle  Code = "only_merchant_can_settle"

	// Arithmetic: ledger counters would leave the representable range.
	// Fatal to the operation, never clamped.
	CodeOverflow  Code = "overflow"
	CodeUnderflow Code = "underflow"

	// Duplicate state.
	CodeDuplicateRegistration Code = "duplicate_registration"

	// Ambient codes shared with infrastructure concerns.
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeInsufficientFunds  Code = "insufficient_funds"
	CodeInvariantViolation Code = "invariant_violation"
	CodeInternal           Code = "internal"
)

// DomainError carries a Code plus a human-readable message and optional cause.
type DomainError struct {
	Code    Code
	Message string
	cause   error
}

func (e *DomainError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.cause
}

// New constructs a coded domain error.
func New(code Code, message string) error {
	return &DomainError{Code: code, Message: message}
}

// Newf constructs a coded domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	return &DomainError{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from an error, defaulting to CodeInternal so
// unclassified failures never leak as anything softer than a 500.
func CodeOf(err error) Code {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code onto the HTTP status the transport layer writes.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeInvalidAmount, CodeAmountTooSmall:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusForbidden
	case CodeNotRegistered, CodeSenderNotRegistered, CodeRecipientNotRegistered,
		CodeOnlyClientCanSend, CodeOnlyMerchantCanReceive, CodeOnlyMerchantCanSettle:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeDuplicateRegistration:
		return http.StatusConflict
	case CodeOverflow, CodeUnderflow, CodeInvariantViolation:
		return http.StatusUnprocessableEntity
	case CodeInsufficientFunds:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
