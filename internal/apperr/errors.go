// Package apperr defines the public error taxonomy of the gateway.
//
// Every failure that leaves the process is an *Error carrying a stable
// string Code, a Kind used for transport mapping, a safe Message, and
// optional structured Details. Messages never contain SQL, file paths or
// internal identifiers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind groups codes by how the caller should react.
type Kind string

const (
	// KindShape is a malformed request, rejected before database access.
	KindShape Kind = "shape"

	// KindConflict is an idempotency conflict, integrity failure or
	// status-gated rejection, surfaced after an attempted mutation.
	KindConflict Kind = "conflict"

	// KindNotFound is a lookup miss or zero-rows-affected update.
	KindNotFound Kind = "not_found"

	// KindFunds is a conditional debit that found too little balance.
	KindFunds Kind = "funds"

	// KindUnavailable is a bounded lock wait that expired. Callers retry.
	KindUnavailable Kind = "unavailable"

	// KindInternal is anything else.
	KindInternal Kind = "internal"
)

// Code is a stable, caller-visible error identifier.
type Code string

// Shape errors.
const (
	CodeInvalidJSON      Code = "INVALID_JSON"
	CodeMissingField     Code = "MISSING_FIELD"
	CodeInvalidField     Code = "INVALID_FIELD"
	CodeColumnNotAllowed Code = "COLUMN_NOT_ALLOWED"
	CodeEmptyUpdate      Code = "EMPTY_UPDATE"
)

// Conflict errors.
const (
	CodeAgentExists           Code = "AGENT_EXISTS"
	CodePublicKeyExists       Code = "PUBLIC_KEY_EXISTS"
	CodeAccountExists         Code = "ACCOUNT_EXISTS"
	CodeReferenceConflict     Code = "REFERENCE_CONFLICT"
	CodeEscrowAlreadyLocked   Code = "ESCROW_ALREADY_LOCKED"
	CodeEscrowAlreadyResolved Code = "ESCROW_ALREADY_RESOLVED"
	CodeShareSumMismatch      Code = "SHARE_SUM_MISMATCH"
	CodeTaskExists            Code = "TASK_EXISTS"
	CodeBidExists             Code = "BID_EXISTS"
	CodeAssetExists           Code = "ASSET_EXISTS"
	CodeFeedbackExists        Code = "FEEDBACK_EXISTS"
	CodeClaimExists           Code = "CLAIM_EXISTS"
	CodeRebuttalExists        Code = "REBUTTAL_EXISTS"
	CodeRulingExists          Code = "RULING_EXISTS"
	CodeLedgerEntryExists     Code = "LEDGER_ENTRY_EXISTS"
	CodeEventExists           Code = "EVENT_EXISTS"
	CodeForeignKeyViolation   Code = "FOREIGN_KEY_VIOLATION"
	CodeInvalidAmount         Code = "INVALID_AMOUNT"
	CodeInvalidValue          Code = "INVALID_VALUE"
	CodeConstraintViolation   Code = "CONSTRAINT_VIOLATION"
)

// Not-found errors.
const (
	CodeAccountNotFound  Code = "ACCOUNT_NOT_FOUND"
	CodeEscrowNotFound   Code = "ESCROW_NOT_FOUND"
	CodeTaskNotFound     Code = "TASK_NOT_FOUND"
	CodeFeedbackNotFound Code = "FEEDBACK_NOT_FOUND"
	CodeClaimNotFound    Code = "CLAIM_NOT_FOUND"
)

// Other errors.
const (
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"
	CodeDatabaseBusy      Code = "DATABASE_BUSY"
	CodeDatabaseError     Code = "DATABASE_ERROR"
	CodeInternal          Code = "INTERNAL_ERROR"
)

// Error is the only error type that crosses the transport boundary.
type Error struct {
	// Code identifies the failure.
	Code Code

	// Kind classifies the code.
	Kind Kind

	// Message is safe to show to the caller.
	Message string

	// Details carries field or column names, never raw driver output.
	Details map[string]any

	// Err is the underlying cause. It is logged but not serialized.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error kind to a response status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindShape:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindFunds:
		return http.StatusPaymentRequired
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// New creates an error of the given kind.
func New(kind Kind, code Code, message string) *Error {
	return &Error{Code: code, Kind: kind, Message: message}
}

// WithDetail returns e with key set in its details.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Wrap attaches a cause to e.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

// Shape creates a request shape error.
func Shape(code Code, message string) *Error {
	return New(KindShape, code, message)
}

// Conflict creates a conflict error.
func Conflict(code Code, message string) *Error {
	return New(KindConflict, code, message)
}

// NotFound creates a not-found error.
func NotFound(code Code, message string) *Error {
	return New(KindNotFound, code, message)
}

// MissingField reports an absent or empty required field.
func MissingField(field string) *Error {
	return Shape(CodeMissingField, fmt.Sprintf("field %q is required", field)).
		WithDetail("field", field)
}

// InvalidField reports a field of the wrong primitive type.
func InvalidField(field, want string) *Error {
	return Shape(CodeInvalidField, fmt.Sprintf("field %q must be %s", field, want)).
		WithDetail("field", field)
}

// InsufficientFunds reports a conditional debit that matched no row.
func InsufficientFunds(accountID string) *Error {
	return New(KindFunds, CodeInsufficientFunds, "insufficient funds").
		WithDetail("account_id", accountID)
}

// Busy reports an expired bounded lock wait.
func Busy(err error) *Error {
	return New(KindUnavailable, CodeDatabaseBusy, "database is busy, retry later").Wrap(err)
}

// Database reports an untranslatable database failure.
func Database(err error) *Error {
	return New(KindInternal, CodeDatabaseError, "database operation failed").Wrap(err)
}

// Internal reports an unexpected failure.
func Internal(err error) *Error {
	return New(KindInternal, CodeInternal, "internal error").Wrap(err)
}

// As extracts an *Error from err. Errors that are not *Error become
// INTERNAL_ERROR so callers always have a code to report.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal(err)
}

// HasCode reports whether err carries the given code.
// Uses errors.As to handle wrapped errors.
func HasCode(err error, code Code) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}
