package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind tags the variant of an Error.
type Kind int

const (
	KindUnauthorized Kind = iota
	KindDomain
	KindStatus
	KindUnknown
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindDomain:
		return "domain"
	case KindStatus:
		return "status"
	case KindUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Code is a stable machine-readable error code. Values follow the
// Parse error code table so existing SDKs interpret them correctly.
type Code int

const (
	CodeOtherCause          Code = -1
	CodeInternalServerError Code = 1
	CodeConnectionFailed    Code = 100
	CodeObjectNotFound      Code = 101
	CodeInvalidJSON         Code = 107
	CodeOperationForbidden  Code = 119
	CodeFileSaveError       Code = 130
	CodeUsernameMissing     Code = 200
	CodeSessionMissing      Code = 206
	CodeInvalidSessionToken Code = 209
)

// CodeUnknownError is the code attached to wrapped, unclassified failures.
const CodeUnknownError = CodeOtherCause

// Messages rendered verbatim by the transport layer.
const (
	MessageUnauthorized        = "unauthorized"
	MessageMasterKeyRequired   = "unauthorized: master key is required"
	MessageInternalServerError = "Internal server error."
)

// Error is the closed error type of the pipeline. Only the fields that
// belong to its Kind are meaningful.
type Error struct {
	Kind    Kind
	Code    Code   // KindDomain, KindUnknown
	Status  int    // KindStatus
	Message string // all kinds
	Cause   error  // KindUnknown, optionally KindDomain
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch e.Kind {
	case KindDomain:
		if e.Cause != nil {
			return fmt.Sprintf("code %d: %s: %v", e.Code, e.Message, e.Cause)
		}
		return fmt.Sprintf("code %d: %s", e.Code, e.Message)
	case KindStatus:
		return fmt.Sprintf("status %d: %s", e.Status, e.Message)
	case KindUnknown:
		return fmt.Sprintf("unknown error: %v", e.Cause)
	default:
		return e.Message
	}
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Unauthorized creates the error used for every credential rejection.
func Unauthorized() *Error {
	return &Error{Kind: KindUnauthorized, Message: MessageUnauthorized}
}

// Domain creates a classified error with the given code.
func Domain(code Code, message string) *Error {
	return &Error{Kind: KindDomain, Code: code, Message: message}
}

// Status creates an error that renders with an explicit HTTP status.
func Status(status int, message string) *Error {
	return &Error{Kind: KindStatus, Status: status, Message: message}
}

// Unknown wraps an unclassified failure. The cause is kept for logging and
// never rendered to the caller.
func Unknown(cause error) *Error {
	return &Error{Kind: KindUnknown, Code: CodeUnknownError, Message: MessageInternalServerError, Cause: cause}
}

// MasterKeyRequired is returned by guards that need master privileges.
func MasterKeyRequired() *Error {
	return Status(http.StatusForbidden, MessageMasterKeyRequired)
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsUnauthorized reports whether err is an Unauthorized rejection.
func IsUnauthorized(err error) bool {
	e, ok := As(err)
	return ok && e.Kind == KindUnauthorized
}

// ErrorResponse is the JSON envelope for rendered errors.
type ErrorResponse struct {
	Code    Code   `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}
