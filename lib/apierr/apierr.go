// Package apierr defines the error taxonomy surfaced by the RESTful API. Every error carries a machine-readable
// code, an HTTP status class and optional structured details so clients can correct their input, while unexpected
// causes stay server-side behind a correlation identifier.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Machine-readable error codes.
const (
	CodeValidation            = "VALIDATION_ERROR"
	CodeNotFound              = "NOT_FOUND"
	CodeRelayFailed           = "RELAY_FAILED"
	CodeMiningTimedOut        = "MINING_TIMED_OUT"
	CodeMiningErrored         = "MINING_ERRORED"
	CodeQuoteService          = "QUOTE_SERVICE_ERROR"
	CodeInsufficientLiquidity = "INSUFFICIENT_LIQUIDITY"
	CodeSigningFailed         = "SIGNING_FAILED"
	CodeServer                = "SERVER_ERROR"
)

// Error is an API error with a status class, code, user-facing message and structured details. The wrapped cause, if
// any, is never serialized to clients.
type Error struct {
	Status  int                    `json:"-"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e *Error) Unwrap() error {
	return e.cause
}

// WithDetail adds a structured detail entry and returns the error for chaining.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = map[string]interface{}{}
	}
	e.Details[key] = value
	return e
}

// As returns the *Error inside err, or nil if err does not carry one.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// Validation reports malformed caller input. Always a client-class error.
func Validation(message string, details map[string]interface{}) *Error {
	return &Error{Status: http.StatusBadRequest, Code: CodeValidation, Message: message, Details: details}
}

// ValidationAddress reports a malformed account address.
func ValidationAddress(received string) *Error {
	return Validation("Invalid Ethereum address format", map[string]interface{}{
		"expectedFormat": "0x followed by 40 hexadecimal characters",
		"receivedValue":  received,
	})
}

// ValidationHex reports malformed byte-string hex data.
func ValidationHex(received string) *Error {
	return Validation("Invalid transaction data format", map[string]interface{}{
		"expectedFormat": "0x followed by even hexadecimal characters",
		"receivedValue":  received,
	})
}

// NotFound reports an absent referenced entity (user, group, position).
func NotFound(message string) *Error {
	return &Error{Status: http.StatusNotFound, Code: CodeNotFound, Message: message}
}

// RelayFailed reports an engine rejection of a submission. Not retried automatically.
func RelayFailed(statusText string, cause error) *Error {
	return &Error{
		Status:  http.StatusBadGateway,
		Code:    CodeRelayFailed,
		Message: "Engine rejected the transaction submission",
		Details: map[string]interface{}{"statusText": statusText},
		cause:   cause,
	}
}

// MiningTimedOut reports an exhausted poll budget, keeping the last observed status and queue identifier for
// diagnosis.
func MiningTimedOut(lastStatus, queueID string) *Error {
	return &Error{
		Status:  http.StatusGatewayTimeout,
		Code:    CodeMiningTimedOut,
		Message: "Timed out waiting for the transaction to be mined",
		Details: map[string]interface{}{"lastStatus": lastStatus, "queueId": queueID},
	}
}

// MiningErrored reports a transaction the engine declared failed. Must not be retried automatically.
func MiningErrored(reason, queueID string) *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		Code:    CodeMiningErrored,
		Message: "The relayed transaction failed",
		Details: map[string]interface{}{"reason": reason, "queueId": queueID},
	}
}

// QuoteService reports a non-2xx response from the swap-quote service, preserving the status and any parsed error
// body so callers can show an actionable message.
func QuoteService(status int, statusText string, body interface{}) *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		Code:    CodeQuoteService,
		Message: "Failed to get trading quote from exchange",
		Details: map[string]interface{}{"status": status, "statusText": statusText, "details": body},
	}
}

// InsufficientLiquidity reports a well-formed quote request that is currently unsatisfiable. Client-class, not a
// server failure.
func InsufficientLiquidity(details map[string]interface{}) *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		Code:    CodeInsufficientLiquidity,
		Message: "Insufficient liquidity for trade",
		Details: details,
	}
}

// SigningFailed reports a failure of the engine's typed-data signer, distinguishable from relay and mining errors.
func SigningFailed(cause error) *Error {
	return &Error{
		Status:  http.StatusBadGateway,
		Code:    CodeSigningFailed,
		Message: "The backend wallet failed to sign the payload",
		cause:   cause,
	}
}

// Internal wraps an unexpected failure. The cause is logged server-side only.
func Internal(cause error) *Error {
	return &Error{
		Status:  http.StatusInternalServerError,
		Code:    CodeServer,
		Message: "Internal server error occurred",
		cause:   cause,
	}
}
