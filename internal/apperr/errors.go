// Package apperr defines the two error kinds the order engine surfaces to
// callers: client errors that are safe to show to end users, and server
// errors for missing entities or store failures.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindClient Kind = "client"
	KindServer Kind = "server"
)

type Code string

const (
	CodeInvalidInput         Code = "invalid_input"
	CodeEmptyCart            Code = "empty_cart"
	CodeInvalidAddress       Code = "invalid_address"
	CodeInvalidPayment       Code = "invalid_payment_method"
	CodeInsufficientStock    Code = "insufficient_stock"
	CodeVoucherNotFound      Code = "voucher_not_found"
	CodeVoucherInactive      Code = "voucher_inactive"
	CodeVoucherNotStarted    Code = "voucher_not_started"
	CodeVoucherExpired       Code = "voucher_expired"
	CodeVoucherExhausted     Code = "voucher_exhausted"
	CodeMinOrderNotMet       Code = "min_order_not_met"
	CodeInvalidTransition    Code = "invalid_transition"
	CodeInvalidStatus        Code = "invalid_status"
	CodeCancelReasonRequired Code = "cancel_reason_required"
	CodeCancelNotAllowed     Code = "cancel_not_allowed"
	CodeDuplicateCode        Code = "duplicate_code"
	CodeConflict             Code = "conflict"
	CodeNotFound             Code = "not_found"
	CodeUnauthenticated      Code = "unauthenticated"
	CodeForbidden            Code = "forbidden"
	CodeStoreUnavailable     Code = "store_unavailable"
	CodeInternal             Code = "internal"
)

// Error carries a user-facing message and the HTTP status it maps to.
type Error struct {
	Kind      Kind
	Code      Code
	Message   string
	Status    int
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches another *Error by code so sentinel comparisons work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || t == nil || e == nil {
		return false
	}
	return e.Code == t.Code
}

func Client(code Code, message string, status int) *Error {
	if status == 0 {
		status = http.StatusBadRequest
	}
	return &Error{Kind: KindClient, Code: code, Message: message, Status: status}
}

func Server(code Code, message string, status int, err error) *Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return &Error{Kind: KindServer, Code: code, Message: message, Status: status, Err: err}
}

func NotFound(message string) *Error {
	return Server(CodeNotFound, message, http.StatusNotFound, nil)
}

// Unavailable reports a store failure or timeout; the caller may retry.
func Unavailable(err error) *Error {
	e := Server(CodeStoreUnavailable, "the store is temporarily unavailable, please retry", http.StatusServiceUnavailable, err)
	e.Retryable = true
	return e
}

func Internal(err error) *Error {
	return Server(CodeInternal, "internal error", http.StatusInternalServerError, err)
}

func InsufficientStock(variantID string) *Error {
	e := Client(CodeInsufficientStock, "insufficient stock for the requested quantity", http.StatusBadRequest)
	if variantID != "" {
		e.Message = fmt.Sprintf("insufficient stock for variant %s", variantID)
	}
	return e
}

func InvalidTransition(from, to string) *Error {
	return Client(CodeInvalidTransition, fmt.Sprintf("cannot move order from %s to %s", from, to), http.StatusBadRequest)
}

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e, true
	}
	return nil, false
}

func IsClient(err error) bool {
	e, ok := As(err)
	return ok && e.Kind == KindClient
}

// HasCode reports whether err is an *Error with the given code.
func HasCode(err error, code Code) bool {
	e, ok := As(err)
	return ok && e.Code == code
}
