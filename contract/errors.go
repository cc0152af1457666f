package contract

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies why a ledger operation was refused.
type ErrorKind string

const (
	KindValidation        ErrorKind = "VALIDATION"
	KindNotFound          ErrorKind = "NOT_FOUND"
	KindConflict          ErrorKind = "CONFLICT"
	KindState             ErrorKind = "STATE"
	KindAuthorization     ErrorKind = "AUTHORIZATION"
	KindInvariant         ErrorKind = "INVARIANT"
	KindInsufficientFunds ErrorKind = "INSUFFICIENT_FUNDS"
	KindPayment           ErrorKind = "PAYMENT"
)

// LedgerError is returned for every refused operation. Any error aborts the
// whole transaction, so a LedgerError always means nothing was written.
type LedgerError struct {
	Kind   ErrorKind
	Reason string
}

func (e *LedgerError) Error() string {
	if e.Reason == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// Is matches sentinels by kind, so errors.Is(err, ErrNotFound) holds for any
// not-found LedgerError regardless of its reason.
func (e *LedgerError) Is(target error) bool {
	t, ok := target.(*LedgerError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Reason == "" || t.Reason == e.Reason)
}

var (
	ErrValidation        = &LedgerError{Kind: KindValidation}
	ErrNotFound          = &LedgerError{Kind: KindNotFound}
	ErrConflict          = &LedgerError{Kind: KindConflict}
	ErrState             = &LedgerError{Kind: KindState}
	ErrAuthorization     = &LedgerError{Kind: KindAuthorization}
	ErrInvariant         = &LedgerError{Kind: KindInvariant}
	ErrInsufficientFunds = &LedgerError{Kind: KindInsufficientFunds}
	ErrPayment           = &LedgerError{Kind: KindPayment}
)

func newLedgerError(kind ErrorKind, format string, args ...interface{}) error {
	return &LedgerError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

func validationError(format string, args ...interface{}) error {
	return newLedgerError(KindValidation, format, args...)
}

func notFoundError(format string, args ...interface{}) error {
	return newLedgerError(KindNotFound, format, args...)
}

func conflictError(format string, args ...interface{}) error {
	return newLedgerError(KindConflict, format, args...)
}

func stateError(format string, args ...interface{}) error {
	return newLedgerError(KindState, format, args...)
}

func authorizationError(format string, args ...interface{}) error {
	return newLedgerError(KindAuthorization, format, args...)
}

func invariantError(format string, args ...interface{}) error {
	return newLedgerError(KindInvariant, format, args...)
}

func insufficientFundsError(format string, args ...interface{}) error {
	return newLedgerError(KindInsufficientFunds, format, args...)
}

func paymentError(format string, args ...interface{}) error {
	return newLedgerError(KindPayment, format, args...)
}

// KindOf returns the kind of the first LedgerError in err's chain, or "" for
// infrastructure failures.
func KindOf(err error) ErrorKind {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Kind
	}
	return ""
}
