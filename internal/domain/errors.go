package domain

import (
	"errors"
	"fmt"
)

// RejectReason classifies an order rejection.
type RejectReason string

const (
	RejectInsufficientFunds  RejectReason = "insufficient_funds"
	RejectInsufficientShares RejectReason = "insufficient_shares"
	RejectNoPosition         RejectReason = "no_position"
)

// Rejection is a business rejection: an expected simulated-market outcome
// (not enough cash, not enough shares, no holding). Strategies branch on it
// via AsRejection; it is never a defect.
type Rejection struct {
	Reason RejectReason
	Symbol string
	Detail string
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return fmt.Sprintf("%s rejected: %s", r.Symbol, r.Reason)
	}
	return fmt.Sprintf("%s rejected: %s (%s)", r.Symbol, r.Reason, r.Detail)
}

// Reject builds a Rejection error.
func Reject(reason RejectReason, symbol, format string, args ...any) error {
	return &Rejection{Reason: reason, Symbol: symbol, Detail: fmt.Sprintf(format, args...)}
}

// AsRejection unwraps err as a Rejection if it is one.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// ValidationError indicates a caller bug: an empty symbol, a non-positive
// price or size, an out-of-range ratio, or a malformed input series. Unlike
// rejections these must never be silently absorbed.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Msg
}

// Validationf builds a ValidationError.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// ErrCorrupt marks a fatal accounting invariant violation (cash driven
// negative, short position). The run must abort: every later equity sample
// would be meaningless.
var ErrCorrupt = errors.New("ledger invariant violated")
