package finance

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeAmountExceedsNominalCost ErrorCode = "AmountExceedsNominalCost"
	CodeNegativeQuantity         ErrorCode = "NegativeQuantity"
	CodeInvalidCost              ErrorCode = "InvalidCost"
	CodeNoLineItems              ErrorCode = "NoLineItems"
)

var (
	ErrAmountExceedsNominalCost = errors.New("authorized amount exceeds nominal cost")
	ErrNegativeQuantity         = errors.New("quantity must not be negative")
	ErrInvalidCost              = errors.New("amount must not be negative")
	ErrNoLineItems              = errors.New("no line items to distribute amount over")
)

// ValidationError reports why a calculation was rejected. Index is the
// offending item position, or -1 when the error is not tied to one item.
type ValidationError struct {
	Code  ErrorCode
	Index int
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s: item %d: %v", e.Code, e.Index, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ErrorCode exposes Code to transports that report it to clients.
func (e *ValidationError) ErrorCode() string {
	return string(e.Code)
}

func newValidationError(code ErrorCode, index int, err error) *ValidationError {
	return &ValidationError{Code: code, Index: index, Err: err}
}

// IsValidationError reports whether err, or anything it wraps, is a
// *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Warning flags a degenerate but accepted input.
type Warning string

// WarningZeroNominalCost means every line costs nothing, so the target amount
// was spread evenly instead of proportionally. It usually points at
// templates configured with a zero price.
const WarningZeroNominalCost Warning = "ZeroNominalCost"
