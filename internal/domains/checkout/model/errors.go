package model

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrSessionNotFound  = errors.New("checkout session not found")
	ErrCheckoutExpired  = errors.New("checkout session has expired")
	ErrInvalidState     = errors.New("checkout session is not in a valid state for this action")
	ErrCartInvalid      = errors.New("cart contains unavailable items")
	ErrCartEmpty        = errors.New("cart is empty")
	ErrStockUnavailable = errors.New("requested quantity is not in stock")
	ErrNotServiceable   = errors.New("shipping address is not serviceable")
	ErrNotOwner         = errors.New("checkout session does not belong to this user")
)

const (
	ErrCodeSessionNotFound  = "CHECKOUT_001"
	ErrCodeCheckoutExpired  = "CHECKOUT_002"
	ErrCodeInvalidState     = "CHECKOUT_003"
	ErrCodeCartInvalid      = "CHECKOUT_004"
	ErrCodeStockUnavailable = "CHECKOUT_005"
	ErrCodeNotServiceable   = "CHECKOUT_006"
	ErrCodeTotalsDrifted    = "CHECKOUT_007"
)

// TotalsDriftedError is returned by complete() when the live cart
// totals no longer match the session snapshot beyond tolerance.
type TotalsDriftedError struct {
	SnapshotTotal decimal.Decimal
	CurrentTotal  decimal.Decimal
}

func (e *TotalsDriftedError) Error() string {
	return fmt.Sprintf("totals drifted: snapshot %s, current %s",
		e.SnapshotTotal.StringFixed(2), e.CurrentTotal.StringFixed(2))
}

// Delta is the signed difference current - snapshot.
func (e *TotalsDriftedError) Delta() decimal.Decimal {
	return e.CurrentTotal.Sub(e.SnapshotTotal)
}
