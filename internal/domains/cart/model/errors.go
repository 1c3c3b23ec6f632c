package model

import (
	"errors"
	"fmt"
)

// =====================================================
// PREDEFINED ERRORS
// =====================================================

var (
	ErrCartNotFound       = errors.New("cart not found")
	ErrCartNotActive      = errors.New("cart is not active")
	ErrItemNotFound       = errors.New("cart item not found")
	ErrProductNotFound    = errors.New("product not found")
	ErrProductUnavailable = errors.New("product is not available for purchase")
	ErrQuantityLimit      = errors.New("quantity exceeds per-line limit")
	ErrCartFull           = errors.New("cart item limit reached")
	ErrCouponNotFound     = errors.New("coupon not found")
	ErrCouponNotEligible  = errors.New("coupon conditions not met")
	ErrCouponAlreadyUsed  = errors.New("coupon already applied to this cart")
	ErrMergeInProgress    = errors.New("a cart merge is already in progress for this user")
	ErrOwnerRequired      = errors.New("either user id or guest token is required")
)

// =====================================================
// ERROR CODES
// =====================================================

const (
	ErrCodeCartNotFound       = "CART_001"
	ErrCodeCartNotActive      = "CART_002"
	ErrCodeItemNotFound       = "CART_003"
	ErrCodeProductUnavailable = "CART_004"
	ErrCodeQuantityLimit      = "CART_005"
	ErrCodeCartFull           = "CART_006"
	ErrCodeCouponNotFound     = "CART_007"
	ErrCodeCouponNotEligible  = "CART_008"
	ErrCodeCouponAlreadyUsed  = "CART_009"
	ErrCodeMergeInProgress    = "CART_010"
)

// =====================================================
// CUSTOM CART ERROR
// =====================================================

type CartError struct {
	Code    string
	Message string
	Err     error
}

func (e *CartError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CartError) Unwrap() error {
	return e.Err
}

func NewCartError(code, message string, err error) *CartError {
	return &CartError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// =====================================================
// ERROR CONSTRUCTORS
// =====================================================

func NewCartNotFoundError() *CartError {
	return NewCartError(ErrCodeCartNotFound, "Cart not found", ErrCartNotFound)
}

func NewProductUnavailableError(productID string) *CartError {
	return NewCartError(
		ErrCodeProductUnavailable,
		fmt.Sprintf("Product %s is not available for purchase", productID),
		ErrProductUnavailable,
	)
}

func NewQuantityLimitError(limit int) *CartError {
	return NewCartError(
		ErrCodeQuantityLimit,
		fmt.Sprintf("Quantity exceeds the limit of %d per item", limit),
		ErrQuantityLimit,
	)
}

func NewCartFullError(limit int) *CartError {
	return NewCartError(
		ErrCodeCartFull,
		fmt.Sprintf("Cart cannot hold more than %d items", limit),
		ErrCartFull,
	)
}

func NewCouponNotEligibleError(reason string) *CartError {
	return NewCartError(ErrCodeCouponNotEligible, reason, ErrCouponNotEligible)
}
