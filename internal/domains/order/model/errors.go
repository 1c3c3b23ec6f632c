package model

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrInvalidTransition   = errors.New("illegal order status transition")
	ErrConcurrentUpdate    = errors.New("order was modified concurrently")
	ErrInvalidCancelReason = errors.New("invalid cancel reason")
	ErrNotCancellable      = errors.New("order cannot be cancelled in its current state")
	ErrNotOwner            = errors.New("order does not belong to this user")
	ErrAlreadyShipped      = errors.New("order already shipped")
)

const (
	ErrCodeOrderNotFound     = "ORDER_001"
	ErrCodeInvalidTransition = "ORDER_002"
	ErrCodeConcurrentUpdate  = "ORDER_003"
	ErrCodeNotCancellable    = "ORDER_004"
	ErrCodeNotOwner          = "ORDER_005"
)

type OrderError struct {
	Code    string
	Message string
	Err     error
}

func (e *OrderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *OrderError) Unwrap() error {
	return e.Err
}

func NewOrderError(code, message string, err error) *OrderError {
	return &OrderError{Code: code, Message: message, Err: err}
}

func NewInvalidTransitionError(from, to OrderStatus) *OrderError {
	return NewOrderError(
		ErrCodeInvalidTransition,
		fmt.Sprintf("Cannot transition order from %s to %s", from, to),
		ErrInvalidTransition,
	)
}

func NewConcurrentUpdateError(orderID string) *OrderError {
	return NewOrderError(
		ErrCodeConcurrentUpdate,
		fmt.Sprintf("Order %s was modified concurrently, please retry", orderID),
		ErrConcurrentUpdate,
	)
}
