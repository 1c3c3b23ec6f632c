package model

import (
	"errors"
	"fmt"
)

var (
	ErrReturnNotFound      = errors.New("return request not found")
	ErrWindowClosed        = errors.New("return window has closed")
	ErrOrderNotReturnable  = errors.New("order is not eligible for return")
	ErrInvalidTransition   = errors.New("illegal return status transition")
	ErrQuantityUnavailable = errors.New("requested quantity exceeds returnable units")
	ErrNotCancellable      = errors.New("return can no longer be cancelled")
	ErrInvalidVerdict      = errors.New("invalid inspection verdict")
)

const (
	ErrCodeReturnNotFound      = "RETURN_001"
	ErrCodeWindowClosed        = "RETURN_002"
	ErrCodeOrderNotReturnable  = "RETURN_003"
	ErrCodeInvalidTransition   = "RETURN_004"
	ErrCodeQuantityUnavailable = "RETURN_005"
	ErrCodeNotCancellable      = "RETURN_006"
	ErrCodeInvalidVerdict      = "RETURN_007"
)

type ReturnError struct {
	Code    string
	Message string
	Err     error
}

func (e *ReturnError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ReturnError) Unwrap() error {
	return e.Err
}

func NewReturnError(code, message string, err error) *ReturnError {
	return &ReturnError{Code: code, Message: message, Err: err}
}

func NewInvalidTransitionError(from, to ReturnStatus) *ReturnError {
	return NewReturnError(
		ErrCodeInvalidTransition,
		fmt.Sprintf("Cannot transition return from %s to %s", from, to),
		ErrInvalidTransition,
	)
}
