package model

import (
	"errors"
	"fmt"
)

var (
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrRefundNotFound      = errors.New("refund not found")
	ErrInvalidSignature    = errors.New("gateway signature mismatch")
	ErrAlreadyCaptured     = errors.New("payment already captured")
	ErrNotRefundable       = errors.New("payment is not refundable")
	ErrRefundExceeds       = errors.New("refund exceeds refundable amount")
	ErrRefundNotActionable = errors.New("refund is not in an actionable state")
	ErrGatewayUnavailable  = errors.New("payment gateway unavailable")
	ErrTooManyAttempts     = errors.New("payment attempt limit reached")
)

const (
	ErrCodePaymentNotFound  = "PAYMENT_001"
	ErrCodeInvalidSignature = "PAYMENT_002"
	ErrCodeNotRefundable    = "PAYMENT_003"
	ErrCodeRefundExceeds    = "PAYMENT_004"
	ErrCodeRefundNotFound   = "PAYMENT_005"
	ErrCodeRefundState      = "PAYMENT_006"
	ErrCodeGatewayDown      = "PAYMENT_007"
	ErrCodeTooManyAttempts  = "PAYMENT_008"
)

type PaymentError struct {
	Code    string
	Message string
	Err     error
}

func (e *PaymentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

func NewPaymentError(code, message string, err error) *PaymentError {
	return &PaymentError{Code: code, Message: message, Err: err}
}
