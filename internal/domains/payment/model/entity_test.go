package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func money(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func TestAdvances(t *testing.T) {
	assert.True(t, Advances(StatusCreated, StatusPending))
	assert.True(t, Advances(StatusPending, StatusCaptured))
	assert.True(t, Advances(StatusProcessing, StatusFailed))

	// Stale events never move a payment backwards or sideways
	assert.False(t, Advances(StatusCaptured, StatusProcessing))
	assert.False(t, Advances(StatusCaptured, StatusFailed))
	assert.False(t, Advances(StatusCaptured, StatusCaptured))
	assert.False(t, Advances(StatusFailed, StatusCancelled))
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, StatusCaptured.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusAuthorized.IsTerminal())
}

func TestRefundable(t *testing.T) {
	p := Payment{
		Status:         StatusCaptured,
		Amount:         money("3000.00"),
		RefundedAmount: money("500.00"),
	}
	assert.True(t, p.Refundable().Equal(money("2500.00")))

	p.RefundedAmount = money("3000.00")
	assert.True(t, p.Refundable().IsZero())
}

func TestRefundableZeroBeforeCapture(t *testing.T) {
	p := Payment{
		Status: StatusPending,
		Amount: money("3000.00"),
	}
	assert.True(t, p.Refundable().IsZero())

	p.Status = StatusFailed
	assert.True(t, p.Refundable().IsZero())

	p.Status = StatusAuthorized
	assert.True(t, p.Refundable().Equal(money("3000.00")))
}

func TestValidRefundMethod(t *testing.T) {
	assert.True(t, ValidRefundMethod(RefundViaGateway))
	assert.True(t, ValidRefundMethod(RefundViaBank))
	assert.True(t, ValidRefundMethod(RefundViaStoreCredit))
	assert.False(t, ValidRefundMethod(RefundMethod("cash")))
}
