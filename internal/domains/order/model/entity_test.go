package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusPending, OrderStatusConfirmed, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusShipped, false},
		{OrderStatusConfirmed, OrderStatusProcessing, true},
		{OrderStatusConfirmed, OrderStatusCancelled, true},
		{OrderStatusProcessing, OrderStatusShipped, true},
		{OrderStatusProcessing, OrderStatusCancelled, false},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusShipped, OrderStatusOutForDelivery, true},
		{OrderStatusOutForDelivery, OrderStatusDelivered, true},
		{OrderStatusDelivered, OrderStatusReturned, true},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusReturned, OrderStatusRefunded, true},
		{OrderStatusCancelled, OrderStatusConfirmed, false},
		{OrderStatusRefunded, OrderStatusReturned, false},
		{OrderStatusDelivered, OrderStatusDelivered, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestCanAdminCancel(t *testing.T) {
	assert.True(t, CanAdminCancel(OrderStatusProcessing))
	assert.True(t, CanAdminCancel(OrderStatusShipped))
	assert.False(t, CanAdminCancel(OrderStatusDelivered))
	assert.False(t, CanAdminCancel(OrderStatusCancelled))
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(OrderStatusCancelled))
	assert.True(t, IsTerminal(OrderStatusRefunded))
	assert.False(t, IsTerminal(OrderStatusDelivered))
	assert.False(t, IsTerminal(OrderStatusPending))
}

func TestPaymentAdvancesIsMonotonic(t *testing.T) {
	assert.True(t, PaymentAdvances(PaymentStatusPending, PaymentStatusCaptured))
	assert.True(t, PaymentAdvances(PaymentStatusProcessing, PaymentStatusFailed))
	assert.True(t, PaymentAdvances(PaymentStatusCaptured, PaymentStatusRefunded))

	// Replayed or out-of-order webhook events never regress the state
	assert.False(t, PaymentAdvances(PaymentStatusCaptured, PaymentStatusProcessing))
	assert.False(t, PaymentAdvances(PaymentStatusCaptured, PaymentStatusCaptured))
	assert.False(t, PaymentAdvances(PaymentStatusRefunded, PaymentStatusCaptured))
	assert.False(t, PaymentAdvances(PaymentStatusFailed, PaymentStatusCancelled))
}

func TestPaymentStatusIsPaid(t *testing.T) {
	assert.True(t, PaymentStatusCaptured.IsPaid())
	assert.True(t, PaymentStatusAuthorized.IsPaid())
	assert.False(t, PaymentStatusPending.IsPaid())
	assert.False(t, PaymentStatusFailed.IsPaid())
}

func TestDeriveFulfillment(t *testing.T) {
	none := []OrderItem{
		{Quantity: 2, QuantityFulfilled: 0},
		{Quantity: 1, QuantityFulfilled: 0},
	}
	assert.Equal(t, FulfillmentUnfulfilled, DeriveFulfillment(none))

	partial := []OrderItem{
		{Quantity: 2, QuantityFulfilled: 2},
		{Quantity: 1, QuantityFulfilled: 0},
	}
	assert.Equal(t, FulfillmentPartiallyFulfilled, DeriveFulfillment(partial))

	full := []OrderItem{
		{Quantity: 2, QuantityFulfilled: 2},
		{Quantity: 1, QuantityFulfilled: 1},
	}
	assert.Equal(t, FulfillmentFulfilled, DeriveFulfillment(full))
}

func TestRemainingRefundable(t *testing.T) {
	item := OrderItem{Quantity: 3, QuantityRefunded: 1}
	assert.Equal(t, 2, item.RemainingRefundable())

	item.QuantityRefunded = 3
	assert.Equal(t, 0, item.RemainingRefundable())
}

func TestValidCancelReason(t *testing.T) {
	assert.True(t, ValidCancelReason(CancelCustomerRequest))
	assert.False(t, ValidCancelReason(CancelReason("sunspots")))
}
