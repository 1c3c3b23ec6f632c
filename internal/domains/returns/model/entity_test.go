package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to ReturnStatus
		want     bool
	}{
		{StatusRequested, StatusApproved, true},
		{StatusRequested, StatusRejected, true},
		{StatusRequested, StatusCancelled, true},
		{StatusRequested, StatusReceived, false},
		{StatusApproved, StatusPickupScheduled, true},
		{StatusApproved, StatusCancelled, true},
		{StatusPickupScheduled, StatusPickedUp, true},
		{StatusPickedUp, StatusInTransit, true},
		{StatusPickedUp, StatusReceived, true},
		{StatusInTransit, StatusReceived, true},
		{StatusReceived, StatusInspected, true},
		{StatusInspected, StatusRefundInitiated, true},
		{StatusInspected, StatusCompleted, true},
		{StatusRefundInitiated, StatusCompleted, true},
		{StatusCompleted, StatusRequested, false},
		{StatusRejected, StatusApproved, false},
		{StatusCancelled, StatusApproved, false},
		{StatusReceived, StatusRefundInitiated, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestCustomerCancellable(t *testing.T) {
	assert.True(t, CustomerCancellable(StatusRequested))
	assert.True(t, CustomerCancellable(StatusApproved))
	assert.True(t, CustomerCancellable(StatusPickupScheduled))

	// Once the carrier has the goods the customer can no longer back out
	assert.False(t, CustomerCancellable(StatusPickedUp))
	assert.False(t, CustomerCancellable(StatusInTransit))
	assert.False(t, CustomerCancellable(StatusCompleted))
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(StatusCompleted))
	assert.True(t, IsTerminal(StatusRejected))
	assert.True(t, IsTerminal(StatusCancelled))
	assert.False(t, IsTerminal(StatusRequested))
	assert.False(t, IsTerminal(StatusRefundInitiated))
}

func TestValidVerdict(t *testing.T) {
	assert.True(t, ValidVerdict(VerdictAccepted))
	assert.True(t, ValidVerdict(VerdictRejected))
	assert.True(t, ValidVerdict(VerdictPartial))
	assert.False(t, ValidVerdict(InspectionVerdict("maybe")))
}
