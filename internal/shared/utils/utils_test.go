package utils

import (
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalTask(t *testing.T) {
	type payload struct {
		OrderID string `json:"orderId"`
	}

	task := asynq.NewTask("order:confirmed", []byte(`{"orderId":"abc"}`))
	var p payload
	require.NoError(t, UnmarshalTask(task, &p))
	assert.Equal(t, "abc", p.OrderID)
}

func TestUnmarshalTaskEmptyPayload(t *testing.T) {
	task := asynq.NewTask("cart:cleanup_expired", nil)
	var p struct{}
	assert.NoError(t, UnmarshalTask(task, &p))
}

func TestParseStringToUUID(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, id, ParseStringToUUID(id.String()))
	assert.Equal(t, uuid.Nil, ParseStringToUUID("not-a-uuid"))
	assert.Equal(t, uuid.Nil, ParseStringToUUID(""))
}

func TestRoundMoney(t *testing.T) {
	assert.Equal(t, "10.01", RoundMoney(decimal.RequireFromString("10.005")).StringFixed(2))
	assert.Equal(t, "10.00", RoundMoney(decimal.RequireFromString("10.004")).StringFixed(2))
	assert.Equal(t, "0.00", RoundMoney(decimal.Zero).StringFixed(2))
}

func TestMaskUPI(t *testing.T) {
	assert.Equal(t, "ra***h@okicici", MaskUPI("ramesh@okicici"))
	assert.Equal(t, "***@upi", MaskUPI("abc@upi"))
	assert.Equal(t, "***", MaskUPI("no-at-sign"))
	assert.Equal(t, "***", MaskUPI("@upi"))
}

func TestCardLast4(t *testing.T) {
	assert.Equal(t, "1111", CardLast4("4111 1111 1111 1111"))
	assert.Equal(t, "0004", CardLast4("4000-0000-0000-0004"))
	assert.Equal(t, "", CardLast4("123"))
}
