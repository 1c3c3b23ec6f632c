package service

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ordermodel "orderflow-backend/internal/domains/order/model"
	"orderflow-backend/internal/domains/payment/model"
)

func money(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func TestBuildRefundLinesFullLine(t *testing.T) {
	itemID := uuid.New()
	items := []ordermodel.OrderItem{{
		ID:        itemID,
		Name:      "Wireless Mouse",
		Quantity:  2,
		UnitPrice: money("750.00"),
	}}

	lines, total, err := buildRefundLines(items, []model.RefundLineRequest{
		{OrderItemID: itemID, Quantity: 2},
	})
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.True(t, lines[0].Amount.Equal(money("1500.00")))
	assert.True(t, total.Equal(money("1500.00")))
}

func TestBuildRefundLinesProportionalDiscount(t *testing.T) {
	// 3 units at 300 with a 90 line discount: each unit carries 30 of
	// the discount, refunding 1 unit returns 270.
	itemID := uuid.New()
	items := []ordermodel.OrderItem{{
		ID:           itemID,
		Name:         "Notebook",
		Quantity:     3,
		UnitPrice:    money("300.00"),
		LineDiscount: money("90.00"),
	}}

	lines, total, err := buildRefundLines(items, []model.RefundLineRequest{
		{OrderItemID: itemID, Quantity: 1},
	})
	require.NoError(t, err)
	assert.True(t, lines[0].Amount.Equal(money("270.00")))
	assert.True(t, total.Equal(money("270.00")))
}

func TestBuildRefundLinesRejectsOverQuantity(t *testing.T) {
	itemID := uuid.New()
	items := []ordermodel.OrderItem{{
		ID:               itemID,
		Name:             "Notebook",
		Quantity:         3,
		QuantityRefunded: 2,
		UnitPrice:        money("300.00"),
	}}

	_, _, err := buildRefundLines(items, []model.RefundLineRequest{
		{OrderItemID: itemID, Quantity: 2},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrRefundExceeds))
}

func TestBuildRefundLinesRejectsForeignItem(t *testing.T) {
	items := []ordermodel.OrderItem{{
		ID:        uuid.New(),
		Quantity:  1,
		UnitPrice: money("100.00"),
	}}

	_, _, err := buildRefundLines(items, []model.RefundLineRequest{
		{OrderItemID: uuid.New(), Quantity: 1},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrNotRefundable))
}

func TestBuildRefundLinesMultipleLines(t *testing.T) {
	first := uuid.New()
	second := uuid.New()
	items := []ordermodel.OrderItem{
		{ID: first, Quantity: 2, UnitPrice: money("499.50")},
		{ID: second, Quantity: 1, UnitPrice: money("1000.00"), LineDiscount: money("100.00")},
	}

	lines, total, err := buildRefundLines(items, []model.RefundLineRequest{
		{OrderItemID: first, Quantity: 1},
		{OrderItemID: second, Quantity: 1},
	})
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.True(t, lines[0].Amount.Equal(money("499.50")))
	assert.True(t, lines[1].Amount.Equal(money("900.00")))
	assert.True(t, total.Equal(money("1399.50")))
}
