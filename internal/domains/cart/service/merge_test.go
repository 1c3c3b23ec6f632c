package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow-backend/internal/domains/cart/model"
)

func money(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func makeCart(userID *uuid.UUID) *model.Cart {
	return &model.Cart{
		ID:        uuid.New(),
		UserID:    userID,
		OwnerType: model.OwnerTypeUser,
		Status:    model.CartStatusActive,
	}
}

func makeItem(cartID uuid.UUID, qty int, price string, capturedAt time.Time) model.CartItem {
	item := model.CartItem{
		ID:        uuid.New(),
		CartID:    cartID,
		ProductID: uuid.New(),
		VariantID: uuid.New(),
		Quantity:  qty,
		UnitPrice: money(price),
		PriceSnapshot: model.PriceSnapshot{
			UnitPrice:  money(price),
			CapturedAt: capturedAt,
		},
	}
	item.LineTotal = item.ComputeLineTotal()
	return item
}

func TestBuildMergePlanCoalescesMatchingVariant(t *testing.T) {
	userID := uuid.New()
	guestCart := makeCart(nil)
	userCart := makeCart(&userID)

	older := time.Now().Add(-time.Hour)
	newer := time.Now()

	userItem := makeItem(userCart.ID, 1, "300.00", older)
	guestItem := makeItem(guestCart.ID, 2, "300.00", newer)
	guestItem.VariantID = userItem.VariantID
	guestItem.ProductID = userItem.ProductID

	plan := buildMergePlan(guestCart, userCart,
		[]model.CartItem{guestItem}, []model.CartItem{userItem})

	require.Len(t, plan.UpdateLines, 1)
	assert.Empty(t, plan.InsertLines)

	merged := plan.UpdateLines[0]
	assert.Equal(t, 3, merged.Quantity)
	assert.True(t, merged.LineTotal.Equal(money("900.00")))
	assert.Equal(t, userItem.ID, merged.ID, "the surviving line is the user's")
}

func TestBuildMergePlanNewerSnapshotWins(t *testing.T) {
	userID := uuid.New()
	guestCart := makeCart(nil)
	userCart := makeCart(&userID)

	userItem := makeItem(userCart.ID, 1, "300.00", time.Now())
	guestItem := makeItem(guestCart.ID, 1, "250.00", time.Now().Add(time.Minute))
	guestItem.VariantID = userItem.VariantID

	plan := buildMergePlan(guestCart, userCart,
		[]model.CartItem{guestItem}, []model.CartItem{userItem})

	require.Len(t, plan.UpdateLines, 1)
	assert.True(t, plan.UpdateLines[0].UnitPrice.Equal(money("250.00")))
	assert.True(t, plan.UpdateLines[0].LineTotal.Equal(money("500.00")))
}

func TestBuildMergePlanMovesUnmatchedLines(t *testing.T) {
	userID := uuid.New()
	guestCart := makeCart(nil)
	userCart := makeCart(&userID)

	userItem := makeItem(userCart.ID, 1, "100.00", time.Now())
	guestItem := makeItem(guestCart.ID, 2, "50.00", time.Now())

	plan := buildMergePlan(guestCart, userCart,
		[]model.CartItem{guestItem}, []model.CartItem{userItem})

	assert.Empty(t, plan.UpdateLines)
	require.Len(t, plan.InsertLines, 1)
	assert.Equal(t, userCart.ID, plan.InsertLines[0].CartID)

	// Totals cover the surviving user line plus the moved guest line
	assert.True(t, userCart.Subtotal.Equal(money("200.00")))
	assert.Equal(t, 3, userCart.ItemCount)
}

func TestBuildMergePlanCapsQuantityPerLine(t *testing.T) {
	userID := uuid.New()
	guestCart := makeCart(nil)
	userCart := makeCart(&userID)

	userItem := makeItem(userCart.ID, 15, "10.00", time.Now())
	guestItem := makeItem(guestCart.ID, 12, "10.00", time.Now())
	guestItem.VariantID = userItem.VariantID

	plan := buildMergePlan(guestCart, userCart,
		[]model.CartItem{guestItem}, []model.CartItem{userItem})

	require.Len(t, plan.UpdateLines, 1)
	assert.Equal(t, model.MaxQuantityPerLine, plan.UpdateLines[0].Quantity)
}

func TestComputeTotals(t *testing.T) {
	userID := uuid.New()
	cart := makeCart(&userID)
	cart.ShippingTotal = money("40.00")
	cart.TaxTotal = money("90.00")
	cart.AppliedCoupons = []model.AppliedCoupon{
		{Code: "SAVE100", DiscountAmount: money("100.00")},
	}

	items := []model.CartItem{
		makeItem(cart.ID, 2, "250.00", time.Now()),
		makeItem(cart.ID, 1, "500.00", time.Now()),
	}

	ComputeTotals(cart, items)

	assert.True(t, cart.Subtotal.Equal(money("1000.00")))
	assert.True(t, cart.DiscountTotal.Equal(money("100.00")))
	assert.True(t, cart.GrandTotal.Equal(money("1030.00")))
	assert.Equal(t, 3, cart.ItemCount)
}

func TestComputeTotalsClampsGrandTotalAtZero(t *testing.T) {
	userID := uuid.New()
	cart := makeCart(&userID)
	cart.AppliedCoupons = []model.AppliedCoupon{
		{Code: "BIG", DiscountAmount: money("500.00")},
	}

	items := []model.CartItem{makeItem(cart.ID, 1, "120.00", time.Now())}

	ComputeTotals(cart, items)

	assert.True(t, cart.GrandTotal.IsZero())
}
