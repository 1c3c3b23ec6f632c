package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func money(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func TestComputeLineTotal(t *testing.T) {
	item := CartItem{
		Quantity:     3,
		UnitPrice:    money("300.00"),
		LineDiscount: money("0"),
	}
	assert.True(t, item.ComputeLineTotal().Equal(money("900.00")))

	item.LineDiscount = money("150.50")
	assert.True(t, item.ComputeLineTotal().Equal(money("749.50")))
}

func TestComputeLineTotalClampsAtZero(t *testing.T) {
	item := CartItem{
		Quantity:     1,
		UnitPrice:    money("100.00"),
		LineDiscount: money("250.00"),
	}
	assert.True(t, item.ComputeLineTotal().IsZero())
}

func TestVariantKeyDistinguishesBundles(t *testing.T) {
	variantID := uuid.New()
	bundleID := uuid.New()

	plain := CartItem{VariantID: variantID}
	bundled := CartItem{VariantID: variantID, BundleID: &bundleID}
	same := CartItem{VariantID: variantID}

	assert.NotEqual(t, plain.VariantKey(), bundled.VariantKey())
	assert.Equal(t, plain.VariantKey(), same.VariantKey())
}

func TestCouponDiscountForPercent(t *testing.T) {
	coupon := Coupon{
		Type:  CouponTypePercent,
		Value: money("10"),
	}
	assert.True(t, coupon.DiscountFor(money("2500.00")).Equal(money("250.00")))
}

func TestCouponDiscountForPercentCapped(t *testing.T) {
	cap := money("100.00")
	coupon := Coupon{
		Type:        CouponTypePercent,
		Value:       money("10"),
		MaxDiscount: &cap,
	}
	assert.True(t, coupon.DiscountFor(money("2500.00")).Equal(money("100.00")))
}

func TestCouponDiscountForFixed(t *testing.T) {
	coupon := Coupon{
		Type:  CouponTypeFixed,
		Value: money("200.00"),
	}
	assert.True(t, coupon.DiscountFor(money("1000.00")).Equal(money("200.00")))
}

func TestCouponDiscountNeverExceedsSubtotal(t *testing.T) {
	coupon := Coupon{
		Type:  CouponTypeFixed,
		Value: money("500.00"),
	}
	assert.True(t, coupon.DiscountFor(money("120.00")).Equal(money("120.00")))
}
