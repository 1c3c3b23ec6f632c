package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ===== CART STATUS =====

type CartStatus string

const (
	CartStatusActive    CartStatus = "active"
	CartStatusAbandoned CartStatus = "abandoned"
	CartStatusConverted CartStatus = "converted"
)

// ===== OWNER TYPE =====

type OwnerType string

const (
	OwnerTypeUser  OwnerType = "user"
	OwnerTypeGuest OwnerType = "guest"
)

// ===== ENTITIES =====

// Cart is the mutable pre-purchase basket. Exactly one of UserID and
// GuestToken is set.
type Cart struct {
	ID         uuid.UUID  `json:"id"`
	UserID     *uuid.UUID `json:"userId,omitempty"`
	GuestToken *string    `json:"guestToken,omitempty"`
	OwnerType  OwnerType  `json:"ownerType"`
	Status     CartStatus `json:"status"`

	// Totals cache, recomputed after every mutation
	Subtotal      decimal.Decimal `json:"subtotal"`
	DiscountTotal decimal.Decimal `json:"discountTotal"`
	ShippingTotal decimal.Decimal `json:"shippingTotal"`
	TaxTotal      decimal.Decimal `json:"taxTotal"`
	GrandTotal    decimal.Decimal `json:"grandTotal"`
	ItemCount     int             `json:"itemCount"`

	AppliedCoupons []AppliedCoupon `json:"appliedCoupons"`

	ReminderSent   bool       `json:"reminderSent"`
	ReminderSentAt *time.Time `json:"reminderSentAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AppliedCoupon is the cached discount applied to a cart. The cached
// amount is trusted during cart mutations and re-derived at checkout entry.
type AppliedCoupon struct {
	CouponID       uuid.UUID       `json:"couponId"`
	Code           string          `json:"code"`
	Type           CouponType      `json:"type"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
}

// PriceSnapshot freezes the price a line was quoted at.
type PriceSnapshot struct {
	UnitPrice       decimal.Decimal `json:"unitPrice"`
	UnitMRP         decimal.Decimal `json:"unitMrp"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	CapturedAt      time.Time       `json:"capturedAt"`
}

// ProductStatusInfo caches the last known catalog availability.
type ProductStatusInfo struct {
	ProductExists bool      `json:"productExists"`
	VariantExists bool      `json:"variantExists"`
	LastCheckedAt time.Time `json:"lastCheckedAt"`
}

// PriceChange records a revalidation price rewrite on a line.
type PriceChange struct {
	OldPrice  decimal.Decimal `json:"oldPrice"`
	NewPrice  decimal.Decimal `json:"newPrice"`
	ChangedAt time.Time       `json:"changedAt"`
}

// CartItem is one line of a cart.
// (CartID, VariantID, BundleID) is unique, a second add coalesces quantity.
type CartItem struct {
	ID        uuid.UUID  `json:"id"`
	CartID    uuid.UUID  `json:"cartId"`
	ProductID uuid.UUID  `json:"productId"`
	VariantID uuid.UUID  `json:"variantId"`
	BundleID  *uuid.UUID `json:"bundleId,omitempty"`

	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	UnitMRP      decimal.Decimal `json:"unitMrp"`
	LineDiscount decimal.Decimal `json:"lineDiscount"`
	LineTotal    decimal.Decimal `json:"lineTotal"`
	IsFreeGift   bool            `json:"isFreeGift"`

	PriceSnapshot PriceSnapshot     `json:"priceSnapshot"`
	ProductStatus ProductStatusInfo `json:"productStatus"`

	PriceChanged bool         `json:"priceChanged"`
	PriceChange  *PriceChange `json:"priceChange,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ComputeLineTotal recomputes LineTotal from quantity, price and
// discount, clamped at zero.
func (i *CartItem) ComputeLineTotal() decimal.Decimal {
	total := i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity))).Sub(i.LineDiscount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total.Round(2)
}

// VariantKey identifies a coalescing target inside one cart.
func (i *CartItem) VariantKey() string {
	if i.BundleID != nil {
		return i.VariantID.String() + "/" + i.BundleID.String()
	}
	return i.VariantID.String()
}

// ===== COUPONS =====

type CouponType string

const (
	CouponTypePercent CouponType = "percent"
	CouponTypeFixed   CouponType = "fixed"
)

// Coupon is a discount definition maintained by admins.
type Coupon struct {
	ID             uuid.UUID        `json:"id"`
	Code           string           `json:"code"`
	Type           CouponType       `json:"type"`
	Value          decimal.Decimal  `json:"value"`
	MinOrderAmount decimal.Decimal  `json:"minOrderAmount"`
	MaxDiscount    *decimal.Decimal `json:"maxDiscount,omitempty"`
	UsageLimit     *int             `json:"usageLimit,omitempty"`
	PerUserLimit   *int             `json:"perUserLimit,omitempty"`
	StartsAt       time.Time        `json:"startsAt"`
	EndsAt         time.Time        `json:"endsAt"`
	IsActive       bool             `json:"isActive"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// DiscountFor computes the discount this coupon grants on a subtotal.
func (c *Coupon) DiscountFor(subtotal decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	switch c.Type {
	case CouponTypePercent:
		discount = subtotal.Mul(c.Value).Div(decimal.NewFromInt(100)).Round(2)
	case CouponTypeFixed:
		discount = c.Value
	}
	if c.MaxDiscount != nil && discount.GreaterThan(*c.MaxDiscount) {
		discount = *c.MaxDiscount
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	return discount
}

// ===== LIMITS =====

const (
	// MaxQuantityPerLine caps a single line's quantity.
	MaxQuantityPerLine = 20

	// MaxItemsPerCart caps total units across the cart.
	MaxItemsPerCart = 50
)

// ===== REVALIDATION RESULT =====

type WarningSeverity string

const (
	SeverityLow    WarningSeverity = "low"
	SeverityMedium WarningSeverity = "medium"
	SeverityHigh   WarningSeverity = "high"
)

const (
	WarningPriceIncrease    = "PRICE_INCREASE"
	WarningPriceDecrease    = "PRICE_DECREASE"
	WarningItemsUnavailable = "ITEMS_UNAVAILABLE"
)

// RevalidationWarning aggregates line-level findings for the caller.
type RevalidationWarning struct {
	Code     string          `json:"code"`
	Severity WarningSeverity `json:"severity"`
	Message  string          `json:"message"`
	Amount   decimal.Decimal `json:"amount"`
}

// LinePriceChange reports one re-priced line.
type LinePriceChange struct {
	ItemID   uuid.UUID       `json:"itemId"`
	OldPrice decimal.Decimal `json:"oldPrice"`
	NewPrice decimal.Decimal `json:"newPrice"`
	Delta    decimal.Decimal `json:"delta"`
}

// UnavailableItem reports one line that can no longer be purchased.
type UnavailableItem struct {
	ItemID    uuid.UUID `json:"itemId"`
	ProductID uuid.UUID `json:"productId"`
	VariantID uuid.UUID `json:"variantId"`
	Reason    string    `json:"reason"`
}

// RevalidationResult is the outcome of one revalidation pass.
type RevalidationResult struct {
	PriceChanges []LinePriceChange     `json:"priceChanges"`
	Unavailable  []UnavailableItem     `json:"unavailable"`
	Warnings     []RevalidationWarning `json:"warnings"`
}

// Clean reports whether the pass found nothing to fix.
func (r *RevalidationResult) Clean() bool {
	return len(r.PriceChanges) == 0 && len(r.Unavailable) == 0
}
