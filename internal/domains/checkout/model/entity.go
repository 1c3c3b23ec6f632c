package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	ordermodel "orderflow-backend/internal/domains/order/model"
)

// ===== SESSION STATUS =====

type SessionStatus string

const (
	SessionInitiated      SessionStatus = "initiated"
	SessionAddressEntered SessionStatus = "address_entered"
	SessionPaymentPending SessionStatus = "payment_pending"
	SessionCompleted      SessionStatus = "completed"
	SessionFailed         SessionStatus = "failed"
	SessionExpired        SessionStatus = "expired"
)

// IsTerminal reports whether the session can no longer change.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionFailed || s == SessionExpired
}

// IsOpen reports whether complete() may still run.
func (s SessionStatus) IsOpen() bool {
	return s == SessionInitiated || s == SessionAddressEntered || s == SessionPaymentPending
}

// ===== ENTITIES =====

// SessionItem is one frozen line of the cart at checkout entry.
type SessionItem struct {
	ProductID uuid.UUID  `json:"productId"`
	VariantID uuid.UUID  `json:"variantId"`
	BundleID  *uuid.UUID `json:"bundleId,omitempty"`

	SKU      string `json:"sku"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl,omitempty"`
	HSNCode  string `json:"hsnCode,omitempty"`

	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	UnitMRP      decimal.Decimal `json:"unitMrp"`
	LineDiscount decimal.Decimal `json:"lineDiscount"`
	LineTax      decimal.Decimal `json:"lineTax"`
	LineTotal    decimal.Decimal `json:"lineTotal"`
	IsFreeGift   bool            `json:"isFreeGift"`
}

// CheckoutSession is a time-bounded handle that freezes the cart while
// the customer pays. Terminal sessions are immutable.
type CheckoutSession struct {
	ID     uuid.UUID `json:"id"`
	CartID uuid.UUID `json:"cartId"`
	UserID uuid.UUID `json:"userId"`

	Items           []SessionItem                     `json:"items"`
	ShippingAddress ordermodel.AddressSnapshot        `json:"shippingAddress"`
	BillingAddress  ordermodel.AddressSnapshot        `json:"billingAddress"`
	ShippingMethod  ordermodel.ShippingMethodSnapshot `json:"shippingMethod"`
	Totals          ordermodel.TotalsSnapshot         `json:"totals"`
	PaymentMethod   string                            `json:"paymentMethod"`
	PaymentSnapshot ordermodel.PaymentMethodSnapshot  `json:"paymentSnapshot"`

	Status        SessionStatus `json:"status"`
	ReservationID *string       `json:"reservationId,omitempty"`

	GatewayOrderID *string    `json:"gatewayOrderId,omitempty"`
	OrderID        *uuid.UUID `json:"orderId,omitempty"`
	FailureReason  *string    `json:"failureReason,omitempty"`

	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Expired reports whether the session is past its deadline.
func (s *CheckoutSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
