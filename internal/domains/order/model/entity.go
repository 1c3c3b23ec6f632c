package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ===== ORDER STATUS =====

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusProcessing     OrderStatus = "processing"
	OrderStatusShipped        OrderStatus = "shipped"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
	OrderStatusReturned       OrderStatus = "returned"
	OrderStatusRefunded       OrderStatus = "refunded"
)

// orderTransitions is the permitted edge set for customer-visible flow.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:        {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:      {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing:     {OrderStatusShipped},
	OrderStatusShipped:        {OrderStatusOutForDelivery, OrderStatusDelivered},
	OrderStatusOutForDelivery: {OrderStatusDelivered},
	OrderStatusDelivered:      {OrderStatusReturned},
	OrderStatusReturned:       {OrderStatusRefunded},
}

// adminCancellable lists states an admin may force-cancel from,
// beyond what customers can.
var adminCancellable = map[OrderStatus]bool{
	OrderStatusPending:    true,
	OrderStatusConfirmed:  true,
	OrderStatusProcessing: true,
	OrderStatusShipped:    true,
}

// CanTransition reports whether from -> to is a legal customer-flow edge.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanAdminCancel reports whether an admin may cancel from this state.
func CanAdminCancel(from OrderStatus) bool {
	return adminCancellable[from]
}

// IsTerminal reports whether the status admits no further transitions.
func IsTerminal(s OrderStatus) bool {
	return s == OrderStatusCancelled || s == OrderStatusRefunded
}

// ===== PAYMENT STATUS (order-level view) =====

type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusInitiated         PaymentStatus = "initiated"
	PaymentStatusProcessing        PaymentStatus = "processing"
	PaymentStatusAuthorized        PaymentStatus = "authorized"
	PaymentStatusCaptured          PaymentStatus = "captured"
	PaymentStatusPaid              PaymentStatus = "paid"
	PaymentStatusFailed            PaymentStatus = "failed"
	PaymentStatusCancelled         PaymentStatus = "cancelled"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
	PaymentStatusRefunded          PaymentStatus = "refunded"
)

// paymentRank orders payment states so reconciliation can only advance,
// never regress.
var paymentRank = map[PaymentStatus]int{
	PaymentStatusPending:           0,
	PaymentStatusInitiated:         1,
	PaymentStatusProcessing:        2,
	PaymentStatusAuthorized:        3,
	PaymentStatusCaptured:          4,
	PaymentStatusPaid:              5,
	PaymentStatusFailed:            5,
	PaymentStatusCancelled:         5,
	PaymentStatusPartiallyRefunded: 6,
	PaymentStatusRefunded:          7,
}

// PaymentAdvances reports whether to is strictly ahead of from.
func PaymentAdvances(from, to PaymentStatus) bool {
	return paymentRank[to] > paymentRank[from]
}

// IsPaid reports whether money has been captured for the order.
func (s PaymentStatus) IsPaid() bool {
	return s == PaymentStatusCaptured || s == PaymentStatusAuthorized || s == PaymentStatusPaid
}

// ===== FULFILLMENT STATUS =====

type FulfillmentStatus string

const (
	FulfillmentUnfulfilled        FulfillmentStatus = "unfulfilled"
	FulfillmentPartiallyFulfilled FulfillmentStatus = "partially_fulfilled"
	FulfillmentFulfilled          FulfillmentStatus = "fulfilled"
)

// DeriveFulfillment aggregates per-line progress.
func DeriveFulfillment(items []OrderItem) FulfillmentStatus {
	if len(items) == 0 {
		return FulfillmentUnfulfilled
	}

	any, all := false, true
	for i := range items {
		if items[i].QuantityFulfilled > 0 {
			any = true
		}
		if items[i].QuantityFulfilled < items[i].Quantity {
			all = false
		}
	}

	switch {
	case all:
		return FulfillmentFulfilled
	case any:
		return FulfillmentPartiallyFulfilled
	default:
		return FulfillmentUnfulfilled
	}
}

// ===== CANCEL REASONS =====

type CancelReason string

const (
	CancelCustomerRequest CancelReason = "customer_request"
	CancelOutOfStock      CancelReason = "out_of_stock"
	CancelPaymentFailed   CancelReason = "payment_failed"
	CancelFraudulent      CancelReason = "fraudulent"
	CancelDuplicateOrder  CancelReason = "duplicate_order"
	CancelOther           CancelReason = "other"
)

func ValidCancelReason(r CancelReason) bool {
	switch r {
	case CancelCustomerRequest, CancelOutOfStock, CancelPaymentFailed,
		CancelFraudulent, CancelDuplicateOrder, CancelOther:
		return true
	}
	return false
}

// ===== SNAPSHOTS =====

// AddressSnapshot is an immutable copy of a shipping or billing address.
type AddressSnapshot struct {
	FullName string `json:"fullName"`
	Phone    string `json:"phone"`
	Line1    string `json:"line1"`
	Line2    string `json:"line2,omitempty"`
	Landmark string `json:"landmark,omitempty"`
	City     string `json:"city"`
	State    string `json:"state"`
	Pincode  string `json:"pincode"`
	Country  string `json:"country"`
}

// ShippingMethodSnapshot freezes the method chosen at checkout.
type ShippingMethodSnapshot struct {
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Fee           decimal.Decimal `json:"fee"`
	EstimatedDays int             `json:"estimatedDays"`
}

// TotalsSnapshot freezes the money at a transition point.
type TotalsSnapshot struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	DiscountTotal decimal.Decimal `json:"discountTotal"`
	ShippingTotal decimal.Decimal `json:"shippingTotal"`
	TaxTotal      decimal.Decimal `json:"taxTotal"`
	GrandTotal    decimal.Decimal `json:"grandTotal"`
}

// PaymentMethodSnapshot keeps only gateway-safe details.
// UPI handles are masked, cards keep the last 4 digits.
type PaymentMethodSnapshot struct {
	Method      string `json:"method"`
	UPIHandle   string `json:"upiHandle,omitempty"`
	CardLast4   string `json:"cardLast4,omitempty"`
	CardNetwork string `json:"cardNetwork,omitempty"`
	BankName    string `json:"bankName,omitempty"`
}

// CustomerSnapshot is the contact info frozen onto the order.
type CustomerSnapshot struct {
	UserID uuid.UUID `json:"userId"`
	Name   string    `json:"name"`
	Email  string    `json:"email"`
	Phone  string    `json:"phone"`
}

// ===== ENTITIES =====

// Order is the immutable business snapshot of a confirmed purchase.
// Items and money never change after creation, only status fields,
// fulfillment counters and tracking info do.
type Order struct {
	ID          uuid.UUID `json:"id"`
	OrderNumber string    `json:"orderNumber"`
	UserID      uuid.UUID `json:"userId"`

	Customer        CustomerSnapshot       `json:"customer"`
	ShippingAddress AddressSnapshot        `json:"shippingAddress"`
	BillingAddress  AddressSnapshot        `json:"billingAddress"`
	ShippingMethod  ShippingMethodSnapshot `json:"shippingMethod"`
	Totals          TotalsSnapshot         `json:"totals"`
	PaymentMethod   PaymentMethodSnapshot  `json:"paymentMethod"`

	Status            OrderStatus       `json:"status"`
	PaymentStatus     PaymentStatus     `json:"paymentStatus"`
	FulfillmentStatus FulfillmentStatus `json:"fulfillmentStatus"`
	CancelReason      *CancelReason     `json:"cancelReason,omitempty"`

	TrackingCarrier *string    `json:"trackingCarrier,omitempty"`
	TrackingNumber  *string    `json:"trackingNumber,omitempty"`
	ShippedAt       *time.Time `json:"shippedAt,omitempty"`
	DeliveredAt     *time.Time `json:"deliveredAt,omitempty"`
	ConfirmedAt     *time.Time `json:"confirmedAt,omitempty"`

	ReservationID *string `json:"reservationId,omitempty"`

	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// OrderItem is one immutable line with mutable fulfillment counters.
// Invariants: fulfilled + returned + refunded <= quantity,
// returned <= fulfilled.
type OrderItem struct {
	ID        uuid.UUID  `json:"id"`
	OrderID   uuid.UUID  `json:"orderId"`
	ProductID uuid.UUID  `json:"productId"`
	VariantID uuid.UUID  `json:"variantId"`
	BundleID  *uuid.UUID `json:"bundleId,omitempty"`

	SKU      string `json:"sku"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl,omitempty"`
	HSNCode  string `json:"hsnCode,omitempty"`

	Quantity          int `json:"quantity"`
	QuantityFulfilled int `json:"quantityFulfilled"`
	QuantityReturned  int `json:"quantityReturned"`
	QuantityRefunded  int `json:"quantityRefunded"`

	UnitPrice    decimal.Decimal `json:"unitPrice"`
	UnitMRP      decimal.Decimal `json:"unitMrp"`
	LineDiscount decimal.Decimal `json:"lineDiscount"`
	LineTax      decimal.Decimal `json:"lineTax"`
	LineTotal    decimal.Decimal `json:"lineTotal"`
	IsFreeGift   bool            `json:"isFreeGift"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RemainingRefundable is how many units can still be refunded.
func (i *OrderItem) RemainingRefundable() int {
	return i.Quantity - i.QuantityRefunded
}

// ===== STATUS HISTORY =====

type HistoryType string

const (
	HistoryTypeOrder       HistoryType = "order"
	HistoryTypePayment     HistoryType = "payment"
	HistoryTypeFulfillment HistoryType = "fulfillment"
)

type Actor string

const (
	ActorSystem   Actor = "system"
	ActorAdmin    Actor = "admin"
	ActorCustomer Actor = "customer"
)

// StatusHistory is the append-only transition log per order.
type StatusHistory struct {
	ID         uuid.UUID   `json:"id"`
	OrderID    uuid.UUID   `json:"orderId"`
	Type       HistoryType `json:"type"`
	FromStatus string      `json:"fromStatus"`
	ToStatus   string      `json:"toStatus"`
	ChangedBy  Actor       `json:"changedBy"`
	ActorID    *uuid.UUID  `json:"actorId,omitempty"`
	Reason     string      `json:"reason,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
}
