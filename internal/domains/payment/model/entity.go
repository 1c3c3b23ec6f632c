package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ===== PAYMENT STATUS =====

type PaymentStatus string

const (
	StatusCreated    PaymentStatus = "created"
	StatusPending    PaymentStatus = "pending"
	StatusProcessing PaymentStatus = "processing"
	StatusAuthorized PaymentStatus = "authorized"
	StatusCaptured   PaymentStatus = "captured"
	StatusFailed     PaymentStatus = "failed"
	StatusCancelled  PaymentStatus = "cancelled"
)

// statusRank orders payment states so reconciliation and webhook
// replays can only move a payment forward.
var statusRank = map[PaymentStatus]int{
	StatusCreated:    0,
	StatusPending:    1,
	StatusProcessing: 2,
	StatusAuthorized: 3,
	StatusCaptured:   4,
	StatusFailed:     4,
	StatusCancelled:  4,
}

// Advances reports whether to is strictly ahead of from.
func Advances(from, to PaymentStatus) bool {
	return statusRank[to] > statusRank[from]
}

// IsTerminal reports whether the payment can no longer change status.
func (s PaymentStatus) IsTerminal() bool {
	return s == StatusCaptured || s == StatusFailed || s == StatusCancelled
}

// ===== REFUND =====

type RefundStatus string

const (
	RefundRequested  RefundStatus = "requested"
	RefundApproved   RefundStatus = "approved"
	RefundRejected   RefundStatus = "rejected"
	RefundProcessing RefundStatus = "processing"
	RefundCompleted  RefundStatus = "completed"
	RefundFailed     RefundStatus = "failed"
)

type RefundMethod string

const (
	RefundViaGateway     RefundMethod = "gateway"
	RefundViaBank        RefundMethod = "bank_transfer"
	RefundViaStoreCredit RefundMethod = "store_credit"
)

func ValidRefundMethod(m RefundMethod) bool {
	return m == RefundViaGateway || m == RefundViaBank || m == RefundViaStoreCredit
}

// ===== ENTITIES =====

// Payment is one attempt to collect money for an order through the
// gateway. An order can accumulate several failed attempts but at most
// one captured payment.
type Payment struct {
	ID      uuid.UUID `json:"id"`
	OrderID uuid.UUID `json:"orderId"`
	UserID  uuid.UUID `json:"userId"`

	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Method   string          `json:"method"`

	GatewayOrderID   string  `json:"gatewayOrderId"`
	GatewayPaymentID *string `json:"gatewayPaymentId,omitempty"`
	GatewaySignature *string `json:"-"`
	IdempotencyKey   string  `json:"-"`

	Status       PaymentStatus `json:"status"`
	ErrorCode    *string       `json:"errorCode,omitempty"`
	ErrorMessage *string       `json:"errorMessage,omitempty"`

	RefundedAmount decimal.Decimal `json:"refundedAmount"`

	PaidAt    *time.Time `json:"paidAt,omitempty"`
	FailedAt  *time.Time `json:"failedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Refundable is how much money can still be returned.
func (p *Payment) Refundable() decimal.Decimal {
	if p.Status != StatusCaptured && p.Status != StatusAuthorized {
		return decimal.Zero
	}
	return p.Amount.Sub(p.RefundedAmount)
}

// RefundLine ties part of a refund to an order line.
type RefundLine struct {
	OrderItemID uuid.UUID       `json:"orderItemId"`
	Quantity    int             `json:"quantity"`
	Amount      decimal.Decimal `json:"amount"`
}

// Refund is a request to return money for some or all of an order.
type Refund struct {
	ID           uuid.UUID `json:"id"`
	RefundNumber string    `json:"refundNumber"`
	OrderID      uuid.UUID `json:"orderId"`
	PaymentID    uuid.UUID `json:"paymentId"`

	RequestedBy     uuid.UUID        `json:"requestedBy"`
	RequestedAmount decimal.Decimal  `json:"requestedAmount"`
	ApprovedAmount  *decimal.Decimal `json:"approvedAmount,omitempty"`
	Lines           []RefundLine     `json:"lines,omitempty"`
	Reason          string           `json:"reason"`
	Method          RefundMethod     `json:"method"`

	Status          RefundStatus `json:"status"`
	GatewayRefundID *string      `json:"gatewayRefundId,omitempty"`
	FailureReason   *string      `json:"failureReason,omitempty"`

	ApprovedBy  *uuid.UUID `json:"approvedBy,omitempty"`
	ApprovedAt  *time.Time `json:"approvedAt,omitempty"`
	ProcessedAt *time.Time `json:"processedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// ===== WEBHOOK LOG =====

// WebhookLog is the append-only audit of every gateway callback,
// including duplicates and rejects. EventID deduplicates replays.
type WebhookLog struct {
	ID         uuid.UUID  `json:"id"`
	EventID    string     `json:"eventId"`
	EventType  string     `json:"eventType"`
	PaymentID  *uuid.UUID `json:"paymentId,omitempty"`
	Payload    []byte     `json:"-"`
	Signature  string     `json:"-"`
	Verified   bool       `json:"verified"`
	Processed  bool       `json:"processed"`
	Duplicate  bool       `json:"duplicate"`
	ReceivedAt time.Time  `json:"receivedAt"`
}

// ===== ADMIN STATS =====

// Stats aggregates payment volume for the admin dashboard.
type Stats struct {
	TotalPayments    int             `json:"totalPayments"`
	CapturedPayments int             `json:"capturedPayments"`
	FailedPayments   int             `json:"failedPayments"`
	CapturedAmount   decimal.Decimal `json:"capturedAmount"`
	RefundedAmount   decimal.Decimal `json:"refundedAmount"`
	PendingRefunds   int             `json:"pendingRefunds"`
}
