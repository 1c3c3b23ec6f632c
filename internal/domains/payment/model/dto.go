package model

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ===== REQUEST DTOs =====

// VerifySignatureRequest is the frontend callback after the gateway
// widget reports success.
type VerifySignatureRequest struct {
	GatewayOrderID   string `json:"gatewayOrderId"`
	GatewayPaymentID string `json:"gatewayPaymentId"`
	Signature        string `json:"signature"`
}

func (r VerifySignatureRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.GatewayOrderID, validation.Required),
		validation.Field(&r.GatewayPaymentID, validation.Required),
		validation.Field(&r.Signature, validation.Required, validation.Length(16, 128)),
	)
}

// RefundLineRequest selects units of one order line to refund.
type RefundLineRequest struct {
	OrderItemID uuid.UUID `json:"orderItemId"`
	Quantity    int       `json:"quantity"`
}

func (r RefundLineRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Quantity, validation.Required, validation.Min(1)),
	)
}

// RequestRefundRequest opens a refund for some or all lines.
type RequestRefundRequest struct {
	OrderID uuid.UUID           `json:"orderId"`
	Lines   []RefundLineRequest `json:"lines"`
	Reason  string              `json:"reason"`
	Method  string              `json:"method"`
}

func (r RequestRefundRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Lines, validation.Required, validation.Length(1, 50)),
		validation.Field(&r.Reason, validation.Required, validation.Length(3, 500)),
		validation.Field(&r.Method, validation.Required, validation.In(
			string(RefundViaGateway),
			string(RefundViaBank),
			string(RefundViaStoreCredit),
		)),
	)
}

// ApproveRefundRequest lets an admin approve at most the requested amount.
type ApproveRefundRequest struct {
	ApprovedAmount decimal.Decimal `json:"approvedAmount"`
	Notes          string          `json:"notes"`
}

func (r ApproveRefundRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Notes, validation.Length(0, 500)),
	)
}

// RejectRefundRequest declines a refund with a reason.
type RejectRefundRequest struct {
	Reason string `json:"reason"`
}

func (r RejectRefundRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Reason, validation.Required, validation.Length(3, 500)),
	)
}

// ===== WEBHOOK PAYLOADS =====

// WebhookEvent is the gateway's callback envelope.
type WebhookEvent struct {
	ID      string `json:"id"`
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity WebhookPaymentEntity `json:"entity"`
		} `json:"payment"`
		Refund struct {
			Entity WebhookRefundEntity `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
	CreatedAt int64 `json:"created_at"`
}

// WebhookPaymentEntity is the payment body inside a webhook event.
// Amount is in minor units (paise).
type WebhookPaymentEntity struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	Method           string `json:"method"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
}

// WebhookRefundEntity is the refund body inside a webhook event.
type WebhookRefundEntity struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
}

// ===== RESPONSE DTOs =====

// VerifyResponse confirms the capture to the frontend.
type VerifyResponse struct {
	PaymentID uuid.UUID     `json:"paymentId"`
	OrderID   uuid.UUID     `json:"orderId"`
	Status    PaymentStatus `json:"status"`
}

// ReconciliationResult summarizes one reconciliation sweep.
type ReconciliationResult struct {
	Checked int `json:"checked"`
	Updated int `json:"updated"`
	Errors  int `json:"errors"`
}
