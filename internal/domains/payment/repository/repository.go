package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"orderflow-backend/internal/domains/payment/model"
)

// PaymentRepository defines payment persistence.
type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	GetByID(ctx context.Context, paymentID uuid.UUID) (*model.Payment, error)
	GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*model.Payment, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*model.Payment, error)
	GetCapturedByOrder(ctx context.Context, orderID uuid.UUID) (*model.Payment, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.Payment, error)
	CountByOrder(ctx context.Context, orderID uuid.UUID) (int, error)
	Update(ctx context.Context, payment *model.Payment) error

	// ListReconcilable returns non-terminal payments with a known
	// gateway payment id created after the cutoff.
	ListReconcilable(ctx context.Context, since time.Time, limit int) ([]model.Payment, error)

	GetStats(ctx context.Context, from, to time.Time) (*model.Stats, error)
}

// RefundRepository defines refund persistence.
type RefundRepository interface {
	Create(ctx context.Context, refund *model.Refund) error
	GetByID(ctx context.Context, refundID uuid.UUID) (*model.Refund, error)
	GetByGatewayRefundID(ctx context.Context, gatewayRefundID string) (*model.Refund, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.Refund, error)
	ListByStatus(ctx context.Context, status model.RefundStatus, limit int) ([]model.Refund, error)
	Update(ctx context.Context, refund *model.Refund) error

	// SumCompletedByPayment totals completed refund money for a payment.
	SumCompletedByPayment(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error)
}

// WebhookRepository is the append-only webhook audit log.
type WebhookRepository interface {
	// Insert stores the log entry. Returns false when the event id was
	// already recorded, which marks the delivery as a duplicate.
	Insert(ctx context.Context, entry *model.WebhookLog) (bool, error)
	MarkProcessed(ctx context.Context, logID uuid.UUID, paymentID *uuid.UUID) error
}
