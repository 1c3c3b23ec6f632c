package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"orderflow-backend/internal/domains/order/model"
)

// ListFilter narrows admin order listings.
type ListFilter struct {
	Status        *model.OrderStatus
	PaymentStatus *model.PaymentStatus
	UserID        *uuid.UUID
	Page          int
	Limit         int
}

// OrderRepository defines order persistence.
type OrderRepository interface {
	// Create persists the order with its items and the initial status
	// history rows in one transaction.
	Create(ctx context.Context, order *model.Order, items []model.OrderItem, history []model.StatusHistory) error

	GetByID(ctx context.Context, orderID uuid.UUID) (*model.Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (*model.Order, error)
	GetItems(ctx context.Context, orderID uuid.UUID) ([]model.OrderItem, error)
	ListByUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]model.Order, int, error)
	List(ctx context.Context, filter ListFilter) ([]model.Order, int, error)

	// UpdateCAS writes the mutable fields guarded by the version
	// column. Returns false on a version conflict.
	UpdateCAS(ctx context.Context, order *model.Order) (bool, error)

	UpdateItemCounters(ctx context.Context, item *model.OrderItem) error

	AppendHistory(ctx context.Context, entry *model.StatusHistory) error
	ListHistory(ctx context.Context, orderID uuid.UUID) ([]model.StatusHistory, error)

	// Worker queries
	ListAutoConfirmable(ctx context.Context, olderThan time.Time, limit int) ([]model.Order, error)
	ListDeliveredWithoutInvoice(ctx context.Context, limit int) ([]model.Order, error)
}
