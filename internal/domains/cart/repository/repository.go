package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"orderflow-backend/internal/domains/cart/model"
)

// RepositoryInterface defines cart persistence operations.
type RepositoryInterface interface {
	// Carts
	GetByID(ctx context.Context, cartID uuid.UUID) (*model.Cart, error)
	GetActiveByUserID(ctx context.Context, userID uuid.UUID) (*model.Cart, error)
	GetActiveByGuestToken(ctx context.Context, guestToken string) (*model.Cart, error)
	Create(ctx context.Context, cart *model.Cart) error
	UpdateStatus(ctx context.Context, cartID uuid.UUID, status model.CartStatus) error
	UpdateTotals(ctx context.Context, cart *model.Cart) error
	Delete(ctx context.Context, cartID uuid.UUID) error

	// Touch refreshes the activity timestamp so reads keep an active
	// cart out of the cleanup sweep.
	Touch(ctx context.Context, cartID uuid.UUID) error

	// Items
	GetItems(ctx context.Context, cartID uuid.UUID) ([]model.CartItem, error)
	GetItemByID(ctx context.Context, itemID uuid.UUID) (*model.CartItem, error)
	UpsertItem(ctx context.Context, item *model.CartItem) (*model.CartItem, error)
	UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error
	UpdateItemPricing(ctx context.Context, item *model.CartItem) error
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
	ClearItems(ctx context.Context, cartID uuid.UUID) (int, error)

	// Merge
	Reparent(ctx context.Context, cartID, userID uuid.UUID) error
	ApplyMerge(ctx context.Context, plan *MergePlan) error

	// Worker queries
	MarkAbandonedIdleSince(ctx context.Context, cutoff time.Time, limit int) (int, error)
	DeleteAbandonedBefore(ctx context.Context, cutoff time.Time, limit int) (int, error)
	ListForReminder(ctx context.Context, idleAfter, idleBefore time.Time, limit int) ([]model.Cart, error)
	MarkReminderSent(ctx context.Context, cartID uuid.UUID, at time.Time) error
	ListActiveCartIDs(ctx context.Context, checkedBefore time.Time, limit int) ([]uuid.UUID, error)
}

// MergePlan is the precomputed outcome of a guest-to-user merge,
// applied atomically in one transaction.
type MergePlan struct {
	GuestCartID uuid.UUID
	UserCart    *model.Cart

	// Existing user lines rewritten with combined quantity and the
	// newer price snapshot.
	UpdateLines []model.CartItem

	// Guest lines with no user counterpart, re-parented as-is.
	InsertLines []model.CartItem
}

// CouponRepositoryInterface reads coupon definitions and usage counters.
type CouponRepositoryInterface interface {
	GetByCode(ctx context.Context, code string) (*model.Coupon, error)
	CountUsage(ctx context.Context, couponID uuid.UUID) (int, error)
	CountUserUsage(ctx context.Context, couponID, userID uuid.UUID) (int, error)
	RecordUsage(ctx context.Context, couponID, userID, orderID uuid.UUID) error
}
