package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"orderflow-backend/internal/domains/checkout/model"
)

// RepositoryInterface defines checkout session persistence.
type RepositoryInterface interface {
	Create(ctx context.Context, session *model.CheckoutSession) error
	GetByID(ctx context.Context, sessionID uuid.UUID) (*model.CheckoutSession, error)
	GetOpenByCartID(ctx context.Context, cartID uuid.UUID) (*model.CheckoutSession, error)
	UpdateStatus(ctx context.Context, sessionID uuid.UUID, from []model.SessionStatus, to model.SessionStatus, failureReason *string) (bool, error)
	AttachOrder(ctx context.Context, sessionID, orderID uuid.UUID) error
	AttachGatewayOrder(ctx context.Context, sessionID uuid.UUID, gatewayOrderID string, orderID uuid.UUID) error
	ExpireStale(ctx context.Context, now time.Time, limit int) ([]ExpiredSession, error)
}

// ExpiredSession carries what the expiry worker needs to release holds.
type ExpiredSession struct {
	ID            uuid.UUID
	CartID        uuid.UUID
	ReservationID *string
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) RepositoryInterface {
	return &postgresRepository{pool: pool}
}

const sessionColumns = `
	id, cart_id, user_id, items, shipping_address, billing_address,
	shipping_method, totals, payment_method, payment_snapshot, status, reservation_id,
	gateway_order_id, order_id, failure_reason, expires_at, created_at, updated_at`

func scanSession(row pgx.Row) (*model.CheckoutSession, error) {
	var s model.CheckoutSession
	var items, shipAddr, billAddr, method, totals, paySnap []byte

	err := row.Scan(
		&s.ID, &s.CartID, &s.UserID, &items, &shipAddr, &billAddr,
		&method, &totals, &s.PaymentMethod, &paySnap, &s.Status, &s.ReservationID,
		&s.GatewayOrderID, &s.OrderID, &s.FailureReason,
		&s.ExpiresAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan checkout session: %w", err)
	}

	for _, pair := range []struct {
		data []byte
		dest interface{}
	}{
		{items, &s.Items},
		{shipAddr, &s.ShippingAddress},
		{billAddr, &s.BillingAddress},
		{method, &s.ShippingMethod},
		{totals, &s.Totals},
		{paySnap, &s.PaymentSnapshot},
	} {
		if len(pair.data) > 0 {
			if err := json.Unmarshal(pair.data, pair.dest); err != nil {
				return nil, fmt.Errorf("failed to decode session snapshot: %w", err)
			}
		}
	}
	return &s, nil
}

func (r *postgresRepository) Create(ctx context.Context, session *model.CheckoutSession) error {
	items, err := json.Marshal(session.Items)
	if err != nil {
		return fmt.Errorf("failed to encode session items: %w", err)
	}
	shipAddr, err := json.Marshal(session.ShippingAddress)
	if err != nil {
		return fmt.Errorf("failed to encode shipping address: %w", err)
	}
	billAddr, err := json.Marshal(session.BillingAddress)
	if err != nil {
		return fmt.Errorf("failed to encode billing address: %w", err)
	}
	method, err := json.Marshal(session.ShippingMethod)
	if err != nil {
		return fmt.Errorf("failed to encode shipping method: %w", err)
	}
	totals, err := json.Marshal(session.Totals)
	if err != nil {
		return fmt.Errorf("failed to encode totals: %w", err)
	}
	paySnap, err := json.Marshal(session.PaymentSnapshot)
	if err != nil {
		return fmt.Errorf("failed to encode payment snapshot: %w", err)
	}

	query := `
		INSERT INTO checkout_sessions (
			id, cart_id, user_id, items, shipping_address, billing_address,
			shipping_method, totals, payment_method, payment_snapshot, status,
			reservation_id, expires_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())`

	_, err = r.pool.Exec(ctx, query,
		session.ID, session.CartID, session.UserID, items, shipAddr, billAddr,
		method, totals, session.PaymentMethod, paySnap, session.Status,
		session.ReservationID, session.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create checkout session: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, sessionID uuid.UUID) (*model.CheckoutSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM checkout_sessions WHERE id = $1`
	return scanSession(r.pool.QueryRow(ctx, query, sessionID))
}

func (r *postgresRepository) GetOpenByCartID(ctx context.Context, cartID uuid.UUID) (*model.CheckoutSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM checkout_sessions
		WHERE cart_id = $1 AND status IN ('initiated', 'address_entered', 'payment_pending')
		ORDER BY created_at DESC
		LIMIT 1`
	return scanSession(r.pool.QueryRow(ctx, query, cartID))
}

// UpdateStatus moves a session forward only from one of the expected
// states. Returns false when the session was in none of them, which
// keeps terminal states immutable.
func (r *postgresRepository) UpdateStatus(ctx context.Context, sessionID uuid.UUID, from []model.SessionStatus, to model.SessionStatus, failureReason *string) (bool, error) {
	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}

	query := `
		UPDATE checkout_sessions
		SET status = $2, failure_reason = COALESCE($3, failure_reason), updated_at = NOW()
		WHERE id = $1 AND status = ANY($4)`

	tag, err := r.pool.Exec(ctx, query, sessionID, to, failureReason, states)
	if err != nil {
		return false, fmt.Errorf("failed to update session status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// AttachOrder journals the order id onto the session before the
// gateway call so a retried complete reuses the same order.
func (r *postgresRepository) AttachOrder(ctx context.Context, sessionID, orderID uuid.UUID) error {
	query := `
		UPDATE checkout_sessions
		SET order_id = $2, updated_at = NOW()
		WHERE id = $1`

	_, err := r.pool.Exec(ctx, query, sessionID, orderID)
	if err != nil {
		return fmt.Errorf("failed to attach order: %w", err)
	}
	return nil
}

func (r *postgresRepository) AttachGatewayOrder(ctx context.Context, sessionID uuid.UUID, gatewayOrderID string, orderID uuid.UUID) error {
	query := `
		UPDATE checkout_sessions
		SET gateway_order_id = $2, order_id = $3, updated_at = NOW()
		WHERE id = $1`

	_, err := r.pool.Exec(ctx, query, sessionID, gatewayOrderID, orderID)
	if err != nil {
		return fmt.Errorf("failed to attach gateway order: %w", err)
	}
	return nil
}

// ExpireStale flips overdue open sessions to expired and returns them
// so the caller can release inventory holds.
func (r *postgresRepository) ExpireStale(ctx context.Context, now time.Time, limit int) ([]ExpiredSession, error) {
	query := `
		UPDATE checkout_sessions
		SET status = 'expired', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM checkout_sessions
			WHERE status IN ('initiated', 'address_entered', 'payment_pending')
			  AND expires_at < $1
			LIMIT $2
		)
		RETURNING id, cart_id, reservation_id`

	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to expire sessions: %w", err)
	}
	defer rows.Close()

	var expired []ExpiredSession
	for rows.Next() {
		var e ExpiredSession
		if err := rows.Scan(&e.ID, &e.CartID, &e.ReservationID); err != nil {
			return nil, fmt.Errorf("failed to scan expired session: %w", err)
		}
		expired = append(expired, e)
	}
	return expired, rows.Err()
}
