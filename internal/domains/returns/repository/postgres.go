package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"orderflow-backend/internal/domains/returns/model"
)

// RepositoryInterface defines return request persistence.
type RepositoryInterface interface {
	Create(ctx context.Context, ret *model.ReturnRequest) error
	GetByID(ctx context.Context, returnID uuid.UUID) (*model.ReturnRequest, error)
	ListByUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]model.ReturnRequest, int, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.ReturnRequest, error)
	ListByStatus(ctx context.Context, status model.ReturnStatus, limit int) ([]model.ReturnRequest, error)
	Update(ctx context.Context, ret *model.ReturnRequest) error

	// SumReturnedQuantity totals units of one order line already tied
	// up in live or completed returns.
	SumReturnedQuantity(ctx context.Context, orderID uuid.UUID) (map[uuid.UUID]int, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) RepositoryInterface {
	return &postgresRepository{pool: pool}
}

const returnColumns = `
	id, return_number, order_id, user_id, items, reason,
	status, rejection_reason, pickup_address, pickup_slot,
	inspection, refund_id, received_at, completed_at, created_at, updated_at`

func scanReturn(row pgx.Row) (*model.ReturnRequest, error) {
	var ret model.ReturnRequest
	var items, pickupAddr, pickupSlot, inspection []byte

	err := row.Scan(
		&ret.ID, &ret.ReturnNumber, &ret.OrderID, &ret.UserID, &items, &ret.Reason,
		&ret.Status, &ret.RejectionReason, &pickupAddr, &pickupSlot,
		&inspection, &ret.RefundID, &ret.ReceivedAt, &ret.CompletedAt, &ret.CreatedAt, &ret.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan return: %w", err)
	}

	if len(items) > 0 {
		if err := json.Unmarshal(items, &ret.Items); err != nil {
			return nil, fmt.Errorf("failed to decode return items: %w", err)
		}
	}
	if len(pickupAddr) > 0 {
		if err := json.Unmarshal(pickupAddr, &ret.PickupAddress); err != nil {
			return nil, fmt.Errorf("failed to decode pickup address: %w", err)
		}
	}
	if len(pickupSlot) > 0 {
		if err := json.Unmarshal(pickupSlot, &ret.PickupSlot); err != nil {
			return nil, fmt.Errorf("failed to decode pickup slot: %w", err)
		}
	}
	if len(inspection) > 0 {
		if err := json.Unmarshal(inspection, &ret.Inspection); err != nil {
			return nil, fmt.Errorf("failed to decode inspection: %w", err)
		}
	}
	return &ret, nil
}

func (r *postgresRepository) Create(ctx context.Context, ret *model.ReturnRequest) error {
	items, err := json.Marshal(ret.Items)
	if err != nil {
		return fmt.Errorf("failed to encode return items: %w", err)
	}
	pickupAddr, err := json.Marshal(ret.PickupAddress)
	if err != nil {
		return fmt.Errorf("failed to encode pickup address: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO returns (
			id, return_number, order_id, user_id, items, reason,
			status, pickup_address, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())`,
		ret.ID, ret.ReturnNumber, ret.OrderID, ret.UserID, items, ret.Reason,
		ret.Status, pickupAddr,
	)
	if err != nil {
		return fmt.Errorf("failed to create return: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, returnID uuid.UUID) (*model.ReturnRequest, error) {
	query := `SELECT ` + returnColumns + ` FROM returns WHERE id = $1`
	return scanReturn(r.pool.QueryRow(ctx, query, returnID))
}

func (r *postgresRepository) ListByUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]model.ReturnRequest, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM returns WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count returns: %w", err)
	}

	query := `
		SELECT ` + returnColumns + `
		FROM returns
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list returns: %w", err)
	}
	defer rows.Close()

	returns, err := collectReturns(rows)
	return returns, total, err
}

func (r *postgresRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.ReturnRequest, error) {
	query := `SELECT ` + returnColumns + ` FROM returns WHERE order_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list returns by order: %w", err)
	}
	defer rows.Close()

	return collectReturns(rows)
}

func (r *postgresRepository) ListByStatus(ctx context.Context, status model.ReturnStatus, limit int) ([]model.ReturnRequest, error) {
	query := `SELECT ` + returnColumns + ` FROM returns WHERE status = $1 ORDER BY created_at ASC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list returns by status: %w", err)
	}
	defer rows.Close()

	return collectReturns(rows)
}

func (r *postgresRepository) Update(ctx context.Context, ret *model.ReturnRequest) error {
	pickupSlot, err := json.Marshal(ret.PickupSlot)
	if err != nil {
		return fmt.Errorf("failed to encode pickup slot: %w", err)
	}
	inspection, err := json.Marshal(ret.Inspection)
	if err != nil {
		return fmt.Errorf("failed to encode inspection: %w", err)
	}

	result, err := r.pool.Exec(ctx, `
		UPDATE returns SET
			status = $2,
			rejection_reason = $3,
			pickup_slot = $4,
			inspection = $5,
			refund_id = $6,
			received_at = $7,
			completed_at = $8,
			updated_at = NOW()
		WHERE id = $1`,
		ret.ID, ret.Status, ret.RejectionReason, pickupSlot, inspection,
		ret.RefundID, ret.ReceivedAt, ret.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update return: %w", err)
	}
	if result.RowsAffected() == 0 {
		return model.ErrReturnNotFound
	}
	return nil
}

// SumReturnedQuantity aggregates per-line quantities across every
// return of the order that is not rejected or cancelled.
func (r *postgresRepository) SumReturnedQuantity(ctx context.Context, orderID uuid.UUID) (map[uuid.UUID]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT (line->>'orderItemId')::uuid, SUM((line->>'quantity')::int)
		FROM returns, jsonb_array_elements(items) AS line
		WHERE order_id = $1 AND status NOT IN ('rejected', 'cancelled')
		GROUP BY 1`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to sum returned quantities: %w", err)
	}
	defer rows.Close()

	totals := make(map[uuid.UUID]int)
	for rows.Next() {
		var itemID uuid.UUID
		var qty int
		if err := rows.Scan(&itemID, &qty); err != nil {
			return nil, fmt.Errorf("failed to scan returned quantity: %w", err)
		}
		totals[itemID] = qty
	}
	return totals, rows.Err()
}

func collectReturns(rows pgx.Rows) ([]model.ReturnRequest, error) {
	var returns []model.ReturnRequest
	for rows.Next() {
		ret, err := scanReturn(rows)
		if err != nil {
			return nil, err
		}
		returns = append(returns, *ret)
	}
	return returns, rows.Err()
}
