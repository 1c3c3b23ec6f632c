package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"orderflow-backend/internal/domains/payment/model"
)

type postgresRefundRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRefundRepository(pool *pgxpool.Pool) RefundRepository {
	return &postgresRefundRepository{pool: pool}
}

const refundColumns = `
	id, refund_number, order_id, payment_id,
	requested_by, requested_amount, approved_amount, lines, reason, method,
	status, gateway_refund_id, failure_reason,
	approved_by, approved_at, processed_at, created_at, updated_at`

func scanRefund(row pgx.Row) (*model.Refund, error) {
	var rf model.Refund
	var lines []byte

	err := row.Scan(
		&rf.ID, &rf.RefundNumber, &rf.OrderID, &rf.PaymentID,
		&rf.RequestedBy, &rf.RequestedAmount, &rf.ApprovedAmount, &lines, &rf.Reason, &rf.Method,
		&rf.Status, &rf.GatewayRefundID, &rf.FailureReason,
		&rf.ApprovedBy, &rf.ApprovedAt, &rf.ProcessedAt, &rf.CreatedAt, &rf.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan refund: %w", err)
	}

	if len(lines) > 0 {
		if err := json.Unmarshal(lines, &rf.Lines); err != nil {
			return nil, fmt.Errorf("failed to decode refund lines: %w", err)
		}
	}
	return &rf, nil
}

func (r *postgresRefundRepository) Create(ctx context.Context, refund *model.Refund) error {
	lines, err := json.Marshal(refund.Lines)
	if err != nil {
		return fmt.Errorf("failed to encode refund lines: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO refunds (
			id, refund_number, order_id, payment_id,
			requested_by, requested_amount, lines, reason, method,
			status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())`,
		refund.ID, refund.RefundNumber, refund.OrderID, refund.PaymentID,
		refund.RequestedBy, refund.RequestedAmount, lines, refund.Reason, refund.Method,
		refund.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to create refund: %w", err)
	}
	return nil
}

func (r *postgresRefundRepository) GetByID(ctx context.Context, refundID uuid.UUID) (*model.Refund, error) {
	query := `SELECT ` + refundColumns + ` FROM refunds WHERE id = $1`
	return scanRefund(r.pool.QueryRow(ctx, query, refundID))
}

func (r *postgresRefundRepository) GetByGatewayRefundID(ctx context.Context, gatewayRefundID string) (*model.Refund, error) {
	query := `SELECT ` + refundColumns + ` FROM refunds WHERE gateway_refund_id = $1`
	return scanRefund(r.pool.QueryRow(ctx, query, gatewayRefundID))
}

func (r *postgresRefundRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.Refund, error) {
	query := `SELECT ` + refundColumns + ` FROM refunds WHERE order_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list refunds: %w", err)
	}
	defer rows.Close()

	return collectRefunds(rows)
}

func (r *postgresRefundRepository) ListByStatus(ctx context.Context, status model.RefundStatus, limit int) ([]model.Refund, error) {
	query := `SELECT ` + refundColumns + ` FROM refunds WHERE status = $1 ORDER BY created_at ASC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list refunds by status: %w", err)
	}
	defer rows.Close()

	return collectRefunds(rows)
}

func (r *postgresRefundRepository) Update(ctx context.Context, refund *model.Refund) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE refunds SET
			approved_amount = $2,
			status = $3,
			gateway_refund_id = $4,
			failure_reason = $5,
			approved_by = $6,
			approved_at = $7,
			processed_at = $8,
			updated_at = NOW()
		WHERE id = $1`,
		refund.ID, refund.ApprovedAmount, refund.Status,
		refund.GatewayRefundID, refund.FailureReason,
		refund.ApprovedBy, refund.ApprovedAt, refund.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update refund: %w", err)
	}
	if result.RowsAffected() == 0 {
		return model.ErrRefundNotFound
	}
	return nil
}

func (r *postgresRefundRepository) SumCompletedByPayment(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(COALESCE(approved_amount, requested_amount)), 0)
		FROM refunds
		WHERE payment_id = $1 AND status = 'completed'`,
		paymentID,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum refunds: %w", err)
	}
	return total, nil
}

func collectRefunds(rows pgx.Rows) ([]model.Refund, error) {
	var refunds []model.Refund
	for rows.Next() {
		rf, err := scanRefund(rows)
		if err != nil {
			return nil, err
		}
		refunds = append(refunds, *rf)
	}
	return refunds, rows.Err()
}
