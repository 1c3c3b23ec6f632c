package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"orderflow-backend/internal/domains/payment/model"
)

type postgresPaymentRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresPaymentRepository(pool *pgxpool.Pool) PaymentRepository {
	return &postgresPaymentRepository{pool: pool}
}

const paymentColumns = `
	id, order_id, user_id, amount, currency, method,
	gateway_order_id, gateway_payment_id, gateway_signature, idempotency_key,
	status, error_code, error_message, refunded_amount,
	paid_at, failed_at, created_at, updated_at`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var p model.Payment
	err := row.Scan(
		&p.ID, &p.OrderID, &p.UserID, &p.Amount, &p.Currency, &p.Method,
		&p.GatewayOrderID, &p.GatewayPaymentID, &p.GatewaySignature, &p.IdempotencyKey,
		&p.Status, &p.ErrorCode, &p.ErrorMessage, &p.RefundedAmount,
		&p.PaidAt, &p.FailedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}
	return &p, nil
}

func (r *postgresPaymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO payments (
			id, order_id, user_id, amount, currency, method,
			gateway_order_id, gateway_payment_id, idempotency_key,
			status, refunded_amount, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, NOW(), NOW())`,
		payment.ID, payment.OrderID, payment.UserID, payment.Amount, payment.Currency, payment.Method,
		payment.GatewayOrderID, payment.GatewayPaymentID, payment.IdempotencyKey,
		payment.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *postgresPaymentRepository) GetByID(ctx context.Context, paymentID uuid.UUID) (*model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return scanPayment(r.pool.QueryRow(ctx, query, paymentID))
}

func (r *postgresPaymentRepository) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE gateway_order_id = $1`
	return scanPayment(r.pool.QueryRow(ctx, query, gatewayOrderID))
}

func (r *postgresPaymentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE idempotency_key = $1`
	return scanPayment(r.pool.QueryRow(ctx, query, key))
}

func (r *postgresPaymentRepository) GetCapturedByOrder(ctx context.Context, orderID uuid.UUID) (*model.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE order_id = $1 AND status IN ('authorized', 'captured')
		ORDER BY created_at DESC
		LIMIT 1`
	return scanPayment(r.pool.QueryRow(ctx, query, orderID))
}

func (r *postgresPaymentRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	return collectPayments(rows)
}

func (r *postgresPaymentRepository) CountByOrder(ctx context.Context, orderID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM payments WHERE order_id = $1`, orderID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count payments: %w", err)
	}
	return count, nil
}

func (r *postgresPaymentRepository) Update(ctx context.Context, payment *model.Payment) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE payments SET
			gateway_payment_id = $2,
			gateway_signature = $3,
			status = $4,
			error_code = $5,
			error_message = $6,
			refunded_amount = $7,
			paid_at = $8,
			failed_at = $9,
			updated_at = NOW()
		WHERE id = $1`,
		payment.ID, payment.GatewayPaymentID, payment.GatewaySignature,
		payment.Status, payment.ErrorCode, payment.ErrorMessage,
		payment.RefundedAmount, payment.PaidAt, payment.FailedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return model.ErrPaymentNotFound
	}
	return nil
}

func (r *postgresPaymentRepository) ListReconcilable(ctx context.Context, since time.Time, limit int) ([]model.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE status IN ('pending', 'processing')
		  AND gateway_payment_id IS NOT NULL
		  AND created_at >= $1
		ORDER BY created_at ASC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reconcilable payments: %w", err)
	}
	defer rows.Close()

	return collectPayments(rows)
}

func (r *postgresPaymentRepository) GetStats(ctx context.Context, from, to time.Time) (*model.Stats, error) {
	var stats model.Stats
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'captured'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COALESCE(SUM(amount) FILTER (WHERE status = 'captured'), 0),
			COALESCE(SUM(refunded_amount), 0)
		FROM payments
		WHERE created_at >= $1 AND created_at < $2`,
		from, to,
	).Scan(
		&stats.TotalPayments, &stats.CapturedPayments, &stats.FailedPayments,
		&stats.CapturedAmount, &stats.RefundedAmount,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment stats: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM refunds WHERE status IN ('requested', 'approved', 'processing')`,
	).Scan(&stats.PendingRefunds)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending refunds: %w", err)
	}
	return &stats, nil
}

func collectPayments(rows pgx.Rows) ([]model.Payment, error) {
	var payments []model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}
