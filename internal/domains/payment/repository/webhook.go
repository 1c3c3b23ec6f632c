package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"orderflow-backend/internal/domains/payment/model"
)

type postgresWebhookRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresWebhookRepository(pool *pgxpool.Pool) WebhookRepository {
	return &postgresWebhookRepository{pool: pool}
}

// Insert appends the delivery to the audit log. The unique index on
// event_id turns gateway retries into no-op duplicates.
func (r *postgresWebhookRepository) Insert(ctx context.Context, entry *model.WebhookLog) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		INSERT INTO webhook_logs (
			id, event_id, event_type, payment_id, payload, signature,
			verified, processed, received_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, false, NOW())
		ON CONFLICT (event_id) DO NOTHING`,
		entry.ID, entry.EventID, entry.EventType, entry.PaymentID,
		entry.Payload, entry.Signature, entry.Verified,
	)
	if err != nil {
		return false, fmt.Errorf("failed to log webhook: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

func (r *postgresWebhookRepository) MarkProcessed(ctx context.Context, logID uuid.UUID, paymentID *uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE webhook_logs SET processed = true, payment_id = COALESCE($2, payment_id) WHERE id = $1`,
		logID, paymentID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark webhook processed: %w", err)
	}
	return nil
}
