package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"orderflow-backend/internal/domains/invoice/model"
)

// RepositoryInterface defines invoice persistence.
type RepositoryInterface interface {
	Create(ctx context.Context, invoice *model.Invoice) error
	GetByID(ctx context.Context, invoiceID uuid.UUID) (*model.Invoice, error)
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*model.Invoice, error)
	ListByUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]model.Invoice, int, error)
	// UpdateArtifact swaps the rendered file and refreshes the lines
	// after a regeneration. The invoice number never changes.
	UpdateArtifact(ctx context.Context, invoice *model.Invoice) error
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) RepositoryInterface {
	return &postgresRepository{pool: pool}
}

const invoiceColumns = `
	id, invoice_number, order_id, order_number, user_id,
	lines, billing_address, totals, storage_key, generated_by,
	generated_at, regenerated_at, created_at, updated_at`

func scanInvoice(row pgx.Row) (*model.Invoice, error) {
	var inv model.Invoice
	var lines, billing, totals []byte

	err := row.Scan(
		&inv.ID, &inv.InvoiceNumber, &inv.OrderID, &inv.OrderNumber, &inv.UserID,
		&lines, &billing, &totals, &inv.StorageKey, &inv.GeneratedBy,
		&inv.GeneratedAt, &inv.RegeneratedAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan invoice: %w", err)
	}

	if len(lines) > 0 {
		if err := json.Unmarshal(lines, &inv.Lines); err != nil {
			return nil, fmt.Errorf("failed to decode invoice lines: %w", err)
		}
	}
	if len(billing) > 0 {
		if err := json.Unmarshal(billing, &inv.BillingAddress); err != nil {
			return nil, fmt.Errorf("failed to decode billing address: %w", err)
		}
	}
	if len(totals) > 0 {
		if err := json.Unmarshal(totals, &inv.Totals); err != nil {
			return nil, fmt.Errorf("failed to decode invoice totals: %w", err)
		}
	}
	return &inv, nil
}

func (r *postgresRepository) Create(ctx context.Context, invoice *model.Invoice) error {
	lines, err := json.Marshal(invoice.Lines)
	if err != nil {
		return fmt.Errorf("failed to encode invoice lines: %w", err)
	}
	billing, err := json.Marshal(invoice.BillingAddress)
	if err != nil {
		return fmt.Errorf("failed to encode billing address: %w", err)
	}
	totals, err := json.Marshal(invoice.Totals)
	if err != nil {
		return fmt.Errorf("failed to encode invoice totals: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO invoices (
			id, invoice_number, order_id, order_number, user_id,
			lines, billing_address, totals, storage_key, generated_by,
			generated_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW(), NOW())`,
		invoice.ID, invoice.InvoiceNumber, invoice.OrderID, invoice.OrderNumber, invoice.UserID,
		lines, billing, totals, invoice.StorageKey, invoice.GeneratedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, invoiceID uuid.UUID) (*model.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	return scanInvoice(r.pool.QueryRow(ctx, query, invoiceID))
}

func (r *postgresRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*model.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE order_id = $1`
	return scanInvoice(r.pool.QueryRow(ctx, query, orderID))
}

func (r *postgresRepository) ListByUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]model.Invoice, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM invoices WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count invoices: %w", err)
	}

	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE user_id = $1
		ORDER BY generated_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []model.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		invoices = append(invoices, *inv)
	}
	return invoices, total, rows.Err()
}

func (r *postgresRepository) UpdateArtifact(ctx context.Context, invoice *model.Invoice) error {
	lines, err := json.Marshal(invoice.Lines)
	if err != nil {
		return fmt.Errorf("failed to encode invoice lines: %w", err)
	}

	result, err := r.pool.Exec(ctx, `
		UPDATE invoices SET
			lines = $2,
			storage_key = $3,
			generated_by = $4,
			regenerated_at = NOW(),
			updated_at = NOW()
		WHERE id = $1`,
		invoice.ID, lines, invoice.StorageKey, invoice.GeneratedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to update invoice artifact: %w", err)
	}
	if result.RowsAffected() == 0 {
		return model.ErrInvoiceNotFound
	}
	return nil
}
