package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// =====================================================
// DURABLE NUMBER SEQUENCES
// =====================================================
// Human-readable document numbers (ORD-2026-000042) are drawn from a
// per-kind per-year counter stored in Postgres, so numbers survive
// restarts and stay unique across replicas.

const (
	KindOrder   = "ORD"
	KindRefund  = "REF"
	KindReturn  = "RET"
	KindInvoice = "INV"
)

// Generator allocates document numbers from the number_sequences table.
type Generator struct {
	pool *pgxpool.Pool
	loc  *time.Location
}

func NewGenerator(pool *pgxpool.Pool, loc *time.Location) *Generator {
	if loc == nil {
		loc = time.UTC
	}
	return &Generator{pool: pool, loc: loc}
}

// Next allocates the next number for kind in the current business year.
// The upsert increments atomically; concurrent callers each get a
// distinct value.
func (g *Generator) Next(ctx context.Context, kind string) (string, error) {
	year := time.Now().In(g.loc).Year()

	query := `
		INSERT INTO number_sequences (kind, year, value)
		VALUES ($1, $2, 1)
		ON CONFLICT (kind, year)
		DO UPDATE SET value = number_sequences.value + 1
		RETURNING value
	`

	var value int64
	if err := g.pool.QueryRow(ctx, query, kind, year).Scan(&value); err != nil {
		return "", fmt.Errorf("failed to allocate %s sequence: %w", kind, err)
	}

	return Format(kind, year, value), nil
}

// Format renders a document number: KIND-YYYY-NNNNNN, zero-padded to 6 digits.
func Format(kind string, year int, value int64) string {
	return fmt.Sprintf("%s-%d-%06d", kind, year, value)
}
