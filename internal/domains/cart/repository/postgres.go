package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"orderflow-backend/internal/domains/cart/model"
	"orderflow-backend/pkg/database"
)

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) RepositoryInterface {
	return &postgresRepository{pool: pool}
}

// ===== CARTS =====

const cartColumns = `
	id, user_id, guest_token, owner_type, status,
	subtotal, discount_total, shipping_total, tax_total, grand_total, item_count,
	applied_coupons, reminder_sent, reminder_sent_at, created_at, updated_at`

func scanCart(row pgx.Row) (*model.Cart, error) {
	var cart model.Cart
	var coupons []byte

	err := row.Scan(
		&cart.ID, &cart.UserID, &cart.GuestToken, &cart.OwnerType, &cart.Status,
		&cart.Subtotal, &cart.DiscountTotal, &cart.ShippingTotal, &cart.TaxTotal,
		&cart.GrandTotal, &cart.ItemCount,
		&coupons, &cart.ReminderSent, &cart.ReminderSentAt,
		&cart.CreatedAt, &cart.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan cart: %w", err)
	}

	if len(coupons) > 0 {
		if err := json.Unmarshal(coupons, &cart.AppliedCoupons); err != nil {
			return nil, fmt.Errorf("failed to decode applied coupons: %w", err)
		}
	}
	return &cart, nil
}

func (r *postgresRepository) GetByID(ctx context.Context, cartID uuid.UUID) (*model.Cart, error) {
	query := `SELECT ` + cartColumns + ` FROM carts WHERE id = $1`
	return scanCart(r.pool.QueryRow(ctx, query, cartID))
}

func (r *postgresRepository) GetActiveByUserID(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	query := `SELECT ` + cartColumns + ` FROM carts WHERE user_id = $1 AND status = 'active'`
	return scanCart(r.pool.QueryRow(ctx, query, userID))
}

func (r *postgresRepository) GetActiveByGuestToken(ctx context.Context, guestToken string) (*model.Cart, error) {
	query := `SELECT ` + cartColumns + ` FROM carts WHERE guest_token = $1 AND status = 'active'`
	return scanCart(r.pool.QueryRow(ctx, query, guestToken))
}

func (r *postgresRepository) Create(ctx context.Context, cart *model.Cart) error {
	coupons, err := json.Marshal(cart.AppliedCoupons)
	if err != nil {
		return fmt.Errorf("failed to encode applied coupons: %w", err)
	}

	query := `
		INSERT INTO carts (
			id, user_id, guest_token, owner_type, status,
			subtotal, discount_total, shipping_total, tax_total, grand_total, item_count,
			applied_coupons, reminder_sent, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())`

	_, err = r.pool.Exec(ctx, query,
		cart.ID, cart.UserID, cart.GuestToken, cart.OwnerType, cart.Status,
		cart.Subtotal, cart.DiscountTotal, cart.ShippingTotal, cart.TaxTotal,
		cart.GrandTotal, cart.ItemCount,
		coupons, cart.ReminderSent,
	)
	if err != nil {
		return fmt.Errorf("failed to create cart: %w", err)
	}
	return nil
}

func (r *postgresRepository) UpdateStatus(ctx context.Context, cartID uuid.UUID, status model.CartStatus) error {
	query := `UPDATE carts SET status = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, cartID, status)
	if err != nil {
		return fmt.Errorf("failed to update cart status: %w", err)
	}
	return nil
}

func (r *postgresRepository) Touch(ctx context.Context, cartID uuid.UUID) error {
	query := `UPDATE carts SET updated_at = NOW() WHERE id = $1 AND status = 'active'`
	_, err := r.pool.Exec(ctx, query, cartID)
	if err != nil {
		return fmt.Errorf("failed to touch cart: %w", err)
	}
	return nil
}

func (r *postgresRepository) UpdateTotals(ctx context.Context, cart *model.Cart) error {
	coupons, err := json.Marshal(cart.AppliedCoupons)
	if err != nil {
		return fmt.Errorf("failed to encode applied coupons: %w", err)
	}

	query := `
		UPDATE carts SET
			subtotal = $2, discount_total = $3, shipping_total = $4,
			tax_total = $5, grand_total = $6, item_count = $7,
			applied_coupons = $8, updated_at = NOW()
		WHERE id = $1`

	_, err = r.pool.Exec(ctx, query,
		cart.ID, cart.Subtotal, cart.DiscountTotal, cart.ShippingTotal,
		cart.TaxTotal, cart.GrandTotal, cart.ItemCount, coupons,
	)
	if err != nil {
		return fmt.Errorf("failed to update cart totals: %w", err)
	}
	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, cartID uuid.UUID) error {
	// cart_items cascade on the FK
	query := `DELETE FROM carts WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, cartID)
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}

// ===== ITEMS =====

const itemColumns = `
	id, cart_id, product_id, variant_id, bundle_id,
	quantity, unit_price, unit_mrp, line_discount, line_total, is_free_gift,
	price_snapshot, product_status, price_changed, price_change,
	created_at, updated_at`

func scanItem(row pgx.Row) (*model.CartItem, error) {
	var item model.CartItem
	var snapshot, status, change []byte

	err := row.Scan(
		&item.ID, &item.CartID, &item.ProductID, &item.VariantID, &item.BundleID,
		&item.Quantity, &item.UnitPrice, &item.UnitMRP, &item.LineDiscount,
		&item.LineTotal, &item.IsFreeGift,
		&snapshot, &status, &item.PriceChanged, &change,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan cart item: %w", err)
	}

	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &item.PriceSnapshot); err != nil {
			return nil, fmt.Errorf("failed to decode price snapshot: %w", err)
		}
	}
	if len(status) > 0 {
		if err := json.Unmarshal(status, &item.ProductStatus); err != nil {
			return nil, fmt.Errorf("failed to decode product status: %w", err)
		}
	}
	if len(change) > 0 {
		if err := json.Unmarshal(change, &item.PriceChange); err != nil {
			return nil, fmt.Errorf("failed to decode price change: %w", err)
		}
	}
	return &item, nil
}

func (r *postgresRepository) GetItems(ctx context.Context, cartID uuid.UUID) ([]model.CartItem, error) {
	query := `SELECT ` + itemColumns + ` FROM cart_items WHERE cart_id = $1 ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	var items []model.CartItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (r *postgresRepository) GetItemByID(ctx context.Context, itemID uuid.UUID) (*model.CartItem, error) {
	query := `SELECT ` + itemColumns + ` FROM cart_items WHERE id = $1`
	return scanItem(r.pool.QueryRow(ctx, query, itemID))
}

// UpsertItem inserts a line or coalesces into the existing one.
// The partial unique index on (cart_id, variant_id, bundle_id) makes two
// concurrent adds of the same variant land on a single row.
func (r *postgresRepository) UpsertItem(ctx context.Context, item *model.CartItem) (*model.CartItem, error) {
	snapshot, err := json.Marshal(item.PriceSnapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to encode price snapshot: %w", err)
	}
	status, err := json.Marshal(item.ProductStatus)
	if err != nil {
		return nil, fmt.Errorf("failed to encode product status: %w", err)
	}

	query := `
		INSERT INTO cart_items (
			id, cart_id, product_id, variant_id, bundle_id,
			quantity, unit_price, unit_mrp, line_discount, line_total, is_free_gift,
			price_snapshot, product_status, price_changed,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, false, NOW(), NOW())
		ON CONFLICT (cart_id, variant_id, COALESCE(bundle_id, '00000000-0000-0000-0000-000000000000'::uuid))
		DO UPDATE SET
			quantity   = cart_items.quantity + EXCLUDED.quantity,
			line_total = cart_items.unit_price * (cart_items.quantity + EXCLUDED.quantity) - cart_items.line_discount,
			updated_at = NOW()
		RETURNING ` + itemColumns

	return scanItem(r.pool.QueryRow(ctx, query,
		item.ID, item.CartID, item.ProductID, item.VariantID, item.BundleID,
		item.Quantity, item.UnitPrice, item.UnitMRP, item.LineDiscount,
		item.LineTotal, item.IsFreeGift,
		snapshot, status,
	))
}

func (r *postgresRepository) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error {
	query := `
		UPDATE cart_items SET
			quantity = $2,
			line_total = GREATEST(unit_price * $2 - line_discount, 0),
			updated_at = NOW()
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, itemID, quantity)
	if err != nil {
		return fmt.Errorf("failed to update item quantity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrItemNotFound
	}
	return nil
}

// UpdateItemPricing rewrites the pricing fields after a revalidation pass.
func (r *postgresRepository) UpdateItemPricing(ctx context.Context, item *model.CartItem) error {
	snapshot, err := json.Marshal(item.PriceSnapshot)
	if err != nil {
		return fmt.Errorf("failed to encode price snapshot: %w", err)
	}
	status, err := json.Marshal(item.ProductStatus)
	if err != nil {
		return fmt.Errorf("failed to encode product status: %w", err)
	}
	var change []byte
	if item.PriceChange != nil {
		change, err = json.Marshal(item.PriceChange)
		if err != nil {
			return fmt.Errorf("failed to encode price change: %w", err)
		}
	}

	query := `
		UPDATE cart_items SET
			unit_price = $2, unit_mrp = $3, line_discount = $4, line_total = $5,
			price_snapshot = $6, product_status = $7,
			price_changed = $8, price_change = $9,
			updated_at = NOW()
		WHERE id = $1`

	_, err = r.pool.Exec(ctx, query,
		item.ID, item.UnitPrice, item.UnitMRP, item.LineDiscount, item.LineTotal,
		snapshot, status, item.PriceChanged, change,
	)
	if err != nil {
		return fmt.Errorf("failed to update item pricing: %w", err)
	}
	return nil
}

func (r *postgresRepository) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	query := `DELETE FROM cart_items WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, itemID)
	if err != nil {
		return fmt.Errorf("failed to delete cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrItemNotFound
	}
	return nil
}

func (r *postgresRepository) ClearItems(ctx context.Context, cartID uuid.UUID) (int, error) {
	query := `DELETE FROM cart_items WHERE cart_id = $1`
	tag, err := r.pool.Exec(ctx, query, cartID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear cart items: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ===== MERGE =====

func (r *postgresRepository) Reparent(ctx context.Context, cartID, userID uuid.UUID) error {
	query := `
		UPDATE carts SET
			user_id = $2, guest_token = NULL, owner_type = 'user', updated_at = NOW()
		WHERE id = $1 AND status = 'active'`

	tag, err := r.pool.Exec(ctx, query, cartID, userID)
	if err != nil {
		return fmt.Errorf("failed to reparent cart: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrCartNotActive
	}
	return nil
}

// ApplyMerge commits a merge plan in one transaction. Either the whole
// guest cart migrates or both carts stay untouched.
func (r *postgresRepository) ApplyMerge(ctx context.Context, plan *MergePlan) error {
	return database.WithTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		for i := range plan.UpdateLines {
			line := &plan.UpdateLines[i]
			snapshot, err := json.Marshal(line.PriceSnapshot)
			if err != nil {
				return fmt.Errorf("failed to encode price snapshot: %w", err)
			}
			status, err := json.Marshal(line.ProductStatus)
			if err != nil {
				return fmt.Errorf("failed to encode product status: %w", err)
			}

			_, err = tx.Exec(ctx, `
				UPDATE cart_items SET
					quantity = $2, unit_price = $3, unit_mrp = $4,
					line_discount = $5, line_total = $6,
					price_snapshot = $7, product_status = $8, updated_at = NOW()
				WHERE id = $1`,
				line.ID, line.Quantity, line.UnitPrice, line.UnitMRP,
				line.LineDiscount, line.LineTotal, snapshot, status,
			)
			if err != nil {
				return fmt.Errorf("failed to update merged line: %w", err)
			}
		}

		for i := range plan.InsertLines {
			line := &plan.InsertLines[i]
			_, err := tx.Exec(ctx, `
				UPDATE cart_items SET cart_id = $2, updated_at = NOW() WHERE id = $1`,
				line.ID, plan.UserCart.ID,
			)
			if err != nil {
				return fmt.Errorf("failed to move guest line: %w", err)
			}
		}

		if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, plan.GuestCartID); err != nil {
			return fmt.Errorf("failed to delete guest items: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM carts WHERE id = $1`, plan.GuestCartID); err != nil {
			return fmt.Errorf("failed to delete guest cart: %w", err)
		}

		coupons, err := json.Marshal(plan.UserCart.AppliedCoupons)
		if err != nil {
			return fmt.Errorf("failed to encode applied coupons: %w", err)
		}
		_, err = tx.Exec(ctx, `
			UPDATE carts SET
				subtotal = $2, discount_total = $3, shipping_total = $4,
				tax_total = $5, grand_total = $6, item_count = $7,
				applied_coupons = $8, updated_at = NOW()
			WHERE id = $1`,
			plan.UserCart.ID, plan.UserCart.Subtotal, plan.UserCart.DiscountTotal,
			plan.UserCart.ShippingTotal, plan.UserCart.TaxTotal,
			plan.UserCart.GrandTotal, plan.UserCart.ItemCount, coupons,
		)
		if err != nil {
			return fmt.Errorf("failed to update merged totals: %w", err)
		}
		return nil
	})
}

// ===== WORKER QUERIES =====

func (r *postgresRepository) MarkAbandonedIdleSince(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	query := `
		UPDATE carts SET status = 'abandoned', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM carts
			WHERE status = 'active' AND updated_at < $1
			LIMIT $2
		)`

	tag, err := r.pool.Exec(ctx, query, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to mark carts abandoned: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *postgresRepository) DeleteAbandonedBefore(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	query := `
		DELETE FROM carts
		WHERE id IN (
			SELECT id FROM carts
			WHERE status = 'abandoned' AND updated_at < $1
			LIMIT $2
		)`

	tag, err := r.pool.Exec(ctx, query, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to delete abandoned carts: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *postgresRepository) ListForReminder(ctx context.Context, idleAfter, idleBefore time.Time, limit int) ([]model.Cart, error) {
	query := `SELECT ` + cartColumns + ` FROM carts
		WHERE status = 'active'
		  AND reminder_sent = false
		  AND user_id IS NOT NULL
		  AND item_count > 0
		  AND updated_at < $1
		  AND updated_at > $2
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, idleAfter, idleBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query reminder carts: %w", err)
	}
	defer rows.Close()

	var carts []model.Cart
	for rows.Next() {
		cart, err := scanCart(rows)
		if err != nil {
			return nil, err
		}
		carts = append(carts, *cart)
	}
	return carts, rows.Err()
}

func (r *postgresRepository) MarkReminderSent(ctx context.Context, cartID uuid.UUID, at time.Time) error {
	query := `UPDATE carts SET reminder_sent = true, reminder_sent_at = $2 WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, cartID, at)
	if err != nil {
		return fmt.Errorf("failed to mark reminder sent: %w", err)
	}
	return nil
}

func (r *postgresRepository) ListActiveCartIDs(ctx context.Context, checkedBefore time.Time, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT DISTINCT c.id
		FROM carts c
		JOIN cart_items i ON i.cart_id = c.id
		WHERE c.status = 'active'
		  AND (i.product_status IS NULL OR (i.product_status->>'lastCheckedAt')::timestamptz < $1)
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, checkedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query carts for revalidation: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan cart id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
