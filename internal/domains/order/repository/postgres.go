package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"orderflow-backend/internal/domains/order/model"
	"orderflow-backend/pkg/database"
)

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) OrderRepository {
	return &postgresRepository{pool: pool}
}

// ===== ORDERS =====

const orderColumns = `
	id, order_number, user_id, customer, shipping_address, billing_address,
	shipping_method, totals, payment_method,
	status, payment_status, fulfillment_status, cancel_reason,
	tracking_carrier, tracking_number, shipped_at, delivered_at, confirmed_at,
	reservation_id, version, created_at, updated_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	var customer, shipAddr, billAddr, method, totals, payMethod []byte

	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &customer, &shipAddr, &billAddr,
		&method, &totals, &payMethod,
		&o.Status, &o.PaymentStatus, &o.FulfillmentStatus, &o.CancelReason,
		&o.TrackingCarrier, &o.TrackingNumber, &o.ShippedAt, &o.DeliveredAt, &o.ConfirmedAt,
		&o.ReservationID, &o.Version, &o.CreatedAt, &o.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}

	for _, pair := range []struct {
		data []byte
		dest interface{}
	}{
		{customer, &o.Customer},
		{shipAddr, &o.ShippingAddress},
		{billAddr, &o.BillingAddress},
		{method, &o.ShippingMethod},
		{totals, &o.Totals},
		{payMethod, &o.PaymentMethod},
	} {
		if len(pair.data) > 0 {
			if err := json.Unmarshal(pair.data, pair.dest); err != nil {
				return nil, fmt.Errorf("failed to decode order snapshot: %w", err)
			}
		}
	}
	return &o, nil
}

func (r *postgresRepository) Create(ctx context.Context, order *model.Order, items []model.OrderItem, history []model.StatusHistory) error {
	customer, err := json.Marshal(order.Customer)
	if err != nil {
		return fmt.Errorf("failed to encode customer snapshot: %w", err)
	}
	shipAddr, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("failed to encode shipping address: %w", err)
	}
	billAddr, err := json.Marshal(order.BillingAddress)
	if err != nil {
		return fmt.Errorf("failed to encode billing address: %w", err)
	}
	method, err := json.Marshal(order.ShippingMethod)
	if err != nil {
		return fmt.Errorf("failed to encode shipping method: %w", err)
	}
	totals, err := json.Marshal(order.Totals)
	if err != nil {
		return fmt.Errorf("failed to encode totals: %w", err)
	}
	payMethod, err := json.Marshal(order.PaymentMethod)
	if err != nil {
		return fmt.Errorf("failed to encode payment method: %w", err)
	}

	return database.WithTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO orders (
				id, order_number, user_id, customer, shipping_address, billing_address,
				shipping_method, totals, payment_method,
				status, payment_status, fulfillment_status,
				reservation_id, version, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 1, NOW(), NOW())`,
			order.ID, order.OrderNumber, order.UserID, customer, shipAddr, billAddr,
			method, totals, payMethod,
			order.Status, order.PaymentStatus, order.FulfillmentStatus,
			order.ReservationID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}

		for i := range items {
			item := &items[i]
			_, err := tx.Exec(ctx, `
				INSERT INTO order_items (
					id, order_id, product_id, variant_id, bundle_id,
					sku, name, image_url, hsn_code,
					quantity, quantity_fulfilled, quantity_returned, quantity_refunded,
					unit_price, unit_mrp, line_discount, line_tax, line_total, is_free_gift,
					created_at, updated_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, 0, 0, $11, $12, $13, $14, $15, $16, NOW(), NOW())`,
				item.ID, order.ID, item.ProductID, item.VariantID, item.BundleID,
				item.SKU, item.Name, item.ImageURL, item.HSNCode,
				item.Quantity,
				item.UnitPrice, item.UnitMRP, item.LineDiscount, item.LineTax,
				item.LineTotal, item.IsFreeGift,
			)
			if err != nil {
				return fmt.Errorf("failed to insert order item: %w", err)
			}
		}

		for i := range history {
			if err := insertHistory(ctx, tx, &history[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *postgresRepository) GetByID(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return scanOrder(r.pool.QueryRow(ctx, query, orderID))
}

func (r *postgresRepository) GetByNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_number = $1`
	return scanOrder(r.pool.QueryRow(ctx, query, orderNumber))
}

func (r *postgresRepository) ListByUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]model.Order, int, error) {
	filter := ListFilter{UserID: &userID, Page: page, Limit: limit}
	return r.List(ctx, filter)
}

func (r *postgresRepository) List(ctx context.Context, filter ListFilter) ([]model.Order, int, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	offset := (filter.Page - 1) * filter.Limit

	where := "WHERE 1=1"
	args := []interface{}{}
	idx := 1
	if filter.UserID != nil {
		where += fmt.Sprintf(" AND user_id = $%d", idx)
		args = append(args, *filter.UserID)
		idx++
	}
	if filter.Status != nil {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, *filter.Status)
		idx++
	}
	if filter.PaymentStatus != nil {
		where += fmt.Sprintf(" AND payment_status = $%d", idx)
		args = append(args, *filter.PaymentStatus)
		idx++
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM orders " + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM orders %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		orderColumns, where, idx, idx+1)
	args = append(args, filter.Limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, *order)
	}
	return orders, total, rows.Err()
}

// UpdateCAS persists the mutable status fields. The version predicate
// makes concurrent transitions lose cleanly instead of interleaving.
func (r *postgresRepository) UpdateCAS(ctx context.Context, order *model.Order) (bool, error) {
	query := `
		UPDATE orders SET
			status = $3, payment_status = $4, fulfillment_status = $5,
			cancel_reason = $6, tracking_carrier = $7, tracking_number = $8,
			shipped_at = $9, delivered_at = $10, confirmed_at = $11,
			version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2`

	tag, err := r.pool.Exec(ctx, query,
		order.ID, order.Version,
		order.Status, order.PaymentStatus, order.FulfillmentStatus,
		order.CancelReason, order.TrackingCarrier, order.TrackingNumber,
		order.ShippedAt, order.DeliveredAt, order.ConfirmedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	order.Version++
	return true, nil
}

// ===== ITEMS =====

const itemColumns = `
	id, order_id, product_id, variant_id, bundle_id,
	sku, name, image_url, hsn_code,
	quantity, quantity_fulfilled, quantity_returned, quantity_refunded,
	unit_price, unit_mrp, line_discount, line_tax, line_total, is_free_gift,
	created_at, updated_at`

func (r *postgresRepository) GetItems(ctx context.Context, orderID uuid.UUID) ([]model.OrderItem, error) {
	query := `SELECT ` + itemColumns + ` FROM order_items WHERE order_id = $1 ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []model.OrderItem
	for rows.Next() {
		var i model.OrderItem
		err := rows.Scan(
			&i.ID, &i.OrderID, &i.ProductID, &i.VariantID, &i.BundleID,
			&i.SKU, &i.Name, &i.ImageURL, &i.HSNCode,
			&i.Quantity, &i.QuantityFulfilled, &i.QuantityReturned, &i.QuantityRefunded,
			&i.UnitPrice, &i.UnitMRP, &i.LineDiscount, &i.LineTax, &i.LineTotal, &i.IsFreeGift,
			&i.CreatedAt, &i.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

// UpdateItemCounters writes the fulfillment counters with the
// invariants enforced at the database layer as well.
func (r *postgresRepository) UpdateItemCounters(ctx context.Context, item *model.OrderItem) error {
	query := `
		UPDATE order_items SET
			quantity_fulfilled = $2, quantity_returned = $3, quantity_refunded = $4,
			updated_at = NOW()
		WHERE id = $1
		  AND $2 <= quantity AND $3 <= $2 AND $4 <= quantity`

	tag, err := r.pool.Exec(ctx, query,
		item.ID, item.QuantityFulfilled, item.QuantityReturned, item.QuantityRefunded,
	)
	if err != nil {
		return fmt.Errorf("failed to update item counters: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("item counter update violates fulfillment invariants")
	}
	return nil
}

// ===== HISTORY =====

func insertHistory(ctx context.Context, tx pgx.Tx, entry *model.StatusHistory) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO order_status_history (
			id, order_id, type, from_status, to_status, changed_by, actor_id, reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`,
		entry.ID, entry.OrderID, entry.Type, entry.FromStatus, entry.ToStatus,
		entry.ChangedBy, entry.ActorID, entry.Reason,
	)
	if err != nil {
		return fmt.Errorf("failed to insert status history: %w", err)
	}
	return nil
}

func (r *postgresRepository) AppendHistory(ctx context.Context, entry *model.StatusHistory) error {
	query := `
		INSERT INTO order_status_history (
			id, order_id, type, from_status, to_status, changed_by, actor_id, reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`

	_, err := r.pool.Exec(ctx, query,
		entry.ID, entry.OrderID, entry.Type, entry.FromStatus, entry.ToStatus,
		entry.ChangedBy, entry.ActorID, entry.Reason,
	)
	if err != nil {
		return fmt.Errorf("failed to append status history: %w", err)
	}
	return nil
}

func (r *postgresRepository) ListHistory(ctx context.Context, orderID uuid.UUID) ([]model.StatusHistory, error) {
	query := `
		SELECT id, order_id, type, from_status, to_status, changed_by, actor_id, reason, created_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query status history: %w", err)
	}
	defer rows.Close()

	var history []model.StatusHistory
	for rows.Next() {
		var h model.StatusHistory
		err := rows.Scan(
			&h.ID, &h.OrderID, &h.Type, &h.FromStatus, &h.ToStatus,
			&h.ChangedBy, &h.ActorID, &h.Reason, &h.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan status history: %w", err)
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

// ===== WORKER QUERIES =====

func (r *postgresRepository) ListAutoConfirmable(ctx context.Context, olderThan time.Time, limit int) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
		WHERE status = 'pending'
		  AND payment_status IN ('captured', 'authorized', 'paid')
		  AND updated_at < $1
		LIMIT $2`

	return r.queryOrders(ctx, query, olderThan, limit)
}

func (r *postgresRepository) ListDeliveredWithoutInvoice(ctx context.Context, limit int) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders o
		WHERE o.status = 'delivered'
		  AND NOT EXISTS (SELECT 1 FROM invoices i WHERE i.order_id = o.id)
		LIMIT $1`

	return r.queryOrders(ctx, query, limit)
}

func (r *postgresRepository) queryOrders(ctx context.Context, query string, args ...interface{}) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}
