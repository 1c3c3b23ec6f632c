package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"orderflow-backend/internal/domains/cart/model"
)

type couponRepository struct {
	pool *pgxpool.Pool
}

func NewCouponRepository(pool *pgxpool.Pool) CouponRepositoryInterface {
	return &couponRepository{pool: pool}
}

func (r *couponRepository) GetByCode(ctx context.Context, code string) (*model.Coupon, error) {
	query := `
		SELECT id, code, type, value, min_order_amount, max_discount,
		       usage_limit, per_user_limit, starts_at, ends_at, is_active,
		       created_at, updated_at
		FROM coupons
		WHERE UPPER(code) = $1`

	var coupon model.Coupon
	err := r.pool.QueryRow(ctx, query, strings.ToUpper(code)).Scan(
		&coupon.ID, &coupon.Code, &coupon.Type, &coupon.Value,
		&coupon.MinOrderAmount, &coupon.MaxDiscount,
		&coupon.UsageLimit, &coupon.PerUserLimit,
		&coupon.StartsAt, &coupon.EndsAt, &coupon.IsActive,
		&coupon.CreatedAt, &coupon.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}
	return &coupon, nil
}

func (r *couponRepository) CountUsage(ctx context.Context, couponID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM coupon_usages WHERE coupon_id = $1`
	if err := r.pool.QueryRow(ctx, query, couponID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count coupon usage: %w", err)
	}
	return count, nil
}

func (r *couponRepository) CountUserUsage(ctx context.Context, couponID, userID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM coupon_usages WHERE coupon_id = $1 AND user_id = $2`
	if err := r.pool.QueryRow(ctx, query, couponID, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count user coupon usage: %w", err)
	}
	return count, nil
}

func (r *couponRepository) RecordUsage(ctx context.Context, couponID, userID, orderID uuid.UUID) error {
	query := `
		INSERT INTO coupon_usages (id, coupon_id, user_id, order_id, used_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (coupon_id, order_id) DO NOTHING`

	_, err := r.pool.Exec(ctx, query, uuid.New(), couponID, userID, orderID)
	if err != nil {
		return fmt.Errorf("failed to record coupon usage: %w", err)
	}
	return nil
}
