package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Coupon mirrors a row in the coupons table.
type Coupon struct {
	ID          uuid.UUID
	Code        string
	Kind        string
	Value       int64
	PercentBps  int32
	MinPurchase *int64
	MaxDiscount *int64
	ValidFrom   time.Time
	ValidTo     time.Time
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const couponColumns = `id, code, kind, value, percent_bps, min_purchase, max_discount,
	valid_from, valid_to, is_active, created_at, updated_at`

func scanCoupon(row pgx.Row) (Coupon, error) {
	var c Coupon
	err := row.Scan(&c.ID, &c.Code, &c.Kind, &c.Value, &c.PercentBps, &c.MinPurchase, &c.MaxDiscount,
		&c.ValidFrom, &c.ValidTo, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return c, mapErr(err)
}

// GetCouponByCode fetches a coupon case-insensitively by code.
func (s *Store) GetCouponByCode(ctx context.Context, code string) (Coupon, error) {
	return scanCoupon(s.pool.QueryRow(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE LOWER(code) = LOWER($1)`, code))
}

// ListActiveCoupons returns coupons currently inside their validity window.
func (s *Store) ListActiveCoupons(ctx context.Context, now time.Time) ([]Coupon, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+couponColumns+` FROM coupons
		 WHERE is_active AND valid_from <= $1 AND valid_to >= $1
		 ORDER BY valid_to`,
		now)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, mapErr(rows.Err())
}

// ListCoupons returns all coupons for the admin view.
func (s *Store) ListCoupons(ctx context.Context, limit, offset int) ([]Coupon, int64, error) {
	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM coupons`).Scan(&total); err != nil {
		return nil, 0, mapErr(err)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+couponColumns+` FROM coupons ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	defer rows.Close()

	var out []Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, mapErr(rows.Err())
}

// CouponParams carries admin-supplied coupon attributes.
type CouponParams struct {
	Code        string
	Kind        string
	Value       int64
	PercentBps  int32
	MinPurchase *int64
	MaxDiscount *int64
	ValidFrom   time.Time
	ValidTo     time.Time
	IsActive    bool
}

// CreateCoupon inserts a coupon.
func (s *Store) CreateCoupon(ctx context.Context, params CouponParams) (Coupon, error) {
	return scanCoupon(s.pool.QueryRow(ctx,
		`INSERT INTO coupons (code, kind, value, percent_bps, min_purchase, max_discount, valid_from, valid_to, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING `+couponColumns,
		params.Code, params.Kind, params.Value, params.PercentBps, params.MinPurchase,
		params.MaxDiscount, params.ValidFrom, params.ValidTo, params.IsActive))
}

// UpdateCoupon overwrites coupon attributes.
func (s *Store) UpdateCoupon(ctx context.Context, id uuid.UUID, params CouponParams) (Coupon, error) {
	return scanCoupon(s.pool.QueryRow(ctx,
		`UPDATE coupons SET code = $2, kind = $3, value = $4, percent_bps = $5, min_purchase = $6,
		 max_discount = $7, valid_from = $8, valid_to = $9, is_active = $10, updated_at = now()
		 WHERE id = $1
		 RETURNING `+couponColumns,
		id, params.Code, params.Kind, params.Value, params.PercentBps, params.MinPurchase,
		params.MaxDiscount, params.ValidFrom, params.ValidTo, params.IsActive))
}

// DeleteCoupon removes a coupon.
func (s *Store) DeleteCoupon(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM coupons WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
