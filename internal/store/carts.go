package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Cart mirrors a row in the carts table.
type Cart struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	AppliedCouponCode *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CartItem mirrors a row in the cart_items table.
type CartItem struct {
	ID        uuid.UUID
	CartID    uuid.UUID
	ProductID uuid.UUID
	Qty       int32
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GetOrCreateCart returns the user's cart, creating it when missing.
func (s *Store) GetOrCreateCart(ctx context.Context, userID uuid.UUID) (Cart, error) {
	var c Cart
	err := s.pool.QueryRow(ctx,
		`INSERT INTO carts (user_id) VALUES ($1)
		 ON CONFLICT (user_id) DO UPDATE SET updated_at = carts.updated_at
		 RETURNING id, user_id, applied_coupon_code, created_at, updated_at`,
		userID).
		Scan(&c.ID, &c.UserID, &c.AppliedCouponCode, &c.CreatedAt, &c.UpdatedAt)
	return c, mapErr(err)
}

// ListCartItems returns the items of a cart, oldest first.
func (s *Store) ListCartItems(ctx context.Context, cartID uuid.UUID) ([]CartItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, cart_id, product_id, qty, created_at, updated_at
		 FROM cart_items WHERE cart_id = $1 ORDER BY created_at`,
		cartID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []CartItem
	for rows.Next() {
		var item CartItem
		if err := rows.Scan(&item.ID, &item.CartID, &item.ProductID, &item.Qty, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, item)
	}
	return out, mapErr(rows.Err())
}

// UpsertCartItem adds a product to a cart or bumps its quantity.
func (s *Store) UpsertCartItem(ctx context.Context, cartID, productID uuid.UUID, qty int32) (CartItem, error) {
	var item CartItem
	err := s.pool.QueryRow(ctx,
		`INSERT INTO cart_items (cart_id, product_id, qty) VALUES ($1, $2, $3)
		 ON CONFLICT (cart_id, product_id)
		 DO UPDATE SET qty = cart_items.qty + EXCLUDED.qty, updated_at = now()
		 RETURNING id, cart_id, product_id, qty, created_at, updated_at`,
		cartID, productID, qty).
		Scan(&item.ID, &item.CartID, &item.ProductID, &item.Qty, &item.CreatedAt, &item.UpdatedAt)
	return item, mapErr(err)
}

// SetCartItemQty replaces the quantity for a cart item.
func (s *Store) SetCartItemQty(ctx context.Context, cartID, productID uuid.UUID, qty int32) (CartItem, error) {
	var item CartItem
	err := s.pool.QueryRow(ctx,
		`UPDATE cart_items SET qty = $3, updated_at = now()
		 WHERE cart_id = $1 AND product_id = $2
		 RETURNING id, cart_id, product_id, qty, created_at, updated_at`,
		cartID, productID, qty).
		Scan(&item.ID, &item.CartID, &item.ProductID, &item.Qty, &item.CreatedAt, &item.UpdatedAt)
	return item, mapErr(err)
}

// RemoveCartItem deletes one product from the cart.
func (s *Store) RemoveCartItem(ctx context.Context, cartID, productID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`, cartID, productID)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearCart removes every item and any applied coupon.
func (s *Store) ClearCart(ctx context.Context, cartID uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return mapErr(err)
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE carts SET applied_coupon_code = NULL, updated_at = now() WHERE id = $1`, cartID)
	return mapErr(err)
}

// SetCartCoupon records or clears the coupon applied to the cart.
func (s *Store) SetCartCoupon(ctx context.Context, cartID uuid.UUID, code *string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE carts SET applied_coupon_code = $2, updated_at = now() WHERE id = $1`, cartID, code)
	return mapErr(err)
}
