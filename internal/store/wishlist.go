package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// WishlistEntry joins a wishlist row with its product.
type WishlistEntry struct {
	Product Product
	AddedAt time.Time
}

// ListWishlist returns the user's wishlist, newest first.
func (s *Store) ListWishlist(ctx context.Context, userID uuid.UUID) ([]WishlistEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT p.id, p.category_id, p.brand_id, p.name, p.slug, p.description, p.price, p.sale_price,
			p.flash_sale_price, p.flash_sale_start, p.flash_sale_end, p.stock, p.image_url, p.is_active,
			p.rating_sum, p.rating_count, p.created_at, p.updated_at, w.created_at
		 FROM wishlists w
		 JOIN products p ON p.id = w.product_id
		 WHERE w.user_id = $1
		 ORDER BY w.created_at DESC`,
		userID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []WishlistEntry
	for rows.Next() {
		var e WishlistEntry
		p := &e.Product
		if err := rows.Scan(&p.ID, &p.CategoryID, &p.BrandID, &p.Name, &p.Slug, &p.Description,
			&p.Price, &p.SalePrice, &p.FlashSalePrice, &p.FlashSaleStart, &p.FlashSaleEnd,
			&p.Stock, &p.ImageURL, &p.IsActive, &p.RatingSum, &p.RatingCount,
			&p.CreatedAt, &p.UpdatedAt, &e.AddedAt); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, e)
	}
	return out, mapErr(rows.Err())
}

// AddToWishlist stores a product on the user's wishlist. Adding twice is a no-op.
func (s *Store) AddToWishlist(ctx context.Context, userID, productID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO wishlists (user_id, product_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, productID)
	return mapErr(err)
}

// RemoveFromWishlist deletes a product from the user's wishlist.
func (s *Store) RemoveFromWishlist(ctx context.Context, userID, productID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM wishlists WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
