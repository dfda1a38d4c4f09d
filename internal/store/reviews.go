package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Review mirrors a row in the reviews table.
type Review struct {
	ID           uuid.UUID
	ProductID    uuid.UUID
	UserID       uuid.UUID
	Rating       int32
	Comment      string
	IsApproved   bool
	HelpfulCount int32
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const reviewColumns = `id, product_id, user_id, rating, comment, is_approved, helpful_count, created_at, updated_at`

func scanReview(row pgx.Row) (Review, error) {
	var r Review
	err := row.Scan(&r.ID, &r.ProductID, &r.UserID, &r.Rating, &r.Comment, &r.IsApproved,
		&r.HelpfulCount, &r.CreatedAt, &r.UpdatedAt)
	return r, mapErr(err)
}

// ListProductReviews returns approved reviews for a product, newest first.
func (s *Store) ListProductReviews(ctx context.Context, productID uuid.UUID, limit, offset int) ([]Review, int64, error) {
	var total int64
	if err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM reviews WHERE product_id = $1 AND is_approved`, productID).Scan(&total); err != nil {
		return nil, 0, mapErr(err)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+reviewColumns+` FROM reviews
		 WHERE product_id = $1 AND is_approved
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		productID, limit, offset)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	defer rows.Close()

	var out []Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, mapErr(rows.Err())
}

// ListPendingReviews returns unmoderated reviews for the admin queue.
func (s *Store) ListPendingReviews(ctx context.Context, limit, offset int) ([]Review, int64, error) {
	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM reviews WHERE NOT is_approved`).Scan(&total); err != nil {
		return nil, 0, mapErr(err)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE NOT is_approved ORDER BY created_at LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	defer rows.Close()

	var out []Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, mapErr(rows.Err())
}

// GetReview fetches one review.
func (s *Store) GetReview(ctx context.Context, id uuid.UUID) (Review, error) {
	return scanReview(s.pool.QueryRow(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, id))
}

// CreateReview inserts a review pending moderation.
func (s *Store) CreateReview(ctx context.Context, productID, userID uuid.UUID, rating int32, comment string) (Review, error) {
	return scanReview(s.pool.QueryRow(ctx,
		`INSERT INTO reviews (product_id, user_id, rating, comment) VALUES ($1, $2, $3, $4)
		 RETURNING `+reviewColumns,
		productID, userID, rating, comment))
}

// UpdateReview edits the author's own review and resets moderation.
func (s *Store) UpdateReview(ctx context.Context, id, userID uuid.UUID, rating int32, comment string) (Review, error) {
	return scanReview(s.pool.QueryRow(ctx,
		`UPDATE reviews SET rating = $3, comment = $4, is_approved = FALSE, updated_at = now()
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+reviewColumns,
		id, userID, rating, comment))
}

// DeleteReview removes the author's own review.
func (s *Store) DeleteReview(ctx context.Context, id, userID uuid.UUID) (Review, error) {
	return scanReview(s.pool.QueryRow(ctx,
		`DELETE FROM reviews WHERE id = $1 AND user_id = $2 RETURNING `+reviewColumns,
		id, userID))
}

// DeleteReviewByID removes a review regardless of owner.
func (s *Store) DeleteReviewByID(ctx context.Context, id uuid.UUID) (Review, error) {
	return scanReview(s.pool.QueryRow(ctx,
		`DELETE FROM reviews WHERE id = $1 RETURNING `+reviewColumns,
		id))
}

// SetReviewApproval moderates a review.
func (s *Store) SetReviewApproval(ctx context.Context, id uuid.UUID, approved bool) (Review, error) {
	return scanReview(s.pool.QueryRow(ctx,
		`UPDATE reviews SET is_approved = $2, updated_at = now() WHERE id = $1 RETURNING `+reviewColumns,
		id, approved))
}

// MarkReviewHelpful records a helpful vote, one per user, and bumps the counter.
func (s *Store) MarkReviewHelpful(ctx context.Context, reviewID, userID uuid.UUID) (Review, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO review_votes (review_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		reviewID, userID)
	if err != nil {
		return Review{}, mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return Review{}, ErrConflict
	}
	return scanReview(s.pool.QueryRow(ctx,
		`UPDATE reviews SET helpful_count = helpful_count + 1, updated_at = now()
		 WHERE id = $1 RETURNING `+reviewColumns,
		reviewID))
}

// UserHasPurchased reports whether the user has a delivered or paid order containing the product.
func (s *Store) UserHasPurchased(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM order_items oi
			JOIN orders o ON o.id = oi.order_id
			WHERE o.user_id = $1 AND oi.product_id = $2 AND o.status NOT IN ('cancelled')
		)`,
		userID, productID).Scan(&exists)
	return exists, mapErr(err)
}
