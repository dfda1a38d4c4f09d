// Package reviews handles product reviews, moderation, and helpful votes.
package reviews

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adiwidodo/backend-belanja/internal/common"
	"github.com/adiwidodo/backend-belanja/internal/store"
)

// Store enumerates the persistence operations the review service depends on.
type Store interface {
	ListProductReviews(ctx context.Context, productID uuid.UUID, limit, offset int) ([]store.Review, int64, error)
	ListPendingReviews(ctx context.Context, limit, offset int) ([]store.Review, int64, error)
	GetReview(ctx context.Context, id uuid.UUID) (store.Review, error)
	CreateReview(ctx context.Context, productID, userID uuid.UUID, rating int32, comment string) (store.Review, error)
	UpdateReview(ctx context.Context, id, userID uuid.UUID, rating int32, comment string) (store.Review, error)
	DeleteReview(ctx context.Context, id, userID uuid.UUID) (store.Review, error)
	DeleteReviewByID(ctx context.Context, id uuid.UUID) (store.Review, error)
	SetReviewApproval(ctx context.Context, id uuid.UUID, approved bool) (store.Review, error)
	MarkReviewHelpful(ctx context.Context, reviewID, userID uuid.UUID) (store.Review, error)
	UserHasPurchased(ctx context.Context, userID, productID uuid.UUID) (bool, error)
	GetProductBySlug(ctx context.Context, slug string) (store.Product, error)
	AdjustRating(ctx context.Context, productID uuid.UUID, sumDelta int64, countDelta int32) error
}

// Service coordinates review CRUD and rating aggregates.
type Service struct {
	store Store
}

// NewService constructs the review service.
func NewService(st Store) (*Service, error) {
	if st == nil {
		return nil, errors.New("reviews: store is required")
	}
	return &Service{store: st}, nil
}

// Review is the public review DTO.
type Review struct {
	ID           string    `json:"id"`
	ProductID    string    `json:"product_id"`
	UserID       string    `json:"user_id"`
	Rating       int32     `json:"rating"`
	Comment      string    `json:"comment,omitempty"`
	IsApproved   bool      `json:"is_approved"`
	HelpfulCount int32     `json:"helpful_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// ListForProduct returns approved reviews for a product slug.
func (s *Service) ListForProduct(ctx context.Context, slug string, page, limit int) ([]Review, common.Pagination, error) {
	product, err := s.store.GetProductBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, common.Pagination{}, common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, err)
		}
		return nil, common.Pagination{}, fmt.Errorf("get product: %w", err)
	}
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	rows, total, err := s.store.ListProductReviews(ctx, product.ID, limit, (page-1)*limit)
	if err != nil {
		return nil, common.Pagination{}, fmt.Errorf("list reviews: %w", err)
	}
	out := make([]Review, 0, len(rows))
	for _, r := range rows {
		out = append(out, toReview(r))
	}
	return out, common.NewPagination(page, limit, total), nil
}

// Create submits a review for moderation. Only purchasers may review.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, productSlug string, rating int32, comment string) (Review, error) {
	if rating < 1 || rating > 5 {
		return Review{}, common.NewAppError("VALIDATION_ERROR", "rating must be between 1 and 5", http.StatusBadRequest, nil)
	}
	product, err := s.store.GetProductBySlug(ctx, productSlug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Review{}, common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, err)
		}
		return Review{}, fmt.Errorf("get product: %w", err)
	}
	purchased, err := s.store.UserHasPurchased(ctx, userID, product.ID)
	if err != nil {
		return Review{}, fmt.Errorf("check purchase: %w", err)
	}
	if !purchased {
		return Review{}, common.NewAppError("NOT_PURCHASED", "only purchasers can review this product", http.StatusForbidden, nil)
	}
	created, err := s.store.CreateReview(ctx, product.ID, userID, rating, strings.TrimSpace(comment))
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return Review{}, common.NewAppError("ALREADY_REVIEWED", "you have already reviewed this product", http.StatusConflict, err)
		}
		return Review{}, fmt.Errorf("create review: %w", err)
	}
	return toReview(created), nil
}

// Update edits the caller's own review and sends it back to moderation.
func (s *Service) Update(ctx context.Context, userID, reviewID uuid.UUID, rating int32, comment string) (Review, error) {
	if rating < 1 || rating > 5 {
		return Review{}, common.NewAppError("VALIDATION_ERROR", "rating must be between 1 and 5", http.StatusBadRequest, nil)
	}
	previous, err := s.store.GetReview(ctx, reviewID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Review{}, reviewNotFound(err)
		}
		return Review{}, fmt.Errorf("get review: %w", err)
	}
	updated, err := s.store.UpdateReview(ctx, reviewID, userID, rating, strings.TrimSpace(comment))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Review{}, reviewNotFound(err)
		}
		return Review{}, fmt.Errorf("update review: %w", err)
	}
	// An edited approved review leaves the aggregate until re-approval.
	if previous.IsApproved {
		if err := s.store.AdjustRating(ctx, previous.ProductID, -int64(previous.Rating), -1); err != nil {
			return Review{}, fmt.Errorf("adjust rating: %w", err)
		}
	}
	return toReview(updated), nil
}

// Delete removes the caller's own review.
func (s *Service) Delete(ctx context.Context, userID, reviewID uuid.UUID) error {
	deleted, err := s.store.DeleteReview(ctx, reviewID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return reviewNotFound(err)
		}
		return fmt.Errorf("delete review: %w", err)
	}
	if deleted.IsApproved {
		if err := s.store.AdjustRating(ctx, deleted.ProductID, -int64(deleted.Rating), -1); err != nil {
			return fmt.Errorf("adjust rating: %w", err)
		}
	}
	return nil
}

// AdminDelete removes any review.
func (s *Service) AdminDelete(ctx context.Context, reviewID uuid.UUID) error {
	deleted, err := s.store.DeleteReviewByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return reviewNotFound(err)
		}
		return fmt.Errorf("delete review: %w", err)
	}
	if deleted.IsApproved {
		if err := s.store.AdjustRating(ctx, deleted.ProductID, -int64(deleted.Rating), -1); err != nil {
			return fmt.Errorf("adjust rating: %w", err)
		}
	}
	return nil
}

// MarkHelpful records a helpful vote, once per user.
func (s *Service) MarkHelpful(ctx context.Context, userID, reviewID uuid.UUID) (Review, error) {
	updated, err := s.store.MarkReviewHelpful(ctx, reviewID, userID)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return Review{}, common.NewAppError("ALREADY_VOTED", "you have already marked this review helpful", http.StatusConflict, err)
		}
		if errors.Is(err, store.ErrNotFound) {
			return Review{}, reviewNotFound(err)
		}
		return Review{}, fmt.Errorf("mark helpful: %w", err)
	}
	return toReview(updated), nil
}

// ListPending returns the admin moderation queue.
func (s *Service) ListPending(ctx context.Context, page, limit int) ([]Review, common.Pagination, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	rows, total, err := s.store.ListPendingReviews(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, common.Pagination{}, fmt.Errorf("list pending reviews: %w", err)
	}
	out := make([]Review, 0, len(rows))
	for _, r := range rows {
		out = append(out, toReview(r))
	}
	return out, common.NewPagination(page, limit, total), nil
}

// Moderate approves or rejects a review and maintains the rating aggregate.
func (s *Service) Moderate(ctx context.Context, reviewID uuid.UUID, approve bool) (Review, error) {
	previous, err := s.store.GetReview(ctx, reviewID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Review{}, reviewNotFound(err)
		}
		return Review{}, fmt.Errorf("get review: %w", err)
	}
	updated, err := s.store.SetReviewApproval(ctx, reviewID, approve)
	if err != nil {
		return Review{}, fmt.Errorf("moderate review: %w", err)
	}
	if approve && !previous.IsApproved {
		if err := s.store.AdjustRating(ctx, updated.ProductID, int64(updated.Rating), 1); err != nil {
			return Review{}, fmt.Errorf("adjust rating: %w", err)
		}
	}
	if !approve && previous.IsApproved {
		if err := s.store.AdjustRating(ctx, updated.ProductID, -int64(previous.Rating), -1); err != nil {
			return Review{}, fmt.Errorf("adjust rating: %w", err)
		}
	}
	return toReview(updated), nil
}

func toReview(r store.Review) Review {
	return Review{
		ID:           r.ID.String(),
		ProductID:    r.ProductID.String(),
		UserID:       r.UserID.String(),
		Rating:       r.Rating,
		Comment:      r.Comment,
		IsApproved:   r.IsApproved,
		HelpfulCount: r.HelpfulCount,
		CreatedAt:    r.CreatedAt,
	}
}

func reviewNotFound(err error) error {
	return common.NewAppError("NOT_FOUND", "review not found", http.StatusNotFound, err)
}
