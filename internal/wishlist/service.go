// Package wishlist lets customers bookmark products.
package wishlist

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/adiwidodo/backend-belanja/internal/common"
	"github.com/adiwidodo/backend-belanja/internal/pricing"
	"github.com/adiwidodo/backend-belanja/internal/store"
)

// Store enumerates the persistence operations the wishlist service depends on.
type Store interface {
	ListWishlist(ctx context.Context, userID uuid.UUID) ([]store.WishlistEntry, error)
	AddToWishlist(ctx context.Context, userID, productID uuid.UUID) error
	RemoveFromWishlist(ctx context.Context, userID, productID uuid.UUID) error
	GetProduct(ctx context.Context, id uuid.UUID) (store.Product, error)
}

// Service coordinates wishlist operations.
type Service struct {
	store Store
	Now   func() time.Time
}

// NewService constructs the wishlist service.
func NewService(st Store) (*Service, error) {
	if st == nil {
		return nil, errors.New("wishlist: store is required")
	}
	return &Service{store: st, Now: time.Now}, nil
}

// Item is one wishlist entry with current pricing.
type Item struct {
	ProductID    string    `json:"product_id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	ImageURL     string    `json:"image_url,omitempty"`
	CurrentPrice int64     `json:"current_price"`
	InStock      bool      `json:"in_stock"`
	AddedAt      time.Time `json:"added_at"`
}

// List returns the caller's wishlist, newest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]Item, error) {
	entries, err := s.store.ListWishlist(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
	}
	now := s.Now().UTC()
	out := make([]Item, 0, len(entries))
	for _, e := range entries {
		p := e.Product
		if !p.IsActive {
			continue
		}
		out = append(out, Item{
			ProductID:    p.ID.String(),
			Name:         p.Name,
			Slug:         p.Slug,
			ImageURL:     p.ImageURL,
			CurrentPrice: effectivePrice(p, now),
			InStock:      p.Stock > 0,
			AddedAt:      e.AddedAt,
		})
	}
	return out, nil
}

// Add bookmarks a product. Adding twice is a no-op.
func (s *Service) Add(ctx context.Context, userID uuid.UUID, rawProductID string) error {
	productID, err := uuid.Parse(rawProductID)
	if err != nil {
		return common.NewAppError("BAD_REQUEST", "invalid product id", http.StatusBadRequest, err)
	}
	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return productNotFound(err)
		}
		return fmt.Errorf("get product: %w", err)
	}
	if !product.IsActive {
		return productNotFound(nil)
	}
	if err := s.store.AddToWishlist(ctx, userID, productID); err != nil {
		return fmt.Errorf("add to wishlist: %w", err)
	}
	return nil
}

// Remove drops a product from the wishlist.
func (s *Service) Remove(ctx context.Context, userID uuid.UUID, rawProductID string) error {
	productID, err := uuid.Parse(rawProductID)
	if err != nil {
		return common.NewAppError("BAD_REQUEST", "invalid product id", http.StatusBadRequest, err)
	}
	if err := s.store.RemoveFromWishlist(ctx, userID, productID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return productNotFound(err)
		}
		return fmt.Errorf("remove from wishlist: %w", err)
	}
	return nil
}

func effectivePrice(p store.Product, now time.Time) int64 {
	line := pricing.CartLine{
		ProductID:  p.ID,
		Qty:        1,
		BasePrice:  p.Price,
		SalePrice:  p.SalePrice,
		FlashPrice: p.FlashSalePrice,
	}
	if p.FlashSaleStart != nil && p.FlashSaleEnd != nil {
		line.FlashWindow = &pricing.Window{Start: *p.FlashSaleStart, End: *p.FlashSaleEnd}
	}
	return pricing.ResolveEffectivePrice(line, now)
}

func productNotFound(err error) error {
	return common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, err)
}
