// Package cart manages the per-user shopping cart and its priced preview.
package cart

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adiwidodo/backend-belanja/internal/common"
	"github.com/adiwidodo/backend-belanja/internal/pricing"
	"github.com/adiwidodo/backend-belanja/internal/store"
)

// Store enumerates the persistence operations the cart service depends on.
type Store interface {
	GetOrCreateCart(ctx context.Context, userID uuid.UUID) (store.Cart, error)
	ListCartItems(ctx context.Context, cartID uuid.UUID) ([]store.CartItem, error)
	UpsertCartItem(ctx context.Context, cartID, productID uuid.UUID, qty int32) (store.CartItem, error)
	SetCartItemQty(ctx context.Context, cartID, productID uuid.UUID, qty int32) (store.CartItem, error)
	RemoveCartItem(ctx context.Context, cartID, productID uuid.UUID) error
	ClearCart(ctx context.Context, cartID uuid.UUID) error
	SetCartCoupon(ctx context.Context, cartID uuid.UUID, code *string) error
	GetProduct(ctx context.Context, id uuid.UUID) (store.Product, error)
	GetProductsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]store.Product, error)
}

// CouponResolver loads a coupon code and evaluates it against a subtotal.
type CouponResolver interface {
	Resolve(ctx context.Context, code string, subtotal pricing.Money) (pricing.Outcome, error)
}

// Service orchestrates cart mutations and price previews.
type Service struct {
	store    Store
	coupons  CouponResolver
	params   pricing.Params
	currency string

	Now func() time.Time
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store    Store
	Coupons  CouponResolver
	Params   pricing.Params
	Currency string
}

// NewService constructs the cart service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("cart: store is required")
	}
	if cfg.Coupons == nil {
		return nil, errors.New("cart: coupon resolver is required")
	}
	if cfg.Currency == "" {
		cfg.Currency = "IDR"
	}
	return &Service{
		store:    cfg.Store,
		coupons:  cfg.Coupons,
		params:   cfg.Params,
		currency: cfg.Currency,
		Now:      time.Now,
	}, nil
}

// Item is one priced cart line in the view returned to clients.
type Item struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	ImageURL  string `json:"image_url,omitempty"`
	Qty       int32  `json:"qty"`
	UnitPrice int64  `json:"unit_price"`
	LineTotal int64  `json:"line_total"`
	InStock   bool   `json:"in_stock"`
}

// CouponState reports the applied coupon and whether it still holds.
type CouponState struct {
	Code   string `json:"code"`
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// View is the complete cart payload, including its priced summary.
type View struct {
	Items    []Item          `json:"items"`
	Coupon   *CouponState    `json:"coupon,omitempty"`
	Summary  pricing.Summary `json:"summary"`
	Currency string          `json:"currency"`
}

// Get returns the user's cart with a fresh price preview.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (View, error) {
	cart, err := s.store.GetOrCreateCart(ctx, userID)
	if err != nil {
		return View{}, fmt.Errorf("load cart: %w", err)
	}
	return s.buildView(ctx, cart)
}

// AddItem puts qty units of a product into the cart.
func (s *Service) AddItem(ctx context.Context, userID uuid.UUID, productID string, qty int32) (View, error) {
	if qty <= 0 {
		return View{}, common.NewAppError("VALIDATION_ERROR", "qty must be positive", http.StatusBadRequest, nil)
	}
	pid, err := uuid.Parse(strings.TrimSpace(productID))
	if err != nil {
		return View{}, common.NewAppError("VALIDATION_ERROR", "invalid product_id", http.StatusBadRequest, err)
	}
	product, err := s.store.GetProduct(ctx, pid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return View{}, common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, err)
		}
		return View{}, fmt.Errorf("get product: %w", err)
	}
	if !product.IsActive {
		return View{}, common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, nil)
	}
	cart, err := s.store.GetOrCreateCart(ctx, userID)
	if err != nil {
		return View{}, fmt.Errorf("load cart: %w", err)
	}
	if _, err := s.store.UpsertCartItem(ctx, cart.ID, pid, qty); err != nil {
		return View{}, fmt.Errorf("add cart item: %w", err)
	}
	return s.buildView(ctx, cart)
}

// UpdateItem replaces the quantity of a cart line. Zero removes the line.
func (s *Service) UpdateItem(ctx context.Context, userID uuid.UUID, productID string, qty int32) (View, error) {
	if qty < 0 {
		return View{}, common.NewAppError("VALIDATION_ERROR", "qty must not be negative", http.StatusBadRequest, nil)
	}
	pid, err := uuid.Parse(strings.TrimSpace(productID))
	if err != nil {
		return View{}, common.NewAppError("VALIDATION_ERROR", "invalid product_id", http.StatusBadRequest, err)
	}
	cart, err := s.store.GetOrCreateCart(ctx, userID)
	if err != nil {
		return View{}, fmt.Errorf("load cart: %w", err)
	}
	if qty == 0 {
		if err := s.store.RemoveCartItem(ctx, cart.ID, pid); err != nil && !errors.Is(err, store.ErrNotFound) {
			return View{}, fmt.Errorf("remove cart item: %w", err)
		}
	} else if _, err := s.store.SetCartItemQty(ctx, cart.ID, pid, qty); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return View{}, common.NewAppError("NOT_FOUND", "item not in cart", http.StatusNotFound, err)
		}
		return View{}, fmt.Errorf("update cart item: %w", err)
	}
	return s.buildView(ctx, cart)
}

// RemoveItem drops a product from the cart.
func (s *Service) RemoveItem(ctx context.Context, userID uuid.UUID, productID string) (View, error) {
	return s.UpdateItem(ctx, userID, productID, 0)
}

// Clear empties the cart and discards any applied coupon.
func (s *Service) Clear(ctx context.Context, userID uuid.UUID) error {
	cart, err := s.store.GetOrCreateCart(ctx, userID)
	if err != nil {
		return fmt.Errorf("load cart: %w", err)
	}
	if err := s.store.ClearCart(ctx, cart.ID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// ApplyCoupon validates a code against the current subtotal and stores it on the cart.
func (s *Service) ApplyCoupon(ctx context.Context, userID uuid.UUID, code string) (View, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return View{}, common.NewAppError("VALIDATION_ERROR", "code is required", http.StatusBadRequest, nil)
	}
	cart, err := s.store.GetOrCreateCart(ctx, userID)
	if err != nil {
		return View{}, fmt.Errorf("load cart: %w", err)
	}
	lines, _, err := s.loadLines(ctx, cart.ID)
	if err != nil {
		return View{}, err
	}
	subtotal, err := pricing.ComputeSubtotal(lines, s.Now())
	if err != nil {
		return View{}, fmt.Errorf("compute subtotal: %w", err)
	}
	outcome, err := s.coupons.Resolve(ctx, trimmed, subtotal)
	if err != nil {
		return View{}, err
	}
	if !outcome.Applied() {
		return View{}, common.NewAppError("COUPON_REJECTED", couponReasonMessage(outcome.Reason), http.StatusUnprocessableEntity, nil)
	}
	applied := outcome.Coupon.Code
	if err := s.store.SetCartCoupon(ctx, cart.ID, &applied); err != nil {
		return View{}, fmt.Errorf("apply coupon: %w", err)
	}
	cart.AppliedCouponCode = &applied
	return s.buildView(ctx, cart)
}

// RemoveCoupon clears the coupon applied to the cart.
func (s *Service) RemoveCoupon(ctx context.Context, userID uuid.UUID) (View, error) {
	cart, err := s.store.GetOrCreateCart(ctx, userID)
	if err != nil {
		return View{}, fmt.Errorf("load cart: %w", err)
	}
	if err := s.store.SetCartCoupon(ctx, cart.ID, nil); err != nil {
		return View{}, fmt.Errorf("remove coupon: %w", err)
	}
	cart.AppliedCouponCode = nil
	return s.buildView(ctx, cart)
}

// Pricing exposes the engine parameters in use, for checkout to share.
func (s *Service) Pricing() pricing.Params { return s.params }

// Currency exposes the configured currency code.
func (s *Service) Currency() string { return s.currency }

// Lines loads the user's cart as pricing input. Checkout builds on this.
func (s *Service) Lines(ctx context.Context, userID uuid.UUID) (store.Cart, []pricing.CartLine, map[uuid.UUID]store.Product, error) {
	cart, err := s.store.GetOrCreateCart(ctx, userID)
	if err != nil {
		return store.Cart{}, nil, nil, fmt.Errorf("load cart: %w", err)
	}
	lines, products, err := s.loadLines(ctx, cart.ID)
	if err != nil {
		return store.Cart{}, nil, nil, err
	}
	return cart, lines, products, nil
}

func (s *Service) loadLines(ctx context.Context, cartID uuid.UUID) ([]pricing.CartLine, map[uuid.UUID]store.Product, error) {
	items, err := s.store.ListCartItems(ctx, cartID)
	if err != nil {
		return nil, nil, fmt.Errorf("list cart items: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.store.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("load products: %w", err)
	}

	lines := make([]pricing.CartLine, 0, len(items))
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok || !product.IsActive {
			continue
		}
		lines = append(lines, toLine(product, item.Qty))
	}
	return lines, products, nil
}

func (s *Service) buildView(ctx context.Context, cart store.Cart) (View, error) {
	items, err := s.store.ListCartItems(ctx, cart.ID)
	if err != nil {
		return View{}, fmt.Errorf("list cart items: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.store.GetProductsByIDs(ctx, ids)
	if err != nil {
		return View{}, fmt.Errorf("load products: %w", err)
	}

	now := s.Now()
	lines := make([]pricing.CartLine, 0, len(items))
	viewItems := make([]Item, 0, len(items))
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok || !product.IsActive {
			continue
		}
		line := toLine(product, item.Qty)
		lines = append(lines, line)
		unit := pricing.ResolveEffectivePrice(line, now)
		viewItems = append(viewItems, Item{
			ProductID: product.ID.String(),
			Name:      product.Name,
			Slug:      product.Slug,
			ImageURL:  product.ImageURL,
			Qty:       item.Qty,
			UnitPrice: unit,
			LineTotal: unit * int64(item.Qty),
			InStock:   product.Stock >= item.Qty,
		})
	}

	var coupon *pricing.Coupon
	var state *CouponState
	if cart.AppliedCouponCode != nil {
		subtotal, err := pricing.ComputeSubtotal(lines, now)
		if err != nil {
			return View{}, fmt.Errorf("compute subtotal: %w", err)
		}
		outcome, err := s.coupons.Resolve(ctx, *cart.AppliedCouponCode, subtotal)
		if err != nil {
			return View{}, err
		}
		state = &CouponState{Code: *cart.AppliedCouponCode, Valid: outcome.Applied()}
		if outcome.Applied() {
			coupon = outcome.Coupon
		} else {
			state.Reason = string(outcome.Reason)
		}
	}

	summary, _, err := pricing.ComputeSummary(lines, coupon, now, s.params)
	if err != nil {
		return View{}, fmt.Errorf("compute summary: %w", err)
	}
	return View{Items: viewItems, Coupon: state, Summary: summary, Currency: s.currency}, nil
}

func toLine(p store.Product, qty int32) pricing.CartLine {
	line := pricing.CartLine{
		ProductID:  p.ID,
		Qty:        int(qty),
		BasePrice:  p.Price,
		SalePrice:  p.SalePrice,
		FlashPrice: p.FlashSalePrice,
	}
	if p.FlashSaleStart != nil && p.FlashSaleEnd != nil {
		line.FlashWindow = &pricing.Window{Start: *p.FlashSaleStart, End: *p.FlashSaleEnd}
	}
	return line
}

func couponReasonMessage(reason pricing.RejectReason) string {
	switch reason {
	case pricing.ReasonNotFound:
		return "coupon not found"
	case pricing.ReasonInactive:
		return "coupon is not active"
	case pricing.ReasonOutOfWindow:
		return "coupon is outside its validity window"
	case pricing.ReasonBelowMinimumPurchase:
		return "cart subtotal is below the coupon minimum purchase"
	default:
		return "coupon cannot be applied"
	}
}
