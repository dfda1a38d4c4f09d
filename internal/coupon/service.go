// Package coupon validates discount codes and manages them for admins.
package coupon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/adiwidodo/backend-belanja/internal/common"
	"github.com/adiwidodo/backend-belanja/internal/obs"
	"github.com/adiwidodo/backend-belanja/internal/pricing"
	"github.com/adiwidodo/backend-belanja/internal/store"
)

// Store enumerates the persistence operations the coupon service depends on.
type Store interface {
	GetCouponByCode(ctx context.Context, code string) (store.Coupon, error)
	ListActiveCoupons(ctx context.Context, now time.Time) ([]store.Coupon, error)
	ListCoupons(ctx context.Context, limit, offset int) ([]store.Coupon, int64, error)
	CreateCoupon(ctx context.Context, params store.CouponParams) (store.Coupon, error)
	UpdateCoupon(ctx context.Context, id uuid.UUID, params store.CouponParams) (store.Coupon, error)
	DeleteCoupon(ctx context.Context, id uuid.UUID) error
}

// Service validates and administers coupons.
type Service struct {
	store    Store
	validate *validator.Validate

	Now func() time.Time
}

// NewService constructs the coupon service.
func NewService(st Store, validate *validator.Validate) (*Service, error) {
	if st == nil {
		return nil, errors.New("coupon: store is required")
	}
	if validate == nil {
		validate = validator.New()
	}
	return &Service{store: st, validate: validate, Now: time.Now}, nil
}

// Coupon is the public coupon DTO.
type Coupon struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Kind        string    `json:"kind"`
	Value       int64     `json:"value,omitempty"`
	PercentBps  int32     `json:"percent_bps,omitempty"`
	MinPurchase *int64    `json:"min_purchase,omitempty"`
	MaxDiscount *int64    `json:"max_discount,omitempty"`
	ValidFrom   time.Time `json:"valid_from"`
	ValidTo     time.Time `json:"valid_to"`
	IsActive    bool      `json:"is_active"`
}

// Validation is returned by the validate endpoint.
type Validation struct {
	Valid    bool    `json:"valid"`
	Reason   string  `json:"reason,omitempty"`
	Coupon   *Coupon `json:"coupon,omitempty"`
	Discount int64   `json:"discount"`
}

// Resolve loads a coupon by code and runs it through the pricing rules.
// The returned outcome drives cart previews and checkout alike.
func (s *Service) Resolve(ctx context.Context, code string, subtotal pricing.Money) (pricing.Outcome, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return pricing.NoCoupon(), nil
	}
	row, err := s.store.GetCouponByCode(ctx, trimmed)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return countOutcome(pricing.Rejected(pricing.ReasonNotFound)), nil
		}
		return pricing.Outcome{}, fmt.Errorf("get coupon: %w", err)
	}
	c := ToPricing(row)
	return countOutcome(pricing.ValidateCoupon(&c, subtotal, s.Now())), nil
}

// Validate checks a code against a subtotal and reports the discount it would grant.
func (s *Service) Validate(ctx context.Context, code string, subtotal int64) (Validation, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return Validation{}, common.NewAppError("VALIDATION_ERROR", "code is required", http.StatusBadRequest, nil)
	}
	if subtotal < 0 {
		return Validation{}, common.NewAppError("VALIDATION_ERROR", "subtotal must not be negative", http.StatusBadRequest, nil)
	}
	row, err := s.store.GetCouponByCode(ctx, trimmed)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			countOutcome(pricing.Rejected(pricing.ReasonNotFound))
			return Validation{Valid: false, Reason: string(pricing.ReasonNotFound)}, nil
		}
		return Validation{}, fmt.Errorf("get coupon: %w", err)
	}
	c := ToPricing(row)
	outcome := countOutcome(pricing.ValidateCoupon(&c, subtotal, s.Now()))
	if !outcome.Applied() {
		return Validation{Valid: false, Reason: string(outcome.Reason)}, nil
	}
	dto := toCoupon(row)
	return Validation{
		Valid:    true,
		Coupon:   &dto,
		Discount: pricing.CalculateDiscount(c, subtotal),
	}, nil
}

// ListAvailable returns coupons currently inside their validity window.
func (s *Service) ListAvailable(ctx context.Context) ([]Coupon, error) {
	rows, err := s.store.ListActiveCoupons(ctx, s.Now())
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	out := make([]Coupon, 0, len(rows))
	for _, row := range rows {
		out = append(out, toCoupon(row))
	}
	return out, nil
}

// ListAll returns every coupon for the admin view.
func (s *Service) ListAll(ctx context.Context, page, limit int) ([]Coupon, common.Pagination, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	rows, total, err := s.store.ListCoupons(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, common.Pagination{}, fmt.Errorf("list coupons: %w", err)
	}
	out := make([]Coupon, 0, len(rows))
	for _, row := range rows {
		out = append(out, toCoupon(row))
	}
	return out, common.NewPagination(page, limit, total), nil
}

// Input carries admin-supplied coupon attributes.
type Input struct {
	Code        string    `json:"code" validate:"required"`
	Kind        string    `json:"kind" validate:"required,oneof=percentage fixed"`
	Value       int64     `json:"value" validate:"gte=0"`
	PercentBps  int32     `json:"percent_bps" validate:"gte=0,lte=10000"`
	MinPurchase *int64    `json:"min_purchase" validate:"omitempty,gte=0"`
	MaxDiscount *int64    `json:"max_discount" validate:"omitempty,gte=0"`
	ValidFrom   time.Time `json:"valid_from" validate:"required"`
	ValidTo     time.Time `json:"valid_to" validate:"required"`
	IsActive    bool      `json:"is_active"`
}

// Create inserts a coupon on behalf of an admin.
func (s *Service) Create(ctx context.Context, input Input) (Coupon, error) {
	params, err := s.couponParams(input)
	if err != nil {
		return Coupon{}, err
	}
	row, err := s.store.CreateCoupon(ctx, params)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return Coupon{}, common.NewAppError("CODE_TAKEN", "coupon code already exists", http.StatusConflict, err)
		}
		return Coupon{}, fmt.Errorf("create coupon: %w", err)
	}
	return toCoupon(row), nil
}

// Update overwrites a coupon on behalf of an admin.
func (s *Service) Update(ctx context.Context, id uuid.UUID, input Input) (Coupon, error) {
	params, err := s.couponParams(input)
	if err != nil {
		return Coupon{}, err
	}
	row, err := s.store.UpdateCoupon(ctx, id, params)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Coupon{}, common.NewAppError("NOT_FOUND", "coupon not found", http.StatusNotFound, err)
		}
		if errors.Is(err, store.ErrConflict) {
			return Coupon{}, common.NewAppError("CODE_TAKEN", "coupon code already exists", http.StatusConflict, err)
		}
		return Coupon{}, fmt.Errorf("update coupon: %w", err)
	}
	return toCoupon(row), nil
}

// Delete removes a coupon on behalf of an admin.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteCoupon(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return common.NewAppError("NOT_FOUND", "coupon not found", http.StatusNotFound, err)
		}
		return fmt.Errorf("delete coupon: %w", err)
	}
	return nil
}

func (s *Service) couponParams(input Input) (store.CouponParams, error) {
	if err := s.validate.Struct(input); err != nil {
		return store.CouponParams{}, common.NewAppError("VALIDATION_ERROR", err.Error(), http.StatusBadRequest, err)
	}
	if !input.ValidTo.After(input.ValidFrom) {
		return store.CouponParams{}, common.NewAppError("VALIDATION_ERROR", "valid_to must be after valid_from", http.StatusBadRequest, nil)
	}
	switch input.Kind {
	case string(pricing.KindPercentage):
		if input.PercentBps <= 0 {
			return store.CouponParams{}, common.NewAppError("VALIDATION_ERROR", "percent_bps must be positive for percentage coupons", http.StatusBadRequest, nil)
		}
	case string(pricing.KindFixed):
		if input.Value <= 0 {
			return store.CouponParams{}, common.NewAppError("VALIDATION_ERROR", "value must be positive for fixed coupons", http.StatusBadRequest, nil)
		}
	}
	return store.CouponParams{
		Code:        strings.ToUpper(strings.TrimSpace(input.Code)),
		Kind:        input.Kind,
		Value:       input.Value,
		PercentBps:  input.PercentBps,
		MinPurchase: input.MinPurchase,
		MaxDiscount: input.MaxDiscount,
		ValidFrom:   input.ValidFrom,
		ValidTo:     input.ValidTo,
		IsActive:    input.IsActive,
	}, nil
}

// ToPricing converts a stored coupon into the pricing engine's representation.
func ToPricing(c store.Coupon) pricing.Coupon {
	return pricing.Coupon{
		Code:        c.Code,
		Kind:        pricing.Kind(c.Kind),
		Value:       c.Value,
		PercentBps:  c.PercentBps,
		MinPurchase: c.MinPurchase,
		MaxDiscount: c.MaxDiscount,
		ValidFrom:   c.ValidFrom,
		ValidTo:     c.ValidTo,
		Active:      c.IsActive,
	}
}

func toCoupon(c store.Coupon) Coupon {
	return Coupon{
		ID:          c.ID.String(),
		Code:        c.Code,
		Kind:        c.Kind,
		Value:       c.Value,
		PercentBps:  c.PercentBps,
		MinPurchase: c.MinPurchase,
		MaxDiscount: c.MaxDiscount,
		ValidFrom:   c.ValidFrom,
		ValidTo:     c.ValidTo,
		IsActive:    c.IsActive,
	}
}

func countOutcome(outcome pricing.Outcome) pricing.Outcome {
	if obs.CouponValidationsTotal == nil {
		return outcome
	}
	switch outcome.Status {
	case pricing.StatusValid:
		obs.CouponValidationsTotal.WithLabelValues("valid").Inc()
	case pricing.StatusRejected:
		obs.CouponValidationsTotal.WithLabelValues(strings.ToLower(string(outcome.Reason))).Inc()
	}
	return outcome
}
