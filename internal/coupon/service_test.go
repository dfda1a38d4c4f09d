package coupon

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/adiwidodo/backend-belanja/internal/common"
	"github.com/adiwidodo/backend-belanja/internal/pricing"
	"github.com/adiwidodo/backend-belanja/internal/store"
)

type fakeStore struct {
	coupons map[string]store.Coupon
	created []store.CouponParams
}

func (f *fakeStore) GetCouponByCode(_ context.Context, code string) (store.Coupon, error) {
	c, ok := f.coupons[strings.ToUpper(code)]
	if !ok {
		return store.Coupon{}, store.ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) ListActiveCoupons(_ context.Context, now time.Time) ([]store.Coupon, error) {
	var out []store.Coupon
	for _, c := range f.coupons {
		if c.IsActive && !now.Before(c.ValidFrom) && !now.After(c.ValidTo) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) ListCoupons(_ context.Context, _, _ int) ([]store.Coupon, int64, error) {
	var out []store.Coupon
	for _, c := range f.coupons {
		out = append(out, c)
	}
	return out, int64(len(out)), nil
}

func (f *fakeStore) CreateCoupon(_ context.Context, params store.CouponParams) (store.Coupon, error) {
	if _, ok := f.coupons[params.Code]; ok {
		return store.Coupon{}, store.ErrConflict
	}
	f.created = append(f.created, params)
	c := store.Coupon{
		ID:          uuid.New(),
		Code:        params.Code,
		Kind:        params.Kind,
		Value:       params.Value,
		PercentBps:  params.PercentBps,
		MinPurchase: params.MinPurchase,
		MaxDiscount: params.MaxDiscount,
		ValidFrom:   params.ValidFrom,
		ValidTo:     params.ValidTo,
		IsActive:    params.IsActive,
	}
	if f.coupons == nil {
		f.coupons = map[string]store.Coupon{}
	}
	f.coupons[params.Code] = c
	return c, nil
}

func (f *fakeStore) UpdateCoupon(_ context.Context, id uuid.UUID, params store.CouponParams) (store.Coupon, error) {
	for code, c := range f.coupons {
		if c.ID == id {
			delete(f.coupons, code)
			c.Code = params.Code
			c.Kind = params.Kind
			c.Value = params.Value
			c.PercentBps = params.PercentBps
			c.IsActive = params.IsActive
			f.coupons[params.Code] = c
			return c, nil
		}
	}
	return store.Coupon{}, store.ErrNotFound
}

func (f *fakeStore) DeleteCoupon(_ context.Context, id uuid.UUID) error {
	for code, c := range f.coupons {
		if c.ID == id {
			delete(f.coupons, code)
			return nil
		}
	}
	return store.ErrNotFound
}

func ptr(v int64) *int64 { return &v }

func testCoupon(code string) store.Coupon {
	return store.Coupon{
		ID:          uuid.New(),
		Code:        code,
		Kind:        "percentage",
		PercentBps:  2000,
		MinPurchase: ptr(10000),
		MaxDiscount: ptr(50000),
		ValidFrom:   time.Now().Add(-time.Hour),
		ValidTo:     time.Now().Add(time.Hour),
		IsActive:    true,
	}
}

func newTestService(t *testing.T, st *fakeStore) *Service {
	t.Helper()
	svc, err := NewService(st, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestResolveEmptyCodeIsNoCoupon(t *testing.T) {
	svc := newTestService(t, &fakeStore{})
	outcome, err := svc.Resolve(context.Background(), "  ", 100000)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if outcome.Status != pricing.StatusNoCoupon {
		t.Fatalf("expected NO_COUPON, got %s", outcome.Status)
	}
}

func TestResolveUnknownCodeIsRejected(t *testing.T) {
	svc := newTestService(t, &fakeStore{})
	outcome, err := svc.Resolve(context.Background(), "MISSING", 100000)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if outcome.Status != pricing.StatusRejected || outcome.Reason != pricing.ReasonNotFound {
		t.Fatalf("expected rejection with NOT_FOUND, got %+v", outcome)
	}
}

func TestResolveValidCoupon(t *testing.T) {
	st := &fakeStore{coupons: map[string]store.Coupon{"HEMAT20": testCoupon("HEMAT20")}}
	svc := newTestService(t, st)
	outcome, err := svc.Resolve(context.Background(), "hemat20", 100000)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !outcome.Applied() {
		t.Fatalf("expected applied coupon, got %+v", outcome)
	}
	if got := pricing.CalculateDiscount(*outcome.Coupon, 100000); got != 20000 {
		t.Fatalf("expected discount 20000, got %d", got)
	}
}

func TestResolveBelowMinimumPurchase(t *testing.T) {
	st := &fakeStore{coupons: map[string]store.Coupon{"HEMAT20": testCoupon("HEMAT20")}}
	svc := newTestService(t, st)
	outcome, err := svc.Resolve(context.Background(), "HEMAT20", 5000)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if outcome.Status != pricing.StatusRejected || outcome.Reason != pricing.ReasonBelowMinimumPurchase {
		t.Fatalf("expected BELOW_MINIMUM_PURCHASE, got %+v", outcome)
	}
}

func TestValidateReturnsCouponAndDiscount(t *testing.T) {
	c := testCoupon("HEMAT20")
	st := &fakeStore{coupons: map[string]store.Coupon{"HEMAT20": c}}
	svc := newTestService(t, st)

	result, err := svc.Validate(context.Background(), "HEMAT20", 400000)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !result.Valid {
		t.Fatalf("expected valid result, got %+v", result)
	}
	if result.Coupon == nil || result.Coupon.ID != c.ID.String() {
		t.Fatalf("expected coupon DTO with original id, got %+v", result.Coupon)
	}
	// 20% of 400000 is 80000, capped at max_discount 50000.
	if result.Discount != 50000 {
		t.Fatalf("expected capped discount 50000, got %d", result.Discount)
	}
}

func TestValidateInactiveCoupon(t *testing.T) {
	c := testCoupon("LAMA")
	c.IsActive = false
	st := &fakeStore{coupons: map[string]store.Coupon{"LAMA": c}}
	svc := newTestService(t, st)

	result, err := svc.Validate(context.Background(), "LAMA", 400000)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if result.Valid || result.Reason != string(pricing.ReasonInactive) {
		t.Fatalf("expected INACTIVE rejection, got %+v", result)
	}
}

func TestCreateUppercasesCode(t *testing.T) {
	st := &fakeStore{}
	svc := newTestService(t, st)
	created, err := svc.Create(context.Background(), Input{
		Code:       "diskon",
		Kind:       "fixed",
		Value:      25000,
		ValidFrom:  time.Now(),
		ValidTo:    time.Now().Add(24 * time.Hour),
		IsActive:   true,
		PercentBps: 0,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Code != "DISKON" {
		t.Fatalf("expected uppercased code, got %q", created.Code)
	}
}

func TestCreateRejectsInvertedWindow(t *testing.T) {
	svc := newTestService(t, &fakeStore{})
	_, err := svc.Create(context.Background(), Input{
		Code:      "X",
		Kind:      "fixed",
		Value:     1000,
		ValidFrom: time.Now().Add(time.Hour),
		ValidTo:   time.Now(),
	})
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestCreateDuplicateCode(t *testing.T) {
	st := &fakeStore{coupons: map[string]store.Coupon{"DISKON": testCoupon("DISKON")}}
	svc := newTestService(t, st)
	_, err := svc.Create(context.Background(), Input{
		Code:      "diskon",
		Kind:      "fixed",
		Value:     1000,
		ValidFrom: time.Now(),
		ValidTo:   time.Now().Add(time.Hour),
	})
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.Code != "CODE_TAKEN" {
		t.Fatalf("expected CODE_TAKEN, got %v", err)
	}
}
