package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/adiwidodo/backend-belanja/internal/common"
	"github.com/adiwidodo/backend-belanja/internal/pricing"
	"github.com/adiwidodo/backend-belanja/internal/store"
)

type fakeStore struct {
	cart     store.Cart
	items    map[uuid.UUID]int32
	products map[uuid.UUID]store.Product
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		cart:     store.Cart{ID: uuid.New(), UserID: uuid.New()},
		items:    map[uuid.UUID]int32{},
		products: map[uuid.UUID]store.Product{},
	}
}

func (f *fakeStore) GetOrCreateCart(_ context.Context, _ uuid.UUID) (store.Cart, error) {
	return f.cart, nil
}

func (f *fakeStore) ListCartItems(_ context.Context, _ uuid.UUID) ([]store.CartItem, error) {
	var out []store.CartItem
	for pid, qty := range f.items {
		out = append(out, store.CartItem{CartID: f.cart.ID, ProductID: pid, Qty: qty})
	}
	return out, nil
}

func (f *fakeStore) UpsertCartItem(_ context.Context, _, productID uuid.UUID, qty int32) (store.CartItem, error) {
	f.items[productID] += qty
	return store.CartItem{CartID: f.cart.ID, ProductID: productID, Qty: f.items[productID]}, nil
}

func (f *fakeStore) SetCartItemQty(_ context.Context, _, productID uuid.UUID, qty int32) (store.CartItem, error) {
	if _, ok := f.items[productID]; !ok {
		return store.CartItem{}, store.ErrNotFound
	}
	f.items[productID] = qty
	return store.CartItem{CartID: f.cart.ID, ProductID: productID, Qty: qty}, nil
}

func (f *fakeStore) RemoveCartItem(_ context.Context, _, productID uuid.UUID) error {
	if _, ok := f.items[productID]; !ok {
		return store.ErrNotFound
	}
	delete(f.items, productID)
	return nil
}

func (f *fakeStore) ClearCart(_ context.Context, _ uuid.UUID) error {
	f.items = map[uuid.UUID]int32{}
	f.cart.AppliedCouponCode = nil
	return nil
}

func (f *fakeStore) SetCartCoupon(_ context.Context, _ uuid.UUID, code *string) error {
	f.cart.AppliedCouponCode = code
	return nil
}

func (f *fakeStore) GetProduct(_ context.Context, id uuid.UUID) (store.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return store.Product{}, store.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) GetProductsByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]store.Product, error) {
	out := map[uuid.UUID]store.Product{}
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type fakeResolver struct {
	outcome pricing.Outcome
}

func (f fakeResolver) Resolve(_ context.Context, _ string, _ pricing.Money) (pricing.Outcome, error) {
	return f.outcome, nil
}

func money(v int64) *int64 { return &v }

func addProduct(f *fakeStore, price int64, sale *int64, stock int32) store.Product {
	p := store.Product{
		ID:        uuid.New(),
		Name:      "Produk Uji",
		Slug:      "produk-uji",
		Price:     price,
		SalePrice: sale,
		Stock:     stock,
		IsActive:  true,
	}
	f.products[p.ID] = p
	return p
}

func newCartService(t *testing.T, st *fakeStore, resolver CouponResolver) *Service {
	t.Helper()
	svc, err := NewService(ServiceConfig{
		Store:   st,
		Coupons: resolver,
		Params: pricing.Params{
			TaxBps:                1000,
			ShippingFlatFee:       1000,
			FreeShippingThreshold: 500000,
		},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestAddItemBuildsPricedView(t *testing.T) {
	st := newFakeStore()
	p := addProduct(st, 100000, money(80000), 10)
	svc := newCartService(t, st, fakeResolver{outcome: pricing.NoCoupon()})

	view, err := svc.AddItem(context.Background(), st.cart.UserID, p.ID.String(), 2)
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if len(view.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(view.Items))
	}
	item := view.Items[0]
	if item.UnitPrice != 80000 {
		t.Fatalf("expected sale price 80000, got %d", item.UnitPrice)
	}
	if item.LineTotal != 160000 {
		t.Fatalf("expected line total 160000, got %d", item.LineTotal)
	}
	// subtotal 160000, tax 10% = 16000, flat shipping 1000.
	if view.Summary.Total != 177000 {
		t.Fatalf("expected total 177000, got %d", view.Summary.Total)
	}
}

func TestAddItemUnknownProduct(t *testing.T) {
	st := newFakeStore()
	svc := newCartService(t, st, fakeResolver{outcome: pricing.NoCoupon()})

	_, err := svc.AddItem(context.Background(), st.cart.UserID, uuid.NewString(), 1)
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.Code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestUpdateItemZeroRemovesLine(t *testing.T) {
	st := newFakeStore()
	p := addProduct(st, 100000, nil, 10)
	st.items[p.ID] = 3
	svc := newCartService(t, st, fakeResolver{outcome: pricing.NoCoupon()})

	view, err := svc.UpdateItem(context.Background(), st.cart.UserID, p.ID.String(), 0)
	if err != nil {
		t.Fatalf("update item: %v", err)
	}
	if len(view.Items) != 0 {
		t.Fatalf("expected empty cart, got %d items", len(view.Items))
	}
}

func TestUpdateItemMissingLine(t *testing.T) {
	st := newFakeStore()
	addProduct(st, 100000, nil, 10)
	svc := newCartService(t, st, fakeResolver{outcome: pricing.NoCoupon()})

	_, err := svc.UpdateItem(context.Background(), st.cart.UserID, uuid.NewString(), 2)
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.Code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestApplyCouponStoresCode(t *testing.T) {
	st := newFakeStore()
	p := addProduct(st, 100000, nil, 10)
	st.items[p.ID] = 2
	coupon := &pricing.Coupon{
		Code:       "HEMAT10",
		Kind:       pricing.KindPercentage,
		PercentBps: 1000,
		ValidFrom:  time.Now().Add(-time.Hour),
		ValidTo:    time.Now().Add(time.Hour),
		Active:     true,
	}
	svc := newCartService(t, st, fakeResolver{outcome: pricing.ValidCoupon(coupon)})

	view, err := svc.ApplyCoupon(context.Background(), st.cart.UserID, "HEMAT10")
	if err != nil {
		t.Fatalf("apply coupon: %v", err)
	}
	if st.cart.AppliedCouponCode == nil || *st.cart.AppliedCouponCode != "HEMAT10" {
		t.Fatalf("expected coupon stored on cart, got %v", st.cart.AppliedCouponCode)
	}
	if view.Coupon == nil || !view.Coupon.Valid {
		t.Fatalf("expected valid coupon state, got %+v", view.Coupon)
	}
	// subtotal 200000, discount 20000, tax 18000, shipping 1000.
	if view.Summary.Discount != 20000 || view.Summary.Total != 199000 {
		t.Fatalf("unexpected summary %+v", view.Summary)
	}
}

func TestApplyCouponRejected(t *testing.T) {
	st := newFakeStore()
	p := addProduct(st, 100000, nil, 10)
	st.items[p.ID] = 1
	svc := newCartService(t, st, fakeResolver{outcome: pricing.Rejected(pricing.ReasonBelowMinimumPurchase)})

	_, err := svc.ApplyCoupon(context.Background(), st.cart.UserID, "HEMAT10")
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.Code != "COUPON_REJECTED" {
		t.Fatalf("expected COUPON_REJECTED, got %v", err)
	}
	if appErr.HTTPStatus != 422 {
		t.Fatalf("expected 422, got %d", appErr.HTTPStatus)
	}
}

func TestViewDropsInvalidAppliedCoupon(t *testing.T) {
	st := newFakeStore()
	p := addProduct(st, 100000, nil, 10)
	st.items[p.ID] = 1
	code := "KADALUARSA"
	st.cart.AppliedCouponCode = &code
	svc := newCartService(t, st, fakeResolver{outcome: pricing.Rejected(pricing.ReasonOutOfWindow)})

	view, err := svc.Get(context.Background(), st.cart.UserID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if view.Coupon == nil || view.Coupon.Valid {
		t.Fatalf("expected invalid coupon state, got %+v", view.Coupon)
	}
	if view.Coupon.Reason != string(pricing.ReasonOutOfWindow) {
		t.Fatalf("expected OUT_OF_WINDOW reason, got %q", view.Coupon.Reason)
	}
	if view.Summary.Discount != 0 {
		t.Fatalf("expected zero discount, got %d", view.Summary.Discount)
	}
}

func TestFlashSalePriceWinsInsideWindow(t *testing.T) {
	st := newFakeStore()
	now := time.Now()
	start := now.Add(-time.Hour)
	end := now.Add(time.Hour)
	p := store.Product{
		ID:             uuid.New(),
		Name:           "Kilat",
		Slug:           "kilat",
		Price:          100000,
		SalePrice:      money(90000),
		FlashSalePrice: money(70000),
		FlashSaleStart: &start,
		FlashSaleEnd:   &end,
		Stock:          5,
		IsActive:       true,
	}
	st.products[p.ID] = p
	st.items[p.ID] = 1
	svc := newCartService(t, st, fakeResolver{outcome: pricing.NoCoupon()})

	view, err := svc.Get(context.Background(), st.cart.UserID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if view.Items[0].UnitPrice != 70000 {
		t.Fatalf("expected flash price 70000, got %d", view.Items[0].UnitPrice)
	}
}

func TestFreeShippingAboveThreshold(t *testing.T) {
	st := newFakeStore()
	p := addProduct(st, 300000, nil, 10)
	st.items[p.ID] = 2
	svc := newCartService(t, st, fakeResolver{outcome: pricing.NoCoupon()})

	view, err := svc.Get(context.Background(), st.cart.UserID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if view.Summary.Shipping != 0 {
		t.Fatalf("expected free shipping, got %d", view.Summary.Shipping)
	}
}
