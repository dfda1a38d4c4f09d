package pricing

import (
	"errors"
	"testing"
	"time"
)

var (
	t0 = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	t1 = time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
)

func money(v int64) *Money {
	m := Money(v)
	return &m
}

func flashLine() CartLine {
	return CartLine{
		Qty:         1,
		BasePrice:   100_00,
		SalePrice:   money(80_00),
		FlashPrice:  money(50_00),
		FlashWindow: &Window{Start: t0, End: t1},
	}
}

func TestResolveEffectivePricePrecedence(t *testing.T) {
	line := flashLine()

	cases := []struct {
		name string
		now  time.Time
		want Money
	}{
		{"inside window", t0.Add(24 * time.Hour), 50_00},
		{"at window start", t0, 50_00},
		{"at window end", t1, 50_00},
		{"before window", t0.Add(-time.Millisecond), 80_00},
		{"after window", t1.Add(time.Millisecond), 80_00},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ResolveEffectivePrice(line, tc.now); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestResolveEffectivePriceFallbacks(t *testing.T) {
	base := CartLine{Qty: 1, BasePrice: 100_00}
	if got := ResolveEffectivePrice(base, t0); got != 100_00 {
		t.Fatalf("expected base price 10000, got %d", got)
	}

	sale := CartLine{Qty: 1, BasePrice: 100_00, SalePrice: money(80_00)}
	if got := ResolveEffectivePrice(sale, t0); got != 80_00 {
		t.Fatalf("expected sale price 8000, got %d", got)
	}

	// Flash price without a window never applies.
	noWindow := CartLine{Qty: 1, BasePrice: 100_00, FlashPrice: money(50_00)}
	if got := ResolveEffectivePrice(noWindow, t0); got != 100_00 {
		t.Fatalf("expected base price without window, got %d", got)
	}

	malformed := flashLine()
	malformed.FlashWindow = &Window{Start: t1, End: t0}
	if got := ResolveEffectivePrice(malformed, t0.Add(time.Hour)); got != 80_00 {
		t.Fatalf("malformed window should fall through to sale price, got %d", got)
	}
}

func TestComputeSubtotalAdditivity(t *testing.T) {
	a := CartLine{Qty: 1, BasePrice: 450_00}
	b := CartLine{Qty: 2, BasePrice: 125_00}

	onlyA, err := ComputeSubtotal([]CartLine{a}, t0)
	if err != nil {
		t.Fatal(err)
	}
	both, err := ComputeSubtotal([]CartLine{a, b}, t0)
	if err != nil {
		t.Fatal(err)
	}
	if both-onlyA != 250_00 {
		t.Fatalf("adding a line must grow subtotal by its contribution, got delta %d", both-onlyA)
	}
}

func TestComputeSubtotalEmptyCart(t *testing.T) {
	subtotal, err := ComputeSubtotal(nil, t0)
	if err != nil {
		t.Fatal(err)
	}
	if subtotal != 0 {
		t.Fatalf("empty cart subtotal must be 0, got %d", subtotal)
	}
}

func TestComputeSubtotalRejectsNegativeInput(t *testing.T) {
	cases := []CartLine{
		{Qty: -1, BasePrice: 100},
		{Qty: 1, BasePrice: -100},
		{Qty: 1, BasePrice: 100, SalePrice: money(-5)},
		{Qty: 1, BasePrice: 100, FlashPrice: money(-5), FlashWindow: &Window{Start: t0, End: t1}},
	}
	for _, line := range cases {
		if _, err := ComputeSubtotal([]CartLine{line}, t0); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %+v, got %v", line, err)
		}
	}
}

func TestValidateCouponWindowBoundaries(t *testing.T) {
	c := &Coupon{Code: "WEEK", Kind: KindFixed, Value: 10_00, ValidFrom: t0, ValidTo: t1, Active: true}

	if out := ValidateCoupon(c, 100_00, t0); !out.Applied() {
		t.Fatalf("coupon must be valid at exactly ValidFrom, got %+v", out)
	}
	if out := ValidateCoupon(c, 100_00, t1); !out.Applied() {
		t.Fatalf("coupon must be valid at exactly ValidTo, got %+v", out)
	}
	if out := ValidateCoupon(c, 100_00, t0.Add(-time.Millisecond)); out.Reason != ReasonOutOfWindow {
		t.Fatalf("expected OUT_OF_WINDOW before start, got %+v", out)
	}
	if out := ValidateCoupon(c, 100_00, t1.Add(time.Millisecond)); out.Reason != ReasonOutOfWindow {
		t.Fatalf("expected OUT_OF_WINDOW after end, got %+v", out)
	}
}

func TestValidateCouponMinimumPurchaseGate(t *testing.T) {
	c := &Coupon{
		Code: "MIN100", Kind: KindFixed, Value: 5_00,
		MinPurchase: money(100_00),
		ValidFrom:   t0, ValidTo: t1, Active: true,
	}
	if out := ValidateCoupon(c, 99_00, t0); out.Reason != ReasonBelowMinimumPurchase {
		t.Fatalf("expected BELOW_MINIMUM_PURCHASE at 9900, got %+v", out)
	}
	if out := ValidateCoupon(c, 100_00, t0); !out.Applied() {
		t.Fatalf("coupon must be valid at exactly the minimum purchase, got %+v", out)
	}
}

func TestValidateCouponStates(t *testing.T) {
	if out := ValidateCoupon(nil, 100_00, t0); out.Status != StatusNoCoupon {
		t.Fatalf("nil coupon must yield NO_COUPON, got %+v", out)
	}
	inactive := &Coupon{Code: "OFF", ValidFrom: t0, ValidTo: t1, Active: false}
	if out := ValidateCoupon(inactive, 100_00, t0); out.Reason != ReasonInactive {
		t.Fatalf("expected INACTIVE, got %+v", out)
	}
	if out := Rejected(ReasonNotFound); out.Status != StatusRejected || out.Reason != ReasonNotFound {
		t.Fatalf("unexpected not-found outcome %+v", out)
	}
}

func TestCalculateDiscountCap(t *testing.T) {
	// 50% of 10000 would be 5000, but the cap wins.
	c := Coupon{Kind: KindPercentage, PercentBps: 5000, MaxDiscount: money(20_00)}
	if got := CalculateDiscount(c, 100_00); got != 20_00 {
		t.Fatalf("expected discount capped at 2000, got %d", got)
	}
}

func TestCalculateDiscountNeverExceedsSubtotal(t *testing.T) {
	c := Coupon{Kind: KindFixed, Value: 1000_00}
	if got := CalculateDiscount(c, 50_00); got != 50_00 {
		t.Fatalf("expected discount clamped to subtotal 5000, got %d", got)
	}
}

func TestCalculateDiscountRoundsHalfUpOnce(t *testing.T) {
	// 12.5% of 333 minor units = 41.625, rounds to 42.
	c := Coupon{Kind: KindPercentage, PercentBps: 1250}
	if got := CalculateDiscount(c, 333); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestComputeSummaryEndToEnd(t *testing.T) {
	lines := []CartLine{
		{Qty: 1, BasePrice: 450_00},
		{Qty: 2, BasePrice: 125_00},
	}
	save20 := &Coupon{
		Code: "SAVE20", Kind: KindPercentage, PercentBps: 2000,
		MinPurchase: money(100_00),
		ValidFrom:   t0, ValidTo: t1, Active: true,
	}
	params := Params{TaxBps: 1000, ShippingFlatFee: 5_00, FreeShippingThreshold: 50_00}

	summary, outcome, err := ComputeSummary(lines, save20, t0, params)
	if err != nil {
		t.Fatal(err)
	}
	if !outcome.Applied() {
		t.Fatalf("expected SAVE20 applied, got %+v", outcome)
	}
	want := Summary{Subtotal: 700_00, Discount: 140_00, Tax: 56_00, Shipping: 0, Total: 616_00}
	if summary != want {
		t.Fatalf("expected %+v, got %+v", want, summary)
	}
}

func TestComputeSummaryShippingFee(t *testing.T) {
	lines := []CartLine{{Qty: 1, BasePrice: 30_00}}
	params := Params{TaxBps: 1000, ShippingFlatFee: 5_00, FreeShippingThreshold: 50_00}

	summary, outcome, err := ComputeSummary(lines, nil, t0, params)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Status != StatusNoCoupon {
		t.Fatalf("expected NO_COUPON, got %+v", outcome)
	}
	if summary.Shipping != 5_00 {
		t.Fatalf("expected flat shipping fee below threshold, got %d", summary.Shipping)
	}
	if summary.Total != 30_00+3_00+5_00 {
		t.Fatalf("unexpected total %d", summary.Total)
	}
}

func TestComputeSummaryTotalNeverNegative(t *testing.T) {
	lines := []CartLine{{Qty: 1, BasePrice: 50_00}}
	huge := &Coupon{Code: "MEGA", Kind: KindFixed, Value: 1000_00, ValidFrom: t0, ValidTo: t1, Active: true}

	summary, _, err := ComputeSummary(lines, huge, t0, Params{})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Discount != 50_00 {
		t.Fatalf("expected discount clamped to subtotal, got %d", summary.Discount)
	}
	if summary.Total != 0 {
		t.Fatalf("expected zero total, got %d", summary.Total)
	}
}

func TestComputeSummaryRejectedCouponContributesZero(t *testing.T) {
	lines := []CartLine{{Qty: 1, BasePrice: 99_00}}
	gated := &Coupon{
		Code: "MIN100", Kind: KindFixed, Value: 10_00,
		MinPurchase: money(100_00),
		ValidFrom:   t0, ValidTo: t1, Active: true,
	}

	summary, outcome, err := ComputeSummary(lines, gated, t0, Params{TaxBps: 1000})
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Status != StatusRejected || outcome.Reason != ReasonBelowMinimumPurchase {
		t.Fatalf("expected rejection reported, got %+v", outcome)
	}
	if summary.Discount != 0 {
		t.Fatalf("rejected coupon must contribute zero discount, got %d", summary.Discount)
	}
}

func TestComputeSummaryIdempotent(t *testing.T) {
	lines := []CartLine{flashLine(), {Qty: 3, BasePrice: 19_99}}
	c := &Coupon{Code: "SAVE20", Kind: KindPercentage, PercentBps: 2000, ValidFrom: t0, ValidTo: t1, Active: true}
	now := t0.Add(42 * time.Minute)
	params := Params{TaxBps: 1100, ShippingFlatFee: 9_00, FreeShippingThreshold: 500_00}

	first, firstOut, err := ComputeSummary(lines, c, now, params)
	if err != nil {
		t.Fatal(err)
	}
	second, secondOut, err := ComputeSummary(lines, c, now, params)
	if err != nil {
		t.Fatal(err)
	}
	if first != second || firstOut != secondOut {
		t.Fatalf("identical inputs must produce identical output: %+v vs %+v", first, second)
	}
}
