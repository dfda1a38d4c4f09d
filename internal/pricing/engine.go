// Package pricing computes cart and order totals. It is the single source of
// truth for effective unit prices, coupon discounts, tax, and shipping: cart
// previews, coupon application, and order creation all call ComputeSummary so
// the numbers shown to the customer and the numbers persisted on the order can
// never diverge.
//
// The package is pure: the current instant is always passed in by the caller
// and no I/O is performed, so every function is deterministic and safe for
// concurrent use.
package pricing

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Money represents a monetary value stored in minor units.
type Money = int64

// ErrInvalidInput is returned for programmer-error inputs such as negative
// quantities or negative price fields. Business-rule failures (rejected
// coupons) are reported through Outcome values instead.
var ErrInvalidInput = errors.New("pricing: invalid input")

// Window is a closed time interval. A window whose Start is after its End is
// treated as never active.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls within the window, inclusive at both ends.
func (w Window) Contains(t time.Time) bool {
	if w.Start.After(w.End) {
		return false
	}
	return !t.Before(w.Start) && !t.After(w.End)
}

// CartLine describes one cart line joined with the product's current pricing
// fields. The caller supplies lines already loaded from storage; this package
// never queries anything.
type CartLine struct {
	ProductID   uuid.UUID
	Qty         int
	BasePrice   Money
	SalePrice   *Money
	FlashPrice  *Money
	FlashWindow *Window
}

// Kind distinguishes coupon discount behaviour.
type Kind string

const (
	// KindPercentage discounts a fraction of the subtotal. The fraction is
	// carried in Coupon.PercentBps (basis points, 2000 = 20%).
	KindPercentage Kind = "percentage"
	// KindFixed discounts a flat amount in minor units.
	KindFixed Kind = "fixed"
)

// Coupon is the read-only coupon record as supplied by the caller. Code lookup
// is case-insensitive at the storage layer; the engine never mutates a coupon.
type Coupon struct {
	Code        string
	Kind        Kind
	Value       Money
	PercentBps  int32
	MinPurchase *Money
	MaxDiscount *Money
	ValidFrom   time.Time
	ValidTo     time.Time
	Active      bool
}

// RejectReason explains why a coupon contributed no discount.
type RejectReason string

const (
	ReasonNotFound             RejectReason = "NOT_FOUND"
	ReasonInactive             RejectReason = "INACTIVE"
	ReasonOutOfWindow          RejectReason = "OUT_OF_WINDOW"
	ReasonBelowMinimumPurchase RejectReason = "BELOW_MINIMUM_PURCHASE"
)

// Status tags a coupon outcome.
type Status string

const (
	StatusNoCoupon Status = "NO_COUPON"
	StatusValid    Status = "VALID"
	StatusRejected Status = "REJECTED"
)

// Outcome is the tagged result of coupon validation. A rejected coupon is a
// normal result value, not an error: callers branch on it to pick the
// user-facing message and must be able to distinguish "no coupon supplied"
// from "coupon rejected".
type Outcome struct {
	Status Status
	Coupon *Coupon
	Reason RejectReason
}

// NoCoupon reports the caller supplied no coupon at all.
func NoCoupon() Outcome { return Outcome{Status: StatusNoCoupon} }

// ValidCoupon wraps a coupon that passed every validity check.
func ValidCoupon(c *Coupon) Outcome { return Outcome{Status: StatusValid, Coupon: c} }

// Rejected reports a coupon that failed validation for the given reason.
func Rejected(reason RejectReason) Outcome {
	return Outcome{Status: StatusRejected, Reason: reason}
}

// Applied reports whether the outcome carries a usable coupon.
func (o Outcome) Applied() bool { return o.Status == StatusValid && o.Coupon != nil }

// Params carries the order-level pricing configuration.
type Params struct {
	// TaxBps is the tax rate in basis points, applied to the post-discount
	// amount.
	TaxBps int
	// ShippingFlatFee is charged unless free shipping applies.
	ShippingFlatFee Money
	// FreeShippingThreshold waives the shipping fee when the pre-discount
	// subtotal exceeds it. Zero or negative disables free shipping.
	FreeShippingThreshold Money
}

// Summary aggregates computed pricing components.
// Total = Subtotal - Discount + Tax + Shipping, and is never negative.
type Summary struct {
	Subtotal Money `json:"subtotal"`
	Discount Money `json:"discount"`
	Tax      Money `json:"tax"`
	Shipping Money `json:"shipping"`
	Total    Money `json:"total"`
}

// ResolveEffectivePrice returns the unit price actually charged for the line
// at the given instant. Priority order, first match wins:
//
//  1. flash-sale price, when set and now falls inside the flash window
//     (inclusive at both ends);
//  2. sale price, when set;
//  3. base price.
//
// A malformed window (start after end) is never active and falls through.
func ResolveEffectivePrice(line CartLine, now time.Time) Money {
	if line.FlashPrice != nil && line.FlashWindow != nil && line.FlashWindow.Contains(now) {
		return *line.FlashPrice
	}
	if line.SalePrice != nil {
		return *line.SalePrice
	}
	return line.BasePrice
}

// ComputeSubtotal sums effective unit price times quantity across all lines.
// An empty slice yields subtotal 0; rejecting an empty cart is the caller's
// concern. Negative quantities or price fields yield ErrInvalidInput, never a
// clamped or negative result.
func ComputeSubtotal(lines []CartLine, now time.Time) (Money, error) {
	var subtotal Money
	for _, line := range lines {
		if err := checkLine(line); err != nil {
			return 0, err
		}
		subtotal += ResolveEffectivePrice(line, now) * Money(line.Qty)
	}
	return subtotal, nil
}

func checkLine(line CartLine) error {
	if line.Qty < 0 {
		return ErrInvalidInput
	}
	if line.BasePrice < 0 {
		return ErrInvalidInput
	}
	if line.SalePrice != nil && *line.SalePrice < 0 {
		return ErrInvalidInput
	}
	if line.FlashPrice != nil && *line.FlashPrice < 0 {
		return ErrInvalidInput
	}
	return nil
}

// ValidateCoupon checks the coupon against its activity flag, validity window
// (inclusive at both bounds), and minimum-purchase threshold. A nil coupon
// means no coupon was attempted. Callers that fail to find a record for a
// submitted code report Rejected(ReasonNotFound) themselves.
func ValidateCoupon(c *Coupon, subtotal Money, now time.Time) Outcome {
	if c == nil {
		return NoCoupon()
	}
	if !c.Active {
		return Rejected(ReasonInactive)
	}
	if now.Before(c.ValidFrom) || now.After(c.ValidTo) {
		return Rejected(ReasonOutOfWindow)
	}
	if c.MinPurchase != nil && subtotal < *c.MinPurchase {
		return Rejected(ReasonBelowMinimumPurchase)
	}
	return ValidCoupon(c)
}

// CalculateDiscount computes the discount amount for a coupon that already
// passed ValidateCoupon. Percentage discounts are rounded half-up once, after
// the basis-point multiplication. The result never exceeds the coupon's
// max-discount cap nor the subtotal.
func CalculateDiscount(c Coupon, subtotal Money) Money {
	var raw Money
	switch c.Kind {
	case KindPercentage:
		if c.PercentBps <= 0 {
			return 0
		}
		raw = roundHalfUpDiv(subtotal*Money(c.PercentBps), 10000)
	default:
		raw = c.Value
	}
	if c.MaxDiscount != nil && raw > *c.MaxDiscount {
		raw = *c.MaxDiscount
	}
	if raw > subtotal {
		raw = subtotal
	}
	if raw < 0 {
		return 0
	}
	return raw
}

// ComputeSummary orchestrates a full pricing pass: subtotal, coupon
// validation, discount, tax on the post-discount amount, and shipping (flat
// fee waived when the pre-discount subtotal exceeds the free-shipping
// threshold). The coupon outcome is returned alongside the summary so callers
// can message the user; only programmer-error inputs produce an error.
func ComputeSummary(lines []CartLine, coupon *Coupon, now time.Time, p Params) (Summary, Outcome, error) {
	if p.TaxBps < 0 || p.ShippingFlatFee < 0 {
		return Summary{}, Outcome{}, ErrInvalidInput
	}
	subtotal, err := ComputeSubtotal(lines, now)
	if err != nil {
		return Summary{}, Outcome{}, err
	}

	outcome := ValidateCoupon(coupon, subtotal, now)
	var discount Money
	if outcome.Applied() {
		discount = CalculateDiscount(*outcome.Coupon, subtotal)
	}

	taxable := subtotal - discount
	if taxable < 0 {
		taxable = 0
	}
	tax := roundHalfUpDiv(taxable*Money(p.TaxBps), 10000)

	shipping := p.ShippingFlatFee
	if p.FreeShippingThreshold > 0 && subtotal > p.FreeShippingThreshold {
		shipping = 0
	}

	return Summary{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Shipping: shipping,
		Total:    taxable + tax + shipping,
	}, outcome, nil
}

// roundHalfUpDiv divides n by d rounding half up. n is never negative on any
// call path here.
func roundHalfUpDiv(n, d Money) Money {
	if d <= 0 {
		return 0
	}
	return (n + d/2) / d
}
