// Package order turns carts into orders and manages their lifecycle.
package order

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/adiwidodo/backend-belanja/internal/common"
	"github.com/adiwidodo/backend-belanja/internal/obs"
	"github.com/adiwidodo/backend-belanja/internal/pricing"
	"github.com/adiwidodo/backend-belanja/internal/store"
)

// Order lifecycle statuses.
const (
	StatusPending    = "pending"
	StatusPaid       = "paid"
	StatusProcessing = "processing"
	StatusShipped    = "shipped"
	StatusDelivered  = "delivered"
	StatusCancelled  = "cancelled"
)

// statusTransitions lists the allowed next statuses per current status.
var statusTransitions = map[string][]string{
	StatusPending:    {StatusPaid, StatusCancelled},
	StatusPaid:       {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped},
	StatusShipped:    {StatusDelivered},
}

// Store enumerates the persistence operations the order service depends on.
type Store interface {
	WithTx(ctx context.Context, fn func(pgx.Tx) error) error
	InsertOrder(ctx context.Context, tx pgx.Tx, params store.CreateOrderParams) (store.Order, error)
	InsertOrderItem(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, params store.CreateOrderItemParams) (store.OrderItem, error)
	DecrementStock(ctx context.Context, tx pgx.Tx, productID uuid.UUID, qty int32) error
	RestoreStock(ctx context.Context, tx pgx.Tx, productID uuid.UUID, qty int32) error
	GetOrder(ctx context.Context, id uuid.UUID) (store.Order, error)
	GetOrderByNumber(ctx context.Context, orderNumber string) (store.Order, error)
	ListOrdersByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]store.Order, int64, error)
	ListOrders(ctx context.Context, status string, limit, offset int) ([]store.Order, int64, error)
	ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]store.OrderItem, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status string) (store.Order, error)
	UpdateOrderStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string) (store.Order, error)
	GetAddress(ctx context.Context, userID, id uuid.UUID) (store.Address, error)
	ClearCart(ctx context.Context, cartID uuid.UUID) error
}

// CartProvider supplies the priced cart contents for checkout.
type CartProvider interface {
	Lines(ctx context.Context, userID uuid.UUID) (store.Cart, []pricing.CartLine, map[uuid.UUID]store.Product, error)
}

// CouponResolver evaluates the cart's coupon at checkout time.
type CouponResolver interface {
	Resolve(ctx context.Context, code string, subtotal pricing.Money) (pricing.Outcome, error)
}

// Notifier dispatches order lifecycle email, usually via the task queue.
type Notifier interface {
	OrderConfirmation(ctx context.Context, userID uuid.UUID, orderNumber string, total int64) error
}

// Service coordinates checkout and order management.
type Service struct {
	store    Store
	carts    CartProvider
	coupons  CouponResolver
	notifier Notifier
	params   pricing.Params
	currency string
	log      zerolog.Logger

	Now func() time.Time
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store    Store
	Carts    CartProvider
	Coupons  CouponResolver
	Notifier Notifier
	Params   pricing.Params
	Currency string
	Logger   zerolog.Logger
}

// NewService constructs the order service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("order: store is required")
	}
	if cfg.Carts == nil {
		return nil, errors.New("order: cart provider is required")
	}
	if cfg.Coupons == nil {
		return nil, errors.New("order: coupon resolver is required")
	}
	if cfg.Currency == "" {
		cfg.Currency = "IDR"
	}
	return &Service{
		store:    cfg.Store,
		carts:    cfg.Carts,
		coupons:  cfg.Coupons,
		notifier: cfg.Notifier,
		params:   cfg.Params,
		currency: cfg.Currency,
		log:      cfg.Logger,
		Now:      time.Now,
	}, nil
}

// Item is one priced order line in the view returned to clients.
type Item struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	UnitPrice   int64  `json:"unit_price"`
	Qty         int32  `json:"qty"`
	LineTotal   int64  `json:"line_total"`
}

// Address is the shipping address snapshot stored on the order.
type Address struct {
	Recipient  string `json:"recipient"`
	Phone      string `json:"phone,omitempty"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Province   string `json:"province,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// Order is the order DTO returned to clients.
type Order struct {
	ID              string          `json:"id"`
	OrderNumber     string          `json:"order_number"`
	Status          string          `json:"status"`
	Summary         pricing.Summary `json:"summary"`
	CouponCode      *string         `json:"coupon_code,omitempty"`
	Currency        string          `json:"currency"`
	ShippingAddress *Address        `json:"shipping_address,omitempty"`
	Items           []Item          `json:"items,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// CreateParams carries checkout input.
type CreateParams struct {
	AddressID string `json:"address_id"`
}

// Create prices the user's cart, reserves stock, and persists the order.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, params CreateParams) (Order, error) {
	addressID, err := uuid.Parse(params.AddressID)
	if err != nil {
		return Order{}, common.NewAppError("VALIDATION_ERROR", "address_id is required", http.StatusBadRequest, err)
	}
	address, err := s.store.GetAddress(ctx, userID, addressID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Order{}, common.NewAppError("NOT_FOUND", "address not found", http.StatusNotFound, err)
		}
		return Order{}, fmt.Errorf("get address: %w", err)
	}

	cart, lines, products, err := s.carts.Lines(ctx, userID)
	if err != nil {
		return Order{}, err
	}
	if len(lines) == 0 {
		return Order{}, common.NewAppError("EMPTY_CART", "cart is empty", http.StatusBadRequest, nil)
	}

	now := s.Now()
	var coupon *pricing.Coupon
	var couponCode *string
	if cart.AppliedCouponCode != nil {
		subtotal, err := pricing.ComputeSubtotal(lines, now)
		if err != nil {
			return Order{}, fmt.Errorf("compute subtotal: %w", err)
		}
		outcome, err := s.coupons.Resolve(ctx, *cart.AppliedCouponCode, subtotal)
		if err != nil {
			return Order{}, err
		}
		if !outcome.Applied() {
			return Order{}, common.NewAppError("COUPON_REJECTED",
				"applied coupon is no longer valid", http.StatusUnprocessableEntity, nil)
		}
		coupon = outcome.Coupon
		couponCode = &outcome.Coupon.Code
	}

	summary, _, err := pricing.ComputeSummary(lines, coupon, now, s.params)
	if err != nil {
		return Order{}, fmt.Errorf("compute summary: %w", err)
	}

	addressJSON, err := json.Marshal(toAddress(address))
	if err != nil {
		return Order{}, fmt.Errorf("marshal address: %w", err)
	}
	orderNumber, err := newOrderNumber()
	if err != nil {
		return Order{}, fmt.Errorf("generate order number: %w", err)
	}

	var created store.Order
	var createdItems []store.OrderItem
	err = s.store.WithTx(ctx, func(tx pgx.Tx) error {
		for _, line := range lines {
			if err := s.store.DecrementStock(ctx, tx, line.ProductID, int32(line.Qty)); err != nil {
				if errors.Is(err, store.ErrConflict) {
					name := line.ProductID.String()
					if p, ok := products[line.ProductID]; ok {
						name = p.Name
					}
					return common.NewAppError("INSUFFICIENT_STOCK",
						fmt.Sprintf("not enough stock for %s", name), http.StatusConflict, err)
				}
				return fmt.Errorf("decrement stock: %w", err)
			}
		}
		created, err = s.store.InsertOrder(ctx, tx, store.CreateOrderParams{
			OrderNumber:     orderNumber,
			UserID:          userID,
			Subtotal:        summary.Subtotal,
			Discount:        summary.Discount,
			Tax:             summary.Tax,
			ShippingFee:     summary.Shipping,
			Total:           summary.Total,
			CouponCode:      couponCode,
			Currency:        s.currency,
			ShippingAddress: addressJSON,
		})
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		for _, line := range lines {
			unit := pricing.ResolveEffectivePrice(line, now)
			name := line.ProductID.String()
			if p, ok := products[line.ProductID]; ok {
				name = p.Name
			}
			item, err := s.store.InsertOrderItem(ctx, tx, created.ID, store.CreateOrderItemParams{
				ProductID:   line.ProductID,
				ProductName: name,
				UnitPrice:   unit,
				Qty:         int32(line.Qty),
				LineTotal:   unit * int64(line.Qty),
			})
			if err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
			createdItems = append(createdItems, item)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	if err := s.store.ClearCart(ctx, cart.ID); err != nil {
		s.log.Error().Err(err).Str("order_number", orderNumber).Msg("clear cart after checkout")
	}
	if obs.OrdersCreatedTotal != nil {
		obs.OrdersCreatedTotal.Inc()
	}
	if s.notifier != nil {
		if err := s.notifier.OrderConfirmation(ctx, userID, orderNumber, summary.Total); err != nil {
			s.log.Error().Err(err).Str("order_number", orderNumber).Msg("enqueue order confirmation")
		}
	}
	return s.toOrder(created, createdItems), nil
}

// Get returns one of the user's orders with its lines.
func (s *Service) Get(ctx context.Context, userID, orderID uuid.UUID) (Order, error) {
	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Order{}, notFound(err)
		}
		return Order{}, fmt.Errorf("get order: %w", err)
	}
	if o.UserID != userID {
		return Order{}, notFound(nil)
	}
	items, err := s.store.ListOrderItems(ctx, o.ID)
	if err != nil {
		return Order{}, fmt.Errorf("list order items: %w", err)
	}
	return s.toOrder(o, items), nil
}

// List returns a page of the user's orders.
func (s *Service) List(ctx context.Context, userID uuid.UUID, page, limit int) ([]Order, common.Pagination, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	rows, total, err := s.store.ListOrdersByUser(ctx, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, common.Pagination{}, fmt.Errorf("list orders: %w", err)
	}
	out := make([]Order, 0, len(rows))
	for _, o := range rows {
		out = append(out, s.toOrder(o, nil))
	}
	return out, common.NewPagination(page, limit, total), nil
}

// Track returns the status of an order by its public number, owner only.
func (s *Service) Track(ctx context.Context, userID uuid.UUID, orderNumber string) (Order, error) {
	o, err := s.store.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Order{}, notFound(err)
		}
		return Order{}, fmt.Errorf("get order: %w", err)
	}
	if o.UserID != userID {
		return Order{}, notFound(nil)
	}
	return s.toOrder(o, nil), nil
}

// Cancel cancels a pending or paid order and restores its stock.
func (s *Service) Cancel(ctx context.Context, userID, orderID uuid.UUID) (Order, error) {
	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Order{}, notFound(err)
		}
		return Order{}, fmt.Errorf("get order: %w", err)
	}
	if o.UserID != userID {
		return Order{}, notFound(nil)
	}
	if !transitionAllowed(o.Status, StatusCancelled) {
		return Order{}, common.NewAppError("INVALID_STATUS",
			fmt.Sprintf("order in status %s cannot be cancelled", o.Status), http.StatusConflict, nil)
	}

	items, err := s.store.ListOrderItems(ctx, o.ID)
	if err != nil {
		return Order{}, fmt.Errorf("list order items: %w", err)
	}
	var cancelled store.Order
	err = s.store.WithTx(ctx, func(tx pgx.Tx) error {
		for _, item := range items {
			if err := s.store.RestoreStock(ctx, tx, item.ProductID, item.Qty); err != nil {
				return fmt.Errorf("restore stock: %w", err)
			}
		}
		cancelled, err = s.store.UpdateOrderStatusTx(ctx, tx, o.ID, StatusCancelled)
		return err
	})
	if err != nil {
		return Order{}, err
	}
	return s.toOrder(cancelled, items), nil
}

// AdminGet returns any order with its lines, regardless of owner.
func (s *Service) AdminGet(ctx context.Context, orderID uuid.UUID) (Order, error) {
	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Order{}, notFound(err)
		}
		return Order{}, fmt.Errorf("get order: %w", err)
	}
	items, err := s.store.ListOrderItems(ctx, o.ID)
	if err != nil {
		return Order{}, fmt.Errorf("list order items: %w", err)
	}
	return s.toOrder(o, items), nil
}

// AdminList returns all orders, optionally filtered by status.
func (s *Service) AdminList(ctx context.Context, status string, page, limit int) ([]Order, common.Pagination, error) {
	if status != "" && !validStatus(status) {
		return nil, common.Pagination{}, common.NewAppError("VALIDATION_ERROR", "unknown status", http.StatusBadRequest, nil)
	}
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	rows, total, err := s.store.ListOrders(ctx, status, limit, (page-1)*limit)
	if err != nil {
		return nil, common.Pagination{}, fmt.Errorf("list orders: %w", err)
	}
	out := make([]Order, 0, len(rows))
	for _, o := range rows {
		out = append(out, s.toOrder(o, nil))
	}
	return out, common.NewPagination(page, limit, total), nil
}

// UpdateStatus moves an order along its lifecycle on behalf of an admin.
func (s *Service) UpdateStatus(ctx context.Context, orderID uuid.UUID, status string) (Order, error) {
	if !validStatus(status) {
		return Order{}, common.NewAppError("VALIDATION_ERROR", "unknown status", http.StatusBadRequest, nil)
	}
	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Order{}, notFound(err)
		}
		return Order{}, fmt.Errorf("get order: %w", err)
	}
	if !transitionAllowed(o.Status, status) {
		return Order{}, common.NewAppError("INVALID_STATUS",
			fmt.Sprintf("cannot move order from %s to %s", o.Status, status), http.StatusConflict, nil)
	}
	if status == StatusCancelled {
		items, err := s.store.ListOrderItems(ctx, o.ID)
		if err != nil {
			return Order{}, fmt.Errorf("list order items: %w", err)
		}
		var cancelled store.Order
		err = s.store.WithTx(ctx, func(tx pgx.Tx) error {
			for _, item := range items {
				if err := s.store.RestoreStock(ctx, tx, item.ProductID, item.Qty); err != nil {
					return fmt.Errorf("restore stock: %w", err)
				}
			}
			cancelled, err = s.store.UpdateOrderStatusTx(ctx, tx, o.ID, StatusCancelled)
			return err
		})
		if err != nil {
			return Order{}, err
		}
		return s.toOrder(cancelled, items), nil
	}
	updated, err := s.store.UpdateOrderStatus(ctx, orderID, status)
	if err != nil {
		return Order{}, fmt.Errorf("update status: %w", err)
	}
	return s.toOrder(updated, nil), nil
}

func (s *Service) toOrder(o store.Order, items []store.OrderItem) Order {
	var address *Address
	if len(o.ShippingAddress) > 0 {
		var a Address
		if err := json.Unmarshal(o.ShippingAddress, &a); err == nil {
			address = &a
		}
	}
	out := Order{
		ID:          o.ID.String(),
		OrderNumber: o.OrderNumber,
		Status:      o.Status,
		Summary: pricing.Summary{
			Subtotal: o.Subtotal,
			Discount: o.Discount,
			Tax:      o.Tax,
			Shipping: o.ShippingFee,
			Total:    o.Total,
		},
		CouponCode:      o.CouponCode,
		Currency:        o.Currency,
		ShippingAddress: address,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	for _, item := range items {
		out.Items = append(out.Items, Item{
			ProductID:   item.ProductID.String(),
			ProductName: item.ProductName,
			UnitPrice:   item.UnitPrice,
			Qty:         item.Qty,
			LineTotal:   item.LineTotal,
		})
	}
	return out
}

func toAddress(a store.Address) Address {
	return Address{
		Recipient:  a.Recipient,
		Phone:      a.Phone,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		Province:   a.Province,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

func transitionAllowed(from, to string) bool {
	for _, allowed := range statusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func validStatus(status string) bool {
	switch status {
	case StatusPending, StatusPaid, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

func notFound(err error) error {
	return common.NewAppError("NOT_FOUND", "order not found", http.StatusNotFound, err)
}

const orderNumberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func newOrderNumber() (string, error) {
	buf := make([]byte, 10)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = orderNumberAlphabet[int(b)%len(orderNumberAlphabet)]
	}
	return "ORD-" + string(buf), nil
}
