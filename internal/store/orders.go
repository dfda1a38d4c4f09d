package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Order mirrors a row in the orders table.
type Order struct {
	ID              uuid.UUID
	OrderNumber     string
	UserID          uuid.UUID
	Status          string
	Subtotal        int64
	Discount        int64
	Tax             int64
	ShippingFee     int64
	Total           int64
	CouponCode      *string
	Currency        string
	ShippingAddress []byte
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderItem mirrors a row in the order_items table.
type OrderItem struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	ProductID   uuid.UUID
	ProductName string
	UnitPrice   int64
	Qty         int32
	LineTotal   int64
}

const orderColumns = `id, order_number, user_id, status, subtotal, discount, tax, shipping_fee,
	total, coupon_code, currency, shipping_address, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.Status, &o.Subtotal, &o.Discount, &o.Tax,
		&o.ShippingFee, &o.Total, &o.CouponCode, &o.Currency, &o.ShippingAddress, &o.CreatedAt, &o.UpdatedAt)
	return o, mapErr(err)
}

// CreateOrderParams carries the priced order header.
type CreateOrderParams struct {
	OrderNumber     string
	UserID          uuid.UUID
	Subtotal        int64
	Discount        int64
	Tax             int64
	ShippingFee     int64
	Total           int64
	CouponCode      *string
	Currency        string
	ShippingAddress []byte
}

// CreateOrderItemParams carries a priced order line.
type CreateOrderItemParams struct {
	ProductID   uuid.UUID
	ProductName string
	UnitPrice   int64
	Qty         int32
	LineTotal   int64
}

// InsertOrder writes the order header inside the given transaction.
func (s *Store) InsertOrder(ctx context.Context, tx pgx.Tx, params CreateOrderParams) (Order, error) {
	return scanOrder(tx.QueryRow(ctx,
		`INSERT INTO orders (order_number, user_id, subtotal, discount, tax, shipping_fee, total, coupon_code, currency, shipping_address)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING `+orderColumns,
		params.OrderNumber, params.UserID, params.Subtotal, params.Discount, params.Tax,
		params.ShippingFee, params.Total, params.CouponCode, params.Currency, params.ShippingAddress))
}

// InsertOrderItem writes one order line inside the given transaction.
func (s *Store) InsertOrderItem(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, params CreateOrderItemParams) (OrderItem, error) {
	var item OrderItem
	err := tx.QueryRow(ctx,
		`INSERT INTO order_items (order_id, product_id, product_name, unit_price, qty, line_total)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, order_id, product_id, product_name, unit_price, qty, line_total`,
		orderID, params.ProductID, params.ProductName, params.UnitPrice, params.Qty, params.LineTotal).
		Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.UnitPrice, &item.Qty, &item.LineTotal)
	return item, mapErr(err)
}

// GetOrder fetches an order by id.
func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
}

// GetOrderByNumber fetches an order by its public number.
func (s *Store) GetOrderByNumber(ctx context.Context, orderNumber string) (Order, error) {
	return scanOrder(s.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, orderNumber))
}

// ListOrdersByUser returns a page of the user's orders, newest first.
func (s *Store) ListOrdersByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Order, int64, error) {
	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM orders WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, mapErr(err)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, mapErr(rows.Err())
}

// ListOrders returns all orders for the admin view, optionally filtered by status.
func (s *Store) ListOrders(ctx context.Context, status string, limit, offset int) ([]Order, int64, error) {
	var total int64
	if err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM orders WHERE ($1 = '' OR status = $1)`, status).Scan(&total); err != nil {
		return nil, 0, mapErr(err)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE ($1 = '' OR status = $1)
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		status, limit, offset)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, mapErr(rows.Err())
}

// ListOrderItems returns the lines of an order.
func (s *Store) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, order_id, product_id, product_name, unit_price, qty, line_total
		 FROM order_items WHERE order_id = $1`,
		orderID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []OrderItem
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName,
			&item.UnitPrice, &item.Qty, &item.LineTotal); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, item)
	}
	return out, mapErr(rows.Err())
}

// UpdateOrderStatus moves an order to a new status.
func (s *Store) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status string) (Order, error) {
	return scanOrder(s.pool.QueryRow(ctx,
		`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1 RETURNING `+orderColumns,
		id, status))
}

// UpdateOrderStatusTx moves an order to a new status inside a transaction.
func (s *Store) UpdateOrderStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string) (Order, error) {
	return scanOrder(tx.QueryRow(ctx,
		`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1 RETURNING `+orderColumns,
		id, status))
}
