package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Product mirrors a row in the products table.
type Product struct {
	ID             uuid.UUID
	CategoryID     *uuid.UUID
	BrandID        *uuid.UUID
	Name           string
	Slug           string
	Description    string
	Price          int64
	SalePrice      *int64
	FlashSalePrice *int64
	FlashSaleStart *time.Time
	FlashSaleEnd   *time.Time
	Stock          int32
	ImageURL       string
	IsActive       bool
	IsFeatured     bool
	RatingSum      int64
	RatingCount    int32
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

const productColumns = `id, category_id, brand_id, name, slug, description, price, sale_price,
	flash_sale_price, flash_sale_start, flash_sale_end, stock, image_url, is_active, is_featured,
	rating_sum, rating_count, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.CategoryID, &p.BrandID, &p.Name, &p.Slug, &p.Description,
		&p.Price, &p.SalePrice, &p.FlashSalePrice, &p.FlashSaleStart, &p.FlashSaleEnd,
		&p.Stock, &p.ImageURL, &p.IsActive, &p.IsFeatured, &p.RatingSum, &p.RatingCount,
		&p.CreatedAt, &p.UpdatedAt)
	return p, mapErr(err)
}

// GetProduct fetches a product by id.
func (s *Store) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = $1`, productColumns)
	return scanProduct(s.pool.QueryRow(ctx, query, id))
}

// GetProductBySlug fetches a product by slug.
func (s *Store) GetProductBySlug(ctx context.Context, slug string) (Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE slug = $1`, productColumns)
	return scanProduct(s.pool.QueryRow(ctx, query, slug))
}

// GetProductsByIDs loads the given products preserving lookup by id.
func (s *Store) GetProductsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Product, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]Product{}, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = ANY($1)`, productColumns)
	rows, err := s.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID]Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, mapErr(rows.Err())
}

// ListProductsParams filters and paginates the product listing.
type ListProductsParams struct {
	CategorySlug  string
	BrandSlug     string
	Search        string
	MinPrice      *int64
	MaxPrice      *int64
	FlashSaleOnly bool
	FeaturedOnly  bool
	IncludeHidden bool
	Sort          string
	Limit         int
	Offset        int
}

// ListProducts returns a page of products plus the total match count.
func (s *Store) ListProducts(ctx context.Context, params ListProductsParams) ([]Product, int64, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if !params.IncludeHidden {
		conds = append(conds, "p.is_active")
	}
	if params.CategorySlug != "" {
		conds = append(conds, fmt.Sprintf("p.category_id = (SELECT id FROM categories WHERE slug = %s)", arg(params.CategorySlug)))
	}
	if params.BrandSlug != "" {
		conds = append(conds, fmt.Sprintf("p.brand_id = (SELECT id FROM brands WHERE slug = %s)", arg(params.BrandSlug)))
	}
	if params.Search != "" {
		placeholder := arg("%" + params.Search + "%")
		conds = append(conds, fmt.Sprintf("(p.name ILIKE %s OR p.description ILIKE %s)", placeholder, placeholder))
	}
	if params.MinPrice != nil {
		conds = append(conds, fmt.Sprintf("p.price >= %s", arg(*params.MinPrice)))
	}
	if params.MaxPrice != nil {
		conds = append(conds, fmt.Sprintf("p.price <= %s", arg(*params.MaxPrice)))
	}
	if params.FlashSaleOnly {
		conds = append(conds, "p.flash_sale_price IS NOT NULL AND p.flash_sale_start <= now() AND p.flash_sale_end >= now()")
	}
	if params.FeaturedOnly {
		conds = append(conds, "p.is_featured")
	}
	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	countQuery := fmt.Sprintf("SELECT count(*) FROM products p %s", where)
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, mapErr(err)
	}

	orderBy := "p.created_at DESC"
	switch params.Sort {
	case "price_asc":
		orderBy = "COALESCE(p.sale_price, p.price) ASC"
	case "price_desc":
		orderBy = "COALESCE(p.sale_price, p.price) DESC"
	case "name":
		orderBy = "p.name ASC"
	case "rating":
		orderBy = "CASE WHEN p.rating_count = 0 THEN 0 ELSE p.rating_sum::numeric / p.rating_count END DESC"
	}
	query := fmt.Sprintf("SELECT %s FROM products p %s ORDER BY %s LIMIT %s OFFSET %s",
		productColumns, where, orderBy, arg(params.Limit), arg(params.Offset))
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, mapErr(rows.Err())
}

// CreateProductParams carries admin-supplied product attributes.
type CreateProductParams struct {
	CategoryID     *uuid.UUID
	BrandID        *uuid.UUID
	Name           string
	Slug           string
	Description    string
	Price          int64
	SalePrice      *int64
	FlashSalePrice *int64
	FlashSaleStart *time.Time
	FlashSaleEnd   *time.Time
	Stock          int32
	ImageURL       string
	IsActive       bool
	IsFeatured     bool
}

// CreateProduct inserts a new product.
func (s *Store) CreateProduct(ctx context.Context, params CreateProductParams) (Product, error) {
	query := fmt.Sprintf(`INSERT INTO products
		(category_id, brand_id, name, slug, description, price, sale_price, flash_sale_price,
		 flash_sale_start, flash_sale_end, stock, image_url, is_active, is_featured)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING %s`, productColumns)
	return scanProduct(s.pool.QueryRow(ctx, query,
		params.CategoryID, params.BrandID, params.Name, params.Slug, params.Description,
		params.Price, params.SalePrice, params.FlashSalePrice, params.FlashSaleStart,
		params.FlashSaleEnd, params.Stock, params.ImageURL, params.IsActive, params.IsFeatured))
}

// UpdateProduct overwrites product attributes.
func (s *Store) UpdateProduct(ctx context.Context, id uuid.UUID, params CreateProductParams) (Product, error) {
	query := fmt.Sprintf(`UPDATE products SET
		category_id = $2, brand_id = $3, name = $4, slug = $5, description = $6, price = $7,
		sale_price = $8, flash_sale_price = $9, flash_sale_start = $10, flash_sale_end = $11,
		stock = $12, image_url = $13, is_active = $14, is_featured = $15, updated_at = now()
		WHERE id = $1
		RETURNING %s`, productColumns)
	return scanProduct(s.pool.QueryRow(ctx, query, id,
		params.CategoryID, params.BrandID, params.Name, params.Slug, params.Description,
		params.Price, params.SalePrice, params.FlashSalePrice, params.FlashSaleStart,
		params.FlashSaleEnd, params.Stock, params.ImageURL, params.IsActive, params.IsFeatured))
}

// ListRelatedProducts returns other active products from the same category.
func (s *Store) ListRelatedProducts(ctx context.Context, categoryID, exclude uuid.UUID, limit int) ([]Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products
		WHERE category_id = $1 AND id <> $2 AND is_active
		ORDER BY rating_sum DESC, created_at DESC
		LIMIT $3`, productColumns)
	rows, err := s.pool.Query(ctx, query, categoryID, exclude, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, mapErr(rows.Err())
}

// DeleteProduct removes a product.
func (s *Store) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DecrementStock reduces available stock inside the given transaction, failing on underflow.
func (s *Store) DecrementStock(ctx context.Context, tx pgx.Tx, productID uuid.UUID, qty int32) error {
	tag, err := tx.Exec(ctx,
		`UPDATE products SET stock = stock - $2, updated_at = now() WHERE id = $1 AND stock >= $2`,
		productID, qty)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// RestoreStock returns stock after an order is cancelled.
func (s *Store) RestoreStock(ctx context.Context, tx pgx.Tx, productID uuid.UUID, qty int32) error {
	_, err := tx.Exec(ctx,
		`UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`,
		productID, qty)
	return mapErr(err)
}

// AdjustRating applies a delta to the product rating aggregate.
func (s *Store) AdjustRating(ctx context.Context, productID uuid.UUID, sumDelta int64, countDelta int32) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE products SET rating_sum = rating_sum + $2, rating_count = rating_count + $3, updated_at = now()
		 WHERE id = $1`,
		productID, sumDelta, countDelta)
	return mapErr(err)
}
