// Package catalog serves products, categories, and brands with Redis-backed caching.
package catalog

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
	"github.com/adiwidodo/backend-belanja/internal/pricing"
	"github.com/adiwidodo/backend-belanja/internal/store"
)

// Store enumerates the persistence operations the catalog service depends on.
type Store interface {
	ListProducts(ctx context.Context, params store.ListProductsParams) ([]store.Product, int64, error)
	ListRelatedProducts(ctx context.Context, categoryID, exclude uuid.UUID, limit int) ([]store.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (store.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (store.Product, error)
	CreateProduct(ctx context.Context, params store.CreateProductParams) (store.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, params store.CreateProductParams) (store.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	ListCategories(ctx context.Context, includeHidden bool) ([]store.Category, error)
	GetCategoryBySlug(ctx context.Context, slug string) (store.Category, error)
	CreateCategory(ctx context.Context, name, slug string, parentID *uuid.UUID, active bool) (store.Category, error)
	UpdateCategory(ctx context.Context, id uuid.UUID, name, slug string, parentID *uuid.UUID, active bool) (store.Category, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) error
	ListBrands(ctx context.Context, includeHidden bool) ([]store.Brand, error)
	GetBrandBySlug(ctx context.Context, slug string) (store.Brand, error)
	CreateBrand(ctx context.Context, name, slug string, active bool) (store.Brand, error)
	UpdateBrand(ctx context.Context, id uuid.UUID, name, slug string, active bool) (store.Brand, error)
	DeleteBrand(ctx context.Context, id uuid.UUID) error
}

const cachePrefix = "catalog:"

// Service orchestrates catalog queries, DTO assembly, and caching.
type Service struct {
	store        Store
	cache        *Cache
	validate     *validator.Validate
	defaultLimit int
	maxLimit     int

	// Now is injectable for deterministic flash-sale windows in tests.
	Now func() time.Time
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store        Store
	Cache        *Cache
	Validate     *validator.Validate
	DefaultLimit int
	MaxLimit     int
}

// NewService constructs the catalog service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog: store is required")
	}
	if cfg.Validate == nil {
		cfg.Validate = validator.New()
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 20
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 100
	}
	return &Service{
		store:        cfg.Store,
		cache:        cfg.Cache,
		validate:     cfg.Validate,
		defaultLimit: cfg.DefaultLimit,
		maxLimit:     cfg.MaxLimit,
		Now:          time.Now,
	}, nil
}

// FlashSale describes an active or scheduled flash sale on a product.
type FlashSale struct {
	Price    int64     `json:"price"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
	Active   bool      `json:"active"`
}

// Rating aggregates review scores for a product.
type Rating struct {
	Average float64 `json:"average"`
	Count   int32   `json:"count"`
}

// Product is the public product DTO.
type Product struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Slug         string     `json:"slug"`
	Description  string     `json:"description"`
	Price        int64      `json:"price"`
	SalePrice    *int64     `json:"sale_price,omitempty"`
	FlashSale    *FlashSale `json:"flash_sale,omitempty"`
	CurrentPrice int64      `json:"current_price"`
	Stock        int32      `json:"stock"`
	InStock      bool       `json:"in_stock"`
	ImageURL     string     `json:"image_url,omitempty"`
	Rating       Rating     `json:"rating"`
	CategoryID   *string    `json:"category_id,omitempty"`
	BrandID      *string    `json:"brand_id,omitempty"`
	IsActive     bool       `json:"is_active"`
	IsFeatured   bool       `json:"is_featured"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Category is the public category DTO.
type Category struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Slug     string  `json:"slug"`
	ParentID *string `json:"parent_id,omitempty"`
	IsActive bool    `json:"is_active"`
}

// Brand is the public brand DTO.
type Brand struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	IsActive bool   `json:"is_active"`
}

// ListParams captures filters for the product listing.
type ListParams struct {
	Query     string
	Category  string
	Brand     string
	MinPrice  *int64
	MaxPrice  *int64
	FlashSale bool
	Featured  bool
	Sort      string
	Page      int
	Limit     int
}

// ListResult bundles a product page with pagination metadata.
type ListResult struct {
	Items      []Product         `json:"items"`
	Pagination common.Pagination `json:"pagination"`
}

// ListProducts returns a filtered, paginated product listing.
func (s *Service) ListProducts(ctx context.Context, params ListParams) (ListResult, error) {
	page := params.Page
	if page <= 0 {
		page = 1
	}
	limit := params.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}

	key := listCacheKey(params, page, limit)
	var cached ListResult
	if found, err := s.cache.GetJSON(ctx, key, &cached); err == nil && found {
		return cached, nil
	}

	products, total, err := s.store.ListProducts(ctx, store.ListProductsParams{
		CategorySlug:  params.Category,
		BrandSlug:     params.Brand,
		Search:        strings.TrimSpace(params.Query),
		MinPrice:      params.MinPrice,
		MaxPrice:      params.MaxPrice,
		FlashSaleOnly: params.FlashSale,
		FeaturedOnly:  params.Featured,
		Sort:          params.Sort,
		Limit:         limit,
		Offset:        (page - 1) * limit,
	})
	if err != nil {
		return ListResult{}, fmt.Errorf("list products: %w", err)
	}

	now := s.Now()
	items := make([]Product, 0, len(products))
	for _, p := range products {
		items = append(items, s.toProduct(p, now))
	}
	result := ListResult{Items: items, Pagination: common.NewPagination(page, limit, total)}
	_ = s.cache.SetJSON(ctx, key, result)
	return result, nil
}

// GetProduct returns one product by slug.
func (s *Service) GetProduct(ctx context.Context, slug string) (Product, error) {
	key := cachePrefix + "product:" + slug
	var cached Product
	if found, err := s.cache.GetJSON(ctx, key, &cached); err == nil && found {
		return cached, nil
	}

	p, err := s.store.GetProductBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Product{}, common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, err)
		}
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	if !p.IsActive {
		return Product{}, common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, nil)
	}
	result := s.toProduct(p, s.Now())
	_ = s.cache.SetJSON(ctx, key, result)
	return result, nil
}

// ListRelated returns products from the same category as the given slug.
func (s *Service) ListRelated(ctx context.Context, slug string, limit int) ([]Product, error) {
	if limit <= 0 || limit > s.maxLimit {
		limit = 8
	}
	p, err := s.store.GetProductBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, err)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	if p.CategoryID == nil {
		return []Product{}, nil
	}

	key := fmt.Sprintf("%srelated:%s:%d", cachePrefix, slug, limit)
	var cached []Product
	if found, err := s.cache.GetJSON(ctx, key, &cached); err == nil && found {
		return cached, nil
	}

	rows, err := s.store.ListRelatedProducts(ctx, *p.CategoryID, p.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("list related products: %w", err)
	}
	now := s.Now()
	out := make([]Product, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.toProduct(row, now))
	}
	_ = s.cache.SetJSON(ctx, key, out)
	return out, nil
}

// ListCategories returns all visible categories.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	key := cachePrefix + "categories"
	var cached []Category
	if found, err := s.cache.GetJSON(ctx, key, &cached); err == nil && found {
		return cached, nil
	}
	rows, err := s.store.ListCategories(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]Category, 0, len(rows))
	for _, c := range rows {
		out = append(out, toCategory(c))
	}
	_ = s.cache.SetJSON(ctx, key, out)
	return out, nil
}

// ListBrands returns all visible brands.
func (s *Service) ListBrands(ctx context.Context) ([]Brand, error) {
	key := cachePrefix + "brands"
	var cached []Brand
	if found, err := s.cache.GetJSON(ctx, key, &cached); err == nil && found {
		return cached, nil
	}
	rows, err := s.store.ListBrands(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list brands: %w", err)
	}
	out := make([]Brand, 0, len(rows))
	for _, b := range rows {
		out = append(out, toBrand(b))
	}
	_ = s.cache.SetJSON(ctx, key, out)
	return out, nil
}

// ProductInput carries admin-supplied product attributes.
type ProductInput struct {
	CategoryID     *string    `json:"category_id" validate:"omitempty,uuid"`
	BrandID        *string    `json:"brand_id" validate:"omitempty,uuid"`
	Name           string     `json:"name" validate:"required"`
	Slug           string     `json:"slug" validate:"required"`
	Description    string     `json:"description"`
	Price          int64      `json:"price" validate:"gte=0"`
	SalePrice      *int64     `json:"sale_price" validate:"omitempty,gte=0"`
	FlashSalePrice *int64     `json:"flash_sale_price" validate:"omitempty,gte=0"`
	FlashSaleStart *time.Time `json:"flash_sale_start"`
	FlashSaleEnd   *time.Time `json:"flash_sale_end"`
	Stock          int32      `json:"stock" validate:"gte=0"`
	ImageURL       string     `json:"image_url"`
	IsActive       bool       `json:"is_active"`
	IsFeatured     bool       `json:"is_featured"`
}

// CreateProduct inserts a product on behalf of an admin.
func (s *Service) CreateProduct(ctx context.Context, input ProductInput) (Product, error) {
	params, err := s.productParams(input)
	if err != nil {
		return Product{}, err
	}
	p, err := s.store.CreateProduct(ctx, params)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return Product{}, common.NewAppError("SLUG_TAKEN", "product slug already exists", http.StatusConflict, err)
		}
		return Product{}, fmt.Errorf("create product: %w", err)
	}
	s.invalidate(ctx)
	return s.toProduct(p, s.Now()), nil
}

// UpdateProduct overwrites a product on behalf of an admin.
func (s *Service) UpdateProduct(ctx context.Context, id uuid.UUID, input ProductInput) (Product, error) {
	params, err := s.productParams(input)
	if err != nil {
		return Product{}, err
	}
	p, err := s.store.UpdateProduct(ctx, id, params)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Product{}, common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, err)
		}
		if errors.Is(err, store.ErrConflict) {
			return Product{}, common.NewAppError("SLUG_TAKEN", "product slug already exists", http.StatusConflict, err)
		}
		return Product{}, fmt.Errorf("update product: %w", err)
	}
	s.invalidate(ctx)
	return s.toProduct(p, s.Now()), nil
}

// DeleteProduct removes a product on behalf of an admin.
func (s *Service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, err)
		}
		return fmt.Errorf("delete product: %w", err)
	}
	s.invalidate(ctx)
	return nil
}

// CategoryInput carries admin-supplied category attributes.
type CategoryInput struct {
	Name     string  `json:"name" validate:"required"`
	Slug     string  `json:"slug" validate:"required"`
	ParentID *string `json:"parent_id" validate:"omitempty,uuid"`
	IsActive bool    `json:"is_active"`
}

// CreateCategory inserts a category on behalf of an admin.
func (s *Service) CreateCategory(ctx context.Context, input CategoryInput) (Category, error) {
	if err := s.validate.Struct(input); err != nil {
		return Category{}, validationError(err)
	}
	parentID, err := optionalUUID(input.ParentID)
	if err != nil {
		return Category{}, validationError(err)
	}
	c, err := s.store.CreateCategory(ctx, input.Name, input.Slug, parentID, input.IsActive)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return Category{}, common.NewAppError("SLUG_TAKEN", "category slug already exists", http.StatusConflict, err)
		}
		return Category{}, fmt.Errorf("create category: %w", err)
	}
	s.invalidate(ctx)
	return toCategory(c), nil
}

// UpdateCategory overwrites a category on behalf of an admin.
func (s *Service) UpdateCategory(ctx context.Context, id uuid.UUID, input CategoryInput) (Category, error) {
	if err := s.validate.Struct(input); err != nil {
		return Category{}, validationError(err)
	}
	parentID, err := optionalUUID(input.ParentID)
	if err != nil {
		return Category{}, validationError(err)
	}
	c, err := s.store.UpdateCategory(ctx, id, input.Name, input.Slug, parentID, input.IsActive)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Category{}, common.NewAppError("NOT_FOUND", "category not found", http.StatusNotFound, err)
		}
		return Category{}, fmt.Errorf("update category: %w", err)
	}
	s.invalidate(ctx)
	return toCategory(c), nil
}

// DeleteCategory removes a category on behalf of an admin.
func (s *Service) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return common.NewAppError("NOT_FOUND", "category not found", http.StatusNotFound, err)
		}
		return fmt.Errorf("delete category: %w", err)
	}
	s.invalidate(ctx)
	return nil
}

// BrandInput carries admin-supplied brand attributes.
type BrandInput struct {
	Name     string `json:"name" validate:"required"`
	Slug     string `json:"slug" validate:"required"`
	IsActive bool   `json:"is_active"`
}

// CreateBrand inserts a brand on behalf of an admin.
func (s *Service) CreateBrand(ctx context.Context, input BrandInput) (Brand, error) {
	if err := s.validate.Struct(input); err != nil {
		return Brand{}, validationError(err)
	}
	b, err := s.store.CreateBrand(ctx, input.Name, input.Slug, input.IsActive)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return Brand{}, common.NewAppError("SLUG_TAKEN", "brand slug already exists", http.StatusConflict, err)
		}
		return Brand{}, fmt.Errorf("create brand: %w", err)
	}
	s.invalidate(ctx)
	return toBrand(b), nil
}

// UpdateBrand overwrites a brand on behalf of an admin.
func (s *Service) UpdateBrand(ctx context.Context, id uuid.UUID, input BrandInput) (Brand, error) {
	if err := s.validate.Struct(input); err != nil {
		return Brand{}, validationError(err)
	}
	b, err := s.store.UpdateBrand(ctx, id, input.Name, input.Slug, input.IsActive)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Brand{}, common.NewAppError("NOT_FOUND", "brand not found", http.StatusNotFound, err)
		}
		return Brand{}, fmt.Errorf("update brand: %w", err)
	}
	s.invalidate(ctx)
	return toBrand(b), nil
}

// DeleteBrand removes a brand on behalf of an admin.
func (s *Service) DeleteBrand(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteBrand(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return common.NewAppError("NOT_FOUND", "brand not found", http.StatusNotFound, err)
		}
		return fmt.Errorf("delete brand: %w", err)
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) productParams(input ProductInput) (store.CreateProductParams, error) {
	if err := s.validate.Struct(input); err != nil {
		return store.CreateProductParams{}, validationError(err)
	}
	if input.FlashSalePrice != nil && (input.FlashSaleStart == nil || input.FlashSaleEnd == nil) {
		return store.CreateProductParams{}, common.NewAppError("VALIDATION_ERROR",
			"flash_sale_start and flash_sale_end are required with flash_sale_price", http.StatusBadRequest, nil)
	}
	categoryID, err := optionalUUID(input.CategoryID)
	if err != nil {
		return store.CreateProductParams{}, validationError(err)
	}
	brandID, err := optionalUUID(input.BrandID)
	if err != nil {
		return store.CreateProductParams{}, validationError(err)
	}
	return store.CreateProductParams{
		CategoryID:     categoryID,
		BrandID:        brandID,
		Name:           strings.TrimSpace(input.Name),
		Slug:           strings.TrimSpace(input.Slug),
		Description:    input.Description,
		Price:          input.Price,
		SalePrice:      input.SalePrice,
		FlashSalePrice: input.FlashSalePrice,
		FlashSaleStart: input.FlashSaleStart,
		FlashSaleEnd:   input.FlashSaleEnd,
		Stock:          input.Stock,
		ImageURL:       strings.TrimSpace(input.ImageURL),
		IsActive:       input.IsActive,
		IsFeatured:     input.IsFeatured,
	}, nil
}

func (s *Service) invalidate(ctx context.Context) {
	_ = s.cache.InvalidatePrefix(ctx, cachePrefix)
}

func (s *Service) toProduct(p store.Product, now time.Time) Product {
	line := pricing.CartLine{
		ProductID:  p.ID,
		Qty:        1,
		BasePrice:  p.Price,
		SalePrice:  p.SalePrice,
		FlashPrice: p.FlashSalePrice,
	}
	var flash *FlashSale
	if p.FlashSalePrice != nil && p.FlashSaleStart != nil && p.FlashSaleEnd != nil {
		window := pricing.Window{Start: *p.FlashSaleStart, End: *p.FlashSaleEnd}
		line.FlashWindow = &window
		flash = &FlashSale{
			Price:    *p.FlashSalePrice,
			StartsAt: *p.FlashSaleStart,
			EndsAt:   *p.FlashSaleEnd,
			Active:   window.Contains(now),
		}
	}
	var rating Rating
	if p.RatingCount > 0 {
		rating = Rating{
			Average: float64(p.RatingSum) / float64(p.RatingCount),
			Count:   p.RatingCount,
		}
	}
	return Product{
		ID:           p.ID.String(),
		Name:         p.Name,
		Slug:         p.Slug,
		Description:  p.Description,
		Price:        p.Price,
		SalePrice:    p.SalePrice,
		FlashSale:    flash,
		CurrentPrice: pricing.ResolveEffectivePrice(line, now),
		Stock:        p.Stock,
		InStock:      p.Stock > 0,
		ImageURL:     p.ImageURL,
		Rating:       rating,
		CategoryID:   uuidPtrString(p.CategoryID),
		BrandID:      uuidPtrString(p.BrandID),
		IsActive:     p.IsActive,
		IsFeatured:   p.IsFeatured,
		CreatedAt:    p.CreatedAt,
	}
}

func toCategory(c store.Category) Category {
	return Category{
		ID:       c.ID.String(),
		Name:     c.Name,
		Slug:     c.Slug,
		ParentID: uuidPtrString(c.ParentID),
		IsActive: c.IsActive,
	}
}

func toBrand(b store.Brand) Brand {
	return Brand{ID: b.ID.String(), Name: b.Name, Slug: b.Slug, IsActive: b.IsActive}
}

func uuidPtrString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func optionalUUID(value *string) (*uuid.UUID, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*value)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func validationError(err error) error {
	return common.NewAppError("VALIDATION_ERROR", err.Error(), http.StatusBadRequest, err)
}

func listCacheKey(params ListParams, page, limit int) string {
	var b strings.Builder
	b.WriteString(cachePrefix)
	b.WriteString("products:")
	fmt.Fprintf(&b, "q=%s&cat=%s&brand=%s&sort=%s&flash=%t&featured=%t&page=%d&limit=%d",
		params.Query, params.Category, params.Brand, params.Sort, params.FlashSale, params.Featured, page, limit)
	if params.MinPrice != nil {
		fmt.Fprintf(&b, "&min=%d", *params.MinPrice)
	}
	if params.MaxPrice != nil {
		fmt.Fprintf(&b, "&max=%d", *params.MaxPrice)
	}
	return b.String()
}
