package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Category mirrors a row in the categories table.
type Category struct {
	ID        uuid.UUID
	Name      string
	Slug      string
	ParentID  *uuid.UUID
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Brand mirrors a row in the brands table.
type Brand struct {
	ID        uuid.UUID
	Name      string
	Slug      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func scanCategory(row pgx.Row) (Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.ParentID, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return c, mapErr(err)
}

func scanBrand(row pgx.Row) (Brand, error) {
	var b Brand
	err := row.Scan(&b.ID, &b.Name, &b.Slug, &b.IsActive, &b.CreatedAt, &b.UpdatedAt)
	return b, mapErr(err)
}

// ListCategories returns all active categories ordered by name.
func (s *Store) ListCategories(ctx context.Context, includeHidden bool) ([]Category, error) {
	query := `SELECT id, name, slug, parent_id, is_active, created_at, updated_at
		FROM categories WHERE is_active OR $1 ORDER BY name`
	rows, err := s.pool.Query(ctx, query, includeHidden)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, mapErr(rows.Err())
}

// GetCategoryBySlug fetches one category.
func (s *Store) GetCategoryBySlug(ctx context.Context, slug string) (Category, error) {
	return scanCategory(s.pool.QueryRow(ctx,
		`SELECT id, name, slug, parent_id, is_active, created_at, updated_at FROM categories WHERE slug = $1`, slug))
}

// CreateCategory inserts a category.
func (s *Store) CreateCategory(ctx context.Context, name, slug string, parentID *uuid.UUID, active bool) (Category, error) {
	return scanCategory(s.pool.QueryRow(ctx,
		`INSERT INTO categories (name, slug, parent_id, is_active) VALUES ($1, $2, $3, $4)
		 RETURNING id, name, slug, parent_id, is_active, created_at, updated_at`,
		name, slug, parentID, active))
}

// UpdateCategory overwrites category attributes.
func (s *Store) UpdateCategory(ctx context.Context, id uuid.UUID, name, slug string, parentID *uuid.UUID, active bool) (Category, error) {
	return scanCategory(s.pool.QueryRow(ctx,
		`UPDATE categories SET name = $2, slug = $3, parent_id = $4, is_active = $5, updated_at = now()
		 WHERE id = $1
		 RETURNING id, name, slug, parent_id, is_active, created_at, updated_at`,
		id, name, slug, parentID, active))
}

// DeleteCategory removes a category.
func (s *Store) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListBrands returns all active brands ordered by name.
func (s *Store) ListBrands(ctx context.Context, includeHidden bool) ([]Brand, error) {
	query := `SELECT id, name, slug, is_active, created_at, updated_at
		FROM brands WHERE is_active OR $1 ORDER BY name`
	rows, err := s.pool.Query(ctx, query, includeHidden)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []Brand
	for rows.Next() {
		b, err := scanBrand(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, mapErr(rows.Err())
}

// GetBrandBySlug fetches one brand.
func (s *Store) GetBrandBySlug(ctx context.Context, slug string) (Brand, error) {
	return scanBrand(s.pool.QueryRow(ctx,
		`SELECT id, name, slug, is_active, created_at, updated_at FROM brands WHERE slug = $1`, slug))
}

// CreateBrand inserts a brand.
func (s *Store) CreateBrand(ctx context.Context, name, slug string, active bool) (Brand, error) {
	return scanBrand(s.pool.QueryRow(ctx,
		`INSERT INTO brands (name, slug, is_active) VALUES ($1, $2, $3)
		 RETURNING id, name, slug, is_active, created_at, updated_at`,
		name, slug, active))
}

// UpdateBrand overwrites brand attributes.
func (s *Store) UpdateBrand(ctx context.Context, id uuid.UUID, name, slug string, active bool) (Brand, error) {
	return scanBrand(s.pool.QueryRow(ctx,
		`UPDATE brands SET name = $2, slug = $3, is_active = $4, updated_at = now()
		 WHERE id = $1
		 RETURNING id, name, slug, is_active, created_at, updated_at`,
		id, name, slug, active))
}

// DeleteBrand removes a brand.
func (s *Store) DeleteBrand(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM brands WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
