package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Address mirrors a row in the addresses table.
type Address struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Label      string
	Recipient  string
	Phone      string
	Line1      string
	Line2      string
	City       string
	Province   string
	PostalCode string
	Country    string
	IsDefault  bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

const addressColumns = `id, user_id, label, recipient, phone, line1, line2, city, province,
	postal_code, country, is_default, created_at, updated_at`

func scanAddress(row pgx.Row) (Address, error) {
	var a Address
	err := row.Scan(&a.ID, &a.UserID, &a.Label, &a.Recipient, &a.Phone, &a.Line1, &a.Line2,
		&a.City, &a.Province, &a.PostalCode, &a.Country, &a.IsDefault, &a.CreatedAt, &a.UpdatedAt)
	return a, mapErr(err)
}

// AddressParams carries address attributes for create and update.
type AddressParams struct {
	Label      string
	Recipient  string
	Phone      string
	Line1      string
	Line2      string
	City       string
	Province   string
	PostalCode string
	Country    string
	IsDefault  bool
}

// ListAddresses returns the user's addresses, default first.
func (s *Store) ListAddresses(ctx context.Context, userID uuid.UUID) ([]Address, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+addressColumns+` FROM addresses WHERE user_id = $1 ORDER BY is_default DESC, created_at`,
		userID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []Address
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, mapErr(rows.Err())
}

// GetAddress fetches one address owned by the user.
func (s *Store) GetAddress(ctx context.Context, userID, id uuid.UUID) (Address, error) {
	return scanAddress(s.pool.QueryRow(ctx,
		`SELECT `+addressColumns+` FROM addresses WHERE id = $1 AND user_id = $2`, id, userID))
}

// CreateAddress inserts an address, demoting the previous default when needed.
func (s *Store) CreateAddress(ctx context.Context, userID uuid.UUID, params AddressParams) (Address, error) {
	if params.IsDefault {
		if err := s.clearDefaultAddress(ctx, userID); err != nil {
			return Address{}, err
		}
	}
	return scanAddress(s.pool.QueryRow(ctx,
		`INSERT INTO addresses (user_id, label, recipient, phone, line1, line2, city, province, postal_code, country, is_default)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING `+addressColumns,
		userID, params.Label, params.Recipient, params.Phone, params.Line1, params.Line2,
		params.City, params.Province, params.PostalCode, params.Country, params.IsDefault))
}

// UpdateAddress overwrites an address owned by the user.
func (s *Store) UpdateAddress(ctx context.Context, userID, id uuid.UUID, params AddressParams) (Address, error) {
	if params.IsDefault {
		if err := s.clearDefaultAddress(ctx, userID); err != nil {
			return Address{}, err
		}
	}
	return scanAddress(s.pool.QueryRow(ctx,
		`UPDATE addresses SET label = $3, recipient = $4, phone = $5, line1 = $6, line2 = $7,
		 city = $8, province = $9, postal_code = $10, country = $11, is_default = $12, updated_at = now()
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+addressColumns,
		id, userID, params.Label, params.Recipient, params.Phone, params.Line1, params.Line2,
		params.City, params.Province, params.PostalCode, params.Country, params.IsDefault))
}

// DeleteAddress removes an address owned by the user.
func (s *Store) DeleteAddress(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM addresses WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetDefaultAddress marks one address as the user's default.
func (s *Store) SetDefaultAddress(ctx context.Context, userID, id uuid.UUID) (Address, error) {
	if err := s.clearDefaultAddress(ctx, userID); err != nil {
		return Address{}, err
	}
	return scanAddress(s.pool.QueryRow(ctx,
		`UPDATE addresses SET is_default = TRUE, updated_at = now()
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+addressColumns,
		id, userID))
}

func (s *Store) clearDefaultAddress(ctx context.Context, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE addresses SET is_default = FALSE, updated_at = now() WHERE user_id = $1 AND is_default`, userID)
	return mapErr(err)
}
