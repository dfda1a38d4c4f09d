// Package user covers profile management and shipping addresses.
package user

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/adiwidodo/backend-belanja/internal/common"
	"github.com/adiwidodo/backend-belanja/internal/store"
)

// Store enumerates the persistence operations the user service depends on.
type Store interface {
	GetUser(ctx context.Context, id uuid.UUID) (store.User, error)
	UpdateUserProfile(ctx context.Context, id uuid.UUID, fullName, phone string) (store.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]store.User, int64, error)
	ListAddresses(ctx context.Context, userID uuid.UUID) ([]store.Address, error)
	GetAddress(ctx context.Context, userID, id uuid.UUID) (store.Address, error)
	CreateAddress(ctx context.Context, userID uuid.UUID, params store.AddressParams) (store.Address, error)
	UpdateAddress(ctx context.Context, userID, id uuid.UUID, params store.AddressParams) (store.Address, error)
	DeleteAddress(ctx context.Context, userID, id uuid.UUID) error
	SetDefaultAddress(ctx context.Context, userID, id uuid.UUID) (store.Address, error)
}

// Service coordinates profile and address operations.
type Service struct {
	store    Store
	validate *validator.Validate
}

// NewService constructs the user service.
func NewService(st Store) (*Service, error) {
	if st == nil {
		return nil, errors.New("user: store is required")
	}
	return &Service{store: st, validate: validator.New()}, nil
}

// Profile is the public user DTO.
type Profile struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Address is the public address DTO.
type Address struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	Recipient  string `json:"recipient"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Province   string `json:"province"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	IsDefault  bool   `json:"is_default"`
}

// AddressInput is the create/update payload for addresses.
type AddressInput struct {
	Label      string `json:"label" validate:"required,max=50"`
	Recipient  string `json:"recipient" validate:"required,max=120"`
	Phone      string `json:"phone" validate:"required,max=30"`
	Line1      string `json:"line1" validate:"required,max=255"`
	Line2      string `json:"line2" validate:"max=255"`
	City       string `json:"city" validate:"required,max=100"`
	Province   string `json:"province" validate:"required,max=100"`
	PostalCode string `json:"postal_code" validate:"required,max=12"`
	Country    string `json:"country" validate:"required,len=2"`
	IsDefault  bool   `json:"is_default"`
}

// GetProfile returns the caller's profile.
func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (Profile, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Profile{}, common.NewAppError("NOT_FOUND", "user not found", http.StatusNotFound, err)
		}
		return Profile{}, fmt.Errorf("get user: %w", err)
	}
	return toProfile(u), nil
}

// UpdateProfile updates the caller's display name and phone.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, fullName, phone string) (Profile, error) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return Profile{}, common.NewAppError("VALIDATION_ERROR", "full_name is required", http.StatusBadRequest, nil)
	}
	u, err := s.store.UpdateUserProfile(ctx, userID, fullName, strings.TrimSpace(phone))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Profile{}, common.NewAppError("NOT_FOUND", "user not found", http.StatusNotFound, err)
		}
		return Profile{}, fmt.Errorf("update profile: %w", err)
	}
	return toProfile(u), nil
}

// ListUsers returns the admin user listing.
func (s *Service) ListUsers(ctx context.Context, page, limit int) ([]Profile, common.Pagination, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	rows, total, err := s.store.ListUsers(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, common.Pagination{}, fmt.Errorf("list users: %w", err)
	}
	out := make([]Profile, 0, len(rows))
	for _, u := range rows {
		out = append(out, toProfile(u))
	}
	return out, common.NewPagination(page, limit, total), nil
}

// ListAddresses returns the caller's saved addresses, default first.
func (s *Service) ListAddresses(ctx context.Context, userID uuid.UUID) ([]Address, error) {
	rows, err := s.store.ListAddresses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	out := make([]Address, 0, len(rows))
	for _, a := range rows {
		out = append(out, toAddress(a))
	}
	return out, nil
}

// CreateAddress saves a new address for the caller.
func (s *Service) CreateAddress(ctx context.Context, userID uuid.UUID, in AddressInput) (Address, error) {
	if err := s.validate.Struct(in); err != nil {
		return Address{}, common.NewAppError("VALIDATION_ERROR", "invalid address payload", http.StatusBadRequest, err)
	}
	created, err := s.store.CreateAddress(ctx, userID, addressParams(in))
	if err != nil {
		return Address{}, fmt.Errorf("create address: %w", err)
	}
	return toAddress(created), nil
}

// UpdateAddress edits one of the caller's addresses.
func (s *Service) UpdateAddress(ctx context.Context, userID, addressID uuid.UUID, in AddressInput) (Address, error) {
	if err := s.validate.Struct(in); err != nil {
		return Address{}, common.NewAppError("VALIDATION_ERROR", "invalid address payload", http.StatusBadRequest, err)
	}
	updated, err := s.store.UpdateAddress(ctx, userID, addressID, addressParams(in))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Address{}, addressNotFound(err)
		}
		return Address{}, fmt.Errorf("update address: %w", err)
	}
	return toAddress(updated), nil
}

// DeleteAddress removes one of the caller's addresses.
func (s *Service) DeleteAddress(ctx context.Context, userID, addressID uuid.UUID) error {
	if err := s.store.DeleteAddress(ctx, userID, addressID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return addressNotFound(err)
		}
		return fmt.Errorf("delete address: %w", err)
	}
	return nil
}

// SetDefaultAddress marks one address as the shipping default.
func (s *Service) SetDefaultAddress(ctx context.Context, userID, addressID uuid.UUID) (Address, error) {
	updated, err := s.store.SetDefaultAddress(ctx, userID, addressID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Address{}, addressNotFound(err)
		}
		return Address{}, fmt.Errorf("set default address: %w", err)
	}
	return toAddress(updated), nil
}

func addressParams(in AddressInput) store.AddressParams {
	return store.AddressParams{
		Label:      strings.TrimSpace(in.Label),
		Recipient:  strings.TrimSpace(in.Recipient),
		Phone:      strings.TrimSpace(in.Phone),
		Line1:      strings.TrimSpace(in.Line1),
		Line2:      strings.TrimSpace(in.Line2),
		City:       strings.TrimSpace(in.City),
		Province:   strings.TrimSpace(in.Province),
		PostalCode: strings.TrimSpace(in.PostalCode),
		Country:    strings.ToUpper(strings.TrimSpace(in.Country)),
		IsDefault:  in.IsDefault,
	}
}

func toProfile(u store.User) Profile {
	return Profile{
		ID:        u.ID.String(),
		FullName:  u.FullName,
		Email:     u.Email,
		Phone:     u.Phone,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

func toAddress(a store.Address) Address {
	return Address{
		ID:         a.ID.String(),
		Label:      a.Label,
		Recipient:  a.Recipient,
		Phone:      a.Phone,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		Province:   a.Province,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		IsDefault:  a.IsDefault,
	}
}

func addressNotFound(err error) error {
	return common.NewAppError("NOT_FOUND", "address not found", http.StatusNotFound, err)
}
