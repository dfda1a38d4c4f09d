// Package newsletter manages marketing email subscriptions.
package newsletter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/adiwidodo/backend-belanja/internal/common"
	"github.com/adiwidodo/backend-belanja/internal/store"
)

// Store enumerates the persistence operations the newsletter service depends on.
type Store interface {
	SubscribeNewsletter(ctx context.Context, email string) (bool, error)
	UnsubscribeNewsletter(ctx context.Context, email string) error
}

// Notifier queues the welcome email for new subscribers.
type Notifier interface {
	NewsletterWelcome(ctx context.Context, email string) error
}

// Service coordinates newsletter subscriptions.
type Service struct {
	store    Store
	notifier Notifier
	validate *validator.Validate
}

// NewService constructs the newsletter service. The notifier may be nil.
func NewService(st Store, notifier Notifier) (*Service, error) {
	if st == nil {
		return nil, errors.New("newsletter: store is required")
	}
	return &Service{store: st, notifier: notifier, validate: validator.New()}, nil
}

// Subscribe enrolls an email, reactivating a previous unsubscribe. Returns
// true when the subscription state changed.
func (s *Service) Subscribe(ctx context.Context, email string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.validate.Var(email, "required,email"); err != nil {
		return false, common.NewAppError("VALIDATION_ERROR", "a valid email is required", http.StatusBadRequest, err)
	}
	changed, err := s.store.SubscribeNewsletter(ctx, email)
	if err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}
	if changed && s.notifier != nil {
		// Delivery failure must not fail the subscription.
		_ = s.notifier.NewsletterWelcome(ctx, email)
	}
	return changed, nil
}

// Unsubscribe removes an email from the list. Unknown emails are not
// disclosed.
func (s *Service) Unsubscribe(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.validate.Var(email, "required,email"); err != nil {
		return common.NewAppError("VALIDATION_ERROR", "a valid email is required", http.StatusBadRequest, err)
	}
	if err := s.store.UnsubscribeNewsletter(ctx, email); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	return nil
}
