package store

import (
	"context"
)

// SubscribeNewsletter records an email subscription, reactivating a previous unsubscribe.
func (s *Store) SubscribeNewsletter(ctx context.Context, email string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO newsletter_subscribers (email) VALUES ($1)
		 ON CONFLICT (LOWER(email)) DO UPDATE
		 SET unsubscribed_at = NULL, subscribed_at = now()
		 WHERE newsletter_subscribers.unsubscribed_at IS NOT NULL`,
		email)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() > 0, nil
}

// UnsubscribeNewsletter marks an email unsubscribed.
func (s *Store) UnsubscribeNewsletter(ctx context.Context, email string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE newsletter_subscribers SET unsubscribed_at = now()
		 WHERE LOWER(email) = LOWER($1) AND unsubscribed_at IS NULL`,
		email)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
