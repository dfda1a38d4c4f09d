package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type names routed through the queue.
const (
	TaskPasswordReset     = "email:password_reset"
	TaskOrderConfirmation = "email:order_confirmation"
	TaskNewsletterWelcome = "email:newsletter_welcome"
)

// PasswordResetPayload carries a reset link to the worker.
type PasswordResetPayload struct {
	Email string `json:"email"`
	Link  string `json:"link"`
}

// OrderConfirmationPayload carries order details to the worker.
type OrderConfirmationPayload struct {
	UserID      uuid.UUID `json:"user_id"`
	OrderNumber string    `json:"order_number"`
	Total       int64     `json:"total"`
}

// NewsletterWelcomePayload carries the subscriber address to the worker.
type NewsletterWelcomePayload struct {
	Email string `json:"email"`
}

// Enqueuer pushes email tasks onto the queue. It satisfies the notifier
// contracts of the auth, order, and newsletter services.
type Enqueuer struct {
	Client *asynq.Client
}

// SendPasswordReset queues a password reset email.
func (e *Enqueuer) SendPasswordReset(_ context.Context, email, link string) error {
	payload, err := json.Marshal(PasswordResetPayload{Email: email, Link: link})
	if err != nil {
		return fmt.Errorf("encode password reset task: %w", err)
	}
	task := asynq.NewTask(TaskPasswordReset, payload, asynq.MaxRetry(5), asynq.Timeout(30*time.Second))
	if _, err := e.Client.Enqueue(task); err != nil {
		return fmt.Errorf("enqueue password reset: %w", err)
	}
	return nil
}

// OrderConfirmation queues an order confirmation email.
func (e *Enqueuer) OrderConfirmation(_ context.Context, userID uuid.UUID, orderNumber string, total int64) error {
	payload, err := json.Marshal(OrderConfirmationPayload{UserID: userID, OrderNumber: orderNumber, Total: total})
	if err != nil {
		return fmt.Errorf("encode order confirmation task: %w", err)
	}
	task := asynq.NewTask(TaskOrderConfirmation, payload, asynq.MaxRetry(5), asynq.Timeout(30*time.Second))
	if _, err := e.Client.Enqueue(task); err != nil {
		return fmt.Errorf("enqueue order confirmation: %w", err)
	}
	return nil
}

// NewsletterWelcome queues a welcome email for a new subscriber.
func (e *Enqueuer) NewsletterWelcome(_ context.Context, email string) error {
	payload, err := json.Marshal(NewsletterWelcomePayload{Email: email})
	if err != nil {
		return fmt.Errorf("encode newsletter welcome task: %w", err)
	}
	task := asynq.NewTask(TaskNewsletterWelcome, payload, asynq.MaxRetry(5), asynq.Timeout(30*time.Second))
	if _, err := e.Client.Enqueue(task); err != nil {
		return fmt.Errorf("enqueue newsletter welcome: %w", err)
	}
	return nil
}
