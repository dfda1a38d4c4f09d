package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/adiwidodo/backend-belanja/internal/obs"
	"github.com/adiwidodo/backend-belanja/internal/store"
)

// UserLookup resolves recipient addresses for queued jobs.
type UserLookup interface {
	GetUser(ctx context.Context, id uuid.UUID) (store.User, error)
}

// Worker processes email tasks pulled from the queue.
type Worker struct {
	Mailer   Mailer
	Users    UserLookup
	Currency string
	Log      zerolog.Logger
}

// Register attaches the worker's handlers to an asynq mux.
func (w *Worker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskPasswordReset, w.handlePasswordReset)
	mux.HandleFunc(TaskOrderConfirmation, w.handleOrderConfirmation)
	mux.HandleFunc(TaskNewsletterWelcome, w.handleNewsletterWelcome)
}

func (w *Worker) handlePasswordReset(ctx context.Context, task *asynq.Task) error {
	var payload PasswordResetPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode password reset payload: %w", err)
	}
	subject := "Atur ulang kata sandi"
	body := fmt.Sprintf(
		"<p>Kami menerima permintaan untuk mengatur ulang kata sandi Anda.</p>"+
			"<p><a href=%q>Atur ulang kata sandi</a></p>"+
			"<p>Abaikan email ini jika Anda tidak meminta perubahan.</p>",
		payload.Link)
	if err := w.Mailer.Send(ctx, payload.Email, subject, body); err != nil {
		countEmail("password_reset", "error")
		w.Log.Error().Err(err).Msg("send password reset email")
		return err
	}
	countEmail("password_reset", "ok")
	return nil
}

func (w *Worker) handleOrderConfirmation(ctx context.Context, task *asynq.Task) error {
	var payload OrderConfirmationPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode order confirmation payload: %w", err)
	}
	user, err := w.Users.GetUser(ctx, payload.UserID)
	if err != nil {
		countEmail("order_confirmation", "error")
		return fmt.Errorf("lookup recipient: %w", err)
	}
	subject := fmt.Sprintf("Pesanan %s diterima", payload.OrderNumber)
	body := fmt.Sprintf(
		"<p>Halo %s,</p>"+
			"<p>Pesanan <strong>%s</strong> sebesar %s sedang kami proses.</p>"+
			"<p>Terima kasih telah berbelanja.</p>",
		user.FullName, payload.OrderNumber, FormatAmount(payload.Total, w.Currency))
	if err := w.Mailer.Send(ctx, user.Email, subject, body); err != nil {
		countEmail("order_confirmation", "error")
		w.Log.Error().Err(err).Str("order_number", payload.OrderNumber).Msg("send order confirmation email")
		return err
	}
	countEmail("order_confirmation", "ok")
	return nil
}

func countEmail(kind, result string) {
	if obs.EmailJobsTotal != nil {
		obs.EmailJobsTotal.WithLabelValues(kind, result).Inc()
	}
}

func (w *Worker) handleNewsletterWelcome(ctx context.Context, task *asynq.Task) error {
	var payload NewsletterWelcomePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode newsletter welcome payload: %w", err)
	}
	subject := "Selamat datang di buletin kami"
	body := "<p>Terima kasih telah berlangganan.</p>" +
		"<p>Kami akan mengirimkan promo dan produk terbaru ke email ini.</p>"
	if err := w.Mailer.Send(ctx, payload.Email, subject, body); err != nil {
		countEmail("newsletter_welcome", "error")
		w.Log.Error().Err(err).Msg("send newsletter welcome email")
		return err
	}
	countEmail("newsletter_welcome", "ok")
	return nil
}

// FormatAmount renders a minor-unit amount for display, e.g. "IDR 1.250,00".
func FormatAmount(minor int64, currency string) string {
	negative := minor < 0
	if negative {
		minor = -minor
	}
	units := minor / 100
	cents := minor % 100
	digits := fmt.Sprintf("%d", units)
	var grouped []byte
	for i, c := range []byte(digits) {
		if i > 0 && (len(digits)-i)%3 == 0 {
			grouped = append(grouped, '.')
		}
		grouped = append(grouped, c)
	}
	out := fmt.Sprintf("%s %s,%02d", currency, grouped, cents)
	if negative {
		return "-" + out
	}
	return out
}
