package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/adiwidodo/backend-belanja/internal/store"
)

type fakeUsers struct {
	users map[uuid.UUID]store.User
}

func (f fakeUsers) GetUser(_ context.Context, id uuid.UUID) (store.User, error) {
	u, ok := f.users[id]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

func newTask(t *testing.T, taskType string, payload any) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return asynq.NewTask(taskType, data)
}

func TestHandlePasswordReset(t *testing.T) {
	mailer := &InMemoryMailer{}
	w := &Worker{Mailer: mailer, Currency: "IDR", Log: zerolog.Nop()}

	task := newTask(t, TaskPasswordReset, PasswordResetPayload{
		Email: "budi@belanja.test",
		Link:  "https://belanja.test/reset-password?token=abc",
	})
	if err := w.handlePasswordReset(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(mailer.Outbox) != 1 {
		t.Fatalf("expected one email, got %d", len(mailer.Outbox))
	}
	msg := mailer.Outbox[0]
	if msg.To != "budi@belanja.test" {
		t.Fatalf("unexpected recipient %q", msg.To)
	}
	if !strings.Contains(msg.HTML, "https://belanja.test/reset-password?token=abc") {
		t.Fatalf("expected reset link in body, got %q", msg.HTML)
	}
}

func TestHandleOrderConfirmation(t *testing.T) {
	userID := uuid.New()
	mailer := &InMemoryMailer{}
	w := &Worker{
		Mailer: mailer,
		Users: fakeUsers{users: map[uuid.UUID]store.User{
			userID: {ID: userID, Email: "budi@belanja.test", FullName: "Budi Santoso"},
		}},
		Currency: "IDR",
		Log:      zerolog.Nop(),
	}

	task := newTask(t, TaskOrderConfirmation, OrderConfirmationPayload{
		UserID:      userID,
		OrderNumber: "ORD-ABCDEFGHJK",
		Total:       22100000,
	})
	if err := w.handleOrderConfirmation(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(mailer.Outbox) != 1 {
		t.Fatalf("expected one email, got %d", len(mailer.Outbox))
	}
	msg := mailer.Outbox[0]
	if !strings.Contains(msg.Subject, "ORD-ABCDEFGHJK") {
		t.Fatalf("expected order number in subject, got %q", msg.Subject)
	}
	if !strings.Contains(msg.HTML, "IDR 221.000,00") {
		t.Fatalf("expected formatted total in body, got %q", msg.HTML)
	}
}

func TestHandleOrderConfirmationUnknownUser(t *testing.T) {
	w := &Worker{
		Mailer:   &InMemoryMailer{},
		Users:    fakeUsers{users: map[uuid.UUID]store.User{}},
		Currency: "IDR",
		Log:      zerolog.Nop(),
	}
	task := newTask(t, TaskOrderConfirmation, OrderConfirmationPayload{
		UserID:      uuid.New(),
		OrderNumber: "ORD-ABCDEFGHJK",
		Total:       100,
	})
	if err := w.handleOrderConfirmation(context.Background(), task); err == nil {
		t.Fatal("expected error for unknown user")
	}
}

func TestHandleNewsletterWelcome(t *testing.T) {
	mailer := &InMemoryMailer{}
	w := &Worker{Mailer: mailer, Currency: "IDR", Log: zerolog.Nop()}

	task := newTask(t, TaskNewsletterWelcome, NewsletterWelcomePayload{Email: "budi@belanja.test"})
	if err := w.handleNewsletterWelcome(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(mailer.Outbox) != 1 || mailer.Outbox[0].To != "budi@belanja.test" {
		t.Fatalf("unexpected outbox %+v", mailer.Outbox)
	}
}

func TestHTTPMailerSend(t *testing.T) {
	var got mailPayload
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	m := NewHTTPMailer(srv.URL, "secret-key", "noreply@belanja.test")
	if err := m.Send(context.Background(), "budi@belanja.test", "Halo", "<p>Hi</p>"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if auth != "Bearer secret-key" {
		t.Fatalf("unexpected auth header %q", auth)
	}
	if got.From != "noreply@belanja.test" || got.To != "budi@belanja.test" {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestHTTPMailerProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	m := NewHTTPMailer(srv.URL, "secret-key", "noreply@belanja.test")
	err := m.Send(context.Background(), "budi@belanja.test", "Halo", "<p>Hi</p>")
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		minor int64
		want  string
	}{
		{0, "IDR 0,00"},
		{950, "IDR 9,50"},
		{125000, "IDR 1.250,00"},
		{22100000, "IDR 221.000,00"},
		{100000000050, "IDR 1.000.000.000,50"},
		{-125000, "-IDR 1.250,00"},
	}
	for _, tc := range cases {
		if got := FormatAmount(tc.minor, "IDR"); got != tc.want {
			t.Fatalf("FormatAmount(%d) = %q, want %q", tc.minor, got, tc.want)
		}
	}
}
