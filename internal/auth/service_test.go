package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"

	"github.com/adiwidodo/backend-belanja/internal/common"
	"github.com/adiwidodo/backend-belanja/internal/store"
)

type fakeStore struct {
	users    map[string]store.User
	sessions map[string]store.Session
	resets   map[string]struct {
		userID    uuid.UUID
		expiresAt time.Time
	}
	revokedAll map[uuid.UUID]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    map[string]store.User{},
		sessions: map[string]store.Session{},
		resets: map[string]struct {
			userID    uuid.UUID
			expiresAt time.Time
		}{},
		revokedAll: map[uuid.UUID]bool{},
	}
}

func (f *fakeStore) CreateUser(_ context.Context, email, passwordHash, fullName, phone string) (store.User, error) {
	if _, ok := f.users[email]; ok {
		return store.User{}, store.ErrConflict
	}
	u := store.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
		FullName:     fullName,
		Phone:        phone,
		Role:         "customer",
	}
	f.users[email] = u
	return u, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	u, ok := f.users[email]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) GetUser(_ context.Context, id uuid.UUID) (store.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return store.User{}, store.ErrNotFound
}

func (f *fakeStore) UpdateUserPassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	for email, u := range f.users {
		if u.ID == id {
			u.PasswordHash = passwordHash
			f.users[email] = u
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeStore) CreateSession(_ context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) (store.Session, error) {
	s := store.Session{ID: uuid.New(), UserID: userID, RefreshTokenHash: tokenHash, ExpiresAt: expiresAt}
	f.sessions[tokenHash] = s
	return s, nil
}

func (f *fakeStore) GetSessionByTokenHash(_ context.Context, tokenHash string) (store.Session, error) {
	s, ok := f.sessions[tokenHash]
	if !ok {
		return store.Session{}, store.ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) RevokeSession(_ context.Context, id uuid.UUID) error {
	for hash, s := range f.sessions {
		if s.ID == id {
			delete(f.sessions, hash)
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeStore) RevokeUserSessions(_ context.Context, userID uuid.UUID) error {
	f.revokedAll[userID] = true
	for hash, s := range f.sessions {
		if s.UserID == userID {
			delete(f.sessions, hash)
		}
	}
	return nil
}

func (f *fakeStore) CreatePasswordReset(_ context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	f.resets[tokenHash] = struct {
		userID    uuid.UUID
		expiresAt time.Time
	}{userID, expiresAt}
	return nil
}

func (f *fakeStore) ConsumePasswordReset(_ context.Context, tokenHash string) (uuid.UUID, error) {
	r, ok := f.resets[tokenHash]
	if !ok {
		return uuid.Nil, store.ErrNotFound
	}
	delete(f.resets, tokenHash)
	return r.userID, nil
}

type recordingMailer struct {
	links []string
}

func (m *recordingMailer) SendPasswordReset(_ context.Context, _ string, link string) error {
	m.links = append(m.links, link)
	return nil
}

func newAuthService(t *testing.T, st *fakeStore, mailer EmailSender) *Service {
	t.Helper()
	svc, err := NewService(Config{
		Store:         st,
		Secret:        "unit-test-secret-please-rotate",
		Mailer:        mailer,
		PublicBaseURL: "https://belanja.test/",
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func registerUser(t *testing.T, svc *Service, email, password string) User {
	t.Helper()
	u, err := svc.Register(context.Background(), "Budi Santoso", email, "0812000111", password)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return u
}

func TestRegisterNormalizesEmail(t *testing.T) {
	st := newFakeStore()
	svc := newAuthService(t, st, nil)

	u := registerUser(t, svc, "  Budi@Belanja.TEST ", "rahasia-sekali")
	if u.Email != "budi@belanja.test" {
		t.Fatalf("expected lowercased email, got %q", u.Email)
	}
	if u.Role != "customer" {
		t.Fatalf("expected customer role, got %q", u.Role)
	}
}

func TestRegisterShortPassword(t *testing.T) {
	svc := newAuthService(t, newFakeStore(), nil)
	_, err := svc.Register(context.Background(), "Budi", "budi@belanja.test", "", "pendek")
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	st := newFakeStore()
	svc := newAuthService(t, st, nil)
	registerUser(t, svc, "budi@belanja.test", "rahasia-sekali")

	_, err := svc.Register(context.Background(), "Budi Lain", "budi@belanja.test", "", "rahasia-lain")
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.Code != "EMAIL_ALREADY_USED" {
		t.Fatalf("expected EMAIL_ALREADY_USED, got %v", err)
	}
}

func TestLoginIssuesVerifiableAccessToken(t *testing.T) {
	st := newFakeStore()
	svc := newAuthService(t, st, nil)
	u := registerUser(t, svc, "budi@belanja.test", "rahasia-sekali")

	result, err := svc.Login(context.Background(), "budi@belanja.test", "rahasia-sekali")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatalf("expected token pair, got %+v", result)
	}

	identity, err := svc.ParseAccessToken(result.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if identity.UserID != u.ID {
		t.Fatalf("expected subject %s, got %s", u.ID, identity.UserID)
	}
	if identity.Role != "customer" {
		t.Fatalf("expected customer role, got %q", identity.Role)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	st := newFakeStore()
	svc := newAuthService(t, st, nil)
	registerUser(t, svc, "budi@belanja.test", "rahasia-sekali")

	_, err := svc.Login(context.Background(), "budi@belanja.test", "salah-total")
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.Code != "INVALID_CREDENTIALS" {
		t.Fatalf("expected INVALID_CREDENTIALS, got %v", err)
	}
	if appErr.HTTPStatus != 401 {
		t.Fatalf("expected 401, got %d", appErr.HTTPStatus)
	}
}

func TestLoginUnknownEmailMatchesWrongPassword(t *testing.T) {
	svc := newAuthService(t, newFakeStore(), nil)
	_, err := svc.Login(context.Background(), "siapa@belanja.test", "apapun-boleh")
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.Code != "INVALID_CREDENTIALS" {
		t.Fatalf("expected INVALID_CREDENTIALS, got %v", err)
	}
}

func TestRefreshRotatesSession(t *testing.T) {
	st := newFakeStore()
	svc := newAuthService(t, st, nil)
	registerUser(t, svc, "budi@belanja.test", "rahasia-sekali")
	result, err := svc.Login(context.Background(), "budi@belanja.test", "rahasia-sekali")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	refreshed, err := svc.Refresh(context.Background(), result.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.RefreshToken == result.RefreshToken {
		t.Fatal("expected a rotated refresh token")
	}

	// The original token is single use.
	_, err = svc.Refresh(context.Background(), result.RefreshToken)
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.Code != "UNAUTHORIZED" {
		t.Fatalf("expected UNAUTHORIZED on reuse, got %v", err)
	}
}

func TestRefreshExpiredSession(t *testing.T) {
	st := newFakeStore()
	svc := newAuthService(t, st, nil)
	registerUser(t, svc, "budi@belanja.test", "rahasia-sekali")
	result, err := svc.Login(context.Background(), "budi@belanja.test", "rahasia-sekali")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	svc.WithNow(func() time.Time { return time.Now().Add(31 * 24 * time.Hour) })
	_, err = svc.Refresh(context.Background(), result.RefreshToken)
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.Code != "UNAUTHORIZED" {
		t.Fatalf("expected UNAUTHORIZED, got %v", err)
	}
	if len(st.sessions) != 0 {
		t.Fatalf("expected expired session revoked, got %d sessions", len(st.sessions))
	}
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	st := newFakeStore()
	svc := newAuthService(t, st, nil)
	registerUser(t, svc, "budi@belanja.test", "rahasia-sekali")
	result, err := svc.Login(context.Background(), "budi@belanja.test", "rahasia-sekali")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	svc.WithNow(func() time.Time { return time.Now().Add(time.Hour) })
	_, err = svc.ParseAccessToken(result.AccessToken)
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.Code != "UNAUTHORIZED" {
		t.Fatalf("expected UNAUTHORIZED for expired token, got %v", err)
	}
}

func TestParseAccessTokenRejectsGarbage(t *testing.T) {
	svc := newAuthService(t, newFakeStore(), nil)
	for _, token := range []string{"", "not-a-jwt", "aaa.bbb.ccc"} {
		if _, err := svc.ParseAccessToken(token); err == nil {
			t.Fatalf("expected error for token %q", token)
		}
	}
}

func TestForgotAndResetFlow(t *testing.T) {
	st := newFakeStore()
	mailer := &recordingMailer{}
	svc := newAuthService(t, st, mailer)
	registerUser(t, svc, "budi@belanja.test", "rahasia-sekali")

	if err := svc.Forgot(context.Background(), "budi@belanja.test"); err != nil {
		t.Fatalf("forgot: %v", err)
	}
	if len(mailer.links) != 1 {
		t.Fatalf("expected one reset email, got %d", len(mailer.links))
	}
	link := mailer.links[0]
	if !strings.HasPrefix(link, "https://belanja.test/reset-password?token=") {
		t.Fatalf("unexpected reset link %q", link)
	}
	token := strings.TrimPrefix(link, "https://belanja.test/reset-password?token=")

	if err := svc.Reset(context.Background(), token, "rahasia-baru"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	if _, err := svc.Login(context.Background(), "budi@belanja.test", "rahasia-sekali"); err == nil {
		t.Fatal("expected old password rejected after reset")
	}
	if _, err := svc.Login(context.Background(), "budi@belanja.test", "rahasia-baru"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}

	// Reset tokens are single use.
	err := svc.Reset(context.Background(), token, "rahasia-lagi")
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.Code != "INVALID_TOKEN" {
		t.Fatalf("expected INVALID_TOKEN on reuse, got %v", err)
	}
}

func TestForgotUnknownEmailIsSilent(t *testing.T) {
	mailer := &recordingMailer{}
	svc := newAuthService(t, newFakeStore(), mailer)

	if err := svc.Forgot(context.Background(), "tidakada@belanja.test"); err != nil {
		t.Fatalf("forgot: %v", err)
	}
	if len(mailer.links) != 0 {
		t.Fatalf("expected no email, got %d", len(mailer.links))
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	st := newFakeStore()
	svc := newAuthService(t, st, nil)
	registerUser(t, svc, "budi@belanja.test", "rahasia-sekali")
	result, err := svc.Login(context.Background(), "budi@belanja.test", "rahasia-sekali")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := svc.Logout(context.Background(), result.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.Refresh(context.Background(), result.RefreshToken); err == nil {
		t.Fatal("expected refresh to fail after logout")
	}
}

func TestArgonHashRoundtrip(t *testing.T) {
	hash, err := argon2id.CreateHash("rahasia-sekali", argon2id.DefaultParams)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	ok, err := argon2id.ComparePasswordAndHash("rahasia-sekali", hash)
	if err != nil || !ok {
		t.Fatalf("expected match, got ok=%v err=%v", ok, err)
	}
}
