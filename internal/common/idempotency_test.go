package common

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
)

func newIdem(t *testing.T) (Idem, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return Idem{R: client, TTL: time.Minute}, mr
}

func doRequest(h http.Handler, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIdempotencyDuplicateRejected(t *testing.T) {
	idem, _ := newIdem(t)
	calls := 0
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	first := doRequest(h, "abc-123")
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201 on first request, got %d", first.Code)
	}
	second := doRequest(h, "abc-123")
	if second.Code != http.StatusConflict {
		t.Fatalf("expected 409 on replay, got %d", second.Code)
	}
	if calls != 1 {
		t.Fatalf("expected handler called once, got %d", calls)
	}

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(second.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode replay body: %v", err)
	}
	if body.Error.Code != "IDEMPOTENT_REPLAY" {
		t.Fatalf("expected IDEMPOTENT_REPLAY, got %q", body.Error.Code)
	}
}

func TestIdempotencyDistinctKeysPass(t *testing.T) {
	idem, _ := newIdem(t)
	calls := 0
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	doRequest(h, "key-one")
	doRequest(h, "key-two")
	if calls != 2 {
		t.Fatalf("expected both requests handled, got %d", calls)
	}
}

func TestIdempotencyMissingKeyPassesThrough(t *testing.T) {
	idem, _ := newIdem(t)
	calls := 0
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	doRequest(h, "")
	doRequest(h, "")
	if calls != 2 {
		t.Fatalf("expected passthrough without key, got %d calls", calls)
	}
}

func TestIdempotencyKeyExpires(t *testing.T) {
	idem, mr := newIdem(t)
	calls := 0
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	doRequest(h, "abc-123")
	mr.FastForward(2 * time.Minute)
	rec := doRequest(h, "abc-123")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected retry allowed after expiry, got %d", rec.Code)
	}
	if calls != 2 {
		t.Fatalf("expected 2 handler calls, got %d", calls)
	}
}

func TestIdempotencyNilRedisPassesThrough(t *testing.T) {
	idem := Idem{TTL: time.Minute}
	calls := 0
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	doRequest(h, "abc-123")
	doRequest(h, "abc-123")
	if calls != 2 {
		t.Fatalf("expected passthrough without redis, got %d calls", calls)
	}
}
