package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/clearledger/reconcile-backend/pkg/config"
)

func TestCronAuthRejectsWithoutSecretConfigured(t *testing.T) {
	handler := CronAuth(config.CronConfig{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodPost, "/internal/cron/retry-sweeps", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCronAuthRejectsMissingAndWrongToken(t *testing.T) {
	cfg := config.CronConfig{Secret: "shared"}
	called := 0
	handler := CronAuth(cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called++
	}))

	req := httptest.NewRequest(http.MethodPost, "/internal/cron/retry-sweeps", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing header: expected 401, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/internal/cron/retry-sweeps", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: expected 401, got %d", rec.Code)
	}
	if called != 0 {
		t.Fatalf("handler ran %d times", called)
	}
}

func TestCronAuthAcceptsMatchingToken(t *testing.T) {
	cfg := config.CronConfig{Secret: "shared"}
	called := 0
	handler := CronAuth(cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called++
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/internal/cron/retry-sweeps", nil)
	req.Header.Set("Authorization", "Bearer shared")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if called != 1 {
		t.Fatalf("expected one handler call, got %d", called)
	}
}
