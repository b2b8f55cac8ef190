package erp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clearledger/reconcile-backend/pkg/config"
	pkgerrors "github.com/clearledger/reconcile-backend/pkg/errors"
	"github.com/clearledger/reconcile-backend/pkg/logger"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "erp-test"})
	client, err := NewClient(context.Background(), config.ERPConfig{
		BaseURL: baseURL,
		APIKey:  "test-key",
		Timeout: 2 * time.Second,
	}, logg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestNewClientValidation(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "erp-test"})
	ctx := context.Background()

	if _, err := NewClient(ctx, config.ERPConfig{APIKey: "k"}, logg); err != errBaseURLRequired {
		t.Fatalf("expected base url error, got %v", err)
	}
	if _, err := NewClient(ctx, config.ERPConfig{BaseURL: "http://erp.local"}, logg); err != errAPIKeyRequired {
		t.Fatalf("expected api key error, got %v", err)
	}
	if _, err := NewClient(ctx, config.ERPConfig{BaseURL: "http://erp.local", APIKey: "k"}, nil); err != errLoggerRequired {
		t.Fatalf("expected logger error, got %v", err)
	}
}

func TestUpsertCustomerSendsAuthAndBody(t *testing.T) {
	var gotAuth string
	var gotBody CustomerParams
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/customers" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		json.NewEncoder(w).Encode(Customer{ID: "cus_1", Email: "a@b.test", Name: "Ada"})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	out, err := client.UpsertCustomer(context.Background(), CustomerParams{Email: "a@b.test", Name: "Ada"})
	if err != nil {
		t.Fatalf("upsert customer: %v", err)
	}
	if out.ID != "cus_1" {
		t.Fatalf("unexpected customer id %q", out.ID)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotBody.Email != "a@b.test" || gotBody.Name != "Ada" {
		t.Fatalf("unexpected body %+v", gotBody)
	}
}

func TestUpsertCustomerRejectsInvalidParams(t *testing.T) {
	client := newTestClient(t, "http://erp.invalid")
	_, err := client.UpsertCustomer(context.Background(), CustomerParams{Name: "no email"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateInvoiceMapsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.CreateInvoice(context.Background(), InvoiceParams{SalesOrderID: "so_1"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if !pkgerrors.IsRetryable(err) {
		t.Fatalf("server failures should be retryable")
	}
}

func TestCreateSalesOrderMapsClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad ref", http.StatusBadRequest)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.CreateSalesOrder(context.Background(), SalesOrderParams{
		CustomerID: "cus_1",
		OrderRef:   "ord_1",
		Amount:     decimal.NewFromInt(100),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if pkgerrors.IsRetryable(err) {
		t.Fatalf("client errors should not be retryable")
	}
}

func TestDomainCodeForStatus(t *testing.T) {
	tests := []struct {
		status int
		code   pkgerrors.Code
	}{
		{http.StatusUnauthorized, pkgerrors.CodeUnauthorized},
		{http.StatusForbidden, pkgerrors.CodeForbidden},
		{http.StatusNotFound, pkgerrors.CodeNotFound},
		{http.StatusConflict, pkgerrors.CodeConflict},
		{http.StatusUnprocessableEntity, pkgerrors.CodeStateConflict},
		{http.StatusTooManyRequests, pkgerrors.CodeDependency},
		{http.StatusBadRequest, pkgerrors.CodeValidation},
		{http.StatusInternalServerError, pkgerrors.CodeDependency},
	}
	for _, tt := range tests {
		if got := domainCodeForStatus(tt.status); got != tt.code {
			t.Fatalf("status %d expected %s got %s", tt.status, tt.code, got)
		}
	}
}

func TestRedact(t *testing.T) {
	c := &Client{}
	if out := c.redact("email", "a@b.test"); out != "[REDACTED]" {
		t.Fatalf("expected redacted value, got %v", out)
	}
	if v := c.redact("status", "ok"); v != "ok" {
		t.Fatalf("unexpected redaction for safe key")
	}
}
