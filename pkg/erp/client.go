package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/clearledger/reconcile-backend/pkg/config"
	pkgerrors "github.com/clearledger/reconcile-backend/pkg/errors"
	"github.com/clearledger/reconcile-backend/pkg/logger"
)

const defaultTimeout = 30 * time.Second

var (
	errBaseURLRequired = errors.New("erp base url is required")
	errAPIKeyRequired  = errors.New("erp api key is required")
	errLoggerRequired  = errors.New("erp logger is required")
)

// API is the ERP surface the sync orchestrator depends on.
type API interface {
	UpsertCustomer(ctx context.Context, params CustomerParams) (*Customer, error)
	CreateSalesOrder(ctx context.Context, params SalesOrderParams) (*SalesOrder, error)
	CreateInvoice(ctx context.Context, params InvoiceParams) (*Invoice, error)
	CreateCreditNote(ctx context.Context, params CreditNoteParams) (*CreditNote, error)
}

// Client talks to the ERP REST API with centralized auth, logging, and error mapping.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *logger.Logger
}

// NewClient initializes the ERP wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.ERPConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid erp base url: %w", err)
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		logger:     logg,
	}

	logg.Info(ctx, "erp client initialized")
	return c, nil
}

// UpsertCustomer creates or updates the ERP customer record keyed by email.
func (c *Client) UpsertCustomer(ctx context.Context, params CustomerParams) (*Customer, error) {
	if err := params.validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid customer params")
	}
	c.log(ctx, "request", "upsert_customer", map[string]any{"email": params.Email})

	var out Customer
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/customers", params, &out); err != nil {
		c.log(ctx, "error", "upsert_customer", map[string]any{"error": err.Error()})
		return nil, c.mapERPError(err, "upsert customer")
	}

	c.log(ctx, "response", "upsert_customer", map[string]any{"customer_id": out.ID})
	return &out, nil
}

// CreateSalesOrder records the order against an existing ERP customer.
func (c *Client) CreateSalesOrder(ctx context.Context, params SalesOrderParams) (*SalesOrder, error) {
	if err := params.validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid sales order params")
	}
	c.log(ctx, "request", "create_sales_order", map[string]any{
		"customer_id": params.CustomerID,
		"order_ref":   params.OrderRef,
		"amount":      params.Amount.String(),
	})

	var out SalesOrder
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/sales-orders", params, &out); err != nil {
		c.log(ctx, "error", "create_sales_order", map[string]any{"error": err.Error()})
		return nil, c.mapERPError(err, "create sales order")
	}

	c.log(ctx, "response", "create_sales_order", map[string]any{"sales_order_id": out.ID})
	return &out, nil
}

// CreateInvoice issues the invoice for an existing ERP sales order.
func (c *Client) CreateInvoice(ctx context.Context, params InvoiceParams) (*Invoice, error) {
	if err := params.validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid invoice params")
	}
	c.log(ctx, "request", "create_invoice", map[string]any{"sales_order_id": params.SalesOrderID})

	var out Invoice
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/invoices", params, &out); err != nil {
		c.log(ctx, "error", "create_invoice", map[string]any{"error": err.Error()})
		return nil, c.mapERPError(err, "create invoice")
	}

	c.log(ctx, "response", "create_invoice", map[string]any{
		"invoice_id":     out.ID,
		"invoice_number": out.Number,
	})
	return &out, nil
}

// CreateCreditNote reverses a previously issued invoice after a refund.
func (c *Client) CreateCreditNote(ctx context.Context, params CreditNoteParams) (*CreditNote, error) {
	if err := params.validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid credit note params")
	}
	c.log(ctx, "request", "create_credit_note", map[string]any{"invoice_id": params.InvoiceID})

	var out CreditNote
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/credit-notes", params, &out); err != nil {
		c.log(ctx, "error", "create_credit_note", map[string]any{"error": err.Error()})
		return nil, c.mapERPError(err, "create credit note")
	}

	c.log(ctx, "response", "create_credit_note", map[string]any{"credit_note_id": out.ID})
	return &out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &apiError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}
	return nil
}

type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("erp api returned status %d", e.Status)
	}
	return fmt.Sprintf("erp api returned status %d: %s", e.Status, e.Body)
}

func (c *Client) mapERPError(err error, op string) error {
	if err == nil {
		return nil
	}
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return pkgerrors.Wrap(domainCodeForStatus(apiErr.Status), err, fmt.Sprintf("erp %s failed", op))
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("erp %s failed", op))
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusUnprocessableEntity:
		return pkgerrors.CodeStateConflict
	case http.StatusTooManyRequests:
		return pkgerrors.CodeDependency
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("erp %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("erp %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"email", "phone", "secret", "token", "key"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}
