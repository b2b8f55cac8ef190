package erp

import (
	"errors"

	"github.com/shopspring/decimal"
)

// CustomerParams identifies the buyer for an ERP customer upsert. Email is
// the natural key on the ERP side.
type CustomerParams struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

func (p CustomerParams) validate() error {
	if p.Email == "" {
		return errors.New("email is required")
	}
	if p.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

// Customer is the ERP customer record.
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// SalesOrderParams describes the order pushed into the ERP. OrderRef is the
// local order id and lets the ERP side deduplicate re-sent orders.
type SalesOrderParams struct {
	CustomerID string          `json:"customer_id"`
	OrderRef   string          `json:"order_ref"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
}

func (p SalesOrderParams) validate() error {
	if p.CustomerID == "" {
		return errors.New("customer id is required")
	}
	if p.OrderRef == "" {
		return errors.New("order ref is required")
	}
	if p.Amount.IsNegative() {
		return errors.New("amount must not be negative")
	}
	return nil
}

// SalesOrder is the ERP sales order record.
type SalesOrder struct {
	ID       string `json:"id"`
	OrderRef string `json:"order_ref"`
	Status   string `json:"status"`
}

// InvoiceParams requests an invoice for an existing sales order.
type InvoiceParams struct {
	SalesOrderID string `json:"sales_order_id"`
}

func (p InvoiceParams) validate() error {
	if p.SalesOrderID == "" {
		return errors.New("sales order id is required")
	}
	return nil
}

// Invoice is the ERP invoice record. Number is the human-facing document
// number printed on the invoice.
type Invoice struct {
	ID     string `json:"id"`
	Number string `json:"number"`
	Status string `json:"status"`
}

// CreditNoteParams reverses an issued invoice, in full or in part.
type CreditNoteParams struct {
	InvoiceID string          `json:"invoice_id"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason,omitempty"`
}

func (p CreditNoteParams) validate() error {
	if p.InvoiceID == "" {
		return errors.New("invoice id is required")
	}
	if p.Amount.IsNegative() {
		return errors.New("amount must not be negative")
	}
	return nil
}

// CreditNote is the ERP credit note record.
type CreditNote struct {
	ID        string `json:"id"`
	InvoiceID string `json:"invoice_id"`
	Status    string `json:"status"`
}
