package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	ordermodel "orderflow-backend/internal/domains/order/model"
)

// InvoiceLine is one immutable tax line. HSN codes and rates are
// frozen at generation time so later catalog changes cannot alter an
// issued invoice.
type InvoiceLine struct {
	Description string          `json:"description"`
	HSNCode     string          `json:"hsnCode,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Discount    decimal.Decimal `json:"discount"`
	TaxAmount   decimal.Decimal `json:"taxAmount"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
}

// Invoice is the issued tax document for an order. The invoice number
// is permanent: regeneration replaces the rendered file but never the
// number.
type Invoice struct {
	ID            uuid.UUID `json:"id"`
	InvoiceNumber string    `json:"invoiceNumber"`
	OrderID       uuid.UUID `json:"orderId"`
	OrderNumber   string    `json:"orderNumber"`
	UserID        uuid.UUID `json:"userId"`

	Lines          []InvoiceLine              `json:"lines"`
	BillingAddress ordermodel.AddressSnapshot `json:"billingAddress"`
	Totals         ordermodel.TotalsSnapshot  `json:"totals"`

	StorageKey  string `json:"-"`
	GeneratedBy string `json:"generatedBy"`

	GeneratedAt   time.Time  `json:"generatedAt"`
	RegeneratedAt *time.Time `json:"regeneratedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// ===== ERRORS =====

var (
	ErrInvoiceNotFound    = errors.New("invoice not found")
	ErrOrderNotInvoiced   = errors.New("order has no invoice yet")
	ErrOrderNotEligible   = errors.New("order is not eligible for invoicing")
	ErrRenderFailed       = errors.New("invoice rendering failed")
	ErrStorageUnreachable = errors.New("invoice storage unreachable")
)

const (
	ErrCodeInvoiceNotFound = "INVOICE_001"
	ErrCodeNotEligible     = "INVOICE_002"
	ErrCodeRenderFailed    = "INVOICE_003"
)

type InvoiceError struct {
	Code    string
	Message string
	Err     error
}

func (e *InvoiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *InvoiceError) Unwrap() error {
	return e.Err
}

func NewInvoiceError(code, message string, err error) *InvoiceError {
	return &InvoiceError{Code: code, Message: message, Err: err}
}
