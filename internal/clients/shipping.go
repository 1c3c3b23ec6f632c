package clients

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// ShippingQuoteRequest asks for serviceability and a delivery fee.
type ShippingQuoteRequest struct {
	Pincode     string          `json:"pincode"`
	WeightGrams int             `json:"weightGrams"`
	OrderValue  decimal.Decimal `json:"orderValue"`
}

// ShippingQuote is the shipping service's answer.
type ShippingQuote struct {
	Serviceable   bool            `json:"serviceable"`
	Fee           decimal.Decimal `json:"fee"`
	EstimatedDays int             `json:"estimatedDays"`
}

type ShippingClient struct {
	baseClient
	bypassMode bool
}

func NewShippingClient(baseURL, serviceKey string, timeout time.Duration, bypassMode bool) *ShippingClient {
	return &ShippingClient{
		baseClient: newBaseClient(baseURL, serviceKey, timeout),
		bypassMode: bypassMode,
	}
}

// Quote checks serviceability for a pincode and returns the fee.
// In bypass mode every pincode is serviceable at a flat fee, used in
// environments without a shipping aggregator account.
func (c *ShippingClient) Quote(ctx context.Context, req ShippingQuoteRequest) (*ShippingQuote, error) {
	if c.bypassMode {
		return &ShippingQuote{
			Serviceable:   true,
			Fee:           decimal.NewFromInt(50),
			EstimatedDays: 5,
		}, nil
	}

	var quote ShippingQuote
	if err := c.doJSON(ctx, http.MethodPost, "/internal/v1/quotes", req, &quote, ErrShippingUnavailable); err != nil {
		return nil, err
	}
	return &quote, nil
}
