package clients

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceInfo is the pricing service's current quote for a sellable variant.
type PriceInfo struct {
	VariantID uuid.UUID       `json:"variantId"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Currency  string          `json:"currency"`
	TaxRate   decimal.Decimal `json:"taxRate"`
	QuotedAt  time.Time       `json:"quotedAt"`
}

type PricingClient struct {
	baseClient
}

func NewPricingClient(baseURL, serviceKey string, timeout time.Duration) *PricingClient {
	return &PricingClient{baseClient: newBaseClient(baseURL, serviceKey, timeout)}
}

// GetPrices returns current prices for a batch of variants.
// Variants the pricing service cannot quote are absent from the map.
func (c *PricingClient) GetPrices(ctx context.Context, variantIDs []uuid.UUID) (map[uuid.UUID]PriceInfo, error) {
	if len(variantIDs) == 0 {
		return map[uuid.UUID]PriceInfo{}, nil
	}

	req := struct {
		VariantIDs []uuid.UUID `json:"variantIds"`
	}{VariantIDs: variantIDs}

	var resp struct {
		Prices []PriceInfo `json:"prices"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/internal/v1/prices/batch", req, &resp, ErrPricingUnavailable); err != nil {
		return nil, err
	}

	result := make(map[uuid.UUID]PriceInfo, len(resp.Prices))
	for _, p := range resp.Prices {
		result[p.VariantID] = p
	}
	return result, nil
}
