package clients

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Product lifecycle states as reported by the catalog service.
const (
	ProductStatusActive       = "active"
	ProductStatusInactive     = "inactive"
	ProductStatusDiscontinued = "discontinued"
)

// ProductInfo is the catalog's view of a sellable item.
type ProductInfo struct {
	ID         uuid.UUID `json:"id"`
	SKU        string    `json:"sku"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	HSNCode    string    `json:"hsnCode"`
	MaxPerLine int       `json:"maxPerLine"`
}

// Purchasable reports whether the product can be added to a cart.
func (p *ProductInfo) Purchasable() bool {
	return p.Status == ProductStatusActive
}

type CatalogClient struct {
	baseClient
}

func NewCatalogClient(baseURL, serviceKey string, timeout time.Duration) *CatalogClient {
	return &CatalogClient{baseClient: newBaseClient(baseURL, serviceKey, timeout)}
}

// GetProduct fetches a single product. Returns (nil, nil) when the
// catalog does not know the ID.
func (c *CatalogClient) GetProduct(ctx context.Context, productID uuid.UUID) (*ProductInfo, error) {
	var product ProductInfo
	err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/internal/v1/products/%s", productID), nil, &product, ErrCatalogUnavailable)
	if err != nil {
		var statusErr *StatusError
		if asStatusError(err, &statusErr) && statusErr.Status == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

// GetProducts fetches a batch of products keyed by ID. Unknown IDs are
// simply absent from the result.
func (c *CatalogClient) GetProducts(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]*ProductInfo, error) {
	if len(productIDs) == 0 {
		return map[uuid.UUID]*ProductInfo{}, nil
	}

	req := struct {
		IDs []uuid.UUID `json:"ids"`
	}{IDs: productIDs}

	var resp struct {
		Products []*ProductInfo `json:"products"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/internal/v1/products/batch", req, &resp, ErrCatalogUnavailable); err != nil {
		return nil, err
	}

	result := make(map[uuid.UUID]*ProductInfo, len(resp.Products))
	for _, p := range resp.Products {
		result[p.ID] = p
	}
	return result, nil
}
