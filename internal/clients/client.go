package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"orderflow-backend/internal/config"
)

// Sentinel errors let callers map collaborator outages to 503 responses
// instead of 500s.
var (
	ErrCatalogUnavailable      = errors.New("catalog service unavailable")
	ErrPricingUnavailable      = errors.New("pricing service unavailable")
	ErrInventoryUnavailable    = errors.New("inventory service unavailable")
	ErrShippingUnavailable     = errors.New("shipping service unavailable")
	ErrNotificationUnavailable = errors.New("notification service unavailable")
)

// baseClient wraps the HTTP plumbing shared by all service clients.
type baseClient struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

func newBaseClient(baseURL, serviceKey string, timeout time.Duration) baseClient {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return baseClient{
		baseURL:    baseURL,
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// doJSON sends a JSON request and decodes the JSON response into out.
// unavailable is returned (wrapping the transport error) on connection
// failures, timeouts and 5xx answers.
func (b *baseClient) doJSON(ctx context.Context, method, path string, body interface{}, out interface{}, unavailable error) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if b.serviceKey != "" {
		req.Header.Set("X-Internal-Service-Key", b.serviceKey)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", unavailable, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", unavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return &StatusError{Status: resp.StatusCode, Body: string(bodyBytes)}
	}

	if out != nil {
		if err := json.Unmarshal(bodyBytes, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// StatusError carries a non-retriable 4xx answer from a collaborator.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.Status, e.Body)
}

func asStatusError(err error, target **StatusError) bool {
	return errors.As(err, target)
}

// Clients bundles all collaborator clients for injection.
type Clients struct {
	Catalog      *CatalogClient
	Pricing      *PricingClient
	Inventory    *InventoryClient
	Shipping     *ShippingClient
	Notification *NotificationClient
}

// NewClients builds the full set from config.
func NewClients(cfg config.ServicesConfig, serviceKey string) *Clients {
	return &Clients{
		Catalog:      NewCatalogClient(cfg.CatalogURL, serviceKey, cfg.DefaultTimeout),
		Pricing:      NewPricingClient(cfg.PricingURL, serviceKey, cfg.DefaultTimeout),
		Inventory:    NewInventoryClient(cfg.InventoryURL, serviceKey, cfg.DefaultTimeout),
		Shipping:     NewShippingClient(cfg.ShippingURL, serviceKey, cfg.DefaultTimeout, cfg.ShippingBypassMode),
		Notification: NewNotificationClient(cfg.NotificationURL, serviceKey, cfg.DefaultTimeout),
	}
}
