package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/shopspring/decimal"
)

// =====================================================
// RAZORPAY CLIENT
// =====================================================

// Gateway is the subset of the Razorpay REST API the payment service
// needs. Amounts cross the wire in paise.
type Gateway interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*GatewayOrder, error)
	FetchPayment(ctx context.Context, gatewayPaymentID string) (*GatewayPayment, error)
	Refund(ctx context.Context, gatewayPaymentID string, amount decimal.Decimal, notes map[string]string) (*GatewayRefund, error)
	KeyID() string
}

type CreateOrderRequest struct {
	Receipt        string          // Internal reference, the order number
	Amount         decimal.Decimal // Rupees, converted to paise on the wire
	Currency       string
	IdempotencyKey string
}

type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type GatewayPayment struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	Method           string `json:"method"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
}

type GatewayRefund struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
}

// APIError is a non-2xx gateway response.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("razorpay API error %d: %s (%s)", e.StatusCode, e.Description, e.Code)
}

type Client struct {
	config     *Config
	httpClient *http.Client
}

func NewClient(config *Config) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

func (c *Client) KeyID() string {
	return c.config.KeyID
}

// CreateOrder registers the amount with the gateway before the
// frontend widget opens. The idempotency key makes retries return the
// same gateway order.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*GatewayOrder, error) {
	// Step 1: Build request body, amount in paise
	body := map[string]interface{}{
		"amount":   req.Amount.Mul(decimal.NewFromInt(100)).IntPart(),
		"currency": req.Currency,
		"receipt":  req.Receipt,
	}

	// Step 2: Call gateway
	var order GatewayOrder
	if err := c.doJSON(ctx, http.MethodPost, c.config.OrdersURL(), req.IdempotencyKey, body, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// FetchPayment pulls the gateway's current view of one payment.
// Reconciliation uses this as the source of truth.
func (c *Client) FetchPayment(ctx context.Context, gatewayPaymentID string) (*GatewayPayment, error) {
	var payment GatewayPayment
	if err := c.doJSON(ctx, http.MethodGet, c.config.PaymentURL(gatewayPaymentID), "", nil, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// Refund returns amount rupees of a captured payment.
func (c *Client) Refund(ctx context.Context, gatewayPaymentID string, amount decimal.Decimal, notes map[string]string) (*GatewayRefund, error) {
	body := map[string]interface{}{
		"amount": amount.Mul(decimal.NewFromInt(100)).IntPart(),
	}
	if len(notes) > 0 {
		body["notes"] = notes
	}

	var refund GatewayRefund
	if err := c.doJSON(ctx, http.MethodPost, c.config.RefundURL(gatewayPaymentID), "", body, &refund); err != nil {
		return nil, err
	}
	return &refund, nil
}

func (c *Client) doJSON(ctx context.Context, method, url, idempotencyKey string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal gateway request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create gateway request: %w", err)
	}

	httpReq.SetBasicAuth(c.config.KeyID, c.config.KeySecret)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		httpReq.Header.Set("X-Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to call gateway: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Error struct {
				Code        string `json:"code"`
				Description string `json:"description"`
			} `json:"error"`
		}
		_ = json.Unmarshal(respBody, &errResp)
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error.Code,
			Description: errResp.Error.Description,
		}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to unmarshal gateway response: %w", err)
		}
	}
	return nil
}
