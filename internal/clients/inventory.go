package clients

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// ReservationLine asks the inventory service to hold quantity units
// of one variant.
type ReservationLine struct {
	VariantID uuid.UUID `json:"variantId"`
	Quantity  int       `json:"quantity"`
}

// ReservationRequest holds stock for a checkout session.
type ReservationRequest struct {
	ReferenceID string            `json:"referenceId"`
	Lines       []ReservationLine `json:"lines"`
	TTLMinutes  int               `json:"ttlMinutes"`
}

// Reservation is the inventory service's hold confirmation.
type Reservation struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// InsufficientStockError reports which lines could not be held.
type InsufficientStockError struct {
	VariantIDs []uuid.UUID
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %d variants", len(e.VariantIDs))
}

type InventoryClient struct {
	baseClient
}

func NewInventoryClient(baseURL, serviceKey string, timeout time.Duration) *InventoryClient {
	return &InventoryClient{baseClient: newBaseClient(baseURL, serviceKey, timeout)}
}

// Reserve places a hold on stock for every line or none at all.
func (c *InventoryClient) Reserve(ctx context.Context, req ReservationRequest) (*Reservation, error) {
	var resp struct {
		Reservation *Reservation `json:"reservation"`
		Unavailable []uuid.UUID  `json:"unavailable"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/internal/v1/reservations", req, &resp, ErrInventoryUnavailable)
	if err != nil {
		var statusErr *StatusError
		if asStatusError(err, &statusErr) && statusErr.Status == http.StatusConflict {
			return nil, &InsufficientStockError{VariantIDs: resp.Unavailable}
		}
		return nil, err
	}
	if resp.Reservation == nil {
		return nil, fmt.Errorf("inventory returned empty reservation")
	}
	return resp.Reservation, nil
}

// Confirm converts a hold into a committed deduction after payment.
func (c *InventoryClient) Confirm(ctx context.Context, reservationID string) error {
	path := fmt.Sprintf("/internal/v1/reservations/%s/confirm", reservationID)
	return c.doJSON(ctx, http.MethodPost, path, nil, nil, ErrInventoryUnavailable)
}

// Release frees a hold. Safe to call on an already-released or expired
// reservation, the inventory service treats it as a no-op.
func (c *InventoryClient) Release(ctx context.Context, reservationID, reason string) error {
	req := struct {
		Reason string `json:"reason"`
	}{Reason: reason}

	path := fmt.Sprintf("/internal/v1/reservations/%s/release", reservationID)
	err := c.doJSON(ctx, http.MethodPost, path, req, nil, ErrInventoryUnavailable)
	if err != nil {
		var statusErr *StatusError
		if asStatusError(err, &statusErr) && statusErr.Status == http.StatusNotFound {
			return nil
		}
		return err
	}
	return nil
}
