package clients

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"orderflow-backend/pkg/logger"
)

type NotificationClient struct {
	baseClient
}

func NewNotificationClient(baseURL, serviceKey string, timeout time.Duration) *NotificationClient {
	return &NotificationClient{baseClient: newBaseClient(baseURL, serviceKey, timeout)}
}

// Send dispatches a templated notification. Failures are logged and
// swallowed, a missed email must never fail an order flow.
func (c *NotificationClient) Send(ctx context.Context, userID uuid.UUID, template string, params map[string]string) error {
	req := struct {
		UserID   uuid.UUID         `json:"userId"`
		Template string            `json:"template"`
		Params   map[string]string `json:"params,omitempty"`
	}{
		UserID:   userID,
		Template: template,
		Params:   params,
	}

	if err := c.doJSON(ctx, http.MethodPost, "/internal/v1/notifications", req, nil, ErrNotificationUnavailable); err != nil {
		logger.Warn("Failed to send notification", map[string]interface{}{
			"user_id":  userID.String(),
			"template": template,
			"error":    err.Error(),
		})
		return err
	}
	return nil
}
