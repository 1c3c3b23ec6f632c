package job

import (
	"context"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"orderflow-backend/internal/clients"
	"orderflow-backend/internal/shared"
	"orderflow-backend/internal/shared/utils"
	"orderflow-backend/pkg/logger"
)

// RefundInitiator opens a full refund for a cancelled paid order.
// Implemented by the payment refund service.
type RefundInitiator interface {
	InitiateFullRefund(ctx context.Context, orderID uuid.UUID, reason string) error
}

// EventsHandler reacts to order lifecycle events emitted by the API.
type EventsHandler struct {
	notify  *clients.NotificationClient
	refunds RefundInitiator
}

func NewEventsHandler(notify *clients.NotificationClient, refunds RefundInitiator) *EventsHandler {
	return &EventsHandler{notify: notify, refunds: refunds}
}

func (h *EventsHandler) ProcessConfirmed(ctx context.Context, t *asynq.Task) error {
	var payload shared.OrderConfirmedPayload
	if err := utils.UnmarshalTask(t, &payload); err != nil {
		return err
	}

	err := h.notify.Send(ctx, utils.ParseStringToUUID(payload.UserID), "order_confirmed", map[string]string{
		"orderNumber": payload.OrderNumber,
	})
	if err != nil {
		// Notification is best effort, the order state already moved.
		logger.Warn("Order confirmed notification failed", map[string]interface{}{
			"order_id": payload.OrderID,
			"error":    err.Error(),
		})
	}
	return nil
}

func (h *EventsHandler) ProcessCancelled(ctx context.Context, t *asynq.Task) error {
	var payload shared.OrderCancelledPayload
	if err := utils.UnmarshalTask(t, &payload); err != nil {
		return err
	}

	if payload.NeedRefund {
		orderID := utils.ParseStringToUUID(payload.OrderID)
		// Retried by asynq until the refund is opened.
		if err := h.refunds.InitiateFullRefund(ctx, orderID, payload.Reason); err != nil {
			return err
		}
	}

	err := h.notify.Send(ctx, utils.ParseStringToUUID(payload.UserID), "order_cancelled", map[string]string{
		"reason": payload.Reason,
	})
	if err != nil {
		logger.Warn("Order cancelled notification failed", map[string]interface{}{
			"order_id": payload.OrderID,
			"error":    err.Error(),
		})
	}
	return nil
}
