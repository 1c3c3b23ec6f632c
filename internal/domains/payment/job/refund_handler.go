package job

import (
	"context"

	"github.com/hibiken/asynq"

	"orderflow-backend/internal/domains/payment/service"
	"orderflow-backend/internal/shared"
	"orderflow-backend/internal/shared/utils"
	"orderflow-backend/pkg/logger"
)

// RefundHandler pays out approved refunds asynchronously.
type RefundHandler struct {
	service *service.RefundService
}

func NewRefundHandler(svc *service.RefundService) *RefundHandler {
	return &RefundHandler{service: svc}
}

func (h *RefundHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload shared.RefundProcessPayload
	if err := utils.UnmarshalTask(t, &payload); err != nil {
		return err
	}

	refundID := utils.ParseStringToUUID(payload.RefundID)
	if err := h.service.Process(ctx, refundID); err != nil {
		logger.Error("Refund processing failed", err)
		return err
	}
	return nil
}
