package job

import (
	"context"
	"time"

	"github.com/hibiken/asynq"

	"orderflow-backend/internal/domains/order/service"
	"orderflow-backend/pkg/logger"
)

// AutoConfirmHandler promotes paid orders stuck in pending to confirmed
// once the grace window has passed.
type AutoConfirmHandler struct {
	service    *service.OrderService
	graceHours int
	batchLimit int
}

func NewAutoConfirmHandler(svc *service.OrderService, graceHours, batchLimit int) *AutoConfirmHandler {
	return &AutoConfirmHandler{
		service:    svc,
		graceHours: graceHours,
		batchLimit: batchLimit,
	}
}

func (h *AutoConfirmHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	cutoff := time.Now().Add(-time.Duration(h.graceHours) * time.Hour)

	confirmed, err := h.service.AutoConfirmEligible(ctx, cutoff, h.batchLimit)
	if err != nil {
		return err
	}

	logger.Info("Order auto-confirm completed", map[string]interface{}{
		"confirmed": confirmed,
	})
	return nil
}
