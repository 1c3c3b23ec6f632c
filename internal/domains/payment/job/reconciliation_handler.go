package job

import (
	"context"
	"time"

	"github.com/hibiken/asynq"

	"orderflow-backend/internal/domains/payment/service"
	"orderflow-backend/pkg/logger"
)

// ReconciliationHandler sweeps stuck payments against the gateway's
// view so captures that missed their webhook still land.
type ReconciliationHandler struct {
	service     *service.PaymentService
	windowHours int
	batchLimit  int
}

func NewReconciliationHandler(svc *service.PaymentService, windowHours, batchLimit int) *ReconciliationHandler {
	return &ReconciliationHandler{
		service:     svc,
		windowHours: windowHours,
		batchLimit:  batchLimit,
	}
}

func (h *ReconciliationHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	window := time.Duration(h.windowHours) * time.Hour

	result, err := h.service.Reconcile(ctx, window, h.batchLimit)
	if err != nil {
		return err
	}

	logger.Info("Payment reconciliation completed", map[string]interface{}{
		"checked": result.Checked,
		"updated": result.Updated,
		"errors":  result.Errors,
	})
	return nil
}
