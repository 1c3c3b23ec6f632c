package job

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	invoiceservice "orderflow-backend/internal/domains/invoice/service"
	ordermodel "orderflow-backend/internal/domains/order/model"
	"orderflow-backend/internal/shared"
	"orderflow-backend/internal/shared/utils"
	"orderflow-backend/pkg/logger"
)

// DeliveredOrderLister finds delivered orders still missing invoices.
// Implemented by the order repository.
type DeliveredOrderLister interface {
	ListDeliveredWithoutInvoice(ctx context.Context, limit int) ([]ordermodel.Order, error)
}

// AutoInvoiceHandler issues invoices for delivered orders that have
// none yet, and serves targeted invoice:generate tasks.
type AutoInvoiceHandler struct {
	service    *invoiceservice.InvoiceService
	orders     DeliveredOrderLister
	batchLimit int
}

func NewAutoInvoiceHandler(svc *invoiceservice.InvoiceService, orders DeliveredOrderLister, batchLimit int) *AutoInvoiceHandler {
	return &AutoInvoiceHandler{
		service:    svc,
		orders:     orders,
		batchLimit: batchLimit,
	}
}

// ProcessSweep is the scheduled catch-all pass.
func (h *AutoInvoiceHandler) ProcessSweep(ctx context.Context, t *asynq.Task) error {
	start := time.Now()
	orders, err := h.orders.ListDeliveredWithoutInvoice(ctx, h.batchLimit)
	if err != nil {
		return err
	}

	generated := 0
	for i := range orders {
		if _, err := h.service.Generate(ctx, orders[i].ID, invoiceservice.GeneratedBySystem, false); err != nil {
			logger.Error("Auto-invoice failed", err)
			continue
		}
		generated++
	}

	logger.Info("Invoice sweep completed", map[string]interface{}{
		"candidates": len(orders),
		"generated":  generated,
		"took":       time.Since(start).String(),
	})
	return nil
}

// ProcessGenerate handles a targeted invoice:generate task.
func (h *AutoInvoiceHandler) ProcessGenerate(ctx context.Context, t *asynq.Task) error {
	var payload shared.InvoiceGeneratePayload
	if err := utils.UnmarshalTask(t, &payload); err != nil {
		return err
	}

	orderID, err := uuid.Parse(payload.OrderID)
	if err != nil {
		logger.Error("Invoice task has bad order id", err)
		return nil
	}

	_, err = h.service.Generate(ctx, orderID, invoiceservice.GeneratedBySystem, payload.Regenerate)
	return err
}
