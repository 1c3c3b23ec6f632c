package main

import (
	"time"

	"github.com/hibiken/asynq"

	cartJob "orderflow-backend/internal/domains/cart/job"
	checkoutJob "orderflow-backend/internal/domains/checkout/job"
	invoiceJob "orderflow-backend/internal/domains/invoice/job"
	orderJob "orderflow-backend/internal/domains/order/job"
	paymentJob "orderflow-backend/internal/domains/payment/job"
	"orderflow-backend/internal/shared"
	"orderflow-backend/pkg/container"
)

// Idle carts get their snapshots revalidated once the last check is
// older than this. Matches the sweep cadence.
const cartRevalidationStaleAfter = 6 * time.Hour

// HandlerRegistry holds all job handlers
type HandlerRegistry struct {
	// Cart maintenance
	cartCleanup      *cartJob.CleanupHandler
	cartReminder     *cartJob.ReminderHandler
	cartRevalidation *cartJob.RevalidationHandler

	// Checkout
	checkoutExpiry *checkoutJob.ExpiryHandler

	// Orders
	orderAutoConfirm *orderJob.AutoConfirmHandler
	orderEvents      *orderJob.EventsHandler

	// Payments
	refundProcess  *paymentJob.RefundHandler
	reconciliation *paymentJob.ReconciliationHandler

	// Invoices
	autoInvoice *invoiceJob.AutoInvoiceHandler
}

// initializeHandlers creates all job handlers with their dependencies
func initializeHandlers(c *container.Container) *HandlerRegistry {
	cfg := c.Config
	batchLimit := cfg.Jobs.BatchLimit

	return &HandlerRegistry{
		cartCleanup: cartJob.NewCleanupHandler(
			c.CartRepo,
			cfg.Lifecycle.CartExpiryDays,
			batchLimit,
		),
		cartReminder: cartJob.NewReminderHandler(
			c.CartRepo,
			c.Clients.Notification,
			cfg.Lifecycle.AbandonedReminderAfterHours,
			cfg.Lifecycle.AbandonedReminderMaxHours,
			batchLimit,
		),
		cartRevalidation: cartJob.NewRevalidationHandler(
			c.CartRepo,
			c.Revalidator,
			c.CartService,
			cartRevalidationStaleAfter,
			batchLimit,
		),

		checkoutExpiry: checkoutJob.NewExpiryHandler(
			c.CheckoutRepo,
			c.Clients.Inventory,
			batchLimit,
		),

		orderAutoConfirm: orderJob.NewAutoConfirmHandler(
			c.OrderService,
			cfg.Lifecycle.OrderAutoConfirmHours,
			batchLimit,
		),
		orderEvents: orderJob.NewEventsHandler(
			c.Clients.Notification,
			c.RefundService,
		),

		refundProcess: paymentJob.NewRefundHandler(c.RefundService),
		reconciliation: paymentJob.NewReconciliationHandler(
			c.PaymentService,
			cfg.Lifecycle.ReconciliationWindowHours,
			batchLimit,
		),

		autoInvoice: invoiceJob.NewAutoInvoiceHandler(
			c.InvoiceService,
			c.OrderRepo,
			batchLimit,
		),
	}
}

// RegisterHandlers registers all handlers with the mux
func (h *HandlerRegistry) RegisterHandlers(mux *asynq.ServeMux) {
	// Scheduled sweeps
	mux.HandleFunc(shared.TypeCartCleanup, h.cartCleanup.ProcessTask)
	mux.HandleFunc(shared.TypeCartAbandonedReminder, h.cartReminder.ProcessTask)
	mux.HandleFunc(shared.TypeCartItemValidation, h.cartRevalidation.ProcessTask)
	mux.HandleFunc(shared.TypeCheckoutExpiry, h.checkoutExpiry.ProcessTask)
	mux.HandleFunc(shared.TypeOrderAutoConfirm, h.orderAutoConfirm.ProcessTask)
	mux.HandleFunc(shared.TypePaymentReconciliation, h.reconciliation.ProcessTask)
	mux.HandleFunc(shared.TypeInvoiceAutoGenerate, h.autoInvoice.ProcessSweep)

	// Event tasks enqueued by the API
	mux.HandleFunc(shared.TypeOrderConfirmed, h.orderEvents.ProcessConfirmed)
	mux.HandleFunc(shared.TypeOrderCancelled, h.orderEvents.ProcessCancelled)
	mux.HandleFunc(shared.TypeRefundProcess, h.refundProcess.ProcessTask)
	mux.HandleFunc(shared.TypeInvoiceGenerate, h.autoInvoice.ProcessGenerate)
}
