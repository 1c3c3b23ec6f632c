package shared

// Task types for background jobs. Scheduled tasks are enqueued by the
// worker scheduler, event tasks are enqueued by the API services.
const (
	// Scheduled tasks
	TypeCartCleanup           = "cart:cleanup_expired"
	TypeCartAbandonedReminder = "cart:abandoned_reminder"
	TypeCartItemValidation    = "cart:item_validation"
	TypeCheckoutExpiry        = "checkout:expire_sessions"
	TypeOrderAutoConfirm      = "order:auto_confirm"
	TypePaymentReconciliation = "payment:reconciliation"
	TypeInvoiceAutoGenerate   = "invoice:auto_generate"

	// Event tasks
	TypeOrderConfirmed  = "order:confirmed"
	TypeOrderCancelled  = "order:cancelled"
	TypeRefundProcess   = "refund:process"
	TypeInvoiceGenerate = "invoice:generate"
)

// Asynq queue names, highest priority first.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// OrderConfirmedPayload is carried by order:confirmed tasks.
type OrderConfirmedPayload struct {
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	UserID      string `json:"userId"`
}

// OrderCancelledPayload is carried by order:cancelled tasks.
type OrderCancelledPayload struct {
	OrderID    string `json:"orderId"`
	UserID     string `json:"userId"`
	Reason     string `json:"reason"`
	NeedRefund bool   `json:"needRefund"`
}

// RefundProcessPayload is carried by refund:process tasks.
type RefundProcessPayload struct {
	RefundID string `json:"refundId"`
}

// InvoiceGeneratePayload is carried by invoice:generate tasks.
type InvoiceGeneratePayload struct {
	OrderID    string `json:"orderId"`
	Regenerate bool   `json:"regenerate"`
}
