package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"orderflow-backend/internal/clients"
	ordermodel "orderflow-backend/internal/domains/order/model"
	"orderflow-backend/internal/domains/payment/gateway/razorpay"
	"orderflow-backend/internal/domains/payment/model"
	"orderflow-backend/internal/domains/payment/repository"
	"orderflow-backend/pkg/logger"
)

// maxAttemptsPerOrder caps fresh gateway orders per order. Replays on
// the same idempotency key do not count against it.
const maxAttemptsPerOrder = 3

// OrderAccess is the slice of order behavior payments need.
// Implemented by the order service.
type OrderAccess interface {
	GetOrder(ctx context.Context, orderID uuid.UUID, userID *uuid.UUID) (*ordermodel.Order, []ordermodel.OrderItem, error)
	ApplyPaymentStatus(ctx context.Context, orderID uuid.UUID, to ordermodel.PaymentStatus, actor ordermodel.Actor, reason string) (*ordermodel.Order, error)
	RecordItemRefunds(ctx context.Context, orderID uuid.UUID, refunded map[uuid.UUID]int) error
}

// RefundCompleter settles a refund the gateway reports as processed.
// Implemented by the refund service.
type RefundCompleter interface {
	CompleteByGatewayRefundID(ctx context.Context, gatewayRefundID string) error
}

// PaymentService fronts the gateway for collection, verification,
// webhooks and reconciliation.
type PaymentService struct {
	repo        repository.PaymentRepository
	webhookRepo repository.WebhookRepository
	gateway     razorpay.Gateway
	orders      OrderAccess
	refunds     RefundCompleter
	inventory   *clients.InventoryClient

	webhookSecret string
	keySecret     string
}

func NewPaymentService(
	repo repository.PaymentRepository,
	webhookRepo repository.WebhookRepository,
	gw razorpay.Gateway,
	orders OrderAccess,
	refunds RefundCompleter,
	inventory *clients.InventoryClient,
	keySecret, webhookSecret string,
) *PaymentService {
	return &PaymentService{
		repo:          repo,
		webhookRepo:   webhookRepo,
		gateway:       gw,
		orders:        orders,
		refunds:       refunds,
		inventory:     inventory,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
	}
}

// ===== INITIATION =====

// InitiatePayment opens a gateway order for the amount. The
// idempotency key makes checkout retries reuse the same gateway order
// instead of opening a second one.
func (s *PaymentService) InitiatePayment(
	ctx context.Context,
	orderID, userID uuid.UUID,
	amount decimal.Decimal,
	currency, method, idempotencyKey string,
) (string, string, error) {
	existing, err := s.repo.GetByIdempotencyKey(ctx, idempotencyKey)
	if err != nil {
		return "", "", err
	}
	if existing != nil {
		return existing.GatewayOrderID, s.gateway.KeyID(), nil
	}

	attempts, err := s.repo.CountByOrder(ctx, orderID)
	if err != nil {
		return "", "", err
	}
	if attempts >= maxAttemptsPerOrder {
		return "", "", model.NewPaymentError(model.ErrCodeTooManyAttempts,
			fmt.Sprintf("Order already has %d payment attempts", attempts),
			model.ErrTooManyAttempts)
	}

	gwOrder, err := s.gateway.CreateOrder(ctx, razorpay.CreateOrderRequest{
		Receipt:        orderID.String(),
		Amount:         amount,
		Currency:       currency,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to create gateway order: %w", err)
	}

	payment := &model.Payment{
		ID:             uuid.New(),
		OrderID:        orderID,
		UserID:         userID,
		Amount:         amount,
		Currency:       currency,
		Method:         method,
		GatewayOrderID: gwOrder.ID,
		IdempotencyKey: idempotencyKey,
		Status:         model.StatusPending,
		RefundedAmount: decimal.Zero,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return "", "", err
	}

	logger.Info("Payment initiated", map[string]interface{}{
		"payment_id":       payment.ID,
		"order_id":         orderID,
		"gateway_order_id": gwOrder.ID,
	})
	return gwOrder.ID, s.gateway.KeyID(), nil
}

// ===== SIGNATURE VERIFICATION =====

// VerifySignature confirms the frontend capture callback and marks the
// payment captured. Replays of an already captured payment succeed
// without touching anything.
func (s *PaymentService) VerifySignature(ctx context.Context, userID uuid.UUID, req model.VerifySignatureRequest) (*model.VerifyResponse, error) {
	payment, err := s.repo.GetByGatewayOrderID(ctx, req.GatewayOrderID)
	if err != nil {
		return nil, err
	}
	if payment == nil || payment.UserID != userID {
		return nil, model.ErrPaymentNotFound
	}

	if !razorpay.VerifyPaymentSignature(req.GatewayOrderID, req.GatewayPaymentID, req.Signature, s.keySecret) {
		logger.Warn("Payment signature mismatch", map[string]interface{}{
			"payment_id":       payment.ID,
			"gateway_order_id": req.GatewayOrderID,
		})
		return nil, model.NewPaymentError(model.ErrCodeInvalidSignature,
			"Payment signature verification failed", model.ErrInvalidSignature)
	}

	if payment.Status == model.StatusCaptured {
		return &model.VerifyResponse{PaymentID: payment.ID, OrderID: payment.OrderID, Status: payment.Status}, nil
	}

	now := time.Now()
	payment.GatewayPaymentID = &req.GatewayPaymentID
	payment.GatewaySignature = &req.Signature
	payment.Status = model.StatusCaptured
	payment.PaidAt = &now
	if err := s.repo.Update(ctx, payment); err != nil {
		return nil, err
	}

	s.afterCapture(ctx, payment, "payment captured after signature verification")

	return &model.VerifyResponse{PaymentID: payment.ID, OrderID: payment.OrderID, Status: payment.Status}, nil
}

// afterCapture advances the order and commits the stock hold.
func (s *PaymentService) afterCapture(ctx context.Context, payment *model.Payment, reason string) {
	order, err := s.orders.ApplyPaymentStatus(ctx, payment.OrderID,
		ordermodel.PaymentStatusCaptured, ordermodel.ActorSystem, reason)
	if err != nil {
		logger.Error("Failed to advance order payment status", err)
		return
	}

	if order != nil && order.ReservationID != nil {
		if err := s.inventory.Confirm(ctx, *order.ReservationID); err != nil {
			// Reconciliation picks this up, the hold outlives the payment window.
			logger.Error("Failed to confirm reservation", err)
		}
	}
}

// ===== WEBHOOKS =====

// ProcessWebhook verifies and applies one gateway callback. Duplicate
// deliveries are acknowledged without touching payment state, and
// unknown event types are acknowledged so the gateway stops retrying.
func (s *PaymentService) ProcessWebhook(ctx context.Context, body []byte, signature string) error {
	if !razorpay.VerifyWebhookSignature(body, signature, s.webhookSecret) {
		return model.NewPaymentError(model.ErrCodeInvalidSignature,
			"Webhook signature verification failed", model.ErrInvalidSignature)
	}

	var event model.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("failed to decode webhook event: %w", err)
	}

	entry := &model.WebhookLog{
		ID:        uuid.New(),
		EventID:   event.ID,
		EventType: event.Event,
		Payload:   body,
		Signature: signature,
		Verified:  true,
	}
	inserted, err := s.webhookRepo.Insert(ctx, entry)
	if err != nil {
		return err
	}
	if !inserted {
		logger.Info("Duplicate webhook delivery ignored", map[string]interface{}{"event_id": event.ID})
		return nil
	}

	var paymentID *uuid.UUID
	switch event.Event {
	case "payment.captured":
		paymentID, err = s.applyCapturedEvent(ctx, &event.Payload.Payment.Entity)
	case "payment.failed":
		paymentID, err = s.applyFailedEvent(ctx, &event.Payload.Payment.Entity)
	case "refund.processed":
		err = s.applyRefundProcessedEvent(ctx, &event.Payload.Refund.Entity)
	default:
		logger.Info("Ignoring unhandled webhook event type", map[string]interface{}{"event": event.Event})
	}
	if err != nil {
		return err
	}

	return s.webhookRepo.MarkProcessed(ctx, entry.ID, paymentID)
}

func (s *PaymentService) applyCapturedEvent(ctx context.Context, entity *model.WebhookPaymentEntity) (*uuid.UUID, error) {
	payment, err := s.repo.GetByGatewayOrderID(ctx, entity.OrderID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		logger.Warn("Webhook for unknown gateway order", map[string]interface{}{"gateway_order_id": entity.OrderID})
		return nil, nil
	}

	if !model.Advances(payment.Status, model.StatusCaptured) {
		return &payment.ID, nil
	}

	now := time.Now()
	payment.GatewayPaymentID = &entity.ID
	payment.Status = model.StatusCaptured
	payment.PaidAt = &now
	if err := s.repo.Update(ctx, payment); err != nil {
		return nil, err
	}

	s.afterCapture(ctx, payment, "payment captured via webhook")
	return &payment.ID, nil
}

func (s *PaymentService) applyFailedEvent(ctx context.Context, entity *model.WebhookPaymentEntity) (*uuid.UUID, error) {
	payment, err := s.repo.GetByGatewayOrderID(ctx, entity.OrderID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, nil
	}

	if !model.Advances(payment.Status, model.StatusFailed) {
		return &payment.ID, nil
	}

	now := time.Now()
	payment.GatewayPaymentID = &entity.ID
	payment.Status = model.StatusFailed
	payment.FailedAt = &now
	if entity.ErrorCode != "" {
		payment.ErrorCode = &entity.ErrorCode
	}
	if entity.ErrorDescription != "" {
		payment.ErrorMessage = &entity.ErrorDescription
	}
	if err := s.repo.Update(ctx, payment); err != nil {
		return nil, err
	}

	if _, err := s.orders.ApplyPaymentStatus(ctx, payment.OrderID,
		ordermodel.PaymentStatusFailed, ordermodel.ActorSystem, "payment failed at gateway"); err != nil {
		logger.Error("Failed to mark order payment failed", err)
	}
	return &payment.ID, nil
}

func (s *PaymentService) applyRefundProcessedEvent(ctx context.Context, entity *model.WebhookRefundEntity) error {
	if entity.ID == "" {
		return nil
	}
	return s.refunds.CompleteByGatewayRefundID(ctx, entity.ID)
}

// ===== RECONCILIATION =====

// Reconcile sweeps stuck payments and pulls the gateway's view as the
// source of truth. Only forward moves are applied.
func (s *PaymentService) Reconcile(ctx context.Context, window time.Duration, limit int) (*model.ReconciliationResult, error) {
	since := time.Now().Add(-window)
	payments, err := s.repo.ListReconcilable(ctx, since, limit)
	if err != nil {
		return nil, err
	}

	result := &model.ReconciliationResult{Checked: len(payments)}
	for i := range payments {
		payment := &payments[i]

		gwPayment, err := s.gateway.FetchPayment(ctx, *payment.GatewayPaymentID)
		if err != nil {
			logger.Error("Reconciliation fetch failed", err)
			result.Errors++
			continue
		}

		target := mapGatewayStatus(gwPayment.Status)
		if target == "" || !model.Advances(payment.Status, target) {
			continue
		}

		now := time.Now()
		payment.Status = target
		switch target {
		case model.StatusCaptured, model.StatusAuthorized:
			payment.PaidAt = &now
		case model.StatusFailed:
			payment.FailedAt = &now
			if gwPayment.ErrorCode != "" {
				payment.ErrorCode = &gwPayment.ErrorCode
			}
			if gwPayment.ErrorDescription != "" {
				payment.ErrorMessage = &gwPayment.ErrorDescription
			}
		}
		if err := s.repo.Update(ctx, payment); err != nil {
			logger.Error("Reconciliation update failed", err)
			result.Errors++
			continue
		}
		result.Updated++

		switch target {
		case model.StatusCaptured:
			s.afterCapture(ctx, payment, "payment captured via reconciliation")
		case model.StatusFailed:
			if _, err := s.orders.ApplyPaymentStatus(ctx, payment.OrderID,
				ordermodel.PaymentStatusFailed, ordermodel.ActorSystem, "payment failed via reconciliation"); err != nil {
				logger.Error("Failed to mark order payment failed", err)
			}
		}
	}
	return result, nil
}

// mapGatewayStatus translates gateway payment states to ours.
func mapGatewayStatus(gw string) model.PaymentStatus {
	switch gw {
	case "created":
		return model.StatusPending
	case "authorized":
		return model.StatusAuthorized
	case "captured":
		return model.StatusCaptured
	case "failed":
		return model.StatusFailed
	default:
		return ""
	}
}

// ===== READS =====

func (s *PaymentService) ListOrderPayments(ctx context.Context, userID uuid.UUID, orderID uuid.UUID) ([]model.Payment, error) {
	if _, _, err := s.orders.GetOrder(ctx, orderID, &userID); err != nil {
		return nil, err
	}
	return s.repo.ListByOrder(ctx, orderID)
}

func (s *PaymentService) GetStats(ctx context.Context, from, to time.Time) (*model.Stats, error) {
	return s.repo.GetStats(ctx, from, to)
}
