package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	ordermodel "orderflow-backend/internal/domains/order/model"
	"orderflow-backend/internal/domains/payment/gateway/razorpay"
	"orderflow-backend/internal/domains/payment/model"
	"orderflow-backend/internal/domains/payment/repository"
	"orderflow-backend/internal/shared"
	"orderflow-backend/internal/shared/utils"
	"orderflow-backend/pkg/logger"
	"orderflow-backend/pkg/sequence"
)

// RefundService owns the refund request lifecycle:
// requested -> approved -> processing -> completed.
type RefundService struct {
	refundRepo  repository.RefundRepository
	paymentRepo repository.PaymentRepository
	gateway     razorpay.Gateway
	orders      OrderAccess
	sequences   *sequence.Generator
	queue       *asynq.Client
}

func NewRefundService(
	refundRepo repository.RefundRepository,
	paymentRepo repository.PaymentRepository,
	gw razorpay.Gateway,
	orders OrderAccess,
	sequences *sequence.Generator,
	queue *asynq.Client,
) *RefundService {
	return &RefundService{
		refundRepo:  refundRepo,
		paymentRepo: paymentRepo,
		gateway:     gw,
		orders:      orders,
		sequences:   sequences,
		queue:       queue,
	}
}

// ===== REQUEST =====

// RequestRefund opens a refund for the selected lines. The per-line
// amount is the unit price times quantity minus the line's
// proportional discount share.
func (s *RefundService) RequestRefund(ctx context.Context, userID uuid.UUID, req model.RequestRefundRequest) (*model.Refund, error) {
	order, items, err := s.orders.GetOrder(ctx, req.OrderID, &userID)
	if err != nil {
		return nil, err
	}

	payment, err := s.paymentRepo.GetCapturedByOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, model.NewPaymentError(model.ErrCodeNotRefundable,
			"Order has no captured payment to refund", model.ErrNotRefundable)
	}

	lines, total, err := buildRefundLines(items, req.Lines)
	if err != nil {
		return nil, err
	}
	if total.GreaterThan(payment.Refundable()) {
		return nil, model.NewPaymentError(model.ErrCodeRefundExceeds,
			fmt.Sprintf("Refund of %s exceeds refundable %s", total.StringFixed(2), payment.Refundable().StringFixed(2)),
			model.ErrRefundExceeds)
	}

	refundNumber, err := s.sequences.Next(ctx, sequence.KindRefund)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refund number: %w", err)
	}

	refund := &model.Refund{
		ID:              uuid.New(),
		RefundNumber:    refundNumber,
		OrderID:         order.ID,
		PaymentID:       payment.ID,
		RequestedBy:     userID,
		RequestedAmount: total,
		Lines:           lines,
		Reason:          req.Reason,
		Method:          model.RefundMethod(req.Method),
		Status:          model.RefundRequested,
	}
	if err := s.refundRepo.Create(ctx, refund); err != nil {
		return nil, err
	}

	logger.Info("Refund requested", map[string]interface{}{
		"refund_id":     refund.ID,
		"refund_number": refund.RefundNumber,
		"order_id":      order.ID,
		"amount":        total.StringFixed(2),
	})
	return refund, nil
}

func buildRefundLines(items []ordermodel.OrderItem, requested []model.RefundLineRequest) ([]model.RefundLine, decimal.Decimal, error) {
	byID := make(map[uuid.UUID]*ordermodel.OrderItem, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
	}

	lines := make([]model.RefundLine, 0, len(requested))
	total := decimal.Zero
	for _, reqLine := range requested {
		item, ok := byID[reqLine.OrderItemID]
		if !ok {
			return nil, decimal.Zero, model.NewPaymentError(model.ErrCodeNotRefundable,
				"Refund line does not belong to this order", model.ErrNotRefundable)
		}
		if reqLine.Quantity > item.RemainingRefundable() {
			return nil, decimal.Zero, model.NewPaymentError(model.ErrCodeRefundExceeds,
				fmt.Sprintf("Only %d units of %s are refundable", item.RemainingRefundable(), item.Name),
				model.ErrRefundExceeds)
		}

		qty := decimal.NewFromInt(int64(reqLine.Quantity))
		discountShare := decimal.Zero
		if item.Quantity > 0 {
			discountShare = item.LineDiscount.Mul(qty).Div(decimal.NewFromInt(int64(item.Quantity)))
		}
		amount := utils.RoundMoney(item.UnitPrice.Mul(qty).Sub(discountShare))

		lines = append(lines, model.RefundLine{
			OrderItemID: item.ID,
			Quantity:    reqLine.Quantity,
			Amount:      amount,
		})
		total = total.Add(amount)
	}
	return lines, utils.RoundMoney(total), nil
}

// InitiateFullRefund auto-approves a refund for everything still
// refundable on the order. Used when a paid order is cancelled.
func (s *RefundService) InitiateFullRefund(ctx context.Context, orderID uuid.UUID, reason string) error {
	order, items, err := s.orders.GetOrder(ctx, orderID, nil)
	if err != nil {
		return err
	}

	payment, err := s.paymentRepo.GetCapturedByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if payment == nil || !payment.Refundable().IsPositive() {
		return nil
	}

	lines := make([]model.RefundLine, 0, len(items))
	for i := range items {
		remaining := items[i].RemainingRefundable()
		if remaining <= 0 {
			continue
		}
		qty := decimal.NewFromInt(int64(remaining))
		discountShare := decimal.Zero
		if items[i].Quantity > 0 {
			discountShare = items[i].LineDiscount.Mul(qty).Div(decimal.NewFromInt(int64(items[i].Quantity)))
		}
		lines = append(lines, model.RefundLine{
			OrderItemID: items[i].ID,
			Quantity:    remaining,
			Amount:      utils.RoundMoney(items[i].UnitPrice.Mul(qty).Sub(discountShare)),
		})
	}

	refundNumber, err := s.sequences.Next(ctx, sequence.KindRefund)
	if err != nil {
		return fmt.Errorf("failed to generate refund number: %w", err)
	}

	amount := payment.Refundable()
	now := time.Now()
	refund := &model.Refund{
		ID:              uuid.New(),
		RefundNumber:    refundNumber,
		OrderID:         orderID,
		PaymentID:       payment.ID,
		RequestedBy:     order.UserID,
		RequestedAmount: amount,
		ApprovedAmount:  &amount,
		Lines:           lines,
		Reason:          reason,
		Method:          model.RefundViaGateway,
		Status:          model.RefundApproved,
		ApprovedAt:      &now,
	}
	if err := s.refundRepo.Create(ctx, refund); err != nil {
		return err
	}
	if err := s.refundRepo.Update(ctx, refund); err != nil {
		return err
	}

	s.enqueueProcess(ctx, refund.ID)
	logger.Info("Full refund initiated for cancelled order", map[string]interface{}{
		"refund_id": refund.ID,
		"order_id":  orderID,
		"amount":    amount.StringFixed(2),
	})
	return nil
}

// InitiateReturnRefund opens a pre-approved refund for units accepted
// during return inspection.
func (s *RefundService) InitiateReturnRefund(ctx context.Context, orderID, requestedBy uuid.UUID, lines []model.RefundLineRequest, reason string) (*model.Refund, error) {
	_, items, err := s.orders.GetOrder(ctx, orderID, nil)
	if err != nil {
		return nil, err
	}

	payment, err := s.paymentRepo.GetCapturedByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, model.NewPaymentError(model.ErrCodeNotRefundable,
			"Order has no captured payment to refund", model.ErrNotRefundable)
	}

	refundLines, total, err := buildRefundLines(items, lines)
	if err != nil {
		return nil, err
	}
	if total.GreaterThan(payment.Refundable()) {
		total = payment.Refundable()
	}

	refundNumber, err := s.sequences.Next(ctx, sequence.KindRefund)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refund number: %w", err)
	}

	now := time.Now()
	refund := &model.Refund{
		ID:              uuid.New(),
		RefundNumber:    refundNumber,
		OrderID:         orderID,
		PaymentID:       payment.ID,
		RequestedBy:     requestedBy,
		RequestedAmount: total,
		ApprovedAmount:  &total,
		Lines:           refundLines,
		Reason:          reason,
		Method:          model.RefundViaGateway,
		Status:          model.RefundApproved,
		ApprovedAt:      &now,
	}
	if err := s.refundRepo.Create(ctx, refund); err != nil {
		return nil, err
	}
	if err := s.refundRepo.Update(ctx, refund); err != nil {
		return nil, err
	}

	s.enqueueProcess(ctx, refund.ID)
	return refund, nil
}

// ===== APPROVAL =====

// Approve locks in the payout amount, at most what was requested.
func (s *RefundService) Approve(ctx context.Context, adminID, refundID uuid.UUID, req model.ApproveRefundRequest) (*model.Refund, error) {
	refund, err := s.refundRepo.GetByID(ctx, refundID)
	if err != nil {
		return nil, err
	}
	if refund == nil {
		return nil, model.ErrRefundNotFound
	}
	if refund.Status != model.RefundRequested {
		return nil, model.NewPaymentError(model.ErrCodeRefundState,
			fmt.Sprintf("Refund is %s, only requested refunds can be approved", refund.Status),
			model.ErrRefundNotActionable)
	}

	approved := req.ApprovedAmount
	if approved.IsZero() {
		approved = refund.RequestedAmount
	}
	if !approved.IsPositive() || approved.GreaterThan(refund.RequestedAmount) {
		return nil, model.NewPaymentError(model.ErrCodeRefundExceeds,
			"Approved amount must be positive and at most the requested amount",
			model.ErrRefundExceeds)
	}

	now := time.Now()
	refund.ApprovedAmount = &approved
	refund.ApprovedBy = &adminID
	refund.ApprovedAt = &now
	refund.Status = model.RefundApproved
	if err := s.refundRepo.Update(ctx, refund); err != nil {
		return nil, err
	}

	s.enqueueProcess(ctx, refund.ID)
	return refund, nil
}

// Reject declines a requested refund.
func (s *RefundService) Reject(ctx context.Context, adminID, refundID uuid.UUID, reason string) (*model.Refund, error) {
	refund, err := s.refundRepo.GetByID(ctx, refundID)
	if err != nil {
		return nil, err
	}
	if refund == nil {
		return nil, model.ErrRefundNotFound
	}
	if refund.Status != model.RefundRequested {
		return nil, model.NewPaymentError(model.ErrCodeRefundState,
			fmt.Sprintf("Refund is %s, only requested refunds can be rejected", refund.Status),
			model.ErrRefundNotActionable)
	}

	refund.Status = model.RefundRejected
	refund.FailureReason = &reason
	refund.ApprovedBy = &adminID
	if err := s.refundRepo.Update(ctx, refund); err != nil {
		return nil, err
	}
	return refund, nil
}

// ===== PROCESSING =====

// Process pays out an approved refund. Gateway refunds stay processing
// until the gateway confirms, bank transfer and store credit settle
// immediately.
func (s *RefundService) Process(ctx context.Context, refundID uuid.UUID) error {
	refund, err := s.refundRepo.GetByID(ctx, refundID)
	if err != nil {
		return err
	}
	if refund == nil {
		return model.ErrRefundNotFound
	}

	switch refund.Status {
	case model.RefundApproved:
	case model.RefundProcessing, model.RefundCompleted:
		// Retried task, already in flight or done.
		return nil
	default:
		return model.NewPaymentError(model.ErrCodeRefundState,
			fmt.Sprintf("Refund is %s and cannot be processed", refund.Status),
			model.ErrRefundNotActionable)
	}

	payment, err := s.paymentRepo.GetByID(ctx, refund.PaymentID)
	if err != nil {
		return err
	}
	if payment == nil {
		return model.ErrPaymentNotFound
	}

	amount := refund.RequestedAmount
	if refund.ApprovedAmount != nil {
		amount = *refund.ApprovedAmount
	}

	refund.Status = model.RefundProcessing
	if err := s.refundRepo.Update(ctx, refund); err != nil {
		return err
	}

	if refund.Method == model.RefundViaGateway {
		if payment.GatewayPaymentID == nil {
			return s.fail(ctx, refund, "payment has no gateway payment id")
		}
		gwRefund, err := s.gateway.Refund(ctx, *payment.GatewayPaymentID, amount, map[string]string{
			"refund_number": refund.RefundNumber,
			"order_id":      refund.OrderID.String(),
		})
		if err != nil {
			// Leave processing so the task retries.
			return fmt.Errorf("failed to refund via gateway: %w", err)
		}

		refund.GatewayRefundID = &gwRefund.ID
		if err := s.refundRepo.Update(ctx, refund); err != nil {
			return err
		}
		if gwRefund.Status == "processed" {
			return s.settle(ctx, refund, payment, amount)
		}
		// Settled later by the refund.processed webhook.
		return nil
	}

	// Bank transfer and store credit are recorded as paid out here.
	return s.settle(ctx, refund, payment, amount)
}

// CompleteByGatewayRefundID settles the refund the gateway reports done.
func (s *RefundService) CompleteByGatewayRefundID(ctx context.Context, gatewayRefundID string) error {
	refund, err := s.refundRepo.GetByGatewayRefundID(ctx, gatewayRefundID)
	if err != nil {
		return err
	}
	if refund == nil {
		logger.Warn("Webhook for unknown gateway refund", map[string]interface{}{"gateway_refund_id": gatewayRefundID})
		return nil
	}
	if refund.Status == model.RefundCompleted {
		return nil
	}

	payment, err := s.paymentRepo.GetByID(ctx, refund.PaymentID)
	if err != nil {
		return err
	}
	if payment == nil {
		return model.ErrPaymentNotFound
	}

	amount := refund.RequestedAmount
	if refund.ApprovedAmount != nil {
		amount = *refund.ApprovedAmount
	}
	return s.settle(ctx, refund, payment, amount)
}

// settle finalizes the refund: counters, payment totals and the
// order's payment status all move together.
func (s *RefundService) settle(ctx context.Context, refund *model.Refund, payment *model.Payment, amount decimal.Decimal) error {
	now := time.Now()
	refund.Status = model.RefundCompleted
	refund.ProcessedAt = &now
	if err := s.refundRepo.Update(ctx, refund); err != nil {
		return err
	}

	payment.RefundedAmount = payment.RefundedAmount.Add(amount)
	if err := s.paymentRepo.Update(ctx, payment); err != nil {
		return err
	}

	refunded := make(map[uuid.UUID]int, len(refund.Lines))
	for _, line := range refund.Lines {
		refunded[line.OrderItemID] += line.Quantity
	}
	if err := s.orders.RecordItemRefunds(ctx, refund.OrderID, refunded); err != nil {
		logger.Error("Failed to update refunded counters", err)
	}

	target := ordermodel.PaymentStatusPartiallyRefunded
	if payment.RefundedAmount.GreaterThanOrEqual(payment.Amount) {
		target = ordermodel.PaymentStatusRefunded
	}
	if _, err := s.orders.ApplyPaymentStatus(ctx, refund.OrderID, target,
		ordermodel.ActorSystem, fmt.Sprintf("refund %s completed", refund.RefundNumber)); err != nil {
		logger.Error("Failed to advance order payment status after refund", err)
	}

	logger.Info("Refund completed", map[string]interface{}{
		"refund_id":     refund.ID,
		"refund_number": refund.RefundNumber,
		"amount":        amount.StringFixed(2),
	})
	return nil
}

func (s *RefundService) fail(ctx context.Context, refund *model.Refund, reason string) error {
	refund.Status = model.RefundFailed
	refund.FailureReason = &reason
	if err := s.refundRepo.Update(ctx, refund); err != nil {
		return err
	}
	return model.NewPaymentError(model.ErrCodeRefundState, reason, model.ErrRefundNotActionable)
}

// ===== READS =====

func (s *RefundService) GetRefund(ctx context.Context, userID *uuid.UUID, refundID uuid.UUID) (*model.Refund, error) {
	refund, err := s.refundRepo.GetByID(ctx, refundID)
	if err != nil {
		return nil, err
	}
	if refund == nil {
		return nil, model.ErrRefundNotFound
	}
	if userID != nil && refund.RequestedBy != *userID {
		// Owner check falls back to the order owner for admin-opened refunds.
		if _, _, err := s.orders.GetOrder(ctx, refund.OrderID, userID); err != nil {
			return nil, model.ErrRefundNotFound
		}
	}
	return refund, nil
}

func (s *RefundService) ListOrderRefunds(ctx context.Context, userID *uuid.UUID, orderID uuid.UUID) ([]model.Refund, error) {
	if _, _, err := s.orders.GetOrder(ctx, orderID, userID); err != nil {
		return nil, err
	}
	return s.refundRepo.ListByOrder(ctx, orderID)
}

func (s *RefundService) ListByStatus(ctx context.Context, status model.RefundStatus, limit int) ([]model.Refund, error) {
	return s.refundRepo.ListByStatus(ctx, status, limit)
}

func (s *RefundService) enqueueProcess(ctx context.Context, refundID uuid.UUID) {
	payload, err := json.Marshal(shared.RefundProcessPayload{RefundID: refundID.String()})
	if err != nil {
		logger.Error("Failed to marshal refund payload", err)
		return
	}

	task := asynq.NewTask(shared.TypeRefundProcess, payload)
	if _, err := s.queue.EnqueueContext(ctx, task, asynq.Queue(shared.QueueCritical), asynq.MaxRetry(5)); err != nil {
		logger.Error("Failed to enqueue refund processing", err)
	}
}
