package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"orderflow-backend/internal/clients"
	ordermodel "orderflow-backend/internal/domains/order/model"
	paymentmodel "orderflow-backend/internal/domains/payment/model"
	"orderflow-backend/internal/domains/returns/model"
	"orderflow-backend/internal/domains/returns/repository"
	"orderflow-backend/pkg/logger"
	"orderflow-backend/pkg/sequence"
)

// OrderAccess is the slice of order behavior returns need.
// Implemented by the order service.
type OrderAccess interface {
	GetOrder(ctx context.Context, orderID uuid.UUID, userID *uuid.UUID) (*ordermodel.Order, []ordermodel.OrderItem, error)
	Transition(ctx context.Context, orderID uuid.UUID, to ordermodel.OrderStatus, actor ordermodel.Actor, actorID *uuid.UUID, reason string) (*ordermodel.Order, error)
	RecordItemReturns(ctx context.Context, orderID uuid.UUID, returned map[uuid.UUID]int) error
}

// RefundOpener opens the refund for accepted returned units.
// Implemented by the payment refund service.
type RefundOpener interface {
	InitiateReturnRefund(ctx context.Context, orderID, requestedBy uuid.UUID, lines []paymentmodel.RefundLineRequest, reason string) (*paymentmodel.Refund, error)
}

// ReturnsService drives the return flow from request through pickup,
// inspection and refund.
type ReturnsService struct {
	repo      repository.RepositoryInterface
	orders    OrderAccess
	refunds   RefundOpener
	notify    *clients.NotificationClient
	sequences *sequence.Generator

	windowDays int
}

func NewReturnsService(
	repo repository.RepositoryInterface,
	orders OrderAccess,
	refunds RefundOpener,
	notify *clients.NotificationClient,
	sequences *sequence.Generator,
	windowDays int,
) *ReturnsService {
	return &ReturnsService{
		repo:       repo,
		orders:     orders,
		refunds:    refunds,
		notify:     notify,
		sequences:  sequences,
		windowDays: windowDays,
	}
}

// ===== CREATE =====

// Create opens a return for a delivered order. The window is measured
// from the delivery timestamp to the second: a request at exactly the
// deadline is accepted, one second later is not.
func (s *ReturnsService) Create(ctx context.Context, userID uuid.UUID, req model.CreateReturnRequest) (*model.ReturnRequest, error) {
	order, items, err := s.orders.GetOrder(ctx, req.OrderID, &userID)
	if err != nil {
		return nil, err
	}

	if order.Status != ordermodel.OrderStatusDelivered || order.DeliveredAt == nil {
		return nil, model.NewReturnError(model.ErrCodeOrderNotReturnable,
			fmt.Sprintf("Order in status %s cannot be returned", order.Status),
			model.ErrOrderNotReturnable)
	}

	deadline := order.DeliveredAt.Add(time.Duration(s.windowDays) * 24 * time.Hour)
	if time.Now().After(deadline) {
		return nil, model.NewReturnError(model.ErrCodeWindowClosed,
			fmt.Sprintf("Return window closed on %s", deadline.Format(time.RFC3339)),
			model.ErrWindowClosed)
	}

	alreadyReturning, err := s.repo.SumReturnedQuantity(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]*ordermodel.OrderItem, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
	}

	returnItems := make([]model.ReturnItem, 0, len(req.Items))
	for _, line := range req.Items {
		item, ok := byID[line.OrderItemID]
		if !ok {
			return nil, model.NewReturnError(model.ErrCodeOrderNotReturnable,
				"Return line does not belong to this order", model.ErrOrderNotReturnable)
		}

		available := item.Quantity - alreadyReturning[item.ID]
		if line.Quantity > available {
			return nil, model.NewReturnError(model.ErrCodeQuantityUnavailable,
				fmt.Sprintf("Only %d units of %s can still be returned", available, item.Name),
				model.ErrQuantityUnavailable)
		}

		returnItems = append(returnItems, model.ReturnItem{
			OrderItemID: line.OrderItemID,
			Quantity:    line.Quantity,
			Reason:      line.Reason,
		})
	}

	returnNumber, err := s.sequences.Next(ctx, sequence.KindReturn)
	if err != nil {
		return nil, fmt.Errorf("failed to generate return number: %w", err)
	}

	ret := &model.ReturnRequest{
		ID:            uuid.New(),
		ReturnNumber:  returnNumber,
		OrderID:       order.ID,
		UserID:        userID,
		Items:         returnItems,
		Reason:        req.Reason,
		Status:        model.StatusRequested,
		PickupAddress: order.ShippingAddress,
	}
	if err := s.repo.Create(ctx, ret); err != nil {
		return nil, err
	}

	logger.Info("Return requested", map[string]interface{}{
		"return_id":     ret.ID,
		"return_number": ret.ReturnNumber,
		"order_id":      order.ID,
	})
	return ret, nil
}

// ===== READS =====

func (s *ReturnsService) GetReturn(ctx context.Context, userID *uuid.UUID, returnID uuid.UUID) (*model.ReturnRequest, error) {
	ret, err := s.repo.GetByID(ctx, returnID)
	if err != nil {
		return nil, err
	}
	if ret == nil {
		return nil, model.ErrReturnNotFound
	}
	if userID != nil && ret.UserID != *userID {
		return nil, model.ErrReturnNotFound
	}
	return ret, nil
}

func (s *ReturnsService) ListUserReturns(ctx context.Context, userID uuid.UUID, page, limit int) ([]model.ReturnRequest, int, error) {
	return s.repo.ListByUser(ctx, userID, page, limit)
}

func (s *ReturnsService) ListByStatus(ctx context.Context, status model.ReturnStatus, limit int) ([]model.ReturnRequest, error) {
	return s.repo.ListByStatus(ctx, status, limit)
}

// ===== CUSTOMER CANCEL =====

// Cancel lets the customer back out before the courier has the parcel.
func (s *ReturnsService) Cancel(ctx context.Context, userID, returnID uuid.UUID) (*model.ReturnRequest, error) {
	ret, err := s.GetReturn(ctx, &userID, returnID)
	if err != nil {
		return nil, err
	}
	if !model.CustomerCancellable(ret.Status) {
		return nil, model.NewReturnError(model.ErrCodeNotCancellable,
			fmt.Sprintf("Return in status %s can no longer be cancelled", ret.Status),
			model.ErrNotCancellable)
	}

	ret.Status = model.StatusCancelled
	if err := s.repo.Update(ctx, ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// ===== ADMIN FLOW =====

func (s *ReturnsService) Approve(ctx context.Context, returnID uuid.UUID) (*model.ReturnRequest, error) {
	return s.transition(ctx, returnID, model.StatusApproved, nil)
}

func (s *ReturnsService) Reject(ctx context.Context, returnID uuid.UUID, reason string) (*model.ReturnRequest, error) {
	return s.transition(ctx, returnID, model.StatusRejected, func(ret *model.ReturnRequest) {
		ret.RejectionReason = &reason
	})
}

func (s *ReturnsService) SchedulePickup(ctx context.Context, returnID uuid.UUID, req model.SchedulePickupRequest) (*model.ReturnRequest, error) {
	return s.transition(ctx, returnID, model.StatusPickupScheduled, func(ret *model.ReturnRequest) {
		ret.PickupSlot = &model.PickupSlot{
			Date:    req.Date,
			Window:  req.Window,
			Carrier: req.Carrier,
		}
	})
}

func (s *ReturnsService) MarkPickedUp(ctx context.Context, returnID uuid.UUID) (*model.ReturnRequest, error) {
	return s.transition(ctx, returnID, model.StatusPickedUp, nil)
}

func (s *ReturnsService) MarkInTransit(ctx context.Context, returnID uuid.UUID) (*model.ReturnRequest, error) {
	return s.transition(ctx, returnID, model.StatusInTransit, nil)
}

func (s *ReturnsService) MarkReceived(ctx context.Context, returnID uuid.UUID) (*model.ReturnRequest, error) {
	return s.transition(ctx, returnID, model.StatusReceived, func(ret *model.ReturnRequest) {
		now := time.Now()
		ret.ReceivedAt = &now
	})
}

// Inspect records the warehouse verdict. Accepted units drive the
// refund amount: a full accept refunds every requested unit, a partial
// accept refunds only what the lines report, and a reject closes the
// return without money moving.
func (s *ReturnsService) Inspect(ctx context.Context, adminID, returnID uuid.UUID, req model.InspectRequest) (*model.ReturnRequest, error) {
	ret, err := s.GetReturn(ctx, nil, returnID)
	if err != nil {
		return nil, err
	}
	if !model.CanTransition(ret.Status, model.StatusInspected) {
		return nil, model.NewInvalidTransitionError(ret.Status, model.StatusInspected)
	}

	verdict := model.InspectionVerdict(req.Verdict)
	accepted, lines, err := acceptedQuantities(ret, verdict, req.Lines)
	if err != nil {
		return nil, err
	}

	ret.Status = model.StatusInspected
	ret.Inspection = &model.Inspection{
		Verdict:     verdict,
		Lines:       lines,
		Notes:       req.Notes,
		InspectedBy: adminID,
		InspectedAt: time.Now(),
	}

	if len(accepted) == 0 {
		// Nothing passed, the return cancels without a refund.
		reason := req.Notes
		if reason == "" {
			reason = "all items rejected on inspection"
		}
		ret.Status = model.StatusCancelled
		ret.RejectionReason = &reason
		if err := s.repo.Update(ctx, ret); err != nil {
			return nil, err
		}
		s.notifyCustomer(ctx, ret, "return_rejected_on_inspection")
		return ret, nil
	}

	if err := s.repo.Update(ctx, ret); err != nil {
		return nil, err
	}

	if err := s.orders.RecordItemReturns(ctx, ret.OrderID, accepted); err != nil {
		logger.Error("Failed to update returned counters", err)
	}
	if _, err := s.orders.Transition(ctx, ret.OrderID, ordermodel.OrderStatusReturned,
		ordermodel.ActorSystem, nil, fmt.Sprintf("return %s accepted", ret.ReturnNumber)); err != nil {
		// Partial returns leave the order delivered, that edge is rejected.
		logger.Info("Order not moved to returned", map[string]interface{}{
			"order_id": ret.OrderID,
			"error":    err.Error(),
		})
	}

	refundLines := make([]paymentmodel.RefundLineRequest, 0, len(accepted))
	for itemID, qty := range accepted {
		refundLines = append(refundLines, paymentmodel.RefundLineRequest{
			OrderItemID: itemID,
			Quantity:    qty,
		})
	}
	refund, err := s.refunds.InitiateReturnRefund(ctx, ret.OrderID, ret.UserID, refundLines,
		fmt.Sprintf("return %s accepted on inspection", ret.ReturnNumber))
	if err != nil {
		return nil, fmt.Errorf("failed to open refund for return: %w", err)
	}

	ret.Status = model.StatusRefundInitiated
	ret.RefundID = &refund.ID
	if err := s.repo.Update(ctx, ret); err != nil {
		return nil, err
	}

	s.notifyCustomer(ctx, ret, "return_refund_initiated")
	return ret, nil
}

// Complete closes the return after the refund settles.
func (s *ReturnsService) Complete(ctx context.Context, returnID uuid.UUID) (*model.ReturnRequest, error) {
	ret, err := s.transition(ctx, returnID, model.StatusCompleted, func(ret *model.ReturnRequest) {
		now := time.Now()
		ret.CompletedAt = &now
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.orders.Transition(ctx, ret.OrderID, ordermodel.OrderStatusRefunded,
		ordermodel.ActorSystem, nil, fmt.Sprintf("return %s completed", ret.ReturnNumber)); err != nil {
		logger.Info("Order not moved to refunded", map[string]interface{}{
			"order_id": ret.OrderID,
			"error":    err.Error(),
		})
	}
	return ret, nil
}

// ===== HELPERS =====

func acceptedQuantities(ret *model.ReturnRequest, verdict model.InspectionVerdict, lines []model.InspectionLineRequest) (map[uuid.UUID]int, []model.InspectionLine, error) {
	requested := make(map[uuid.UUID]int, len(ret.Items))
	for _, item := range ret.Items {
		requested[item.OrderItemID] += item.Quantity
	}

	accepted := make(map[uuid.UUID]int)
	var recorded []model.InspectionLine

	switch verdict {
	case model.VerdictAccepted:
		for itemID, qty := range requested {
			accepted[itemID] = qty
			recorded = append(recorded, model.InspectionLine{OrderItemID: itemID, QuantityAccepted: qty})
		}
	case model.VerdictRejected:
		// No units accepted.
	case model.VerdictPartial:
		for _, line := range lines {
			max, ok := requested[line.OrderItemID]
			if !ok {
				return nil, nil, model.NewReturnError(model.ErrCodeInvalidVerdict,
					"Inspection line does not belong to this return", model.ErrInvalidVerdict)
			}
			if line.QuantityAccepted > max {
				return nil, nil, model.NewReturnError(model.ErrCodeInvalidVerdict,
					fmt.Sprintf("Accepted quantity exceeds the %d units returned", max),
					model.ErrInvalidVerdict)
			}
			if line.QuantityAccepted > 0 {
				accepted[line.OrderItemID] = line.QuantityAccepted
			}
			recorded = append(recorded, model.InspectionLine{
				OrderItemID:      line.OrderItemID,
				QuantityAccepted: line.QuantityAccepted,
				Notes:            line.Notes,
			})
		}
	default:
		return nil, nil, model.ErrInvalidVerdict
	}
	return accepted, recorded, nil
}

func (s *ReturnsService) transition(ctx context.Context, returnID uuid.UUID, to model.ReturnStatus, apply func(*model.ReturnRequest)) (*model.ReturnRequest, error) {
	ret, err := s.GetReturn(ctx, nil, returnID)
	if err != nil {
		return nil, err
	}
	if !model.CanTransition(ret.Status, to) {
		return nil, model.NewInvalidTransitionError(ret.Status, to)
	}

	ret.Status = to
	if apply != nil {
		apply(ret)
	}
	if err := s.repo.Update(ctx, ret); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *ReturnsService) notifyCustomer(ctx context.Context, ret *model.ReturnRequest, template string) {
	if s.notify == nil {
		return
	}
	err := s.notify.Send(ctx, ret.UserID, template, map[string]string{
		"returnNumber": ret.ReturnNumber,
	})
	if err != nil {
		logger.Warn("Return notification failed", map[string]interface{}{
			"return_id": ret.ID,
			"error":     err.Error(),
		})
	}
}
