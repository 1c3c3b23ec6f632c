package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"orderflow-backend/internal/clients"
	cartmodel "orderflow-backend/internal/domains/cart/model"
	checkoutmodel "orderflow-backend/internal/domains/checkout/model"
	"orderflow-backend/internal/domains/order/model"
	"orderflow-backend/internal/domains/order/repository"
	"orderflow-backend/internal/shared"
	"orderflow-backend/pkg/logger"
	"orderflow-backend/pkg/sequence"
)

const (
	casRetries  = 3
	casBackoff  = 50 * time.Millisecond
	casJitterMs = 25
)

// OrderService owns the order and fulfillment state machine.
type OrderService struct {
	repo      repository.OrderRepository
	sequences *sequence.Generator
	inventory *clients.InventoryClient
	queue     *asynq.Client
}

func NewOrderService(
	repo repository.OrderRepository,
	sequences *sequence.Generator,
	inventory *clients.InventoryClient,
	queue *asynq.Client,
) *OrderService {
	return &OrderService{
		repo:      repo,
		sequences: sequences,
		inventory: inventory,
		queue:     queue,
	}
}

// ===== CREATION =====

// CreateFromCheckout materializes the immutable order snapshot from a
// checkout session. Items and money are frozen here and never change.
func (s *OrderService) CreateFromCheckout(
	ctx context.Context,
	session *checkoutmodel.CheckoutSession,
	customer model.CustomerSnapshot,
	coupons []cartmodel.AppliedCoupon,
) (*model.Order, error) {
	orderNumber, err := s.sequences.Next(ctx, sequence.KindOrder)
	if err != nil {
		return nil, fmt.Errorf("failed to generate order number: %w", err)
	}

	customer.Name = session.ShippingAddress.FullName
	if customer.Phone == "" {
		customer.Phone = session.ShippingAddress.Phone
	}

	order := &model.Order{
		ID:                uuid.New(),
		OrderNumber:       orderNumber,
		UserID:            session.UserID,
		Customer:          customer,
		ShippingAddress:   session.ShippingAddress,
		BillingAddress:    session.BillingAddress,
		ShippingMethod:    session.ShippingMethod,
		Totals:            session.Totals,
		PaymentMethod:     paymentSnapshot(session),
		Status:            model.OrderStatusPending,
		PaymentStatus:     model.PaymentStatusPending,
		FulfillmentStatus: model.FulfillmentUnfulfilled,
		ReservationID:     session.ReservationID,
		Version:           1,
	}

	items := make([]model.OrderItem, 0, len(session.Items))
	for i := range session.Items {
		line := &session.Items[i]
		items = append(items, model.OrderItem{
			ID:           uuid.New(),
			OrderID:      order.ID,
			ProductID:    line.ProductID,
			VariantID:    line.VariantID,
			BundleID:     line.BundleID,
			SKU:          line.SKU,
			Name:         line.Name,
			ImageURL:     line.ImageURL,
			HSNCode:      line.HSNCode,
			Quantity:     line.Quantity,
			UnitPrice:    line.UnitPrice,
			UnitMRP:      line.UnitMRP,
			LineDiscount: line.LineDiscount,
			LineTax:      line.LineTax,
			LineTotal:    line.LineTotal,
			IsFreeGift:   line.IsFreeGift,
		})
	}

	history := []model.StatusHistory{
		{ID: uuid.New(), OrderID: order.ID, Type: model.HistoryTypeOrder, FromStatus: "", ToStatus: string(model.OrderStatusPending), ChangedBy: model.ActorSystem, Reason: "order created"},
		{ID: uuid.New(), OrderID: order.ID, Type: model.HistoryTypePayment, FromStatus: "", ToStatus: string(model.PaymentStatusPending), ChangedBy: model.ActorSystem, Reason: "awaiting payment"},
		{ID: uuid.New(), OrderID: order.ID, Type: model.HistoryTypeFulfillment, FromStatus: "", ToStatus: string(model.FulfillmentUnfulfilled), ChangedBy: model.ActorSystem, Reason: "order created"},
	}

	if err := s.repo.Create(ctx, order, items, history); err != nil {
		return nil, err
	}

	logger.Info("Order created", map[string]interface{}{
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
		"user_id":      order.UserID.String(),
		"grand_total":  order.Totals.GrandTotal.StringFixed(2),
	})
	return order, nil
}

// paymentSnapshot prefers the masked instrument details frozen on the
// session, falling back to the bare method tag.
func paymentSnapshot(session *checkoutmodel.CheckoutSession) model.PaymentMethodSnapshot {
	if session.PaymentSnapshot.Method != "" {
		return session.PaymentSnapshot
	}
	return model.PaymentMethodSnapshot{Method: session.PaymentMethod}
}

// ===== READS =====

func (s *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID, userID *uuid.UUID) (*model.Order, []model.OrderItem, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if order == nil {
		return nil, nil, model.ErrOrderNotFound
	}
	if userID != nil && order.UserID != *userID {
		return nil, nil, model.ErrNotOwner
	}

	items, err := s.repo.GetItems(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	return order, items, nil
}

func (s *OrderService) ListUserOrders(ctx context.Context, userID uuid.UUID, page, limit int) ([]model.Order, int, error) {
	return s.repo.ListByUser(ctx, userID, page, limit)
}

func (s *OrderService) ListOrders(ctx context.Context, filter repository.ListFilter) ([]model.Order, int, error) {
	return s.repo.List(ctx, filter)
}

func (s *OrderService) GetHistory(ctx context.Context, orderID uuid.UUID) ([]model.StatusHistory, error) {
	return s.repo.ListHistory(ctx, orderID)
}

// ===== TRANSITIONS =====

// mutator inspects the freshly loaded order, applies changes, and
// reports the history rows to append. Returning an error aborts without
// retrying, because the rejection is a business rule, not a race.
// Returning no history and no error means nothing needs to change.
type mutator func(order *model.Order) ([]model.StatusHistory, error)

// applyCAS runs load-mutate-store under optimistic concurrency with
// bounded retry. Each retry re-reads the order so a competing
// transition is re-judged against the new state.
func (s *OrderService) applyCAS(ctx context.Context, orderID uuid.UUID, mutate mutator) (*model.Order, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		order, err := s.repo.GetByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if order == nil {
			return nil, model.ErrOrderNotFound
		}

		history, err := mutate(order)
		if err != nil {
			return nil, err
		}
		if len(history) == 0 {
			return order, nil
		}

		ok, err := s.repo.UpdateCAS(ctx, order)
		if err != nil {
			return nil, err
		}
		if ok {
			for i := range history {
				if err := s.repo.AppendHistory(ctx, &history[i]); err != nil {
					logger.Error("Failed to append status history", err)
				}
			}
			return order, nil
		}

		// Version conflict, back off briefly and retry on fresh state.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(casBackoff + time.Duration(rand.Intn(casJitterMs))*time.Millisecond):
		}
	}
	return nil, model.NewConcurrentUpdateError(orderID.String())
}

// Transition moves the order along a legal customer-flow edge.
func (s *OrderService) Transition(ctx context.Context, orderID uuid.UUID, to model.OrderStatus, actor model.Actor, actorID *uuid.UUID, reason string) (*model.Order, error) {
	return s.applyCAS(ctx, orderID, func(order *model.Order) ([]model.StatusHistory, error) {
		from := order.Status
		if !model.CanTransition(from, to) {
			return nil, model.NewInvalidTransitionError(from, to)
		}

		order.Status = to
		now := time.Now()
		switch to {
		case model.OrderStatusConfirmed:
			order.ConfirmedAt = &now
		case model.OrderStatusDelivered:
			order.DeliveredAt = &now
		}

		return []model.StatusHistory{{
			ID: uuid.New(), OrderID: order.ID, Type: model.HistoryTypeOrder,
			FromStatus: string(from), ToStatus: string(to),
			ChangedBy: actor, ActorID: actorID, Reason: reason,
		}}, nil
	})
}

// Ship marks the order shipped with tracking info and fulfills every
// line in full.
func (s *OrderService) Ship(ctx context.Context, orderID uuid.UUID, carrier, trackingNumber string, actorID *uuid.UUID) (*model.Order, error) {
	order, err := s.applyCAS(ctx, orderID, func(order *model.Order) ([]model.StatusHistory, error) {
		from := order.Status
		if !model.CanTransition(from, model.OrderStatusShipped) {
			return nil, model.NewInvalidTransitionError(from, model.OrderStatusShipped)
		}

		now := time.Now()
		order.Status = model.OrderStatusShipped
		order.FulfillmentStatus = model.FulfillmentFulfilled
		order.TrackingCarrier = &carrier
		order.TrackingNumber = &trackingNumber
		order.ShippedAt = &now

		return []model.StatusHistory{
			{
				ID: uuid.New(), OrderID: order.ID, Type: model.HistoryTypeOrder,
				FromStatus: string(from), ToStatus: string(model.OrderStatusShipped),
				ChangedBy: model.ActorAdmin, ActorID: actorID, Reason: "shipment created",
			},
			{
				ID: uuid.New(), OrderID: order.ID, Type: model.HistoryTypeFulfillment,
				FromStatus: string(model.FulfillmentUnfulfilled), ToStatus: string(model.FulfillmentFulfilled),
				ChangedBy: model.ActorAdmin, ActorID: actorID, Reason: "all lines shipped",
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}

	items, err := s.repo.GetItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].QuantityFulfilled = items[i].Quantity
		if err := s.repo.UpdateItemCounters(ctx, &items[i]); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// ===== CANCELLATION =====

// Cancel rejects the order. Customers may cancel pending or confirmed
// orders; admins may also cancel processing and shipped ones. A paid
// cancel enqueues a full refund; an unpaid one voids the payment.
// Inventory holds are released either way.
func (s *OrderService) Cancel(ctx context.Context, orderID uuid.UUID, reason model.CancelReason, actor model.Actor, actorID *uuid.UUID) (*model.Order, error) {
	if !model.ValidCancelReason(reason) {
		return nil, model.ErrInvalidCancelReason
	}

	var wasPaid bool
	order, err := s.applyCAS(ctx, orderID, func(order *model.Order) ([]model.StatusHistory, error) {
		from := order.Status

		allowed := model.CanTransition(from, model.OrderStatusCancelled)
		if !allowed && actor == model.ActorAdmin {
			allowed = model.CanAdminCancel(from)
		}
		if !allowed {
			return nil, model.NewOrderError(model.ErrCodeNotCancellable,
				fmt.Sprintf("Order cannot be cancelled from status %s", from),
				model.ErrNotCancellable)
		}

		wasPaid = order.PaymentStatus.IsPaid()
		order.Status = model.OrderStatusCancelled
		order.CancelReason = &reason
		if !wasPaid {
			order.PaymentStatus = model.PaymentStatusCancelled
		}

		history := []model.StatusHistory{{
			ID: uuid.New(), OrderID: order.ID, Type: model.HistoryTypeOrder,
			FromStatus: string(from), ToStatus: string(model.OrderStatusCancelled),
			ChangedBy: actor, ActorID: actorID, Reason: string(reason),
		}}
		return history, nil
	})
	if err != nil {
		return nil, err
	}

	// Free any remaining inventory hold.
	if order.ReservationID != nil {
		if err := s.inventory.Release(ctx, *order.ReservationID, "order cancelled"); err != nil {
			logger.Error("Failed to release reservation on cancel", err)
		}
	}

	s.enqueueCancelled(ctx, order, string(reason), wasPaid)
	return order, nil
}

func (s *OrderService) enqueueCancelled(ctx context.Context, order *model.Order, reason string, needRefund bool) {
	payload, err := json.Marshal(shared.OrderCancelledPayload{
		OrderID:    order.ID.String(),
		UserID:     order.UserID.String(),
		Reason:     reason,
		NeedRefund: needRefund,
	})
	if err != nil {
		logger.Error("Failed to marshal cancel payload", err)
		return
	}

	task := asynq.NewTask(shared.TypeOrderCancelled, payload)
	if _, err := s.queue.EnqueueContext(ctx, task, asynq.Queue(shared.QueueCritical), asynq.MaxRetry(5)); err != nil {
		logger.Error("Failed to enqueue order cancelled task", err)
	}
}

// ===== PAYMENT DIMENSION =====

// ApplyPaymentStatus advances the order's payment dimension. Regressive
// updates are ignored so webhook replays and reconciliation stay
// monotonic.
func (s *OrderService) ApplyPaymentStatus(ctx context.Context, orderID uuid.UUID, to model.PaymentStatus, actor model.Actor, reason string) (*model.Order, error) {
	return s.applyCAS(ctx, orderID, func(order *model.Order) ([]model.StatusHistory, error) {
		from := order.PaymentStatus
		if from == to || !model.PaymentAdvances(from, to) {
			// Already there or would regress, no-op.
			return nil, nil
		}

		order.PaymentStatus = to
		return []model.StatusHistory{{
			ID: uuid.New(), OrderID: order.ID, Type: model.HistoryTypePayment,
			FromStatus: string(from), ToStatus: string(to),
			ChangedBy: actor, Reason: reason,
		}}, nil
	})
}

// RecordItemRefunds bumps the refunded counter on the given lines
// after a refund completes.
func (s *OrderService) RecordItemRefunds(ctx context.Context, orderID uuid.UUID, refunded map[uuid.UUID]int) error {
	items, err := s.repo.GetItems(ctx, orderID)
	if err != nil {
		return err
	}
	for i := range items {
		qty := refunded[items[i].ID]
		if qty <= 0 {
			continue
		}
		items[i].QuantityRefunded += qty
		if err := s.repo.UpdateItemCounters(ctx, &items[i]); err != nil {
			return err
		}
	}
	return nil
}

// RecordItemReturns bumps the returned counter on the given lines
// once returned units pass inspection.
func (s *OrderService) RecordItemReturns(ctx context.Context, orderID uuid.UUID, returned map[uuid.UUID]int) error {
	items, err := s.repo.GetItems(ctx, orderID)
	if err != nil {
		return err
	}
	for i := range items {
		qty := returned[items[i].ID]
		if qty <= 0 {
			continue
		}
		items[i].QuantityReturned += qty
		if err := s.repo.UpdateItemCounters(ctx, &items[i]); err != nil {
			return err
		}
	}
	return nil
}

// ===== AUTO-CONFIRM =====

// AutoConfirmEligible advances paid pending orders older than the
// configured window to confirmed. Returns how many were confirmed.
func (s *OrderService) AutoConfirmEligible(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	orders, err := s.repo.ListAutoConfirmable(ctx, olderThan, limit)
	if err != nil {
		return 0, err
	}

	confirmed := 0
	for i := range orders {
		_, err := s.Transition(ctx, orders[i].ID, model.OrderStatusConfirmed,
			model.ActorSystem, nil, "auto-confirmed after payment")
		if err != nil {
			logger.Error("Auto-confirm failed", err)
			continue
		}
		confirmed++

		s.enqueueConfirmed(ctx, &orders[i])
	}
	return confirmed, nil
}

func (s *OrderService) enqueueConfirmed(ctx context.Context, order *model.Order) {
	payload, err := json.Marshal(shared.OrderConfirmedPayload{
		OrderID:     order.ID.String(),
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID.String(),
	})
	if err != nil {
		logger.Error("Failed to marshal confirm payload", err)
		return
	}

	task := asynq.NewTask(shared.TypeOrderConfirmed, payload)
	if _, err := s.queue.EnqueueContext(ctx, task, asynq.Queue(shared.QueueDefault)); err != nil {
		logger.Error("Failed to enqueue order confirmed task", err)
	}
}
