package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow-backend/internal/domains/order/model"
	"orderflow-backend/internal/domains/order/repository"
)

// fakeOrderRepo is an in-memory OrderRepository. failCAS makes the
// next N UpdateCAS calls report a version conflict.
type fakeOrderRepo struct {
	order   *model.Order
	items   []model.OrderItem
	history []model.StatusHistory
	failCAS int
	casHits int

	// onConflict runs after a simulated conflict, letting a test mutate
	// the stored order the way a competing writer would.
	onConflict func()
}

func (f *fakeOrderRepo) Create(ctx context.Context, order *model.Order, items []model.OrderItem, history []model.StatusHistory) error {
	f.order = order
	f.items = items
	f.history = history
	return nil
}

func (f *fakeOrderRepo) GetByID(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	if f.order == nil || f.order.ID != orderID {
		return nil, nil
	}
	copied := *f.order
	return &copied, nil
}

func (f *fakeOrderRepo) GetByNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	if f.order == nil || f.order.OrderNumber != orderNumber {
		return nil, nil
	}
	copied := *f.order
	return &copied, nil
}

func (f *fakeOrderRepo) GetItems(ctx context.Context, orderID uuid.UUID) ([]model.OrderItem, error) {
	out := make([]model.OrderItem, len(f.items))
	copy(out, f.items)
	return out, nil
}

func (f *fakeOrderRepo) ListByUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]model.Order, int, error) {
	return nil, 0, nil
}

func (f *fakeOrderRepo) List(ctx context.Context, filter repository.ListFilter) ([]model.Order, int, error) {
	return nil, 0, nil
}

func (f *fakeOrderRepo) UpdateCAS(ctx context.Context, order *model.Order) (bool, error) {
	f.casHits++
	if f.failCAS > 0 {
		f.failCAS--
		if f.onConflict != nil {
			f.onConflict()
		}
		return false, nil
	}
	if f.order == nil || order.Version != f.order.Version {
		return false, nil
	}
	order.Version++
	copied := *order
	f.order = &copied
	return true, nil
}

func (f *fakeOrderRepo) UpdateItemCounters(ctx context.Context, item *model.OrderItem) error {
	for i := range f.items {
		if f.items[i].ID == item.ID {
			f.items[i] = *item
		}
	}
	return nil
}

func (f *fakeOrderRepo) AppendHistory(ctx context.Context, entry *model.StatusHistory) error {
	f.history = append(f.history, *entry)
	return nil
}

func (f *fakeOrderRepo) ListHistory(ctx context.Context, orderID uuid.UUID) ([]model.StatusHistory, error) {
	return f.history, nil
}

func (f *fakeOrderRepo) ListAutoConfirmable(ctx context.Context, olderThan time.Time, limit int) ([]model.Order, error) {
	return nil, nil
}

func (f *fakeOrderRepo) ListDeliveredWithoutInvoice(ctx context.Context, limit int) ([]model.Order, error) {
	return nil, nil
}

func newTestOrder() *model.Order {
	return &model.Order{
		ID:            uuid.New(),
		OrderNumber:   "ORD-2026-000001",
		UserID:        uuid.New(),
		Status:        model.OrderStatusPending,
		PaymentStatus: model.PaymentStatusPending,
		Version:       1,
	}
}

func newTestService(repo *fakeOrderRepo) *OrderService {
	return NewOrderService(repo, nil, nil, nil)
}

func TestTransitionLegalEdge(t *testing.T) {
	repo := &fakeOrderRepo{order: newTestOrder()}
	svc := newTestService(repo)

	order, err := svc.Transition(context.Background(), repo.order.ID,
		model.OrderStatusConfirmed, model.ActorSystem, nil, "payment captured")
	require.NoError(t, err)

	assert.Equal(t, model.OrderStatusConfirmed, order.Status)
	assert.NotNil(t, order.ConfirmedAt)
	assert.Equal(t, 2, order.Version)

	require.Len(t, repo.history, 1)
	assert.Equal(t, string(model.OrderStatusPending), repo.history[0].FromStatus)
	assert.Equal(t, string(model.OrderStatusConfirmed), repo.history[0].ToStatus)
}

func TestTransitionIllegalEdgeRejected(t *testing.T) {
	repo := &fakeOrderRepo{order: newTestOrder()}
	svc := newTestService(repo)

	_, err := svc.Transition(context.Background(), repo.order.ID,
		model.OrderStatusShipped, model.ActorAdmin, nil, "skipping ahead")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidTransition))

	// Nothing written
	assert.Equal(t, model.OrderStatusPending, repo.order.Status)
	assert.Empty(t, repo.history)
}

func TestTransitionUnknownOrder(t *testing.T) {
	repo := &fakeOrderRepo{order: newTestOrder()}
	svc := newTestService(repo)

	_, err := svc.Transition(context.Background(), uuid.New(),
		model.OrderStatusConfirmed, model.ActorSystem, nil, "")
	assert.ErrorIs(t, err, model.ErrOrderNotFound)
}

func TestTransitionRetriesOnVersionConflict(t *testing.T) {
	repo := &fakeOrderRepo{order: newTestOrder(), failCAS: 2}
	svc := newTestService(repo)

	order, err := svc.Transition(context.Background(), repo.order.ID,
		model.OrderStatusConfirmed, model.ActorSystem, nil, "payment captured")
	require.NoError(t, err)

	assert.Equal(t, model.OrderStatusConfirmed, order.Status)
	assert.Equal(t, 3, repo.casHits)
}

func TestTransitionGivesUpAfterRetries(t *testing.T) {
	repo := &fakeOrderRepo{order: newTestOrder(), failCAS: 10}
	svc := newTestService(repo)

	_, err := svc.Transition(context.Background(), repo.order.ID,
		model.OrderStatusConfirmed, model.ActorSystem, nil, "payment captured")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrConcurrentUpdate))
}

func TestTransitionReJudgesFreshState(t *testing.T) {
	// First attempt loses the race to a competing cancel. The retry
	// re-reads and must reject confirmed on the now-cancelled order.
	repo := &fakeOrderRepo{order: newTestOrder(), failCAS: 1}
	repo.onConflict = func() {
		repo.order.Status = model.OrderStatusCancelled
		repo.order.Version++
	}
	svc := newTestService(repo)

	_, err := svc.Transition(context.Background(), repo.order.ID,
		model.OrderStatusConfirmed, model.ActorSystem, nil, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidTransition))
}

func TestApplyPaymentStatusAdvances(t *testing.T) {
	repo := &fakeOrderRepo{order: newTestOrder()}
	svc := newTestService(repo)

	order, err := svc.ApplyPaymentStatus(context.Background(), repo.order.ID,
		model.PaymentStatusCaptured, model.ActorSystem, "gateway webhook")
	require.NoError(t, err)

	assert.Equal(t, model.PaymentStatusCaptured, order.PaymentStatus)
	require.Len(t, repo.history, 1)
	assert.Equal(t, model.HistoryTypePayment, repo.history[0].Type)
}

func TestApplyPaymentStatusIgnoresRegression(t *testing.T) {
	repo := &fakeOrderRepo{order: newTestOrder()}
	repo.order.PaymentStatus = model.PaymentStatusCaptured
	svc := newTestService(repo)

	order, err := svc.ApplyPaymentStatus(context.Background(), repo.order.ID,
		model.PaymentStatusProcessing, model.ActorSystem, "stale webhook")
	require.NoError(t, err)

	// No-op: state untouched, no history, no version bump
	assert.Equal(t, model.PaymentStatusCaptured, order.PaymentStatus)
	assert.Empty(t, repo.history)
	assert.Equal(t, 0, repo.casHits)
}

func TestCancelRejectsBogusReason(t *testing.T) {
	repo := &fakeOrderRepo{order: newTestOrder()}
	svc := newTestService(repo)

	_, err := svc.Cancel(context.Background(), repo.order.ID,
		model.CancelReason("sunspots"), model.ActorCustomer, nil)
	assert.ErrorIs(t, err, model.ErrInvalidCancelReason)
}

func TestRecordItemRefunds(t *testing.T) {
	order := newTestOrder()
	itemID := uuid.New()
	repo := &fakeOrderRepo{
		order: order,
		items: []model.OrderItem{{ID: itemID, OrderID: order.ID, Quantity: 3}},
	}
	svc := newTestService(repo)

	err := svc.RecordItemRefunds(context.Background(), order.ID,
		map[uuid.UUID]int{itemID: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.items[0].QuantityRefunded)
}
