package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ordermodel "orderflow-backend/internal/domains/order/model"
	"orderflow-backend/internal/domains/returns/model"
)

// fakeOrderAccess serves one canned order for return-window tests.
type fakeOrderAccess struct {
	order *ordermodel.Order
	items []ordermodel.OrderItem
}

func (f *fakeOrderAccess) GetOrder(ctx context.Context, orderID uuid.UUID, userID *uuid.UUID) (*ordermodel.Order, []ordermodel.OrderItem, error) {
	if f.order == nil || f.order.ID != orderID {
		return nil, nil, ordermodel.ErrOrderNotFound
	}
	if userID != nil && f.order.UserID != *userID {
		return nil, nil, ordermodel.ErrNotOwner
	}
	return f.order, f.items, nil
}

func (f *fakeOrderAccess) Transition(ctx context.Context, orderID uuid.UUID, to ordermodel.OrderStatus, actor ordermodel.Actor, actorID *uuid.UUID, reason string) (*ordermodel.Order, error) {
	f.order.Status = to
	return f.order, nil
}

func (f *fakeOrderAccess) RecordItemReturns(ctx context.Context, orderID uuid.UUID, returned map[uuid.UUID]int) error {
	return nil
}

// fakeReturnsRepo tracks only what the guard paths need.
type fakeReturnsRepo struct {
	alreadyReturning map[uuid.UUID]int
	stored           *model.ReturnRequest
	updates          int
}

func (f *fakeReturnsRepo) Create(ctx context.Context, ret *model.ReturnRequest) error { return nil }
func (f *fakeReturnsRepo) GetByID(ctx context.Context, returnID uuid.UUID) (*model.ReturnRequest, error) {
	if f.stored != nil && f.stored.ID == returnID {
		return f.stored, nil
	}
	return nil, nil
}
func (f *fakeReturnsRepo) ListByUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]model.ReturnRequest, int, error) {
	return nil, 0, nil
}
func (f *fakeReturnsRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.ReturnRequest, error) {
	return nil, nil
}
func (f *fakeReturnsRepo) ListByStatus(ctx context.Context, status model.ReturnStatus, limit int) ([]model.ReturnRequest, error) {
	return nil, nil
}
func (f *fakeReturnsRepo) Update(ctx context.Context, ret *model.ReturnRequest) error {
	f.updates++
	return nil
}
func (f *fakeReturnsRepo) SumReturnedQuantity(ctx context.Context, orderID uuid.UUID) (map[uuid.UUID]int, error) {
	if f.alreadyReturning == nil {
		return map[uuid.UUID]int{}, nil
	}
	return f.alreadyReturning, nil
}

func deliveredOrder(userID uuid.UUID, deliveredAt time.Time) *ordermodel.Order {
	return &ordermodel.Order{
		ID:          uuid.New(),
		UserID:      userID,
		Status:      ordermodel.OrderStatusDelivered,
		DeliveredAt: &deliveredAt,
	}
}

func newTestReturnsService(orders *fakeOrderAccess, repo *fakeReturnsRepo) *ReturnsService {
	return NewReturnsService(repo, orders, nil, nil, nil, 7)
}

func TestCreateRejectsClosedWindow(t *testing.T) {
	userID := uuid.New()
	// Delivered 7 days and one minute ago: the to-the-second window is gone
	delivered := time.Now().Add(-7*24*time.Hour - time.Minute)
	orders := &fakeOrderAccess{order: deliveredOrder(userID, delivered)}
	svc := newTestReturnsService(orders, &fakeReturnsRepo{})

	_, err := svc.Create(context.Background(), userID, model.CreateReturnRequest{
		OrderID: orders.order.ID,
		Items:   []model.ReturnLineRequest{{OrderItemID: uuid.New(), Quantity: 1, Reason: "damaged"}},
		Reason:  "damaged on arrival",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrWindowClosed))
}

func TestCreateRejectsUndeliveredOrder(t *testing.T) {
	userID := uuid.New()
	orders := &fakeOrderAccess{order: &ordermodel.Order{
		ID:     uuid.New(),
		UserID: userID,
		Status: ordermodel.OrderStatusShipped,
	}}
	svc := newTestReturnsService(orders, &fakeReturnsRepo{})

	_, err := svc.Create(context.Background(), userID, model.CreateReturnRequest{
		OrderID: orders.order.ID,
		Items:   []model.ReturnLineRequest{{OrderItemID: uuid.New(), Quantity: 1, Reason: "damaged"}},
		Reason:  "damaged on arrival",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrOrderNotReturnable))
}

func TestCreateRejectsOverReturnedQuantity(t *testing.T) {
	userID := uuid.New()
	itemID := uuid.New()
	order := deliveredOrder(userID, time.Now().Add(-24*time.Hour))
	orders := &fakeOrderAccess{
		order: order,
		items: []ordermodel.OrderItem{{ID: itemID, OrderID: order.ID, Name: "Mug", Quantity: 3}},
	}
	// 2 of 3 units are already tied up in an earlier return
	repo := &fakeReturnsRepo{alreadyReturning: map[uuid.UUID]int{itemID: 2}}
	svc := newTestReturnsService(orders, repo)

	_, err := svc.Create(context.Background(), userID, model.CreateReturnRequest{
		OrderID: order.ID,
		Items:   []model.ReturnLineRequest{{OrderItemID: itemID, Quantity: 2, Reason: "damaged"}},
		Reason:  "two arrived chipped",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrQuantityUnavailable))
}

func TestCreateRejectsForeignLine(t *testing.T) {
	userID := uuid.New()
	order := deliveredOrder(userID, time.Now().Add(-24*time.Hour))
	orders := &fakeOrderAccess{
		order: order,
		items: []ordermodel.OrderItem{{ID: uuid.New(), OrderID: order.ID, Quantity: 1}},
	}
	svc := newTestReturnsService(orders, &fakeReturnsRepo{})

	_, err := svc.Create(context.Background(), userID, model.CreateReturnRequest{
		OrderID: order.ID,
		Items:   []model.ReturnLineRequest{{OrderItemID: uuid.New(), Quantity: 1, Reason: "damaged"}},
		Reason:  "wrong item",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrOrderNotReturnable))
}

func TestCreateEnforcesOwnership(t *testing.T) {
	owner := uuid.New()
	stranger := uuid.New()
	orders := &fakeOrderAccess{order: deliveredOrder(owner, time.Now())}
	svc := newTestReturnsService(orders, &fakeReturnsRepo{})

	_, err := svc.Create(context.Background(), stranger, model.CreateReturnRequest{
		OrderID: orders.order.ID,
		Items:   []model.ReturnLineRequest{{OrderItemID: uuid.New(), Quantity: 1, Reason: "damaged"}},
		Reason:  "not my order",
	})
	assert.ErrorIs(t, err, ordermodel.ErrNotOwner)
}

func TestInspectRejectedVerdictCancelsReturn(t *testing.T) {
	userID := uuid.New()
	order := deliveredOrder(userID, time.Now().Add(-24*time.Hour))
	ret := &model.ReturnRequest{
		ID:           uuid.New(),
		ReturnNumber: "RET-2026-000042",
		OrderID:      order.ID,
		UserID:       userID,
		Status:       model.StatusReceived,
		Items:        []model.ReturnItem{{OrderItemID: uuid.New(), Quantity: 1}},
	}
	repo := &fakeReturnsRepo{stored: ret}
	svc := newTestReturnsService(&fakeOrderAccess{order: order}, repo)

	out, err := svc.Inspect(context.Background(), uuid.New(), ret.ID, model.InspectRequest{
		Verdict: string(model.VerdictRejected),
		Notes:   "item shows heavy wear",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, out.Status)
	require.NotNil(t, out.RejectionReason)
	assert.Equal(t, "item shows heavy wear", *out.RejectionReason)
	assert.Nil(t, out.CompletedAt)
	assert.Nil(t, out.RefundID)
	assert.Equal(t, 1, repo.updates)
	// The order stays delivered, no refund opens for a rejected return.
	assert.Equal(t, ordermodel.OrderStatusDelivered, order.Status)
}

func TestAcceptedQuantitiesFullVerdict(t *testing.T) {
	first := uuid.New()
	second := uuid.New()
	ret := &model.ReturnRequest{
		Items: []model.ReturnItem{
			{OrderItemID: first, Quantity: 2},
			{OrderItemID: second, Quantity: 1},
		},
	}

	accepted, recorded, err := acceptedQuantities(ret, model.VerdictAccepted, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, accepted[first])
	assert.Equal(t, 1, accepted[second])
	assert.Len(t, recorded, 2)
}

func TestAcceptedQuantitiesRejectedVerdict(t *testing.T) {
	ret := &model.ReturnRequest{
		Items: []model.ReturnItem{{OrderItemID: uuid.New(), Quantity: 2}},
	}

	accepted, _, err := acceptedQuantities(ret, model.VerdictRejected, nil)
	require.NoError(t, err)
	assert.Empty(t, accepted)
}

func TestAcceptedQuantitiesPartialVerdict(t *testing.T) {
	itemID := uuid.New()
	ret := &model.ReturnRequest{
		Items: []model.ReturnItem{{OrderItemID: itemID, Quantity: 3}},
	}

	accepted, recorded, err := acceptedQuantities(ret, model.VerdictPartial,
		[]model.InspectionLineRequest{{OrderItemID: itemID, QuantityAccepted: 2, Notes: "one unit scratched"}})
	require.NoError(t, err)
	assert.Equal(t, 2, accepted[itemID])
	require.Len(t, recorded, 1)
	assert.Equal(t, "one unit scratched", recorded[0].Notes)
}

func TestAcceptedQuantitiesPartialOverAccept(t *testing.T) {
	itemID := uuid.New()
	ret := &model.ReturnRequest{
		Items: []model.ReturnItem{{OrderItemID: itemID, Quantity: 1}},
	}

	_, _, err := acceptedQuantities(ret, model.VerdictPartial,
		[]model.InspectionLineRequest{{OrderItemID: itemID, QuantityAccepted: 5}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidVerdict))
}
