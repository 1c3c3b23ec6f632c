package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ordermodel "orderflow-backend/internal/domains/order/model"
	"orderflow-backend/internal/domains/payment/gateway/razorpay"
	"orderflow-backend/internal/domains/payment/model"
)

const testWebhookSecret = "whsec_test"

// fakePaymentRepo serves a single payment and counts writes.
type fakePaymentRepo struct {
	payment *model.Payment
	updates int
}

func (f *fakePaymentRepo) Create(ctx context.Context, p *model.Payment) error { return nil }
func (f *fakePaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	if f.payment != nil && f.payment.ID == id {
		return f.payment, nil
	}
	return nil, nil
}
func (f *fakePaymentRepo) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*model.Payment, error) {
	if f.payment != nil && f.payment.GatewayOrderID == gatewayOrderID {
		return f.payment, nil
	}
	return nil, nil
}
func (f *fakePaymentRepo) GetByIdempotencyKey(ctx context.Context, key string) (*model.Payment, error) {
	return nil, nil
}
func (f *fakePaymentRepo) GetCapturedByOrder(ctx context.Context, orderID uuid.UUID) (*model.Payment, error) {
	return nil, nil
}
func (f *fakePaymentRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.Payment, error) {
	return nil, nil
}
func (f *fakePaymentRepo) CountByOrder(ctx context.Context, orderID uuid.UUID) (int, error) {
	return 0, nil
}
func (f *fakePaymentRepo) Update(ctx context.Context, p *model.Payment) error {
	f.payment = p
	f.updates++
	return nil
}
func (f *fakePaymentRepo) ListReconcilable(ctx context.Context, since time.Time, limit int) ([]model.Payment, error) {
	return nil, nil
}
func (f *fakePaymentRepo) GetStats(ctx context.Context, from, to time.Time) (*model.Stats, error) {
	return nil, nil
}

// fakeWebhookRepo deduplicates on event id like the unique index does.
type fakeWebhookRepo struct {
	seen      map[string]bool
	processed int
}

func (f *fakeWebhookRepo) Insert(ctx context.Context, entry *model.WebhookLog) (bool, error) {
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if f.seen[entry.EventID] {
		return false, nil
	}
	f.seen[entry.EventID] = true
	return true, nil
}
func (f *fakeWebhookRepo) MarkProcessed(ctx context.Context, logID uuid.UUID, paymentID *uuid.UUID) error {
	f.processed++
	return nil
}

// fakeOrderAccess records payment status projections.
type fakeOrderAccess struct {
	order         *ordermodel.Order
	statusApplied []ordermodel.PaymentStatus
}

func (f *fakeOrderAccess) GetOrder(ctx context.Context, orderID uuid.UUID, userID *uuid.UUID) (*ordermodel.Order, []ordermodel.OrderItem, error) {
	return f.order, nil, nil
}
func (f *fakeOrderAccess) ApplyPaymentStatus(ctx context.Context, orderID uuid.UUID, to ordermodel.PaymentStatus, actor ordermodel.Actor, reason string) (*ordermodel.Order, error) {
	f.statusApplied = append(f.statusApplied, to)
	return f.order, nil
}
func (f *fakeOrderAccess) RecordItemRefunds(ctx context.Context, orderID uuid.UUID, refunded map[uuid.UUID]int) error {
	return nil
}

type fakeRefundCompleter struct {
	completed []string
}

func (f *fakeRefundCompleter) CompleteByGatewayRefundID(ctx context.Context, gatewayRefundID string) error {
	f.completed = append(f.completed, gatewayRefundID)
	return nil
}

func newWebhookTestService(repo *fakePaymentRepo, webhooks *fakeWebhookRepo, orders *fakeOrderAccess, refunds *fakeRefundCompleter) *PaymentService {
	return NewPaymentService(repo, webhooks, nil, orders, refunds, nil, "key_secret", testWebhookSecret)
}

func capturedEventBody(t *testing.T, eventID, gatewayOrderID, gatewayPaymentID string) []byte {
	t.Helper()
	var event model.WebhookEvent
	event.ID = eventID
	event.Event = "payment.captured"
	event.Payload.Payment.Entity = model.WebhookPaymentEntity{
		ID:      gatewayPaymentID,
		OrderID: gatewayOrderID,
		Status:  "captured",
	}
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return body
}

func pendingPayment() *model.Payment {
	return &model.Payment{
		ID:             uuid.New(),
		OrderID:        uuid.New(),
		UserID:         uuid.New(),
		Amount:         money("548.00"),
		Currency:       "INR",
		GatewayOrderID: "order_gw123",
		Status:         model.StatusPending,
	}
}

func TestProcessWebhookRejectsBadSignature(t *testing.T) {
	repo := &fakePaymentRepo{payment: pendingPayment()}
	svc := newWebhookTestService(repo, &fakeWebhookRepo{}, &fakeOrderAccess{}, &fakeRefundCompleter{})

	body := capturedEventBody(t, "evt_1", "order_gw123", "pay_abc")
	err := svc.ProcessWebhook(context.Background(), body, "deadbeef")

	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidSignature))
	assert.Equal(t, model.StatusPending, repo.payment.Status)
	assert.Zero(t, repo.updates)
}

func TestProcessWebhookCapturesPendingPayment(t *testing.T) {
	repo := &fakePaymentRepo{payment: pendingPayment()}
	orders := &fakeOrderAccess{order: &ordermodel.Order{ID: repo.payment.OrderID}}
	svc := newWebhookTestService(repo, &fakeWebhookRepo{}, orders, &fakeRefundCompleter{})

	body := capturedEventBody(t, "evt_1", "order_gw123", "pay_abc")
	err := svc.ProcessWebhook(context.Background(), body, razorpay.Sign(string(body), testWebhookSecret))

	require.NoError(t, err)
	assert.Equal(t, model.StatusCaptured, repo.payment.Status)
	require.NotNil(t, repo.payment.PaidAt)
	require.NotNil(t, repo.payment.GatewayPaymentID)
	assert.Equal(t, "pay_abc", *repo.payment.GatewayPaymentID)
	require.Len(t, orders.statusApplied, 1)
	assert.Equal(t, ordermodel.PaymentStatusCaptured, orders.statusApplied[0])
}

func TestProcessWebhookDuplicateDeliveryIsNoOp(t *testing.T) {
	repo := &fakePaymentRepo{payment: pendingPayment()}
	webhooks := &fakeWebhookRepo{}
	orders := &fakeOrderAccess{order: &ordermodel.Order{ID: repo.payment.OrderID}}
	svc := newWebhookTestService(repo, webhooks, orders, &fakeRefundCompleter{})

	body := capturedEventBody(t, "evt_1", "order_gw123", "pay_abc")
	sig := razorpay.Sign(string(body), testWebhookSecret)

	require.NoError(t, svc.ProcessWebhook(context.Background(), body, sig))
	paidAt := *repo.payment.PaidAt
	updates := repo.updates

	// Same delivery again: acknowledged, nothing moves
	require.NoError(t, svc.ProcessWebhook(context.Background(), body, sig))
	assert.Equal(t, model.StatusCaptured, repo.payment.Status)
	assert.Equal(t, paidAt, *repo.payment.PaidAt)
	assert.Equal(t, updates, repo.updates)
	assert.Len(t, orders.statusApplied, 1)
}

func TestProcessWebhookReplayWithNewEventIDStillIdempotent(t *testing.T) {
	// The gateway sometimes re-sends a capture under a fresh event id.
	// The rank check stops it from rewriting paidAt.
	repo := &fakePaymentRepo{payment: pendingPayment()}
	orders := &fakeOrderAccess{order: &ordermodel.Order{ID: repo.payment.OrderID}}
	svc := newWebhookTestService(repo, &fakeWebhookRepo{}, orders, &fakeRefundCompleter{})

	first := capturedEventBody(t, "evt_1", "order_gw123", "pay_abc")
	require.NoError(t, svc.ProcessWebhook(context.Background(), first, razorpay.Sign(string(first), testWebhookSecret)))
	paidAt := *repo.payment.PaidAt
	updates := repo.updates

	second := capturedEventBody(t, "evt_2", "order_gw123", "pay_abc")
	require.NoError(t, svc.ProcessWebhook(context.Background(), second, razorpay.Sign(string(second), testWebhookSecret)))

	assert.Equal(t, model.StatusCaptured, repo.payment.Status)
	assert.Equal(t, paidAt, *repo.payment.PaidAt)
	assert.Equal(t, updates, repo.updates)
}

func TestProcessWebhookLateFailureDoesNotRegressCapture(t *testing.T) {
	repo := &fakePaymentRepo{payment: pendingPayment()}
	repo.payment.Status = model.StatusCaptured
	now := time.Now()
	repo.payment.PaidAt = &now
	orders := &fakeOrderAccess{order: &ordermodel.Order{ID: repo.payment.OrderID}}
	svc := newWebhookTestService(repo, &fakeWebhookRepo{}, orders, &fakeRefundCompleter{})

	var event model.WebhookEvent
	event.ID = "evt_fail"
	event.Event = "payment.failed"
	event.Payload.Payment.Entity = model.WebhookPaymentEntity{
		ID:      "pay_abc",
		OrderID: "order_gw123",
		Status:  "failed",
	}
	body, err := json.Marshal(event)
	require.NoError(t, err)

	require.NoError(t, svc.ProcessWebhook(context.Background(), body, razorpay.Sign(string(body), testWebhookSecret)))
	assert.Equal(t, model.StatusCaptured, repo.payment.Status)
	assert.Zero(t, repo.updates)
	assert.Empty(t, orders.statusApplied)
}

func TestProcessWebhookUnknownEventAcknowledged(t *testing.T) {
	repo := &fakePaymentRepo{payment: pendingPayment()}
	webhooks := &fakeWebhookRepo{}
	svc := newWebhookTestService(repo, webhooks, &fakeOrderAccess{}, &fakeRefundCompleter{})

	body := []byte(`{"id":"evt_x","event":"order.paid","payload":{}}`)
	err := svc.ProcessWebhook(context.Background(), body, razorpay.Sign(string(body), testWebhookSecret))

	require.NoError(t, err)
	assert.Zero(t, repo.updates)
	assert.Equal(t, 1, webhooks.processed)
}

func TestProcessWebhookRefundProcessed(t *testing.T) {
	repo := &fakePaymentRepo{payment: pendingPayment()}
	refunds := &fakeRefundCompleter{}
	svc := newWebhookTestService(repo, &fakeWebhookRepo{}, &fakeOrderAccess{}, refunds)

	var event model.WebhookEvent
	event.ID = "evt_ref"
	event.Event = "refund.processed"
	event.Payload.Refund.Entity = model.WebhookRefundEntity{
		ID:        "rfnd_123",
		PaymentID: "pay_abc",
		Status:    "processed",
	}
	body, err := json.Marshal(event)
	require.NoError(t, err)

	require.NoError(t, svc.ProcessWebhook(context.Background(), body, razorpay.Sign(string(body), testWebhookSecret)))
	assert.Equal(t, []string{"rfnd_123"}, refunds.completed)
}

func TestMapGatewayStatus(t *testing.T) {
	assert.Equal(t, model.StatusCaptured, mapGatewayStatus("captured"))
	assert.Equal(t, model.StatusFailed, mapGatewayStatus("failed"))
	assert.Equal(t, model.StatusAuthorized, mapGatewayStatus("authorized"))
	assert.Equal(t, model.StatusPending, mapGatewayStatus("created"))
}
