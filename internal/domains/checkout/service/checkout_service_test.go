package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow-backend/internal/clients"
	cartmodel "orderflow-backend/internal/domains/cart/model"
	cartservice "orderflow-backend/internal/domains/cart/service"
	"orderflow-backend/internal/domains/checkout/model"
	"orderflow-backend/internal/domains/checkout/repository"
	ordermodel "orderflow-backend/internal/domains/order/model"
)

func money(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

// ===== FAKES =====

// fakeSessionStore keeps sessions in memory with the same CAS
// semantics as the postgres repository.
type fakeSessionStore struct {
	sessions map[uuid.UUID]*model.CheckoutSession
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: map[uuid.UUID]*model.CheckoutSession{}}
}

func (f *fakeSessionStore) Create(ctx context.Context, session *model.CheckoutSession) error {
	f.sessions[session.ID] = session
	return nil
}

func (f *fakeSessionStore) GetByID(ctx context.Context, sessionID uuid.UUID) (*model.CheckoutSession, error) {
	return f.sessions[sessionID], nil
}

func (f *fakeSessionStore) GetOpenByCartID(ctx context.Context, cartID uuid.UUID) (*model.CheckoutSession, error) {
	for _, s := range f.sessions {
		if s.CartID == cartID && s.Status.IsOpen() {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeSessionStore) UpdateStatus(ctx context.Context, sessionID uuid.UUID, from []model.SessionStatus, to model.SessionStatus, failureReason *string) (bool, error) {
	s, ok := f.sessions[sessionID]
	if !ok {
		return false, nil
	}
	for _, status := range from {
		if s.Status == status {
			s.Status = to
			s.FailureReason = failureReason
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeSessionStore) AttachOrder(ctx context.Context, sessionID, orderID uuid.UUID) error {
	f.sessions[sessionID].OrderID = &orderID
	return nil
}

func (f *fakeSessionStore) AttachGatewayOrder(ctx context.Context, sessionID uuid.UUID, gatewayOrderID string, orderID uuid.UUID) error {
	s := f.sessions[sessionID]
	s.GatewayOrderID = &gatewayOrderID
	s.OrderID = &orderID
	return nil
}

func (f *fakeSessionStore) ExpireStale(ctx context.Context, now time.Time, limit int) ([]repository.ExpiredSession, error) {
	return nil, nil
}

// fakeCartAccess serves one canned cart.
type fakeCartAccess struct {
	cart      *cartmodel.Cart
	items     []cartmodel.CartItem
	dropped   []string
	converted bool
}

func (f *fakeCartAccess) GetOrCreateCart(ctx context.Context, owner cartservice.Owner) (*cartmodel.Cart, error) {
	return f.cart, nil
}

func (f *fakeCartAccess) GetCart(ctx context.Context, owner cartservice.Owner) (*cartmodel.CartResponse, error) {
	return &cartmodel.CartResponse{Cart: f.cart, Items: f.items}, nil
}

func (f *fakeCartAccess) Recompute(ctx context.Context, cartID uuid.UUID) error { return nil }

func (f *fakeCartAccess) RevalidateCoupons(ctx context.Context, cart *cartmodel.Cart) ([]string, error) {
	return f.dropped, nil
}

func (f *fakeCartAccess) MarkConverted(ctx context.Context, cartID uuid.UUID) error {
	f.converted = true
	return nil
}

func (f *fakeCartAccess) RecordCouponUsage(ctx context.Context, coupons []cartmodel.AppliedCoupon, userID, orderID uuid.UUID) {
}

type fakeRevalidator struct {
	result *cartmodel.RevalidationResult
	err    error
}

func (f *fakeRevalidator) RevalidateCart(ctx context.Context, cartID uuid.UUID) (*cartmodel.RevalidationResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &cartmodel.RevalidationResult{}, nil
}

// fakeOrderCreator counts materialized orders and serves them back.
type fakeOrderCreator struct {
	created []*ordermodel.Order
}

func (f *fakeOrderCreator) CreateFromCheckout(ctx context.Context, session *model.CheckoutSession, customer ordermodel.CustomerSnapshot, coupons []cartmodel.AppliedCoupon) (*ordermodel.Order, error) {
	order := &ordermodel.Order{
		ID:          uuid.New(),
		OrderNumber: fmt.Sprintf("ORD-2026-%06d", len(f.created)+1),
		UserID:      session.UserID,
		Customer:    customer,
		Totals:      session.Totals,
	}
	f.created = append(f.created, order)
	return order, nil
}

func (f *fakeOrderCreator) GetOrder(ctx context.Context, orderID uuid.UUID, userID *uuid.UUID) (*ordermodel.Order, []ordermodel.OrderItem, error) {
	for _, order := range f.created {
		if order.ID == orderID {
			return order, nil, nil
		}
	}
	return nil, nil, ordermodel.ErrOrderNotFound
}

// fakeGatewayOpener fails the first n calls, then hands out gateway
// order ids.
type fakeGatewayOpener struct {
	failures int
	calls    int
}

func (f *fakeGatewayOpener) InitiatePayment(ctx context.Context, orderID, userID uuid.UUID, amount decimal.Decimal, currency, method, idempotencyKey string) (string, string, error) {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return "", "", errors.New("gateway timeout")
	}
	return fmt.Sprintf("order_rzp_%d", f.calls), "rzp_test_key", nil
}

// checkoutUpstreams serves the catalog and inventory endpoints the
// service reaches during initiate.
type checkoutUpstreams struct {
	products map[uuid.UUID]*clients.ProductInfo
	stockout bool
}

func (u *checkoutUpstreams) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/internal/v1/products/batch", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			IDs []uuid.UUID `json:"ids"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var resp struct {
			Products []*clients.ProductInfo `json:"products"`
		}
		for _, id := range req.IDs {
			if p, ok := u.products[id]; ok {
				resp.Products = append(resp.Products, p)
			}
		}
		json.NewEncoder(w).Encode(resp)
	})

	mux.HandleFunc("/internal/v1/reservations", func(w http.ResponseWriter, r *http.Request) {
		if u.stockout {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]interface{}{"unavailable": []uuid.UUID{}})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"reservation": map[string]interface{}{
				"id":        "rsv_test_1",
				"expiresAt": time.Now().Add(20 * time.Minute),
			},
		})
	})

	mux.HandleFunc("/internal/v1/reservations/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// ===== HARNESS =====

type checkoutHarness struct {
	svc      *CheckoutService
	repo     *fakeSessionStore
	carts    *fakeCartAccess
	orders   *fakeOrderCreator
	payments *fakeGatewayOpener
}

func newCheckoutHarness(t *testing.T, carts *fakeCartAccess, reval *fakeRevalidator, up *checkoutUpstreams) *checkoutHarness {
	t.Helper()
	srv := up.server(t)

	repo := newFakeSessionStore()
	orders := &fakeOrderCreator{}
	payments := &fakeGatewayOpener{}
	svc := NewCheckoutService(
		repo, carts, reval,
		clients.NewCatalogClient(srv.URL, "test-key", 2*time.Second),
		clients.NewInventoryClient(srv.URL, "test-key", 2*time.Second),
		clients.NewShippingClient("", "", 2*time.Second, true),
		orders, payments, 15, 20,
	)
	return &checkoutHarness{svc: svc, repo: repo, carts: carts, orders: orders, payments: payments}
}

func checkoutCart(userID uuid.UUID) *fakeCartAccess {
	cartID := uuid.New()
	item := cartmodel.CartItem{
		ID:        uuid.New(),
		CartID:    cartID,
		ProductID: uuid.New(),
		VariantID: uuid.New(),
		Quantity:  2,
		UnitPrice: money("249.00"),
		LineTotal: money("498.00"),
	}
	cart := &cartmodel.Cart{
		ID:            cartID,
		UserID:        &userID,
		OwnerType:     cartmodel.OwnerTypeUser,
		Status:        cartmodel.CartStatusActive,
		Subtotal:      money("498.00"),
		DiscountTotal: decimal.Zero,
		TaxTotal:      money("89.64"),
		GrandTotal:    money("587.64"),
		ItemCount:     2,
	}
	return &fakeCartAccess{cart: cart, items: []cartmodel.CartItem{item}}
}

func activeProducts(carts *fakeCartAccess) *checkoutUpstreams {
	products := make(map[uuid.UUID]*clients.ProductInfo, len(carts.items))
	for i := range carts.items {
		products[carts.items[i].ProductID] = &clients.ProductInfo{
			ID:      carts.items[i].ProductID,
			SKU:     "SKU-001",
			Name:    "Steel Water Bottle",
			Status:  clients.ProductStatusActive,
			HSNCode: "7310",
		}
	}
	return &checkoutUpstreams{products: products}
}

func initiateRequest() model.InitiateRequest {
	return model.InitiateRequest{
		ShippingAddress: model.AddressInput{
			FullName: "Ramesh Kumar",
			Phone:    "9876543210",
			Line1:    "12 MG Road",
			City:     "Bengaluru",
			State:    "Karnataka",
			Pincode:  "560001",
			Country:  "IN",
		},
		ShippingMethod: "standard",
		PaymentMethod:  "upi",
	}
}

func testCustomer(userID uuid.UUID) ordermodel.CustomerSnapshot {
	return ordermodel.CustomerSnapshot{
		UserID: userID,
		Name:   "Ramesh Kumar",
		Email:  "ramesh@example.com",
		Phone:  "9876543210",
	}
}

// ===== INITIATE =====

func TestInitiateCreatesSessionWithReservation(t *testing.T) {
	userID := uuid.New()
	carts := checkoutCart(userID)
	h := newCheckoutHarness(t, carts, &fakeRevalidator{}, activeProducts(carts))

	session, warnings, err := h.svc.Initiate(context.Background(), userID, initiateRequest())
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, model.SessionInitiated, session.Status)
	require.NotNil(t, session.ReservationID)
	assert.Equal(t, "rsv_test_1", *session.ReservationID)
	require.Len(t, session.Items, 1)
	assert.Equal(t, "SKU-001", session.Items[0].SKU)
	// subtotal 498.00 + shipping 50 + tax 89.64
	assert.True(t, session.Totals.GrandTotal.Equal(money("637.64")))

	stored, err := h.repo.GetByID(context.Background(), session.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestInitiateRejectsEmptyCart(t *testing.T) {
	userID := uuid.New()
	carts := checkoutCart(userID)
	carts.items = nil
	h := newCheckoutHarness(t, carts, &fakeRevalidator{}, activeProducts(carts))

	_, _, err := h.svc.Initiate(context.Background(), userID, initiateRequest())
	assert.ErrorIs(t, err, model.ErrCartEmpty)
}

func TestInitiateBlocksUnavailableItems(t *testing.T) {
	userID := uuid.New()
	carts := checkoutCart(userID)
	reval := &fakeRevalidator{result: &cartmodel.RevalidationResult{
		Unavailable: []cartmodel.UnavailableItem{{
			ItemID:    carts.items[0].ID,
			ProductID: carts.items[0].ProductID,
			VariantID: carts.items[0].VariantID,
			Reason:    "product no longer available",
		}},
	}}
	h := newCheckoutHarness(t, carts, reval, activeProducts(carts))

	_, _, err := h.svc.Initiate(context.Background(), userID, initiateRequest())
	assert.ErrorIs(t, err, model.ErrCartInvalid)
}

func TestInitiateStockConflict(t *testing.T) {
	userID := uuid.New()
	carts := checkoutCart(userID)
	up := activeProducts(carts)
	up.stockout = true
	h := newCheckoutHarness(t, carts, &fakeRevalidator{}, up)

	_, _, err := h.svc.Initiate(context.Background(), userID, initiateRequest())
	assert.ErrorIs(t, err, model.ErrStockUnavailable)
}

// ===== COMPLETE =====

// seedSession plants an open session the way initiate leaves it.
func seedSession(h *checkoutHarness, userID uuid.UUID, grand string) *model.CheckoutSession {
	reservationID := "rsv_test_1"
	session := &model.CheckoutSession{
		ID:     uuid.New(),
		CartID: h.carts.cart.ID,
		UserID: userID,
		Items: []model.SessionItem{{
			ProductID: h.carts.items[0].ProductID,
			VariantID: h.carts.items[0].VariantID,
			SKU:       "SKU-001",
			Quantity:  2,
			UnitPrice: money("249.00"),
		}},
		ShippingMethod: ordermodel.ShippingMethodSnapshot{
			Code: "standard",
			Name: "Standard Delivery",
			Fee:  money("50"),
		},
		Totals: ordermodel.TotalsSnapshot{
			Subtotal:      money("498.00"),
			ShippingTotal: money("50"),
			TaxTotal:      money("89.64"),
			GrandTotal:    money(grand),
		},
		PaymentMethod: "upi",
		Status:        model.SessionAddressEntered,
		ReservationID: &reservationID,
		ExpiresAt:     time.Now().Add(15 * time.Minute),
	}
	h.repo.sessions[session.ID] = session
	return session
}

func TestCompleteRejectsExpiredSession(t *testing.T) {
	userID := uuid.New()
	carts := checkoutCart(userID)
	h := newCheckoutHarness(t, carts, &fakeRevalidator{}, activeProducts(carts))

	session := seedSession(h, userID, "637.64")
	session.ExpiresAt = time.Now().Add(-time.Minute)

	_, err := h.svc.Complete(context.Background(), userID, session.ID, testCustomer(userID))
	assert.ErrorIs(t, err, model.ErrCheckoutExpired)
	assert.Equal(t, model.SessionFailed, session.Status)
	assert.Empty(t, h.orders.created)
}

func TestCompleteRejectsDriftedTotals(t *testing.T) {
	userID := uuid.New()
	carts := checkoutCart(userID)
	h := newCheckoutHarness(t, carts, &fakeRevalidator{}, activeProducts(carts))

	// Snapshot frozen at a lower grand total than the live cart yields
	session := seedSession(h, userID, "600.00")

	_, err := h.svc.Complete(context.Background(), userID, session.ID, testCustomer(userID))
	var drifted *model.TotalsDriftedError
	require.ErrorAs(t, err, &drifted)
	assert.True(t, drifted.CurrentTotal.Equal(money("637.64")))
	assert.Equal(t, model.SessionFailed, session.Status)
	assert.Empty(t, h.orders.created)
}

func TestCompleteOpensPaymentAndConvertsCart(t *testing.T) {
	userID := uuid.New()
	carts := checkoutCart(userID)
	h := newCheckoutHarness(t, carts, &fakeRevalidator{}, activeProducts(carts))

	session := seedSession(h, userID, "637.64")

	resp, err := h.svc.Complete(context.Background(), userID, session.ID, testCustomer(userID))
	require.NoError(t, err)

	require.Len(t, h.orders.created, 1)
	assert.Equal(t, h.orders.created[0].ID.String(), resp.OrderID)
	assert.Equal(t, "order_rzp_1", resp.GatewayOrderID)
	assert.Equal(t, model.SessionPaymentPending, session.Status)
	assert.True(t, carts.converted)
}

func TestCompleteRetryAfterGatewayFailureReusesOrder(t *testing.T) {
	userID := uuid.New()
	carts := checkoutCart(userID)
	h := newCheckoutHarness(t, carts, &fakeRevalidator{}, activeProducts(carts))
	h.payments.failures = 1

	session := seedSession(h, userID, "637.64")

	_, err := h.svc.Complete(context.Background(), userID, session.ID, testCustomer(userID))
	require.Error(t, err)

	// The order survived the gateway failure, journaled on the session.
	require.Len(t, h.orders.created, 1)
	require.NotNil(t, session.OrderID)
	assert.Equal(t, h.orders.created[0].ID, *session.OrderID)
	assert.Equal(t, model.SessionAddressEntered, session.Status)

	resp, err := h.svc.Complete(context.Background(), userID, session.ID, testCustomer(userID))
	require.NoError(t, err)

	// The retry resumed with the existing order instead of minting one.
	require.Len(t, h.orders.created, 1)
	assert.Equal(t, h.orders.created[0].ID.String(), resp.OrderID)
	assert.Equal(t, 2, h.payments.calls)
	assert.Equal(t, model.SessionPaymentPending, session.Status)
}

func TestCompleteReplaysGatewayOrder(t *testing.T) {
	userID := uuid.New()
	carts := checkoutCart(userID)
	h := newCheckoutHarness(t, carts, &fakeRevalidator{}, activeProducts(carts))

	session := seedSession(h, userID, "637.64")

	first, err := h.svc.Complete(context.Background(), userID, session.ID, testCustomer(userID))
	require.NoError(t, err)

	second, err := h.svc.Complete(context.Background(), userID, session.ID, testCustomer(userID))
	require.NoError(t, err)

	assert.Equal(t, first.GatewayOrderID, second.GatewayOrderID)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Len(t, h.orders.created, 1)
	assert.Equal(t, 1, h.payments.calls)
}

func TestGrandTotal(t *testing.T) {
	total := grandTotal(money("1000"), money("100"), money("40"), money("90"))
	assert.True(t, total.Equal(money("1030")))
}

func TestGrandTotalClampsAtZero(t *testing.T) {
	total := grandTotal(money("100"), money("500"), money("0"), money("0"))
	assert.True(t, total.Equal(decimal.Zero))
}

func TestDriftToleranceBoundary(t *testing.T) {
	snapshot := money("1030.00")

	// One paisa of drift is within tolerance, two is not
	within := money("1030.01").Sub(snapshot).Abs()
	assert.False(t, within.GreaterThan(driftTolerance))

	beyond := money("1030.02").Sub(snapshot).Abs()
	assert.True(t, beyond.GreaterThan(driftTolerance))
}

func TestBuildPaymentSnapshotMasksInstrument(t *testing.T) {
	snapshot := buildPaymentSnapshot("upi", &model.PaymentDetailsInput{
		UPIHandle: "ramesh@okicici",
	})
	assert.Equal(t, "upi", snapshot.Method)
	assert.Equal(t, "ra***h@okicici", snapshot.UPIHandle)

	snapshot = buildPaymentSnapshot("card", &model.PaymentDetailsInput{
		CardNumber:  "4111111111111111",
		CardNetwork: "visa",
	})
	assert.Equal(t, "1111", snapshot.CardLast4)
	assert.Equal(t, "visa", snapshot.CardNetwork)
	assert.Empty(t, snapshot.UPIHandle)
}

func TestBuildPaymentSnapshotWithoutDetails(t *testing.T) {
	snapshot := buildPaymentSnapshot("netbanking", nil)
	assert.Equal(t, "netbanking", snapshot.Method)
	assert.Empty(t, snapshot.CardLast4)
}

func TestSessionStatusIsOpen(t *testing.T) {
	assert.True(t, model.SessionInitiated.IsOpen())
	assert.True(t, model.SessionAddressEntered.IsOpen())
	assert.True(t, model.SessionPaymentPending.IsOpen())
	assert.False(t, model.SessionCompleted.IsOpen())
	assert.False(t, model.SessionFailed.IsOpen())
	assert.False(t, model.SessionExpired.IsOpen())
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()
	session := &model.CheckoutSession{ExpiresAt: now.Add(time.Minute)}

	assert.False(t, session.Expired(now))
	assert.False(t, session.Expired(now.Add(time.Minute)))
	assert.True(t, session.Expired(now.Add(time.Minute+time.Second)))
}
