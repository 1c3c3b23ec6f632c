package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"orderflow-backend/internal/clients"
	cartmodel "orderflow-backend/internal/domains/cart/model"
	cartservice "orderflow-backend/internal/domains/cart/service"
	"orderflow-backend/internal/domains/checkout/model"
	"orderflow-backend/internal/domains/checkout/repository"
	ordermodel "orderflow-backend/internal/domains/order/model"
	"orderflow-backend/internal/shared/utils"
	"orderflow-backend/pkg/logger"
)

// driftTolerance mirrors the revalidator epsilon: totals within it are
// considered unchanged between initiate and complete.
var driftTolerance = decimal.NewFromFloat(0.01)

// CartAccess is the slice of cart behavior checkout needs.
// Implemented by the cart service.
type CartAccess interface {
	GetOrCreateCart(ctx context.Context, owner cartservice.Owner) (*cartmodel.Cart, error)
	GetCart(ctx context.Context, owner cartservice.Owner) (*cartmodel.CartResponse, error)
	Recompute(ctx context.Context, cartID uuid.UUID) error
	RevalidateCoupons(ctx context.Context, cart *cartmodel.Cart) ([]string, error)
	MarkConverted(ctx context.Context, cartID uuid.UUID) error
	RecordCouponUsage(ctx context.Context, coupons []cartmodel.AppliedCoupon, userID, orderID uuid.UUID)
}

// CartRevalidator re-prices cart lines against live upstream data.
// Implemented by the cart revalidator.
type CartRevalidator interface {
	RevalidateCart(ctx context.Context, cartID uuid.UUID) (*cartmodel.RevalidationResult, error)
}

// OrderCreator materializes an order from a completed session and
// serves it back on a retried complete.
// Implemented by the order service.
type OrderCreator interface {
	CreateFromCheckout(ctx context.Context, session *model.CheckoutSession, customer ordermodel.CustomerSnapshot, coupons []cartmodel.AppliedCoupon) (*ordermodel.Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID, userID *uuid.UUID) (*ordermodel.Order, []ordermodel.OrderItem, error)
}

// PaymentInitiator opens a gateway payment order.
// Implemented by the payment service.
type PaymentInitiator interface {
	InitiatePayment(ctx context.Context, orderID, userID uuid.UUID, amount decimal.Decimal, currency, method, idempotencyKey string) (gatewayOrderID string, keyID string, err error)
}

// CheckoutService drives the time-bounded checkout session.
type CheckoutService struct {
	repo        repository.RepositoryInterface
	cartService CartAccess
	revalidator CartRevalidator
	catalog     *clients.CatalogClient
	inventory   *clients.InventoryClient
	shipping    *clients.ShippingClient

	orders   OrderCreator
	payments PaymentInitiator

	expiryMinutes      int
	reservationMinutes int
}

func NewCheckoutService(
	repo repository.RepositoryInterface,
	cartService CartAccess,
	revalidator CartRevalidator,
	catalog *clients.CatalogClient,
	inventory *clients.InventoryClient,
	shipping *clients.ShippingClient,
	orders OrderCreator,
	payments PaymentInitiator,
	expiryMinutes, reservationMinutes int,
) *CheckoutService {
	return &CheckoutService{
		repo:               repo,
		cartService:        cartService,
		revalidator:        revalidator,
		catalog:            catalog,
		inventory:          inventory,
		shipping:           shipping,
		orders:             orders,
		payments:           payments,
		expiryMinutes:      expiryMinutes,
		reservationMinutes: reservationMinutes,
	}
}

// ===== INITIATE =====

// Initiate opens a checkout session: revalidates the cart, re-derives
// coupon discounts, quotes shipping, freezes snapshots and reserves
// stock. The session expires after the configured window.
func (s *CheckoutService) Initiate(ctx context.Context, userID uuid.UUID, req model.InitiateRequest) (*model.CheckoutSession, []string, error) {
	owner := cartservice.Owner{UserID: &userID}

	cart, err := s.cartService.GetOrCreateCart(ctx, owner)
	if err != nil {
		return nil, nil, err
	}

	items, err := s.cartService.GetCart(ctx, owner)
	if err != nil {
		return nil, nil, err
	}
	if len(items.Items) == 0 {
		return nil, nil, model.ErrCartEmpty
	}

	// Step 1: revalidate prices and availability
	result, err := s.revalidator.RevalidateCart(ctx, cart.ID)
	if err != nil {
		return nil, nil, err
	}
	if len(result.Unavailable) > 0 {
		return nil, nil, model.ErrCartInvalid
	}
	if len(result.PriceChanges) > 0 {
		if err := s.cartService.Recompute(ctx, cart.ID); err != nil {
			return nil, nil, err
		}
		cart, err = s.cartService.GetOrCreateCart(ctx, owner)
		if err != nil {
			return nil, nil, err
		}
	}

	// Step 2: re-derive coupon discounts against the fresh subtotal
	var warnings []string
	dropped, err := s.cartService.RevalidateCoupons(ctx, cart)
	if err != nil {
		return nil, nil, err
	}
	for _, code := range dropped {
		warnings = append(warnings, fmt.Sprintf("coupon %s no longer qualifies and was removed", code))
	}

	// Step 3: shipping serviceability and rate
	quote, err := s.shipping.Quote(ctx, clients.ShippingQuoteRequest{
		Pincode:    req.ShippingAddress.Pincode,
		OrderValue: cart.GrandTotal,
	})
	if err != nil {
		return nil, nil, err
	}
	if !quote.Serviceable {
		return nil, nil, model.ErrNotServiceable
	}

	// Step 4: supersede any open session for this cart
	if existing, err := s.repo.GetOpenByCartID(ctx, cart.ID); err != nil {
		return nil, nil, err
	} else if existing != nil {
		s.abandonSession(ctx, existing, "superseded by new checkout")
	}

	// Step 5: freeze snapshots
	cartItems, err := s.cartService.GetCart(ctx, owner)
	if err != nil {
		return nil, nil, err
	}

	sessionItems, err := s.freezeItems(ctx, cartItems.Items)
	if err != nil {
		return nil, nil, err
	}

	totals := ordermodel.TotalsSnapshot{
		Subtotal:      cart.Subtotal,
		DiscountTotal: cart.DiscountTotal,
		ShippingTotal: quote.Fee,
		TaxTotal:      cart.TaxTotal,
		GrandTotal:    grandTotal(cart.Subtotal, cart.DiscountTotal, quote.Fee, cart.TaxTotal),
	}

	billing := req.ShippingAddress
	if req.BillingAddress != nil {
		billing = *req.BillingAddress
	}

	session := &model.CheckoutSession{
		ID:              uuid.New(),
		CartID:          cart.ID,
		UserID:          userID,
		Items:           sessionItems,
		ShippingAddress: req.ShippingAddress.Snapshot(),
		BillingAddress:  billing.Snapshot(),
		ShippingMethod: ordermodel.ShippingMethodSnapshot{
			Code:          req.ShippingMethod,
			Name:          shippingMethodName(req.ShippingMethod),
			Fee:           quote.Fee,
			EstimatedDays: quote.EstimatedDays,
		},
		Totals:          totals,
		PaymentMethod:   req.PaymentMethod,
		PaymentSnapshot: buildPaymentSnapshot(req.PaymentMethod, req.PaymentDetails),
		Status:          model.SessionInitiated,
		ExpiresAt:       time.Now().Add(time.Duration(s.expiryMinutes) * time.Minute),
	}

	// Step 6: reserve stock for every line, all or nothing
	lines := make([]clients.ReservationLine, 0, len(sessionItems))
	for i := range sessionItems {
		lines = append(lines, clients.ReservationLine{
			VariantID: sessionItems[i].VariantID,
			Quantity:  sessionItems[i].Quantity,
		})
	}
	reservation, err := s.inventory.Reserve(ctx, clients.ReservationRequest{
		ReferenceID: session.ID.String(),
		Lines:       lines,
		TTLMinutes:  s.reservationMinutes,
	})
	if err != nil {
		var stockErr *clients.InsufficientStockError
		if asInsufficientStock(err, &stockErr) {
			return nil, nil, model.ErrStockUnavailable
		}
		return nil, nil, err
	}
	session.ReservationID = &reservation.ID

	// Step 7: persist; on failure release the hold so stock is not stuck
	if err := s.repo.Create(ctx, session); err != nil {
		if relErr := s.inventory.Release(ctx, reservation.ID, "session persist failed"); relErr != nil {
			logger.Error("Failed to release reservation after persist failure", relErr)
		}
		return nil, nil, err
	}

	logger.Info("Checkout session initiated", map[string]interface{}{
		"session_id": session.ID.String(),
		"cart_id":    cart.ID.String(),
		"user_id":    userID.String(),
		"expires_at": session.ExpiresAt,
	})
	return session, warnings, nil
}

// ===== COMPLETE =====

// Complete verifies the snapshot still matches the live cart, opens the
// gateway payment order and materializes the Order. A retried call with
// the same session returns the same gateway handles.
func (s *CheckoutService) Complete(ctx context.Context, userID uuid.UUID, sessionID uuid.UUID, customer ordermodel.CustomerSnapshot) (*model.CompleteResponse, error) {
	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, model.ErrSessionNotFound
	}
	if session.UserID != userID {
		return nil, model.ErrNotOwner
	}

	// Retried complete: hand back the same gateway order.
	if session.Status == model.SessionPaymentPending && session.GatewayOrderID != nil && session.OrderID != nil {
		return s.replayResponse(ctx, session)
	}

	if !session.Status.IsOpen() {
		return nil, model.ErrInvalidState
	}
	if session.Expired(time.Now()) {
		s.abandonSession(ctx, session, "expired before completion")
		return nil, model.ErrCheckoutExpired
	}

	// Step 1: drift check against the live cart
	if _, err := s.revalidator.RevalidateCart(ctx, session.CartID); err != nil {
		return nil, err
	}
	if err := s.cartService.Recompute(ctx, session.CartID); err != nil {
		return nil, err
	}

	owner := cartservice.Owner{UserID: &userID}
	cart, err := s.cartService.GetOrCreateCart(ctx, owner)
	if err != nil {
		return nil, err
	}

	current := grandTotal(cart.Subtotal, cart.DiscountTotal, session.ShippingMethod.Fee, cart.TaxTotal)
	if current.Sub(session.Totals.GrandTotal).Abs().GreaterThan(driftTolerance) {
		s.abandonSession(ctx, session, "totals drifted")
		return nil, &model.TotalsDriftedError{
			SnapshotTotal: session.Totals.GrandTotal,
			CurrentTotal:  current,
		}
	}

	// Step 2: materialize the order from the frozen snapshot. The order
	// id journals onto the session before the gateway call, so a retry
	// after a gateway failure resumes with the same order instead of
	// minting another one.
	var order *ordermodel.Order
	if session.OrderID != nil {
		order, _, err = s.orders.GetOrder(ctx, *session.OrderID, nil)
		if err != nil {
			return nil, err
		}
	} else {
		order, err = s.orders.CreateFromCheckout(ctx, session, customer, cart.AppliedCoupons)
		if err != nil {
			return nil, err
		}
		if err := s.repo.AttachOrder(ctx, session.ID, order.ID); err != nil {
			return nil, err
		}
		session.OrderID = &order.ID
	}

	// Step 3: open the gateway payment order. The idempotency key is
	// tied to (user, session) so a crashed retry lands on the same one.
	idempotencyKey := fmt.Sprintf("payment-%s-%s", userID, session.ID)
	gatewayOrderID, keyID, err := s.payments.InitiatePayment(
		ctx, order.ID, userID, session.Totals.GrandTotal, "INR",
		session.PaymentMethod, idempotencyKey,
	)
	if err != nil {
		return nil, err
	}

	// Step 4: advance the session and convert the cart
	if err := s.repo.AttachGatewayOrder(ctx, session.ID, gatewayOrderID, order.ID); err != nil {
		return nil, err
	}
	if _, err := s.repo.UpdateStatus(ctx, session.ID,
		[]model.SessionStatus{model.SessionInitiated, model.SessionAddressEntered},
		model.SessionPaymentPending, nil); err != nil {
		return nil, err
	}
	if err := s.cartService.MarkConverted(ctx, session.CartID); err != nil {
		logger.Error("Failed to mark cart converted", err)
	}
	s.cartService.RecordCouponUsage(ctx, cart.AppliedCoupons, userID, order.ID)

	logger.Info("Checkout completed, awaiting payment", map[string]interface{}{
		"session_id":   session.ID.String(),
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
		"amount":       session.Totals.GrandTotal.StringFixed(2),
	})

	return &model.CompleteResponse{
		OrderID:        order.ID.String(),
		OrderNumber:    order.OrderNumber,
		GatewayOrderID: gatewayOrderID,
		GatewayKeyID:   keyID,
		Amount:         session.Totals.GrandTotal.StringFixed(2),
		Currency:       "INR",
	}, nil
}

func (s *CheckoutService) replayResponse(ctx context.Context, session *model.CheckoutSession) (*model.CompleteResponse, error) {
	return &model.CompleteResponse{
		OrderID:        session.OrderID.String(),
		GatewayOrderID: *session.GatewayOrderID,
		Amount:         session.Totals.GrandTotal.StringFixed(2),
		Currency:       "INR",
	}, nil
}

// GetSession returns a session for its owner.
func (s *CheckoutService) GetSession(ctx context.Context, userID, sessionID uuid.UUID) (*model.CheckoutSession, error) {
	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, model.ErrSessionNotFound
	}
	if session.UserID != userID {
		return nil, model.ErrNotOwner
	}
	return session, nil
}

// ===== HELPERS =====

// abandonSession fails a session and frees its inventory hold.
func (s *CheckoutService) abandonSession(ctx context.Context, session *model.CheckoutSession, reason string) {
	if _, err := s.repo.UpdateStatus(ctx, session.ID,
		[]model.SessionStatus{model.SessionInitiated, model.SessionAddressEntered, model.SessionPaymentPending},
		model.SessionFailed, &reason); err != nil {
		logger.Error("Failed to fail checkout session", err)
		return
	}
	if session.ReservationID != nil {
		if err := s.inventory.Release(ctx, *session.ReservationID, reason); err != nil {
			logger.Error("Failed to release reservation", err)
		}
	}
}

// freezeItems enriches cart lines with catalog identity for the
// immutable session snapshot.
func (s *CheckoutService) freezeItems(ctx context.Context, items []cartmodel.CartItem) ([]model.SessionItem, error) {
	productIDs := make([]uuid.UUID, 0, len(items))
	for i := range items {
		productIDs = append(productIDs, items[i].ProductID)
	}
	products, err := s.catalog.GetProducts(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	frozen := make([]model.SessionItem, 0, len(items))
	for i := range items {
		item := &items[i]
		product, ok := products[item.ProductID]
		if !ok {
			return nil, model.ErrCartInvalid
		}

		frozen = append(frozen, model.SessionItem{
			ProductID:    item.ProductID,
			VariantID:    item.VariantID,
			BundleID:     item.BundleID,
			SKU:          product.SKU,
			Name:         product.Name,
			HSNCode:      product.HSNCode,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			UnitMRP:      item.UnitMRP,
			LineDiscount: item.LineDiscount,
			LineTax:      decimal.Zero,
			LineTotal:    item.LineTotal,
			IsFreeGift:   item.IsFreeGift,
		})
	}
	return frozen, nil
}

func grandTotal(subtotal, discount, shipping, tax decimal.Decimal) decimal.Decimal {
	total := subtotal.Sub(discount).Add(shipping).Add(tax)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total.Round(2)
}

// buildPaymentSnapshot reduces instrument details to the gateway-safe
// form. The raw card number never leaves this function.
func buildPaymentSnapshot(method string, details *model.PaymentDetailsInput) ordermodel.PaymentMethodSnapshot {
	snapshot := ordermodel.PaymentMethodSnapshot{Method: method}
	if details == nil {
		return snapshot
	}
	if details.UPIHandle != "" {
		snapshot.UPIHandle = utils.MaskUPI(details.UPIHandle)
	}
	if details.CardNumber != "" {
		snapshot.CardLast4 = utils.CardLast4(details.CardNumber)
		snapshot.CardNetwork = details.CardNetwork
	}
	snapshot.BankName = details.BankName
	return snapshot
}

func shippingMethodName(code string) string {
	switch code {
	case "express":
		return "Express Delivery"
	default:
		return "Standard Delivery"
	}
}

func asInsufficientStock(err error, target **clients.InsufficientStockError) bool {
	return errors.As(err, target)
}
