package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"orderflow-backend/internal/clients"
	"orderflow-backend/internal/domains/cart/model"
	"orderflow-backend/internal/domains/cart/repository"
	infracache "orderflow-backend/internal/infrastructure/cache"
	"orderflow-backend/pkg/logger"
)

// Owner identifies who a cart belongs to. Exactly one field is set.
type Owner struct {
	UserID     *uuid.UUID
	GuestToken *string
}

func (o Owner) Valid() bool {
	return (o.UserID != nil) != (o.GuestToken != nil)
}

// CartService owns carts and their line items.
type CartService struct {
	repo       repository.RepositoryInterface
	couponRepo repository.CouponRepositoryInterface
	catalog    *clients.CatalogClient
	pricing    *clients.PricingClient
	locker     *infracache.Locker
}

func NewCartService(
	repo repository.RepositoryInterface,
	couponRepo repository.CouponRepositoryInterface,
	catalog *clients.CatalogClient,
	pricing *clients.PricingClient,
	locker *infracache.Locker,
) *CartService {
	return &CartService{
		repo:       repo,
		couponRepo: couponRepo,
		catalog:    catalog,
		pricing:    pricing,
		locker:     locker,
	}
}

// ===== CART LIFECYCLE =====

// GetOrCreateCart returns the owner's active cart, creating an empty
// one on first touch.
func (s *CartService) GetOrCreateCart(ctx context.Context, owner Owner) (*model.Cart, error) {
	if !owner.Valid() {
		return nil, model.ErrOwnerRequired
	}

	cart, err := s.findActiveCart(ctx, owner)
	if err != nil {
		return nil, err
	}
	if cart != nil {
		return cart, nil
	}

	cart = &model.Cart{
		ID:            uuid.New(),
		UserID:        owner.UserID,
		GuestToken:    owner.GuestToken,
		OwnerType:     model.OwnerTypeUser,
		Status:        model.CartStatusActive,
		Subtotal:      decimal.Zero,
		DiscountTotal: decimal.Zero,
		ShippingTotal: decimal.Zero,
		TaxTotal:      decimal.Zero,
		GrandTotal:    decimal.Zero,
	}
	if owner.GuestToken != nil {
		cart.OwnerType = model.OwnerTypeGuest
	}

	if err := s.repo.Create(ctx, cart); err != nil {
		// Lost a race with a concurrent first touch, read the winner.
		existing, getErr := s.findActiveCart(ctx, owner)
		if getErr == nil && existing != nil {
			return existing, nil
		}
		return nil, err
	}

	logger.Info("Cart created", map[string]interface{}{
		"cart_id":    cart.ID.String(),
		"owner_type": string(cart.OwnerType),
	})
	return cart, nil
}

// RecordCouponUsage charges each applied coupon's usage counters once
// the order exists. Conflict-safe: re-recording for the same order is
// a no-op.
func (s *CartService) RecordCouponUsage(ctx context.Context, coupons []model.AppliedCoupon, userID, orderID uuid.UUID) {
	for _, applied := range coupons {
		if err := s.couponRepo.RecordUsage(ctx, applied.CouponID, userID, orderID); err != nil {
			logger.Error("Failed to record coupon usage", err)
		}
	}
}

// MarkConverted flips the cart out of active once its order exists.
func (s *CartService) MarkConverted(ctx context.Context, cartID uuid.UUID) error {
	return s.repo.UpdateStatus(ctx, cartID, model.CartStatusConverted)
}

func (s *CartService) findActiveCart(ctx context.Context, owner Owner) (*model.Cart, error) {
	if owner.UserID != nil {
		return s.repo.GetActiveByUserID(ctx, *owner.UserID)
	}
	return s.repo.GetActiveByGuestToken(ctx, *owner.GuestToken)
}

// GetCart returns the cart with its items.
func (s *CartService) GetCart(ctx context.Context, owner Owner) (*model.CartResponse, error) {
	cart, err := s.GetOrCreateCart(ctx, owner)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.GetItems(ctx, cart.ID)
	if err != nil {
		return nil, err
	}

	// Reads slide the expiry window so a browsed cart is not swept.
	if err := s.repo.Touch(ctx, cart.ID); err != nil {
		logger.Warn("Failed to touch cart activity", map[string]interface{}{
			"cart_id": cart.ID.String(),
			"error":   err.Error(),
		})
	}
	return &model.CartResponse{Cart: cart, Items: items}, nil
}

// ===== ITEM MUTATIONS =====

// AddItem adds a line or coalesces into an existing one.
func (s *CartService) AddItem(ctx context.Context, owner Owner, req model.AddItemRequest) (*model.CartItem, error) {
	cart, err := s.GetOrCreateCart(ctx, owner)
	if err != nil {
		return nil, err
	}
	if cart.Status != model.CartStatusActive {
		return nil, model.ErrCartNotActive
	}

	// Step 1: verify the product is purchasable
	product, err := s.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, model.ErrProductNotFound
	}
	if !product.Purchasable() {
		return nil, model.NewProductUnavailableError(req.ProductID.String())
	}

	// Step 2: enforce cart-wide unit cap
	if cart.ItemCount+req.Quantity > model.MaxItemsPerCart {
		return nil, model.NewCartFullError(model.MaxItemsPerCart)
	}

	// Step 3: quote a fresh price for the snapshot
	prices, err := s.pricing.GetPrices(ctx, []uuid.UUID{req.VariantID})
	if err != nil {
		return nil, err
	}
	price, ok := prices[req.VariantID]
	if !ok {
		return nil, model.ErrProductUnavailable
	}

	now := time.Now()
	item := &model.CartItem{
		ID:           uuid.New(),
		CartID:       cart.ID,
		ProductID:    req.ProductID,
		VariantID:    req.VariantID,
		BundleID:     req.BundleID,
		Quantity:     req.Quantity,
		UnitPrice:    price.UnitPrice,
		UnitMRP:      price.UnitPrice,
		LineDiscount: decimal.Zero,
		PriceSnapshot: model.PriceSnapshot{
			UnitPrice:  price.UnitPrice,
			UnitMRP:    price.UnitPrice,
			CapturedAt: now,
		},
		ProductStatus: model.ProductStatusInfo{
			ProductExists: true,
			VariantExists: true,
			LastCheckedAt: now,
		},
	}
	item.LineTotal = item.ComputeLineTotal()

	// Step 4: upsert, coalescing with any existing line
	saved, err := s.repo.UpsertItem(ctx, item)
	if err != nil {
		return nil, err
	}
	if saved.Quantity > model.MaxQuantityPerLine {
		// Clamp back, the coalesced quantity overshot the per-line cap.
		if err := s.repo.UpdateItemQuantity(ctx, saved.ID, model.MaxQuantityPerLine); err != nil {
			return nil, err
		}
		return nil, model.NewQuantityLimitError(model.MaxQuantityPerLine)
	}

	if err := s.Recompute(ctx, cart.ID); err != nil {
		return nil, err
	}
	return saved, nil
}

// UpdateQuantity sets a line's quantity.
func (s *CartService) UpdateQuantity(ctx context.Context, owner Owner, itemID uuid.UUID, quantity int) error {
	cart, item, err := s.ownedItem(ctx, owner, itemID)
	if err != nil {
		return err
	}

	if cart.ItemCount-item.Quantity+quantity > model.MaxItemsPerCart {
		return model.NewCartFullError(model.MaxItemsPerCart)
	}
	if quantity > model.MaxQuantityPerLine {
		return model.NewQuantityLimitError(model.MaxQuantityPerLine)
	}

	if err := s.repo.UpdateItemQuantity(ctx, itemID, quantity); err != nil {
		return err
	}
	return s.Recompute(ctx, cart.ID)
}

// RemoveItem deletes a line.
func (s *CartService) RemoveItem(ctx context.Context, owner Owner, itemID uuid.UUID) error {
	cart, _, err := s.ownedItem(ctx, owner, itemID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteItem(ctx, itemID); err != nil {
		return err
	}
	return s.Recompute(ctx, cart.ID)
}

// Clear removes every line and resets totals.
func (s *CartService) Clear(ctx context.Context, owner Owner) error {
	cart, err := s.findActiveCart(ctx, owner)
	if err != nil {
		return err
	}
	if cart == nil {
		return model.ErrCartNotFound
	}

	if _, err := s.repo.ClearItems(ctx, cart.ID); err != nil {
		return err
	}
	cart.AppliedCoupons = nil
	return s.Recompute(ctx, cart.ID)
}

func (s *CartService) ownedItem(ctx context.Context, owner Owner, itemID uuid.UUID) (*model.Cart, *model.CartItem, error) {
	cart, err := s.findActiveCart(ctx, owner)
	if err != nil {
		return nil, nil, err
	}
	if cart == nil {
		return nil, nil, model.ErrCartNotFound
	}

	item, err := s.repo.GetItemByID(ctx, itemID)
	if err != nil {
		return nil, nil, err
	}
	if item == nil || item.CartID != cart.ID {
		return nil, nil, model.ErrItemNotFound
	}
	return cart, item, nil
}

// ===== COUPONS =====

// ApplyCoupon validates a code against the cart subtotal and caches
// the resulting discount on the cart.
func (s *CartService) ApplyCoupon(ctx context.Context, owner Owner, code string) (*model.Cart, error) {
	cart, err := s.findActiveCart(ctx, owner)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, model.ErrCartNotFound
	}

	for _, applied := range cart.AppliedCoupons {
		if applied.Code == code {
			return nil, model.ErrCouponAlreadyUsed
		}
	}

	coupon, err := s.validateCoupon(ctx, code, cart.Subtotal, owner.UserID)
	if err != nil {
		return nil, err
	}

	cart.AppliedCoupons = append(cart.AppliedCoupons, model.AppliedCoupon{
		CouponID:       coupon.ID,
		Code:           coupon.Code,
		Type:           coupon.Type,
		DiscountAmount: coupon.DiscountFor(cart.Subtotal),
	})

	if err := s.recomputeCart(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// RemoveCoupon drops an applied code from the cart.
func (s *CartService) RemoveCoupon(ctx context.Context, owner Owner, code string) (*model.Cart, error) {
	cart, err := s.findActiveCart(ctx, owner)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, model.ErrCartNotFound
	}

	kept := cart.AppliedCoupons[:0]
	found := false
	for _, applied := range cart.AppliedCoupons {
		if applied.Code == code {
			found = true
			continue
		}
		kept = append(kept, applied)
	}
	if !found {
		return nil, model.ErrCouponNotFound
	}
	cart.AppliedCoupons = kept

	if err := s.recomputeCart(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *CartService) validateCoupon(ctx context.Context, code string, subtotal decimal.Decimal, userID *uuid.UUID) (*model.Coupon, error) {
	coupon, err := s.couponRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if coupon == nil {
		return nil, model.ErrCouponNotFound
	}

	now := time.Now()
	switch {
	case !coupon.IsActive:
		return nil, model.NewCouponNotEligibleError("Coupon is inactive")
	case now.Before(coupon.StartsAt):
		return nil, model.NewCouponNotEligibleError("Coupon is not active yet")
	case now.After(coupon.EndsAt):
		return nil, model.NewCouponNotEligibleError("Coupon has expired")
	case subtotal.LessThan(coupon.MinOrderAmount):
		return nil, model.NewCouponNotEligibleError(
			fmt.Sprintf("Minimum order amount is %s", coupon.MinOrderAmount.StringFixed(2)))
	}

	if coupon.UsageLimit != nil {
		used, err := s.couponRepo.CountUsage(ctx, coupon.ID)
		if err != nil {
			return nil, err
		}
		if used >= *coupon.UsageLimit {
			return nil, model.NewCouponNotEligibleError("Coupon usage limit reached")
		}
	}
	if coupon.PerUserLimit != nil && userID != nil {
		used, err := s.couponRepo.CountUserUsage(ctx, coupon.ID, *userID)
		if err != nil {
			return nil, err
		}
		if used >= *coupon.PerUserLimit {
			return nil, model.NewCouponNotEligibleError("You have already used this coupon")
		}
	}
	return coupon, nil
}

// RevalidateCoupons re-derives every cached discount against the
// current subtotal. Codes that no longer qualify are dropped.
// Called at checkout entry, not during cart mutations.
func (s *CartService) RevalidateCoupons(ctx context.Context, cart *model.Cart) (dropped []string, err error) {
	if len(cart.AppliedCoupons) == 0 {
		return nil, nil
	}

	kept := cart.AppliedCoupons[:0]
	for _, applied := range cart.AppliedCoupons {
		coupon, err := s.validateCoupon(ctx, applied.Code, cart.Subtotal, cart.UserID)
		if err != nil {
			dropped = append(dropped, applied.Code)
			continue
		}
		applied.DiscountAmount = coupon.DiscountFor(cart.Subtotal)
		kept = append(kept, applied)
	}
	cart.AppliedCoupons = kept

	if err := s.recomputeCart(ctx, cart); err != nil {
		return dropped, err
	}
	return dropped, nil
}

// ===== TOTALS =====

// Recompute reloads the cart and rebuilds its totals cache from items
// and applied coupons.
func (s *CartService) Recompute(ctx context.Context, cartID uuid.UUID) error {
	cart, err := s.repo.GetByID(ctx, cartID)
	if err != nil {
		return err
	}
	if cart == nil {
		return model.ErrCartNotFound
	}
	return s.recomputeCart(ctx, cart)
}

func (s *CartService) recomputeCart(ctx context.Context, cart *model.Cart) error {
	items, err := s.repo.GetItems(ctx, cart.ID)
	if err != nil {
		return err
	}

	ComputeTotals(cart, items)
	return s.repo.UpdateTotals(ctx, cart)
}

// ComputeTotals rebuilds the totals cache in place.
// grandTotal = max(0, subtotal - discountTotal + shippingTotal + taxTotal).
func ComputeTotals(cart *model.Cart, items []model.CartItem) {
	subtotal := decimal.Zero
	count := 0
	for i := range items {
		subtotal = subtotal.Add(items[i].LineTotal)
		count += items[i].Quantity
	}

	discount := decimal.Zero
	for _, applied := range cart.AppliedCoupons {
		discount = discount.Add(applied.DiscountAmount)
	}

	cart.Subtotal = subtotal.Round(2)
	cart.DiscountTotal = discount.Round(2)
	cart.ItemCount = count

	grand := cart.Subtotal.Sub(cart.DiscountTotal).
		Add(cart.ShippingTotal).Add(cart.TaxTotal)
	if grand.IsNegative() {
		grand = decimal.Zero
	}
	cart.GrandTotal = grand.Round(2)
}
