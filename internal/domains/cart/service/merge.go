package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"orderflow-backend/internal/domains/cart/model"
	"orderflow-backend/internal/domains/cart/repository"
	"orderflow-backend/pkg/logger"
)

// mergeLockTTL bounds how long a crashed merge can block the next one.
const mergeLockTTL = 30 * time.Second

// MergeGuestIntoUser migrates a guest cart into the user's cart after
// login. Runs under a per-user lock; the row changes commit in one
// transaction so a failure leaves both carts intact. Calling it again
// after success is a no-op because the guest cart is gone.
func (s *CartService) MergeGuestIntoUser(ctx context.Context, guestToken string, userID uuid.UUID) (*model.MergeResult, error) {
	release, err := s.locker.Acquire(ctx, fmt.Sprintf("cart:merge:%s", userID), mergeLockTTL)
	if err != nil {
		return nil, model.ErrMergeInProgress
	}
	defer release()

	// Step 1: locate the guest cart
	guestCart, err := s.repo.GetActiveByGuestToken(ctx, guestToken)
	if err != nil {
		return nil, err
	}
	if guestCart == nil {
		return &model.MergeResult{AlreadyEmpty: true}, nil
	}

	// Step 2: no user cart, just re-own the guest cart
	userCart, err := s.repo.GetActiveByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if userCart == nil {
		if err := s.repo.Reparent(ctx, guestCart.ID, userID); err != nil {
			return nil, err
		}
		logger.Info("Guest cart reparented", map[string]interface{}{
			"cart_id": guestCart.ID.String(),
			"user_id": userID.String(),
		})
		return &model.MergeResult{
			CartID:     guestCart.ID,
			Reparented: true,
			GrandTotal: guestCart.GrandTotal,
			ItemCount:  guestCart.ItemCount,
		}, nil
	}

	// Step 3: build the merge plan
	guestItems, err := s.repo.GetItems(ctx, guestCart.ID)
	if err != nil {
		return nil, err
	}
	userItems, err := s.repo.GetItems(ctx, userCart.ID)
	if err != nil {
		return nil, err
	}

	plan := buildMergePlan(guestCart, userCart, guestItems, userItems)

	// Step 4: apply atomically
	if err := s.repo.ApplyMerge(ctx, plan); err != nil {
		return nil, err
	}

	logger.Info("Guest cart merged", map[string]interface{}{
		"guest_cart_id": guestCart.ID.String(),
		"user_cart_id":  userCart.ID.String(),
		"merged_lines":  len(plan.UpdateLines),
		"moved_lines":   len(plan.InsertLines),
	})

	return &model.MergeResult{
		CartID:      userCart.ID,
		MergedLines: len(plan.UpdateLines),
		MovedLines:  len(plan.InsertLines),
		GrandTotal:  userCart.GrandTotal,
		ItemCount:   userCart.ItemCount,
	}, nil
}

// buildMergePlan coalesces guest lines into the user cart. On a variant
// match the quantities combine and the newer price snapshot (by
// capturedAt) wins. Coupon discounts keep their cached amounts, the
// re-validation against the merged subtotal happens at checkout entry.
func buildMergePlan(guestCart, userCart *model.Cart, guestItems, userItems []model.CartItem) *repository.MergePlan {
	byVariant := make(map[string]*model.CartItem, len(userItems))
	for i := range userItems {
		byVariant[userItems[i].VariantKey()] = &userItems[i]
	}

	plan := &repository.MergePlan{
		GuestCartID: guestCart.ID,
		UserCart:    userCart,
	}

	for i := range guestItems {
		guest := &guestItems[i]
		existing, ok := byVariant[guest.VariantKey()]
		if !ok {
			moved := *guest
			moved.CartID = userCart.ID
			plan.InsertLines = append(plan.InsertLines, moved)
			byVariant[guest.VariantKey()] = &plan.InsertLines[len(plan.InsertLines)-1]
			continue
		}

		merged := *existing
		merged.Quantity = existing.Quantity + guest.Quantity
		if merged.Quantity > model.MaxQuantityPerLine {
			merged.Quantity = model.MaxQuantityPerLine
		}

		newer := existing
		if guest.PriceSnapshot.CapturedAt.After(existing.PriceSnapshot.CapturedAt) {
			newer = guest
		}
		merged.UnitPrice = newer.UnitPrice
		merged.UnitMRP = newer.UnitMRP
		merged.LineDiscount = newer.LineDiscount
		merged.PriceSnapshot = newer.PriceSnapshot
		merged.ProductStatus = newer.ProductStatus
		merged.LineTotal = merged.ComputeLineTotal()

		plan.UpdateLines = append(plan.UpdateLines, merged)
		*existing = merged
	}

	// Recompute totals over the surviving lines
	final := make([]model.CartItem, 0, len(userItems)+len(plan.InsertLines))
	final = append(final, userItems...)
	final = append(final, plan.InsertLines...)
	ComputeTotals(userCart, final)

	return plan
}
