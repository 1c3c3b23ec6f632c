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
	"orderflow-backend/pkg/logger"
)

// PriceTolerance is the revalidation epsilon. Deltas at or below it are
// treated as noise and leave the line untouched.
var PriceTolerance = decimal.NewFromFloat(0.01)

// Revalidator reconciles cached cart prices and availability against
// the catalog and pricing services.
type Revalidator struct {
	repo    repository.RepositoryInterface
	catalog *clients.CatalogClient
	pricing *clients.PricingClient
}

func NewRevalidator(
	repo repository.RepositoryInterface,
	catalog *clients.CatalogClient,
	pricing *clients.PricingClient,
) *Revalidator {
	return &Revalidator{
		repo:    repo,
		catalog: catalog,
		pricing: pricing,
	}
}

// RevalidateCart re-prices every line and marks unavailable items.
// Upstream failure returns the error with no mutation; re-running on
// already-fresh data yields an empty result.
func (v *Revalidator) RevalidateCart(ctx context.Context, cartID uuid.UUID) (*model.RevalidationResult, error) {
	items, err := v.repo.GetItems(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return &model.RevalidationResult{}, nil
	}

	// Step 1: one bulk pricing call, one bulk catalog call
	variantIDs := make([]uuid.UUID, 0, len(items))
	productIDs := make([]uuid.UUID, 0, len(items))
	for i := range items {
		variantIDs = append(variantIDs, items[i].VariantID)
		productIDs = append(productIDs, items[i].ProductID)
	}

	prices, err := v.pricing.GetPrices(ctx, variantIDs)
	if err != nil {
		return nil, err
	}
	products, err := v.catalog.GetProducts(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	result := &model.RevalidationResult{}
	now := time.Now()
	increase := decimal.Zero
	decrease := decimal.Zero

	for i := range items {
		item := &items[i]

		// Step 2: availability
		product, productExists := products[item.ProductID]
		variantPrice, variantExists := prices[item.VariantID]
		if productExists && !product.Purchasable() {
			productExists = false
		}

		item.ProductStatus = model.ProductStatusInfo{
			ProductExists: productExists,
			VariantExists: variantExists,
			LastCheckedAt: now,
		}

		if !productExists || !variantExists {
			reason := "product no longer available"
			if productExists {
				reason = "variant no longer available"
			}
			result.Unavailable = append(result.Unavailable, model.UnavailableItem{
				ItemID:    item.ID,
				ProductID: item.ProductID,
				VariantID: item.VariantID,
				Reason:    reason,
			})
			if err := v.repo.UpdateItemPricing(ctx, item); err != nil {
				return nil, err
			}
			continue
		}

		// Step 3: price drift beyond tolerance rewrites the line
		delta := variantPrice.UnitPrice.Sub(item.UnitPrice)
		if delta.Abs().GreaterThan(PriceTolerance) {
			oldPrice := item.UnitPrice
			lineDelta := delta.Mul(decimal.NewFromInt(int64(item.Quantity)))

			item.UnitPrice = variantPrice.UnitPrice
			item.UnitMRP = variantPrice.UnitPrice
			item.LineTotal = item.ComputeLineTotal()
			item.PriceChanged = true
			item.PriceChange = &model.PriceChange{
				OldPrice:  oldPrice,
				NewPrice:  variantPrice.UnitPrice,
				ChangedAt: now,
			}
			item.PriceSnapshot = model.PriceSnapshot{
				UnitPrice:  variantPrice.UnitPrice,
				UnitMRP:    variantPrice.UnitPrice,
				CapturedAt: now,
			}

			result.PriceChanges = append(result.PriceChanges, model.LinePriceChange{
				ItemID:   item.ID,
				OldPrice: oldPrice,
				NewPrice: variantPrice.UnitPrice,
				Delta:    lineDelta,
			})
			if lineDelta.IsPositive() {
				increase = increase.Add(lineDelta)
			} else {
				decrease = decrease.Add(lineDelta.Abs())
			}
		}

		// Always persist: the LastCheckedAt stamp keeps the line out of
		// the next validation sweep even when nothing else moved.
		if err := v.repo.UpdateItemPricing(ctx, item); err != nil {
			return nil, err
		}
	}

	// Step 4: aggregate warnings
	if increase.IsPositive() {
		result.Warnings = append(result.Warnings, model.RevalidationWarning{
			Code:     model.WarningPriceIncrease,
			Severity: model.SeverityMedium,
			Message:  fmt.Sprintf("Prices went up by %s since items were added", increase.StringFixed(2)),
			Amount:   increase,
		})
	}
	if decrease.IsPositive() {
		result.Warnings = append(result.Warnings, model.RevalidationWarning{
			Code:     model.WarningPriceDecrease,
			Severity: model.SeverityLow,
			Message:  fmt.Sprintf("Prices dropped by %s since items were added", decrease.StringFixed(2)),
			Amount:   decrease,
		})
	}
	if len(result.Unavailable) > 0 {
		result.Warnings = append(result.Warnings, model.RevalidationWarning{
			Code:     model.WarningItemsUnavailable,
			Severity: model.SeverityHigh,
			Message:  fmt.Sprintf("%d items are no longer available", len(result.Unavailable)),
			Amount:   decimal.Zero,
		})
	}

	if !result.Clean() {
		logger.Info("Cart revalidated with changes", map[string]interface{}{
			"cart_id":       cartID.String(),
			"price_changes": len(result.PriceChanges),
			"unavailable":   len(result.Unavailable),
		})
	}
	return result, nil
}
