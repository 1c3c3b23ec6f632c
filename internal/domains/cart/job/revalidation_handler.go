package job

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"

	"orderflow-backend/internal/clients"
	"orderflow-backend/internal/domains/cart/repository"
	"orderflow-backend/internal/domains/cart/service"
	"orderflow-backend/pkg/logger"
)

// RevalidationHandler runs the pricing/availability pass over active
// carts whose lines have not been checked recently.
type RevalidationHandler struct {
	repo        repository.RepositoryInterface
	revalidator *service.Revalidator
	cartService *service.CartService
	staleAfter  time.Duration
	batchLimit  int
}

func NewRevalidationHandler(
	repo repository.RepositoryInterface,
	revalidator *service.Revalidator,
	cartService *service.CartService,
	staleAfter time.Duration,
	batchLimit int,
) *RevalidationHandler {
	return &RevalidationHandler{
		repo:        repo,
		revalidator: revalidator,
		cartService: cartService,
		staleAfter:  staleAfter,
		batchLimit:  batchLimit,
	}
}

func (h *RevalidationHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	checkedBefore := time.Now().Add(-h.staleAfter)

	cartIDs, err := h.repo.ListActiveCartIDs(ctx, checkedBefore, h.batchLimit)
	if err != nil {
		return err
	}

	checked, changed, failed := 0, 0, 0
	for _, cartID := range cartIDs {
		result, err := h.revalidator.RevalidateCart(ctx, cartID)
		if err != nil {
			failed++
			// Both collaborators down means every remaining cart will
			// fail too, stop the run early.
			if errors.Is(err, clients.ErrPricingUnavailable) || errors.Is(err, clients.ErrCatalogUnavailable) {
				break
			}
			continue
		}
		checked++

		if !result.Clean() {
			changed++
			if err := h.cartService.Recompute(ctx, cartID); err != nil {
				failed++
			}
		}
	}

	logger.Info("Cart item validation completed", map[string]interface{}{
		"checked": checked,
		"changed": changed,
		"failed":  failed,
	})
	return nil
}
