package job

import (
	"context"
	"time"

	"github.com/hibiken/asynq"

	"orderflow-backend/internal/clients"
	"orderflow-backend/internal/domains/checkout/repository"
	"orderflow-backend/pkg/logger"
)

// ExpiryHandler flips overdue sessions to expired and releases their
// inventory reservations. The owning cart stays active.
type ExpiryHandler struct {
	repo       repository.RepositoryInterface
	inventory  *clients.InventoryClient
	batchLimit int
}

func NewExpiryHandler(repo repository.RepositoryInterface, inventory *clients.InventoryClient, batchLimit int) *ExpiryHandler {
	return &ExpiryHandler{
		repo:       repo,
		inventory:  inventory,
		batchLimit: batchLimit,
	}
}

func (h *ExpiryHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	expired, err := h.repo.ExpireStale(ctx, time.Now(), h.batchLimit)
	if err != nil {
		return err
	}

	released := 0
	for _, session := range expired {
		if session.ReservationID == nil {
			continue
		}
		if err := h.inventory.Release(ctx, *session.ReservationID, "checkout session expired"); err != nil {
			// The inventory hold has its own TTL, so a failed release
			// self-heals; log and keep going.
			logger.Error("Failed to release reservation for expired session", err)
			continue
		}
		released++
	}

	logger.Info("Checkout expiry sweep completed", map[string]interface{}{
		"expired":               len(expired),
		"reservations_released": released,
	})
	return nil
}
