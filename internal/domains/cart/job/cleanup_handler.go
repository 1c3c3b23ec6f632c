package job

import (
	"context"
	"time"

	"github.com/hibiken/asynq"

	"orderflow-backend/internal/domains/cart/repository"
	"orderflow-backend/pkg/logger"
)

// CleanupHandler marks idle carts abandoned and hard-deletes abandoned
// carts past the retention window.
type CleanupHandler struct {
	repo       repository.RepositoryInterface
	expiryDays int
	batchLimit int
}

func NewCleanupHandler(repo repository.RepositoryInterface, expiryDays, batchLimit int) *CleanupHandler {
	return &CleanupHandler{
		repo:       repo,
		expiryDays: expiryDays,
		batchLimit: batchLimit,
	}
}

func (h *CleanupHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	now := time.Now()
	idleCutoff := now.AddDate(0, 0, -h.expiryDays)

	abandoned, err := h.repo.MarkAbandonedIdleSince(ctx, idleCutoff, h.batchLimit)
	if err != nil {
		return err
	}

	deleteCutoff := now.AddDate(0, 0, -h.expiryDays)
	deleted, err := h.repo.DeleteAbandonedBefore(ctx, deleteCutoff, h.batchLimit)
	if err != nil {
		return err
	}

	logger.Info("Cart cleanup completed", map[string]interface{}{
		"marked_abandoned": abandoned,
		"deleted":          deleted,
	})
	return nil
}
