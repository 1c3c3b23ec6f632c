package job

import (
	"context"
	"strconv"
	"time"

	"github.com/hibiken/asynq"

	"orderflow-backend/internal/clients"
	"orderflow-backend/internal/domains/cart/repository"
	"orderflow-backend/pkg/logger"
)

// ReminderHandler sends one nudge per idle cart. Carts idle for more
// than afterHours but less than maxHours get a single reminder.
type ReminderHandler struct {
	repo       repository.RepositoryInterface
	notifier   *clients.NotificationClient
	afterHours int
	maxHours   int
	batchLimit int
}

func NewReminderHandler(
	repo repository.RepositoryInterface,
	notifier *clients.NotificationClient,
	afterHours, maxHours, batchLimit int,
) *ReminderHandler {
	return &ReminderHandler{
		repo:       repo,
		notifier:   notifier,
		afterHours: afterHours,
		maxHours:   maxHours,
		batchLimit: batchLimit,
	}
}

func (h *ReminderHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	now := time.Now()
	idleAfter := now.Add(-time.Duration(h.afterHours) * time.Hour)
	idleBefore := now.Add(-time.Duration(h.maxHours) * time.Hour)

	carts, err := h.repo.ListForReminder(ctx, idleAfter, idleBefore, h.batchLimit)
	if err != nil {
		return err
	}

	sent := 0
	for i := range carts {
		cart := &carts[i]
		if cart.UserID == nil {
			continue
		}

		err := h.notifier.Send(ctx, *cart.UserID, "abandoned_cart_reminder", map[string]string{
			"cartId":    cart.ID.String(),
			"itemCount": strconv.Itoa(cart.ItemCount),
		})
		if err != nil {
			// Skip marking so the next run retries this cart.
			continue
		}

		if err := h.repo.MarkReminderSent(ctx, cart.ID, now); err != nil {
			return err
		}
		sent++
	}

	logger.Info("Abandoned cart reminders dispatched", map[string]interface{}{
		"candidates": len(carts),
		"sent":       sent,
	})
	return nil
}
