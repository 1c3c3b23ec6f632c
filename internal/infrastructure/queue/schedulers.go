package queue

import (
	"time"

	"github.com/hibiken/asynq"

	"orderflow-backend/internal/shared"
	"orderflow-backend/pkg/logger"
)

// Scheduler registers the recurring lifecycle jobs with asynq.
// Cron expressions run in the business timezone so daily jobs land in
// the local low-traffic window.
type Scheduler struct {
	scheduler *asynq.Scheduler
}

func NewScheduler(redisOpt asynq.RedisClientOpt, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	scheduler := asynq.NewScheduler(
		redisOpt,
		&asynq.SchedulerOpts{
			Location: loc,
			LogLevel: asynq.InfoLevel,
		},
	)

	return &Scheduler{scheduler: scheduler}
}

// RegisterJobs wires every scheduled task. Payloads are empty, the
// handlers read their windows and batch limits from config.
func (s *Scheduler) RegisterJobs() error {
	jobs := []struct {
		spec     string
		taskType string
		queue    string
		timeout  time.Duration
	}{
		// Expired carts pile up slowly, once a night is enough.
		{"0 2 * * *", shared.TypeCartCleanup, shared.QueueLow, 10 * time.Minute},

		// Checkout sessions hold inventory reservations, sweep hourly
		// so stale holds never outlive their window by much.
		{"0 * * * *", shared.TypeCheckoutExpiry, shared.QueueDefault, 5 * time.Minute},

		// Reminder send window is bounded by AbandonedReminderMaxHours,
		// every 6 hours keeps each cart inside the window.
		{"0 */6 * * *", shared.TypeCartAbandonedReminder, shared.QueueLow, 10 * time.Minute},

		// Snapshot drift in idle carts. Batch-limited, cheap to rerun.
		{"30 */6 * * *", shared.TypeCartItemValidation, shared.QueueLow, 10 * time.Minute},

		// Paid orders confirm automatically after the grace period.
		{"0 */2 * * *", shared.TypeOrderAutoConfirm, shared.QueueDefault, 5 * time.Minute},

		// Safety net for lost webhooks, polls the gateway for payments
		// still pending inside the reconciliation window.
		{"15 */4 * * *", shared.TypePaymentReconciliation, shared.QueueDefault, 10 * time.Minute},

		// Delivered orders without an invoice get one generated.
		{"45 */6 * * *", shared.TypeInvoiceAutoGenerate, shared.QueueLow, 15 * time.Minute},
	}

	for _, j := range jobs {
		task := asynq.NewTask(j.taskType, nil)
		_, err := s.scheduler.Register(
			j.spec,
			task,
			asynq.Queue(j.queue),
			asynq.MaxRetry(2),
			asynq.Timeout(j.timeout),
			// One in flight per task type, a slow sweep must not stack.
			asynq.Unique(j.timeout),
		)
		if err != nil {
			logger.Error("Failed to register scheduled job "+j.taskType, err)
			return err
		}
		logger.Info("✓ Registered scheduled job", map[string]interface{}{
			"task": j.taskType,
			"cron": j.spec,
		})
	}

	return nil
}

func (s *Scheduler) Start() error {
	return s.scheduler.Run()
}

func (s *Scheduler) Shutdown() {
	s.scheduler.Shutdown()
}
