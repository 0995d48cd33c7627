package scheduler

import (
	"context"
	"fmt"

	"tutorcoach_backend/internal/reconciliation"
	"tutorcoach_backend/platform/config"
	"tutorcoach_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Reminder handles session reminder delivery; the concrete implementation is
// the sessions Nudger.
type Reminder interface {
	Remind(ctx context.Context, sessionID uuid.UUID) error
	RunOnce(ctx context.Context) (int, error)
}

// Reconciler runs one payment reconciliation pass.
type Reconciler interface {
	RunOnce(ctx context.Context) (*reconciliation.Summary, error)
}

// Worker consumes background tasks from redis.
type Worker struct {
	server     *asynq.Server
	mux        *asynq.ServeMux
	reminder   Reminder
	reconciler Reconciler
	log        *logger.Logger
}

// NewWorker creates the asynq worker and registers all task handlers.
func NewWorker(cfg config.SchedulerConfig, reminder Reminder, reconciler Reconciler, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:     server,
		mux:        mux,
		reminder:   reminder,
		reconciler: reconciler,
		log:        log,
	}

	mux.HandleFunc(TaskSessionNudge, w.handleSessionNudge)
	mux.HandleFunc(TaskNudgeSweep, w.handleNudgeSweep)
	mux.HandleFunc(TaskReconciliationRun, w.handleReconciliationRun)

	return w, nil
}

// Run serves tasks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleSessionNudge(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseSessionNudgePayload(task)
	if err != nil {
		return err
	}

	sessionID, err := uuid.Parse(payload.SessionID)
	if err != nil {
		return err
	}

	return w.reminder.Remind(ctx, sessionID)
}

func (w *Worker) handleNudgeSweep(ctx context.Context, _ *asynq.Task) error {
	count, err := w.reminder.RunOnce(ctx)
	if err != nil {
		return err
	}
	w.log.Info("nudge sweep completed", "reminders", count)
	return nil
}

func (w *Worker) handleReconciliationRun(ctx context.Context, _ *asynq.Task) error {
	if w.reconciler == nil {
		return nil
	}
	_, err := w.reconciler.RunOnce(ctx)
	return err
}
