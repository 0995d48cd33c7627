package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tutorcoach_backend/internal/calendar"
	"tutorcoach_backend/internal/email"
	"tutorcoach_backend/internal/enrollments"
	"tutorcoach_backend/internal/events"
	"tutorcoach_backend/internal/notification"
	"tutorcoach_backend/internal/paygateway"
	"tutorcoach_backend/internal/reconciliation"
	"tutorcoach_backend/internal/recordingbot"
	"tutorcoach_backend/internal/schedqueue"
	"tutorcoach_backend/internal/scheduler"
	"tutorcoach_backend/internal/sessions"
	sessrepo "tutorcoach_backend/internal/sessions/repository"
	"tutorcoach_backend/internal/storage"
	"tutorcoach_backend/internal/whatsapp"
	"tutorcoach_backend/platform/config"
	"tutorcoach_backend/platform/db"
	"tutorcoach_backend/platform/logger"
	"tutorcoach_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	// Reminder and reconciliation handlers publish domain events; deliver
	// them from this process too.
	catalog, err := notification.LoadCatalog()
	if err != nil {
		log.Error("failed to load notification templates", "error", err)
		panic("failed to load notification templates: " + err.Error())
	}
	notifier := notification.NewNotifier(
		catalog,
		notification.NewContactRepository(pool),
		email.NewSMTPSender(cfg),
		whatsapp.NewClient(cfg, log),
		cfg.GetOperatorEmail(),
		log,
	)
	notifier.Register(eventBus)

	var reportArchive reconciliation.ReportArchive
	if cfg.IsMinIOEnabled() {
		storageSvc, err := storage.NewMinIOService(cfg)
		if err != nil {
			log.Error("failed to initialize storage service", "error", err)
			panic("failed to initialize storage service: " + err.Error())
		}
		reportArchive = storageSvc
	}

	// Worker-side lifecycle wiring: reconciliation recovery dispatches
	// schedule commands through the same orchestrator the API uses.
	gatewayClient := paygateway.NewClient(cfg, log)
	enrollmentsModule := enrollments.NewModule(pool, val, log, sessrepo.New(pool), gatewayClient)
	schedqueueModule := schedqueue.NewModule(pool, val, log, eventBus)
	sessionsModule := sessions.NewModule(sessions.Deps{
		Pool:        pool,
		Validator:   val,
		Logger:      log,
		Bus:         eventBus,
		Config:      cfg,
		Calendar:    calendar.NewClient(cfg, log),
		Bot:         recordingbot.NewClient(cfg, log),
		Enrollments: enrollmentsModule.NewOrchestratorStore(),
		Queue:       schedqueueModule.Service,
	})
	schedqueueModule.Service.SetDispatcher(sessionsModule.Orchestrator)

	reconWorker := reconciliation.NewWorker(reconciliation.Config{
		Gateway:     gatewayClient,
		Ledger:      enrollmentsModule.Repository,
		Enrollments: enrollmentsModule.Service,
		Sessions:    sessionsModule.Repository,
		Dispatcher:  sessionsModule.Orchestrator,
		Runs:        reconciliation.NewRepository(pool),
		Archive:     reportArchive,
		Bus:         eventBus,
		Logger:      log,
		Window:      cfg.GetReconWindow(),
		Concurrency: cfg.GetReconConcurrency(),
	})

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	go runPeriodicEnqueue(ctx, client, cfg.GetReconInterval(), log)

	worker, err := scheduler.NewWorker(cfg, sessionsModule.Nudger, reconWorker, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

// runPeriodicEnqueue drives the recurring tasks: an hourly reminder sweep
// to catch sessions the per-session path missed, and a reconciliation pass
// per configured interval.
func runPeriodicEnqueue(ctx context.Context, client *scheduler.Client, reconInterval time.Duration, log *logger.Logger) {
	if reconInterval <= 0 {
		reconInterval = 24 * time.Hour
	}

	sweepTicker := time.NewTicker(time.Hour)
	defer sweepTicker.Stop()
	reconTicker := time.NewTicker(reconInterval)
	defer reconTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweepTicker.C:
			if err := client.EnqueueNudgeSweep(ctx); err != nil {
				log.Error("failed to enqueue nudge sweep", "error", err)
			}
		case <-reconTicker.C:
			if err := client.EnqueueReconciliationRun(ctx); err != nil {
				log.Error("failed to enqueue reconciliation run", "error", err)
			}
		}
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
