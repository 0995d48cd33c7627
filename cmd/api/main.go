package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tutorcoach_backend/internal/calendar"
	"tutorcoach_backend/internal/email"
	"tutorcoach_backend/internal/enrollments"
	"tutorcoach_backend/internal/events"
	apphttp "tutorcoach_backend/internal/http"
	"tutorcoach_backend/internal/http/router"
	"tutorcoach_backend/internal/jobs"
	"tutorcoach_backend/internal/notification"
	"tutorcoach_backend/internal/paygateway"
	"tutorcoach_backend/internal/reconciliation"
	"tutorcoach_backend/internal/recordingbot"
	"tutorcoach_backend/internal/schedqueue"
	"tutorcoach_backend/internal/scheduler"
	"tutorcoach_backend/internal/sessions"
	"tutorcoach_backend/internal/sessions/orchestrator"
	sessrepo "tutorcoach_backend/internal/sessions/repository"
	"tutorcoach_backend/internal/storage"
	"tutorcoach_backend/internal/whatsapp"
	"tutorcoach_backend/migrations"
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

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS, ".")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

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
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// Per-session reminder tasks go through redis; without it the periodic
	// sweep is the only reminder path.
	reminders, closeReminders := initReminderScheduler(cfg, log)
	if closeReminders != nil {
		defer closeReminders()
	}

	// Report archive for reconciliation runs (MinIO, optional)
	var reportArchive reconciliation.ReportArchive
	var reportSigner reconciliation.ReportURLSigner
	if cfg.IsMinIOEnabled() {
		storageSvc, err := storage.NewMinIOService(cfg)
		if err != nil {
			log.Error("failed to initialize storage service", "error", err)
			panic("failed to initialize storage service: " + err.Error())
		}
		if err := withRetry(ctx, log, "ensure report bucket", 5, 2*time.Second, func() error {
			return storageSvc.EnsureBucketExists(ctx)
		}); err != nil {
			log.Error("failed to ensure report bucket exists", "error", err)
			panic("failed to ensure report bucket exists: " + err.Error())
		}
		reportArchive = storageSvc
		reportSigner = storageSvc
		log.Info("storage service initialized", "bucket", cfg.GetMinioBucketReconReports())
	}

	// External service adapters
	calendarClient := calendar.NewClient(cfg, log)
	botClient := recordingbot.NewClient(cfg, log)
	gatewayClient := paygateway.NewClient(cfg, log)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	// The enrollments service seeds pending session rows on creation, so it
	// gets its own handle on the sessions repository.
	enrollmentsModule := enrollments.NewModule(pool, val, log, sessrepo.New(pool), gatewayClient)

	schedqueueModule := schedqueue.NewModule(pool, val, log, eventBus)

	sessionsModule := sessions.NewModule(sessions.Deps{
		Pool:        pool,
		Validator:   val,
		Logger:      log,
		Bus:         eventBus,
		Config:      cfg,
		Calendar:    calendarClient,
		Bot:         botClient,
		Reminders:   reminders,
		Enrollments: enrollmentsModule.NewOrchestratorStore(),
		Queue:       schedqueueModule.Service,
	})

	// The queue retries through the orchestrator, which in turn enqueues on
	// bot failures. Attach the dispatcher after both sides exist.
	schedqueueModule.Service.SetDispatcher(sessionsModule.Orchestrator)

	reconRepo := reconciliation.NewRepository(pool)
	reconWorker := reconciliation.NewWorker(reconciliation.Config{
		Gateway:     gatewayClient,
		Ledger:      enrollmentsModule.Repository,
		Enrollments: enrollmentsModule.Service,
		Sessions:    sessionsModule.Repository,
		Dispatcher:  sessionsModule.Orchestrator,
		Runs:        reconRepo,
		Archive:     reportArchive,
		Bus:         eventBus,
		Logger:      log,
		Window:      cfg.GetReconWindow(),
		Concurrency: cfg.GetReconConcurrency(),
	})
	reconModule := reconciliation.NewModule(reconRepo, reportSigner)

	jobsModule := jobs.NewModule(jobs.Deps{
		Reconciler: reconWorker,
		Nudger:     sessionsModule.Nudger,
		Config:     cfg,
		Logger:     log,
	})

	// Notification module subscribes to domain events (not HTTP-facing)
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

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			sessionsModule,
			enrollmentsModule,
			schedqueueModule,
			reconModule,
			jobsModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownCtx
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initReminderScheduler(cfg config.SchedulerConfig, log *logger.Logger) (orchestrator.ReminderScheduler, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; per-session reminders disabled")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
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
