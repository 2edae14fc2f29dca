package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/examkit/practice-api/internal/composer"
	"github.com/examkit/practice-api/internal/config"
	"github.com/examkit/practice-api/internal/domain/srs"
	"github.com/examkit/practice-api/internal/events"
	"github.com/examkit/practice-api/internal/itembank"
	"github.com/examkit/practice-api/internal/platform/postgres"
	"github.com/examkit/practice-api/internal/scheduler"
	"github.com/examkit/practice-api/internal/service"
	"github.com/examkit/practice-api/internal/service/auth"
	"github.com/examkit/practice-api/internal/store"
	"github.com/examkit/practice-api/internal/task"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	// Stores
	sessionStore  store.ExamSessionStore
	masteryStore  store.MasteryStore
	exposureStore store.ExposureStore

	// Content and composition
	bank         *itembank.Bank
	examComposer *composer.Composer

	// Services
	jwtService     auth.JWTService
	srsService     srs.Service
	masteryService service.MasteryService
	sessionService service.SessionService
	reviewSched    *scheduler.Scheduler

	// Event system and background finalization
	eventEmitter   events.EventEmitter
	taskQueue      *task.TaskQueue
	workerPool     *task.WorkerPool
	finalizeTimers *task.FinalizeTimerSet
	sweeper        *task.StaleSessionSweeper
}

// newApplication creates a new application instance with all dependencies
// initialized. It accepts core dependencies like configuration, logger, and
// database connection that must be established before application
// initialization.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	// Load authored course content and index it
	courses, err := itembank.LoadDir(cfg.Content.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load course content: %w", err)
	}
	app.bank, err = itembank.New(courses)
	if err != nil {
		return nil, fmt.Errorf("failed to build item bank: %w", err)
	}
	logger.Info("item bank loaded",
		"courses", len(courses),
		"content_dir", cfg.Content.Dir)

	// Stores
	app.sessionStore = postgres.NewPostgresExamSessionStore(db, logger)
	app.masteryStore = postgres.NewPostgresMasteryStore(db, logger)
	app.exposureStore = postgres.NewPostgresExposureStore(db, logger)

	// Composition and review ranking
	app.examComposer = composer.New(app.bank, app.exposureStore, logger)
	app.reviewSched = scheduler.New(app.masteryStore, scheduler.Weights{
		Overdue:  cfg.Review.WeightOverdue,
		Weakness: cfg.Review.WeightWeakness,
	}, logger)

	// Services
	app.srsService = srs.NewDefaultService()
	app.masteryService, err = service.NewMasteryService(
		app.masteryStore, app.srsService, cfg.Review.WeaknessThreshold, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create mastery service: %w", err)
	}

	// The emitter and inactivity timers are wired before the session service
	// so the service can arm a deferred finalize per session.
	emitter := events.NewInMemoryEventEmitter(logger)
	app.eventEmitter = emitter
	app.finalizeTimers, err = task.NewFinalizeTimerSet(emitter, cfg.Session.InactivityTimeout, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create finalize timers: %w", err)
	}

	app.sessionService, err = service.NewSessionService(
		app.sessionStore,
		app.exposureStore,
		app.masteryService,
		app.examComposer,
		app.bank,
		db,
		app.finalizeTimers,
		service.SessionServiceConfig{
			DefaultTotalItems: cfg.Exam.DefaultTotalItems,
			PassCutoff:        cfg.Exam.PassCutoff,
			CooldownWindow:    time.Duration(cfg.Exam.CooldownDays) * 24 * time.Hour,
			BlueprintEpsilon:  cfg.Exam.BlueprintEpsilon,
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session service: %w", err)
	}

	if err := app.setupFinalizePipeline(emitter); err != nil {
		return nil, err
	}

	logger.Info("application initialized successfully")
	return app, nil
}

// setupFinalizePipeline wires the back half of deferred finalization: the
// handler turns finalize-request events (from per-session timers or the
// recovery sweep) into tasks, and the worker pool executes them against the
// session service.
func (app *application) setupFinalizePipeline(emitter *events.InMemoryEventEmitter) error {
	app.taskQueue = task.NewTaskQueue(app.config.Task.QueueSize, app.logger)
	app.workerPool = task.NewWorkerPool(app.taskQueue, task.WorkerPoolConfig{
		WorkerCount: app.config.Task.WorkerCount,
	}, app.logger)

	factory, err := task.NewSessionFinalizeTaskFactory(app.sessionService, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create finalize task factory: %w", err)
	}

	emitter.RegisterHandler(task.NewFinalizeEventHandler(factory, app.taskQueue, app.logger))

	app.sweeper, err = task.NewStaleSessionSweeper(app.sessionStore, app.eventEmitter,
		task.StaleSessionSweeperConfig{
			InactivityTimeout: app.config.Session.InactivityTimeout,
			Interval:          app.config.Session.SweepInterval,
		}, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create stale session sweeper: %w", err)
	}

	return nil
}

// Run starts the background pipeline and the HTTP server, handling lifecycle
// and cleanup. It returns an error if the server fails to start or
// encounters problems.
func (app *application) Run(ctx context.Context) error {
	app.workerPool.Start()
	app.sweeper.Start()

	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.finalizeTimers != nil {
		app.finalizeTimers.Stop()
	}
	if app.sweeper != nil {
		app.sweeper.Stop()
	}
	if app.taskQueue != nil {
		app.taskQueue.Close()
	}
	if app.workerPool != nil {
		app.workerPool.Stop()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}
}
