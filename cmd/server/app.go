package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/inkwelldev/inkwell-api/internal/api"
	"github.com/inkwelldev/inkwell-api/internal/config"
	"github.com/inkwelldev/inkwell-api/internal/events"
	"github.com/inkwelldev/inkwell-api/internal/extraction"
	"github.com/inkwelldev/inkwell-api/internal/platform/gemini"
	"github.com/inkwelldev/inkwell-api/internal/platform/postgres"
	"github.com/inkwelldev/inkwell-api/internal/service"
	"github.com/inkwelldev/inkwell-api/internal/task"
)

// application holds the fully wired server dependencies.
type application struct {
	config *config.Config
	logger *slog.Logger

	db         *sql.DB
	broker     *events.Broker
	taskRunner *task.TaskRunner

	itemHandler *api.ItemHandler
	wsHandler   *api.WSHandler
}

// newApplication wires every component of the service together:
// stores, the extraction strategy, the task runner, the notification
// broker, and the HTTP handlers. The returned application is ready to
// Run but has not started its workers yet.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	itemStore := postgres.NewPostgresItemStore(db, logger)
	taskStore := postgres.NewPostgresTaskStore(db, logger)
	sessions := postgres.NewSessionProvider(db, logger)

	broker := events.NewBroker(cfg.Notify.SubscriberBuffer, logger)

	extractor, err := buildExtractor(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	runnerConfig := task.TaskRunnerConfig{
		WorkerCount:            cfg.Task.WorkerCount,
		QueueSize:              cfg.Task.QueueSize,
		StuckTaskAge:           cfg.Task.StuckTaskAge,
		StuckTaskCheckInterval: cfg.Task.StuckTaskCheckInterval,
	}
	runner := task.NewTaskRunner(taskStore, runnerConfig, logger)

	factory := task.NewItemEnrichmentTaskFactory(sessions, extractor, broker, cfg.Notify.Channel, logger)
	runner.SetReviver(factory)

	emitter := events.NewInMemoryEventEmitter(logger)
	emitter.RegisterHandler(task.NewTaskFactoryEventHandler(factory, runner, logger))

	itemService, err := service.NewItemService(db, itemStore, emitter, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create item service: %w", err)
	}

	return &application{
		config:      cfg,
		logger:      logger,
		db:          db,
		broker:      broker,
		taskRunner:  runner,
		itemHandler: api.NewItemHandler(itemService),
		wsHandler:   api.NewWSHandler(broker, cfg.Notify.Channel, logger),
	}, nil
}

// buildExtractor assembles the dual-strategy extractor. When no API key
// is configured the remote extractor is skipped entirely and every item
// is enriched with the local heuristics.
func buildExtractor(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*extraction.Strategy, error) {
	if cfg.LLM.APIKey == "" {
		logger.Info("no LLM API key configured, using local extraction only")
		return extraction.NewStrategy(nil, logger), nil
	}

	remote, err := gemini.NewGeminiExtractor(ctx, logger, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini extractor: %w", err)
	}
	return extraction.NewStrategy(remote, logger), nil
}

// Run starts the background workers and the HTTP server, blocking until
// shutdown completes.
func (app *application) Run(ctx context.Context) error {
	if err := app.taskRunner.Start(); err != nil {
		return fmt.Errorf("failed to start task runner: %w", err)
	}

	router := app.setupRouter()
	return app.startServer(ctx, router)
}

// cleanup releases resources in reverse dependency order. The task
// runner drains first so in-flight enrichments can still publish their
// terminal notifications before the broker closes.
func (app *application) cleanup() {
	app.logger.Info("cleaning up application resources")

	app.taskRunner.Stop()
	app.broker.Close()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database connection", "error", err)
	}

	app.logger.Info("application resources cleaned up")
}
