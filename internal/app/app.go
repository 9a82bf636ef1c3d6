// -----------------------------------------------------------------------
// Application wiring - builds and owns every component of the worker
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/fanflow/fanflow/internal/browser"
	"github.com/fanflow/fanflow/internal/common"
	"github.com/fanflow/fanflow/internal/handlers"
	"github.com/fanflow/fanflow/internal/interfaces"
	"github.com/fanflow/fanflow/internal/jobs"
	"github.com/fanflow/fanflow/internal/services/actions"
	"github.com/fanflow/fanflow/internal/services/auth"
	"github.com/fanflow/fanflow/internal/services/events"
	"github.com/fanflow/fanflow/internal/services/scheduler"
	"github.com/fanflow/fanflow/internal/services/solver"
	"github.com/fanflow/fanflow/internal/services/templates"
	badgerstore "github.com/fanflow/fanflow/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager
	EventService   interfaces.EventService

	// Browser session lifecycle
	SessionStore  *browser.Store
	Launcher      *browser.Launcher
	SolverBridge  *solver.Bridge
	Authenticator *auth.Authenticator

	// Work execution
	Executor    *actions.Executor
	Runner      *jobs.Runner
	AdScheduler *scheduler.AdScheduler
	Renderer    *templates.Renderer

	// HTTP handlers
	JobHandler      *handlers.JobHandler
	TemplateHandler *handlers.TemplateHandler
	KVHandler       *handlers.KVHandler
	StatusHandler   *handlers.StatusHandler
	WSHandler       *handlers.WebSocketHandler
}

// New builds the application graph from configuration
func New(ctx context.Context, config *common.Config) (*App, error) {
	logger := common.GetLogger()

	storageManager, err := badgerstore.NewManager(&config.Storage.Badger, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Secrets in config ({key-name} references) resolve from the KV store
	kvMap, err := storageManager.KVStorage().GetAll(ctx)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to load KV entries: %w", err)
	}
	common.ResolveSecrets(config, kvMap, logger)

	if config.Solver.APIKey == "" {
		logger.Warn().Msg("No solver API key configured, interactive challenges cannot be solved")
	}

	eventService := events.NewService(logger)

	sessionStore := browser.NewStore()
	launcher := browser.NewLauncher(config.Browser, logger)
	solverClient := solver.NewClient(config.Solver, logger)
	bridge := solver.NewBridge(solverClient, config.Solver, logger)
	authenticator := auth.New(config.Site, config.Browser, launcher, bridge, sessionStore, eventService, logger)

	executor := actions.NewExecutor(config.Site, config.Browser, logger)
	runner := jobs.NewRunner(storageManager.JobStorage(), authenticator, executor, eventService, config.Queue, logger)

	renderer := templates.NewRenderer(storageManager.TemplateStorage(), logger)
	adScheduler := scheduler.NewAdScheduler(config.Scheduler, storageManager.JobStorage(), renderer, eventService, logger)

	wsHandler, err := handlers.NewWebSocketHandler(eventService, logger)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to initialize websocket handler: %w", err)
	}

	return &App{
		Config:          config,
		Logger:          logger,
		StorageManager:  storageManager,
		EventService:    eventService,
		SessionStore:    sessionStore,
		Launcher:        launcher,
		SolverBridge:    bridge,
		Authenticator:   authenticator,
		Executor:        executor,
		Runner:          runner,
		AdScheduler:     adScheduler,
		Renderer:        renderer,
		JobHandler:      handlers.NewJobHandler(storageManager.JobStorage(), eventService, logger),
		TemplateHandler: handlers.NewTemplateHandler(storageManager.TemplateStorage(), logger),
		KVHandler:       handlers.NewKVHandler(storageManager.KVStorage(), logger),
		StatusHandler:   handlers.NewStatusHandler(storageManager.JobStorage(), sessionStore, logger),
		WSHandler:       wsHandler,
	}, nil
}

// Close tears down the browser session and the storage connection.
// The browser goes first so Chrome never outlives the process.
func (a *App) Close() error {
	if sess := a.SessionStore.Clear(); sess != nil {
		a.Logger.Info().Msg("Closing browser session")
		sess.Close()
	}

	if err := a.StorageManager.Close(); err != nil {
		return fmt.Errorf("failed to close storage: %w", err)
	}
	return nil
}
