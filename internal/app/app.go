// Package app assembles the hub from configuration: store, simulator,
// connector registry, job queue, status scheduler and HTTP server share
// one wiring here, used by the server and the one-shot CLI commands
// alike.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/application/scheduler"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/application/submission"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/config"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/connector"
	domainQueue "github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/queue"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/infrastructure/events"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/infrastructure/queue"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/infrastructure/registry"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/infrastructure/simulator"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/infrastructure/store"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/shared"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/transport/rest"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/pkg/logger"
)

// App owns every long-lived component of the hub.
type App struct {
	Config *config.Config
	Store  store.Store

	Registry    *registry.Registry
	Recorder    *events.Recorder
	Queue       *queue.Runner
	Submissions *submission.Service
	Scheduler   *scheduler.Scheduler

	server *http.Server
}

// New builds the hub from configuration without starting any loops.
// One-shot CLI commands use the components directly; serve calls Start.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger.Init(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	st, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	clock := shared.NewRealClock()
	sim := simulator.New(clock)
	reg := registry.New(st, sim, clock, registry.Options{
		AllowedPrefixes: cfg.Sandbox.AllowedPrefixes,
	})
	rec := events.NewRecorder(st, clock)

	runner := queue.NewRunner(st, clock, queue.Config{
		Workers:     cfg.Queue.Workers,
		BackoffBase: cfg.Queue.BackoffBase(),
		MaxAttempts: cfg.Queue.MaxAttempts,
	})

	subs := submission.NewService(st, reg, runner, rec, clock, submission.DefaultFirstPollDelay)
	runner.RegisterHandler(domainQueue.JobTypeSubmit, subs.HandleSubmitJob)

	sched := scheduler.New(st, reg, rec, clock, scheduler.Config{
		Interval:    cfg.Scheduler.Interval(),
		PollTimeout: cfg.Scheduler.PollTimeout(),
		BackoffBase: cfg.Scheduler.BackoffBase(),
		MaxAttempts: cfg.Scheduler.MaxAttempts,
		WebhookSeed: cfg.Webhook.Seed,
	})

	a := &App{
		Config:      cfg,
		Store:       st,
		Registry:    reg,
		Recorder:    rec,
		Queue:       runner,
		Submissions: subs,
		Scheduler:   sched,
	}

	if err := a.seedConnectors(ctx, cfg.Connectors); err != nil {
		st.Close()
		return nil, err
	}

	return a, nil
}

// OpenStore opens the configured persistence backend.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case "memory":
		return store.NewMemory(), nil
	case "sqlite":
		return store.NewSQLite(cfg.DSN)
	case "postgres":
		return store.NewPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// seedConnectors enables configured rails that are not in the store yet.
// Existing rows win, so operator changes survive restarts.
func (a *App) seedConnectors(ctx context.Context, seeds []config.ConnectorSeed) error {
	for _, seed := range seeds {
		rail, err := connector.ParseRail(seed.Rail)
		if err != nil {
			return fmt.Errorf("connector seed: %w", err)
		}
		if _, err := a.Store.GetConnectorConfig(ctx, seed.OrgID, rail); err == nil {
			continue
		}

		mode := connector.Mode(seed.Mode)
		if mode == "" {
			mode = connector.ModeSandbox
		}
		err = a.Store.PutConnectorConfig(ctx, &connector.Config{
			OrgID:     seed.OrgID,
			Rail:      rail,
			Enabled:   seed.Enabled,
			Mode:      mode,
			Settings:  seed.Settings,
			UpdatedAt: time.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("seed connector %s/%s: %w", seed.OrgID, seed.Rail, err)
		}
		logger.Info(ctx, "connector seeded", "org_id", seed.OrgID, "rail", seed.Rail)
	}
	return nil
}

// Start launches the queue workers, the status scheduler and the HTTP
// server.
func (a *App) Start() {
	a.Queue.Start()
	a.Scheduler.Start()

	router := rest.NewRouter(rest.Services{
		Submissions: a.Submissions,
		Scheduler:   a.Scheduler,
		Queue:       a.Queue,
	})
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info(context.Background(), "server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(context.Background(), "server failed", "error", err)
		}
	}()
}

// Shutdown stops the components in reverse order: no new requests, then
// no new jobs or polls, then the store. Safe to call without Start.
func (a *App) Shutdown(ctx context.Context) error {
	var firstErr error

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			firstErr = fmt.Errorf("http shutdown: %w", err)
		}
	}

	a.Scheduler.Stop()
	a.Queue.Stop()

	if err := a.Store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close store: %w", err)
	}

	logger.Info(context.Background(), "hub stopped")
	return firstErr
}
