package cli

import (
	"log/slog"

	"github.com/roach88/archivist/internal/engine"
	"github.com/roach88/archivist/internal/metrics"
	"github.com/roach88/archivist/internal/origin"
	"github.com/roach88/archivist/internal/store"
	"github.com/roach88/archivist/internal/usercache"
)

// app is an opened archive: store, origin client and engine.
type app struct {
	store   *store.Store
	users   *usercache.Cache
	engine  *engine.Engine
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// openApp wires the engine from the effective configuration. m may be nil.
func openApp(opts *RootOptions, m *metrics.Metrics) (*app, error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client, err := origin.NewClient(cfg.Origin.URL,
		origin.WithTimeout(cfg.Origin.Timeout),
		origin.WithRetryCooldown(cfg.Origin.RetryCooldown),
		origin.WithLogger(logger),
	)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid origin", err)
	}

	users, err := usercache.New(cfg.Cache.Users)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create user cache", err)
	}

	logger.Debug("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		users.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	eng := engine.New(st, client,
		engine.WithLogger(logger),
		engine.WithMetrics(m),
		engine.WithUserCache(users),
		engine.WithMaxSteps(cfg.Resolver.MaxSteps),
		engine.WithSeedConcurrency(cfg.Seed.Concurrency),
	)

	return &app{
		store:   st,
		users:   users,
		engine:  eng,
		metrics: m,
		logger:  logger,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing database", "error", err)
	}
	a.users.Close()
}
