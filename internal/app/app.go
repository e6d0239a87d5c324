// Package app assembles the analysis stack from configuration.
package app

import (
	"context"

	"go.uber.org/zap"

	"chess_analysis/internal/adapters"
	"chess_analysis/internal/bootstrap"
	"chess_analysis/internal/repository/engine"
	"chess_analysis/internal/repository/tablebase"
	"chess_analysis/internal/usecase/analysis"
	"chess_analysis/internal/usecase/quality"
)

type App struct {
	Coordinator *analysis.Coordinator
	Session     *engine.Session
	Tablebase   *tablebase.Client

	redis *adapters.AdapterRedis
	log   *zap.SugaredLogger
}

// New builds the engine session, the tablebase client and the coordinator.
// The engine process is spawned lazily by the first request. A Redis tier
// that cannot be reached is logged and skipped.
func New(ctx context.Context, cfg *bootstrap.Config, log *zap.SugaredLogger) *App {
	return NewWithSpawner(ctx, cfg, nil, log)
}

// NewWithSpawner is New with a custom engine spawner; nil uses the
// configured binary.
func NewWithSpawner(ctx context.Context, cfg *bootstrap.Config, spawn engine.SpawnFunc, log *zap.SugaredLogger) *App {
	if spawn == nil {
		bin, args := cfg.EngineCommand()
		spawn = engine.ExecSpawner(bin, args...)
	}

	a := &App{log: log}
	a.Session = engine.NewSession(cfg.Engine(), spawn, log.With("component", "engine"))

	var store tablebase.Store
	redisAdapter := adapters.NewAdapterRedis(cfg, log)
	if redisAdapter.Enabled() {
		if err := redisAdapter.Init(ctx); err != nil {
			log.Warnw("redis tier disabled", "error", err)
		} else {
			a.redis = redisAdapter
			store = tablebase.NewRedisStore(redisAdapter.GetClient(), cfg.TablebaseCacheTTL)
		}
	}
	a.Tablebase = tablebase.NewClient(cfg.Tablebase(), store, log.With("component", "tablebase"))

	classifier := quality.NewClassifier(cfg.Thresholds())
	a.Coordinator = analysis.NewCoordinator(a.Session, a.Tablebase, classifier, log.With("component", "coordinator"))

	return a
}

// Close stops the engine and releases the Redis connection.
func (a *App) Close(ctx context.Context) {
	a.Session.Stop()
	if a.redis != nil {
		if err := a.redis.Close(ctx); err != nil {
			a.log.Warnw("closing redis", "error", err)
		}
	}
}
