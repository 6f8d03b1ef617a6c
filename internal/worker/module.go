package worker

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"substore-client/internal/catalog"
	"substore-client/internal/config"
)

var Module = fx.Options(
	fx.Provide(func(c *catalog.Catalog) Syncer { return c }),
	fx.Provide(func(cfg *config.Config, syncer Syncer, logger *zap.Logger) (*Scheduler, error) {
		return NewScheduler(cfg.Sync.Schedule, cfg.Sync.Timeout, syncer, logger)
	}),
	fx.Invoke(registerHooks),
)

func registerHooks(lc fx.Lifecycle, scheduler *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return scheduler.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return scheduler.Stop(ctx)
		},
	})
}
