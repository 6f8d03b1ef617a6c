package app

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"substore-client/internal/config"
)

type hookParams struct {
	fx.In

	Logger    *zap.Logger
	Config    *config.Config
	Env       string `name:"env"`
	Lifecycle fx.Lifecycle
}

func registerHooks(p hookParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			p.Logger.Info("starting application",
				zap.String("base_url", p.Config.BaseURL),
				zap.String("env", p.Env))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			p.Logger.Info("stopping application")
			return nil
		},
	})
}
