package app

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"substore-client/internal/api"
	"substore-client/internal/catalog"
	"substore-client/internal/common"
	"substore-client/internal/config"
	"substore-client/internal/metrics"
	"substore-client/internal/pipeline"
	"substore-client/internal/usage"
	"substore-client/internal/worker"
)

type Application struct {
	app     *fx.App
	logger  *zap.Logger
	catalog *catalog.Catalog
	client  *api.Client
}

func resolve(opts []common.Option) *common.ServiceOptions {
	options := &common.ServiceOptions{}
	for _, opt := range opts {
		opt(options)
	}

	// Ensure required options are set
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	return options
}

// Options assembles the fx graph described by options.
func Options(options *common.ServiceOptions) []fx.Option {
	configModule := config.Module
	if options.Config != nil {
		configModule = fx.Supply(options.Config)
	}

	fxOptions := []fx.Option{
		// Core modules
		configModule,
		metrics.Module,
		usage.Module,
		api.Module,
		pipeline.Module,
		catalog.Module,

		// Provide base dependencies
		fx.Provide(
			func() *zap.Logger { return options.Logger },
			func() config.Path { return config.Path(options.ConfigPath) },
		),
		fx.Supply(fx.Annotated{Name: "env", Target: options.Env}),

		// Configure fx
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger}
		}),

		// Register lifecycle hooks
		fx.Invoke(registerHooks),
	}

	if options.Background {
		fxOptions = append(fxOptions,
			worker.Module,
			metrics.ServerModule,
		)
	}
	return fxOptions
}

func NewApplication(opts ...common.Option) (*Application, error) {
	options := resolve(opts)

	app := &Application{
		logger: options.Logger,
	}

	// Build fx application
	app.app = fx.New(
		fx.Options(Options(options)...),

		// Set timeouts
		fx.StopTimeout(30*time.Second),
		fx.StartTimeout(30*time.Second),

		fx.Populate(&app.catalog, &app.client),
	)
	if err := app.app.Err(); err != nil {
		return nil, err
	}

	return app, nil
}

func (a *Application) Catalog() *catalog.Catalog {
	return a.catalog
}

func (a *Application) Client() *api.Client {
	return a.client
}

func (a *Application) Start(ctx context.Context) error {
	return a.app.Start(ctx)
}

func (a *Application) Stop(ctx context.Context) error {
	return a.app.Stop(ctx)
}
