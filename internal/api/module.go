package api

import (
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"substore-client/internal/config"
	"substore-client/internal/domain"
	"substore-client/internal/usage"
)

// Module exports the API client
var Module = fx.Options(
	fx.Provide(NewFromConfig),
)

func NewFromConfig(
	cfg *config.Config,
	store usage.Store,
	metrics domain.MetricsCollector,
	logger *zap.Logger,
) (*Client, error) {
	return New(cfg.BaseURL,
		WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		WithCache(store),
		WithMetrics(metrics),
		WithLogger(logger),
	)
}
