package common

import (
	"go.uber.org/zap"
	"substore-client/internal/config"
)

// ServiceOptions defines common options for the application graph
type ServiceOptions struct {
	Logger     *zap.Logger
	Config     *config.Config
	ConfigPath string
	Env        string
	// Background adds the long-running services: the sync scheduler and
	// the metrics endpoint.
	Background bool
}

// Option defines a service option modifier
type Option func(*ServiceOptions)

func WithLogger(logger *zap.Logger) Option {
	return func(o *ServiceOptions) {
		o.Logger = logger
	}
}

// WithConfig supplies a ready configuration instead of loading one.
func WithConfig(cfg *config.Config) Option {
	return func(o *ServiceOptions) {
		o.Config = cfg
	}
}

func WithConfigPath(path string) Option {
	return func(o *ServiceOptions) {
		o.ConfigPath = path
	}
}

func WithEnv(env string) Option {
	return func(o *ServiceOptions) {
		o.Env = env
	}
}

func WithBackground(background bool) Option {
	return func(o *ServiceOptions) {
		o.Background = background
	}
}
