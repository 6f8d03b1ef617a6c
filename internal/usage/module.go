package usage

import (
	"go.uber.org/fx"
	"substore-client/internal/config"
)

var Module = fx.Options(
	fx.Provide(func(cfg *config.Config) (Store, error) {
		return NewLRUStore(cfg.Usage.CacheSize, cfg.Usage.TTL)
	}),
)
