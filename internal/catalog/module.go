package catalog

import "go.uber.org/fx"

// Module exports the catalog
var Module = fx.Options(
	fx.Provide(New),
)
