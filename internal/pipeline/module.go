package pipeline

import "go.uber.org/fx"

// Module exports the operator registry
var Module = fx.Options(
	fx.Provide(DefaultRegistry),
)
