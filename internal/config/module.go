package config

import (
	"os"

	"go.uber.org/fx"
)

// Path is the config file location supplied by the application; empty
// falls back to CONFIG_PATH and the default search paths.
type Path string

var Module = fx.Options(
	fx.Provide(func(p Path) (*Config, error) {
		if p == "" {
			p = Path(os.Getenv("CONFIG_PATH"))
		}
		return Load(string(p))
	}),
)
