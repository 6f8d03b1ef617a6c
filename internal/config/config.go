package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

var validate *validator.Validate

const envPrefix = "SUBSTORE"

type Config struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Env     string        `mapstructure:"env"`
	Usage   Usage         `mapstructure:"usage"`
	Sync    Sync          `mapstructure:"sync"`
	Metrics Metrics       `mapstructure:"metrics"`
}

type Usage struct {
	TTL       time.Duration `mapstructure:"ttl" validate:"gt=0"`
	CacheSize int           `mapstructure:"cache_size" validate:"gt=0"`
}

type Sync struct {
	// Schedule is a standard 5-field cron expression; empty disables
	// scheduled artifact sync.
	Schedule string        `mapstructure:"schedule" validate:"omitempty,cronspec"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type Metrics struct {
	Addr string `mapstructure:"addr" validate:"omitempty,hostname_port"`
}

// NewConfig loads configuration from the file named by CONFIG_PATH, or
// from substore.{json,yaml,toml} in the working directory or the user
// config directory. SUBSTORE_* environment variables override the file.
func NewConfig() (*Config, error) {
	return Load(os.Getenv("CONFIG_PATH"))
}

// Load reads configuration from path, searching the default locations
// when path is empty.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	} else {
		v.SetConfigName("substore")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "substore"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if err := validate.Struct(cfg); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return nil, formatValidationErrors(validationErrors)
		}
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", "https://sub.store")
	v.SetDefault("timeout", 15*time.Second)
	v.SetDefault("env", "production")
	v.SetDefault("usage.ttl", 10*time.Minute)
	v.SetDefault("usage.cache_size", 256)
	v.SetDefault("sync.schedule", "")
	v.SetDefault("sync.timeout", 2*time.Minute)
	v.SetDefault("metrics.addr", "")
}

func init() {
	validate = validator.New()

	// Register custom cron validator
	if err := validate.RegisterValidation("cronspec", validateCron); err != nil {
		panic(fmt.Sprintf("failed to register cron validator: %v", err))
	}
}

func validateCron(fl validator.FieldLevel) bool {
	_, err := cron.ParseStandard(fl.Field().String())
	return err == nil
}

// formatValidationErrors formats validation errors into a user-friendly error message
func formatValidationErrors(errors validator.ValidationErrors) error {
	var errMsgs []string
	for _, err := range errors {
		errMsgs = append(errMsgs, fmt.Sprintf(
			"field '%s' failed validation: %s",
			err.Namespace(),
			err.Tag(),
		))
	}
	return fmt.Errorf("validation errors: %v", errMsgs)
}
