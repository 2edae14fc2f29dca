package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load configuration from environment variables and optionally a config file.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
//
// Environment variables use the PRACTICE_ prefix with underscores for
// nesting, e.g. PRACTICE_SERVER_PORT, PRACTICE_DATABASE_URL.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional config file in the working directory
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine; environment variables carry the settings.
	}

	v.SetEnvPrefix("PRACTICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv alone does not surface env-only keys through Unmarshal;
	// binding each known key explicitly makes them visible.
	for _, key := range []string{
		"server.port", "server.log_level",
		"database.url",
		"auth.jwt_secret",
		"content.dir",
		"exam.default_total_items", "exam.pass_cutoff",
		"exam.blueprint_epsilon", "exam.cooldown_days",
		"review.weight_overdue", "review.weight_weakness", "review.default_limit",
		"review.weakness_threshold",
		"session.inactivity_timeout", "session.sweep_interval",
		"task.queue_size", "task.worker_count",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env var for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers defaults for everything that has a sensible one.
// Database URL, JWT secret, and the content directory must be provided.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("exam.default_total_items", 75)
	v.SetDefault("exam.pass_cutoff", 0.75)
	v.SetDefault("exam.blueprint_epsilon", 0.005)
	v.SetDefault("exam.cooldown_days", 7)

	v.SetDefault("review.weight_overdue", 0.6)
	v.SetDefault("review.weight_weakness", 0.4)
	v.SetDefault("review.default_limit", 50)
	v.SetDefault("review.weakness_threshold", 0.70)

	v.SetDefault("session.inactivity_timeout", "4h")
	v.SetDefault("session.sweep_interval", "1m")

	v.SetDefault("task.queue_size", 100)
	v.SetDefault("task.worker_count", 2)
}
