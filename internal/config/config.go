package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	Content  ContentConfig  `mapstructure:"content" validate:"required"`
	Exam     ExamConfig     `mapstructure:"exam" validate:"required"`
	Review   ReviewConfig   `mapstructure:"review" validate:"required"`
	Session  SessionConfig  `mapstructure:"session" validate:"required"`
	Task     TaskConfig     `mapstructure:"task" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// AuthConfig contains token verification settings. Tokens are issued by the
// external identity provider; this service only verifies them.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
}

// ContentConfig locates the authored course content files.
type ContentConfig struct {
	Dir string `mapstructure:"dir" validate:"required"`
}

// ExamConfig tunes exam composition and scoring.
type ExamConfig struct {
	// DefaultTotalItems is used when a compose request omits the size.
	DefaultTotalItems int `mapstructure:"default_total_items" validate:"required,gt=0"`

	// PassCutoff is the overall fraction required to pass (0-1).
	PassCutoff float64 `mapstructure:"pass_cutoff" validate:"required,gt=0,lte=1"`

	// BlueprintEpsilon is the tolerated deviation of blueprint weight sums
	// from 1.0, absorbing rounding in authored percentages.
	BlueprintEpsilon float64 `mapstructure:"blueprint_epsilon" validate:"required,gt=0,lt=0.1"`

	// CooldownDays is how far back the exposure filter looks when excluding
	// recently seen items from composition.
	CooldownDays int `mapstructure:"cooldown_days" validate:"required,gt=0"`
}

// ReviewConfig tunes the review queue ranking and the readiness summary.
type ReviewConfig struct {
	WeightOverdue  float64 `mapstructure:"weight_overdue" validate:"required,gt=0,lte=1"`
	WeightWeakness float64 `mapstructure:"weight_weakness" validate:"required,gt=0,lte=1"`
	DefaultLimit   int     `mapstructure:"default_limit" validate:"required,gt=0"`

	// WeaknessThreshold is the accuracy below which a topic is reported as
	// weak in the learner's readiness summary.
	WeaknessThreshold float64 `mapstructure:"weakness_threshold" validate:"required,gt=0,lt=1"`
}

// SessionConfig tunes session lifecycle behavior.
type SessionConfig struct {
	// InactivityTimeout is how long an in-progress session may sit idle
	// before it is auto-finalized with unanswered items marked skipped.
	InactivityTimeout time.Duration `mapstructure:"inactivity_timeout" validate:"required"`

	// SweepInterval is how often the stale-session sweeper runs.
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"required"`
}

// TaskConfig tunes the background finalization pipeline.
type TaskConfig struct {
	QueueSize   int `mapstructure:"queue_size" validate:"required,gt=0"`
	WorkerCount int `mapstructure:"worker_count" validate:"required,gt=0"`
}
