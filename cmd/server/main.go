// Package main implements the entry point for the practice exam API server,
// which composes adaptive practice exams and schedules spaced-repetition
// review for learners.
package main

import (
	"context"
	"log"
	"log/slog"

	"github.com/joho/godotenv"

	"github.com/examkit/practice-api/internal/config"
	"github.com/examkit/practice-api/internal/platform/logger"
)

func main() {
	// A missing .env file is fine; real deployments set the environment
	// directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger := logger.Setup(cfg.Server)
	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"content_dir", cfg.Content.Dir)

	db, err := setupDatabase(cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := runMigrations(db, appLogger); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	ctx := context.Background()
	app, err := newApplication(ctx, cfg, appLogger, db)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
