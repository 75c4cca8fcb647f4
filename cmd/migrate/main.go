package main

// Run database migrations:
//   go run ./cmd/migrate [up|status|down]

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"persona-backend/internal/shared/config"
	"persona-backend/internal/shared/storage/db"
	"persona-backend/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()
	telemetry.Init(telemetry.Options{Level: cfg.LogLevel})
	defer telemetry.Sync()

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}
	if err := run(context.Background(), cfg, command); err != nil {
		telemetry.Error("migrate.failed", map[string]any{"command": command, "error": err.Error()})
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, command string) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	var action func(context.Context, *sql.DB) error
	switch command {
	case "up":
		action = db.RunMigrations
	case "status":
		action = db.MigrationStatus
	case "down":
		action = db.RollbackLast
	default:
		return fmt.Errorf("unknown command %q (want up, status or down)", command)
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultMigrateOptions()))
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer sqlDB.Close()

	return action(ctx, sqlDB)
}
