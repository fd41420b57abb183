package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/marketplace-oms/internal/storage/postgres"
)

// Утилита схемных миграций. Сервис применяет миграции и сам при старте,
// бинарь нужен для ручных прогонов и CI, где откат делается отдельно от
// деплоя.

type migrateConfig struct {
	command string
	steps   int
	dsn     string
	timeout time.Duration
}

func parseMigrateConfig() (migrateConfig, error) {
	var cfg migrateConfig

	flag.StringVar(&cfg.command, "direction", "up", "migration direction: up|down|status")
	flag.IntVar(&cfg.steps, "steps", 0, "number of migrations to apply/rollback (0=all for up, 1 for down)")
	flag.StringVar(&cfg.dsn, "dsn", "", "PostgreSQL DSN (fallback: POSTGRES_DSN)")
	flag.DurationVar(&cfg.timeout, "timeout", 30*time.Second, "overall timeout for the migration run")
	flag.Parse()

	cfg.command = strings.ToLower(strings.TrimSpace(cfg.command))
	cfg.dsn = strings.TrimSpace(cfg.dsn)
	if cfg.dsn == "" {
		cfg.dsn = strings.TrimSpace(os.Getenv("POSTGRES_DSN"))
	}
	if cfg.dsn == "" {
		return cfg, fmt.Errorf("POSTGRES_DSN (or -dsn) is required")
	}
	if cfg.timeout <= 0 {
		return cfg, fmt.Errorf("-timeout must be positive")
	}

	switch cfg.command {
	case "up", "down", "status":
	default:
		return cfg, fmt.Errorf("unsupported direction: %s (use up|down|status)", cfg.command)
	}
	if cfg.command == "down" && cfg.steps <= 0 {
		cfg.steps = 1
	}

	return cfg, nil
}

func runMigrate(ctx context.Context, cfg migrateConfig) error {
	store, err := postgres.Open(ctx, cfg.dsn)
	if err != nil {
		return fmt.Errorf("open postgres store: %w", err)
	}
	defer store.Close()

	switch cfg.command {
	case "up":
		if err := store.MigrateUp(ctx, cfg.steps); err != nil {
			return fmt.Errorf("migrate up failed: %w", err)
		}
	case "down":
		if err := store.MigrateDown(ctx, cfg.steps); err != nil {
			return fmt.Errorf("migrate down failed: %w", err)
		}
	}

	version, applied, err := store.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	fmt.Printf("%s ok: schema version=%d applied=%d\n", cfg.command, version, applied)
	return nil
}

func main() {
	cfg, err := parseMigrateConfig()
	if err != nil {
		fatalf("%v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()

	if err := runMigrate(ctx, cfg); err != nil {
		fatalf("%v", err)
	}
}

func fatalf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
