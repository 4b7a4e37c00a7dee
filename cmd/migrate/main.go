// Package main provides a CLI tool for managing the SQLite warehouse schema.
// This tool supports:
// - Running all pending migrations (up)
// - Rolling back the last migration (down)
// - Showing the current migration version
//
// Usage:
//
//	go run ./cmd/migrate [command]
//
// Commands:
//
//	up       Run all pending migrations
//	down     Roll back the last migration
//	version  Show current migration version
//
// Environment Variables:
//
//	WAREHOUSE_PATH    SQLite database file (default: warehouse.db)
//	MIGRATIONS_PATH   Migrations directory (default: migrations)
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

const (
	exitOK         = 0
	exitError      = 1
	exitUsageError = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()
	command := flag.Arg(0)
	if command == "" {
		command = "up"
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	dbPath := getenv("WAREHOUSE_PATH", "warehouse.db")
	migrationsPath := getenv("MIGRATIONS_PATH", "migrations")

	m, err := migrate.New("file://"+migrationsPath, "sqlite://"+dbPath)
	if err != nil {
		logger.Error("failed to initialize migrations", slog.Any("error", err))
		return exitError
	}
	defer m.Close()

	switch command {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			logger.Error("migration up failed", slog.Any("error", err))
			return exitError
		}
		logger.Info("migrations applied", slog.String("database", dbPath))

	case "down":
		if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			logger.Error("migration down failed", slog.Any("error", err))
			return exitError
		}
		logger.Info("rolled back one migration")

	case "version":
		version, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			logger.Error("failed to read version", slog.Any("error", err))
			return exitError
		}
		fmt.Printf("version: %d dirty: %v\n", version, dirty)

	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (want up, down, or version)\n", command)
		return exitUsageError
	}

	return exitOK
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
