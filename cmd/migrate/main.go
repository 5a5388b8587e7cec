package main

import (
	"errors"
	"flag"
	"os"

	"flashcards/internal/logger"
	"flashcards/internal/repository"

	"github.com/golang-migrate/migrate/v4"
	"github.com/joho/godotenv"
)

func main() {
	cmd := flag.String("cmd", "up", "Migration command: up|down|version")
	steps := flag.Int("steps", 1, "Number of migrations to roll back with -cmd down")
	flag.Parse()

	logger := logger.New(os.Getenv("LOG_LEVEL"))

	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		logger.Fatal().Msg("DATABASE_URL is required")
	}

	m, err := repository.NewMigrator(databaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to init migrator")
	}
	defer m.Close()

	switch *cmd {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			logger.Fatal().Err(err).Msg("Migrate up failed")
		}
	case "down":
		if *steps < 1 {
			logger.Fatal().Int("steps", *steps).Msg("steps must be positive")
		}
		if err := m.Steps(-*steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			logger.Fatal().Err(err).Msg("Migrate down failed")
		}
	case "version":
	default:
		logger.Fatal().Str("cmd", *cmd).Msg("Unknown command")
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		logger.Info().Msg("No migrations applied")
	case err != nil:
		logger.Fatal().Err(err).Msg("Failed to read schema version")
	default:
		logger.Info().Uint("version", version).Bool("dirty", dirty).Msgf("Migrate %s complete", *cmd)
	}
}
