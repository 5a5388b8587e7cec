package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flashcards/internal/api/v1/router"
	"flashcards/internal/config"
	"flashcards/internal/logger"

	"github.com/joho/godotenv"
)

// @title Flashcards API
// @version 1.0
// @description Flashcard generation, saved sets and Stripe billing
// @host localhost:8080
// @BasePath /v1
// @Schemes http https

func main() {
	// 1. Load configuration
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info")
		boot.Fatal().Msgf("Error loading config: %v", err)
	}

	logger := logger.New(cfg.LogLevel)
	if envErr != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	// 2. Build router (and connect the store)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r, closeStore, err := router.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Msgf("Failed to build router: %v", err)
	}
	defer closeStore()

	// 3. Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 70 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 4. Start server in a goroutine
	go func() {
		logger.Info().Msgf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("Listen failed")
			stop()
		}
	}()

	// 5. Graceful shutdown
	<-ctx.Done()
	logger.Info().Msg("Shutdown signal received, exiting...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
		os.Exit(1)
	}
	logger.Info().Msg("Server shut down gracefully")
}
