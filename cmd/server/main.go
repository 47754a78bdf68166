// Package main is the entry point for the till API server.
// One process serves one till: a local SQLite store reconciled with the
// configured remote.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tillsync/internal/app"
	"tillsync/internal/config"
	v1 "tillsync/internal/infrastructure/http/v1"
	"tillsync/pkg/logger"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.Development(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	log.Infow("starting tillsync server", "version", version, "device_id", cfg.DeviceID)

	till, err := app.New(ctx, cfg, log, app.Options{Background: true})
	if err != nil {
		log.Fatalw("failed to assemble till", "error", err)
	}
	defer till.Close()

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Sessions: till.Sessions,
		DB:       till.DB,
		Outbox:   till.Outbox,
		Audit:    till.Audit,
		Logger:   log,
		Version:  version,
		Debug:    cfg.Development(),
	})

	// --- HTTP Server ---
	// No WriteTimeout: the collection stream is long-lived.
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Infow("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
