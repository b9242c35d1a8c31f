package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/alphagov/transition-mappings/internal/api"
	"github.com/alphagov/transition-mappings/internal/batch"
	"github.com/alphagov/transition-mappings/internal/config"
	"github.com/alphagov/transition-mappings/internal/db"
	"github.com/alphagov/transition-mappings/internal/logger"
	"github.com/alphagov/transition-mappings/internal/service"
	"github.com/alphagov/transition-mappings/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("Server exited with error", logger.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log logger.Logger) error {
	if cfg.Auth.JWTSecret == "changeme" {
		log.Warn("JWT_SECRET not set, using default secret")
	}

	log.Info("Initializing database", logger.String("driver", cfg.Database.Driver))
	dbConn, err := db.InitDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	validator := batch.NewValidator(cfg.Redirects.AllowedHosts, cfg.Redirects.SupportEmail)
	batches := service.NewBatchService(dbConn, validator, log)

	pool := worker.NewPool(batches, worker.Config{
		Workers:   cfg.Worker.Workers,
		QueueSize: cfg.Worker.QueueSize,
	}, log)
	if err := pool.Start(); err != nil {
		return fmt.Errorf("failed to start batch workers: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.Deps{
		DB:      dbConn,
		Auth:    cfg.Auth,
		Batches: batches,
		Queue:   pool,
		Log:     log,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Starting server", logger.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		pool.Stop()
		return fmt.Errorf("failed to start server: %w", err)
	}
	log.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", logger.Error(err))
	}
	if err := pool.Stop(); err != nil {
		log.Error("Failed to stop batch workers", logger.Error(err))
	}

	log.Info("Server exited")
	return nil
}
