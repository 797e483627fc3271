// The authentication service signs accounts up, exchanges credentials for
// JWTs accepted by the maintenance service, and revokes them on sign-out.
// It shares the database and the revocation cache with the maintenance
// service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gartstein/maintenance/internal/maintenance/auth"
	"github.com/gartstein/maintenance/internal/maintenance/cache"
	"github.com/gartstein/maintenance/internal/maintenance/config"
	"github.com/gartstein/maintenance/internal/maintenance/db"
	"github.com/gartstein/maintenance/internal/maintenance/events"
	"go.uber.org/zap"
)

func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	repo, err := db.NewRepository(cfg.Database())
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer func() { _ = repo.Close() }()

	store, closeStore, err := cache.Connect(context.Background(), cfg.RedisAddress, cfg.RedisPassword, logger)
	if err != nil {
		logger.Fatal("failed to connect to Redis", zap.Error(err))
	}
	defer closeStore()

	producer, err := events.NewProducer(cfg.KafkaBrokers, logger, cfg.Topic)
	if err != nil {
		logger.Fatal("failed to initialize Kafka producer", zap.Error(err))
	}
	defer producer.Close()

	authenticator := auth.NewAuthenticator(repo, store, producer, cfg.JWTSecret, logger)
	sessions, unsubscribe := authenticator.Subscribe()
	defer unsubscribe()
	go logSessions(sessions, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.AuthPort),
		Handler:           newRouter(authenticator, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Authentication service running", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP serve error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	logger.Info("Authentication service stopped")
}
