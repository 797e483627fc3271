package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gartstein/maintenance/internal/maintenance/auth"
	"github.com/gartstein/maintenance/internal/maintenance/cache"
	"github.com/gartstein/maintenance/internal/maintenance/config"
	"github.com/gartstein/maintenance/internal/maintenance/controller"
	"github.com/gartstein/maintenance/internal/maintenance/db"
	"github.com/gartstein/maintenance/internal/maintenance/events"
	"github.com/gartstein/maintenance/internal/maintenance/handlers"
	"github.com/gartstein/maintenance/internal/maintenance/metrics"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func main() {
	logger := initLogger()
	defer func(logger *zap.Logger) {
		err := logger.Sync()
		if err != nil {
			logger.Error("failed to sync logger", zap.Error(err))
		}
	}(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	repo, err := db.NewRepository(cfg.Database())
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error("failed to close database", zap.Error(err))
		}
	}()

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

	m := metrics.New(cfg.MetricsPrefix)
	opts := []controller.Option{
		controller.WithCache(store, cfg.CacheTTL),
		controller.WithMetrics(m),
	}

	teamSvc := controller.NewTeamService(repo, producer, logger, opts...)
	equipmentSvc := controller.NewEquipmentService(repo, producer, logger, opts...)
	requestSvc := controller.NewRequestService(repo, producer, logger, opts...)
	authenticator := auth.NewAuthenticator(repo, store, producer, cfg.JWTSecret, logger)

	// Replays the equipment scrap write for scrap transitions whose inline
	// cascade failed.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	consumer := events.NewConsumer(cfg.KafkaBrokers, cfg.ConsumerGroup, cfg.Topic, logger)
	consumer.RegisterHandler(events.NewScrapReconciler(equipmentSvc, logger).Handle)
	consumer.Start(ctx)
	defer func() {
		cancel()
		consumer.Close()
	}()

	maintenanceHandler := handlers.NewMaintenanceHandler(teamSvc, equipmentSvc, requestSvc, logger)

	authInterceptor := auth.NewAuthInterceptor(cfg.JWTSecret, authenticator)
	server := handlers.NewServer(cfg.GRPCPort, cfg.HTTPPort, logger, grpc.UnaryInterceptor(authInterceptor.Unary()))
	server.RegisterGRPCHandler(maintenanceHandler)

	if err := server.RegisterHTTPGateway(ctx, handlers.GatewayConfig{
		DialOptions: []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		},
		JWTSecret:   cfg.JWTSecret,
		Revocations: authenticator,
		Registry:    m.Registry,
		Health:      repo,
	}); err != nil {
		logger.Fatal("Failed to register HTTP gateway", zap.Error(err))
	}
	if err := server.Start(); err != nil {
		logger.Fatal("Failed to start servers", zap.Error(err))
	}

	waitForShutdown(server, logger)
}

// initLogger initializes a Zap production logger.
func initLogger() *zap.Logger {
	logger, _ := zap.NewProduction()
	return logger
}

// waitForShutdown blocks until an interrupt or SIGTERM is received, then shuts down servers.
func waitForShutdown(server *handlers.Server, logger *zap.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	server.Stop()
	logger.Info("Servers stopped properly")
}
