// Package handlers provides the gRPC and HTTP servers of the maintenance
// service, bridging the transport layer and the domain services and
// translating between Struct messages and domain models.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gartstein/maintenance/internal/maintenance/auth"
	"github.com/gartstein/maintenance/internal/maintenance/db"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// Server holds references to both a gRPC server and an HTTP server.
type Server struct {
	grpcServer   *grpc.Server
	httpServer   *http.Server
	gatewayConn  *grpc.ClientConn
	logger       *zap.Logger
	grpcEndpoint string
	httpEndpoint string
}

// NewServer constructs a Server with separate endpoints for gRPC and HTTP.
func NewServer(
	grpcPort int,
	httpPort int,
	logger *zap.Logger,
	grpcOpts ...grpc.ServerOption,
) *Server {
	return &Server{
		grpcServer:   grpc.NewServer(grpcOpts...),
		httpServer:   &http.Server{ReadHeaderTimeout: 10 * time.Second},
		logger:       logger,
		grpcEndpoint: fmt.Sprintf(":%d", grpcPort),
		httpEndpoint: fmt.Sprintf(":%d", httpPort),
	}
}

// RegisterGRPCHandler registers the gRPC handler for the MaintenanceService.
func (s *Server) RegisterGRPCHandler(h MaintenanceServer) {
	s.grpcServer.RegisterService(&ServiceDesc, h)
}

// GatewayConfig carries what the HTTP gateway needs besides the gRPC endpoint.
type GatewayConfig struct {
	DialOptions []grpc.DialOption
	JWTSecret   string
	Revocations auth.RevocationChecker
	// Registry is served on /metrics when set.
	Registry *prometheus.Registry
	// Health is served on /healthz when set.
	Health HealthChecker
}

// HealthChecker reports whether the backing store answers.
type HealthChecker interface {
	CheckHealth(ctx context.Context) db.Health
}

// RegisterHTTPGateway sets up the HTTP reverse-proxy to the gRPC endpoint.
func (s *Server) RegisterHTTPGateway(_ context.Context, cfg GatewayConfig) error {
	conn, err := grpc.NewClient(dialTarget(s.grpcEndpoint), cfg.DialOptions...)
	if err != nil {
		return fmt.Errorf("failed to create gateway client: %w", err)
	}
	s.gatewayConn = conn

	mux := runtime.NewServeMux()
	if err := registerRoutes(mux, conn); err != nil {
		return err
	}
	if cfg.Registry != nil {
		metricsHandler := promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{})
		if err := mux.HandlePath(http.MethodGet, "/metrics", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
			metricsHandler.ServeHTTP(w, r)
		}); err != nil {
			return err
		}
	}

	if cfg.Health != nil {
		if err := mux.HandlePath(http.MethodGet, "/healthz", healthHandler(cfg.Health, s.logger)); err != nil {
			return err
		}
	}

	// Wrap the mux with auth middleware
	authMiddleware := auth.HTTPMiddleware(mux, cfg.JWTSecret, cfg.Revocations)

	s.httpServer.Handler = authMiddleware
	s.httpServer.Addr = s.httpEndpoint
	return nil
}

type healthResponse struct {
	Status string          `json:"status"`
	Tables map[string]bool `json:"tables"`
	Errors []string        `json:"errors,omitempty"`
}

func healthHandler(checker HealthChecker, logger *zap.Logger) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		h := checker.CheckHealth(r.Context())
		resp := healthResponse{Status: "ok", Tables: h.Tables, Errors: h.Errors}
		code := http.StatusOK
		if !h.Healthy() {
			resp.Status = "unavailable"
			code = http.StatusServiceUnavailable
			logger.Warn("Health check failed", zap.Strings("errors", h.Errors))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Error("Failed to write health response", zap.Error(err))
		}
	}
}

func dialTarget(endpoint string) string {
	host, port, err := net.SplitHostPort(endpoint)
	if err != nil || host != "" {
		return endpoint
	}
	return net.JoinHostPort("localhost", port)
}

// Start runs the gRPC and HTTP servers concurrently, returning on the first error.
func (s *Server) Start() error {
	var wg sync.WaitGroup
	wg.Add(2)
	errChan := make(chan error, 2)

	// Start gRPC Server
	go func() {
		defer wg.Done()
		s.logger.Info("Starting gRPC server", zap.String("endpoint", s.grpcEndpoint))
		lis, err := net.Listen("tcp", s.grpcEndpoint)
		if err != nil {
			errChan <- fmt.Errorf("gRPC listen error: %w", err)
			return
		}
		if err := s.grpcServer.Serve(lis); err != nil {
			errChan <- fmt.Errorf("gRPC serve error: %w", err)
		}
	}()

	// Start HTTP Server
	go func() {
		defer wg.Done()
		s.logger.Info("Starting HTTP server", zap.String("endpoint", s.httpEndpoint))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP serve error: %w", err)
		}
	}()

	go func() {
		wg.Wait()
		close(errChan)
	}()

	for err := range errChan {
		if err != nil {
			return err
		}
	}
	return nil
}

// Stop gracefully shuts down both gRPC and HTTP servers.
func (s *Server) Stop() {
	s.logger.Info("Shutting down servers...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	if s.gatewayConn != nil {
		if err := s.gatewayConn.Close(); err != nil {
			s.logger.Warn("Gateway client close error", zap.Error(err))
		}
	}
	s.grpcServer.GracefulStop()

	s.logger.Info("Servers stopped")
}
