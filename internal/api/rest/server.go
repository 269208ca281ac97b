package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/davidleathers/tenant-isolation-core/internal/infrastructure/auth"
	"github.com/davidleathers/tenant-isolation-core/internal/infrastructure/config"
	isolationsvc "github.com/davidleathers/tenant-isolation-core/internal/service/isolation"
)

// Server exposes the isolation facade over HTTP. Every /api/v1 route runs
// behind the auth middleware, so handlers always find an isolation context
// on the request context.
type Server struct {
	logger     *zap.Logger
	config     *config.ServerConfig
	httpServer *http.Server
}

// NewServer creates the API server around an assembled facade
func NewServer(cfg *config.ServerConfig, logger *zap.Logger, facade *isolationsvc.Service, authenticator *auth.Authenticator) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	h := &handler{
		logger: logger,
		facade: facade,
	}

	v1 := http.NewServeMux()
	v1.HandleFunc("POST /api/v1/access/check", h.handleCheckAccess)
	v1.HandleFunc("POST /api/v1/access/batch", h.handleBatchAccess)
	v1.HandleFunc("GET /api/v1/permissions", h.handlePermissions)
	v1.HandleFunc("GET /api/v1/audit/entries", h.handleAuditQuery)
	v1.HandleFunc("GET /api/v1/security/report", h.handleSecurityReport)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.Handle("/api/v1/", auth.Middleware(authenticator, logger)(v1))

	return &Server{
		logger: logger,
		config: cfg,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      mux,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}
}

// Start serves until ctx is canceled, then shuts down gracefully within
// the configured shutdown timeout
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api server listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownTimeout := s.config.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("api server shutting down")
	return s.httpServer.Shutdown(shutdownCtx)
}

// Handler returns the root handler, for tests
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
