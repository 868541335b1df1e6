// Package http serves heart-disease assessments over HTTP and WebSocket.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"heartrisk/config"
)

type Server struct {
	server  *http.Server
	handler *Handler
	logger  *zap.Logger
}

// NewServer wires h behind the standard middleware chain.
func NewServer(cfg config.HTTPConfig, h *Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	h.Register(mux)

	chain := Chain(
		RecoveryMiddleware(logger),
		RequestIDMiddleware,
		LoggerMiddleware(logger),
		SecurityHeadersMiddleware,
		CORSMiddleware(cfg.AllowedOrigins),
		RequestSizeMiddleware(1<<20),
		TimeoutMiddleware(cfg.RequestTimeout),
	)

	return &Server{
		server: &http.Server{
			Addr:         cfg.Addr,
			Handler:      chain(mux),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  120 * time.Second,
		},
		handler: h,
		logger:  logger,
	}
}

// Start blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server",
		zap.String("addr", s.server.Addr),
		zap.String("websocket", "/api/ws/assess"))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func (s *Server) Addr() string {
	return s.server.Addr
}

// HTTPHandler returns the full middleware-wrapped handler.
func (s *Server) HTTPHandler() http.Handler {
	return s.server.Handler
}
