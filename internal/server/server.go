// Package server runs the HTTP servers of the reader and the transformer.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"
)

const defaultShutdownTimeout = 5 * time.Second

// Server is an HTTP server with graceful shutdown.
type Server struct {
	name            string
	port            int
	logger          *slog.Logger
	routes          func(chi.Router) error
	shutdownTimeout time.Duration
}

// Config holds configuration for a Server.
type Config struct {
	// Name identifies the server in logs.
	Name   string
	Port   int
	Logger *slog.Logger
	// Routes registers the server's handlers.
	Routes          func(chi.Router) error
	ShutdownTimeout time.Duration
}

// NewServer creates a new server instance.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	name := cfg.Name
	if name == "" {
		name = "bridgeport"
	}
	return &Server{
		name:            name,
		port:            cfg.Port,
		logger:          logger.With("server", name),
		routes:          cfg.Routes,
		shutdownTimeout: timeout,
	}
}

// Handler builds the router with the middleware stack and all routes.
func (s *Server) Handler() (http.Handler, error) {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		RequestLogger(s.logger),
		middleware.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"*"},
			MaxAge:         300,
		}),
		PoweredBy,
		middleware.Compress(5),
	)

	if s.routes != nil {
		if err := s.routes(r); err != nil {
			return nil, fmt.Errorf("failed to setup routes: %w", err)
		}
	}
	return r, nil
}

// Serve starts the server and blocks until the context is cancelled.
// Cancelling ctx also cancels every in-flight request, which ends open
// live streams.
func (s *Server) Serve(ctx context.Context) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting server", "addr", addr)

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		s.logger.Debug("shutting down server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
