// Package api exposes the advisory pipeline over HTTP.
//
// Endpoints:
//
//	POST /api/query                  submit a question, get answer + routing
//	GET  /api/conversations/{id}     read a conversation's message history
//	GET  /health                     liveness probe
//	GET  /ready                      readiness probe (pings the database)
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/taxline/taxline/internal/log"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:3500"

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout guards against slow-header clients (CWE-400).
	ReadHeaderTimeout = 10 * time.Second

	ReadTimeout  = 30 * time.Second
	WriteTimeout = 60 * time.Second
	IdleTimeout  = 120 * time.Second
)

// Server is the HTTP server for the advisory API.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger
}

// NewServer registers all routes and returns the server.
func NewServer(processor QueryProcessor, conversations ConversationReader, pinger Pinger, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewNop()
	}

	mux := http.NewServeMux()
	s := &Server{mux: mux, logger: logger}

	NewQueryHandler(processor, logger.With("handler", "query")).RegisterRoutes(mux)
	NewConversationHandler(conversations, logger.With("handler", "conversations")).RegisterRoutes(mux)
	NewHealthHandler(pinger, logger.With("handler", "health")).RegisterRoutes(mux)

	return s
}

// Handler returns the routed handler with middleware applied.
// Middleware order: recovery outermost, then logging.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		loggingMiddleware(s.logger),
	)
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		<-errCh
		return err
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
