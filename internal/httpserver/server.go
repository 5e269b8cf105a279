package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// Server wraps http.Server with sane timeouts and graceful shutdown.
type Server struct {
	srv *http.Server
}

// NewServer builds a server for handler on addr. Write timeout is left
// unset because the SSE transport holds responses open for the length of a
// voice turn; the pipeline deadline bounds those instead.
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       2 * time.Minute,
			IdleTimeout:       2 * time.Minute,
		},
	}
}

// ListenAndServe blocks serving requests until Shutdown is called or the
// listener fails. A clean shutdown returns nil.
func (s *Server) ListenAndServe() error {
	slog.Info("http server listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires, then closes.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("http server shutting down")
	return s.srv.Shutdown(ctx)
}
