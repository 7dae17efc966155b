package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/matheus3301/wachat/internal/config"
	"github.com/matheus3301/wachat/internal/lock"
	"go.uber.org/zap"
)

// Server manages the HTTP server lifecycle for a session daemon.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	logger     *zap.Logger
}

// NewServer binds the configured TCP address and records the bound address
// in the session lock so clients can find the daemon.
func NewServer(p Params, cfg *config.Config, lk *lock.Lock, handler http.Handler, logger *zap.Logger) (*Server, error) {
	listener, err := net.Listen("tcp", listenAddr(p, cfg))
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	if err := lk.SetAddr(listener.Addr().String()); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("record listen address: %w", err)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(logger.Named("http")),
	}

	return &Server{
		httpServer: srv,
		listener:   listener,
		logger:     logger,
	}, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Start begins serving HTTP requests. Blocks until stopped.
func (s *Server) Start() error {
	s.logger.Info("http server starting", zap.String("addr", s.Addr()))
	if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop performs a graceful shutdown. Hijacked websocket connections are not
// tracked by the HTTP server and must be closed through the hub.
func (s *Server) Stop(ctx context.Context) {
	s.logger.Info("http server stopping")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("graceful shutdown failed", zap.Error(err))
		_ = s.httpServer.Close()
	}
}
