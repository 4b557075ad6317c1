package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Server runs the HTTP API as a registry service.
type Server struct {
	address         string
	shutdownTimeout time.Duration
	handler         *Handler
	engine          *gin.Engine
	logger          zerolog.Logger

	mu         sync.Mutex
	httpServer *http.Server
	listenAddr string
}

// NewServer prepares the API server; nothing listens until Start.
func NewServer(address string, shutdownTimeout time.Duration, handler *Handler, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	if shutdownTimeout <= 0 {
		shutdownTimeout = 5 * time.Second
	}
	return &Server{
		address:         address,
		shutdownTimeout: shutdownTimeout,
		handler:         handler,
		engine:          NewRouter(handler, logger),
		logger:          logger,
	}
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer != nil {
		return errors.New("api server is already running")
	}

	ln, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = srv
	s.listenAddr = ln.Addr().String()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("API server stopped unexpectedly")
		}
	}()

	s.logger.Info().Str("address", s.listenAddr).Msg("API server started")
	return nil
}

// Stop drains in-flight requests and closes the current check-in session.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer == nil {
		return errors.New("api server is not running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	err := s.httpServer.Shutdown(ctx)
	s.httpServer = nil

	if closeErr := s.handler.Close(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	s.logger.Info().Msg("API server stopped")
	return err
}

// Addr returns the bound address while running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listenAddr
}
