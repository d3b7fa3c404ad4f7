package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"golddust/internal/config"
	"golddust/internal/health"
	"golddust/internal/history"
	"golddust/internal/router"
)

// Server exposes the router over HTTP
type Server struct {
	cfg        *config.Config
	router     *router.Router
	history    *history.Store
	monitor    *health.Monitor
	httpServer *http.Server
	listener   net.Listener
	events     *eventsHandler
	logger     zerolog.Logger

	// ctx is cancelled by Stop to end streams that Shutdown does not track
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Server; monitor may be nil when the static provider is in use
func New(cfg *config.Config, rt *router.Router, hist *history.Store, monitor *health.Monitor, logger zerolog.Logger) *Server {
	logger = logger.With().Str("component", "server").Logger()
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:     cfg,
		router:  rt,
		history: hist,
		monitor: monitor,
		events:  newEventsHandler(ctx, rt, cfg.Server.EventInterval, logger),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Handler returns the HTTP handler with all routes, accepting HTTP/1.1 and cleartext HTTP/2
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /route", s.handleRoute)
	mux.HandleFunc("GET /decisions", s.handleDecisions)
	mux.HandleFunc("GET /decisions/{id}", s.handleDecision)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /events", s.events)

	return h2c.NewHandler(mux, &http2.Server{})
}

// Start starts listening; it returns once the listener is bound
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.cfg.Server.Host, strconv.Itoa(s.cfg.Server.Port))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = ln

	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		s.logger.Info().
			Str("addr", ln.Addr().String()).
			Msg("starting control server")
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("control server error")
		}
	}()

	return nil
}

// Addr returns the bound address, or nil before Start
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop gracefully stops the server and closes open event streams
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("shutting down control server...")

	s.cancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("control server shutdown error: %w", err)
		}
	}

	if err := waitGroup(ctx, &s.events.wg); err != nil {
		return fmt.Errorf("event streams did not close: %w", err)
	}

	s.logger.Info().Msg("control server stopped")
	return nil
}

// waitGroup waits for wg or returns ctx.Err() when ctx ends first
func waitGroup(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
