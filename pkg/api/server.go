package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/herald/pkg/log"
	"github.com/cuemby/herald/pkg/manager"
	"github.com/cuemby/herald/pkg/metrics"
)

// Options configures the API server
type Options struct {
	// ReadOnly rejects every request that is not GET, HEAD or OPTIONS
	ReadOnly bool
}

// Server serves the herald HTTP JSON API
type Server struct {
	manager *manager.Manager
	opts    Options
	mux     *http.ServeMux
	handler http.Handler
	logger  zerolog.Logger

	httpMu sync.Mutex
	http   *http.Server

	// closed on Stop so event streams let Shutdown finish
	done     chan struct{}
	stopOnce sync.Once
}

// NewServer creates a new API server
func NewServer(mgr *manager.Manager, opts Options) *Server {
	s := &Server{
		manager: mgr,
		opts:    opts,
		mux:     http.NewServeMux(),
		logger:  log.WithComponent("api"),
		done:    make(chan struct{}),
	}
	s.routes()
	s.handler = s.instrument(s.readOnly(s.mux))
	return s
}

func (s *Server) routes() {
	// Bots
	s.mux.HandleFunc("GET /api/bots", s.listBots)
	s.mux.HandleFunc("POST /api/bots/create", s.createBot)
	s.mux.HandleFunc("GET /api/bots/{id}", s.getBot)
	s.mux.HandleFunc("POST /api/bots/{id}", s.updateBot)
	s.mux.HandleFunc("DELETE /api/bots/{id}", s.deleteBot)
	s.mux.HandleFunc("POST /api/bots/{id}/start", s.startBot)
	s.mux.HandleFunc("POST /api/bots/{id}/stop", s.stopBot)
	s.mux.HandleFunc("POST /api/bots/{id}/restart", s.restartBot)
	s.mux.HandleFunc("GET /api/bots/{id}/logs", s.botLogs)
	s.mux.HandleFunc("GET /api/bots/{id}/session", s.botSession)
	s.mux.HandleFunc("GET /api/bots/{id}/friends", s.botFriends)
	s.mux.HandleFunc("DELETE /api/bots/{id}/friends/{xuid}", s.unfollowFriend)

	// Servers
	s.mux.HandleFunc("GET /api/servers", s.listServers)
	s.mux.HandleFunc("POST /api/servers", s.createServer)
	s.mux.HandleFunc("GET /api/servers/{id}", s.getServer)
	s.mux.HandleFunc("POST /api/servers/{id}", s.updateServer)
	s.mux.HandleFunc("DELETE /api/servers/{id}", s.deleteServer)

	// Events
	s.mux.HandleFunc("GET /api/events", s.streamEvents)

	// Health and metrics
	s.mux.HandleFunc("GET /health", metrics.HealthHandler())
	s.mux.HandleFunc("GET /live", metrics.LivenessHandler())
	s.mux.HandleFunc("GET /ready", s.readyHandler)
	s.mux.Handle("GET /metrics", metrics.Handler())
}

// Handler returns the HTTP handler with middleware applied
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on addr and serves until Stop
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		metrics.SetComponentErr(metrics.ComponentAPI, err)
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(lis)
}

// Serve serves on an existing listener until Stop
func (s *Server) Serve(lis net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.httpMu.Lock()
	select {
	case <-s.done:
		s.httpMu.Unlock()
		_ = lis.Close()
		return nil
	default:
	}
	s.http = srv
	s.httpMu.Unlock()

	metrics.SetComponent(metrics.ComponentAPI, true, "")
	s.logger.Info().Str("addr", lis.Addr().String()).Bool("read_only", s.opts.ReadOnly).Msg("HTTP API listening")

	err := srv.Serve(lis)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop ends open event streams and gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	metrics.SetComponent(metrics.ComponentAPI, false, "stopping")
	s.httpMu.Lock()
	s.stopOnce.Do(func() { close(s.done) })
	srv := s.http
	s.httpMu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
