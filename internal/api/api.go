// Package api exposes the HTTP surface of the service: the platform webhook
// endpoint plus small operational endpoints for health, session inspection
// and configuration reload.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/voiceback/voiceback/internal/call"
	"github.com/voiceback/voiceback/internal/respconfig"
)

// DefaultAddr is the listen address when neither the option nor the PORT
// environment variable is set.
const DefaultAddr = ":8080"

// Server hosts the webhook and operational endpoints.
type Server struct {
	register *call.Register
	store    *respconfig.Store
	addr     string
	httpSrv  *http.Server
}

// Opts holds configuration options for the server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the server.
type Option func(*Opts)

// WithAddr sets the listen address, overriding the PORT environment variable.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// NewServer creates the HTTP server around the call register and the
// configuration store.
func NewServer(register *call.Register, store *respconfig.Store, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	addr := cfg.Addr
	if addr == "" {
		if port := os.Getenv("PORT"); port != "" {
			addr = ":" + port
		} else {
			addr = DefaultAddr
		}
	}

	s := &Server{register: register, store: store, addr: addr}
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /calls", s.handleListCalls)
	mux.HandleFunc("GET /calls/{id}", s.handleGetCall)
	mux.HandleFunc("POST /config/reload", s.handleConfigReload)
	return mux
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	slog.Info("Server.Run: listening", "addr", s.addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Server.Shutdown: stopping")
	return s.httpSrv.Shutdown(ctx)
}
