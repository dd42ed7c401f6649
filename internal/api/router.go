// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package api wires the laptop server's HTTP router: health, the
// coordinator's JSON endpoints, and the terminal-daemon proxy.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/nomadflowcode/nomadflow/internal/api/handlers"
	"github.com/nomadflowcode/nomadflow/internal/api/middleware"
	"github.com/nomadflowcode/nomadflow/internal/terminal"
	"github.com/nomadflowcode/nomadflow/internal/ttyd"
	"github.com/nomadflowcode/nomadflow/internal/worktree"
)

// ServerConfig holds the laptop HTTP server's listen configuration.
type ServerConfig struct {
	Host        string
	Port        int
	Secret      string
	TmuxSession string
	DaemonPort  int
}

// Dependencies holds the coordinator collaborators the router wires
// into handlers.
type Dependencies struct {
	Coordinator *worktree.Coordinator
	Multiplexer *terminal.Multiplexer
}

// NewRouter builds the laptop server's router: health is public,
// every /api/* route and the terminal proxy require the shared secret
// (a no-op when it is empty).
func NewRouter(cfg ServerConfig, deps Dependencies) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)
	r.Use(middleware.CORS)

	healthHandler := handlers.NewHealthHandler(cfg.TmuxSession, cfg.Port)
	r.HandleFunc("/health", healthHandler.Health).Methods("GET")

	authed := r.NewRoute().Subrouter()
	authed.Use(middleware.Auth(cfg.Secret))

	repoHandler := handlers.NewRepoHandler(deps.Coordinator)
	authed.HandleFunc("/api/list-repos", repoHandler.ListRepos).Methods("POST")
	authed.HandleFunc("/api/clone-repo", repoHandler.CloneRepo).Methods("POST")

	featureHandler := handlers.NewFeatureHandler(deps.Coordinator, deps.Multiplexer)
	authed.HandleFunc("/api/list-features", featureHandler.ListFeatures).Methods("POST")
	authed.HandleFunc("/api/create-feature", featureHandler.CreateFeature).Methods("POST")
	authed.HandleFunc("/api/delete-feature", featureHandler.DeleteFeature).Methods("POST")
	authed.HandleFunc("/api/switch-feature", featureHandler.SwitchFeature).Methods("POST")
	authed.HandleFunc("/api/list-branches", featureHandler.ListBranches).Methods("POST")
	authed.HandleFunc("/api/attach-branch", featureHandler.AttachBranch).Methods("POST")

	terminalHandler := handlers.NewTerminalProxyHandler(cfg.DaemonPort, cfg.Secret)
	authed.HandleFunc("/terminal/ws", terminalHandler.ProxyWebSocket).Methods("GET")
	authed.HandleFunc("/terminal", terminalHandler.ProxyHTTP).Methods("GET")
	authed.PathPrefix("/terminal/").HandlerFunc(terminalHandler.ProxyHTTP).Methods("GET")

	return r
}

// Server is the laptop HTTP/WebSocket server, including the ttyd
// subprocess it fronts.
type Server struct {
	router *mux.Router
	cfg    ServerConfig
	server *http.Server
	ttyd   *ttyd.Service
}

// NewServer builds the server and its ttyd supervisor.
func NewServer(cfg ServerConfig, deps Dependencies) *Server {
	return &Server{
		router: NewRouter(cfg, deps),
		cfg:    cfg,
		ttyd:   ttyd.New(cfg.DaemonPort, cfg.TmuxSession, cfg.Secret),
	}
}

func (s *Server) Router() *mux.Router {
	return s.router
}

// Start starts ttyd and begins serving HTTP; it blocks until the
// server stops.
func (s *Server) Start(ctx context.Context) error {
	if err := s.ttyd.Start(ctx); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	log.Printf("laptop server listening on http://%s", addr)
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops ttyd.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.ttyd.Stop()

	if s.server == nil {
		return nil
	}

	shutdownCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}
	return s.server.Shutdown(shutdownCtx)
}
