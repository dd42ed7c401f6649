// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/nomadflowcode/nomadflow/internal/api/middleware"
	"github.com/robfig/cron/v3"
)

// hopByHopHeaders are stripped before forwarding a proxied request,
// matching the relay's fixed list.
var hopByHopHeaders = []string{
	"Host", "Connection", "Proxy-Authenticate", "Proxy-Authorization",
	"TE", "Trailer", "Transfer-Encoding", "Keep-Alive",
}

// wsConnectTimeout bounds how long the relay waits to dial the
// backend's WebSocket endpoint.
const wsConnectTimeout = 5 * time.Second

// evictionInterval is how often the cleanup task sweeps stale
// tunnels and rate-limit history.
const evictionInterval = 5 * time.Minute

// Config holds the relay's environment-derived settings.
type Config struct {
	Secret   string
	BoreHost string
	Port     int
}

func DefaultConfig() Config {
	return Config{BoreHost: "127.0.0.1", Port: 3000}
}

// Server is the public edge proxy: registration API, on-demand-TLS
// check, subdomain proxy, and background eviction.
type Server struct {
	cfg      Config
	registry *Registry
	router   *mux.Router
	upgrader websocket.Upgrader
	cron     *cron.Cron
	server   *http.Server
}

func NewServer(cfg Config) *Server {
	s := &Server{
		cfg:      cfg,
		registry: NewRegistry(),
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		cron:     cron.New(),
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.CORS)
	r.HandleFunc("/_api/register", s.handleRegister).Methods("POST")
	r.HandleFunc("/_api/check", s.handleCheck).Methods("GET")
	r.HandleFunc("/_api/health", s.handleHealth).Methods("GET")
	r.PathPrefix("/").HandlerFunc(s.handleProxy)
	return r
}

// Start schedules the eviction task and begins serving HTTP on
// cfg.Port. It blocks until the server stops.
func (s *Server) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", evictionInterval), s.runEviction); err != nil {
		return fmt.Errorf("schedule eviction task: %w", err)
	}
	s.cron.Start()

	addr := fmt.Sprintf("0.0.0.0:%d", s.cfg.Port)
	s.server = &http.Server{Addr: addr, Handler: s.router}

	log.Printf("relay: listening on %s (bore host %s)", addr, s.cfg.BoreHost)
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the eviction task and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	cronCtx := s.cron.Stop()
	<-cronCtx.Done()

	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) runEviction() {
	if removed := s.registry.Evict(); removed > 0 {
		log.Printf("relay: evicted %d stale tunnel entries", removed)
	}
}

type registerRequest struct {
	Port      int    `json:"port"`
	Secret    string `json:"secret"`
	Subdomain string `json:"subdomain,omitempty"`
}

type registerResponse struct {
	Subdomain string `json:"subdomain"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	correlationID := uuid.NewString()

	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if s.cfg.Secret != "" && subtle.ConstantTimeCompare([]byte(req.Secret), []byte(s.cfg.Secret)) != 1 {
		log.Printf("relay[%s]: registration rejected: invalid secret", correlationID)
		writeDetail(w, http.StatusUnauthorized, "invalid secret")
		return
	}

	clientIP := clientIPFromRequest(r.Header.Get("X-Forwarded-For"), r.RemoteAddr)

	subdomain, result := s.registry.Register(clientIP, req.Port, req.Subdomain)
	switch result {
	case RegisterOK:
		log.Printf("relay[%s]: registered subdomain %s -> %s:%d", correlationID, subdomain, clientIP, req.Port)
		writeJSON(w, http.StatusOK, registerResponse{Subdomain: subdomain})
	case RegisterBadPort:
		writeDetail(w, http.StatusBadRequest, "port must be >= 1024")
	case RegisterBadSubdomain:
		writeDetail(w, http.StatusBadRequest, "invalid subdomain format")
	case RegisterSubdomainTaken:
		writeDetail(w, http.StatusConflict, "subdomain already in use")
	case RegisterTooManyTunnels, RegisterTooManyAttempts:
		log.Printf("relay[%s]: rate limit exceeded for %s", correlationID, clientIP)
		writeDetail(w, http.StatusTooManyRequests, "rate limit exceeded")
	default:
		writeDetail(w, http.StatusInternalServerError, "registration failed")
	}
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	domain := r.URL.Query().Get("domain")
	subdomain := firstLabel(domain)
	if s.registry.Known(subdomain) {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok"))
}

func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	subdomain := firstLabel(r.Host)
	port, ok := s.registry.Resolve(subdomain)
	if !ok {
		writeDetail(w, http.StatusNotFound, "unknown tunnel")
		return
	}

	if isWebSocketUpgrade(r) {
		s.proxyWebSocket(w, r, port)
		return
	}
	s.proxyHTTP(w, r, port)
}

func (s *Server) proxyHTTP(w http.ResponseWriter, r *http.Request, port int) {
	target := &url.URL{Scheme: "http", Host: fmt.Sprintf("%s:%d", s.cfg.BoreHost, port)}

	proxy := httputil.NewSingleHostReverseProxy(target)
	originalDirector := proxy.Director
	proxy.Director = func(req *http.Request) {
		originalDirector(req)
		for _, h := range hopByHopHeaders {
			req.Header.Del(h)
		}
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Printf("relay: proxy error for %s: %v", r.Host, err)
		w.WriteHeader(http.StatusBadGateway)
	}

	proxy.ServeHTTP(w, r)
}

func (s *Server) proxyWebSocket(w http.ResponseWriter, r *http.Request, port int) {
	subprotocols := splitSubprotocols(r.Header.Values("Sec-WebSocket-Protocol"))

	var responseHeader http.Header
	if len(subprotocols) > 0 {
		responseHeader = http.Header{"Sec-WebSocket-Protocol": {subprotocols[0]}}
	}

	clientConn, err := s.upgrader.Upgrade(w, r, responseHeader)
	if err != nil {
		return
	}
	defer clientConn.Close()

	targetURL := fmt.Sprintf("ws://%s:%d%s", s.cfg.BoreHost, port, r.URL.RequestURI())

	dialer := websocket.Dialer{
		Subprotocols:     subprotocols,
		HandshakeTimeout: wsConnectTimeout,
	}
	backendConn, _, err := dialer.Dial(targetURL, nil)
	if err != nil {
		log.Printf("relay: backend websocket dial failed: %v", err)
		return
	}
	defer backendConn.Close()

	bridge(clientConn, backendConn)
}

// bridge runs two forwarding goroutines until the first terminates,
// then closes both connections. Mirrors the shared wsbridge contract
// without importing it directly, since the relay speaks gorilla's raw
// message API rather than the laptop server's bridge helper.
func bridge(a, b *websocket.Conn) {
	done := make(chan struct{}, 2)
	forward := func(src, dst *websocket.Conn) {
		defer func() { done <- struct{}{} }()
		for {
			msgType, data, err := src.ReadMessage()
			if err != nil {
				return
			}
			if err := dst.WriteMessage(msgType, data); err != nil {
				return
			}
		}
	}
	go forward(a, b)
	go forward(b, a)
	<-done
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func firstLabel(host string) string {
	host = strings.SplitN(host, ":", 2)[0]
	parts := strings.SplitN(host, ".", 2)
	return parts[0]
}

func splitSubprotocols(values []string) []string {
	var out []string
	for _, v := range values {
		for _, p := range strings.Split(v, ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

