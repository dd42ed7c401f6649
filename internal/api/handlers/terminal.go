// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"crypto/subtle"
	"encoding/base64"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/nomadflowcode/nomadflow/internal/wsbridge"
)

// TerminalProxyHandler forwards browser terminal traffic to the local
// ttyd daemon: plain HTTP for its asset pages, a WebSocket bridge for
// the live terminal stream.
type TerminalProxyHandler struct {
	DaemonPort int
	Secret     string

	client   *http.Client
	upgrader websocket.Upgrader
}

func NewTerminalProxyHandler(daemonPort int, secret string) *TerminalProxyHandler {
	return &TerminalProxyHandler{
		DaemonPort: daemonPort,
		Secret:     secret,
		client:     &http.Client{},
		upgrader:   websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
}

func (h *TerminalProxyHandler) basicAuthHeader() string {
	creds := base64.StdEncoding.EncodeToString([]byte("nomadflow:" + h.Secret))
	return "Basic " + creds
}

func (h *TerminalProxyHandler) daemonBase() string {
	return "http://127.0.0.1:" + strconv.Itoa(h.DaemonPort)
}

// ProxyHTTP forwards GET /terminal and GET /terminal/{*} to the
// daemon's asset pages, preserving status and Content-Type.
func (h *TerminalProxyHandler) ProxyHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, h.daemonBase()+r.URL.Path, nil)
	if err != nil {
		WriteDetail(w, http.StatusBadGateway, "bad upstream request")
		return
	}
	if h.Secret != "" {
		req.Header.Set("Authorization", h.basicAuthHeader())
	}

	resp, err := h.client.Do(req)
	if err != nil {
		WriteDetail(w, http.StatusBadGateway, "terminal daemon unreachable")
		return
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

// ProxyWebSocket authenticates via the token query parameter, dials
// the daemon's WebSocket endpoint with the tty subprotocol and Basic
// credential, and bridges the two connections.
func (h *TerminalProxyHandler) ProxyWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.Secret != "" {
		token := r.URL.Query().Get("token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.Secret)) != 1 {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
	}

	clientConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	headers := http.Header{}
	if h.Secret != "" {
		headers.Set("Authorization", h.basicAuthHeader())
	}

	dialer := websocket.Dialer{Subprotocols: []string{"tty"}}
	daemonConn, _, err := dialer.DialContext(r.Context(), "ws://127.0.0.1:"+strconv.Itoa(h.DaemonPort)+"/ws", headers)
	if err != nil {
		clientConn.Close()
		return
	}

	wsbridge.Run(clientConn, daemonConn)
}
