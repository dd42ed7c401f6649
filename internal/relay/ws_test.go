// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// TestProxyWebSocketPreservesSubprotocol registers a tunnel pointing at
// a backend that echoes back whatever subprotocol it negotiated, then
// confirms a client connecting through the relay with
// Sec-WebSocket-Protocol: tty gets "tty" back.
func TestProxyWebSocketPreservesSubprotocol(t *testing.T) {
	upgrader := websocket.Upgrader{
		Subprotocols: []string{"tty"},
		CheckOrigin:  func(*http.Request) bool { return true },
	}
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		conn.ReadMessage()
	}))
	defer backend.Close()

	backendURL, err := url.Parse(backend.URL)
	require.NoError(t, err)
	backendPort, err := strconv.Atoi(backendURL.Port())
	require.NoError(t, err)

	s := NewServer(Config{BoreHost: "127.0.0.1", Port: 0})
	s.registry.tunnels["widget"] = &tunnelEntry{port: backendPort, clientIP: "1.1.1.1"}

	relayServer := httptest.NewServer(s.router)
	defer relayServer.Close()

	relayURL, err := url.Parse(relayServer.URL)
	require.NoError(t, err)

	dialer := websocket.Dialer{Subprotocols: []string{"tty"}}
	header := http.Header{"Host": {"widget.tunnel.example.test"}}

	wsURL := "ws://" + relayURL.Host + "/"
	conn, resp, err := dialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()

	require.Equal(t, "tty", resp.Header.Get("Sec-WebSocket-Protocol"))
	require.Equal(t, "tty", conn.Subprotocol())
}
