// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package tunnel implements a reverse-tunnel client compatible with
// the bore wire protocol: a JSON-line control connection negotiates a
// challenge/response handshake and an assigned remote port, then every
// inbound "Connection" message spawns a fresh TCP leg proxied to the
// local service.
package tunnel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// connectTimeout bounds how long the initial control-connection
// handshake may take before the tunnel is considered unreachable.
const connectTimeout = 15 * time.Second

// Config describes the relay to connect to and the local service to
// expose through it.
type Config struct {
	RelayHost   string
	RelayPort   int
	RelaySecret string
	Subdomain   string
	LocalPort   int
}

// Info describes an established tunnel.
type Info struct {
	PublicURL  string
	RemotePort int
}

// Client runs the control connection and its spawned data-plane legs
// in the background until Stop is called.
type Client struct {
	cfg Config

	mu     sync.Mutex
	cancel context.CancelFunc
	conn   net.Conn
	group  *errgroup.Group
}

func New(cfg Config) *Client {
	return &Client{cfg: cfg}
}

// Start performs the control-connection handshake, registers the
// resulting remote port with the relay's registration API, and begins
// serving inbound connections in the background.
func (c *Client) Start(ctx context.Context) (Info, error) {
	runCtx, cancel := context.WithCancel(ctx)

	handshakeCtx, handshakeCancel := context.WithTimeout(runCtx, connectTimeout)
	defer handshakeCancel()

	dialer := net.Dialer{}
	controlAddr := net.JoinHostPort(c.cfg.RelayHost, strconv.Itoa(c.cfg.RelayPort))
	conn, err := dialer.DialContext(handshakeCtx, "tcp", controlAddr)
	if err != nil {
		cancel()
		return Info{}, fmt.Errorf("dial tunnel relay: %w", err)
	}

	reader := bufio.NewReader(conn)

	remotePort, err := handshake(handshakeCtx, conn, reader, c.cfg.RelaySecret)
	if err != nil {
		conn.Close()
		cancel()
		return Info{}, err
	}

	subdomain, err := c.register(handshakeCtx, remotePort)
	if err != nil {
		conn.Close()
		cancel()
		return Info{}, err
	}

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		return c.serve(groupCtx, reader)
	})

	c.mu.Lock()
	c.cancel = cancel
	c.conn = conn
	c.group = group
	c.mu.Unlock()

	baseDomain := strings.TrimPrefix(c.cfg.RelayHost, "relay.")
	return Info{
		PublicURL:  fmt.Sprintf("https://%s.tunnel.%s", subdomain, baseDomain),
		RemotePort: remotePort,
	}, nil
}

// Stop closes the control connection and waits for its goroutines.
func (c *Client) Stop() {
	c.mu.Lock()
	cancel, conn, group := c.cancel, c.conn, c.group
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	if group != nil {
		group.Wait()
	}
}

// handshake performs the Challenge → Authenticate → Hello → Hello
// exchange and returns the remote port the relay assigned.
func handshake(ctx context.Context, conn net.Conn, reader *bufio.Reader, secret string) (int, error) {
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
		defer conn.SetDeadline(time.Time{})
	}

	challenge, err := readServerMessage(reader)
	if err != nil {
		return 0, fmt.Errorf("read challenge: %w", err)
	}
	if challenge.Challenge == "" {
		return 0, fmt.Errorf("expected challenge, got: %+v", challenge)
	}

	tag := authenticateTag(challenge.Challenge, secret)
	if err := writeMessage(conn, clientMessage{Authenticate: tag}); err != nil {
		return 0, fmt.Errorf("send authenticate: %w", err)
	}

	zero := uint16(0)
	if err := writeMessage(conn, clientMessage{Hello: &zero}); err != nil {
		return 0, fmt.Errorf("send hello: %w", err)
	}

	reply, err := readServerMessage(reader)
	if err != nil {
		return 0, fmt.Errorf("read hello reply: %w", err)
	}
	if reply.Error != "" {
		return 0, fmt.Errorf("relay rejected tunnel: %s", reply.Error)
	}
	if reply.Hello == nil {
		return 0, fmt.Errorf("expected hello reply, got: %+v", reply)
	}

	return int(*reply.Hello), nil
}

// register tells the relay's HTTP API which backend port to proxy the
// chosen subdomain to.
func (c *Client) register(ctx context.Context, remotePort int) (string, error) {
	body := map[string]interface{}{
		"port":   remotePort,
		"secret": c.cfg.RelaySecret,
	}
	if c.cfg.Subdomain != "" {
		body["subdomain"] = c.cfg.Subdomain
	}

	req, err := newJSONRequest(ctx, "https://"+c.cfg.RelayHost+"/_api/register", body)
	if err != nil {
		return "", err
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("register with relay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("relay registration failed (%d): %s", resp.StatusCode, string(detail))
	}

	var decoded struct {
		Subdomain string `json:"subdomain"`
	}
	if err := decodeJSON(resp.Body, &decoded); err != nil {
		return "", fmt.Errorf("decode registration response: %w", err)
	}
	return decoded.Subdomain, nil
}

// serve reads Connection notifications off the control channel and
// spawns a proxied leg for each one until the control connection
// closes or ctx is cancelled.
func (c *Client) serve(ctx context.Context, reader *bufio.Reader) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msg, err := readServerMessage(reader)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read control message: %w", err)
		}

		switch {
		case msg.Heartbeat:
			continue
		case msg.Connection != "":
			go c.acceptConnection(ctx, msg.Connection)
		case msg.Error != "":
			return fmt.Errorf("relay error: %s", msg.Error)
		}
	}
}

// acceptConnection opens a fresh leg to the relay's control address,
// claims the pending connection id, and proxies bytes to the local
// service until either side closes.
func (c *Client) acceptConnection(ctx context.Context, id string) {
	controlAddr := net.JoinHostPort(c.cfg.RelayHost, strconv.Itoa(c.cfg.RelayPort))
	remote, err := (&net.Dialer{}).DialContext(ctx, "tcp", controlAddr)
	if err != nil {
		return
	}
	defer remote.Close()

	if err := writeMessage(remote, clientMessage{Accept: id}); err != nil {
		return
	}

	local, err := (&net.Dialer{}).DialContext(ctx, "tcp", net.JoinHostPort("localhost", strconv.Itoa(c.cfg.LocalPort)))
	if err != nil {
		return
	}
	defer local.Close()

	proxyPair(remote, local)
}

// proxyPair copies bytes bidirectionally until either leg terminates.
func proxyPair(a, b net.Conn) {
	done := make(chan struct{}, 2)
	go func() {
		io.Copy(a, b)
		done <- struct{}{}
	}()
	go func() {
		io.Copy(b, a)
		done <- struct{}{}
	}()
	<-done
}
