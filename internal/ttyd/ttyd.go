// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package ttyd supervises the local terminal-over-HTTP daemon that
// fronts the multiplexer session.
package ttyd

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"sync"
	"time"

	"github.com/nomadflowcode/nomadflow/internal/nomaderr"
	"github.com/nomadflowcode/nomadflow/internal/shellrun"
)

// settleDelay gives the daemon time to bind its port before callers
// start proxying to it.
const settleDelay = 500 * time.Millisecond

// basicAuthUser is the fixed HTTP Basic Auth username ttyd is
// configured with; the password is the shared secret.
const basicAuthUser = "nomadflow"

// Service supervises a single ttyd process attached to a multiplexer
// session.
type Service struct {
	Port        int
	SessionName string
	Secret      string

	mu  sync.Mutex
	cmd *exec.Cmd
}

func New(port int, sessionName, secret string) *Service {
	return &Service{Port: port, SessionName: sessionName, Secret: secret}
}

// Start launches ttyd unless the port is already bound by another
// process (assumed to be a prior instance), and fails with NotFound
// if the ttyd binary is absent.
func (s *Service) Start(ctx context.Context) error {
	if !shellrun.CommandExists(ctx, "ttyd") {
		return nomaderr.NewNotFound("ttyd binary not found in PATH")
	}

	if s.portInUse() {
		return nil
	}

	args := []string{"-p", fmt.Sprintf("%d", s.Port), "-W"}
	if s.Secret != "" {
		args = append(args, "-c", fmt.Sprintf("%s:%s", basicAuthUser, s.Secret))
	}
	args = append(args, "tmux", "attach-session", "-t", s.SessionName)

	cmd := exec.CommandContext(ctx, "ttyd", args...)
	cmd.Stdout = nil
	cmd.Stderr = nil

	s.mu.Lock()
	if err := cmd.Start(); err != nil {
		s.mu.Unlock()
		return nomaderr.Wrap(nomaderr.CommandFailed, "start ttyd", err)
	}
	s.cmd = cmd
	s.mu.Unlock()

	time.Sleep(settleDelay)
	return nil
}

// Stop kills the ttyd process if this Service started one.
func (s *Service) Stop() error {
	s.mu.Lock()
	cmd := s.cmd
	s.cmd = nil
	s.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	cmd.Process.Kill()
	cmd.Wait()
	return nil
}

func (s *Service) portInUse() bool {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", s.Port))
	if err != nil {
		return true
	}
	ln.Close()
	return false
}
