// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package terminal drives the tmux multiplexer that backs every
// terminal window a feature worktree gets attached to. It holds no
// session state itself — every query re-asks tmux.
package terminal

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nomadflowcode/nomadflow/internal/nomaderr"
)

// idleShells is the set of pane commands considered an idle shell
// rather than a running process, matched case-insensitively against
// the first line only.
var idleShells = map[string]bool{
	"bash": true, "zsh": true, "sh": true, "fish": true,
	"dash": true, "ksh": true, "tcsh": true, "csh": true,
}

// Multiplexer drives a single named tmux session.
type Multiplexer struct {
	Session string
}

func New(session string) *Multiplexer {
	return &Multiplexer{Session: session}
}

// WindowName is the naming contract shared by the client, server, and
// coordinator: <repo-basename>:<feature-name>.
func WindowName(repoPath, featureName string) string {
	return filepath.Base(repoPath) + ":" + featureName
}

// EnsureSession creates the session if it does not already exist.
func (m *Multiplexer) EnsureSession(ctx context.Context) error {
	if m.hasSession(ctx) {
		return nil
	}
	cmd := exec.CommandContext(ctx, "tmux", "new-session", "-d", "-s", m.Session)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nomaderr.NewCommandFailed(fmt.Sprintf("tmux new-session: %s", stderr.String()))
	}
	return nil
}

func (m *Multiplexer) hasSession(ctx context.Context) bool {
	return exec.CommandContext(ctx, "tmux", "has-session", "-t", m.Session).Run() == nil
}

// WindowExists reports whether window exists in the session.
func (m *Multiplexer) WindowExists(ctx context.Context, window string) bool {
	windows, err := m.ListWindows(ctx)
	if err != nil {
		return false
	}
	for _, w := range windows {
		if w.Name == window {
			return true
		}
	}
	return false
}

// ListWindows lists the session's windows.
func (m *Multiplexer) ListWindows(ctx context.Context) ([]WindowInfo, error) {
	cmd := exec.CommandContext(ctx, "tmux", "list-windows", "-t", m.Session, "-F", "#{window_index}:#{window_name}")
	output, err := cmd.Output()
	if err != nil {
		return nil, nomaderr.NewCommandFailed("tmux list-windows: " + err.Error())
	}
	return parseWindowList(string(output)), nil
}

// EnsureWindow creates window rooted at dir if it does not exist.
func (m *Multiplexer) EnsureWindow(ctx context.Context, window, dir string) error {
	if m.WindowExists(ctx, window) {
		return nil
	}
	cmd := exec.CommandContext(ctx, "tmux", "new-window", "-t", m.Session, "-n", window, "-c", dir)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nomaderr.NewCommandFailed(fmt.Sprintf("tmux new-window: %s", stderr.String()))
	}
	return m.SendKeys(ctx, window, fmt.Sprintf("cd %s", shQuote(dir)), true)
}

// SelectWindow brings window to the foreground.
func (m *Multiplexer) SelectWindow(ctx context.Context, window string) error {
	target := m.Session + ":" + window
	if err := exec.CommandContext(ctx, "tmux", "select-window", "-t", target).Run(); err != nil {
		return nomaderr.NewCommandFailed("tmux select-window: " + err.Error())
	}
	return nil
}

// KillWindow removes window from the session.
func (m *Multiplexer) KillWindow(ctx context.Context, window string) error {
	target := m.Session + ":" + window
	if err := exec.CommandContext(ctx, "tmux", "kill-window", "-t", target).Run(); err != nil {
		return nomaderr.NewCommandFailed("tmux kill-window: " + err.Error())
	}
	return nil
}

// SendKeys sends keys to window, optionally followed by Enter.
func (m *Multiplexer) SendKeys(ctx context.Context, window, keys string, enter bool) error {
	target := m.Session + ":" + window
	args := []string{"send-keys", "-t", target, keys}
	if enter {
		args = append(args, "Enter")
	}
	if err := exec.CommandContext(ctx, "tmux", args...).Run(); err != nil {
		return nomaderr.NewCommandFailed("tmux send-keys: " + err.Error())
	}
	return nil
}

// paneCommand returns the foreground command of window's active pane,
// lowercased, first line only.
func (m *Multiplexer) paneCommand(ctx context.Context, window string) string {
	target := m.Session + ":" + window
	cmd := exec.CommandContext(ctx, "tmux", "list-panes", "-t", target, "-F", "#{pane_current_command}")
	output, err := cmd.Output()
	if err != nil {
		return ""
	}
	lines := strings.Split(string(output), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(lines[0]))
}

// IsShellIdle reports whether window's active pane is sitting at a
// bare shell prompt rather than running a foreground process.
func (m *Multiplexer) IsShellIdle(ctx context.Context, window string) bool {
	return idleShells[m.paneCommand(ctx, window)]
}

// SwitchToWindow ensures window exists rooted at dir, selects it, and
// — only when its pane is idle — resets the shell with cd+clear so the
// terminal lands back at dir instead of wherever the last session left
// the cursor. switched reports whether the window was successfully
// selected (true whether it pre-existed or was just created);
// hasRunningProcess reports whether a foreground process is live.
func (m *Multiplexer) SwitchToWindow(ctx context.Context, window, dir string) (switched, hasRunningProcess bool, err error) {
	existed := m.WindowExists(ctx, window)
	if !existed {
		if err := m.EnsureWindow(ctx, window, dir); err != nil {
			return false, false, err
		}
	}

	if err := m.SelectWindow(ctx, window); err != nil {
		return false, false, err
	}

	idle := m.IsShellIdle(ctx, window)
	if existed && idle {
		if err := m.SendKeys(ctx, window, fmt.Sprintf("cd %s && clear", shQuote(dir)), true); err != nil {
			return false, false, err
		}
	}

	return true, !idle, nil
}

func parseWindowList(output string) []WindowInfo {
	var windows []WindowInfo
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		idx, _ := strconv.Atoi(parts[0])
		windows = append(windows, WindowInfo{Index: idx, Name: parts[1]})
	}
	return windows
}

func shQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
