// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app wires the laptop server, its ttyd daemon, and an
// optional tunnel client into a single process lifecycle: Initialize,
// Start, Run, Shutdown.
package app

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nomadflowcode/nomadflow/internal/api"
	"github.com/nomadflowcode/nomadflow/internal/config"
	"github.com/nomadflowcode/nomadflow/internal/terminal"
	"github.com/nomadflowcode/nomadflow/internal/tunnel"
	"github.com/nomadflowcode/nomadflow/internal/worktree"
)

// Options configures a laptop server run.
type Options struct {
	ConfigPath string
	Host       string
	Port       int
}

// App is the laptop server's process container.
type App struct {
	mu sync.Mutex

	settings     config.Settings
	coordinator  *worktree.Coordinator
	multiplexer  *terminal.Multiplexer
	server       *api.Server
	tunnelClient *tunnel.Client

	done     chan struct{}
	stopOnce sync.Once
}

func New(opts Options) (*App, error) {
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.Host != "" {
		settings.API.Host = opts.Host
	}
	if opts.Port > 0 {
		settings.API.Port = opts.Port
	}

	return &App{
		settings: settings,
		done:     make(chan struct{}),
	}, nil
}

// Initialize ensures on-disk directories and builds the coordinator,
// multiplexer, and HTTP server. It does not yet start any process.
func (app *App) Initialize(ctx context.Context) error {
	if err := app.settings.EnsureDirectories(); err != nil {
		return err
	}

	app.coordinator = worktree.New(app.settings.ReposDir(), app.settings.WorktreesDir())
	app.multiplexer = terminal.New(app.settings.Tmux.Session)

	if err := app.multiplexer.EnsureSession(ctx); err != nil {
		return err
	}

	app.server = api.NewServer(
		api.ServerConfig{
			Host:        app.settings.API.Host,
			Port:        app.settings.API.Port,
			Secret:      app.settings.Auth.Secret,
			TmuxSession: app.settings.Tmux.Session,
			DaemonPort:  app.settings.Ttyd.Port,
		},
		api.Dependencies{
			Coordinator: app.coordinator,
			Multiplexer: app.multiplexer,
		},
	)

	return nil
}

// Start launches the HTTP server (and, inside it, ttyd) in the
// background, plus an optional tunnel client.
func (app *App) Start(ctx context.Context) error {
	go func() {
		if err := app.server.Start(ctx); err != nil {
			log.Printf("laptop server error: %v", err)
		}
	}()

	if app.settings.Tunnel.RelayHost != "" {
		app.tunnelClient = tunnel.New(tunnel.Config{
			RelayHost:   app.settings.Tunnel.RelayHost,
			RelayPort:   app.settings.Tunnel.RelayPort,
			RelaySecret: app.settings.Tunnel.RelaySecret,
			Subdomain:   app.settings.Tunnel.Subdomain,
			LocalPort:   app.settings.API.Port,
		})
		info, err := app.tunnelClient.Start(ctx)
		if err != nil {
			log.Printf("tunnel not established: %v", err)
		} else {
			log.Printf("public URL: %s", info.PublicURL)
		}
	}

	return nil
}

// Run initializes, starts, and blocks until a shutdown signal or
// context cancellation, then shuts down gracefully.
func (app *App) Run(ctx context.Context) error {
	if err := app.Initialize(ctx); err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("received signal %v, shutting down", sig)
	case <-ctx.Done():
	case <-app.done:
	}

	return app.Shutdown(context.Background())
}

// Shutdown stops the tunnel client, the HTTP server, and ttyd.
func (app *App) Shutdown(ctx context.Context) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if app.tunnelClient != nil {
		app.tunnelClient.Stop()
	}

	if app.server != nil {
		if err := app.server.Shutdown(shutdownCtx); err != nil {
			log.Printf("error shutting down laptop server: %v", err)
		}
	}

	return nil
}

// Stop signals Run to shut down. Safe to call multiple times.
func (app *App) Stop() {
	app.stopOnce.Do(func() { close(app.done) })
}
